// Package render formats analysis results for terminals, machines and
// editor hovers.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/unicode/norm"

	"github.com/ieee-cs-bmsit/structsight/internal/layout"
	"github.com/ieee-cs-bmsit/structsight/internal/session"
)

// Options controls text rendering.
type Options struct {
	Color bool
}

type styles struct {
	on      bool
	heading lipgloss.Style
	padding lipgloss.Style
	hint    lipgloss.Style
	dim     lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		on:      color,
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		padding: r.NewStyle().Foreground(lipgloss.Color("3")),
		hint:    r.NewStyle().Foreground(lipgloss.Color("2")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

func (s styles) apply(st lipgloss.Style, text string) string {
	if !s.on {
		return text
	}
	return st.Render(text)
}

var printer = message.NewPrinter(language.English)

func byteCount(n uint64) string {
	if n == 1 {
		return "1 byte"
	}
	return printer.Sprintf("%d bytes", n)
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// Text writes a human-readable report of every layout in res.
func Text(w io.Writer, res session.Result, opts Options) error {
	st := newStyles(w, opts.Color)
	var b strings.Builder

	if !res.Success {
		fmt.Fprintf(&b, "analysis failed: %s\n", res.ErrorMessage)
		_, err := io.WriteString(w, b.String())
		return err
	}
	if len(res.Layouts) == 0 {
		b.WriteString("no records found\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	for i, d := range res.Layouts {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeRecord(&b, d, st)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func heading(d layout.Descriptor) string {
	h := d.Name
	if d.QualifiedName != "" && d.QualifiedName != d.Name {
		h += " (" + d.QualifiedName + ")"
	}
	return h
}

func writeRecord(b *strings.Builder, d layout.Descriptor, st styles) {
	b.WriteString(st.apply(st.heading, heading(d)))
	if d.IsPolymorphic {
		b.WriteString(" " + st.apply(st.dim, "[polymorphic]"))
	}
	b.WriteByte('\n')

	fmt.Fprintf(b, "  size:      %s\n", byteCount(d.TotalSize))
	fmt.Fprintf(b, "  alignment: %d\n", d.Alignment)
	fmt.Fprintf(b, "  useful:    %s\n", byteCount(d.UsefulSize))
	padding := fmt.Sprintf("%s (%s)", byteCount(d.TotalPadding()), percent(d.PaddingRatio()))
	if d.TotalPadding() > 0 {
		padding = st.apply(st.padding, padding)
	}
	fmt.Fprintf(b, "  padding:   %s\n", padding)

	if len(d.Members) > 0 {
		b.WriteByte('\n')
		memberTable(d).write(b, "  ", st)
	}

	if d.VTable != nil && d.IsPolymorphic {
		b.WriteByte('\n')
		fmt.Fprintf(b, "  vtable pointer at offset %d (%s)\n", d.VTable.PointerOffset, d.Polymorphism())
		if len(d.VTable.VirtualFunctions) > 0 {
			fmt.Fprintf(b, "  virtual: %s\n", strings.Join(d.VTable.VirtualFunctions, ", "))
		}
		if d.VTable.HasVirtualBase {
			b.WriteString("  has virtual base; size estimates are approximate\n")
		}
	}

	if len(d.Optimizations) > 0 {
		b.WriteByte('\n')
		b.WriteString("  suggestions:\n")
		for _, s := range d.Optimizations {
			line := fmt.Sprintf("[%s] %s", s.Kind, s.Description)
			if s.BytesSaved > 0 {
				line += fmt.Sprintf(", saves %s", byteCount(s.BytesSaved))
			}
			line += fmt.Sprintf(" (confidence %s)", percent(s.Confidence))
			fmt.Fprintf(b, "    %s\n", st.apply(st.hint, line))
			if len(s.SuggestedOrder) > 0 {
				fmt.Fprintf(b, "      order: %s\n", strings.Join(s.SuggestedOrder, ", "))
			}
		}
	}
}

type row struct {
	offset  uint64
	padding bool
	cells   []string
}

func memberTable(d layout.Descriptor) *table {
	rows := make([]row, 0, len(d.Members)+len(d.Padding))
	for _, m := range d.Members {
		typ := m.Type
		if m.IsBitfield {
			typ = fmt.Sprintf("%s : %d", typ, m.BitfieldWidth)
		}
		rows = append(rows, row{
			offset: m.Offset,
			cells: []string{
				fmt.Sprint(m.Offset),
				fmt.Sprint(m.Size),
				fmt.Sprint(m.Alignment),
				m.Name,
				typ,
			},
		})
	}
	for _, p := range d.Padding {
		rows = append(rows, row{
			offset:  p.Offset,
			padding: true,
			cells: []string{
				fmt.Sprint(p.Offset),
				fmt.Sprint(p.Size),
				"",
				"<padding>",
				p.Reason,
			},
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].offset < rows[j].offset
	})

	return &table{
		header: []string{"OFFSET", "SIZE", "ALIGN", "NAME", "TYPE"},
		right:  []bool{true, true, true, false, false},
		rows:   rows,
	}
}

// table aligns columns by display width. The last column is never padded.
type table struct {
	header []string
	right  []bool
	rows   []row
}

func (t *table) write(b *strings.Builder, indent string, st styles) {
	widths := make([]int, len(t.header))
	measure := func(cells []string) {
		for i, c := range cells {
			widths[i] = max(widths[i], runewidth.StringWidth(norm.NFC.String(c)))
		}
	}
	measure(t.header)
	for _, r := range t.rows {
		measure(r.cells)
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			c = norm.NFC.String(c)
			switch {
			case t.right[i]:
				parts[i] = runewidth.FillLeft(c, widths[i])
			case i < len(cells)-1:
				parts[i] = runewidth.FillRight(c, widths[i])
			default:
				parts[i] = c
			}
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	b.WriteString(indent + st.apply(st.dim, line(t.header)) + "\n")
	for _, r := range t.rows {
		l := line(r.cells)
		if r.padding {
			l = st.apply(st.padding, l)
		}
		b.WriteString(indent + l + "\n")
	}
}

// JSON writes res with the camelCase field names of layout.Descriptor.
func JSON(w io.Writer, res session.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// Hover returns a one-paragraph summary of d suitable for an editor tooltip.
func Hover(d layout.Descriptor) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s, alignment %d", heading(d), byteCount(d.TotalSize), d.Alignment)
	if d.IsPolymorphic {
		b.WriteString(", polymorphic")
	}
	fmt.Fprintf(&b, ". Padding: %s (%s).", byteCount(d.TotalPadding()), percent(d.PaddingRatio()))

	for _, s := range d.Optimizations {
		if s.Kind == layout.Reorder && s.BytesSaved > 0 {
			fmt.Fprintf(&b, " Reordering saves %s.", byteCount(s.BytesSaved))
			break
		}
	}
	for _, s := range d.Optimizations {
		if s.Kind == layout.CacheLineSpan {
			fmt.Fprintf(&b, " %s.", s.Description)
			break
		}
	}
	return b.String()
}
