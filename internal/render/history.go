package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/ieee-cs-bmsit/structsight/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

// Runs writes a table of recorded analysis runs.
func Runs(w io.Writer, runs []store.Run, opts Options) error {
	if len(runs) == 0 {
		_, err := io.WriteString(w, "no runs recorded\n")
		return err
	}

	t := &table{
		header: []string{"RUN", "CREATED", "ARCH", "COMPILER", "RECORDS", "FILE"},
		right:  []bool{false, false, false, false, true, false},
	}
	for _, r := range runs {
		t.rows = append(t.rows, row{cells: []string{
			r.ID,
			r.CreatedAt.Local().Format(timeLayout),
			r.Arch,
			r.Compiler,
			fmt.Sprint(r.Records),
			r.FilePath,
		}})
	}

	var b strings.Builder
	t.write(&b, "", newStyles(w, opts.Color))
	_, err := io.WriteString(w, b.String())
	return err
}

// History writes the size history of one record, newest first, with the
// change relative to the previous (older) measurement.
func History(w io.Writer, name string, entries []store.Entry, opts Options) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintf(w, "no history for %s\n", name)
		return err
	}

	t := &table{
		header: []string{"CREATED", "SIZE", "PADDING", "SAVABLE", "CHANGE", "RECORD", "FILE"},
		right:  []bool{false, true, true, true, true, false, false},
	}
	for i, e := range entries {
		change := ""
		if i+1 < len(entries) {
			change = delta(entries[i+1].TotalSize, e.TotalSize)
		}
		t.rows = append(t.rows, row{cells: []string{
			e.CreatedAt.Local().Format(timeLayout),
			fmt.Sprint(e.TotalSize),
			fmt.Sprint(e.PaddingBytes),
			fmt.Sprint(e.BytesSaved),
			change,
			e.QualifiedName,
			e.FilePath,
		}})
	}

	var b strings.Builder
	t.write(&b, "", newStyles(w, opts.Color))
	_, err := io.WriteString(w, b.String())
	return err
}

func delta(before, after uint64) string {
	switch {
	case after > before:
		return fmt.Sprintf("+%d", after-before)
	case after < before:
		return fmt.Sprintf("-%d", before-after)
	default:
		return "0"
	}
}
