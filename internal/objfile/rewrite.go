package objfile

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// memberDecl matches a data member declared alone on its line, with an
	// optional array extent, bitfield width, initializer and trailing comment.
	memberDecl = regexp.MustCompile(`^\s*[A-Za-z_][\w:<>,\s*&]*?[\s*&]+([A-Za-z_]\w*)\s*(?:\[[^\]]*\]\s*)*(?::\s*\w+\s*)?(?:(?:=|\{)[^;]*)?;\s*(?://.*|/\*.*\*/\s*)?$`)

	accessSpec  = regexp.MustCompile(`^\s*(?:public|private|protected)\s*:`)
	commentLine = regexp.MustCompile(`^\s*(?://.*|/\*.*\*/\s*)$`)
)

// slot is a run of body lines holding one member declaration and the
// comment lines directly above it.
type slot struct {
	name       string
	start, end int // line indexes, end exclusive
}

// Reorder returns src with the data members of the struct or class named
// record declared in order. Each member must be declared on a line of its
// own; comment lines directly above a member move with it. Members are not
// moved across access specifiers. Nested records, methods and static members
// stay where they are.
func Reorder(src []byte, record string, order []string) ([]byte, error) {
	if i := strings.LastIndex(record, "::"); i >= 0 {
		record = record[i+2:]
	}

	head := regexp.MustCompile(`\b(?:struct|class)\s+` + regexp.QuoteMeta(record) + `\s*(?:final\s*)?(?::[^;{}]*)?\{`)
	loc := head.FindIndex(src)
	if loc == nil {
		return nil, fmt.Errorf("definition of %s not found", record)
	}
	open := loc[1] - 1

	closing, ok := matchBrace(string(src), open)
	if !ok {
		return nil, fmt.Errorf("%s: unbalanced braces", record)
	}

	lines := strings.SplitAfter(string(src[open+1:closing]), "\n")
	depths := lineDepths(lines)

	want := make(map[string]bool, len(order))
	for _, name := range order {
		want[name] = true
	}

	var slots []slot
	byName := make(map[string]int)
	for i, line := range lines {
		if depths[i] != 0 {
			continue
		}
		m := memberDecl.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
		if m == nil || !want[m[1]] {
			continue
		}
		if _, dup := byName[m[1]]; dup {
			return nil, fmt.Errorf("%s: member %s declared twice", record, m[1])
		}

		start := i
		floor := 0
		if len(slots) > 0 {
			floor = slots[len(slots)-1].end
		}
		for start > floor && depths[start-1] == 0 && commentLine.MatchString(lines[start-1]) {
			start--
		}

		byName[m[1]] = len(slots)
		slots = append(slots, slot{name: m[1], start: start, end: i + 1})
	}

	for _, name := range order {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("%s: member %s is not declared on a line of its own", record, name)
		}
	}
	if len(slots) == 0 {
		return src, nil
	}

	for i := slots[0].start; i < slots[len(slots)-1].end; i++ {
		if depths[i] == 0 && accessSpec.MatchString(lines[i]) {
			return nil, fmt.Errorf("%s: members span access specifiers", record)
		}
	}

	var body strings.Builder
	next := 0
	for i := 0; i < len(lines); {
		if next < len(slots) && i == slots[next].start {
			moved := slots[byName[order[next]]]
			for _, line := range lines[moved.start:moved.end] {
				body.WriteString(line)
			}
			i = slots[next].end
			next++
			continue
		}
		body.WriteString(lines[i])
		i++
	}

	out := make([]byte, 0, len(src))
	out = append(out, src[:open+1]...)
	out = append(out, body.String()...)
	out = append(out, src[closing:]...)
	return out, nil
}

// scanner tracks block comments across calls to code.
type scanner struct {
	inBlock bool
}

// code calls fn with the index of each byte of s outside comments and
// string or character literals, stopping early when fn returns false.
func (sc *scanner) code(s string, fn func(i int, c byte) bool) {
	for i := 0; i < len(s); i++ {
		if sc.inBlock {
			if s[i] == '*' && i+1 < len(s) && s[i+1] == '/' {
				sc.inBlock = false
				i++
			}
			continue
		}

		c := s[i]
		switch {
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return
			}
			i += nl - 1
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			sc.inBlock = true
			i++
		case c == '"' || c == '\'':
			i = skipLiteral(s, i)
		default:
			if !fn(i, c) {
				return
			}
		}
	}
}

// skipLiteral returns the index of the quote closing the literal opened at
// s[i], or of the end of the line for an unterminated literal.
func skipLiteral(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j
		case '\n':
			return j - 1
		}
	}
	return len(s) - 1
}

// matchBrace returns the index of the brace closing the one at s[open].
func matchBrace(s string, open int) (int, bool) {
	var (
		sc    scanner
		depth int
		found = -1
	)
	sc.code(s[open:], func(i int, c byte) bool {
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				found = open + i
				return false
			}
		}
		return true
	})
	return found, found >= 0
}

// lineDepths returns the brace depth at the start of each line.
func lineDepths(lines []string) []int {
	var (
		sc    scanner
		depth int
	)
	depths := make([]int, len(lines))
	for i, line := range lines {
		depths[i] = depth
		sc.code(line, func(_ int, c byte) bool {
			switch c {
			case '{':
				depth++
			case '}':
				depth--
			}
			return true
		})
	}
	return depths
}
