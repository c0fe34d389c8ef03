package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// TypeAnnotation holds options from a @layout doc-comment directive.
type TypeAnnotation struct {
	Skip bool // Exclude the type from analysis
}

var annotationRe = regexp.MustCompile(`^@layout(?:\s+(.+))?$`)

// ParseAnnotation parses a @layout directive from cleaned comment text.
//
// Expected format:
//
//	// @layout
//	// @layout skip
//
// Options are space-separated words.
func ParseAnnotation(comment string) (*TypeAnnotation, error) {
	matches := annotationRe.FindStringSubmatch(strings.TrimSpace(comment))
	if matches == nil {
		return nil, fmt.Errorf("no @layout annotation found")
	}

	anno := &TypeAnnotation{}
	for _, opt := range strings.Fields(matches[1]) {
		switch opt {
		case "skip":
			anno.Skip = true
		default:
			return nil, fmt.Errorf("unknown @layout option: %s", opt)
		}
	}

	return anno, nil
}

// FindAnnotation searches comment lines for a @layout annotation
// Returns the annotation and true if found
func FindAnnotation(comments []string) (*TypeAnnotation, bool) {
	for _, comment := range comments {
		anno, err := ParseAnnotation(comment)
		if err == nil {
			return anno, true
		}
	}
	return nil, false
}

// CleanComment removes comment markers from a line
// "// @layout skip" → "@layout skip"
// "/* @layout skip */" → "@layout skip"
func CleanComment(line string) string {
	line = strings.TrimSpace(line)

	if strings.HasPrefix(line, "//") {
		return strings.TrimSpace(strings.TrimPrefix(line, "//"))
	}

	if strings.HasPrefix(line, "/*") && strings.HasSuffix(line, "*/") {
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		return strings.TrimSpace(line)
	}

	return line
}
