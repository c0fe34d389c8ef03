package parser

import (
	"testing"
)

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		comment  string
		wantSkip bool
		wantErr  bool
	}{
		// Valid annotations
		{"@layout", false, false},
		{"@layout skip", true, false},
		{"  @layout   skip  ", true, false},

		// Error cases
		{"", false, true},                   // no annotation
		{"skip", false, true},               // missing @layout
		{"@layoutskip", false, true},        // not a directive
		{"@layout frobnicate", false, true}, // unknown option
	}

	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			got, err := ParseAnnotation(tt.comment)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAnnotation(%q) expected error, got nil", tt.comment)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseAnnotation(%q) unexpected error: %v", tt.comment, err)
			}

			if got.Skip != tt.wantSkip {
				t.Errorf("ParseAnnotation(%q).Skip = %v, want %v", tt.comment, got.Skip, tt.wantSkip)
			}
		})
	}
}

func TestCleanComment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"// @layout skip", "@layout skip"},
		{"  //   @layout skip  ", "@layout skip"},
		{"/* @layout skip */", "@layout skip"},
		{"  /*  @layout skip  */  ", "@layout skip"},
		{"@layout skip", "@layout skip"}, // no markers
		{"", ""},
	}

	for _, tt := range tests {
		got := CleanComment(tt.input)
		if got != tt.want {
			t.Errorf("CleanComment(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFindAnnotation(t *testing.T) {
	tests := []struct {
		name      string
		comments  []string
		wantSkip  bool
		wantFound bool
	}{
		{
			name: "found in first line",
			comments: []string{
				"@layout skip",
				"other comment",
			},
			wantSkip:  true,
			wantFound: true,
		},
		{
			name: "found in second line",
			comments: []string{
				"Header is the page header.",
				"@layout",
			},
			wantFound: true,
		},
		{
			name: "not found",
			comments: []string{
				"Just a comment",
				"Another comment mentioning @layout inline",
			},
			wantFound: false,
		},
		{
			name:      "empty comments",
			comments:  []string{},
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := FindAnnotation(tt.comments)

			if found != tt.wantFound {
				t.Errorf("FindAnnotation() found = %v, want %v", found, tt.wantFound)
				return
			}

			if !tt.wantFound {
				return
			}

			if got.Skip != tt.wantSkip {
				t.Errorf("FindAnnotation().Skip = %v, want %v", got.Skip, tt.wantSkip)
			}
		})
	}
}
