package sqltext

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "SingleNoSemicolon",
			input: "SELECT 1",
			want:  []string{"SELECT 1"},
		},
		{
			name:  "TwoStatements",
			input: "SELECT 1; SELECT 2;",
			want:  []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:  "SemicolonInsideStringLiteral",
			input: "SELECT 'a;b' FROM t; SELECT 2;",
			want:  []string{"SELECT 'a;b' FROM t", "SELECT 2"},
		},
		{
			name:  "SemicolonInsideDoubleQuotes",
			input: `SELECT "col;umn" FROM t; SELECT 2`,
			want:  []string{`SELECT "col;umn" FROM t`, "SELECT 2"},
		},
		{
			name:  "SemicolonInsideLineComment",
			input: "SELECT 1 -- trailing; not a boundary\n; SELECT 2",
			want:  []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:  "SemicolonInsideBlockComment",
			input: "SELECT 1 /* a;b */; SELECT 2",
			want:  []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:  "EmptySegmentsDropped",
			input: ";;SELECT 1;;",
			want:  []string{"SELECT 1"},
		},
		{
			name:  "EmptyInput",
			input: "",
			want:  nil,
		},
		{
			name:  "MixedQuoting",
			input: `SELECT 'he said "hi;"' ; SELECT "she said 'no;'"`,
			want:  []string{`SELECT 'he said "hi;"'`, `SELECT "she said 'no;'"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitStatements(tt.input)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitStatements(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestCountStatements(t *testing.T) {
	if got := CountStatements("SELECT 'a;b' FROM t; SELECT 2;"); got != 2 {
		t.Errorf("CountStatements = %d, want 2", got)
	}
	if got := CountStatements("  "); got != 0 {
		t.Errorf("CountStatements on blank input = %d, want 0", got)
	}
}
