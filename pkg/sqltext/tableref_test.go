package sqltext

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegexExtractor_ExtractTableRefs(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []TableRef
	}{
		{
			name: "FullyQualified",
			sql:  "SELECT * FROM MDLH.PUBLIC.TABLE_ENTITY",
			want: []TableRef{{Database: "MDLH", Schema: "PUBLIC", Table: "TABLE_ENTITY"}},
		},
		{
			name: "SchemaQualified",
			sql:  "SELECT * FROM PUBLIC.PROCESS_ENTITY",
			want: []TableRef{{Schema: "PUBLIC", Table: "PROCESS_ENTITY"}},
		},
		{
			name: "Bare",
			sql:  "SELECT name FROM COLUMN_ENTITY WHERE x = 1",
			want: []TableRef{{Table: "COLUMN_ENTITY"}},
		},
		{
			name: "JoinMixed",
			sql: "SELECT * FROM MDLH.PUBLIC.TABLE_ENTITY t JOIN PROCESS_ENTITY p ON t.guid = p.guid",
			want: []TableRef{
				{Database: "MDLH", Schema: "PUBLIC", Table: "TABLE_ENTITY"},
				{Table: "PROCESS_ENTITY"},
			},
		},
		{
			name: "FullyQualifiedNotDuplicatedByPartialLayers",
			sql:  "SELECT * FROM DB1.S1.T1 WHERE c IN (SELECT c FROM DB1.S1.T1)",
			want: []TableRef{{Database: "DB1", Schema: "S1", Table: "T1"}},
		},
		{
			name: "KeywordNotMistakenForTable",
			sql:  "SELECT * FROM (SELECT 1) x",
			want: nil,
		},
		{
			name: "CommentedReferenceIgnored",
			sql:  "SELECT 1 -- FROM GHOST_TABLE\nFROM REAL_TABLE",
			want: []TableRef{{Table: "REAL_TABLE"}},
		},
	}

	var ex RegexExtractor
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ex.ExtractTableRefs(tt.sql)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractTableRefs(%q) mismatch (-want +got):\n%s", tt.sql, diff)
			}
		})
	}
}

func TestTableRef_Resolve(t *testing.T) {
	ref := TableRef{Table: "FOO_ENTITY"}.Resolve("MDLH", "PUBLIC")
	want := TableRef{Database: "MDLH", Schema: "PUBLIC", Table: "FOO_ENTITY"}
	if ref != want {
		t.Errorf("Resolve = %+v, want %+v", ref, want)
	}

	full := TableRef{Database: "D", Schema: "S", Table: "T"}.Resolve("X", "Y")
	if full.Database != "D" || full.Schema != "S" {
		t.Errorf("Resolve must not override explicit parts, got %+v", full)
	}
}

func TestTableRef_String(t *testing.T) {
	tests := []struct {
		ref  TableRef
		want string
	}{
		{TableRef{Database: "D", Schema: "S", Table: "T"}, "D.S.T"},
		{TableRef{Schema: "S", Table: "T"}, "S.T"},
		{TableRef{Table: "T"}, "T"},
	}
	for _, tt := range tests {
		if got := tt.ref.String(); got != tt.want {
			t.Errorf("String(%+v) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
