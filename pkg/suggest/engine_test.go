package suggest

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func seededCache(tables map[string][]string) *SchemaCache {
	c := NewSchemaCache(time.Minute, 64)
	for name, cols := range tables {
		c.Put(name, cols)
	}
	return c
}

func TestFromErrorNeverSuggestsFailingTable(t *testing.T) {
	// The failing table is itself in the snapshot, a perfect self-match.
	c := seededCache(map[string][]string{
		"TABLE_ENTITY":    {"GUID", "NAME"},
		"TABLE_ENTITY_V2": {"GUID", "NAME"},
	})
	e := NewEngine(c)

	got := e.FromError(
		"SELECT * FROM TABLE_ENTITY",
		"Object 'TABLE_ENTITY' does not exist or not authorized.",
	)
	for _, s := range got {
		if strings.EqualFold(s.Table, "TABLE_ENTITY") {
			t.Errorf("failing table suggested itself: %+v", s)
		}
	}
	if len(got) == 0 {
		t.Fatal("expected at least the sibling suggestion")
	}
	if got[0].Table != "TABLE_ENTITY_V2" {
		t.Errorf("top suggestion = %q, want TABLE_ENTITY_V2", got[0].Table)
	}
}

func TestFromErrorTableSwapRewritesSQL(t *testing.T) {
	c := seededCache(map[string][]string{
		"PROCESS_ENTITY": {"GUID"},
	})
	e := NewEngine(c)

	got := e.FromError(
		"SELECT GUID FROM PROCES_ENTITY WHERE GUID = 'x'",
		"Object 'PROCES_ENTITY' does not exist or not authorized.",
	)
	if len(got) == 0 {
		t.Fatal("expected a suggestion for the near-miss name")
	}
	s := got[0]
	if s.Type != TypeTableSwap || !s.Actionable {
		t.Errorf("top suggestion = %+v, want actionable table swap", s)
	}
	want := "SELECT GUID FROM PROCESS_ENTITY WHERE GUID = 'x'"
	if s.SQL != want {
		t.Errorf("rewritten SQL = %q, want %q", s.SQL, want)
	}
	if s.Confidence < 0.8 {
		t.Errorf("confidence = %v, want near-certain for a one-letter typo", s.Confidence)
	}
}

func TestFromErrorColumnSwap(t *testing.T) {
	c := seededCache(map[string][]string{
		"TABLE_ENTITY": {"GUID", "NAME", "LOADED_AT"},
	})
	e := NewEngine(c)

	got := e.FromError(
		"SELECT GUIDD FROM TABLE_ENTITY",
		`SQL compilation error: invalid identifier 'GUIDD'`,
	)
	if len(got) == 0 {
		t.Fatal("expected a column suggestion")
	}
	s := got[0]
	if s.Type != TypeColumnSwap {
		t.Fatalf("top suggestion type = %s, want column swap", s.Type)
	}
	if s.SQL != "SELECT GUID FROM TABLE_ENTITY" {
		t.Errorf("rewritten SQL = %q", s.SQL)
	}
}

func TestFromErrorSyntaxTrailingComma(t *testing.T) {
	e := NewEngine(seededCache(nil))

	got := e.FromError(
		"SELECT GUID, FROM TABLE_ENTITY",
		"SQL compilation error: syntax error line 1 at position 13 unexpected 'FROM'.",
	)
	if len(got) == 0 {
		t.Fatal("expected suggestions")
	}
	s := got[0]
	if s.Type != TypeSyntaxFix || !s.Actionable {
		t.Fatalf("top suggestion = %+v, want actionable syntax fix", s)
	}
	if s.SQL != "SELECT GUID FROM TABLE_ENTITY" {
		t.Errorf("rewritten SQL = %q", s.SQL)
	}
}

func TestFromErrorActionableBeforeInfo(t *testing.T) {
	c := seededCache(map[string][]string{
		"TABLE_ENTITY": {"GUID"},
	})
	e := NewEngine(c)

	// Placeholder guidance plus an actionable table swap in one query.
	got := e.FromError(
		"SELECT GUID FROM TABLE_ENTTY WHERE GUID = '<YOUR GUID>'",
		"Object 'TABLE_ENTTY' does not exist or not authorized.",
	)
	if len(got) < 2 {
		t.Fatalf("expected swap + guidance, got %d", len(got))
	}
	if !got[0].Actionable {
		t.Errorf("first suggestion not actionable: %+v", got[0])
	}
	sawInfo := false
	for i := 1; i < len(got); i++ {
		if got[i].Actionable && sawInfo {
			t.Errorf("actionable suggestion after guidance at index %d", i)
		}
		if !got[i].Actionable {
			sawInfo = true
		}
	}
}

func TestFromErrorCap(t *testing.T) {
	tables := map[string][]string{}
	for i := 0; i < 20; i++ {
		tables[fmt.Sprintf("ORDERS_ENTITY_%02d", i)] = []string{"GUID"}
	}
	e := NewEngine(seededCache(tables))

	got := e.FromError(
		"SELECT GUID FROM ORDERS_ENTITY",
		"Object 'ORDERS_ENTITY' does not exist or not authorized.",
	)
	if len(got) > MaxSuggestions {
		t.Errorf("got %d suggestions, cap is %d", len(got), MaxSuggestions)
	}
}

func TestFromErrorUnknownErrorYieldsOnlyPlaceholders(t *testing.T) {
	e := NewEngine(seededCache(nil))

	got := e.FromError("SELECT 1", "network unreachable")
	if len(got) != 0 {
		t.Errorf("expected no suggestions, got %+v", got)
	}

	got = e.FromError("SELECT * FROM T WHERE ID = '<GUID>'", "network unreachable")
	if len(got) != 1 || got[0].Type != TypeInfo {
		t.Fatalf("expected one placeholder guidance, got %+v", got)
	}
}
