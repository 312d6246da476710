// Package query implements the execution orchestrator: it runs SQL on a
// session's connection, stores bounded results for paginated retrieval, and
// provides the preflight/batch validation used to repair failing queries.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ColumnMeta describes one result column.
type ColumnMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ValueKind tags the dynamic type of one cell.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindNumber
	KindBool
	KindTime
	KindBytes
)

// Value is one result cell. Rows are [][]Value matched positionally to the
// column list; the tag replaces the untyped any-of-anything rows the wire
// format would otherwise force on every consumer.
type Value struct {
	kind  ValueKind
	str   string
	i     int64
	num   float64
	boolv bool
	ts    time.Time
	raw   []byte
}

// Null returns the null cell.
func Null() Value { return Value{kind: KindNull} }

// String wraps a string cell.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int wraps an integer cell. Integers keep their own kind so values above
// 2^53, like numeric IDs and row counts, never lose digits to a float64.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Number wraps a floating-point cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool wraps a boolean cell.
func Bool(b bool) Value { return Value{kind: KindBool, boolv: b} }

// Time wraps a timestamp cell.
func Time(t time.Time) Value { return Value{kind: KindTime, ts: t} }

// Bytes wraps a binary cell.
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// FromDriver converts a database/sql scan value into a tagged Value.
func FromDriver(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case string:
		return String(x)
	case int64:
		return Int(x)
	case int:
		return Int(int64(x))
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case bool:
		return Bool(x)
	case time.Time:
		return Time(x)
	case []byte:
		return Bytes(x)
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// Kind returns the value's tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the cell is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString renders the value for display.
func (v Value) AsString() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindNumber:
		return formatNumber(v.num)
	case KindBool:
		if v.boolv {
			return "true"
		}
		return "false"
	case KindTime:
		return v.ts.Format(time.RFC3339)
	case KindBytes:
		return string(v.raw)
	default:
		return ""
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// MarshalJSON renders the cell as its natural JSON type: null, string,
// number, bool; timestamps as RFC 3339 strings, binary as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return json.Marshal(v.i)
	case KindNumber:
		if v.num == float64(int64(v.num)) {
			return json.Marshal(int64(v.num))
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.boolv)
	case KindTime:
		return json.Marshal(v.ts.Format(time.RFC3339))
	case KindBytes:
		return json.Marshal(string(v.raw))
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON reverses MarshalJSON. Integral numbers decode as integer
// cells so large IDs survive a round trip; timestamp and binary provenance
// is not recoverable, both come back as strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(x)
	case bool:
		*v = Bool(x)
	case json.Number:
		if i, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			*v = Int(i)
			return nil
		}
		f, err := x.Float64()
		if err != nil {
			return err
		}
		*v = Number(f)
	default:
		return fmt.Errorf("query: cannot decode %s into a result cell", data)
	}
	return nil
}
