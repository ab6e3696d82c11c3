package ingest

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Kind enumerates the value variants a record field may hold.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is a typed record field. Only the member matching Kind is meaningful.
type Value struct {
	Kind   Kind
	Text   string
	Number float64
	List   []Value
}

func Null() Value { return Value{Kind: KindNull} }
func Text(s string) Value { return Value{Kind: KindText, Text: s} }
func Number(f float64) Value { return Value{Kind: KindNumber, Number: f} }
func List(values ...Value) Value { return Value{Kind: KindList, List: values} }
func (v Value) IsNull() bool { return v.Kind == KindNull }
func (v Value) IsText() bool { return v.Kind == KindText }

// Any converts v back into plain Go values suitable for JSON payloads.
func (v Value) Any() any {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return v.Number
	case KindList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.Any()
		}
		return out
	default:
		return nil
	}
}

// String renders v for embedding text. Lists are comma-joined, null is empty.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.String()
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// Record is one normalized document chunk.
type Record map[string]Value

// Keys returns the record's field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Payload returns a copy of r as plain Go values.
func (r Record) Payload() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v.Any()
	}
	return out
}

// fromJSON maps a decoded JSON value onto a Value. Booleans become text and
// nested objects become their compact JSON text so that a record never holds
// a variant outside Kind.
func fromJSON(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case string:
		return Text(x)
	case float64:
		return Number(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Text(x.String())
		}
		return Number(f)
	case bool:
		return Text(strconv.FormatBool(x))
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			out[i] = fromJSON(e)
		}
		return List(out...)
	case map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return Null()
		}
		return Text(string(b))
	default:
		return Null()
	}
}
