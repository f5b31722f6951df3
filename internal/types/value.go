package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies which variant a Value holds.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindNumber
	KindString
	KindStringList
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindStringList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a requirement value: exactly one of boolean, number, string, or
// list of strings. Nested objects are not representable; requirements are
// flat per sub-intent.
type Value struct {
	kind ValueKind
	b    bool
	n    float64
	s    string
	l    []string
}

func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Number(n float64) Value     { return Value{kind: KindNumber, n: n} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func StringList(l []string) Value { return Value{kind: KindStringList, l: l} }

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) AsBool() bool       { return v.b }
func (v Value) AsNumber() float64  { return v.n }
func (v Value) AsString() string   { return v.s }
func (v Value) AsList() []string   { return v.l }

// Text renders the value for query synthesis. List values are joined with
// ", " and numbers use the shortest decimal representation, so the same
// value always renders the same way.
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindString:
		return v.s
	case KindStringList:
		return strings.Join(v.l, ", ")
	default:
		return ""
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindStringList:
		return json.Marshal(v.l)
	default:
		return nil, fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case bool:
		*v = Bool(t)
	case float64:
		*v = Number(t)
	case string:
		*v = String(t)
	case []interface{}:
		list := make([]string, 0, len(t))
		for _, el := range t {
			s, ok := el.(string)
			if !ok {
				return fmt.Errorf("value: list elements must be strings, got %T", el)
			}
			list = append(list, s)
		}
		*v = StringList(list)
	case nil:
		return fmt.Errorf("value: null is not a valid requirement value")
	default:
		return fmt.Errorf("value: unsupported type %T (nested objects are not allowed)", t)
	}
	return nil
}
