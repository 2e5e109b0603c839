package profile

import (
	"encoding/json"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies the shape of a profile field value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindList
	KindMap
	KindScalar // JSON number or boolean, kept as raw text
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindScalar:
		return "scalar"
	default:
		return "null"
	}
}

// Value is a single profile field value. Only one of the shape-specific
// fields is meaningful, selected by Kind.
type Value struct {
	kind  Kind
	str   string
	items []string
	pairs *orderedmap.OrderedMap[string, string]
}

// Null returns the empty value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// List returns an ordered sequence-of-strings value.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

// Pair is a single key/value entry of a map value.
type Pair struct {
	Key   string
	Value string
}

// Map returns a string-to-string mapping value that keeps the given order.
func Map(pairs ...Pair) Value {
	m := orderedmap.New[string, string]()
	for _, p := range pairs {
		m.Set(p.Key, p.Value)
	}
	return Value{kind: KindMap, pairs: m}
}

// Scalar returns a number or boolean value from its raw JSON text.
func Scalar(raw string) Value { return Value{kind: KindScalar, str: raw} }

func (v Value) Kind() Kind { return v.kind }

// Str returns the string (or raw scalar text) held by the value.
func (v Value) Str() string { return v.str }

// Items returns a copy of the list items.
func (v Value) Items() []string {
	if v.kind != KindList {
		return nil
	}
	cp := make([]string, len(v.items))
	copy(cp, v.items)
	return cp
}

// Pairs returns the map entries in document order.
func (v Value) Pairs() []Pair {
	if v.kind != KindMap || v.pairs == nil {
		return nil
	}
	out := make([]Pair, 0, v.pairs.Len())
	for p := v.pairs.Oldest(); p != nil; p = p.Next() {
		out = append(out, Pair{Key: p.Key, Value: p.Value})
	}
	return out
}

// Len reports the number of characters, items, or entries.
func (v Value) Len() int {
	switch v.kind {
	case KindString, KindScalar:
		return len(v.str)
	case KindList:
		return len(v.items)
	case KindMap:
		if v.pairs == nil {
			return 0
		}
		return v.pairs.Len()
	}
	return 0
}

// Truthy reports whether the value counts as present: a non-empty string,
// list or map, or a scalar other than zero and false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindString, KindList, KindMap:
		return v.Len() > 0
	case KindScalar:
		switch v.str {
		case "true":
			return true
		case "false", "":
			return false
		}
		f, err := strconv.ParseFloat(v.str, 64)
		return err != nil || f != 0
	}
	return false
}

// Searchable reports whether the substring scan considers this value.
func (v Value) Searchable() bool {
	return v.kind == KindString || v.kind == KindList || v.kind == KindMap
}

// Text renders the value as plain text: strings as-is, lists as
// "[a, b]" and maps as "{k: v, k2: v2}" in document order.
func (v Value) Text() string {
	switch v.kind {
	case KindString, KindScalar:
		return v.str
	case KindList:
		return "[" + strings.Join(v.items, ", ") + "]"
	case KindMap:
		var sb strings.Builder
		sb.WriteByte('{')
		for i, p := range v.Pairs() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Key)
			sb.WriteString(": ")
			sb.WriteString(p.Value)
		}
		sb.WriteByte('}')
		return sb.String()
	}
	return ""
}

// Payload returns the value in the shape handed across the tool-call
// boundary: string, []string, an ordered map, json.RawMessage for scalars,
// or nil.
func (v Value) Payload() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindList:
		return v.Items()
	case KindMap:
		m := orderedmap.New[string, string]()
		for _, p := range v.Pairs() {
			m.Set(p.Key, p.Value)
		}
		return m
	case KindScalar:
		return json.RawMessage(v.str)
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Payload())
}
