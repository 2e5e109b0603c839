package profile

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrInvalidJSON is returned by Decode for bodies that are not valid JSON.
	ErrInvalidJSON = errors.New("profile: invalid JSON")
	// ErrNotObject is returned by Decode when the JSON root is not an object.
	ErrNotObject = errors.New("profile: document root is not a JSON object")
)

// Document is a profile record: field names mapped to values in the order
// they were declared in the source JSON.
type Document struct {
	fields *orderedmap.OrderedMap[string, Value]
}

// Field is a single named entry of a Document.
type Field struct {
	Name  string
	Value Value
}

// NewDocument builds a document from fields in the given order. A repeated
// name keeps its first position and takes the later value.
func NewDocument(fields ...Field) *Document {
	d := &Document{fields: orderedmap.New[string, Value]()}
	for _, f := range fields {
		d.fields.Set(f.Name, f.Value)
	}
	return d
}

// Decode parses a JSON object into a Document. Values that are strings,
// arrays, or objects become String, List, and Map values; numbers and
// booleans become Scalar; null becomes Null. Array elements and object
// members that are not strings are kept as their raw JSON text.
func Decode(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, ErrNotObject
	}

	d := NewDocument()
	root.ForEach(func(key, value gjson.Result) bool {
		d.fields.Set(key.String(), decodeValue(value))
		return true
	})
	return d, nil
}

// DecodeValue parses a single JSON value the same way Decode parses a field.
func DecodeValue(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Value{}, ErrInvalidJSON
	}
	return decodeValue(gjson.ParseBytes(data)), nil
}

func decodeValue(r gjson.Result) Value {
	switch {
	case r.Type == gjson.String:
		return String(r.String())
	case r.Type == gjson.Number, r.Type == gjson.True, r.Type == gjson.False:
		return Scalar(r.Raw)
	case r.IsArray():
		var items []string
		r.ForEach(func(_, elem gjson.Result) bool {
			items = append(items, elemText(elem))
			return true
		})
		return List(items...)
	case r.IsObject():
		var pairs []Pair
		r.ForEach(func(key, elem gjson.Result) bool {
			pairs = append(pairs, Pair{Key: key.String(), Value: elemText(elem)})
			return true
		})
		return Map(pairs...)
	}
	return Null()
}

func elemText(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.String()
	}
	return r.Raw
}

// Get returns the value of a field and whether it is present.
func (d *Document) Get(name string) (Value, bool) {
	if d == nil || d.fields == nil {
		return Value{}, false
	}
	return d.fields.Get(name)
}

// Len returns the number of fields.
func (d *Document) Len() int {
	if d == nil || d.fields == nil {
		return 0
	}
	return d.fields.Len()
}

// Keys returns the field names in declared order.
func (d *Document) Keys() []string {
	if d.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, d.fields.Len())
	for p := d.fields.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Fields returns all fields in declared order.
func (d *Document) Fields() []Field {
	if d.Len() == 0 {
		return nil
	}
	out := make([]Field, 0, d.fields.Len())
	for p := d.fields.Oldest(); p != nil; p = p.Next() {
		out = append(out, Field{Name: p.Key, Value: p.Value})
	}
	return out
}

// MarshalJSON encodes the document as a JSON object in declared order.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d.Len() == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(d.fields)
}
