package klyptik

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies which variant a Value holds
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Member is one key/value entry of an object Value
type Member struct {
	Key   string
	Value Value
}

// Value is a structural value decoupled from its textual notation.
// Objects keep their keys unique and in insertion order. The zero Value is null.
type Value struct {
	kind    Kind
	b       bool
	s       string // string payload, or the number literal
	items   []Value
	members []Member
}

// maxDepth bounds nesting while parsing untrusted text
const maxDepth = 512

func NullValue() Value { return Value{} }

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// NumberValue wraps a number literal as written in the source text
func NumberValue(literal string) Value { return Value{kind: KindNumber, s: literal} }

func StringValue(s string) Value { return Value{kind: KindString, s: s} }

func ArrayValue(items ...Value) Value {
	return Value{kind: KindArray, items: append([]Value{}, items...)}
}

// ObjectValue builds an object from members. A repeated key overwrites the
// earlier value but keeps the earlier position.
func ObjectValue(members ...Member) Value {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		out = setMember(out, m.Key, m.Value)
	}
	return Value{kind: KindObject, members: out}
}

func setMember(members []Member, key string, val Value) []Member {
	for i := range members {
		if members[i].Key == key {
			members[i].Value = val
			return members
		}
	}
	return append(members, Member{Key: key, Value: val})
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// NumberLiteral returns the literal text of a number value
func (v Value) NumberLiteral() (string, bool) { return v.s, v.kind == KindNumber }

// Items returns the elements of an array value, nil for other kinds
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Members returns the entries of an object value in order, nil for other kinds
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Get looks up key in an object value
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.Members() {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

func (v Value) Has(key string) bool {
	_, ok := v.Get(key)
	return ok
}

// With returns a copy of the object value with key set to val.
// Calling With on a non-object returns a single-member object.
func (v Value) With(key string, val Value) Value {
	members := make([]Member, len(v.Members()), len(v.Members())+1)
	copy(members, v.Members())
	return Value{kind: KindObject, members: setMember(members, key, val)}
}

// Without returns a copy of the object value with key removed
func (v Value) Without(key string) Value {
	members := make([]Member, 0, len(v.Members()))
	for _, m := range v.Members() {
		if m.Key != key {
			members = append(members, m)
		}
	}
	return Value{kind: KindObject, members: members}
}

// Equal reports deep equality. Object members compare in order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber, KindString:
		return v.s == o.s
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.members) != len(o.members) {
			return false
		}
		for i := range v.members {
			if v.members[i].Key != o.members[i].Key || !v.members[i].Value.Equal(o.members[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Transform rebuilds v depth-first, applying fn to every object node after its
// children have been transformed. Array order and key order are preserved.
func (v Value) Transform(fn func(Value) Value) Value {
	switch v.kind {
	case KindArray:
		items := make([]Value, len(v.items))
		for i, item := range v.items {
			items[i] = item.Transform(fn)
		}
		return Value{kind: KindArray, items: items}
	case KindObject:
		members := make([]Member, len(v.members))
		for i, m := range v.members {
			members[i] = Member{Key: m.Key, Value: m.Value.Transform(fn)}
		}
		return fn(Value{kind: KindObject, members: members})
	}
	return v
}

// MarshalJSON renders the value with object keys in insertion order
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes strictly, the same way ParseValue does
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(string(data))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if !json.Valid([]byte(v.s)) {
			return fmt.Errorf("invalid number literal %q", v.s)
		}
		buf.WriteString(v.s)
	case KindString:
		return encodeString(buf, v.s)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind %d", int(v.kind))
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode appends a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

// String returns the compact textual form, mainly for logs
func (v Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid value: %v>", err)
	}
	return string(data)
}

// ParseValue is the one strict parser shared by every stage. The whole text
// must be exactly one value, optionally surrounded by whitespace.
func ParseValue(text string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	v, err := parseValue(dec, 0)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("%w: trailing data after value", ErrParse)
	}
	return v, nil
}

func parseValue(dec *json.Decoder, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, errors.New("nesting too deep")
	}

	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t.String()), nil
	case string:
		return StringValue(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := parseValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindArray, items: items}, nil
		case '{':
			members := []Member{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := parseValue(dec, depth+1)
				if err != nil {
					return Value{}, err
				}
				members = setMember(members, key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, members: members}, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}
