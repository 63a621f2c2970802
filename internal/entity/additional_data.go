package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// ValueKind tags the scalar variants allowed in AdditionalData.
type ValueKind uint8

const (
	KindString ValueKind = iota + 1
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	}
	return "invalid"
}

// Value is a string, number or boolean. The zero Value is invalid.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsValid() bool   { return v.kind != 0 }

// String renders the value for text outputs such as CSV cells.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Interface returns the native Go value (string, float64 or bool).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	}
	return nil, errors.New("additional_data: invalid value")
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	out, ok, err := scalarFromToken(tok)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("additional_data: unsupported value %s", string(data))
	}
	*v = out
	return nil
}

// ErrNestedValue is returned when a key maps to an object or array.
var ErrNestedValue = errors.New("additional_data: nested values are not supported")

// Field is one key/value pair.
type Field struct {
	Key   string
	Value Value
}

// AdditionalData is an insertion-ordered mapping of string keys to scalar values.
// The zero value is an empty mapping ready to use.
type AdditionalData struct {
	fields []Field
}

// NewAdditionalData builds a mapping from fields in the given order. Later duplicates overwrite in place.
func NewAdditionalData(fields ...Field) AdditionalData {
	var d AdditionalData
	for _, f := range fields {
		d.Set(f.Key, f.Value)
	}
	return d
}

// AdditionalDataFromMap converts a decoded JSON object. Map order is lost, so keys are sorted.
// Values that are not scalars are skipped and their keys returned.
func AdditionalDataFromMap(m map[string]any) (AdditionalData, []string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var d AdditionalData
	var skipped []string
	for _, k := range keys {
		v, ok := ValueOf(m[k])
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		d.Set(k, v)
	}
	return d, skipped
}

// ValueOf converts a Go scalar into a Value.
func ValueOf(x any) (Value, bool) {
	switch t := x.(type) {
	case string:
		return StringValue(t), true
	case bool:
		return BoolValue(t), true
	case float64:
		return NumberValue(t), true
	case float32:
		return NumberValue(float64(t)), true
	case int:
		return NumberValue(float64(t)), true
	case int64:
		return NumberValue(float64(t)), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, false
		}
		return NumberValue(f), true
	}
	return Value{}, false
}

// Set inserts or replaces key. Replacing keeps the original position.
func (d *AdditionalData) Set(key string, v Value) {
	if !v.IsValid() {
		return
	}
	for i := range d.fields {
		if d.fields[i].Key == key {
			d.fields[i].Value = v
			return
		}
	}
	d.fields = append(d.fields, Field{Key: key, Value: v})
}

func (d AdditionalData) Get(key string) (Value, bool) {
	for _, f := range d.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

func (d AdditionalData) Len() int { return len(d.fields) }

// Keys returns keys in insertion order.
func (d AdditionalData) Keys() []string {
	out := make([]string, len(d.fields))
	for i, f := range d.fields {
		out[i] = f.Key
	}
	return out
}

// Fields returns a copy of the pairs in insertion order.
func (d AdditionalData) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

func (d AdditionalData) Clone() AdditionalData {
	if d.fields == nil {
		return AdditionalData{}
	}
	return AdditionalData{fields: d.Fields()}
}

// MarshalJSON writes a JSON object preserving insertion order.
func (d AdditionalData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("additional_data %q: %w", f.Key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping document order. Null values are skipped.
func (d *AdditionalData) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = AdditionalData{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("additional_data: expected object, got %v", tok)
	}

	var out AdditionalData
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("additional_data: unexpected key %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		v, ok, err := scalarFromToken(valTok)
		if err != nil {
			return fmt.Errorf("additional_data %q: %w", key, err)
		}
		if ok {
			out.Set(key, v)
		}
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	*d = out
	return nil
}

// scalarFromToken reports ok=false for null.
func scalarFromToken(tok json.Token) (Value, bool, error) {
	switch t := tok.(type) {
	case nil:
		return Value{}, false, nil
	case json.Delim:
		return Value{}, false, ErrNestedValue
	case string:
		return StringValue(t), true, nil
	case bool:
		return BoolValue(t), true, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, false, err
		}
		return NumberValue(f), true, nil
	}
	return Value{}, false, fmt.Errorf("unsupported token %T", tok)
}
