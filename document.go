package go_loco

import (
	"bytes"
	"fmt"
	"strings"
)

// Document is an ordered mapping of string keys to values, the structured body
// format carried inside LOCO packets.
//
// Supported value kinds:
//   - int32, int64
//   - float64
//   - bool
//   - string (UTF-8)
//   - []byte (binary)
//   - nil (explicit null)
//   - []interface{} (array of any supported kind)
//   - *Document (nested document)
//
// Keys within one document are unique; Set replaces an existing key in place,
// preserving its original position. Documents are constructed in memory per
// request and discarded after send; received bodies are parsed into a Document
// the caller consumes once.
type Document struct {
	keys   []string
	values map[string]interface{}
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{values: make(map[string]interface{})}
}

// validValue reports whether v is one of the supported value kinds.
// Arrays are validated recursively.
func validValue(v interface{}) bool {
	switch val := v.(type) {
	case nil, int32, int64, float64, bool, string, []byte, *Document:
		return true
	case []interface{}:
		for _, elem := range val {
			if !validValue(elem) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Set stores a value under key, replacing any existing value while preserving
// key order. Returns ErrInvalidValueKind for unsupported Go types.
func (d *Document) Set(key string, value interface{}) error {
	if !validValue(value) {
		return fmt.Errorf("%w: key %q holds %T", ErrInvalidValueKind, key, value)
	}
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
	return nil
}

// mustSet is the internal helper for values already known to be valid.
func (d *Document) mustSet(key string, value interface{}) *Document {
	if err := d.Set(key, value); err != nil {
		panic(err)
	}
	return d
}

// Fluent setters for request construction. Integer widths are explicit
// because the wire encoding distinguishes Int32 from Int64.

func (d *Document) SetInt32(key string, v int32) *Document    { return d.mustSet(key, v) }
func (d *Document) SetInt64(key string, v int64) *Document    { return d.mustSet(key, v) }
func (d *Document) SetDouble(key string, v float64) *Document { return d.mustSet(key, v) }
func (d *Document) SetBool(key string, v bool) *Document      { return d.mustSet(key, v) }
func (d *Document) SetString(key string, v string) *Document  { return d.mustSet(key, v) }
func (d *Document) SetBinary(key string, v []byte) *Document  { return d.mustSet(key, v) }
func (d *Document) SetNull(key string) *Document              { return d.mustSet(key, nil) }
func (d *Document) SetArray(key string, v []interface{}) *Document {
	return d.mustSet(key, v)
}
func (d *Document) SetDocument(key string, v *Document) *Document {
	return d.mustSet(key, v)
}

// Get returns the raw value stored under key.
func (d *Document) Get(key string) (interface{}, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Keys returns the document's keys in insertion order.
// The returned slice is a copy.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.keys))
	copy(keys, d.keys)
	return keys
}

// Len returns the number of keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// GetInt64 returns an integer value widened to int64. Servers are not
// consistent about integer widths, so int32 values coerce transparently.
func (d *Document) GetInt64(key string) (int64, bool) {
	switch v := d.values[key].(type) {
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// GetInt32 returns an int32 value. No coercion from int64.
func (d *Document) GetInt32(key string) (int32, bool) {
	v, ok := d.values[key].(int32)
	return v, ok
}

// GetDouble returns a float64 value.
func (d *Document) GetDouble(key string) (float64, bool) {
	v, ok := d.values[key].(float64)
	return v, ok
}

// GetBool returns a boolean value.
func (d *Document) GetBool(key string) (bool, bool) {
	v, ok := d.values[key].(bool)
	return v, ok
}

// GetString returns a string value.
func (d *Document) GetString(key string) (string, bool) {
	v, ok := d.values[key].(string)
	return v, ok
}

// GetBinary returns a binary value.
func (d *Document) GetBinary(key string) ([]byte, bool) {
	v, ok := d.values[key].([]byte)
	return v, ok
}

// GetDocument returns a nested document value.
func (d *Document) GetDocument(key string) (*Document, bool) {
	v, ok := d.values[key].(*Document)
	return v, ok
}

// GetArray returns an array value.
func (d *Document) GetArray(key string) ([]interface{}, bool) {
	v, ok := d.values[key].([]interface{})
	return v, ok
}

// IsNull reports whether key is present with an explicit null value.
func (d *Document) IsNull(key string) bool {
	v, ok := d.values[key]
	return ok && v == nil
}

// Equal reports whether two documents hold the same keys in the same order
// with equal values. Used heavily by round-trip tests.
func (d *Document) Equal(other *Document) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.keys) != len(other.keys) {
		return false
	}
	for i, key := range d.keys {
		if other.keys[i] != key {
			return false
		}
		if !valueEqual(d.values[key], other.values[key]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case *Document:
		bv, ok := b.(*Document)
		return ok && av.Equal(bv)
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// String renders the document for logs and debugging. Binary values are
// summarized by length; the output is not a wire format.
func (d *Document) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=", key)
		switch v := d.values[key].(type) {
		case nil:
			sb.WriteString("null")
		case []byte:
			fmt.Fprintf(&sb, "<%d bytes>", len(v))
		case string:
			fmt.Fprintf(&sb, "%q", v)
		default:
			fmt.Fprintf(&sb, "%v", v)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
