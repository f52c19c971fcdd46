package go_loco

import (
	"fmt"
	"strconv"
)

// Binary document codec.
//
// The encoding is the BSON subset the LOCO wire actually uses: a document is
// an int32 total length (including the length field and the trailing
// terminator), a sequence of type-tagged elements, and a 0x00 terminator.
// Every variable-length value carries an explicit byte length, so decoding
// never scans for delimiters. All integers are little-endian, matching the
// packet header convention.
//
// The codec is pure and stateless: bytes in, Document out, no I/O and no
// knowledge of framing or encryption.

// Document element type tags.
const (
	tagDouble   byte = 0x01
	tagString   byte = 0x02
	tagDocument byte = 0x03
	tagArray    byte = 0x04
	tagBinary   byte = 0x05
	tagBool     byte = 0x08
	tagNull     byte = 0x0A
	tagInt32    byte = 0x10
	tagInt64    byte = 0x12
)

// binary subtype for generic binary data
const binarySubtypeGeneric byte = 0x00

// Encode serializes a document to its binary representation.
// Fails only on keys containing null bytes; value kinds were validated when
// the document was built.
func Encode(doc *Document) ([]byte, error) {
	s := NewStream(make([]byte, 0, 64))
	if err := encodeDocument(s, doc); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

func encodeDocument(s *Stream, doc *Document) error {
	body := NewStream(make([]byte, 0, 64))
	for _, key := range doc.keys {
		if err := encodeElement(body, key, doc.values[key]); err != nil {
			return err
		}
	}
	// total = length field (4) + elements + terminator (1)
	if err := s.WriteInt32(int32(4 + body.Len() + 1)); err != nil {
		return err
	}
	if _, err := s.Write(body.Bytes()); err != nil {
		return err
	}
	return s.WriteByte(0x00)
}

func encodeElement(s *Stream, key string, value interface{}) error {
	tag, err := tagOf(value)
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	if err := s.WriteByte(tag); err != nil {
		return err
	}
	if err := s.WriteCString(key); err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	return encodeValue(s, value)
}

func tagOf(value interface{}) (byte, error) {
	switch value.(type) {
	case float64:
		return tagDouble, nil
	case string:
		return tagString, nil
	case *Document:
		return tagDocument, nil
	case []interface{}:
		return tagArray, nil
	case []byte:
		return tagBinary, nil
	case bool:
		return tagBool, nil
	case nil:
		return tagNull, nil
	case int32:
		return tagInt32, nil
	case int64:
		return tagInt64, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidValueKind, value)
	}
}

func encodeValue(s *Stream, value interface{}) error {
	switch v := value.(type) {
	case float64:
		return s.WriteFloat64(v)
	case string:
		// int32 byte length including the terminator, then bytes, then 0x00
		if err := s.WriteInt32(int32(len(v) + 1)); err != nil {
			return err
		}
		return s.WriteCString(v)
	case *Document:
		return encodeDocument(s, v)
	case []interface{}:
		// An array is a document whose keys are decimal indices.
		arr := NewDocument()
		for i, elem := range v {
			if err := arr.Set(strconv.Itoa(i), elem); err != nil {
				return err
			}
		}
		return encodeDocument(s, arr)
	case []byte:
		if err := s.WriteInt32(int32(len(v))); err != nil {
			return err
		}
		if err := s.WriteByte(binarySubtypeGeneric); err != nil {
			return err
		}
		_, err := s.Write(v)
		return err
	case bool:
		b := byte(0x00)
		if v {
			b = 0x01
		}
		return s.WriteByte(b)
	case nil:
		return nil
	case int32:
		return s.WriteInt32(v)
	case int64:
		return s.WriteInt64(v)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidValueKind, value)
	}
}

// DecodeDocument parses one document from the front of data, returning the
// document and the number of bytes consumed.
//
// Fails with ErrTruncatedInput when fewer bytes are available than a declared
// length claims, and with ErrUnknownTypeTag on an unrecognized element tag.
// Either failure means the connection carrying the data is desynchronized and
// must be closed.
func DecodeDocument(data []byte) (*Document, int, error) {
	s := NewStream(data)
	doc, err := decodeDocument(s)
	if err != nil {
		return nil, 0, err
	}
	return doc, len(data) - s.Len(), nil
}

func decodeDocument(s *Stream) (*Document, error) {
	total, err := s.ReadInt32()
	if err != nil {
		return nil, err
	}
	// Minimum document is the length field plus the terminator.
	if total < 5 {
		return nil, fmt.Errorf("%w: document declares %d bytes", ErrTruncatedInput, total)
	}
	rest, err := s.ReadExact(int(total) - 4)
	if err != nil {
		return nil, err
	}
	if rest[len(rest)-1] != 0x00 {
		return nil, fmt.Errorf("%w: document missing terminator", ErrTruncatedInput)
	}

	inner := NewStream(rest[:len(rest)-1])
	doc := NewDocument()
	for inner.Len() > 0 {
		tag, err := inner.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: element tag", ErrTruncatedInput)
		}
		key, err := inner.ReadCString()
		if err != nil {
			return nil, err
		}
		value, err := decodeValue(inner, tag)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		if doc.Has(key) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}
		if err := doc.Set(key, value); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func decodeValue(s *Stream, tag byte) (interface{}, error) {
	switch tag {
	case tagDouble:
		return s.ReadFloat64()
	case tagString:
		length, err := s.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length < 1 {
			return nil, fmt.Errorf("%w: string declares %d bytes", ErrTruncatedInput, length)
		}
		bts, err := s.ReadExact(int(length))
		if err != nil {
			return nil, err
		}
		if bts[length-1] != 0x00 {
			return nil, fmt.Errorf("%w: string missing terminator", ErrTruncatedInput)
		}
		return string(bts[:length-1]), nil
	case tagDocument:
		return decodeDocument(s)
	case tagArray:
		arr, err := decodeDocument(s)
		if err != nil {
			return nil, err
		}
		// Index keys are positional; only element order matters.
		values := make([]interface{}, 0, arr.Len())
		for _, key := range arr.keys {
			values = append(values, arr.values[key])
		}
		return values, nil
	case tagBinary:
		length, err := s.ReadInt32()
		if err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, fmt.Errorf("%w: binary declares %d bytes", ErrTruncatedInput, length)
		}
		if _, err := s.ReadExact(1); err != nil { // subtype byte
			return nil, err
		}
		return s.ReadExact(int(length))
	case tagBool:
		b, err := s.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: boolean value", ErrTruncatedInput)
		}
		return b != 0x00, nil
	case tagNull:
		return nil, nil
	case tagInt32:
		return s.ReadInt32()
	case tagInt64:
		return s.ReadInt64()
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTypeTag, tag)
	}
}
