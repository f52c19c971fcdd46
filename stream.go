package go_loco

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Stream provides LOCO-specific message serialization operations.
// It wraps bytes.Buffer and adds methods for reading/writing LOCO protocol
// data structures.
//
// The whole LOCO wire format uses a single endianness convention:
// little-endian, fixed-width integers. Both the 22-byte packet header and the
// document codec go through this type so that convention lives in one place.
type Stream struct {
	*bytes.Buffer
}

// NewStream creates a new Stream from a byte slice.
// The Stream wraps a bytes.Buffer initialized with the provided data.
func NewStream(buf []byte) *Stream {
	return &Stream{bytes.NewBuffer(buf)}
}

// ReadExact reads exactly n bytes from the stream.
// Returns ErrTruncatedInput if fewer bytes remain; a declared length is
// authoritative and must never be satisfied partially.
func (s *Stream) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrTruncatedInput, n)
	}
	if s.Len() < n {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedInput, n, s.Len())
	}
	bts := make([]byte, n)
	if _, err := s.Read(bts); err != nil {
		return nil, err
	}
	return bts, nil
}

// ReadUint16 reads a little-endian uint16 from the stream.
func (s *Stream) ReadUint16() (uint16, error) {
	bts, err := s.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(bts), nil
}

// ReadInt16 reads a little-endian int16 from the stream.
// This is used for the statusCode header field, which is signed.
func (s *Stream) ReadInt16() (int16, error) {
	u, err := s.ReadUint16()
	return int16(u), err
}

// ReadUint32 reads a little-endian uint32 from the stream.
// This is used for packet ids, body lengths and handshake fields.
func (s *Stream) ReadUint32() (uint32, error) {
	bts, err := s.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(bts), nil
}

// ReadInt32 reads a little-endian int32 from the stream.
func (s *Stream) ReadInt32() (int32, error) {
	u, err := s.ReadUint32()
	return int32(u), err
}

// ReadInt64 reads a little-endian int64 from the stream.
func (s *Stream) ReadInt64() (int64, error) {
	bts, err := s.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(bts)), nil
}

// ReadFloat64 reads a little-endian IEEE 754 double from the stream.
func (s *Stream) ReadFloat64() (float64, error) {
	bts, err := s.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(bts)), nil
}

// ReadCString reads a null-terminated string from the stream.
// The terminator is consumed but not returned.
func (s *Stream) ReadCString() (string, error) {
	bts, err := s.ReadBytes(0x00)
	if err != nil {
		return "", fmt.Errorf("%w: unterminated cstring", ErrTruncatedInput)
	}
	return string(bts[:len(bts)-1]), nil
}

// WriteUint16 writes a little-endian uint16 to the stream.
func (s *Stream) WriteUint16(i uint16) error {
	bts := make([]byte, 2)
	binary.LittleEndian.PutUint16(bts, i)
	_, err := s.Write(bts)
	return err
}

// WriteInt16 writes a little-endian int16 to the stream.
func (s *Stream) WriteInt16(i int16) error {
	return s.WriteUint16(uint16(i))
}

// WriteUint32 writes a little-endian uint32 to the stream.
func (s *Stream) WriteUint32(i uint32) error {
	bts := make([]byte, 4)
	binary.LittleEndian.PutUint32(bts, i)
	_, err := s.Write(bts)
	return err
}

// WriteInt32 writes a little-endian int32 to the stream.
func (s *Stream) WriteInt32(i int32) error {
	return s.WriteUint32(uint32(i))
}

// WriteInt64 writes a little-endian int64 to the stream.
func (s *Stream) WriteInt64(i int64) error {
	bts := make([]byte, 8)
	binary.LittleEndian.PutUint64(bts, uint64(i))
	_, err := s.Write(bts)
	return err
}

// WriteFloat64 writes a little-endian IEEE 754 double to the stream.
func (s *Stream) WriteFloat64(f float64) error {
	bts := make([]byte, 8)
	binary.LittleEndian.PutUint64(bts, math.Float64bits(f))
	_, err := s.Write(bts)
	return err
}

// WriteCString writes a string followed by a null terminator.
// The string itself must not contain a null byte.
func (stream *Stream) WriteCString(s string) error {
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			return fmt.Errorf("cstring contains null byte at offset %d", i)
		}
	}
	if _, err := stream.WriteString(s); err != nil {
		return err
	}
	return stream.WriteByte(0x00)
}
