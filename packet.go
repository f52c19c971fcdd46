package go_loco

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Packet framing layer.
//
// Every LOCO message is a fixed 22-byte header followed by a variable-length
// body. The framer is crypto-agnostic: on connections carrying encrypted
// stages the body bytes handed to WritePacket are already ciphertext, and
// ReadPacket returns ciphertext for the session to decrypt. This keeps the
// framer independently testable against plaintext streams.

// PacketHeader is the fixed 22-byte header that precedes every body.
type PacketHeader struct {
	PacketID   uint32 // client-assigned monotonic counter, wraps at 32 bits
	StatusCode int16  // zero on requests, server result code on responses
	Command    string // operation name, at most 11 ASCII bytes
	BodyType   uint8  // low bits: body encoding; high bit: encrypted body
	BodyLength uint32 // exact byte count of the body that follows
}

// Encrypted reports whether the header marks an encrypted body.
func (h *PacketHeader) Encrypted() bool {
	return h.BodyType&LOCO_BODY_ENCRYPTED != 0
}

// Packet is a header plus its body. The body is either an encoded document
// (LOCO_BODY_TYPE_DOCUMENT) or an opaque blob. Packets are created by the
// sender and consumed once by the receiver; they are not retained beyond a
// single request/response correlation.
type Packet struct {
	Header PacketHeader
	Body   []byte
}

// Document decodes the packet body as a document.
func (p *Packet) Document() (*Document, error) {
	if len(p.Body) == 0 {
		return NewDocument(), nil
	}
	doc, _, err := DecodeDocument(p.Body)
	return doc, err
}

// EncodeHeader serializes a header to its 22-byte wire form.
// Fails if the command does not fit the 11-byte field or is not ASCII.
func EncodeHeader(h *PacketHeader) ([]byte, error) {
	if len(h.Command) > LOCO_COMMAND_SIZE {
		return nil, fmt.Errorf("%w: %q", ErrCommandTooLong, h.Command)
	}
	for i := 0; i < len(h.Command); i++ {
		if h.Command[i] == 0x00 || h.Command[i] > 0x7f {
			return nil, fmt.Errorf("loco: command %q is not ASCII", h.Command)
		}
	}

	s := NewStream(make([]byte, 0, LOCO_HEADER_SIZE))
	s.WriteUint32(h.PacketID)
	s.WriteInt16(h.StatusCode)
	cmd := make([]byte, LOCO_COMMAND_SIZE)
	copy(cmd, h.Command)
	s.Write(cmd)
	s.WriteByte(h.BodyType)
	s.WriteUint32(h.BodyLength)
	return s.Bytes(), nil
}

// DecodeHeader parses a 22-byte header. The only rejection is an implausible
// BodyLength, which indicates a desynchronized stream rather than a bad
// request; the caller must close the connection on ErrMalformedHeader.
func DecodeHeader(data []byte) (*PacketHeader, error) {
	if len(data) != LOCO_HEADER_SIZE {
		return nil, fmt.Errorf("%w: header is %d bytes, want %d",
			ErrMalformedHeader, len(data), LOCO_HEADER_SIZE)
	}

	s := NewStream(data)
	h := &PacketHeader{}
	h.PacketID, _ = s.ReadUint32()
	h.StatusCode, _ = s.ReadInt16()
	cmd, _ := s.ReadExact(LOCO_COMMAND_SIZE)
	end := len(cmd)
	for end > 0 && cmd[end-1] == 0x00 {
		end--
	}
	h.Command = string(cmd[:end])
	bt, _ := s.ReadByte()
	h.BodyType = bt
	h.BodyLength, _ = s.ReadUint32()

	if h.BodyLength > LOCO_MAX_BODY_SIZE {
		return nil, fmt.Errorf("%w: body length %d exceeds %d",
			ErrMalformedHeader, h.BodyLength, LOCO_MAX_BODY_SIZE)
	}
	return h, nil
}

// ReadPacket blocks until exactly one packet has been read from r: 22 header
// bytes, then exactly BodyLength body bytes. The declared length is
// authoritative; it is never inferred from stream EOF. A stream that ends
// mid-packet yields ErrTransport wrapping the read failure.
func ReadPacket(r io.Reader) (*Packet, error) {
	hdr := make([]byte, LOCO_HEADER_SIZE)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrTransport, err)
	}
	h, err := DecodeHeader(hdr)
	if err != nil {
		return nil, err
	}

	body := make([]byte, h.BodyLength)
	if h.BodyLength > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("%w: reading %d body bytes: %w",
				ErrTransport, h.BodyLength, err)
		}
	}
	return &Packet{Header: *h, Body: body}, nil
}

// WritePacket writes header then body to w as one logical unit.
// The header's BodyLength is forced to match the body actually written.
func WritePacket(w io.Writer, h *PacketHeader, body []byte) error {
	h.BodyLength = uint32(len(body))
	hdr, err := EncodeHeader(h)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(hdr)+len(body))
	buf = append(buf, hdr...)
	buf = append(buf, body...)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: writing packet: %w", ErrTransport, err)
	}
	return nil
}

// PacketBuilder assigns monotonically increasing packet ids for one
// connection. Ids wrap at 32 bits; counters are never shared across
// connections or sessions.
type PacketBuilder struct {
	nextID uint32
}

// NewPacketBuilder creates a builder whose first packet id is 1.
func NewPacketBuilder() *PacketBuilder {
	return &PacketBuilder{}
}

// Build constructs a request packet for command with an encoded document
// body. A nil body encodes as the empty document.
func (b *PacketBuilder) Build(command string, body *Document) (*Packet, error) {
	if body == nil {
		body = NewDocument()
	}
	encoded, err := Encode(body)
	if err != nil {
		return nil, err
	}
	return &Packet{
		Header: PacketHeader{
			PacketID:   atomic.AddUint32(&b.nextID, 1),
			StatusCode: 0,
			Command:    command,
			BodyType:   LOCO_BODY_TYPE_DOCUMENT,
			BodyLength: uint32(len(encoded)),
		},
		Body: encoded,
	}, nil
}
