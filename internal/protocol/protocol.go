// Package protocol implements the daemon/client wire format: a 5-byte
// header (1-byte type, 4-byte big-endian payload length) followed by the
// payload. It is the single choke point for every frame read or written
// by the daemon and the client — no caller should hand-roll its own
// read/write loop against a socket or PTY descriptor.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Type identifies the kind of message carried by a frame.
type Type uint8

const (
	Data   Type = 0x01
	Winch  Type = 0x02
	Detach Type = 0x03
	Exit   Type = 0x04
	Hello  Type = 0x05
)

func (t Type) String() string {
	switch t {
	case Data:
		return "DATA"
	case Winch:
		return "WINCH"
	case Detach:
		return "DETACH"
	case Exit:
		return "EXIT"
	case Hello:
		return "HELLO"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(t))
	}
}

const (
	headerSize = 5
	// MaxPayload bounds the payload of any single frame. A frame that
	// claims a larger length is treated as a protocol violation and the
	// connection is closed.
	MaxPayload = 1 << 20 // 1 MiB
)

// ErrPayloadTooLarge is returned by Decode when a frame header claims a
// payload larger than MaxPayload.
var ErrPayloadTooLarge = errors.New("protocol: payload exceeds maximum frame size")

// Message is a decoded frame.
type Message struct {
	Type    Type
	Payload []byte
}

// Encode writes a single frame to w. It is the only place in the codebase
// that constructs a wire header, and it delegates the actual byte
// transfer to WriteFull so partial writes on both blocking and
// non-blocking descriptors are handled uniformly.
func Encode(w io.Writer, t Type, payload []byte) error {
	var hdr [headerSize]byte
	hdr[0] = byte(t)
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(payload)))
	if err := WriteFull(w, hdr[:]); err != nil {
		return fmt.Errorf("protocol: write header: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if err := WriteFull(w, payload); err != nil {
		return fmt.Errorf("protocol: write payload: %w", err)
	}
	return nil
}

// Decode reads exactly one frame from r. A short read (EOF mid-frame) or
// an oversized length is reported as an error; the caller's job is to
// tear down the connection on any non-nil error, per spec.
func Decode(r io.Reader) (Message, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, err
	}
	t := Type(hdr[0])
	n := binary.BigEndian.Uint32(hdr[1:])
	if n > MaxPayload {
		return Message{}, ErrPayloadTooLarge
	}
	if n == 0 {
		return Message{Type: t}, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: payload}, nil
}

// EncodeWinsize packs (cols, rows) into the 4-byte big-endian payload
// used by both HELLO and WINCH.
func EncodeWinsize(cols, rows uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], cols)
	binary.BigEndian.PutUint16(buf[2:4], rows)
	return buf
}

// ErrMalformedWinsize is returned by DecodeWinsize when the payload isn't
// exactly 4 bytes.
var ErrMalformedWinsize = errors.New("protocol: winsize payload must be 4 bytes")

// DecodeWinsize unpacks a HELLO or WINCH payload into (cols, rows).
func DecodeWinsize(payload []byte) (cols, rows uint16, err error) {
	if len(payload) != 4 {
		return 0, 0, ErrMalformedWinsize
	}
	cols = binary.BigEndian.Uint16(payload[0:2])
	rows = binary.BigEndian.Uint16(payload[2:4])
	return cols, rows, nil
}
