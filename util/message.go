package util

import (
	"encoding"
	"errors"
)

// Message is implemented by every OpenFlow wire struct in this module.
type Message interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	Len() uint16
}

var ErrTruncated = errors.New("message too short")

// ErrBadVersion is returned by parsers when a frame's version octet
// does not match the negotiated protocol version. The stream treats
// it as fatal and closes the connection.
var ErrBadVersion = errors.New("bad openflow version")

// Buffer is a trivial Message wrapping raw bytes, used for message
// payloads (packet data, echo payloads) that are carried opaquely.
type Buffer []byte

func NewBuffer(b []byte) *Buffer {
	buf := Buffer(b)
	return &buf
}

func (b *Buffer) Len() uint16 {
	return uint16(len(*b))
}

func (b *Buffer) MarshalBinary() ([]byte, error) {
	return *b, nil
}

func (b *Buffer) UnmarshalBinary(data []byte) error {
	*b = make([]byte, len(data))
	copy(*b, data)
	return nil
}
