package openflow10

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/vigilnetworks/ofcore/util"
)

var messageXid uint32

// NextXid returns a nonzero transaction id that has not been used for
// some time. Transaction ids are per-connection, so this is more
// uniqueness than strictly needed.
func NextXid() uint32 {
	xid := atomic.AddUint32(&messageXid, 1)
	if xid == 0 {
		xid = atomic.AddUint32(&messageXid, 1)
	}
	return xid
}

// ofp_header
type Header struct {
	Version uint8
	Type    uint8
	Length  uint16
	Xid     uint32
}

// NewHeader returns an OpenFlow 1.0 header with a fresh xid.
func NewHeader() Header {
	return Header{Version: VERSION, Length: 8, Xid: NextXid()}
}

func (h *Header) Header() *Header {
	return h
}

func (h *Header) Len() (n uint16) {
	return 8
}

func (h *Header) MarshalBinary() (data []byte, err error) {
	data = make([]byte, 8)
	data[0] = h.Version
	data[1] = h.Type
	binary.BigEndian.PutUint16(data[2:4], h.Length)
	binary.BigEndian.PutUint32(data[4:8], h.Xid)
	return
}

func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return util.ErrTruncated
	}
	h.Version = data[0]
	h.Type = data[1]
	h.Length = binary.BigEndian.Uint16(data[2:4])
	h.Xid = binary.BigEndian.Uint32(data[4:8])
	return nil
}

// ofp_hello. The payload is empty in protocol 0x01.
type Hello struct {
	Header
}

func NewHello() *Hello {
	h := new(Hello)
	h.Header = NewHeader()
	h.Header.Type = Type_Hello
	return h
}

// Echo request/reply messages can be sent from either the switch or
// the controller, and must return an echo reply. They can be used to
// indicate the latency, bandwidth, and/or liveness of a
// controller-switch connection.
type EchoMsg struct {
	Header
	Data []byte
}

func NewEchoRequest() *EchoMsg {
	e := new(EchoMsg)
	e.Header = NewHeader()
	e.Header.Type = Type_EchoRequest
	return e
}

// NewEchoReply builds a reply carrying the request's xid and payload,
// as the protocol requires.
func NewEchoReply(req *EchoMsg) *EchoMsg {
	e := new(EchoMsg)
	e.Header = NewHeader()
	e.Header.Type = Type_EchoReply
	e.Header.Xid = req.Xid
	e.Data = req.Data
	return e
}

func (e *EchoMsg) Len() uint16 {
	return 8 + uint16(len(e.Data))
}

func (e *EchoMsg) MarshalBinary() (data []byte, err error) {
	e.Header.Length = e.Len()
	data, err = e.Header.MarshalBinary()
	if err != nil {
		return
	}
	data = append(data, e.Data...)
	return
}

func (e *EchoMsg) UnmarshalBinary(data []byte) error {
	if err := e.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) > 8 {
		e.Data = make([]byte, len(data)-8)
		copy(e.Data, data[8:])
	}
	return nil
}
