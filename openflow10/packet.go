package openflow10

import (
	"encoding/binary"

	"github.com/vigilnetworks/ofcore/util"
)

// ofp_packet_in_reason
const (
	R_NO_MATCH = 0
	R_ACTION   = 1
)

// ofp_packet_in
type PacketIn struct {
	Header
	BufferId uint32
	TotalLen uint16
	InPort   uint16
	Reason   uint8
	Data     []byte
}

func (p *PacketIn) Len() (n uint16) {
	return 18 + uint16(len(p.Data))
}

func (p *PacketIn) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(p.Len()))
	p.Header.Length = p.Len()
	b, err := p.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	n := 8

	binary.BigEndian.PutUint32(data[n:], p.BufferId)
	n += 4
	binary.BigEndian.PutUint16(data[n:], p.TotalLen)
	n += 2
	binary.BigEndian.PutUint16(data[n:], p.InPort)
	n += 2
	data[n] = p.Reason
	n += 2 // reason plus pad
	copy(data[n:], p.Data)
	return
}

func (p *PacketIn) UnmarshalBinary(data []byte) error {
	if err := p.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 18 {
		return util.ErrTruncated
	}
	n := 8
	p.BufferId = binary.BigEndian.Uint32(data[n:])
	n += 4
	p.TotalLen = binary.BigEndian.Uint16(data[n:])
	n += 2
	p.InPort = binary.BigEndian.Uint16(data[n:])
	n += 2
	p.Reason = data[n]
	n += 2
	p.Data = make([]byte, len(data)-n)
	copy(p.Data, data[n:])
	return nil
}

// NO_BUFFER, for packet-out of a self-contained packet.
const NO_BUFFER = 0xffffffff

// ofp_packet_out
type PacketOut struct {
	Header
	BufferId   uint32
	InPort     uint16
	ActionsLen uint16
	Actions    []Action
	Data       []byte
}

func NewPacketOut() *PacketOut {
	p := new(PacketOut)
	p.Header = NewHeader()
	p.Header.Type = Type_PacketOut
	p.BufferId = NO_BUFFER
	p.InPort = P_NONE
	return p
}

func (p *PacketOut) AddAction(a Action) {
	p.Actions = append(p.Actions, a)
	p.ActionsLen += a.Len()
}

func (p *PacketOut) Len() (n uint16) {
	n = 16 + p.ActionsLen
	n += uint16(len(p.Data))
	return
}

func (p *PacketOut) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(p.Len()))
	p.Header.Length = p.Len()
	b, err := p.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	n := 8

	binary.BigEndian.PutUint32(data[n:], p.BufferId)
	n += 4
	binary.BigEndian.PutUint16(data[n:], p.InPort)
	n += 2
	binary.BigEndian.PutUint16(data[n:], p.ActionsLen)
	n += 2

	b, err = marshalActions(p.Actions)
	if err != nil {
		return
	}
	copy(data[n:], b)
	n += len(b)

	copy(data[n:], p.Data)
	return
}

func (p *PacketOut) UnmarshalBinary(data []byte) error {
	if err := p.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 16 {
		return util.ErrTruncated
	}
	n := 8
	p.BufferId = binary.BigEndian.Uint32(data[n:])
	n += 4
	p.InPort = binary.BigEndian.Uint16(data[n:])
	n += 2
	p.ActionsLen = binary.BigEndian.Uint16(data[n:])
	n += 2

	actions, err := unmarshalActions(data[n:], int(p.ActionsLen))
	if err != nil {
		return err
	}
	p.Actions = actions
	n += int(p.ActionsLen)

	p.Data = make([]byte, len(data)-n)
	copy(p.Data, data[n:])
	return nil
}

// ofp_port_reason
const (
	PR_ADD    = 0
	PR_DELETE = 1
	PR_MODIFY = 2
)

// ofp_port_status
type PortStatus struct {
	Header
	Reason uint8
	Desc   PhyPort
}

func (p *PortStatus) Len() (n uint16) {
	return 64
}

func (p *PortStatus) MarshalBinary() (data []byte, err error) {
	data = make([]byte, 64)
	p.Header.Length = p.Len()
	b, err := p.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	data[8] = p.Reason

	b, err = p.Desc.MarshalBinary()
	if err != nil {
		return
	}
	copy(data[16:], b)
	return
}

func (p *PortStatus) UnmarshalBinary(data []byte) error {
	if err := p.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 64 {
		return util.ErrTruncated
	}
	p.Reason = data[8]
	return p.Desc.UnmarshalBinary(data[16:])
}

func NewBarrierRequest() *Header {
	h := NewHeader()
	h.Type = Type_BarrierRequest
	return &h
}
