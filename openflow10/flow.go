package openflow10

import (
	"encoding/binary"
	"net"

	"github.com/vigilnetworks/ofcore/util"
)

// ofp_flow_wildcards
const (
	FW_IN_PORT  = 1 << 0
	FW_DL_VLAN  = 1 << 1
	FW_DL_SRC   = 1 << 2
	FW_DL_DST   = 1 << 3
	FW_DL_TYPE  = 1 << 4
	FW_NW_PROTO = 1 << 5
	FW_TP_SRC   = 1 << 6
	FW_TP_DST   = 1 << 7

	FW_NW_SRC_SHIFT = 8
	FW_NW_SRC_BITS  = 6
	FW_NW_SRC_MASK  = ((1 << FW_NW_SRC_BITS) - 1) << FW_NW_SRC_SHIFT
	FW_NW_SRC_ALL   = 32 << FW_NW_SRC_SHIFT

	FW_NW_DST_SHIFT = 14
	FW_NW_DST_BITS  = 6
	FW_NW_DST_MASK  = ((1 << FW_NW_DST_BITS) - 1) << FW_NW_DST_SHIFT
	FW_NW_DST_ALL   = 32 << FW_NW_DST_SHIFT

	FW_DL_VLAN_PCP = 1 << 20
	FW_NW_TOS      = 1 << 21

	FW_ALL = (1 << 22) - 1
)

// ofp_match
type Match struct {
	Wildcards uint32
	InPort    uint16
	DLSrc     net.HardwareAddr
	DLDst     net.HardwareAddr
	DLVlan    uint16
	DLVlanPcp uint8
	DLType    uint16
	NWTos     uint8
	NWProto   uint8
	NWSrc     net.IP
	NWDst     net.IP
	TPSrc     uint16
	TPDst     uint16
}

// NewMatch returns an ofp_match with everything wildcarded.
func NewMatch() *Match {
	m := new(Match)
	m.Wildcards = FW_ALL
	m.DLSrc = make(net.HardwareAddr, 6)
	m.DLDst = make(net.HardwareAddr, 6)
	m.NWSrc = net.IPv4zero.To4()
	m.NWDst = net.IPv4zero.To4()
	return m
}

func (m *Match) Len() (n uint16) {
	return 40
}

func (m *Match) MarshalBinary() (data []byte, err error) {
	data = make([]byte, 40)
	binary.BigEndian.PutUint32(data, m.Wildcards)
	binary.BigEndian.PutUint16(data[4:], m.InPort)
	copy(data[6:12], m.DLSrc)
	copy(data[12:18], m.DLDst)
	binary.BigEndian.PutUint16(data[18:], m.DLVlan)
	data[20] = m.DLVlanPcp
	binary.BigEndian.PutUint16(data[22:], m.DLType)
	data[24] = m.NWTos
	data[25] = m.NWProto
	copy(data[28:32], m.NWSrc.To4())
	copy(data[32:36], m.NWDst.To4())
	binary.BigEndian.PutUint16(data[36:], m.TPSrc)
	binary.BigEndian.PutUint16(data[38:], m.TPDst)
	return
}

func (m *Match) UnmarshalBinary(data []byte) error {
	if len(data) < 40 {
		return util.ErrTruncated
	}
	m.Wildcards = binary.BigEndian.Uint32(data)
	m.InPort = binary.BigEndian.Uint16(data[4:])
	m.DLSrc = make(net.HardwareAddr, 6)
	copy(m.DLSrc, data[6:12])
	m.DLDst = make(net.HardwareAddr, 6)
	copy(m.DLDst, data[12:18])
	m.DLVlan = binary.BigEndian.Uint16(data[18:])
	m.DLVlanPcp = data[20]
	m.DLType = binary.BigEndian.Uint16(data[22:])
	m.NWTos = data[24]
	m.NWProto = data[25]
	m.NWSrc = net.IPv4(data[28], data[29], data[30], data[31]).To4()
	m.NWDst = net.IPv4(data[32], data[33], data[34], data[35]).To4()
	m.TPSrc = binary.BigEndian.Uint16(data[36:])
	m.TPDst = binary.BigEndian.Uint16(data[38:])
	return nil
}

// ofp_flow_mod_command
const (
	FC_ADD           = 0
	FC_MODIFY        = 1
	FC_MODIFY_STRICT = 2
	FC_DELETE        = 3
	FC_DELETE_STRICT = 4
)

// ofp_flow_mod_flags
const (
	FF_SEND_FLOW_REM = 1 << 0
	FF_CHECK_OVERLAP = 1 << 1
	FF_EMERG         = 1 << 2
)

// ofp_flow_mod
type FlowMod struct {
	Header
	Match       Match
	Cookie      uint64
	Command     uint16
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	BufferId    uint32
	OutPort     uint16
	Flags       uint16
	Actions     []Action
}

func NewFlowMod() *FlowMod {
	f := new(FlowMod)
	f.Header = NewHeader()
	f.Header.Type = Type_FlowMod
	f.Match = *NewMatch()
	f.OutPort = P_NONE
	return f
}

func (f *FlowMod) AddAction(a Action) {
	f.Actions = append(f.Actions, a)
}

func (f *FlowMod) Len() (n uint16) {
	n = 72
	for _, a := range f.Actions {
		n += a.Len()
	}
	return
}

func (f *FlowMod) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(f.Len()))
	f.Header.Length = f.Len()
	b, err := f.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	n := 8

	b, err = f.Match.MarshalBinary()
	if err != nil {
		return
	}
	copy(data[n:], b)
	n += 40

	binary.BigEndian.PutUint64(data[n:], f.Cookie)
	n += 8
	binary.BigEndian.PutUint16(data[n:], f.Command)
	n += 2
	binary.BigEndian.PutUint16(data[n:], f.IdleTimeout)
	n += 2
	binary.BigEndian.PutUint16(data[n:], f.HardTimeout)
	n += 2
	binary.BigEndian.PutUint16(data[n:], f.Priority)
	n += 2
	binary.BigEndian.PutUint32(data[n:], f.BufferId)
	n += 4
	binary.BigEndian.PutUint16(data[n:], f.OutPort)
	n += 2
	binary.BigEndian.PutUint16(data[n:], f.Flags)
	n += 2

	b, err = marshalActions(f.Actions)
	if err != nil {
		return
	}
	copy(data[n:], b)
	return
}

func (f *FlowMod) UnmarshalBinary(data []byte) error {
	if err := f.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 72 {
		return util.ErrTruncated
	}
	n := 8
	if err := f.Match.UnmarshalBinary(data[n:]); err != nil {
		return err
	}
	n += 40
	f.Cookie = binary.BigEndian.Uint64(data[n:])
	n += 8
	f.Command = binary.BigEndian.Uint16(data[n:])
	n += 2
	f.IdleTimeout = binary.BigEndian.Uint16(data[n:])
	n += 2
	f.HardTimeout = binary.BigEndian.Uint16(data[n:])
	n += 2
	f.Priority = binary.BigEndian.Uint16(data[n:])
	n += 2
	f.BufferId = binary.BigEndian.Uint32(data[n:])
	n += 4
	f.OutPort = binary.BigEndian.Uint16(data[n:])
	n += 2
	f.Flags = binary.BigEndian.Uint16(data[n:])
	n += 2

	actions, err := unmarshalActions(data[n:], int(f.Header.Length)-n)
	if err != nil {
		return err
	}
	f.Actions = actions
	return nil
}

// ofp_flow_removed_reason
const (
	RR_IDLE_TIMEOUT = 0
	RR_HARD_TIMEOUT = 1
	RR_DELETE       = 2
)

// ofp_flow_removed
type FlowRemoved struct {
	Header
	Match    Match
	Cookie   uint64
	Priority uint16
	Reason   uint8

	DurationSec  uint32
	DurationNSec uint32

	IdleTimeout uint16
	PacketCount uint64
	ByteCount   uint64
}

func (f *FlowRemoved) Len() (n uint16) {
	return 88
}

func (f *FlowRemoved) MarshalBinary() (data []byte, err error) {
	data = make([]byte, 88)
	f.Header.Length = f.Len()
	b, err := f.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	n := 8

	b, err = f.Match.MarshalBinary()
	if err != nil {
		return
	}
	copy(data[n:], b)
	n += 40

	binary.BigEndian.PutUint64(data[n:], f.Cookie)
	n += 8
	binary.BigEndian.PutUint16(data[n:], f.Priority)
	n += 2
	data[n] = f.Reason
	n += 2 // reason plus pad
	binary.BigEndian.PutUint32(data[n:], f.DurationSec)
	n += 4
	binary.BigEndian.PutUint32(data[n:], f.DurationNSec)
	n += 4
	binary.BigEndian.PutUint16(data[n:], f.IdleTimeout)
	n += 4 // idle_timeout plus pad
	binary.BigEndian.PutUint64(data[n:], f.PacketCount)
	n += 8
	binary.BigEndian.PutUint64(data[n:], f.ByteCount)
	return
}

func (f *FlowRemoved) UnmarshalBinary(data []byte) error {
	if err := f.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 88 {
		return util.ErrTruncated
	}
	n := 8
	if err := f.Match.UnmarshalBinary(data[n:]); err != nil {
		return err
	}
	n += 40
	f.Cookie = binary.BigEndian.Uint64(data[n:])
	n += 8
	f.Priority = binary.BigEndian.Uint16(data[n:])
	n += 2
	f.Reason = data[n]
	n += 2
	f.DurationSec = binary.BigEndian.Uint32(data[n:])
	n += 4
	f.DurationNSec = binary.BigEndian.Uint32(data[n:])
	n += 4
	f.IdleTimeout = binary.BigEndian.Uint16(data[n:])
	n += 4
	f.PacketCount = binary.BigEndian.Uint64(data[n:])
	n += 8
	f.ByteCount = binary.BigEndian.Uint64(data[n:])
	return nil
}
