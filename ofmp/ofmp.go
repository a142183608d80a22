package ofmp

// Package ofmp implements the Nicira management extension that rides
// inside the OpenFlow VENDOR message family. A management-capable
// switch exposes its configuration document and resource inventory
// over these messages.

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vigilnetworks/ofcore/openflow10"
	"github.com/vigilnetworks/ofcore/util"
)

const NX_VENDOR_ID = 0x00002320

// nicira_type subtypes of the Nicira vendor message.
const (
	NXT_STATUS_REQUEST  = 0
	NXT_STATUS_REPLY    = 1
	NXT_ACT_SET_CONFIG  = 2
	NXT_ACT_GET_CONFIG  = 3
	NXT_COMMAND_REQUEST = 4
	NXT_COMMAND_REPLY   = 5
	NXT_FLOW_END_CONFIG = 6
	NXT_FLOW_END        = 7
	NXT_MGMT            = 8
)

// ofmp_type
const (
	OFMPT_CAPABILITY_REQUEST = 0
	OFMPT_CAPABILITY_REPLY   = 1
	OFMPT_RESOURCES_REQUEST  = 2
	OFMPT_RESOURCES_UPDATE   = 3
	OFMPT_CONFIG_REQUEST     = 4
	OFMPT_CONFIG_UPDATE      = 5
	OFMPT_CONFIG_UPDATE_ACK  = 6
	OFMPT_ERROR              = 7
	OFMPT_EXTENDED_DATA      = 8
)

// Capability and config formats; only the simple key=value form is
// defined by the protocol today.
const (
	OFMPCAF_SIMPLE = 0
	OFMPCOF_SIMPLE = 0
)

// Config update ack flags.
const OFMPCUAF_SUCCESS = 1 << 0

// Extended data flags.
const OFMPEDF_MORE_DATA = 1 << 0

// CookieLen is the length of a configuration cookie: an SHA-1 digest.
const CookieLen = 20

// UUIDLen is the wire length of a textual UUID.
const UUIDLen = 36

// nicira_header
type NiciraHeader struct {
	openflow10.Header
	Vendor  uint32
	Subtype uint32
}

const NiciraHeaderLen = 16

func NewNiciraHeader(subtype uint32) NiciraHeader {
	h := NiciraHeader{Header: openflow10.NewHeader()}
	h.Header.Type = openflow10.Type_Vendor
	h.Header.Length = NiciraHeaderLen
	h.Vendor = NX_VENDOR_ID
	h.Subtype = subtype
	return h
}

func (h *NiciraHeader) Len() (n uint16) {
	return NiciraHeaderLen
}

func (h *NiciraHeader) MarshalBinary() (data []byte, err error) {
	data = make([]byte, NiciraHeaderLen)
	b, err := h.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint32(data[8:], h.Vendor)
	binary.BigEndian.PutUint32(data[12:], h.Subtype)
	return
}

func (h *NiciraHeader) UnmarshalBinary(data []byte) error {
	if err := h.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < NiciraHeaderLen {
		return util.ErrTruncated
	}
	h.Vendor = binary.BigEndian.Uint32(data[8:])
	h.Subtype = binary.BigEndian.Uint32(data[12:])
	return nil
}

// ofmp_header
type OfmpHeader struct {
	NiciraHeader
	Type uint16
}

const OfmpHeaderLen = 20

func NewOfmpHeader(typ uint16) OfmpHeader {
	h := OfmpHeader{NiciraHeader: NewNiciraHeader(NXT_MGMT), Type: typ}
	h.Header.Length = OfmpHeaderLen
	return h
}

func (h *OfmpHeader) Len() (n uint16) {
	return OfmpHeaderLen
}

func (h *OfmpHeader) MarshalBinary() (data []byte, err error) {
	data = make([]byte, OfmpHeaderLen)
	b, err := h.NiciraHeader.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint16(data[16:], h.Type)
	return
}

func (h *OfmpHeader) UnmarshalBinary(data []byte) error {
	if err := h.NiciraHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < OfmpHeaderLen {
		return util.ErrTruncated
	}
	h.Type = binary.BigEndian.Uint16(data[16:])
	return nil
}

var ErrNotOfmp = errors.New("not a Nicira management message")

// Parse demultiplexes a full VENDOR frame into the typed management
// message it carries. Frames for other vendors or subtypes return
// ErrNotOfmp so the caller can fall back.
func Parse(b []byte) (util.Message, error) {
	var h OfmpHeader
	if err := h.NiciraHeader.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	if h.Vendor != NX_VENDOR_ID || h.Subtype != NXT_MGMT {
		return nil, ErrNotOfmp
	}
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}

	var message util.Message
	switch h.Type {
	case OFMPT_CAPABILITY_REQUEST:
		message = new(CapabilityRequest)
	case OFMPT_CAPABILITY_REPLY:
		message = new(CapabilityReply)
	case OFMPT_RESOURCES_REQUEST:
		message = new(OfmpHeader)
	case OFMPT_RESOURCES_UPDATE:
		message = new(ResourcesUpdate)
	case OFMPT_CONFIG_REQUEST:
		message = new(ConfigRequest)
	case OFMPT_CONFIG_UPDATE:
		message = new(ConfigUpdate)
	case OFMPT_CONFIG_UPDATE_ACK:
		message = new(ConfigUpdateAck)
	case OFMPT_ERROR:
		message = new(ErrorMsg)
	case OFMPT_EXTENDED_DATA:
		message = new(ExtendedData)
	default:
		return nil, fmt.Errorf("unsupported ofmp type %d", h.Type)
	}
	err := message.UnmarshalBinary(b)
	return message, err
}

// ofmp_error_msg
type ErrorMsg struct {
	OfmpHeader
	ErrType uint16
	Code    uint16
	Data    []byte
}

func (e *ErrorMsg) Len() (n uint16) {
	return OfmpHeaderLen + 4 + uint16(len(e.Data))
}

func (e *ErrorMsg) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(e.Len()))
	e.Header.Length = e.Len()
	b, err := e.OfmpHeader.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint16(data[OfmpHeaderLen:], e.ErrType)
	binary.BigEndian.PutUint16(data[OfmpHeaderLen+2:], e.Code)
	copy(data[OfmpHeaderLen+4:], e.Data)
	return
}

func (e *ErrorMsg) UnmarshalBinary(data []byte) error {
	if err := e.OfmpHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < OfmpHeaderLen+4 {
		return util.ErrTruncated
	}
	e.ErrType = binary.BigEndian.Uint16(data[OfmpHeaderLen:])
	e.Code = binary.BigEndian.Uint16(data[OfmpHeaderLen+2:])
	e.Data = make([]byte, len(data)-OfmpHeaderLen-4)
	copy(e.Data, data[OfmpHeaderLen+4:])
	return nil
}
