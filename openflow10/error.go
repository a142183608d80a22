package openflow10

import (
	"encoding/binary"

	"github.com/vigilnetworks/ofcore/util"
)

// ofp_error_type
const (
	ET_HELLO_FAILED    = 0
	ET_BAD_REQUEST     = 1
	ET_BAD_ACTION      = 2
	ET_FLOW_MOD_FAILED = 3
	ET_PORT_MOD_FAILED = 4
	ET_QUEUE_OP_FAILED = 5
)

// ofp_hello_failed_code
const (
	HFC_INCOMPATIBLE = 0
	HFC_EPERM        = 1
)

// ofp_error_msg
type ErrorMsg struct {
	Header
	Type uint16
	Code uint16
	Data []byte
}

func NewErrorMsg(typ, code uint16) *ErrorMsg {
	e := new(ErrorMsg)
	e.Header = NewHeader()
	e.Header.Type = Type_Error
	e.Type = typ
	e.Code = code
	return e
}

func (e *ErrorMsg) Len() (n uint16) {
	return 12 + uint16(len(e.Data))
}

func (e *ErrorMsg) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(e.Len()))
	e.Header.Length = e.Len()
	b, err := e.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint16(data[8:], e.Type)
	binary.BigEndian.PutUint16(data[10:], e.Code)
	copy(data[12:], e.Data)
	return
}

func (e *ErrorMsg) UnmarshalBinary(data []byte) error {
	if err := e.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 12 {
		return util.ErrTruncated
	}
	e.Type = binary.BigEndian.Uint16(data[8:])
	e.Code = binary.BigEndian.Uint16(data[10:])
	e.Data = make([]byte, len(data)-12)
	copy(e.Data, data[12:])
	return nil
}

// ofp_vendor_header
type VendorHeader struct {
	Header
	Vendor uint32
	Data   []byte
}

func (v *VendorHeader) Len() (n uint16) {
	return 12 + uint16(len(v.Data))
}

func (v *VendorHeader) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(v.Len()))
	v.Header.Length = v.Len()
	b, err := v.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint32(data[8:], v.Vendor)
	copy(data[12:], v.Data)
	return
}

func (v *VendorHeader) UnmarshalBinary(data []byte) error {
	if err := v.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 12 {
		return util.ErrTruncated
	}
	v.Vendor = binary.BigEndian.Uint32(data[8:])
	v.Data = make([]byte, len(data)-12)
	copy(v.Data, data[12:])
	return nil
}
