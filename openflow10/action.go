package openflow10

import (
	"encoding/binary"
	"errors"
	"net"

	"github.com/vigilnetworks/ofcore/util"
)

// ofp_action_type
const (
	AT_OUTPUT       = 0
	AT_SET_VLAN_VID = 1
	AT_SET_VLAN_PCP = 2
	AT_STRIP_VLAN   = 3
	AT_SET_DL_SRC   = 4
	AT_SET_DL_DST   = 5
	AT_SET_NW_SRC   = 6
	AT_SET_NW_DST   = 7
	AT_SET_NW_TOS   = 8
	AT_SET_TP_SRC   = 9
	AT_SET_TP_DST   = 10
	AT_ENQUEUE      = 11
	AT_VENDOR       = 0xffff
)

type Action interface {
	util.Message
	GetType() uint16
}

// ofp_action_header
type ActionHeader struct {
	Type   uint16
	Length uint16
}

func (a *ActionHeader) GetType() uint16 {
	return a.Type
}

func (a *ActionHeader) Len() (n uint16) {
	return 4
}

func (a *ActionHeader) MarshalBinary() (data []byte, err error) {
	data = make([]byte, 4)
	binary.BigEndian.PutUint16(data, a.Type)
	binary.BigEndian.PutUint16(data[2:], a.Length)
	return
}

func (a *ActionHeader) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return util.ErrTruncated
	}
	a.Type = binary.BigEndian.Uint16(data)
	a.Length = binary.BigEndian.Uint16(data[2:])
	return nil
}

// DecodeAction picks the typed action off the front of data.
func DecodeAction(data []byte) (Action, error) {
	var hdr ActionHeader
	if err := hdr.UnmarshalBinary(data); err != nil {
		return nil, err
	}

	var a Action
	switch hdr.Type {
	case AT_OUTPUT:
		a = new(ActionOutput)
	case AT_SET_VLAN_VID:
		a = new(ActionVlanVid)
	case AT_SET_VLAN_PCP:
		a = new(ActionVlanPcp)
	case AT_STRIP_VLAN:
		a = new(ActionStripVlan)
	case AT_SET_DL_SRC, AT_SET_DL_DST:
		a = new(ActionDLAddr)
	case AT_SET_NW_SRC, AT_SET_NW_DST:
		a = new(ActionNWAddr)
	case AT_SET_NW_TOS:
		a = new(ActionNWTos)
	case AT_SET_TP_SRC, AT_SET_TP_DST:
		a = new(ActionTPPort)
	case AT_ENQUEUE:
		a = new(ActionEnqueue)
	default:
		return nil, errors.New("unknown action type")
	}
	if err := a.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return a, nil
}

// ofp_action_output
type ActionOutput struct {
	ActionHeader
	Port   uint16
	MaxLen uint16
}

func NewActionOutput(port uint16) *ActionOutput {
	a := new(ActionOutput)
	a.Type = AT_OUTPUT
	a.Length = 8
	a.Port = port
	a.MaxLen = 0xffff
	return a
}

func (a *ActionOutput) Len() (n uint16) {
	return 8
}

func (a *ActionOutput) MarshalBinary() (data []byte, err error) {
	data, err = a.ActionHeader.MarshalBinary()
	if err != nil {
		return
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b, a.Port)
	binary.BigEndian.PutUint16(b[2:], a.MaxLen)
	data = append(data, b...)
	return
}

func (a *ActionOutput) UnmarshalBinary(data []byte) error {
	if err := a.ActionHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 8 {
		return util.ErrTruncated
	}
	a.Port = binary.BigEndian.Uint16(data[4:])
	a.MaxLen = binary.BigEndian.Uint16(data[6:])
	return nil
}

// ofp_action_vlan_vid
type ActionVlanVid struct {
	ActionHeader
	VlanVid uint16
}

func NewActionVlanVid(vid uint16) *ActionVlanVid {
	a := new(ActionVlanVid)
	a.Type = AT_SET_VLAN_VID
	a.Length = 8
	a.VlanVid = vid
	return a
}

func (a *ActionVlanVid) Len() (n uint16) {
	return 8
}

func (a *ActionVlanVid) MarshalBinary() (data []byte, err error) {
	data, err = a.ActionHeader.MarshalBinary()
	if err != nil {
		return
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b, a.VlanVid)
	data = append(data, b...)
	return
}

func (a *ActionVlanVid) UnmarshalBinary(data []byte) error {
	if err := a.ActionHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 8 {
		return util.ErrTruncated
	}
	a.VlanVid = binary.BigEndian.Uint16(data[4:])
	return nil
}

// ofp_action_vlan_pcp
type ActionVlanPcp struct {
	ActionHeader
	VlanPcp uint8
}

func (a *ActionVlanPcp) Len() (n uint16) {
	return 8
}

func (a *ActionVlanPcp) MarshalBinary() (data []byte, err error) {
	data, err = a.ActionHeader.MarshalBinary()
	if err != nil {
		return
	}
	b := make([]byte, 4)
	b[0] = a.VlanPcp
	data = append(data, b...)
	return
}

func (a *ActionVlanPcp) UnmarshalBinary(data []byte) error {
	if err := a.ActionHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 8 {
		return util.ErrTruncated
	}
	a.VlanPcp = data[4]
	return nil
}

type ActionStripVlan struct {
	ActionHeader
	pad []byte // 4 bytes
}

func NewActionStripVlan() *ActionStripVlan {
	a := new(ActionStripVlan)
	a.Type = AT_STRIP_VLAN
	a.Length = 8
	return a
}

func (a *ActionStripVlan) Len() (n uint16) {
	return 8
}

func (a *ActionStripVlan) MarshalBinary() (data []byte, err error) {
	data, err = a.ActionHeader.MarshalBinary()
	if err != nil {
		return
	}
	data = append(data, make([]byte, 4)...)
	return
}

func (a *ActionStripVlan) UnmarshalBinary(data []byte) error {
	return a.ActionHeader.UnmarshalBinary(data)
}

// ofp_action_dl_addr, for both SET_DL_SRC and SET_DL_DST
type ActionDLAddr struct {
	ActionHeader
	DLAddr net.HardwareAddr
}

func (a *ActionDLAddr) Len() (n uint16) {
	return 16
}

func (a *ActionDLAddr) MarshalBinary() (data []byte, err error) {
	data, err = a.ActionHeader.MarshalBinary()
	if err != nil {
		return
	}
	b := make([]byte, 12)
	copy(b, a.DLAddr)
	data = append(data, b...)
	return
}

func (a *ActionDLAddr) UnmarshalBinary(data []byte) error {
	if err := a.ActionHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 16 {
		return util.ErrTruncated
	}
	a.DLAddr = make(net.HardwareAddr, 6)
	copy(a.DLAddr, data[4:10])
	return nil
}

// ofp_action_nw_addr, for both SET_NW_SRC and SET_NW_DST
type ActionNWAddr struct {
	ActionHeader
	NWAddr net.IP
}

func (a *ActionNWAddr) Len() (n uint16) {
	return 8
}

func (a *ActionNWAddr) MarshalBinary() (data []byte, err error) {
	data, err = a.ActionHeader.MarshalBinary()
	if err != nil {
		return
	}
	b := make([]byte, 4)
	copy(b, a.NWAddr.To4())
	data = append(data, b...)
	return
}

func (a *ActionNWAddr) UnmarshalBinary(data []byte) error {
	if err := a.ActionHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 8 {
		return util.ErrTruncated
	}
	a.NWAddr = net.IPv4(data[4], data[5], data[6], data[7])
	return nil
}

// ofp_action_nw_tos
type ActionNWTos struct {
	ActionHeader
	NWTos uint8
}

func (a *ActionNWTos) Len() (n uint16) {
	return 8
}

func (a *ActionNWTos) MarshalBinary() (data []byte, err error) {
	data, err = a.ActionHeader.MarshalBinary()
	if err != nil {
		return
	}
	b := make([]byte, 4)
	b[0] = a.NWTos
	data = append(data, b...)
	return
}

func (a *ActionNWTos) UnmarshalBinary(data []byte) error {
	if err := a.ActionHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 8 {
		return util.ErrTruncated
	}
	a.NWTos = data[4]
	return nil
}

// ofp_action_tp_port, for both SET_TP_SRC and SET_TP_DST
type ActionTPPort struct {
	ActionHeader
	TPPort uint16
}

func (a *ActionTPPort) Len() (n uint16) {
	return 8
}

func (a *ActionTPPort) MarshalBinary() (data []byte, err error) {
	data, err = a.ActionHeader.MarshalBinary()
	if err != nil {
		return
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b, a.TPPort)
	data = append(data, b...)
	return
}

func (a *ActionTPPort) UnmarshalBinary(data []byte) error {
	if err := a.ActionHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 8 {
		return util.ErrTruncated
	}
	a.TPPort = binary.BigEndian.Uint16(data[4:])
	return nil
}

// ofp_action_enqueue
type ActionEnqueue struct {
	ActionHeader
	Port    uint16
	QueueId uint32
}

func (a *ActionEnqueue) Len() (n uint16) {
	return 16
}

func (a *ActionEnqueue) MarshalBinary() (data []byte, err error) {
	data, err = a.ActionHeader.MarshalBinary()
	if err != nil {
		return
	}
	b := make([]byte, 12)
	binary.BigEndian.PutUint16(b, a.Port)
	binary.BigEndian.PutUint32(b[8:], a.QueueId)
	data = append(data, b...)
	return
}

func (a *ActionEnqueue) UnmarshalBinary(data []byte) error {
	if err := a.ActionHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 16 {
		return util.ErrTruncated
	}
	a.Port = binary.BigEndian.Uint16(data[4:])
	a.QueueId = binary.BigEndian.Uint32(data[12:])
	return nil
}

func marshalActions(actions []Action) ([]byte, error) {
	var out []byte
	for _, a := range actions {
		b, err := a.MarshalBinary()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func unmarshalActions(data []byte, length int) ([]Action, error) {
	var actions []Action
	n := 0
	for n < length {
		a, err := DecodeAction(data[n:])
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
		n += int(a.Len())
	}
	return actions, nil
}
