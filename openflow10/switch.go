package openflow10

import (
	"encoding/binary"
	"net"

	"github.com/vigilnetworks/ofcore/util"
)

// ofp_capabilities
const (
	C_FLOW_STATS   = 1 << 0
	C_TABLE_STATS  = 1 << 1
	C_PORT_STATS   = 1 << 2
	C_STP          = 1 << 3
	C_RESERVED     = 1 << 4
	C_IP_REASM     = 1 << 5
	C_QUEUE_STATS  = 1 << 6
	C_ARP_MATCH_IP = 1 << 7
)

func NewFeaturesRequest() *Header {
	h := NewHeader()
	h.Type = Type_FeaturesRequest
	return &h
}

// ofp_switch_features
type SwitchFeatures struct {
	Header
	DPID      uint64
	Buffers   uint32
	NumTables uint8
	pad       []uint8 // 3 bytes

	Capabilities uint32
	Actions      uint32
	Ports        []PhyPort
}

func NewFeaturesReply() *SwitchFeatures {
	f := new(SwitchFeatures)
	f.Header = NewHeader()
	f.Header.Type = Type_FeaturesReply
	f.pad = make([]uint8, 3)
	return f
}

func (f *SwitchFeatures) Len() (n uint16) {
	n = 32
	n += uint16(len(f.Ports)) * 48
	return
}

func (f *SwitchFeatures) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(f.Len()))
	f.Header.Length = f.Len()
	b, err := f.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	n := 8

	binary.BigEndian.PutUint64(data[n:], f.DPID)
	n += 8
	binary.BigEndian.PutUint32(data[n:], f.Buffers)
	n += 4
	data[n] = f.NumTables
	n += 4 // table count plus pad
	binary.BigEndian.PutUint32(data[n:], f.Capabilities)
	n += 4
	binary.BigEndian.PutUint32(data[n:], f.Actions)
	n += 4

	for i := range f.Ports {
		b, err = f.Ports[i].MarshalBinary()
		if err != nil {
			return
		}
		copy(data[n:], b)
		n += len(b)
	}
	return
}

func (f *SwitchFeatures) UnmarshalBinary(data []byte) error {
	if err := f.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 32 {
		return util.ErrTruncated
	}
	n := 8
	f.DPID = binary.BigEndian.Uint64(data[n:])
	n += 8
	f.Buffers = binary.BigEndian.Uint32(data[n:])
	n += 4
	f.NumTables = data[n]
	n += 4
	f.Capabilities = binary.BigEndian.Uint32(data[n:])
	n += 4
	f.Actions = binary.BigEndian.Uint32(data[n:])
	n += 4

	nPorts := (len(data) - n) / 48
	f.Ports = make([]PhyPort, 0, nPorts)
	for i := 0; i < nPorts; i++ {
		var p PhyPort
		if err := p.UnmarshalBinary(data[n:]); err != nil {
			return err
		}
		f.Ports = append(f.Ports, p)
		n += 48
	}
	return nil
}

// ofp_phy_port
type PhyPort struct {
	PortNo uint16
	HWAddr net.HardwareAddr
	Name   string // up to 16 bytes on the wire

	Config uint32
	State  uint32

	Curr       uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
}

func (p *PhyPort) Len() (n uint16) {
	return 48
}

func (p *PhyPort) MarshalBinary() (data []byte, err error) {
	data = make([]byte, 48)
	binary.BigEndian.PutUint16(data, p.PortNo)
	copy(data[2:8], p.HWAddr)
	copy(data[8:24], p.Name)
	n := 24
	binary.BigEndian.PutUint32(data[n:], p.Config)
	n += 4
	binary.BigEndian.PutUint32(data[n:], p.State)
	n += 4
	binary.BigEndian.PutUint32(data[n:], p.Curr)
	n += 4
	binary.BigEndian.PutUint32(data[n:], p.Advertised)
	n += 4
	binary.BigEndian.PutUint32(data[n:], p.Supported)
	n += 4
	binary.BigEndian.PutUint32(data[n:], p.Peer)
	return
}

func (p *PhyPort) UnmarshalBinary(data []byte) error {
	if len(data) < 48 {
		return util.ErrTruncated
	}
	p.PortNo = binary.BigEndian.Uint16(data)
	p.HWAddr = make(net.HardwareAddr, 6)
	copy(p.HWAddr, data[2:8])
	p.Name = cString(data[8:24])
	n := 24
	p.Config = binary.BigEndian.Uint32(data[n:])
	n += 4
	p.State = binary.BigEndian.Uint32(data[n:])
	n += 4
	p.Curr = binary.BigEndian.Uint32(data[n:])
	n += 4
	p.Advertised = binary.BigEndian.Uint32(data[n:])
	n += 4
	p.Supported = binary.BigEndian.Uint32(data[n:])
	n += 4
	p.Peer = binary.BigEndian.Uint32(data[n:])
	return nil
}

// ofp_config_flags
const (
	C_FRAG_NORMAL = 0
	C_FRAG_DROP   = 1
	C_FRAG_REASM  = 2
	C_FRAG_MASK   = 3
)

// ofp_switch_config
type SwitchConfig struct {
	Header
	Flags       uint16
	MissSendLen uint16
}

func NewSetConfig() *SwitchConfig {
	c := new(SwitchConfig)
	c.Header = NewHeader()
	c.Header.Type = Type_SetConfig
	c.MissSendLen = 0xffff
	return c
}

func (c *SwitchConfig) Len() (n uint16) {
	return 12
}

func (c *SwitchConfig) MarshalBinary() (data []byte, err error) {
	c.Header.Length = c.Len()
	data, err = c.Header.MarshalBinary()
	if err != nil {
		return
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b, c.Flags)
	binary.BigEndian.PutUint16(b[2:], c.MissSendLen)
	data = append(data, b...)
	return
}

func (c *SwitchConfig) UnmarshalBinary(data []byte) error {
	if err := c.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 12 {
		return util.ErrTruncated
	}
	c.Flags = binary.BigEndian.Uint16(data[8:])
	c.MissSendLen = binary.BigEndian.Uint16(data[10:])
	return nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
