package ofmp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/vigilnetworks/ofcore/util"
)

// nx_command_request. The command and its arguments travel as
// NUL-separated strings, argv style.
type CommandRequest struct {
	NiciraHeader
	Command string
	Args    []string
}

func NewCommandRequest(command string, args []string) *CommandRequest {
	c := new(CommandRequest)
	c.NiciraHeader = NewNiciraHeader(NXT_COMMAND_REQUEST)
	c.Command = command
	c.Args = args
	return c
}

func (c *CommandRequest) argv() []byte {
	parts := append([]string{c.Command}, c.Args...)
	return []byte(joinNul(parts))
}

func (c *CommandRequest) Len() (n uint16) {
	return NiciraHeaderLen + uint16(len(c.argv()))
}

func (c *CommandRequest) MarshalBinary() (data []byte, err error) {
	c.Header.Length = c.Len()
	data, err = c.NiciraHeader.MarshalBinary()
	if err != nil {
		return
	}
	data = append(data, c.argv()...)
	return
}

func (c *CommandRequest) UnmarshalBinary(data []byte) error {
	if err := c.NiciraHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < NiciraHeaderLen {
		return util.ErrTruncated
	}
	parts := splitNul(data[NiciraHeaderLen:])
	if len(parts) == 0 {
		return fmt.Errorf("command request with empty body")
	}
	c.Command = parts[0]
	c.Args = parts[1:]
	return nil
}

// nx_snat_config commands.
const (
	SnatAdd    = 0
	SnatDelete = 1
)

// SnatConfig installs or removes source-NAT configuration on one
// switch port, via the Nicira act-set-config subtype.
type SnatConfig struct {
	NiciraHeader
	Command uint8
	Port    uint16

	IPStart net.IP
	IPEnd   net.IP

	TcpStart uint16
	TcpEnd   uint16
	UdpStart uint16
	UdpEnd   uint16

	MacAddr    net.HardwareAddr
	MacTimeout uint16
}

const snatConfigLen = NiciraHeaderLen + 32

func NewSnatConfig() *SnatConfig {
	s := new(SnatConfig)
	s.NiciraHeader = NewNiciraHeader(NXT_ACT_SET_CONFIG)
	s.IPStart = net.IPv4zero.To4()
	s.IPEnd = net.IPv4zero.To4()
	s.MacAddr = make(net.HardwareAddr, 6)
	return s
}

func (s *SnatConfig) Len() (n uint16) {
	return snatConfigLen
}

func (s *SnatConfig) MarshalBinary() (data []byte, err error) {
	data = make([]byte, snatConfigLen)
	s.Header.Length = s.Len()
	b, err := s.NiciraHeader.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	n := NiciraHeaderLen
	data[n] = s.Command
	n += 2 // command plus pad
	binary.BigEndian.PutUint16(data[n:], s.Port)
	n += 2
	copy(data[n:], s.IPStart.To4())
	n += 4
	copy(data[n:], s.IPEnd.To4())
	n += 4
	binary.BigEndian.PutUint16(data[n:], s.TcpStart)
	n += 2
	binary.BigEndian.PutUint16(data[n:], s.TcpEnd)
	n += 2
	binary.BigEndian.PutUint16(data[n:], s.UdpStart)
	n += 2
	binary.BigEndian.PutUint16(data[n:], s.UdpEnd)
	n += 2
	copy(data[n:], s.MacAddr)
	n += 6
	binary.BigEndian.PutUint16(data[n:], s.MacTimeout)
	return
}

func (s *SnatConfig) UnmarshalBinary(data []byte) error {
	if err := s.NiciraHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < snatConfigLen {
		return util.ErrTruncated
	}
	n := NiciraHeaderLen
	s.Command = data[n]
	n += 2
	s.Port = binary.BigEndian.Uint16(data[n:])
	n += 2
	s.IPStart = net.IPv4(data[n], data[n+1], data[n+2], data[n+3]).To4()
	n += 4
	s.IPEnd = net.IPv4(data[n], data[n+1], data[n+2], data[n+3]).To4()
	n += 4
	s.TcpStart = binary.BigEndian.Uint16(data[n:])
	n += 2
	s.TcpEnd = binary.BigEndian.Uint16(data[n:])
	n += 2
	s.UdpStart = binary.BigEndian.Uint16(data[n:])
	n += 2
	s.UdpEnd = binary.BigEndian.Uint16(data[n:])
	n += 2
	s.MacAddr = make(net.HardwareAddr, 6)
	copy(s.MacAddr, data[n:n+6])
	n += 6
	s.MacTimeout = binary.BigEndian.Uint16(data[n:])
	return nil
}

func joinNul(parts []string) string {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(0)
		}
		buf.WriteString(p)
	}
	return buf.String()
}

func splitNul(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var parts []string
	for _, p := range bytes.Split(b, []byte{0}) {
		parts = append(parts, string(p))
	}
	return parts
}
