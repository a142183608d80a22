package ofmp

import (
	"encoding/binary"

	"github.com/vigilnetworks/ofcore/util"
)

// Cookie is a 20-byte SHA-1 digest over a configuration document's
// canonical serialization.
type Cookie [CookieLen]byte

// ofmp_capability_request
type CapabilityRequest struct {
	OfmpHeader
	Format uint32
}

func NewCapabilityRequest() *CapabilityRequest {
	r := new(CapabilityRequest)
	r.OfmpHeader = NewOfmpHeader(OFMPT_CAPABILITY_REQUEST)
	r.Format = OFMPCAF_SIMPLE
	return r
}

func (r *CapabilityRequest) Len() (n uint16) {
	return OfmpHeaderLen + 4
}

func (r *CapabilityRequest) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(r.Len()))
	r.Header.Length = r.Len()
	b, err := r.OfmpHeader.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint32(data[OfmpHeaderLen:], r.Format)
	return
}

func (r *CapabilityRequest) UnmarshalBinary(data []byte) error {
	if err := r.OfmpHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < OfmpHeaderLen+4 {
		return util.ErrTruncated
	}
	r.Format = binary.BigEndian.Uint32(data[OfmpHeaderLen:])
	return nil
}

// ofmp_capability_reply. Data carries the capability document in the
// same key=value form as a configuration.
type CapabilityReply struct {
	OfmpHeader
	Format uint32
	MgmtId uint64
	Data   []byte
}

func (r *CapabilityReply) Len() (n uint16) {
	return OfmpHeaderLen + 12 + uint16(len(r.Data))
}

func (r *CapabilityReply) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(r.Len()))
	r.Header.Length = r.Len()
	b, err := r.OfmpHeader.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint32(data[OfmpHeaderLen:], r.Format)
	binary.BigEndian.PutUint64(data[OfmpHeaderLen+4:], r.MgmtId)
	copy(data[OfmpHeaderLen+12:], r.Data)
	return
}

func (r *CapabilityReply) UnmarshalBinary(data []byte) error {
	if err := r.OfmpHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < OfmpHeaderLen+12 {
		return util.ErrTruncated
	}
	r.Format = binary.BigEndian.Uint32(data[OfmpHeaderLen:])
	r.MgmtId = binary.BigEndian.Uint64(data[OfmpHeaderLen+4:])
	r.Data = make([]byte, len(data)-OfmpHeaderLen-12)
	copy(r.Data, data[OfmpHeaderLen+12:])
	return nil
}

// ofmp_config_request
type ConfigRequest struct {
	OfmpHeader
	Format uint32
}

func NewConfigRequest() *ConfigRequest {
	r := new(ConfigRequest)
	r.OfmpHeader = NewOfmpHeader(OFMPT_CONFIG_REQUEST)
	r.Format = OFMPCOF_SIMPLE
	return r
}

func (r *ConfigRequest) Len() (n uint16) {
	return OfmpHeaderLen + 4
}

func (r *ConfigRequest) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(r.Len()))
	r.Header.Length = r.Len()
	b, err := r.OfmpHeader.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint32(data[OfmpHeaderLen:], r.Format)
	return
}

func (r *ConfigRequest) UnmarshalBinary(data []byte) error {
	if err := r.OfmpHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < OfmpHeaderLen+4 {
		return util.ErrTruncated
	}
	r.Format = binary.BigEndian.Uint32(data[OfmpHeaderLen:])
	return nil
}

// ofmp_config_update. Cookie is the compare-and-swap token: on an
// inbound update it identifies the configuration carried in Data; on
// an outbound commit it is the cookie of the version the changes were
// based on.
type ConfigUpdate struct {
	OfmpHeader
	Format uint32
	Cookie Cookie
	Data   []byte
}

func NewConfigUpdate(oldCookie Cookie, data []byte) *ConfigUpdate {
	u := new(ConfigUpdate)
	u.OfmpHeader = NewOfmpHeader(OFMPT_CONFIG_UPDATE)
	u.Format = OFMPCOF_SIMPLE
	u.Cookie = oldCookie
	u.Data = data
	return u
}

const configUpdateFixedLen = OfmpHeaderLen + 4 + CookieLen

func (u *ConfigUpdate) Len() (n uint16) {
	return uint16(configUpdateFixedLen + len(u.Data))
}

func (u *ConfigUpdate) MarshalBinary() (data []byte, err error) {
	data = make([]byte, configUpdateFixedLen+len(u.Data))
	u.Header.Length = uint16(len(data))
	b, err := u.OfmpHeader.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint32(data[OfmpHeaderLen:], u.Format)
	copy(data[OfmpHeaderLen+4:], u.Cookie[:])
	copy(data[configUpdateFixedLen:], u.Data)
	return
}

func (u *ConfigUpdate) UnmarshalBinary(data []byte) error {
	if err := u.OfmpHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < configUpdateFixedLen {
		return util.ErrTruncated
	}
	u.Format = binary.BigEndian.Uint32(data[OfmpHeaderLen:])
	copy(u.Cookie[:], data[OfmpHeaderLen+4:])
	u.Data = make([]byte, len(data)-configUpdateFixedLen)
	copy(u.Data, data[configUpdateFixedLen:])
	return nil
}

// ofmp_config_update_ack
type ConfigUpdateAck struct {
	OfmpHeader
	Format uint32
	Flags  uint32
	Cookie Cookie
}

func (a *ConfigUpdateAck) Success() bool {
	return a.Flags&OFMPCUAF_SUCCESS != 0
}

const configUpdateAckLen = OfmpHeaderLen + 8 + CookieLen

func (a *ConfigUpdateAck) Len() (n uint16) {
	return configUpdateAckLen
}

func (a *ConfigUpdateAck) MarshalBinary() (data []byte, err error) {
	data = make([]byte, configUpdateAckLen)
	a.Header.Length = a.Len()
	b, err := a.OfmpHeader.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint32(data[OfmpHeaderLen:], a.Format)
	binary.BigEndian.PutUint32(data[OfmpHeaderLen+4:], a.Flags)
	copy(data[OfmpHeaderLen+8:], a.Cookie[:])
	return
}

func (a *ConfigUpdateAck) UnmarshalBinary(data []byte) error {
	if err := a.OfmpHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < configUpdateAckLen {
		return util.ErrTruncated
	}
	a.Format = binary.BigEndian.Uint32(data[OfmpHeaderLen:])
	a.Flags = binary.BigEndian.Uint32(data[OfmpHeaderLen+4:])
	copy(a.Cookie[:], data[OfmpHeaderLen+8:])
	return nil
}

func NewResourcesRequest() *OfmpHeader {
	h := NewOfmpHeader(OFMPT_RESOURCES_REQUEST)
	return &h
}
