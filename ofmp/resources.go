package ofmp

import (
	"fmt"
	"net"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vigilnetworks/ofcore/ofbase"
	"github.com/vigilnetworks/ofcore/util"
)

// Switch resource TLV types carried by a resources update.
const (
	OFMPTSR_END       = 0
	OFMPTSR_DP        = 1
	OFMPTSR_DP_UUID   = 2
	OFMPTSR_MGMT_UUID = 3
	OFMPTSR_VIF       = 4
)

const resourceNameLen = 16

// VifDetails describes one virtual interface reported by the switch.
type VifDetails struct {
	VifUUID uuid.UUID
	VifMac  net.HardwareAddr
	VmUUID  uuid.UUID
	NetUUID uuid.UUID
}

// ResourcesUpdate reports the switch's datapaths, their network
// bindings and virtual interfaces. Receivers replace their resource
// maps wholesale with its contents.
type ResourcesUpdate struct {
	OfmpHeader

	// Mapping of datapath/management ids to name
	PortNames map[uint64]string

	// Mapping of management id to system UUID
	MgmtUUIDs map[uint64]uuid.UUID

	// Mapping of datapath id to list of network UUIDs
	NetUUIDs map[uint64][]uuid.UUID

	// Mapping of vif name to its details
	Vifs map[string]VifDetails
}

func NewResourcesUpdate() *ResourcesUpdate {
	r := new(ResourcesUpdate)
	r.OfmpHeader = NewOfmpHeader(OFMPT_RESOURCES_UPDATE)
	r.PortNames = make(map[uint64]string)
	r.MgmtUUIDs = make(map[uint64]uuid.UUID)
	r.NetUUIDs = make(map[uint64][]uuid.UUID)
	r.Vifs = make(map[string]VifDetails)
	return r
}

func (r *ResourcesUpdate) Len() (n uint16) {
	n = OfmpHeaderLen + 4 // TLV list plus end marker
	n += uint16(len(r.PortNames)) * (4 + 8 + resourceNameLen)
	n += uint16(len(r.MgmtUUIDs)) * (4 + 8 + UUIDLen)
	for _, nets := range r.NetUUIDs {
		n += uint16(12 + len(nets)*UUIDLen)
	}
	n += uint16(len(r.Vifs)) * (4 + resourceNameLen + 8 + 3*UUIDLen)
	return
}

func (r *ResourcesUpdate) MarshalBinary() (data []byte, err error) {
	r.Header.Length = r.Len()
	hdr, err := r.OfmpHeader.MarshalBinary()
	if err != nil {
		return nil, err
	}

	e := ofbase.NewEncoder()
	e.Write(hdr)
	for dpid, name := range r.PortNames {
		e.PutUint16(OFMPTSR_DP)
		e.PutUint16(4 + 8 + resourceNameLen)
		e.PutUint64(dpid)
		e.PutFixedString(name, resourceNameLen)
	}
	for mgmtId, id := range r.MgmtUUIDs {
		e.PutUint16(OFMPTSR_MGMT_UUID)
		e.PutUint16(4 + 8 + UUIDLen)
		e.PutUint64(mgmtId)
		e.PutFixedString(id.String(), UUIDLen)
	}
	for dpid, nets := range r.NetUUIDs {
		e.PutUint16(OFMPTSR_DP_UUID)
		e.PutUint16(uint16(12 + len(nets)*UUIDLen))
		e.PutUint64(dpid)
		for _, id := range nets {
			e.PutFixedString(id.String(), UUIDLen)
		}
	}
	for name, vif := range r.Vifs {
		e.PutUint16(OFMPTSR_VIF)
		e.PutUint16(4 + resourceNameLen + 8 + 3*UUIDLen)
		e.PutFixedString(name, resourceNameLen)
		mac := make([]byte, 8)
		copy(mac[2:], vif.VifMac)
		e.Write(mac)
		e.PutFixedString(vif.VifUUID.String(), UUIDLen)
		e.PutFixedString(vif.VmUUID.String(), UUIDLen)
		e.PutFixedString(vif.NetUUID.String(), UUIDLen)
	}
	e.PutUint16(OFMPTSR_END)
	e.PutUint16(4)
	return e.Bytes(), nil
}

func (r *ResourcesUpdate) UnmarshalBinary(data []byte) error {
	if err := r.OfmpHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < OfmpHeaderLen {
		return util.ErrTruncated
	}
	r.PortNames = make(map[uint64]string)
	r.MgmtUUIDs = make(map[uint64]uuid.UUID)
	r.NetUUIDs = make(map[uint64][]uuid.UUID)
	r.Vifs = make(map[string]VifDetails)

	return ofbase.Decode(data[OfmpHeaderLen:], r.decodeTLVs)
}

func (r *ResourcesUpdate) decodeTLVs(d *ofbase.Decoder) error {
	for d.Length() >= 4 {
		start := d.Offset()
		typ := d.ReadUint16()
		length := int(d.ReadUint16())

		if typ == OFMPTSR_END {
			if d.Length() > 0 {
				log.Warnf("badly terminated resource tlv list (%d trailing bytes)", d.Length())
			}
			return nil
		}
		if length < 4 || d.Length() < length-4 {
			return fmt.Errorf("resource tlv %d with bad length %d", typ, length)
		}

		switch typ {
		case OFMPTSR_DP:
			if length != 4+8+resourceNameLen {
				return fmt.Errorf("datapath resource tlv too short: %d", length)
			}
			dpid := d.ReadUint64()
			r.PortNames[dpid] = cString(d.Read(resourceNameLen))

		case OFMPTSR_MGMT_UUID:
			if length != 4+8+UUIDLen {
				return fmt.Errorf("mgmt uuid resource tlv too short: %d", length)
			}
			mgmtId := d.ReadUint64()
			id, err := uuid.ParseBytes(d.Read(UUIDLen))
			if err != nil {
				return err
			}
			r.MgmtUUIDs[mgmtId] = id

		case OFMPTSR_DP_UUID:
			if length < 12 || (length-12)%UUIDLen != 0 {
				return fmt.Errorf("datapath uuid resource tlv bad length: %d", length)
			}
			dpid := d.ReadUint64()
			var nets []uuid.UUID
			for i := 0; i < (length-12)/UUIDLen; i++ {
				id, err := uuid.ParseBytes(d.Read(UUIDLen))
				if err != nil {
					return err
				}
				nets = append(nets, id)
			}
			r.NetUUIDs[dpid] = nets

		case OFMPTSR_VIF:
			if length != 4+resourceNameLen+8+3*UUIDLen {
				return fmt.Errorf("vif resource tlv too short: %d", length)
			}
			name := cString(d.Read(resourceNameLen))
			var vif VifDetails
			mac := d.Read(8)
			vif.VifMac = make(net.HardwareAddr, 6)
			copy(vif.VifMac, mac[2:])
			var err error
			if vif.VifUUID, err = uuid.ParseBytes(d.Read(UUIDLen)); err != nil {
				return err
			}
			if vif.VmUUID, err = uuid.ParseBytes(d.Read(UUIDLen)); err != nil {
				return err
			}
			if vif.NetUUID, err = uuid.ParseBytes(d.Read(UUIDLen)); err != nil {
				return err
			}
			r.Vifs[name] = vif

		default:
			log.Warnf("unknown resource tlv: %d", typ)
			d.Skip(length - 4)
		}

		if d.Offset() != start+length {
			return fmt.Errorf("resource tlv %d decoded %d bytes, length says %d",
				typ, d.Offset()-start, length)
		}
	}
	log.Warnf("resource tlv list ended abruptly")
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
