package ofmp

import (
	"encoding/binary"
	"fmt"

	"github.com/vigilnetworks/ofcore/openflow10"
	"github.com/vigilnetworks/ofcore/util"
)

// ofmp_extended_data. Management messages larger than one OpenFlow
// frame are carried as a run of these, all sharing the xid of the
// wrapped message, with MORE_DATA set on every fragment but the last.
type ExtendedData struct {
	OfmpHeader
	InnerType uint16
	Flags     uint8
	Data      []byte
}

const ExtendedDataLen = OfmpHeaderLen + 4

func (e *ExtendedData) More() bool {
	return e.Flags&OFMPEDF_MORE_DATA != 0
}

func (e *ExtendedData) Len() (n uint16) {
	return uint16(ExtendedDataLen + len(e.Data))
}

func (e *ExtendedData) MarshalBinary() (data []byte, err error) {
	data = make([]byte, ExtendedDataLen+len(e.Data))
	e.Header.Length = uint16(len(data))
	b, err := e.OfmpHeader.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint16(data[OfmpHeaderLen:], e.InnerType)
	data[OfmpHeaderLen+2] = e.Flags
	copy(data[ExtendedDataLen:], e.Data)
	return
}

func (e *ExtendedData) UnmarshalBinary(data []byte) error {
	if err := e.OfmpHeader.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) <= ExtendedDataLen {
		return util.ErrTruncated
	}
	e.InnerType = binary.BigEndian.Uint16(data[OfmpHeaderLen:])
	e.Flags = data[OfmpHeaderLen+2]
	e.Data = make([]byte, len(data)-ExtendedDataLen)
	copy(e.Data, data[ExtendedDataLen:])
	return nil
}

// MaxFragmentPayload is how much of the wrapped message one
// extended-data frame carries.
const MaxFragmentPayload = 65535 - ExtendedDataLen

// reassemblyMin is the smallest size that justified fragmenting: a
// message that fits one OpenFlow frame must not arrive fragmented.
const reassemblyMin = 65536

// NeedsFragmenting reports whether a marshaled management message is
// too large to send as a single OpenFlow frame.
func NeedsFragmenting(msg []byte) bool {
	return len(msg) > 65535
}

// Fragment wraps the marshaled management message msg into a sequence
// of extended-data frames sharing msg's xid. The original message's
// OpenFlow length field is zeroed as an explicit marker that it
// travels fragmented; the whole message, headers included, is carried
// in the fragment payloads.
func Fragment(msg []byte) ([]*ExtendedData, error) {
	if len(msg) < OfmpHeaderLen {
		return nil, util.ErrTruncated
	}
	xid := binary.BigEndian.Uint32(msg[4:8])
	innerType := binary.BigEndian.Uint16(msg[16:18])
	if innerType == OFMPT_EXTENDED_DATA {
		return nil, fmt.Errorf("refusing to fragment an extended data message")
	}

	buf := make([]byte, len(msg))
	copy(buf, msg)
	binary.BigEndian.PutUint16(buf[2:4], 0)

	var frags []*ExtendedData
	for len(buf) > 0 {
		n := len(buf)
		if n > MaxFragmentPayload {
			n = MaxFragmentPayload
		}
		ed := new(ExtendedData)
		ed.OfmpHeader = NewOfmpHeader(OFMPT_EXTENDED_DATA)
		ed.Header.Xid = xid
		ed.InnerType = innerType
		ed.Data = buf[:n]
		buf = buf[n:]
		if len(buf) > 0 {
			ed.Flags |= OFMPEDF_MORE_DATA
		}
		frags = append(frags, ed)
	}
	return frags, nil
}

// Reassembler collects extended-data fragments back into the wrapped
// management message. Only one xid is ever in flight per connection,
// so a single slot suffices; a fragment with a different xid abandons
// whatever was buffered.
type Reassembler struct {
	buf    []byte
	xid    uint32
	active bool
}

// Flush drops any partial reassembly that does not belong to xid.
// Call it for every non-extended management message, whose arrival
// proves the buffered run was abandoned by the switch.
func (r *Reassembler) Flush(xid uint32) {
	if r.active && r.xid != xid {
		r.reset()
	}
}

func (r *Reassembler) reset() {
	r.buf = nil
	r.active = false
}

// Add appends one fragment. When the fragment completes a message the
// reparsed message is returned; otherwise nil. An undersized or
// malformed reassembly is dropped with an error and the buffer reset.
func (r *Reassembler) Add(ed *ExtendedData) (util.Message, error) {
	if r.active && r.xid != ed.Header.Xid {
		r.reset()
	}
	r.active = true
	r.xid = ed.Header.Xid
	r.buf = append(r.buf, ed.Data...)

	if ed.More() {
		return nil, nil
	}

	buf := r.buf
	r.reset()

	// An embedded message must be greater than the size of an
	// OpenFlow message.
	if len(buf) < reassemblyMin {
		return nil, fmt.Errorf("received short embedded message: %d", len(buf))
	}

	var h OfmpHeader
	if err := h.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	if h.Vendor != NX_VENDOR_ID || h.Subtype != NXT_MGMT || h.Type == OFMPT_EXTENDED_DATA {
		return nil, fmt.Errorf("received bad embedded extended message")
	}
	if h.Header.Type != openflow10.Type_Vendor {
		return nil, fmt.Errorf("received bad embedded extended message")
	}

	// The embedded message kept its zeroed length; restore the xid
	// it traveled under before reparsing.
	binary.BigEndian.PutUint32(buf[4:8], ed.Header.Xid)
	binary.BigEndian.PutUint16(buf[2:4], 0)

	return Parse(buf)
}
