package openflow10

import (
	"encoding/binary"

	"github.com/vigilnetworks/ofcore/util"
)

// ofp_stats_types
const (
	ST_DESC      = 0
	ST_FLOW      = 1
	ST_AGGREGATE = 2
	ST_TABLE     = 3
	ST_PORT      = 4
	ST_QUEUE     = 5
	ST_VENDOR    = 0xffff
)

const SF_REPLY_MORE = 1 << 0

// ofp_stats_request
type StatsRequest struct {
	Header
	Type  uint16
	Flags uint16
	Body  []byte
}

func NewStatsRequest(typ uint16, body []byte) *StatsRequest {
	s := new(StatsRequest)
	s.Header = NewHeader()
	s.Header.Type = Type_StatsRequest
	s.Type = typ
	s.Body = body
	return s
}

// NewFlowStatsRequest builds the all-tables, all-ports flow stats
// request body for match.
func NewFlowStatsRequest(match *Match) *StatsRequest {
	body := make([]byte, 44)
	b, _ := match.MarshalBinary()
	copy(body, b)
	body[40] = 0xff // all tables
	binary.BigEndian.PutUint16(body[42:], P_NONE)
	return NewStatsRequest(ST_FLOW, body)
}

func (s *StatsRequest) Len() (n uint16) {
	return 12 + uint16(len(s.Body))
}

func (s *StatsRequest) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(s.Len()))
	s.Header.Length = s.Len()
	b, err := s.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint16(data[8:], s.Type)
	binary.BigEndian.PutUint16(data[10:], s.Flags)
	copy(data[12:], s.Body)
	return
}

func (s *StatsRequest) UnmarshalBinary(data []byte) error {
	if err := s.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 12 {
		return util.ErrTruncated
	}
	s.Type = binary.BigEndian.Uint16(data[8:])
	s.Flags = binary.BigEndian.Uint16(data[10:])
	s.Body = make([]byte, len(data)-12)
	copy(s.Body, data[12:])
	return nil
}

// ofp_stats_reply. The Body is kept raw here; the demultiplexer
// parses it into the typed per-subtype records.
type StatsReply struct {
	Header
	Type  uint16
	Flags uint16
	Body  []byte
}

func (s *StatsReply) Len() (n uint16) {
	return 12 + uint16(len(s.Body))
}

func (s *StatsReply) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(s.Len()))
	s.Header.Length = s.Len()
	b, err := s.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint16(data[8:], s.Type)
	binary.BigEndian.PutUint16(data[10:], s.Flags)
	copy(data[12:], s.Body)
	return
}

func (s *StatsReply) UnmarshalBinary(data []byte) error {
	if err := s.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 12 {
		return util.ErrTruncated
	}
	s.Type = binary.BigEndian.Uint16(data[8:])
	s.Flags = binary.BigEndian.Uint16(data[10:])
	s.Body = make([]byte, len(data)-12)
	copy(s.Body, data[12:])
	return nil
}

// ofp_desc_stats
type DescStats struct {
	MfrDesc   string
	HWDesc    string
	SWDesc    string
	SerialNum string
	DPDesc    string
}

const DescStatsLen = 1056

func (d *DescStats) UnmarshalBinary(data []byte) error {
	if len(data) < DescStatsLen {
		return util.ErrTruncated
	}
	d.MfrDesc = cString(data[0:256])
	d.HWDesc = cString(data[256:512])
	d.SWDesc = cString(data[512:768])
	d.SerialNum = cString(data[768:800])
	d.DPDesc = cString(data[800:1056])
	return nil
}

// ofp_flow_stats
type FlowStats struct {
	Length   uint16
	TableId  uint8
	Match    Match
	Priority uint16

	DurationSec  uint32
	DurationNSec uint32

	IdleTimeout uint16
	HardTimeout uint16
	Cookie      uint64
	PacketCount uint64
	ByteCount   uint64
	Actions     []Action
}

const flowStatsFixedLen = 88

func (f *FlowStats) UnmarshalBinary(data []byte) error {
	if len(data) < flowStatsFixedLen {
		return util.ErrTruncated
	}
	f.Length = binary.BigEndian.Uint16(data)
	f.TableId = data[2]
	n := 4
	if err := f.Match.UnmarshalBinary(data[n:]); err != nil {
		return err
	}
	n += 40
	f.DurationSec = binary.BigEndian.Uint32(data[n:])
	n += 4
	f.DurationNSec = binary.BigEndian.Uint32(data[n:])
	n += 4
	f.Priority = binary.BigEndian.Uint16(data[n:])
	n += 2
	f.IdleTimeout = binary.BigEndian.Uint16(data[n:])
	n += 2
	f.HardTimeout = binary.BigEndian.Uint16(data[n:])
	n += 8 // hard_timeout plus pad
	f.Cookie = binary.BigEndian.Uint64(data[n:])
	n += 8
	f.PacketCount = binary.BigEndian.Uint64(data[n:])
	n += 8
	f.ByteCount = binary.BigEndian.Uint64(data[n:])
	n += 8

	actions, err := unmarshalActions(data[n:], int(f.Length)-n)
	if err != nil {
		return err
	}
	f.Actions = actions
	return nil
}

// ofp_aggregate_stats_reply
type AggregateStats struct {
	PacketCount uint64
	ByteCount   uint64
	FlowCount   uint32
}

const AggregateStatsLen = 24

func (a *AggregateStats) UnmarshalBinary(data []byte) error {
	if len(data) < AggregateStatsLen {
		return util.ErrTruncated
	}
	a.PacketCount = binary.BigEndian.Uint64(data)
	a.ByteCount = binary.BigEndian.Uint64(data[8:])
	a.FlowCount = binary.BigEndian.Uint32(data[16:])
	return nil
}

// ofp_table_stats
type TableStats struct {
	TableId      uint8
	Name         string // up to 32 bytes on the wire
	Wildcards    uint32
	MaxEntries   uint32
	ActiveCount  uint32
	LookupCount  uint64
	MatchedCount uint64
}

const TableStatsLen = 64

func (t *TableStats) UnmarshalBinary(data []byte) error {
	if len(data) < TableStatsLen {
		return util.ErrTruncated
	}
	t.TableId = data[0]
	t.Name = cString(data[4:36])
	t.Wildcards = binary.BigEndian.Uint32(data[36:])
	t.MaxEntries = binary.BigEndian.Uint32(data[40:])
	t.ActiveCount = binary.BigEndian.Uint32(data[44:])
	t.LookupCount = binary.BigEndian.Uint64(data[48:])
	t.MatchedCount = binary.BigEndian.Uint64(data[56:])
	return nil
}

// ofp_port_stats
type PortStats struct {
	PortNo     uint16
	RxPackets  uint64
	TxPackets  uint64
	RxBytes    uint64
	TxBytes    uint64
	RxDropped  uint64
	TxDropped  uint64
	RxErrors   uint64
	TxErrors   uint64
	RxFrameErr uint64
	RxOverErr  uint64
	RxCrcErr   uint64
	Collisions uint64
}

const PortStatsLen = 104

func (p *PortStats) UnmarshalBinary(data []byte) error {
	if len(data) < PortStatsLen {
		return util.ErrTruncated
	}
	p.PortNo = binary.BigEndian.Uint16(data)
	n := 8
	for _, field := range []*uint64{
		&p.RxPackets, &p.TxPackets, &p.RxBytes, &p.TxBytes,
		&p.RxDropped, &p.TxDropped, &p.RxErrors, &p.TxErrors,
		&p.RxFrameErr, &p.RxOverErr, &p.RxCrcErr, &p.Collisions,
	} {
		*field = binary.BigEndian.Uint64(data[n:])
		n += 8
	}
	return nil
}

// ofp_queue_stats
type QueueStats struct {
	PortNo    uint16
	QueueId   uint32
	TxBytes   uint64
	TxPackets uint64
	TxErrors  uint64
}

const QueueStatsLen = 32

func (q *QueueStats) UnmarshalBinary(data []byte) error {
	if len(data) < QueueStatsLen {
		return util.ErrTruncated
	}
	q.PortNo = binary.BigEndian.Uint16(data)
	q.QueueId = binary.BigEndian.Uint32(data[4:])
	q.TxBytes = binary.BigEndian.Uint64(data[8:])
	q.TxPackets = binary.BigEndian.Uint64(data[16:])
	q.TxErrors = binary.BigEndian.Uint64(data[24:])
	return nil
}

// ofp_packet_queue
type PacketQueue struct {
	QueueId    uint32
	Length     uint16
	Properties []byte
}

// ofp_queue_get_config_reply
type QueueGetConfigReply struct {
	Header
	Port   uint16
	Queues []PacketQueue
}

func (q *QueueGetConfigReply) Len() (n uint16) {
	n = 16
	for _, pq := range q.Queues {
		n += pq.Length
	}
	return
}

func (q *QueueGetConfigReply) MarshalBinary() (data []byte, err error) {
	data = make([]byte, int(q.Len()))
	q.Header.Length = q.Len()
	b, err := q.Header.MarshalBinary()
	if err != nil {
		return
	}
	copy(data, b)
	binary.BigEndian.PutUint16(data[8:], q.Port)
	n := 16
	for _, pq := range q.Queues {
		binary.BigEndian.PutUint32(data[n:], pq.QueueId)
		binary.BigEndian.PutUint16(data[n+4:], pq.Length)
		copy(data[n+8:], pq.Properties)
		n += int(pq.Length)
	}
	return
}

func (q *QueueGetConfigReply) UnmarshalBinary(data []byte) error {
	if err := q.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	if len(data) < 16 {
		return util.ErrTruncated
	}
	q.Port = binary.BigEndian.Uint16(data[8:])
	n := 16
	for n+8 <= len(data) {
		var pq PacketQueue
		pq.QueueId = binary.BigEndian.Uint32(data[n:])
		pq.Length = binary.BigEndian.Uint16(data[n+4:])
		if pq.Length < 8 || n+int(pq.Length) > len(data) {
			return util.ErrTruncated
		}
		pq.Properties = make([]byte, pq.Length-8)
		copy(pq.Properties, data[n+8:n+int(pq.Length)])
		q.Queues = append(q.Queues, pq)
		n += int(pq.Length)
	}
	return nil
}
