package openflow10

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := NewHeader()
	h.Type = Type_BarrierRequest

	data, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 8)

	var out Header
	require.NoError(t, out.UnmarshalBinary(data))
	assert.Equal(t, h, out)
	assert.Equal(t, uint8(VERSION), data[0])
}

func TestHelloParse(t *testing.T) {
	h := NewHello()
	data, err := h.MarshalBinary()
	require.NoError(t, err)

	msg, err := Parse(data)
	require.NoError(t, err)
	hello, ok := msg.(*Hello)
	require.True(t, ok)
	assert.Equal(t, h.Xid, hello.Xid)
}

func TestEchoReplyKeepsXidAndPayload(t *testing.T) {
	req := NewEchoRequest()
	req.Data = []byte{1, 2, 3, 4}

	rep := NewEchoReply(req)
	assert.Equal(t, req.Xid, rep.Xid)
	assert.Equal(t, req.Data, rep.Data)

	data, err := rep.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, uint16(12), binary.BigEndian.Uint16(data[2:4]))
}

func TestFeaturesReplyRoundTrip(t *testing.T) {
	f := NewFeaturesReply()
	f.DPID = 0x0000000000000001
	f.Buffers = 256
	f.NumTables = 1
	f.Ports = []PhyPort{{
		PortNo: 1,
		HWAddr: net.HardwareAddr{0, 0x11, 0x22, 0x33, 0x44, 0x55},
		Name:   "eth0",
	}}

	data, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 32+48)

	msg, err := Parse(data)
	require.NoError(t, err)
	out, ok := msg.(*SwitchFeatures)
	require.True(t, ok)
	assert.Equal(t, uint64(1), out.DPID)
	assert.Equal(t, uint32(256), out.Buffers)
	assert.Equal(t, uint8(1), out.NumTables)
	require.Len(t, out.Ports, 1)
	assert.Equal(t, "eth0", out.Ports[0].Name)
	assert.Equal(t, f.Ports[0].HWAddr, out.Ports[0].HWAddr)
}

func TestFlowModRoundTrip(t *testing.T) {
	fm := NewFlowMod()
	fm.Command = FC_ADD
	fm.Priority = 100
	fm.Cookie = 0xdeadbeef
	fm.IdleTimeout = 60
	fm.Match.Wildcards = FW_ALL &^ FW_IN_PORT
	fm.Match.InPort = 3
	fm.AddAction(NewActionOutput(P_CONTROLLER))
	fm.AddAction(NewActionVlanVid(42))

	data, err := fm.MarshalBinary()
	require.NoError(t, err)

	msg, err := Parse(data)
	require.NoError(t, err)
	out, ok := msg.(*FlowMod)
	require.True(t, ok)
	assert.Equal(t, fm.Cookie, out.Cookie)
	assert.Equal(t, fm.Match.InPort, out.Match.InPort)
	require.Len(t, out.Actions, 2)
	assert.Equal(t, uint16(AT_OUTPUT), out.Actions[0].GetType())
	assert.Equal(t, uint16(42), out.Actions[1].(*ActionVlanVid).VlanVid)

	// A well-formed frame must round trip byte for byte.
	reData, err := out.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, reData)
}

func TestWildcardDeleteFlowMod(t *testing.T) {
	fm := NewFlowMod()
	fm.Command = FC_DELETE

	data, err := fm.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 72)

	assert.Equal(t, uint32(FW_ALL), binary.BigEndian.Uint32(data[8:12]))
	assert.Equal(t, uint64(0), binary.BigEndian.Uint64(data[48:56])) // cookie
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(data[64:68])) // buffer_id
}

func TestPacketInRoundTrip(t *testing.T) {
	in := &PacketIn{
		Header:   NewHeader(),
		BufferId: 7,
		TotalLen: 60,
		InPort:   2,
		Reason:   R_NO_MATCH,
		Data:     []byte{0xde, 0xad, 0xbe, 0xef},
	}
	in.Header.Type = Type_PacketIn

	data, err := in.MarshalBinary()
	require.NoError(t, err)

	msg, err := Parse(data)
	require.NoError(t, err)
	out, ok := msg.(*PacketIn)
	require.True(t, ok)
	assert.Equal(t, in.BufferId, out.BufferId)
	assert.Equal(t, in.InPort, out.InPort)
	assert.Equal(t, in.Data, out.Data)
}

func TestPacketOutRoundTrip(t *testing.T) {
	p := NewPacketOut()
	p.InPort = 1
	p.AddAction(NewActionOutput(P_FLOOD))
	p.Data = []byte{1, 2, 3}

	data, err := p.MarshalBinary()
	require.NoError(t, err)

	msg, err := Parse(data)
	require.NoError(t, err)
	out, ok := msg.(*PacketOut)
	require.True(t, ok)
	assert.Equal(t, uint32(NO_BUFFER), out.BufferId)
	require.Len(t, out.Actions, 1)
	assert.Equal(t, uint16(P_FLOOD), out.Actions[0].(*ActionOutput).Port)
	assert.Equal(t, []byte{1, 2, 3}, out.Data)
}

func TestStatsReplyBodies(t *testing.T) {
	agg := make([]byte, AggregateStatsLen)
	binary.BigEndian.PutUint64(agg, 10)
	binary.BigEndian.PutUint64(agg[8:], 1000)
	binary.BigEndian.PutUint32(agg[16:], 3)

	reply := &StatsReply{Header: NewHeader(), Type: ST_AGGREGATE, Body: agg}
	reply.Header.Type = Type_StatsReply
	data, err := reply.MarshalBinary()
	require.NoError(t, err)

	msg, err := Parse(data)
	require.NoError(t, err)
	out, ok := msg.(*StatsReply)
	require.True(t, ok)

	var stats AggregateStats
	require.NoError(t, stats.UnmarshalBinary(out.Body))
	assert.Equal(t, uint64(10), stats.PacketCount)
	assert.Equal(t, uint64(1000), stats.ByteCount)
	assert.Equal(t, uint32(3), stats.FlowCount)
}

func TestErrorMsgRoundTrip(t *testing.T) {
	e := NewErrorMsg(ET_HELLO_FAILED, HFC_INCOMPATIBLE)
	e.Data = []byte("nope")

	data, err := e.MarshalBinary()
	require.NoError(t, err)

	msg, err := Parse(data)
	require.NoError(t, err)
	out, ok := msg.(*ErrorMsg)
	require.True(t, ok)
	assert.Equal(t, uint16(ET_HELLO_FAILED), out.Type)
	assert.Equal(t, []byte("nope"), out.Data)
}

func TestParseUnknownType(t *testing.T) {
	h := NewHeader()
	h.Type = 99
	data, err := h.MarshalBinary()
	require.NoError(t, err)

	_, err = Parse(data)
	assert.Error(t, err)
}

func TestNextXidNonZero(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.NotZero(t, NextXid())
	}
}
