package ofctrl

import (
	"crypto/sha1"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilnetworks/ofcore/core"
	"github.com/vigilnetworks/ofcore/ofmp"
	"github.com/vigilnetworks/ofcore/openflow10"
	"github.com/vigilnetworks/ofcore/switchmgr"
	"github.com/vigilnetworks/ofcore/util"
)

func init() {
	logrus.SetLevel(logrus.PanicLevel)
}

type testRig struct {
	core *core.Core
	ctrl *Controller
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	c := core.NewWithGroups(2)
	go c.Run()
	t.Cleanup(c.Stop)
	return &testRig{core: c, ctrl: NewController(c)}
}

// fakeSwitch scripts the switch side of a connection.
type fakeSwitch struct {
	t    *testing.T
	conn net.Conn
}

func (f *fakeSwitch) readFrame() []byte {
	f.t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	hdr := make([]byte, 8)
	_, err := io.ReadFull(f.conn, hdr)
	require.NoError(f.t, err)
	length := int(binary.BigEndian.Uint16(hdr[2:4]))
	frame := make([]byte, length)
	copy(frame, hdr)
	if length > 8 {
		_, err = io.ReadFull(f.conn, frame[8:])
		require.NoError(f.t, err)
	}
	return frame
}

// expectFrame reads the next frame and asserts its OpenFlow type.
func (f *fakeSwitch) expectFrame(ofpType uint8) []byte {
	f.t.Helper()
	frame := f.readFrame()
	require.Equal(f.t, ofpType, frame[1], "unexpected frame type")
	return frame
}

func (f *fakeSwitch) write(msg util.Message) {
	f.t.Helper()
	data, err := msg.MarshalBinary()
	require.NoError(f.t, err)
	f.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err = f.conn.Write(data)
	require.NoError(f.t, err)
}

func featuresReply(dpid uint64) *openflow10.SwitchFeatures {
	f := openflow10.NewFeaturesReply()
	f.DPID = dpid
	f.Buffers = 256
	f.NumTables = 1
	return f
}

// sayHello consumes the controller's HELLO and answers it.
func (f *fakeSwitch) sayHello() {
	f.expectFrame(openflow10.Type_Hello)
	f.write(openflow10.NewHello())
}

// completeSwitchHandshake drives a plain (non-management) switch to
// registration: features exchange, then an error in response to the
// capability request.
func (f *fakeSwitch) completeSwitchHandshake(dpid uint64) {
	f.sayHello()
	f.expectFrame(openflow10.Type_FeaturesRequest)
	f.expectFrame(openflow10.Type_SetConfig)
	f.write(featuresReply(dpid))
	f.expectFrame(openflow10.Type_Vendor) // capability request
	f.write(openflow10.NewErrorMsg(openflow10.ET_BAD_REQUEST, 0))
}

func startConnection(t *testing.T, rig *testRig, timeout time.Duration) *fakeSwitch {
	t.Helper()
	server, client := net.Pipe()
	go rig.ctrl.handleConnection(server, timeout)
	return &fakeSwitch{t: t, conn: client}
}

func waitEvent[E core.Event](t *testing.T, ch <-chan E) E {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		panic("unreachable")
	}
}

func TestBasicJoin(t *testing.T) {
	rig := newTestRig(t)

	joined := make(chan DatapathJoinEvent, 1)
	rig.core.RegisterHandler(EventDatapathJoin, func(e core.Event) core.Disposition {
		joined <- e.(DatapathJoinEvent)
		return core.Continue
	}, 500)

	sw := startConnection(t, rig, passiveHandshakeTimeout)
	sw.completeSwitchHandshake(0x1)

	// The first action after registration clears the flow table.
	frame := sw.expectFrame(openflow10.Type_FlowMod)
	msg, err := openflow10.Parse(frame)
	require.NoError(t, err)
	fm := msg.(*openflow10.FlowMod)
	assert.Equal(t, uint16(openflow10.FC_DELETE), fm.Command)
	assert.Equal(t, uint32(openflow10.FW_ALL), fm.Match.Wildcards)
	assert.Equal(t, uint64(0), fm.Cookie)
	assert.Equal(t, uint32(0), fm.BufferId)

	join := waitEvent(t, joined)
	assert.Equal(t, DatapathId(1), join.Dpid)
	assert.Equal(t, uint32(256), join.Features.Buffers)

	// The registry now maps the dpid to this connection.
	conn, err := rig.ctrl.connection(1)
	require.NoError(t, err)
	assert.Equal(t, DatapathId(1), conn.Dpid())
}

func TestEchoRequestAnswered(t *testing.T) {
	rig := newTestRig(t)
	sw := startConnection(t, rig, passiveHandshakeTimeout)
	sw.completeSwitchHandshake(0x1)
	sw.expectFrame(openflow10.Type_FlowMod)

	echo := openflow10.NewEchoRequest()
	echo.Data = []byte{9, 9, 9}
	sw.write(echo)

	frame := sw.expectFrame(openflow10.Type_EchoReply)
	assert.Equal(t, echo.Xid, binary.BigEndian.Uint32(frame[4:8]))
	assert.Equal(t, []byte{9, 9, 9}, frame[8:])
}

func TestHandshakeTimeout(t *testing.T) {
	rig := newTestRig(t)

	joined := make(chan DatapathJoinEvent, 1)
	rig.core.RegisterHandler(EventDatapathJoin, func(e core.Event) core.Disposition {
		joined <- e.(DatapathJoinEvent)
		return core.Continue
	}, 500)

	server, client := net.Pipe()
	stream := util.NewMessageStream(server, rig.ctrl)
	conn := newConnection(rig.ctrl, stream)

	// The peer never answers; the FSM must exit with a timeout and
	// post nothing.
	errCh := make(chan error, 1)
	go func() {
		errCh <- newHandshake(rig.ctrl, conn, 50*time.Millisecond).run()
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not time out")
	}
	assert.Empty(t, joined)

	// The transport was closed underneath the silent peer.
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	for {
		if _, err := client.Read(buf); err != nil {
			break
		}
	}
}

func TestSecondConnectionForSameDpid(t *testing.T) {
	rig := newTestRig(t)

	events := make(chan core.Event, 4)
	record := func(e core.Event) core.Disposition {
		events <- e
		return core.Continue
	}
	rig.core.RegisterHandler(EventDatapathJoin, record, 500)
	rig.core.RegisterHandler(EventDatapathLeave, record, 500)

	first := startConnection(t, rig, passiveHandshakeTimeout)
	first.completeSwitchHandshake(0x7)
	first.expectFrame(openflow10.Type_FlowMod)
	waitEvent(t, events)

	second := startConnection(t, rig, passiveHandshakeTimeout)
	second.completeSwitchHandshake(0x7)
	second.expectFrame(openflow10.Type_FlowMod)

	// The old registration leaves before the new one joins.
	leave := waitEvent(t, events)
	require.IsType(t, DatapathLeaveEvent{}, leave)
	assert.Equal(t, DatapathId(7), leave.(DatapathLeaveEvent).Dpid)

	join := waitEvent(t, events)
	require.IsType(t, DatapathJoinEvent{}, join)
	assert.Equal(t, DatapathId(7), join.(DatapathJoinEvent).Dpid)

	// The old transport is closed.
	first.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err := first.conn.Read(buf)
	assert.Error(t, err)
}

// completeMgmtHandshake drives a management-capable switch to
// registration.
func (f *fakeSwitch) completeMgmtHandshake(dpid, mgmtId uint64, config string) {
	f.sayHello()
	f.expectFrame(openflow10.Type_FeaturesRequest)
	f.expectFrame(openflow10.Type_SetConfig)
	f.write(featuresReply(dpid))

	f.expectFrame(openflow10.Type_Vendor) // capability request
	caps := &ofmp.CapabilityReply{
		OfmpHeader: ofmp.NewOfmpHeader(ofmp.OFMPT_CAPABILITY_REPLY),
		Format:     ofmp.OFMPCAF_SIMPLE,
		MgmtId:     mgmtId,
		Data:       []byte("com.nicira.mgmt.manager=true\n"),
	}
	f.write(caps)

	f.expectFrame(openflow10.Type_Vendor) // resources request
	resources := ofmp.NewResourcesUpdate()
	resources.PortNames[dpid] = "eth0"
	f.write(resources)

	f.expectFrame(openflow10.Type_Vendor) // config request
	update := ofmp.NewConfigUpdate(cookieOf(config), []byte(config))
	f.write(update)
}

func cookieOf(config string) ofmp.Cookie {
	return ofmp.Cookie(sha1.Sum([]byte(config)))
}

func TestManagementJoinAndConfigRoundTrip(t *testing.T) {
	rig := newTestRig(t)

	joined := make(chan SwitchMgrJoinEvent, 1)
	rig.core.RegisterHandler(EventSwitchMgrJoin, func(e core.Event) core.Disposition {
		joined <- e.(SwitchMgrJoinEvent)
		return core.Continue
	}, 500)

	sw := startConnection(t, rig, passiveHandshakeTimeout)
	sw.completeMgmtHandshake(0x1, 0x2, "net.ports=eth0\n")

	join := waitEvent(t, joined)
	assert.Equal(t, DatapathId(2), join.MgmtId)

	swm, ok := rig.ctrl.SwitchMgr(2)
	require.True(t, ok)
	name, ok := swm.PortName(0x1)
	require.True(t, ok)
	assert.Equal(t, "eth0", name)
	assert.Equal(t, "net.ports=eth0\n", swm.GlobalCfg().String())
	assert.True(t, swm.Capabilities().GetBool(0, "com.nicira.mgmt.manager"))

	// A local change is committed against the old cookie.
	swm.SetString("net.ports", "eth1")
	swm.DelEntry("net.ports", "eth0")
	result := make(chan bool, 1)
	require.NoError(t, swm.Commit(func(ok bool) { result <- ok }))

	frame := sw.expectFrame(openflow10.Type_Vendor)
	msg, err := ofmp.Parse(frame)
	require.NoError(t, err)
	update := msg.(*ofmp.ConfigUpdate)
	assert.Equal(t, []byte("net.ports=eth1\n"), update.Data)
	assert.Equal(t, cookieOf("net.ports=eth0\n"), update.Cookie)

	// The switch accepts; the callback fires and the new config is
	// adopted.
	ack := &ofmp.ConfigUpdateAck{OfmpHeader: ofmp.NewOfmpHeader(ofmp.OFMPT_CONFIG_UPDATE_ACK)}
	ack.Header.Xid = update.Header.Xid
	ack.Flags = ofmp.OFMPCUAF_SUCCESS
	ack.Cookie = cookieOf("net.ports=eth1\n")
	sw.write(ack)

	select {
	case ok := <-result:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("commit callback never fired")
	}
	assert.Equal(t, "net.ports=eth1\n", swm.GlobalCfg().String())
	assert.Equal(t, 0, swm.PendingCommits())
}

func TestExtendedDataReassemblyProducesOneEvent(t *testing.T) {
	rig := newTestRig(t)

	updates := make(chan OfmpConfigUpdateEvent, 2)
	rig.core.RegisterHandler(EventOfmpConfigUpdate, func(e core.Event) core.Disposition {
		updates <- e.(OfmpConfigUpdateEvent)
		return core.Continue
	}, 500)

	sw := startConnection(t, rig, passiveHandshakeTimeout)
	sw.completeMgmtHandshake(0x1, 0x2, "net.ports=eth0\n")

	// Build an 80,000-byte config update and push it as two
	// extended-data frames sharing one xid.
	var config []byte
	for i := 0; len(config) < 80000; i++ {
		config = append(config, []byte("net.allowed-mac=00:11:22:33:44:55\n")...)
	}
	update := ofmp.NewConfigUpdate(ofmp.Cookie{}, config)
	update.Header.Xid = 0x11
	data, err := update.MarshalBinary()
	require.NoError(t, err)

	frags, err := ofmp.Fragment(data)
	require.NoError(t, err)
	require.Len(t, frags, 2)
	for _, frag := range frags {
		sw.write(frag)
	}

	got := waitEvent(t, updates)
	assert.Equal(t, DatapathId(2), got.MgmtId)

	want := new(switchmgr.Cfg)
	want.Load(config)
	assert.Equal(t, want.String(), got.NewConfig.String())

	// Exactly one event for the whole run.
	select {
	case <-updates:
		t.Fatal("reassembly produced more than one event")
	case <-time.After(100 * time.Millisecond):
	}
}

type denyingAuth struct{}

func (denyingAuth) CheckSwitchAuth(conn *Connection, features *openflow10.SwitchFeatures, cb func(bool)) {
	go cb(false)
}

func TestUnauthorizedSwitchRejected(t *testing.T) {
	rig := newTestRig(t)
	rig.ctrl.RegisterSwitchAuth(denyingAuth{})

	joined := make(chan DatapathJoinEvent, 1)
	rig.core.RegisterHandler(EventDatapathJoin, func(e core.Event) core.Disposition {
		joined <- e.(DatapathJoinEvent)
		return core.Continue
	}, 500)

	server, client := net.Pipe()
	stream := util.NewMessageStream(server, rig.ctrl)
	conn := newConnection(rig.ctrl, stream)
	conn.version = openflow10.VERSION

	errCh := make(chan error, 1)
	go func() {
		errCh <- newHandshake(rig.ctrl, conn, passiveHandshakeTimeout).run()
	}()

	sw := &fakeSwitch{t: t, conn: client}
	sw.expectFrame(openflow10.Type_FeaturesRequest)
	sw.expectFrame(openflow10.Type_SetConfig)
	sw.write(featuresReply(0x5))
	sw.expectFrame(openflow10.Type_Vendor)
	sw.write(openflow10.NewErrorMsg(openflow10.ET_BAD_REQUEST, 0))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrNotPermitted)
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not finish")
	}
	assert.Empty(t, joined)
	_, err := rig.ctrl.connection(5)
	assert.ErrorIs(t, err, ErrDatapathUnknown)
}

func TestSendCommandsToUnknownDpid(t *testing.T) {
	rig := newTestRig(t)

	err := rig.ctrl.SendOpenflowCommand(0x42, openflow10.NewBarrierRequest(), false)
	assert.ErrorIs(t, err, ErrDatapathUnknown)

	err = rig.ctrl.SendPacketOut(0x42, []byte{1}, openflow10.P_FLOOD, openflow10.P_NONE, nil, false)
	assert.ErrorIs(t, err, ErrDatapathUnknown)

	err = rig.ctrl.SendSwitchCommand(0x42, "reboot", nil)
	assert.ErrorIs(t, err, ErrDatapathUnknown)

	err = rig.ctrl.FetchSwitchLogs(0x42, "/tmp/logs", nil)
	assert.ErrorIs(t, err, ErrDatapathUnknown)
}

func TestPacketOutOnWire(t *testing.T) {
	rig := newTestRig(t)
	sw := startConnection(t, rig, passiveHandshakeTimeout)
	sw.completeSwitchHandshake(0x1)
	sw.expectFrame(openflow10.Type_FlowMod)

	payload := []byte{0xca, 0xfe}
	require.NoError(t, rig.ctrl.SendPacketOut(0x1, payload, 3, openflow10.P_NONE, nil, false))

	frame := sw.expectFrame(openflow10.Type_PacketOut)
	msg, err := openflow10.Parse(frame)
	require.NoError(t, err)
	p := msg.(*openflow10.PacketOut)
	require.Len(t, p.Actions, 1)
	assert.Equal(t, uint16(3), p.Actions[0].(*openflow10.ActionOutput).Port)
	assert.Equal(t, payload, p.Data)
}
