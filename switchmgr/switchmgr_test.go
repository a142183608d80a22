package switchmgr

import (
	"crypto/sha1"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilnetworks/ofcore/ofmp"
	"github.com/vigilnetworks/ofcore/util"
)

type fakeSender struct {
	sent []util.Message
	fail error
}

func (f *fakeSender) SendOfmp(msg util.Message) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) WouldBlock(error) bool {
	return false
}

func (f *fakeSender) lastUpdate(t *testing.T) *ofmp.ConfigUpdate {
	t.Helper()
	require.NotEmpty(t, f.sent)
	update, ok := f.sent[len(f.sent)-1].(*ofmp.ConfigUpdate)
	require.True(t, ok)
	return update
}

func ackFor(update *ofmp.ConfigUpdate, success bool, cookie Cookie) *ofmp.ConfigUpdateAck {
	ack := &ofmp.ConfigUpdateAck{OfmpHeader: ofmp.NewOfmpHeader(ofmp.OFMPT_CONFIG_UPDATE_ACK)}
	ack.Header.Xid = update.Header.Xid
	if success {
		ack.Flags = ofmp.OFMPCUAF_SUCCESS
	}
	ack.Cookie = ofmp.Cookie(cookie)
	return ack
}

func newTestMgr(sender *fakeSender) *SwitchMgr {
	swm := New(0x2, sender)
	base := new(Cfg)
	base.Load([]byte("net.ports=eth0\n"))
	swm.SetConfig(base)
	return swm
}

func TestCommitSendsOldCookieAndCanonicalConfig(t *testing.T) {
	sender := new(fakeSender)
	swm := newTestMgr(sender)

	swm.SetString("net.ports", "eth1")
	swm.DelEntry("net.ports", "eth0")

	var result *bool
	require.NoError(t, swm.Commit(func(ok bool) { result = &ok }))

	update := sender.lastUpdate(t)
	assert.Equal(t, []byte("net.ports=eth1\n"), update.Data)

	baseCookie := Cookie(sha1.Sum([]byte("net.ports=eth0\n")))
	assert.Equal(t, ofmp.Cookie(baseCookie), update.Cookie)

	// The callback waits for the ack.
	assert.Nil(t, result)
	assert.Equal(t, 1, swm.PendingCommits())
}

func TestCommitAckSuccessAdoptsSnapshot(t *testing.T) {
	sender := new(fakeSender)
	swm := newTestMgr(sender)

	swm.SetString("net.ports", "eth1")
	swm.DelEntry("net.ports", "eth0")

	var result *bool
	require.NoError(t, swm.Commit(func(ok bool) { result = &ok }))
	update := sender.lastUpdate(t)

	newCookie := Cookie(sha1.Sum([]byte("net.ports=eth1\n")))
	swm.HandleConfigAck(ackFor(update, true, newCookie))

	require.NotNil(t, result)
	assert.True(t, *result)
	assert.Equal(t, "net.ports=eth1\n", swm.GlobalCfg().String())
	assert.Equal(t, newCookie, swm.GlobalCookie())
	assert.Equal(t, 0, swm.PendingCommits())
	assert.False(t, swm.IsDirty())
}

func TestStackedCommitConflict(t *testing.T) {
	sender := new(fakeSender)
	swm := newTestMgr(sender)

	// Commit A.
	swm.SetString("net.ports", "eth1")
	swm.DelEntry("net.ports", "eth0")
	var resultA *bool
	require.NoError(t, swm.Commit(func(ok bool) { resultA = &ok }))
	updateA := sender.lastUpdate(t)

	// Commit B stacks on A.
	swm.SetString("mode", "trunk")
	var resultB *bool
	require.NoError(t, swm.Commit(func(ok bool) { resultB = &ok }))
	updateB := sender.lastUpdate(t)

	// B's old cookie is A's cookie: commits stack.
	cookieA := Cookie(sha1.Sum([]byte("net.ports=eth1\n")))
	assert.Equal(t, ofmp.Cookie(cookieA), updateB.Cookie)

	// The switch accepts A and rejects B.
	swm.HandleConfigAck(ackFor(updateA, true, cookieA))
	swm.HandleConfigAck(ackFor(updateB, false, Cookie{}))

	require.NotNil(t, resultA)
	require.NotNil(t, resultB)
	assert.True(t, *resultA)
	assert.False(t, *resultB)

	// Everything has been reset to the configuration after A.
	assert.Equal(t, "net.ports=eth1\n", swm.GlobalCfg().String())
	assert.Equal(t, "net.ports=eth1\n", swm.LocalCfg().String())
	assert.Equal(t, 0, swm.PendingCommits())
}

func TestAckForUnknownXidIgnored(t *testing.T) {
	sender := new(fakeSender)
	swm := newTestMgr(sender)

	ack := &ofmp.ConfigUpdateAck{OfmpHeader: ofmp.NewOfmpHeader(ofmp.OFMPT_CONFIG_UPDATE_ACK)}
	ack.Header.Xid = 777
	ack.Flags = ofmp.OFMPCUAF_SUCCESS
	swm.HandleConfigAck(ack)

	assert.Equal(t, "net.ports=eth0\n", swm.GlobalCfg().String())
}

func TestCommitSendFailureDropsPendingEntry(t *testing.T) {
	sender := &fakeSender{fail: errors.New("broken pipe")}
	swm := newTestMgr(sender)

	swm.SetString("mode", "trunk")
	err := swm.Commit(nil)
	assert.Error(t, err)
	assert.Equal(t, 0, swm.PendingCommits())
}

func TestUnsolicitedConfigUpdate(t *testing.T) {
	sender := new(fakeSender)
	swm := newTestMgr(sender)

	// Clean local copy follows the new global.
	pushed := new(Cfg)
	pushed.Load([]byte("net.ports=eth2\n"))
	swm.SetConfig(pushed)
	assert.Equal(t, "net.ports=eth2\n", swm.LocalCfg().String())
	assert.False(t, swm.IsDirty())

	// A dirty local copy is preserved.
	swm.SetString("mode", "trunk")
	pushed2 := new(Cfg)
	pushed2.Load([]byte("net.ports=eth3\n"))
	swm.SetConfig(pushed2)
	assert.True(t, swm.IsDirty())
	assert.True(t, swm.HasKey("mode"))

	// A dirty local copy whose content matches the new global is
	// considered clean again.
	local := new(Cfg)
	local.Load([]byte("net.ports=eth4\n"))
	swm2 := New(0x3, sender)
	swm2.SetConfig(local)
	swm2.SetString("x", "1")
	swm2.DelEntry("x", "1")
	matching := new(Cfg)
	matching.Load([]byte("net.ports=eth4\n"))
	swm2.SetConfig(matching)
	assert.False(t, swm2.IsDirty())
}

func TestRevert(t *testing.T) {
	sender := new(fakeSender)
	swm := newTestMgr(sender)

	swm.SetString("mode", "trunk")
	require.True(t, swm.HasKey("mode"))
	swm.Revert()
	assert.False(t, swm.HasKey("mode"))
	assert.Equal(t, "net.ports=eth0\n", swm.LocalCfg().String())
}

func TestResourcesUpdateReplacesMaps(t *testing.T) {
	sender := new(fakeSender)
	swm := newTestMgr(sender)

	r := ofmp.NewResourcesUpdate()
	r.PortNames[0x1] = "eth0"
	swm.HandleResourcesUpdate(r)

	name, ok := swm.PortName(0x1)
	require.True(t, ok)
	assert.Equal(t, "eth0", name)

	r2 := ofmp.NewResourcesUpdate()
	r2.PortNames[0x5] = "eth5"
	swm.HandleResourcesUpdate(r2)

	_, ok = swm.PortName(0x1)
	assert.False(t, ok)
}

func TestPortIsVirtual(t *testing.T) {
	assert.True(t, PortIsVirtual("vif1.0"))
	assert.True(t, PortIsVirtual("tap0"))
	assert.False(t, PortIsVirtual("eth0"))
}
