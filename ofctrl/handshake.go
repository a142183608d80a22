package ofctrl

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vigilnetworks/ofcore/ofmp"
	"github.com/vigilnetworks/ofcore/openflow10"
	"github.com/vigilnetworks/ofcore/switchmgr"
	"github.com/vigilnetworks/ofcore/util"
)

// handshakeState drives a new connection from HELLO completion to
// registration.
type handshakeState int

const (
	stateSendFeaturesReq handshakeState = iota
	stateSendConfig
	stateRecvFeaturesReply
	stateSendMgmtCapabilityReq
	stateRecvMgmtCapabilityReply
	stateSendMgmtResourcesReq
	stateRecvMgmtResourcesUpdate
	stateSendMgmtConfigReq
	stateRecvMgmtConfigUpdate
	stateCheckSwitchAuth
	stateCheckMgmtAuth
	stateRegisterSwitch
	stateRegisterMgmt
)

var stateDesc = map[handshakeState]string{
	stateSendFeaturesReq:         "sending features request",
	stateSendConfig:              "sending switch config",
	stateRecvFeaturesReply:       "receiving features reply",
	stateSendMgmtCapabilityReq:   "sending ofmp capability request",
	stateRecvMgmtCapabilityReply: "receiving ofmp capability reply",
	stateSendMgmtResourcesReq:    "sending ofmp resources request",
	stateRecvMgmtResourcesUpdate: "receiving ofmp resources reply",
	stateSendMgmtConfigReq:       "sending ofmp config request",
	stateRecvMgmtConfigUpdate:    "receiving ofmp config update",
	stateCheckSwitchAuth:         "checking switch auth",
	stateCheckMgmtAuth:           "checking management auth",
	stateRegisterSwitch:          "registering switch",
	stateRegisterMgmt:            "registering mgmt channel",
}

// handshake runs on the new connection's goroutine until the switch
// is registered or the connection abandoned. The deadline is absolute
// and covers the whole exchange.
type handshake struct {
	ctrl     *Controller
	conn     *Connection
	deadline time.Time
	state    handshakeState

	approved bool
	failure  error
	mgmtId   DatapathId

	swmCaps   *switchmgr.Cfg // initial manager capabilities
	swmConfig *switchmgr.Cfg // initial manager config

	// Buffer to handle OFMP extended data messages during the
	// handshake, separate from the connection's steady-state slot.
	reassembler ofmp.Reassembler

	// The features reply is kept so switch authorization and the
	// join event can see it.
	featuresReply *openflow10.SwitchFeatures

	resources *ofmp.ResourcesUpdate
}

func newHandshake(ctrl *Controller, conn *Connection, timeout time.Duration) *handshake {
	return &handshake{
		ctrl:      ctrl,
		conn:      conn,
		deadline:  time.Now().Add(timeout),
		state:     stateSendFeaturesReq,
		swmCaps:   new(switchmgr.Cfg),
		swmConfig: new(switchmgr.Cfg),
	}
}

// run drives the state machine to completion. On any failure the
// transport is closed and no events are posted: a switch that never
// joined cannot leave.
func (h *handshake) run() error {
	for {
		if time.Now().After(h.deadline) {
			log.Warnf("%s: closing connection due to timeout in '%s' state",
				h.conn, stateDesc[h.state])
			return h.exit(ErrTimeout)
		}

		var err error
		switch h.state {
		case stateSendFeaturesReq, stateSendConfig, stateSendMgmtCapabilityReq,
			stateSendMgmtResourcesReq, stateSendMgmtConfigReq:
			err = h.sendMessage()
		case stateRecvFeaturesReply, stateRecvMgmtCapabilityReply,
			stateRecvMgmtResourcesUpdate, stateRecvMgmtConfigUpdate:
			err = h.recvMessage()
		case stateCheckSwitchAuth:
			err = h.checkAuth(stateRegisterSwitch)
		case stateCheckMgmtAuth:
			err = h.checkAuth(stateRegisterMgmt)
		case stateRegisterSwitch:
			return h.registerSwitch()
		case stateRegisterMgmt:
			return h.registerMgmt()
		}
		if err == nil {
			err = h.failure
		}
		if err != nil {
			return h.exit(err)
		}
	}
}

func (h *handshake) exit(err error) error {
	h.ctrl.dropConnection(h.conn)
	return err
}

func (h *handshake) sendMessage() error {
	var msg util.Message
	var next handshakeState
	switch h.state {
	case stateSendFeaturesReq:
		msg = openflow10.NewFeaturesRequest()
		next = stateSendConfig
	case stateSendConfig:
		msg = openflow10.NewSetConfig()
		next = stateRecvFeaturesReply
	case stateSendMgmtCapabilityReq:
		msg = ofmp.NewCapabilityRequest()
		next = stateRecvMgmtCapabilityReply
	case stateSendMgmtResourcesReq:
		msg = ofmp.NewResourcesRequest()
		next = stateRecvMgmtResourcesUpdate
	case stateSendMgmtConfigReq:
		msg = ofmp.NewConfigRequest()
		next = stateRecvMgmtConfigUpdate
	}

	if err := h.conn.sendDeadline(msg, h.deadline); err != nil {
		log.Warnf("error %s: %v", stateDesc[h.state], err)
		return err
	}
	h.state = next
	log.Debugf("success sending in '%s'", stateDesc[h.state])
	return nil
}

func (h *handshake) recvMessage() error {
	select {
	case msg := <-h.conn.stream.Inbound:
		h.handleMessage(msg)
		return nil
	case err := <-h.conn.stream.Error:
		log.Warnf("error %s: recv: %v", stateDesc[h.state], err)
		return err
	case <-time.After(time.Until(h.deadline)):
		// The deadline check at the top of run logs and exits.
		return nil
	}
}

func (h *handshake) handleMessage(msg util.Message) {
	log.Debugf("success receiving in '%s'", stateDesc[h.state])
	switch m := msg.(type) {
	case *openflow10.SwitchFeatures:
		if h.state != stateRecvFeaturesReply {
			log.Warnf("ignoring features reply received while in state '%s'",
				stateDesc[h.state])
			return
		}
		// Kept for switch auth and registration.
		h.featuresReply = m
		h.state = stateSendMgmtCapabilityReq

	case *openflow10.EchoMsg:
		if m.Header.Type == openflow10.Type_EchoRequest {
			h.conn.sendEchoReply(m)
		}

	case *openflow10.ErrorMsg:
		if h.state == stateRecvMgmtCapabilityReply {
			log.Debugf("datapath %s sent error in response to capability request, "+
				"assuming no management support", DatapathId(h.featuresReply.DPID))
			h.state = stateCheckSwitchAuth
		} else {
			log.Warnf("received error during handshake (%d/%d)", m.Type, m.Code)
			h.failure = ErrInvalid
		}

	case *openflow10.PacketIn:
		// These arrive before the handshake completes and don't
		// indicate an error.
		log.Debugf("dropping packet in message during handshake")

	case *ofmp.CapabilityReply:
		h.reassembler.Flush(m.Header.Xid)
		h.handleCapabilityReply(m)

	case *ofmp.ResourcesUpdate:
		h.reassembler.Flush(m.Header.Xid)
		if h.state != stateRecvMgmtResourcesUpdate {
			log.Warnf("ignoring mgmt resources update received while in state '%s'",
				stateDesc[h.state])
			return
		}
		h.resources = m
		h.state = stateSendMgmtConfigReq

	case *ofmp.ConfigUpdate:
		h.reassembler.Flush(m.Header.Xid)
		h.handleConfigUpdate(m)

	case *ofmp.ErrorMsg:
		h.reassembler.Flush(m.Header.Xid)
		log.Warnf("received ofmp error with type %d and code %d", m.ErrType, m.Code)

	case *ofmp.ExtendedData:
		inner, err := h.reassembler.Add(m)
		if err != nil {
			log.Warnf("%s: %v", h.conn, err)
			return
		}
		if inner != nil {
			h.handleMessage(inner)
		}

	default:
		log.Warnf("received unsupported message type during handshake (%T)", msg)
	}
}

func (h *handshake) handleCapabilityReply(m *ofmp.CapabilityReply) {
	if h.state != stateRecvMgmtCapabilityReply {
		log.Warnf("ignoring mgmt capability reply received while in state '%s'",
			stateDesc[h.state])
		return
	}
	if m.Format != ofmp.OFMPCAF_SIMPLE {
		log.Warnf("received unsupported ofmp capability format: %d", m.Format)
		return
	}

	h.mgmtId = DatapathId(m.MgmtId)
	h.swmCaps.Load(m.Data)

	if !h.swmCaps.GetBool(0, "com.nicira.mgmt.manager") {
		// This is not a management connection.
		log.Debugf("datapath %s has manager %s",
			DatapathId(h.featuresReply.DPID), h.mgmtId)
		h.state = stateCheckSwitchAuth
		return
	}

	h.state = stateSendMgmtResourcesReq
}

func (h *handshake) handleConfigUpdate(m *ofmp.ConfigUpdate) {
	if h.state != stateRecvMgmtConfigUpdate {
		log.Warnf("ignoring mgmt config update received while in state '%s'",
			stateDesc[h.state])
		return
	}
	if m.Format != ofmp.OFMPCOF_SIMPLE {
		log.Warnf("unsupported config format: %d", m.Format)
		return
	}
	h.swmConfig.Load(m.Data)
	h.state = stateCheckMgmtAuth
}

// checkAuth consults the registered authorizer, if any. The verdict
// arrives through a callback so the authorizer can do its own I/O; it
// must not call back synchronously into the handshake.
func (h *handshake) checkAuth(next handshakeState) error {
	auth := h.ctrl.SwitchAuth()
	if auth == nil {
		log.Debugln("no switch auth module registered, auto-approving switch")
		h.approved = true
		h.state = next
		return nil
	}

	verdict := make(chan bool, 1)
	auth.CheckSwitchAuth(h.conn, h.featuresReply, func(approved bool) {
		verdict <- approved
	})
	select {
	case approved := <-verdict:
		h.approved = approved
		h.state = next
		return nil
	case <-time.After(time.Until(h.deadline)):
		return ErrTimeout
	}
}

func (h *handshake) registerSwitch() error {
	dpid := DatapathId(h.featuresReply.DPID)
	if !h.approved {
		log.Errorf("disconnecting unapproved switch %s", dpid)
		return h.exit(ErrNotPermitted)
	}
	if dpid == 0 {
		log.Errorln("0 is not a valid DPID, disconnecting switch")
		return h.exit(ErrInvalid)
	}

	h.conn.dpid = dpid
	h.conn.mgmtId = h.mgmtId
	h.ctrl.registerConn(h.conn)

	// Delete all flows on this switch so it starts from an empty
	// flow table.
	flush := openflow10.NewFlowMod()
	flush.Command = openflow10.FC_DELETE
	if err := h.conn.TrySend(flush); err != nil {
		log.Errorln("error, unable to clear flow table on startup")
	}

	log.Debugf("registering switch with DPID = %s", dpid)
	h.ctrl.core.MainGroup().Post(DatapathJoinEvent{Dpid: dpid, Features: h.featuresReply})
	return nil
}

func (h *handshake) registerMgmt() error {
	if !h.approved {
		log.Errorf("disconnecting unapproved management channel %s", h.mgmtId)
		return h.exit(ErrNotPermitted)
	}
	if h.mgmtId == 0 {
		log.Errorln("0 is not a valid management id, disconnecting")
		return h.exit(ErrInvalid)
	}

	h.conn.dpid = h.mgmtId
	h.conn.mgmtId = h.mgmtId
	h.ctrl.registerConn(h.conn)

	swm := switchmgr.New(uint64(h.mgmtId), h.conn)
	swm.SetCapabilities(h.swmCaps)
	swm.SetConfig(h.swmConfig)
	if h.resources != nil {
		swm.HandleResourcesUpdate(h.resources)
	}
	h.ctrl.registerSwitchMgr(h.mgmtId, swm)

	log.Debugf("registering mgmt channel with id = %s", h.mgmtId)
	h.ctrl.core.MainGroup().Post(SwitchMgrJoinEvent{MgmtId: h.mgmtId})
	return nil
}
