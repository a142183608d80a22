package ofctrl

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vigilnetworks/ofcore/core"
	"github.com/vigilnetworks/ofcore/ofmp"
	"github.com/vigilnetworks/ofcore/openflow10"
	"github.com/vigilnetworks/ofcore/switchmgr"
	"github.com/vigilnetworks/ofcore/util"
)

// Handshake deadlines by connection role.
const (
	passiveHandshakeTimeout  = 5 * time.Second
	reliableHandshakeTimeout = 4 * time.Second
	oneShotHandshakeTimeout  = 60 * time.Second
	helloTimeout             = 3 * time.Second
)

// SwitchAuth decides whether a switch may register. The verdict MUST
// be delivered through cb, never by calling back into the handshake
// synchronously. Only one authorizer can be registered.
type SwitchAuth interface {
	CheckSwitchAuth(conn *Connection, features *openflow10.SwitchFeatures, cb func(approved bool))
}

// Controller accepts switch connections, drives their handshakes and
// maintains the registries mapping datapath ids to connections,
// management ids and switch managers.
type Controller struct {
	core *core.Core

	mu          sync.Mutex
	connections map[DatapathId]*Connection
	mgmtIds     map[DatapathId]DatapathId
	switchMgrs  map[DatapathId]*switchmgr.SwitchMgr
	auth        SwitchAuth

	listeners []net.Listener
	eg        errgroup.Group
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewController(c *core.Core) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := &Controller{
		core:        c,
		connections: make(map[DatapathId]*Connection),
		mgmtIds:     make(map[DatapathId]DatapathId),
		switchMgrs:  make(map[DatapathId]*switchmgr.SwitchMgr),
		ctx:         ctx,
		cancel:      cancel,
	}

	c.RegisterHandler(EventEchoRequest, ctrl.handleEchoRequest, 100)
	c.RegisterHandler(EventOfmpConfigUpdate, ctrl.handleOfmpConfig, 100)
	c.RegisterHandler(EventOfmpConfigUpdateAck, ctrl.handleOfmpConfigAck, 100)
	c.RegisterHandler(EventOfmpResourcesUpdate, ctrl.handleOfmpResources, 100)
	c.RegisterHandler(core.ShutdownEventName, func(core.Event) core.Disposition {
		ctrl.shutdown()
		return core.Continue
	}, 9000)

	return ctrl
}

// RegisterSwitchAuth installs the authorizer consulted before every
// registration. A second registration is ignored.
func (ctrl *Controller) RegisterSwitchAuth(auth SwitchAuth) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.auth != nil {
		log.Errorln("switch auth already set, ignoring RegisterSwitchAuth")
		return
	}
	ctrl.auth = auth
}

func (ctrl *Controller) SwitchAuth() SwitchAuth {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	return ctrl.auth
}

// Listen accepts switch connections on addr (host:port) until the
// controller shuts down.
func (ctrl *Controller) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ctrl.mu.Lock()
	ctrl.listeners = append(ctrl.listeners, listener)
	ctrl.mu.Unlock()

	log.Infoln("Listening for connections on", listener.Addr())
	ctrl.eg.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				if strings.Contains(err.Error(), "use of closed network connection") {
					return nil
				}
				return err
			}
			ctrl.eg.Go(func() error {
				ctrl.handleConnection(conn, passiveHandshakeTimeout)
				return nil
			})
		}
	})
	return nil
}

// Connect opens an outbound connection to a switch. A reliable
// connection is re-dialed with exponential backoff whenever it drops;
// a one-shot connection is attempted once with a longer handshake
// grace.
func (ctrl *Controller) Connect(addr string, reliable bool) {
	ctrl.eg.Go(func() error {
		if !reliable {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				log.Warnf("could not connect to %s: %v", addr, err)
				return nil
			}
			ctrl.handleConnection(conn, oneShotHandshakeTimeout)
			return nil
		}

		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 0 // retry forever
		for {
			conn, err := net.Dial("tcp", addr)
			if err == nil {
				bo.Reset()
				ctrl.handleConnection(conn, reliableHandshakeTimeout)
			} else {
				log.Warnf("could not connect to %s: %v", addr, err)
			}
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctrl.ctx.Done():
				return nil
			}
		}
	})
}

// Wait blocks until all connection goroutines exit.
func (ctrl *Controller) Wait() error {
	return ctrl.eg.Wait()
}

func (ctrl *Controller) shutdown() {
	ctrl.cancel()
	ctrl.mu.Lock()
	listeners := ctrl.listeners
	conns := make([]*Connection, 0, len(ctrl.connections))
	for _, c := range ctrl.connections {
		conns = append(conns, c)
	}
	ctrl.mu.Unlock()
	for _, l := range listeners {
		l.Close()
	}
	for _, c := range conns {
		ctrl.closeConnection(c)
	}
}

// handleConnection negotiates HELLO on a fresh transport, then hands
// the connection to the handshake state machine. It returns when the
// connection is abandoned or, once registered, closed.
func (ctrl *Controller) handleConnection(transport net.Conn, timeout time.Duration) {
	stream := util.NewMessageStream(transport, ctrl)
	c := newConnection(ctrl, stream)

	log.Debugln("New connection from", c)

	if err := c.Send(openflow10.NewHello()); err != nil {
		return
	}

	select {
	case msg := <-stream.Inbound:
		m, ok := msg.(*openflow10.Hello)
		if !ok {
			log.Warnf("%s: expected HELLO, got %T", c, msg)
			ctrl.dropConnection(c)
			return
		}
		// The negotiated version is the lower of the two offers.
		version := m.Version
		if version > openflow10.VERSION {
			version = openflow10.VERSION
		}
		if version < openflow10.VERSION {
			log.Warnf("%s: received unsupported ofp version 0x%02x", c, m.Version)
			c.TrySend(openflow10.NewErrorMsg(openflow10.ET_HELLO_FAILED,
				openflow10.HFC_INCOMPATIBLE))
			ctrl.dropConnection(c)
			return
		}
		stream.Version = version
		c.version = version
	case err := <-stream.Error:
		log.Warnf("%s: connection failed before HELLO: %v", c, err)
		ctrl.dropConnection(c)
		return
	case <-time.After(helloTimeout):
		log.Warnf("%s: timed out waiting for HELLO", c)
		ctrl.dropConnection(c)
		return
	}

	if err := newHandshake(ctrl, c, timeout).run(); err != nil {
		log.Warnf("%s: handshake failed: %v", c, err)
		return
	}
	<-c.done
}

// Parse demultiplexes one framed message. HELLO is accepted at any
// version so negotiation can read the peer's offer; every other frame
// must carry the protocol version this controller speaks.
func (ctrl *Controller) Parse(b []byte) (message util.Message, err error) {
	if b[1] == openflow10.Type_Hello {
		message = new(openflow10.Hello)
		err = message.UnmarshalBinary(b)
		return
	}
	if b[0] != openflow10.VERSION {
		return nil, util.ErrBadVersion
	}
	if b[1] == openflow10.Type_Vendor {
		message, err = ofmp.Parse(b)
		if err != ofmp.ErrNotOfmp {
			return
		}
	}
	return openflow10.Parse(b)
}

// registerConn installs c in the connection registry under its dpid.
// If another connection already claims the dpid, the existing
// registration is closed first; its leave event precedes the new join.
func (ctrl *Controller) registerConn(c *Connection) {
	ctrl.mu.Lock()
	old := ctrl.connections[c.dpid]
	ctrl.mu.Unlock()
	if old != nil {
		log.Warnf("closing old connection for dpid %s taken over by %s", c.dpid, c)
		ctrl.closeConnection(old)
	}

	ctrl.mu.Lock()
	ctrl.connections[c.dpid] = c
	if c.dpid != c.mgmtId {
		ctrl.mgmtIds[c.dpid] = c.mgmtId
	}
	ctrl.mu.Unlock()

	c.group = ctrl.core.AssignGroup()
	go c.serve()
}

func (ctrl *Controller) registerSwitchMgr(mgmtId DatapathId, swm *switchmgr.SwitchMgr) {
	ctrl.mu.Lock()
	ctrl.switchMgrs[mgmtId] = swm
	ctrl.mu.Unlock()
}

// dropConnection abandons an unregistered connection. No leave event
// is posted: nothing ever joined.
func (ctrl *Controller) dropConnection(c *Connection) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.stream.Close()
	})
}

// closeConnection tears down a registered connection: registry
// entries removed, pollable stopped, leave event posted.
func (ctrl *Controller) closeConnection(c *Connection) {
	c.closeOnce.Do(func() {
		close(c.done)
		c.stream.Close()

		ctrl.mu.Lock()
		registered := ctrl.connections[c.dpid] == c
		if registered {
			delete(ctrl.connections, c.dpid)
			delete(ctrl.mgmtIds, c.dpid)
			if c.dpid == c.mgmtId {
				delete(ctrl.switchMgrs, c.mgmtId)
			}
		}
		ctrl.mu.Unlock()

		if !registered {
			return
		}
		if c.dpid == c.mgmtId {
			ctrl.core.MainGroup().Post(SwitchMgrLeaveEvent{MgmtId: c.mgmtId})
		} else {
			ctrl.core.MainGroup().Post(DatapathLeaveEvent{Dpid: c.dpid})
		}
	})
}

// CloseConnection closes the registered connection for dpid.
func (ctrl *Controller) CloseConnection(dpid DatapathId) error {
	c, err := ctrl.connection(dpid)
	if err != nil {
		log.Errorf("request to close connection to unknown dpid %s", dpid)
		return err
	}
	ctrl.closeConnection(c)
	return nil
}

func (ctrl *Controller) connection(dpid DatapathId) (*Connection, error) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	c, ok := ctrl.connections[dpid]
	if !ok {
		return nil, ErrDatapathUnknown
	}
	return c, nil
}

// MgmtId returns the management id serving dpid, or false when none
// is known.
func (ctrl *Controller) MgmtId(dpid DatapathId) (DatapathId, bool) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	id, ok := ctrl.mgmtIds[dpid]
	return id, ok
}

// SwitchMgr returns the switch manager registered under mgmtId. A
// miss happens legitimately due to the race between the switch
// connection and the management connection.
func (ctrl *Controller) SwitchMgr(mgmtId DatapathId) (*switchmgr.SwitchMgr, bool) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	swm, ok := ctrl.switchMgrs[mgmtId]
	return swm, ok
}

// ActiveMgmt reports whether any registered switch names mgmtId as
// its manager.
func (ctrl *Controller) ActiveMgmt(mgmtId DatapathId) bool {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	for _, id := range ctrl.mgmtIds {
		if id == mgmtId {
			return true
		}
	}
	return false
}

func (ctrl *Controller) handleEchoRequest(e core.Event) core.Disposition {
	echo := e.(EchoRequestEvent)
	if c, err := ctrl.connection(echo.Dpid); err == nil {
		c.sendEchoReply(echo.Msg)
	}
	return core.Continue
}

func (ctrl *Controller) handleOfmpConfig(e core.Event) core.Disposition {
	ocu := e.(OfmpConfigUpdateEvent)
	if swm, ok := ctrl.SwitchMgr(ocu.MgmtId); ok {
		swm.SetConfig(ocu.NewConfig)
	} else {
		log.Warnf("got config update for unknown switch mgr %s", ocu.MgmtId)
	}
	return core.Continue
}

func (ctrl *Controller) handleOfmpConfigAck(e core.Event) core.Disposition {
	ocua := e.(OfmpConfigUpdateAckEvent)
	if swm, ok := ctrl.SwitchMgr(ocua.MgmtId); ok {
		swm.HandleConfigAck(ocua.Ack)
	} else {
		log.Warnf("got config ack for unknown switch mgr %s", ocua.MgmtId)
	}
	return core.Continue
}

func (ctrl *Controller) handleOfmpResources(e core.Event) core.Disposition {
	oru := e.(OfmpResourcesUpdateEvent)
	if swm, ok := ctrl.SwitchMgr(oru.MgmtId); ok {
		swm.HandleResourcesUpdate(oru.Update)
	} else {
		log.Warnf("got resource update for unknown switch mgr %s", oru.MgmtId)
	}
	return core.Continue
}
