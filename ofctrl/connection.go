package ofctrl

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vigilnetworks/ofcore/core"
	"github.com/vigilnetworks/ofcore/ofmp"
	"github.com/vigilnetworks/ofcore/openflow10"
	"github.com/vigilnetworks/ofcore/util"
)

// probeInterval is how long a connection may stay silent before the
// controller probes it with an echo request, and how long a probe may
// go unanswered before the connection is dropped.
const probeInterval = 15 * time.Second

// Connection is one switch connection. It owns its transport
// exclusively; sends go through the stream's outbound queue, receives
// through the demultiplexer in serve.
type Connection struct {
	ctrl   *Controller
	stream *util.MessageStream
	group  *core.Group
	name   string

	version uint8
	dpid    DatapathId // set after features reply
	mgmtId  DatapathId // set after capability reply

	// Steady-state reassembly slot for fragmented management
	// messages. The handshake keeps its own.
	reassembler ofmp.Reassembler

	lastRecv atomic.Int64 // unix nanos of the last inbound frame
	probing  atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(ctrl *Controller, stream *util.MessageStream) *Connection {
	c := &Connection{
		ctrl:   ctrl,
		stream: stream,
		name:   addrString(stream.GetAddr()),
		done:   make(chan struct{}),
	}
	c.lastRecv.Store(time.Now().UnixNano())
	return c
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return "?"
	}
	return addr.String()
}

func (c *Connection) String() string {
	return c.name
}

func (c *Connection) Dpid() DatapathId {
	return c.dpid
}

func (c *Connection) MgmtId() DatapathId {
	return c.mgmtId
}

func (c *Connection) Version() uint8 {
	return c.version
}

// Send queues msg, blocking until there is room.
func (c *Connection) Send(msg util.Message) error {
	select {
	case c.stream.Outbound <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// TrySend queues msg without blocking.
func (c *Connection) TrySend(msg util.Message) error {
	select {
	case c.stream.Outbound <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrWouldBlock
	}
}

// sendDeadline queues msg, giving up at deadline.
func (c *Connection) sendDeadline(msg util.Message, deadline time.Time) error {
	select {
	case c.stream.Outbound <- msg:
		return nil
	case <-time.After(time.Until(deadline)):
		return ErrTimeout
	case <-c.done:
		return ErrClosed
	}
}

// SendOfmp implements switchmgr.Sender.
func (c *Connection) SendOfmp(msg util.Message) error {
	return c.TrySend(msg)
}

// WouldBlock implements switchmgr.Sender.
func (c *Connection) WouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}

func (c *Connection) noteActivity() {
	c.lastRecv.Store(time.Now().UnixNano())
	c.probing.Store(false)
}

// serve is the registered connection's receive loop: every inbound
// frame becomes events posted to the connection's dispatch group, in
// arrival order.
func (c *Connection) serve() {
	probe := time.NewTicker(probeInterval)
	defer probe.Stop()

	for {
		select {
		case msg := <-c.stream.Inbound:
			c.noteActivity()
			for _, e := range c.messageEvents(msg) {
				c.group.Post(e)
			}
		case err := <-c.stream.Error:
			if errors.Is(err, util.ErrBadVersion) {
				log.Warnf("%s: protocol version changed mid-connection", c)
			} else {
				log.Warnf("%s: disconnected (%v)", c, err)
			}
			c.ctrl.closeConnection(c)
			return
		case <-probe.C:
			if c.idleCheck() {
				return
			}
		case <-c.done:
			return
		}
	}
}

// idleCheck sends an echo probe on first expiry and drops the
// connection when the probe itself goes unanswered. Returns true when
// the connection was dropped.
func (c *Connection) idleCheck() bool {
	idle := time.Since(time.Unix(0, c.lastRecv.Load()))
	if idle < probeInterval {
		return false
	}
	if c.probing.Load() {
		log.Warnf("%s: no response to idle probe after %v, disconnecting", c, idle)
		c.ctrl.closeConnection(c)
		return true
	}
	c.probing.Store(true)
	if err := c.TrySend(openflow10.NewEchoRequest()); err != nil {
		log.Warnf("%s: could not send idle probe: %v", c, err)
	}
	return false
}

func (c *Connection) sendEchoReply(req *openflow10.EchoMsg) {
	if err := c.TrySend(openflow10.NewEchoReply(req)); err != nil {
		log.Warnf("%s: could not send echo reply: %v", c, err)
	}
}

// LocalIP is the controller address the switch reached us on.
func (c *Connection) LocalIP() net.IP {
	if addr, ok := c.stream.GetLocalAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return nil
}

// RemoteIP is the switch's address.
func (c *Connection) RemoteIP() net.IP {
	if addr, ok := c.stream.GetAddr().(*net.TCPAddr); ok {
		return addr.IP
	}
	return nil
}

// SendRemoteCommand issues a switch-resident command, argv style.
func (c *Connection) SendRemoteCommand(command string, args []string) error {
	return c.TrySend(ofmp.NewCommandRequest(command, args))
}

// SendAddSnat installs source-NAT configuration for one switch port.
func (c *Connection) SendAddSnat(port uint16, ipStart, ipEnd net.IP,
	tcpStart, tcpEnd, udpStart, udpEnd uint16,
	mac net.HardwareAddr, macTimeout uint16) error {
	s := ofmp.NewSnatConfig()
	s.Command = ofmp.SnatAdd
	s.Port = port
	s.IPStart = ipStart
	s.IPEnd = ipEnd
	s.TcpStart = tcpStart
	s.TcpEnd = tcpEnd
	s.UdpStart = udpStart
	s.UdpEnd = udpEnd
	s.MacAddr = mac
	s.MacTimeout = macTimeout
	return c.TrySend(s)
}

// SendDelSnat removes the port's source-NAT configuration.
func (c *Connection) SendDelSnat(port uint16) error {
	s := ofmp.NewSnatConfig()
	s.Command = ofmp.SnatDelete
	s.Port = port
	return c.TrySend(s)
}
