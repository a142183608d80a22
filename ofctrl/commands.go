package ofctrl

import (
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/vigilnetworks/ofcore/openflow10"
	"github.com/vigilnetworks/ofcore/util"
)

// SendOpenflowCommand sends msg to the switch registered under dpid.
// Returns ErrDatapathUnknown for an unregistered dpid; when block is
// false, ErrWouldBlock if the send queue is full.
func (ctrl *Controller) SendOpenflowCommand(dpid DatapathId, msg util.Message, block bool) error {
	c, err := ctrl.connection(dpid)
	if err != nil {
		log.Errorf("no datapath with id %s registered", dpid)
		return err
	}
	if block {
		return c.Send(msg)
	}
	return c.TrySend(msg)
}

// SendPacketOut sends packet data out outPort of switch dpid. With a
// nil action list the packet is emitted on outPort; when outPort is
// P_FLOOD the packet will not be sent back out inPort.
func (ctrl *Controller) SendPacketOut(dpid DatapathId, packet []byte,
	outPort, inPort uint16, actions []openflow10.Action, block bool) error {
	p := openflow10.NewPacketOut()
	p.InPort = inPort
	p.Data = packet
	if actions == nil {
		actions = []openflow10.Action{openflow10.NewActionOutput(outPort)}
	}
	for _, a := range actions {
		p.AddAction(a)
	}
	return ctrl.SendOpenflowCommand(dpid, p, block)
}

// SendBufferedPacketOut emits the switch-buffered packet bufferId.
func (ctrl *Controller) SendBufferedPacketOut(dpid DatapathId, bufferId uint32,
	outPort, inPort uint16, actions []openflow10.Action, block bool) error {
	p := openflow10.NewPacketOut()
	p.BufferId = bufferId
	p.InPort = inPort
	if actions == nil {
		actions = []openflow10.Action{openflow10.NewActionOutput(outPort)}
	}
	for _, a := range actions {
		p.AddAction(a)
	}
	return ctrl.SendOpenflowCommand(dpid, p, block)
}

// SendFlowCommand installs, modifies or deletes flow table entries.
func (ctrl *Controller) SendFlowCommand(dpid DatapathId, command uint16,
	match *openflow10.Match, idleTimeout, hardTimeout uint16,
	actions []openflow10.Action, cookie uint64, priority uint16,
	bufferId uint32, block bool) error {
	fm := openflow10.NewFlowMod()
	fm.Command = command
	if match != nil {
		fm.Match = *match
	}
	fm.IdleTimeout = idleTimeout
	fm.HardTimeout = hardTimeout
	fm.Cookie = cookie
	fm.Priority = priority
	fm.BufferId = bufferId
	for _, a := range actions {
		fm.AddAction(a)
	}
	return ctrl.SendOpenflowCommand(dpid, fm, block)
}

// SendStatsRequest issues a statistics request of the given subtype.
func (ctrl *Controller) SendStatsRequest(dpid DatapathId, statsType uint16,
	body []byte, block bool) error {
	return ctrl.SendOpenflowCommand(dpid, openflow10.NewStatsRequest(statsType, body), block)
}

// SendBarrierRequest asks the switch to finish processing everything
// sent before it.
func (ctrl *Controller) SendBarrierRequest(dpid DatapathId, block bool) error {
	return ctrl.SendOpenflowCommand(dpid, openflow10.NewBarrierRequest(), block)
}

// SendAddSnat configures source NAT on one port of switch dpid.
func (ctrl *Controller) SendAddSnat(dpid DatapathId, port uint16,
	ipStart, ipEnd net.IP, tcpStart, tcpEnd, udpStart, udpEnd uint16,
	mac net.HardwareAddr, macTimeout uint16) error {
	c, err := ctrl.connection(dpid)
	if err != nil {
		return err
	}
	return c.SendAddSnat(port, ipStart, ipEnd, tcpStart, tcpEnd, udpStart, udpEnd, mac, macTimeout)
}

// SendDelSnat removes source NAT from one port of switch dpid.
func (ctrl *Controller) SendDelSnat(dpid DatapathId, port uint16) error {
	c, err := ctrl.connection(dpid)
	if err != nil {
		return err
	}
	return c.SendDelSnat(port)
}

// SendSwitchCommand invokes a switch-resident command by name.
func (ctrl *Controller) SendSwitchCommand(dpid DatapathId, command string, args []string) error {
	c, err := ctrl.connection(dpid)
	if err != nil {
		return err
	}
	if err := c.SendRemoteCommand(command, args); err != nil {
		log.Warnf("could not send remote command: %v", err)
		return err
	}
	return nil
}

// SwitchReset reboots the switch.
func (ctrl *Controller) SwitchReset(dpid DatapathId) error {
	return ctrl.SendSwitchCommand(dpid, "reboot", nil)
}

// SwitchUpdate triggers the switch's software update.
func (ctrl *Controller) SwitchUpdate(dpid DatapathId) error {
	return ctrl.SendSwitchCommand(dpid, "update", nil)
}

// ControllerIP returns the address the switch reached this controller
// on, or nil when dpid is unknown.
func (ctrl *Controller) ControllerIP(dpid DatapathId) net.IP {
	c, err := ctrl.connection(dpid)
	if err != nil {
		return nil
	}
	return c.LocalIP()
}

// SwitchIP returns the switch's address, or nil when dpid is unknown.
func (ctrl *Controller) SwitchIP(dpid DatapathId) net.IP {
	c, err := ctrl.connection(dpid)
	if err != nil {
		return nil
	}
	return c.RemoteIP()
}
