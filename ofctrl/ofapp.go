package ofctrl

import (
	log "github.com/sirupsen/logrus"

	"github.com/vigilnetworks/ofcore/core"
)

// OfApp is a minimal application over the event bus: it watches
// switches come and go and logs the packets they punt. Serves as the
// template for components built on the controller core.
type OfApp struct {
	ctrl *Controller

	// Datapaths currently joined.
	switches map[DatapathId]bool
}

func NewOfApp(ctrl *Controller) *OfApp {
	return &OfApp{ctrl: ctrl, switches: make(map[DatapathId]bool)}
}

// Register subscribes the app's handlers after the controller's own.
func (o *OfApp) Register(c *core.Core) {
	c.RegisterHandler(EventDatapathJoin, o.handleJoin, 500)
	c.RegisterHandler(EventDatapathLeave, o.handleLeave, 500)
	c.RegisterHandler(EventSwitchMgrJoin, o.handleMgrJoin, 500)
	c.RegisterHandler(EventPacketIn, o.handlePacketIn, 500)
}

func (o *OfApp) handleJoin(e core.Event) core.Disposition {
	join := e.(DatapathJoinEvent)
	log.Infof("App: switch connected: %s (%d buffers, %d tables)",
		join.Dpid, join.Features.Buffers, join.Features.NumTables)
	o.switches[join.Dpid] = true
	return core.Continue
}

func (o *OfApp) handleLeave(e core.Event) core.Disposition {
	leave := e.(DatapathLeaveEvent)
	log.Infof("App: switch disconnected: %s", leave.Dpid)
	delete(o.switches, leave.Dpid)
	return core.Continue
}

func (o *OfApp) handleMgrJoin(e core.Event) core.Disposition {
	join := e.(SwitchMgrJoinEvent)
	if swm, ok := o.ctrl.SwitchMgr(join.MgmtId); ok {
		log.Infof("App: manager connected: %s (%d ports)",
			join.MgmtId, len(swm.PortNames()))
	}
	return core.Continue
}

func (o *OfApp) handlePacketIn(e core.Event) core.Disposition {
	pkt := e.(PacketInEvent)
	log.Debugf("App: received packet: %d bytes on port %d of %s",
		len(pkt.Msg.Data), pkt.Msg.InPort, pkt.Dpid)
	return core.Continue
}
