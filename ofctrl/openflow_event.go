package ofctrl

import (
	log "github.com/sirupsen/logrus"

	"github.com/vigilnetworks/ofcore/core"
	"github.com/vigilnetworks/ofcore/ofmp"
	"github.com/vigilnetworks/ofcore/openflow10"
	"github.com/vigilnetworks/ofcore/switchmgr"
	"github.com/vigilnetworks/ofcore/util"
)

// messageEvents turns one inbound frame into the events it produces:
// the typed event, if the message maps to one, followed by the
// generic OpenflowMsg event every frame produces.
func (c *Connection) messageEvents(msg util.Message) []core.Event {
	var events []core.Event
	if e := c.typedEvent(msg); e != nil {
		events = append(events, e)
	}
	return append(events, OpenflowMsgEvent{Dpid: c.dpid, Msg: msg})
}

func (c *Connection) typedEvent(msg util.Message) core.Event {
	switch m := msg.(type) {
	case *openflow10.PacketIn:
		log.Debugf("received packet-in event from %s (len:%d)", c.dpid, len(m.Data))
		return PacketInEvent{Dpid: c.dpid, Msg: m}

	case *openflow10.FlowRemoved:
		log.Debugf("received flow expired event from %s", c.dpid)
		return FlowRemovedEvent{Dpid: c.dpid, Msg: m}

	case *openflow10.PortStatus:
		log.Debugf("received port status event from %s", c.dpid)
		return PortStatusEvent{Dpid: c.dpid, Msg: m}

	case *openflow10.SwitchFeatures:
		log.Errorf("ignoring additional features reply event from %s", c.dpid)
		return nil

	case *openflow10.StatsReply:
		return c.statsEvent(m)

	case *openflow10.QueueGetConfigReply:
		return QueueConfigInEvent{Dpid: c.dpid, Msg: m}

	case *openflow10.EchoMsg:
		switch m.Header.Type {
		case openflow10.Type_EchoRequest:
			log.Debugf("received echo-request event from %s (len:%d)", c.dpid, len(m.Data))
			return EchoRequestEvent{Dpid: c.dpid, Msg: m}
		default:
			// An echo reply's only effect is resetting the idle
			// probe, which every inbound frame already does.
			return nil
		}

	case *openflow10.Hello:
		return nil

	case *openflow10.SwitchConfig:
		log.Debugf("received switch config from %s", c.dpid)
		return nil

	case *openflow10.ErrorMsg:
		log.Errorf("received OpenFlow error packet from dpid=%s: type=%d, code=%d, %d bytes of data",
			c.dpid, m.Type, m.Code, len(m.Data))
		return ErrorMsgEvent{Dpid: c.dpid, Msg: m}

	case *openflow10.Header:
		switch m.Type {
		case openflow10.Type_BarrierReply:
			log.Debugf("received barrier reply from %s", c.dpid)
			return BarrierReplyEvent{Dpid: c.dpid, Xid: m.Xid}
		default:
			log.Errorf("unhandled openflow packet type %d from %s", m.Type, c.dpid)
			return nil
		}

	case *openflow10.VendorHeader:
		log.Warnf("unknown vendor 0x%08x from %s", m.Vendor, c.dpid)
		return nil

	case *ofmp.CapabilityReply:
		log.Warnf("ignoring capability reply outside handshake from %s", c.dpid)
		return nil

	case *ofmp.ResourcesUpdate:
		c.reassembler.Flush(m.Header.Xid)
		return OfmpResourcesUpdateEvent{MgmtId: c.mgmtId, Update: m}

	case *ofmp.ConfigUpdate:
		c.reassembler.Flush(m.Header.Xid)
		return c.configUpdateEvent(m)

	case *ofmp.ConfigUpdateAck:
		c.reassembler.Flush(m.Header.Xid)
		return OfmpConfigUpdateAckEvent{MgmtId: c.mgmtId, Ack: m}

	case *ofmp.ErrorMsg:
		c.reassembler.Flush(m.Header.Xid)
		log.Warnf("received ofmp error with type %d and code %d", m.ErrType, m.Code)
		return nil

	case *ofmp.ExtendedData:
		inner, err := c.reassembler.Add(m)
		if err != nil {
			log.Warnf("%s: %v", c, err)
			return nil
		}
		if inner == nil {
			return nil
		}
		return c.typedEvent(inner)

	case *ofmp.OfmpHeader:
		log.Warnf("unsupported ofmp type %d from %s", m.Type, c.dpid)
		return nil

	default:
		log.Errorf("unhandled openflow message %T from %s", msg, c.dpid)
		return nil
	}
}

func (c *Connection) configUpdateEvent(m *ofmp.ConfigUpdate) core.Event {
	if m.Format != ofmp.OFMPCOF_SIMPLE {
		log.Warnf("unsupported config format: %d", m.Format)
		return nil
	}
	cfg := new(switchmgr.Cfg)
	cfg.Load(m.Data)
	return OfmpConfigUpdateEvent{MgmtId: c.mgmtId, NewConfig: cfg, Cookie: m.Cookie}
}

// statsEvent dispatches a stats reply by its subtype. Replies whose
// body does not divide into the fixed-size record are logged and
// dropped; the connection stays up.
func (c *Connection) statsEvent(m *openflow10.StatsReply) core.Event {
	log.Debugf("received stats reply from %s", c.dpid)
	switch m.Type {
	case openflow10.ST_DESC:
		if len(m.Body) != openflow10.DescStatsLen {
			log.Errorf("desc stats reply has invalid length %d", len(m.Body))
			return nil
		}
		var desc openflow10.DescStats
		if err := desc.UnmarshalBinary(m.Body); err != nil {
			return nil
		}
		return DescStatsInEvent{Dpid: c.dpid, Desc: desc}

	case openflow10.ST_TABLE:
		if len(m.Body)%openflow10.TableStatsLen != 0 {
			log.Errorf("table stats reply has invalid length %d", len(m.Body))
			return nil
		}
		var tables []openflow10.TableStats
		for off := 0; off < len(m.Body); off += openflow10.TableStatsLen {
			var ts openflow10.TableStats
			if err := ts.UnmarshalBinary(m.Body[off:]); err != nil {
				return nil
			}
			tables = append(tables, ts)
		}
		return TableStatsInEvent{Dpid: c.dpid, Tables: tables}

	case openflow10.ST_PORT:
		if len(m.Body)%openflow10.PortStatsLen != 0 {
			log.Errorf("port stats reply has invalid length %d", len(m.Body))
			return nil
		}
		var ports []openflow10.PortStats
		for off := 0; off < len(m.Body); off += openflow10.PortStatsLen {
			var ps openflow10.PortStats
			if err := ps.UnmarshalBinary(m.Body[off:]); err != nil {
				return nil
			}
			ports = append(ports, ps)
		}
		return PortStatsInEvent{Dpid: c.dpid, Ports: ports}

	case openflow10.ST_AGGREGATE:
		if len(m.Body) != openflow10.AggregateStatsLen {
			log.Errorf("aggregate stats reply has invalid length %d", len(m.Body))
			return nil
		}
		var stats openflow10.AggregateStats
		if err := stats.UnmarshalBinary(m.Body); err != nil {
			return nil
		}
		return AggregateStatsInEvent{Dpid: c.dpid, Stats: stats}

	case openflow10.ST_FLOW:
		var flows []openflow10.FlowStats
		for off := 0; off < len(m.Body); {
			var fs openflow10.FlowStats
			if err := fs.UnmarshalBinary(m.Body[off:]); err != nil {
				log.Errorf("flow stats reply has invalid length %d", len(m.Body))
				return nil
			}
			if fs.Length == 0 {
				break
			}
			flows = append(flows, fs)
			off += int(fs.Length)
		}
		return FlowStatsInEvent{
			Dpid:  c.dpid,
			Flows: flows,
			More:  m.Flags&openflow10.SF_REPLY_MORE != 0,
		}

	case openflow10.ST_QUEUE:
		if len(m.Body)%openflow10.QueueStatsLen != 0 {
			log.Errorf("queue stats reply has invalid length %d", len(m.Body))
			return nil
		}
		var queues []openflow10.QueueStats
		for off := 0; off < len(m.Body); off += openflow10.QueueStatsLen {
			var qs openflow10.QueueStats
			if err := qs.UnmarshalBinary(m.Body[off:]); err != nil {
				return nil
			}
			queues = append(queues, qs)
		}
		return QueueStatsInEvent{Dpid: c.dpid, Queues: queues}

	default:
		log.Warnf("unhandled stats reply type %d", m.Type)
		return nil
	}
}
