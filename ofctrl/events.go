package ofctrl

import (
	"fmt"

	"github.com/vigilnetworks/ofcore/ofmp"
	"github.com/vigilnetworks/ofcore/openflow10"
	"github.com/vigilnetworks/ofcore/switchmgr"
	"github.com/vigilnetworks/ofcore/util"
)

// DatapathId identifies a switch datapath, learned from its features
// reply. A management endpoint's id shares the same space.
type DatapathId uint64

func (d DatapathId) String() string {
	return fmt.Sprintf("%016x", uint64(d))
}

// Event names dispatched by the controller.
const (
	EventDatapathJoin       = "datapath_join"
	EventDatapathLeave      = "datapath_leave"
	EventSwitchMgrJoin      = "switch_mgr_join"
	EventSwitchMgrLeave     = "switch_mgr_leave"
	EventPacketIn           = "packet_in"
	EventPortStatus         = "port_status"
	EventFlowRemoved        = "flow_removed"
	EventBarrierReply       = "barrier_reply"
	EventEchoRequest        = "echo_request"
	EventErrorMsg           = "error_msg"
	EventDescStatsIn        = "desc_stats_in"
	EventTableStatsIn       = "table_stats_in"
	EventPortStatsIn        = "port_stats_in"
	EventAggregateStatsIn   = "aggregate_stats_in"
	EventFlowStatsIn        = "flow_stats_in"
	EventQueueStatsIn       = "queue_stats_in"
	EventQueueConfigIn      = "queue_config_in"
	EventOfmpConfigUpdate    = "ofmp_config_update"
	EventOfmpConfigUpdateAck = "ofmp_config_update_ack"
	EventOfmpResourcesUpdate = "ofmp_resources_update"
	EventOpenflowMsg         = "openflow_msg"
)

// DatapathJoinEvent announces a registered switch. It owns the
// features reply the switch presented during its handshake.
type DatapathJoinEvent struct {
	Dpid     DatapathId
	Features *openflow10.SwitchFeatures
}

func (DatapathJoinEvent) EventName() string { return EventDatapathJoin }

type DatapathLeaveEvent struct {
	Dpid DatapathId
}

func (DatapathLeaveEvent) EventName() string { return EventDatapathLeave }

type SwitchMgrJoinEvent struct {
	MgmtId DatapathId
}

func (SwitchMgrJoinEvent) EventName() string { return EventSwitchMgrJoin }

type SwitchMgrLeaveEvent struct {
	MgmtId DatapathId
}

func (SwitchMgrLeaveEvent) EventName() string { return EventSwitchMgrLeave }

type PacketInEvent struct {
	Dpid DatapathId
	Msg  *openflow10.PacketIn
}

func (PacketInEvent) EventName() string { return EventPacketIn }

type PortStatusEvent struct {
	Dpid DatapathId
	Msg  *openflow10.PortStatus
}

func (PortStatusEvent) EventName() string { return EventPortStatus }

type FlowRemovedEvent struct {
	Dpid DatapathId
	Msg  *openflow10.FlowRemoved
}

func (FlowRemovedEvent) EventName() string { return EventFlowRemoved }

type BarrierReplyEvent struct {
	Dpid DatapathId
	Xid  uint32
}

func (BarrierReplyEvent) EventName() string { return EventBarrierReply }

type EchoRequestEvent struct {
	Dpid DatapathId
	Msg  *openflow10.EchoMsg
}

func (EchoRequestEvent) EventName() string { return EventEchoRequest }

type ErrorMsgEvent struct {
	Dpid DatapathId
	Msg  *openflow10.ErrorMsg
}

func (ErrorMsgEvent) EventName() string { return EventErrorMsg }

type DescStatsInEvent struct {
	Dpid DatapathId
	Desc openflow10.DescStats
}

func (DescStatsInEvent) EventName() string { return EventDescStatsIn }

type TableStatsInEvent struct {
	Dpid   DatapathId
	Tables []openflow10.TableStats
}

func (TableStatsInEvent) EventName() string { return EventTableStatsIn }

type PortStatsInEvent struct {
	Dpid  DatapathId
	Ports []openflow10.PortStats
}

func (PortStatsInEvent) EventName() string { return EventPortStatsIn }

type AggregateStatsInEvent struct {
	Dpid  DatapathId
	Stats openflow10.AggregateStats
}

func (AggregateStatsInEvent) EventName() string { return EventAggregateStatsIn }

type FlowStatsInEvent struct {
	Dpid  DatapathId
	Flows []openflow10.FlowStats
	More  bool
}

func (FlowStatsInEvent) EventName() string { return EventFlowStatsIn }

type QueueStatsInEvent struct {
	Dpid   DatapathId
	Queues []openflow10.QueueStats
}

func (QueueStatsInEvent) EventName() string { return EventQueueStatsIn }

type QueueConfigInEvent struct {
	Dpid DatapathId
	Msg  *openflow10.QueueGetConfigReply
}

func (QueueConfigInEvent) EventName() string { return EventQueueConfigIn }

// OfmpConfigUpdateEvent carries a configuration pushed by the switch.
// These messages arrive on the management channel, so the id is the
// management id.
type OfmpConfigUpdateEvent struct {
	MgmtId    DatapathId
	NewConfig *switchmgr.Cfg
	Cookie    ofmp.Cookie
}

func (OfmpConfigUpdateEvent) EventName() string { return EventOfmpConfigUpdate }

type OfmpConfigUpdateAckEvent struct {
	MgmtId DatapathId
	Ack    *ofmp.ConfigUpdateAck
}

func (OfmpConfigUpdateAckEvent) EventName() string { return EventOfmpConfigUpdateAck }

type OfmpResourcesUpdateEvent struct {
	MgmtId DatapathId
	Update *ofmp.ResourcesUpdate
}

func (OfmpResourcesUpdateEvent) EventName() string { return EventOfmpResourcesUpdate }

// OpenflowMsgEvent carries every inbound frame, typed but otherwise
// uninterpreted, for components that want the raw message stream.
type OpenflowMsgEvent struct {
	Dpid DatapathId
	Msg  util.Message
}

func (OpenflowMsgEvent) EventName() string { return EventOpenflowMsg }
