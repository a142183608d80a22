package openflow10

// Package openflow10 provides OpenFlow 1.0 structs along with
// MarshalBinary and UnmarshalBinary methods for each.
// OpenFlow Wire Protocol 0x01
//
// Struct documentation is taken from the OpenFlow Switch
// Specification Version 1.0.0
// url https://opennetworking.org/wp-content/uploads/2013/04/openflow-spec-v1.0.0.pdf

import (
	"errors"

	"github.com/vigilnetworks/ofcore/util"
)

const (
	VERSION = 1
)

// ofp_type 1.0
const (
	/* Immutable messages. */
	Type_Hello       = 0
	Type_Error       = 1
	Type_EchoRequest = 2
	Type_EchoReply   = 3
	Type_Vendor      = 4

	/* Switch configuration messages. */
	Type_FeaturesRequest  = 5
	Type_FeaturesReply    = 6
	Type_GetConfigRequest = 7
	Type_GetConfigReply   = 8
	Type_SetConfig        = 9

	/* Asynchronous messages. */
	Type_PacketIn    = 10
	Type_FlowRemoved = 11
	Type_PortStatus  = 12

	/* Controller command messages. */
	Type_PacketOut = 13
	Type_FlowMod   = 14
	Type_PortMod   = 15

	/* Statistics messages. */
	Type_StatsRequest = 16
	Type_StatsReply   = 17

	/* Barrier messages. */
	Type_BarrierRequest = 18
	Type_BarrierReply   = 19

	/* Queue Configuration messages. */
	Type_QueueGetConfigRequest = 20
	Type_QueueGetConfigReply   = 21
)

// ofp_port
const (
	P_MAX = 0xff00

	P_IN_PORT = 0xfff8
	P_TABLE   = 0xfff9

	P_NORMAL     = 0xfffa
	P_FLOOD      = 0xfffb
	P_ALL        = 0xfffc
	P_CONTROLLER = 0xfffd
	P_LOCAL      = 0xfffe
	P_NONE       = 0xffff
)

func Parse(b []byte) (message util.Message, err error) {
	switch b[1] {
	case Type_Hello:
		message = new(Hello)
	case Type_Error:
		message = new(ErrorMsg)
	case Type_EchoRequest:
		message = new(EchoMsg)
	case Type_EchoReply:
		message = new(EchoMsg)
	case Type_Vendor:
		message = new(VendorHeader)
	case Type_FeaturesRequest:
		message = new(Header)
	case Type_FeaturesReply:
		message = new(SwitchFeatures)
	case Type_GetConfigRequest:
		message = new(Header)
	case Type_GetConfigReply:
		message = new(SwitchConfig)
	case Type_SetConfig:
		message = new(SwitchConfig)
	case Type_PacketIn:
		message = new(PacketIn)
	case Type_FlowRemoved:
		message = new(FlowRemoved)
	case Type_PortStatus:
		message = new(PortStatus)
	case Type_PacketOut:
		message = new(PacketOut)
	case Type_FlowMod:
		message = new(FlowMod)
	case Type_StatsRequest:
		message = new(StatsRequest)
	case Type_StatsReply:
		message = new(StatsReply)
	case Type_BarrierRequest:
		message = new(Header)
	case Type_BarrierReply:
		message = new(Header)
	case Type_QueueGetConfigReply:
		message = new(QueueGetConfigReply)
	default:
		return nil, errors.New("an unknown v1.0 packet type was received; discarding")
	}
	err = message.UnmarshalBinary(b)
	return
}
