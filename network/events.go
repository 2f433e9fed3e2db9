package network

import "github.com/andrebq/pingpong/protocol"

type (
	// Event is produced by the driver for the presentation layer.
	Event interface {
		isEvent()
	}

	// AddPacket carries a packet that became part of a conversation, either
	// received from Packet.Author or sent by the local node.
	AddPacket struct {
		Packet protocol.Packet
	}

	// ConversationRecord answers RequestConversation. Packets is empty when
	// there is no conversation with Peer.
	ConversationRecord struct {
		Peer    protocol.NodeIdentity
		Packets []protocol.Packet
	}

	// NonFatalError reports a failure scoped to one peer or operation. Peer is
	// zero when the failure is not tied to a known identity.
	NonFatalError struct {
		Peer protocol.NodeIdentity
		Err  error
	}

	// AddChat announces a new conversation.
	AddChat struct {
		Peer protocol.NodeIdentity
	}

	ContactName struct {
		Peer protocol.NodeIdentity
		Name string
	}
)

func (AddPacket) isEvent()          {}
func (ConversationRecord) isEvent() {}
func (NonFatalError) isEvent()      {}
func (AddChat) isEvent()            {}
func (ContactName) isEvent()        {}

type (
	// Task is a request from the presentation layer to the driver.
	Task interface {
		isTask()
	}

	RequestConversation struct {
		Peer protocol.NodeIdentity
	}

	SendMessage struct {
		Peer    protocol.NodeIdentity
		Payload []byte
		Type    protocol.PacketType
	}

	SetUsername struct {
		Name string
	}
)

func (RequestConversation) isTask() {}
func (SendMessage) isTask()         {}
func (SetUsername) isTask()         {}
