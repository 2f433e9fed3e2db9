package node_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/andrebq/pingpong/cmd/pingpong/node"
	"github.com/andrebq/pingpong/network"
	"github.com/andrebq/pingpong/protocol"
)

func TestEncodeEvent(t *testing.T) {
	alice := newIdentity(t, "127.0.0.1:7001")
	bob := newIdentity(t, "127.0.0.1:7002")
	hi := protocol.Packet{Author: alice, Type: protocol.String, Content: []byte("hi")}

	for _, tc := range []struct {
		event    network.Event
		expected node.WireEvent
	}{
		{network.AddChat{Peer: bob}, node.WireEvent{Kind: "add_chat", Peer: bob.String()}},
		{network.ContactName{Peer: bob, Name: "bob"}, node.WireEvent{Kind: "contact_name", Peer: bob.String(), Name: "bob"}},
		{network.NonFatalError{Peer: bob, Err: errors.New("boom")}, node.WireEvent{Kind: "error", Peer: bob.String(), Error: "boom"}},
		{network.AddPacket{Packet: hi}, node.WireEvent{Kind: "add_packet", Peer: alice.String(), Packets: []node.WirePacket{
			{Author: alice.String(), Type: "string", Content: "hi"},
		}}},
		{network.ConversationRecord{Peer: alice, Packets: []protocol.Packet{hi}}, node.WireEvent{Kind: "conversation", Peer: alice.String(), Packets: []node.WirePacket{
			{Author: alice.String(), Type: "string", Content: "hi"},
		}}},
	} {
		if actual := node.EncodeEvent(tc.event); !reflect.DeepEqual(actual, tc.expected) {
			t.Errorf("%T: expected %#v got %#v", tc.event, tc.expected, actual)
		}
	}
}
