package network_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/andrebq/pingpong/network"
	"github.com/andrebq/pingpong/protocol"
)

func TestHandshakeResolution(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	peer := newIdentity(t, "127.0.0.1:7002")
	net.register(peer, nil)
	st := network.NewState(local, net.dialer(local), nil)

	raw := peer.WithAddr("127.0.0.1:51234")
	events := st.DispatchInbound(ctx, packetFrom(raw, protocol.Address, peer.String()))
	if !reflect.DeepEqual(events, []network.Event{network.AddChat{Peer: peer}}) {
		t.Fatalf("unexpected events: %#v", events)
	}
	if net.dials[peer] != 1 {
		t.Fatalf("should dial back once, got %v", net.dials[peer])
	}
	reply := net.conn(t, peer)
	if len(reply.sent) != 1 || reply.sent[0].Type != protocol.Address || string(reply.sent[0].Payload) != local.String() {
		t.Fatalf("handshake reply should announce the local address, got %#v", reply.sent)
	}

	events = st.DispatchInbound(ctx, packetFrom(raw, protocol.String, "hi"))
	if len(events) != 1 {
		t.Fatalf("expected one event, got %#v", events)
	}
	add, ok := events[0].(network.AddPacket)
	if !ok || add.Packet.Author != peer || string(add.Packet.Content) != "hi" {
		t.Fatalf("packet should be attributed to %v, got %#v", peer, events[0])
	}
	log, found := st.ConversationLog(peer)
	if !found || len(log) != 1 || log[0].Author != peer {
		t.Fatalf("conversation log should hold the packet, got %#v", log)
	}
	if peers := st.Peers(); len(peers) != 1 || peers[0] != peer {
		t.Fatalf("conversation should use the announced address, got %v", peers)
	}
}

func TestHandshakeRepliesWithUsername(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	peer := newIdentity(t, "127.0.0.1:7002")
	net.register(peer, nil)
	st := network.NewState(local, net.dialer(local), nil)
	st.BroadcastUsername(ctx, "bob")

	st.DispatchInbound(ctx, packetFrom(peer.WithAddr("127.0.0.1:50000"), protocol.Address, peer.String()))
	reply := net.conn(t, peer)
	if !reflect.DeepEqual(reply.types(), []protocol.PacketType{protocol.Address, protocol.Username}) {
		t.Fatalf("unexpected handshake: %v", reply.types())
	}
	if string(reply.sent[1].Payload) != "bob" {
		t.Fatalf("unexpected username: %q", reply.sent[1].Payload)
	}
}

func TestInboundHandshakeSequence(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7002")
	peer := newIdentity(t, "127.0.0.1:7001")
	net.register(peer, nil)
	st := network.NewState(local, net.dialer(local), nil)

	raw := peer.WithAddr("127.0.0.1:50001")
	var events []network.Event
	for _, p := range []protocol.Packet{
		packetFrom(raw, protocol.Address, peer.String()),
		packetFrom(raw, protocol.Username, "alice"),
		packetFrom(raw, protocol.String, "hi"),
	} {
		events = append(events, st.DispatchInbound(ctx, p)...)
	}
	expected := []network.Event{
		network.AddChat{Peer: peer},
		network.ContactName{Peer: peer, Name: "alice"},
		network.AddPacket{Packet: protocol.Packet{Author: peer, Type: protocol.String, Content: []byte("hi")}},
	}
	if !reflect.DeepEqual(events, expected) {
		t.Fatalf("expected %#v got %#v", expected, events)
	}
	log, _ := st.ConversationLog(peer)
	if len(log) != 1 {
		t.Fatalf("usernames are not conversation content, got %#v", log)
	}
}

func TestUnresolvedPacketsAreDropped(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	st := network.NewState(local, net.dialer(local), nil)

	raw := newIdentity(t, "127.0.0.1:50002")
	for _, p := range []protocol.Packet{
		packetFrom(raw, protocol.String, "too early"),
		packetFrom(raw, protocol.Username, "alice"),
		protocol.Failure(raw, protocol.ErrStreamCrashed),
	} {
		if events := st.DispatchInbound(ctx, p); len(events) != 0 {
			t.Fatalf("unexpected events: %#v", events)
		}
	}
	if len(net.dials) != 0 || len(st.Peers()) != 0 {
		t.Fatal("unresolved packets must not create conversations")
	}
}

func TestInvalidAddressIsDropped(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	impersonated := newIdentity(t, "127.0.0.1:7003")
	net.register(impersonated, nil)
	st := network.NewState(local, net.dialer(local), nil)

	raw := newIdentity(t, "127.0.0.1:50003")
	if events := st.DispatchInbound(ctx, packetFrom(raw, protocol.Address, "not an identity")); len(events) != 0 {
		t.Fatalf("unexpected events: %#v", events)
	}
	if events := st.DispatchInbound(ctx, packetFrom(raw, protocol.Address, impersonated.String())); len(events) != 0 {
		t.Fatalf("address from another key should be dropped: %#v", events)
	}
	if events := st.DispatchInbound(ctx, packetFrom(raw, protocol.String, "hi")); len(events) != 0 {
		t.Fatalf("raw identity should remain unresolved: %#v", events)
	}
	if len(net.dials) != 0 {
		t.Fatalf("no connection should be attempted, got %v", net.dials)
	}
}

func TestResolveWithUnreachablePeer(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	peer := newIdentity(t, "127.0.0.1:7002")
	st := network.NewState(local, net.dialer(local), nil)

	raw := peer.WithAddr("127.0.0.1:50004")
	events := st.DispatchInbound(ctx, packetFrom(raw, protocol.Address, peer.String()))
	if len(events) != 1 {
		t.Fatalf("expected one event, got %#v", events)
	}
	nf, ok := events[0].(network.NonFatalError)
	if !ok || !errors.Is(nf.Err, protocol.ErrTransportConnect) || nf.Peer != peer {
		t.Fatalf("expected connect failure, got %#v", events[0])
	}
	if events := st.DispatchInbound(ctx, packetFrom(raw, protocol.String, "hi")); len(events) != 0 {
		t.Fatalf("peer should stay unresolved, got %#v", events)
	}
}

func TestResolvedFailures(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	peer := newIdentity(t, "127.0.0.1:7002")
	net.register(peer, nil)
	st := network.NewState(local, net.dialer(local), nil)

	raw := peer.WithAddr("127.0.0.1:50005")
	st.DispatchInbound(ctx, packetFrom(raw, protocol.Address, peer.String()))

	if events := st.DispatchInbound(ctx, protocol.Failure(raw, protocol.ErrStreamClosed)); len(events) != 0 {
		t.Fatalf("closed streams are not errors: %#v", events)
	}
	events := st.DispatchInbound(ctx, protocol.Failure(raw, protocol.ErrFrameTooLong))
	if len(events) != 1 {
		t.Fatalf("expected one event, got %#v", events)
	}
	if nf, ok := events[0].(network.NonFatalError); !ok || !errors.Is(nf.Err, protocol.ErrFrameTooLong) || nf.Peer != peer {
		t.Fatalf("unexpected event: %#v", events[0])
	}
	if events := st.DispatchInbound(ctx, packetFrom(raw, protocol.Address, peer.String())); len(events) != 0 {
		t.Fatalf("resolved address packets are ignored, got %#v", events)
	}
}

func TestIdempotentConversation(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	peer := newIdentity(t, "127.0.0.1:7002")
	net.register(peer, nil)
	st := network.NewState(local, net.dialer(local), nil)

	isNew, err := st.SendTo(ctx, peer, []byte("one"), protocol.String)
	if err != nil {
		t.Fatal(err)
	} else if !isNew {
		t.Fatal("first send should create the conversation")
	}
	isNew, err = st.SendTo(ctx, peer, []byte("two"), protocol.String)
	if err != nil {
		t.Fatal(err)
	} else if isNew {
		t.Fatal("second send should reuse the conversation")
	}

	if net.dials[peer] != 1 {
		t.Fatalf("expected a single dial, got %v", net.dials[peer])
	}
	conn := net.conn(t, peer)
	if !reflect.DeepEqual(conn.types(), []protocol.PacketType{protocol.Address, protocol.String, protocol.String}) {
		t.Fatalf("handshake should precede the payload: %v", conn.types())
	}
	log, _ := st.ConversationLog(peer)
	if len(log) != 2 || log[0].Author != local || string(log[1].Content) != "two" {
		t.Fatalf("unexpected log: %#v", log)
	}
}

func TestSendToUnreachable(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	peer := newIdentity(t, "127.0.0.1:7002")
	st := network.NewState(local, net.dialer(local), nil)

	isNew, err := st.SendTo(ctx, peer, []byte("hi"), protocol.String)
	if !errors.Is(err, protocol.ErrTransportConnect) {
		t.Fatalf("expected connect error, got %v", err)
	}
	if isNew {
		t.Fatal("no conversation should exist")
	}
	if _, found := st.ConversationLog(peer); found {
		t.Fatal("no conversation should exist")
	}
}

func TestSendFailureKeepsConversation(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	peer := newIdentity(t, "127.0.0.1:7002")
	net.register(peer, nil)
	st := network.NewState(local, net.dialer(local), nil)

	if _, err := st.SendTo(ctx, peer, []byte("one"), protocol.String); err != nil {
		t.Fatal(err)
	}
	net.conn(t, peer).fail = protocol.ErrStreamClosed
	isNew, err := st.SendTo(ctx, peer, []byte("two"), protocol.String)
	if !errors.Is(err, protocol.ErrStreamClosed) || isNew {
		t.Fatalf("unexpected result %v %v", isNew, err)
	}
	log, found := st.ConversationLog(peer)
	if !found || len(log) != 1 {
		t.Fatalf("failed sends are not logged: %#v", log)
	}
}

func TestBroadcastFanOut(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	st := network.NewState(local, net.dialer(local), nil)

	var peers []protocol.NodeIdentity
	for _, addr := range []string{"127.0.0.1:7002", "127.0.0.1:7003", "127.0.0.1:7004"} {
		peer := newIdentity(t, addr)
		net.register(peer, nil)
		if _, err := st.SendTo(ctx, peer, []byte("hello"), protocol.String); err != nil {
			t.Fatal(err)
		}
		peers = append(peers, peer)
	}
	net.conn(t, peers[1]).fail = protocol.ErrStreamCrashed

	st.BroadcastUsername(ctx, "alice")

	for _, p := range peers {
		conn := net.conn(t, p)
		last := conn.sent[len(conn.sent)-1]
		if len(conn.sent) != 3 || last.Type != protocol.Username || string(last.Payload) != "alice" {
			t.Fatalf("%v should receive exactly one username, got %#v", p, conn.sent)
		}
	}
	var name string
	if !st.Username().Get(&name) || name != "alice" {
		t.Fatalf("local username should be updated, got %q", name)
	}
}

func TestSameKeyAnotherAddress(t *testing.T) {
	ctx := context.Background()
	net := newMemnet()
	local := newIdentity(t, "127.0.0.1:7001")
	peer := newIdentity(t, "127.0.0.1:7002")
	net.register(peer, nil)
	st := network.NewState(local, net.dialer(local), nil)

	alias := peer.WithAddr("localhost:7002")
	isNew, err := st.SendTo(ctx, alias, []byte("hi"), protocol.String)
	if err != nil {
		t.Fatal(err)
	} else if !isNew {
		t.Fatal("first send should create the conversation")
	}

	raw := peer.WithAddr("127.0.0.1:50006")
	var events []network.Event
	for _, p := range []protocol.Packet{
		packetFrom(raw, protocol.Address, peer.String()),
		packetFrom(raw, protocol.String, "reply"),
	} {
		events = append(events, st.DispatchInbound(ctx, p)...)
	}
	expected := []network.Event{
		network.AddPacket{Packet: protocol.Packet{Author: peer, Type: protocol.String, Content: []byte("reply")}},
	}
	if !reflect.DeepEqual(events, expected) {
		t.Fatalf("expected %#v got %#v", expected, events)
	}

	if peers := st.Peers(); len(peers) != 1 || peers[0] != peer {
		t.Fatalf("expected a single conversation at the announced address, got %v", peers)
	}
	if net.dials[alias] != 1 || net.dials[peer] != 0 {
		t.Fatalf("the announced address should not be dialed again, got %v", net.dials)
	}
	conn := net.conn(t, peer)
	if !reflect.DeepEqual(conn.types(), []protocol.PacketType{protocol.Address, protocol.String, protocol.Address}) {
		t.Fatalf("handshake reply should reuse the connection: %v", conn.types())
	}
	for _, id := range []protocol.NodeIdentity{alias, peer} {
		log, found := st.ConversationLog(id)
		if !found || len(log) != 2 || log[0].Author != local || log[1].Author != peer {
			t.Fatalf("%v: both directions belong to one log, got %#v", id, log)
		}
	}
}
