package network_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/andrebq/pingpong/internal/queue"
	"github.com/andrebq/pingpong/network"
	"github.com/andrebq/pingpong/protocol"
	gossh "golang.org/x/crypto/ssh"
)

type (
	// memnet connects nodes without sockets: a send from one node is
	// delivered to the inbox of the dialed node, authored by a raw identity
	// that shares the sender key and uses a fresh port.
	//
	// Nodes are found by key, so any address reaches them. dials counts
	// attempts per dialed address.
	memnet struct {
		nodes map[protocol.PeerID]*queue.Q[protocol.Packet]
		dials map[protocol.NodeIdentity]int
		conns map[protocol.PeerID][]*memconn
		port  int
	}

	memconn struct {
		raw   protocol.NodeIdentity
		inbox *queue.Q[protocol.Packet]
		sent  []protocol.Frame
		fail  error
	}
)

func newIdentity(t *testing.T, addr string) protocol.NodeIdentity {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	key, err := gossh.NewPublicKey(pub)
	if err != nil {
		t.Fatal(err)
	}
	return protocol.NewIdentity(key, addr)
}

func newMemnet() *memnet {
	return &memnet{
		nodes: make(map[protocol.PeerID]*queue.Q[protocol.Packet]),
		dials: make(map[protocol.NodeIdentity]int),
		conns: make(map[protocol.PeerID][]*memconn),
		port:  40000,
	}
}

// register makes id reachable. A nil inbox only records what is sent.
func (n *memnet) register(id protocol.NodeIdentity, inbox *queue.Q[protocol.Packet]) {
	n.nodes[id.ID()] = inbox
}

func (n *memnet) dialer(local protocol.NodeIdentity) network.Dialer {
	return network.DialerFunc(func(ctx context.Context, peer protocol.NodeIdentity) (network.Sender, error) {
		n.dials[peer]++
		inbox, found := n.nodes[peer.ID()]
		if !found {
			return nil, fmt.Errorf("%w: %v is not reachable", protocol.ErrTransportConnect, peer)
		}
		n.port++
		conn := &memconn{
			raw:   local.WithAddr(fmt.Sprintf("127.0.0.1:%d", n.port)),
			inbox: inbox,
		}
		n.conns[peer.ID()] = append(n.conns[peer.ID()], conn)
		return conn, nil
	})
}

func (n *memnet) conn(t *testing.T, peer protocol.NodeIdentity) *memconn {
	conns := n.conns[peer.ID()]
	if len(conns) != 1 {
		t.Fatalf("expected one connection to %v, got %v", peer, len(conns))
	}
	return conns[0]
}

func (c *memconn) Send(ctx context.Context, payload []byte, t protocol.PacketType) error {
	frame := protocol.Frame{Type: t, Payload: append([]byte(nil), payload...)}
	c.sent = append(c.sent, frame)
	if c.fail != nil {
		return c.fail
	}
	if c.inbox != nil {
		return c.inbox.Push(ctx, protocol.Success(c.raw, frame))
	}
	return nil
}

func (c *memconn) Close() error { return nil }

func (c *memconn) types() []protocol.PacketType {
	var out []protocol.PacketType
	for _, f := range c.sent {
		out = append(out, f.Type)
	}
	return out
}

func packetFrom(raw protocol.NodeIdentity, t protocol.PacketType, payload string) protocol.Packet {
	return protocol.Success(raw, protocol.Frame{Type: t, Payload: []byte(payload)})
}

func drain(q *queue.Q[network.Event]) []network.Event {
	var out []network.Event
	for {
		ev, ok := q.TryPop()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}
