package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/andrebq/pingpong/network"
	"github.com/andrebq/pingpong/protocol"
	"github.com/go-zeromq/zmq4"
)

type (
	// WireEvent is the JSON form of a network.Event on the events feed.
	WireEvent struct {
		Kind    string       `json:"kind"`
		Peer    string       `json:"peer,omitempty"`
		Name    string       `json:"name,omitempty"`
		Error   string       `json:"error,omitempty"`
		Packets []WirePacket `json:"packets,omitempty"`
	}

	WirePacket struct {
		Author  string `json:"author"`
		Type    string `json:"type"`
		Content string `json:"content"`
	}

	// publisher mirrors every event on a ZeroMQ PUB socket, using the event
	// kind as topic so subscribers can filter.
	publisher struct {
		sock zmq4.Socket
	}
)

func newPublisher(ctx context.Context, addr string) (*publisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("node: unable to bind events feed: %w", err)
	}
	slog.Info("Publishing events", "addr", addr)
	return &publisher{sock: sock}, nil
}

func (p *publisher) publish(ev network.Event) {
	wire := EncodeEvent(ev)
	body, err := json.Marshal(wire)
	if err != nil {
		slog.Error("Unable to encode event", "kind", wire.Kind, "err", err)
		return
	}
	if err := p.sock.Send(zmq4.NewMsgFrom([]byte(wire.Kind), body)); err != nil {
		slog.Warn("Unable to publish event", "kind", wire.Kind, "err", err)
	}
}

func (p *publisher) Close() error {
	return p.sock.Close()
}

func EncodeEvent(ev network.Event) WireEvent {
	switch ev := ev.(type) {
	case network.AddPacket:
		return WireEvent{Kind: "add_packet", Peer: ev.Packet.Author.String(), Packets: []WirePacket{encodePacket(ev.Packet)}}
	case network.ConversationRecord:
		packets := make([]WirePacket, len(ev.Packets))
		for i, p := range ev.Packets {
			packets[i] = encodePacket(p)
		}
		return WireEvent{Kind: "conversation", Peer: ev.Peer.String(), Packets: packets}
	case network.NonFatalError:
		return WireEvent{Kind: "error", Peer: ev.Peer.String(), Error: ev.Err.Error()}
	case network.AddChat:
		return WireEvent{Kind: "add_chat", Peer: ev.Peer.String()}
	case network.ContactName:
		return WireEvent{Kind: "contact_name", Peer: ev.Peer.String(), Name: ev.Name}
	}
	return WireEvent{Kind: "unknown"}
}

func encodePacket(p protocol.Packet) WirePacket {
	return WirePacket{Author: p.Author.String(), Type: p.Type.String(), Content: string(p.Content)}
}
