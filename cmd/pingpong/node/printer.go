package node

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/andrebq/pingpong/internal/monads"
	"github.com/andrebq/pingpong/internal/queue"
	"github.com/andrebq/pingpong/network"
	"github.com/andrebq/pingpong/profile"
	"github.com/andrebq/pingpong/protocol"
)

type (
	// Printer renders driver events for humans and records what they teach
	// about peers in the profile.
	Printer struct {
		prof  *profile.Profile
		local protocol.NodeIdentity
		out   io.Writer
		names map[protocol.PeerID]string
		// Publish, when set, receives every event after it was handled
		Publish func(network.Event)
	}
)

func NewPrinter(prof *profile.Profile, local protocol.NodeIdentity, out io.Writer) *Printer {
	return &Printer{
		prof:  prof,
		local: local,
		out:   out,
		names: make(map[protocol.PeerID]string),
	}
}

// Run consumes events until ctx is done, the output queue is closed on
// return so the driver stops as well.
func (p *Printer) Run(ctx context.Context, outputs *queue.Q[network.Event]) error {
	defer outputs.Close()
	for c, err := range p.prof.ListContacts(ctx) {
		if err != nil {
			return err
		}
		var name string
		if c.Username.Get(&name) {
			p.names[c.ServerAddress.ID()] = name
		}
	}
	for {
		ev, err := outputs.Pop(ctx)
		if ctx.Err() != nil {
			return nil
		} else if err != nil {
			return err
		}
		p.handle(ctx, ev)
		if p.Publish != nil {
			p.Publish(ev)
		}
	}
}

func (p *Printer) handle(ctx context.Context, ev network.Event) {
	switch ev := ev.(type) {
	case network.AddPacket:
		p.printPacket(ev.Packet)
	case network.ConversationRecord:
		fmt.Fprintf(p.out, "--- conversation with %v (%v messages)\n", p.display(ev.Peer), len(ev.Packets))
		for _, pkt := range ev.Packets {
			p.printPacket(pkt)
		}
		fmt.Fprintln(p.out, "---")
	case network.NonFatalError:
		slog.Warn("Peer failure", "peer", ev.Peer.String(), "err", ev.Err)
		fmt.Fprintf(p.out, "! %v: %v\n", p.display(ev.Peer), ev.Err)
	case network.AddChat:
		fmt.Fprintf(p.out, "* new conversation with %v\n", p.display(ev.Peer))
		p.remember(ctx, ev.Peer, monads.Nothing[string]())
	case network.ContactName:
		if old, found := p.names[ev.Peer.ID()]; found && old == ev.Name {
			return
		}
		p.names[ev.Peer.ID()] = ev.Name
		fmt.Fprintf(p.out, "* %v is known as %v\n", ev.Peer.Fingerprint(), ev.Name)
		p.remember(ctx, ev.Peer, monads.Some(ev.Name))
	}
}

func (p *Printer) remember(ctx context.Context, peer protocol.NodeIdentity, name monads.Maybe[string]) {
	if err := p.prof.InsertContact(ctx, peer, name); err != nil {
		slog.Error("Unable to save contact", "peer", peer.String(), "err", err)
	}
}

func (p *Printer) printPacket(pkt protocol.Packet) {
	fmt.Fprintf(p.out, "%v %v: %s\n", time.Now().Format(time.TimeOnly), p.display(pkt.Author), pkt.Content)
}

func (p *Printer) display(id protocol.NodeIdentity) string {
	switch {
	case id.IsZero():
		return "network"
	case id.SameKey(p.local):
		return "me"
	}
	if name, found := p.names[id.ID()]; found {
		return name
	}
	return id.Fingerprint()
}
