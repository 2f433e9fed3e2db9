package network

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/andrebq/pingpong/internal/queue"
	"github.com/andrebq/pingpong/protocol"
)

type (
	DriverConfig struct {
		// Interval between cycles, defaults to DefaultInterval.
		Interval time.Duration
		Logger   *slog.Logger
	}

	// Driver moves packets and tasks through a State and publishes the
	// resulting events. It is the only goroutine allowed to touch the State.
	Driver struct {
		state   *State
		inbound *queue.Q[protocol.Packet]
		tasks   *queue.Q[Task]
		outputs *queue.Q[Event]

		interval time.Duration
		log      *slog.Logger
	}
)

const (
	DefaultInterval = 50 * time.Millisecond
)

func NewDriver(state *State, inbound *queue.Q[protocol.Packet], tasks *queue.Q[Task], outputs *queue.Q[Event], cfg DriverConfig) *Driver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Driver{
		state:    state,
		inbound:  inbound,
		tasks:    tasks,
		outputs:  outputs,
		interval: cfg.Interval,
		log:      cfg.Logger,
	}
}

// Run cycles until ctx is done or the output queue is closed. The latter is
// reported as protocol.ErrChannelClosed and the driver cannot be resumed
// after it.
func (d *Driver) Run(ctx context.Context) error {
	timer := time.NewTimer(d.interval)
	defer timer.Stop()
	for {
		if err := d.Step(ctx); err != nil {
			if errors.Is(err, protocol.ErrChannelClosed) {
				d.log.Error("Driver stopped, nobody is listening for events", "err", err)
			}
			return err
		}
		timer.Reset(d.interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Step runs one cycle: packets already received, then tasks already queued,
// then every produced event is published in the order it was produced.
func (d *Driver) Step(ctx context.Context) error {
	var events []Event
	for n := d.inbound.Len(); n > 0; n-- {
		p, ok := d.inbound.TryPop()
		if !ok {
			break
		}
		events = append(events, d.state.DispatchInbound(ctx, p)...)
	}
	for n := d.tasks.Len(); n > 0; n-- {
		t, ok := d.tasks.TryPop()
		if !ok {
			break
		}
		events = append(events, d.handle(ctx, t)...)
	}
	return d.flush(ctx, events)
}

func (d *Driver) handle(ctx context.Context, t Task) []Event {
	switch t := t.(type) {
	case RequestConversation:
		packets, _ := d.state.ConversationLog(t.Peer)
		if packets == nil {
			packets = []protocol.Packet{}
		}
		return []Event{ConversationRecord{Peer: t.Peer, Packets: packets}}
	case SendMessage:
		return d.send(ctx, t)
	case SetUsername:
		d.state.BroadcastUsername(ctx, t.Name)
		return nil
	}
	d.log.Warn("Ignoring unknown task", "task", t)
	return nil
}

func (d *Driver) send(ctx context.Context, t SendMessage) []Event {
	var events []Event
	isNew, err := d.state.SendTo(ctx, t.Peer, t.Payload, t.Type)
	if isNew {
		events = append(events, AddChat{Peer: t.Peer})
	}
	if err != nil {
		d.log.Warn("Unable to send message", "peer", t.Peer.String(), "err", err)
		return append(events, NonFatalError{Peer: t.Peer, Err: err})
	}
	return append(events, AddPacket{Packet: protocol.Packet{
		Author:  d.state.LocalIdentity(),
		Type:    t.Type,
		Content: t.Payload,
	}})
}

func (d *Driver) flush(ctx context.Context, events []Event) error {
	if d.outputs.Closed() {
		return protocol.ErrChannelClosed
	}
	for _, ev := range events {
		err := d.outputs.Push(ctx, ev)
		if errors.Is(err, queue.ErrClosed) {
			return protocol.ErrChannelClosed
		} else if err != nil {
			return err
		}
	}
	return nil
}
