package network

import (
	"context"
	"errors"
	"log/slog"

	"github.com/andrebq/pingpong/internal/monads"
	"github.com/andrebq/pingpong/protocol"
)

type (
	// Sender is an established outbound connection to one peer.
	Sender interface {
		Send(ctx context.Context, payload []byte, t protocol.PacketType) error
		Close() error
	}

	Dialer interface {
		Dial(ctx context.Context, peer protocol.NodeIdentity) (Sender, error)
	}

	DialerFunc func(ctx context.Context, peer protocol.NodeIdentity) (Sender, error)

	// State tracks every conversation of the local node and which inbound
	// connection belongs to which peer.
	//
	// Conversations are keyed by the peer key alone, the address of a peer is
	// only a dial hint and follows its latest Address announcement.
	//
	// A State is owned by a single goroutine (usually the Driver), none of its
	// methods are safe for concurrent use.
	State struct {
		local    protocol.NodeIdentity
		username monads.Maybe[string]
		dialer   Dialer
		log      *slog.Logger

		conversations map[protocol.PeerID]*conversation
		rawToResolved map[protocol.NodeIdentity]protocol.PeerID
	}

	conversation struct {
		peer    protocol.NodeIdentity
		conn    Sender
		packets []protocol.Packet
	}
)

func (fn DialerFunc) Dial(ctx context.Context, peer protocol.NodeIdentity) (Sender, error) {
	return fn(ctx, peer)
}

// NewState for the node announced as local. A nil logger uses slog.Default.
func NewState(local protocol.NodeIdentity, dialer Dialer, logger *slog.Logger) *State {
	if logger == nil {
		logger = slog.Default()
	}
	return &State{
		local:         local,
		dialer:        dialer,
		log:           logger,
		conversations: make(map[protocol.PeerID]*conversation),
		rawToResolved: make(map[protocol.NodeIdentity]protocol.PeerID),
	}
}

func (s *State) LocalIdentity() protocol.NodeIdentity { return s.local }

func (s *State) Username() monads.Maybe[string] { return s.username }

// DispatchInbound processes one packet taken from the listener and returns
// the events it produced, in order.
//
// Packets from a connection that has not yet announced its Address are
// dropped, the only exception being the Address packet itself. An Address
// always gets a handshake reply but yields AddChat only when it starts a
// conversation, announcing again or from another address is silent.
// Resolved packets are attributed to the latest announced identity.
func (s *State) DispatchInbound(ctx context.Context, p protocol.Packet) []Event {
	raw := p.Author
	id, found := s.rawToResolved[raw]
	if !found {
		if p.Failed() || p.Type != protocol.Address {
			s.log.Debug("Dropping packet from unresolved connection", "raw", raw.String(), "type", p.Type, "err", p.Err)
			return nil
		}
		return s.resolve(ctx, raw, p)
	}

	conv := s.conversations[id]
	resolved := conv.peer
	p.Author = resolved
	switch {
	case p.Failed():
		if errors.Is(p.Err, protocol.ErrStreamClosed) {
			s.log.Debug("Peer closed connection", "peer", resolved.String(), "raw", raw.String())
			return nil
		}
		return []Event{NonFatalError{Peer: resolved, Err: p.Err}}
	case p.Type == protocol.String:
		conv.packets = append(conv.packets, p)
		return []Event{AddPacket{Packet: p}}
	case p.Type == protocol.Username:
		return []Event{ContactName{Peer: resolved, Name: string(p.Content)}}
	}
	s.log.Debug("Ignoring packet", "peer", resolved.String(), "type", p.Type)
	return nil
}

func (s *State) resolve(ctx context.Context, raw protocol.NodeIdentity, p protocol.Packet) []Event {
	declared, err := protocol.ParseIdentity(string(p.Content))
	if err != nil {
		s.log.Warn("Dropping invalid address announcement", "raw", raw.String(), "err", err)
		return nil
	}
	if !declared.SameKey(raw) {
		s.log.Warn("Dropping address announcement signed by another key", "raw", raw.String(), "declared", declared.String())
		return nil
	}

	conv, isNew, err := s.conversation(ctx, declared)
	if err != nil {
		return []Event{NonFatalError{Peer: declared, Err: err}}
	}
	if !isNew && conv.peer != declared {
		s.log.Info("Peer announced a new address", "peer", declared.ID(), "from", conv.peer.Addr(), "to", declared.Addr())
		conv.peer = declared
	}
	s.rawToResolved[raw] = declared.ID()
	if err := s.handshake(ctx, conv); err != nil {
		s.log.Warn("Unable to answer handshake", "peer", declared.String(), "err", err)
	}
	if isNew {
		return []Event{AddChat{Peer: declared}}
	}
	return nil
}

// SendTo delivers payload to peer, connecting first when needed. isNew
// reports whether a conversation was created by this call, which remains true
// even when the handshake or the send itself failed. A peer with a known key
// reuses its conversation whatever address it is given.
func (s *State) SendTo(ctx context.Context, peer protocol.NodeIdentity, payload []byte, t protocol.PacketType) (isNew bool, err error) {
	conv, isNew, err := s.conversation(ctx, peer)
	if err != nil {
		return false, err
	}
	if isNew {
		if err := s.handshake(ctx, conv); err != nil {
			return true, err
		}
	}
	if err := conv.conn.Send(ctx, payload, t); err != nil {
		return isNew, err
	}
	conv.packets = append(conv.packets, protocol.Packet{
		Author:  s.local,
		Type:    t,
		Content: append([]byte(nil), payload...),
	})
	return isNew, nil
}

// BroadcastUsername tells every known peer about the new name. Individual
// failures are logged and do not prevent the local name from changing.
func (s *State) BroadcastUsername(ctx context.Context, name string) {
	for _, conv := range s.conversations {
		if err := conv.conn.Send(ctx, []byte(name), protocol.Username); err != nil {
			s.log.Warn("Unable to send username", "peer", conv.peer.String(), "err", err)
		}
	}
	s.username = monads.Some(name)
}

// ConversationLog returns a copy of the packets exchanged with peer, the
// address of peer is not taken into account.
func (s *State) ConversationLog(peer protocol.NodeIdentity) ([]protocol.Packet, bool) {
	conv, found := s.conversations[peer.ID()]
	if !found {
		return nil, false
	}
	return append([]protocol.Packet(nil), conv.packets...), true
}

// Peers lists the identities with an active conversation.
func (s *State) Peers() []protocol.NodeIdentity {
	peers := make([]protocol.NodeIdentity, 0, len(s.conversations))
	for _, conv := range s.conversations {
		peers = append(peers, conv.peer)
	}
	return peers
}

// Close every outbound connection. Conversations are kept.
func (s *State) Close() error {
	var errs []error
	for _, conv := range s.conversations {
		errs = append(errs, conv.conn.Close())
	}
	return errors.Join(errs...)
}

func (s *State) conversation(ctx context.Context, peer protocol.NodeIdentity) (*conversation, bool, error) {
	if conv, found := s.conversations[peer.ID()]; found {
		return conv, false, nil
	}
	conn, err := s.dialer.Dial(ctx, peer)
	if err != nil {
		return nil, false, err
	}
	conv := &conversation{peer: peer, conn: conn}
	s.conversations[peer.ID()] = conv
	s.log.Info("Conversation started", "peer", peer.String())
	return conv, true, nil
}

func (s *State) handshake(ctx context.Context, conv *conversation) error {
	if err := conv.conn.Send(ctx, []byte(s.local.String()), protocol.Address); err != nil {
		return err
	}
	var name string
	if s.username.Get(&name) {
		return conv.conn.Send(ctx, []byte(name), protocol.Username)
	}
	return nil
}
