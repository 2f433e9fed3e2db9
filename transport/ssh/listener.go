package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/andrebq/pingpong/internal/queue"
	"github.com/andrebq/pingpong/protocol"
	"github.com/gliderlabs/ssh"
	gossh "golang.org/x/crypto/ssh"
)

type (
	ListenConfig struct {
		// Bind is the local host:port, use port 0 to pick any port.
		Bind string
		// Advertise is the address announced to peers, defaults to the
		// bound address.
		Advertise string
		Signer    gossh.Signer

		// Inbound is shared with the caller when set, otherwise a queue with
		// QueueCapacity is created.
		Inbound       *queue.Q[protocol.Packet]
		QueueCapacity int
		// MaxStreamSize bounds how many bytes are read from one stream.
		MaxStreamSize int64
	}

	// Listener accepts connections from any node and turns every stream it
	// receives into packets on a single inbound queue.
	Listener struct {
		srv      *ssh.Server
		ln       net.Listener
		local    protocol.NodeIdentity
		inbound  *queue.Q[protocol.Packet]
		maxBytes int64

		ctx    context.Context
		cancel context.CancelFunc
		done   chan struct{}
		err    error
	}
)

func Listen(ctx context.Context, cfg ListenConfig) (*Listener, error) {
	if cfg.Signer == nil {
		return nil, fmt.Errorf("%w: missing host key", protocol.ErrTransportBind)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", cfg.Bind)
	if err != nil {
		return nil, protocol.Wrap(protocol.ErrTransportBind, err)
	}
	advertise := cfg.Advertise
	if advertise == "" {
		advertise = ln.Addr().String()
	}
	inbound := cfg.Inbound
	if inbound == nil {
		inbound = queue.New[protocol.Packet](cfg.QueueCapacity)
	}
	maxBytes := cfg.MaxStreamSize
	if maxBytes <= 0 {
		maxBytes = protocol.HeaderSize + protocol.MaxPayloadSize
	}

	l := &Listener{
		ln:       ln,
		local:    IdentityOf(cfg.Signer, advertise),
		inbound:  inbound,
		maxBytes: maxBytes,
		done:     make(chan struct{}),
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.srv = &ssh.Server{
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool { return true },
		ConnCallback:     l.superviseConn,
		ChannelHandlers: map[string]ssh.ChannelHandler{
			ChannelType: l.handleStream,
		},
	}
	l.srv.AddHostKey(cfg.Signer)

	go l.serve()
	slog.Info("Accepting peer connections", "bind", ln.Addr().String(), "identity", l.local.String())
	return l, nil
}

func (l *Listener) LocalIdentity() protocol.NodeIdentity { return l.local }

// Inbound returns the queue where every decoded packet is delivered.
func (l *Listener) Inbound() *queue.Q[protocol.Packet] { return l.inbound }

// Addr is the address the listener is bound to.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Done is closed once the listener stops accepting connections.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Err returns why the listener stopped, nil while it is running or after Close.
func (l *Listener) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

func (l *Listener) Close() error {
	l.cancel()
	err := l.srv.Close()
	<-l.done
	return err
}

func (l *Listener) serve() {
	defer close(l.done)
	err := l.srv.Serve(l.ln)
	if errors.Is(err, ssh.ErrServerClosed) {
		err = nil
	}
	if err != nil {
		slog.Error("Listener stopped", "err", err)
	}
	l.err = err
}

// superviseConn watches an accepted connection and reports its end as a
// failure packet, so consumers see disconnects like any other packet.
func (l *Listener) superviseConn(ctx ssh.Context, conn net.Conn) net.Conn {
	go func() {
		<-ctx.Done()
		raw, ok := rawIdentity(ctx)
		if !ok {
			slog.Debug("Connection closed before authentication", "remote", conn.RemoteAddr())
			return
		}
		slog.Debug("Peer connection closed", "raw", raw.String())
		l.push(protocol.Failure(raw, protocol.ErrStreamClosed))
	}()
	return conn
}

func (l *Listener) handleStream(srv *ssh.Server, conn *gossh.ServerConn, newChan gossh.NewChannel, ctx ssh.Context) {
	raw, ok := rawIdentity(ctx)
	if !ok {
		newChan.Reject(gossh.Prohibited, "public key authentication required")
		return
	}
	ch, reqs, err := newChan.Accept()
	if err != nil {
		slog.Debug("Unable to accept stream", "raw", raw.String(), "err", err)
		return
	}
	go gossh.DiscardRequests(reqs)
	defer ch.Close()

	packets := l.readStream(raw, ch)
	for _, p := range packets {
		if !l.push(p) {
			return
		}
	}
	if len(packets) > 0 && !packets[len(packets)-1].Failed() {
		ch.Write([]byte{ackByte})
	}
}

func (l *Listener) readStream(raw protocol.NodeIdentity, stream io.Reader) []protocol.Packet {
	buf, err := io.ReadAll(io.LimitReader(stream, l.maxBytes+1))
	switch {
	case err != nil:
		return []protocol.Packet{protocol.Failure(raw, protocol.Wrap(protocol.ErrStreamReadFailed, err))}
	case int64(len(buf)) > l.maxBytes:
		return []protocol.Packet{protocol.Failure(raw, protocol.ErrFrameTooLong)}
	case len(buf) == 0:
		return []protocol.Packet{protocol.Failure(raw, protocol.ErrStreamClosed)}
	}

	frames, rest, err := protocol.Decode(buf)
	packets := make([]protocol.Packet, 0, len(frames)+1)
	for _, f := range frames {
		packets = append(packets, protocol.Success(raw, f))
	}
	if err != nil {
		packets = append(packets, protocol.Failure(raw, err))
	} else if len(rest) > 0 {
		slog.Warn("Stream ended with an incomplete frame", "raw", raw.String(), "size", len(rest))
	}
	return packets
}

func (l *Listener) push(p protocol.Packet) bool {
	err := l.inbound.Push(l.ctx, p)
	if err != nil {
		slog.Debug("Dropping inbound packet", "raw", p.Author.String(), "type", p.Type, "err", err)
		return false
	}
	return true
}

func rawIdentity(ctx ssh.Context) (protocol.NodeIdentity, bool) {
	key, ok := ctx.Value(ssh.ContextKeyPublicKey).(ssh.PublicKey)
	if !ok {
		return protocol.NodeIdentity{}, false
	}
	var remote string
	if addr := ctx.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return protocol.NewIdentity(key, remote), true
}
