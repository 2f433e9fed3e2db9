package ssh

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/andrebq/pingpong/protocol"
	gossh "golang.org/x/crypto/ssh"
)

type (
	// Dialer opens authenticated connections to other nodes.
	//
	// The remote host key must match the key of the dialed identity and the
	// local node authenticates with Signer, which lets the listener know
	// which key is behind each inbound connection.
	Dialer struct {
		Signer    gossh.Signer
		Timeout   time.Duration
		LocalAddr string
	}

	// PeerConnection is an outbound connection to one node. Each Send uses its
	// own channel so unrelated messages never wait on each other.
	PeerConnection struct {
		peer   protocol.NodeIdentity
		client *gossh.Client
	}
)

const (
	// ChannelType is the ssh channel type carrying one stream of frames.
	ChannelType = "pingpong-frame@v1"

	DefaultDialTimeout = 10 * time.Second

	clientUser = "pingpong"
	ackByte    = byte(0x06)
)

func (d *Dialer) Dial(ctx context.Context, peer protocol.NodeIdentity) (*PeerConnection, error) {
	if d.Signer == nil {
		return nil, fmt.Errorf("%w: missing client key", protocol.ErrTransportBind)
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	if d.LocalAddr != "" {
		local, err := net.ResolveTCPAddr("tcp", d.LocalAddr)
		if err != nil {
			return nil, protocol.Wrap(protocol.ErrTransportBind, err)
		}
		dialer.LocalAddr = local
	}

	hostKey, err := peer.PublicKey()
	if err != nil {
		return nil, protocol.Wrap(protocol.ErrTransportConnect, err)
	}
	conn, err := dialer.DialContext(ctx, "tcp", peer.Addr())
	if err != nil {
		return nil, protocol.Wrap(protocol.ErrTransportConnect, err)
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)
	sshconn, chans, reqs, err := gossh.NewClientConn(conn, peer.Addr(), &gossh.ClientConfig{
		User:            clientUser,
		Auth:            []gossh.AuthMethod{gossh.PublicKeys(d.Signer)},
		HostKeyCallback: gossh.FixedHostKey(hostKey),
		Timeout:         timeout,
	})
	if err != nil {
		conn.Close()
		return nil, protocol.Wrap(protocol.ErrTransportConnect, err)
	}
	// keepalive and liveness are left to the transport from here on
	conn.SetDeadline(time.Time{})

	return &PeerConnection{
		peer:   peer,
		client: gossh.NewClient(sshconn, chans, reqs),
	}, nil
}

func (p *PeerConnection) Peer() protocol.NodeIdentity { return p.peer }

// Send writes one frame on a fresh channel and waits until the listener
// acknowledges that it was queued. Failures are returned as is, there are no
// retries.
func (p *PeerConnection) Send(ctx context.Context, payload []byte, t protocol.PacketType) error {
	ch, reqs, err := p.client.OpenChannel(ChannelType, nil)
	if err != nil {
		return protocol.Wrap(protocol.ErrTransportConnection, err)
	}
	go gossh.DiscardRequests(reqs)
	defer ch.Close()
	stop := context.AfterFunc(ctx, func() { ch.Close() })
	defer stop()

	if _, err := ch.Write(protocol.Encode(t, payload)); err != nil {
		return protocol.Wrap(protocol.ErrStreamClosed, err)
	}
	if err := ch.CloseWrite(); err != nil {
		return protocol.Wrap(protocol.ErrStreamCrashed, err)
	}

	var ack [1]byte
	if _, err := io.ReadFull(ch, ack[:]); err != nil {
		return protocol.Wrap(protocol.ErrStreamCrashed, err)
	} else if ack[0] != ackByte {
		return fmt.Errorf("%w: unexpected ack %x", protocol.ErrStreamCrashed, ack[0])
	}
	return nil
}

func (p *PeerConnection) Close() error {
	return p.client.Close()
}
