package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/andrebq/pingpong/internal/commonpaths"
	"github.com/andrebq/pingpong/internal/queue"
	"github.com/andrebq/pingpong/network"
	"github.com/andrebq/pingpong/profile"
	"github.com/andrebq/pingpong/protocol"
	transport "github.com/andrebq/pingpong/transport/ssh"
	"golang.org/x/sync/errgroup"
)

type (
	Config struct {
		DataDir       string
		Bind          string
		Advertise     string
		Username      string
		HTTPAddr      string
		EventsAddr    string
		Tick          time.Duration
		QueueCapacity int
		Console       bool
	}

	syncWriter struct {
		sync.Mutex
		w io.Writer
	}

	terminal struct {
		io.Reader
		io.Writer
	}
)

func (s *syncWriter) Write(p []byte) (int, error) {
	s.Lock()
	defer s.Unlock()
	return s.w.Write(p)
}

// Run the node until ctx is done or one of its parts fails.
func Run(ctx context.Context, cfg Config, stdin io.Reader, stdout io.Writer) error {
	dataDir, err := commonpaths.Expand(cfg.DataDir)
	if err != nil {
		return err
	}
	prof, err := profile.Open(dataDir)
	if err != nil {
		return err
	}
	defer prof.Close()

	secret, _, err := prof.LoadOrCreateIdentity(ctx)
	if err != nil {
		return err
	}
	signer, err := transport.NewSigner(secret)
	if err != nil {
		return err
	}

	inbound := queue.New[protocol.Packet](cfg.QueueCapacity)
	listener, err := transport.Listen(ctx, transport.ListenConfig{
		Bind:      cfg.Bind,
		Advertise: cfg.Advertise,
		Signer:    signer,
		Inbound:   inbound,
	})
	if err != nil {
		return err
	}
	defer listener.Close()
	local := listener.LocalIdentity()

	dialer := &transport.Dialer{Signer: signer}
	state := network.NewState(local, network.DialerFunc(func(ctx context.Context, peer protocol.NodeIdentity) (network.Sender, error) {
		conn, err := dialer.Dial(ctx, peer)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}), nil)
	defer state.Close()

	tasks := queue.New[network.Task](cfg.QueueCapacity)
	outputs := queue.New[network.Event](cfg.QueueCapacity)
	driver := network.NewDriver(state, inbound, tasks, outputs, network.DriverConfig{Interval: cfg.Tick})

	if err := announceUsername(ctx, prof, tasks, cfg.Username); err != nil {
		return err
	}

	out := &syncWriter{w: stdout}
	fmt.Fprintf(out, "Node ready: %v\n", local.String())
	slog.Info("Node started", "identity", local.String(), "fingerprint", local.Fingerprint(), "dataDir", dataDir)

	events := NewPrinter(prof, local, out)
	if cfg.EventsAddr != "" {
		pub, err := newPublisher(ctx, cfg.EventsAddr)
		if err != nil {
			return err
		}
		defer pub.Close()
		events.Publish = pub.publish
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return driver.Run(gctx)
	})
	group.Go(func() error {
		return events.Run(gctx, outputs)
	})
	group.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-listener.Done():
			return listener.Err()
		}
	})
	if cfg.HTTPAddr != "" {
		group.Go(func() error {
			return serveStatus(gctx, cfg.HTTPAddr, NewStatusHandler(whoamiFrom(prof, local)))
		})
	}
	if cfg.Console {
		group.Go(func() error {
			sh := NewConsole(gctx, prof, local, tasks, out)
			err := sh.EvalInteractive(gctx, terminal{Reader: stdin, Writer: out})
			if err == nil {
				slog.Info("Console closed, node keeps running")
			}
			return err
		})
	}

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// announceUsername restores the stored name, or replaces it when the user
// provided a new one, and queues it for every peer.
func announceUsername(ctx context.Context, prof *profile.Profile, tasks *queue.Q[network.Task], override string) error {
	if override != "" {
		if err := prof.SetUsername(ctx, override); err != nil {
			return err
		}
	}
	stored, err := prof.GetUsername(ctx)
	if err != nil {
		return err
	}
	var name string
	if !stored.Get(&name) {
		return nil
	}
	return tasks.Push(ctx, network.SetUsername{Name: name})
}
