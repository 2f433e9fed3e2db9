package node

import (
	"fmt"
	"net"

	"github.com/andrebq/pingpong/internal/commonpaths"
	"github.com/andrebq/pingpong/internal/flagutil"
	"github.com/andrebq/pingpong/network"
	"github.com/andrebq/pingpong/profile"
	transport "github.com/andrebq/pingpong/transport/ssh"
	"github.com/urfave/cli/v2"
)

const envPrefix = "PINGPONG_NODE"

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "node",
		Usage: "Run and inspect the local node",
		Subcommands: []*cli.Command{
			runCmd(),
			whoamiCmd(),
		},
	}
}

func runCmd() *cli.Command {
	cfg := Config{
		DataDir: commonpaths.DefaultDataDir(),
		Bind:    "127.0.0.1:7878",
		Tick:    network.DefaultInterval,
	}
	return &cli.Command{
		Name:  "run",
		Usage: "Accept connections from other nodes and relay messages until interrupted",
		Flags: []cli.Flag{
			flagutil.String(&cfg.DataDir, "data-dir", []string{"d"}, envPrefix, "Directory holding the node profile", false),
			flagutil.String(&cfg.Bind, "bind-addr", []string{"b"}, envPrefix, "Address to listen for other nodes", false),
			flagutil.String(&cfg.Advertise, "advertise-addr", nil, envPrefix, "Address announced to other nodes, defaults to bind-addr", false),
			flagutil.String(&cfg.Username, "username", []string{"u"}, envPrefix, "Name announced to other nodes, replaces the stored one", false),
			flagutil.String(&cfg.HTTPAddr, "http-addr", nil, envPrefix, "Address of the status HTTP API, disabled if empty", false),
			flagutil.String(&cfg.EventsAddr, "events-addr", nil, envPrefix, "ZeroMQ endpoint publishing events, for example tcp://127.0.0.1:7879, disabled if empty", false),
			flagutil.Duration(&cfg.Tick, "tick", nil, envPrefix, "Interval between network cycles", false),
			flagutil.Int(&cfg.QueueCapacity, "queue-capacity", nil, envPrefix, "Capacity of internal queues, 0 means unbounded", false),
			flagutil.Bool(&cfg.Console, "console", []string{"c"}, envPrefix, "Read chat commands and scripts from stdin", false),
		},
		Action: func(ctx *cli.Context) error {
			return Run(ctx.Context, cfg, ctx.App.Reader, ctx.App.Writer)
		},
	}
}

func whoamiCmd() *cli.Command {
	dataDir := commonpaths.DefaultDataDir()
	addr := "127.0.0.1:7878"
	return &cli.Command{
		Name:  "whoami",
		Usage: "Print the identity other nodes use to reach this one",
		Flags: []cli.Flag{
			flagutil.String(&dataDir, "data-dir", []string{"d"}, envPrefix, "Directory holding the node profile", false),
			flagutil.String(&addr, "advertise-addr", []string{"a"}, envPrefix, "Address announced to other nodes", false),
		},
		Action: func(ctx *cli.Context) error {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				return fmt.Errorf("invalid advertise address: %w", err)
			}
			dir, err := commonpaths.Expand(dataDir)
			if err != nil {
				return err
			}
			prof, err := profile.Open(dir)
			if err != nil {
				return err
			}
			defer prof.Close()
			secret, _, err := prof.LoadOrCreateIdentity(ctx.Context)
			if err != nil {
				return err
			}
			signer, err := transport.NewSigner(secret)
			if err != nil {
				return err
			}
			id := transport.IdentityOf(signer, addr)
			fmt.Fprintln(ctx.App.Writer, id.String())
			fmt.Fprintln(ctx.App.Writer, id.Fingerprint())
			return nil
		},
	}
}
