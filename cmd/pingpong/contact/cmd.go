package contact

import (
	"errors"
	"fmt"

	"github.com/andrebq/pingpong/internal/commonpaths"
	"github.com/andrebq/pingpong/internal/flagutil"
	"github.com/andrebq/pingpong/internal/monads"
	"github.com/andrebq/pingpong/profile"
	"github.com/andrebq/pingpong/protocol"
	"github.com/urfave/cli/v2"
)

const envPrefix = "PINGPONG_CONTACT"

func Cmd() *cli.Command {
	dataDir := commonpaths.DefaultDataDir()
	var prof *profile.Profile
	return &cli.Command{
		Name:  "contact",
		Usage: "Manage the peers saved in the local profile",
		Flags: []cli.Flag{
			flagutil.String(&dataDir, "data-dir", []string{"d"}, envPrefix, "Directory holding the node profile", false),
		},
		Before: func(ctx *cli.Context) error {
			dir, err := commonpaths.Expand(dataDir)
			if err != nil {
				return err
			}
			prof, err = profile.Open(dir)
			return err
		},
		After: func(ctx *cli.Context) error {
			if prof == nil {
				return nil
			}
			return prof.Close()
		},
		Subcommands: []*cli.Command{
			addCmd(&prof),
			listCmd(&prof),
		},
	}
}

func addCmd(prof **profile.Profile) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Save a peer, optionally with a name",
		ArgsUsage: "<identity> [name]",
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() < 1 {
				return errors.New("missing identity")
			}
			id, err := protocol.ParseIdentity(ctx.Args().Get(0))
			if err != nil {
				return err
			}
			name := monads.Nothing[string]()
			if ctx.NArg() > 1 {
				name = monads.Some(ctx.Args().Get(1))
			}
			return (*prof).InsertContact(ctx.Context, id, name)
		},
	}
}

func listCmd(prof **profile.Profile) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print every saved peer",
		Action: func(ctx *cli.Context) error {
			for c, err := range (*prof).ListContacts(ctx.Context) {
				if err != nil {
					return err
				}
				fmt.Fprintf(ctx.App.Writer, "%v\t%v\n", monads.Default(c.Username, monads.Self("-")), c.ServerAddress.String())
			}
			return nil
		},
	}
}
