package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrebq/pingpong/internal/appshell"
	"github.com/andrebq/pingpong/internal/monads"
	"github.com/andrebq/pingpong/internal/pattern"
	"github.com/andrebq/pingpong/internal/queue"
	"github.com/andrebq/pingpong/network"
	"github.com/andrebq/pingpong/profile"
	"github.com/andrebq/pingpong/protocol"
	"github.com/d5/tengo/v2"
)

type (
	console struct {
		prof  *profile.Profile
		local protocol.NodeIdentity
		tasks *queue.Q[network.Task]
		out   io.Writer
	}
)

var errUsage = errors.New("console: wrong number of arguments")

// NewConsole returns a shell where the chat module, and its slash
// shortcuts, turn user input into tasks for the driver:
//
//	/send <peer> <text...>    chat.send(peer, text)
//	/name <name...>           chat.name(name)
//	/history <peer>           chat.history(peer)
//	/add <identity> <name>    chat.add(identity, name)
//	/contacts                 chat.contacts()
//	/whoami                   chat.whoami()
//
// chat.me holds the identity and fingerprint of the local node.
//
// Peers are either identities or the name of a saved contact.
func NewConsole(ctx context.Context, prof *profile.Profile, local protocol.NodeIdentity, tasks *queue.Q[network.Task], out io.Writer) *appshell.Shell {
	c := &console{prof: prof, local: local, tasks: tasks, out: out}
	sh := appshell.New(true)
	sh.AddModules(c.chatModule(ctx), appshell.EchoModule(out, "echo"))
	sh.AddShortcuts(c.shortcut)
	return sh
}

func (c *console) chatModule(ctx context.Context) *appshell.Module {
	mod := appshell.NewModule("chat")
	mod.AddFuncRaw("send", appshell.FuncNR0(func(args ...string) error {
		if len(args) != 2 {
			return errUsage
		}
		return c.send(ctx, args[0], args[1])
	}))
	mod.AddFuncRaw("name", appshell.FuncNR0(func(args ...string) error {
		if len(args) != 1 {
			return errUsage
		}
		return c.setName(ctx, args[0])
	}))
	mod.AddFuncRaw("history", appshell.FuncNR0(func(args ...string) error {
		if len(args) != 1 {
			return errUsage
		}
		return c.history(ctx, args[0])
	}))
	mod.AddFuncRaw("add", appshell.FuncNR0(func(args ...string) error {
		if len(args) != 2 {
			return errUsage
		}
		return c.addContact(ctx, args[0], args[1])
	}))
	mod.AddFuncRaw("whoami", appshell.FuncNR1(func(args ...string) (string, error) {
		return c.local.String(), nil
	}))
	if err := mod.AddValue("me", map[string]any{
		"identity":    c.local.String(),
		"fingerprint": c.local.Fingerprint(),
	}); err != nil {
		panic(err)
	}
	mod.AddFuncRaw("contacts", func(args ...tengo.Object) (tengo.Object, error) {
		list, err := c.contacts(ctx)
		if err != nil {
			return tengo.UndefinedValue, err
		}
		items := make([]any, len(list))
		for i, v := range list {
			items[i] = v
		}
		return tengo.FromInterface(items)
	})
	return mod
}

func (c *console) shortcut(ctx context.Context, fields []string) (bool, error) {
	var peer string
	var words []string
	switch {
	case pattern.Match(fields, pattern.Prefix([]string{"/send"}, pattern.All(pattern.Capture(&peer), pattern.Rest(&words)))):
		return true, c.send(ctx, peer, strings.Join(words, " "))
	case pattern.Match(fields, pattern.Prefix([]string{"/name"}, pattern.Rest(&words))):
		return true, c.setName(ctx, strings.Join(words, " "))
	case pattern.Match(fields, pattern.Prefix([]string{"/history"}, pattern.Capture(&peer))):
		return true, c.history(ctx, peer)
	case pattern.Match(fields, pattern.Prefix([]string{"/add"}, pattern.All(pattern.Capture(&peer), pattern.Rest(&words)))):
		return true, c.addContact(ctx, peer, strings.Join(words, " "))
	case pattern.Match(fields, pattern.Equal("/whoami")):
		_, err := fmt.Fprintln(c.out, c.local.String())
		return true, err
	case pattern.Match(fields, pattern.Equal("/contacts")):
		list, err := c.contacts(ctx)
		if err != nil {
			return true, err
		}
		for _, entry := range list {
			fmt.Fprintf(c.out, "%v\t%v\n", entry["name"], entry["identity"])
		}
		return true, nil
	}
	return false, nil
}

func (c *console) send(ctx context.Context, nameOrID string, text string) error {
	peer, err := c.prof.ResolvePeer(ctx, nameOrID)
	if err != nil {
		return err
	}
	return c.tasks.Push(ctx, network.SendMessage{Peer: peer, Payload: []byte(text), Type: protocol.String})
}

func (c *console) setName(ctx context.Context, name string) error {
	if err := c.prof.SetUsername(ctx, name); err != nil {
		return err
	}
	return c.tasks.Push(ctx, network.SetUsername{Name: name})
}

func (c *console) history(ctx context.Context, nameOrID string) error {
	peer, err := c.prof.ResolvePeer(ctx, nameOrID)
	if err != nil {
		return err
	}
	return c.tasks.Push(ctx, network.RequestConversation{Peer: peer})
}

func (c *console) addContact(ctx context.Context, identity, name string) error {
	id, err := protocol.ParseIdentity(identity)
	if err != nil {
		return err
	}
	return c.prof.InsertContact(ctx, id, monads.Some(name))
}

func (c *console) contacts(ctx context.Context) ([]map[string]any, error) {
	var list []map[string]any
	for contact, err := range c.prof.ListContacts(ctx) {
		if err != nil {
			return nil, err
		}
		list = append(list, map[string]any{
			"identity": contact.ServerAddress.String(),
			"name":     monads.Default(contact.Username, monads.Self("")),
		})
	}
	return list, nil
}
