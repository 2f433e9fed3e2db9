// Package profile is the persistent side of a node: its identity, the
// contacts the user saved and the display name.
package profile

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"iter"

	"github.com/andrebq/pingpong/internal/monads"
	"github.com/andrebq/pingpong/internal/store"
	"github.com/andrebq/pingpong/protocol"
)

type (
	Profile struct {
		Store *store.Store
	}

	Contact = store.Contact
)

const (
	usernameKey = "profile.username"
)

// Open the profile stored under dir.
func Open(dir string) (*Profile, error) {
	st, err := store.Open(dir)
	if err != nil {
		return nil, err
	}
	return &Profile{Store: st}, nil
}

func (p *Profile) Close() error {
	return p.Store.Close()
}

// LoadOrCreateIdentity returns the node keypair. It is generated and
// persisted on first use, and regenerated if the stored one is unreadable.
func (p *Profile) LoadOrCreateIdentity(ctx context.Context) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	ops := p.Store.Ops(false)
	defer ops.Close()

	secret, err := ops.Identity().LoadOrCreate(ctx)
	ops.Fail(err)
	if err := ops.Commit(); err != nil {
		return nil, nil, err
	}
	return secret, secret.Public().(ed25519.PublicKey), nil
}

// ListContacts streams the saved contacts, the transaction stays open until
// the caller stops iterating.
func (p *Profile) ListContacts(ctx context.Context) iter.Seq2[Contact, error] {
	return func(yield func(Contact, error) bool) {
		ops := p.Store.Ops(false)
		defer ops.Close()
		for c, err := range ops.Contacts().List(ctx) {
			if !yield(c, err) {
				return
			}
		}
	}
}

func (p *Profile) InsertContact(ctx context.Context, id protocol.NodeIdentity, username monads.Maybe[string]) error {
	ops := p.Store.Ops(false)
	defer ops.Close()

	ops.Fail(ops.Contacts().Put(ctx, Contact{ServerAddress: id, Username: username}))
	return ops.Commit()
}

func (p *Profile) GetUsername(ctx context.Context) (monads.Maybe[string], error) {
	ops := p.Store.Ops(false)
	defer ops.Close()

	var name string
	err := store.GetJSON(ctx, &name, ops.KV(), usernameKey)
	if store.IsNotFound(err) {
		return monads.Nothing[string](), nil
	} else if err != nil {
		return monads.Nothing[string](), err
	}
	return monads.Some(name), nil
}

func (p *Profile) SetUsername(ctx context.Context, name string) error {
	ops := p.Store.Ops(false)
	defer ops.Close()

	ops.Fail(store.PutJSON(ctx, ops.KV(), usernameKey, name))
	return ops.Commit()
}

// ResolvePeer accepts either the textual form of an identity or the username
// of a saved contact.
func (p *Profile) ResolvePeer(ctx context.Context, nameOrID string) (protocol.NodeIdentity, error) {
	id, parseErr := protocol.ParseIdentity(nameOrID)
	if parseErr == nil {
		return id, nil
	}
	for c, err := range p.ListContacts(ctx) {
		if err != nil {
			return protocol.NodeIdentity{}, err
		}
		var name string
		if c.Username.Get(&name) && name == nameOrID {
			return c.ServerAddress, nil
		}
	}
	return protocol.NodeIdentity{}, errors.Join(fmt.Errorf("profile: no contact named %q", nameOrID), parseErr)
}
