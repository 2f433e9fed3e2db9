package store

import (
	"context"
	"database/sql"
	"errors"
	"iter"

	"github.com/andrebq/pingpong/internal/monads"
	"github.com/andrebq/pingpong/protocol"
)

type (
	// Contact is a peer the user decided to remember.
	Contact struct {
		ServerAddress protocol.NodeIdentity
		Username      monads.Maybe[string]
	}

	ContactOps interface {
		Put(ctx context.Context, c Contact) error
		Get(ctx context.Context, id protocol.NodeIdentity) (Contact, error)
		List(ctx context.Context) iter.Seq2[Contact, error]
	}

	contactOps struct {
		sqler Ops
		clock txclock
	}
)

// Put inserts or updates a contact, a missing username keeps the stored one.
// Contacts are keyed by peer id, so the latest address replaces older ones.
func (c *contactOps) Put(ctx context.Context, contact Contact) error {
	if err := c.sqler.Err(); err != nil {
		return err
	}
	var username sql.NullString
	username.Valid = contact.Username.Get(&username.String)
	_, err := c.sqler.ExecContext(ctx, `
		insert into dt_contacts(peer_id, node_id, username, clk_updated_at_unixms, clk_trid)
		values (?, ?, ?, ?, ?)
		on conflict (peer_id) do
			update set
				node_id = excluded.node_id,
				username = coalesce(excluded.username, dt_contacts.username),
				clk_updated_at_unixms = excluded.clk_updated_at_unixms,
				clk_trid = excluded.clk_trid`,
		string(contact.ServerAddress.ID()), contact.ServerAddress.String(), username, c.clock.ts.UnixMilli(), c.clock.trid)
	return err
}

func (c *contactOps) Get(ctx context.Context, id protocol.NodeIdentity) (Contact, error) {
	if err := c.sqler.Err(); err != nil {
		return Contact{}, err
	}
	var nodeID string
	var username sql.NullString
	err := c.sqler.QueryRowContext(ctx, "select node_id, username from dt_contacts where peer_id = ?", string(id.ID())).Scan(&nodeID, &username)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, errNotFound
	} else if err != nil {
		return Contact{}, err
	}
	stored, err := protocol.ParseIdentity(nodeID)
	if err != nil {
		return Contact{}, err
	}
	return Contact{ServerAddress: stored, Username: maybeString(username)}, nil
}

// List yields contacts one row at a time, ordered by peer id.
func (c *contactOps) List(ctx context.Context) iter.Seq2[Contact, error] {
	return func(yield func(Contact, error) bool) {
		rows, err := c.sqler.QueryContext(ctx, "select node_id, username from dt_contacts order by peer_id")
		if err != nil {
			yield(Contact{}, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			var nodeID string
			var username sql.NullString
			if err := rows.Scan(&nodeID, &username); err != nil {
				yield(Contact{}, err)
				return
			}
			id, err := protocol.ParseIdentity(nodeID)
			if err != nil {
				if !yield(Contact{}, err) {
					return
				}
				continue
			}
			if !yield(Contact{ServerAddress: id, Username: maybeString(username)}, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Contact{}, err)
		}
	}
}

func maybeString(ns sql.NullString) monads.Maybe[string] {
	if !ns.Valid {
		return monads.Nothing[string]()
	}
	return monads.Some(ns.String)
}
