package store

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

type (
	IdentityOps interface {
		// LoadOrCreate returns the node secret key, a missing or malformed
		// key is replaced by a freshly generated one.
		LoadOrCreate(ctx context.Context) (ed25519.PrivateKey, error)
	}

	identityOps struct {
		sqler Ops
		clock txclock
	}
)

func (i *identityOps) LoadOrCreate(ctx context.Context) (ed25519.PrivateKey, error) {
	if err := i.sqler.Err(); err != nil {
		return nil, err
	}
	var encoded string
	err := i.sqler.QueryRowContext(ctx, "select secret_seed from dt_node_identity order by id desc limit 1").Scan(&encoded)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		key, err := decodeSeed(encoded)
		if err == nil {
			return key, nil
		}
		slog.Warn("Stored node identity is malformed, generating a new one", "err", err)
	}

	_, err = i.sqler.ExecContext(ctx, "delete from dt_node_identity")
	if err != nil {
		return nil, err
	}
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	_, err = i.sqler.ExecContext(ctx,
		"insert into dt_node_identity(secret_seed, clk_updated_at_unixms, clk_trid) values (?, ?, ?)",
		hex.EncodeToString(key.Seed()), i.clock.ts.UnixMilli(), i.clock.trid)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func decodeSeed(encoded string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("store: invalid seed size %v", len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
