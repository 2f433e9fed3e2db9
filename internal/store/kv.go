package store

import (
	"context"
	"database/sql"
	"errors"
)

type (
	KVOps interface {
		SetBytes(context.Context, string, []byte)
		GetBytes(context.Context, []byte, string) []byte
		Err() error
	}

	kvops struct {
		sqler Ops
		err   error

		clock txclock

		cached map[string][]byte
	}
)

// GetBytes from key appended to out. Returns nil if the key does not exist.
func (kv *kvops) GetBytes(ctx context.Context, out []byte, key string) []byte {
	if kv.Err() != nil {
		return nil
	}
	if buf, ok := kv.cached[key]; ok {
		return append(out, buf...)
	}
	var buf []byte
	err := kv.sqler.QueryRowContext(ctx, "select item_val from dt_key_value where item_key = ?", key).Scan(&buf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	} else if err != nil {
		kv.err = err
		return nil
	}
	kv.cached[key] = buf
	return append(out, buf...)
}

// SetBytes from buf into key
func (kv *kvops) SetBytes(ctx context.Context, key string, buf []byte) {
	if kv.Err() != nil {
		return
	}
	_, kv.err = kv.sqler.ExecContext(ctx,
		`insert into dt_key_value
		(item_key, item_val, clk_updated_at_unixms, clk_trid)
		values
		(?, ?, ?, ?)
		on conflict (item_key) do
			update set
				item_val = excluded.item_val,
				clk_updated_at_unixms = excluded.clk_updated_at_unixms,
				clk_trid = excluded.clk_trid`,
		key, buf, kv.clock.ts.UnixMilli(), kv.clock.trid)
	if kv.err == nil {
		kv.cached[key] = append([]byte(nil), buf...)
	}
}

func (kv *kvops) Err() error {
	if kv.err != nil {
		return kv.err
	}
	return kv.sqler.Err()
}
