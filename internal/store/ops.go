package store

import (
	"context"
	"database/sql"
	"errors"
)

func (o *ops) KV() KVOps {
	return &kvops{
		sqler:  o,
		clock:  o.clock,
		cached: make(map[string][]byte),
	}
}

func (o *ops) Identity() IdentityOps {
	return &identityOps{
		sqler: o,
		clock: o.clock,
	}
}

func (o *ops) Contacts() ContactOps {
	return &contactOps{
		sqler: o,
		clock: o.clock,
	}
}

func (o *ops) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.tx.ExecContext(ctx, query, args...)
}

func (o *ops) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.tx.QueryContext(ctx, query, args...)
}

func (o *ops) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return o.tx.QueryRowContext(ctx, query, args...)
}

func (o *ops) Commit() error {
	if o.err != nil {
		return o.err
	}
	if o.closed {
		return sql.ErrTxDone
	}
	o.closed = true
	return o.tx.Commit()
}

func (o *ops) Rollback() error {
	if o.closed {
		return o.err
	}
	o.closed = true
	return o.tx.Rollback()
}

// Close commits when the ops were opened with autocommit and nothing failed,
// otherwise it rolls back whatever is pending.
func (o *ops) Close() error {
	switch {
	case o.closed:
		return nil
	case o.autocommit && o.err == nil:
		return o.Commit()
	default:
		err := o.Rollback()
		if errors.Is(err, sql.ErrTxDone) {
			err = nil
		}
		return err
	}
}

func (o *ops) Err() error {
	return o.err
}

func (o *ops) Fail(err error) {
	switch {
	case err == nil:
		return
	case o.err != nil:
		// already failed
		return
	default:
		o.err = err
	}
}
