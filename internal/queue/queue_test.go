package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andrebq/pingpong/internal/queue"
)

func TestFIFO(t *testing.T) {
	q := queue.New[int](0)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		if err := q.Push(ctx, i); err != nil {
			t.Fatal(err)
		}
	}
	for i := 1; i <= 4; i++ {
		if v, ok := q.TryPop(); !ok || v != i {
			t.Fatalf("expecting %v got %v (ok: %v)", i, v, ok)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestPopWaits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	q := queue.New[string](0)
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(ctx, "late")
	}()
	v, err := q.Pop(ctx)
	if err != nil {
		t.Fatal(err)
	} else if v != "late" {
		t.Fatal("unexpected value", v)
	}
}

func TestBoundedPushWaitsForRoom(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	q := queue.New[int](1)
	if err := q.Push(ctx, 1); err != nil {
		t.Fatal(err)
	}

	short, cancelShort := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancelShort()
	if err := q.Push(short, 2); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("push on a full queue should wait", err)
	}

	pushed := make(chan error, 1)
	go func() { pushed <- q.Push(ctx, 3) }()
	if v, ok := q.TryPop(); !ok || v != 1 {
		t.Fatal("unexpected head", v)
	}
	select {
	case err := <-pushed:
		if err != nil {
			t.Fatal(err)
		}
	case <-ctx.Done():
		t.Fatal("push never resumed")
	}
	if q.Len() != 1 {
		t.Fatal("expecting a single item", q.Len())
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	q := queue.New[int](0)
	q.Push(ctx, 1)
	q.Close()

	if err := q.Push(ctx, 2); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("expecting %v got %v", queue.ErrClosed, err)
	}
	if v, err := q.Pop(ctx); err != nil || v != 1 {
		t.Fatal("items queued before close should be drained", v, err)
	}
	if _, err := q.Pop(ctx); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("expecting %v got %v", queue.ErrClosed, err)
	}
}
