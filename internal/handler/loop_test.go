package handler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoopProcessesInOrder(t *testing.T) {
	var got []int
	l, err := New(Config[int]{Handler: HandlerFunc[int](func(_ context.Context, v int) error {
		got = append(got, v)
		return nil
	})})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if err := l.Submit(ctx, 1); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Submit before Start: got %v, want ErrNotStarted", err)
	}
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := l.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start: got %v, want ErrAlreadyStarted", err)
	}
	for i := range 5 {
		if err := l.Submit(ctx, i); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	if err := l.DrainTimeout(time.Second); err != nil {
		t.Fatalf("DrainTimeout failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d requests, want 5", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("request %d: got %d, want %d", i, v, i)
		}
	}
	if err := l.Submit(ctx, 9); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit after Stop: got %v, want ErrStopped", err)
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	l, err := New(Config[string]{Handler: HandlerFunc[string](func(context.Context, string) error { return nil })})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after context cancel")
	}
	if err := l.Submit(context.Background(), "late"); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit after exit: got %v, want ErrStopped", err)
	}
}

func TestNewRequiresHandler(t *testing.T) {
	if _, err := New(Config[int]{}); !errors.Is(err, ErrNoHandler) {
		t.Errorf("got %v, want ErrNoHandler", err)
	}
}
