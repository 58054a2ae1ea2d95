package ssocket_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stealthrocket/ssocket-go"
	"github.com/stealthrocket/ssocket-go/ssockettest"
)

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	ctx, cancel := context.Background(), func() {}
	if deadline, ok := t.Deadline(); ok {
		ctx, cancel = context.WithDeadline(ctx, deadline)
	}
	return ctx, cancel
}

func assertOK(t *testing.T, err error) {
	if err != nil {
		t.Helper()
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertError(t *testing.T, err, want error) {
	if !errors.Is(err, want) {
		t.Helper()
		t.Fatalf("error mismatch\nwant = %v\ngot  = %v", want, err)
	}
}

func assertEqual[T comparable](t *testing.T, got, want T) {
	if got != want {
		t.Helper()
		t.Fatalf("%T values mismatch\nwant = %+v\ngot  = %+v", want, want, got)
	}
}

func newMultiplexer(t *testing.T, options ...ssocket.Option) (*ssocket.Multiplexer, *ssockettest.System) {
	t.Helper()
	sys := new(ssockettest.System)
	mux := ssocket.New(sys, options...)
	t.Cleanup(func() { mux.Close(context.Background()) })
	return mux, sys
}

func create(t *testing.T, ctx context.Context, mux *ssocket.Multiplexer, owner ssocket.Owner) ssocket.Handle {
	t.Helper()
	h, err := mux.Create(ctx, owner)
	assertOK(t, err)
	return h
}

func slotFD(t *testing.T, mux *ssocket.Multiplexer, h ssocket.Handle) ssocket.FD {
	t.Helper()
	s, ok := mux.Table().Lookup(h)
	if !ok {
		t.Fatalf("handle %d is not allocated", h)
	}
	return s.FD
}
