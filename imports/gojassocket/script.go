// Package gojassocket exposes a datagram socket multiplexer to JavaScript
// programs running on goja.
//
// The natives are installed as global functions:
//
//	ssocket_create() -> handle
//	ssocket_connect(handle, address, port) -> 1 on success, 0 on failure
//	ssocket_listen(handle, port) -> 0
//	ssocket_send(handle, data[, length]) -> bytes sent, 0 or -1 on failure
//	ssocket_destroy(handle) -> 1 on success, 0 on failure
//	ssocket_set_recv_wait(ticks) -> 1
//	ssocket_strunpack(data, maxlength) -> string
//
// Scripts that listen must define a global SSocket_OnRecv(data, length,
// handle, from) function, data being a Uint8Array.
package gojassocket

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
	"github.com/stealthrocket/ssocket-go"
)

// Script is a JavaScript program owning sockets of a multiplexer.
//
// Like goja runtimes, scripts are not safe for concurrent use. Natives and
// callbacks run on the goroutine that calls into the runtime or ticks the
// multiplexer, which must be the same.
type Script struct {
	mux  *ssocket.Multiplexer
	vm   *goja.Runtime
	name string
	log  zerolog.Logger

	// ctx is the context of the host call currently running script code.
	ctx    context.Context
	closed bool
}

// New creates a script running on vm. Bind must be called to install the
// natives before the program runs.
func New(mux *ssocket.Multiplexer, vm *goja.Runtime, name string) *Script {
	if mux == nil || vm == nil {
		panic("gojassocket: multiplexer and runtime must not be nil")
	}
	return &Script{
		mux:  mux,
		vm:   vm,
		name: name,
		log:  zerolog.Nop(),
		ctx:  context.Background(),
	}
}

// Load creates a runtime, binds the natives and runs the program source.
func Load(ctx context.Context, mux *ssocket.Multiplexer, name, source string) (*Script, error) {
	s := New(mux, goja.New(), name)
	if err := s.Bind(); err != nil {
		return nil, err
	}
	if _, err := s.Run(ctx, source); err != nil {
		s.Close(ctx)
		return nil, err
	}
	return s, nil
}

// WithLogger sets the logger of the script and returns it.
func (s *Script) WithLogger(logger zerolog.Logger) *Script {
	s.log = logger.With().Str("script", s.name).Logger()
	return s
}

// Name returns the name of the script.
func (s *Script) Name() string { return s.name }

// Runtime returns the goja runtime the script runs on.
func (s *Script) Runtime() *goja.Runtime { return s.vm }

func (s *Script) String() string { return s.name }

// Bind installs the natives as global functions of the runtime.
func (s *Script) Bind() error {
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"ssocket_create":        s.create,
		"ssocket_connect":       s.connect,
		"ssocket_listen":        s.listen,
		"ssocket_send":          s.send,
		"ssocket_destroy":       s.destroy,
		"ssocket_set_recv_wait": s.setRecvWait,
		"ssocket_strunpack":     s.strunpack,
	} {
		if err := s.vm.Set(name, fn); err != nil {
			return fmt.Errorf("%s: binding %s: %w", s.name, name, err)
		}
	}
	return nil
}

// Run evaluates source in the runtime, with ctx passed to the natives it
// calls.
func (s *Script) Run(ctx context.Context, source string) (goja.Value, error) {
	defer s.enter(ctx)()
	return s.vm.RunScript(s.name, source)
}

func (s *Script) enter(ctx context.Context) (leave func()) {
	prev := s.ctx
	s.ctx = ctx
	return func() { s.ctx = prev }
}

// LookupCallback resolves a global function of the script.
func (s *Script) LookupCallback(name string) (ssocket.Callback, bool) {
	if s.closed {
		return nil, false
	}
	fn, ok := goja.AssertFunction(s.vm.Get(name))
	if !ok {
		return nil, false
	}
	return &callback{script: s, fn: fn}, true
}

// Close closes the sockets of the script. Callbacks are not invoked on the
// script after it was closed.
func (s *Script) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if n := s.mux.Unload(ctx, s); n > 0 {
		s.log.Debug().Int("closed", n).Msg("unloaded script sockets")
	}
	return nil
}

var _ ssocket.Owner = (*Script)(nil)
