package ssocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/stealthrocket/ssocket-go"
	"github.com/stealthrocket/wazergo"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// Script is a WebAssembly guest loaded in its own runtime, with an instance
// of the host module bound to it.
type Script struct {
	name    string
	runtime wazero.Runtime
	host    *wazergo.ModuleInstance[*Module]
	module  *Module
	guest   api.Module
}

// Load compiles and instantiates a guest on runtime, along with WASI preview 1
// and the host module. The runtime must not be shared with other scripts,
// since host module names are unique within a runtime; it is closed when the
// script is.
//
// Guests that exit with a zero status while starting are kept loaded.
func Load(ctx context.Context, runtime wazero.Runtime, mux *ssocket.Multiplexer, name string, code []byte, options ...Option) (*Script, error) {
	if mux == nil {
		return nil, fmt.Errorf("%s: socket multiplexer not provided", name)
	}
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	s := &Script{name: name, runtime: runtime}
	options = append([]Option{WithName(name), WithMultiplexer(mux)}, options...)
	s.host = wazergo.MustInstantiate(ctx, runtime, HostModule, append(options, withScript(s))...)
	ctx = wazergo.WithModuleInstance(ctx, s.host)

	compiled, err := runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	config := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions("_initialize", "_start")

	guest, err := runtime.InstantiateModule(ctx, compiled, config)
	if err != nil {
		var exitErr *sys.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 0 {
			s.module.Close(ctx)
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	if guest != nil {
		s.guest = guest
		s.module.guest = guest
	}
	return s, nil
}

func withScript(s *Script) Option {
	return wazergo.OptionFunc(func(m *Module) {
		s.module = m
		m.bind = func(ctx context.Context) context.Context {
			return wazergo.WithModuleInstance(ctx, s.host)
		}
	})
}

// Name returns the name of the script.
func (s *Script) Name() string { return s.name }

// Module returns the host module instance bound to the script, which owns the
// script sockets.
func (s *Script) Module() *Module { return s.module }

// Guest returns the guest module, or nil if the guest exited while starting.
func (s *Script) Guest() api.Module { return s.guest }

// Context returns ctx with the host module instance of the script attached,
// for use when calling guest functions.
func (s *Script) Context(ctx context.Context) context.Context {
	return wazergo.WithModuleInstance(ctx, s.host)
}

// Close unloads the script: its sockets are closed, then its runtime.
func (s *Script) Close(ctx context.Context) error {
	s.module.Close(ctx)
	return s.runtime.Close(ctx)
}
