package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"
	"github.com/stealthrocket/ssocket-go"
	"github.com/stealthrocket/ssocket-go/imports"
	"github.com/stealthrocket/ssocket-go/imports/gojassocket"
	wasmssocket "github.com/stealthrocket/ssocket-go/imports/ssocket"
	"github.com/tetratelabs/wazero"
)

type script interface {
	Name() string
	Close(context.Context) error
}

func run(ctx context.Context, cfg config, logOutput io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := cfg.logger(logOutput)

	mux, err := imports.NewBuilder().
		WithCapacity(cfg.Capacity).
		WithRecvWait(cfg.RecvWait).
		WithRecvBufferSize(cfg.RecvBufferSize).
		WithLogger(log).
		WithTracer(cfg.Trace, logOutput).
		Build()
	if err != nil {
		return err
	}

	var scripts []script
	defer func() {
		// Contexts are unloaded before the multiplexer is torn down, in the
		// reverse order of loading.
		teardown := context.Background()
		for i := len(scripts) - 1; i >= 0; i-- {
			if err := scripts[i].Close(teardown); err != nil {
				log.Warn().Str("script", scripts[i].Name()).Err(err).Msg("unloading script")
			}
		}
		mux.Close(teardown)
		stats := mux.Stats()
		log.Info().
			Uint64("ticks", stats.Ticks).
			Uint64("dispatches", stats.Dispatches).
			Uint64("callback_errors", stats.CallbackErrors).
			Msg("stopped")
	}()

	for _, path := range cfg.Scripts {
		s, err := load(ctx, mux, log, path)
		if err != nil {
			return err
		}
		scripts = append(scripts, s)
		log.Info().Str("script", s.Name()).Msg("loaded")
	}

	ticker := time.NewTicker(cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			mux.Tick(ctx)
		}
	}
}

func load(ctx context.Context, mux *ssocket.Multiplexer, log zerolog.Logger, path string) (script, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read script '%s': %w", path, err)
	}
	name := filepath.Base(path)

	switch filepath.Ext(path) {
	case ".wasm":
		runtime := wazero.NewRuntime(ctx)
		compiled, err := runtime.CompileModule(ctx, code)
		if err != nil {
			runtime.Close(ctx)
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if natives := imports.DetectNatives(compiled); len(natives) == 0 {
			log.Warn().Str("script", name).Msg("module does not import any socket native")
		}
		if !imports.DetectCallback(compiled) {
			log.Debug().Str("script", name).Msg("module cannot receive datagrams")
		}
		compiled.Close(ctx)
		s, err := wasmssocket.Load(ctx, runtime, mux, name, code, wasmssocket.WithLogger(log))
		if err != nil {
			runtime.Close(ctx)
			return nil, err
		}
		return s, nil

	case ".js":
		s := gojassocket.New(mux, goja.New(), name).WithLogger(log)
		if err := s.Bind(); err != nil {
			return nil, err
		}
		if _, err := s.Run(ctx, string(code)); err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("%s: unsupported script type, expected .wasm or .js", name)
	}
}
