package imports

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/stealthrocket/ssocket-go"
)

// Builder is used to setup the socket multiplexer shared by the scripts of a
// host.
type Builder struct {
	capacity       int
	recvWait       int
	recvBufferSize int
	logger         *zerolog.Logger
	tracer         io.Writer
	system         ssocket.System
	wrappers       []func(ssocket.System) ssocket.System
	errors         []error
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{
		capacity:       ssocket.DefaultCapacity,
		recvBufferSize: ssocket.DefaultRecvBufferSize,
	}
}

// WithCapacity sets the number of socket slots.
func (b *Builder) WithCapacity(capacity int) *Builder {
	if capacity <= 0 {
		b.errors = append(b.errors, fmt.Errorf("invalid socket capacity %d", capacity))
	}
	b.capacity = capacity
	return b
}

// WithRecvWait sets the initial poll cadence threshold. Values outside of
// [0, ssocket.MaxRecvWait] are clamped.
func (b *Builder) WithRecvWait(ticks int) *Builder {
	b.recvWait = ssocket.ClampRecvWait(ticks)
	return b
}

// WithRecvBufferSize sets the maximum size of datagrams passed to callbacks.
func (b *Builder) WithRecvBufferSize(size int) *Builder {
	if size <= 0 {
		b.errors = append(b.errors, fmt.Errorf("invalid receive buffer size %d", size))
	}
	b.recvBufferSize = size
	return b
}

// WithLogger sets the logger of the multiplexer.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithTracer enables the Tracer, and instructs it to write to the
// specified io.Writer.
func (b *Builder) WithTracer(enable bool, w io.Writer) *Builder {
	if !enable {
		w = nil
	}
	b.tracer = w
	return b
}

// WithSystem sets the socket layer. It defaults to the system of the host
// platform.
func (b *Builder) WithSystem(system ssocket.System) *Builder {
	b.system = system
	return b
}

// WithWrappers sets the ssocket.System wrappers.
func (b *Builder) WithWrappers(wrappers ...func(ssocket.System) ssocket.System) *Builder {
	b.wrappers = wrappers
	return b
}

// Build initializes the socket layer and creates the multiplexer. Failing to
// initialize the socket layer is the only fatal error of a host.
func (b *Builder) Build() (*ssocket.Multiplexer, error) {
	if err := errors.Join(b.errors...); err != nil {
		return nil, err
	}

	system := b.system
	if system == nil {
		s, err := defaultSystem()
		if err != nil {
			return nil, err
		}
		system = s
	}
	if s, ok := system.(interface{ Init() error }); ok {
		if err := s.Init(); err != nil {
			return nil, err
		}
	}

	for _, wrap := range b.wrappers {
		system = wrap(system)
	}
	if b.tracer != nil {
		system = &ssocket.Tracer{Writer: b.tracer, System: system}
	}

	options := []ssocket.Option{
		ssocket.WithCapacity(b.capacity),
		ssocket.WithRecvBufferSize(b.recvBufferSize),
		ssocket.WithRecvWait(b.recvWait),
	}
	if b.logger != nil {
		options = append(options, ssocket.WithLogger(*b.logger))
	}
	return ssocket.New(system, options...), nil
}
