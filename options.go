package ssocket

import "github.com/rs/zerolog"

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithCapacity sets the number of socket slots. It defaults to
// DefaultCapacity.
func WithCapacity(capacity int) Option {
	return func(m *Multiplexer) { m.capacity = capacity }
}

// WithRecvBufferSize sets the size of the receive buffer, which bounds the
// size of datagrams delivered to callbacks. It defaults to
// DefaultRecvBufferSize.
func WithRecvBufferSize(size int) Option {
	return func(m *Multiplexer) { m.recvBufferSize = size }
}

// WithRecvWait sets the initial poll cadence threshold, see SetRecvWait.
func WithRecvWait(ticks int) Option {
	return func(m *Multiplexer) { m.wait = ClampRecvWait(ticks) }
}

// WithLogger sets the logger that diagnostics are written to. Multiplexers
// do not log by default.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Multiplexer) { m.log = logger }
}
