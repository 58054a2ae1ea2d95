// Package ssocket is a non-blocking datagram socket multiplexer for script
// hosts.
//
// Scripts acquire socket handles from a fixed capacity table, connect or bind
// them, and send datagrams. Inbound datagrams are not delivered as they
// arrive: the host calls Multiplexer.Tick from its own scheduler, and on
// firing ticks the multiplexer polls every armed socket once and invokes the
// owning script's receive callback with the payload.
//
// The package does not know about any particular scripting runtime. Runtimes
// are plugged in by implementing the Owner and Callback interfaces, see the
// imports/ssocket (WebAssembly) and imports/gojassocket (JavaScript)
// packages.
//
// A Multiplexer is not safe for concurrent use: control operations and ticks
// must all happen on the host's scheduling goroutine.
package ssocket

import "fmt"

// Handle is the index of a socket slot, and the socket identifier exposed to
// scripts.
type Handle int32

// InvalidHandle is the handle returned to scripts when no socket could be
// created.
const InvalidHandle Handle = -1

func (h Handle) String() string {
	return fmt.Sprintf("ssocket:%d", int32(h))
}

// FD is an OS socket descriptor.
type FD int

// NoFD is the descriptor value of free slots.
const NoFD FD = -1

const (
	// DefaultCapacity is the number of socket slots of a multiplexer created
	// without the WithCapacity option.
	DefaultCapacity = 10

	// DefaultRecvBufferSize is the maximum size of datagrams delivered to
	// callbacks; longer datagrams are truncated.
	DefaultRecvBufferSize = 2048

	// MaxRecvWait is the upper bound of the poll cadence threshold.
	MaxRecvWait = 1000

	// CallbackName is the name of the function that scripts must export to
	// receive datagrams on listening sockets.
	CallbackName = "SSocket_OnRecv"
)

// ClampRecvWait restricts a poll cadence threshold to [0, MaxRecvWait].
func ClampRecvWait(ticks int) int {
	switch {
	case ticks > MaxRecvWait:
		return MaxRecvWait
	case ticks < 0:
		return 0
	default:
		return ticks
	}
}
