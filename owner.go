package ssocket

import "context"

// Callback is the receive entry point of a script, resolved once when a
// socket starts listening and invoked for every datagram dispatched to it.
type Callback interface {
	// OnRecv is invoked with the datagram payload and the handle of the
	// socket it arrived on. The payload is only valid for the duration of
	// the call. Errors are logged by the multiplexer and otherwise ignored.
	OnRecv(ctx context.Context, data []byte, handle Handle) error
}

// CallbackFrom is implemented by callbacks that also want to know the address
// of the datagram sender. The multiplexer calls OnRecvFrom instead of OnRecv
// when a callback implements it.
type CallbackFrom interface {
	Callback
	OnRecvFrom(ctx context.Context, data []byte, handle Handle, from SocketAddress) error
}

// Owner is a script execution context owning sockets.
//
// Owners are compared with ==, so implementations are usually pointer types.
// Sockets are scoped to their owner: Multiplexer.Unload closes every socket
// an owner created.
type Owner interface {
	// LookupCallback resolves a function exported by the script. The
	// boolean is false if the script does not export it.
	LookupCallback(name string) (Callback, bool)
}

// CallbackFunc adapts a function to the Callback interface.
type CallbackFunc func(ctx context.Context, data []byte, handle Handle) error

func (f CallbackFunc) OnRecv(ctx context.Context, data []byte, handle Handle) error {
	return f(ctx, data, handle)
}
