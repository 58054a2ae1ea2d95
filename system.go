package ssocket

import (
	"context"
	"errors"
)

// System is the interface to the OS datagram socket layer.
//
// The multiplexer never calls into the OS directly, which lets hosts swap the
// platform implementation (see systems/unix) and lets tests use an in-memory
// one (see ssockettest).
//
// Errors returned by Send and RecvFrom when the operation would block must
// wrap ErrWouldBlock.
type System interface {
	// Socket creates an IPv4 datagram socket.
	Socket(ctx context.Context) (FD, error)

	// Connect sets the default peer of a datagram socket. No handshake takes
	// place.
	Connect(ctx context.Context, fd FD, addr SocketAddress) error

	// Bind assigns a local address to a socket.
	Bind(ctx context.Context, fd FD, addr SocketAddress) error

	// SetNonblock puts the socket in non-blocking mode. After it returned
	// successfully, Send and RecvFrom never suspend the caller.
	SetNonblock(fd FD) error

	// Send transmits a datagram to the default peer of a connected socket,
	// returning the number of bytes sent.
	Send(ctx context.Context, fd FD, data []byte) (int, error)

	// RecvFrom receives at most one datagram into buf, returning its length
	// (truncated to len(buf)) and the address of the sender.
	RecvFrom(ctx context.Context, fd FD, buf []byte) (int, SocketAddress, error)

	// Close closes a socket.
	Close(ctx context.Context, fd FD) error
}

// ErrWouldBlock is the error that System implementations wrap when a
// non-blocking operation could not complete immediately.
var ErrWouldBlock = errors.New("operation would block")

// IsWouldBlock reports whether err means that no datagram was pending or that
// the socket buffer was full.
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}
