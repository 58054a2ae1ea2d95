// Package unix implements ssocket.System on top of the BSD socket API of
// Unix systems.
package unix

import (
	"context"
	"errors"
	"fmt"

	"github.com/stealthrocket/ssocket-go"
	"golang.org/x/sys/unix"
)

// System is an ssocket.System for Unix.
//
// An instance of System is not safe for concurrent use.
type System struct {
	// RecvFlags are OR-ed into the flags passed to recvfrom(2). Sockets are
	// already in non-blocking mode when they are polled, so this is usually
	// left empty.
	RecvFlags int

	unixInet4 unix.SockaddrInet4
	addrInet4 ssocket.Inet4Address
}

var _ ssocket.System = (*System)(nil)

// Init checks that the platform socket layer is usable by opening and
// closing a datagram socket.
func (s *System) Init() error {
	fd, err := socket()
	if err != nil {
		return fmt.Errorf("cannot initialize sockets: %w", err)
	}
	return unix.Close(fd)
}

func (s *System) Socket(ctx context.Context) (ssocket.FD, error) {
	fd, err := socket()
	if err != nil {
		return ssocket.NoFD, makeError(err)
	}
	return ssocket.FD(fd), nil
}

func (s *System) Connect(ctx context.Context, fd ssocket.FD, addr ssocket.SocketAddress) error {
	sa, ok := s.toUnixSockAddress(addr)
	if !ok {
		return ssocket.EINVAL
	}
	return makeError(unix.Connect(int(fd), sa))
}

func (s *System) Bind(ctx context.Context, fd ssocket.FD, addr ssocket.SocketAddress) error {
	sa, ok := s.toUnixSockAddress(addr)
	if !ok {
		return ssocket.EINVAL
	}
	return makeError(unix.Bind(int(fd), sa))
}

func (s *System) SetNonblock(fd ssocket.FD) error {
	return makeError(unix.SetNonblock(int(fd), true))
}

func (s *System) Send(ctx context.Context, fd ssocket.FD, data []byte) (int, error) {
	n, err := unix.Write(int(fd), data)
	return n, makeError(err)
}

func (s *System) RecvFrom(ctx context.Context, fd ssocket.FD, buf []byte) (int, ssocket.SocketAddress, error) {
	n, sa, err := unix.Recvfrom(int(fd), buf, s.RecvFlags)
	if err != nil {
		return n, nil, makeError(err)
	}
	return n, s.fromUnixSockAddress(sa), nil
}

func (s *System) Close(ctx context.Context, fd ssocket.FD) error {
	if fd < 0 {
		return makeError(unix.EBADF)
	}
	return makeError(unix.Close(int(fd)))
}

func (s *System) toUnixSockAddress(addr ssocket.SocketAddress) (sa unix.Sockaddr, ok bool) {
	switch t := addr.(type) {
	case *ssocket.Inet4Address:
		s.unixInet4.Port = t.Port
		s.unixInet4.Addr = t.Addr
		sa = &s.unixInet4
	default:
		return nil, false
	}
	return sa, true
}

// fromUnixSockAddress converts the sender address of a datagram. The result
// is only valid until the next call.
func (s *System) fromUnixSockAddress(sa unix.Sockaddr) ssocket.SocketAddress {
	switch t := sa.(type) {
	case *unix.SockaddrInet4:
		s.addrInet4.Addr = t.Addr
		s.addrInet4.Port = t.Port
		return &s.addrInet4
	default:
		return nil
	}
}

// makeError wraps EAGAIN and EWOULDBLOCK so they satisfy
// ssocket.IsWouldBlock, leaving other errors untouched.
func makeError(err error) error {
	if err == nil {
		return nil
	}
	var errno unix.Errno
	if errors.As(err, &errno) && (errno == unix.EAGAIN || errno == unix.EWOULDBLOCK) {
		return &wouldBlockError{errno}
	}
	return err
}

type wouldBlockError struct{ errno unix.Errno }

func (e *wouldBlockError) Error() string { return e.errno.Error() }

func (e *wouldBlockError) Unwrap() []error { return []error{ssocket.ErrWouldBlock, e.errno} }
