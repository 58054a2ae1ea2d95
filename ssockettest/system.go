// Package ssockettest provides in-memory implementations of the ssocket
// interfaces for tests.
package ssockettest

import (
	"context"
	"errors"
	"fmt"

	"github.com/eapache/queue"
	"github.com/stealthrocket/ssocket-go"
)

var (
	ErrBadFD          = errors.New("bad file descriptor")
	ErrAddrInUse      = errors.New("address already in use")
	ErrNotConnected   = errors.New("socket is not connected")
	ErrWouldSuspend   = errors.New("receive on a blocking socket would suspend the caller")
	errWouldBlockFake = fmt.Errorf("%w: resource temporarily unavailable", ssocket.ErrWouldBlock)
)

// Op names the System operations that failures can be injected into.
type Op string

const (
	OpSocket      Op = "socket"
	OpConnect     Op = "connect"
	OpBind        Op = "bind"
	OpSetNonblock Op = "setnonblock"
	OpSend        Op = "send"
	OpRecvFrom    Op = "recvfrom"
	OpClose       Op = "close"
)

// Datagram is a datagram queued on or sent from a fake socket.
type Datagram struct {
	Data []byte
	From *ssocket.Inet4Address
}

// System is an in-memory ssocket.System. Datagrams sent to a port that a
// socket of the same System is bound to are delivered to that socket, which
// makes it possible to test exchanges between scripts without touching the
// network.
//
// The zero value is ready to use.
type System struct {
	// Errors maps operations to the error they fail with. Entries are left
	// in place, so the failure repeats until the test removes it.
	Errors map[Op]error

	// SendLimit, when positive, caps the number of bytes Send reports as
	// transmitted.
	SendLimit int

	sockets map[ssocket.FD]*socket
	ports   map[int]ssocket.FD
	lastFD  ssocket.FD
	closed  []ssocket.FD
}

type socket struct {
	inbound  *queue.Queue
	sent     []Datagram
	peer     *ssocket.Inet4Address
	local    *ssocket.Inet4Address
	nonblock bool
}

var _ ssocket.System = (*System)(nil)

func (s *System) fail(op Op) error {
	return s.Errors[op]
}

func (s *System) lookup(fd ssocket.FD) (*socket, error) {
	if sock, ok := s.sockets[fd]; ok {
		return sock, nil
	}
	return nil, ErrBadFD
}

func (s *System) Socket(ctx context.Context) (ssocket.FD, error) {
	if err := s.fail(OpSocket); err != nil {
		return ssocket.NoFD, err
	}
	if s.sockets == nil {
		s.sockets = make(map[ssocket.FD]*socket)
		s.ports = make(map[int]ssocket.FD)
		s.lastFD = 2 // skip stdio
	}
	s.lastFD++
	s.sockets[s.lastFD] = &socket{inbound: queue.New()}
	return s.lastFD, nil
}

func (s *System) Connect(ctx context.Context, fd ssocket.FD, addr ssocket.SocketAddress) error {
	sock, err := s.lookup(fd)
	if err != nil {
		return err
	}
	if err := s.fail(OpConnect); err != nil {
		return err
	}
	peer, ok := addr.(*ssocket.Inet4Address)
	if !ok {
		return ssocket.EINVAL
	}
	p := *peer
	sock.peer = &p
	return nil
}

func (s *System) Bind(ctx context.Context, fd ssocket.FD, addr ssocket.SocketAddress) error {
	sock, err := s.lookup(fd)
	if err != nil {
		return err
	}
	if err := s.fail(OpBind); err != nil {
		return err
	}
	local, ok := addr.(*ssocket.Inet4Address)
	if !ok {
		return ssocket.EINVAL
	}
	if _, used := s.ports[local.Port]; used {
		return ErrAddrInUse
	}
	l := *local
	sock.local = &l
	s.ports[local.Port] = fd
	return nil
}

func (s *System) SetNonblock(fd ssocket.FD) error {
	sock, err := s.lookup(fd)
	if err != nil {
		return err
	}
	if err := s.fail(OpSetNonblock); err != nil {
		return err
	}
	sock.nonblock = true
	return nil
}

func (s *System) Send(ctx context.Context, fd ssocket.FD, data []byte) (int, error) {
	sock, err := s.lookup(fd)
	if err != nil {
		return -1, err
	}
	if err := s.fail(OpSend); err != nil {
		return -1, err
	}
	if sock.peer == nil {
		return -1, ErrNotConnected
	}
	n := len(data)
	if s.SendLimit > 0 && n > s.SendLimit {
		n = s.SendLimit
	}
	d := Datagram{Data: append([]byte(nil), data[:n]...), From: sock.local}
	sock.sent = append(sock.sent, d)
	if peerFD, ok := s.ports[sock.peer.Port]; ok {
		s.sockets[peerFD].inbound.Add(d)
	}
	return n, nil
}

func (s *System) RecvFrom(ctx context.Context, fd ssocket.FD, buf []byte) (int, ssocket.SocketAddress, error) {
	sock, err := s.lookup(fd)
	if err != nil {
		return -1, nil, err
	}
	if err := s.fail(OpRecvFrom); err != nil {
		return -1, nil, err
	}
	if sock.inbound.Length() == 0 {
		if !sock.nonblock {
			return -1, nil, ErrWouldSuspend
		}
		return -1, nil, errWouldBlockFake
	}
	d := sock.inbound.Remove().(Datagram)
	n := copy(buf, d.Data)
	if d.From == nil {
		return n, nil, nil
	}
	return n, d.From, nil
}

func (s *System) Close(ctx context.Context, fd ssocket.FD) error {
	sock, err := s.lookup(fd)
	if err != nil {
		return err
	}
	delete(s.sockets, fd)
	if sock.local != nil && s.ports[sock.local.Port] == fd {
		delete(s.ports, sock.local.Port)
	}
	s.closed = append(s.closed, fd)
	return s.fail(OpClose)
}

// Deliver queues a datagram on the socket bound to port, as if it had been
// sent by from. It returns false if no socket is bound to the port.
func (s *System) Deliver(port int, data []byte, from *ssocket.Inet4Address) bool {
	fd, ok := s.ports[port]
	if !ok {
		return false
	}
	s.sockets[fd].inbound.Add(Datagram{Data: append([]byte(nil), data...), From: from})
	return true
}

// Pending returns the number of datagrams queued on a socket.
func (s *System) Pending(fd ssocket.FD) int {
	if sock, ok := s.sockets[fd]; ok {
		return sock.inbound.Length()
	}
	return 0
}

// Sent returns the datagrams sent from a socket that is still open.
func (s *System) Sent(fd ssocket.FD) []Datagram {
	if sock, ok := s.sockets[fd]; ok {
		return sock.sent
	}
	return nil
}

// Peer returns the address a socket is connected to.
func (s *System) Peer(fd ssocket.FD) *ssocket.Inet4Address {
	if sock, ok := s.sockets[fd]; ok {
		return sock.peer
	}
	return nil
}

// Nonblocking reports whether a socket was put in non-blocking mode.
func (s *System) Nonblocking(fd ssocket.FD) bool {
	if sock, ok := s.sockets[fd]; ok {
		return sock.nonblock
	}
	return false
}

// Open returns the number of open sockets.
func (s *System) Open() int {
	return len(s.sockets)
}

// Closed returns the descriptors closed so far, in order.
func (s *System) Closed() []ssocket.FD {
	return s.closed
}
