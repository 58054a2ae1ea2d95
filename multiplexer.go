package ssocket

import (
	"context"

	"github.com/rs/zerolog"
)

// Multiplexer manages the sockets of all scripts loaded in a host, and
// dispatches inbound datagrams to their callbacks on scheduler ticks.
//
// An instance of Multiplexer is not safe for concurrent use.
type Multiplexer struct {
	system System
	table  *HandleTable
	log    zerolog.Logger

	capacity       int
	recvBufferSize int

	// wait is the poll cadence threshold, waitValue counts the ticks since
	// the last scan.
	wait      int
	waitValue int

	buf     []byte
	refs    []slotRef
	polling bool
	closed  bool
	stats   Stats
}

// Stats are counters describing the activity of a multiplexer.
type Stats struct {
	Ticks          uint64
	Scans          uint64
	Dispatches     uint64
	RecvErrors     uint64
	CallbackErrors uint64
}

// New creates a multiplexer on top of system. All slots of the handle table
// are free and the poll cadence threshold is zero, meaning that every tick
// scans the sockets, unless options say otherwise.
func New(system System, options ...Option) *Multiplexer {
	m := &Multiplexer{
		system:         system,
		log:            zerolog.Nop(),
		capacity:       DefaultCapacity,
		recvBufferSize: DefaultRecvBufferSize,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.capacity < 0 {
		m.capacity = 0
	}
	if m.recvBufferSize <= 0 {
		m.recvBufferSize = DefaultRecvBufferSize
	}
	m.table = NewHandleTable(system, m.capacity)
	m.buf = make([]byte, m.recvBufferSize)
	m.refs = make([]slotRef, 0, m.capacity)
	return m
}

// Table returns the handle table of the multiplexer.
func (m *Multiplexer) Table() *HandleTable { return m.table }

// Stats returns a snapshot of the multiplexer counters.
func (m *Multiplexer) Stats() Stats { return m.stats }

// Create opens a datagram socket on behalf of owner, and stores it in the
// lowest free slot of the handle table.
func (m *Multiplexer) Create(ctx context.Context, owner Owner) (Handle, error) {
	if m.closed {
		return InvalidHandle, ECLOSED
	}
	if _, ok := m.table.Next(); !ok {
		m.log.Warn().Str("op", "create").Int("capacity", m.table.Cap()).Msg("no free slot")
		return InvalidHandle, ENOSLOT
	}
	fd, err := m.system.Socket(ctx)
	if err != nil {
		m.log.Warn().Str("op", "create").Err(err).Msg("cannot create socket")
		return InvalidHandle, opError("socket", InvalidHandle, nil, err)
	}
	h, err := m.table.Acquire(owner, fd)
	if err != nil {
		m.system.Close(ctx, fd)
		return InvalidHandle, err
	}
	return h, nil
}

// Connect sets the default peer of the socket to the IPv4 address and port.
// Datagram sockets do not perform any handshake, the call only records the
// destination used by Send.
func (m *Multiplexer) Connect(ctx context.Context, h Handle, address string, port int) error {
	s, ok := m.table.Lookup(h)
	if !ok {
		m.log.Warn().Str("op", "connect").Int32("handle", int32(h)).Msg("incorrect handle")
		return EBADHANDLE
	}
	addr, err := ParseInet4Address(address, port)
	if err != nil {
		m.log.Warn().Str("op", "connect").Int32("handle", int32(h)).Err(err).Msg("invalid address")
		return err
	}
	if err := m.system.Connect(ctx, s.FD, addr); err != nil {
		m.log.Warn().Str("op", "connect").Int32("handle", int32(h)).Stringer("addr", addr).Err(err).Msg("connect failed")
		return opError("connect", h, addr, err)
	}
	m.setNonblock(h, s)
	return nil
}

// Listen binds the socket to the wildcard address on port and arms it for
// receive dispatch: from then on, datagrams arriving on the socket are passed
// to the SSocket_OnRecv callback of the socket owner.
//
// The callback is resolved before binding; if the owner does not export it,
// Listen fails with ENOCALLBACK and the socket is left allocated but unarmed.
func (m *Multiplexer) Listen(ctx context.Context, h Handle, port int) error {
	s, ok := m.table.Lookup(h)
	if !ok {
		m.log.Warn().Str("op", "listen").Int32("handle", int32(h)).Msg("incorrect handle")
		return EBADHANDLE
	}
	addr, err := AnyInet4Address(port)
	if err != nil {
		m.log.Warn().Str("op", "listen").Int32("handle", int32(h)).Err(err).Msg("invalid port")
		return err
	}
	var callback Callback
	if s.Owner != nil {
		callback, ok = s.Owner.LookupCallback(CallbackName)
	}
	if callback == nil || !ok {
		m.log.Warn().Str("op", "listen").Int32("handle", int32(h)).Msg("no " + CallbackName + " callback")
		return ENOCALLBACK
	}
	// Resolving the callback ran host code, the slot is looked up again.
	if s, ok = m.table.Lookup(h); !ok {
		return EBADHANDLE
	}
	if err := m.system.Bind(ctx, s.FD, addr); err != nil {
		m.log.Warn().Str("op", "listen").Int32("handle", int32(h)).Int("port", port).Err(err).Msg("cannot listen on port")
		return opError("bind", h, addr, err)
	}
	m.setNonblock(h, s)
	s.Callback = callback
	return nil
}

func (m *Multiplexer) setNonblock(h Handle, s *Slot) {
	if s.Nonblocking {
		return
	}
	if err := m.system.SetNonblock(s.FD); err != nil {
		m.log.Warn().Int32("handle", int32(h)).Err(err).Msg("cannot set non-blocking mode, socket will not be polled")
		return
	}
	s.Nonblocking = true
}

// Send transmits data to the peer of a connected socket. The byte count is
// returned as the system reports it, which may be less than len(data). An
// invalid handle returns zero and performs no I/O.
func (m *Multiplexer) Send(ctx context.Context, h Handle, data []byte) (int, error) {
	s, ok := m.table.Lookup(h)
	if !ok {
		return 0, EBADHANDLE
	}
	n, err := m.system.Send(ctx, s.FD, data)
	if err != nil {
		if !IsWouldBlock(err) {
			m.log.Debug().Str("op", "send").Int32("handle", int32(h)).Err(err).Msg("send failed")
		}
		return n, opError("send", h, nil, err)
	}
	return n, nil
}

// Destroy closes the socket and frees its slot. It returns false if the
// handle did not refer to an allocated socket.
func (m *Multiplexer) Destroy(ctx context.Context, h Handle) bool {
	ok, err := m.table.release(ctx, h)
	if err != nil {
		m.log.Debug().Str("op", "destroy").Int32("handle", int32(h)).Err(err).Msg("close failed")
	}
	return ok
}

// SetRecvWait sets the poll cadence threshold: sockets are scanned once every
// ticks+1 calls to Tick. The value is clamped to [0, MaxRecvWait] and
// returned. The next call to Tick always scans.
func (m *Multiplexer) SetRecvWait(ticks int) int {
	m.wait = ClampRecvWait(ticks)
	m.waitValue = MaxRecvWait + 1
	return m.wait
}

// RecvWait returns the poll cadence threshold.
func (m *Multiplexer) RecvWait() int { return m.wait }

// Tick is called by the host once per scheduler tick. On firing ticks, it
// attempts one non-blocking receive on every armed socket, in handle order,
// and synchronously invokes the owner's callback for each datagram received.
// It returns the number of callbacks invoked.
//
// Callbacks may create, destroy, or re-arm any socket, including the one
// being dispatched. Sockets released during the scan are skipped, and sockets
// allocated during the scan are first polled on the next firing tick.
// Calls made from a callback return zero and do not advance the cadence.
func (m *Multiplexer) Tick(ctx context.Context) int {
	m.stats.Ticks++
	if m.polling {
		// Tick was called from a callback; the outer scan is still running.
		return 0
	}
	m.waitValue++
	if m.waitValue <= m.wait {
		return 0
	}
	m.waitValue = 0
	m.polling = true
	defer func() { m.polling = false }()
	return m.poll(ctx)
}

func (m *Multiplexer) poll(ctx context.Context) (dispatched int) {
	m.stats.Scans++
	m.refs = m.table.appendArmed(m.refs[:0])

	for _, ref := range m.refs {
		s, ok := m.table.lookupRef(ref)
		if !ok || !s.Armed() {
			continue
		}
		fd, callback := s.FD, s.Callback

		n, from, err := m.system.RecvFrom(ctx, fd, m.buf)
		if err != nil {
			if !IsWouldBlock(err) {
				m.stats.RecvErrors++
				m.log.Debug().Str("op", "recv").Int32("handle", int32(ref.handle)).Err(err).Msg("receive failed")
			}
			continue
		}
		if n <= 0 {
			continue
		}
		if n > len(m.buf) {
			n = len(m.buf)
		}
		data := m.buf[:n]

		m.stats.Dispatches++
		dispatched++
		if c, ok := callback.(CallbackFrom); ok {
			err = c.OnRecvFrom(ctx, data, ref.handle, from)
		} else {
			err = callback.OnRecv(ctx, data, ref.handle)
		}
		if err != nil {
			m.stats.CallbackErrors++
			m.log.Error().Int32("handle", int32(ref.handle)).Int("length", n).Err(err).Msg(CallbackName + " failed")
		}
	}
	return dispatched
}

// Unload closes the sockets owned by a script context that is being unloaded,
// returning how many were closed. It must be called before the host
// invalidates the context. Sockets of other owners are not affected.
func (m *Multiplexer) Unload(ctx context.Context, owner Owner) int {
	closed := m.table.CloseOwnedBy(ctx, owner)
	if closed > 0 {
		m.log.Info().Int("closed", closed).Msgf("closed %d opened sockets registered by unloaded script", closed)
	}
	return closed
}

// Close closes every socket still open and rejects further socket creation,
// returning how many sockets were closed. Closing a multiplexer more than
// once is harmless.
func (m *Multiplexer) Close(ctx context.Context) int {
	m.closed = true
	closed := m.table.CloseAll(ctx)
	if closed > 0 {
		m.log.Info().Int("closed", closed).Msgf("closed %d unclosed sockets", closed)
	}
	return closed
}
