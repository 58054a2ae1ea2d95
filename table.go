package ssocket

import (
	"context"

	"github.com/stealthrocket/ssocket-go/internal/descriptor"
)

// Slot is an allocated entry of the handle table.
type Slot struct {
	// FD is the OS socket descriptor.
	FD FD
	// Owner is the script context that created the socket.
	Owner Owner
	// Callback is set when the socket listens; a nil callback means the
	// socket is never polled.
	Callback Callback
	// Nonblocking is true once the descriptor was put in non-blocking mode.
	Nonblocking bool

	gen uint64
}

// Armed reports whether the slot takes part in receive dispatch.
func (s *Slot) Armed() bool {
	return s.Callback != nil && s.Nonblocking
}

// HandleTable is a fixed capacity table of socket slots.
//
// Handles are slot indexes: they are allocated lowest first and never
// relocated. The table owns the descriptors stored in it and closes them
// when slots are released.
type HandleTable struct {
	system System
	slots  *descriptor.Table[Handle, Slot]
	gen    uint64
}

// NewHandleTable creates a table of capacity free slots, using system to
// close released descriptors.
func NewHandleTable(system System, capacity int) *HandleTable {
	return &HandleTable{
		system: system,
		slots:  descriptor.New[Handle, Slot](capacity),
	}
}

// Cap returns the fixed number of slots in the table.
func (t *HandleTable) Cap() int { return t.slots.Cap() }

// Len returns the number of allocated slots.
func (t *HandleTable) Len() int { return t.slots.Len() }

// Next returns the handle that the next call to Acquire would allocate. The
// boolean is false if the table is full.
func (t *HandleTable) Next() (Handle, bool) { return t.slots.Next() }

// Acquire stores fd in the lowest free slot on behalf of owner.
func (t *HandleTable) Acquire(owner Owner, fd FD) (Handle, error) {
	if fd == NoFD {
		return InvalidHandle, EINVAL
	}
	t.gen++
	h, ok := t.slots.Insert(Slot{FD: fd, Owner: owner, gen: t.gen})
	if !ok {
		return InvalidHandle, ENOSLOT
	}
	return h, nil
}

// Lookup returns the slot of an allocated handle. The pointer must not be
// retained across calls that may release slots, such as script callbacks.
func (t *HandleTable) Lookup(h Handle) (*Slot, bool) {
	s := t.slots.Access(h)
	return s, s != nil
}

// Release closes the descriptor of an allocated slot and frees it. It returns
// false, and does nothing, if the handle is invalid or already free.
func (t *HandleTable) Release(ctx context.Context, h Handle) bool {
	ok, _ := t.release(ctx, h)
	return ok
}

func (t *HandleTable) release(ctx context.Context, h Handle) (bool, error) {
	s, ok := t.slots.Delete(h)
	if !ok {
		return false, nil
	}
	return true, t.system.Close(ctx, s.FD)
}

// CloseAll releases every allocated slot, returning how many were closed.
func (t *HandleTable) CloseAll(ctx context.Context) int {
	return t.closeIf(ctx, func(*Slot) bool { return true })
}

// CloseOwnedBy releases the slots owned by owner, returning how many were
// closed. Slots of other owners are left untouched.
func (t *HandleTable) CloseOwnedBy(ctx context.Context, owner Owner) int {
	return t.closeIf(ctx, func(s *Slot) bool { return s.Owner == owner })
}

func (t *HandleTable) closeIf(ctx context.Context, match func(*Slot) bool) (closed int) {
	var handles []Handle
	t.slots.Range(func(h Handle, s Slot) bool {
		if match(&s) {
			handles = append(handles, h)
		}
		return true
	})
	for _, h := range handles {
		if t.Release(ctx, h) {
			closed++
		}
	}
	return closed
}

// slotRef identifies one allocation of a slot. A slot released and acquired
// again gets a different generation.
type slotRef struct {
	handle Handle
	gen    uint64
}

func (t *HandleTable) appendArmed(refs []slotRef) []slotRef {
	t.slots.Range(func(h Handle, s Slot) bool {
		if s.Armed() {
			refs = append(refs, slotRef{handle: h, gen: s.gen})
		}
		return true
	})
	return refs
}

func (t *HandleTable) lookupRef(ref slotRef) (*Slot, bool) {
	s, ok := t.Lookup(ref.handle)
	if !ok || s.gen != ref.gen {
		return nil, false
	}
	return s, true
}
