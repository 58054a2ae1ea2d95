package descriptor

import "math/bits"

// Table is a fixed capacity data structure mapping small integer descriptors
// to objects.
//
// Occupancy is tracked with 64 bits masks so that finding the lowest free
// descriptor is a matter of counting trailing zeros. The capacity is decided
// when the table is created and never changes: descriptors are never
// relocated, and inserting into a full table fails instead of growing it.
type Table[Descriptor ~int32 | ~uint32, Object any] struct {
	masks []uint64
	table []Object
}

// New creates a table able to hold up to capacity objects.
func New[Descriptor ~int32 | ~uint32, Object any](capacity int) *Table[Descriptor, Object] {
	if capacity < 0 {
		capacity = 0
	}
	return &Table[Descriptor, Object]{
		masks: make([]uint64, (capacity+63)/64),
		table: make([]Object, capacity),
	}
}

// Cap returns the number of objects that the table can hold.
func (t *Table[Descriptor, Object]) Cap() int {
	return len(t.table)
}

// Len returns the number of objects stored in the table.
func (t *Table[Descriptor, Object]) Len() (n int) {
	for _, mask := range t.masks {
		n += bits.OnesCount64(mask)
	}
	return n
}

// Next returns the lowest free descriptor, which is the one that the next
// call to Insert would return. The boolean is false if the table is full.
func (t *Table[Descriptor, Object]) Next() (desc Descriptor, ok bool) {
	for index, mask := range t.masks {
		if ^mask == 0 {
			continue
		}
		i := index*64 + bits.TrailingZeros64(^mask)
		if i >= len(t.table) {
			// Bits past the capacity in the last mask are never set.
			break
		}
		return Descriptor(i), true
	}
	return 0, false
}

// Insert inserts the given object at the lowest free descriptor, returning
// the descriptor that it is mapped to. The boolean is false, and the object
// is not inserted, if the table is full.
func (t *Table[Descriptor, Object]) Insert(object Object) (desc Descriptor, ok bool) {
	desc, ok = t.Next()
	if ok {
		index, shift := uint(desc)/64, uint(desc)%64
		t.masks[index] |= 1 << shift
		t.table[desc] = object
	}
	return desc, ok
}

// Access returns a pointer to the object associated with the given
// descriptor, which may be nil if it was not found in the table.
func (t *Table[Descriptor, Object]) Access(desc Descriptor) *Object {
	if i := int64(desc); i >= 0 && i < int64(len(t.table)) {
		index := uint(i) / 64
		shift := uint(i) % 64
		if (t.masks[index] & (1 << shift)) != 0 {
			return &t.table[i]
		}
	}
	return nil
}

// Lookup returns the object associated with the given descriptor.
func (t *Table[Descriptor, Object]) Lookup(desc Descriptor) (object Object, found bool) {
	ptr := t.Access(desc)
	if ptr != nil {
		object, found = *ptr, true
	}
	return
}

// Delete deletes the object stored at the given descriptor from the table,
// returning it. The boolean is false if no object was stored there.
func (t *Table[Descriptor, Object]) Delete(desc Descriptor) (object Object, deleted bool) {
	ptr := t.Access(desc)
	if ptr == nil {
		return object, false
	}
	object = *ptr
	var zero Object
	*ptr = zero
	i := uint(desc)
	t.masks[i/64] &^= 1 << (i % 64)
	return object, true
}

// Range calls f for each object and its associated descriptor in the table,
// in ascending descriptor order. The function f might return false to
// interupt the iteration.
func (t *Table[Descriptor, Object]) Range(f func(Descriptor, Object) bool) {
	for i, mask := range t.masks {
		if mask == 0 {
			continue
		}
		for j := Descriptor(0); j < 64; j++ {
			if (mask & (1 << j)) == 0 {
				continue
			}
			if desc := Descriptor(i)*64 + j; !f(desc, t.table[desc]) {
				return
			}
		}
	}
}

// Reset clears the content of the table.
func (t *Table[Descriptor, Object]) Reset() {
	for i := range t.masks {
		t.masks[i] = 0
	}
	var zero Object
	for i := range t.table {
		t.table[i] = zero
	}
}
