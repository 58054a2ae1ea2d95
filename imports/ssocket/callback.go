package ssocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/stealthrocket/ssocket-go"
	"github.com/tetratelabs/wazero/api"
)

var errOutOfMemory = errors.New("guest is out of memory")

// guestCallback invokes SSocket_OnRecv in a guest, passing it a copy of the
// datagram in the guest memory.
type guestCallback struct {
	module *Module
	guest  api.Module
	fn     api.Function
	malloc api.Function
	free   api.Function
}

func (c *guestCallback) OnRecv(ctx context.Context, data []byte, handle ssocket.Handle) error {
	if c.module.bind != nil {
		ctx = c.module.bind(ctx)
	}
	memory := c.guest.Memory()
	if memory == nil {
		return fmt.Errorf("%s: guest has no memory", ssocket.CallbackName)
	}

	ptr, err := c.alloc(ctx, uint32(len(data)))
	if err != nil {
		return err
	}
	defer c.free.Call(ctx, uint64(ptr))

	if !memory.Write(ptr, data) {
		return fmt.Errorf("%s: %w (%d bytes at %#x)", ssocket.CallbackName, errOutOfMemory, len(data), ptr)
	}
	_, err = c.fn.Call(ctx,
		uint64(ptr),
		uint64(len(data)),
		api.EncodeI32(int32(handle)),
	)
	return err
}

func (c *guestCallback) alloc(ctx context.Context, size uint32) (uint32, error) {
	results, err := c.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, err
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, fmt.Errorf("%s: %w (malloc of %d bytes failed)", ssocket.CallbackName, errOutOfMemory, size)
	}
	return uint32(results[0]), nil
}

func hasSignature(fn api.Function, params, results []api.ValueType) bool {
	def := fn.Definition()
	return equalTypes(def.ParamTypes(), params) && equalTypes(def.ResultTypes(), results)
}

func equalTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
