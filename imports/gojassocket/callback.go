package gojassocket

import (
	"context"

	"github.com/dop251/goja"
	"github.com/stealthrocket/ssocket-go"
)

type callback struct {
	script *Script
	fn     goja.Callable
}

func (c *callback) OnRecv(ctx context.Context, data []byte, handle ssocket.Handle) error {
	return c.OnRecvFrom(ctx, data, handle, nil)
}

// OnRecvFrom passes a copy of the datagram to the script, since the script
// may retain the buffer.
func (c *callback) OnRecvFrom(ctx context.Context, data []byte, handle ssocket.Handle, from ssocket.SocketAddress) error {
	s := c.script
	defer s.enter(ctx)()

	sender := goja.Undefined()
	if from != nil {
		sender = s.vm.ToValue(from.String())
	}
	_, err := c.fn(goja.Undefined(),
		s.newUint8Array(append([]byte(nil), data...)),
		s.vm.ToValue(len(data)),
		s.vm.ToValue(int32(handle)),
		sender,
	)
	return err
}

var _ ssocket.CallbackFrom = (*callback)(nil)
