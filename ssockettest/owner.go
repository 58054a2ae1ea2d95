package ssockettest

import (
	"context"

	"github.com/stealthrocket/ssocket-go"
)

// Call is a recorded callback invocation.
type Call struct {
	Data   []byte
	Length int
	Handle ssocket.Handle
}

// Owner is a fake script context recording the datagrams dispatched to it.
type Owner struct {
	Name string

	// NoCallback makes the owner behave like a script that does not export
	// the receive callback.
	NoCallback bool

	// OnRecv, if set, is invoked after each call is recorded; its error is
	// returned to the multiplexer.
	OnRecv func(ctx context.Context, data []byte, handle ssocket.Handle) error

	Calls []Call
}

// NewOwner returns an owner exporting the receive callback.
func NewOwner(name string) *Owner {
	return &Owner{Name: name}
}

func (o *Owner) LookupCallback(name string) (ssocket.Callback, bool) {
	if o.NoCallback || name != ssocket.CallbackName {
		return nil, false
	}
	return ssocket.CallbackFunc(o.recv), true
}

func (o *Owner) recv(ctx context.Context, data []byte, handle ssocket.Handle) error {
	o.Calls = append(o.Calls, Call{
		Data:   append([]byte(nil), data...),
		Length: len(data),
		Handle: handle,
	})
	if o.OnRecv != nil {
		return o.OnRecv(ctx, data, handle)
	}
	return nil
}

func (o *Owner) String() string { return o.Name }

var _ ssocket.Owner = (*Owner)(nil)
