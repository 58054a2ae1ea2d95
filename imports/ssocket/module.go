// Package ssocket exposes a datagram socket multiplexer to WebAssembly guests
// as a wazero host module.
package ssocket

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stealthrocket/ssocket-go"
	"github.com/stealthrocket/wazergo"
	. "github.com/stealthrocket/wazergo/types"
	"github.com/tetratelabs/wazero/api"
)

const moduleName = "ssocket"

// HostModule is the wazero host module exporting the socket natives.
//
// Every guest gets its own instance of the host module, which acts as the
// owner of the sockets the guest creates: closing the instance closes them.
// Guests that listen must export SSocket_OnRecv(ptr, len, handle), as well as
// malloc and free so the host can copy datagrams into their memory.
var HostModule wazergo.HostModule[*Module] = functions{
	"ssocket_create":        wazergo.F0((*Module).Create),
	"ssocket_connect":       wazergo.F3((*Module).Connect),
	"ssocket_listen":        listenShape((*Module).Listen),
	"ssocket_send":          wazergo.F2((*Module).Send),
	"ssocket_destroy":       wazergo.F1((*Module).Destroy),
	"ssocket_set_recv_wait": wazergo.F1((*Module).SetRecvWait),
	"ssocket_strunpack":     wazergo.F3((*Module).StrUnpack),
}

// Option configures the host module.
type Option = wazergo.Option[*Module]

// WithMultiplexer sets the multiplexer that sockets are created on.
func WithMultiplexer(mux *ssocket.Multiplexer) Option {
	return wazergo.OptionFunc(func(m *Module) { m.mux = mux })
}

// WithLogger sets the logger of the host module.
func WithLogger(logger zerolog.Logger) Option {
	return wazergo.OptionFunc(func(m *Module) { m.log = logger })
}

// WithName sets the name that the guest is known by in logs.
func WithName(name string) Option {
	return wazergo.OptionFunc(func(m *Module) { m.name = name })
}

type functions wazergo.Functions[*Module]

func (f functions) Name() string {
	return moduleName
}

func (f functions) Functions() wazergo.Functions[*Module] {
	return (wazergo.Functions[*Module])(f)
}

func (f functions) Instantiate(ctx context.Context, opts ...Option) (*Module, error) {
	mod := &Module{log: zerolog.Nop()}
	wazergo.Configure(mod, opts...)
	if mod.mux == nil {
		return nil, fmt.Errorf("socket multiplexer not provided")
	}
	mod.log = mod.log.With().Str("script", mod.name).Logger()
	return mod, nil
}

// Module is an instance of the host module, bound to a single guest.
type Module struct {
	mux  *ssocket.Multiplexer
	log  zerolog.Logger
	name string

	// guest is the module calling the natives; it is captured on the first
	// call to ssocket_listen, or set when the guest is loaded.
	guest api.Module
	// bind attaches the host module instance to contexts used to call into
	// the guest, so the guest can call natives from its callback.
	bind   func(context.Context) context.Context
	closed bool
}

func (m *Module) String() string { return m.name }

func (m *Module) Create(ctx context.Context) Int32 {
	h, err := m.mux.Create(ctx, m)
	if err != nil {
		return Int32(ssocket.InvalidHandle)
	}
	return Int32(h)
}

func (m *Module) Connect(ctx context.Context, h Int32, address String, port Int32) Int32 {
	if err := m.mux.Connect(ctx, ssocket.Handle(h), string(address), int(port)); err != nil {
		return 0
	}
	return 1
}

// Listen always returns zero, failures are only reported in logs.
func (m *Module) Listen(ctx context.Context, module api.Module, h Int32, port Int32) Int32 {
	if m.guest == nil {
		m.guest = module
	}
	m.mux.Listen(ctx, ssocket.Handle(h), int(port))
	return 0
}

func (m *Module) Send(ctx context.Context, h Int32, data Bytes) Int32 {
	n, err := m.mux.Send(ctx, ssocket.Handle(h), data)
	if err != nil {
		if errno, ok := ssocket.MakeErrno(err); ok && errno == ssocket.EBADHANDLE {
			return 0
		}
		return -1
	}
	return Int32(n)
}

func (m *Module) Destroy(ctx context.Context, h Int32) Int32 {
	if !m.mux.Destroy(ctx, ssocket.Handle(h)) {
		return 0
	}
	return 1
}

func (m *Module) SetRecvWait(ctx context.Context, ticks Int32) Int32 {
	m.mux.SetRecvWait(int(ticks))
	return 1
}

func (m *Module) StrUnpack(ctx context.Context, dest Pointer[Int32], src Pointer[Uint8], maxLength Int32) Int32 {
	strunpack(dest.Memory(), dest.Offset(), src.Offset(), int(maxLength))
	return 1
}

// strunpack unpacks the string at src into maxLength 32 bits cells at dest.
// Both buffers are clipped to the guest memory.
func strunpack(memory api.Memory, dest, src uint32, maxLength int) {
	if maxLength <= 0 || memory == nil {
		return
	}
	size := memory.Size()
	if dest >= size || src >= size {
		return
	}
	if n := int((size - dest) / 4); maxLength > n {
		maxLength = n
	}
	length := uint32(maxLength)
	if length > size-src {
		length = size - src
	}
	packed, _ := memory.Read(src, length)

	cells := make([]ssocket.Cell, maxLength)
	n := ssocket.StrUnpack(cells, packed)

	b, _ := memory.Read(dest, uint32(4*(n+1)))
	for i, c := range cells[:n+1] {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(c))
	}
}

// LookupCallback resolves a receive callback exported by the guest.
func (m *Module) LookupCallback(name string) (ssocket.Callback, bool) {
	if m.guest == nil || m.closed {
		return nil, false
	}
	fn := m.guest.ExportedFunction(name)
	if fn == nil || !hasSignature(fn, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, nil) {
		m.log.Debug().Str("export", name).Msg("guest does not export the callback")
		return nil, false
	}
	malloc := m.guest.ExportedFunction("malloc")
	free := m.guest.ExportedFunction("free")
	if malloc == nil || free == nil {
		m.log.Debug().Str("export", name).Msg("guest does not export malloc and free")
		return nil, false
	}
	return &guestCallback{
		module: m,
		guest:  m.guest,
		fn:     fn,
		malloc: malloc,
		free:   free,
	}, true
}

// Close closes the sockets created by the guest. It is called when the guest
// is unloaded, and is a no-op after the first call.
func (m *Module) Close(ctx context.Context) error {
	if m.closed {
		return nil
	}
	m.closed = true
	if n := m.mux.Unload(ctx, m); n > 0 {
		m.log.Debug().Int("closed", n).Msg("unloaded script sockets")
	}
	m.guest = nil
	return nil
}

func listenShape[T any](fn func(T, context.Context, api.Module, Int32, Int32) Int32) wazergo.Function[T] {
	var handle, port, result Int32
	return wazergo.Function[T]{
		Params:  []Value{handle, port},
		Results: []Value{result},
		Func: func(this T, ctx context.Context, module api.Module, stack []uint64) {
			var handle, port Int32
			var memory = module.Memory()
			fn(this, ctx, module,
				handle.LoadValue(memory, stack[0:1]),
				port.LoadValue(memory, stack[1:2]),
			).StoreValue(memory, stack)
		},
	}
}

var _ ssocket.Owner = (*Module)(nil)
