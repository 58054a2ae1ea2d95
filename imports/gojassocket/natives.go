package gojassocket

import (
	"github.com/dop251/goja"
	"github.com/stealthrocket/ssocket-go"
)

func (s *Script) create(call goja.FunctionCall) goja.Value {
	h, err := s.mux.Create(s.ctx, s)
	if err != nil {
		return s.vm.ToValue(int32(ssocket.InvalidHandle))
	}
	return s.vm.ToValue(int32(h))
}

func (s *Script) connect(call goja.FunctionCall) goja.Value {
	h := handleOf(call.Argument(0))
	address := call.Argument(1).String()
	port := int(call.Argument(2).ToInteger())
	if err := s.mux.Connect(s.ctx, h, address, port); err != nil {
		return s.vm.ToValue(0)
	}
	return s.vm.ToValue(1)
}

func (s *Script) listen(call goja.FunctionCall) goja.Value {
	s.mux.Listen(s.ctx, handleOf(call.Argument(0)), int(call.Argument(1).ToInteger()))
	return s.vm.ToValue(0)
}

func (s *Script) send(call goja.FunctionCall) goja.Value {
	h := handleOf(call.Argument(0))
	if _, ok := s.mux.Table().Lookup(h); !ok {
		return s.vm.ToValue(0)
	}
	data, ok := s.bytesOf(call.Argument(1))
	if !ok {
		panic(s.vm.NewTypeError("ssocket_send: expected a string, an array, a typed array or an ArrayBuffer"))
	}
	if length := call.Argument(2); !isAbsent(length) {
		n := length.ToInteger()
		switch {
		case n < 0:
			n = 0
		case n > int64(len(data)):
			n = int64(len(data))
		}
		data = data[:n]
	}
	n, err := s.mux.Send(s.ctx, h, data)
	if err != nil {
		return s.vm.ToValue(-1)
	}
	return s.vm.ToValue(n)
}

func (s *Script) destroy(call goja.FunctionCall) goja.Value {
	if !s.mux.Destroy(s.ctx, handleOf(call.Argument(0))) {
		return s.vm.ToValue(0)
	}
	return s.vm.ToValue(1)
}

func (s *Script) setRecvWait(call goja.FunctionCall) goja.Value {
	s.mux.SetRecvWait(clampInt(call.Argument(0).ToInteger()))
	return s.vm.ToValue(1)
}

func (s *Script) strunpack(call goja.FunctionCall) goja.Value {
	data, ok := s.bytesOf(call.Argument(0))
	if !ok {
		panic(s.vm.NewTypeError("ssocket_strunpack: expected a string, an array, a typed array or an ArrayBuffer"))
	}
	maxLength := len(data) + 1
	if arg := call.Argument(1); !isAbsent(arg) {
		maxLength = clampInt(arg.ToInteger())
	}
	return s.vm.ToValue(ssocket.UnpackString(data, maxLength))
}

// bytesOf extracts the binary content of a JS value. Strings are taken as
// their UTF-8 encoding, arrays of numbers as one byte per element.
func (s *Script) bytesOf(val goja.Value) ([]byte, bool) {
	if isAbsent(val) {
		return nil, false
	}
	switch v := val.Export().(type) {
	case goja.ArrayBuffer:
		return v.Bytes(), true
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	case []any:
		b := make([]byte, len(v))
		for i, x := range v {
			b[i] = byte(s.vm.ToValue(x).ToInteger())
		}
		return b, true
	}
	var b []byte
	if err := s.vm.ExportTo(val, &b); err == nil {
		return b, true
	}
	return nil, false
}

func (s *Script) newUint8Array(data []byte) goja.Value {
	ab := s.vm.NewArrayBuffer(data)
	ctor := s.vm.Get("Uint8Array")
	if isAbsent(ctor) {
		return s.vm.ToValue(ab)
	}
	array, err := s.vm.New(ctor, s.vm.ToValue(ab))
	if err != nil {
		return s.vm.ToValue(ab)
	}
	return array
}

func isAbsent(val goja.Value) bool {
	return val == nil || goja.IsUndefined(val) || goja.IsNull(val)
}

// handleOf converts a JS value to a handle. Missing arguments and values that
// do not fit in 32 bits map to the invalid handle.
func handleOf(val goja.Value) ssocket.Handle {
	if isAbsent(val) {
		return ssocket.InvalidHandle
	}
	n := val.ToInteger()
	if n < -1<<31 || n > 1<<31-1 {
		return ssocket.InvalidHandle
	}
	return ssocket.Handle(n)
}

func clampInt(n int64) int {
	const maxInt32, minInt32 = 1<<31 - 1, -1 << 31
	switch {
	case n > maxInt32:
		return maxInt32
	case n < minInt32:
		return minInt32
	default:
		return int(n)
	}
}
