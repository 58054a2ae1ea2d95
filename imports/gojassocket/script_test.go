package gojassocket_test

import (
	"context"
	"testing"

	"github.com/dop251/goja"
	"github.com/stealthrocket/ssocket-go"
	"github.com/stealthrocket/ssocket-go/imports/gojassocket"
	"github.com/stealthrocket/ssocket-go/ssockettest"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ctx context.Context
	sys *ssockettest.System
	mux *ssocket.Multiplexer
}

func newTestEnv(t *testing.T, options ...ssocket.Option) *testEnv {
	t.Helper()
	sys := new(ssockettest.System)
	mux := ssocket.New(sys, options...)
	t.Cleanup(func() { mux.Close(context.Background()) })
	return &testEnv{ctx: context.Background(), sys: sys, mux: mux}
}

func (env *testEnv) load(t *testing.T, name, source string) *gojassocket.Script {
	t.Helper()
	s, err := gojassocket.Load(env.ctx, env.mux, name, source)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func run(t *testing.T, s *gojassocket.Script, source string) goja.Value {
	t.Helper()
	v, err := s.Run(context.Background(), source)
	require.NoError(t, err)
	return v
}

const receiver = `
var received = [];
function SSocket_OnRecv(data, length, handle, from) {
	var s = "";
	for (var i = 0; i < data.length; i++) {
		s += String.fromCharCode(data[i]);
	}
	received.push({data: s, length: length, handle: handle, from: from});
}
`

func TestNatives(t *testing.T) {
	env := newTestEnv(t, ssocket.WithCapacity(2))
	s := env.load(t, "natives.js", `var h = ssocket_create();`)

	require.EqualValues(t, 0, run(t, s, `h`).ToInteger())
	require.EqualValues(t, 1, run(t, s, `ssocket_connect(h, "127.0.0.1", 9000)`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `ssocket_connect(h, "localhost", 9000)`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `ssocket_connect(7, "127.0.0.1", 9000)`).ToInteger())

	require.EqualValues(t, 1, run(t, s, `ssocket_create()`).ToInteger())
	require.EqualValues(t, -1, run(t, s, `ssocket_create()`).ToInteger())
	require.EqualValues(t, 1, run(t, s, `ssocket_destroy(1)`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `ssocket_destroy(1)`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `ssocket_destroy(-1)`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `ssocket_destroy(1e12)`).ToInteger())

	require.EqualValues(t, 1, run(t, s, `ssocket_set_recv_wait(5000)`).ToInteger())
	require.Equal(t, ssocket.MaxRecvWait, env.mux.RecvWait())
	require.EqualValues(t, 1, run(t, s, `ssocket_set_recv_wait(3)`).ToInteger())
	require.Equal(t, 3, env.mux.RecvWait())
}

func TestMissingHandle(t *testing.T) {
	env := newTestEnv(t)
	s := env.load(t, "missing.js", `
		var h = ssocket_create();
		ssocket_connect(h, "10.0.0.1", 53);
	`)
	fd := slotFD(t, env, 0)

	require.EqualValues(t, 0, run(t, s, `ssocket_send()`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `ssocket_send(undefined, "x")`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `ssocket_connect(null, "127.0.0.1", 9000)`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `ssocket_destroy()`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `ssocket_destroy(null)`).ToInteger())

	require.Empty(t, env.sys.Sent(fd))
	require.Equal(t, 1, env.mux.Table().Len())
	require.EqualValues(t, 1, run(t, s, `ssocket_destroy(h)`).ToInteger())
}

func TestSend(t *testing.T) {
	env := newTestEnv(t)
	s := env.load(t, "send.js", `
		var h = ssocket_create();
		ssocket_connect(h, "10.0.0.1", 53);
	`)
	fd := slotFD(t, env, 0)

	tests := []struct {
		source string
		sent   int64
		data   string
	}{
		{`ssocket_send(h, "hello")`, 5, "hello"},
		{`ssocket_send(h, "hello", 2)`, 2, "he"},
		{`ssocket_send(h, "hello", 100)`, 5, "hello"},
		{`ssocket_send(h, new Uint8Array([104, 105]))`, 2, "hi"},
		{`ssocket_send(h, new Uint8Array([104, 105]).buffer)`, 2, "hi"},
		{`ssocket_send(h, [0x61, 0x62, 0x63], 3)`, 3, "abc"},
		{`ssocket_send(h, "", 0)`, 0, ""},
	}
	for i, test := range tests {
		require.Equal(t, test.sent, run(t, s, test.source).ToInteger(), test.source)
		sent := env.sys.Sent(fd)
		require.Len(t, sent, i+1)
		require.Equal(t, test.data, string(sent[i].Data), test.source)
	}

	require.EqualValues(t, 0, run(t, s, `ssocket_send(5, "hello")`).ToInteger())
	require.EqualValues(t, -1, run(t, s, `ssocket_send(ssocket_create(), "hello")`).ToInteger())

	_, err := s.Run(env.ctx, `ssocket_send(h, undefined)`)
	require.Error(t, err)
}

func TestStrUnpack(t *testing.T) {
	env := newTestEnv(t)
	s := env.load(t, "strunpack.js", ``)

	tests := []struct {
		source string
		want   string
	}{
		{`ssocket_strunpack("hello", 10)`, "hello"},
		{`ssocket_strunpack("hello", 3)`, "he"},
		{`ssocket_strunpack("hello")`, "hello"},
		{`ssocket_strunpack(new Uint8Array([104, 105, 0, 106]), 10)`, "hi"},
		{`ssocket_strunpack("hello", 0)`, ""},
	}
	for _, test := range tests {
		require.Equal(t, test.want, run(t, s, test.source).String(), test.source)
	}
}

func TestDispatch(t *testing.T) {
	env := newTestEnv(t)
	s := env.load(t, "server.js", receiver+`
		var h = ssocket_create();
		ssocket_listen(h, 7000);
	`)

	from, err := ssocket.ParseInet4Address("192.168.0.7", 4000)
	require.NoError(t, err)
	require.True(t, env.sys.Deliver(7000, []byte("0123456789"), from))
	require.Equal(t, 1, env.mux.Tick(env.ctx))

	require.Equal(t, "0123456789", run(t, s, `received[0].data`).String())
	require.EqualValues(t, 10, run(t, s, `received[0].length`).ToInteger())
	require.EqualValues(t, 0, run(t, s, `received[0].handle`).ToInteger())
	require.Equal(t, "192.168.0.7:4000", run(t, s, `received[0].from`).String())
	require.EqualValues(t, 1, run(t, s, `received.length`).ToInteger())
}

func TestExchange(t *testing.T) {
	env := newTestEnv(t)
	server := env.load(t, "server.js", receiver+`
		var h = ssocket_create();
		ssocket_listen(h, 7000);
	`)
	client := env.load(t, "client.js", `
		var h = ssocket_create();
		ssocket_connect(h, "127.0.0.1", 7000);
	`)

	require.EqualValues(t, 4, run(t, client, `ssocket_send(h, "ping")`).ToInteger())
	require.Equal(t, 1, env.mux.Tick(env.ctx))
	require.Equal(t, "ping", run(t, server, `received[0].data`).String())
	require.EqualValues(t, 0, run(t, server, `received[0].handle`).ToInteger())
}

func TestListenWithoutCallback(t *testing.T) {
	env := newTestEnv(t)
	env.load(t, "mute.js", `
		var h = ssocket_create();
		var r = ssocket_listen(h, 7000);
		if (r !== 0) throw new Error("unexpected result " + r);
	`)

	s, ok := env.mux.Table().Lookup(0)
	require.True(t, ok)
	require.False(t, s.Armed())
	require.False(t, env.sys.Deliver(7000, []byte("a"), nil))
}

func TestCallbackException(t *testing.T) {
	env := newTestEnv(t)
	env.load(t, "throw.js", `
		function SSocket_OnRecv(data, length, handle) {
			throw new Error("boom");
		}
		ssocket_listen(ssocket_create(), 7000);
	`)

	env.sys.Deliver(7000, []byte("a"), nil)
	require.Equal(t, 1, env.mux.Tick(env.ctx))
	require.EqualValues(t, 1, env.mux.Stats().CallbackErrors)
}

func TestCallbackReentrancy(t *testing.T) {
	env := newTestEnv(t)
	s := env.load(t, "reentrant.js", `
		var received = 0;
		var a = ssocket_create();
		var b = ssocket_create();
		function SSocket_OnRecv(data, length, handle) {
			received++;
			ssocket_destroy(a);
			ssocket_destroy(b);
		}
		ssocket_listen(a, 7000);
		ssocket_listen(b, 7001);
	`)

	env.sys.Deliver(7000, []byte("a"), nil)
	env.sys.Deliver(7001, []byte("b"), nil)
	require.Equal(t, 1, env.mux.Tick(env.ctx))
	require.EqualValues(t, 1, run(t, s, `received`).ToInteger())
	require.Equal(t, 0, env.mux.Table().Len())
}

func TestClose(t *testing.T) {
	env := newTestEnv(t)
	x := env.load(t, "x.js", `ssocket_create(); ssocket_create();`)
	env.load(t, "y.js", `ssocket_create();`)

	require.NoError(t, x.Close(env.ctx))
	require.Equal(t, 1, env.mux.Table().Len())
	require.NoError(t, x.Close(env.ctx))
	require.Equal(t, 1, env.mux.Table().Len())

	_, ok := x.LookupCallback(ssocket.CallbackName)
	require.False(t, ok)
}

func TestLoadError(t *testing.T) {
	env := newTestEnv(t)
	_, err := gojassocket.Load(env.ctx, env.mux, "broken.js", `ssocket_create(); throw new Error("init failed");`)
	require.Error(t, err)
	// Sockets created before the failure are released.
	require.Equal(t, 0, env.mux.Table().Len())
}

func slotFD(t *testing.T, env *testEnv, h ssocket.Handle) ssocket.FD {
	t.Helper()
	s, ok := env.mux.Table().Lookup(h)
	require.True(t, ok)
	return s.FD
}
