package unix_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stealthrocket/ssocket-go"
	"github.com/stealthrocket/ssocket-go/ssockettest"
	"github.com/stealthrocket/ssocket-go/systems/unix"
)

func TestInit(t *testing.T) {
	if err := new(unix.System).Init(); err != nil {
		t.Fatal(err)
	}
}

func TestRecvWouldBlock(t *testing.T) {
	ctx := context.Background()
	system := new(unix.System)

	fd, err := system.Socket(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer system.Close(ctx, fd)

	if err := system.Bind(ctx, fd, &ssocket.Inet4Address{Addr: [4]byte{127, 0, 0, 1}}); err != nil {
		t.Fatal(err)
	}
	if err := system.SetNonblock(fd); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 16)
	_, _, err = system.RecvFrom(ctx, fd, buf)
	if !ssocket.IsWouldBlock(err) {
		t.Fatalf("expected a would-block error, got %v", err)
	}
}

func TestCloseInvalidDescriptor(t *testing.T) {
	if err := new(unix.System).Close(context.Background(), ssocket.NoFD); err == nil {
		t.Fatal("closing an invalid descriptor succeeded")
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	mux := ssocket.New(new(unix.System))
	defer mux.Close(ctx)

	owner := ssockettest.NewOwner("x")
	h, err := mux.Create(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	port := freePort(t)
	if err := mux.Listen(ctx, h, port); err != nil {
		t.Fatal(err)
	}

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("0123456789")); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(owner.Calls) == 0 && time.Now().Before(deadline) {
		mux.Tick(ctx)
		time.Sleep(time.Millisecond)
	}
	if len(owner.Calls) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(owner.Calls))
	}
	call := owner.Calls[0]
	if call.Length != 10 || string(call.Data) != "0123456789" || call.Handle != h {
		t.Fatalf("wrong dispatch: %+v", call)
	}
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	mux := ssocket.New(new(unix.System))
	defer mux.Close(ctx)

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	port := conn.LocalAddr().(*net.UDPAddr).Port

	h, err := mux.Create(ctx, ssockettest.NewOwner("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := mux.Connect(ctx, h, "127.0.0.1", port); err != nil {
		t.Fatal(err)
	}
	n, err := mux.Send(ctx, h, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("wrong byte count: %d", n)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 64)
	n, _, err = conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("wrong payload: %q", buf[:n])
	}
}

func TestSendNotConnected(t *testing.T) {
	ctx := context.Background()
	mux := ssocket.New(new(unix.System))
	defer mux.Close(ctx)

	h, err := mux.Create(ctx, ssockettest.NewOwner("x"))
	if err != nil {
		t.Fatal(err)
	}
	_, err = mux.Send(ctx, h, []byte("hello"))
	var opErr *ssocket.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected an *OpError, got %v", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}
