package ssocket

import (
	"context"
	"fmt"
	"io"
)

// Tracer wraps a System to log calls.
type Tracer struct {
	Writer io.Writer
	System
}

var _ System = (*Tracer)(nil)

func (t *Tracer) Socket(ctx context.Context) (FD, error) {
	t.printf("Socket() => ")
	fd, err := t.System.Socket(ctx)
	if err == nil {
		t.printf("%d", fd)
	} else {
		t.printError(err)
	}
	t.printf("\n")
	return fd, err
}

func (t *Tracer) Connect(ctx context.Context, fd FD, addr SocketAddress) error {
	t.printf("Connect(%d, %s) => ", fd, addr)
	err := t.System.Connect(ctx, fd, addr)
	t.printResult(err)
	return err
}

func (t *Tracer) Bind(ctx context.Context, fd FD, addr SocketAddress) error {
	t.printf("Bind(%d, %s) => ", fd, addr)
	err := t.System.Bind(ctx, fd, addr)
	t.printResult(err)
	return err
}

func (t *Tracer) SetNonblock(fd FD) error {
	t.printf("SetNonblock(%d) => ", fd)
	err := t.System.SetNonblock(fd)
	t.printResult(err)
	return err
}

func (t *Tracer) Send(ctx context.Context, fd FD, data []byte) (int, error) {
	t.printf("Send(%d, ", fd)
	t.printBytes(data)
	t.printf(") => ")
	n, err := t.System.Send(ctx, fd, data)
	if err == nil {
		t.printf("%d", n)
	} else {
		t.printError(err)
	}
	t.printf("\n")
	return n, err
}

func (t *Tracer) RecvFrom(ctx context.Context, fd FD, buf []byte) (int, SocketAddress, error) {
	n, addr, err := t.System.RecvFrom(ctx, fd, buf)
	// Polling idle sockets is the common case, tracing it would drown
	// everything else.
	if IsWouldBlock(err) {
		return n, addr, err
	}
	t.printf("RecvFrom(%d, [%d]byte) => ", fd, len(buf))
	if err == nil {
		t.printf("%d, ", n)
		if addr != nil {
			t.printf("%s, ", addr)
		}
		if n >= 0 && n <= len(buf) {
			t.printBytes(buf[:n])
		}
	} else {
		t.printError(err)
	}
	t.printf("\n")
	return n, addr, err
}

func (t *Tracer) Close(ctx context.Context, fd FD) error {
	t.printf("Close(%d) => ", fd)
	err := t.System.Close(ctx, fd)
	t.printResult(err)
	return err
}

func (t *Tracer) printResult(err error) {
	if err == nil {
		t.printf("ok")
	} else {
		t.printError(err)
	}
	t.printf("\n")
}

func (t *Tracer) printError(err error) {
	t.printf("error: %v", err)
}

func (t *Tracer) printBytes(b []byte) {
	const maxBytes = 32
	trimmed := b
	if len(trimmed) > maxBytes {
		trimmed = trimmed[:maxBytes]
	}
	t.printf("%q", trimmed)
	if len(trimmed) < len(b) {
		t.printf("... (%d bytes)", len(b))
	}
}

func (t *Tracer) printf(msg string, args ...any) {
	fmt.Fprintf(t.Writer, msg, args...)
}
