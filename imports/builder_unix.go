//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package imports

import (
	"github.com/stealthrocket/ssocket-go"
	"github.com/stealthrocket/ssocket-go/systems/unix"
)

func defaultSystem() (ssocket.System, error) {
	return new(unix.System), nil
}
