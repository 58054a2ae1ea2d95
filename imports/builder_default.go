//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package imports

import (
	"fmt"
	"runtime"

	"github.com/stealthrocket/ssocket-go"
)

func defaultSystem() (ssocket.System, error) {
	return nil, fmt.Errorf("ssocket-go is not available on GOOS=%s", runtime.GOOS)
}
