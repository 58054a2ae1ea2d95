// Command ssocketd runs WebAssembly and JavaScript scripts sharing a datagram
// socket multiplexer.
package main

import (
	"fmt"
	"os"
)

const Version = "devel"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
