package imports

import (
	"sort"

	"github.com/stealthrocket/ssocket-go"
	"github.com/tetratelabs/wazero"
)

// HostModuleName is the name of the module that guests import the socket
// natives from.
const HostModuleName = "ssocket"

// DetectNatives returns the socket natives imported by a WASM module, in
// alphabetical order.
func DetectNatives(module wazero.CompiledModule) (natives []string) {
	for _, f := range module.ImportedFunctions() {
		moduleName, name, ok := f.Import()
		if ok && moduleName == HostModuleName {
			natives = append(natives, name)
		}
	}
	sort.Strings(natives)
	return natives
}

// DetectCallback reports whether a WASM module exports the functions needed
// to receive datagrams: the callback, and the allocator used to pass it the
// payload.
func DetectCallback(module wazero.CompiledModule) bool {
	exports := module.ExportedFunctions()
	for _, name := range []string{ssocket.CallbackName, "malloc", "free"} {
		if _, ok := exports[name]; !ok {
			return false
		}
	}
	return true
}
