package ssocket_test

// Minimal WebAssembly binary encoder, enough to assemble the guests used by
// the tests without a toolchain.

const (
	i32 = 0x7f

	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionMemory   = 5
	sectionExport   = 7
	sectionCode     = 10

	exportFunc   = 0
	exportMemory = 2
)

func uleb(v uint32) (b []byte) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if v == 0 {
			return b
		}
	}
}

func concat(chunks ...[]byte) (b []byte) {
	for _, c := range chunks {
		b = append(b, c...)
	}
	return b
}

func vec(items ...[]byte) []byte {
	return concat(uleb(uint32(len(items))), concat(items...))
}

func name(s string) []byte {
	return concat(uleb(uint32(len(s))), []byte(s))
}

func section(id byte, content []byte) []byte {
	return concat([]byte{id}, uleb(uint32(len(content))), content)
}

func funcType(params, results []byte) []byte {
	return concat([]byte{0x60}, vec(bytesOf(params)...), vec(bytesOf(results)...))
}

func bytesOf(b []byte) [][]byte {
	items := make([][]byte, len(b))
	for i := range b {
		items[i] = b[i : i+1]
	}
	return items
}

func importFunc(module, field string, typeIndex uint32) []byte {
	return concat(name(module), name(field), []byte{0x00}, uleb(typeIndex))
}

func export(field string, kind byte, index uint32) []byte {
	return concat(name(field), []byte{kind}, uleb(index))
}

// body encodes a function body without locals.
func body(code ...byte) []byte {
	b := concat([]byte{0x00}, code, []byte{0x0b})
	return concat(uleb(uint32(len(b))), b)
}

func module(sections ...[]byte) []byte {
	return concat([]byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}, concat(sections...))
}

const (
	opCall     = 0x10
	opDrop     = 0x1a
	opLocalGet = 0x20
	opI32Const = 0x41
)

// mallocOffset is the address that the guests' malloc always returns.
const mallocOffset = 1024

// guestModule assembles a guest exporting memory, malloc, free and
// SSocket_OnRecv. The callback forwards its arguments to test.record, then,
// if destroy is true, passes the handle to ssocket.ssocket_destroy.
func guestModule(destroy bool) []byte {
	types := vec(
		funcType([]byte{i32, i32, i32}, nil), // 0: record, SSocket_OnRecv
		funcType([]byte{i32}, []byte{i32}),   // 1: malloc, ssocket_destroy
		funcType([]byte{i32}, nil),           // 2: free
	)

	imports := [][]byte{importFunc("test", "record", 0)}
	onRecv := []byte{
		opLocalGet, 0,
		opLocalGet, 1,
		opLocalGet, 2,
		opCall, 0,
	}
	if destroy {
		imports = append(imports, importFunc("ssocket", "ssocket_destroy", 1))
		onRecv = append(onRecv,
			opLocalGet, 2,
			opCall, 1,
			opDrop,
		)
	}
	base := uint32(len(imports))

	return module(
		section(sectionType, types),
		section(sectionImport, vec(imports...)),
		section(sectionFunction, vec([]byte{1}, []byte{2}, []byte{0})),
		section(sectionMemory, vec([]byte{0x00, 0x01})),
		section(sectionExport, vec(
			export("memory", exportMemory, 0),
			export("malloc", exportFunc, base+0),
			export("free", exportFunc, base+1),
			export("SSocket_OnRecv", exportFunc, base+2),
		)),
		section(sectionCode, vec(
			body(append([]byte{opI32Const}, uleb(mallocOffset)...)...),
			body(),
			body(onRecv...),
		)),
	)
}

// memoryModule assembles a guest that only exports a memory, and so cannot
// receive datagrams.
func memoryModule() []byte {
	return module(
		section(sectionMemory, vec([]byte{0x00, 0x01})),
		section(sectionExport, vec(export("memory", exportMemory, 0))),
	)
}
