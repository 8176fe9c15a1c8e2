package driver

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// RunError reports a failure in mapping or invoking JIT-compiled code,
// kept distinct from StageError since it happens after every pipeline
// stage has already succeeded.
type RunError struct{ msg string }

func (e *RunError) Error() string { return "driver: run: " + e.msg }

// Run maps res's encoded buffer into an executable page and calls its
// entry func as a zero-argument function, returning its result as a
// process exit code — the same shape as
// original_source/src/cmd/run.cc's `int (*main_func)(void)` invocation:
// a single anonymous mmap'd region holds the whole program image, and
// main is looked up by address through the linker rather than through
// any symbol table, since none exists at this layer.
func Run(res *Result) (int64, error) {
	entry := res.Program.EntryFunc()
	if entry == nil {
		return 0, &RunError{msg: "program has no entry func"}
	}
	funcRef, ok := res.Translator.FuncRef(entry.ID())
	if !ok {
		return 0, &RunError{msg: fmt.Sprintf("entry func %s was not translated", entry.Name())}
	}
	offset, ok := res.Linker.FuncAddr(funcRef.ID())
	if !ok {
		return 0, &RunError{msg: fmt.Sprintf("entry func %s has no recorded address", entry.Name())}
	}

	code := res.Buffer.Bytes()
	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, &RunError{msg: "mmap: " + err.Error()}
	}
	defer unix.Munmap(mem)

	copy(mem, code)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return 0, &RunError{msg: "mprotect: " + err.Error()}
	}

	return callEntry(uintptr(unsafe.Pointer(&mem[offset]))), nil
}

// callEntry invokes the machine code at addr as a zero-argument function
// returning an int64. A Go func value is itself a pointer to a small
// closure record whose first word is the code address; since addr has no
// such record, callEntry builds a one-word stand-in itself and points a
// func() int64 at it, rather than at addr directly. This is the standard
// (if unsafe) shape for invoking raw JIT-compiled code from Go — there is
// no other way to cross from a byte address to a callable Go value.
func callEntry(addr uintptr) int64 {
	var fn func() int64
	codePtr := addr
	*(*unsafe.Pointer)(unsafe.Pointer(&fn)) = unsafe.Pointer(&codePtr)
	return fn()
}
