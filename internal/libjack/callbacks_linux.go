//go:build linux

package libjack

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Native code receives an integer token as the callback argument, never a Go
// pointer. The token indexes this registry.
var (
	registry  sync.Map // uintptr -> *entry
	lastToken atomic.Uintptr

	messages atomic.Pointer[messageHandlers]
)

type entry struct {
	process  func(nframes uint32) int
	shutdown func()
}

type messageHandlers struct {
	errorFn, infoFn func(string)
}

func register(e *entry) uintptr {
	token := lastToken.Add(1)
	registry.Store(token, e)
	return token
}

func unregister(token uintptr) {
	registry.Delete(token)
}

func find(token uintptr) *entry {
	e, ok := registry.Load(token)
	if !ok {
		return nil
	}
	return e.(*entry)
}

// trampolines are the C function pointers handed to libjack. purego can only
// create a bounded number of callbacks per process, so they are created once
// and shared by every client of every loaded library.
type trampolines struct {
	process, shutdown, errorMsg, infoMsg uintptr
}

var getTrampolines = sync.OnceValue(func() *trampolines {
	return &trampolines{
		process:  purego.NewCallback(processTrampoline),
		shutdown: purego.NewCallback(shutdownTrampoline),
		errorMsg: purego.NewCallback(errorTrampoline),
		infoMsg:  purego.NewCallback(infoTrampoline),
	}
})

// int (*JackProcessCallback)(jack_nframes_t nframes, void *arg)
func processTrampoline(nframes uintptr, arg uintptr) uintptr {
	e := find(arg)
	if e == nil || e.process == nil {
		return 0
	}
	return uintptr(uint32(int32(e.process(uint32(nframes)))))
}

// void (*JackShutdownCallback)(void *arg)
func shutdownTrampoline(arg uintptr) {
	if e := find(arg); e != nil && e.shutdown != nil {
		e.shutdown()
	}
}

// void (*)(const char *msg)
func errorTrampoline(msg unsafe.Pointer) {
	if h := messages.Load(); h != nil && h.errorFn != nil {
		h.errorFn(goString(msg))
	}
}

func infoTrampoline(msg unsafe.Pointer) {
	if h := messages.Load(); h != nil && h.infoFn != nil {
		h.infoFn(goString(msg))
	}
}

// goString copies a NUL terminated C string.
func goString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}
