//go:build linux

package libjack

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Library is a loaded libjack. Its methods mirror the C API one to one,
// taking client and port pointers as uintptr.
type Library struct {
	path   string
	handle uintptr

	mu     sync.Mutex
	tokens map[uintptr][]uintptr // client -> callback tokens

	jackGetVersion         func(major, minor, micro, proto *int32)
	jackClientOpen         func(name string, options uint32, status *uint32, serverName string) uintptr
	jackClientClose        func(client uintptr) int32
	jackGetClientName      func(client uintptr) string
	jackClientNameSize     func() int32
	jackPortNameSize       func() int32
	jackPortTypeSize       func() int32
	jackActivate           func(client uintptr) int32
	jackDeactivate         func(client uintptr) int32
	jackSetProcessCallback func(client, callback, arg uintptr) int32
	jackOnShutdown         func(client, callback, arg uintptr)
	jackGetSampleRate      func(client uintptr) uint32
	jackGetBufferSize      func(client uintptr) uint32
	jackPortRegister       func(client uintptr, name, portType string, flags, bufferSize uint64) uintptr
	jackPortUnregister     func(client, port uintptr) int32
	jackPortByName         func(client uintptr, name string) uintptr
	jackPortName           func(port uintptr) string
	jackPortShortName      func(port uintptr) string
	jackPortFlags          func(port uintptr) int32
	jackPortType           func(port uintptr) string
	jackPortGetBuffer      func(port uintptr, nframes uint32) unsafe.Pointer
	jackPortRequestMonitor func(port uintptr, onoff int32) int32
	jackConnect            func(client uintptr, source, destination string) int32
	jackDisconnect         func(client uintptr, source, destination string) int32
	jackGetPorts           func(client uintptr, namePattern, typePattern string, flags uint64) unsafe.Pointer
	jackFree               func(ptr unsafe.Pointer)
	jackSetErrorFunction   func(fn uintptr)
	jackSetInfoFunction    func(fn uintptr)
}

// Open loads the first of paths that dlopen accepts, or DefaultPaths when
// none are given, and binds every symbol.
func Open(paths ...string) (*Library, error) {
	if len(paths) == 0 {
		paths = DefaultPaths
	}

	var errs []error
	for _, path := range paths {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}

		lib := &Library{path: path, handle: handle, tokens: make(map[uintptr][]uintptr)}
		if err := lib.bind(); err != nil {
			return nil, err
		}
		slog.Debug("loaded jack client library", "path", path)
		return lib, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrLibraryNotFound, errors.Join(errs...))
}

func (l *Library) bind() error {
	symbols := []struct {
		name string
		fptr any
	}{
		{"jack_get_version", &l.jackGetVersion},
		{"jack_client_open", &l.jackClientOpen},
		{"jack_client_close", &l.jackClientClose},
		{"jack_get_client_name", &l.jackGetClientName},
		{"jack_client_name_size", &l.jackClientNameSize},
		{"jack_port_name_size", &l.jackPortNameSize},
		{"jack_port_type_size", &l.jackPortTypeSize},
		{"jack_activate", &l.jackActivate},
		{"jack_deactivate", &l.jackDeactivate},
		{"jack_set_process_callback", &l.jackSetProcessCallback},
		{"jack_on_shutdown", &l.jackOnShutdown},
		{"jack_get_sample_rate", &l.jackGetSampleRate},
		{"jack_get_buffer_size", &l.jackGetBufferSize},
		{"jack_port_register", &l.jackPortRegister},
		{"jack_port_unregister", &l.jackPortUnregister},
		{"jack_port_by_name", &l.jackPortByName},
		{"jack_port_name", &l.jackPortName},
		{"jack_port_short_name", &l.jackPortShortName},
		{"jack_port_flags", &l.jackPortFlags},
		{"jack_port_type", &l.jackPortType},
		{"jack_port_get_buffer", &l.jackPortGetBuffer},
		{"jack_port_request_monitor", &l.jackPortRequestMonitor},
		{"jack_connect", &l.jackConnect},
		{"jack_disconnect", &l.jackDisconnect},
		{"jack_get_ports", &l.jackGetPorts},
		{"jack_free", &l.jackFree},
		{"jack_set_error_function", &l.jackSetErrorFunction},
		{"jack_set_info_function", &l.jackSetInfoFunction},
	}

	var errs []error
	for _, sym := range symbols {
		addr, err := purego.Dlsym(l.handle, sym.name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s in %s", ErrSymbolMissing, sym.name, l.path))
			continue
		}
		purego.RegisterFunc(sym.fptr, addr)
	}
	return errors.Join(errs...)
}

// Path returns the path the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// --------------------------------------------------------------------------------
// Clients

func (l *Library) Version() (major, minor, micro, proto int) {
	var ma, mi, mc, pr int32
	l.jackGetVersion(&ma, &mi, &mc, &pr)
	return int(ma), int(mi), int(mc), int(pr)
}

func (l *Library) ClientOpen(name string, options uint32, serverName string) (uintptr, uint32) {
	var status uint32
	client := l.jackClientOpen(name, options, &status, serverName)
	return client, status
}

// ClientClose closes the client and drops its callback registrations.
func (l *Library) ClientClose(client uintptr) int {
	code := int(l.jackClientClose(client))

	l.mu.Lock()
	tokens := l.tokens[client]
	delete(l.tokens, client)
	l.mu.Unlock()
	for _, token := range tokens {
		unregister(token)
	}
	return code
}

func (l *Library) ClientName(client uintptr) string { return l.jackGetClientName(client) }
func (l *Library) ClientNameSize() int              { return int(l.jackClientNameSize()) }
func (l *Library) PortNameSize() int                { return int(l.jackPortNameSize()) }
func (l *Library) PortTypeSize() int                { return int(l.jackPortTypeSize()) }
func (l *Library) Activate(client uintptr) int      { return int(l.jackActivate(client)) }
func (l *Library) Deactivate(client uintptr) int    { return int(l.jackDeactivate(client)) }

func (l *Library) SetProcessCallback(client uintptr, fn func(nframes uint32) int) int {
	token := l.track(client, &entry{process: fn})
	return int(l.jackSetProcessCallback(client, getTrampolines().process, token))
}

func (l *Library) OnShutdown(client uintptr, fn func()) {
	token := l.track(client, &entry{shutdown: fn})
	l.jackOnShutdown(client, getTrampolines().shutdown, token)
}

func (l *Library) track(client uintptr, e *entry) uintptr {
	token := register(e)
	l.mu.Lock()
	l.tokens[client] = append(l.tokens[client], token)
	l.mu.Unlock()
	return token
}

func (l *Library) SampleRate(client uintptr) uint32 { return l.jackGetSampleRate(client) }
func (l *Library) BufferSize(client uintptr) uint32 { return l.jackGetBufferSize(client) }

// --------------------------------------------------------------------------------
// Ports

func (l *Library) PortRegister(client uintptr, name, portType string, flags, bufferSize uint64) uintptr {
	return l.jackPortRegister(client, name, portType, flags, bufferSize)
}

func (l *Library) PortUnregister(client, port uintptr) int {
	return int(l.jackPortUnregister(client, port))
}

func (l *Library) PortByName(client uintptr, name string) uintptr {
	return l.jackPortByName(client, name)
}

func (l *Library) PortName(port uintptr) string      { return l.jackPortName(port) }
func (l *Library) PortShortName(port uintptr) string { return l.jackPortShortName(port) }
func (l *Library) PortFlags(port uintptr) int32      { return l.jackPortFlags(port) }
func (l *Library) PortType(port uintptr) string      { return l.jackPortType(port) }

func (l *Library) PortGetBuffer(port uintptr, nframes uint32) unsafe.Pointer {
	return l.jackPortGetBuffer(port, nframes)
}

func (l *Library) PortRequestMonitor(port uintptr, on bool) int {
	var onoff int32
	if on {
		onoff = 1
	}
	return int(l.jackPortRequestMonitor(port, onoff))
}

func (l *Library) Connect(client uintptr, source, destination string) int {
	return int(l.jackConnect(client, source, destination))
}

func (l *Library) Disconnect(client uintptr, source, destination string) int {
	return int(l.jackDisconnect(client, source, destination))
}

// GetPorts copies the NULL terminated name array libjack returns and frees
// it. It returns nil when libjack returns NULL.
func (l *Library) GetPorts(client uintptr, namePattern, typePattern string, flags uint64) []string {
	arr := l.jackGetPorts(client, namePattern, typePattern, flags)
	if arr == nil {
		return nil
	}
	defer l.jackFree(arr)

	var names []string
	for i := uintptr(0); ; i++ {
		p := *(*unsafe.Pointer)(unsafe.Add(arr, i*unsafe.Sizeof(uintptr(0))))
		if p == nil {
			break
		}
		names = append(names, goString(p))
	}
	return names
}

// SetMessageHandlers routes libjack's error and info output. The handlers
// are process wide, as they are in libjack.
func (l *Library) SetMessageHandlers(errorFn, infoFn func(msg string)) {
	messages.Store(&messageHandlers{errorFn: errorFn, infoFn: infoFn})
	t := getTrampolines()
	l.jackSetErrorFunction(t.errorMsg)
	l.jackSetInfoFunction(t.infoMsg)
}
