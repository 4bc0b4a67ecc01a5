package jack

import "unsafe"

// Native is the foreign call boundary: one method per libjack entry point the
// facade uses. References are the raw native addresses of jack_client_t and
// jack_port_t objects, zero meaning NULL. Implementations must tolerate any
// argument the facade forwards; the facade never forwards a zero reference.
//
// internal/libjack provides the production implementation and
// internal/jacktest an in-memory one.
type Native interface {
	Version() (major, minor, micro, proto int)

	ClientOpen(name string, options uint32, serverName string) (client uintptr, status uint32)
	ClientClose(client uintptr) int
	ClientName(client uintptr) string
	ClientNameSize() int
	PortNameSize() int
	PortTypeSize() int

	Activate(client uintptr) int
	Deactivate(client uintptr) int
	// SetProcessCallback installs fn as the process callback of client. fn
	// runs on the native real-time thread.
	SetProcessCallback(client uintptr, fn func(nframes uint32) int) int
	// OnShutdown installs fn as the shutdown callback of client.
	OnShutdown(client uintptr, fn func())

	SampleRate(client uintptr) uint32
	BufferSize(client uintptr) uint32

	PortRegister(client uintptr, name, portType string, flags, bufferSize uint64) uintptr
	PortUnregister(client, port uintptr) int
	PortByName(client uintptr, name string) uintptr
	PortName(port uintptr) string
	PortShortName(port uintptr) string
	PortFlags(port uintptr) int32
	PortType(port uintptr) string
	// PortGetBuffer returns the port's buffer for the current cycle. It is
	// only meaningful inside the process callback.
	PortGetBuffer(port uintptr, nframes uint32) unsafe.Pointer
	PortRequestMonitor(port uintptr, on bool) int

	Connect(client uintptr, source, destination string) int
	Disconnect(client uintptr, source, destination string) int
	// GetPorts returns nil when nothing matches.
	GetPorts(client uintptr, namePattern, typePattern string, flags uint64) []string

	// SetMessageHandlers routes the library's error and info messages.
	SetMessageHandlers(errorFn, infoFn func(msg string))
}

// --------------------------------------------------------------------------------
// Listeners

// ProcessListener receives the per-cycle process notification. OnProcess runs
// on a thread owned by the native server, often with real-time priority. It
// must not block, allocate, or perform I/O, and must not call ClientClose or
// PortUnregister. A non-zero return reports a failed cycle.
type ProcessListener interface {
	OnProcess(nframes uint32) int
}

// ProcessFunc adapts a function to ProcessListener.
type ProcessFunc func(nframes uint32) int

func (f ProcessFunc) OnProcess(nframes uint32) int { return f(nframes) }

// ShutdownListener is notified when the server shuts the client down. The
// client handle stays valid and must still be closed, but not from within
// OnShutdown.
type ShutdownListener interface {
	OnShutdown()
}

// ShutdownFunc adapts a function to ShutdownListener.
type ShutdownFunc func()

func (f ShutdownFunc) OnShutdown() { f() }
