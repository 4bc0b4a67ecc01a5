// Package jacktest provides an in-memory stand-in for the JACK client library,
// for tests that cannot rely on a running JACK server.
//
// The fake server has one "system" client with two capture and two playback
// ports. Process cycles only run when the test calls Cycle.
package jacktest

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"unsafe"
)

// Bit values used by the library. Duplicated here so the fake does not
// depend on the package it stands in for.
const (
	portIsInput    = 0x1
	portIsOutput   = 0x2
	portIsPhysical = 0x4
	portCanMonitor = 0x8
	portIsTerminal = 0x10

	optionNoStartServer = 0x01
	optionUseExactName  = 0x02
	optionServerName    = 0x04
	knownOptions        = 0x3f

	statusFailure       = 0x01
	statusInvalidOption = 0x02
	statusNameNotUnique = 0x04
	statusServerFailed  = 0x10

	audioType = "32 bit float mono audio"
	midiType  = "8 bit raw midi"

	// EEXIST is returned by Connect for an existing connection.
	EEXIST = 17

	clientNameSize = 65
	portNameSize   = 321
	portTypeSize   = 33
)

type client struct {
	ref      uintptr
	name     string
	active   bool
	process  func(nframes uint32) int
	shutdown func()
}

type port struct {
	ref      uintptr
	client   uintptr
	owner    string
	short    string
	portType string
	flags    uint64
	monitor  bool
	buffer   []float32
}

func (p *port) fullName() string {
	return p.owner + ":" + p.short
}

type connection struct {
	source, destination string
}

// Server is a fake JACK server. It satisfies the native interface of package
// jack and is safe for concurrent use.
type Server struct {
	mu sync.Mutex

	name       string
	sampleRate uint32
	bufferSize uint32
	next       uintptr

	clients     map[uintptr]*client
	ports       map[uintptr]*port
	connections map[connection]bool
	calls       map[string]int

	errorFn, infoFn func(string)
}

// Option configures a fake Server.
type Option func(*Server)

// WithSampleRate sets the sample rate reported to clients.
func WithSampleRate(rate uint32) Option {
	return func(s *Server) { s.sampleRate = rate }
}

// WithBufferSize sets the number of frames per cycle.
func WithBufferSize(frames uint32) Option {
	return func(s *Server) { s.bufferSize = frames }
}

// New returns a fake server named "default" running at 48kHz with 128
// frames per cycle.
func New(opts ...Option) *Server {
	s := &Server{
		name:        "default",
		sampleRate:  48000,
		bufferSize:  128,
		next:        0x1000,
		clients:     make(map[uintptr]*client),
		ports:       make(map[uintptr]*port),
		connections: make(map[connection]bool),
		calls:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i := 1; i <= 2; i++ {
		s.addPort(0, "system", fmt.Sprintf("capture_%d", i), audioType, portIsOutput|portIsPhysical|portIsTerminal)
		s.addPort(0, "system", fmt.Sprintf("playback_%d", i), audioType, portIsInput|portIsPhysical|portIsTerminal|portCanMonitor)
	}
	return s
}

func (s *Server) newRef() uintptr {
	s.next += 0x10
	return s.next
}

func (s *Server) addPort(owner uintptr, ownerName, short, portType string, flags uint64) *port {
	p := &port{
		ref:      s.newRef(),
		client:   owner,
		owner:    ownerName,
		short:    short,
		portType: portType,
		flags:    flags,
	}
	if portType == audioType {
		p.buffer = make([]float32, s.bufferSize)
	}
	s.ports[p.ref] = p
	return p
}

func (s *Server) count(method string) {
	s.calls[method]++
}

func (s *Server) portNamed(fullName string) *port {
	for _, p := range s.ports {
		if p.fullName() == fullName {
			return p
		}
	}
	return nil
}

// --------------------------------------------------------------------------------
// Native interface

func (s *Server) Version() (major, minor, micro, proto int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Version")
	return 1, 9, 22, 0
}

func (s *Server) ClientOpen(name string, options uint32, serverName string) (uintptr, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("ClientOpen")

	if options&^knownOptions != 0 {
		return 0, statusFailure | statusInvalidOption
	}
	if name == "" || len(name) > clientNameSize-1 {
		return 0, statusFailure | statusInvalidOption
	}
	if options&optionServerName != 0 && serverName != s.name {
		return 0, statusFailure | statusServerFailed
	}

	var status uint32
	if s.clientNamed(name) != nil || name == "system" {
		if options&optionUseExactName != 0 {
			return 0, statusFailure | statusNameNotUnique
		}
		base := name
		name = ""
		for i := 1; i <= 99; i++ {
			candidate := fmt.Sprintf("%s-%02d", base, i)
			if s.clientNamed(candidate) == nil {
				name = candidate
				break
			}
		}
		if name == "" {
			return 0, statusFailure | statusNameNotUnique
		}
		status |= statusNameNotUnique
	}

	c := &client{ref: s.newRef(), name: name}
	s.clients[c.ref] = c
	return c.ref, status
}

func (s *Server) clientNamed(name string) *client {
	for _, c := range s.clients {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (s *Server) ClientClose(ref uintptr) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("ClientClose")

	if _, ok := s.clients[ref]; !ok {
		return -1
	}
	for pref, p := range s.ports {
		if p.client == ref {
			s.dropPort(pref)
		}
	}
	delete(s.clients, ref)
	return 0
}

func (s *Server) dropPort(ref uintptr) {
	name := s.ports[ref].fullName()
	for conn := range s.connections {
		if conn.source == name || conn.destination == name {
			delete(s.connections, conn)
		}
	}
	delete(s.ports, ref)
}

func (s *Server) ClientName(ref uintptr) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("ClientName")

	if c, ok := s.clients[ref]; ok {
		return c.name
	}
	return ""
}

func (s *Server) ClientNameSize() int { return clientNameSize }
func (s *Server) PortNameSize() int   { return portNameSize }
func (s *Server) PortTypeSize() int   { return portTypeSize }

func (s *Server) Activate(ref uintptr) int {
	return s.setActive(ref, true, "Activate")
}

func (s *Server) Deactivate(ref uintptr) int {
	return s.setActive(ref, false, "Deactivate")
}

func (s *Server) setActive(ref uintptr, active bool, method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count(method)

	c, ok := s.clients[ref]
	if !ok {
		return -1
	}
	c.active = active
	if !active {
		for conn := range s.connections {
			if strings.HasPrefix(conn.source, c.name+":") || strings.HasPrefix(conn.destination, c.name+":") {
				delete(s.connections, conn)
			}
		}
	}
	return 0
}

func (s *Server) SetProcessCallback(ref uintptr, fn func(nframes uint32) int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("SetProcessCallback")

	c, ok := s.clients[ref]
	if !ok || c.active {
		return -1
	}
	c.process = fn
	return 0
}

func (s *Server) OnShutdown(ref uintptr, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("OnShutdown")

	if c, ok := s.clients[ref]; ok {
		c.shutdown = fn
	}
}

func (s *Server) SampleRate(ref uintptr) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("SampleRate")

	if _, ok := s.clients[ref]; !ok {
		return 0
	}
	return s.sampleRate
}

func (s *Server) BufferSize(ref uintptr) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("BufferSize")

	if _, ok := s.clients[ref]; !ok {
		return 0
	}
	return s.bufferSize
}

func (s *Server) PortRegister(ref uintptr, name, portType string, flags, bufferSize uint64) uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("PortRegister")

	c, ok := s.clients[ref]
	if !ok || name == "" || portType == "" {
		return 0
	}
	if len(c.name)+1+len(name) > portNameSize-1 || len(portType) > portTypeSize-1 {
		return 0
	}
	if portType != audioType && portType != midiType && bufferSize == 0 {
		return 0
	}
	if s.portNamed(c.name+":"+name) != nil {
		return 0
	}
	return s.addPort(ref, c.name, name, portType, flags).ref
}

func (s *Server) PortUnregister(ref, pref uintptr) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("PortUnregister")

	p, ok := s.ports[pref]
	if !ok || p.client != ref || ref == 0 {
		return -1
	}
	s.dropPort(pref)
	return 0
}

func (s *Server) PortByName(ref uintptr, name string) uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("PortByName")

	if _, ok := s.clients[ref]; !ok {
		return 0
	}
	if p := s.portNamed(name); p != nil {
		return p.ref
	}
	return 0
}

func (s *Server) PortName(pref uintptr) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("PortName")

	if p, ok := s.ports[pref]; ok {
		return p.fullName()
	}
	return ""
}

func (s *Server) PortShortName(pref uintptr) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("PortShortName")

	if p, ok := s.ports[pref]; ok {
		return p.short
	}
	return ""
}

func (s *Server) PortFlags(pref uintptr) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("PortFlags")

	if p, ok := s.ports[pref]; ok {
		return int32(p.flags)
	}
	return 0
}

func (s *Server) PortType(pref uintptr) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("PortType")

	if p, ok := s.ports[pref]; ok {
		return p.portType
	}
	return ""
}

func (s *Server) PortGetBuffer(pref uintptr, nframes uint32) unsafe.Pointer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("PortGetBuffer")

	p, ok := s.ports[pref]
	if !ok || len(p.buffer) == 0 || int(nframes) > len(p.buffer) {
		return nil
	}
	return unsafe.Pointer(&p.buffer[0])
}

func (s *Server) PortRequestMonitor(pref uintptr, on bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("PortRequestMonitor")

	p, ok := s.ports[pref]
	if !ok || p.flags&portCanMonitor == 0 {
		return -1
	}
	p.monitor = on
	return 0
}

func (s *Server) Connect(ref uintptr, source, destination string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Connect")

	if _, ok := s.clients[ref]; !ok {
		return -1
	}
	src, dst := s.portNamed(source), s.portNamed(destination)
	if src == nil || dst == nil || src.portType != dst.portType {
		return -1
	}
	if src.flags&portIsOutput == 0 || dst.flags&portIsInput == 0 {
		return -1
	}
	conn := connection{source, destination}
	if s.connections[conn] {
		return EEXIST
	}
	s.connections[conn] = true
	return 0
}

func (s *Server) Disconnect(ref uintptr, source, destination string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Disconnect")

	if _, ok := s.clients[ref]; !ok {
		return -1
	}
	conn := connection{source, destination}
	if !s.connections[conn] {
		return -1
	}
	delete(s.connections, conn)
	return 0
}

// GetPorts matches patterns the way libjack does: POSIX extended regular
// expressions matched anywhere in the name.
func (s *Server) GetPorts(ref uintptr, namePattern, typePattern string, flags uint64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("GetPorts")

	if _, ok := s.clients[ref]; !ok {
		return nil
	}
	nameRe, err := compile(namePattern)
	if err != nil {
		return nil
	}
	typeRe, err := compile(typePattern)
	if err != nil {
		return nil
	}

	var matched []*port
	for _, p := range s.ports {
		if nameRe != nil && !nameRe.MatchString(p.fullName()) {
			continue
		}
		if typeRe != nil && !typeRe.MatchString(p.portType) {
			continue
		}
		if p.flags&flags != flags {
			continue
		}
		matched = append(matched, p)
	}
	if len(matched) == 0 {
		return nil
	}

	slices.SortFunc(matched, func(a, b *port) int { return int(a.ref) - int(b.ref) })
	names := make([]string, len(matched))
	for i, p := range matched {
		names[i] = p.fullName()
	}
	return names
}

func compile(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.CompilePOSIX(pattern)
}

func (s *Server) SetMessageHandlers(errorFn, infoFn func(msg string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("SetMessageHandlers")

	s.errorFn, s.infoFn = errorFn, infoFn
}

// --------------------------------------------------------------------------------
// Test controls

// Cycle runs one process cycle. Input ports with connections first receive
// the sum of the connected output buffers. It returns how many process
// callbacks reported failure.
func (s *Server) Cycle() int {
	s.mu.Lock()
	s.mixConnections()
	var callbacks []func(uint32) int
	for _, c := range s.clients {
		if c.active && c.process != nil {
			callbacks = append(callbacks, c.process)
		}
	}
	frames := s.bufferSize
	s.mu.Unlock()

	failed := 0
	for _, cb := range callbacks {
		if cb(frames) != 0 {
			failed++
		}
	}
	return failed
}

func (s *Server) mixConnections() {
	mixed := make(map[*port]bool)
	for conn := range s.connections {
		src, dst := s.portNamed(conn.source), s.portNamed(conn.destination)
		if src == nil || dst == nil || dst.buffer == nil {
			continue
		}
		if !mixed[dst] {
			clear(dst.buffer)
			mixed[dst] = true
		}
		for i := range dst.buffer {
			dst.buffer[i] += src.buffer[i]
		}
	}
}

// Shutdown calls the shutdown callback of every client, as the server does
// before going away.
func (s *Server) Shutdown() {
	s.mu.Lock()
	var callbacks []func()
	for _, c := range s.clients {
		if c.shutdown != nil {
			callbacks = append(callbacks, c.shutdown)
		}
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Fill copies samples into the buffer of the named audio port.
func (s *Server) Fill(fullName string, samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.portNamed(fullName)
	if p == nil || p.buffer == nil {
		return fmt.Errorf("jacktest: no audio port %q", fullName)
	}
	copy(p.buffer, samples)
	return nil
}

// Buffer returns a copy of the buffer of the named audio port.
func (s *Server) Buffer(fullName string) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.portNamed(fullName)
	if p == nil {
		return nil
	}
	return slices.Clone(p.buffer)
}

// Connected reports whether source is connected to destination.
func (s *Server) Connected(source, destination string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections[connection{source, destination}]
}

// Monitoring reports whether input monitoring was requested for the port.
func (s *Server) Monitoring(fullName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.portNamed(fullName)
	return p != nil && p.monitor
}

// Clients returns the names of the open clients, sorted.
func (s *Server) Clients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.clients))
	for _, c := range s.clients {
		names = append(names, c.name)
	}
	slices.Sort(names)
	return names
}

// Calls returns how often the named native method was called.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// EmitError sends msg through the installed error handler.
func (s *Server) EmitError(msg string) {
	s.mu.Lock()
	fn := s.errorFn
	s.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// EmitInfo sends msg through the installed info handler.
func (s *Server) EmitInfo(msg string) {
	s.mu.Lock()
	fn := s.infoFn
	s.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}
