package jack

import (
	"fmt"
	"regexp"
	"strings"
)

// PortRegister creates a port on c. Built-in types ignore bufferSize; custom
// types need it to be non-zero. It returns nil if c is not valid or the
// server refused the port.
func (s *Server) PortRegister(c *ClientHandle, name string, portType PortType, flags PortFlags, bufferSize uint64) *PortHandle {
	cref := s.clientRef(c)
	if cref == 0 || name == "" || portType == "" {
		return nil
	}
	if !portType.IsBuiltin() && bufferSize == 0 {
		c.logger.Debug("rejected custom port type without a buffer size", "port", name, "type", portType)
		return nil
	}

	ref := s.native.PortRegister(cref, name, string(portType), flags.Mask(), bufferSize)
	if ref == 0 {
		c.logger.Warn("could not register port", "port", name, "type", portType, "flags", flags)
		return nil
	}

	p := newPortHandle(ref, name, portType, flags)
	p.client = cref
	p.fullName = s.native.PortName(ref)
	p.h.bindTo(s.arena, cref)

	c.logger.Debug("registered port", "port", p.fullName, "type", portType, "flags", flags)
	return p
}

// PortUnregister removes p from c and invalidates every handle for it,
// whatever the native result. p must belong to c; a port of another client is
// rejected without touching its handles.
func (s *Server) PortUnregister(c *ClientHandle, p *PortHandle) int {
	cref := s.clientRef(c)
	pref := s.portRef(p)
	if cref == 0 || pref == 0 || p.client != cref || !p.h.claim() {
		return CodeInvalidArgument
	}

	code := s.native.PortUnregister(cref, pref)
	s.arena.retire(pref)
	p.invalidate()

	c.logger.Debug("unregistered port", "port", p.fullName, "code", code)
	return code
}

// PortByName looks up a port by its full "client:port" name. Type and flags
// are read from the server. Handles for ports owned by c are invalidated when
// c is closed.
func (s *Server) PortByName(c *ClientHandle, fullName string) *PortHandle {
	cref := s.clientRef(c)
	if cref == 0 || fullName == "" {
		return nil
	}

	ref := s.native.PortByName(cref, fullName)
	if ref == 0 {
		return nil
	}

	p := newPortHandle(ref,
		s.native.PortShortName(ref),
		PortType(s.native.PortType(ref)),
		DecodePortFlags(uint64(uint32(s.native.PortFlags(ref)))),
	)
	p.fullName = s.native.PortName(ref)

	var parent uintptr
	if strings.HasPrefix(p.fullName, c.name+":") {
		parent = cref
	}
	p.client = parent
	p.h.bindTo(s.arena, parent)
	return p
}

// PortName returns the full name of p, or InvalidPortName.
func (s *Server) PortName(p *PortHandle) string {
	ref := s.portRef(p)
	if ref == 0 {
		return InvalidPortName
	}
	return s.native.PortName(ref)
}

// PortShortName returns the name of p without the client prefix, or
// InvalidPortName.
func (s *Server) PortShortName(p *PortHandle) string {
	ref := s.portRef(p)
	if ref == 0 {
		return InvalidPortName
	}
	return s.native.PortShortName(ref)
}

// PortRequestMonitor turns input monitoring for p on or off. Only ports with
// PortCanMonitor support it.
func (s *Server) PortRequestMonitor(p *PortHandle, on bool) int {
	ref := s.portRef(p)
	if ref == 0 || !p.flags.Contains(PortCanMonitor) {
		return CodeInvalidArgument
	}
	return s.native.PortRequestMonitor(ref, on)
}

// --------------------------------------------------------------------------------
// Connections

// Connect connects the output port source to the input port destination,
// both given by full name. An existing connection is reported with the
// native EEXIST code.
func (s *Server) Connect(c *ClientHandle, source, destination string) int {
	ref := s.clientRef(c)
	if ref == 0 || source == "" || destination == "" {
		return CodeInvalidArgument
	}
	code := s.native.Connect(ref, source, destination)
	c.logger.Debug("connect", "source", source, "destination", destination, "code", code)
	return code
}

// Disconnect removes the connection between source and destination.
func (s *Server) Disconnect(c *ClientHandle, source, destination string) int {
	ref := s.clientRef(c)
	if ref == 0 || source == "" || destination == "" {
		return CodeInvalidArgument
	}
	code := s.native.Disconnect(ref, source, destination)
	c.logger.Debug("disconnect", "source", source, "destination", destination, "code", code)
	return code
}

// GetPorts lists the full names of ports whose name matches namePattern, whose
// type matches typePattern and that have every flag in flags. Empty patterns
// and an empty flag set match everything. Patterns are POSIX extended
// regular expressions and are checked before being passed on. The result is
// never nil when err is nil.
func (s *Server) GetPorts(c *ClientHandle, namePattern, typePattern string, flags PortFlags) ([]string, error) {
	ref := s.clientRef(c)
	if ref == 0 {
		return nil, ErrInvalidHandle
	}
	if err := VerifyPattern(namePattern); err != nil {
		return nil, err
	}
	if err := VerifyPattern(typePattern); err != nil {
		return nil, err
	}

	ports := s.native.GetPorts(ref, namePattern, typePattern, flags.Mask())
	if ports == nil {
		return []string{}, nil
	}
	return ports, nil
}

// VerifyPattern checks that pattern is a valid POSIX extended regular
// expression. The native library aborts the process on some malformed
// patterns.
func VerifyPattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	if _, err := regexp.CompilePOSIX(pattern); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidPattern, pattern, err)
	}
	return nil
}
