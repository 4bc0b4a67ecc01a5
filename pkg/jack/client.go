package jack

import (
	"context"
	"fmt"
)

// ClientOpen opens a client on the server named serverName, or on the default
// server when serverName is empty. On failure the handle is nil and status
// says why. On success status may still carry informational bits such as
// HasNameNotUnique or HasServerStarted.
func (s *Server) ClientOpen(name string, opts OpenOptions, serverName string) (*ClientHandle, Status) {
	if name == "" {
		s.logger.Debug("rejected client open without a name")
		return nil, statusInvalidRequest
	}
	if serverName != "" {
		opts = opts.With(ServerName)
	} else {
		opts = opts.Without(ServerName)
	}

	ref, st := s.native.ClientOpen(name, opts.Mask(), serverName)
	status := Status(st)
	if ref == 0 {
		s.logger.Warn("could not open jack client", "name", name, "status", status)
		return nil, status
	}

	c := newClientHandle(ref)
	c.h.bindTo(s.arena, 0)
	c.requested = name
	c.name = s.native.ClientName(ref)
	c.logger = s.logger.With("jack client uuid", c.id, "client", c.name)

	s.mu.Lock()
	s.clients[ref] = c
	s.mu.Unlock()
	s.metrics.openClients.Add(context.Background(), 1)

	c.logger.Info("opened jack client", "requested", name, "status", status)
	return c, status
}

// ClientClose disconnects c from the server and invalidates it together with
// every port handle registered through it, whatever the native result. It
// must not be called from a process or shutdown listener.
func (s *Server) ClientClose(c *ClientHandle) int {
	ref := s.clientRef(c)
	if ref == 0 || !c.h.claim() {
		return CodeInvalidArgument
	}

	code := s.native.ClientClose(ref)

	ports := s.arena.retireChildren(ref)
	s.arena.retire(ref)
	c.invalidate()

	s.mu.Lock()
	delete(s.clients, ref)
	s.mu.Unlock()
	s.metrics.openClients.Add(context.Background(), -1)

	c.logger.Info("closed jack client", "code", code, "ports", ports)
	return code
}

// ClientName returns the actual name of c, or "" when c is not valid.
func (s *Server) ClientName(c *ClientHandle) string {
	ref := s.clientRef(c)
	if ref == 0 {
		return ""
	}
	return s.native.ClientName(ref)
}

// ClientNameSize returns the maximum length of a client name.
func (s *Server) ClientNameSize() int {
	return withoutTerminator(s.native.ClientNameSize())
}

// PortNameSize returns the maximum length of a full port name, including the
// "client:" prefix.
func (s *Server) PortNameSize() int {
	return withoutTerminator(s.native.PortNameSize())
}

// PortTypeSize returns the maximum length of a port type name.
func (s *Server) PortTypeSize() int {
	return withoutTerminator(s.native.PortTypeSize())
}

// The native sizes count the trailing NUL.
func withoutTerminator(n int) int {
	return max(n-1, 0)
}

// Activate tells the server that c is ready to start processing audio.
func (s *Server) Activate(c *ClientHandle) int {
	ref := s.clientRef(c)
	if ref == 0 {
		return CodeInvalidArgument
	}
	code := s.native.Activate(ref)
	c.logger.Debug("activated jack client", "code", code)
	return code
}

// Deactivate removes c from the process graph and disconnects its ports.
// Once it returns, no process listener of c is running.
func (s *Server) Deactivate(c *ClientHandle) int {
	ref := s.clientRef(c)
	if ref == 0 {
		return CodeInvalidArgument
	}
	code := s.native.Deactivate(ref)
	c.logger.Debug("deactivated jack client", "code", code)
	return code
}

// RegisterProcessListener installs l as the process callback of c. It must
// be called before Activate. A panic in l is recovered and reported as a
// failed cycle.
func (s *Server) RegisterProcessListener(c *ClientHandle, l ProcessListener) int {
	ref := s.clientRef(c)
	if ref == 0 || l == nil {
		return CodeInvalidArgument
	}

	stats := c.stats
	logger := c.logger
	process := func(nframes uint32) (code int) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("process listener panicked", "panic", r)
				code = 1
			}
			stats.cycles.Add(1)
			if code != 0 {
				stats.failures.Add(1)
			}
		}()
		return l.OnProcess(nframes)
	}
	return s.native.SetProcessCallback(ref, process)
}

// RegisterShutdownListener installs l to be told when the server shuts c
// down. c stays valid and must still be closed afterwards.
func (s *Server) RegisterShutdownListener(c *ClientHandle, l ShutdownListener) int {
	ref := s.clientRef(c)
	if ref == 0 || l == nil {
		return CodeInvalidArgument
	}

	logger := c.logger
	s.native.OnShutdown(ref, func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("shutdown listener panicked", "panic", r)
			}
		}()
		logger.Warn("jack server shut the client down")
		l.OnShutdown()
	})
	return 0
}

// SampleRate returns the sample rate of the server c is connected to, or 0
// when c is not valid.
func (s *Server) SampleRate(c *ClientHandle) int {
	ref := s.clientRef(c)
	if ref == 0 {
		return 0
	}
	return int(s.native.SampleRate(ref))
}

// BufferSize returns the current maximum number of frames per process
// cycle, or 0 when c is not valid.
func (s *Server) BufferSize(c *ClientHandle) int {
	ref := s.clientRef(c)
	if ref == 0 {
		return 0
	}
	return int(s.native.BufferSize(ref))
}

// NewClientPool returns a pool of count buffers sized for the current buffer
// size of c.
func (s *Server) NewClientPool(c *ClientHandle, count int) (*Pool, error) {
	frames := s.BufferSize(c)
	if frames == 0 {
		return nil, fmt.Errorf("%w: no buffer size for client", ErrInvalidHandle)
	}
	return NewPool(count, frames)
}
