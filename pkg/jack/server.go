// Package jack is a Go binding for the JACK audio connection kit client
// library.
//
// A Server wraps one loaded copy of the native library. It hands out
// ClientHandle and PortHandle values, validates them before every native
// call, and converts option and flag sets to the bitmasks the library
// expects. Handles that are nil, closed or stale never reach the native
// library: status operations return CodeInvalidArgument and handle
// operations return nil instead.
//
// Audio moves between ports and Go through pool-backed slices, see Pool,
// ReadAudio and WriteAudio.
package jack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Server is the entry point to the native library. It is safe for concurrent
// use.
type Server struct {
	native  Native
	logger  *slog.Logger
	arena   *arena
	metrics *metrics

	level atomic.Int32

	mu      sync.Mutex
	clients map[uintptr]*ClientHandle

	shutdownOnce sync.Once
}

type options struct {
	logger        *slog.Logger
	meterProvider metric.MeterProvider
}

// Option configures a Server.
type Option func(*options)

// WithLogger sets the logger for facade and native library messages. It
// defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMeterProvider sets where the facade's metrics are registered. It
// defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// New returns a Server calling into native.
func New(native Native, opts ...Option) (*Server, error) {
	if native == nil {
		return nil, ErrNilNative
	}
	o := options{
		logger:        slog.Default(),
		meterProvider: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		native:  native,
		logger:  o.logger,
		arena:   newArena(),
		clients: make(map[uintptr]*ClientHandle),
	}
	s.level.Store(int32(NativeInfo))

	met, err := newMetrics(o.meterProvider, s)
	if err != nil {
		return nil, fmt.Errorf("jack: registering metrics: %w", err)
	}
	s.metrics = met

	native.SetMessageHandlers(s.nativeError, s.nativeInfo)
	return s, nil
}

// Load loads the native library from the first of paths that can be opened,
// falling back to the platform's default library names when paths is empty,
// and returns a Server for it. Failing to find the library is reported here,
// not at process start.
func Load(paths []string, opts ...Option) (*Server, error) {
	lib, err := loadNative(paths)
	if err != nil {
		return nil, fmt.Errorf("jack: loading native library: %w", err)
	}
	return New(lib, opts...)
}

// Close stops reporting metrics. It does not close clients, which must be
// closed with ClientClose before the process exits.
func (s *Server) Close() error {
	var err error
	s.shutdownOnce.Do(func() {
		if n := len(s.openClients()); n > 0 {
			s.logger.Warn("jack server closed with clients still open", "clients", n)
		}
		err = s.metrics.registration.Unregister()
	})
	return err
}

// --------------------------------------------------------------------------------
// Version

// Version is the version of the loaded native library.
type Version struct {
	Major, Minor, Micro, Proto int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d-%d", v.Major, v.Minor, v.Micro, v.Proto)
}

// Version queries the native library version.
func (s *Server) Version() Version {
	major, minor, micro, proto := s.native.Version()
	return Version{Major: major, Minor: minor, Micro: micro, Proto: proto}
}

// --------------------------------------------------------------------------------
// Logging

// SetLoggingLevel sets the lowest level at which native library messages are
// passed on to the logger. LevelOff silences them.
func (s *Server) SetLoggingLevel(level slog.Level) {
	s.level.Store(int32(NativeLevel(level)))
}

// LoggingLevel returns the current native logging level.
func (s *Server) LoggingLevel() NativeLogLevel {
	return NativeLogLevel(s.level.Load())
}

func (s *Server) nativeError(msg string) {
	s.nativeMessage(NativeError, msg)
}

func (s *Server) nativeInfo(msg string) {
	s.nativeMessage(NativeInfo, msg)
}

func (s *Server) nativeMessage(level NativeLogLevel, msg string) {
	threshold := s.LoggingLevel()
	if threshold == NativeOff || level < threshold {
		return
	}
	s.logger.Log(context.Background(), level.slogLevel(), msg, "source", "libjack")
}

// --------------------------------------------------------------------------------
// Handle resolution

// clientRef returns the reference behind c if this Server issued it and it
// is still valid, otherwise zero.
func (s *Server) clientRef(c *ClientHandle) uintptr {
	if c == nil {
		return 0
	}
	return c.h.loadFor(s.arena)
}

func (s *Server) portRef(p *PortHandle) uintptr {
	if p == nil {
		return 0
	}
	return p.h.loadFor(s.arena)
}

func (s *Server) openClients() []*ClientHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := make([]*ClientHandle, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}
