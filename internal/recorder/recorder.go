// Package recorder captures one JACK audio input port to a .WAV file.
//
// The process listener copies each cycle into a pool slice and hands it to a
// writer goroutine over a bounded queue. When the queue or the pool is full
// the cycle is dropped and counted instead of blocking the process thread.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/pkg/jack"
)

var ErrStarted = errors.New("recorder: already started or stopped")

// Config describes a recording.
type Config struct {
	// Path of the .WAV file to create.
	Path string
	// Source is the full name of a port to connect to the capture port on
	// Start. Empty leaves the capture port unconnected.
	Source string
	// PortName is the short name of the capture port. Defaults to "capture".
	PortName string
	// SampleRate of the file. Zero keeps the server rate.
	SampleRate int
	// BitDepth of the file, one of 16, 24 or 32. Defaults to 16.
	BitDepth int
	// Queue is the number of cycles that may wait for the writer.
	Queue int
	// Buffers is the number of pool buffers. Defaults to Queue+2.
	Buffers int
}

// Stats reports what a recording did.
type Stats struct {
	// Frames written, counted at the server rate.
	Frames int64
	// Dropped cycles.
	Dropped int64
	// Failed cycles, where the port could not be read.
	Failed int64
}

type chunk struct {
	samples *jack.Mutable
	frames  int
}

// Recorder records the audio arriving at its capture port.
type Recorder struct {
	logger *slog.Logger
	uuid   uuid.UUID
	cfg    Config

	server *jack.Server
	client *jack.ClientHandle
	port   *jack.PortHandle
	pool   *jack.Pool
	sink   *wavSink
	queue  chan chunk

	mu        sync.Mutex
	group     *errgroup.Group
	stopAfter func() bool
	started   atomic.Bool
	stopOnce  sync.Once
	stats     Stats
	stopErr   error

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// New registers the capture port and process listener on c and creates the
// output file. c must not be active yet.
func New(s *jack.Server, c *jack.ClientHandle, cfg Config) (*Recorder, error) {
	if cfg.PortName == "" {
		cfg.PortName = "capture"
	}
	if cfg.BitDepth == 0 {
		cfg.BitDepth = 16
	}
	if cfg.Queue <= 0 {
		return nil, fmt.Errorf("recorder: queue length must be positive, got %d", cfg.Queue)
	}
	if cfg.Buffers <= 0 {
		cfg.Buffers = cfg.Queue + 2
	}

	serverRate := s.SampleRate(c)
	if serverRate == 0 {
		return nil, fmt.Errorf("recorder: %w", jack.ErrInvalidHandle)
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = serverRate
	}

	id := uuid.New()
	logger := slog.Default().With(
		"recorder uuid", id,
		"client", c.Name(),
	)

	r := &Recorder{
		logger: logger,
		uuid:   id,
		cfg:    cfg,
		server: s,
		client: c,
		queue:  make(chan chunk, cfg.Queue),
	}

	r.port = s.PortRegister(c, cfg.PortName, jack.DefaultAudio, jack.PortFlagsOf(jack.PortIsInput), 0)
	if r.port == nil {
		return nil, fmt.Errorf("recorder: could not register port %q", cfg.PortName)
	}

	var err error
	r.pool, err = s.NewClientPool(c, cfg.Buffers)
	if err != nil {
		return nil, errors.Join(err, r.unregister())
	}

	r.sink, err = newWAVSink(cfg.Path, serverRate, cfg.SampleRate, cfg.BitDepth, logger)
	if err != nil {
		return nil, errors.Join(err, r.pool.Close(), r.unregister())
	}

	if code := s.RegisterProcessListener(c, jack.ProcessFunc(r.process)); code != 0 {
		return nil, errors.Join(
			fmt.Errorf("recorder: could not register process listener: code %d", code),
			r.sink.close(),
			r.pool.Close(),
			r.unregister(),
		)
	}

	logger.Debug(
		"recorder ready",
		"audioFile", cfg.Path,
		"serverRate", serverRate,
		"sampleRate", cfg.SampleRate,
		"bitDepth", cfg.BitDepth,
		"queue", cfg.Queue,
		"buffers", cfg.Buffers,
	)
	return r, nil
}

// ID identifies the recording in log records.
func (r *Recorder) ID() uuid.UUID {
	return r.uuid
}

// PortName returns the full name of the capture port.
func (r *Recorder) PortName() string {
	return r.server.PortName(r.port)
}

// Start activates the client and begins writing. The recording stops when
// ctx is done or Stop is called.
func (r *Recorder) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrStarted
	}

	r.mu.Lock()
	r.group = new(errgroup.Group)
	r.group.Go(r.write)
	r.stopAfter = context.AfterFunc(ctx, func() {
		if _, err := r.Stop(); err != nil {
			r.logger.Error("error while stopping recorder", "err", err)
		}
	})
	r.mu.Unlock()

	if code := r.server.Activate(r.client); code != 0 {
		_, err := r.Stop()
		return errors.Join(fmt.Errorf("recorder: could not activate client: code %d", code), err)
	}

	if r.cfg.Source != "" {
		if code := r.server.Connect(r.client, r.cfg.Source, r.PortName()); code != 0 {
			r.logger.Error("could not connect source", "source", r.cfg.Source, "code", code)
		} else {
			r.logger.Info("recording", "source", r.cfg.Source, "audioFile", r.cfg.Path)
		}
	}
	return nil
}

// Stop deactivates the client, drains the queue, and finishes the file.
// Calling it more than once returns the first result. A recorder that was
// never started is released without writing. When the client cannot be
// deactivated nothing is released and the error is returned.
func (r *Recorder) Stop() (Stats, error) {
	wasStarted := !r.started.CompareAndSwap(false, true)
	r.stopOnce.Do(func() {
		r.mu.Lock()
		group, stopAfter := r.group, r.stopAfter
		r.mu.Unlock()

		if stopAfter != nil {
			stopAfter()
		}
		if wasStarted {
			if code := r.server.Deactivate(r.client); code != 0 {
				// Cycles may still run, so the queue and pool stay open.
				r.logger.Error("could not deactivate client", "code", code)
				r.stopErr = fmt.Errorf("recorder: could not deactivate client: code %d", code)
				r.stats = r.Stats()
				return
			}
		}
		r.stopErr = r.close(group)
		r.stats = r.Stats()
		r.logger.Debug(
			"recorder stopped",
			"frames", r.stats.Frames,
			"dropped", r.stats.Dropped,
			"failed", r.stats.Failed,
		)
	})
	return r.stats, r.stopErr
}

// Stats returns the counters so far.
func (r *Recorder) Stats() Stats {
	return Stats{
		Frames:  r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}

// close ends the writer and releases everything New acquired. No process
// cycle may run once it has started.
func (r *Recorder) close(group *errgroup.Group) error {
	close(r.queue)
	var errs []error
	if group != nil {
		errs = append(errs, group.Wait())
	} else {
		for c := range r.queue {
			c.samples.Expire()
		}
	}
	errs = append(errs, r.sink.close(), r.unregister(), r.pool.Close())
	return errors.Join(errs...)
}

func (r *Recorder) unregister() error {
	if code := r.server.PortUnregister(r.client, r.port); code != 0 {
		return fmt.Errorf("recorder: could not unregister port: code %d", code)
	}
	return nil
}

// process runs on the server's process thread.
func (r *Recorder) process(nframes uint32) int {
	samples, err := r.pool.Acquire()
	if err != nil {
		r.dropped.Add(1)
		return 0
	}
	if err := r.server.ReadAudio(r.port, samples, nframes); err != nil {
		samples.Expire()
		r.failed.Add(1)
		return 1
	}

	select {
	case r.queue <- chunk{samples: samples, frames: int(nframes)}:
	default:
		samples.Expire()
		r.dropped.Add(1)
	}
	return 0
}

func (r *Recorder) write() error {
	scratch := make([]float32, r.pool.Len())
	var failed error
	for c := range r.queue {
		n, err := c.samples.CopyTo(scratch[:c.frames])
		c.samples.Expire()
		if failed != nil {
			continue
		}
		if err == nil {
			err = r.sink.write(scratch[:n])
		}
		if err != nil {
			// Keep draining so the pool buffers come back.
			r.logger.Error("error while writing cycle to file", "err", err)
			failed = err
			continue
		}
		r.written.Add(int64(n))
	}
	r.logger.Debug("capture queue closed")
	return failed
}
