package jack

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of the facade's metrics.
const meterName = "github.com/Honorable-Knights-of-the-Roundtable/jackwrapper/pkg/jack"

// clientStats is written by the process listener wrapper on the real-time
// thread and read by the metrics callback.
type clientStats struct {
	cycles   atomic.Int64
	failures atomic.Int64
}

// Cycles returns how many process cycles c has run and how many of them
// reported failure.
func (c *ClientHandle) Cycles() (total, failed int64) {
	if c == nil {
		return 0, 0
	}
	return c.stats.cycles.Load(), c.stats.failures.Load()
}

type metrics struct {
	openClients  metric.Int64UpDownCounter
	registration metric.Registration
}

func newMetrics(mp metric.MeterProvider, s *Server) (*metrics, error) {
	m := mp.Meter(meterName)
	met := &metrics{}

	var err error
	if met.openClients, err = m.Int64UpDownCounter("jack.clients.open",
		metric.WithDescription("Number of clients currently open through the facade."),
	); err != nil {
		return nil, err
	}

	cycles, err := m.Int64ObservableCounter("jack.process.cycles",
		metric.WithDescription("Process cycles run per client."),
	)
	if err != nil {
		return nil, err
	}
	failures, err := m.Int64ObservableCounter("jack.process.failures",
		metric.WithDescription("Process cycles per client whose listener returned non-zero or panicked."),
	)
	if err != nil {
		return nil, err
	}

	met.registration, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, c := range s.openClients() {
			attrs := metric.WithAttributes(attribute.String("client", c.name))
			o.ObserveInt64(cycles, c.stats.cycles.Load(), attrs)
			o.ObserveInt64(failures, c.stats.failures.Load(), attrs)
		}
		return nil
	}, cycles, failures)
	if err != nil {
		return nil, err
	}
	return met, nil
}
