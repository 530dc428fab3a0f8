package bpmgate

import (
	"log/slog"

	"github.com/aretw0/bpmgate/internal/logging"
	"github.com/aretw0/bpmgate/pkg/adapters/memory"
	"github.com/aretw0/bpmgate/pkg/audit"
	"github.com/aretw0/bpmgate/pkg/locking"
	"github.com/aretw0/bpmgate/pkg/notification"
	"github.com/aretw0/bpmgate/pkg/observability"
	"github.com/aretw0/bpmgate/pkg/ports"
	"github.com/aretw0/bpmgate/pkg/subscriber"
	"github.com/benbjohnson/clock"
)

// Gateway is the high-level entry point of the library.
type Gateway struct {
	engine     ports.ProcessEngine
	auditStore ports.AuditStore
	channels   []ports.NotificationChannel
	locker     ports.DistributedLocker
	logger     *slog.Logger
	clock      clock.Clock
	metrics    *observability.Metrics

	audit      *audit.Service
	notify     *notification.Service
	subscriber *subscriber.Subscriber
	locks      *locking.Keyed
}

// Option defines a functional option for configuring the Gateway.
type Option func(*Gateway)

// WithEngine sets the process engine. Defaults to an in-memory engine.
func WithEngine(engine ports.ProcessEngine) Option {
	return func(g *Gateway) {
		g.engine = engine
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithAuditStore sets where audit records go. Defaults to memory.
func WithAuditStore(store ports.AuditStore) Option {
	return func(g *Gateway) {
		g.auditStore = store
	}
}

// WithNotificationChannels replaces the default log channel.
func WithNotificationChannels(channels ...ports.NotificationChannel) Option {
	return func(g *Gateway) {
		g.channels = channels
	}
}

// WithLocker enables cross-replica serialisation of inbound events.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(g *Gateway) {
		g.locker = locker
	}
}

// WithClock sets the time source for timestamps and durations.
func WithClock(c clock.Clock) Option {
	return func(g *Gateway) {
		g.clock = c
	}
}

// WithMetrics registers counters for events, audit records and notifications.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// New wires a Gateway. Engines implementing ports.Hookable get the subscriber's hooks.
func New(opts ...Option) *Gateway {
	g := &Gateway{}
	for _, opt := range opts {
		opt(g)
	}

	if g.logger == nil {
		g.logger = logging.NewNop()
	}
	if g.clock == nil {
		g.clock = clock.New()
	}
	if g.engine == nil {
		g.engine = memory.NewEngine(memory.WithEngineClock(g.clock), memory.WithEngineLogger(g.logger))
	}
	if g.auditStore == nil {
		g.auditStore = memory.NewAuditStore()
	}
	if g.channels == nil {
		g.channels = []ports.NotificationChannel{notification.NewLogChannel(g.logger)}
	}

	g.audit = audit.NewService(g.auditStore,
		audit.WithLogger(g.logger),
		audit.WithClock(g.clock),
		audit.WithMetrics(g.metrics),
	)
	g.notify = notification.NewService(g.channels,
		notification.WithLogger(g.logger),
		notification.WithClock(g.clock),
		notification.WithMetrics(g.metrics),
	)
	g.subscriber = subscriber.New(g.audit, g.notify,
		subscriber.WithLogger(g.logger),
		subscriber.WithClock(g.clock),
		subscriber.WithMetrics(g.metrics),
	)

	lockOpts := []locking.Option{locking.WithLogger(g.logger)}
	if g.locker != nil {
		lockOpts = append(lockOpts, locking.WithLocker(g.locker))
	}
	g.locks = locking.NewKeyed(lockOpts...)

	if h, ok := g.engine.(ports.Hookable); ok {
		h.SetLifecycleHooks(g.subscriber.Hooks())
	}
	return g
}

// Engine returns the configured process engine.
func (g *Gateway) Engine() ports.ProcessEngine {
	return g.engine
}
