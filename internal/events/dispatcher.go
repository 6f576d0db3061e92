package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/observability"
)

// Sink consumes dispatched ledger events.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev domain.LedgerEvent) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// Buffer is the queue capacity. Emit blocks while the queue is full.
	Buffer int
	Logger *zap.Logger
}

// DefaultDispatcherConfig returns default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{Buffer: 1024}
}

// Dispatcher delivers events to every sink in emission order. Sink
// failures are logged and counted; they never reach the emitter.
type Dispatcher struct {
	queue  chan domain.LedgerEvent
	sinks  []Sink
	logger *zap.Logger

	done     chan struct{}
	doneOnce sync.Once
}

// NewDispatcher creates a dispatcher delivering to sinks.
func NewDispatcher(cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultDispatcherConfig().Buffer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:  make(chan domain.LedgerEvent, cfg.Buffer),
		sinks:  sinks,
		logger: cfg.Logger.Named("dispatcher"),
		done:   make(chan struct{}),
	}
}

// Emit enqueues ev. Events emitted after Run has returned are dropped.
func (d *Dispatcher) Emit(ev domain.LedgerEvent) {
	select {
	case <-d.done:
		d.logger.Warn("dispatcher stopped, dropping event",
			zap.String("event_id", ev.EventID), zap.String("type", ev.Type.String()))
		return
	default:
	}

	select {
	case d.queue <- ev:
		observability.UpdateQueueDepth(len(d.queue))
	case <-d.done:
		d.logger.Warn("dispatcher stopped, dropping event",
			zap.String("event_id", ev.EventID), zap.String("type", ev.Type.String()))
	}
}

// Run delivers events until ctx is cancelled, then drains what is already
// queued and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-d.queue:
			d.dispatch(ctx, ev)
		case <-ctx.Done():
			d.stop()
			d.drain(context.WithoutCancel(ctx))
			return nil
		}
	}
}

func (d *Dispatcher) stop() {
	d.doneOnce.Do(func() { close(d.done) })
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.queue:
			d.dispatch(ctx, ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev domain.LedgerEvent) {
	observability.UpdateQueueDepth(len(d.queue))
	observability.RecordDispatched(ev.Type.String())

	for _, s := range d.sinks {
		if err := s.Handle(ctx, ev); err != nil {
			observability.RecordSinkError(s.Name())
			d.logger.Error("sink failed",
				zap.String("sink", s.Name()),
				zap.String("event_id", ev.EventID),
				zap.String("type", ev.Type.String()),
				zap.Error(err))
		}
	}
}
