// Package scheduler runs periodic maintenance over launch events.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/launchevent"
	"rocket-mimo/internal/observability"
)

// DefaultSpec checks phases every 30 seconds.
const DefaultSpec = "@every 30s"

// Source lists the launch events to watch. *factory.Factory implements it.
type Source interface {
	LaunchEvents(offset, limit int) []*launchevent.LaunchEvent
}

// WatcherConfig configures a PhaseWatcher.
type WatcherConfig struct {
	// Spec is a cron spec or descriptor ("@every 30s").
	Spec string
	// AutoFinalize finalizes launch events that reached Ended.
	AutoFinalize bool
	Clock        func() time.Time
	Logger       *zap.Logger
}

// CheckResult summarizes one pass.
type CheckResult struct {
	Checked   int
	Changed   int
	Finalized int
}

// PhaseWatcher recomputes each launch event's phase on a cron schedule,
// emitting PhaseChanged on transitions and finalizing ended auctions.
type PhaseWatcher struct {
	source   Source
	config   WatcherConfig
	schedule cron.Schedule
	logger   *zap.Logger

	mu sync.Mutex // serializes passes
}

// NewPhaseWatcher validates the cron spec and creates a watcher.
func NewPhaseWatcher(src Source, cfg WatcherConfig) (*PhaseWatcher, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	schedule, err := cron.ParseStandard(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse phase check spec %q: %w", cfg.Spec, err)
	}
	return &PhaseWatcher{
		source:   src,
		config:   cfg,
		schedule: schedule,
		logger:   cfg.Logger.Named("scheduler"),
	}, nil
}

// Run checks on schedule until ctx is cancelled, then waits for a running
// check to finish.
func (w *PhaseWatcher) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(w.schedule, cron.FuncJob(func() {
		res := w.Check(ctx)
		if res.Changed > 0 || res.Finalized > 0 {
			w.logger.Info("phase check",
				zap.Int("checked", res.Checked),
				zap.Int("changed", res.Changed),
				zap.Int("finalized", res.Finalized))
		}
	}))

	w.logger.Info("phase watcher started", zap.String("spec", w.config.Spec))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("phase watcher stopped")
	return nil
}

// Check runs one pass over every launch event.
func (w *PhaseWatcher) Check(ctx context.Context) CheckResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	var res CheckResult
	for _, ev := range w.source.LaunchEvents(0, 0) {
		if ctx.Err() != nil {
			break
		}
		res.Checked++

		phase, changed := ev.SyncPhase()
		observability.SetPhase(ev.Address().Hex(), phase.Ordinal())
		if changed {
			res.Changed++
			w.logger.Debug("phase changed",
				zap.String("launch_event", ev.Address().Hex()),
				zap.String("phase", phase.String()))
		}

		if w.config.AutoFinalize && phase == domain.PhaseEnded && w.finalize(ctx, ev) {
			res.Finalized++
		}
	}

	observability.RecordPhaseCheck(w.config.Clock().Unix())
	return res
}

func (w *PhaseWatcher) finalize(ctx context.Context, ev *launchevent.LaunchEvent) bool {
	_, err := ev.Finalize(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, launchevent.ErrAlreadyFinalized), errors.Is(err, launchevent.ErrNotInitialized):
		return false
	default:
		w.logger.Warn("auto finalize failed",
			zap.String("launch_event", ev.Address().Hex()),
			zap.Error(err))
		return false
	}
}
