package refresh

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ticker drives periodic staleness checks. The interval is coarse (hours,
// not seconds): the dataset updates upstream a few times a year.
type Ticker struct {
	controller *Controller
	interval   time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	log        *zap.SugaredLogger
}

// TickerConfig contains configuration for the staleness ticker.
type TickerConfig struct {
	Interval time.Duration // how often to re-check staleness (default: 6h)
}

// DefaultTickerConfig returns sensible defaults.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{Interval: 6 * time.Hour}
}

// NewTicker creates a staleness ticker bound to a parent context.
func NewTicker(ctx context.Context, controller *Controller, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickerConfig().Interval
	}
	tickerCtx, cancel := context.WithCancel(ctx)
	return &Ticker{
		controller: controller,
		interval:   cfg.Interval,
		ctx:        tickerCtx,
		cancel:     cancel,
		log:        log,
	}
}

// Start begins the ticker loop.
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.log.Infow("Staleness ticker started", "interval", t.interval)
}

// Stop gracefully stops the ticker and waits for any in-progress check.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.log.Infow("Staleness ticker stopped")
}

func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if err := t.controller.CheckStaleness(t.ctx, TriggerScheduled); err != nil {
				// Last-good snapshot is retained; next tick retries
				t.log.Warnw("Scheduled staleness check failed", "error", err)
			}
		}
	}
}
