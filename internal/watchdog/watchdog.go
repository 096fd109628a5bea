package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/partner-dispatch/internal/observability"
)

// Sweeper forces stale records offline. Implemented by the stores.
type Sweeper interface {
	SweepStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Watchdog reclaims availability state from partners and users whose
// client stopped heartbeating without going offline. It only ever touches
// partner/user records, never requests.
type Watchdog struct {
	Store  Sweeper
	Window time.Duration
	Logger *slog.Logger

	c *cron.Cron
}

// Sweep runs one pass: everything online with a heartbeat older than the
// staleness window is forced offline and loses its location.
func (w *Watchdog) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.Window)
	n, err := w.Store.SweepStale(ctx, cutoff)
	if err != nil {
		// Best-effort: failed records reappear in the next sweep.
		w.logger().Warn("staleness sweep incomplete", "swept", n, "error", err)
	}
	if n > 0 {
		observability.PartnersSweptTotal.Add(float64(n))
		w.logger().Info("swept stale partners offline", "count", n)
	}
}

// Start schedules the sweep on the given cron spec ("@every 1m" in
// production) and launches the scheduler.
func (w *Watchdog) Start(spec string) error {
	w.c = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := w.c.AddFunc(spec, func() { w.Sweep(context.Background()) }); err != nil {
		return err
	}
	w.c.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (w *Watchdog) Stop() {
	if w.c != nil {
		<-w.c.Stop().Done()
	}
}

func (w *Watchdog) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
