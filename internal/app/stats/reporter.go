// Package stats periodically logs operational counters.
package stats

import (
	"context"

	"github.com/robfig/cron/v3"

	domain "github.com/yorktechapps/pixelplace/internal/app/domain/canvas"
	"github.com/yorktechapps/pixelplace/pkg/logger"
)

// CanvasSource exposes the current canvas contents.
type CanvasSource interface {
	Cells() []domain.Cell
}

// SessionSource exposes the live connection count.
type SessionSource interface {
	SessionCount() int
}

// Reporter logs a usage summary on a fixed schedule.
type Reporter struct {
	cron     *cron.Cron
	canvas   CanvasSource
	sessions SessionSource
	schedule string
	log      *logger.Logger
}

// NewReporter creates a reporter on the given cron schedule
// (e.g. "@every 5m").
func NewReporter(canvas CanvasSource, sessions SessionSource, schedule string, log *logger.Logger) *Reporter {
	if schedule == "" {
		schedule = "@every 5m"
	}
	if log == nil {
		log = logger.NewDefault("stats")
	}
	return &Reporter{
		cron:     cron.New(),
		canvas:   canvas,
		sessions: sessions,
		schedule: schedule,
		log:      log,
	}
}

// Name implements system.Service.
func (r *Reporter) Name() string { return "stats" }

// Start begins the schedule.
func (r *Reporter) Start(context.Context) error {
	if _, err := r.cron.AddFunc(r.schedule, r.report); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for a running report to finish.
func (r *Reporter) Stop(ctx context.Context) error {
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) report() {
	r.log.WithField("placed_cells", len(r.canvas.Cells())).
		WithField("connected_sessions", r.sessions.SessionCount()).
		Info("usage summary")
}
