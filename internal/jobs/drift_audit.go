package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"catalogapp/internal/analytics"
	"catalogapp/internal/catalog"
	"catalogapp/internal/metrics"
)

const driftAuditTimeout = time.Minute

// DriftAuditJob reports courses whose live view/click counters disagree with
// the event log. It never writes to either side.
type DriftAuditJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
}

func NewDriftAuditJob(dbManager cartridge.DBManager, logger *slog.Logger) *DriftAuditJob {
	return &DriftAuditJob{
		dbManager: dbManager,
		logger:    logger,
	}
}

// Audit returns the drifting courses and updates the drift gauge.
func (j *DriftAuditJob) Audit(ctx context.Context) ([]analytics.CourseDrift, error) {
	reports := analytics.NewReports(j.dbManager, catalog.NewDirectory(j.dbManager), j.logger)
	drift, err := reports.CounterDrift(ctx)
	if err != nil {
		return nil, err
	}
	metrics.CounterDrift.Set(float64(len(drift)))
	return drift, nil
}

func (j *DriftAuditJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), driftAuditTimeout)
	defer cancel()

	drift, err := j.Audit(ctx)
	if err != nil {
		return err
	}

	if len(drift) == 0 {
		j.logger.Debug("Course counters match the event log")
		return nil
	}

	for _, d := range drift {
		j.logger.Info("Course counters differ from event log",
			slog.Uint64("course_id", uint64(d.CourseID)),
			slog.String("slug", d.Slug),
			slog.Int64("views", d.Views),
			slog.Int64("event_views", d.EventViews),
			slog.Int64("clicks", d.Clicks),
			slog.Int64("event_clicks", d.EventClicks))
	}
	j.logger.Info("Counter drift audit finished", slog.Int("drifting_courses", len(drift)))
	return nil
}
