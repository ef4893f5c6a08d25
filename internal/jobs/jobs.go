package jobs

import (
	"log/slog"
	"time"

	"catalogapp/internal/database"
)

// Jobs is the scheduler the application registers as its background worker.
type Jobs = Scheduler

// NewJobs creates the scheduler for the application's database.
func NewJobs(dbManager *database.DBManager, logger *slog.Logger, interval time.Duration) (*Jobs, error) {
	return NewScheduler(dbManager, logger, interval)
}
