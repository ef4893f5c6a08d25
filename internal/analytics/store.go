package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Store is the append-only event log. It has no update or delete operation.
type Store struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	now       func() time.Time
}

func NewStore(dbManager cartridge.DBManager, logger *slog.Logger) *Store {
	return &Store{
		dbManager: dbManager,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Append persists event as a single insert and returns its public id.
// OccurredAt defaults to the append time; RecordedAt is always set here.
func (s *Store) Append(ctx context.Context, event *Event) (EventID, error) {
	now := s.now()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	event.OccurredAt = event.OccurredAt.UTC()
	event.RecordedAt = now
	event.ID = 0
	event.PublicID = uuid.New()

	db := s.dbManager.GetConnection()
	if db == nil {
		return uuid.Nil, storageError("append event", gorm.ErrInvalidDB)
	}

	err := sqlite.PerformWrite(s.logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
	if err != nil {
		s.logger.Error("Failed to store event",
			slog.String("kind", string(event.Kind)),
			slog.Any("error", err))
		return uuid.Nil, storageError("append event", err)
	}

	return event.PublicID, nil
}
