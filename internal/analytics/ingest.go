package analytics

import (
	"context"
	"log/slog"
	"time"

	"catalogapp/internal/metrics"
	"catalogapp/internal/pkg/geoip"
)

// Ingestor runs the tracking pipeline: validate, resolve, append.
type Ingestor struct {
	store    *Store
	resolver *Resolver
	logger   *slog.Logger
}

func NewIngestor(store *Store, resolver *Resolver, logger *slog.Logger) *Ingestor {
	return &Ingestor{store: store, resolver: resolver, logger: logger}
}

// Track validates sub and stores it. Nothing is written when validation
// fails. A course slug that matches no course is stored with a nil
// reference; the raw slug is kept either way.
func (i *Ingestor) Track(ctx context.Context, sub *Submission) (*Event, error) {
	return i.TrackAt(ctx, sub, time.Time{})
}

// TrackAt is Track with an explicit occurrence time, for backfills. A zero
// occurredAt means now.
func (i *Ingestor) TrackAt(ctx context.Context, sub *Submission, occurredAt time.Time) (*Event, error) {
	if err := ValidateSubmission(sub); err != nil {
		metrics.EventsRejected.WithLabelValues(metrics.ReasonValidation).Inc()
		i.logger.Debug("Rejected event submission", slog.Any("error", err))
		return nil, err
	}

	event := sub.toEvent()
	event.OccurredAt = occurredAt
	if code := geoip.CountryCode(sub.ClientIP); code != "" {
		event.Device.Country = &code
	}

	resolution := i.resolver.Resolve(ctx, event.Kind, event.CourseSlug)
	if ref, ok := resolution.Ref(); ok {
		id := ref.ID
		event.CourseRef = &id
	} else if event.Kind.IsCourseKind() && event.CourseSlug != nil {
		metrics.ResolutionMisses.Inc()
	}

	if _, err := i.store.Append(ctx, event); err != nil {
		metrics.EventsRejected.WithLabelValues(metrics.ReasonStorage).Inc()
		return nil, err
	}

	metrics.EventsIngested.WithLabelValues(string(event.Kind)).Inc()
	i.logger.Debug("Tracked event",
		slog.String("kind", string(event.Kind)),
		slog.String("id", event.PublicID.String()),
		slog.Int64("telegram_id", event.User.TelegramID))
	return event, nil
}
