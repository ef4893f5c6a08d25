package analytics

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"catalogapp/internal/metrics"
)

// CourseSummary is the course an event points at. Title and Slug are nil
// when the course no longer exists.
type CourseSummary struct {
	ID    uint    `json:"id"`
	Title *string `json:"title"`
	Slug  *string `json:"slug"`
}

// Record is an event as returned by List.
type Record struct {
	ID         EventID        `json:"id"`
	Kind       Kind           `json:"eventType"`
	User       User           `json:"user"`
	Course     *CourseSummary `json:"courseId"`
	CourseSlug *string        `json:"courseSlug"`
	Campaign   *Campaign      `json:"utm,omitempty"`
	Device     Device         `json:"device"`
	OccurredAt time.Time      `json:"timestamp"`
	RecordedAt time.Time      `json:"recordedAt"`
}

type ListResult struct {
	Records []Record
	Total   int64
}

// List returns one page of the events matching f, most recent first, along
// with the number of matching events before pagination.
func (r *Reports) List(ctx context.Context, f Filter, page Page) (*ListResult, error) {
	defer metrics.ObserveQuery("list", time.Now())

	conn := r.dbManager.GetConnection()
	if conn == nil {
		return nil, storageError("list events", gorm.ErrInvalidDB)
	}
	query := conn.WithContext(ctx).Model(&Event{}).Scopes(f.Scope)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		r.logger.Error("Failed to count events", slog.Any("error", err))
		return nil, storageError("count events", err)
	}

	var events []Event
	if err := query.Session(&gorm.Session{}).
		Order("occurred_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&events).Error; err != nil {
		r.logger.Error("Failed to list events", slog.Any("error", err))
		return nil, storageError("list events", err)
	}

	courses := r.courseSummaries(ctx, events)

	records := make([]Record, len(events))
	for i := range events {
		records[i] = toRecord(&events[i], courses)
	}
	return &ListResult{Records: records, Total: total}, nil
}

// courseSummaries looks up every course referenced on the page in one call.
// References that no longer resolve, or a failed lookup, give summaries
// with only the id set.
func (r *Reports) courseSummaries(ctx context.Context, events []Event) map[uint]*CourseSummary {
	summaries := make(map[uint]*CourseSummary)
	var ids []uint
	for i := range events {
		ref := events[i].CourseRef
		if ref == nil {
			continue
		}
		if _, seen := summaries[*ref]; !seen {
			summaries[*ref] = &CourseSummary{ID: *ref}
			ids = append(ids, *ref)
		}
	}
	if len(ids) == 0 {
		return summaries
	}

	refs, err := r.directory.FindByIDs(ctx, ids)
	if err != nil {
		r.logger.Warn("Course enrichment failed, returning events without titles", slog.Any("error", err))
		return summaries
	}
	for id, ref := range refs {
		summary, ok := summaries[id]
		if !ok {
			continue
		}
		title, slug := ref.Title, ref.Slug
		summary.Title = &title
		summary.Slug = &slug
	}
	return summaries
}

func toRecord(e *Event, courses map[uint]*CourseSummary) Record {
	rec := Record{
		ID:         e.PublicID,
		Kind:       e.Kind,
		User:       e.User,
		CourseSlug: e.CourseSlug,
		Device:     e.Device,
		OccurredAt: e.OccurredAt,
		RecordedAt: e.RecordedAt,
	}
	if e.CourseRef != nil {
		summary := *courses[*e.CourseRef]
		rec.Course = &summary
	}
	if !e.Campaign.IsZero() {
		campaign := e.Campaign
		rec.Campaign = &campaign
	}
	return rec
}
