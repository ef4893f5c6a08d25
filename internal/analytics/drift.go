package analytics

import (
	"context"
	"time"

	"gorm.io/gorm"

	"catalogapp/internal/metrics"
)

// CourseDrift is a course whose live counters differ from the totals derived
// from its resolved events.
type CourseDrift struct {
	CourseID    uint   `json:"courseId"`
	Slug        string `json:"slug"`
	Views       int64  `json:"views"`
	Clicks      int64  `json:"clicks"`
	EventViews  int64  `json:"eventViews"`
	EventClicks int64  `json:"eventClicks"`
}

// CounterDrift compares Course.Views/Clicks with course_view/course_click
// event counts over all time. It only reads; the two sources are kept
// separate on purpose and nothing here reconciles them.
func (r *Reports) CounterDrift(ctx context.Context) ([]CourseDrift, error) {
	defer metrics.ObserveQuery("counter_drift", time.Now())

	conn := r.dbManager.GetConnection()
	if conn == nil {
		return nil, storageError("counter drift", gorm.ErrInvalidDB)
	}

	drift := []CourseDrift{}
	err := conn.WithContext(ctx).Raw(`
		SELECT c.id AS course_id, c.slug, c.views, c.clicks,
			COALESCE(SUM(CASE WHEN e.kind = ? THEN 1 ELSE 0 END), 0) AS event_views,
			COALESCE(SUM(CASE WHEN e.kind = ? THEN 1 ELSE 0 END), 0) AS event_clicks
		FROM courses c
		LEFT JOIN events e ON e.course_ref = c.id
		GROUP BY c.id, c.slug, c.views, c.clicks
		HAVING c.views <> event_views OR c.clicks <> event_clicks
		ORDER BY c.id`, KindCourseView, KindCourseClick).
		Scan(&drift).Error
	if err != nil {
		return nil, storageError("counter drift", err)
	}
	return drift, nil
}
