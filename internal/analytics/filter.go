package analytics

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

const dateOnly = "2006-01-02"

// Filter narrows the event set for both Summarize and List. Nil fields do
// not constrain. Start and End are inclusive.
type Filter struct {
	Start      *time.Time
	End        *time.Time
	Kind       *Kind
	CourseSlug *string
}

// FilterParams are the raw query string values a Filter is parsed from.
type FilterParams struct {
	StartDate  string
	EndDate    string
	EventType  string
	CourseSlug string
}

// ParseFilter builds a Filter from query string values. Dates are RFC 3339
// timestamps or YYYY-MM-DD days (UTC); a day given as endDate covers that
// whole day.
func ParseFilter(p FilterParams) (Filter, error) {
	var f Filter

	if s := strings.TrimSpace(p.StartDate); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return Filter{}, &FilterError{Param: "startDate", Message: err.Error()}
		}
		f.Start = &t
	}

	if s := strings.TrimSpace(p.EndDate); s != "" {
		t, dayOnly, err := parseDate(s)
		if err != nil {
			return Filter{}, &FilterError{Param: "endDate", Message: err.Error()}
		}
		if dayOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		f.End = &t
	}

	if f.Start != nil && f.End != nil && f.Start.After(*f.End) {
		return Filter{}, &FilterError{Param: "startDate", Message: "must not be after endDate"}
	}

	if s := strings.TrimSpace(p.EventType); s != "" {
		k := Kind(s)
		if !k.Valid() {
			return Filter{}, &FilterError{Param: "eventType", Message: invalidKindError().Message}
		}
		f.Kind = &k
	}

	if s := strings.TrimSpace(p.CourseSlug); s != "" {
		f.CourseSlug = &s
	}

	return f, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is not an RFC 3339 timestamp or YYYY-MM-DD date", s)
	}
	return t.UTC(), true, nil
}

// Scope applies the filter predicate. Every query over events goes through
// it so the stats and the listing always agree on the matching set.
func (f Filter) Scope(db *gorm.DB) *gorm.DB {
	if f.Start != nil {
		db = db.Where("occurred_at >= ?", *f.Start)
	}
	if f.End != nil {
		db = db.Where("occurred_at <= ?", *f.End)
	}
	if f.Kind != nil {
		db = db.Where("kind = ?", *f.Kind)
	}
	if f.CourseSlug != nil {
		db = db.Where("course_slug = ?", *f.CourseSlug)
	}
	return db
}

// Page selects one slice of a listing. Page is 1-indexed.
type Page struct {
	Page  int
	Limit int
}

const (
	DefaultPage  = 1
	DefaultLimit = 50
)

// ParsePage reads page and limit query values. Empty values take the
// defaults; limits above maxLimit are clamped to it. A page whose offset
// would not fit in an int is rejected.
func ParsePage(page, limit string, maxLimit int) (Page, error) {
	p := Page{Page: DefaultPage, Limit: DefaultLimit}

	if s := strings.TrimSpace(page); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Page{}, &FilterError{Param: "page", Message: "must be a positive integer"}
		}
		p.Page = n
	}
	if s := strings.TrimSpace(limit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Page{}, &FilterError{Param: "limit", Message: "must be a positive integer"}
		}
		p.Limit = n
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return Page{}, &FilterError{Param: "page", Message: "is out of range"}
	}
	return p, nil
}

// Offset is the number of rows before this page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pages returns ceil(total/limit).
func (p Page) Pages(total int64) int {
	if p.Limit <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}
