package analytics

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the type of a tracked event.
type Kind string

const (
	KindAppOpen     Kind = "app_open"
	KindCourseView  Kind = "course_view"
	KindCourseClick Kind = "course_click"
)

// Kinds lists every accepted event kind in display order.
var Kinds = []Kind{KindAppOpen, KindCourseView, KindCourseClick}

// Valid reports whether k is one of the enumerated kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsCourseKind reports whether events of this kind refer to a course.
func (k Kind) IsCourseKind() bool {
	return k == KindCourseView || k == KindCourseClick
}

// EventID is the public identifier returned to the emitter.
type EventID = uuid.UUID

// Event is an append-only record of something a mini-app user did.
// Rows are never updated or deleted once written.
type Event struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	PublicID   EventID   `gorm:"type:varchar(36);uniqueIndex;not null" json:"id"`
	Kind       Kind      `gorm:"size:32;not null;index:idx_events_kind_occurred,priority:1;index:idx_events_kind_course_occurred,priority:1" json:"eventType"`
	User       User      `gorm:"embedded;embeddedPrefix:user_" json:"user"`
	CourseRef  *uint     `gorm:"index;index:idx_events_kind_course_occurred,priority:2" json:"courseId"`
	CourseSlug *string   `gorm:"index" json:"courseSlug"`
	Campaign   Campaign  `gorm:"embedded;embeddedPrefix:campaign_" json:"utm"`
	Device     Device    `gorm:"embedded;embeddedPrefix:device_" json:"device"`
	OccurredAt time.Time `gorm:"not null;index;index:idx_events_kind_occurred,priority:2;index:idx_events_kind_course_occurred,priority:3" json:"timestamp"`
	RecordedAt time.Time `gorm:"not null" json:"recordedAt"`
}

// User is the snapshot of the reporting identity taken when the event happened.
type User struct {
	TelegramID   int64   `gorm:"not null;index:idx_events_user_telegram_id" json:"telegramId"`
	FirstName    *string `json:"firstName,omitempty"`
	LastName     *string `json:"lastName,omitempty"`
	Username     *string `json:"username,omitempty"`
	LanguageCode *string `gorm:"size:16" json:"languageCode,omitempty"`
}

// Campaign holds UTM-style attribution. Every field is independently nullable.
type Campaign struct {
	Source  *string `gorm:"index:idx_events_campaign,priority:1" json:"source,omitempty"`
	Medium  *string `json:"medium,omitempty"`
	Name    *string `gorm:"index:idx_events_campaign,priority:2" json:"campaign,omitempty"`
	Term    *string `json:"term,omitempty"`
	Content *string `json:"content,omitempty"`
}

// IsZero reports whether no attribution field is set.
func (c Campaign) IsZero() bool {
	return c.Source == nil && c.Medium == nil && c.Name == nil && c.Term == nil && c.Content == nil
}

// Device describes the client the event was emitted from.
// Country is resolved from the client address at ingest time, never sent
// by the client.
type Device struct {
	Platform  string  `gorm:"size:16;not null" json:"platform"`
	Version   *string `json:"version,omitempty"`
	UserAgent *string `json:"userAgent,omitempty"`
	Country   *string `gorm:"size:2;index" json:"country,omitempty"`
}

// Platforms accepted in Device.Platform.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)
