package analytics

import (
	"errors"
	"strings"

	"catalogapp/internal/validation"
)

// Submission is the raw payload posted by the mini-app client.
type Submission struct {
	EventType  string         `json:"eventType"`
	User       *UserInput     `json:"user"`
	CourseSlug *string        `json:"courseSlug"`
	UTM        *CampaignInput `json:"utm"`
	Device     *DeviceInput   `json:"device"`

	// ClientIP is the address the submission arrived from. It is set by the
	// transport, not decoded from the payload.
	ClientIP string `json:"-"`
}

type UserInput struct {
	TelegramID   int64   `json:"telegramId" validate:"required"`
	FirstName    *string `json:"firstName"`
	LastName     *string `json:"lastName"`
	Username     *string `json:"username"`
	LanguageCode *string `json:"languageCode" validate:"omitempty,max=16"`
}

type CampaignInput struct {
	Source   *string `json:"source"`
	Medium   *string `json:"medium"`
	Campaign *string `json:"campaign"`
	Term     *string `json:"term"`
	Content  *string `json:"content"`
}

type DeviceInput struct {
	Platform  string  `json:"platform" validate:"required,oneof=ios android web"`
	Version   *string `json:"version"`
	UserAgent *string `json:"userAgent"`
}

// ValidateSubmission checks presence of the required parts, then the kind,
// then the nested field rules. It normalises sub in place (trimmed strings,
// lowercase platform) so the caller can build the Event from it directly.
func ValidateSubmission(sub *Submission) error {
	var missing []string
	if strings.TrimSpace(sub.EventType) == "" {
		missing = append(missing, "eventType")
	}
	if sub.User == nil {
		missing = append(missing, "user")
	}
	if sub.Device == nil {
		missing = append(missing, "device")
	}
	if len(missing) > 0 {
		return missingFieldsError(missing)
	}

	if !Kind(sub.EventType).Valid() {
		return invalidKindError()
	}

	normalize(sub)

	if err := validation.ValidateStruct(sub); err != nil {
		var verr *validation.Errors
		if errors.As(err, &verr) {
			return &ValidationError{Message: verr.Error()}
		}
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

func normalize(sub *Submission) {
	sub.Device.Platform = strings.ToLower(strings.TrimSpace(sub.Device.Platform))
	sub.Device.Version = trimmed(sub.Device.Version)
	sub.Device.UserAgent = trimmed(sub.Device.UserAgent)

	sub.User.FirstName = trimmed(sub.User.FirstName)
	sub.User.LastName = trimmed(sub.User.LastName)
	sub.User.Username = trimmed(sub.User.Username)
	sub.User.LanguageCode = trimmed(sub.User.LanguageCode)

	sub.CourseSlug = trimmed(sub.CourseSlug)

	if sub.UTM != nil {
		sub.UTM.Source = trimmed(sub.UTM.Source)
		sub.UTM.Medium = trimmed(sub.UTM.Medium)
		sub.UTM.Campaign = trimmed(sub.UTM.Campaign)
		sub.UTM.Term = trimmed(sub.UTM.Term)
		sub.UTM.Content = trimmed(sub.UTM.Content)
	}
}

// trimmed maps blank strings to nil so "present" always means non-empty.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// toEvent builds the record for a validated submission. Course resolution
// and timestamps are filled in later by the ingest pipeline.
func (sub *Submission) toEvent() *Event {
	event := &Event{
		Kind: Kind(sub.EventType),
		User: User{
			TelegramID:   sub.User.TelegramID,
			FirstName:    sub.User.FirstName,
			LastName:     sub.User.LastName,
			Username:     sub.User.Username,
			LanguageCode: sub.User.LanguageCode,
		},
		CourseSlug: sub.CourseSlug,
		Device: Device{
			Platform:  sub.Device.Platform,
			Version:   sub.Device.Version,
			UserAgent: sub.Device.UserAgent,
		},
	}
	if sub.UTM != nil {
		event.Campaign = Campaign{
			Source:  sub.UTM.Source,
			Medium:  sub.UTM.Medium,
			Name:    sub.UTM.Campaign,
			Term:    sub.UTM.Term,
			Content: sub.UTM.Content,
		}
	}
	return event
}
