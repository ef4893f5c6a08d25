// Package catalog owns courses and their categories: the CRUD surface of the
// mini-app and the lookups the analytics pipeline resolves course slugs with.
package catalog

import (
	"math"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status is the publication state of a course.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Category groups courses on the home screen.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name" validate:"required,max=100"`
	Slug        string    `gorm:"size:100;uniqueIndex;not null" json:"slug" validate:"required,slug"`
	Description string    `gorm:"size:500" json:"description" validate:"max=500"`
	Icon        string    `gorm:"size:50" json:"icon" validate:"max=50"`
	IsActive    bool      `gorm:"not null;index:idx_categories_active_sort,priority:1" json:"isActive"`
	SortOrder   int       `gorm:"not null;index:idx_categories_active_sort,priority:2" json:"sortOrder"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CoverImage is the hero image of a course card.
type CoverImage struct {
	URL          string `json:"url" validate:"required"`
	CloudinaryID string `json:"cloudinaryId,omitempty"`
	Alt          string `json:"alt" validate:"required"`
}

// Price is stored in major currency units.
type Price struct {
	Amount        float64  `gorm:"not null" json:"amount" validate:"gte=0"`
	Currency      string   `gorm:"size:3;not null" json:"currency" validate:"required,oneof=RUB USD EUR"`
	OriginalPrice *float64 `json:"originalPrice,omitempty" validate:"omitempty,gte=0"`
	IsDiscounted  bool     `json:"isDiscounted"`
}

// Module is one section of a course curriculum.
type Module struct {
	ModuleNumber int      `json:"moduleNumber" validate:"gte=1"`
	Title        string   `json:"title" validate:"required"`
	Lessons      []string `json:"lessons"`
}

// PurchaseLinks are where the "Buy" button sends the user.
type PurchaseLinks struct {
	Telegram string `json:"telegram,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Website  string `json:"website,omitempty"`
}

// IsZero reports whether no link is set.
func (p PurchaseLinks) IsZero() bool {
	return p.Telegram == "" && p.WhatsApp == "" && p.Website == ""
}

// Course is a sellable course. Views and Clicks are live counters bumped by
// the public API; the analytics event log keeps its own history and the two
// are never reconciled automatically.
type Course struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	Title           string                      `gorm:"size:200;not null" json:"title" validate:"required,max=200"`
	Slug            string                      `gorm:"size:200;uniqueIndex;not null" json:"slug" validate:"required,slug"`
	Description     string                      `gorm:"size:500;not null" json:"description" validate:"required,max=500"`
	FullDescription string                      `gorm:"type:text;not null" json:"fullDescription" validate:"required"`
	CoverImage      CoverImage                  `gorm:"embedded;embeddedPrefix:cover_" json:"coverImage"`
	Price           Price                       `gorm:"embedded;embeddedPrefix:price_" json:"price"`
	CategoryID      uint                        `gorm:"not null;index" json:"categoryId" validate:"required"`
	Category        *Category                   `gorm:"foreignKey:CategoryID" json:"category,omitempty" validate:"-"`
	Tags            datatypes.JSONSlice[string] `json:"tags"`
	Duration        string                      `gorm:"size:100;not null" json:"duration" validate:"required"`
	LessonsCount    int                         `gorm:"not null" json:"lessonsCount" validate:"gte=1"`
	Includes        datatypes.JSONSlice[string] `json:"includes"`
	Curriculum      datatypes.JSONSlice[Module] `json:"curriculum" validate:"dive"`
	PurchaseLinks   PurchaseLinks               `gorm:"embedded;embeddedPrefix:purchase_" json:"purchaseLinks"`
	Status          Status                      `gorm:"size:16;not null;index:idx_courses_status_active,priority:1" json:"status" validate:"oneof=draft published archived"`
	IsActive        bool                        `gorm:"not null;index:idx_courses_status_active,priority:2" json:"isActive"`
	IsFeatured      bool                        `gorm:"not null" json:"isFeatured"`
	SortOrder       int                         `gorm:"not null;index" json:"sortOrder"`
	Views           int64                       `gorm:"not null" json:"views"`
	Clicks          int64                       `gorm:"not null" json:"clicks"`
	DiscountPercent int                         `gorm:"-" json:"discountPercent"`
	CreatedAt       time.Time                   `json:"createdAt"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
}

// Discount returns the rounded discount against the original price, or 0
// when the course is not on sale.
func (c *Course) Discount() int {
	p := c.Price
	if !p.IsDiscounted || p.OriginalPrice == nil || *p.OriginalPrice == 0 || p.Amount == 0 {
		return 0
	}
	return int(math.Round((*p.OriginalPrice - p.Amount) / *p.OriginalPrice * 100))
}

func (c *Course) AfterFind(tx *gorm.DB) error {
	c.DiscountPercent = c.Discount()
	return nil
}

func (c *Course) AfterSave(tx *gorm.DB) error {
	c.DiscountPercent = c.Discount()
	return nil
}

// CourseRef is the minimal view of a course handed to other packages.
type CourseRef struct {
	ID    uint
	Slug  string
	Title string
}

// Ref returns the reference view of c.
func (c *Course) Ref() CourseRef {
	return CourseRef{ID: c.ID, Slug: c.Slug, Title: c.Title}
}
