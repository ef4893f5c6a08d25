package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"catalogapp/internal/validation"
)

// CourseQuery holds the options of the public course listing.
type CourseQuery struct {
	Category string // category slug; unknown slugs do not narrow the list
	Page     int
	Limit    int
	Sort     string // field name, "-" prefix for descending
}

var sortColumns = map[string]string{
	"sortOrder": "sort_order",
	"views":     "views",
	"clicks":    "clicks",
	"createdAt": "created_at",
	"title":     "title",
	"price":     "price_amount",
}

func orderClause(sort string) (string, error) {
	if sort == "" {
		sort = "sortOrder"
	}
	dir := "ASC"
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		sort = sort[1:]
	}
	col, ok := sortColumns[sort]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidSort, sort)
	}
	return col + " " + dir + ", id ASC", nil
}

func published(db *gorm.DB) *gorm.DB {
	return db.Where("status = ? AND is_active = ?", StatusPublished, true)
}

// NewCourse returns a course carrying the defaults a create request starts from.
func NewCourse() *Course {
	return &Course{
		Status:   StatusDraft,
		IsActive: true,
		Price:    Price{Currency: "RUB"},
	}
}

// ListPublishedCourses returns one page of published, active courses with
// their category, plus the total before pagination.
func ListPublishedCourses(ctx context.Context, db *gorm.DB, q CourseQuery) ([]Course, int64, error) {
	order, err := orderClause(q.Sort)
	if err != nil {
		return nil, 0, err
	}
	if q.Limit < 1 || q.Page < 1 || q.Page-1 > math.MaxInt/q.Limit {
		return nil, 0, ErrPageOutOfRange
	}

	query := db.WithContext(ctx).Model(&Course{}).Scopes(published)
	if q.Category != "" {
		var category Category
		err := db.WithContext(ctx).Where("slug = ?", q.Category).Take(&category).Error
		switch {
		case err == nil:
			query = query.Where("category_id = ?", category.ID)
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return nil, 0, err
		}
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []Course
	if err := query.Preload("Category").
		Order(order).
		Limit(q.Limit).
		Offset((q.Page - 1) * q.Limit).
		Find(&courses).Error; err != nil {
		return nil, 0, err
	}

	return courses, total, nil
}

// GetPublishedCourse looks up a visible course by slug.
func GetPublishedCourse(ctx context.Context, db *gorm.DB, slug string) (*Course, error) {
	var course Course
	err := db.WithContext(ctx).Scopes(published).
		Preload("Category").
		Where("slug = ?", slug).
		Take(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// GetCourseByID loads a course regardless of status.
func GetCourseByID(ctx context.Context, db *gorm.DB, id uint) (*Course, error) {
	var course Course
	err := db.WithContext(ctx).Preload("Category").Take(&course, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// IncrementViews bumps the live view counter of a course.
func IncrementViews(ctx context.Context, db *gorm.DB, logger *slog.Logger, id uint) error {
	return sqlite.PerformWrite(logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Model(&Course{}).Where("id = ?", id).
			UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
	})
}

// IncrementClicks bumps the live "Buy" click counter of the course with the
// given slug, whatever its status.
func IncrementClicks(ctx context.Context, db *gorm.DB, logger *slog.Logger, slug string) error {
	var affected int64
	err := sqlite.PerformWrite(logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		result := tx.Model(&Course{}).Where("slug = ?", slug).
			UpdateColumn("clicks", gorm.Expr("clicks + ?", 1))
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCourseNotFound
	}
	return nil
}

// CreateCourse validates and inserts a new course.
func CreateCourse(ctx context.Context, db *gorm.DB, logger *slog.Logger, course *Course) error {
	course.ID = 0
	course.Views, course.Clicks = 0, 0
	course.Category = nil
	prepareCourse(course)

	if err := checkCourse(ctx, db, course); err != nil {
		return err
	}

	err := sqlite.PerformWrite(logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(course).Error
	})
	if err != nil {
		logger.Error("Failed to create course", slog.String("slug", course.Slug), slog.Any("error", err))
		return err
	}

	invalidateCategoryCache()
	logger.Info("Course created", slog.Uint64("id", uint64(course.ID)), slog.String("slug", course.Slug))

	var category Category
	if err := db.WithContext(ctx).Take(&category, course.CategoryID).Error; err != nil {
		return err
	}
	course.Category = &category
	return nil
}

// UpdateCourse loads a course, lets apply modify it, re-validates and saves
// it. Identity, counters and creation time cannot be changed through apply.
func UpdateCourse(ctx context.Context, db *gorm.DB, logger *slog.Logger, id uint, apply func(*Course) error) (*Course, error) {
	course, err := GetCourseByID(ctx, db, id)
	if err != nil {
		return nil, err
	}

	views, clicks, createdAt := course.Views, course.Clicks, course.CreatedAt
	if err := apply(course); err != nil {
		return nil, err
	}
	course.ID = id
	course.Views, course.Clicks, course.CreatedAt = views, clicks, createdAt
	course.Category = nil
	prepareCourse(course)

	if err := checkCourse(ctx, db, course); err != nil {
		return nil, err
	}

	err = sqlite.PerformWrite(logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Omit("Category").Save(course).Error
	})
	if err != nil {
		logger.Error("Failed to update course", slog.Uint64("id", uint64(id)), slog.Any("error", err))
		return nil, err
	}
	invalidateCategoryCache()

	return GetCourseByID(ctx, db, id)
}

// ArchiveCourse soft-deletes a course: it leaves the catalog but its row,
// and every analytics event pointing at it, stays.
func ArchiveCourse(ctx context.Context, db *gorm.DB, logger *slog.Logger, id uint) (*Course, error) {
	var affected int64
	err := sqlite.PerformWrite(logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		result := tx.Model(&Course{}).Where("id = ?", id).
			Updates(map[string]any{"status": StatusArchived, "is_active": false})
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrCourseNotFound
	}

	invalidateCategoryCache()
	logger.Info("Course archived", slog.Uint64("id", uint64(id)))
	return GetCourseByID(ctx, db, id)
}

func prepareCourse(c *Course) {
	c.Title = strings.TrimSpace(c.Title)
	c.Slug = strings.ToLower(strings.TrimSpace(c.Slug))
	c.Description = strings.TrimSpace(c.Description)
	c.FullDescription = strings.TrimSpace(c.FullDescription)
	c.Duration = strings.TrimSpace(c.Duration)
	c.CoverImage.URL = strings.TrimSpace(c.CoverImage.URL)
	c.CoverImage.Alt = strings.TrimSpace(c.CoverImage.Alt)
	c.Price.Currency = strings.ToUpper(strings.TrimSpace(c.Price.Currency))
	if c.Price.Currency == "" {
		c.Price.Currency = "RUB"
	}
	if c.Status == "" {
		c.Status = StatusDraft
	}
	c.PurchaseLinks.Telegram = strings.TrimSpace(c.PurchaseLinks.Telegram)
	c.PurchaseLinks.WhatsApp = strings.TrimSpace(c.PurchaseLinks.WhatsApp)
	c.PurchaseLinks.Website = strings.TrimSpace(c.PurchaseLinks.Website)
}

// checkCourse runs field rules, then the checks that need the database:
// the category must exist and the slug must be unused by any other course.
func checkCourse(ctx context.Context, db *gorm.DB, c *Course) error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if c.PurchaseLinks.IsZero() {
		return ErrNoPurchaseLinks
	}

	var n int64
	if err := db.WithContext(ctx).Model(&Category{}).Where("id = ?", c.CategoryID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownCategory
	}

	if err := db.WithContext(ctx).Model(&Course{}).
		Where("slug = ? AND id <> ?", c.Slug, c.ID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrCourseSlugTaken
	}
	return nil
}
