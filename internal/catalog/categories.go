package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"catalogapp/internal/validation"
)

// CategorySummary is a category with the number of courses it shows.
type CategorySummary struct {
	Category
	CoursesCount int64 `json:"coursesCount"`
}

// CategoryDetail is a category with its published courses.
type CategoryDetail struct {
	Category
	Courses []Course `json:"courses"`
}

// NewCategory returns a category carrying create defaults.
func NewCategory() *Category {
	return &Category{IsActive: true}
}

// ListActiveCategories returns active categories in display order, each with
// its count of published, active courses.
func ListActiveCategories(ctx context.Context, db *gorm.DB) ([]CategorySummary, error) {
	out := []CategorySummary{}
	err := db.WithContext(ctx).Model(&Category{}).
		Select(`categories.*, (
			SELECT COUNT(*) FROM courses
			WHERE courses.category_id = categories.id AND courses.status = ? AND courses.is_active = ?
		) AS courses_count`, StatusPublished, true).
		Where("categories.is_active = ?", true).
		Order("categories.sort_order ASC, categories.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetActiveCategory returns an active category by slug with its published courses.
func GetActiveCategory(ctx context.Context, db *gorm.DB, slug string) (*CategoryDetail, error) {
	var category Category
	err := db.WithContext(ctx).Where("slug = ? AND is_active = ?", slug, true).Take(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}

	courses := []Course{}
	if err := db.WithContext(ctx).Scopes(published).
		Where("category_id = ?", category.ID).
		Order("sort_order ASC, id ASC").
		Find(&courses).Error; err != nil {
		return nil, err
	}

	return &CategoryDetail{Category: category, Courses: courses}, nil
}

// GetCategoryByID loads a category regardless of its active flag.
func GetCategoryByID(ctx context.Context, db *gorm.DB, id uint) (*Category, error) {
	var category Category
	err := db.WithContext(ctx).Take(&category, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// CreateCategory validates and inserts a category.
func CreateCategory(ctx context.Context, db *gorm.DB, logger *slog.Logger, category *Category) error {
	category.ID = 0
	prepareCategory(category)
	if err := checkCategory(ctx, db, category); err != nil {
		return err
	}

	err := sqlite.PerformWrite(logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Create(category).Error
	})
	if err != nil {
		logger.Error("Failed to create category", slog.String("slug", category.Slug), slog.Any("error", err))
		return err
	}
	invalidateCategoryCache()
	logger.Info("Category created", slog.Uint64("id", uint64(category.ID)), slog.String("slug", category.Slug))
	return nil
}

// UpdateCategory loads a category, lets apply modify it, re-validates and saves it.
func UpdateCategory(ctx context.Context, db *gorm.DB, logger *slog.Logger, id uint, apply func(*Category) error) (*Category, error) {
	category, err := GetCategoryByID(ctx, db, id)
	if err != nil {
		return nil, err
	}

	createdAt := category.CreatedAt
	if err := apply(category); err != nil {
		return nil, err
	}
	category.ID = id
	category.CreatedAt = createdAt
	prepareCategory(category)

	if err := checkCategory(ctx, db, category); err != nil {
		return nil, err
	}

	err = sqlite.PerformWrite(logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Save(category).Error
	})
	if err != nil {
		return nil, err
	}
	invalidateCategoryCache()
	return category, nil
}

// DeactivateCategory hides a category. It is refused while the category still
// has published, active courses.
func DeactivateCategory(ctx context.Context, db *gorm.DB, logger *slog.Logger, id uint) (*Category, error) {
	category, err := GetCategoryByID(ctx, db, id)
	if err != nil {
		return nil, err
	}

	var inUse int64
	if err := db.WithContext(ctx).Model(&Course{}).Scopes(published).
		Where("category_id = ?", id).
		Count(&inUse).Error; err != nil {
		return nil, err
	}
	if inUse > 0 {
		return nil, &CategoryInUseError{Courses: inUse}
	}

	err = sqlite.PerformWrite(logger, db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Model(category).Update("is_active", false).Error
	})
	if err != nil {
		return nil, err
	}

	invalidateCategoryCache()
	logger.Info("Category deactivated", slog.Uint64("id", uint64(id)))
	category.IsActive = false
	return category, nil
}

func prepareCategory(c *Category) {
	c.Name = strings.TrimSpace(c.Name)
	c.Slug = strings.ToLower(strings.TrimSpace(c.Slug))
	c.Description = strings.TrimSpace(c.Description)
	c.Icon = strings.TrimSpace(c.Icon)
}

func checkCategory(ctx context.Context, db *gorm.DB, c *Category) error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	var n int64
	if err := db.WithContext(ctx).Model(&Category{}).
		Where("slug = ? AND id <> ?", c.Slug, c.ID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrCategorySlugTaken
	}

	if err := db.WithContext(ctx).Model(&Category{}).
		Where("name = ? AND id <> ?", c.Name, c.ID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrCategoryNameTaken
	}
	return nil
}
