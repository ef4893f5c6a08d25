package catalog

import (
	"context"
	"errors"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"
)

// Directory answers read-only course lookups for other packages. It matches
// courses in any status, so archived courses still resolve.
type Directory struct {
	dbManager cartridge.DBManager
}

func NewDirectory(dbManager cartridge.DBManager) *Directory {
	return &Directory{dbManager: dbManager}
}

// FindBySlug reports the course with the given slug, if any.
func (d *Directory) FindBySlug(ctx context.Context, slug string) (CourseRef, bool, error) {
	var course Course
	err := d.dbManager.GetConnection().WithContext(ctx).
		Select("id", "slug", "title").
		Where("slug = ?", slug).
		Take(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CourseRef{}, false, nil
	}
	if err != nil {
		return CourseRef{}, false, err
	}
	return course.Ref(), true, nil
}

// FindByIDs returns the courses among ids that still exist, keyed by id.
func (d *Directory) FindByIDs(ctx context.Context, ids []uint) (map[uint]CourseRef, error) {
	refs := make(map[uint]CourseRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	var courses []Course
	if err := d.dbManager.GetConnection().WithContext(ctx).
		Select("id", "slug", "title").
		Where("id IN ?", ids).
		Find(&courses).Error; err != nil {
		return nil, err
	}
	for i := range courses {
		refs[courses[i].ID] = courses[i].Ref()
	}
	return refs, nil
}
