package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrCourseNotFound    = errors.New("Course not found")
	ErrCategoryNotFound  = errors.New("Category not found")
	ErrCourseSlugTaken   = errors.New("Course with this slug already exists")
	ErrCategorySlugTaken = errors.New("Category with this slug already exists")
	ErrCategoryNameTaken = errors.New("Category with this name already exists")
	ErrUnknownCategory   = errors.New("Category does not exist")
	ErrInvalidSort       = errors.New("invalid sort field")
	ErrPageOutOfRange    = errors.New("invalid page: is out of range")
	ErrNoPurchaseLinks   = errors.New("At least one purchase link is required")
)

// CategoryInUseError refuses to deactivate a category that still lists
// published courses.
type CategoryInUseError struct {
	Courses int64
}

func (e *CategoryInUseError) Error() string {
	return fmt.Sprintf("Cannot delete category with %d active courses", e.Courses)
}
