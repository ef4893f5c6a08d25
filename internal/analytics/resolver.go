package analytics

import (
	"context"
	"log/slog"

	"catalogapp/internal/catalog"
)

// CourseDirectory is the read-only view of the catalog this package needs.
// *catalog.Directory implements it.
type CourseDirectory interface {
	FindBySlug(ctx context.Context, slug string) (catalog.CourseRef, bool, error)
	FindByIDs(ctx context.Context, ids []uint) (map[uint]catalog.CourseRef, error)
}

// Resolution is the outcome of a best-effort course lookup: either Resolved
// with a reference or Unresolved. A miss is data, not an error.
type Resolution struct {
	ref      catalog.CourseRef
	resolved bool
}

func Resolved(ref catalog.CourseRef) Resolution {
	return Resolution{ref: ref, resolved: true}
}

func Unresolved() Resolution {
	return Resolution{}
}

// Ref returns the course reference and whether there is one.
func (r Resolution) Ref() (catalog.CourseRef, bool) {
	return r.ref, r.resolved
}

// Resolver attaches course references to course events at ingest time.
type Resolver struct {
	directory CourseDirectory
	logger    *slog.Logger
}

func NewResolver(directory CourseDirectory, logger *slog.Logger) *Resolver {
	return &Resolver{directory: directory, logger: logger}
}

// Resolve looks slug up only for course_view and course_click events. Lookup
// failures degrade to Unresolved so ingestion never depends on the catalog.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, slug *string) Resolution {
	if !kind.IsCourseKind() || slug == nil {
		return Unresolved()
	}

	ref, found, err := r.directory.FindBySlug(ctx, *slug)
	if err != nil {
		r.logger.Warn("Course lookup failed, storing event without reference",
			slog.String("slug", *slug), slog.Any("error", err))
		return Unresolved()
	}
	if !found {
		r.logger.Debug("No course matches event slug", slog.String("slug", *slug))
		return Unresolved()
	}
	return Resolved(ref)
}
