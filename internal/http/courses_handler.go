package http

import (
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"catalogapp/internal/catalog"
)

const (
	defaultCoursesLimit = 10
	maxCoursesLimit     = 100

	msgCourseArchived = "Course archived successfully"
	msgClickTracked   = "Click tracked successfully"
)

// CoursesIndexAction lists published courses, optionally narrowed to a
// category slug.
func CoursesIndexAction(ctx *cartridge.Context) error {
	page, err := queryInt(ctx, "page", 1)
	if err != nil {
		return respondError(ctx, err)
	}
	limit, err := queryInt(ctx, "limit", defaultCoursesLimit)
	if err != nil {
		return respondError(ctx, err)
	}
	if limit > maxCoursesLimit {
		limit = maxCoursesLimit
	}

	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	courses, total, err := catalog.ListPublishedCourses(reqCtx, ctx.DB(), catalog.CourseQuery{
		Category: ctx.Query("category"),
		Page:     page,
		Limit:    limit,
		Sort:     ctx.Query("sort"),
	})
	if err != nil {
		return respondError(ctx, err)
	}

	return respondPage(ctx, courses, Pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: int((total + int64(limit) - 1) / int64(limit)),
	})
}

// CourseShowAction returns one published course and bumps its view counter.
func CourseShowAction(ctx *cartridge.Context) error {
	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	db := ctx.DB()
	course, err := catalog.GetPublishedCourse(reqCtx, db, ctx.Params("slug"))
	if err != nil {
		return respondError(ctx, err)
	}

	if err := catalog.IncrementViews(reqCtx, db, ctx.Logger, course.ID); err != nil {
		return respondError(ctx, err)
	}
	course.Views++

	return respondOK(ctx, fiber.StatusOK, course)
}

// CourseCreateAction creates a course from a JSON body.
func CourseCreateAction(ctx *cartridge.Context) error {
	course := catalog.NewCourse()
	if err := json.Unmarshal(ctx.Body(), course); err != nil {
		ctx.Logger.Debug("Invalid course payload", slog.Any("error", err))
		return respondFail(ctx, fiber.StatusBadRequest, errInvalidRequest)
	}

	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	if err := catalog.CreateCourse(reqCtx, ctx.DB(), ctx.Logger, course); err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusCreated, course)
}

// CourseUpdateAction applies the JSON body on top of the stored course.
// Fields missing from the body keep their current values.
func CourseUpdateAction(ctx *cartridge.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	body := ctx.Body()
	if !json.Valid(body) {
		return respondFail(ctx, fiber.StatusBadRequest, errInvalidRequest)
	}

	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	course, err := catalog.UpdateCourse(reqCtx, ctx.DB(), ctx.Logger, id, func(c *catalog.Course) error {
		if err := json.Unmarshal(body, c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, errInvalidRequest)
		}
		return nil
	})
	if err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusOK, course)
}

// CourseArchiveAction takes a course out of the catalog without deleting it.
func CourseArchiveAction(ctx *cartridge.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	course, err := catalog.ArchiveCourse(reqCtx, ctx.DB(), ctx.Logger, id)
	if err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusOK, fiber.Map{
		"message": msgCourseArchived,
		"course":  course,
	})
}

// CourseClickAction counts a press of the purchase button.
func CourseClickAction(ctx *cartridge.Context) error {
	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	if err := catalog.IncrementClicks(reqCtx, ctx.DB(), ctx.Logger, ctx.Params("slug")); err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusOK, fiber.Map{"message": msgClickTracked})
}
