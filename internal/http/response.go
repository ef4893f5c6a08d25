package http

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"catalogapp/internal/analytics"
	"catalogapp/internal/catalog"
	"catalogapp/internal/config"
	"catalogapp/internal/validation"
)

const (
	errInternal       = "Internal server error"
	errInvalidRequest = "Invalid request body"
	errInvalidID      = "Invalid id"
)

// Pagination describes the page returned alongside a listing.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// Response is the envelope of every API reply.
type Response struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

func respondOK(ctx *cartridge.Context, status int, data any) error {
	return ctx.Status(status).JSON(Response{Success: true, Data: data})
}

func respondPage(ctx *cartridge.Context, data any, p Pagination) error {
	return ctx.Status(fiber.StatusOK).JSON(Response{Success: true, Data: data, Pagination: &p})
}

func respondFail(ctx *cartridge.Context, status int, message string) error {
	return ctx.Status(status).JSON(Response{Success: false, Error: message})
}

// respondError maps domain errors to status codes. Anything unrecognised is
// a storage failure: the cause is logged and shown only in development.
func respondError(ctx *cartridge.Context, err error) error {
	var (
		verr   *analytics.ValidationError
		ferr   *analytics.FilterError
		fields *validation.Errors
		inUse  *catalog.CategoryInUseError
		fiberr *fiber.Error
	)

	switch {
	case errors.As(err, &verr):
		return respondFail(ctx, fiber.StatusBadRequest, verr.Message)
	case errors.As(err, &ferr):
		return respondFail(ctx, fiber.StatusBadRequest, ferr.Error())
	case errors.As(err, &fields):
		return respondFail(ctx, fiber.StatusBadRequest, fields.Error())
	case errors.As(err, &inUse):
		return respondFail(ctx, fiber.StatusBadRequest, inUse.Error())
	case errors.As(err, &fiberr):
		return respondFail(ctx, fiberr.Code, fiberr.Message)
	case errors.Is(err, catalog.ErrCourseNotFound), errors.Is(err, catalog.ErrCategoryNotFound):
		return respondFail(ctx, fiber.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrCourseSlugTaken),
		errors.Is(err, catalog.ErrCategorySlugTaken),
		errors.Is(err, catalog.ErrCategoryNameTaken),
		errors.Is(err, catalog.ErrUnknownCategory),
		errors.Is(err, catalog.ErrNoPurchaseLinks):
		return respondFail(ctx, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrInvalidSort), errors.Is(err, catalog.ErrPageOutOfRange):
		return respondFail(ctx, fiber.StatusBadRequest, err.Error())
	}

	ctx.Logger.Error("Request failed",
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.Path()),
		slog.Any("error", err))

	message := errInternal
	if appConfig(ctx).IsDevelopment() {
		message = err.Error()
	}
	return respondFail(ctx, fiber.StatusInternalServerError, message)
}

func paramID(ctx *cartridge.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, errInvalidID)
	}
	return uint(id), nil
}

// queryInt reads a positive integer query value, def when absent.
func queryInt(ctx *cartridge.Context, key string, def int) (int, error) {
	s := strings.TrimSpace(ctx.Query(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+": must be a positive integer")
	}
	return n, nil
}

func appConfig(ctx *cartridge.Context) *config.Config {
	if cfg, ok := ctx.Config.(*config.Config); ok {
		return cfg
	}
	return config.GetConfig()
}

// requestContext bounds the store calls made while serving one request.
func requestContext(ctx *cartridge.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.UserContext(), appConfig(ctx).QueryTimeout())
}
