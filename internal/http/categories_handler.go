package http

import (
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"catalogapp/internal/catalog"
)

const msgCategoryDeactivated = "Category deactivated successfully"

// CategoriesIndexAction lists active categories with their course counts.
func CategoriesIndexAction(ctx *cartridge.Context) error {
	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	categories, err := catalog.CachedActiveCategories(reqCtx, ctx.DB())
	if err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusOK, categories)
}

// CategoryShowAction returns an active category and its published courses.
func CategoryShowAction(ctx *cartridge.Context) error {
	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	category, err := catalog.GetActiveCategory(reqCtx, ctx.DB(), ctx.Params("slug"))
	if err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusOK, category)
}

func CategoryCreateAction(ctx *cartridge.Context) error {
	category := catalog.NewCategory()
	if err := json.Unmarshal(ctx.Body(), category); err != nil {
		ctx.Logger.Debug("Invalid category payload", slog.Any("error", err))
		return respondFail(ctx, fiber.StatusBadRequest, errInvalidRequest)
	}

	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	if err := catalog.CreateCategory(reqCtx, ctx.DB(), ctx.Logger, category); err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusCreated, category)
}

func CategoryUpdateAction(ctx *cartridge.Context) error {
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

	category, err := catalog.UpdateCategory(reqCtx, ctx.DB(), ctx.Logger, id, func(c *catalog.Category) error {
		if err := json.Unmarshal(body, c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, errInvalidRequest)
		}
		return nil
	})
	if err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusOK, category)
}

// CategoryDeactivateAction hides a category; refused while it still has
// published courses.
func CategoryDeactivateAction(ctx *cartridge.Context) error {
	id, err := paramID(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	category, err := catalog.DeactivateCategory(reqCtx, ctx.DB(), ctx.Logger, id)
	if err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusOK, fiber.Map{
		"message":  msgCategoryDeactivated,
		"category": category,
	})
}
