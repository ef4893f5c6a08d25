package http

import (
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"catalogapp/internal/analytics"
	"catalogapp/internal/catalog"
)

const msgEventTracked = "Event tracked successfully"

func newIngestor(ctx *cartridge.Context) *analytics.Ingestor {
	directory := catalog.NewDirectory(ctx.DBManager)
	return analytics.NewIngestor(
		analytics.NewStore(ctx.DBManager, ctx.Logger),
		analytics.NewResolver(directory, ctx.Logger),
		ctx.Logger,
	)
}

func newReports(ctx *cartridge.Context) *analytics.Reports {
	return analytics.NewReports(ctx.DBManager, catalog.NewDirectory(ctx.DBManager), ctx.Logger)
}

func filterFromQuery(ctx *cartridge.Context) (analytics.Filter, error) {
	return analytics.ParseFilter(analytics.FilterParams{
		StartDate:  ctx.Query("startDate"),
		EndDate:    ctx.Query("endDate"),
		EventType:  ctx.Query("eventType"),
		CourseSlug: ctx.Query("courseSlug"),
	})
}

// AnalyticsTrackAction records one event posted by the mini-app.
func AnalyticsTrackAction(ctx *cartridge.Context) error {
	var sub analytics.Submission
	if err := json.Unmarshal(ctx.Body(), &sub); err != nil {
		ctx.Logger.Debug("Invalid event payload", slog.Any("error", err))
		return respondFail(ctx, fiber.StatusBadRequest, errInvalidRequest)
	}
	sub.ClientIP = ctx.IP()

	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	event, err := newIngestor(ctx).Track(reqCtx, &sub)
	if err != nil {
		return respondError(ctx, err)
	}

	return respondOK(ctx, fiber.StatusCreated, fiber.Map{
		"message": msgEventTracked,
		"eventId": event.PublicID,
	})
}

// AnalyticsStatsAction returns the dashboard summary for the filtered events.
func AnalyticsStatsAction(ctx *cartridge.Context) error {
	filter, err := filterFromQuery(ctx)
	if err != nil {
		return respondError(ctx, err)
	}

	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	report, err := newReports(ctx).Summarize(reqCtx, filter)
	if err != nil {
		return respondError(ctx, err)
	}
	return respondOK(ctx, fiber.StatusOK, report)
}

// AnalyticsEventsAction pages through the filtered events, newest first.
func AnalyticsEventsAction(ctx *cartridge.Context) error {
	filter, err := filterFromQuery(ctx)
	if err != nil {
		return respondError(ctx, err)
	}
	page, err := analytics.ParsePage(ctx.Query("page"), ctx.Query("limit"), appConfig(ctx).EventsPageLimitMax)
	if err != nil {
		return respondError(ctx, err)
	}

	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	result, err := newReports(ctx).List(reqCtx, filter, page)
	if err != nil {
		return respondError(ctx, err)
	}

	return respondPage(ctx, result.Records, Pagination{
		Page:  page.Page,
		Limit: page.Limit,
		Total: result.Total,
		Pages: page.Pages(result.Total),
	})
}
