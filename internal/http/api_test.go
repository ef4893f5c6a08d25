package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogapp/internal/analytics"
	"catalogapp/internal/catalog"
	"catalogapp/internal/testsupport"
)

type apiResponse struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Pagination *struct {
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Total int64 `json:"total"`
		Pages int   `json:"pages"`
	} `json:"pagination"`
}

type requestOption func(*http.Request)

func asAdmin(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+testsupport.AdminToken)
}

func fromSite(site string) requestOption {
	return func(req *http.Request) {
		req.Header.Set("Sec-Fetch-Site", site)
	}
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body any, opts ...requestOption) (int, apiResponse) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out apiResponse
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func trackPayload(eventType string, slug string) map[string]any {
	payload := map[string]any{
		"eventType": eventType,
		"user":      map[string]any{"telegramId": 123456, "firstName": "Анна"},
		"device":    map[string]any{"platform": "ios", "version": "7.10"},
	}
	if slug != "" {
		payload["courseSlug"] = slug
	}
	return payload
}

func TestAnalyticsTrackAPI(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	category := testsupport.CreateTestCategory(t, db, "Marketing", "marketing")
	course := testsupport.CreateTestCourse(t, db, category, "instagram-for-cosmetologists", catalog.StatusPublished)

	t.Run("tracks an event", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		status, resp := doRequest(t, app, "POST", "/api/analytics/track", trackPayload("course_view", course.Slug))

		assert.Equal(t, http.StatusCreated, status)
		assert.True(t, resp.Success)
		data := decode[map[string]any](t, resp.Data)
		assert.Equal(t, "Event tracked successfully", data["message"])
		assert.NotEmpty(t, data["eventId"])

		var stored analytics.Event
		require.NoError(t, db.Take(&stored).Error)
		assert.Equal(t, data["eventId"], stored.PublicID.String())
		require.NotNil(t, stored.CourseRef)
		assert.Equal(t, course.ID, *stored.CourseRef)
	})

	t.Run("accepted from any origin and without browser headers", func(t *testing.T) {
		for _, opts := range [][]requestOption{
			nil,
			{fromSite("cross-site")},
			{fromSite("same-site")},
			{fromSite("same-origin")},
		} {
			status, resp := doRequest(t, app, "POST", "/api/analytics/track", trackPayload("app_open", ""), opts...)
			assert.Equal(t, http.StatusCreated, status)
			assert.True(t, resp.Success)
		}
	})

	t.Run("unknown slug is still accepted", func(t *testing.T) {
		status, resp := doRequest(t, app, "POST", "/api/analytics/track", trackPayload("course_click", "retired-course"))
		assert.Equal(t, http.StatusCreated, status)
		assert.True(t, resp.Success)
	})

	t.Run("missing fields", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		status, resp := doRequest(t, app, "POST", "/api/analytics/track", map[string]any{"eventType": "app_open"})

		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, resp.Success)
		assert.Equal(t, "Missing required fields: user, device", resp.Error)

		var count int64
		require.NoError(t, db.Model(&analytics.Event{}).Count(&count).Error)
		assert.Equal(t, int64(0), count)
	})

	t.Run("invalid event type", func(t *testing.T) {
		status, resp := doRequest(t, app, "POST", "/api/analytics/track", trackPayload("purchase", ""))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, resp.Error, "Invalid event type")
	})

	t.Run("malformed json", func(t *testing.T) {
		status, resp := doRequest(t, app, "POST", "/api/analytics/track", "{not json")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid request body", resp.Error)
	})
}

func TestAnalyticsReadAPI(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	category := testsupport.CreateTestCategory(t, db, "Marketing", "marketing")
	course := testsupport.CreateTestCourse(t, db, category, "instagram-for-cosmetologists", catalog.StatusPublished)

	base := time.Date(2025, 4, 10, 10, 0, 0, 0, time.UTC)
	testsupport.CreateTestEvent(t, db, analytics.KindAppOpen, 1, base, testsupport.WithCampaign("instagram", "spring"))
	testsupport.CreateTestEvent(t, db, analytics.KindCourseView, 1, base.Add(time.Minute), testsupport.WithCourse(&course.ID, course.Slug))
	testsupport.CreateTestEvent(t, db, analytics.KindCourseClick, 2, base.Add(2*time.Minute), testsupport.WithCourse(&course.ID, course.Slug))

	t.Run("stats require the admin token", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/analytics/stats", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.False(t, resp.Success)
		assert.Equal(t, "Missing Authorization header", resp.Error)

		status, _ = doRequest(t, app, "GET", "/api/analytics/stats", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer wrong")
		})
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = doRequest(t, app, "GET", "/api/analytics/stats", nil, func(r *http.Request) {
			r.Header.Set("Authorization", testsupport.AdminToken)
		})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("stats", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/analytics/stats", nil, asAdmin)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, resp.Success)

		report := decode[map[string]any](t, resp.Data)
		assert.Equal(t, float64(3), report["totalEvents"])

		top := report["topCourses"].([]any)
		require.Len(t, top, 1)
		first := top[0].(map[string]any)
		assert.Equal(t, float64(course.ID), first["courseId"])
		assert.Equal(t, float64(1), first["views"])
		assert.Equal(t, float64(1), first["clicks"])

		utm := report["utmStats"].([]any)
		require.Len(t, utm, 1)
		assert.Equal(t, "instagram", utm[0].(map[string]any)["source"])
	})

	t.Run("stats with filter", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/analytics/stats?eventType=course_view&startDate=2025-04-10&endDate=2025-04-10", nil, asAdmin)
		require.Equal(t, http.StatusOK, status)
		report := decode[map[string]any](t, resp.Data)
		assert.Equal(t, float64(1), report["totalEvents"])
		period := report["period"].(map[string]any)
		assert.NotNil(t, period["startDate"])
	})

	t.Run("bad filter", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/analytics/stats?startDate=last-week", nil, asAdmin)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, resp.Error, "startDate")

		status, _ = doRequest(t, app, "GET", "/api/analytics/events?eventType=purchase", nil, asAdmin)
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = doRequest(t, app, "GET", "/api/analytics/events?page=0", nil, asAdmin)
		assert.Equal(t, http.StatusBadRequest, status)

		status, resp = doRequest(t, app, "GET", "/api/analytics/events?page=9000000000000000000", nil, asAdmin)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid page: is out of range", resp.Error)
	})

	t.Run("events are paginated newest first", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/analytics/events?limit=2", nil, asAdmin)
		require.Equal(t, http.StatusOK, status)
		require.NotNil(t, resp.Pagination)
		assert.Equal(t, 1, resp.Pagination.Page)
		assert.Equal(t, 2, resp.Pagination.Limit)
		assert.Equal(t, int64(3), resp.Pagination.Total)
		assert.Equal(t, 2, resp.Pagination.Pages)

		records := decode[[]map[string]any](t, resp.Data)
		require.Len(t, records, 2)
		assert.Equal(t, "course_click", records[0]["eventType"])

		ref := records[0]["courseId"].(map[string]any)
		assert.Equal(t, float64(course.ID), ref["id"])
		assert.Equal(t, course.Title, ref["title"])
		assert.Equal(t, course.Slug, ref["slug"])
	})
}

func TestCoursesAPI(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	category := testsupport.CreateTestCategory(t, db, "Marketing", "marketing")
	course := testsupport.CreateTestCourse(t, db, category, "smm-basics", catalog.StatusPublished)
	testsupport.CreateTestCourse(t, db, category, "hidden-draft", catalog.StatusDraft)

	t.Run("list", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/courses", nil)
		require.Equal(t, http.StatusOK, status)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Pagination)
		assert.Equal(t, int64(1), resp.Pagination.Total)
		assert.Equal(t, 10, resp.Pagination.Limit)

		courses := decode[[]map[string]any](t, resp.Data)
		require.Len(t, courses, 1)
		assert.Equal(t, "smm-basics", courses[0]["slug"])
	})

	t.Run("list rejects bad paging and sort", func(t *testing.T) {
		status, _ := doRequest(t, app, "GET", "/api/courses?limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = doRequest(t, app, "GET", "/api/courses?sort=secret", nil)
		assert.Equal(t, http.StatusBadRequest, status)

		status, resp := doRequest(t, app, "GET", "/api/courses?page=9000000000000000000", nil)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid page: is out of range", resp.Error)
	})

	t.Run("show bumps views", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/courses/smm-basics", nil)
		require.Equal(t, http.StatusOK, status)
		shown := decode[map[string]any](t, resp.Data)
		assert.Equal(t, float64(1), shown["views"])

		loaded, err := catalog.GetCourseByID(context.Background(), db, course.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), loaded.Views)
	})

	t.Run("show hides drafts", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/courses/hidden-draft", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Course not found", resp.Error)
	})

	t.Run("click", func(t *testing.T) {
		status, resp := doRequest(t, app, "POST", "/api/courses/smm-basics/click", nil)
		require.Equal(t, http.StatusOK, status)
		data := decode[map[string]any](t, resp.Data)
		assert.Equal(t, "Click tracked successfully", data["message"])

		status, _ = doRequest(t, app, "POST", "/api/courses/nope/click", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("create requires the admin token", func(t *testing.T) {
		status, _ := doRequest(t, app, "POST", "/api/courses", map[string]any{"title": "x"})
		assert.Equal(t, http.StatusUnauthorized, status)
	})

	t.Run("create", func(t *testing.T) {
		payload := map[string]any{
			"title":           "Stories that sell",
			"slug":            "stories-that-sell",
			"description":     "Short course on Instagram stories",
			"fullDescription": "Five lessons",
			"coverImage":      map[string]any{"url": "https://img.example.com/s.jpg", "alt": "stories"},
			"price":           map[string]any{"amount": 2990},
			"categoryId":      category.ID,
			"duration":        "2 weeks",
			"lessonsCount":    5,
			"purchaseLinks":   map[string]any{"telegram": "https://t.me/stories"},
			"status":          "published",
		}
		status, resp := doRequest(t, app, "POST", "/api/courses", payload, asAdmin)
		require.Equal(t, http.StatusCreated, status, resp.Error)

		created := decode[map[string]any](t, resp.Data)
		assert.Equal(t, "stories-that-sell", created["slug"])
		assert.Equal(t, "RUB", created["price"].(map[string]any)["currency"])

		status, resp = doRequest(t, app, "POST", "/api/courses", payload, asAdmin)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Course with this slug already exists", resp.Error)
	})

	t.Run("create reports validation errors", func(t *testing.T) {
		status, resp := doRequest(t, app, "POST", "/api/courses", map[string]any{"slug": "x"}, asAdmin)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, resp.Error, "title is required")
	})

	t.Run("update merges the body", func(t *testing.T) {
		status, resp := doRequest(t, app, "POST", "/api/courses/"+itoa(course.ID), map[string]any{"title": "SMM basics 2"}, asAdmin)
		require.Equal(t, http.StatusOK, status, resp.Error)
		updated := decode[map[string]any](t, resp.Data)
		assert.Equal(t, "SMM basics 2", updated["title"])
		assert.Equal(t, "smm-basics", updated["slug"])
	})

	t.Run("update with a bad id", func(t *testing.T) {
		status, resp := doRequest(t, app, "POST", "/api/courses/abc", map[string]any{}, asAdmin)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid id", resp.Error)

		status, _ = doRequest(t, app, "POST", "/api/courses/999999", map[string]any{}, asAdmin)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("archive", func(t *testing.T) {
		status, resp := doRequest(t, app, "DELETE", "/api/courses/"+itoa(course.ID), nil, asAdmin)
		require.Equal(t, http.StatusOK, status)
		data := decode[map[string]any](t, resp.Data)
		assert.Equal(t, "Course archived successfully", data["message"])

		status, _ = doRequest(t, app, "GET", "/api/courses/smm-basics", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestCategoriesAPI(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	app := testsupport.CreateMinimalTestApp(t, db)

	marketing := testsupport.CreateTestCategory(t, db, "Marketing", "marketing")
	testsupport.CreateTestCourse(t, db, marketing, "smm-basics", catalog.StatusPublished)

	t.Run("create", func(t *testing.T) {
		status, resp := doRequest(t, app, "POST", "/api/categories",
			map[string]any{"name": "Design", "slug": "design", "sortOrder": 2}, asAdmin)
		require.Equal(t, http.StatusCreated, status, resp.Error)
		created := decode[map[string]any](t, resp.Data)
		assert.Equal(t, true, created["isActive"])
	})

	t.Run("list", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/categories", nil)
		require.Equal(t, http.StatusOK, status)
		list := decode[[]map[string]any](t, resp.Data)
		require.Len(t, list, 2)

		counts := map[string]float64{}
		for _, c := range list {
			counts[c["slug"].(string)] = c["coursesCount"].(float64)
		}
		assert.Equal(t, float64(1), counts["marketing"])
		assert.Equal(t, float64(0), counts["design"])
	})

	t.Run("show", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/categories/marketing", nil)
		require.Equal(t, http.StatusOK, status)
		detail := decode[map[string]any](t, resp.Data)
		assert.Len(t, detail["courses"], 1)

		status, _ = doRequest(t, app, "GET", "/api/categories/cooking", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("deactivate in use", func(t *testing.T) {
		status, resp := doRequest(t, app, "DELETE", "/api/categories/"+itoa(marketing.ID), nil, asAdmin)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Cannot delete category with 1 active courses", resp.Error)
	})

	t.Run("admin writes only need the token", func(t *testing.T) {
		for i, opts := range [][]requestOption{
			{asAdmin},
			{asAdmin, fromSite("cross-site")},
		} {
			slug := "workshop-" + strconv.Itoa(i)
			status, resp := doRequest(t, app, "POST", "/api/categories",
				map[string]any{"name": "Workshop " + strconv.Itoa(i), "slug": slug}, opts...)
			require.Equal(t, http.StatusCreated, status, resp.Error)
			assert.True(t, resp.Success)
		}

		status, resp := doRequest(t, app, "POST", "/api/categories",
			map[string]any{"name": "Blocked", "slug": "blocked"}, fromSite("cross-site"))
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.False(t, resp.Success)
	})
}

func TestOperationalEndpoints(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	app := testsupport.CreateMinimalTestApp(t, dbManager.GetConnection())

	t.Run("health", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var health map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		assert.Equal(t, "ok", health["status"])
		assert.Equal(t, "ok", health["db_status"])
		assert.Equal(t, "catalog-mini-app", health["service"])
	})

	t.Run("metrics", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/metrics", nil)
		resp, err := app.Test(req, 30000)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "catalog_course_resolution_misses_total")
	})

	t.Run("unknown route", func(t *testing.T) {
		status, resp := doRequest(t, app, "GET", "/api/unknown", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.False(t, resp.Success)
		assert.Equal(t, "Route not found", resp.Error)
	})
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
