package analytics_test

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogapp/internal/analytics"
)

func TestParseFilter(t *testing.T) {
	t.Run("empty params give an unconstrained filter", func(t *testing.T) {
		f, err := analytics.ParseFilter(analytics.FilterParams{})
		require.NoError(t, err)
		assert.Nil(t, f.Start)
		assert.Nil(t, f.End)
		assert.Nil(t, f.Kind)
		assert.Nil(t, f.CourseSlug)
	})

	t.Run("accepts RFC 3339 timestamps", func(t *testing.T) {
		f, err := analytics.ParseFilter(analytics.FilterParams{
			StartDate: "2025-01-01T10:00:00+03:00",
			EndDate:   "2025-01-02T00:00:00Z",
		})
		require.NoError(t, err)
		assert.True(t, f.Start.Equal(time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC)))
		assert.True(t, f.End.Equal(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("date-only end covers the whole day", func(t *testing.T) {
		f, err := analytics.ParseFilter(analytics.FilterParams{StartDate: "2025-01-01", EndDate: "2025-01-01"})
		require.NoError(t, err)
		assert.True(t, f.Start.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
		assert.True(t, f.End.Equal(time.Date(2025, 1, 1, 23, 59, 59, 999999999, time.UTC)))
	})

	t.Run("rejects unparseable dates", func(t *testing.T) {
		_, err := analytics.ParseFilter(analytics.FilterParams{StartDate: "yesterday"})
		var ferr *analytics.FilterError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, "startDate", ferr.Param)

		_, err = analytics.ParseFilter(analytics.FilterParams{EndDate: "2025-13-01"})
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, "endDate", ferr.Param)
	})

	t.Run("rejects start after end", func(t *testing.T) {
		_, err := analytics.ParseFilter(analytics.FilterParams{StartDate: "2025-02-01", EndDate: "2025-01-01"})
		var ferr *analytics.FilterError
		require.ErrorAs(t, err, &ferr)
	})

	t.Run("rejects unknown event type", func(t *testing.T) {
		_, err := analytics.ParseFilter(analytics.FilterParams{EventType: "purchase"})
		var ferr *analytics.FilterError
		require.ErrorAs(t, err, &ferr)
		assert.Equal(t, "eventType", ferr.Param)
	})

	t.Run("keeps kind and slug", func(t *testing.T) {
		f, err := analytics.ParseFilter(analytics.FilterParams{EventType: "course_view", CourseSlug: " smm-basics "})
		require.NoError(t, err)
		assert.Equal(t, analytics.KindCourseView, *f.Kind)
		assert.Equal(t, "smm-basics", *f.CourseSlug)
	})
}

func TestParsePage(t *testing.T) {
	p, err := analytics.ParsePage("", "", 200)
	require.NoError(t, err)
	assert.Equal(t, analytics.Page{Page: 1, Limit: 50}, p)
	assert.Equal(t, 0, p.Offset())

	p, err = analytics.ParsePage("3", "20", 200)
	require.NoError(t, err)
	assert.Equal(t, 40, p.Offset())

	p, err = analytics.ParsePage("1", "1000", 200)
	require.NoError(t, err)
	assert.Equal(t, 200, p.Limit)

	p, err = analytics.ParsePage(strconv.Itoa(math.MaxInt/50+1), "50", 200)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Offset(), 0)

	for _, bad := range [][2]string{
		{"0", ""}, {"-1", ""}, {"x", ""}, {"", "0"}, {"", "ten"},
		{"9000000000000000000", ""},
		{strconv.Itoa(math.MaxInt/200 + 2), "200"},
	} {
		_, err := analytics.ParsePage(bad[0], bad[1], 200)
		var ferr *analytics.FilterError
		assert.ErrorAs(t, err, &ferr, bad)
	}
}

func TestPagePages(t *testing.T) {
	p := analytics.Page{Page: 1, Limit: 50}
	assert.Equal(t, 0, p.Pages(0))
	assert.Equal(t, 1, p.Pages(50))
	assert.Equal(t, 2, p.Pages(51))
}
