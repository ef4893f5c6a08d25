package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogapp/internal/analytics"
	"catalogapp/internal/catalog"
	"catalogapp/internal/testsupport"
)

func newIngestor(dbManager *testsupport.TestDBManager) *analytics.Ingestor {
	logger := testsupport.GetLogger()
	return analytics.NewIngestor(
		analytics.NewStore(dbManager, logger),
		analytics.NewResolver(catalog.NewDirectory(dbManager), logger),
		logger,
	)
}

func countEvents(t *testing.T, dbManager *testsupport.TestDBManager) int64 {
	t.Helper()
	var n int64
	require.NoError(t, dbManager.GetConnection().Model(&analytics.Event{}).Count(&n).Error)
	return n
}

func TestIngestorTrack(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()

	category := testsupport.CreateTestCategory(t, db, "Marketing", "marketing")
	course := testsupport.CreateTestCourse(t, db, category, "instagram-for-cosmetologists", catalog.StatusPublished)
	ingestor := newIngestor(dbManager)

	t.Run("stores app_open with generated id and timestamps", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		before := time.Now().UTC().Add(-time.Second)

		event, err := ingestor.Track(ctx, validSubmission(analytics.KindAppOpen))
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, event.PublicID)
		assert.Nil(t, event.CourseRef)
		assert.True(t, event.OccurredAt.After(before))
		assert.False(t, event.RecordedAt.Before(event.OccurredAt))
		assert.Equal(t, int64(1), countEvents(t, dbManager))
	})

	t.Run("resolves known slug and keeps the raw slug", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		sub := validSubmission(analytics.KindCourseClick)
		sub.CourseSlug = strPtr("instagram-for-cosmetologists")

		event, err := ingestor.Track(ctx, sub)
		require.NoError(t, err)
		require.NotNil(t, event.CourseRef)
		assert.Equal(t, course.ID, *event.CourseRef)
		assert.Equal(t, "instagram-for-cosmetologists", *event.CourseSlug)

		var stored analytics.Event
		require.NoError(t, db.Where("public_id = ?", event.PublicID).Take(&stored).Error)
		require.NotNil(t, stored.CourseRef)
		assert.Equal(t, course.ID, *stored.CourseRef)
	})

	t.Run("unknown slug is stored unresolved", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		sub := validSubmission(analytics.KindCourseView)
		sub.CourseSlug = strPtr("retired-course")

		event, err := ingestor.Track(ctx, sub)
		require.NoError(t, err)
		assert.Nil(t, event.CourseRef)
		require.NotNil(t, event.CourseSlug)
		assert.Equal(t, "retired-course", *event.CourseSlug)
		assert.Equal(t, int64(1), countEvents(t, dbManager))
	})

	t.Run("archived courses still resolve", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		archived := testsupport.CreateTestCourse(t, db, category, "old-course", catalog.StatusArchived)
		sub := validSubmission(analytics.KindCourseView)
		sub.CourseSlug = strPtr("old-course")

		event, err := ingestor.Track(ctx, sub)
		require.NoError(t, err)
		require.NotNil(t, event.CourseRef)
		assert.Equal(t, archived.ID, *event.CourseRef)
	})

	t.Run("app_open with a slug is not resolved", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		sub := validSubmission(analytics.KindAppOpen)
		sub.CourseSlug = strPtr("instagram-for-cosmetologists")

		event, err := ingestor.Track(ctx, sub)
		require.NoError(t, err)
		assert.Nil(t, event.CourseRef)
	})

	t.Run("invalid submission writes nothing", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		_, err := ingestor.Track(ctx, &analytics.Submission{EventType: "purchase"})

		var verr *analytics.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, int64(0), countEvents(t, dbManager))
	})

	t.Run("stores campaign and device", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		sub := validSubmission(analytics.KindAppOpen)
		sub.UTM = &analytics.CampaignInput{Source: strPtr("instagram"), Campaign: strPtr("spring")}
		sub.Device.Version = strPtr("7.10")

		event, err := ingestor.Track(ctx, sub)
		require.NoError(t, err)

		var stored analytics.Event
		require.NoError(t, db.Where("public_id = ?", event.PublicID).Take(&stored).Error)
		require.NotNil(t, stored.Campaign.Source)
		assert.Equal(t, "instagram", *stored.Campaign.Source)
		assert.Equal(t, "spring", *stored.Campaign.Name)
		assert.Nil(t, stored.Campaign.Medium)
		assert.Equal(t, "ios", stored.Device.Platform)
		assert.Equal(t, "7.10", *stored.Device.Version)
	})

	t.Run("TrackAt keeps the given occurrence time", func(t *testing.T) {
		testsupport.CleanTables(db, "events")
		at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

		event, err := ingestor.TrackAt(ctx, validSubmission(analytics.KindAppOpen), at)
		require.NoError(t, err)
		assert.True(t, event.OccurredAt.Equal(at))
		assert.True(t, event.RecordedAt.After(at))
	})
}

func TestStoreAppendIsInsertOnly(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	store := analytics.NewStore(dbManager, logger)
	ctx := context.Background()

	first := &analytics.Event{Kind: analytics.KindAppOpen, User: analytics.User{TelegramID: 1}, Device: analytics.Device{Platform: "web"}}
	firstID, err := store.Append(ctx, first)
	require.NoError(t, err)

	// Appending the same struct again creates a second row with a new id.
	secondID, err := store.Append(ctx, first)
	require.NoError(t, err)

	assert.NotEqual(t, firstID, secondID)
	assert.Equal(t, int64(2), countEvents(t, dbManager))
}
