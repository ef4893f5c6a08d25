package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogapp/internal/catalog"
	"catalogapp/internal/testsupport"
)

func TestCategories(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()

	marketing := &catalog.Category{Name: "Marketing", Slug: "marketing", IsActive: true, SortOrder: 2}
	design := &catalog.Category{Name: "Design", Slug: "design", IsActive: true, SortOrder: 1}

	t.Run("create", func(t *testing.T) {
		require.NoError(t, catalog.CreateCategory(ctx, db, logger, marketing))
		require.NoError(t, catalog.CreateCategory(ctx, db, logger, design))
		assert.NotZero(t, marketing.ID)
	})

	t.Run("create rejects duplicate slug and name", func(t *testing.T) {
		err := catalog.CreateCategory(ctx, db, logger, &catalog.Category{Name: "Other", Slug: "marketing"})
		assert.ErrorIs(t, err, catalog.ErrCategorySlugTaken)

		err = catalog.CreateCategory(ctx, db, logger, &catalog.Category{Name: "Marketing", Slug: "marketing-2"})
		assert.ErrorIs(t, err, catalog.ErrCategoryNameTaken)
	})

	t.Run("list counts published courses in display order", func(t *testing.T) {
		testsupport.CreateTestCourse(t, db, marketing, "live-1", catalog.StatusPublished)
		testsupport.CreateTestCourse(t, db, marketing, "live-2", catalog.StatusPublished)
		testsupport.CreateTestCourse(t, db, marketing, "draft-1", catalog.StatusDraft)

		list, err := catalog.ListActiveCategories(ctx, db)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "design", list[0].Slug)
		assert.Equal(t, int64(0), list[0].CoursesCount)
		assert.Equal(t, "marketing", list[1].Slug)
		assert.Equal(t, int64(2), list[1].CoursesCount)
	})

	t.Run("get with courses", func(t *testing.T) {
		detail, err := catalog.GetActiveCategory(ctx, db, "marketing")
		require.NoError(t, err)
		assert.Len(t, detail.Courses, 2)

		_, err = catalog.GetActiveCategory(ctx, db, "cooking")
		assert.ErrorIs(t, err, catalog.ErrCategoryNotFound)
	})

	t.Run("update", func(t *testing.T) {
		updated, err := catalog.UpdateCategory(ctx, db, logger, design.ID, func(c *catalog.Category) error {
			c.Icon = "palette"
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "palette", updated.Icon)

		_, err = catalog.UpdateCategory(ctx, db, logger, design.ID, func(c *catalog.Category) error {
			c.Slug = "marketing"
			return nil
		})
		assert.ErrorIs(t, err, catalog.ErrCategorySlugTaken)
	})

	t.Run("deactivate refuses while courses are published", func(t *testing.T) {
		_, err := catalog.DeactivateCategory(ctx, db, logger, marketing.ID)
		var inUse *catalog.CategoryInUseError
		require.ErrorAs(t, err, &inUse)
		assert.Equal(t, int64(2), inUse.Courses)
	})

	t.Run("deactivate an empty category", func(t *testing.T) {
		category, err := catalog.DeactivateCategory(ctx, db, logger, design.ID)
		require.NoError(t, err)
		assert.False(t, category.IsActive)

		list, err := catalog.ListActiveCategories(ctx, db)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		_, err = catalog.DeactivateCategory(ctx, db, logger, 999999)
		assert.ErrorIs(t, err, catalog.ErrCategoryNotFound)
	})
}

func TestCachedActiveCategories(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()

	catalog.LoadCategoryCache(db, logger, time.Hour)

	testsupport.CreateTestCategory(t, db, "Marketing", "marketing")
	list, err := catalog.CachedActiveCategories(ctx, db)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Rows written behind the catalog's back are not seen until the cache expires.
	testsupport.CreateTestCategory(t, db, "Design", "design")
	list, err = catalog.CachedActiveCategories(ctx, db)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Catalog writes clear it.
	require.NoError(t, catalog.CreateCategory(ctx, db, logger, &catalog.Category{Name: "Beauty", Slug: "beauty", IsActive: true}))
	list, err = catalog.CachedActiveCategories(ctx, db)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
