package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"
)

const activeCategoriesKey = "active"

var (
	categoriesCache   *cache.Cache[string, []CategorySummary]
	categoriesCacheMu sync.RWMutex
)

// LoadCategoryCache sets up the cache behind CachedActiveCategories. Every
// catalog write clears it, so ttl only bounds staleness against writes made
// outside this process.
func LoadCategoryCache(db *gorm.DB, logger *slog.Logger, ttl time.Duration) {
	fetchFunc := func(key string) ([]CategorySummary, error) {
		return ListActiveCategories(context.Background(), db)
	}

	categoriesCacheMu.Lock()
	categoriesCache = cache.NewCache[string, []CategorySummary](logger, ttl, fetchFunc)
	categoriesCacheMu.Unlock()
}

// CachedActiveCategories is ListActiveCategories served from the category
// cache when one is loaded.
func CachedActiveCategories(ctx context.Context, db *gorm.DB) ([]CategorySummary, error) {
	categoriesCacheMu.RLock()
	c := categoriesCache
	categoriesCacheMu.RUnlock()

	if c == nil {
		return ListActiveCategories(ctx, db)
	}
	return c.Get(activeCategoriesKey)
}

func invalidateCategoryCache() {
	categoriesCacheMu.RLock()
	defer categoriesCacheMu.RUnlock()
	if categoriesCache != nil {
		categoriesCache.Clear()
	}
}
