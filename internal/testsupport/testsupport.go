package testsupport

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalogapp/internal"
	"catalogapp/internal/analytics"
	"catalogapp/internal/catalog"
	"catalogapp/internal/config"
	"catalogapp/internal/database"
)

// AdminToken is the bearer token accepted by apps built with
// CreateMinimalTestApp.
const AdminToken = "test-admin-token"

var (
	adminTokenHash     string
	adminTokenHashOnce sync.Once
)

func init() {
	if os.Getenv("CATALOG_ENV") == "" {
		os.Setenv("CATALOG_ENV", config.Test)
	}
}

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a migrated in-memory database. Calls within the same
// root test share one database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	// cache=shared lets the connections of one pool see the same database
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()

	cfg := config.GetConfig()
	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set CATALOG_ENV=test", cfg.Environment)
	}

	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanTables deletes every row of the given tables.
func CleanTables(db *gorm.DB, tables ...string) {
	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestCategory inserts an active category.
func CreateTestCategory(t *testing.T, db *gorm.DB, name, slug string) *catalog.Category {
	t.Helper()

	category := catalog.NewCategory()
	category.Name = name
	category.Slug = slug
	require.NoError(t, db.Create(category).Error)
	return category
}

// CreateTestCourse inserts a course in category with the given status. The
// remaining fields get valid placeholder values.
func CreateTestCourse(t *testing.T, db *gorm.DB, category *catalog.Category, slug string, status catalog.Status) *catalog.Course {
	t.Helper()

	course := catalog.NewCourse()
	course.Title = "Course " + slug
	course.Slug = slug
	course.Description = "Description of " + slug
	course.FullDescription = "Full description of " + slug
	course.CoverImage = catalog.CoverImage{URL: "https://img.example.com/" + slug + ".jpg", Alt: slug}
	course.Price.Amount = 1990
	course.CategoryID = category.ID
	course.Duration = "4 weeks"
	course.LessonsCount = 8
	course.PurchaseLinks.Telegram = "https://t.me/" + strings.ReplaceAll(slug, "-", "_")
	course.Status = status
	require.NoError(t, db.Create(course).Error)
	return course
}

// EventOption adjusts an event built by CreateTestEvent.
type EventOption func(*analytics.Event)

func WithCourse(ref *uint, slug string) EventOption {
	return func(e *analytics.Event) {
		e.CourseRef = ref
		e.CourseSlug = &slug
	}
}

func WithCampaign(source, name string) EventOption {
	return func(e *analytics.Event) {
		e.Campaign.Source = &source
		if name != "" {
			e.Campaign.Name = &name
		}
	}
}

func WithPlatform(platform string) EventOption {
	return func(e *analytics.Event) {
		e.Device.Platform = platform
	}
}

// WithCountry sets the resolved client country.
func WithCountry(code string) EventOption {
	return func(e *analytics.Event) {
		e.Device.Country = &code
	}
}

// CreateTestEvent writes an event row directly, bypassing ingestion.
func CreateTestEvent(t *testing.T, db *gorm.DB, kind analytics.Kind, telegramID int64, occurredAt time.Time, opts ...EventOption) *analytics.Event {
	t.Helper()

	event := &analytics.Event{
		Kind:       kind,
		User:       analytics.User{TelegramID: telegramID},
		Device:     analytics.Device{Platform: analytics.PlatformIOS},
		OccurredAt: occurredAt.UTC(),
		RecordedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(event)
	}

	store := analytics.NewStore(NewTestDBManager(db), GetLogger())
	_, err := store.Append(context.Background(), event)
	require.NoError(t, err)
	return event
}

// AdminTokenHash returns the bcrypt hash of AdminToken.
func AdminTokenHash() string {
	adminTokenHashOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(AdminToken), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		adminTokenHash = string(hash)
	})
	return adminTokenHash
}

// CreateMinimalTestApp creates a test Fiber app with all routes
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test
	appConfig.AdminTokenHash = AdminTokenHash()

	cfg := internal.NewServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
