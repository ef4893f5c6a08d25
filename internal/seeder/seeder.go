package seeder

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/goccy/go-json"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"catalogapp/internal/analytics"
	"catalogapp/internal/catalog"
)

//go:embed data/catalog.json
var catalogData []byte

type seedCourse struct {
	catalog.Course
	CategorySlug string `json:"categorySlug"`
}

type seedCatalog struct {
	Categories []catalog.Category `json:"categories"`
	Courses    []seedCourse       `json:"courses"`
}

// Stats counts what a seeding run inserted and what it found already there.
type Stats struct {
	CategoriesCreated int
	CategoriesSkipped int
	CoursesCreated    int
	CoursesSkipped    int
	EventsCreated     int
	EventsRejected    int
}

// Seeder fills a database with the demo catalog and synthetic events.
type Seeder struct {
	DBManager cartridge.DBManager
	Logger    *slog.Logger
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager: dbManager,
		Logger:    logger,
	}
}

// SeedCatalog inserts the demo categories and courses. Rows whose slug already
// exists are left untouched, so running it twice is harmless.
func (s *Seeder) SeedCatalog(ctx context.Context) (Stats, error) {
	var stats Stats

	var data seedCatalog
	if err := json.Unmarshal(catalogData, &data); err != nil {
		return stats, fmt.Errorf("failed to decode seed catalog: %w", err)
	}

	db := s.DBManager.GetConnection()
	categoryIDs := make(map[string]uint, len(data.Categories))

	for i := range data.Categories {
		category := data.Categories[i]

		existing, err := findCategory(ctx, db, category.Slug)
		if err != nil {
			return stats, err
		}
		if existing != nil {
			categoryIDs[category.Slug] = existing.ID
			stats.CategoriesSkipped++
			continue
		}

		if err := catalog.CreateCategory(ctx, db, s.Logger, &category); err != nil {
			return stats, fmt.Errorf("failed to seed category %s: %w", category.Slug, err)
		}
		categoryIDs[category.Slug] = category.ID
		stats.CategoriesCreated++
	}

	for i := range data.Courses {
		course := data.Courses[i].Course
		categorySlug := data.Courses[i].CategorySlug

		id, ok := categoryIDs[categorySlug]
		if !ok {
			return stats, fmt.Errorf("course %s refers to unknown category %s", course.Slug, categorySlug)
		}
		course.CategoryID = id

		var n int64
		if err := db.WithContext(ctx).Model(&catalog.Course{}).Where("slug = ?", course.Slug).Count(&n).Error; err != nil {
			return stats, err
		}
		if n > 0 {
			stats.CoursesSkipped++
			continue
		}

		if err := catalog.CreateCourse(ctx, db, s.Logger, &course); err != nil {
			return stats, fmt.Errorf("failed to seed course %s: %w", course.Slug, err)
		}
		stats.CoursesCreated++
	}

	s.Logger.Info("Catalog seeding completed",
		slog.Int("categories_created", stats.CategoriesCreated),
		slog.Int("categories_skipped", stats.CategoriesSkipped),
		slog.Int("courses_created", stats.CoursesCreated),
		slog.Int("courses_skipped", stats.CoursesSkipped))
	return stats, nil
}

func findCategory(ctx context.Context, db *gorm.DB, slug string) (*catalog.Category, error) {
	var category catalog.Category
	err := db.WithContext(ctx).Where("slug = ?", slug).Take(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

var (
	platforms = []string{analytics.PlatformIOS, analytics.PlatformAndroid, analytics.PlatformWeb}
	campaigns = []struct{ source, medium, name string }{
		{"instagram", "social", "spring_launch"},
		{"instagram", "stories", "spring_launch"},
		{"telegram", "channel", "weekly_digest"},
		{"vk", "cpc", "retargeting"},
		{"", "", ""},
		{"", "", ""},
	}
	firstNames = []string{"Анна", "Мария", "Ольга", "Екатерина", "Полина", "Ирина"}
)

// SeedEvents sends n synthetic events through the normal ingest pipeline,
// spread over the last 30 days. Sessions open the app, view a few courses
// and sometimes press a purchase button. A small share of views use a slug
// that no longer exists, to exercise unresolved references.
func (s *Seeder) SeedEvents(ctx context.Context, n int) (Stats, error) {
	var stats Stats

	var slugs []string
	if err := s.DBManager.GetConnection().WithContext(ctx).
		Model(&catalog.Course{}).Pluck("slug", &slugs).Error; err != nil {
		return stats, err
	}
	slugs = append(slugs, "retired-course")

	directory := catalog.NewDirectory(s.DBManager)
	ingestor := analytics.NewIngestor(
		analytics.NewStore(s.DBManager, s.Logger),
		analytics.NewResolver(directory, s.Logger),
		s.Logger,
	)

	users := make([]analytics.UserInput, 50)
	for i := range users {
		name := firstNames[rand.IntN(len(firstNames))]
		lang := "ru"
		users[i] = analytics.UserInput{
			TelegramID:   int64(100000 + i),
			FirstName:    &name,
			LanguageCode: &lang,
		}
	}

	for stats.EventsCreated+stats.EventsRejected < n {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		user := users[rand.IntN(len(users))]
		device := analytics.DeviceInput{Platform: platforms[rand.IntN(len(platforms))]}
		campaign := campaigns[rand.IntN(len(campaigns))]
		at := time.Now().Add(-time.Duration(rand.IntN(30*24*60*60)) * time.Second)

		var utm *analytics.CampaignInput
		if campaign.source != "" {
			utm = &analytics.CampaignInput{
				Source:   strPtr(campaign.source),
				Medium:   strPtr(campaign.medium),
				Campaign: strPtr(campaign.name),
			}
		}

		session := []analytics.Submission{{EventType: string(analytics.KindAppOpen), UTM: utm}}
		for v := rand.IntN(3) + 1; v > 0; v-- {
			slug := slugs[rand.IntN(len(slugs))]
			session = append(session, analytics.Submission{EventType: string(analytics.KindCourseView), CourseSlug: &slug, UTM: utm})
			if rand.Float64() < 0.25 {
				session = append(session, analytics.Submission{EventType: string(analytics.KindCourseClick), CourseSlug: &slug, UTM: utm})
			}
		}

		for i := range session {
			if stats.EventsCreated+stats.EventsRejected >= n {
				break
			}
			u, d := user, device
			session[i].User = &u
			session[i].Device = &d

			at = at.Add(time.Duration(rand.IntN(90)+10) * time.Second)
			if _, err := ingestor.TrackAt(ctx, &session[i], at); err != nil {
				s.Logger.Error("Failed to track event during seeding", slog.Any("error", err))
				stats.EventsRejected++
				continue
			}
			stats.EventsCreated++
		}
	}

	s.Logger.Info("Event seeding completed",
		slog.Int("created", stats.EventsCreated),
		slog.Int("rejected", stats.EventsRejected))
	return stats, nil
}

func strPtr(s string) *string {
	return &s
}
