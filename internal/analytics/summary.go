package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"catalogapp/internal/metrics"
	"catalogapp/internal/pkg/async"
	"catalogapp/internal/pkg/geoip"
)

const (
	topCoursesLimit   = 10
	topCampaignsLimit = 10
	topCountriesLimit = 10
)

// KindStat counts events of one kind and the distinct users behind them.
type KindStat struct {
	Kind        Kind  `json:"eventType"`
	Count       int64 `json:"count"`
	UniqueUsers int64 `json:"uniqueUsers"`
}

// CourseStat is one row of the top courses report.
type CourseStat struct {
	CourseRef  uint   `json:"courseId"`
	CourseSlug string `json:"courseSlug"`
	Views      int64  `json:"views"`
	Clicks     int64  `json:"clicks"`
}

type PlatformStat struct {
	Platform string `json:"platform"`
	Count    int64  `json:"count"`
}

// CampaignStat counts events per (source, campaign) pair. Campaign is nil
// for events that carried a source but no campaign name.
type CampaignStat struct {
	Source   string  `json:"source"`
	Campaign *string `json:"campaign"`
	Count    int64   `json:"count"`
}

// CountryStat counts events per resolved client country. Events without a
// country are left out.
type CountryStat struct {
	Country string `json:"country"`
	Name    string `json:"name" gorm:"-"`
	Count   int64  `json:"count"`
}

type Period struct {
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

// Report is the dashboard summary over one filtered event set.
type Report struct {
	TotalEvents   int64          `json:"totalEvents"`
	EventStats    []KindStat     `json:"eventStats"`
	TopCourses    []CourseStat   `json:"topCourses"`
	PlatformStats []PlatformStat `json:"platformStats"`
	CampaignStats []CampaignStat `json:"utmStats"`
	CountryStats  []CountryStat  `json:"countryStats"`
	Period        Period         `json:"period"`
}

// Reports answers read queries over the event log.
type Reports struct {
	dbManager cartridge.DBManager
	directory CourseDirectory
	pool      *async.Pool
	logger    *slog.Logger
}

func NewReports(dbManager cartridge.DBManager, directory CourseDirectory, logger *slog.Logger) *Reports {
	return &Reports{
		dbManager: dbManager,
		directory: directory,
		pool:      async.NewPool(6),
		logger:    logger,
	}
}

func (r *Reports) events(ctx context.Context, f Filter) *gorm.DB {
	return r.dbManager.GetConnection().WithContext(ctx).Model(&Event{}).Scopes(f.Scope)
}

// Summarize computes every section of the report over the events matching f.
// The sections are independent reads and run concurrently; if any of them
// fails no report is returned.
func (r *Reports) Summarize(ctx context.Context, f Filter) (*Report, error) {
	defer metrics.ObserveQuery("summarize", time.Now())

	if r.dbManager.GetConnection() == nil {
		return nil, storageError("summarize", gorm.ErrInvalidDB)
	}

	tasks := []async.Task{
		{Name: "total", Execute: func(ctx context.Context) (any, error) {
			return r.totalEvents(ctx, f)
		}},
		{Name: "kinds", Execute: func(ctx context.Context) (any, error) {
			return r.kindStats(ctx, f)
		}},
		{Name: "courses", Execute: func(ctx context.Context) (any, error) {
			return r.topCourses(ctx, f)
		}},
		{Name: "platforms", Execute: func(ctx context.Context) (any, error) {
			return r.platformStats(ctx, f)
		}},
		{Name: "campaigns", Execute: func(ctx context.Context) (any, error) {
			return r.campaignStats(ctx, f)
		}},
		{Name: "countries", Execute: func(ctx context.Context) (any, error) {
			return r.countryStats(ctx, f)
		}},
	}

	data, err := r.pool.Run(ctx, tasks)
	if err != nil {
		r.logger.Error("Failed to summarize events", slog.Any("error", err))
		return nil, storageError("summarize", err)
	}

	return &Report{
		TotalEvents:   data["total"].(int64),
		EventStats:    data["kinds"].([]KindStat),
		TopCourses:    data["courses"].([]CourseStat),
		PlatformStats: data["platforms"].([]PlatformStat),
		CampaignStats: data["campaigns"].([]CampaignStat),
		CountryStats:  data["countries"].([]CountryStat),
		Period:        Period{StartDate: f.Start, EndDate: f.End},
	}, nil
}

func (r *Reports) totalEvents(ctx context.Context, f Filter) (int64, error) {
	var total int64
	err := r.events(ctx, f).Count(&total).Error
	return total, err
}

func (r *Reports) kindStats(ctx context.Context, f Filter) ([]KindStat, error) {
	stats := []KindStat{}
	err := r.events(ctx, f).
		Select("kind, COUNT(*) AS count, COUNT(DISTINCT user_telegram_id) AS unique_users").
		Group("kind").
		Order("count DESC, kind").
		Scan(&stats).Error
	return stats, err
}

// topCourses only counts course events that resolved to a course. Ties on
// views come back in whatever order the database produces.
func (r *Reports) topCourses(ctx context.Context, f Filter) ([]CourseStat, error) {
	stats := []CourseStat{}
	err := r.events(ctx, f).
		Select("course_ref, MIN(course_slug) AS course_slug, "+
			"SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END) AS views, "+
			"SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END) AS clicks",
			KindCourseView, KindCourseClick).
		Where("kind IN ?", []Kind{KindCourseView, KindCourseClick}).
		Where("course_ref IS NOT NULL").
		Group("course_ref").
		Order("views DESC").
		Limit(topCoursesLimit).
		Scan(&stats).Error
	return stats, err
}

func (r *Reports) platformStats(ctx context.Context, f Filter) ([]PlatformStat, error) {
	stats := []PlatformStat{}
	err := r.events(ctx, f).
		Select("device_platform AS platform, COUNT(*) AS count").
		Group("device_platform").
		Order("count DESC").
		Scan(&stats).Error
	return stats, err
}

func (r *Reports) campaignStats(ctx context.Context, f Filter) ([]CampaignStat, error) {
	stats := []CampaignStat{}
	err := r.events(ctx, f).
		Select("campaign_source AS source, campaign_name AS campaign, COUNT(*) AS count").
		Where("campaign_source IS NOT NULL").
		Group("campaign_source, campaign_name").
		Order("count DESC").
		Limit(topCampaignsLimit).
		Scan(&stats).Error
	return stats, err
}

func (r *Reports) countryStats(ctx context.Context, f Filter) ([]CountryStat, error) {
	stats := []CountryStat{}
	err := r.events(ctx, f).
		Select("device_country AS country, COUNT(*) AS count").
		Where("device_country IS NOT NULL").
		Group("device_country").
		Order("count DESC").
		Limit(topCountriesLimit).
		Scan(&stats).Error
	for i := range stats {
		stats[i].Name = geoip.CountryName(stats[i].Country)
	}
	return stats, err
}
