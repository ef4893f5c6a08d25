// Package geoip resolves client IP addresses to countries using an optional
// GeoLite2 Country database.
package geoip

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	geoDB *geoip2.Reader
	mu    sync.RWMutex

	countries     *gountries.Query
	countriesOnce sync.Once
)

// Open loads the GeoLite2 database at path, replacing any database opened
// before. An empty path turns lookups off.
func Open(path string, logger *slog.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
		geoDB = nil
	}

	if path == "" {
		logger.Debug("GeoIP database path not configured - country lookup disabled")
		return nil
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("geoip database %s: %w", path, err)
	}

	db, err := geoip2.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open geoip database %s: %w", path, err)
	}
	geoDB = db

	logger.Info("GeoLite2 database loaded",
		slog.String("path", path),
		slog.Int64("size_bytes", fileInfo.Size()))
	return nil
}

// Close releases the database, if one is open.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if geoDB != nil {
		geoDB.Close()
		geoDB = nil
	}
}

// Enabled reports whether lookups can succeed.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return geoDB != nil
}

// CountryCode returns the ISO 3166-1 alpha-2 code of ipAddress, or "" when
// no database is loaded or the address does not resolve. Private and
// loopback addresses never resolve.
func CountryCode(ipAddress string) string {
	mu.RLock()
	defer mu.RUnlock()

	if geoDB == nil {
		return ""
	}

	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return ""
	}

	record, err := geoDB.Country(ip)
	if err != nil {
		return ""
	}

	code := record.Country.IsoCode
	if code == "" || code == "--" {
		return ""
	}
	return code
}

// CountryName returns the common English name for an ISO alpha-2 code.
// Codes it does not know come back upper-cased.
func CountryName(code string) string {
	countriesOnce.Do(func() {
		countries = gountries.New()
	})

	country, err := countries.FindCountryByAlpha(code)
	if err != nil {
		return cases.Upper(language.AmericanEnglish).String(code)
	}
	return country.Name.Common
}
