// main.go - Admin control tool for the course catalog
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"catalogapp/internal"
	"catalogapp/internal/analytics"
	"catalogapp/internal/catalog"
	"catalogapp/internal/jobs"
	"catalogapp/internal/seeder"

	"log/slog"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&SeedCommand{},
	&SeedEventsCommand{},
	&DriftCommand{},
	&HashTokenCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
		log.Println("Proceeding with limited functionality...")
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand inserts the demo catalog
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the demo categories and courses (skips existing slugs)" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	stats, err := seeder.NewSeeder(app.DBManager, slog.Default()).SeedCatalog(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Categories: %d created, %d already present\n", stats.CategoriesCreated, stats.CategoriesSkipped)
	fmt.Printf("Courses:    %d created, %d already present\n", stats.CoursesCreated, stats.CoursesSkipped)
	return nil
}

// SeedEventsCommand generates synthetic analytics events
type SeedEventsCommand struct{}

func (c *SeedEventsCommand) Name() string { return "seed-events" }
func (c *SeedEventsCommand) Description() string {
	return "Generates <n> synthetic analytics events (default 1000)"
}

func (c *SeedEventsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	n := 1000
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("usage: %s <n>, n must be a positive integer", c.Name())
		}
		n = v
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	stats, err := seeder.NewSeeder(app.DBManager, slog.Default()).SeedEvents(ctx, n)
	if err != nil {
		return err
	}

	fmt.Printf("Events: %d created, %d rejected\n", stats.EventsCreated, stats.EventsRejected)
	return nil
}

// DriftCommand prints courses whose counters disagree with the event log
type DriftCommand struct{}

func (c *DriftCommand) Name() string { return "drift" }
func (c *DriftCommand) Description() string {
	return "Compares course view/click counters with the analytics event log"
}

func (c *DriftCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot audit counters: app initialization failed")
	}

	drift, err := jobs.NewDriftAuditJob(app.DBManager, slog.Default()).Audit(ctx)
	if err != nil {
		return err
	}

	if len(drift) == 0 {
		fmt.Println("All course counters match the event log")
		return nil
	}

	fmt.Printf("%-6s %-36s %10s %10s %10s %10s\n", "ID", "SLUG", "VIEWS", "EV_VIEWS", "CLICKS", "EV_CLICKS")
	for _, d := range drift {
		fmt.Printf("%-6d %-36s %10d %10d %10d %10d\n", d.CourseID, d.Slug, d.Views, d.EventViews, d.Clicks, d.EventClicks)
	}
	return nil
}

// HashTokenCommand prints the bcrypt hash to put in CATALOG_ADMIN_TOKEN_HASH
type HashTokenCommand struct{}

func (c *HashTokenCommand) Name() string { return "hash-token" }
func (c *HashTokenCommand) Description() string {
	return "Prints the bcrypt hash of an admin token for CATALOG_ADMIN_TOKEN_HASH"
}

func (c *HashTokenCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	var token string
	if len(args) >= 1 {
		token = args[0]
	} else {
		fmt.Print("Enter admin token: ")
		if term.IsTerminal(int(syscall.Stdin)) {
			tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
			token = strings.TrimSpace(string(tokenBytes))
		} else {
			input, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			token = strings.TrimSpace(input)
		}
	}

	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash token: %w", err)
	}

	fmt.Println(string(hash))
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection().WithContext(ctx)

	var categories, courses, events int64
	if err := db.Model(&catalog.Category{}).Count(&categories).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&catalog.Course{}).Count(&courses).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&analytics.Event{}).Count(&events).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Categories: %d", categories)
	log.Printf("- Courses: %d", courses)
	log.Printf("- Analytics events: %d", events)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: catalogctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
