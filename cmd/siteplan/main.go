package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/siteplan/internal/config"
	"github.com/aristath/siteplan/internal/events"
	"github.com/aristath/siteplan/internal/persistence"
	"github.com/aristath/siteplan/internal/scheduler"
)

var (
	flagDB      string
	flagProject string
	flagConfig  string
)

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "siteplan",
		Short: "Schedule construction projects and cascade date changes",
		Long: `Siteplan keeps construction tasks, phases and their dependencies in a
local database, computes the critical path, and shows how moving one task
ripples through everything that follows it.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (default from config)")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "Project ID (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Project config file (default .siteplan/config.yaml)")

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(projectsCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(impactCmd())
	rootCmd.AddCommand(cascadeCmd())
	rootCmd.AddCommand(phaseShiftCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(depsCmd())
	rootCmd.AddCommand(conflictsCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(workdaysCmd())
	rootCmd.AddCommand(enddateCmd())
	rootCmd.AddCommand(tuiCmd())

	return rootCmd
}

// env is what every command needs: configuration and an open store.
type env struct {
	cfg         *config.Config
	store       *persistence.SQLiteStore
	globalPath  string
	projectPath string
}

// loadConfig reads configuration from the conventional paths, with
// --config replacing the project file.
func loadConfig() (*config.Config, string, string, error) {
	globalPath, err := config.GlobalPath()
	if err != nil {
		return nil, "", "", err
	}
	projectPath := flagConfig
	if projectPath == "" {
		projectPath = config.ProjectPath()
	}

	cfg, err := config.Load(globalPath, projectPath)
	if err != nil {
		return nil, "", "", err
	}
	return cfg, globalPath, projectPath, nil
}

// openEnv loads configuration and opens the database. Callers must Close it.
func openEnv(ctx context.Context) (*env, error) {
	cfg, globalPath, projectPath, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	dbPath := flagDB
	if dbPath == "" {
		dbPath = cfg.DatabasePath
	}
	store, err := persistence.NewSQLiteStore(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &env{cfg: cfg, store: store, globalPath: globalPath, projectPath: projectPath}, nil
}

// Close releases the store.
func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		log.Printf("WARNING: closing database: %v", err)
	}
}

// projectID returns --project, falling back to the configured default.
func (e *env) projectID() (string, error) {
	if flagProject != "" {
		return flagProject, nil
	}
	if e.cfg.DefaultProject != "" {
		return e.cfg.DefaultProject, nil
	}
	return "", fmt.Errorf("no project selected (use --project or set default_project)")
}

// openPlanner loads the selected project into a planner that writes back
// to the store. bus may be nil.
func (e *env) openPlanner(ctx context.Context, bus *events.EventBus) (*scheduler.Planner, *persistence.ProjectData, error) {
	id, err := e.projectID()
	if err != nil {
		return nil, nil, err
	}

	data, err := e.store.LoadProject(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var opts []scheduler.Option
	start, err := e.cfg.ProjectStart(id)
	if err != nil {
		return nil, nil, fmt.Errorf("project start for %s: %w", id, err)
	}
	if !start.IsZero() {
		opts = append(opts, scheduler.WithProjectStart(start))
	}

	planner := scheduler.NewPlanner(data.Tasks, data.Dependencies, data.Phases, scheduler.PlannerConfig{
		Store:           e.store.Project(id),
		Bus:             bus,
		ScheduleOptions: opts,
	})
	return planner, data, nil
}
