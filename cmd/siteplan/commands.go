package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/conflict"
	"github.com/aristath/siteplan/internal/events"
	"github.com/aristath/siteplan/internal/persistence"
	"github.com/aristath/siteplan/internal/report"
	"github.com/aristath/siteplan/internal/scheduler"
	"github.com/aristath/siteplan/internal/tui"
)

// maxConcurrentLoads bounds how many projects are read at once.
const maxConcurrentLoads = 4

func importCmd() *cobra.Command {
	var flagID string

	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import or replace a project from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			if flagID != "" {
				data.Project.ID = flagID
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.store.SaveProject(cmd.Context(), data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %s, %s, %s\n",
				data.Project.ID,
				english.Plural(len(data.Phases), "phase", ""),
				english.Plural(len(data.Tasks), "task", ""),
				english.Plural(len(data.Dependencies), "dependency", "dependencies"))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagID, "id", "", "Override the project ID from the file")
	return cmd
}

func projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List stored projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			projects, err := e.store.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, report.Dim("No projects. Use 'siteplan import' to add one."))
			}
			for _, p := range projects {
				fmt.Fprintf(out, "%s  %s\n", report.Bold(p.ID), p.Name)
			}
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	var flagApply bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Compute the critical path schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			planner, _, err := e.openPlanner(cmd.Context(), nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagApply {
				changes, err := planner.AutoAdjust(cmd.Context())
				if err != nil {
					return err
				}
				if err := report.Cascade(out, scheduler.CascadeResult{ChangedTasks: changes}); err != nil {
					return err
				}
			}
			return report.Schedule(out, planner.Tasks(), planner.Schedule())
		},
	}

	cmd.Flags().BoolVar(&flagApply, "apply", false, "Move every task to its earliest start and save")
	return cmd
}

func impactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "impact <task> <days>",
		Short: "Show what delaying a task would do",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("days: %w", err)
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			planner, _, err := e.openPlanner(cmd.Context(), nil)
			if err != nil {
				return err
			}
			if _, ok := planner.Task(args[0]); !ok {
				return fmt.Errorf("%w: %s", scheduler.ErrTaskNotFound, args[0])
			}
			return report.Impact(cmd.OutOrStdout(), planner.DelayImpact(args[0], days))
		},
	}
}

func cascadeCmd() *cobra.Command {
	var (
		flagStart string
		flagEnd   string
		flagBy    int
		flagApply bool
	)

	cmd := &cobra.Command{
		Use:   "cascade <task>",
		Short: "Move a task and cascade the change to its successors",
		Long: `Move a task to a new range, or by a number of days, and show every
successor pushed out by finish-to-start dependencies. Nothing is saved
without --apply.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			planner, data, err := e.openPlanner(ctx, nil)
			if err != nil {
				return err
			}
			task, ok := planner.Task(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", scheduler.ErrTaskNotFound, args[0])
			}

			change, err := buildChange(task, flagStart, flagEnd, flagBy)
			if err != nil {
				return err
			}

			// Conflict baseline, read before anything is saved
			projects, err := loadProjects(ctx, e.store)
			if err != nil {
				return err
			}

			var result scheduler.CascadeResult
			if flagApply {
				result, err = planner.MoveTask(ctx, change)
			} else {
				result, err = planner.PlanMove(change)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.IsEmpty() {
				if flagApply {
					// Earlier or same-length moves never cascade but are still saved
					moved, _ := planner.Task(task.ID)
					fmt.Fprintf(out, "Moved %s to %s .. %s, nothing cascades.\n",
						task.ID, calendar.Format(moved.StartDate), calendar.Format(moved.EndDate))
					return nil
				}
				return report.Cascade(out, result)
			}
			if err := report.Cascade(out, result); err != nil {
				return err
			}

			// Cross-project double bookings before and after the move
			det := conflict.NewDetector(conflict.WithWindowDays(e.cfg.Conflicts.WindowDays))
			before := det.DetectForProject(projects, data.Project.ID)
			after := det.Preview(projects, data.Project.ID, scheduler.ApplyChanges(data.Tasks, result.ChangedTasks))
			return report.ConflictDiff(out, conflict.Diff(before, after))
		},
	}

	cmd.Flags().StringVar(&flagStart, "start", "", "New start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&flagEnd, "end", "", "New end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&flagBy, "by", 0, "Shift the task by this many days instead")
	cmd.Flags().BoolVar(&flagApply, "apply", false, "Save the cascade")
	return cmd
}

// buildChange turns cascade flags into a TaskChange. --by shifts both ends;
// otherwise a missing end keeps the task's duration from the new start.
func buildChange(t scheduler.Task, start, end string, by int) (scheduler.TaskChange, error) {
	change := scheduler.TaskChange{TaskID: t.ID}

	if by != 0 {
		if start != "" || end != "" {
			return change, fmt.Errorf("use either --by or --start/--end")
		}
		change.NewStart = calendar.AddDays(t.StartDate, by)
		change.NewEnd = calendar.AddDays(t.EndDate, by)
		return change, nil
	}

	if start == "" && end == "" {
		return change, fmt.Errorf("one of --by, --start or --end is required")
	}
	if start != "" {
		d, err := calendar.Parse(start)
		if err != nil {
			return change, fmt.Errorf("--start: %w", err)
		}
		change.NewStart = d
	}
	if end != "" {
		d, err := calendar.Parse(end)
		if err != nil {
			return change, fmt.Errorf("--end: %w", err)
		}
		change.NewEnd = d
	} else {
		change.NewEnd = calendar.AddDays(change.NewStart, t.Duration())
	}

	newStart := change.NewStart
	if newStart.IsZero() {
		newStart = t.StartDate
	}
	if change.NewEnd.Before(newStart) {
		return change, fmt.Errorf("end %s is before start %s", calendar.Format(change.NewEnd), calendar.Format(newStart))
	}
	return change, nil
}

func phaseShiftCmd() *cobra.Command {
	var (
		flagFrom  string
		flagDays  int
		flagApply bool
	)

	cmd := &cobra.Command{
		Use:   "phase-shift <phase>",
		Short: "Shift a phase and push later phases of its group clear of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := calendar.Parse(flagFrom)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			planner, _, err := e.openPlanner(ctx, nil)
			if err != nil {
				return err
			}

			req := scheduler.PhaseShift{PhaseID: args[0], From: from, Days: flagDays}
			var result scheduler.PhaseCascadeResult
			if flagApply {
				result, err = planner.ShiftPhases(ctx, req)
			} else {
				result, err = scheduler.CascadePhases(planner.Tasks(), planner.Phases(), req)
			}
			if err != nil {
				return err
			}
			return report.PhaseCascade(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&flagFrom, "from", "", "Shift tasks starting on or after this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&flagDays, "days", 0, "Days to shift by")
	cmd.Flags().BoolVar(&flagApply, "apply", false, "Save the shift")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}

func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <task> <days>",
		Short: "Preview dragging a task by a number of days",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("days: %w", err)
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			planner, _, err := e.openPlanner(cmd.Context(), nil)
			if err != nil {
				return err
			}
			session, err := planner.Preview(args[0])
			if err != nil {
				return err
			}
			records, err := session.MoveBy(days)
			if err != nil {
				return err
			}
			return report.Preview(cmd.OutOrStdout(), records)
		},
	}
}

func depsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "List and edit task dependencies",
	}
	cmd.AddCommand(depsListCmd(), depsAddCmd(), depsRemoveCmd(), depsSetCmd())
	return cmd
}

// withPlanner opens the environment and planner around fn.
func withPlanner(cmd *cobra.Command, fn func(ctx context.Context, p *scheduler.Planner) error) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	planner, _, err := e.openPlanner(ctx, nil)
	if err != nil {
		return err
	}
	return fn(ctx, planner)
}

func depsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd, func(_ context.Context, p *scheduler.Planner) error {
				return report.Dependencies(cmd.OutOrStdout(), p.Dependencies())
			})
		},
	}
}

func depsAddCmd() *cobra.Command {
	var (
		flagType string
		flagLag  int
	)

	cmd := &cobra.Command{
		Use:   "add <from> <to>",
		Short: "Add a dependency; refused if it duplicates an edge or closes a cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := scheduler.ParseDependencyType(flagType)
			if err != nil {
				return err
			}
			return withPlanner(cmd, func(ctx context.Context, p *scheduler.Planner) error {
				for _, id := range args {
					if _, ok := p.Task(id); !ok {
						return fmt.Errorf("%w: %s", scheduler.ErrTaskNotFound, id)
					}
				}

				d, ok, err := p.AddDependency(ctx, args[0], args[1], typ, flagLag)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s -> %s rejected: duplicate edge or dependency cycle", args[0], args[1])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s -> %s, %s, lag %s)\n",
					d.ID, d.FromTaskID, d.ToTaskID, d.Type, report.Days(d.LagDays))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flagType, "type", "FS", "Dependency type: FS, SS, FF or SF")
	cmd.Flags().IntVar(&flagLag, "lag", 0, "Lag in days, may be negative")
	return cmd
}

func depsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPlanner(cmd, func(ctx context.Context, p *scheduler.Planner) error {
				ok, err := p.RemoveDependency(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no dependency %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func depsSetCmd() *cobra.Command {
	var (
		flagType string
		flagLag  int
	)

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Change a dependency's type or lag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeChanged := cmd.Flags().Changed("type")
			lagChanged := cmd.Flags().Changed("lag")
			if !typeChanged && !lagChanged {
				return fmt.Errorf("nothing to change: pass --type or --lag")
			}

			return withPlanner(cmd, func(ctx context.Context, p *scheduler.Planner) error {
				id := args[0]
				if typeChanged {
					typ, err := scheduler.ParseDependencyType(flagType)
					if err != nil {
						return err
					}
					ok, err := p.UpdateDependencyType(ctx, id, typ)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("no dependency %s", id)
					}
				}
				if lagChanged {
					ok, err := p.UpdateDependencyLag(ctx, id, flagLag)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("no dependency %s", id)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flagType, "type", "", "New type: FS, SS, FF or SF")
	cmd.Flags().IntVar(&flagLag, "lag", 0, "New lag in days")
	return cmd
}

// loadProjects reads every stored project concurrently.
func loadProjects(ctx context.Context, store *persistence.SQLiteStore) ([]conflict.Project, error) {
	list, err := store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	projects := make([]conflict.Project, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, p := range list {
		g.Go(func() error {
			data, err := store.LoadProject(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("loading %s: %w", p.ID, err)
			}
			projects[i] = conflict.Project{ID: p.ID, Name: p.Name, Tasks: data.Tasks}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return projects, nil
}

func conflictsCmd() *cobra.Command {
	var (
		flagAll    bool
		flagWindow int
	)

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Find workers booked on overlapping tasks",
		Long: `Scan every stored project for workers assigned to two or more tasks on
the same day, from today to the end of the conflict window. By default only
records involving the selected project are shown; --all shows everything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			window := e.cfg.Conflicts.WindowDays
			if cmd.Flags().Changed("window") {
				window = flagWindow
			}
			det := conflict.NewDetector(conflict.WithWindowDays(window))

			projects, err := loadProjects(ctx, e.store)
			if err != nil {
				return err
			}

			var records []conflict.Record
			if id, err := e.projectID(); err == nil && !flagAll {
				records = det.DetectForProject(projects, id)
			} else {
				records = det.Detect(projects)
			}
			return report.Conflicts(cmd.OutOrStdout(), records)
		},
	}

	cmd.Flags().BoolVar(&flagAll, "all", false, "Show conflicts across all projects")
	cmd.Flags().IntVar(&flagWindow, "window", 0, "Days ahead to scan (default from config)")
	return cmd
}

func statusCmd() *cobra.Command {
	var flagProgress float64

	cmd := &cobra.Command{
		Use:   "status <task> <status>",
		Short: "Record task progress (not_started, in_progress, completed, delayed, on_hold)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			id, err := e.projectID()
			if err != nil {
				return err
			}

			status := scheduler.TaskStatus(args[1])
			progress := flagProgress
			if !cmd.Flags().Changed("progress") && status == scheduler.StatusCompleted {
				progress = 1
			}
			if err := e.store.Project(id).UpdateTaskStatus(cmd.Context(), args[0], status, progress); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s (%.0f%%)\n", args[0], status, progress*100)
			return nil
		},
	}

	cmd.Flags().Float64Var(&flagProgress, "progress", 0, "Fraction complete, 0 to 1")
	return cmd
}

// calendarSettings reads the working-day rules for the selected project
// without opening the database.
func calendarSettings() (calendar.Settings, error) {
	cfg, _, _, err := loadConfig()
	if err != nil {
		return calendar.Settings{}, fmt.Errorf("loading config: %w", err)
	}
	id := flagProject
	if id == "" {
		id = cfg.DefaultProject
	}
	return cfg.CalendarSettings(id)
}

func warnUncovered(s calendar.Settings, dates ...time.Time) {
	if !s.ExcludeHolidays {
		return
	}
	for _, d := range dates {
		if !calendar.HolidayTableCovers(d.Year()) {
			log.Printf("WARNING: no public holidays known for %d", d.Year())
			return
		}
	}
}

func workdaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workdays <start> <end>",
		Short: "Count working days in an inclusive date range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := calendar.Parse(args[0])
			if err != nil {
				return err
			}
			end, err := calendar.Parse(args[1])
			if err != nil {
				return err
			}
			s, err := calendarSettings()
			if err != nil {
				return err
			}
			warnUncovered(s, start, end)

			out := cmd.OutOrStdout()
			n := calendar.CalculateWorkingDays(start, end, s)
			fmt.Fprintf(out, "%s\n", english.Plural(n, "working day", ""))

			if !s.ExcludeHolidays {
				return nil
			}
			for d := start; !d.After(end); d = calendar.AddDays(d, 1) {
				if name, ok := calendar.HolidayName(d); ok {
					fmt.Fprintf(out, "  %s %s\n", report.Dim(calendar.Format(d)), name)
				}
			}
			return nil
		},
	}
}

func enddateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enddate <start> <working-days>",
		Short: "Find the last day of a span of working days",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := calendar.Parse(args[0])
			if err != nil {
				return err
			}
			duration, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("working days: %w", err)
			}
			s, err := calendarSettings()
			if err != nil {
				return err
			}

			end := calendar.CalculateEndDate(start, duration, s)
			warnUncovered(s, start, end)
			fmt.Fprintln(cmd.OutOrStdout(), calendar.Format(end))
			return nil
		},
	}
}

func tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Drag tasks interactively and watch the cascade",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			// Create event bus
			bus := events.NewEventBus()
			defer bus.Close()

			planner, _, err := e.openPlanner(ctx, bus)
			if err != nil {
				return err
			}

			model := tui.New(planner, bus, e.cfg, e.globalPath, e.projectPath)

			// Start Bubble Tea program in a goroutine so we can handle shutdown
			p := tea.NewProgram(model, tea.WithAltScreen())

			errChan := make(chan error, 1)
			go func() {
				_, err := p.Run()
				errChan <- err
			}()

			select {
			case err := <-errChan:
				// Normal TUI exit (user pressed 'q')
				return err
			case <-ctx.Done():
				log.Println("Shutdown signal received, cleaning up...")
				p.Quit()

				// Wait for TUI to exit with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				select {
				case err := <-errChan:
					if err != nil {
						log.Printf("TUI exit error: %v", err)
					}
				case <-shutdownCtx.Done():
					log.Println("Shutdown timeout exceeded, forcing exit")
				}
				return nil
			}
		},
	}
}
