package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/mnuel1/spacio-backend/internal/app"
	"github.com/mnuel1/spacio-backend/internal/dto"
	"github.com/mnuel1/spacio-backend/internal/models"
	"github.com/mnuel1/spacio-backend/internal/service"
	"github.com/mnuel1/spacio-backend/pkg/database"
)

func withContainer(ctx context.Context, fn func(c *app.Container) error) error {
	container, err := app.Build(ctx, cfg, logr)
	if err != nil {
		return err
	}
	container.Start(ctx)
	defer container.Close()
	return fn(container)
}

func newMigrateCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply or roll back database migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()
			return database.RunMigrations(db.DB, logr)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("steps must be >= 1")
			}
			db, err := database.NewPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer db.Close()
			return database.RollbackMigrations(db.DB, steps, logr)
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

func newAutoScheduleCommand() *cobra.Command {
	var (
		teacherIDs []string
		seed       int64
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "autoschedule",
		Short: "regenerate the active period timetable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := dto.AutoScheduleRequest{TeacherIDs: teacherIDs}
			if cmd.Flags().Changed("seed") {
				req.Seed = lo.ToPtr(seed)
			}
			return withContainer(cmd.Context(), func(c *app.Container) error {
				result, err := c.AutoSchedule.Run(cmd.Context(), req, "cli")
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				return writeRunSummary(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&teacherIDs, "teacher", "t", nil, "regenerate only these teacher ids (repeatable)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for a reproducible run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full run result as JSON")
	return cmd
}

func newConflictsCommand() *cobra.Command {
	var (
		scope   string
		refresh bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "report timetable conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *app.Container) error {
				report, err := c.Conflicts.Detect(cmd.Context(), dto.ConflictQuery{Scope: scope, Refresh: refresh})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), report)
				}
				return writeConflictTable(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVarP(&scope, "scope", "s", "", "period or all (defaults to CONFLICTS_DEFAULT_SCOPE)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the report cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newBlocksCommand() *cobra.Command {
	var (
		lecture int
		lab     int
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "preview how weekly hours split into teaching blocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lecture < 0 || lab < 0 {
				return fmt.Errorf("hours must be >= 0")
			}
			if !cmd.Flags().Changed("seed") {
				seed = time.Now().UnixNano()
			}
			planner := service.NewBlockPlanner(rand.New(rand.NewSource(seed)))
			return writeBlockPlan(cmd.OutOrStdout(), planner.PlanBlocks(lecture, lab))
		},
	}
	cmd.Flags().IntVar(&lecture, "lecture", 0, "weekly lecture hours")
	cmd.Flags().IntVar(&lab, "lab", 0, "weekly lab hours")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for a reproducible split")
	return cmd
}

func newExportCommand() *cobra.Command {
	var (
		query dto.ExportQuery
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "write the active period timetable to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd.Context(), func(c *app.Container) error {
				file, err := c.Export.Export(cmd.Context(), query)
				if err != nil {
					return err
				}
				target := out
				if target == "" {
					target = file.Filename
				} else if info, statErr := os.Stat(target); statErr == nil && info.IsDir() {
					target = filepath.Join(target, file.Filename)
				}
				if err := os.WriteFile(target, file.Content, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", target, len(file.Content))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&query.Format, "format", "f", "csv", "csv, pdf, xlsx or ics")
	cmd.Flags().StringVar(&query.TeacherID, "teacher", "", "only this teacher's meetings")
	cmd.Flags().StringVar(&query.SectionID, "section", "", "only this section's meetings")
	cmd.Flags().StringVar(&query.RoomID, "room", "", "only this room's meetings")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeRunSummary(w io.Writer, result *dto.AutoScheduleResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", result.RunID)
	fmt.Fprintf(tw, "period\t%s\n", result.PeriodID)
	fmt.Fprintf(tw, "deleted\t%d\n", result.DeletedMeetings)
	fmt.Fprintf(tw, "meetings\t%d\n", len(result.Placements))
	fmt.Fprintf(tw, "blocks\t%d\n", result.BlocksPlaced)
	fmt.Fprintf(tw, "unassigned\t%d\n", len(result.Unassigned))
	fmt.Fprintf(tw, "duration\t%dms\n", result.DurationMs)
	if len(result.Unassigned) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "SUBJECT\tSECTION\tREASON")
		for _, miss := range result.Unassigned {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", miss.SubjectCode, miss.SectionName, miss.Reason)
		}
	}
	if len(result.PersistenceErrors) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "TEACHER\tSUBJECT\tSECTION\tERROR")
		for _, failure := range result.PersistenceErrors {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", failure.TeacherID, failure.SubjectID, failure.SectionID, failure.Error)
		}
	}
	return tw.Flush()
}

func writeConflictTable(w io.Writer, report *models.ConflictReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	scope := report.Scope
	if report.PeriodID != "" {
		scope += " " + report.PeriodID
	}
	fmt.Fprintf(tw, "scope\t%s\n", scope)
	fmt.Fprintf(tw, "conflicts\t%d\n", len(report.Conflicts))
	if len(report.Conflicts) == 0 {
		return tw.Flush()
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "TYPE\tDAYS\tMEETINGS\tMESSAGE")
	for _, conflict := range report.Conflicts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", conflict.Type, lo.Ternary(conflict.Days == "", "-", conflict.Days), lo.Ternary(len(conflict.MeetingIDs) == 0, "-", strings.Join(conflict.MeetingIDs, ",")), conflict.Message)
	}
	return tw.Flush()
}

func writeBlockPlan(w io.Writer, blocks []models.Block) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTYPE\tHOURS")
	for i, block := range blocks {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", i+1, block.Type, block.Hours)
	}
	total := lo.SumBy(blocks, func(b models.Block) int { return b.Hours })
	fmt.Fprintf(tw, "\ttotal\t%d\n", total)
	return tw.Flush()
}
