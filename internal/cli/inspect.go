package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"serialsched/internal/app"
	"serialsched/internal/storage"
	"serialsched/internal/task/scheduler"
)

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and every job schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, reg, err := app.LoadConfig(cmd.Context(), g.configPath)
			if err != nil {
				return err
			}
			out := g.output(cmd)
			if g.jsonOutput {
				return out.JSON(map[string]any{"valid": true, "jobs": reg.Len()})
			}
			out.Success(fmt.Sprintf("config ok: %d jobs", reg.Len()))
			return nil
		},
	}
}

func newNextCmd(g *globals) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show the upcoming dispatch order",
		Long: "Show the upcoming dispatch order, assuming every job finishes instantly.\n" +
			"Overrunning jobs delay later starts but never move due times.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be > 0")
			}
			cfg, reg, err := app.LoadConfig(cmd.Context(), g.configPath)
			if err != nil {
				return err
			}
			loc, err := cfg.Scheduler.Location()
			if err != nil {
				return err
			}
			now := time.Now()
			occ, err := scheduler.Preview(reg.Specs(), loc, now, count)
			if err != nil {
				return err
			}
			return printOccurrences(g.output(cmd), occ, now)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of dispatches to show")
	return cmd
}

func printOccurrences(out *Output, occ []scheduler.Occurrence, now time.Time) error {
	rows := make([][]string, len(occ))
	for i, o := range occ {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			o.Job,
			o.Due.Format(time.RFC3339),
			o.Due.Sub(now).Truncate(time.Second).String(),
		}
	}
	return out.Print([]string{"#", "JOB", "DUE", "IN"}, rows, occ)
}

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		job   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := app.LoadConfig(cmd.Context(), g.configPath)
			if err != nil {
				return err
			}
			st, err := app.OpenHistory(cfg)
			if errors.Is(err, storage.ErrDisabled) {
				return errors.New("history is disabled (storage.driver is none)")
			}
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), job, limit)
			if err != nil {
				return err
			}
			return printRuns(g.output(cmd), runs)
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "only show runs of this job")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")
	return cmd
}

func printRuns(out *Output, runs []storage.RunRecord) error {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID,
			r.Job,
			r.Due.Format(time.RFC3339),
			r.Started.Format(time.RFC3339),
			r.Lag().Truncate(time.Millisecond).String(),
			r.Duration.Truncate(time.Millisecond).String(),
		}
	}
	return out.Print([]string{"RUN", "JOB", "DUE", "STARTED", "LAG", "DURATION"}, rows, runs)
}
