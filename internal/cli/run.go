package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"serialsched/internal/app"
)

func newRunCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(ctx, g.configPath)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
}

// newExecCmd is the entry point of an isolated child. It installs no signal
// handlers, so SIGINT/SIGTERM sent to the process group terminate it.
func newExecCmd(g *globals) *cobra.Command {
	var job string
	cmd := &cobra.Command{
		Use:    "exec",
		Short:  "Run one job once inside an isolated child",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if code := app.RunChild(cmd.Context(), g.configPath, job); code != 0 {
				return ExitCode(code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "job name")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}
