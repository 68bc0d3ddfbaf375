package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "./serialsched.yaml"

// ExitCode is returned by commands that end with a specific process exit
// status and nothing more to report.
type ExitCode int

func (e ExitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

type globals struct {
	configPath string
	jsonOutput bool
}

// output writes to the command's streams so tests can capture them.
func (g *globals) output(cmd *cobra.Command) *Output {
	return &Output{jsonMode: g.jsonOutput, w: cmd.OutOrStdout(), errW: cmd.ErrOrStderr()}
}

// NewRootCmd builds the serialsched command tree.
func NewRootCmd(version string) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "serialsched",
		Short:         "Run scheduled jobs strictly one at a time",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", defaultConfigPath, "path to config (json or yaml)")
	root.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "output in JSON format")

	root.AddCommand(
		newRunCmd(g),
		newValidateCmd(g),
		newNextCmd(g),
		newHistoryCmd(g),
		newExecCmd(g),
	)
	return root
}
