package cmd

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/client/cmd/instance"
	"github.com/goto/pipewatch/client/cmd/schedule"
	"github.com/goto/pipewatch/client/cmd/version"
)

// New constructs the 'pipewatch' command.
// It houses all other sub commands
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipewatch <command> <subcommand> [flags]",
		Short: "Watch tenant pipelines and remediate failures",
		Long: heredoc.Doc(`
			Pipewatch tracks application instances across tenants, classifies
			their failures and lets SREs resume, skip, cancel or escalate them.`),
		SilenceUsage: true,
		Example: heredoc.Doc(`
			$ pipewatch instance list --status Failed
			$ pipewatch instance resume <instance_id> --reason "file corrected"
			$ pipewatch schedule list --status Overdue
		`),
		Annotations: map[string]string{
			"group:core": "true",
			"help:learn": heredoc.Doc(`
				Use 'pipewatch <command> <subcommand> --help' for more information about a command.
			`),
		},
	}

	cmd.AddCommand(
		version.NewVersionCommand(),
		instance.NewInstanceCommand(),
		schedule.NewScheduleCommand(),
	)
	return cmd
}
