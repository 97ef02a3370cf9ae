package instance

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
)

const instancesPath = "/api/v1/instances"

// NewInstanceCommand initializes command for application instances
func NewInstanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Inspect and remediate application instances",
		Long: heredoc.Doc(`Inspect application instances and take remediation actions.
			Actions are authorized by the server against your role and the SOP of the failure.`),
		Annotations: map[string]string{
			"group:core": "true",
		},
	}
	cmd.AddCommand(
		NewListCommand(),
		NewGetCommand(),
		NewAuditCommand(),
		NewResumeCommand(),
		NewCancelCommand(),
		NewSkipCommand(),
		NewNotifyCommand(),
	)
	return cmd
}
