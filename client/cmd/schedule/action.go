package schedule

import (
	"errors"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/log"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/client/cmd/internal"
	"github.com/goto/pipewatch/client/cmd/internal/logger"
)

var errConfirmationRequired = errors.New("acknowledging an overdue run needs --yes")

type acknowledgeCommand struct {
	logger  log.Logger
	options internal.ClientOptions

	reason    string
	confirmed bool
}

// NewAcknowledgeCommand acknowledges the overdue slot of a job
func NewAcknowledgeCommand() *cobra.Command {
	ack := &acknowledgeCommand{
		logger: logger.NewClientLogger(),
	}

	cmd := &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge the overdue run of a job",
		Long: heredoc.Doc(`Acknowledge the overdue run of a job.
			The acknowledged slot is recorded and the job waits for its next cron slot.`),
		Example: "pipewatch schedule ack <job_id> --reason \"upstream delayed\" --yes",
		Args:    requireJobID,
		RunE:    ack.RunE,
	}

	ack.options.InjectFlags(cmd)
	cmd.Flags().StringVarP(&ack.reason, "reason", "r", "", "Reason for acknowledging")
	cmd.Flags().BoolVarP(&ack.confirmed, "yes", "y", false, "Confirm the acknowledgement")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (a *acknowledgeCommand) RunE(_ *cobra.Command, args []string) error {
	if !a.confirmed {
		return errConfirmationRequired
	}

	conn, err := a.options.Connect(a.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	var resp job
	if err := conn.Post(schedulesPath+"/"+args[0]+"/acknowledge", reasonRequest{Reason: a.reason, Confirmed: true}, &resp); err != nil {
		return err
	}
	a.logger.Info("job %s acknowledged, next expected run at %s", resp.ID, resp.NextExpectedRun.Format(time.RFC3339))
	return nil
}

type triggerCommand struct {
	logger  log.Logger
	options internal.ClientOptions

	reason string
}

// NewTriggerCommand runs a job now, outside its cron slots
func NewTriggerCommand() *cobra.Command {
	trigger := &triggerCommand{
		logger: logger.NewClientLogger(),
	}

	cmd := &cobra.Command{
		Use:     "trigger",
		Short:   "Trigger a job run now",
		Example: "pipewatch schedule trigger <job_id> --reason \"late file delivered\"",
		Args:    requireJobID,
		RunE:    trigger.RunE,
	}

	trigger.options.InjectFlags(cmd)
	cmd.Flags().StringVarP(&trigger.reason, "reason", "r", "", "Reason for the manual run")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (t *triggerCommand) RunE(_ *cobra.Command, args []string) error {
	conn, err := t.options.Connect(t.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	var resp struct {
		Instance struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"instance"`
	}
	if err := conn.Post(schedulesPath+"/"+args[0]+"/trigger", reasonRequest{Reason: t.reason}, &resp); err != nil {
		return err
	}
	t.logger.Info("job %s triggered, instance %s is %s", args[0], resp.Instance.ID, resp.Instance.Status)
	return nil
}
