package instance

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/goto/salt/log"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/client/cmd/internal"
	"github.com/goto/pipewatch/client/cmd/internal/logger"
)

type actionCommand struct {
	logger  log.Logger
	options internal.ClientOptions

	action          string
	taskID          string
	reason          string
	skipCount       int
	expectedVersion int64
}

func newActionCommand(action string) *actionCommand {
	return &actionCommand{
		logger: logger.NewClientLogger(),
		action: action,
	}
}

func (a *actionCommand) injectFlags(cmd *cobra.Command) {
	a.options.InjectFlags(cmd)
	cmd.Flags().StringVarP(&a.reason, "reason", "r", "", "Reason recorded in the audit trail")
	cmd.Flags().Int64Var(&a.expectedVersion, "expected-version", 0, "Fail when the instance changed since this version")
}

// NewResumeCommand resumes a failed instance from the failed task
func NewResumeCommand() *cobra.Command {
	a := newActionCommand("Resume")
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a failed instance",
		Long: heredoc.Doc(`Resume a failed instance from its failed task, or from the given task.
			A business failure needs an SOP that grants your role.`),
		Example: "pipewatch instance resume <instance_id> [--task <task_id>]",
		Args:    requireInstanceID,
		RunE:    a.RunE,
	}
	a.injectFlags(cmd)
	cmd.Flags().StringVar(&a.taskID, "task", "", "Task to resume from, defaults to the failed task")
	return cmd
}

// NewCancelCommand cancels a running or failed instance
func NewCancelCommand() *cobra.Command {
	a := newActionCommand("Cancel")
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a running or failed instance",
		Long: heredoc.Doc(`Cancel a running or failed instance, a cancelled instance cannot be resumed.
			SaaS SREs cancel instances of their own tenant.
			Platform SREs cancel any instance except one failed on a Business exception.`),
		Example: "pipewatch instance cancel <instance_id> --reason \"duplicate delivery\"",
		Args:    requireInstanceID,
		RunE:    a.RunE,
	}
	a.injectFlags(cmd)
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

// NewSkipCommand skips records of the failed task
func NewSkipCommand() *cobra.Command {
	a := newActionCommand("Skip")
	cmd := &cobra.Command{
		Use:     "skip",
		Short:   "Skip invalid records of a failed task and continue",
		Example: "pipewatch instance skip <instance_id> --task <task_id> --count 12",
		Args:    requireInstanceID,
		RunE:    a.RunE,
	}
	a.injectFlags(cmd)
	cmd.Flags().StringVar(&a.taskID, "task", "", "Failed task whose records are skipped")
	cmd.Flags().IntVar(&a.skipCount, "count", 0, "Number of records skipped")
	_ = cmd.MarkFlagRequired("count")
	return cmd
}

// NewNotifyCommand escalates an instance to the tenant SRE
func NewNotifyCommand() *cobra.Command {
	a := newActionCommand("Notify")
	cmd := &cobra.Command{
		Use:     "notify",
		Short:   "Escalate a failed instance to the tenant SRE",
		Example: "pipewatch instance notify <instance_id> --reason \"needs corrected file\"",
		Args:    requireInstanceID,
		RunE:    a.RunE,
	}
	a.injectFlags(cmd)
	return cmd
}

func (a *actionCommand) RunE(_ *cobra.Command, args []string) error {
	conn, err := a.options.Connect(a.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	req := actionRequest{
		Action:          a.action,
		TaskID:          a.taskID,
		Reason:          a.reason,
		SkipCount:       a.skipCount,
		ExpectedVersion: a.expectedVersion,
	}
	var inst appInstance
	if err := conn.Post(instancesPath+"/"+args[0]+"/actions", req, &inst); err != nil {
		return err
	}

	a.logger.Info("%s applied, instance %s is %s (version %d)", a.action, inst.ID, inst.Status, inst.Version)
	return nil
}
