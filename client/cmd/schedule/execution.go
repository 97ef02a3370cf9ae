package schedule

import (
	"bytes"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/goto/salt/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/client/cmd/internal"
	"github.com/goto/pipewatch/client/cmd/internal/logger"
)

const executionsPath = "/api/v1/executions"

var errExecutionIDRequired = errors.New("execution id is required")

type execution struct {
	ID         string     `json:"id"`
	JobID      string     `json:"job_id"`
	ExpectedAt time.Time  `json:"expected_at"`
	ActualAt   *time.Time `json:"actual_at"`
	Status     string     `json:"status"`
	InstanceID string     `json:"instance_id"`
	SkipReason string     `json:"skip_reason"`
	Reruns     []struct {
		InstanceID string `json:"instance_id"`
	} `json:"reruns"`
}

type executionsCommand struct {
	logger  log.Logger
	options internal.ClientOptions

	since string
	until string
}

// NewExecutionsCommand lists the recorded executions of a job
func NewExecutionsCommand() *cobra.Command {
	execs := &executionsCommand{
		logger: logger.NewClientLogger(),
	}

	cmd := &cobra.Command{
		Use:     "executions",
		Short:   "List recorded executions of a job",
		Example: "pipewatch schedule executions <job_id> --since 2024-03-01T00:00:00Z",
		Args:    requireJobID,
		RunE:    execs.RunE,
	}

	execs.options.InjectFlags(cmd)
	cmd.Flags().StringVar(&execs.since, "since", "", "Only executions expected at or after this RFC3339 time")
	cmd.Flags().StringVar(&execs.until, "until", "", "Only executions expected before this RFC3339 time")
	return cmd
}

func (e *executionsCommand) RunE(_ *cobra.Command, args []string) error {
	conn, err := e.options.Connect(e.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	query := url.Values{}
	if e.since != "" {
		query.Set("since", e.since)
	}
	if e.until != "" {
		query.Set("until", e.until)
	}

	var resp struct {
		Executions []execution `json:"executions"`
	}
	if err := conn.Get(schedulesPath+"/"+args[0]+"/executions", query, &resp); err != nil {
		return err
	}
	if len(resp.Executions) == 0 {
		e.logger.Info("no executions recorded for job %s", args[0])
		return nil
	}
	e.logger.Info(stringifyExecutions(resp.Executions))
	return nil
}

type executionActionCommand struct {
	logger  log.Logger
	options internal.ClientOptions

	action string
	reason string
}

// NewSkipExecutionCommand settles a missed or failed execution without running it
func NewSkipExecutionCommand() *cobra.Command {
	return newExecutionActionCommand("skip-run", "skip", "Skip a missed or failed execution",
		"pipewatch schedule skip-run <execution_id> --reason \"data not needed\"")
}

// NewRerunExecutionCommand starts a new instance for an execution
func NewRerunExecutionCommand() *cobra.Command {
	return newExecutionActionCommand("rerun", "rerun", "Rerun an execution",
		"pipewatch schedule rerun <execution_id> --reason \"fixed upstream\"")
}

func newExecutionActionCommand(use, action, short, example string) *cobra.Command {
	act := &executionActionCommand{
		logger: logger.NewClientLogger(),
		action: action,
	}

	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Example: example,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errExecutionIDRequired
			}
			return nil
		},
		RunE: act.RunE,
	}

	act.options.InjectFlags(cmd)
	cmd.Flags().StringVarP(&act.reason, "reason", "r", "", "Reason recorded with the action")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func (a *executionActionCommand) RunE(_ *cobra.Command, args []string) error {
	conn, err := a.options.Connect(a.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	path := executionsPath + "/" + args[0] + "/" + a.action
	if a.action == "skip" {
		var resp execution
		if err := conn.Post(path, reasonRequest{Reason: a.reason}, &resp); err != nil {
			return err
		}
		a.logger.Info("execution %s of job %s is %s", resp.ID, resp.JobID, resp.Status)
		return nil
	}

	var resp struct {
		Execution execution `json:"execution"`
		Instance  struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"instance"`
	}
	if err := conn.Post(path, reasonRequest{Reason: a.reason}, &resp); err != nil {
		return err
	}
	a.logger.Info("execution %s rerun as instance %s (%s)", resp.Execution.ID, resp.Instance.ID, resp.Instance.Status)
	return nil
}

func stringifyExecutions(execs []execution) string {
	buff := &bytes.Buffer{}
	table := tablewriter.NewWriter(buff)
	table.SetBorder(false)
	table.SetHeader([]string{
		"ID",
		"Expected At",
		"Actual At",
		"Status",
		"Instance",
		"Reruns",
	})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, e := range execs {
		actual := "-"
		if e.ActualAt != nil {
			actual = e.ActualAt.Format(time.RFC3339)
		}
		status := e.Status
		if e.SkipReason != "" {
			status += " (" + e.SkipReason + ")"
		}
		table.Append([]string{
			e.ID,
			e.ExpectedAt.Format(time.RFC3339),
			actual,
			status,
			e.InstanceID,
			strconv.Itoa(len(e.Reruns)),
		})
	}
	table.Render()
	return buff.String()
}
