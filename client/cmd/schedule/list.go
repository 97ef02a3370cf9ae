package schedule

import (
	"net/url"

	"github.com/goto/salt/log"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/client/cmd/internal"
	"github.com/goto/pipewatch/client/cmd/internal/logger"
)

type listCommand struct {
	logger  log.Logger
	options internal.ClientOptions

	tenant      string
	zone        string
	status      string
	application string
	query       string
}

// NewListCommand lists scheduled jobs with their derived status
func NewListCommand() *cobra.Command {
	list := &listCommand{
		logger: logger.NewClientLogger(),
	}

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List scheduled jobs",
		Example: "pipewatch schedule list --status Overdue",
		RunE:    list.RunE,
	}

	list.options.InjectFlags(cmd)
	cmd.Flags().StringVar(&list.tenant, "tenant", "", "Filter by tenant name")
	cmd.Flags().StringVar(&list.zone, "zone", "", "Filter by zone")
	cmd.Flags().StringVar(&list.status, "status", "", "Filter by status, OnSchedule, Overdue or Disabled")
	cmd.Flags().StringVar(&list.application, "application", "", "Filter by application")
	cmd.Flags().StringVarP(&list.query, "query", "q", "", "Search job name or id")
	return cmd
}

func (l *listCommand) RunE(_ *cobra.Command, _ []string) error {
	conn, err := l.options.Connect(l.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	query := url.Values{}
	for key, value := range map[string]string{
		"tenant": l.tenant, "zone": l.zone, "status": l.status, "application": l.application, "q": l.query,
	} {
		if value != "" {
			query.Set(key, value)
		}
	}

	var resp struct {
		Schedules []job `json:"schedules"`
	}
	if err := conn.Get(schedulesPath, query, &resp); err != nil {
		return err
	}
	if len(resp.Schedules) == 0 {
		l.logger.Info("no scheduled jobs found")
		return nil
	}
	l.logger.Info(stringifyJobs(resp.Schedules))
	return nil
}
