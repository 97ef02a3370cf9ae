package instance

import (
	"errors"
	"net/url"
	"strings"

	"github.com/goto/salt/log"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/client/cmd/internal"
	"github.com/goto/pipewatch/client/cmd/internal/logger"
)

type listCommand struct {
	logger  log.Logger
	options internal.ClientOptions

	tenant        string
	zone          string
	statuses      []string
	exceptionType string
	application   string
	query         string
}

// NewListCommand lists the instances visible to the user
func NewListCommand() *cobra.Command {
	list := &listCommand{
		logger: logger.NewClientLogger(),
	}

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List application instances",
		Example: "pipewatch instance list --status Failed --exception-type Business",
		RunE:    list.RunE,
	}

	list.options.InjectFlags(cmd)
	cmd.Flags().StringVar(&list.tenant, "tenant", "", "Filter by tenant name")
	cmd.Flags().StringVar(&list.zone, "zone", "", "Filter by zone")
	cmd.Flags().StringSliceVar(&list.statuses, "status", nil, "Filter by status, repeatable")
	cmd.Flags().StringVar(&list.exceptionType, "exception-type", "", "Filter by exception type, Business or System")
	cmd.Flags().StringVar(&list.application, "application", "", "Filter by application")
	cmd.Flags().StringVarP(&list.query, "query", "q", "", "Search file name or instance id")
	return cmd
}

func (l *listCommand) RunE(_ *cobra.Command, _ []string) error {
	conn, err := l.options.Connect(l.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	query := url.Values{}
	setIfPresent(query, "tenant", l.tenant)
	setIfPresent(query, "zone", l.zone)
	setIfPresent(query, "status", strings.Join(l.statuses, ","))
	setIfPresent(query, "exception_type", l.exceptionType)
	setIfPresent(query, "application", l.application)
	setIfPresent(query, "q", l.query)

	var resp listResponse
	if err := conn.Get(instancesPath, query, &resp); err != nil {
		return err
	}

	if len(resp.Instances) == 0 {
		l.logger.Info("no instances found")
		return nil
	}
	l.logger.Info(stringifyInstances(resp.Instances))
	return nil
}

func setIfPresent(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}

var errInstanceIDRequired = errors.New("instance id is required")

func requireInstanceID(_ *cobra.Command, args []string) error {
	if len(args) < 1 {
		return errInstanceIDRequired
	}
	return nil
}
