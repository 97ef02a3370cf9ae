package instance

import (
	"github.com/goto/salt/log"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/client/cmd/internal"
	"github.com/goto/pipewatch/client/cmd/internal/logger"
)

type getCommand struct {
	logger  log.Logger
	options internal.ClientOptions
}

// NewGetCommand shows one instance with its tasks
func NewGetCommand() *cobra.Command {
	get := &getCommand{
		logger: logger.NewClientLogger(),
	}

	cmd := &cobra.Command{
		Use:     "get",
		Short:   "Get instance details by instance ID",
		Example: "pipewatch instance get <instance_id>",
		Args:    requireInstanceID,
		RunE:    get.RunE,
	}

	get.options.InjectFlags(cmd)
	return cmd
}

func (g *getCommand) RunE(_ *cobra.Command, args []string) error {
	conn, err := g.options.Connect(g.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	var inst appInstance
	if err := conn.Get(instancesPath+"/"+args[0], nil, &inst); err != nil {
		return err
	}
	g.logger.Info(stringifyInstance(inst))
	return nil
}

type auditCommand struct {
	logger  log.Logger
	options internal.ClientOptions
}

// NewAuditCommand prints the audit trail of an instance
func NewAuditCommand() *cobra.Command {
	audit := &auditCommand{
		logger: logger.NewClientLogger(),
	}

	cmd := &cobra.Command{
		Use:     "audit",
		Short:   "Show the remediation audit trail of an instance",
		Example: "pipewatch instance audit <instance_id>",
		Args:    requireInstanceID,
		RunE:    audit.RunE,
	}

	audit.options.InjectFlags(cmd)
	return cmd
}

func (a *auditCommand) RunE(_ *cobra.Command, args []string) error {
	conn, err := a.options.Connect(a.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	var resp auditResponse
	if err := conn.Get(instancesPath+"/"+args[0]+"/audit", nil, &resp); err != nil {
		return err
	}
	if len(resp.Events) == 0 {
		a.logger.Info("no remediation actions recorded for %s", args[0])
		return nil
	}
	a.logger.Info(stringifyAudit(resp.Events))
	return nil
}
