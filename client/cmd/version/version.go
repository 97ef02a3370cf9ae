package version

import (
	"fmt"
	"net/url"

	"github.com/goto/salt/log"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/client/cmd/internal"
	"github.com/goto/pipewatch/client/cmd/internal/logger"
	"github.com/goto/pipewatch/config"
)

type versionCommand struct {
	logger  log.Logger
	options internal.ClientOptions

	isWithServer bool
}

type versionResponse struct {
	Server string `json:"server"`
}

// NewVersionCommand initializes command to get version
func NewVersionCommand() *cobra.Command {
	v := &versionCommand{
		logger: logger.NewClientLogger(),
	}

	cmd := &cobra.Command{
		Use:     "version",
		Short:   "Print the client version information",
		Example: "pipewatch version [--with-server]",
		RunE:    v.RunE,
	}

	cmd.Flags().BoolVar(&v.isWithServer, "with-server", v.isWithServer, "Check for server version")
	v.options.InjectFlags(cmd)

	return cmd
}

func (v *versionCommand) RunE(_ *cobra.Command, _ []string) error {
	v.logger.Info("Client: %s-%s", config.BuildVersion, config.BuildCommit)

	if v.isWithServer {
		srvVer, err := v.getServerVersion()
		if err != nil {
			return err
		}
		v.logger.Info("Server: %s", srvVer)
	}
	return nil
}

func (v *versionCommand) getServerVersion() (string, error) {
	conn, err := v.options.Connect(v.logger)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	var resp versionResponse
	if err := conn.Get("/api/v1/version", url.Values{"client": {config.BuildVersion}}, &resp); err != nil {
		return "", fmt.Errorf("request failed for version: %w", err)
	}
	return resp.Server, nil
}
