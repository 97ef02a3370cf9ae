package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/config"
	"github.com/goto/pipewatch/server"
)

type serveCommand struct {
	configFilePath string
}

// NewServeCommand initializes command to start server
func NewServeCommand() *cobra.Command {
	serve := &serveCommand{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts pipewatch service",
		Long: heredoc.Doc(`
			Starts the pipewatch API together with the overdue sweeper and the configured notifiers.
			Without --config, pipewatch.yaml in the working directory is used when present,
			otherwise defaults and PIPEWATCH_ prefixed environment variables apply.`),
		Example: "pipewatch serve --config pipewatch.yaml",
		Annotations: map[string]string{
			"group:other": "dev",
		},
		Args: cobra.NoArgs,
		RunE: serve.RunE,
	}
	cmd.Flags().StringVarP(&serve.configFilePath, "config", "c", serve.configFilePath, "File path for server configuration")
	return cmd
}

func (s *serveCommand) RunE(_ *cobra.Command, _ []string) error {
	conf, err := config.LoadServerConfig(s.configFilePath)
	if err != nil {
		return err
	}

	pipewatchServer, err := server.New(conf)
	defer pipewatchServer.Shutdown()
	if err != nil {
		return fmt.Errorf("unable to create server: %w", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	<-sigc
	return nil
}
