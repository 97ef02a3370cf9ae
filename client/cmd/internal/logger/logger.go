package logger

import (
	"os"

	"github.com/goto/salt/log"

	"github.com/goto/pipewatch/config"
)

// NewClientLogger writes plain messages to stdout
func NewClientLogger() log.Logger {
	return NewClientLoggerWithLevel(config.LogLevelInfo)
}

func NewClientLoggerWithLevel(level config.LogLevel) log.Logger {
	return log.NewLogrus(
		log.LogrusWithLevel(level.String()),
		log.LogrusWithWriter(os.Stdout),
	)
}
