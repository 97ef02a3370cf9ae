package config

import "strconv"

var (
	BuildVersion = "0.0.0"
	BuildCommit  = ""
	BuildDate    = ""
)

const (
	DefaultFilename       = "pipewatch.yaml"
	DefaultClientFilename = "pipewatch-client.yaml"
	EnvPrefix             = "PIPEWATCH"
)

type Version int

func (v Version) String() string {
	return strconv.Itoa(int(v))
}

type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelFatal   LogLevel = "FATAL"
)

func (l LogLevel) String() string {
	return string(l)
}

type LogConfig struct {
	Level LogLevel `default:"INFO" mapstructure:"level"` // log level - debug, info, warning, error, fatal
}

// ClientConfig holds what the CLI needs to reach a pipewatch server
// and identify the caller.
type ClientConfig struct {
	Version Version    `mapstructure:"version"`
	Log     LogConfig  `mapstructure:"log"`
	Host    string     `default:"localhost:9100" mapstructure:"host"`
	User    UserConfig `mapstructure:"user"`
}

type UserConfig struct {
	ID     string `mapstructure:"id"`
	Role   string `mapstructure:"role"`
	Tenant string `mapstructure:"tenant"`
}
