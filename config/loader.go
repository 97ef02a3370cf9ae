package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"reflect"
	"strings"

	"github.com/mcuadros/go-defaults"
	"github.com/spf13/viper"
)

var errFileNotFound = errors.New("config file not found")

// LoadServerConfig reads the server configuration from filePath, falling back to
// ./pipewatch.yaml when filePath is empty. Every key can be overridden through
// PIPEWATCH_ prefixed environment variables, e.g. PIPEWATCH_SERVE_PORT.
func LoadServerConfig(filePath string) (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := load(filePath, DefaultFilename, cfg); err != nil {
		return nil, err
	}
	canonicalHeaders(cfg.Alerting.Webhooks)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

// LoadClientConfig reads the CLI configuration the same way, from ./pipewatch-client.yaml by default.
func LoadClientConfig(filePath string) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := load(filePath, DefaultClientFilename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(filePath, defaultName string, cfg interface{}) error {
	defaults.SetDefaults(cfg)

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, reflect.TypeOf(cfg).Elem(), "")

	path, err := resolvePath(filePath, defaultName)
	switch {
	case err == nil:
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", path, err)
		}
	case errors.Is(err, errFileNotFound) && filePath == "":
		// defaults and environment only
	default:
		return err
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}
	return nil
}

// canonicalHeaders rewrites webhook header names, viper keeps the file's casing for keys nested in lists
func canonicalHeaders(hooks []WebhookConfig) {
	for i := range hooks {
		if hooks[i].Headers == nil {
			continue
		}
		headers := make(map[string]string, len(hooks[i].Headers))
		for name, value := range hooks[i].Headers {
			headers[http.CanonicalHeaderKey(name)] = value
		}
		hooks[i].Headers = headers
	}
}

func resolvePath(filePath, defaultName string) (string, error) {
	if filePath == "" {
		filePath = defaultName
	}
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", errFileNotFound, filePath)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("config path %s is a directory", filePath)
	}
	return filePath, nil
}

// bindEnvs registers every scalar leaf key so that Unmarshal sees env values
// even when the key is absent from the file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		switch ft.Kind() {
		case reflect.Struct:
			bindEnvs(v, ft, key)
		case reflect.Slice, reflect.Map, reflect.Interface:
			continue
		default:
			_ = v.BindEnv(key)
		}
	}
}
