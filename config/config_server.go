package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type ServerConfig struct {
	Version   Version         `mapstructure:"version"`
	Log       LogConfig       `mapstructure:"log"`
	Serve     Serve           `mapstructure:"serve"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Publisher *Publisher      `mapstructure:"publisher"`
}

type Serve struct {
	Port                   int `default:"9100" mapstructure:"port"` // port to listen on
	ShutdownTimeoutSeconds int `default:"10"   mapstructure:"shutdown_timeout_seconds"`
}

type TelemetryConfig struct {
	ProfileAddr      string `mapstructure:"profile_addr"`
	JaegerAddr       string `mapstructure:"jaeger_addr"`
	MetricServerAddr string `mapstructure:"push_gateway_addr"` // prometheus push gateway, push is disabled when empty
}

type CatalogConfig struct {
	Path string `mapstructure:"path"` // exception catalog yaml, the embedded catalog is used when empty
}

type ScheduleConfig struct {
	SweepIntervalSeconds int                  `default:"60" mapstructure:"sweep_interval_seconds"`
	Jobs                 []ScheduledJobConfig `mapstructure:"jobs"`
}

type ScheduledJobConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Tenant      string `mapstructure:"tenant"`
	Zone        string `mapstructure:"zone"`
	Application string `mapstructure:"application"`
	Cron        string `mapstructure:"cron"`
	Timezone    string `default:"UTC" mapstructure:"timezone"`
	Disabled    bool   `mapstructure:"disabled"`
}

type AlertingConfig struct {
	EventBatchIntervalSeconds int             `default:"10" mapstructure:"event_batch_interval_seconds"`
	PagerDuty                 PagerDutyConfig `mapstructure:"pagerduty"`
	Slack                     SlackConfig     `mapstructure:"slack"`
	Webhooks                  []WebhookConfig `mapstructure:"webhooks"`
}

type PagerDutyConfig struct {
	Enabled           bool              `mapstructure:"enabled"`
	RoutingKey        string            `mapstructure:"routing_key"`
	TenantRoutingKeys map[string]string `mapstructure:"tenant_routing_keys"`
}

type SlackConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	Token          string            `mapstructure:"token"`
	APIURL         string            `default:"https://slack.com/api/" mapstructure:"api_url"`
	DefaultChannel string            `mapstructure:"default_channel"`
	TenantChannels map[string]string `mapstructure:"tenant_channels"`
}

type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type Publisher struct {
	Type   string      `default:"kafka" mapstructure:"type"`
	Buffer int         `mapstructure:"buffer"`
	Config interface{} `mapstructure:"config"`
}

type PublisherKafkaConfig struct {
	Topic               string   `mapstructure:"topic"`
	BatchIntervalSecond int      `mapstructure:"batch_interval_second"`
	BrokerURLs          []string `mapstructure:"broker_urls"`
}

func (c *ServerConfig) Validate() error {
	return validation.Errors{
		"serve":    c.Serve.validate(),
		"schedule": c.Schedule.validate(),
		"alerting": c.Alerting.validate(),
	}.Filter()
}

func (s Serve) validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&s.ShutdownTimeoutSeconds, validation.Min(0)),
	)
}

func (s ScheduleConfig) validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.SweepIntervalSeconds, validation.Required, validation.Min(1)),
		validation.Field(&s.Jobs),
	)
}

func (j ScheduledJobConfig) Validate() error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.ID, validation.Required),
		validation.Field(&j.Tenant, validation.Required),
		validation.Field(&j.Zone, validation.Required),
		validation.Field(&j.Cron, validation.Required),
	)
}

func (a AlertingConfig) validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.EventBatchIntervalSeconds, validation.Min(1)),
		validation.Field(&a.PagerDuty),
		validation.Field(&a.Slack),
		validation.Field(&a.Webhooks),
	)
}

func (p PagerDutyConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RoutingKey, validation.When(p.Enabled && len(p.TenantRoutingKeys) == 0, validation.Required)),
	)
}

func (s SlackConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Token, validation.When(s.Enabled, validation.Required)),
		validation.Field(&s.APIURL, validation.When(s.Enabled, validation.Required)),
	)
}

func (w WebhookConfig) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.Name, validation.Required),
		validation.Field(&w.URL, validation.Required),
	)
}
