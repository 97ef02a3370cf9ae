package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goto/salt/log"
	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/goto/pipewatch/config"
	"github.com/goto/pipewatch/core/access"
	"github.com/goto/pipewatch/core/event/moderator"
	"github.com/goto/pipewatch/core/exception"
	eHandler "github.com/goto/pipewatch/core/exception/handler/v1"
	iHandler "github.com/goto/pipewatch/core/instance/handler/v1"
	iService "github.com/goto/pipewatch/core/instance/service"
	"github.com/goto/pipewatch/core/schedule"
	sHandler "github.com/goto/pipewatch/core/schedule/handler/v1"
	sService "github.com/goto/pipewatch/core/schedule/service"
	"github.com/goto/pipewatch/core/tenant"
	"github.com/goto/pipewatch/ext/notify/pagerduty"
	"github.com/goto/pipewatch/ext/notify/slack"
	"github.com/goto/pipewatch/ext/notify/webhook"
	"github.com/goto/pipewatch/ext/transport/kafka"
	"github.com/goto/pipewatch/internal/store/inmemory"
	"github.com/goto/pipewatch/internal/telemetry"
	vHandler "github.com/goto/pipewatch/server/handler/v1"
)

const (
	defaultShutdownWait  = 10 * time.Second
	defaultPublishBuffer = 1024
)

type setupFn func() error

type PipewatchServer struct {
	conf   *config.ServerConfig
	logger log.Logger

	httpAddr   string
	httpServer *http.Server

	catalog         *exception.Catalog
	instanceService *iService.InstanceService
	scheduleService *sService.ScheduleService
	cleanupFn       []func()

	eventHandler moderator.Handler
}

func New(conf *config.ServerConfig) (*PipewatchServer, error) {
	server := &PipewatchServer{
		conf:     conf,
		httpAddr: fmt.Sprintf(":%d", conf.Serve.Port),
		logger:   NewLogger(conf.Log.Level.String()),
	}

	setupFns := []setupFn{
		server.setupPublisher,
		server.setupTelemetry,
		server.setupCatalog,
		server.setupServices,
		server.setupSchedules,
		server.setupHTTPServer,
	}

	for _, fn := range setupFns {
		if err := fn(); err != nil {
			return server, err
		}
	}

	server.logger.Info("starting pipewatch version %s", config.BuildVersion)
	server.startListening()

	return server, nil
}

func NewLogger(level string) log.Logger {
	return log.NewLogrus(log.LogrusWithLevel(level))
}

func (s *PipewatchServer) setupPublisher() error {
	if s.conf.Publisher == nil {
		s.eventHandler = moderator.NoOpHandler{}
		return nil
	}

	buffer := s.conf.Publisher.Buffer
	if buffer <= 0 {
		buffer = defaultPublishBuffer
	}
	ch := make(chan []byte, buffer)

	var worker *moderator.Worker

	switch s.conf.Publisher.Type {
	case "kafka":
		var kafkaConfig config.PublisherKafkaConfig
		if err := mapstructure.Decode(s.conf.Publisher.Config, &kafkaConfig); err != nil {
			return err
		}

		writer := kafka.NewWriter(kafkaConfig.BrokerURLs, kafkaConfig.Topic, s.logger)
		interval := time.Second * time.Duration(kafkaConfig.BatchIntervalSecond)
		if interval <= 0 {
			interval = time.Second
		}
		worker = moderator.NewWorker(ch, writer, interval, s.logger)
	default:
		return fmt.Errorf("publisher with type [%s] is not recognized", s.conf.Publisher.Type)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Run(ctx)

	s.cleanupFn = append(s.cleanupFn, func() {
		cancel()

		if err := worker.Close(); err != nil {
			s.logger.Error("error closing publishing worker: %s", err)
		}
	})

	s.eventHandler = moderator.NewEventHandler(ch, s.logger)
	return nil
}

func (s *PipewatchServer) setupTelemetry() error {
	teleShutdown, err := telemetry.Init(s.logger, s.conf.Telemetry)
	if err != nil {
		return err
	}

	s.cleanupFn = append(s.cleanupFn, teleShutdown)
	return nil
}

func (s *PipewatchServer) setupCatalog() error {
	var err error
	if s.conf.Catalog.Path == "" {
		s.catalog, err = exception.DefaultCatalog()
	} else {
		s.catalog, err = exception.LoadCatalogFile(s.conf.Catalog.Path)
	}
	if err != nil {
		return fmt.Errorf("error loading exception catalog: %w", err)
	}
	s.logger.Info("exception catalog loaded with %d definitions", len(s.catalog.Definitions()))
	return nil
}

func (s *PipewatchServer) setupServices() error {
	notificationContext, cancelNotifiers := context.WithCancel(context.Background())
	s.cleanupFn = append(s.cleanupFn, cancelNotifiers)

	alerting := s.conf.Alerting
	batchInterval := time.Second * time.Duration(alerting.EventBatchIntervalSeconds)
	if batchInterval <= 0 {
		batchInterval = slack.DefaultEventBatchInterval
	}

	notifierChannels := map[string]iService.Notifier{}
	if alerting.Slack.Enabled {
		notifierChannels["slack"] = slack.NewNotifier(notificationContext, alerting.Slack.APIURL, alerting.Slack.Token,
			alerting.Slack.DefaultChannel, alerting.Slack.TenantChannels, batchInterval,
			func(err error) {
				s.logger.Error("slack error accumulator: %s", err)
			},
		)
	}
	if alerting.PagerDuty.Enabled {
		notifierChannels["pagerduty"] = pagerduty.NewNotifier(notificationContext, alerting.PagerDuty.RoutingKey,
			alerting.PagerDuty.TenantRoutingKeys, batchInterval,
			func(err error) {
				s.logger.Error("pagerduty error accumulator: %s", err)
			},
			new(pagerduty.ServiceImpl),
		)
	}
	for _, hook := range alerting.Webhooks {
		name := hook.Name
		notifierChannels["webhook/"+name] = webhook.NewNotifier(notificationContext, hook.URL, hook.Headers,
			func(err error) {
				s.logger.Error("webhook %s error accumulator: %s", name, err)
			},
		)
	}

	instanceRepo := inmemory.NewInstanceRepository()
	jobRepo := inmemory.NewScheduleRepository()
	execRepo := inmemory.NewExecutionRepository()

	s.instanceService = iService.NewInstanceService(s.logger, instanceRepo, s.catalog, access.NewEngine(s.catalog),
		s.eventHandler, notifierChannels)
	s.scheduleService = sService.NewScheduleService(s.logger, jobRepo, execRepo, s.instanceService, s.eventHandler)

	sweeper := sService.NewOverdueSweeper(s.logger, jobRepo, execRepo, s.eventHandler,
		time.Second*time.Duration(s.conf.Schedule.SweepIntervalSeconds))
	if err := sweeper.Initialize(); err != nil {
		return fmt.Errorf("error starting overdue sweeper: %w", err)
	}

	s.cleanupFn = append(s.cleanupFn, func() {
		if err := sweeper.Close(); err != nil {
			s.logger.Error("error closing overdue sweeper: %s", err)
		}
		if err := s.instanceService.Close(); err != nil {
			s.logger.Error("error closing notifiers: %s", err)
		}
	})
	return nil
}

// setupSchedules registers the jobs declared in the config file
func (s *PipewatchServer) setupSchedules() error {
	ctx := context.Background()
	now := time.Now()
	for _, jobConf := range s.conf.Schedule.Jobs {
		tnnt, err := tenant.NewTenant(jobConf.Tenant, jobConf.Zone)
		if err != nil {
			return fmt.Errorf("invalid tenant for job %s: %w", jobConf.ID, err)
		}

		name := jobConf.Name
		if name == "" {
			name = jobConf.ID
		}
		timezone := jobConf.Timezone
		if timezone == "" {
			timezone = "UTC"
		}

		job, err := schedule.NewJob(schedule.JobID(jobConf.ID), name, tnnt, jobConf.Application, jobConf.Cron, timezone, !jobConf.Disabled, now)
		if err != nil {
			return fmt.Errorf("invalid job %s: %w", jobConf.ID, err)
		}
		if err := s.scheduleService.Register(ctx, job); err != nil {
			return err
		}
	}
	s.logger.Info("%d scheduled jobs registered", len(s.conf.Schedule.Jobs))
	return nil
}

func (s *PipewatchServer) setupHTTPServer() error {
	mux := http.NewServeMux()

	iHandler.NewInstanceHandler(s.logger, s.instanceService).RegisterRoutes(mux)
	sHandler.NewScheduleHandler(s.logger, s.scheduleService).RegisterRoutes(mux)
	eHandler.NewExceptionHandler(s.logger, s.catalog).RegisterRoutes(mux)
	vHandler.NewVersionHandler(s.logger, config.BuildVersion).RegisterRoutes(mux)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           otelhttp.NewHandler(recoverPanic(s.logger, mux), "pipewatch"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (s *PipewatchServer) startListening() {
	go func() {
		s.logger.Info("listening at %s", s.httpAddr)
		if err := s.httpServer.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.logger.Fatal("server error: %s", err)
			}
		}
	}()
}

func (s *PipewatchServer) Shutdown() {
	s.logger.Warn("shutting down server")
	if s.httpServer != nil {
		wait := defaultShutdownWait
		if s.conf.Serve.ShutdownTimeoutSeconds > 0 {
			wait = time.Second * time.Duration(s.conf.Serve.ShutdownTimeoutSeconds)
		}
		ctx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("error in http shutdown: %s", err)
		}
	}

	// cleanups run in reverse so notifiers drain before their context is cancelled
	for i := len(s.cleanupFn) - 1; i >= 0; i-- {
		s.cleanupFn[i]()
	}

	s.logger.Info("server shutdown complete")
}
