package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/goto/salt/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"

	"github.com/goto/pipewatch/config"
)

const (
	serviceName     = "pipewatch"
	shutdownTimeout = 5 * time.Second
)

// Init starts the profiling endpoint and the tracer provider configured in conf.
// The returned func flushes and stops both.
func Init(l log.Logger, conf config.TelemetryConfig) (func(), error) {
	var shutdownFns []func(context.Context) error

	PushGateway = conf.MetricServerAddr

	if conf.ProfileAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		profileServer := &http.Server{Addr: conf.ProfileAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			l.Info("starting profiler at %s", conf.ProfileAddr)
			if err := profileServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Error("profiler stopped: %s", err)
			}
		}()
		shutdownFns = append(shutdownFns, profileServer.Shutdown)
	}

	if conf.JaegerAddr != "" {
		l.Info("enabling jaeger traces at %s", conf.JaegerAddr)
		tp, err := tracerProvider(conf.JaegerAddr)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		shutdownFns = append(shutdownFns, tp.Shutdown)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, fn := range shutdownFns {
			if err := fn(ctx); err != nil {
				l.Error("error shutting down telemetry: %s", err)
			}
		}
	}, nil
}

func tracerProvider(url string) (*tracesdk.TracerProvider, error) {
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(url)))
	if err != nil {
		return nil, err
	}

	return tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(config.BuildVersion),
		)),
	), nil
}
