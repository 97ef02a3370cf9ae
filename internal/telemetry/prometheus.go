package telemetry

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"
)

const metricsPushJob = "pipewatch_push"

var (
	gaugeMetricMap   = map[string]prometheus.Gauge{}
	gaugeMetricMutex = sync.Mutex{}

	// PushGateway is the prometheus push gateway url, pushing is disabled when empty
	PushGateway string

	panicMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipewatch_panics_recovered_total",
		Help: "panics recovered while serving requests",
	}, []string{"entity", "msg"})
)

func LogPanic(entity, message string) {
	panicMetric.WithLabelValues(entity, message).Inc()
}

func getKey(metric string, labels map[string]string) string {
	key := metric
	labelNames := make([]string, 0, len(labels))
	for k := range labels {
		labelNames = append(labelNames, k)
	}
	sort.Strings(labelNames)
	for _, name := range labelNames {
		key += "/" + name + ":" + labels[name]
	}
	return key
}

// NewGauge returns the gauge registered for metric and labels, registering it on first use
func NewGauge(metric string, labels map[string]string) prometheus.Gauge {
	metricKey := getKey(metric, labels)

	gaugeMetricMutex.Lock()
	defer gaugeMetricMutex.Unlock()

	if existing, ok := gaugeMetricMap[metricKey]; ok {
		return existing
	}
	gauge := promauto.NewGauge(prometheus.GaugeOpts{Name: metric, ConstLabels: labels})
	gaugeMetricMap[metricKey] = gauge
	return gauge
}

// SetGaugeViaPush pushes a single gauge value to the push gateway
func SetGaugeViaPush(name string, labels map[string]string, val float64) error {
	if PushGateway == "" {
		return nil
	}
	metric := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		ConstLabels: labels,
	})
	metric.Set(val)

	return push.New(PushGateway, metricsPushJob).
		Format(expfmt.FmtText).
		Collector(metric).
		Push()
}
