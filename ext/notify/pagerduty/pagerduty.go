package pagerduty

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/PagerDuty/go-pagerduty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goto/pipewatch/core/instance"
)

const (
	DefaultEventBatchInterval = time.Second * 10
	eventSource               = "pipewatch"
)

var (
	notifierType          = "pagerduty"
	pagerdutyQueueCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name:        instance.MetricNotificationQueue,
		ConstLabels: map[string]string{"type": notifierType},
	})
	pagerdutyWorkerSendCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name:        instance.MetricNotificationSend,
		ConstLabels: map[string]string{"type": notifierType},
	})
	pagerdutyWorkerSendErrCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name:        instance.MetricNotificationWorkerSendErr,
		ConstLabels: map[string]string{"type": notifierType},
	})
)

type Event struct {
	routingKey string
	escalation instance.Escalation
}

type Service interface {
	SendAlert(ctx context.Context, evt Event) error
}

type ServiceImpl struct{}

func (*ServiceImpl) SendAlert(ctx context.Context, evt Event) error {
	_, err := pagerduty.ManageEventWithContext(ctx, pagerduty.V2Event{
		RoutingKey: evt.routingKey,
		Action:     "trigger",
		DedupKey:   dedupKey(evt.escalation),
		Payload: &pagerduty.V2Payload{
			Summary:   evt.escalation.Summary(),
			Source:    eventSource,
			Severity:  severity(evt.escalation.ImpactTier),
			Component: evt.escalation.Application,
			Group:     evt.escalation.Tenant.String(),
			Class:     evt.escalation.ExceptionCode,
			Timestamp: evt.escalation.At.UTC().Format(time.RFC3339),
			Details: map[string]string{
				"instance_id":       evt.escalation.InstanceID.String(),
				"file_name":         evt.escalation.FileName,
				"exception_message": evt.escalation.ExceptionMessage,
				"sop_code":          evt.escalation.SOPCode,
				"notified_by":       evt.escalation.Actor.ID,
				"reason":            evt.escalation.Reason,
			},
		},
	})
	return err
}

// one open incident per instance
func dedupKey(esc instance.Escalation) string {
	return eventSource + "/" + esc.InstanceID.String()
}

func severity(tier instance.ImpactTier) string {
	switch tier {
	case instance.ImpactCritical:
		return "critical"
	case instance.ImpactHigh:
		return "error"
	case instance.ImpactLow:
		return "info"
	default:
		return "warning"
	}
}

type Notifier struct {
	io.Closer

	defaultRoutingKey string
	tenantRoutingKeys map[string]string

	eventBatch    []Event
	wg            sync.WaitGroup
	mu            sync.Mutex
	workerErrChan chan error
	cancel        context.CancelFunc
	pdService     Service

	eventBatchInterval time.Duration
}

func (s *Notifier) Notify(_ context.Context, esc instance.Escalation) error {
	routingKey, ok := s.tenantRoutingKeys[esc.Tenant.Name().String()]
	if !ok {
		routingKey = s.defaultRoutingKey
	}
	if strings.TrimSpace(routingKey) == "" {
		return fmt.Errorf("no pagerduty routing key configured for tenant %s", esc.Tenant.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventBatch = append(s.eventBatch, Event{routingKey: routingKey, escalation: esc})
	pagerdutyQueueCounter.Inc()
	return nil
}

func (s *Notifier) Worker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.eventBatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Flush(context.Background())
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *Notifier) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.eventBatch
	s.eventBatch = nil
	s.mu.Unlock()

	for _, evt := range batch {
		if err := s.pdService.SendAlert(ctx, evt); err != nil {
			s.workerErrChan <- fmt.Errorf("pagerduty worker: instance %s: %w", evt.escalation.InstanceID, err)
			continue
		}
		pagerdutyWorkerSendCounter.Inc()
	}
}

func (s *Notifier) Close() error { // nolint: unparam
	s.cancel()
	s.wg.Wait()
	close(s.workerErrChan)
	return nil
}

func NewNotifier(ctx context.Context, defaultRoutingKey string, tenantRoutingKeys map[string]string,
	eventBatchInterval time.Duration, errHandler func(error), pdService Service,
) *Notifier {
	workerCtx, cancel := context.WithCancel(ctx)
	this := &Notifier{
		defaultRoutingKey:  defaultRoutingKey,
		tenantRoutingKeys:  tenantRoutingKeys,
		workerErrChan:      make(chan error),
		cancel:             cancel,
		pdService:          pdService,
		eventBatchInterval: eventBatchInterval,
	}

	go func() {
		for err := range this.workerErrChan {
			errHandler(err)
			pagerdutyWorkerSendErrCounter.Inc()
		}
	}()

	this.wg.Add(1)
	go this.Worker(workerCtx)
	return this
}
