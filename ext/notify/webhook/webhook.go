package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goto/pipewatch/core/instance"
)

const (
	httpChannelBuffer = 100
	httpTimeout       = 10 * time.Second
)

var (
	notifierType        = "webhook"
	webhookQueueCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name:        instance.MetricNotificationQueue,
		ConstLabels: map[string]string{"type": notifierType},
	})

	webhookWorkerSendErrCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name:        instance.MetricNotificationWorkerSendErr,
		ConstLabels: map[string]string{"type": notifierType},
	})

	webhookWorkerSendCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name:        instance.MetricNotificationSend,
		ConstLabels: map[string]string{"type": notifierType},
	})
)

type Notifier struct {
	io.Closer

	url     string
	headers map[string]string
	client  *http.Client

	eventChan     chan instance.Escalation
	workerWg      sync.WaitGroup
	errWg         sync.WaitGroup
	workerErrChan chan error
	cancel        context.CancelFunc
}

type webhookPayload struct {
	InstanceID       string `json:"instance_id"`
	Tenant           string `json:"tenant"`
	Zone             string `json:"zone"`
	Application      string `json:"application"`
	FileName         string `json:"file_name"`
	ExceptionCode    string `json:"exception_code"`
	ExceptionMessage string `json:"exception_message"`
	SOPCode          string `json:"sop_code,omitempty"`
	ImpactTier       string `json:"impact_tier"`
	NotifiedBy       string `json:"notified_by"`
	Reason           string `json:"reason"`
	NotifiedAt       string `json:"notified_at"`
}

func (s *Notifier) Notify(_ context.Context, esc instance.Escalation) error { //nolint:unparam
	go func() {
		s.eventChan <- esc
	}()

	webhookQueueCounter.Inc()
	return nil
}

func (s *Notifier) Worker(ctx context.Context) {
	defer s.workerWg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case esc := <-s.eventChan:
			if err := s.send(ctx, esc); err != nil {
				s.workerErrChan <- fmt.Errorf("webhook worker: %w", err)
				continue
			}
			webhookWorkerSendCounter.Inc()
		}
	}
}

func (s *Notifier) send(ctx context.Context, esc instance.Escalation) error {
	payload := webhookPayload{
		InstanceID:       esc.InstanceID.String(),
		Tenant:           esc.Tenant.Name().String(),
		Zone:             esc.Tenant.Zone().String(),
		Application:      esc.Application,
		FileName:         esc.FileName,
		ExceptionCode:    esc.ExceptionCode,
		ExceptionMessage: esc.ExceptionMessage,
		SOPCode:          esc.SOPCode,
		ImpactTier:       esc.ImpactTier.String(),
		NotifiedBy:       esc.Actor.ID,
		Reason:           esc.Reason,
		NotifiedAt:       esc.At.UTC().Format(time.RFC3339),
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(payloadJSON))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Add(k, v)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s responded with status %d", s.url, res.StatusCode)
	}
	return nil
}

func (s *Notifier) Close() error { // nolint: unparam
	s.cancel()
	s.workerWg.Wait()
	close(s.workerErrChan)
	s.errWg.Wait()
	return nil
}

func NewNotifier(ctx context.Context, url string, headers map[string]string, errHandler func(error)) *Notifier {
	workerCtx, cancel := context.WithCancel(ctx)
	this := &Notifier{
		url:           url,
		headers:       headers,
		client:        &http.Client{Timeout: httpTimeout},
		eventChan:     make(chan instance.Escalation, httpChannelBuffer),
		workerErrChan: make(chan error),
		cancel:        cancel,
	}

	this.errWg.Add(1)
	go func() {
		defer this.errWg.Done()
		for err := range this.workerErrChan {
			errHandler(err)
			webhookWorkerSendErrCounter.Inc()
		}
	}()

	this.workerWg.Add(1)
	go this.Worker(workerCtx)
	return this
}
