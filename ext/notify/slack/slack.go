package slack

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	api "github.com/slack-go/slack"

	"github.com/goto/pipewatch/core/instance"
)

const (
	DefaultEventBatchInterval = time.Second * 10
	MaxEscalationsPerMessage  = 10
)

var (
	notifierType      = "slack"
	slackQueueCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name:        instance.MetricNotificationQueue,
		ConstLabels: map[string]string{"type": notifierType},
	})
	slackWorkerBatchCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name:        instance.MetricNotificationWorkerBatch,
		ConstLabels: map[string]string{"type": notifierType},
	})
	slackWorkerSendErrCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name:        instance.MetricNotificationWorkerSendErr,
		ConstLabels: map[string]string{"type": notifierType},
	})
)

type Notifier struct {
	io.Closer

	client *api.Client
	// channel used when a tenant has no dedicated one
	defaultChannel string
	tenantChannels map[string]string

	msgBatch      map[string][]instance.Escalation // channel -> pending escalations
	wg            sync.WaitGroup
	mu            sync.Mutex
	workerErrChan chan error
	cancel        context.CancelFunc

	eventBatchInterval time.Duration
}

func (s *Notifier) Notify(_ context.Context, esc instance.Escalation) error {
	channel, ok := s.tenantChannels[esc.Tenant.Name().String()]
	if !ok {
		channel = s.defaultChannel
	}
	if channel == "" {
		return fmt.Errorf("no slack channel configured for tenant %s", esc.Tenant.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgBatch[channel] = append(s.msgBatch[channel], esc)
	slackQueueCounter.Inc()
	return nil
}

func buildMessageBlocks(escalations []instance.Escalation) []api.Block {
	var blocks []api.Block
	for i, esc := range escalations {
		if i >= MaxEscalationsPerMessage {
			blocks = append(blocks, api.NewContextBlock("",
				api.NewTextBlockObject(api.MarkdownType, fmt.Sprintf("%d more escalations truncated", len(escalations)-i), false, false)))
			break
		}

		header := fmt.Sprintf("*[%s] %s needs tenant action*", esc.ImpactTier, esc.Summary())
		fields := []*api.TextBlockObject{
			api.NewTextBlockObject(api.MarkdownType, "*Instance:*\n"+esc.InstanceID.String(), false, false),
			api.NewTextBlockObject(api.MarkdownType, "*Notified by:*\n"+esc.Actor.Name, false, false),
		}
		if esc.ExceptionMessage != "" {
			fields = append(fields, api.NewTextBlockObject(api.MarkdownType, "*Error:*\n"+esc.ExceptionMessage, false, false))
		}
		if esc.SOPCode != "" {
			fields = append(fields, api.NewTextBlockObject(api.MarkdownType, "*SOP:*\n"+esc.SOPCode, false, false))
		}
		if esc.Reason != "" {
			fields = append(fields, api.NewTextBlockObject(api.MarkdownType, "*Reason:*\n"+esc.Reason, false, false))
		}
		blocks = append(blocks,
			api.NewSectionBlock(api.NewTextBlockObject(api.MarkdownType, header, false, false), fields, nil),
			api.NewDividerBlock(),
		)
	}
	return blocks
}

func (s *Notifier) Worker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.eventBatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// flush what is left, the parent context may already be gone
			s.Flush(context.Background())
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush posts one message per channel for every pending escalation
func (s *Notifier) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.msgBatch
	s.msgBatch = map[string][]instance.Escalation{}
	s.mu.Unlock()

	for channel, escalations := range batch {
		text := fmt.Sprintf("%d escalation(s) from platform SRE", len(escalations))
		_, _, err := s.client.PostMessageContext(ctx, channel,
			api.MsgOptionText(text, false),
			api.MsgOptionBlocks(buildMessageBlocks(escalations)...),
		)
		if err != nil {
			s.workerErrChan <- fmt.Errorf("slack worker: channel %s: %w", channel, err)
			continue
		}
		slackWorkerBatchCounter.Inc()
	}
}

func (s *Notifier) Close() error { // nolint: unparam
	s.cancel()
	s.wg.Wait()
	close(s.workerErrChan)
	return nil
}

func NewNotifier(ctx context.Context, apiURL, token, defaultChannel string, tenantChannels map[string]string,
	eventBatchInterval time.Duration, errHandler func(error),
) *Notifier {
	workerCtx, cancel := context.WithCancel(ctx)
	this := &Notifier{
		client:             api.New(token, api.OptionAPIURL(apiURL)),
		defaultChannel:     defaultChannel,
		tenantChannels:     tenantChannels,
		msgBatch:           map[string][]instance.Escalation{},
		workerErrChan:      make(chan error),
		cancel:             cancel,
		eventBatchInterval: eventBatchInterval,
	}

	go func() {
		for err := range this.workerErrChan {
			errHandler(err)
			slackWorkerSendErrCounter.Inc()
		}
	}()

	this.wg.Add(1)
	go this.Worker(workerCtx)
	return this
}
