package pagerduty // nolint: testpackage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/core/tenant"
)

func TestPagerDuty(t *testing.T) {
	actor, _ := identity.NewUser("u-platform", "Pat", "platform_sre", "")
	newEscalation := func(tenantName string) instance.Escalation {
		tnnt, _ := tenant.NewTenant(tenantName, "eu-west")
		return instance.Escalation{
			InstanceID:    "inst-1",
			Tenant:        tnnt,
			Application:   "billing",
			FileName:      "invoices.csv",
			ExceptionCode: "SchemaValidationException",
			ImpactTier:    instance.ImpactCritical,
			Actor:         actor,
			Reason:        "needs tenant fix",
			At:            time.Now(),
		}
	}

	t.Run("should route escalations by tenant routing key", func(t *testing.T) {
		pdService := new(PagerDutyServiceMock)
		defer pdService.AssertExpectations(t)

		var wg sync.WaitGroup
		wg.Add(2)
		pdService.On("SendAlert", mock.Anything, mock.MatchedBy(func(evt Event) bool {
			return evt.routingKey == "acme-key"
		})).Run(func(mock.Arguments) { wg.Done() }).Return(nil).Once()
		pdService.On("SendAlert", mock.Anything, mock.MatchedBy(func(evt Event) bool {
			return evt.routingKey == "default-key"
		})).Run(func(mock.Arguments) { wg.Done() }).Return(nil).Once()

		client := NewNotifier(context.Background(), "default-key", map[string]string{"acme": "acme-key"},
			time.Millisecond*20, func(error) {}, pdService)

		assert.Nil(t, client.Notify(context.Background(), newEscalation("acme")))
		assert.Nil(t, client.Notify(context.Background(), newEscalation("globex")))

		wg.Wait()
		assert.Nil(t, client.Close())
	})
	t.Run("should report send errors", func(t *testing.T) {
		pdService := new(PagerDutyServiceMock)
		defer pdService.AssertExpectations(t)
		pdService.On("SendAlert", mock.Anything, mock.Anything).Return(errors.New("rate limited")).Once()

		errs := make(chan error, 1)
		client := NewNotifier(context.Background(), "default-key", nil, time.Millisecond*20,
			func(err error) { errs <- err }, pdService)

		assert.Nil(t, client.Notify(context.Background(), newEscalation("acme")))
		select {
		case err := <-errs:
			assert.ErrorContains(t, err, "rate limited")
		case <-time.After(time.Second):
			t.Fatal("expected send error")
		}
		assert.Nil(t, client.Close())
	})
	t.Run("should reject escalation without routing key", func(t *testing.T) {
		client := NewNotifier(context.Background(), "", nil, time.Hour, func(error) {}, new(PagerDutyServiceMock))
		err := client.Notify(context.Background(), newEscalation("acme"))
		assert.ErrorContains(t, err, "no pagerduty routing key configured for tenant acme")
		assert.Nil(t, client.Close())
	})
	t.Run("severity follows impact tier", func(t *testing.T) {
		assert.Equal(t, "critical", severity(instance.ImpactCritical))
		assert.Equal(t, "error", severity(instance.ImpactHigh))
		assert.Equal(t, "warning", severity(instance.ImpactMedium))
		assert.Equal(t, "info", severity(instance.ImpactLow))
	})
}

type PagerDutyServiceMock struct {
	mock.Mock
}

func (s *PagerDutyServiceMock) SendAlert(ctx context.Context, evt Event) error {
	args := s.Called(ctx, evt)
	return args.Error(0)
}
