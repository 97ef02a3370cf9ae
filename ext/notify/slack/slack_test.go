package slack // nolint: testpackage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/core/tenant"
)

func TestSlack(t *testing.T) {
	actor, _ := identity.NewUser("u-platform", "Pat", "platform_sre", "")
	newEscalation := func(tenantName string) instance.Escalation {
		tnnt, _ := tenant.NewTenant(tenantName, "eu-west")
		return instance.Escalation{
			InstanceID:       "inst-1",
			Tenant:           tnnt,
			Application:      "billing",
			FileName:         "invoices.csv",
			ExceptionCode:    "SchemaValidationException",
			ExceptionMessage: "column amount is not numeric",
			ImpactTier:       instance.ImpactHigh,
			Actor:            actor,
			Reason:           "needs tenant fix",
			At:               time.Now(),
		}
	}

	t.Run("should post batched escalations to tenant channel", func(t *testing.T) {
		var (
			mu       sync.Mutex
			channels []string
		)
		muxRouter := http.NewServeMux()
		server := httptest.NewServer(muxRouter)
		defer server.Close()
		muxRouter.HandleFunc("/chat.postMessage", func(rw http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			mu.Lock()
			channels = append(channels, r.FormValue("channel"))
			mu.Unlock()
			rw.Header().Set("Content-Type", "application/json")
			_, _ = rw.Write([]byte(`{"ok":true,"channel":"C1","ts":"1503435956.000247"}`))
		})

		var sendErrors []error
		client := NewNotifier(context.Background(), server.URL+"/", "xoxb-token", "#sre-escalations",
			map[string]string{"acme": "#acme-sre"}, time.Millisecond*50,
			func(err error) {
				sendErrors = append(sendErrors, err)
			},
		)

		assert.Nil(t, client.Notify(context.Background(), newEscalation("acme")))
		assert.Nil(t, client.Notify(context.Background(), newEscalation("acme")))
		assert.Nil(t, client.Notify(context.Background(), newEscalation("globex")))

		assert.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(channels) == 2
		}, time.Second, 10*time.Millisecond)

		assert.Nil(t, client.Close())
		assert.Nil(t, sendErrors)
		assert.ElementsMatch(t, []string{"#acme-sre", "#sre-escalations"}, channels)
	})
	t.Run("should return error when no channel is routable", func(t *testing.T) {
		client := NewNotifier(context.Background(), "http://localhost/", "xoxb-token", "", nil, time.Hour, func(error) {})
		err := client.Notify(context.Background(), newEscalation("acme"))
		assert.ErrorContains(t, err, "no slack channel configured for tenant acme")
		assert.Nil(t, client.Close())
	})
	t.Run("should truncate large batches", func(t *testing.T) {
		escalations := make([]instance.Escalation, MaxEscalationsPerMessage+3)
		for i := range escalations {
			escalations[i] = newEscalation("acme")
		}
		blocks := buildMessageBlocks(escalations)
		// section and divider per escalation plus the truncation notice
		assert.Len(t, blocks, MaxEscalationsPerMessage*2+1)
	})
}
