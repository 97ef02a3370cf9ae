package instance

import (
	"time"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/tenant"
)

// Escalation is sent to the tenant SRE team when a Platform SRE notifies them
// about a business exception they cannot remediate.
type Escalation struct {
	InstanceID       ID
	Tenant           tenant.Tenant
	Application      string
	FileName         string
	ExceptionCode    string
	ExceptionMessage string
	SOPCode          string
	ImpactTier       ImpactTier

	Actor  identity.User
	Reason string
	At     time.Time
}

func NewEscalation(inst *AppInstance, actor identity.User, reason string, at time.Time) Escalation {
	esc := Escalation{
		InstanceID:  inst.ID,
		Tenant:      inst.Tenant,
		Application: inst.Application,
		FileName:    inst.FileName,
		SOPCode:     string(inst.SOPCode),
		ImpactTier:  inst.ImpactTier,
		Actor:       actor,
		Reason:      reason,
		At:          at,
	}
	if inst.Exception != nil {
		esc.ExceptionCode = string(inst.Exception.Code)
		esc.ExceptionMessage = inst.Exception.Message
	}
	return esc
}

func (e Escalation) Summary() string {
	return "[" + e.Tenant.String() + "] " + e.Application + "/" + e.FileName + " failed with " + e.ExceptionCode
}

const (
	MetricNotificationQueue         = "pipewatch_notification_queue_total"
	MetricNotificationWorkerBatch   = "pipewatch_notification_worker_batch_total"
	MetricNotificationWorkerSendErr = "pipewatch_notification_worker_send_err_total"
	MetricNotificationSend          = "pipewatch_notification_send_total"
)
