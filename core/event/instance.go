package event

import (
	"github.com/goto/pipewatch/core/instance"
)

type InstanceCreated struct {
	Event

	Instance *instance.AppInstance
	Source   string
}

func NewInstanceCreatedEvent(inst *instance.AppInstance, source string) *InstanceCreated {
	return &InstanceCreated{Event: NewBaseEvent(), Instance: inst, Source: source}
}

func (e InstanceCreated) Bytes() ([]byte, error) {
	payload := instancePayload(e.Instance)
	payload["source"] = e.Source
	return envelope(e.Event, TypeInstanceCreated, payload)
}

type TaskOutcome struct {
	Event

	Instance *instance.AppInstance
	TaskID   string
}

func NewTaskOutcomeEvent(inst *instance.AppInstance, taskID string) *TaskOutcome {
	return &TaskOutcome{Event: NewBaseEvent(), Instance: inst, TaskID: taskID}
}

func (e TaskOutcome) Bytes() ([]byte, error) {
	payload := instancePayload(e.Instance)
	payload["task_id"] = e.TaskID
	return envelope(e.Event, TypeTaskOutcome, payload)
}

type InstanceActioned struct {
	Event

	Instance *instance.AppInstance
	Audit    *instance.AuditEvent
}

func NewInstanceActionedEvent(inst *instance.AppInstance, audit *instance.AuditEvent) *InstanceActioned {
	return &InstanceActioned{Event: NewBaseEvent(), Instance: inst, Audit: audit}
}

func (e InstanceActioned) Bytes() ([]byte, error) {
	payload := instancePayload(e.Instance)
	if e.Audit != nil {
		payload["audit"] = map[string]any{
			"id":              e.Audit.ID,
			"action":          e.Audit.Action.String(),
			"actor":           e.Audit.Actor,
			"actor_role":      e.Audit.ActorRole.String(),
			"timestamp":       formatTime(e.Audit.Timestamp),
			"task_id":         e.Audit.TaskID,
			"reason":          e.Audit.Reason,
			"skip_count":      e.Audit.Details.SkipCount,
			"pre_retry_count": e.Audit.Details.PreRetryCount,
		}
	}
	return envelope(e.Event, TypeInstanceActioned, payload)
}

func instancePayload(inst *instance.AppInstance) map[string]any {
	payload := map[string]any{
		"instance_id":     inst.ID.String(),
		"tenant":          inst.Tenant.Name().String(),
		"zone":            inst.Tenant.Zone().String(),
		"application":     inst.Application,
		"file_name":       inst.FileName,
		"status":          inst.Status.String(),
		"completed_tasks": inst.CompletedTasks,
		"total_tasks":     inst.TotalTasks,
		"retry_count":     inst.RetryCount,
		"is_notified":     inst.IsNotified,
		"version":         inst.Version,
		"last_updated_at": formatTime(inst.LastUpdatedAt),
	}
	if inst.Exception != nil {
		payload["exception_type"] = inst.Exception.Type.String()
		payload["exception_code"] = inst.Exception.Code.String()
	}
	return payload
}
