package event

import (
	"github.com/goto/pipewatch/core/schedule"
)

type ScheduleAcknowledged struct {
	Event

	Job *schedule.Job
	Ack *schedule.Acknowledgement
}

func NewScheduleAcknowledgedEvent(job *schedule.Job, ack *schedule.Acknowledgement) *ScheduleAcknowledged {
	return &ScheduleAcknowledged{Event: NewBaseEvent(), Job: job, Ack: ack}
}

func (e ScheduleAcknowledged) Bytes() ([]byte, error) {
	payload := jobPayload(e.Job)
	if e.Ack != nil {
		payload["reason"] = e.Ack.Reason
		payload["actor"] = e.Ack.User
		payload["acknowledged_slot"] = formatTime(e.Ack.Slot)
	}
	return envelope(e.Event, TypeScheduleAcked, payload)
}

type ScheduleTriggered struct {
	Event

	Job        *schedule.Job
	InstanceID string
	Reason     string
}

func NewScheduleTriggeredEvent(job *schedule.Job, instanceID, reason string) *ScheduleTriggered {
	return &ScheduleTriggered{Event: NewBaseEvent(), Job: job, InstanceID: instanceID, Reason: reason}
}

func (e ScheduleTriggered) Bytes() ([]byte, error) {
	payload := jobPayload(e.Job)
	payload["instance_id"] = e.InstanceID
	payload["reason"] = e.Reason
	return envelope(e.Event, TypeScheduleTriggered, payload)
}

type ExecutionChanged struct {
	Event

	Type      Type
	Execution *schedule.Execution
	Reason    string
}

func NewExecutionSkippedEvent(exec *schedule.Execution, reason string) *ExecutionChanged {
	return &ExecutionChanged{Event: NewBaseEvent(), Type: TypeExecutionSkipped, Execution: exec, Reason: reason}
}

func NewExecutionRerunEvent(exec *schedule.Execution, reason string) *ExecutionChanged {
	return &ExecutionChanged{Event: NewBaseEvent(), Type: TypeExecutionRerun, Execution: exec, Reason: reason}
}

func (e ExecutionChanged) Bytes() ([]byte, error) {
	payload := map[string]any{
		"execution_id": e.Execution.ID,
		"job_id":       e.Execution.JobID.String(),
		"expected_at":  formatTime(e.Execution.ExpectedAt),
		"status":       e.Execution.Status.String(),
		"instance_id":  e.Execution.InstanceID,
		"reason":       e.Reason,
	}
	return envelope(e.Event, e.Type, payload)
}

type ScheduleOverdue struct {
	Event

	Job *schedule.Job
}

func NewScheduleOverdueEvent(job *schedule.Job) *ScheduleOverdue {
	return &ScheduleOverdue{Event: NewBaseEvent(), Job: job}
}

func (e ScheduleOverdue) Bytes() ([]byte, error) {
	return envelope(e.Event, TypeScheduleOverdue, jobPayload(e.Job))
}

func jobPayload(job *schedule.Job) map[string]any {
	payload := map[string]any{
		"job_id":            job.ID.String(),
		"job_name":          job.Name,
		"tenant":            job.Tenant.Name().String(),
		"zone":              job.Tenant.Zone().String(),
		"application":       job.Application,
		"status":            job.Status.String(),
		"next_expected_run": formatTime(job.NextExpectedRun),
	}
	if job.LastRun != nil {
		payload["last_run_instance_id"] = job.LastRun.InstanceID
	}
	return payload
}
