package schedule

import (
	"strings"
	"time"

	"github.com/goto/pipewatch/internal/errors"
)

// RecomputeStatus derives the job status from its next expected slot and the executions recorded for it
func RecomputeStatus(job *Job, executions []*Execution, now time.Time) Status {
	if !job.Enabled {
		return StatusDisabled
	}
	if !now.After(job.NextExpectedRun) {
		return StatusOnSchedule
	}
	for _, exec := range executions {
		if exec.JobID == job.ID && exec.ExpectedAt.Equal(job.NextExpectedRun) && exec.Status.Satisfies() {
			return StatusOnSchedule
		}
	}
	return StatusOverdue
}

// Refresh sets the derived status and reports whether it changed
func (j *Job) Refresh(executions []*Execution, now time.Time) bool {
	status := RecomputeStatus(j, executions, now)
	changed := status != j.Status
	j.Status = status
	return changed
}

// Acknowledge accepts an overdue slot and moves the expectation to the next slot after now
func (j *Job) Acknowledge(reason string, confirmed bool, user string, now time.Time) (*Acknowledgement, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.InvalidArgument(EntityJob, "reason is required to acknowledge an overdue schedule")
	}
	if !confirmed {
		return nil, errors.InvalidArgument(EntityJob, "acknowledgement must be confirmed")
	}
	if j.Status != StatusOverdue {
		return nil, errors.FailedPrecondition(EntityJob, "job "+j.ID.String()+" is "+j.Status.String()+", only overdue jobs can be acknowledged")
	}

	ack := &Acknowledgement{
		Reason: reason,
		User:   user,
		Slot:   j.NextExpectedRun,
		At:     now,
	}
	j.Acknowledgements = append(j.Acknowledgements, ack)
	j.NextExpectedRun = j.NextSlot(now)
	j.Status = StatusOnSchedule
	return ack, nil
}

// ValidateTrigger checks a manual run can be started, the instance is minted by the caller
func (j *Job) ValidateTrigger(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errors.InvalidArgument(EntityJob, "reason is required to trigger a run")
	}
	if j.Status == StatusDisabled || !j.Enabled {
		return errors.FailedPrecondition(EntityJob, "job "+j.ID.String()+" is disabled")
	}
	return nil
}

func (j *Job) RecordRun(instanceID, status string, trigger Trigger, at time.Time) {
	j.LastRun = &LastRun{
		InstanceID: instanceID,
		Status:     status,
		At:         at,
		Trigger:    trigger,
	}
}

// RecordExecution applies a firing to the job, a firing for the expected slot advances the expectation
func (j *Job) RecordExecution(exec *Execution, executions []*Execution, now time.Time) error {
	if exec.JobID != j.ID {
		return errors.InvalidArgument(EntityExecution, "execution belongs to job "+exec.JobID.String()+", not "+j.ID.String())
	}

	if exec.Status != ExecMissed {
		at := exec.ExpectedAt
		if exec.ActualAt != nil {
			at = *exec.ActualAt
		}
		j.RecordRun(exec.InstanceID, exec.Status.String(), TriggerScheduled, at)
	}

	j.Settle(exec)
	j.Refresh(executions, now)
	return nil
}

// Settle advances the expectation past the slot when the execution satisfies it
func (j *Job) Settle(exec *Execution) bool {
	if exec.JobID != j.ID || !exec.ExpectedAt.Equal(j.NextExpectedRun) || !exec.Status.Satisfies() {
		return false
	}
	j.NextExpectedRun = j.NextSlot(exec.ExpectedAt)
	return true
}
