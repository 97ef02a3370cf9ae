package instance

import (
	"fmt"
	"strings"
	"time"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/internal/errors"
)

// ResumeTarget returns the task a Resume applies to, the failed task when taskID is empty
func (a *AppInstance) ResumeTarget(taskID string) (*Task, error) {
	if taskID == "" {
		failed := a.FailedTask()
		if failed == nil {
			return nil, errors.FailedPrecondition(EntityInstance, "instance "+a.ID.String()+" has no failed task to resume")
		}
		return failed, nil
	}

	task, err := a.Task(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != StatusFailed {
		return nil, errors.FailedPrecondition(EntityTask, fmt.Sprintf("task %s is %s, only a failed task can be resumed", task.Name, task.Status))
	}
	return task, nil
}

// Resume moves the failed task back to InProgress. The exception classification stays
// on the instance until the task reports its next outcome.
func (a *AppInstance) Resume(taskID string, actor identity.User, reason string, at time.Time) error {
	if a.IsTerminal() {
		return errors.FailedPrecondition(EntityInstance, "cannot resume a "+a.Status.String()+" instance")
	}
	task, err := a.ResumeTarget(taskID)
	if err != nil {
		return err
	}

	preRetry := task.RetryAttempts
	task.Status = StatusInProgress
	task.RetryAttempts++
	task.EndTime = nil
	a.RetryCount++

	a.appendAudit(newAuditEvent(ActionResume, actor, task.ID, reason, AuditDetails{PreRetryCount: preRetry}, at))
	a.refresh(at)
	return nil
}

func (a *AppInstance) Cancel(actor identity.User, reason string, at time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return errors.InvalidArgument(EntityInstance, "reason is required to cancel an instance")
	}
	if a.IsTerminal() {
		return errors.FailedPrecondition(EntityInstance, "cannot cancel a "+a.Status.String()+" instance")
	}

	a.Cancellation = &Cancellation{
		Reason:      reason,
		User:        actor.ID,
		CancelledAt: at,
		Exception:   a.Exception,
	}
	a.Exception = nil
	a.SOPCode = ""

	var taskID string
	if failed := a.FailedTask(); failed != nil {
		taskID = failed.ID
	}
	a.appendAudit(newAuditEvent(ActionCancel, actor, taskID, reason, AuditDetails{}, at))
	a.refresh(at)
	return nil
}

// Skip records that skipCount records are skipped out of band, task state is untouched
func (a *AppInstance) Skip(taskID string, actor identity.User, reason string, skipCount int, at time.Time) error {
	if skipCount < 1 {
		return errors.InvalidArgument(EntityInstance, "skip count must be at least 1")
	}
	if a.IsTerminal() {
		return errors.FailedPrecondition(EntityInstance, "cannot skip records of a "+a.Status.String()+" instance")
	}
	if taskID != "" {
		task, err := a.Task(taskID)
		if err != nil {
			return err
		}
		taskID = task.ID
	} else if failed := a.FailedTask(); failed != nil {
		taskID = failed.ID
	}

	a.appendAudit(newAuditEvent(ActionSkip, actor, taskID, reason, AuditDetails{SkipCount: skipCount}, at))
	a.refresh(at)
	return nil
}

// Notify marks the instance as escalated to the tenant, it reports false when the
// instance was already notified and nothing changed
func (a *AppInstance) Notify(actor identity.User, reason string, at time.Time) bool {
	if a.IsNotified {
		return false
	}

	a.IsNotified = true
	var taskID string
	if failed := a.FailedTask(); failed != nil {
		taskID = failed.ID
	}
	a.appendAudit(newAuditEvent(ActionNotify, actor, taskID, reason, AuditDetails{}, at))
	a.refresh(at)
	return true
}
