package instance

import (
	"fmt"
	"time"

	"github.com/goto/pipewatch/core/exception"
	"github.com/goto/pipewatch/internal/errors"
)

// Classifier resolves the catalog entries of a failure code
type Classifier interface {
	Definition(code exception.Code) (*exception.Definition, error)
	SOP(code exception.Code) (*exception.SOP, error)
}

// Outcome is a task execution event reported by the pipeline
type Outcome struct {
	Status        Status
	ErrorCode     exception.Code
	ErrorMessage  string
	ExceptionType exception.Type
	At            time.Time
}

// ApplyTaskOutcome returns a copy of inst with the outcome applied to the task and
// the instance status derived again. inst itself is never modified.
func ApplyTaskOutcome(inst *AppInstance, taskID string, outcome Outcome, classifier Classifier) (*AppInstance, error) {
	if _, err := inst.Task(taskID); err != nil {
		return nil, err
	}
	if inst.IsTerminal() {
		return nil, errors.FailedPrecondition(EntityInstance,
			fmt.Sprintf("instance %s is %s and accepts no further task outcomes", inst.ID, inst.Status))
	}

	updated := inst.Clone()
	task, _ := updated.Task(taskID)

	if !canTransition(task.Status, outcome.Status) {
		return nil, errors.FailedPrecondition(EntityTask,
			fmt.Sprintf("task %s cannot move from %s to %s", task.Name, task.Status, outcome.Status))
	}

	switch outcome.Status {
	case StatusInProgress:
		if task.StartTime == nil {
			task.StartTime = timeRef(outcome.At)
		}
	case StatusSuccess:
		markEnded(task, outcome.At)
		task.clearError()
	case StatusFailed:
		if failed := updated.FailedTask(); failed != nil && failed.ID != task.ID {
			return nil, errors.FailedPrecondition(EntityTask,
				fmt.Sprintf("task %s is already failed in instance %s", failed.Name, updated.ID))
		}
		exc, err := classify(outcome, classifier)
		if err != nil {
			return nil, err
		}
		markEnded(task, outcome.At)
		task.ErrorCode = exc.Code
		task.ErrorMessage = exc.Message
		task.ExceptionType = exc.Type

		updated.Exception = exc
		updated.SOPCode = ""
		if _, err := classifier.SOP(exc.Code); err == nil {
			updated.SOPCode = exc.Code
		}
	}

	task.Status = outcome.Status
	updated.refresh(outcome.At)
	return updated, nil
}

func classify(outcome Outcome, classifier Classifier) (*Exception, error) {
	if outcome.ErrorCode == "" {
		return nil, errors.InvalidArgument(EntityTask, "failed outcome requires an error code")
	}

	excType := outcome.ExceptionType
	if excType == "" {
		def, err := classifier.Definition(outcome.ErrorCode)
		if err != nil {
			return nil, errors.InvalidArgument(EntityTask,
				"exception type is required for uncatalogued code "+outcome.ErrorCode.String())
		}
		excType = def.Type
	}

	return &Exception{
		Type:    excType,
		Code:    outcome.ErrorCode,
		Message: outcome.ErrorMessage,
	}, nil
}

// DeriveStatus computes instance status from task state. Cancellation overrides everything,
// instances without tasks keep their assigned status.
func DeriveStatus(inst *AppInstance) Status {
	if inst.Cancellation != nil {
		return StatusCancelled
	}
	if len(inst.Tasks) == 0 {
		return inst.Status
	}

	success, pending := 0, 0
	for _, t := range inst.Tasks {
		switch t.Status {
		case StatusFailed:
			return StatusFailed
		case StatusSuccess:
			success++
		case StatusPending:
			pending++
		}
	}

	switch {
	case success == len(inst.Tasks):
		return StatusSuccess
	case pending == len(inst.Tasks):
		return StatusPending
	default:
		return StatusInProgress
	}
}

// refresh recomputes counters and status after a mutation
func (a *AppInstance) refresh(at time.Time) {
	completed := 0
	for _, t := range a.Tasks {
		if t.Status == StatusSuccess {
			completed++
		}
	}
	a.CompletedTasks = completed
	if len(a.Tasks) > 0 {
		a.TotalTasks = len(a.Tasks)
	}

	a.Status = DeriveStatus(a)
	if a.Status == StatusSuccess {
		a.Exception = nil
		a.SOPCode = ""
	}
	if a.Exception != nil && a.FailedTask() == nil && !a.hasResumedTaskInFlight() {
		a.Exception = nil
		a.SOPCode = ""
	}
	if !at.IsZero() {
		a.LastUpdatedAt = at
	}
	a.Version++
}

// hasResumedTaskInFlight reports a task that still carries the error it was resumed from
func (a *AppInstance) hasResumedTaskInFlight() bool {
	for _, t := range a.Tasks {
		if t.Status == StatusInProgress && t.ErrorCode != "" {
			return true
		}
	}
	return false
}

func markEnded(task *Task, at time.Time) {
	if task.StartTime == nil {
		task.StartTime = timeRef(at)
	}
	task.EndTime = timeRef(at)
}

func timeRef(t time.Time) *time.Time {
	return &t
}
