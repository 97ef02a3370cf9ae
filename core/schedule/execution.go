package schedule

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goto/pipewatch/internal/errors"
)

type ExecStatus string

const (
	ExecSuccess ExecStatus = "Success"
	ExecFailed  ExecStatus = "Failed"
	ExecMissed  ExecStatus = "Missed"
	ExecSkipped ExecStatus = "Skipped"
)

func ExecStatusFrom(status string) (ExecStatus, error) {
	for _, s := range []ExecStatus{ExecSuccess, ExecFailed, ExecMissed, ExecSkipped} {
		if strings.EqualFold(status, string(s)) {
			return s, nil
		}
	}
	return "", errors.InvalidArgument(EntityExecution, "invalid execution status "+status)
}

func (s ExecStatus) String() string {
	return string(s)
}

// Satisfies reports whether an execution in this status accounts for its slot
func (s ExecStatus) Satisfies() bool {
	return s == ExecSuccess || s == ExecFailed || s == ExecSkipped
}

type Rerun struct {
	Reason     string
	User       string
	InstanceID string
	At         time.Time
}

// Execution is one firing of a job for an expected slot
type Execution struct {
	ID         string
	JobID      JobID
	ExpectedAt time.Time
	ActualAt   *time.Time
	Status     ExecStatus
	InstanceID string

	SkipReason string
	Reruns     []*Rerun
}

func NewExecution(jobID JobID, expectedAt time.Time, actualAt *time.Time, status ExecStatus, instanceID string) (*Execution, error) {
	if jobID == "" {
		return nil, errors.InvalidArgument(EntityExecution, "job id is empty")
	}
	if expectedAt.IsZero() {
		return nil, errors.InvalidArgument(EntityExecution, "expected time is empty")
	}
	if status == ExecMissed && actualAt != nil {
		return nil, errors.InvalidArgument(EntityExecution, "missed execution cannot have an actual run time")
	}
	return &Execution{
		ID:         uuid.NewString(),
		JobID:      jobID,
		ExpectedAt: expectedAt,
		ActualAt:   actualAt,
		Status:     status,
		InstanceID: instanceID,
	}, nil
}

func (e *Execution) isRetriable() bool {
	return e.Status == ExecMissed || e.Status == ExecFailed
}

// Skip moves a Missed or Failed execution to Skipped
func (e *Execution) Skip(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errors.InvalidArgument(EntityExecution, "reason is required to skip an execution")
	}
	if !e.isRetriable() {
		return errors.FailedPrecondition(EntityExecution, "cannot skip execution "+e.ID+" in status "+e.Status.String())
	}
	e.Status = ExecSkipped
	e.SkipReason = reason
	return nil
}

// ValidateRerun checks a rerun can be requested, the run status itself is never changed by a rerun
func (e *Execution) ValidateRerun(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errors.InvalidArgument(EntityExecution, "reason is required to rerun an execution")
	}
	if !e.isRetriable() {
		return errors.FailedPrecondition(EntityExecution, "cannot rerun execution "+e.ID+" in status "+e.Status.String())
	}
	return nil
}

func (e *Execution) RecordRerun(reason, user, instanceID string, at time.Time) *Rerun {
	rerun := &Rerun{Reason: reason, User: user, InstanceID: instanceID, At: at}
	e.Reruns = append(e.Reruns, rerun)
	return rerun
}

func (e *Execution) Clone() *Execution {
	c := *e
	if e.ActualAt != nil {
		actual := *e.ActualAt
		c.ActualAt = &actual
	}
	c.Reruns = make([]*Rerun, len(e.Reruns))
	for i, r := range e.Reruns {
		rerun := *r
		c.Reruns[i] = &rerun
	}
	return &c
}
