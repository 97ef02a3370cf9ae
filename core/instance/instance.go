package instance

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goto/pipewatch/core/exception"
	"github.com/goto/pipewatch/core/tenant"
	"github.com/goto/pipewatch/internal/errors"
)

const (
	EntityInstance = "instance"
	EntityTask     = "task"
)

type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func IDFrom(id string) (ID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.InvalidArgument(EntityInstance, "instance id is empty")
	}
	return ID(id), nil
}

func (i ID) String() string {
	return string(i)
}

type ImpactTier string

const (
	ImpactCritical ImpactTier = "Critical"
	ImpactHigh     ImpactTier = "High"
	ImpactMedium   ImpactTier = "Medium"
	ImpactLow      ImpactTier = "Low"
)

func ImpactTierFrom(tier string) (ImpactTier, error) {
	if tier == "" {
		return ImpactMedium, nil
	}
	for _, t := range []ImpactTier{ImpactCritical, ImpactHigh, ImpactMedium, ImpactLow} {
		if strings.EqualFold(tier, string(t)) {
			return t, nil
		}
	}
	return "", errors.InvalidArgument(EntityInstance, "invalid business impact tier "+tier)
}

func (t ImpactTier) String() string {
	return string(t)
}

// Exception is the failure classification of the currently failed task
type Exception struct {
	Type    exception.Type
	Code    exception.Code
	Message string
}

type Cancellation struct {
	Reason      string
	User        string
	CancelledAt time.Time
	// Exception is the classification the instance carried when it was cancelled
	Exception *Exception
}

type Task struct {
	ID            string
	Name          string
	Status        Status
	StartTime     *time.Time
	EndTime       *time.Time
	RetryAttempts int
	ErrorCode     exception.Code
	ErrorMessage  string
	ExceptionType exception.Type
}

func (t *Task) clone() *Task {
	c := *t
	if t.StartTime != nil {
		start := *t.StartTime
		c.StartTime = &start
	}
	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}
	return &c
}

func (t *Task) clearError() {
	t.ErrorCode = ""
	t.ErrorMessage = ""
	t.ExceptionType = ""
}

// AppInstance is one pipeline execution against one input file
type AppInstance struct {
	ID          ID
	Tenant      tenant.Tenant
	Application string
	FileName    string
	Status      Status
	Tasks       []*Task

	CompletedTasks int
	TotalTasks     int

	StartedAt     time.Time
	LastUpdatedAt time.Time
	RetryCount    int
	ImpactTier    ImpactTier

	Exception    *Exception
	SOPCode      exception.Code
	Cancellation *Cancellation
	AuditTrail   []*AuditEvent
	IsNotified   bool

	// Version increases on every committed change
	Version int64
}

// New creates a Pending instance whose tasks are all Pending
func New(tnnt tenant.Tenant, application, fileName string, taskNames []string, tier ImpactTier, at time.Time) (*AppInstance, error) {
	if tnnt.IsInvalid() {
		return nil, errors.InvalidArgument(EntityInstance, "tenant is invalid")
	}
	if strings.TrimSpace(application) == "" {
		return nil, errors.InvalidArgument(EntityInstance, "application name is empty")
	}
	if tier == "" {
		tier = ImpactMedium
	}

	tasks := make([]*Task, len(taskNames))
	seen := make(map[string]bool, len(taskNames))
	for i, name := range taskNames {
		if strings.TrimSpace(name) == "" {
			return nil, errors.InvalidArgument(EntityTask, "task name is empty")
		}
		if seen[name] {
			return nil, errors.InvalidArgument(EntityTask, "duplicate task name "+name)
		}
		seen[name] = true
		tasks[i] = &Task{
			ID:     uuid.NewString(),
			Name:   name,
			Status: StatusPending,
		}
	}

	return &AppInstance{
		ID:            NewID(),
		Tenant:        tnnt,
		Application:   application,
		FileName:      fileName,
		Status:        StatusPending,
		Tasks:         tasks,
		TotalTasks:    len(tasks),
		StartedAt:     at,
		LastUpdatedAt: at,
		ImpactTier:    tier,
		Version:       1,
	}, nil
}

// NewTriggered creates the InProgress instance, without tasks, minted by a manual schedule trigger
func NewTriggered(tnnt tenant.Tenant, application string, at time.Time) (*AppInstance, error) {
	inst, err := New(tnnt, application, "", nil, ImpactMedium, at)
	if err != nil {
		return nil, err
	}
	inst.Status = StatusInProgress
	return inst, nil
}

func (a *AppInstance) Task(taskID string) (*Task, error) {
	for _, t := range a.Tasks {
		if t.ID == taskID || t.Name == taskID {
			return t, nil
		}
	}
	return nil, errors.NotFound(EntityTask, "unknown task "+taskID+" in instance "+a.ID.String())
}

func (a *AppInstance) FailedTask() *Task {
	for _, t := range a.Tasks {
		if t.Status == StatusFailed {
			return t
		}
	}
	return nil
}

func (a *AppInstance) IsTerminal() bool {
	return a.Status.IsTerminal()
}

func (a *AppInstance) IsBusinessException() bool {
	return a.Exception != nil && a.Exception.Type == exception.TypeBusiness
}

// Clone returns a deep copy, mutations are applied to clones and committed as a whole
func (a *AppInstance) Clone() *AppInstance {
	c := *a
	c.Tasks = make([]*Task, len(a.Tasks))
	for i, t := range a.Tasks {
		c.Tasks[i] = t.clone()
	}
	if a.Exception != nil {
		exc := *a.Exception
		c.Exception = &exc
	}
	if a.Cancellation != nil {
		cancellation := *a.Cancellation
		if a.Cancellation.Exception != nil {
			exc := *a.Cancellation.Exception
			cancellation.Exception = &exc
		}
		c.Cancellation = &cancellation
	}
	c.AuditTrail = make([]*AuditEvent, len(a.AuditTrail))
	copy(c.AuditTrail, a.AuditTrail)
	return &c
}

// Validate checks the structural invariants of an instance
func (a *AppInstance) Validate() error {
	me := errors.NewMultiError("instance " + a.ID.String() + " violates invariants")
	if a.CompletedTasks > a.TotalTasks {
		me.Append(errors.InternalError(EntityInstance, "completed tasks exceed total tasks", nil))
	}

	failed := 0
	for _, t := range a.Tasks {
		if t.Status == StatusFailed {
			failed++
		}
	}

	switch a.Status {
	case StatusFailed:
		if failed != 1 {
			me.Append(errors.InternalError(EntityInstance, "failed instance must have exactly one failed task", nil))
		}
		if a.Exception == nil || a.Exception.Type == "" {
			me.Append(errors.InternalError(EntityInstance, "failed instance without exception type", nil))
		}
	case StatusCancelled:
		if a.Cancellation == nil {
			me.Append(errors.InternalError(EntityInstance, "cancelled instance without cancellation record", nil))
		}
		if a.Exception != nil {
			me.Append(errors.InternalError(EntityInstance, "exception set on a cancelled instance, it belongs to the cancellation record", nil))
		}
	case StatusSuccess, StatusPending:
		if a.Exception != nil {
			me.Append(errors.InternalError(EntityInstance, "exception set on a "+a.Status.String()+" instance", nil))
		}
	}
	return me.ToErr()
}
