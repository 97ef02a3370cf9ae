package schedule

import (
	"strings"
	"time"

	"github.com/goto/pipewatch/core/tenant"
	"github.com/goto/pipewatch/internal/errors"
	"github.com/goto/pipewatch/internal/lib/cron"
)

const (
	EntityJob       = "schedule_job"
	EntityExecution = "schedule_execution"
)

type JobID string

func JobIDFrom(id string) (JobID, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.InvalidArgument(EntityJob, "job id is empty")
	}
	return JobID(id), nil
}

func (i JobID) String() string {
	return string(i)
}

type Status string

const (
	StatusOnSchedule Status = "OnSchedule"
	StatusOverdue    Status = "Overdue"
	StatusDisabled   Status = "Disabled"
)

func StatusFrom(status string) (Status, error) {
	for _, s := range []Status{StatusOnSchedule, StatusOverdue, StatusDisabled} {
		if strings.EqualFold(status, string(s)) {
			return s, nil
		}
	}
	return "", errors.InvalidArgument(EntityJob, "invalid schedule status "+status)
}

func (s Status) String() string {
	return string(s)
}

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerRerun     Trigger = "rerun"
)

type LastRun struct {
	InstanceID string
	Status     string
	At         time.Time
	Trigger    Trigger
}

type Acknowledgement struct {
	Reason string
	User   string
	// Slot is the overdue expected run that was acknowledged
	Slot time.Time
	At   time.Time
}

// Job is a recurring trigger that is expected to create an instance on every cron slot
type Job struct {
	ID          JobID
	Name        string
	Tenant      tenant.Tenant
	Application string
	Timezone    string
	Enabled     bool

	spec *cron.ScheduleSpec

	LastRun          *LastRun
	NextExpectedRun  time.Time
	Status           Status
	Acknowledgements []*Acknowledgement

	// Version increases on every committed change, updates are rejected against a stale version
	Version int64
}

// NewJob creates a job whose first expected run is the slot following now
func NewJob(id JobID, name string, tnnt tenant.Tenant, application, expression, timezone string, enabled bool, now time.Time) (*Job, error) {
	if id == "" {
		return nil, errors.InvalidArgument(EntityJob, "job id is empty")
	}
	if tnnt.IsInvalid() {
		return nil, errors.InvalidArgument(EntityJob, "tenant is invalid for job "+id.String())
	}
	if strings.TrimSpace(application) == "" {
		return nil, errors.InvalidArgument(EntityJob, "application name is empty for job "+id.String())
	}
	spec, err := cron.ParseCronScheduleInLocation(expression, timezone)
	if err != nil {
		return nil, errors.InvalidArgument(EntityJob, "invalid cron schedule for job "+id.String()+": "+err.Error())
	}
	if name == "" {
		name = id.String()
	}

	job := &Job{
		ID:              id,
		Name:            name,
		Tenant:          tnnt,
		Application:     application,
		Timezone:        timezone,
		Enabled:         enabled,
		spec:            spec,
		NextExpectedRun: spec.Next(now),
	}
	job.Status = RecomputeStatus(job, nil, now)
	return job, nil
}

func (j *Job) Expression() string {
	return j.spec.String()
}

// NextSlot returns the first cron slot after t in the job's timezone
func (j *Job) NextSlot(t time.Time) time.Time {
	return j.spec.Next(t)
}

// Reconfigure takes the configuration of configured and keeps the runtime state, a changed cron expression restarts the expectation
func (j *Job) Reconfigure(configured *Job, now time.Time) {
	if j.Expression() != configured.Expression() {
		j.NextExpectedRun = configured.NextExpectedRun
	}
	j.Name = configured.Name
	j.Tenant = configured.Tenant
	j.Application = configured.Application
	j.Timezone = configured.Timezone
	j.Enabled = configured.Enabled
	j.spec = configured.spec
	j.Status = RecomputeStatus(j, nil, now)
}

func (j *Job) Clone() *Job {
	c := *j
	if j.LastRun != nil {
		lastRun := *j.LastRun
		c.LastRun = &lastRun
	}
	c.Acknowledgements = make([]*Acknowledgement, len(j.Acknowledgements))
	for i, ack := range j.Acknowledgements {
		a := *ack
		c.Acknowledgements[i] = &a
	}
	return &c
}
