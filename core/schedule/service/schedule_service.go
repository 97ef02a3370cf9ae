package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goto/salt/log"

	"github.com/goto/pipewatch/core/event"
	"github.com/goto/pipewatch/core/event/moderator"
	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/core/schedule"
	"github.com/goto/pipewatch/core/tenant"
	"github.com/goto/pipewatch/internal/errors"
	"github.com/goto/pipewatch/internal/utils"
	"github.com/goto/pipewatch/internal/utils/filter"
)

const sourceSchedule = "schedule"

var (
	// errUnchanged lets a job change skip the commit
	errUnchanged = stderrors.New("job left unchanged")

	jobUpdatePolicy = utils.RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Millisecond}
)

type JobRepository interface {
	Create(ctx context.Context, job *schedule.Job) error
	// Update replaces the job only while the stored version is still baseVersion
	Update(ctx context.Context, job *schedule.Job, baseVersion int64) error
	Get(ctx context.Context, id schedule.JobID) (*schedule.Job, error)
	GetAll(ctx context.Context) ([]*schedule.Job, error)
}

type ExecutionRepository interface {
	Create(ctx context.Context, exec *schedule.Execution) error
	Get(ctx context.Context, id string) (*schedule.Execution, error)
	Update(ctx context.Context, exec *schedule.Execution) error
	GetByJob(ctx context.Context, jobID schedule.JobID) ([]*schedule.Execution, error)
}

// InstanceCreator stores instances minted by manual triggers and reruns
type InstanceCreator interface {
	Create(ctx context.Context, inst *instance.AppInstance, source string) error
}

type EventHandler interface {
	HandleEvent(moderator.Event)
}

type ScheduleService struct {
	jobRepo      JobRepository
	execRepo     ExecutionRepository
	instances    InstanceCreator
	eventHandler EventHandler

	l   log.Logger
	now func() time.Time
}

type ScheduleOption func(*ScheduleService)

// WithClock replaces the wall clock used to derive statuses and stamp runs
func WithClock(now func() time.Time) ScheduleOption {
	return func(s *ScheduleService) {
		s.now = now
	}
}

type ExecutionRecord struct {
	JobID      string     `json:"job_id"`
	ExpectedAt time.Time  `json:"expected_at"`
	ActualAt   *time.Time `json:"actual_at"`
	Status     string     `json:"status"`
	InstanceID string     `json:"instance_id"`
}

func (r ExecutionRecord) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.JobID, validation.Required),
		validation.Field(&r.ExpectedAt, validation.Required),
		validation.Field(&r.Status, validation.Required),
	)
}

func checkScope(user identity.User, tnnt tenant.Tenant, entity, id string) error {
	if user.IsSaaSSRE() && tnnt.Name() != user.Tenant {
		return errors.Forbidden(entity, id+" belongs to another tenant")
	}
	return nil
}

// updateJob applies change to a freshly loaded job and commits it against the version it was loaded at,
// a concurrent commit makes it reload and apply change again
func (s *ScheduleService) updateJob(ctx context.Context, load func() (*schedule.Job, error), change func(*schedule.Job) error) (*schedule.Job, error) {
	var committed *schedule.Job
	err := utils.Retry(ctx, s.l, jobUpdatePolicy, func() error {
		job, err := load()
		if err != nil {
			return utils.Permanent(err)
		}
		base := job.Version
		if err := change(job); err != nil {
			if stderrors.Is(err, errUnchanged) {
				committed = job
				return nil
			}
			return utils.Permanent(err)
		}

		job.Version = base + 1
		if err := s.jobRepo.Update(ctx, job, base); err != nil {
			if errors.IsErrorType(err, errors.ErrConflict) {
				return err
			}
			return utils.Permanent(err)
		}
		committed = job
		return nil
	})
	return committed, err
}

func (s *ScheduleService) scopedJob(ctx context.Context, user identity.User, id schedule.JobID) func() (*schedule.Job, error) {
	return func() (*schedule.Job, error) {
		return s.Get(ctx, user, id)
	}
}

func (s *ScheduleService) storedJob(ctx context.Context, id schedule.JobID) func() (*schedule.Job, error) {
	return func() (*schedule.Job, error) {
		return s.jobRepo.Get(ctx, id)
	}
}

// Register stores a configured job, keeping the runtime state of a job that is already known
func (s *ScheduleService) Register(ctx context.Context, job *schedule.Job) error {
	_, err := s.jobRepo.Get(ctx, job.ID)
	if errors.IsErrorType(err, errors.ErrNotFound) {
		err = s.jobRepo.Create(ctx, job)
		if !errors.IsErrorType(err, errors.ErrAlreadyExists) {
			return err
		}
	} else if err != nil {
		return err
	}

	_, err = s.updateJob(ctx, s.storedJob(ctx, job.ID), func(existing *schedule.Job) error {
		existing.Reconfigure(job, s.now())
		return nil
	})
	return err
}

// List returns jobs with their status derived at read time
func (s *ScheduleService) List(ctx context.Context, user identity.User, filters ...filter.FilterOpt) ([]*schedule.Job, error) {
	f := filter.NewFilter(filters...)
	if user.IsSaaSSRE() {
		f.Set(filter.WithString(filter.Tenant, user.Tenant.String()))
	}

	jobs, err := s.jobRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var result []*schedule.Job
	for _, job := range jobs {
		execs, err := s.execRepo.GetByJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		job.Refresh(execs, now)

		if f.Contains(filter.Tenant) && job.Tenant.Name().String() != f.GetStringValue(filter.Tenant) {
			continue
		}
		if f.Contains(filter.Zone) && !strings.EqualFold(job.Tenant.Zone().String(), f.GetStringValue(filter.Zone)) {
			continue
		}
		if f.Contains(filter.Application) && !strings.EqualFold(job.Application, f.GetStringValue(filter.Application)) {
			continue
		}
		if f.Contains(filter.Status) && !strings.EqualFold(job.Status.String(), f.GetStringValue(filter.Status)) {
			continue
		}
		if f.Contains(filter.Query) {
			query := strings.ToLower(f.GetStringValue(filter.Query))
			if !strings.Contains(strings.ToLower(job.Name), query) && !strings.Contains(strings.ToLower(job.ID.String()), query) {
				continue
			}
		}
		result = append(result, job)
	}
	return result, nil
}

func (s *ScheduleService) Get(ctx context.Context, user identity.User, id schedule.JobID) (*schedule.Job, error) {
	job, err := s.jobRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkScope(user, job.Tenant, schedule.EntityJob, "job "+id.String()); err != nil {
		return nil, err
	}

	execs, err := s.execRepo.GetByJob(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Refresh(execs, s.now())
	return job, nil
}

func (s *ScheduleService) Acknowledge(ctx context.Context, user identity.User, id schedule.JobID, reason string, confirmed bool) (*schedule.Job, error) {
	var ack *schedule.Acknowledgement
	job, err := s.updateJob(ctx, s.scopedJob(ctx, user, id), func(j *schedule.Job) error {
		var err error
		ack, err = j.Acknowledge(reason, confirmed, user.ID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.l.Info("overdue slot %s of job [%s] acknowledged by %s", ack.Slot.Format(time.RFC3339), job.ID, user.ID)
	s.eventHandler.HandleEvent(event.NewScheduleAcknowledgedEvent(job, ack))
	return job, nil
}

// TriggerNow mints an InProgress instance for the job outside its cron slots
func (s *ScheduleService) TriggerNow(ctx context.Context, user identity.User, id schedule.JobID, reason string) (*schedule.Job, *instance.AppInstance, error) {
	now := s.now()
	job, inst, err := s.startRun(ctx, s.scopedJob(ctx, user, id), schedule.TriggerManual, now, func(j *schedule.Job) error {
		return j.ValidateTrigger(reason)
	})
	if err != nil {
		return nil, nil, err
	}

	s.l.Info("job [%s] triggered by %s, instance [%s]", job.ID, user.ID, inst.ID)
	s.eventHandler.HandleEvent(event.NewScheduleTriggeredEvent(job, inst.ID.String(), reason))
	return job, inst, nil
}

// startRun links a new instance as the job's last run and stores the instance once the job is committed
func (s *ScheduleService) startRun(ctx context.Context, load func() (*schedule.Job, error), trigger schedule.Trigger, at time.Time,
	check func(*schedule.Job) error,
) (*schedule.Job, *instance.AppInstance, error) {
	var (
		inst     *instance.AppInstance
		previous *schedule.LastRun
	)
	job, err := s.updateJob(ctx, load, func(j *schedule.Job) error {
		if err := check(j); err != nil {
			return err
		}
		if inst == nil {
			var err error
			if inst, err = instance.NewTriggered(j.Tenant, j.Application, at); err != nil {
				return err
			}
		}
		previous = j.LastRun
		j.RecordRun(inst.ID.String(), inst.Status.String(), trigger, at)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if err := s.instances.Create(ctx, inst, sourceSchedule); err != nil {
		s.unlinkRun(context.WithoutCancel(ctx), job.ID, inst.ID.String(), previous)
		return nil, nil, err
	}
	return job, inst, nil
}

// unlinkRun restores the last run of a job whose instance could not be stored
func (s *ScheduleService) unlinkRun(ctx context.Context, id schedule.JobID, instanceID string, previous *schedule.LastRun) {
	_, err := s.updateJob(ctx, s.storedJob(ctx, id), func(j *schedule.Job) error {
		if j.LastRun == nil || j.LastRun.InstanceID != instanceID {
			return errUnchanged
		}
		j.LastRun = previous
		return nil
	})
	if err != nil {
		s.l.Error("error unlinking instance [%s] from job [%s]: %s", instanceID, id, err)
	}
}

// ListExecutions returns the job's executions, StartDate and EndDate bound the expected time as [start, end)
func (s *ScheduleService) ListExecutions(ctx context.Context, user identity.User, jobID schedule.JobID, filters ...filter.FilterOpt) ([]*schedule.Execution, error) {
	if _, err := s.Get(ctx, user, jobID); err != nil {
		return nil, err
	}
	execs, err := s.execRepo.GetByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	f := filter.NewFilter(filters...)
	if !f.Contains(filter.StartDate) && !f.Contains(filter.EndDate) {
		return execs, nil
	}
	windowed := make([]*schedule.Execution, 0, len(execs))
	for _, exec := range execs {
		if f.Contains(filter.StartDate) && exec.ExpectedAt.Before(f.GetTimeValue(filter.StartDate)) {
			continue
		}
		if f.Contains(filter.EndDate) && !exec.ExpectedAt.Before(f.GetTimeValue(filter.EndDate)) {
			continue
		}
		windowed = append(windowed, exec)
	}
	return windowed, nil
}

func (s *ScheduleService) getExecution(ctx context.Context, user identity.User, execID string) (*schedule.Execution, *schedule.Job, error) {
	exec, err := s.execRepo.Get(ctx, execID)
	if err != nil {
		return nil, nil, err
	}
	job, err := s.Get(ctx, user, exec.JobID)
	if err != nil {
		return nil, nil, err
	}
	return exec, job, nil
}

func (s *ScheduleService) SkipExecution(ctx context.Context, user identity.User, execID, reason string) (*schedule.Execution, error) {
	exec, job, err := s.getExecution(ctx, user, execID)
	if err != nil {
		return nil, err
	}
	if err := exec.Skip(reason); err != nil {
		return nil, err
	}
	if err := s.execRepo.Update(ctx, exec); err != nil {
		return nil, err
	}

	_, err = s.updateJob(ctx, s.scopedJob(ctx, user, job.ID), func(j *schedule.Job) error {
		if !j.Settle(exec) {
			return errUnchanged
		}
		execs, err := s.execRepo.GetByJob(ctx, j.ID)
		if err != nil {
			return err
		}
		j.Refresh(execs, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.l.Info("execution [%s] of job [%s] skipped by %s", exec.ID, job.ID, user.ID)
	s.eventHandler.HandleEvent(event.NewExecutionSkippedEvent(exec, reason))
	return exec, nil
}

// RerunExecution records the rerun and mints a fresh instance, the execution keeps its run status
func (s *ScheduleService) RerunExecution(ctx context.Context, user identity.User, execID, reason string) (*schedule.Execution, *instance.AppInstance, error) {
	exec, stored, err := s.getExecution(ctx, user, execID)
	if err != nil {
		return nil, nil, err
	}
	if err := exec.ValidateRerun(reason); err != nil {
		return nil, nil, err
	}

	now := s.now()
	job, inst, err := s.startRun(ctx, s.scopedJob(ctx, user, stored.ID), schedule.TriggerRerun, now, func(j *schedule.Job) error {
		if !j.Enabled {
			return errors.FailedPrecondition(schedule.EntityJob, "job "+j.ID.String()+" is disabled")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	exec.RecordRerun(reason, user.ID, inst.ID.String(), now)
	if err := s.execRepo.Update(ctx, exec); err != nil {
		s.l.Error("rerun instance [%s] of execution [%s] was created but the execution was not updated: %s", inst.ID, exec.ID, err)
		return nil, nil, err
	}

	s.l.Info("execution [%s] of job [%s] rerun by %s, instance [%s]", exec.ID, job.ID, user.ID, inst.ID)
	s.eventHandler.HandleEvent(event.NewExecutionRerunEvent(exec, reason))
	return exec, inst, nil
}

// RecordExecution stores a firing reported by the pipeline scheduler
func (s *ScheduleService) RecordExecution(ctx context.Context, record ExecutionRecord) (*schedule.Execution, error) {
	if err := record.Validate(); err != nil {
		return nil, errors.InvalidArgument(schedule.EntityExecution, err.Error())
	}
	status, err := schedule.ExecStatusFrom(record.Status)
	if err != nil {
		return nil, err
	}

	job, err := s.jobRepo.Get(ctx, schedule.JobID(record.JobID))
	if err != nil {
		return nil, err
	}
	exec, err := schedule.NewExecution(job.ID, record.ExpectedAt, record.ActualAt, status, record.InstanceID)
	if err != nil {
		return nil, err
	}
	if err := s.execRepo.Create(ctx, exec); err != nil {
		return nil, err
	}

	_, err = s.updateJob(ctx, s.storedJob(ctx, job.ID), func(j *schedule.Job) error {
		execs, err := s.execRepo.GetByJob(ctx, j.ID)
		if err != nil {
			return err
		}
		return j.RecordExecution(exec, execs, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.l.Debug("execution [%s] recorded for job [%s] slot %s as %s", exec.ID, job.ID, exec.ExpectedAt.Format(time.RFC3339), exec.Status)
	return exec, nil
}

func NewScheduleService(logger log.Logger, jobRepo JobRepository, execRepo ExecutionRepository, instances InstanceCreator,
	eventHandler EventHandler, opts ...ScheduleOption,
) *ScheduleService {
	s := &ScheduleService{
		jobRepo:      jobRepo,
		execRepo:     execRepo,
		instances:    instances,
		eventHandler: eventHandler,
		l:            logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
