package service

import (
	"context"
	"time"

	"github.com/goto/salt/log"
	"github.com/robfig/cron/v3"

	"github.com/goto/pipewatch/core/event"
	"github.com/goto/pipewatch/core/schedule"
	"github.com/goto/pipewatch/internal/errors"
	"github.com/goto/pipewatch/internal/telemetry"
)

const (
	metricOverdueJobs = "pipewatch_schedule_overdue_jobs"
	sweepTimeout      = time.Minute
)

// OverdueSweeper periodically derives every job status and persists the flips against the version it read
type OverdueSweeper struct {
	logger       log.Logger
	jobRepo      JobRepository
	execRepo     ExecutionRepository
	eventHandler EventHandler
	interval     time.Duration
	schedule     *cron.Cron
}

func NewOverdueSweeper(logger log.Logger, jobRepo JobRepository, execRepo ExecutionRepository, eventHandler EventHandler, interval time.Duration) *OverdueSweeper {
	return &OverdueSweeper{
		logger:       logger,
		jobRepo:      jobRepo,
		execRepo:     execRepo,
		eventHandler: eventHandler,
		interval:     interval,
		schedule: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}
}

func (w *OverdueSweeper) Initialize() error {
	spec := "@every " + w.interval.String()
	if _, err := w.schedule.AddFunc(spec, w.run); err != nil {
		return errors.InternalError(schedule.EntityJob, "failed to add overdue sweep to cron schedule", err)
	}
	w.schedule.Start()
	return nil
}

func (w *OverdueSweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := w.Sweep(ctx, time.Now()); err != nil {
		w.logger.Error("overdue sweep failed: %s", err)
	}
}

// Sweep recomputes every job and returns the number of overdue jobs
func (w *OverdueSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	jobs, err := w.jobRepo.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	me := errors.NewMultiError("errors in overdue sweep")
	overdueByTenant := map[string]int{}
	overdue := 0
	for _, job := range jobs {
		execs, err := w.execRepo.GetByJob(ctx, job.ID)
		if err != nil {
			me.Append(err)
			continue
		}

		if job.Refresh(execs, now) {
			base := job.Version
			job.Version = base + 1
			err := w.jobRepo.Update(ctx, job, base)
			switch {
			case errors.IsErrorType(err, errors.ErrConflict):
				// a concurrent change wins, the next sweep flips what is still due
				w.logger.Debug("job [%s] changed during overdue sweep, keeping the stored version", job.ID)
				if job, err = w.reload(ctx, job.ID, now); err != nil {
					me.Append(err)
					continue
				}
			case err != nil:
				me.Append(err)
				continue
			case job.Status == schedule.StatusOverdue:
				w.logger.Warn("job [%s] of %s is overdue, expected run at %s", job.ID, job.Tenant, job.NextExpectedRun.Format(time.RFC3339))
				w.eventHandler.HandleEvent(event.NewScheduleOverdueEvent(job))
			}
		}

		if job.Status == schedule.StatusOverdue {
			overdue++
			overdueByTenant[job.Tenant.Name().String()]++
		}
	}

	for tenantName, count := range overdueByTenant {
		telemetry.NewGauge(metricOverdueJobs, map[string]string{"tenant": tenantName}).Set(float64(count))
	}
	for _, job := range jobs {
		if _, ok := overdueByTenant[job.Tenant.Name().String()]; !ok {
			telemetry.NewGauge(metricOverdueJobs, map[string]string{"tenant": job.Tenant.Name().String()}).Set(0)
		}
	}
	if err := telemetry.SetGaugeViaPush(metricOverdueJobs+"_total", nil, float64(overdue)); err != nil {
		w.logger.Warn("error pushing overdue gauge: %s", err)
	}
	return overdue, me.ToErr()
}

// reload derives the status of the stored job without writing it
func (w *OverdueSweeper) reload(ctx context.Context, id schedule.JobID, now time.Time) (*schedule.Job, error) {
	job, err := w.jobRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	execs, err := w.execRepo.GetByJob(ctx, id)
	if err != nil {
		return nil, err
	}
	job.Refresh(execs, now)
	return job, nil
}

func (w *OverdueSweeper) Close() error {
	<-w.schedule.Stop().Done()
	return nil
}
