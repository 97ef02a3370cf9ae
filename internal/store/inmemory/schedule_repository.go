package inmemory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/goto/pipewatch/core/schedule"
	"github.com/goto/pipewatch/internal/errors"
)

type ScheduleRepository struct {
	mu   sync.RWMutex
	jobs map[schedule.JobID]*schedule.Job
}

func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{
		jobs: map[schedule.JobID]*schedule.Job{},
	}
}

func (r *ScheduleRepository) Create(_ context.Context, job *schedule.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return errors.AlreadyExists(schedule.EntityJob, "job "+job.ID.String()+" already exists")
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

// Update replaces the stored job only when it still has baseVersion
func (r *ScheduleRepository) Update(_ context.Context, job *schedule.Job, baseVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[job.ID]
	if !ok {
		return errors.NotFound(schedule.EntityJob, "job "+job.ID.String()+" not found")
	}
	if stored.Version != baseVersion {
		return errors.Conflict(schedule.EntityJob, "job "+job.ID.String()+" changed concurrently, stored version "+
			strconv.FormatInt(stored.Version, 10)+" expected "+strconv.FormatInt(baseVersion, 10))
	}
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *ScheduleRepository) Get(_ context.Context, id schedule.JobID) (*schedule.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.NotFound(schedule.EntityJob, "job "+id.String()+" not found")
	}
	return job.Clone(), nil
}

func (r *ScheduleRepository) GetAll(_ context.Context) ([]*schedule.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*schedule.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}
