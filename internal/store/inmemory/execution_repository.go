package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/goto/pipewatch/core/schedule"
	"github.com/goto/pipewatch/internal/errors"
)

type ExecutionRepository struct {
	mu         sync.RWMutex
	executions map[string]*schedule.Execution
}

func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{
		executions: map[string]*schedule.Execution{},
	}
}

func (r *ExecutionRepository) Create(_ context.Context, exec *schedule.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[exec.ID]; ok {
		return errors.AlreadyExists(schedule.EntityExecution, "execution "+exec.ID+" already exists")
	}
	for _, existing := range r.executions {
		if existing.JobID == exec.JobID && existing.ExpectedAt.Equal(exec.ExpectedAt) {
			return errors.AlreadyExists(schedule.EntityExecution, "execution for job "+exec.JobID.String()+
				" at "+exec.ExpectedAt.String()+" already exists")
		}
	}
	r.executions[exec.ID] = exec.Clone()
	return nil
}

func (r *ExecutionRepository) Get(_ context.Context, id string) (*schedule.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executions[id]
	if !ok {
		return nil, errors.NotFound(schedule.EntityExecution, "execution "+id+" not found")
	}
	return exec.Clone(), nil
}

func (r *ExecutionRepository) Update(_ context.Context, exec *schedule.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[exec.ID]; !ok {
		return errors.NotFound(schedule.EntityExecution, "execution "+exec.ID+" not found")
	}
	r.executions[exec.ID] = exec.Clone()
	return nil
}

// GetByJob returns the job's executions ordered by expected time, most recent first
func (r *ExecutionRepository) GetByJob(_ context.Context, jobID schedule.JobID) ([]*schedule.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*schedule.Execution
	for _, exec := range r.executions {
		if exec.JobID == jobID {
			result = append(result, exec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpectedAt.After(result[j].ExpectedAt)
	})
	return result, nil
}
