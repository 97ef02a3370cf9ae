package inmemory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/internal/errors"
)

type InstanceRepository struct {
	mu        sync.RWMutex
	instances map[instance.ID]*instance.AppInstance
}

func NewInstanceRepository() *InstanceRepository {
	return &InstanceRepository{
		instances: map[instance.ID]*instance.AppInstance{},
	}
}

func (r *InstanceRepository) Create(_ context.Context, inst *instance.AppInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instances[inst.ID]; ok {
		return errors.AlreadyExists(instance.EntityInstance, "instance "+inst.ID.String()+" already exists")
	}
	r.instances[inst.ID] = inst.Clone()
	return nil
}

func (r *InstanceRepository) Get(_ context.Context, id instance.ID) (*instance.AppInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return nil, errors.NotFound(instance.EntityInstance, "instance "+id.String()+" not found")
	}
	return inst.Clone(), nil
}

// GetAll returns instances ordered by start time, most recent first
func (r *InstanceRepository) GetAll(_ context.Context) ([]*instance.AppInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*instance.AppInstance, 0, len(r.instances))
	for _, inst := range r.instances {
		result = append(result, inst.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

// Update replaces the stored instance only when it still has baseVersion
func (r *InstanceRepository) Update(_ context.Context, inst *instance.AppInstance, baseVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.instances[inst.ID]
	if !ok {
		return errors.NotFound(instance.EntityInstance, "instance "+inst.ID.String()+" not found")
	}
	if stored.Version != baseVersion {
		return errors.Conflict(instance.EntityInstance, "instance "+inst.ID.String()+" changed concurrently, stored version "+
			strconv.FormatInt(stored.Version, 10)+" expected "+strconv.FormatInt(baseVersion, 10))
	}
	r.instances[inst.ID] = inst.Clone()
	return nil
}
