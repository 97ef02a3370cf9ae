package instance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/core/exception"
	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/core/tenant"
	"github.com/goto/pipewatch/internal/errors"
)

var startedAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newInstance(t *testing.T, tasks ...string) *instance.AppInstance {
	t.Helper()
	tnnt, err := tenant.NewTenant("acme", "eu-1")
	assert.NoError(t, err)
	if len(tasks) == 0 {
		tasks = []string{"ingest", "validate", "load"}
	}
	inst, err := instance.New(tnnt, "orders", "orders_20240501.csv", tasks, instance.ImpactHigh, startedAt)
	assert.NoError(t, err)
	return inst
}

func apply(t *testing.T, inst *instance.AppInstance, task string, outcome instance.Outcome) *instance.AppInstance {
	t.Helper()
	catalog, err := exception.DefaultCatalog()
	assert.NoError(t, err)
	updated, err := instance.ApplyTaskOutcome(inst, task, outcome, catalog)
	assert.NoError(t, err)
	assert.NoError(t, updated.Validate())
	return updated
}

func TestNew(t *testing.T) {
	tnnt, _ := tenant.NewTenant("acme", "eu-1")
	t.Run("returns error when tenant is invalid", func(t *testing.T) {
		_, err := instance.New(tenant.Tenant{}, "orders", "", nil, "", startedAt)
		assert.EqualError(t, err, "instance: tenant is invalid")
	})
	t.Run("returns error when application is empty", func(t *testing.T) {
		_, err := instance.New(tnnt, " ", "", nil, "", startedAt)
		assert.EqualError(t, err, "instance: application name is empty")
	})
	t.Run("returns error on duplicate task names", func(t *testing.T) {
		_, err := instance.New(tnnt, "orders", "", []string{"a", "a"}, "", startedAt)
		assert.EqualError(t, err, "task: duplicate task name a")
	})
	t.Run("creates pending instance", func(t *testing.T) {
		inst, err := instance.New(tnnt, "orders", "f.csv", []string{"a", "b"}, "", startedAt)
		assert.NoError(t, err)
		assert.Equal(t, instance.StatusPending, inst.Status)
		assert.Equal(t, 2, inst.TotalTasks)
		assert.Equal(t, 0, inst.CompletedTasks)
		assert.Equal(t, instance.ImpactMedium, inst.ImpactTier)
		assert.Equal(t, int64(1), inst.Version)
	})
	t.Run("NewTriggered creates in progress instance without tasks", func(t *testing.T) {
		inst, err := instance.NewTriggered(tnnt, "orders", startedAt)
		assert.NoError(t, err)
		assert.Equal(t, instance.StatusInProgress, inst.Status)
		assert.Empty(t, inst.Tasks)
		assert.Equal(t, 0, inst.TotalTasks)
	})
}

func TestApplyTaskOutcome(t *testing.T) {
	catalog, _ := exception.DefaultCatalog()
	at := startedAt.Add(time.Minute)

	t.Run("returns error for unknown task", func(t *testing.T) {
		inst := newInstance(t)
		_, err := instance.ApplyTaskOutcome(inst, "unknown", instance.Outcome{Status: instance.StatusInProgress, At: at}, catalog)
		assert.True(t, errors.IsErrorType(err, errors.ErrNotFound))
	})
	t.Run("marks instance in progress when a task starts", func(t *testing.T) {
		inst := newInstance(t)
		updated := apply(t, inst, "ingest", instance.Outcome{Status: instance.StatusInProgress, At: at})

		assert.Equal(t, instance.StatusInProgress, updated.Status)
		task, _ := updated.Task("ingest")
		assert.Equal(t, at, *task.StartTime)
		assert.Equal(t, at, updated.LastUpdatedAt)
		assert.Equal(t, inst.Version+1, updated.Version)
		// original untouched
		assert.Equal(t, instance.StatusPending, inst.Status)
	})
	t.Run("recomputes completed tasks and succeeds when all tasks succeed", func(t *testing.T) {
		inst := newInstance(t, "ingest", "load")
		inst = apply(t, inst, "ingest", instance.Outcome{Status: instance.StatusSuccess, At: at})
		assert.Equal(t, 1, inst.CompletedTasks)
		assert.Equal(t, instance.StatusInProgress, inst.Status)

		inst = apply(t, inst, "load", instance.Outcome{Status: instance.StatusSuccess, At: at})
		assert.Equal(t, 2, inst.CompletedTasks)
		assert.Equal(t, instance.StatusSuccess, inst.Status)
		assert.LessOrEqual(t, inst.CompletedTasks, inst.TotalTasks)
	})
	t.Run("fails instance and classifies exception from catalog", func(t *testing.T) {
		inst := newInstance(t)
		inst = apply(t, inst, "ingest", instance.Outcome{Status: instance.StatusSuccess, At: at})
		inst = apply(t, inst, "validate", instance.Outcome{
			Status:       instance.StatusFailed,
			ErrorCode:    "SchemaValidationException",
			ErrorMessage: "column amount invalid",
			At:           at,
		})

		assert.Equal(t, instance.StatusFailed, inst.Status)
		assert.Equal(t, exception.TypeBusiness, inst.Exception.Type)
		assert.Equal(t, exception.Code("SchemaValidationException"), inst.Exception.Code)
		assert.Equal(t, exception.Code("SchemaValidationException"), inst.SOPCode)
		failed := inst.FailedTask()
		assert.Equal(t, "validate", failed.Name)
		assert.Equal(t, exception.TypeBusiness, failed.ExceptionType)
	})
	t.Run("leaves sop empty for codes without sop", func(t *testing.T) {
		inst := newInstance(t)
		inst = apply(t, inst, "ingest", instance.Outcome{Status: instance.StatusFailed, ErrorCode: "DuplicateFileException", At: at})
		assert.Equal(t, exception.Code(""), inst.SOPCode)
	})
	t.Run("uses reported exception type for uncatalogued code", func(t *testing.T) {
		inst := newInstance(t)
		inst = apply(t, inst, "ingest", instance.Outcome{
			Status: instance.StatusFailed, ErrorCode: "DiskFullException", ExceptionType: exception.TypeSystem, At: at,
		})
		assert.Equal(t, exception.TypeSystem, inst.Exception.Type)
	})
	t.Run("returns error for uncatalogued code without type", func(t *testing.T) {
		inst := newInstance(t)
		_, err := instance.ApplyTaskOutcome(inst, "ingest", instance.Outcome{Status: instance.StatusFailed, ErrorCode: "DiskFullException", At: at}, catalog)
		assert.True(t, errors.IsErrorType(err, errors.ErrInvalidArgument))
	})
	t.Run("returns error for failure without error code", func(t *testing.T) {
		inst := newInstance(t)
		_, err := instance.ApplyTaskOutcome(inst, "ingest", instance.Outcome{Status: instance.StatusFailed, At: at}, catalog)
		assert.EqualError(t, err, "task: failed outcome requires an error code")
	})
	t.Run("rejects a second failed task", func(t *testing.T) {
		inst := newInstance(t)
		inst = apply(t, inst, "ingest", instance.Outcome{Status: instance.StatusInProgress, At: at})
		inst = apply(t, inst, "validate", instance.Outcome{Status: instance.StatusFailed, ErrorCode: "TimeoutException", At: at})

		_, err := instance.ApplyTaskOutcome(inst, "ingest", instance.Outcome{Status: instance.StatusFailed, ErrorCode: "TimeoutException", At: at}, catalog)
		assert.True(t, errors.IsErrorType(err, errors.ErrFailedPrecond))
	})
	t.Run("rejects outcome for a failed task", func(t *testing.T) {
		inst := newInstance(t)
		inst = apply(t, inst, "ingest", instance.Outcome{Status: instance.StatusFailed, ErrorCode: "TimeoutException", At: at})

		_, err := instance.ApplyTaskOutcome(inst, "ingest", instance.Outcome{Status: instance.StatusSuccess, At: at}, catalog)
		assert.EqualError(t, err, "task: task ingest cannot move from Failed to Success")
	})
	t.Run("rejects outcomes on terminal instances", func(t *testing.T) {
		inst := newInstance(t, "ingest")
		inst = apply(t, inst, "ingest", instance.Outcome{Status: instance.StatusSuccess, At: at})

		_, err := instance.ApplyTaskOutcome(inst, "ingest", instance.Outcome{Status: instance.StatusInProgress, At: at}, catalog)
		assert.True(t, errors.IsErrorType(err, errors.ErrFailedPrecond))
	})
	t.Run("rejects pending as outcome", func(t *testing.T) {
		inst := newInstance(t)
		_, err := instance.ApplyTaskOutcome(inst, "ingest", instance.Outcome{Status: instance.StatusPending, At: at}, catalog)
		assert.True(t, errors.IsErrorType(err, errors.ErrFailedPrecond))
	})
}

func TestDeriveStatus(t *testing.T) {
	testCases := []struct {
		name     string
		tasks    []instance.Status
		expected instance.Status
	}{
		{"all pending", []instance.Status{instance.StatusPending, instance.StatusPending}, instance.StatusPending},
		{"one running", []instance.Status{instance.StatusSuccess, instance.StatusInProgress}, instance.StatusInProgress},
		{"success then pending", []instance.Status{instance.StatusSuccess, instance.StatusPending}, instance.StatusInProgress},
		{"one failed", []instance.Status{instance.StatusSuccess, instance.StatusFailed, instance.StatusPending}, instance.StatusFailed},
		{"all success", []instance.Status{instance.StatusSuccess, instance.StatusSuccess}, instance.StatusSuccess},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inst := &instance.AppInstance{}
			for _, s := range tc.tasks {
				inst.Tasks = append(inst.Tasks, &instance.Task{Status: s})
			}
			assert.Equal(t, tc.expected, instance.DeriveStatus(inst))
		})
	}
	t.Run("cancellation overrides task state", func(t *testing.T) {
		inst := &instance.AppInstance{
			Tasks:        []*instance.Task{{Status: instance.StatusFailed}},
			Cancellation: &instance.Cancellation{Reason: "dup"},
		}
		assert.Equal(t, instance.StatusCancelled, instance.DeriveStatus(inst))
	})
	t.Run("keeps status without tasks", func(t *testing.T) {
		inst := &instance.AppInstance{Status: instance.StatusInProgress}
		assert.Equal(t, instance.StatusInProgress, instance.DeriveStatus(inst))
	})
}

func TestStatusFrom(t *testing.T) {
	s, err := instance.StatusFrom("in_progress")
	assert.NoError(t, err)
	assert.Equal(t, instance.StatusInProgress, s)

	s, err = instance.StatusFrom("failed")
	assert.NoError(t, err)
	assert.Equal(t, instance.StatusFailed, s)

	_, err = instance.StatusFrom("done")
	assert.Error(t, err)
}
