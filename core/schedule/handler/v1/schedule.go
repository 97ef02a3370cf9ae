package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goto/salt/log"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/core/schedule"
	"github.com/goto/pipewatch/core/schedule/service"
	"github.com/goto/pipewatch/internal/errors"
	"github.com/goto/pipewatch/internal/httpapi"
	"github.com/goto/pipewatch/internal/utils/filter"
)

type ScheduleService interface {
	List(ctx context.Context, user identity.User, filters ...filter.FilterOpt) ([]*schedule.Job, error)
	Get(ctx context.Context, user identity.User, id schedule.JobID) (*schedule.Job, error)
	Acknowledge(ctx context.Context, user identity.User, id schedule.JobID, reason string, confirmed bool) (*schedule.Job, error)
	TriggerNow(ctx context.Context, user identity.User, id schedule.JobID, reason string) (*schedule.Job, *instance.AppInstance, error)
	ListExecutions(ctx context.Context, user identity.User, jobID schedule.JobID, filters ...filter.FilterOpt) ([]*schedule.Execution, error)
	SkipExecution(ctx context.Context, user identity.User, execID, reason string) (*schedule.Execution, error)
	RerunExecution(ctx context.Context, user identity.User, execID, reason string) (*schedule.Execution, *instance.AppInstance, error)
	RecordExecution(ctx context.Context, record service.ExecutionRecord) (*schedule.Execution, error)
}

type ScheduleHandler struct {
	l       log.Logger
	service ScheduleService
}

func (h *ScheduleHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/schedules", h.ListSchedules)
	mux.HandleFunc("GET /api/v1/schedules/{id}", h.GetSchedule)
	mux.HandleFunc("POST /api/v1/schedules/{id}/acknowledge", h.Acknowledge)
	mux.HandleFunc("POST /api/v1/schedules/{id}/trigger", h.TriggerNow)
	mux.HandleFunc("GET /api/v1/schedules/{id}/executions", h.ListExecutions)
	mux.HandleFunc("POST /api/v1/executions", h.RecordExecution)
	mux.HandleFunc("POST /api/v1/executions/{id}/skip", h.SkipExecution)
	mux.HandleFunc("POST /api/v1/executions/{id}/rerun", h.RerunExecution)
}

func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	user, err := httpapi.UserFrom(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to list schedules")
		return
	}

	query := r.URL.Query()
	jobs, err := h.service.List(r.Context(), user,
		filter.WithString(filter.Tenant, query.Get("tenant")),
		filter.WithString(filter.Zone, query.Get("zone")),
		filter.WithString(filter.Application, query.Get("application")),
		filter.WithString(filter.Status, query.Get("status")),
		filter.WithString(filter.Query, strings.TrimSpace(query.Get("q"))),
	)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to list schedules")
		return
	}

	resp := make([]jobResponse, len(jobs))
	for i, job := range jobs {
		resp[i] = toJobResponse(job)
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"schedules": resp})
}

func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	user, id, err := userAndJobID(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to get schedule")
		return
	}

	job, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to get schedule "+id.String())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *ScheduleHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	user, id, err := userAndJobID(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to acknowledge schedule")
		return
	}
	var req reasonRequest
	if err := httpapi.Decode(r, schedule.EntityJob, &req); err != nil {
		httpapi.WriteError(w, h.l, err, "unable to acknowledge schedule")
		return
	}

	job, err := h.service.Acknowledge(r.Context(), user, id, req.Reason, req.Confirmed)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to acknowledge schedule "+id.String())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *ScheduleHandler) TriggerNow(w http.ResponseWriter, r *http.Request) {
	user, id, err := userAndJobID(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to trigger schedule")
		return
	}
	var req reasonRequest
	if err := httpapi.Decode(r, schedule.EntityJob, &req); err != nil {
		httpapi.WriteError(w, h.l, err, "unable to trigger schedule")
		return
	}

	job, inst, err := h.service.TriggerNow(r.Context(), user, id, req.Reason)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to trigger schedule "+id.String())
		return
	}
	httpapi.WriteJSON(w, http.StatusAccepted, map[string]any{
		"schedule": toJobResponse(job),
		"instance": toInstanceRef(inst),
	})
}

func (h *ScheduleHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	user, id, err := userAndJobID(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to list executions")
		return
	}

	window, err := executionWindow(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to list executions")
		return
	}

	execs, err := h.service.ListExecutions(r.Context(), user, id, window...)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to list executions of "+id.String())
		return
	}

	resp := make([]executionResponse, len(execs))
	for i, exec := range execs {
		resp[i] = toExecutionResponse(exec)
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"executions": resp})
}

// executionWindow reads the optional RFC3339 since and until query params
func executionWindow(r *http.Request) ([]filter.FilterOpt, error) {
	var opts []filter.FilterOpt
	for param, operand := range map[string]filter.Operand{"since": filter.StartDate, "until": filter.EndDate} {
		raw := strings.TrimSpace(r.URL.Query().Get(param))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.InvalidArgument(schedule.EntityExecution, param+" must be an RFC3339 time")
		}
		opts = append(opts, filter.WithTime(operand, t))
	}
	return opts, nil
}

// RecordExecution is called by the pipeline scheduler, it carries no user identity
func (h *ScheduleHandler) RecordExecution(w http.ResponseWriter, r *http.Request) {
	var record service.ExecutionRecord
	if err := httpapi.Decode(r, schedule.EntityExecution, &record); err != nil {
		httpapi.WriteError(w, h.l, err, "unable to record execution")
		return
	}

	exec, err := h.service.RecordExecution(r.Context(), record)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to record execution for "+record.JobID)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toExecutionResponse(exec))
}

func (h *ScheduleHandler) SkipExecution(w http.ResponseWriter, r *http.Request) {
	user, err := httpapi.UserFrom(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to skip execution")
		return
	}
	var req reasonRequest
	if err := httpapi.Decode(r, schedule.EntityExecution, &req); err != nil {
		httpapi.WriteError(w, h.l, err, "unable to skip execution")
		return
	}

	execID := r.PathValue("id")
	exec, err := h.service.SkipExecution(r.Context(), user, execID, req.Reason)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to skip execution "+execID)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toExecutionResponse(exec))
}

func (h *ScheduleHandler) RerunExecution(w http.ResponseWriter, r *http.Request) {
	user, err := httpapi.UserFrom(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to rerun execution")
		return
	}
	var req reasonRequest
	if err := httpapi.Decode(r, schedule.EntityExecution, &req); err != nil {
		httpapi.WriteError(w, h.l, err, "unable to rerun execution")
		return
	}

	execID := r.PathValue("id")
	exec, inst, err := h.service.RerunExecution(r.Context(), user, execID, req.Reason)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to rerun execution "+execID)
		return
	}
	httpapi.WriteJSON(w, http.StatusAccepted, map[string]any{
		"execution": toExecutionResponse(exec),
		"instance":  toInstanceRef(inst),
	})
}

func userAndJobID(r *http.Request) (identity.User, schedule.JobID, error) {
	user, err := httpapi.UserFrom(r)
	if err != nil {
		return identity.User{}, "", err
	}
	id, err := schedule.JobIDFrom(r.PathValue("id"))
	if err != nil {
		return identity.User{}, "", err
	}
	return user, id, nil
}

func NewScheduleHandler(l log.Logger, service ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{
		l:       l,
		service: service,
	}
}
