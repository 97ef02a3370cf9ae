package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/goto/salt/log"

	"github.com/goto/pipewatch/core/access"
	"github.com/goto/pipewatch/core/exception"
	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/core/instance/service"
	"github.com/goto/pipewatch/internal/httpapi"
	"github.com/goto/pipewatch/internal/utils/filter"
)

type InstanceService interface {
	List(ctx context.Context, user identity.User, filters ...filter.FilterOpt) ([]*instance.AppInstance, error)
	Get(ctx context.Context, user identity.User, id instance.ID) (*instance.AppInstance, error)
	GetAuditTrail(ctx context.Context, user identity.User, id instance.ID) ([]*instance.AuditEvent, error)
	Permissions(ctx context.Context, user identity.User, id instance.ID) (map[instance.Action]access.Decision, error)
	Submit(ctx context.Context, sub service.Submission) (*instance.AppInstance, error)
	ApplyTaskOutcome(ctx context.Context, id instance.ID, taskID string, outcome instance.Outcome) (*instance.AppInstance, error)
	Execute(ctx context.Context, cmd service.Command) (*instance.AppInstance, error)
}

type InstanceHandler struct {
	l       log.Logger
	service InstanceService
}

func (h *InstanceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/instances", h.ListInstances)
	mux.HandleFunc("POST /api/v1/instances", h.SubmitInstance)
	mux.HandleFunc("GET /api/v1/instances/{id}", h.GetInstance)
	mux.HandleFunc("GET /api/v1/instances/{id}/audit", h.GetAuditTrail)
	mux.HandleFunc("GET /api/v1/instances/{id}/permissions", h.GetPermissions)
	mux.HandleFunc("POST /api/v1/instances/{id}/tasks/{task_id}/outcome", h.ApplyTaskOutcome)
	mux.HandleFunc("POST /api/v1/instances/{id}/actions", h.ExecuteAction)
}

func (h *InstanceHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	user, err := httpapi.UserFrom(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to list instances")
		return
	}

	query := r.URL.Query()
	filters := []filter.FilterOpt{
		filter.WithString(filter.Tenant, query.Get("tenant")),
		filter.WithString(filter.Zone, query.Get("zone")),
		filter.WithString(filter.ExceptionType, query.Get("exception_type")),
		filter.WithString(filter.Application, query.Get("application")),
		filter.WithString(filter.Query, strings.TrimSpace(query.Get("q"))),
	}
	if statuses := splitList(query.Get("status")); len(statuses) > 0 {
		filters = append(filters, filter.WithStringArray(filter.Statuses, statuses))
	}

	instances, err := h.service.List(r.Context(), user, filters...)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to list instances")
		return
	}

	resp := listInstancesResponse{Instances: make([]instanceResponse, len(instances))}
	for i, inst := range instances {
		resp.Instances[i] = toInstanceResponse(inst)
	}
	httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (h *InstanceHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	user, id, err := userAndID(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to get instance")
		return
	}

	inst, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to get instance "+id.String())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toInstanceResponse(inst))
}

func (h *InstanceHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	user, id, err := userAndID(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to get audit trail")
		return
	}

	events, err := h.service.GetAuditTrail(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to get audit trail of "+id.String())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"events": toAuditResponse(events)})
}

func (h *InstanceHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	user, id, err := userAndID(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to get permissions")
		return
	}

	decisions, err := h.service.Permissions(r.Context(), user, id)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to get permissions on "+id.String())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"actions": toPermissionsResponse(decisions)})
}

func (h *InstanceHandler) SubmitInstance(w http.ResponseWriter, r *http.Request) {
	var sub service.Submission
	if err := httpapi.Decode(r, instance.EntityInstance, &sub); err != nil {
		httpapi.WriteError(w, h.l, err, "unable to submit instance")
		return
	}

	inst, err := h.service.Submit(r.Context(), sub)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to submit instance")
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toInstanceResponse(inst))
}

// ApplyTaskOutcome is called by the pipeline runtime, it carries no user identity
func (h *InstanceHandler) ApplyTaskOutcome(w http.ResponseWriter, r *http.Request) {
	id, err := instance.IDFrom(r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to apply task outcome")
		return
	}

	var req outcomeRequest
	if err := httpapi.Decode(r, instance.EntityTask, &req); err != nil {
		httpapi.WriteError(w, h.l, err, "unable to apply task outcome")
		return
	}
	outcome, err := toOutcome(req)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to apply task outcome")
		return
	}

	inst, err := h.service.ApplyTaskOutcome(r.Context(), id, r.PathValue("task_id"), outcome)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to apply task outcome on "+id.String())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toInstanceResponse(inst))
}

func (h *InstanceHandler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	user, id, err := userAndID(r)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to execute action")
		return
	}

	var req actionRequest
	if err := httpapi.Decode(r, instance.EntityInstance, &req); err != nil {
		httpapi.WriteError(w, h.l, err, "unable to execute action")
		return
	}
	action, err := instance.ActionFrom(req.Action)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to execute action")
		return
	}

	inst, err := h.service.Execute(r.Context(), service.Command{
		Action:          action,
		InstanceID:      id,
		TaskID:          req.TaskID,
		User:            user,
		Reason:          req.Reason,
		SkipCount:       req.SkipCount,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to "+action.String()+" instance "+id.String())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toInstanceResponse(inst))
}

func userAndID(r *http.Request) (identity.User, instance.ID, error) {
	user, err := httpapi.UserFrom(r)
	if err != nil {
		return identity.User{}, "", err
	}
	id, err := instance.IDFrom(r.PathValue("id"))
	if err != nil {
		return identity.User{}, "", err
	}
	return user, id, nil
}

func toOutcome(req outcomeRequest) (instance.Outcome, error) {
	status, err := instance.StatusFrom(req.Status)
	if err != nil {
		return instance.Outcome{}, err
	}

	outcome := instance.Outcome{
		Status:       status,
		ErrorCode:    exception.Code(strings.TrimSpace(req.ErrorCode)),
		ErrorMessage: req.ErrorMessage,
	}
	if req.ExceptionType != "" {
		outcome.ExceptionType, err = exception.TypeFrom(req.ExceptionType)
		if err != nil {
			return instance.Outcome{}, err
		}
	}
	if req.At != nil {
		outcome.At = *req.At
	}
	return outcome, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func NewInstanceHandler(l log.Logger, service InstanceService) *InstanceHandler {
	return &InstanceHandler{
		l:       l,
		service: service,
	}
}
