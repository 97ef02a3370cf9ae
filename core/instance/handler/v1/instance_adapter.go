package v1

import (
	"time"

	"github.com/goto/pipewatch/core/access"
	"github.com/goto/pipewatch/core/instance"
)

type taskResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	RetryAttempts int        `json:"retry_attempts"`
	ErrorCode     string     `json:"error_code,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	ExceptionType string     `json:"exception_type,omitempty"`
}

type exceptionResponse struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type cancellationResponse struct {
	Reason      string             `json:"reason"`
	User        string             `json:"user"`
	CancelledAt time.Time          `json:"cancelled_at"`
	Exception   *exceptionResponse `json:"exception,omitempty"`
}

type auditEventResponse struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	Actor         string    `json:"actor"`
	ActorRole     string    `json:"actor_role"`
	Timestamp     time.Time `json:"timestamp"`
	TaskID        string    `json:"task_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	SkipCount     int       `json:"skip_count,omitempty"`
	PreRetryCount int       `json:"pre_retry_count,omitempty"`
}

type instanceResponse struct {
	ID             string                `json:"id"`
	Tenant         string                `json:"tenant"`
	Zone           string                `json:"zone"`
	Application    string                `json:"application"`
	FileName       string                `json:"file_name"`
	Status         string                `json:"status"`
	Tasks          []taskResponse        `json:"tasks"`
	CompletedTasks int                   `json:"completed_tasks"`
	TotalTasks     int                   `json:"total_tasks"`
	StartedAt      time.Time             `json:"started_at"`
	LastUpdatedAt  time.Time             `json:"last_updated_at"`
	RetryCount     int                   `json:"retry_count"`
	ImpactTier     string                `json:"impact_tier"`
	Exception      *exceptionResponse    `json:"exception,omitempty"`
	SOPCode        string                `json:"sop_code,omitempty"`
	Cancellation   *cancellationResponse `json:"cancellation,omitempty"`
	AuditTrail     []auditEventResponse  `json:"audit_trail"`
	IsNotified     bool                  `json:"is_notified"`
	Version        int64                 `json:"version"`
}

type listInstancesResponse struct {
	Instances []instanceResponse `json:"instances"`
}

type decisionResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	Kind    string `json:"kind,omitempty"`
}

type actionRequest struct {
	Action          string `json:"action"`
	TaskID          string `json:"task_id"`
	Reason          string `json:"reason"`
	SkipCount       int    `json:"skip_count"`
	ExpectedVersion int64  `json:"expected_version"`
}

type outcomeRequest struct {
	Status        string     `json:"status"`
	ErrorCode     string     `json:"error_code"`
	ErrorMessage  string     `json:"error_message"`
	ExceptionType string     `json:"exception_type"`
	At            *time.Time `json:"at"`
}

func toInstanceResponse(inst *instance.AppInstance) instanceResponse {
	resp := instanceResponse{
		ID:             inst.ID.String(),
		Tenant:         inst.Tenant.Name().String(),
		Zone:           inst.Tenant.Zone().String(),
		Application:    inst.Application,
		FileName:       inst.FileName,
		Status:         inst.Status.String(),
		Tasks:          make([]taskResponse, len(inst.Tasks)),
		CompletedTasks: inst.CompletedTasks,
		TotalTasks:     inst.TotalTasks,
		StartedAt:      inst.StartedAt,
		LastUpdatedAt:  inst.LastUpdatedAt,
		RetryCount:     inst.RetryCount,
		ImpactTier:     inst.ImpactTier.String(),
		SOPCode:        inst.SOPCode.String(),
		AuditTrail:     toAuditResponse(inst.AuditTrail),
		IsNotified:     inst.IsNotified,
		Version:        inst.Version,
	}
	for i, task := range inst.Tasks {
		resp.Tasks[i] = taskResponse{
			ID:            task.ID,
			Name:          task.Name,
			Status:        task.Status.String(),
			StartTime:     task.StartTime,
			EndTime:       task.EndTime,
			RetryAttempts: task.RetryAttempts,
			ErrorCode:     task.ErrorCode.String(),
			ErrorMessage:  task.ErrorMessage,
			ExceptionType: task.ExceptionType.String(),
		}
	}
	resp.Exception = toExceptionResponse(inst.Exception)
	if inst.Cancellation != nil {
		resp.Cancellation = &cancellationResponse{
			Reason:      inst.Cancellation.Reason,
			User:        inst.Cancellation.User,
			CancelledAt: inst.Cancellation.CancelledAt,
			Exception:   toExceptionResponse(inst.Cancellation.Exception),
		}
	}
	return resp
}

func toExceptionResponse(exc *instance.Exception) *exceptionResponse {
	if exc == nil {
		return nil
	}
	return &exceptionResponse{
		Type:    exc.Type.String(),
		Code:    exc.Code.String(),
		Message: exc.Message,
	}
}

func toAuditResponse(events []*instance.AuditEvent) []auditEventResponse {
	resp := make([]auditEventResponse, len(events))
	for i, e := range events {
		resp[i] = auditEventResponse{
			ID:            e.ID,
			Action:        e.Action.String(),
			Actor:         e.Actor,
			ActorRole:     e.ActorRole.String(),
			Timestamp:     e.Timestamp,
			TaskID:        e.TaskID,
			Reason:        e.Reason,
			SkipCount:     e.Details.SkipCount,
			PreRetryCount: e.Details.PreRetryCount,
		}
	}
	return resp
}

func toPermissionsResponse(decisions map[instance.Action]access.Decision) map[string]decisionResponse {
	resp := make(map[string]decisionResponse, len(decisions))
	for action, d := range decisions {
		resp[action.String()] = decisionResponse{
			Allowed: d.Allowed,
			Reason:  d.Reason,
			Kind:    string(d.Kind),
		}
	}
	return resp
}
