package instance

import "time"

type task struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	RetryAttempts int    `json:"retry_attempts"`
	ErrorCode     string `json:"error_code"`
	ExceptionType string `json:"exception_type"`
}

type exception struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type auditEvent struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	ActorRole string    `json:"actor_role"`
	Timestamp time.Time `json:"timestamp"`
	TaskID    string    `json:"task_id"`
	Reason    string    `json:"reason"`
	SkipCount int       `json:"skip_count"`
}

type appInstance struct {
	ID             string     `json:"id"`
	Tenant         string     `json:"tenant"`
	Zone           string     `json:"zone"`
	Application    string     `json:"application"`
	FileName       string     `json:"file_name"`
	Status         string     `json:"status"`
	Tasks          []task     `json:"tasks"`
	CompletedTasks int        `json:"completed_tasks"`
	TotalTasks     int        `json:"total_tasks"`
	LastUpdatedAt  time.Time  `json:"last_updated_at"`
	RetryCount     int        `json:"retry_count"`
	ImpactTier     string     `json:"impact_tier"`
	Exception      *exception `json:"exception"`
	SOPCode        string     `json:"sop_code"`
	IsNotified     bool       `json:"is_notified"`
	Version        int64      `json:"version"`
}

type listResponse struct {
	Instances []appInstance `json:"instances"`
}

type auditResponse struct {
	Events []auditEvent `json:"events"`
}

type actionRequest struct {
	Action          string `json:"action"`
	TaskID          string `json:"task_id,omitempty"`
	Reason          string `json:"reason,omitempty"`
	SkipCount       int    `json:"skip_count,omitempty"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}
