package v1

import (
	"time"

	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/core/schedule"
)

type lastRunResponse struct {
	InstanceID string    `json:"instance_id"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
	Trigger    string    `json:"trigger"`
}

type acknowledgementResponse struct {
	Reason string    `json:"reason"`
	User   string    `json:"user"`
	Slot   time.Time `json:"slot"`
	At     time.Time `json:"at"`
}

type jobResponse struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	Tenant           string                    `json:"tenant"`
	Zone             string                    `json:"zone"`
	Application      string                    `json:"application"`
	Cron             string                    `json:"cron"`
	Timezone         string                    `json:"timezone"`
	Enabled          bool                      `json:"enabled"`
	Status           string                    `json:"status"`
	NextExpectedRun  time.Time                 `json:"next_expected_run"`
	LastRun          *lastRunResponse          `json:"last_run,omitempty"`
	Acknowledgements []acknowledgementResponse `json:"acknowledgements"`
}

type rerunResponse struct {
	Reason     string    `json:"reason"`
	User       string    `json:"user"`
	InstanceID string    `json:"instance_id"`
	At         time.Time `json:"at"`
}

type executionResponse struct {
	ID         string          `json:"id"`
	JobID      string          `json:"job_id"`
	ExpectedAt time.Time       `json:"expected_at"`
	ActualAt   *time.Time      `json:"actual_at,omitempty"`
	Status     string          `json:"status"`
	InstanceID string          `json:"instance_id,omitempty"`
	SkipReason string          `json:"skip_reason,omitempty"`
	Reruns     []rerunResponse `json:"reruns"`
}

type instanceRef struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type reasonRequest struct {
	Reason    string `json:"reason"`
	Confirmed bool   `json:"confirmed"`
}

func toJobResponse(job *schedule.Job) jobResponse {
	resp := jobResponse{
		ID:               job.ID.String(),
		Name:             job.Name,
		Tenant:           job.Tenant.Name().String(),
		Zone:             job.Tenant.Zone().String(),
		Application:      job.Application,
		Cron:             job.Expression(),
		Timezone:         job.Timezone,
		Enabled:          job.Enabled,
		Status:           job.Status.String(),
		NextExpectedRun:  job.NextExpectedRun,
		Acknowledgements: make([]acknowledgementResponse, len(job.Acknowledgements)),
	}
	if job.LastRun != nil {
		resp.LastRun = &lastRunResponse{
			InstanceID: job.LastRun.InstanceID,
			Status:     job.LastRun.Status,
			At:         job.LastRun.At,
			Trigger:    string(job.LastRun.Trigger),
		}
	}
	for i, ack := range job.Acknowledgements {
		resp.Acknowledgements[i] = acknowledgementResponse{
			Reason: ack.Reason,
			User:   ack.User,
			Slot:   ack.Slot,
			At:     ack.At,
		}
	}
	return resp
}

func toExecutionResponse(exec *schedule.Execution) executionResponse {
	resp := executionResponse{
		ID:         exec.ID,
		JobID:      exec.JobID.String(),
		ExpectedAt: exec.ExpectedAt,
		ActualAt:   exec.ActualAt,
		Status:     exec.Status.String(),
		InstanceID: exec.InstanceID,
		SkipReason: exec.SkipReason,
		Reruns:     make([]rerunResponse, len(exec.Reruns)),
	}
	for i, r := range exec.Reruns {
		resp.Reruns[i] = rerunResponse{
			Reason:     r.Reason,
			User:       r.User,
			InstanceID: r.InstanceID,
			At:         r.At,
		}
	}
	return resp
}

func toInstanceRef(inst *instance.AppInstance) instanceRef {
	return instanceRef{ID: inst.ID.String(), Status: inst.Status.String()}
}
