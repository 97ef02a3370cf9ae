package instance

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/internal/errors"
)

const EntityAudit = "audit"

type Action string

const (
	ActionResume Action = "Resume"
	ActionCancel Action = "Cancel"
	ActionSkip   Action = "Skip"
	ActionNotify Action = "Notify"
)

func ActionFrom(action string) (Action, error) {
	for _, a := range []Action{ActionResume, ActionCancel, ActionSkip, ActionNotify} {
		if strings.EqualFold(action, string(a)) {
			return a, nil
		}
	}
	return "", errors.InvalidArgument(EntityAudit, "unknown action "+action+", expected one of Resume, Cancel, Skip, Notify")
}

func (a Action) String() string {
	return string(a)
}

type AuditDetails struct {
	SkipCount     int
	PreRetryCount int
}

// AuditEvent is an immutable record of one applied remediation action
type AuditEvent struct {
	ID        string
	Action    Action
	Actor     string
	ActorRole identity.Role
	Timestamp time.Time
	TaskID    string
	Reason    string
	Details   AuditDetails
}

func newAuditEvent(action Action, actor identity.User, taskID, reason string, details AuditDetails, at time.Time) *AuditEvent {
	return &AuditEvent{
		ID:        uuid.NewString(),
		Action:    action,
		Actor:     actor.ID,
		ActorRole: actor.Role,
		Timestamp: at,
		TaskID:    taskID,
		Reason:    reason,
		Details:   details,
	}
}

// LastAudit returns the most recent audit event, nil when the trail is empty
func (a *AppInstance) LastAudit() *AuditEvent {
	if len(a.AuditTrail) == 0 {
		return nil
	}
	return a.AuditTrail[len(a.AuditTrail)-1]
}

func (a *AppInstance) appendAudit(event *AuditEvent) {
	a.AuditTrail = append(a.AuditTrail, event)
}
