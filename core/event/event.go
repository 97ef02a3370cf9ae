package event

import (
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/goto/pipewatch/internal/errors"
)

const EntityEvent = "event"

type Type string

const (
	TypeInstanceCreated   Type = "instance_created"
	TypeTaskOutcome       Type = "task_outcome"
	TypeInstanceActioned  Type = "instance_actioned"
	TypeScheduleAcked     Type = "schedule_acknowledged"
	TypeScheduleTriggered Type = "schedule_triggered"
	TypeExecutionSkipped  Type = "execution_skipped"
	TypeExecutionRerun    Type = "execution_rerun"
	TypeScheduleOverdue   Type = "schedule_overdue"
	occurredAtLayout           = time.RFC3339Nano
)

type Event struct {
	ID         uuid.UUID
	OccurredAt time.Time
}

func NewBaseEvent() Event {
	return Event{
		ID:         uuid.New(),
		OccurredAt: time.Now().UTC(),
	}
}

// envelope wraps a payload in the change event message published to the stream
func envelope(e Event, eventType Type, payload map[string]any) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]any{
		"event_id":    e.ID.String(),
		"occurred_at": e.OccurredAt.Format(occurredAtLayout),
		"type":        string(eventType),
		"payload":     payload,
	})
	if err != nil {
		return nil, errors.InternalError(EntityEvent, "unable to build "+string(eventType)+" event", err)
	}
	return proto.Marshal(msg)
}

// Decode is the inverse of Bytes, used by consumers and tests
func Decode(raw []byte) (eventType Type, payload map[string]any, err error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(raw, &msg); err != nil {
		return "", nil, errors.InvalidArgument(EntityEvent, "unable to decode event: "+err.Error())
	}
	m := msg.AsMap()
	t, _ := m["type"].(string)
	p, _ := m["payload"].(map[string]any)
	return Type(t), p, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(occurredAtLayout)
}
