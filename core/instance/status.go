package instance

import (
	"strings"

	"github.com/goto/pipewatch/internal/errors"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusSuccess    Status = "Success"
	StatusFailed     Status = "Failed"
	StatusCancelled  Status = "Cancelled"
)

var statuses = []Status{StatusPending, StatusInProgress, StatusSuccess, StatusFailed, StatusCancelled}

func StatusFrom(status string) (Status, error) {
	normalized := strings.ReplaceAll(strings.ReplaceAll(status, "_", ""), " ", "")
	for _, s := range statuses {
		if strings.EqualFold(normalized, string(s)) {
			return s, nil
		}
	}
	return "", errors.InvalidArgument(EntityInstance, "invalid status "+status)
}

func (s Status) String() string {
	return string(s)
}

func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusCancelled
}

// taskTransitions lists the outcomes a task may report from each state,
// Failed -> InProgress is only reachable through Resume
var taskTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusSuccess, StatusFailed},
	StatusInProgress: {StatusSuccess, StatusFailed},
}

func canTransition(from, to Status) bool {
	for _, s := range taskTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
