package exception

import (
	"strings"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/internal/errors"
)

const (
	EntityException = "exception"
	EntitySOP       = "sop"
)

type Type string

const (
	TypeBusiness Type = "Business"
	TypeSystem   Type = "System"
)

func TypeFrom(t string) (Type, error) {
	switch {
	case strings.EqualFold(t, string(TypeBusiness)):
		return TypeBusiness, nil
	case strings.EqualFold(t, string(TypeSystem)):
		return TypeSystem, nil
	default:
		return "", errors.InvalidArgument(EntityException, "invalid exception type "+t+", expected 'Business' or 'System'")
	}
}

func (t Type) String() string {
	return string(t)
}

type Code string

func (c Code) String() string {
	return string(c)
}

type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

func SeverityFrom(s string) (Severity, error) {
	for _, severity := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		if strings.EqualFold(s, string(severity)) {
			return severity, nil
		}
	}
	return "", errors.InvalidArgument(EntityException, "invalid severity "+s)
}

type Definition struct {
	Code              Code
	Type              Type
	Cause             string
	DetectionPoint    string
	ExampleMessage    string
	Severity          Severity
	Retryable         bool
	RecommendedAction string
}

// SOP is the remediation playbook attached to a failure code,
// PermissionsRequired lists the roles allowed to resume a failure with this code
type SOP struct {
	Code                Code
	Title               string
	Preconditions       []string
	Steps               []string
	PermissionsRequired []identity.Role
	RollbackActions     []string
	PostConditions      []string
}

func (s *SOP) Permits(role identity.Role) bool {
	for _, r := range s.PermissionsRequired {
		if r == role {
			return true
		}
	}
	return false
}
