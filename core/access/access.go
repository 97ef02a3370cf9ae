package access

import (
	"fmt"
	"strings"

	"github.com/goto/pipewatch/core/exception"
	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/internal/errors"
)

const EntityAccess = "access"

const MsgPlatformBusiness = "Platform SREs cannot take action on Business Exceptions"

// Kind tells apart the rule that denied an action
type Kind string

const (
	KindNone               Kind = ""
	KindRole               Kind = "role"
	KindTenantScope        Kind = "tenant_scope"
	KindExceptionOwnership Kind = "exception_ownership"
	KindNoSOP              Kind = "no_sop"
	KindSOPRole            Kind = "sop_role"
	KindState              Kind = "state"
)

type Decision struct {
	Allowed bool
	Reason  string
	Kind    Kind
}

func allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

func deny(kind Kind, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Kind: kind}
}

// Err converts a denial into a typed error, state denials are failed preconditions
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Kind == KindState {
		return errors.FailedPrecondition(EntityAccess, d.Reason)
	}
	return errors.Forbidden(EntityAccess, d.Reason)
}

type SOPProvider interface {
	SOP(code exception.Code) (*exception.SOP, error)
}

type Engine struct {
	sops SOPProvider
}

func NewEngine(sops SOPProvider) *Engine {
	return &Engine{sops: sops}
}

var remediationActions = []instance.Action{instance.ActionResume, instance.ActionCancel, instance.ActionSkip, instance.ActionNotify}

// Permissions evaluates every remediation action, used to explain disabled actions to the caller
func (e *Engine) Permissions(user identity.User, inst *instance.AppInstance) map[instance.Action]Decision {
	decisions := make(map[instance.Action]Decision, len(remediationActions))
	for _, action := range remediationActions {
		decisions[action] = e.CanPerform(user, inst, action)
	}
	return decisions
}

func (e *Engine) CanPerform(user identity.User, inst *instance.AppInstance, action instance.Action) Decision {
	switch user.Role {
	case identity.RoleSaaSSRE:
		if inst.Tenant.Name() != user.Tenant {
			return deny(KindTenantScope, fmt.Sprintf("SaaS SREs can only act on instances of their own tenant (%s)", user.Tenant))
		}
	case identity.RolePlatformSRE:
	default:
		return deny(KindRole, fmt.Sprintf("role %q is not allowed to take remediation actions", user.Role))
	}

	switch action {
	case instance.ActionCancel, instance.ActionSkip:
		return ownership(user, inst)
	case instance.ActionResume:
		return e.canResume(user, inst)
	case instance.ActionNotify:
		return canNotify(user, inst)
	default:
		return deny(KindRole, "unknown action "+action.String())
	}
}

// ownership encodes the split between tenant owned Business and platform owned System exceptions
func ownership(user identity.User, inst *instance.AppInstance) Decision {
	if user.IsPlatformSRE() && inst.IsBusinessException() {
		return deny(KindExceptionOwnership, MsgPlatformBusiness)
	}
	return allow("")
}

func (e *Engine) canResume(user identity.User, inst *instance.AppInstance) Decision {
	if d := ownership(user, inst); !d.Allowed {
		return d
	}
	if inst.FailedTask() == nil {
		return deny(KindState, "Resume requires a failed task")
	}
	if inst.SOPCode == "" {
		return deny(KindNoSOP, "No SOP is defined for this exception, Resume is not permitted")
	}

	sop, err := e.sops.SOP(inst.SOPCode)
	if err != nil {
		return deny(KindNoSOP, "No SOP is defined for "+inst.SOPCode.String()+", Resume is not permitted")
	}
	if !sop.Permits(user.Role) {
		return deny(KindSOPRole, fmt.Sprintf("SOP %q does not grant your role (%s) permission to Resume, permitted: %s",
			sop.Title, user.Role.DisplayName(), roleNames(sop.PermissionsRequired)))
	}
	return allow("")
}

func canNotify(user identity.User, inst *instance.AppInstance) Decision {
	if !user.IsPlatformSRE() {
		return deny(KindRole, "Only Platform SREs can notify the tenant SRE team")
	}
	if inst.Status != instance.StatusFailed {
		return deny(KindState, "Notify requires a Failed instance")
	}
	if !inst.IsBusinessException() {
		return deny(KindExceptionOwnership, "Notify is only for Business Exceptions, System Exceptions are handled by Platform SREs")
	}
	if inst.IsNotified {
		return allow("tenant SRE team was already notified")
	}
	return allow("")
}

func roleNames(roles []identity.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.DisplayName()
	}
	return strings.Join(names, ", ")
}
