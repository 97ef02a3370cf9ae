package identity

import (
	"strings"

	"github.com/goto/pipewatch/core/tenant"
	"github.com/goto/pipewatch/internal/errors"
)

const EntityUser = "user"

type Role string

const (
	RoleSaaSSRE     Role = "saas_sre"
	RolePlatformSRE Role = "platform_sre"
)

func RoleFrom(role string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleSaaSSRE), "saas sre":
		return RoleSaaSSRE, nil
	case string(RolePlatformSRE), "platform sre":
		return RolePlatformSRE, nil
	default:
		return "", errors.InvalidArgument(EntityUser, "unknown role "+role+", expected one of 'saas_sre' or 'platform_sre'")
	}
}

func (r Role) String() string {
	return string(r)
}

// DisplayName is used in human readable authorization reasons
func (r Role) DisplayName() string {
	switch r {
	case RoleSaaSSRE:
		return "SaaS SRE"
	case RolePlatformSRE:
		return "Platform SRE"
	default:
		return string(r)
	}
}

// User is the actor of a remediation action. SaaS SREs are scoped to a single tenant.
type User struct {
	ID     string
	Name   string
	Role   Role
	Tenant tenant.Name
}

func NewUser(id, name, role, tenantName string) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, errors.InvalidArgument(EntityUser, "user id is empty")
	}

	userRole, err := RoleFrom(role)
	if err != nil {
		return User{}, err
	}

	var scope tenant.Name
	if userRole == RoleSaaSSRE {
		scope, err = tenant.NameFrom(tenantName)
		if err != nil {
			return User{}, errors.InvalidArgument(EntityUser, "saas sre requires a tenant")
		}
	}

	if name == "" {
		name = id
	}

	return User{
		ID:     id,
		Name:   name,
		Role:   userRole,
		Tenant: scope,
	}, nil
}

func (u User) IsPlatformSRE() bool {
	return u.Role == RolePlatformSRE
}

func (u User) IsSaaSSRE() bool {
	return u.Role == RoleSaaSSRE
}

func (u User) String() string {
	return u.Name
}
