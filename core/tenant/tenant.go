package tenant

import (
	"fmt"
	"strings"

	"github.com/goto/pipewatch/internal/errors"
)

const (
	EntityTenant = "tenant"
	EntityZone   = "zone"
)

type Name string

func NameFrom(name string) (Name, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.InvalidArgument(EntityTenant, "tenant name is empty")
	}
	if strings.Contains(name, ":") {
		return "", errors.InvalidArgument(EntityTenant, "tenant name should not contain ':'")
	}
	return Name(name), nil
}

func (n Name) String() string {
	return string(n)
}

type Zone string

func ZoneFrom(zone string) (Zone, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return "", errors.InvalidArgument(EntityZone, "zone is empty")
	}
	return Zone(zone), nil
}

func (z Zone) String() string {
	return string(z)
}

// Tenant is the owning SaaS tenant together with the deployment zone it runs in
type Tenant struct {
	name Name
	zone Zone
}

func NewTenant(name, zone string) (Tenant, error) {
	tenantName, err := NameFrom(name)
	if err != nil {
		return Tenant{}, err
	}

	tenantZone, err := ZoneFrom(zone)
	if err != nil {
		return Tenant{}, err
	}

	return Tenant{
		name: tenantName,
		zone: tenantZone,
	}, nil
}

func (t Tenant) Name() Name {
	return t.name
}

func (t Tenant) Zone() Zone {
	return t.zone
}

func (t Tenant) IsInvalid() bool {
	return t.name.String() == ""
}

func (t Tenant) String() string {
	return fmt.Sprintf("%s:%s", t.name, t.zone)
}
