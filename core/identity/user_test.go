package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/tenant"
)

func TestUser(t *testing.T) {
	t.Run("RoleFrom", func(t *testing.T) {
		role, err := identity.RoleFrom("Platform SRE")
		assert.NoError(t, err)
		assert.Equal(t, identity.RolePlatformSRE, role)

		role, err = identity.RoleFrom("SAAS_SRE")
		assert.NoError(t, err)
		assert.Equal(t, identity.RoleSaaSSRE, role)

		_, err = identity.RoleFrom("admin")
		assert.ErrorContains(t, err, "unknown role admin")
	})
	t.Run("NewUser", func(t *testing.T) {
		t.Run("returns error when id is empty", func(t *testing.T) {
			_, err := identity.NewUser("", "", "saas_sre", "acme")
			assert.EqualError(t, err, "user: user id is empty")
		})
		t.Run("returns error when saas sre has no tenant", func(t *testing.T) {
			_, err := identity.NewUser("u1", "", "saas_sre", "")
			assert.EqualError(t, err, "user: saas sre requires a tenant")
		})
		t.Run("platform sre ignores tenant", func(t *testing.T) {
			u, err := identity.NewUser("u2", "Rin", "platform_sre", "acme")
			assert.NoError(t, err)
			assert.True(t, u.IsPlatformSRE())
			assert.Equal(t, tenant.Name(""), u.Tenant)
			assert.Equal(t, "Rin", u.String())
		})
		t.Run("defaults name to id", func(t *testing.T) {
			u, err := identity.NewUser("u3", "", "saas_sre", "acme")
			assert.NoError(t, err)
			assert.True(t, u.IsSaaSSRE())
			assert.Equal(t, "u3", u.Name)
			assert.Equal(t, tenant.Name("acme"), u.Tenant)
		})
	})
	t.Run("DisplayName", func(t *testing.T) {
		assert.Equal(t, "SaaS SRE", identity.RoleSaaSSRE.DisplayName())
		assert.Equal(t, "Platform SRE", identity.RolePlatformSRE.DisplayName())
	})
}
