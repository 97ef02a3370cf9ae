package tenant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/core/tenant"
)

func TestTenant(t *testing.T) {
	t.Run("NewTenant", func(t *testing.T) {
		t.Run("returns error when tenant name is empty", func(t *testing.T) {
			_, err := tenant.NewTenant(" ", "eu-1")
			assert.EqualError(t, err, "tenant: tenant name is empty")
		})
		t.Run("returns error when tenant name contains separator", func(t *testing.T) {
			_, err := tenant.NewTenant("acme:x", "eu-1")
			assert.EqualError(t, err, "tenant: tenant name should not contain ':'")
		})
		t.Run("returns error when zone is empty", func(t *testing.T) {
			_, err := tenant.NewTenant("acme", "")
			assert.EqualError(t, err, "zone: zone is empty")
		})
		t.Run("creates tenant", func(t *testing.T) {
			tnnt, err := tenant.NewTenant("acme", "eu-1")
			assert.NoError(t, err)
			assert.Equal(t, tenant.Name("acme"), tnnt.Name())
			assert.Equal(t, tenant.Zone("eu-1"), tnnt.Zone())
			assert.Equal(t, "acme:eu-1", tnnt.String())
			assert.False(t, tnnt.IsInvalid())
		})
	})
	t.Run("IsInvalid", func(t *testing.T) {
		assert.True(t, tenant.Tenant{}.IsInvalid())
	})
}
