package access_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/core/access"
	"github.com/goto/pipewatch/core/exception"
	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/core/tenant"
	"github.com/goto/pipewatch/internal/errors"
)

var at = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func failedInstance(t *testing.T, catalog *exception.Catalog, tenantName string, code exception.Code) *instance.AppInstance {
	t.Helper()
	tnnt, _ := tenant.NewTenant(tenantName, "eu-1")
	inst, err := instance.New(tnnt, "orders", "orders.csv", []string{"ingest", "validate"}, instance.ImpactHigh, at)
	assert.NoError(t, err)
	inst, err = instance.ApplyTaskOutcome(inst, "validate", instance.Outcome{Status: instance.StatusFailed, ErrorCode: code, At: at}, catalog)
	assert.NoError(t, err)
	return inst
}

func TestEngine(t *testing.T) {
	catalog, err := exception.DefaultCatalog()
	assert.NoError(t, err)
	engine := access.NewEngine(catalog)

	acmeSRE, _ := identity.NewUser("u1", "", "saas_sre", "acme")
	globexSRE, _ := identity.NewUser("u3", "", "saas_sre", "globex")
	platform, _ := identity.NewUser("u2", "", "platform_sre", "")

	t.Run("exception ownership", func(t *testing.T) {
		business := failedInstance(t, catalog, "acme", "SchemaValidationException")
		system := failedInstance(t, catalog, "acme", "TimeoutException")

		for _, action := range []instance.Action{instance.ActionCancel, instance.ActionSkip, instance.ActionResume} {
			t.Run("platform sre is denied "+action.String()+" on business exception", func(t *testing.T) {
				d := engine.CanPerform(platform, business, action)
				assert.False(t, d.Allowed)
				assert.Equal(t, access.KindExceptionOwnership, d.Kind)
				assert.Equal(t, access.MsgPlatformBusiness, d.Reason)
				assert.True(t, errors.IsErrorType(d.Err(), errors.ErrForbidden))
			})
			t.Run("platform sre is allowed "+action.String()+" on system exception", func(t *testing.T) {
				d := engine.CanPerform(platform, system, action)
				assert.True(t, d.Allowed, d.Reason)
				assert.NoError(t, d.Err())
			})
			t.Run("tenant sre is allowed "+action.String()+" on business exception", func(t *testing.T) {
				d := engine.CanPerform(acmeSRE, business, action)
				assert.True(t, d.Allowed, d.Reason)
			})
		}
	})
	t.Run("tenant scope", func(t *testing.T) {
		inst := failedInstance(t, catalog, "acme", "SchemaValidationException")
		for _, action := range []instance.Action{instance.ActionCancel, instance.ActionSkip, instance.ActionResume, instance.ActionNotify} {
			d := engine.CanPerform(globexSRE, inst, action)
			assert.False(t, d.Allowed)
			assert.Equal(t, access.KindTenantScope, d.Kind)
		}
	})
	t.Run("unknown role is denied", func(t *testing.T) {
		inst := failedInstance(t, catalog, "acme", "TimeoutException")
		d := engine.CanPerform(identity.User{ID: "x", Role: "admin"}, inst, instance.ActionCancel)
		assert.False(t, d.Allowed)
		assert.Equal(t, access.KindRole, d.Kind)
	})
	t.Run("Resume", func(t *testing.T) {
		t.Run("denies tenant sre when sop requires platform sre", func(t *testing.T) {
			inst := failedInstance(t, catalog, "acme", "DatabaseConnectionException")
			d := engine.CanPerform(acmeSRE, inst, instance.ActionResume)
			assert.False(t, d.Allowed)
			assert.Equal(t, access.KindSOPRole, d.Kind)
			assert.Contains(t, d.Reason, "does not grant your role (SaaS SRE)")
			assert.Contains(t, d.Reason, "permitted: Platform SRE")
		})
		t.Run("denies when no sop is defined", func(t *testing.T) {
			inst := failedInstance(t, catalog, "acme", "DuplicateFileException")
			d := engine.CanPerform(acmeSRE, inst, instance.ActionResume)
			assert.False(t, d.Allowed)
			assert.Equal(t, access.KindNoSOP, d.Kind)
			assert.True(t, errors.IsErrorType(d.Err(), errors.ErrForbidden))
		})
		t.Run("denies when sop is missing from catalog", func(t *testing.T) {
			inst := failedInstance(t, catalog, "acme", "TimeoutException")
			empty, _ := exception.NewCatalog(nil, nil)
			d := access.NewEngine(empty).CanPerform(acmeSRE, inst, instance.ActionResume)
			assert.Equal(t, access.KindNoSOP, d.Kind)
		})
		t.Run("denies when no task is failed", func(t *testing.T) {
			tnnt, _ := tenant.NewTenant("acme", "eu-1")
			inst, _ := instance.New(tnnt, "orders", "", []string{"ingest"}, "", at)
			d := engine.CanPerform(acmeSRE, inst, instance.ActionResume)
			assert.False(t, d.Allowed)
			assert.Equal(t, access.KindState, d.Kind)
			assert.True(t, errors.IsErrorType(d.Err(), errors.ErrFailedPrecond))
		})
	})
	t.Run("Notify", func(t *testing.T) {
		t.Run("allows platform sre on failed business exception", func(t *testing.T) {
			inst := failedInstance(t, catalog, "acme", "SchemaValidationException")
			d := engine.CanPerform(platform, inst, instance.ActionNotify)
			assert.True(t, d.Allowed)
		})
		t.Run("allows repeat notify as no-op", func(t *testing.T) {
			inst := failedInstance(t, catalog, "acme", "SchemaValidationException")
			inst.IsNotified = true
			d := engine.CanPerform(platform, inst, instance.ActionNotify)
			assert.True(t, d.Allowed)
			assert.Equal(t, "tenant SRE team was already notified", d.Reason)
		})
		t.Run("denies tenant sre", func(t *testing.T) {
			inst := failedInstance(t, catalog, "acme", "SchemaValidationException")
			d := engine.CanPerform(acmeSRE, inst, instance.ActionNotify)
			assert.Equal(t, access.KindRole, d.Kind)
		})
		t.Run("denies system exception", func(t *testing.T) {
			inst := failedInstance(t, catalog, "acme", "TimeoutException")
			d := engine.CanPerform(platform, inst, instance.ActionNotify)
			assert.Equal(t, access.KindExceptionOwnership, d.Kind)
		})
		t.Run("denies instance that is not failed", func(t *testing.T) {
			inst := failedInstance(t, catalog, "acme", "SchemaValidationException")
			assert.NoError(t, inst.Resume("", acmeSRE, "", at))
			d := engine.CanPerform(platform, inst, instance.ActionNotify)
			assert.Equal(t, access.KindState, d.Kind)
		})
	})
	t.Run("Permissions", func(t *testing.T) {
		inst := failedInstance(t, catalog, "acme", "SchemaValidationException")
		decisions := engine.Permissions(platform, inst)
		assert.Len(t, decisions, 4)
		assert.False(t, decisions[instance.ActionCancel].Allowed)
		assert.False(t, decisions[instance.ActionResume].Allowed)
		assert.True(t, decisions[instance.ActionNotify].Allowed)
	})
}
