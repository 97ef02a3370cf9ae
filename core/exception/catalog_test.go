package exception_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/core/exception"
	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/internal/errors"
)

func TestCatalog(t *testing.T) {
	t.Run("DefaultCatalog", func(t *testing.T) {
		catalog, err := exception.DefaultCatalog()
		assert.NoError(t, err)

		def, err := catalog.Definition("SchemaValidationException")
		assert.NoError(t, err)
		assert.Equal(t, exception.TypeBusiness, def.Type)
		assert.True(t, def.Retryable)

		sop, err := catalog.SOP("SchemaValidationException")
		assert.NoError(t, err)
		assert.True(t, sop.Permits(identity.RoleSaaSSRE))
		assert.True(t, sop.Permits(identity.RolePlatformSRE))

		sop, err = catalog.SOP("DatabaseConnectionException")
		assert.NoError(t, err)
		assert.False(t, sop.Permits(identity.RoleSaaSSRE))

		_, err = catalog.SOP("DuplicateFileException")
		assert.True(t, errors.IsErrorType(err, errors.ErrNotFound))

		defs := catalog.Definitions()
		assert.Len(t, defs, 8)
		assert.Equal(t, exception.Code("DatabaseConnectionException"), defs[0].Code)
	})
	t.Run("Definition", func(t *testing.T) {
		catalog, err := exception.DefaultCatalog()
		assert.NoError(t, err)

		_, err = catalog.Definition("UnknownException")
		assert.EqualError(t, err, "exception: no exception definition for code UnknownException")
	})
	t.Run("LoadCatalog", func(t *testing.T) {
		t.Run("returns error for invalid yaml", func(t *testing.T) {
			_, err := exception.LoadCatalog([]byte("exceptions: ["))
			assert.ErrorContains(t, err, "unable to parse catalog yaml")
		})
		t.Run("returns error for invalid type and unknown role", func(t *testing.T) {
			content := `
exceptions:
  - code: A
    type: Other
    severity: Low
  - code: B
    type: System
    severity: Low
sops:
  - code: B
    permissions_required: [admin]
`
			_, err := exception.LoadCatalog([]byte(content))
			assert.ErrorContains(t, err, "invalid exception type Other")
			assert.ErrorContains(t, err, "unknown role admin")
		})
		t.Run("returns error when sop references unknown code", func(t *testing.T) {
			content := `
exceptions:
  - code: A
    type: System
    severity: Low
sops:
  - code: B
    permissions_required: [platform_sre]
`
			_, err := exception.LoadCatalog([]byte(content))
			assert.ErrorContains(t, err, "sop [B] references unknown exception code")
		})
	})
	t.Run("NewCatalog", func(t *testing.T) {
		t.Run("returns error for duplicate code and sop without roles", func(t *testing.T) {
			defs := []*exception.Definition{
				{Code: "A", Type: exception.TypeSystem},
				{Code: "A", Type: exception.TypeSystem},
			}
			sops := []*exception.SOP{{Code: "A"}}

			_, err := exception.NewCatalog(defs, sops)
			assert.ErrorContains(t, err, "duplicate exception definition A")
			assert.ErrorContains(t, err, "sop [A] requires at least one role")
		})
	})
	t.Run("LoadCatalogFile", func(t *testing.T) {
		t.Run("loads default catalog for empty path", func(t *testing.T) {
			catalog, err := exception.LoadCatalogFile("")
			assert.NoError(t, err)
			assert.NotEmpty(t, catalog.Definitions())
		})
		t.Run("returns error for missing file", func(t *testing.T) {
			_, err := exception.LoadCatalogFile("/does/not/exist.yaml")
			assert.ErrorContains(t, err, "unable to read catalog file")
		})
	})
}

func TestTypeFrom(t *testing.T) {
	typ, err := exception.TypeFrom("business")
	assert.NoError(t, err)
	assert.Equal(t, exception.TypeBusiness, typ)

	_, err = exception.TypeFrom("")
	assert.Error(t, err)
}
