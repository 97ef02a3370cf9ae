package instance_test

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"

	"github.com/goto/pipewatch/client/cmd/instance"
)

func TestCancelCommand(t *testing.T) {
	cmd := instance.NewCancelCommand()

	t.Run("describes the ownership split", func(t *testing.T) {
		assert.NotContains(t, cmd.Short, "only SaaS SREs")
		assert.Contains(t, cmd.Long, "SaaS SREs cancel instances of their own tenant")
		assert.Contains(t, cmd.Long, "Platform SREs cancel any instance except one failed on a Business exception")
	})
	t.Run("requires a reason", func(t *testing.T) {
		flag := cmd.Flags().Lookup("reason")
		assert.NotNil(t, flag)
		assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag])
	})
}
