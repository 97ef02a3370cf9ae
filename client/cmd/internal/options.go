package internal

import (
	"time"

	"github.com/goto/salt/log"
	"github.com/spf13/cobra"

	"github.com/goto/pipewatch/client/cmd/internal/connectivity"
	"github.com/goto/pipewatch/config"
	"github.com/goto/pipewatch/internal/utils"
)

const requestTimeout = time.Second * 30

// ClientOptions are the connection flags shared by every remote command,
// flags win over the values of the client config file
type ClientOptions struct {
	ConfigFilePath string

	Host   string
	UserID string
	Role   string
	Tenant string
}

func (o *ClientOptions) InjectFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.ConfigFilePath, "config", "c", o.ConfigFilePath, "File path for client configuration")

	cmd.Flags().StringVar(&o.Host, "host", "", "Pipewatch service endpoint url")
	cmd.Flags().StringVar(&o.UserID, "user", "", "User id acting on the dashboard")
	cmd.Flags().StringVar(&o.Role, "role", "", "Role of the user, saas_sre or platform_sre")
	cmd.Flags().StringVar(&o.Tenant, "tenant-scope", "", "Tenant the SaaS SRE is scoped to")
}

func (o *ClientOptions) Connect(l log.Logger) (*connectivity.Connectivity, error) {
	conf, err := config.LoadClientConfig(o.ConfigFilePath)
	if err != nil {
		return nil, err
	}

	user := config.UserConfig{
		ID:     utils.FirstNonEmpty(o.UserID, conf.User.ID),
		Role:   utils.FirstNonEmpty(o.Role, conf.User.Role),
		Tenant: utils.FirstNonEmpty(o.Tenant, conf.User.Tenant),
	}
	host := utils.FirstNonEmpty(o.Host, conf.Host)

	l.Debug("connecting to %s as %s", host, user.ID)
	return connectivity.NewConnectivity(l, host, user, requestTimeout), nil
}
