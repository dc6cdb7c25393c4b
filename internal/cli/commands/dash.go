package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/quickbites/storefront/internal/cli/authflow"
)

// NewDashCmd creates the dash command
func NewDashCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "dash",
		Short: "Open the storefront in the browser (the admin dashboard for admins)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(load, runDash)(cmd.Context())
		},
	}
}

func runDash(ctx context.Context, env *Env) error {
	env.Browser.Navigate(authflow.RouteFor(env.Sessions.Role()))
	return nil
}
