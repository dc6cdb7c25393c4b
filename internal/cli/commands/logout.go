package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quickbites/storefront/internal/cli/ui"
)

const msgLoggedOut = "Logged out successfully!"

// NewLogoutCmd creates the logout command
func NewLogoutCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(load, runLogout)(cmd.Context())
		},
	}
}

func runLogout(ctx context.Context, env *Env) error {
	if err := env.Sessions.Logout(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if err := env.Pending.ClearChallenge(); err != nil {
		env.Log.Warn().Err(err).Msg("Failed to clear pending challenge")
	}

	env.UI.Announce(ui.Success(msgLoggedOut), ui.RouteLogin)
	return nil
}
