package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quickbites/storefront/internal/cli/session"
	"github.com/quickbites/storefront/internal/cli/userconfig"
)

// NewStatusCmd creates the status command
func NewStatusCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is logged in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(load, runStatus)(cmd.Context())
		},
	}
}

func runStatus(ctx context.Context, env *Env) error {
	fmt.Fprintf(env.Out, "API: %s\n", env.Config.APIURL)

	snap := env.Sessions.Snapshot()
	if !env.Sessions.IsAuthenticated() {
		fmt.Fprintln(env.Out, "Not logged in")
	} else {
		role := env.Sessions.Role()
		if role == session.RoleNone {
			role = "unknown"
		}
		fmt.Fprintf(env.Out, "Logged in as %s (user %s)\n", role, snap.UserID)

		slot := "this terminal only"
		if snap.Persisted {
			slot = "remembered"
		}
		fmt.Fprintf(env.Out, "  Session: %s\n", slot)

		if claims, err := session.ParseClaims(snap.Token); err == nil && claims.ExpiresAt != nil {
			fmt.Fprintf(env.Out, "  Expires: %s\n", claims.ExpiresAt.Time.Local().Format(time.RFC1123))
		}
	}

	pending, err := env.Pending.LoadChallenge()
	if err != nil {
		env.Log.Warn().Err(err).Msg("Failed to load pending challenge")
	} else if pending != nil {
		fmt.Fprintf(env.Out, "Pending code for %s, sent %s (run 'quickbites verify-otp')\n",
			pending.Email, pending.IssuedAt.Local().Format(time.Kitchen))
	}

	reset, err := userconfig.GetPendingReset()
	if err != nil {
		env.Log.Warn().Err(err).Msg("Failed to load pending password reset")
	} else if reset != nil {
		fmt.Fprintf(env.Out, "Password reset code sent to %s\n", reset.Email)
	}
	return nil
}
