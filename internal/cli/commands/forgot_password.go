package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// NewForgotPasswordCmd creates the forgot-password command
func NewForgotPasswordCmd(load Loader) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(load, func(ctx context.Context, env *Env) error {
				return runForgotPassword(ctx, env, email)
			})(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set QUICKBITES_EMAIL)")

	return cmd
}

func runForgotPassword(ctx context.Context, env *Env, email string) error {
	if email == "" {
		email = os.Getenv("QUICKBITES_EMAIL")
	}
	if email == "" {
		var err error
		if email, err = env.Prompt.Text("Email", nil); err != nil {
			return err
		}
	}

	flow := env.Flow(ctx)
	defer flow.Detach()
	return reported(flow.ForgotPassword(ctx, email))
}
