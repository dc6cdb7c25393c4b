package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/quickbites/storefront/internal/cli/authflow"
)

// NewVerifyOTPCmd creates the verify-otp command
func NewVerifyOTPCmd(load Loader) *cobra.Command {
	var back bool

	cmd := &cobra.Command{
		Use:   "verify-otp [code]",
		Short: "Answer the one-time code sent by 'quickbites login'",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				code = args[0]
			}
			return withEnv(load, func(ctx context.Context, env *Env) error {
				return runVerifyOTP(ctx, env, code, back)
			})(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&back, "back", false, "Go back to login and discard the pending code")

	return cmd
}

func runVerifyOTP(ctx context.Context, env *Env, code string, back bool) error {
	flow := env.Flow(ctx)
	defer flow.Detach()

	if back {
		return flow.BackToLogin()
	}

	if err := flow.Resume(); err != nil {
		if errors.Is(err, authflow.ErrNoPendingChallenge) {
			return &reportedError{err: err}
		}
		return err
	}

	if code == "" {
		var err error
		if code, err = env.Prompt.Text("OTP", nil); err != nil {
			return err
		}
	}
	return answerChallenge(ctx, env, flow, code)
}
