package commands

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/quickbites/storefront/internal/cli/authflow"
	"github.com/quickbites/storefront/internal/cli/prompt"
	"github.com/quickbites/storefront/internal/cli/ui"
	"github.com/quickbites/storefront/internal/cli/validate"
)

type loginOptions struct {
	email          string
	password       string
	recaptchaToken string
	rememberMe     bool
	rememberMeSet  bool
	otp            string
	reset          bool
}

// NewLoginCmd creates the login command
func NewLoginCmd(load Loader) *cobra.Command {
	var opts loginOptions

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the storefront",
		Long: `Log in with email and password. The server then emails a one-time code,
which is asked for right away on a terminal or can be passed later with
'quickbites verify-otp'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.rememberMeSet = cmd.Flags().Changed("remember-me")
			return withEnv(load, func(ctx context.Context, env *Env) error {
				return runLogin(ctx, env, opts)
			})(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "Email address (or set QUICKBITES_EMAIL)")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password (or set QUICKBITES_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&opts.recaptchaToken, "recaptcha-token", "", "reCAPTCHA token (or set QUICKBITES_RECAPTCHA_TOKEN)")
	cmd.Flags().BoolVar(&opts.rememberMe, "remember-me", false, "Keep the session after this terminal closes")
	cmd.Flags().StringVar(&opts.otp, "otp", "", "One-time code, if already known")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Discard a pending code and start over")

	return cmd
}

func runLogin(ctx context.Context, env *Env, opts loginOptions) error {
	if !opts.reset && env.Sessions.IsAuthenticated() {
		env.UI.Announce(ui.Info(authflow.MsgAlreadyLoggedIn), authflow.RouteFor(env.Sessions.Role()))
		return nil
	}

	flow := env.Flow(ctx)
	defer flow.Detach()

	if opts.reset {
		return flow.BackToLogin()
	}

	// Check for environment variables (useful for CI/CD)
	if opts.email == "" {
		opts.email = os.Getenv("QUICKBITES_EMAIL")
	}
	if opts.password == "" {
		opts.password = os.Getenv("QUICKBITES_PASSWORD")
	}
	if opts.recaptchaToken == "" {
		opts.recaptchaToken = os.Getenv("QUICKBITES_RECAPTCHA_TOKEN")
	}

	var err error
	if opts.email == "" {
		if opts.email, err = env.Prompt.Text("Email", nil); err != nil {
			return err
		}
	}
	if opts.password == "" {
		if opts.password, err = env.Prompt.Password("Password"); err != nil {
			return err
		}
	}
	if opts.recaptchaToken == "" {
		if opts.recaptchaToken, err = env.Prompt.Text("reCAPTCHA token", nil); err != nil {
			return err
		}
	}
	if !opts.rememberMeSet {
		if opts.rememberMe, err = env.Prompt.Confirm("Remember me"); err != nil {
			return err
		}
	}

	err = flow.SubmitCredentials(ctx, authflow.Credentials{
		Email:          opts.email,
		Password:       opts.password,
		RecaptchaToken: opts.recaptchaToken,
		RememberMe:     opts.rememberMe,
	})
	if err != nil {
		return reported(err)
	}

	if flow.State() != authflow.ChallengeIssued {
		return nil
	}
	return answerChallenge(ctx, env, flow, opts.otp)
}

// answerChallenge submits code, asking for it when empty. Without a
// terminal the challenge stays pending for verify-otp.
func answerChallenge(ctx context.Context, env *Env, flow *authflow.Controller, code string) error {
	if code == "" {
		var err error
		code, err = env.Prompt.Text("OTP", nil)
		if errors.Is(err, prompt.ErrNonInteractive) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	err := flow.SubmitChallenge(ctx, code)
	if _, ok := validate.AsErrors(err); ok {
		// malformed codes are reported by the flow itself
		return &reportedError{err: err}
	}
	return reported(err)
}
