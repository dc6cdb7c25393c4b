package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/quickbites/storefront/internal/cli/validate"
)

type registerOptions struct {
	form          validate.RegisterForm
	termsSet      bool
	rememberMe    bool
	rememberMeSet bool
}

// NewRegisterCmd creates the register command
func NewRegisterCmd(load Loader) *cobra.Command {
	var opts registerOptions

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a storefront account",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.termsSet = cmd.Flags().Changed("accept-terms")
			opts.rememberMeSet = cmd.Flags().Changed("remember-me")
			return withEnv(load, func(ctx context.Context, env *Env) error {
				return runRegister(ctx, env, opts)
			})(cmd.Context())
		},
	}

	f := &opts.form
	cmd.Flags().StringVar(&f.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&f.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&f.Phone, "phone", "", "10-digit phone number")
	cmd.Flags().StringVar(&f.Email, "email", "", "Email address (or set QUICKBITES_EMAIL)")
	cmd.Flags().StringVar(&f.Password, "password", "", "Password (or set QUICKBITES_PASSWORD)")
	cmd.Flags().StringVar(&f.ConfirmPassword, "confirm-password", "", "Password again")
	cmd.Flags().BoolVar(&f.TermsAccepted, "accept-terms", false, "Accept the terms and conditions")
	cmd.Flags().StringVar(&f.RecaptchaToken, "recaptcha-token", "", "reCAPTCHA token (or set QUICKBITES_RECAPTCHA_TOKEN)")
	cmd.Flags().BoolVar(&opts.rememberMe, "remember-me", false, "Keep the session after this terminal closes")

	return cmd
}

func runRegister(ctx context.Context, env *Env, opts registerOptions) error {
	f := opts.form
	if f.Email == "" {
		f.Email = os.Getenv("QUICKBITES_EMAIL")
	}
	if f.Password == "" {
		f.Password = os.Getenv("QUICKBITES_PASSWORD")
	}
	if f.RecaptchaToken == "" {
		f.RecaptchaToken = os.Getenv("QUICKBITES_RECAPTCHA_TOKEN")
	}

	texts := []struct {
		label string
		value *string
	}{
		{"First name", &f.FirstName},
		{"Last name", &f.LastName},
		{"Phone", &f.Phone},
		{"Email", &f.Email},
	}
	for _, t := range texts {
		if *t.value != "" {
			continue
		}
		v, err := env.Prompt.Text(t.label, nil)
		if err != nil {
			return err
		}
		*t.value = v
	}

	var err error
	if f.Password == "" {
		if f.Password, err = env.Prompt.Password("Password"); err != nil {
			return err
		}
	}
	if f.ConfirmPassword == "" {
		if f.ConfirmPassword, err = env.Prompt.Password("Confirm password"); err != nil {
			return err
		}
	}
	if f.RecaptchaToken == "" {
		if f.RecaptchaToken, err = env.Prompt.Text("reCAPTCHA token", nil); err != nil {
			return err
		}
	}
	if !opts.termsSet {
		if f.TermsAccepted, err = env.Prompt.Confirm("Accept the terms and conditions"); err != nil {
			return err
		}
	}
	rememberMe := opts.rememberMe
	if !opts.rememberMeSet {
		if rememberMe, err = env.Prompt.Confirm("Remember me"); err != nil {
			return err
		}
	}

	flow := env.Flow(ctx)
	defer flow.Detach()
	return reported(flow.Register(ctx, f, rememberMe))
}
