package authflow

import (
	"context"
	"errors"

	"github.com/quickbites/storefront/internal/cli/client"
	"github.com/quickbites/storefront/internal/cli/csrf"
	"github.com/quickbites/storefront/internal/cli/ui"
	"github.com/quickbites/storefront/internal/cli/userconfig"
	"github.com/quickbites/storefront/internal/cli/validate"
)

var resetMessages = map[client.Kind]string{
	client.KindNoAccount:       MsgNoAccount,
	client.KindOTPDelivery:     MsgOTPDelivery,
	client.KindCSRFUnavailable: MsgCSRFUnavailable,
	client.KindCSRFRejected:    MsgCSRFRejected,
	client.KindTransport:       MsgNetwork,
}

// Register creates an account and stores the session it comes with
func (c *Controller) Register(ctx context.Context, form validate.RegisterForm, rememberMe bool) error {
	if err := validate.Register(&form); err != nil {
		return err
	}

	ctx, release, err := c.claim(ctx, nil)
	if err != nil {
		return err
	}
	defer release()

	token, err := c.csrf.Token(ctx)
	if err != nil {
		return c.settle(func() error { return c.formTokenFailedLocked(err) })
	}

	resp, err := c.api.Register(ctx, token, client.RegisterRequest{
		FirstName:       form.FirstName,
		LastName:        form.LastName,
		Phone:           form.Phone,
		Email:           form.Email,
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
		RecaptchaToken:  form.RecaptchaToken,
		TermsAccepted:   form.TermsAccepted,
	})

	return c.settle(func() error {
		if err != nil {
			return c.registerRejectedLocked(err)
		}

		if resp.Token != "" && resp.UserID != "" {
			if err := c.sessions.Login(resp.Token, resp.UserID, rememberMe); err != nil {
				c.log.Warn().Err(err).Msg("Failed to store session after registration")
			}
		}
		c.err = nil
		c.log.Info().Str("user_id", resp.UserID).Msg("Registered")
		c.presenter.Announce(ui.Success(MsgRegistered), ui.RouteLogin)
		return nil
	})
}

func (c *Controller) registerRejectedLocked(err error) error {
	var apiErr *client.APIError
	errors.As(err, &apiErr)

	switch kind := client.KindOf(err); {
	case kind == client.KindTransport:
		return c.formFailedLocked(kind, MsgNetwork, err)
	case kind == client.KindCSRFUnavailable:
		return c.formFailedLocked(kind, MsgCSRFUnavailable, err)
	case kind == client.KindCSRFRejected:
		return c.formFailedLocked(kind, MsgCSRFRejected, err)
	case apiErr != nil && apiErr.Message != "":
		return c.formFailedLocked(kind, apiErr.Message, err)
	case apiErr != nil && len(apiErr.Fields) > 0:
		for _, f := range apiErr.Fields[:len(apiErr.Fields)-1] {
			c.presenter.Notify(ui.Error(f.Msg))
		}
		return c.formFailedLocked(client.KindValidation, apiErr.Fields[len(apiErr.Fields)-1].Msg, err)
	default:
		return c.formFailedLocked(kind, MsgRegisterFailed, err)
	}
}

// ForgotPassword asks for a reset code and remembers which account it went to
func (c *Controller) ForgotPassword(ctx context.Context, email string) error {
	form := validate.ForgotForm{Email: email}
	if err := validate.Forgot(&form); err != nil {
		return err
	}

	ctx, release, err := c.claim(ctx, nil)
	if err != nil {
		return err
	}
	defer release()

	token, err := c.csrf.Token(ctx)
	if err != nil {
		return c.settle(func() error { return c.formTokenFailedLocked(err) })
	}

	resp, err := c.api.ForgotPassword(ctx, token, client.ForgotPasswordRequest{Email: form.Email})

	return c.settle(func() error {
		if err != nil {
			kind := client.KindOf(err)
			msg, ok := resetMessages[kind]
			if !ok {
				msg = MsgResetFailed
			}
			return c.formFailedLocked(kind, msg, err)
		}

		if err := c.store.SaveReset(userconfig.PendingReset{UserID: resp.UserID, Email: form.Email}); err != nil {
			c.log.Warn().Err(err).Msg("Failed to save pending reset")
		}
		c.err = nil
		c.presenter.Announce(ui.Success(MsgOTPSent), ui.RouteResetPassword)
		return nil
	})
}

// formFailedLocked reports a failed form without touching the login state
func (c *Controller) formFailedLocked(kind client.Kind, msg string, err error) error {
	c.err = &FlowError{Kind: kind, Message: msg, Err: err}
	c.log.Info().Err(err).Str("kind", kind.String()).Msg("Submission failed")
	c.presenter.Notify(ui.Error(msg))
	return c.err
}

func (c *Controller) formTokenFailedLocked(err error) error {
	if !errors.Is(err, csrf.ErrUnavailable) {
		return c.formFailedLocked(client.KindTransport, MsgNetwork, err)
	}
	return c.formFailedLocked(client.KindCSRFUnavailable, MsgCSRFUnavailable, err)
}
