// Package authflow drives the login sequence: credentials, OTP challenge,
// session storage and the role-based redirect. It also owns the other
// CSRF-gated account forms (registration and password reset).
//
// A Controller lives as long as one command run. It never retries a
// request on its own; every retry is a new call by the user.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/quickbites/storefront/internal/cli/client"
	"github.com/quickbites/storefront/internal/cli/csrf"
	"github.com/quickbites/storefront/internal/cli/session"
	"github.com/quickbites/storefront/internal/cli/ui"
	"github.com/quickbites/storefront/internal/cli/userconfig"
	"github.com/quickbites/storefront/internal/cli/validate"
)

// API is the part of the backend the flow talks to
type API interface {
	Login(ctx context.Context, csrf string, req client.LoginRequest) (*client.LoginResponse, error)
	VerifyOTP(ctx context.Context, csrf string, req client.VerifyOTPRequest) (*client.VerifyOTPResponse, error)
	Register(ctx context.Context, csrf string, req client.RegisterRequest) (*client.RegisterResponse, error)
	ForgotPassword(ctx context.Context, csrf string, req client.ForgotPasswordRequest) (*client.ForgotPasswordResponse, error)
}

// TokenSource hands out the CSRF token
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Status() csrf.Status
}

// Sessions is where a successful login ends up
type Sessions interface {
	Login(token, userID string, rememberMe bool) error
	Role() session.Role
}

// PendingStore keeps the pending challenge (and reset) between commands
type PendingStore interface {
	LoadChallenge() (*userconfig.PendingChallenge, error)
	SaveChallenge(p userconfig.PendingChallenge) error
	ClearChallenge() error
	SaveReset(r userconfig.PendingReset) error
}

// Credentials is what the login form submits
type Credentials struct {
	Email          string
	Password       string
	RecaptchaToken string
	RememberMe     bool
}

// Config wires a Controller
type Config struct {
	API       API
	CSRF      TokenSource
	Sessions  Sessions
	Presenter ui.Presenter
	Pending   PendingStore
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Controller runs the login flow
type Controller struct {
	api       API
	csrf      TokenSource
	sessions  Sessions
	presenter ui.Presenter
	store     PendingStore
	log       zerolog.Logger
	now       func() time.Time

	busy atomic.Bool

	mu       sync.Mutex
	state    State
	resting  State // where Failed returns to
	pending  *userconfig.PendingChallenge
	err      error
	detached bool
	cancel   context.CancelFunc
}

// New creates a controller in the Idle state
func New(cfg Config) *Controller {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		api:       cfg.API,
		csrf:      cfg.CSRF,
		sessions:  cfg.Sessions,
		presenter: cfg.Presenter,
		store:     cfg.Pending,
		log:       cfg.Logger,
		now:       now,
		state:     Idle,
		resting:   Idle,
	}
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resting is the state a Failed flow goes back to
func (c *Controller) Resting() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Failed {
		return c.resting
	}
	return c.state
}

// Pending returns a copy of the pending challenge, nil if there is none
func (c *Controller) Pending() *userconfig.PendingChallenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return nil
	}
	p := *c.pending
	return &p
}

// Err is the reason for the last failure
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// CanSubmit is the "submit button enabled" flag: a CSRF token is in hand,
// nothing is in flight and the current step accepts input.
func (c *Controller) CanSubmit() bool {
	if c.busy.Load() || c.csrf.Status() != csrf.Ready {
		return false
	}
	switch c.State() {
	case Blocked, Authenticated:
		return false
	default:
		return true
	}
}

// SubmitCredentials is the login form submit
func (c *Controller) SubmitCredentials(ctx context.Context, creds Credentials) error {
	form := validate.LoginForm{
		Email:          creds.Email,
		Password:       creds.Password,
		RecaptchaToken: creds.RecaptchaToken,
	}
	if err := validate.Login(&form); err != nil {
		return err
	}

	ctx, release, err := c.begin(ctx, SubmittingCredentials, Idle, ChallengeIssued)
	if err != nil {
		return err
	}
	defer release()

	token, err := c.csrf.Token(ctx)
	if err != nil {
		return c.settle(func() error {
			return c.tokenFailedLocked(Idle, err)
		})
	}

	resp, err := c.api.Login(ctx, token, client.LoginRequest{
		Email:          form.Email,
		Password:       form.Password,
		RecaptchaToken: form.RecaptchaToken,
	})

	return c.settle(func() error {
		if err != nil {
			return c.loginRejectedLocked(form.Email, creds.RememberMe, err)
		}

		if resp.Token != "" && !resp.RequiresVerification {
			return c.authenticateLocked(resp.Token, resp.UserID, creds.RememberMe, Idle)
		}

		if resp.UserID == "" {
			return c.failLocked(Idle, client.KindUnknown, MsgLoginFailed, errors.New("login response without userId"))
		}

		c.issueLocked(resp.UserID, form.Email, creds.RememberMe)
		c.presenter.Announce(ui.Success(MsgOTPSent), ui.RouteVerifyOTP)
		return nil
	})
}

func (c *Controller) loginRejectedLocked(email string, rememberMe bool, err error) error {
	kind := client.KindOf(err)

	if kind == client.KindEmailUnverified {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.UserID != "" {
			c.issueLocked(apiErr.UserID, email, rememberMe)
		} else {
			// no user id to verify against: the challenge step opens blocked
			c.discardLocked()
			c.state = Blocked
			c.resting = Blocked
			c.err = nil
		}
		c.presenter.Announce(ui.Error(MsgVerifyEmail), ui.RouteVerifyOTP)
		return nil
	}

	if kind == client.KindValidation {
		return c.fieldErrorsLocked(Idle, err, MsgLoginFailed)
	}

	msg, ok := loginMessages[kind]
	if !ok {
		msg = MsgLoginFailed
	}
	return c.failLocked(Idle, kind, msg, err)
}

// fieldErrorsLocked shows every server-side field error as its own notice
func (c *Controller) fieldErrorsLocked(resting State, err error, fallback string) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return c.failLocked(resting, client.KindOf(err), fallback, err)
	}

	msgs := make([]string, 0, len(apiErr.Fields))
	for _, f := range apiErr.Fields {
		msgs = append(msgs, f.Msg)
	}
	for _, msg := range msgs[:len(msgs)-1] {
		c.presenter.Notify(ui.Error(msg))
	}
	return c.failLocked(resting, client.KindValidation, msgs[len(msgs)-1], err)
}

// Resume loads the challenge saved by an earlier login and enters it
func (c *Controller) Resume() error {
	p, err := c.store.LoadChallenge()
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to load pending challenge")
	}
	return c.EnterChallenge(p)
}

// EnterChallenge opens the challenge step. Without a user id and email the
// step is Blocked and nothing can be submitted.
func (c *Controller) EnterChallenge(p *userconfig.PendingChallenge) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submittingLocked() {
		return ErrBusy
	}

	if p == nil || p.UserID == "" || p.Email == "" {
		c.pending = nil
		c.state = Blocked
		c.err = ErrNoPendingChallenge
		c.presenter.Notify(ui.Error(MsgInvalidSession))
		return ErrNoPendingChallenge
	}

	cp := *p
	c.pending = &cp
	c.state = ChallengeIssued
	c.err = nil
	return nil
}

// SubmitChallenge answers the OTP challenge. Codes that are not exactly six
// digits are rejected without a request.
func (c *Controller) SubmitChallenge(ctx context.Context, code string) error {
	c.mu.Lock()
	blocked := c.state == Blocked || (c.pending == nil && !c.submittingLocked())
	c.mu.Unlock()
	if blocked {
		return ErrNoPendingChallenge
	}

	if err := validate.OTP(code); err != nil {
		c.presenter.Notify(ui.Error(validate.InvalidOTPMessage))
		return err
	}

	ctx, release, err := c.begin(ctx, SubmittingChallenge, ChallengeIssued)
	if err != nil {
		return err
	}
	defer release()

	c.mu.Lock()
	pending := *c.pending
	c.mu.Unlock()

	token, err := c.csrf.Token(ctx)
	if err != nil {
		return c.settle(func() error {
			return c.tokenFailedLocked(ChallengeIssued, err)
		})
	}

	resp, err := c.api.VerifyOTP(ctx, token, client.VerifyOTPRequest{UserID: pending.UserID, OTP: code})

	return c.settle(func() error {
		if err != nil {
			return c.challengeRejectedLocked(err)
		}
		if resp.Token == "" || resp.UserID == "" {
			return c.failLocked(ChallengeIssued, client.KindUnknown, MsgVerifyFailed, errors.New("missing token or userId in response"))
		}
		return c.authenticateLocked(resp.Token, resp.UserID, pending.RememberMe, ChallengeIssued)
	})
}

func (c *Controller) challengeRejectedLocked(err error) error {
	var apiErr *client.APIError
	errors.As(err, &apiErr)

	if client.KindOf(err) == client.KindOTPInvalid {
		msg := MsgInvalidOTP
		if apiErr != nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		c.discardLocked()
		c.state = Idle
		c.resting = Idle
		c.err = &FlowError{Kind: client.KindOTPInvalid, Message: msg, Err: err}
		c.presenter.Announce(ui.Error(msg), ui.RouteLogin)
		return c.err
	}

	switch {
	case client.KindOf(err) == client.KindCSRFUnavailable:
		return c.failLocked(ChallengeIssued, client.KindCSRFUnavailable, MsgCSRFUnavailable, err)
	case client.KindOf(err) == client.KindCSRFRejected:
		return c.failLocked(ChallengeIssued, client.KindCSRFRejected, MsgCSRFRejected, err)
	case client.KindOf(err) == client.KindTransport:
		return c.failLocked(ChallengeIssued, client.KindTransport, MsgNetwork, err)
	case apiErr != nil && apiErr.Message != "":
		return c.failLocked(ChallengeIssued, apiErr.Kind, apiErr.Message, err)
	default:
		return c.failLocked(ChallengeIssued, client.KindOf(err), MsgVerifyFailed, err)
	}
}

// BackToLogin drops the pending challenge and returns to the login step
func (c *Controller) BackToLogin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submittingLocked() {
		return ErrBusy
	}

	c.discardLocked()
	c.state = Idle
	c.resting = Idle
	c.err = nil
	c.presenter.Navigate(ui.RouteLogin)
	return nil
}

// Detach is the flow going away. Responses arriving afterwards change
// nothing and show nothing; in-flight requests are cancelled.
func (c *Controller) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
	if c.cancel != nil {
		c.cancel()
	}
}

// RouteFor is where a user with role lands after logging in
func RouteFor(role session.Role) ui.Route {
	if role == session.RoleAdmin {
		return ui.RouteAdminDashboard
	}
	return ui.RouteHome
}

// begin claims the busy flag and moves to the submitting state. from lists
// the resting states the submission may start from.
func (c *Controller) begin(ctx context.Context, submitting State, from ...State) (context.Context, func(), error) {
	return c.claim(ctx, func() error {
		current := c.state
		if current == Failed {
			current = c.resting
		}
		for _, s := range from {
			if s == current {
				c.resting = current
				c.state = submitting
				return nil
			}
		}
		if submitting == SubmittingChallenge {
			return ErrNoPendingChallenge
		}
		return fmt.Errorf("%w: %s", ErrInvalidState, c.state)
	})
}

// claim takes the busy flag for one request. check runs under the lock
// and can refuse the claim.
func (c *Controller) claim(ctx context.Context, check func() error) (context.Context, func(), error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, nil, ErrBusy
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		c.busy.Store(false)
		return nil, nil, ErrDetached
	}
	if check != nil {
		if err := check(); err != nil {
			c.busy.Store(false)
			return nil, nil, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	release := func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		c.busy.Store(false)
	}
	return ctx, release, nil
}

// tokenFailedLocked reports a CSRF token that could not be had
func (c *Controller) tokenFailedLocked(resting State, err error) error {
	if !errors.Is(err, csrf.ErrUnavailable) {
		return c.failLocked(resting, client.KindTransport, MsgNetwork, err)
	}
	return c.failLocked(resting, client.KindCSRFUnavailable, MsgCSRFUnavailable, err)
}

// settle applies the outcome of a request unless the flow was detached
func (c *Controller) settle(apply func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		c.log.Debug().Msg("Dropping response after detach")
		return ErrDetached
	}
	return apply()
}

func (c *Controller) submittingLocked() bool {
	return c.state == SubmittingCredentials || c.state == SubmittingChallenge
}

func (c *Controller) failLocked(resting State, kind client.Kind, msg string, err error) error {
	c.state = Failed
	c.resting = resting
	c.err = &FlowError{Kind: kind, Message: msg, Err: err}
	c.log.Info().Err(err).Str("kind", kind.String()).Msg("Submission failed")
	c.presenter.Notify(ui.Error(msg))
	return c.err
}

func (c *Controller) issueLocked(userID, email string, rememberMe bool) {
	c.pending = &userconfig.PendingChallenge{
		UserID:     userID,
		Email:      email,
		RememberMe: rememberMe,
		IssuedAt:   c.now(),
	}
	c.state = ChallengeIssued
	c.resting = ChallengeIssued
	c.err = nil

	if err := c.store.SaveChallenge(*c.pending); err != nil {
		c.log.Warn().Err(err).Msg("Failed to save pending challenge")
	}
}

func (c *Controller) discardLocked() {
	c.pending = nil
	if err := c.store.ClearChallenge(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear pending challenge")
	}
}

func (c *Controller) authenticateLocked(token, userID string, rememberMe bool, resting State) error {
	if err := c.sessions.Login(token, userID, rememberMe); err != nil {
		return c.failLocked(resting, client.KindUnknown, MsgLoginFailed, fmt.Errorf("failed to save session: %w", err))
	}

	c.discardLocked()
	c.state = Authenticated
	c.resting = Authenticated
	c.err = nil

	role := c.sessions.Role()
	c.log.Info().Str("user_id", userID).Str("role", string(role)).Bool("remember_me", rememberMe).Msg("Logged in")
	c.presenter.Announce(ui.Success(MsgLoggedIn), RouteFor(role))
	return nil
}
