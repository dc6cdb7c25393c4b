package authflow

import (
	"errors"
	"fmt"

	"github.com/quickbites/storefront/internal/cli/client"
)

// State of the login flow
type State int

const (
	Idle State = iota
	SubmittingCredentials
	ChallengeIssued
	SubmittingChallenge
	Authenticated
	Failed
	// Blocked is the challenge step entered without a usable challenge.
	// The only way out is BackToLogin.
	Blocked
)

var stateNames = map[State]string{
	Idle:                  "idle",
	SubmittingCredentials: "submitting_credentials",
	ChallengeIssued:       "challenge_issued",
	SubmittingChallenge:   "submitting_challenge",
	Authenticated:         "authenticated",
	Failed:                "failed",
	Blocked:               "blocked",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrBusy is returned while another submission is in flight
	ErrBusy = errors.New("a submission is already in progress")
	// ErrNoPendingChallenge is returned when there is no OTP challenge to answer
	ErrNoPendingChallenge = errors.New("no pending login challenge")
	// ErrDetached is returned for responses that arrived after Detach
	ErrDetached = errors.New("flow detached")
	// ErrInvalidState is returned for actions the current state does not allow
	ErrInvalidState = errors.New("action not allowed in current state")
)

// FlowError is a failed submission. Message is what the user was shown.
type FlowError struct {
	Kind    client.Kind
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	return e.Message
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// User-facing messages
const (
	MsgOTPSent            = "OTP sent to your email!"
	MsgVerifyEmail        = "Please verify your email before logging in"
	MsgInvalidCredentials = "Invalid email or password"
	MsgCaptchaFailed      = "reCAPTCHA verification failed"
	MsgTooManyAttempts    = "Too many attempts. Please try again after 15 minutes."
	MsgOTPDelivery        = "Failed to send OTP email. Please try again later."
	MsgLoginFailed        = "Login failed: Please try again."
	MsgLoggedIn           = "Logged in successfully!"
	MsgAlreadyLoggedIn    = "Already logged in!"
	MsgInvalidSession     = "Invalid session. Please log in again."
	MsgInvalidOTP         = "Invalid or expired OTP."
	MsgVerifyFailed       = "Error verifying OTP. Please try again."
	MsgCSRFUnavailable    = "Failed to fetch CSRF token. Please refresh the page."
	MsgCSRFRejected       = "Security token rejected. Please refresh the page and try again."
	MsgNetwork            = "Network error. Please check your connection and try again."
	MsgSessionExpired     = "Session expired. Please log in again."
	MsgRegistered         = "Registration successful!"
	MsgRegisterFailed     = "Registration failed! Please try again."
	MsgNoAccount          = "No account found with that email"
	MsgResetFailed        = "Failed to process request. Please try again."
)

// loginMessages maps a rejected login onto what the user is told
var loginMessages = map[client.Kind]string{
	client.KindInvalidCredentials: MsgInvalidCredentials,
	client.KindCaptchaFailed:      MsgCaptchaFailed,
	client.KindAccountLocked:      MsgTooManyAttempts,
	client.KindOTPDelivery:        MsgOTPDelivery,
	client.KindCSRFUnavailable:    MsgCSRFUnavailable,
	client.KindCSRFRejected:       MsgCSRFRejected,
	client.KindTransport:          MsgNetwork,
}
