package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed request
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindCSRFUnavailable
	KindInvalidCredentials
	KindAccountLocked
	KindCaptchaFailed
	KindEmailUnverified
	KindOTPInvalid
	KindOTPDelivery
	KindNoAccount
	KindSessionExpired
	KindValidation
	KindCSRFRejected
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindTransport:          "transport",
	KindCSRFUnavailable:    "csrf_unavailable",
	KindInvalidCredentials: "invalid_credentials",
	KindAccountLocked:      "account_locked",
	KindCaptchaFailed:      "captcha_failed",
	KindEmailUnverified:    "email_unverified",
	KindOTPInvalid:         "otp_invalid",
	KindOTPDelivery:        "otp_delivery",
	KindNoAccount:          "no_account",
	KindSessionExpired:     "session_expired",
	KindValidation:         "validation",
	KindCSRFRejected:       "csrf_rejected",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FieldError is one server-side validation failure
type FieldError struct {
	Field string `json:"path,omitempty"`
	Msg   string `json:"msg"`
}

// APIError is returned for every failed call
type APIError struct {
	Kind    Kind
	Status  int // 0 when no response was received
	Code    string
	Message string
	UserID  string // set on unverified-email rejections
	Fields  []FieldError
	Err     error
}

func (e *APIError) Error() string {
	switch {
	case e.Kind == KindTransport:
		return fmt.Sprintf("request failed: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown if err is not an *APIError
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Machine-readable codes. The backend currently only sends messages; when
// a code is present it wins over message matching.
var codeKinds = map[string]Kind{
	"INVALID_CREDENTIALS": KindInvalidCredentials,
	"ACCOUNT_LOCKED":      KindAccountLocked,
	"RECAPTCHA_FAILED":    KindCaptchaFailed,
	"EMAIL_UNVERIFIED":    KindEmailUnverified,
	"OTP_INVALID":         KindOTPInvalid,
	"OTP_EXPIRED":         KindOTPInvalid,
	"OTP_DELIVERY_FAILED": KindOTPDelivery,
	"ACCOUNT_NOT_FOUND":   KindNoAccount,
	"CSRF_INVALID":        KindCSRFRejected,
	"SESSION_EXPIRED":     KindSessionExpired,
	"VALIDATION_FAILED":   KindValidation,
}

// Message fragments the backend uses as de facto error codes
var messageKinds = []struct {
	fragment string
	kind     Kind
}{
	{"please verify your email", KindEmailUnverified},
	{"invalid credentials", KindInvalidCredentials},
	{"recaptcha", KindCaptchaFailed},
	{"account is locked", KindAccountLocked},
	{"error sending otp email", KindOTPDelivery},
	{"invalid or expired otp", KindOTPInvalid},
	{"invalid otp", KindOTPInvalid},
	{"no account found", KindNoAccount},
	{"csrf", KindCSRFRejected},
}

// classify maps a rejected response onto a Kind. authed tells whether the
// request carried a bearer token, which is what makes a 401 mean "session
// expired" rather than "bad login".
func classify(status int, env envelope, authed bool) Kind {
	if kind, ok := codeKinds[strings.ToUpper(env.Code)]; ok {
		return kind
	}

	if authed && status == http.StatusUnauthorized {
		return KindSessionExpired
	}

	msg := strings.ToLower(env.Message)
	for _, m := range messageKinds {
		if strings.Contains(msg, m.fragment) {
			return m.kind
		}
	}

	switch status {
	case http.StatusLocked, http.StatusTooManyRequests:
		return KindAccountLocked
	}

	if len(env.Errors) > 0 {
		return KindValidation
	}
	return KindUnknown
}
