package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

const (
	maxResponseBytes = 1 << 20

	HeaderCSRF      = "X-CSRF-Token"
	HeaderRequestID = "X-Request-ID"
)

// Client represents an HTTP client for the storefront API
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a new API client. The client keeps cookies between calls:
// the CSRF token is bound to the cookie set by the csrf-token endpoint.
func New(baseURL string, timeout time.Duration, log zerolog.Logger) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		log: log,
	}, nil
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// CloseIdleConnections releases kept-alive connections
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the shape shared by every response body
type envelope struct {
	Success *bool        `json:"success"`
	Message string       `json:"message"`
	Code    string       `json:"code"`
	UserID  string       `json:"userId"`
	Errors  []FieldError `json:"errors"`
}

// call describes one request
type call struct {
	method string
	path   string
	csrf   string
	bearer string
	body   any
}

// do sends the request and decodes a successful body into out. Rejections,
// including 2xx bodies with "success": false, come back as *APIError.
func (c *Client) do(ctx context.Context, req call, out any) error {
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	requestID := ulid.Make().String()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, requestID)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.csrf != "" {
		httpReq.Header.Set(HeaderCSRF, req.csrf)
	}
	if req.bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Warn().Err(err).
			Str("request_id", requestID).
			Str("method", req.method).
			Str("path", req.path).
			Msg("HTTP request failed")
		return &APIError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Kind: KindTransport, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.log.Debug().
		Str("request_id", requestID).
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("HTTP request")

	var env envelope
	envErr := json.Unmarshal(raw, &env)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok && (env.Success == nil || *env.Success) {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	if envErr != nil && env.Message == "" {
		env.Message = strings.TrimSpace(string(raw))
		if env.Message == "" {
			env.Message = http.StatusText(resp.StatusCode)
		}
	}

	return &APIError{
		Kind:    classify(resp.StatusCode, env, req.bearer != ""),
		Status:  resp.StatusCode,
		Code:    env.Code,
		Message: env.Message,
		UserID:  env.UserID,
		Fields:  env.Errors,
	}
}

// CSRFTokenResponse is the body of GET /auth/csrf-token
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// CSRFToken fetches an anti-forgery token. Every failure is reported as
// KindCSRFUnavailable.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	var resp CSRFTokenResponse
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/csrf-token"}, &resp); err != nil {
		apiErr := &APIError{Kind: KindCSRFUnavailable, Err: err}
		var prev *APIError
		if errors.As(err, &prev) {
			apiErr.Status = prev.Status
			apiErr.Message = prev.Message
		}
		return "", apiErr
	}
	if resp.CSRFToken == "" {
		return "", &APIError{Kind: KindCSRFUnavailable, Status: http.StatusOK, Message: "empty csrf token"}
	}
	return resp.CSRFToken, nil
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// LoginResponse represents the login response. A response without a token
// means an OTP was sent and must be verified.
type LoginResponse struct {
	Success              bool   `json:"success"`
	UserID               string `json:"userId"`
	Token                string `json:"token,omitempty"`
	RequiresVerification bool   `json:"requiresVerification,omitempty"`
	Message              string `json:"message,omitempty"`
}

// Login submits credentials
func (c *Client) Login(ctx context.Context, csrf string, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/login", csrf: csrf, body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyOTPRequest represents the OTP verification body
type VerifyOTPRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

// VerifyOTPResponse carries the session token on success
type VerifyOTPResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	UserID  string `json:"userId"`
	Message string `json:"message,omitempty"`
}

// VerifyOTP answers the login challenge
func (c *Client) VerifyOTP(ctx context.Context, csrf string, req VerifyOTPRequest) (*VerifyOTPResponse, error) {
	var resp VerifyOTPResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/verify-otp", csrf: csrf, body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPasswordResponse identifies the account the reset code was sent to
type ForgotPasswordResponse struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Message string `json:"message,omitempty"`
}

// ForgotPassword asks the backend to email a reset code
func (c *Client) ForgotPassword(ctx context.Context, csrf string, req ForgotPasswordRequest) (*ForgotPasswordResponse, error) {
	var resp ForgotPasswordResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/forgot-password", csrf: csrf, body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterRequest represents the registration form
type RegisterRequest struct {
	FirstName       string `json:"fname"`
	LastName        string `json:"lname"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	RecaptchaToken  string `json:"recaptchaToken"`
	TermsAccepted   bool   `json:"termsAccepted"`
}

// RegisterResponse carries the new account's session
type RegisterResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	UserID  string `json:"userId"`
	Role    string `json:"role"`
	Message string `json:"message,omitempty"`
}

// Register creates a customer account
func (c *Client) Register(ctx context.Context, csrf string, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: "/auth/register", csrf: csrf, body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Item is a catalog entry
type Item struct {
	ID       string  `json:"_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`
}

// ItemsByTags groups the home page sections
type ItemsByTags struct {
	Featured []Item `json:"Featured"`
	Trending []Item `json:"Trending"`
	Popular  []Item `json:"Popular"`
	Special  []Item `json:"Special"`
}

// ItemsByTags fetches the tagged catalog sections. Guests pass an empty token.
func (c *Client) ItemsByTags(ctx context.Context, csrf, token string) (*ItemsByTags, error) {
	var resp ItemsByTags
	if err := c.do(ctx, call{method: http.MethodGet, path: "/item/items-by-tags", csrf: csrf, bearer: token}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
