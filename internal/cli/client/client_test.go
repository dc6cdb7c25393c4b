package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbites/storefront/internal/testutil/fakeapi"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(baseURL, 5*time.Second, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestClient_LoginWithCSRFCookie(t *testing.T) {
	api := fakeapi.New(t)
	userID := api.AddUser(fakeapi.User{Email: "ana@example.com", Password: "S3cure#pass"})
	c := newTestClient(t, api.APIURL())
	ctx := context.Background()

	csrf, err := c.CSRFToken(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, csrf)

	resp, err := c.Login(ctx, csrf, LoginRequest{
		Email:          "ana@example.com",
		Password:       "S3cure#pass",
		RecaptchaToken: fakeapi.ValidCaptcha,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, userID, resp.UserID)
	assert.Empty(t, resp.Token)

	otp, err := c.VerifyOTP(ctx, csrf, VerifyOTPRequest{UserID: userID, OTP: fakeapi.DefaultOTP})
	require.NoError(t, err)
	assert.NotEmpty(t, otp.Token)
	assert.Equal(t, userID, otp.UserID)
}

func TestClient_MissingCSRFIsRejected(t *testing.T) {
	api := fakeapi.New(t)
	c := newTestClient(t, api.APIURL())

	_, err := c.Login(context.Background(), "", LoginRequest{Email: "a@b.co", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, KindCSRFRejected, KindOf(err))
	assert.Equal(t, 0, api.Calls("/auth/csrf-token"))
}

func TestClient_CSRFFailure(t *testing.T) {
	api := fakeapi.New(t)
	api.FailCSRF(true)
	c := newTestClient(t, api.APIURL())

	_, err := c.CSRFToken(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindCSRFUnavailable, apiErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestClient_LoginRejections(t *testing.T) {
	api := fakeapi.New(t)
	api.AddUser(fakeapi.User{Email: "ok@example.com", Password: "S3cure#pass"})
	api.AddUser(fakeapi.User{Email: "locked@example.com", Password: "S3cure#pass", Locked: true})
	unverifiedID := api.AddUser(fakeapi.User{Email: "new@example.com", Password: "S3cure#pass", Unverified: true})

	tests := []struct {
		name     string
		req      LoginRequest
		wantKind Kind
		wantUser string
	}{
		{
			name:     "wrong password",
			req:      LoginRequest{Email: "ok@example.com", Password: "nope", RecaptchaToken: fakeapi.ValidCaptcha},
			wantKind: KindInvalidCredentials,
		},
		{
			name:     "unknown user",
			req:      LoginRequest{Email: "ghost@example.com", Password: "nope", RecaptchaToken: fakeapi.ValidCaptcha},
			wantKind: KindInvalidCredentials,
		},
		{
			name:     "bad captcha",
			req:      LoginRequest{Email: "ok@example.com", Password: "S3cure#pass", RecaptchaToken: "bot"},
			wantKind: KindCaptchaFailed,
		},
		{
			name:     "locked",
			req:      LoginRequest{Email: "locked@example.com", Password: "S3cure#pass", RecaptchaToken: fakeapi.ValidCaptcha},
			wantKind: KindAccountLocked,
		},
		{
			name:     "unverified email",
			req:      LoginRequest{Email: "new@example.com", Password: "S3cure#pass", RecaptchaToken: fakeapi.ValidCaptcha},
			wantKind: KindEmailUnverified,
			wantUser: unverifiedID,
		},
	}

	c := newTestClient(t, api.APIURL())
	ctx := context.Background()
	csrf, err := c.CSRFToken(ctx)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Login(ctx, csrf, tt.req)
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantKind, apiErr.Kind, apiErr.Error())
			assert.Equal(t, tt.wantUser, apiErr.UserID)
		})
	}
}

func TestClient_SuccessFalseIsAnError(t *testing.T) {
	api := fakeapi.New(t)
	userID := api.AddUser(fakeapi.User{Email: "ana@example.com", Password: "S3cure#pass"})
	c := newTestClient(t, api.APIURL())
	ctx := context.Background()

	csrf, err := c.CSRFToken(ctx)
	require.NoError(t, err)
	_, err = c.Login(ctx, csrf, LoginRequest{Email: "ana@example.com", Password: "S3cure#pass", RecaptchaToken: fakeapi.ValidCaptcha})
	require.NoError(t, err)

	_, err = c.VerifyOTP(ctx, csrf, VerifyOTPRequest{UserID: userID, OTP: "000000"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindOTPInvalid, apiErr.Kind)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.Equal(t, "Invalid or expired OTP", apiErr.Message)
}

func TestClient_ItemsByTags(t *testing.T) {
	api := fakeapi.New(t)
	api.AddUser(fakeapi.User{Email: "ana@example.com", Password: "S3cure#pass"})
	c := newTestClient(t, api.APIURL())
	ctx := context.Background()

	csrf, err := c.CSRFToken(ctx)
	require.NoError(t, err)

	t.Run("guest", func(t *testing.T) {
		items, err := c.ItemsByTags(ctx, csrf, "")
		require.NoError(t, err)
		require.Len(t, items.Featured, 1)
		assert.Equal(t, "Matte Lipstick", items.Featured[0].Name)
	})

	t.Run("valid session", func(t *testing.T) {
		token, err := api.SignToken("ana@example.com")
		require.NoError(t, err)
		_, err = c.ItemsByTags(ctx, csrf, token)
		require.NoError(t, err)
	})

	t.Run("rejected session", func(t *testing.T) {
		_, err := c.ItemsByTags(ctx, csrf, "forged.token.value")
		require.Error(t, err)
		assert.Equal(t, KindSessionExpired, KindOf(err))
	})
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.Login(context.Background(), "t", LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestClient_SendsRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "userId": "u-1"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Login(context.Background(), "csrf-value", LoginRequest{Email: "a@b.co"})
	require.NoError(t, err)

	assert.Equal(t, "csrf-value", got.Get(HeaderCSRF))
	assert.Len(t, got.Get(HeaderRequestID), 26)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Empty(t, got.Get("Authorization"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		env    envelope
		authed bool
		want   Kind
	}{
		{name: "code wins over message", status: 400, env: envelope{Code: "account_locked", Message: "invalid credentials"}, want: KindAccountLocked},
		{name: "authed 401", status: 401, env: envelope{Message: "jwt expired"}, authed: true, want: KindSessionExpired},
		{name: "anonymous 401", status: 401, env: envelope{Message: "Invalid credentials"}, want: KindInvalidCredentials},
		{name: "otp mail failure", status: 500, env: envelope{Message: "Error sending OTP email"}, want: KindOTPDelivery},
		{name: "no account", status: 404, env: envelope{Message: "No account found with that email"}, want: KindNoAccount},
		{name: "rate limited", status: 429, env: envelope{Message: "slow down"}, want: KindAccountLocked},
		{name: "field errors", status: 400, env: envelope{Errors: []FieldError{{Field: "email", Msg: "bad"}}}, want: KindValidation},
		{name: "csrf code", status: 403, env: envelope{Code: "CSRF_INVALID"}, want: KindCSRFRejected},
		{name: "csrf message", status: 403, env: envelope{Message: "invalid csrf token"}, want: KindCSRFRejected},
		{name: "anything else", status: 500, env: envelope{Message: "boom"}, want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.status, tt.env, tt.authed))
		})
	}
}
