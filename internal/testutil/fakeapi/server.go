// Package fakeapi is an in-process stand-in for the storefront backend. It
// speaks the same HTTP contract as the real API (CSRF cookie + header,
// login with OTP challenge, JWT sessions) and records what it was asked.
package fakeapi

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const (
	csrfCookieName = "_csrf"

	// ValidCaptcha is the only reCAPTCHA token the fake accepts
	ValidCaptcha = "captcha-ok"
	// DefaultOTP is the code issued unless SetOTP says otherwise
	DefaultOTP = "123456"
)

// User is an account known to the fake
type User struct {
	ID         string
	Email      string
	Password   string
	Role       string
	Unverified bool
	Locked     bool
	SkipOTP    bool

	passwordHash []byte
}

// Server is the fake backend
type Server struct {
	*httptest.Server

	// TokenTTL is the lifetime of issued session tokens
	TokenTTL time.Duration

	router *gin.Engine
	log    zerolog.Logger
	secret []byte

	mu         sync.Mutex
	failCSRF   bool
	users      map[string]*User // by lower-cased email
	otps       map[string]string
	csrfTokens map[string]bool
	calls      map[string]int
	gates      map[string]chan struct{}
	items      map[string][]gin.H
}

// New starts a fake backend that is shut down when the test ends
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		TokenTTL:   time.Hour,
		log:        zerolog.Nop(),
		secret:     randomBytes(32),
		users:      make(map[string]*User),
		otps:       make(map[string]string),
		csrfTokens: make(map[string]bool),
		calls:      make(map[string]int),
		gates:      make(map[string]chan struct{}),
		items: map[string][]gin.H{
			"Featured": {{"_id": "i-1", "name": "Matte Lipstick", "price": 220}},
			"Trending": {{"_id": "i-2", "name": "Hydrating Face Serum", "price": 1450}},
			"Popular":  {{"_id": "i-3", "name": "Volumizing Mascara", "price": 480}},
			"Special":  {},
		},
	}
	s.setupRouter()
	s.Server = httptest.NewServer(s.router)
	t.Cleanup(s.Close)
	return s
}

// APIURL is the base URL clients should be pointed at
func (s *Server) APIURL() string {
	return s.URL + "/api/v1"
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.TestMode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.countingMiddleware())

	// The storefront SPA calls the API cross-origin with credentials
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-CSRF-Token", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := s.router.Group("/api/v1")
	api.GET("/auth/csrf-token", s.csrfToken)

	protected := api.Group("")
	protected.Use(s.csrfMiddleware())
	{
		protected.POST("/auth/login", s.login)
		protected.POST("/auth/verify-otp", s.verifyOTP)
		protected.POST("/auth/forgot-password", s.forgotPassword)
		protected.POST("/auth/register", s.register)
		protected.GET("/item/items-by-tags", s.optionalAuthMiddleware(), s.itemsByTags)
	}
}

// countingMiddleware records every call and honours Hold
func (s *Server) countingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := strings.TrimPrefix(c.Request.URL.Path, "/api/v1")

		s.mu.Lock()
		s.calls[path]++
		gate := s.gates[path]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}

		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

// Calls returns how many requests reached path (e.g. "/auth/login")
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Hold blocks requests to path until the returned release is called
func (s *Server) Hold(path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, path)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// AddUser registers an account and returns its ID
func (s *Server) AddUser(u User) string {
	hash, err := hashPassword(u.Password)
	if err != nil {
		panic(err)
	}
	u.passwordHash = hash
	if u.ID == "" {
		u.ID = ulid.Make().String()
	}
	if u.Role == "" {
		u.Role = "customer"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(u.Email)] = &u
	return u.ID
}

// SetOTP fixes the code the next challenge for userID will expect
func (s *Server) SetOTP(userID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[userID] = code
}

// FailCSRF makes the csrf-token endpoint answer 500
func (s *Server) FailCSRF(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCSRF = fail
}

func (s *Server) csrfToken(c *gin.Context) {
	s.mu.Lock()
	fail := s.failCSRF
	s.mu.Unlock()
	if fail {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "csrf unavailable"})
		return
	}

	token := hex.EncodeToString(randomBytes(16))
	s.mu.Lock()
	s.csrfTokens[token] = true
	s.mu.Unlock()

	c.SetCookie(csrfCookieName, token, 3600, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"csrfToken": token})
}

// csrfMiddleware requires the header token to match the cookie-bound one
func (s *Server) csrfMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("X-CSRF-Token")
		cookie, err := c.Cookie(csrfCookieName)

		s.mu.Lock()
		known := s.csrfTokens[header]
		s.mu.Unlock()

		if err != nil || header == "" || header != cookie || !known {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "invalid csrf token"})
			return
		}
		c.Next()
	}
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}
