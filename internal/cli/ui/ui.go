// Package ui is how the CLI talks back to the user: short notices and
// navigation to the next screen.
package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level of a notice
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a one-line message for the user
type Notice struct {
	Level   Level
	Message string
}

func Info(msg string) Notice    { return Notice{Level: LevelInfo, Message: msg} }
func Success(msg string) Notice { return Notice{Level: LevelSuccess, Message: msg} }
func Error(msg string) Notice   { return Notice{Level: LevelError, Message: msg} }

// Route names a screen of the storefront
type Route string

const (
	RouteHome           Route = "/"
	RouteAdminDashboard Route = "/admin/dashboard"
	RouteLogin          Route = "/login"
	RouteVerifyOTP      Route = "/verify-otp"
	RouteResetPassword  Route = "/reset-password"
	RouteRegister       Route = "/register"
)

// Presenter shows notices and moves the user between screens
type Presenter interface {
	Notify(n Notice)
	// Announce shows n and only then navigates to route
	Announce(n Notice, route Route)
	Navigate(route Route)
}

// commandFor is the CLI step that stands in for a screen
var commandFor = map[Route]string{
	RouteLogin:     "quickbites login",
	RouteVerifyOTP: "quickbites verify-otp",
	RouteRegister:  "quickbites register",
}

// Terminal writes notices to a terminal and opens web pages in a browser
type Terminal struct {
	out         io.Writer
	webURL      string
	openBrowser bool
	opener      func(url string) error

	mu sync.Mutex
}

// TerminalOption configures a Terminal
type TerminalOption func(*Terminal)

// WithBrowser opens web routes in the default browser
func WithBrowser(enabled bool) TerminalOption {
	return func(t *Terminal) { t.openBrowser = enabled }
}

// WithOpener replaces the function used to launch the browser
func WithOpener(open func(url string) error) TerminalOption {
	return func(t *Terminal) { t.opener = open }
}

// NewTerminal creates a presenter writing to out. webURL is the storefront
// site the routes are relative to.
func NewTerminal(out io.Writer, webURL string, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		out:    out,
		webURL: strings.TrimRight(webURL, "/"),
		opener: OpenBrowser,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Terminal) Notify(n Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch n.Level {
	case LevelSuccess:
		fmt.Fprintln(t.out, color.GreenString("✓ ")+n.Message)
	case LevelError:
		fmt.Fprintln(t.out, color.New(color.FgRed, color.Bold).Sprint("✗ ")+n.Message)
	default:
		fmt.Fprintln(t.out, color.CyanString("• ")+n.Message)
	}
}

func (t *Terminal) Announce(n Notice, route Route) {
	t.Notify(n)
	t.Navigate(route)
}

func (t *Terminal) Navigate(route Route) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cmd, ok := commandFor[route]; ok {
		fmt.Fprintf(t.out, "%s %s\n", color.HiBlackString("→ next:"), cmd)
		return
	}

	url := t.URL(route)
	fmt.Fprintf(t.out, "%s %s\n", color.HiBlackString("→"), url)
	if !t.openBrowser {
		return
	}
	if err := t.opener(url); err != nil {
		fmt.Fprintf(t.out, "%s failed to open browser: %v\n", color.YellowString("!"), err)
	}
}

// URL is the web address of route
func (t *Terminal) URL(route Route) string {
	return t.webURL + string(route)
}

// OpenBrowser opens the URL in the default browser
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
