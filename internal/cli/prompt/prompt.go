// Package prompt asks the user for missing input
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrNonInteractive is returned when input is needed but stdin is not a terminal
var ErrNonInteractive = errors.New("input required in non-interactive mode")

// Prompter asks questions
type Prompter interface {
	Text(label string, validate func(string) error) (string, error)
	Password(label string) (string, error)
	Confirm(label string) (bool, error)
}

// Terminal prompts on the controlling terminal
type Terminal struct {
	in  *os.File
	out io.Writer
}

// NewTerminal prompts on stdin/stderr
func NewTerminal() *Terminal {
	return &Terminal{in: os.Stdin, out: os.Stderr}
}

// Interactive reports whether stdin is a terminal (not piped)
func (t *Terminal) Interactive() bool {
	return term.IsTerminal(int(t.in.Fd()))
}

func (t *Terminal) Text(label string, validate func(string) error) (string, error) {
	if !t.Interactive() {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), ErrNonInteractive)
	}

	p := promptui.Prompt{
		Label:    label,
		Validate: validate,
		Stdout:   nopCloser{t.out},
	}
	value, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt cancelled: %w", err)
	}
	return strings.TrimSpace(value), nil
}

func (t *Terminal) Password(label string) (string, error) {
	if !t.Interactive() {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), ErrNonInteractive)
	}

	fmt.Fprintf(t.out, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(t.in.Fd()))
	fmt.Fprintln(t.out) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func (t *Terminal) Confirm(label string) (bool, error) {
	if !t.Interactive() {
		return false, nil
	}

	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdout:    nopCloser{t.out},
	}
	_, err := p.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("prompt cancelled: %w", err)
	}
	return true, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Static answers from fixed values, keyed by label. Unknown labels fail
// like a non-interactive terminal.
type Static struct {
	Answers  map[string]string
	Confirms map[string]bool
	Asked    []string
}

func (s *Static) Text(label string, validate func(string) error) (string, error) {
	s.Asked = append(s.Asked, label)
	value, ok := s.Answers[label]
	if !ok {
		return "", fmt.Errorf("%s: %w", strings.ToLower(label), ErrNonInteractive)
	}
	if validate != nil {
		if err := validate(value); err != nil {
			return "", err
		}
	}
	return value, nil
}

func (s *Static) Password(label string) (string, error) {
	return s.Text(label, nil)
}

func (s *Static) Confirm(label string) (bool, error) {
	s.Asked = append(s.Asked, label)
	return s.Confirms[label], nil
}
