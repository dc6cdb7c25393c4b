// Package csrf fetches the anti-forgery token once per process and hands it
// to every mutating request.
package csrf

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrUnavailable is returned once the fetch has failed. It never recovers:
// the user has to restart the command.
var ErrUnavailable = errors.New("csrf token unavailable")

// Status of the token fetch
type Status int

const (
	Pending Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Fetcher performs the actual request
type Fetcher interface {
	CSRFToken(ctx context.Context) (string, error)
}

// Provider owns the token for the lifetime of the process
type Provider struct {
	fetcher Fetcher
	log     zerolog.Logger
	group   singleflight.Group

	mu      sync.Mutex
	status  Status
	token   string
	err     error
	fetches int
}

// NewProvider creates a provider that has not fetched anything yet
func NewProvider(fetcher Fetcher, log zerolog.Logger) *Provider {
	return &Provider{fetcher: fetcher, log: log}
}

// Start begins the fetch without waiting for it
func (p *Provider) Start(ctx context.Context) {
	p.group.DoChan("csrf", p.fetch(ctx))
}

// Token returns the token, fetching it on first use. Concurrent callers
// share the in-flight fetch. Cancelling ctx abandons the wait, not the fetch.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if token, err, done := p.result(); done {
		return token, err
	}

	ch := p.group.DoChan("csrf", p.fetch(ctx))
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Status reports where the fetch stands
func (p *Provider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Fetches is the number of requests issued, which is never more than one
func (p *Provider) Fetches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

func (p *Provider) result() (string, error, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case Ready:
		return p.token, nil, true
	case Failed:
		return "", p.err, true
	default:
		return "", nil, false
	}
}

func (p *Provider) fetch(ctx context.Context) func() (any, error) {
	ctx = context.WithoutCancel(ctx)
	return func() (any, error) {
		// a caller may join after an earlier flight already settled the result
		if token, err, done := p.result(); done {
			return token, err
		}

		p.mu.Lock()
		p.fetches++
		p.mu.Unlock()

		token, err := p.fetcher.CSRFToken(ctx)
		if err == nil && token == "" {
			err = errors.New("empty token")
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.status = Failed
			p.err = fmt.Errorf("%w: %w", ErrUnavailable, err)
			p.log.Error().Err(err).Msg("Failed to fetch CSRF token")
			return "", p.err
		}

		p.status = Ready
		p.token = token
		p.log.Debug().Msg("CSRF token ready")
		return token, nil
	}
}
