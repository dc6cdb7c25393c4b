package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/quickbites/storefront/internal/cli/authflow"
	"github.com/quickbites/storefront/internal/cli/client"
	"github.com/quickbites/storefront/internal/cli/config"
	"github.com/quickbites/storefront/internal/cli/csrf"
	"github.com/quickbites/storefront/internal/cli/prompt"
	"github.com/quickbites/storefront/internal/cli/session"
	"github.com/quickbites/storefront/internal/cli/ui"
	"github.com/quickbites/storefront/internal/cli/userconfig"
	"github.com/quickbites/storefront/internal/logger"
)

// Env is everything a command needs for one run
type Env struct {
	Config   *config.Config
	Log      zerolog.Logger
	API      *client.Client
	Sessions *session.Store
	CSRF     *csrf.Provider
	UI       ui.Presenter
	// Browser is a presenter that always opens web routes
	Browser ui.Presenter
	Prompt  prompt.Prompter
	Pending authflow.PendingStore
	Out     io.Writer

	unsubscribe func()
}

// Loader builds the Env for a command
type Loader func(ctx context.Context) (*Env, error)

// LoadEnv builds the Env from the configuration files and environment
func LoadEnv(ctx context.Context) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Init(cfg.LogLevel, cfg.LogFormat)

	api, err := client.New(cfg.APIURL, cfg.Timeout, log)
	if err != nil {
		return nil, err
	}

	durable, err := durableStorage(cfg)
	if err != nil {
		return nil, err
	}
	transient := &session.FileStorage{Path: session.TransientFilePath(cfg.Host())}

	store := session.NewStore(durable, transient, session.WithLogger(log))
	unsubscribe := logSessionChanges(store, log)
	if err := store.Init(); err != nil {
		// A slot we cannot read leaves us logged out, which is recoverable
		log.Warn().Err(err).Msg("Failed to restore session")
	}

	return &Env{
		Config:   cfg,
		Log:      log,
		API:      api,
		Sessions: store,
		CSRF:     csrf.NewProvider(api, log),
		UI:       ui.NewTerminal(os.Stdout, cfg.WebURL, ui.WithBrowser(cfg.OpenBrowser)),
		Browser:  ui.NewTerminal(os.Stdout, cfg.WebURL, ui.WithBrowser(true)),
		Prompt:   prompt.NewTerminal(),
		Pending:  userconfig.StateFile{},
		Out:      os.Stdout,

		unsubscribe: unsubscribe,
	}, nil
}

// logSessionChanges traces every session change at debug level. The
// returned function stops it.
func logSessionChanges(store *session.Store, log zerolog.Logger) func() {
	return store.Subscribe(func(s session.Session) {
		log.Debug().Stringer("session", s).Msg("Session changed")
	})
}

func durableStorage(cfg *config.Config) (session.Storage, error) {
	if cfg.SessionBackend == config.BackendKeyring {
		return session.NewKeyringStorage(cfg.Host()), nil
	}

	dir, err := userconfig.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return &session.FileStorage{Path: session.DurableFilePath(dir, cfg.Host())}, nil
}

// Flow starts the CSRF fetch and returns a login flow bound to this Env
func (e *Env) Flow(ctx context.Context) *authflow.Controller {
	e.CSRF.Start(ctx)
	return authflow.New(authflow.Config{
		API:       e.API,
		CSRF:      e.CSRF,
		Sessions:  e.Sessions,
		Presenter: e.UI,
		Pending:   e.Pending,
		Logger:    e.Log,
	})
}

// Close releases the connections held by the API client
func (e *Env) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	if e.API != nil {
		e.API.CloseIdleConnections()
	}
}

// withEnv adapts a command body to cobra, loading the Env first
func withEnv(load Loader, run func(ctx context.Context, env *Env) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		env, err := load(ctx)
		if err != nil {
			return err
		}
		defer env.Close()
		return run(ctx, env)
	}
}

// reportedError is an error the user has already been shown as a notice
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// reported marks flow errors that were already shown as a notice
func reported(err error) error {
	if err == nil {
		return nil
	}
	var flowErr *authflow.FlowError
	if errors.As(err, &flowErr) {
		return &reportedError{err: err}
	}
	return err
}

// IsReported reports whether err was already shown to the user, so the
// caller only needs to set the exit status
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}
