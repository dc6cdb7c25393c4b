package csrf

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/quickbites/storefront/internal/cli/client"
	"github.com/quickbites/storefront/internal/testutil/fakeapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedFetcher blocks every fetch until release is closed
type gatedFetcher struct {
	calls   atomic.Int32
	release chan struct{}
	token   string
	err     error
}

func (f *gatedFetcher) CSRFToken(ctx context.Context) (string, error) {
	f.calls.Add(1)
	<-f.release
	return f.token, f.err
}

func TestProvider_ConcurrentCallersShareOneFetch(t *testing.T) {
	f := &gatedFetcher{release: make(chan struct{}), token: "tok"}
	p := NewProvider(f, zerolog.Nop())

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := p.Token(context.Background())
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, Pending, p.Status())
	close(f.release)
	wg.Wait()

	for _, tok := range tokens {
		assert.Equal(t, "tok", tok)
	}
	assert.Equal(t, Ready, p.Status())

	_, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.calls.Load())
	assert.Equal(t, 1, p.Fetches())
}

func TestProvider_FailureIsSticky(t *testing.T) {
	f := &gatedFetcher{release: make(chan struct{}), err: errors.New("connection refused")}
	close(f.release)
	p := NewProvider(f, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := p.Token(context.Background())
		require.ErrorIs(t, err, ErrUnavailable)
	}

	assert.Equal(t, Failed, p.Status())
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestProvider_EmptyTokenIsAFailure(t *testing.T) {
	f := &gatedFetcher{release: make(chan struct{})}
	close(f.release)
	p := NewProvider(f, zerolog.Nop())

	_, err := p.Token(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, Failed, p.Status())
}

func TestProvider_StartThenToken(t *testing.T) {
	f := &gatedFetcher{release: make(chan struct{}), token: "tok"}
	p := NewProvider(f, zerolog.Nop())

	p.Start(context.Background())
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(f.release)

	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestProvider_CancelledWaitDoesNotFail(t *testing.T) {
	f := &gatedFetcher{release: make(chan struct{}), token: "tok"}
	p := NewProvider(f, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Token(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, Failed, p.Status())

	close(f.release)
	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestProvider_AgainstBackend(t *testing.T) {
	api := fakeapi.New(t)
	c, err := client.New(api.APIURL(), 5*time.Second, zerolog.Nop())
	require.NoError(t, err)

	p := NewProvider(c, zerolog.Nop())
	tok, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, api.Calls("/auth/csrf-token"))

	c.CloseIdleConnections()
}

func TestProvider_AgainstFailingBackend(t *testing.T) {
	api := fakeapi.New(t)
	api.FailCSRF(true)
	c, err := client.New(api.APIURL(), 5*time.Second, zerolog.Nop())
	require.NoError(t, err)

	p := NewProvider(c, zerolog.Nop())
	_, err = p.Token(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, client.KindCSRFUnavailable, client.KindOf(err))

	_, err = p.Token(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, api.Calls("/auth/csrf-token"))

	c.CloseIdleConnections()
}
