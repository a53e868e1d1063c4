package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gurkanfikretgunak/bio/internal/metrics"
	"github.com/gurkanfikretgunak/bio/internal/models"
	"github.com/gurkanfikretgunak/bio/internal/remoteconfig"
)

const validBio = `{
	"profile": {"name": "Test"},
	"seo": {"title": "Test"},
	"links": [{"id": "github", "featured": true}],
	"favorites": [],
	"footer": {"year": 2025}
}`

type response func(ctx context.Context) (remoteconfig.Values, error)

type fakeStore struct {
	mu        sync.Mutex
	calls     int
	responses []response
}

func (s *fakeStore) Fetch(ctx context.Context) (remoteconfig.Values, error) {
	s.mu.Lock()
	i := min(s.calls, len(s.responses)-1)
	s.calls++
	fn := s.responses[i]
	s.mu.Unlock()
	return fn(ctx)
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func succeed(bio string) response {
	return func(ctx context.Context) (remoteconfig.Values, error) {
		return remoteconfig.Values{"bio": bio}, nil
	}
}

func fail(err error) response {
	return func(ctx context.Context) (remoteconfig.Values, error) {
		return nil, err
	}
}

// hang ignores ctx and answers only once release is closed.
func hang(release <-chan struct{}, bio string) response {
	return func(ctx context.Context) (remoteconfig.Values, error) {
		<-release
		return remoteconfig.Values{"bio": bio}, nil
	}
}

var errTransport = errors.New("dial tcp: connection refused")

func newTestFetcher(store *fakeStore) (*Fetcher, *[]time.Duration) {
	var sleeps []time.Duration
	f := New(store)
	f.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return f, &sleeps
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{5, 5 * time.Second},
		{64, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestFetchWithRetryInvalidArguments(t *testing.T) {
	store := &fakeStore{responses: []response{succeed(validBio)}}
	f, _ := newTestFetcher(store)

	_, err := f.FetchWithRetry(context.Background(), 0, time.Second)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.FetchWithRetry(context.Background(), 3, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, 0, store.Calls())
}

func TestFetchWithRetryExhaustsAttempts(t *testing.T) {
	for k := 1; k <= 6; k++ {
		store := &fakeStore{responses: []response{fail(errTransport)}}
		f, sleeps := newTestFetcher(store)

		_, err := f.FetchWithRetry(context.Background(), k, time.Second)
		require.Error(t, err)
		assert.Equal(t, KindNetwork, KindOf(err))
		assert.Equal(t, k, store.Calls(), "k=%d", k)

		var want, got time.Duration
		for i := 1; i <= k-1; i++ {
			want += min(time.Duration(1<<(i-1))*time.Second, 5*time.Second)
		}
		for _, d := range *sleeps {
			got += d
		}
		assert.Len(t, *sleeps, k-1)
		assert.Equal(t, want, got, "k=%d", k)
	}
}

func TestFetchWithRetryStopsOnSuccess(t *testing.T) {
	for i := 1; i <= 4; i++ {
		responses := make([]response, 0, i)
		for range i - 1 {
			responses = append(responses, fail(errTransport))
		}
		responses = append(responses, succeed(validBio), fail(errTransport))

		store := &fakeStore{responses: responses}
		f, sleeps := newTestFetcher(store)

		doc, err := f.FetchWithRetry(context.Background(), 5, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "Test", doc.Profile.Name)
		assert.Equal(t, i, store.Calls())
		assert.Len(t, *sleeps, i-1)
	}
}

func TestFetchWithRetryRecoversAfterNetworkErrors(t *testing.T) {
	store := &fakeStore{responses: []response{
		fail(errTransport),
		fail(errTransport),
		succeed(validBio),
	}}
	f, sleeps := newTestFetcher(store)

	var progress []int
	doc, err := f.FetchWithRetryNotify(context.Background(), 3, 10*time.Second, func(attempt, maxAttempts int) {
		assert.Equal(t, 3, maxAttempts)
		progress = append(progress, attempt)
	})
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *sleeps)
	assert.Equal(t, []int{1, 2, 3}, progress)
}

func TestFetchWithRetryTimeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	defer close(release)

	store := &fakeStore{responses: []response{hang(release, validBio)}}
	f, sleeps := newTestFetcher(store)

	start := time.Now()
	_, err := f.FetchWithRetry(context.Background(), 2, 30*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "TIMEOUT_ERROR", KindOf(err).Code())
	assert.Equal(t, 2, store.Calls())
	assert.Equal(t, []time.Duration{1 * time.Second}, *sleeps)
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestFetchWithRetryTimeoutCountsAsAttempt(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	store := &fakeStore{responses: []response{hang(release, validBio), succeed(validBio)}}
	f, sleeps := newTestFetcher(store)

	doc, err := f.FetchWithRetry(context.Background(), 2, 20*time.Millisecond)
	require.NoError(t, err)
	assert.NotNil(t, doc)
	assert.Equal(t, 2, store.Calls())
	assert.Len(t, *sleeps, 1)
}

func TestFetchWithRetrySendsFreshRequestAfterTimeout(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		body, _ := json.Marshal(map[string]any{"entries": map[string]string{"bio": validBio}})
		_, _ = w.Write(body)
	}))
	defer srv.Close()
	defer close(release)

	client, err := remoteconfig.NewFirebaseClient(
		remoteconfig.ConnectionConfig{APIKey: "k", ProjectID: "p"},
		remoteconfig.Settings{FetchTimeout: 5 * time.Second},
		srv.URL,
	)
	require.NoError(t, err)
	defer client.Close()

	f := New(client)
	f.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	doc, err := f.FetchWithRetry(context.Background(), 3, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "Test", doc.Profile.Name)
	assert.Equal(t, int32(2), requests.Load())
}

func TestFetchWithRetryDiscardsLateResult(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	release := make(chan struct{})
	store := &fakeStore{responses: []response{hang(release, validBio)}}
	f, _ := newTestFetcher(store)

	before := testutil.ToFloat64(metrics.FetchLateResults)

	_, err := f.FetchWithRetry(context.Background(), 1, 20*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))

	// The fetch now completes successfully, after the attempt was decided.
	close(release)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.FetchLateResults) == before+1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestFetchWithRetryStoreHonoursDeadline(t *testing.T) {
	store := &fakeStore{responses: []response{func(ctx context.Context) (remoteconfig.Values, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}}
	f, _ := newTestFetcher(store)

	_, err := f.FetchWithRetry(context.Background(), 1, 10*time.Millisecond)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestFetchWithRetryClassification(t *testing.T) {
	tests := []struct {
		name  string
		resp  response
		kind  Kind
		cause error
	}{
		{
			name:  "transport failure",
			resp:  fail(remoteconfig.ErrUnavailable),
			kind:  KindNetwork,
			cause: ErrNetwork,
		},
		{
			name: "missing key",
			resp: func(ctx context.Context) (remoteconfig.Values, error) {
				return remoteconfig.Values{"other": "x"}, nil
			},
			kind:  KindConfiguration,
			cause: ErrConfiguration,
		},
		{
			name:  "empty value",
			resp:  succeed(""),
			kind:  KindConfiguration,
			cause: ErrConfiguration,
		},
		{
			name:  "malformed json",
			resp:  succeed("{not json"),
			kind:  KindParse,
			cause: ErrParse,
		},
		{
			name:  "missing section",
			resp:  succeed(`{"profile": {}, "seo": {}, "links": [], "favorites": []}`),
			kind:  KindParse,
			cause: models.ErrMissingSection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{responses: []response{tt.resp}}
			f, _ := newTestFetcher(store)

			_, err := f.FetchWithRetry(context.Background(), 2, time.Second)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.ErrorIs(t, err, tt.cause)
			assert.Equal(t, 2, store.Calls(), "every class is retried")

			var fe *Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, 2, fe.Attempt)
		})
	}
}

func TestFetchWithRetryKeepsUnderlyingCause(t *testing.T) {
	store := &fakeStore{responses: []response{fail(&remoteconfig.StatusError{Status: 503})}}
	f, _ := newTestFetcher(store)

	_, err := f.FetchWithRetry(context.Background(), 1, time.Second)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, remoteconfig.ErrUnavailable)

	var statusErr *remoteconfig.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 503, statusErr.Status)
}

func TestFetchWithRetryCancelledDuringBackoff(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	store := &fakeStore{responses: []response{fail(errTransport)}}
	f := New(store)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.FetchWithRetry(ctx, 3, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Equal(t, 1, store.Calls())
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchWithRetryCancelledDuringAttempt(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	store := &fakeStore{responses: []response{hang(release, validBio)}}
	f, sleeps := newTestFetcher(store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.FetchWithRetry(ctx, 3, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.Empty(t, *sleeps)
}

func TestWithKey(t *testing.T) {
	store := &fakeStore{responses: []response{func(ctx context.Context) (remoteconfig.Values, error) {
		return remoteconfig.Values{"profile_v2": validBio}, nil
	}}}
	f := New(store, WithKey("profile_v2"))

	doc, err := f.FetchWithRetry(context.Background(), 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Test", doc.Profile.Name)
}

func TestAvailable(t *testing.T) {
	store := &fakeStore{responses: []response{succeed(validBio), succeed(""), fail(errTransport)}}
	f := New(store)

	ok, err := f.Available(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Available(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.Available(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindParse, Attempt: 3, Err: errors.New("unexpected EOF")}
	assert.Equal(t, "fetch bio (attempt 3): PARSE_ERROR: unexpected EOF", err.Error())
	assert.Equal(t, "UNKNOWN_ERROR", KindUnknown.Code())
}
