package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	config := DefaultConfig()
	config.Sleep = 0
	config.Jitter = 0
	config.RetryBaseDelay = 10 * time.Millisecond
	config.Timeout = 5 * time.Second
	return config
}

// recordingSleeper replaces the real delay so tests run instantly while
// still observing the requested durations.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (sleeper *recordingSleeper) sleep(ctx context.Context, duration time.Duration) error {
	sleeper.mu.Lock()
	sleeper.delays = append(sleeper.delays, duration)
	sleeper.mu.Unlock()
	return ctx.Err()
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []Outcome
	retries  int
}

func (observer *recordingObserver) FetchCompleted(outcome Outcome, _ time.Duration) {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	observer.outcomes = append(observer.outcomes, outcome)
}

func (observer *recordingObserver) FetchRetried() {
	observer.mu.Lock()
	defer observer.mu.Unlock()
	observer.retries++
}

func newTestClient(t *testing.T, config Config, options ...ClientOption) (*Client, *recordingSleeper) {
	t.Helper()
	client, err := NewClient(config, options...)
	require.NoError(t, err)
	sleeper := &recordingSleeper{}
	client.sleep = sleeper.sleep
	return client, sleeper
}

func TestClient_FetchHTML_SendsUserAgent(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotUserAgent = request.Header.Get("User-Agent")
		writer.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = writer.Write([]byte("<html><body>Titles</body></html>"))
	}))
	defer server.Close()

	client, sleeper := newTestClient(t, testConfig())

	body, err := client.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>Titles</body></html>", body)
	assert.Equal(t, DefaultUserAgent, gotUserAgent)
	assert.Len(t, sleeper.delays, 1, "one politeness delay per request")
}

func TestClient_FetchHTML_DoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits.Add(1)
		http.NotFound(writer, request)
	}))
	defer server.Close()

	client, _ := newTestClient(t, testConfig())

	_, err := client.FetchHTML(context.Background(), server.URL+"/chap_999.htm")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHTTPStatus))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_FetchHTML_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if hits.Add(1) < 3 {
			writer.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = writer.Write([]byte("ok"))
	}))
	defer server.Close()

	observer := &recordingObserver{}
	client, sleeper := newTestClient(t, testConfig(), WithObserver(observer))

	body, err := client.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{0, 10 * time.Millisecond, 0, 20 * time.Millisecond, 0}, sleeper.delays)
	assert.Equal(t, 2, observer.retries)
	assert.Equal(t, []Outcome{OutcomeFetched}, observer.outcomes)
}

func TestClient_FetchHTML_GivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits.Add(1)
		writer.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	observer := &recordingObserver{}
	client, _ := newTestClient(t, testConfig(), WithObserver(observer))

	_, err := client.FetchHTML(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.True(t, errors.Is(err, ErrHTTPStatus))
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []Outcome{OutcomeFailed}, observer.outcomes)
}

func TestClient_FetchHTML_BodyTooLarge(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits.Add(1)
		_, _ = writer.Write([]byte("0123456789ABCDEF"))
	}))
	defer server.Close()

	config := testConfig()
	config.MaxBodyBytes = 10
	client, _ := newTestClient(t, config)

	_, err := client.FetchHTML(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_FetchHTML_DecodesDeclaredCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = writer.Write([]byte{'S', 'e', 'c', '.', ' ', 0xA7, ' ', '7', '-', '1'})
	}))
	defer server.Close()

	client, _ := newTestClient(t, testConfig())

	body, err := client.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "Sec. § 7-1", body)
}

func TestClient_FetchHTML_CacheHitSkipsNetworkAndDelay(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits.Add(1)
		_, _ = writer.Write([]byte("<p>cached</p>"))
	}))
	defer server.Close()

	config := testConfig()
	config.CacheDir = t.TempDir()
	observer := &recordingObserver{}
	client, sleeper := newTestClient(t, config, WithObserver(observer))

	first, err := client.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)
	delaysAfterFirst := len(sleeper.delays)

	second, err := client.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
	assert.Len(t, sleeper.delays, delaysAfterFirst)
	assert.Equal(t, []Outcome{OutcomeFetched, OutcomeCacheHit}, observer.outcomes)
}

func TestClient_FetchHTML_CanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		t.Error("no request expected after cancellation")
	}))
	defer server.Close()

	client, err := NewClient(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.FetchHTML(ctx, server.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_PolitenessDelayWithinBounds(t *testing.T) {
	config := testConfig()
	config.Sleep = 300 * time.Millisecond
	config.Jitter = 200 * time.Millisecond
	client, _ := newTestClient(t, config)

	for range 100 {
		delay := client.politenessDelay()
		assert.GreaterOrEqual(t, delay, config.Sleep)
		assert.LessOrEqual(t, delay, config.Sleep+config.Jitter)
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	testCases := map[string]func(*Config){
		"negative sleep":   func(config *Config) { config.Sleep = -time.Second },
		"negative jitter":  func(config *Config) { config.Jitter = -time.Second },
		"zero timeout":     func(config *Config) { config.Timeout = 0 },
		"zero retries":     func(config *Config) { config.MaxRetries = 0 },
		"zero body limit":  func(config *Config) { config.MaxBodyBytes = 0 },
		"cache without ttl": func(config *Config) {
			config.CacheDir = "cache"
			config.CacheTTL = 0
		},
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			config := DefaultConfig()
			mutate(&config)
			assert.Error(t, config.Validate())
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&StatusError{StatusCode: 503}))
	assert.True(t, isRetryableError(&StatusError{StatusCode: 429}))
	assert.False(t, isRetryableError(&StatusError{StatusCode: 404}))
	assert.True(t, isRetryableError(errors.New("read tcp: connection reset by peer")))
	assert.False(t, isRetryableError(ErrBodyTooLarge))
	assert.False(t, isRetryableError(nil))
}

func TestClient_PruneCache(t *testing.T) {
	withoutCache, err := NewClient(testConfig())
	require.NoError(t, err)
	pruned, err := withoutCache.PruneCache()
	require.NoError(t, err)
	assert.Zero(t, pruned)

	config := testConfig()
	config.CacheDir = t.TempDir()
	withCache, err := NewClient(config)
	require.NoError(t, err)
	require.NoError(t, withCache.cache.Set("https://www.cga.ct.gov/current/pub/chap_001.htm", "body"))

	withCache.cache.now = func() time.Time { return time.Now().Add(config.CacheTTL + time.Minute) }
	pruned, err = withCache.PruneCache()
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
}
