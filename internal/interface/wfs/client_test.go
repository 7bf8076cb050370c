package wfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/pkg/logger"
	"tkgm-sync-service/pkg/metrics"
)

// Prometheus collectors register globally, so one instance serves all tests.
var testMetrics = metrics.NewMetrics("wfs_test")

type fakeQueryLogRepo struct {
	mu   sync.Mutex
	rows []*entity.QueryLog
}

func (f *fakeQueryLogRepo) Insert(ctx context.Context, log *entity.QueryLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, log)
	return nil
}

func (f *fakeQueryLogRepo) all() []*entity.QueryLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*entity.QueryLog(nil), f.rows...)
}

type fakeArchiveRepo struct {
	mu     sync.Mutex
	stored int
}

func (f *fakeArchiveRepo) StoreResponse(ctx context.Context, typeName string, body []byte, meta entity.FetchMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored++
	return nil
}

func newTestClient(serverURL string, maxRetries int, retryDelay time.Duration) (*Client, *fakeQueryLogRepo, *fakeArchiveRepo) {
	logRepo := &fakeQueryLogRepo{}
	archive := &fakeArchiveRepo{}
	client := NewClient(Options{
		BaseURL:      serverURL,
		Username:     "user",
		Password:     "pass",
		SourceEPSG:   4326,
		MaxRetries:   maxRetries,
		RetryDelay:   retryDelay,
		Timeout:      5 * time.Second,
		QueryLogRepo: logRepo,
		ArchiveRepo:  archive,
		Metrics:      testMetrics,
		Logger:       logger.NewLogger(),
	})
	return client, logRepo, archive
}

const sampleBody = `<wfs:FeatureCollection><gml:featureMember>a</gml:featureMember><gml:featureMember>b</gml:featureMember></wfs:FeatureCollection>`

func TestBuildURL(t *testing.T) {
	client, _, _ := newTestClient("https://example.com/wfs", 1, 0)

	t.Run("with filter", func(t *testing.T) {
		got := client.BuildURL(Query{
			TypeName:    "TKGM:parseller",
			MaxFeatures: 1000,
			StartIndex:  2000,
			CQLFilter:   "(durum=3)",
		})
		assert.Contains(t, got, "SERVICE=WFS")
		assert.Contains(t, got, "VERSION=1.1.2")
		assert.Contains(t, got, "REQUEST=GetFeature")
		assert.Contains(t, got, "SRSNAME=EPSG%3A4326")
		assert.Contains(t, got, "TYPENAME=TKGM%3Aparseller")
		assert.Contains(t, got, "MAXFEATURES=1000")
		assert.Contains(t, got, "STARTINDEX=2000")
		assert.Contains(t, got, "CQL_FILTER=")
	})

	t.Run("without filter", func(t *testing.T) {
		got := client.BuildURL(Query{TypeName: "TKGM:ilceler", MaxFeatures: 500})
		assert.NotContains(t, got, "CQL_FILTER")
	})
}

func TestFetchPage(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotAuth bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			gotAuth = ok && user == "user" && pass == "pass"
			w.Write([]byte(sampleBody))
		}))
		defer server.Close()

		client, logRepo, archive := newTestClient(server.URL, 3, time.Millisecond)
		result, err := client.FetchPage(context.Background(), Query{TypeName: "TKGM:parseller", MaxFeatures: 10})
		require.NoError(t, err)
		assert.True(t, gotAuth)
		assert.Equal(t, []byte(sampleBody), result.Body)
		assert.Equal(t, 2, result.Meta.FeatureCount)
		assert.Equal(t, len(sampleBody), result.Meta.ResponseSize)

		rows := logRepo.all()
		require.Len(t, rows, 1)
		assert.True(t, rows[0].IsSuccessful)
		assert.Equal(t, 2, rows[0].FeatureCount)
		assert.False(t, rows[0].IsEmpty)
		assert.Equal(t, 1, archive.stored)
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(sampleBody))
		}))
		defer server.Close()

		client, logRepo, _ := newTestClient(server.URL, 5, time.Millisecond)
		result, err := client.FetchPage(context.Background(), Query{TypeName: "TKGM:parseller", MaxFeatures: 10})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.NotNil(t, result)

		// Every attempt left an audit row.
		assert.Len(t, logRepo.all(), 3)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		retryDelay := 20 * time.Millisecond
		client, _, _ := newTestClient(server.URL, 3, retryDelay)
		start := time.Now()
		_, err := client.FetchPage(context.Background(), Query{TypeName: "TKGM:parseller", MaxFeatures: 10})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Contains(t, err.Error(), "after 3 attempts")
		// Two inter-attempt delays for three attempts.
		assert.GreaterOrEqual(t, time.Since(start), 2*retryDelay)
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client, logRepo, _ := newTestClient(server.URL, 5, time.Millisecond)
		_, err := client.FetchPage(context.Background(), Query{TypeName: "TKGM:parseller", MaxFeatures: 10})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.NotErrorIs(t, err, entity.ErrQuotaExceeded)

		rows := logRepo.all()
		require.Len(t, rows, 1)
		assert.False(t, rows[0].IsSuccessful)
		assert.Equal(t, http.StatusUnauthorized, rows[0].HTTPStatusCode)
	})

	t.Run("quota response halts immediately", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("<error>Daily LIMIT exceeded for this account</error>"))
		}))
		defer server.Close()

		client, _, _ := newTestClient(server.URL, 5, time.Millisecond)
		_, err := client.FetchPage(context.Background(), Query{TypeName: "TKGM:parseller", MaxFeatures: 10})
		assert.ErrorIs(t, err, entity.ErrQuotaExceeded)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancellation during retry delay", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		client, _, _ := newTestClient(server.URL, 10, 10*time.Second)
		start := time.Now()
		_, err := client.FetchPage(ctx, Query{TypeName: "TKGM:parseller", MaxFeatures: 10})
		assert.ErrorIs(t, err, entity.ErrStopped)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestQuotaExceededResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"quota keyword on 5xx", 500, "daily limit exceeded", true},
		{"max features keyword", 503, "Max Features threshold reached", true},
		{"case insensitive", 500, "QUOTA exhausted", true},
		{"plain server error", 500, "internal error", false},
		{"quota keyword on 4xx is not quota", 403, "daily limit exceeded", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuotaExceededResponse(tt.status, []byte(tt.body)))
		})
	}
}

func TestEstimateFeatureCount(t *testing.T) {
	assert.Equal(t, 2, estimateFeatureCount([]byte(sampleBody)))
	assert.Equal(t, 0, estimateFeatureCount([]byte("<wfs:FeatureCollection/>")))

	// Unprefixed or differently prefixed members are still counted.
	unprefixed := strings.ReplaceAll(sampleBody, "gml:", "ns0:")
	assert.Equal(t, 2, estimateFeatureCount([]byte(unprefixed)))
}
