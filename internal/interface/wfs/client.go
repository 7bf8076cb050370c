package wfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tkgm-sync-service/internal/domain/entity"
	"tkgm-sync-service/internal/domain/repository"
	"tkgm-sync-service/pkg/logger"
	"tkgm-sync-service/pkg/metrics"
)

// quotaKeywords mark a 5xx body as the upstream daily limit response rather
// than a transient server fault.
var quotaKeywords = []string{
	"max features",
	"daily limit",
	"limit exceeded",
	"quota",
}

// Query describes one GetFeature page request.
type Query struct {
	TypeName    string
	MaxFeatures int
	StartIndex  int
	CQLFilter   string
}

// Client fetches GetFeature pages from the TKGM WFS endpoint with retry,
// quota detection and per-attempt audit logging.
type Client struct {
	baseURL      string
	username     string
	password     string
	srsName      string
	maxRetries   int
	retryDelay   time.Duration
	httpClient   *http.Client
	queryLogRepo repository.QueryLogRepository
	archiveRepo  repository.ArchiveRepository
	metrics      *metrics.Metrics
	logger       logger.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	Username     string
	Password     string
	SourceEPSG   int
	MaxRetries   int
	RetryDelay   time.Duration
	Timeout      time.Duration
	QueryLogRepo repository.QueryLogRepository
	ArchiveRepo  repository.ArchiveRepository
	Metrics      *metrics.Metrics
	Logger       logger.Logger
}

// NewClient creates a new WFS client
func NewClient(opts Options) *Client {
	return &Client{
		baseURL:      opts.BaseURL,
		username:     opts.Username,
		password:     opts.Password,
		srsName:      fmt.Sprintf("EPSG:%d", opts.SourceEPSG),
		maxRetries:   opts.MaxRetries,
		retryDelay:   opts.RetryDelay,
		httpClient:   &http.Client{Timeout: opts.Timeout},
		queryLogRepo: opts.QueryLogRepo,
		archiveRepo:  opts.ArchiveRepo,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
}

// BuildURL renders the GetFeature request URL for a query.
func (c *Client) BuildURL(q Query) string {
	params := url.Values{}
	params.Set("SERVICE", "WFS")
	params.Set("VERSION", "1.1.2")
	params.Set("REQUEST", "GetFeature")
	params.Set("SRSNAME", c.srsName)
	params.Set("TYPENAME", q.TypeName)
	params.Set("MAXFEATURES", strconv.Itoa(q.MaxFeatures))
	params.Set("STARTINDEX", strconv.Itoa(q.StartIndex))
	if q.CQLFilter != "" {
		params.Set("CQL_FILTER", q.CQLFilter)
	}
	return c.baseURL + "?" + params.Encode()
}

// FetchPage fetches one page, retrying transient failures up to the configured
// attempt budget. Quota exhaustion, client errors and cancellation abort the
// retry loop immediately.
func (c *Client) FetchPage(ctx context.Context, q Query) (*entity.FetchResult, error) {
	requestURL := c.BuildURL(q)

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			c.logger.Warn("Retrying WFS fetch",
				"typeName", q.TypeName, "attempt", attempt, "maxRetries", c.maxRetries, "error", lastErr)
			if err := c.sleep(ctx, c.retryDelay); err != nil {
				return nil, err
			}
		}

		result, err := c.fetchOnce(ctx, q, requestURL)
		if err == nil {
			c.metrics.FetchAttempts.WithLabelValues(q.TypeName, "success").Inc()
			c.metrics.FetchDuration.Observe(result.Meta.Duration.Seconds())
			return result, nil
		}
		if errors.Is(err, entity.ErrQuotaExceeded) || errors.Is(err, entity.ErrStopped) {
			return nil, err
		}
		var fatal *fatalError
		if errors.As(err, &fatal) {
			c.metrics.FetchAttempts.WithLabelValues(q.TypeName, "fatal").Inc()
			return nil, fatal.cause
		}

		c.metrics.FetchAttempts.WithLabelValues(q.TypeName, "retry").Inc()
		lastErr = err
	}

	c.metrics.ErrorsCount.WithLabelValues("wfs_fetch").Inc()
	return nil, fmt.Errorf("fetch failed after %d attempts: %w", c.maxRetries, lastErr)
}

// fatalError wraps errors that must not be retried.
type fatalError struct {
	cause error
}

func (e *fatalError) Error() string { return e.cause.Error() }

func (c *Client) fetchOnce(ctx context.Context, q Query, requestURL string) (*entity.FetchResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, &fatalError{cause: fmt.Errorf("failed to create request: %w", err)}
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			c.audit(q, requestURL, nil, 0, time.Since(start), entity.ErrStopped)
			return nil, entity.ErrStopped
		}
		c.audit(q, requestURL, nil, 0, time.Since(start), err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		c.audit(q, requestURL, nil, resp.StatusCode, duration, err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		if QuotaExceededResponse(resp.StatusCode, body) {
			c.logger.Warn("Upstream daily quota exhausted", "typeName", q.TypeName, "status", resp.StatusCode)
			c.metrics.QuotaHalts.Inc()
			c.audit(q, requestURL, body, resp.StatusCode, duration, entity.ErrQuotaExceeded)
			return nil, entity.ErrQuotaExceeded
		}
		err := fmt.Errorf("server error: status %d", resp.StatusCode)
		c.audit(q, requestURL, body, resp.StatusCode, duration, err)
		return nil, err
	}
	if resp.StatusCode >= 400 {
		err := fmt.Errorf("client error: status %d", resp.StatusCode)
		c.audit(q, requestURL, body, resp.StatusCode, duration, err)
		return nil, &fatalError{cause: err}
	}

	featureCount := estimateFeatureCount(body)
	meta := entity.FetchMeta{
		URL:          requestURL,
		HTTPStatus:   resp.StatusCode,
		ResponseSize: len(body),
		Duration:     duration,
		FeatureCount: featureCount,
	}

	c.auditSuccess(q, meta)
	if archiveErr := c.archiveRepo.StoreResponse(ctx, q.TypeName, body, meta); archiveErr != nil {
		// Best-effort archive; already logged by the repository.
		c.metrics.ErrorsCount.WithLabelValues("archive").Inc()
	}

	c.logger.Debug("Fetched WFS page",
		"typeName", q.TypeName, "startIndex", q.StartIndex,
		"features", featureCount, "bytes", len(body), "duration", duration)

	return &entity.FetchResult{Body: body, Meta: meta}, nil
}

// sleep waits for the retry delay in short slices so shutdown is noticed
// within a second even with long delays configured.
func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	deadline := time.Now().Add(delay)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		slice := remaining
		if slice > time.Second {
			slice = time.Second
		}
		select {
		case <-ctx.Done():
			return entity.ErrStopped
		case <-time.After(slice):
		}
	}
}

func (c *Client) audit(q Query, requestURL string, body []byte, status int, duration time.Duration, cause error) {
	row := &entity.QueryLog{
		TypeName:          q.TypeName,
		URL:               requestURL,
		IsSuccessful:      false,
		ErrorMessage:      cause.Error(),
		HTTPStatusCode:    status,
		ResponseSize:      len(body),
		ExecutionDuration: duration,
		QueryTime:         time.Now(),
	}
	// Audit writes use a background context so a cancelled sync still records
	// its final attempt.
	if err := c.queryLogRepo.Insert(context.Background(), row); err != nil {
		c.logger.Error("Failed to write query log", "typeName", q.TypeName, "error", err)
	}
}

func (c *Client) auditSuccess(q Query, meta entity.FetchMeta) {
	row := &entity.QueryLog{
		TypeName:          q.TypeName,
		URL:               meta.URL,
		FeatureCount:      meta.FeatureCount,
		IsEmpty:           meta.FeatureCount == 0,
		IsSuccessful:      true,
		HTTPStatusCode:    meta.HTTPStatus,
		ResponseSize:      meta.ResponseSize,
		ExecutionDuration: meta.Duration,
		QueryTime:         time.Now(),
	}
	if err := c.queryLogRepo.Insert(context.Background(), row); err != nil {
		c.logger.Error("Failed to write query log", "typeName", q.TypeName, "error", err)
	}
}

// QuotaExceededResponse reports whether a 5xx response body carries the
// upstream daily limit message.
func QuotaExceededResponse(status int, body []byte) bool {
	if status < 500 {
		return false
	}
	text := strings.ToLower(string(body))
	for _, keyword := range quotaKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// estimateFeatureCount counts featureMember elements without a full XML parse.
// The decoder re-counts precisely; this value only feeds the audit log.
func estimateFeatureCount(body []byte) int {
	text := string(body)
	count := strings.Count(text, "<gml:featureMember")
	if count == 0 {
		count = strings.Count(text, ":featureMember>") / 2
	}
	return count
}
