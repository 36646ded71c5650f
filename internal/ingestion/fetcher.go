package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bidpilot/tenderfeed/internal/models"
)

const (
	// DefaultUserAgent identifies the crawler to feed operators.
	DefaultUserAgent = "TenderfeedBot/1.0 (+https://bidpilot.ng/bot; tender ingestion)"

	defaultFetchTimeout = 20 * time.Second
	maxFeedBytes        = 10 << 20
)

// ErrFeedTooLarge is returned when a response body exceeds the fetcher's size cap.
var ErrFeedTooLarge = errors.New("feed too large")

// FetchRequest describes one feed download.
type FetchRequest struct {
	Source string
	URL    string
	Format models.FeedFormat
	// MaxAttempts overrides the fetcher's retry ceiling when positive.
	MaxAttempts int
}

// Fetcher downloads raw feed documents.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) ([]byte, error)
}

// HTTPFetcher fetches feeds over HTTP with a per-request timeout and
// linear backoff on 429/503 responses and network errors.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	policy    RetryPolicy
	sleep     Sleeper
	recorder  Recorder
	logger    *slog.Logger
	maxBody   int64
}

// FetcherOption customises an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) FetcherOption {
	return func(f *HTTPFetcher) { f.policy = p }
}

// WithSleeper replaces the backoff sleeper, mainly for tests.
func WithSleeper(s Sleeper) FetcherOption {
	return func(f *HTTPFetcher) { f.sleep = s }
}

// WithFetchRecorder attaches a metrics recorder.
func WithFetchRecorder(r Recorder) FetcherOption {
	return func(f *HTTPFetcher) {
		if r != nil {
			f.recorder = r
		}
	}
}

// WithMaxBodyBytes caps the accepted response body size.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// NewHTTPFetcher builds a fetcher whose requests time out after timeout.
func NewHTTPFetcher(timeout time.Duration, logger *slog.Logger, opts ...FetcherOption) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: DefaultUserAgent,
		policy:    DefaultRetryPolicy(),
		sleep:     SleepContext,
		recorder:  nopRecorder{},
		logger:    logger,
		maxBody:   maxFeedBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads req.URL, retrying transient failures.
func (f *HTTPFetcher) Fetch(ctx context.Context, req FetchRequest) ([]byte, error) {
	policy := f.policy
	if req.MaxAttempts > 0 {
		policy.MaxAttempts = req.MaxAttempts
	}

	var body []byte
	err := Retry(ctx, policy, f.sleep, func(attempt int) error {
		b, err := f.fetchOnce(ctx, req)
		if err != nil {
			f.recorder.FetchAttempt(req.Source, fetchOutcome(err))
			if IsRetryable(err) && attempt < max(policy.MaxAttempts, 1) {
				f.logger.Warn("feed fetch failed, will retry",
					"source", req.Source,
					"url", req.URL,
					"attempt", attempt,
					"error", err,
				)
			}
			return err
		}
		f.recorder.FetchAttempt(req.Source, "ok")
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, req FetchRequest) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", acceptHeader(req.Format))

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("http get %s: %w", req.URL, ctx.Err())
		}
		return nil, NewRetryableError(fmt.Errorf("http get %s: %w", req.URL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, URL: req.URL}
		if isRetryableStatus(resp.StatusCode) {
			return nil, NewRetryableErrorWithDelay(statusErr, parseRetryAfter(resp.Header.Get("Retry-After")))
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, NewRetryableError(fmt.Errorf("read body from %s: %w", req.URL, err))
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("%w: feed from %s exceeds %d bytes", ErrFeedTooLarge, req.URL, f.maxBody)
	}
	return body, nil
}

func acceptHeader(format models.FeedFormat) string {
	switch format {
	case models.FeedFormatOCDS:
		return "application/json"
	default:
		return "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
	}
}

func fetchOutcome(err error) string {
	var statusErr *HTTPStatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("http_%d", statusErr.StatusCode)
	case errors.Is(err, ErrFeedTooLarge):
		return "too_large"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "network_error"
	}
}
