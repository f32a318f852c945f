package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/valyala/bytebufferpool"

	"github.com/famomatic/ytcipher/internal/types"
)

// TransportConfig controls retry/backoff behavior for metadata, script and
// media requests.
type TransportConfig struct {
	MaxRetries       int
	BackoffInc       time.Duration
	BackoffMax       time.Duration
	RetryStatusCodes []int
}

const (
	DefaultMaxRetries = 3
	DefaultBackoffInc = 500 * time.Millisecond
	DefaultBackoffMax = 5 * time.Second
)

type effectiveTransportConfig struct {
	MaxRetries       int
	BackoffInc       time.Duration
	BackoffMax       time.Duration
	RetryStatusCodes []int
}

// HTTPStatusError is returned for non-success responses.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("request failed: status=%d", e.StatusCode)
}

func normalizeTransportConfig(cfg TransportConfig) effectiveTransportConfig {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	inc := cfg.BackoffInc
	if inc <= 0 {
		inc = DefaultBackoffInc
	}
	maxBackoff := cfg.BackoffMax
	if maxBackoff <= 0 {
		maxBackoff = DefaultBackoffMax
	}
	statusCodes := cfg.RetryStatusCodes
	if len(statusCodes) == 0 {
		statusCodes = []int{http.StatusTooManyRequests}
	}
	return effectiveTransportConfig{
		MaxRetries:       maxRetries,
		BackoffInc:       inc,
		BackoffMax:       maxBackoff,
		RetryStatusCodes: statusCodes,
	}
}

// backoffFor grows linearly with the retry number: min(n*inc, max).
func (c effectiveTransportConfig) backoffFor(retry int) time.Duration {
	d := time.Duration(retry) * c.BackoffInc
	if d > c.BackoffMax {
		return c.BackoffMax
	}
	return d
}

func (c effectiveTransportConfig) retryableStatus(code int) bool {
	if code >= http.StatusInternalServerError {
		return true
	}
	for _, s := range c.RetryStatusCodes {
		if code == s {
			return true
		}
	}
	return false
}

func isRetryableError(err error, cfg effectiveTransportConfig) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return cfg.retryableStatus(statusErr.StatusCode)
	}
	return true
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryTransport retries network errors and 5xx/429 responses. Request bodies
// are replayed through req.GetBody.
type RetryTransport struct {
	Base   http.RoundTripper
	Config TransportConfig
	Logger logrus.FieldLogger
}

func NewRetryTransport(base http.RoundTripper, cfg TransportConfig, log logrus.FieldLogger) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if log == nil {
		log = types.DiscardLogger()
	}
	return &RetryTransport{Base: base, Config: cfg, Logger: log}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cfg := normalizeTransportConfig(t.Config)
	for retry := 0; ; retry++ {
		attempt := req
		if retry > 0 {
			attempt = req.Clone(req.Context())
			if req.Body != nil && req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				attempt.Body = body
			}
		}

		resp, err := t.Base.RoundTrip(attempt)
		var retryAfter time.Duration
		if err == nil {
			if !cfg.retryableStatus(resp.StatusCode) {
				return resp, nil
			}
			retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
			err = &HTTPStatusError{URL: req.URL.String(), StatusCode: resp.StatusCode, RetryAfter: retryAfter}
		}

		canReplay := req.Body == nil || req.GetBody != nil
		if retry >= cfg.MaxRetries || !canReplay || !isRetryableError(err, cfg) {
			if resp != nil {
				return resp, nil
			}
			return nil, err
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
		}

		backoff := cfg.backoffFor(retry + 1)
		if retryAfter > backoff {
			backoff = retryAfter
		}
		fields := logrus.Fields{
			"url":   req.URL.Redacted(),
			"retry": retry + 1,
		}
		if name, ok := types.ClientNameFromContext(req.Context()); ok {
			fields["client"] = name
		}
		t.Logger.WithFields(fields).WithError(err).Debug("retrying request")
		if err := waitBackoff(req.Context(), backoff); err != nil {
			return nil, err
		}
	}
}

// ReadBody reads resp.Body and undoes gzip or brotli content encoding.
func ReadBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	case "br":
		r = brotli.NewReader(resp.Body)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out, nil
}

func doGETBytesWithRetry(
	ctx context.Context,
	client *http.Client,
	rawURL string,
	headers http.Header,
	cfg TransportConfig,
	log logrus.FieldLogger,
) ([]byte, error) {
	effectiveCfg := normalizeTransportConfig(cfg)
	var lastErr error
	for attempt := 0; attempt <= effectiveCfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		applyRequestHeaders(req, headers)
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := func() ([]byte, error) {
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
					return nil, &HTTPStatusError{
						URL:        rawURL,
						StatusCode: resp.StatusCode,
						RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
					}
				}
				return ReadBody(resp)
			}()
			if readErr == nil {
				return body, nil
			}
			lastErr = readErr
		}
		if !isRetryableError(lastErr, effectiveCfg) || attempt == effectiveCfg.MaxRetries {
			return nil, lastErr
		}
		backoff := effectiveCfg.backoffFor(attempt + 1)
		var statusErr *HTTPStatusError
		if errors.As(lastErr, &statusErr) && statusErr.RetryAfter > backoff {
			backoff = statusErr.RetryAfter
		}
		log.WithField("attempt", attempt+1).WithError(lastErr).Debug("chunk request failed, backing off")
		if err := waitBackoff(ctx, backoff); err != nil {
			return nil, err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("request failed with unknown retry error")
}

func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		d := time.Until(when)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}
