package downloader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/atomic"

	"github.com/famomatic/ytcipher/internal/types"
)

func asStatusError(err error, target **HTTPStatusError) bool {
	return errors.As(err, target)
}

func TestRetryTransport_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if calls.Inc() < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewRetryTransport(nil, TransportConfig{
		MaxRetries: 3,
		BackoffInc: time.Millisecond,
		BackoffMax: 2 * time.Millisecond,
	}, nil)}
	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader([]byte(`{"videoId":"x"}`)))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != `{"videoId":"x"}` {
		t.Fatalf("status=%d body=%q, want replayed body", resp.StatusCode, body)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestRetryTransport_LogsClientName(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Inc() == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	client := &http.Client{Transport: NewRetryTransport(nil, TransportConfig{
		MaxRetries: 1,
		BackoffInc: time.Millisecond,
	}, log)}
	ctx := types.WithClientName(context.Background(), "ANDROID_VR")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	resp.Body.Close()

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no retry logged")
	}
	if entry.Data["client"] != "ANDROID_VR" || entry.Data["retry"] != 1 {
		t.Fatalf("log fields = %v", entry.Data)
	}
}

func TestRetryTransport_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewRetryTransport(nil, TransportConfig{MaxRetries: 3, BackoffInc: time.Millisecond}, nil)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound || calls.Load() != 1 {
		t.Fatalf("status=%d calls=%d, want 404 after one call", resp.StatusCode, calls.Load())
	}
}

func TestRetryTransport_ReturnsLastResponseWhenExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Inc()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewRetryTransport(nil, TransportConfig{MaxRetries: 2, BackoffInc: time.Millisecond}, nil)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError || calls.Load() != 3 {
		t.Fatalf("status=%d calls=%d, want 500 after 3 calls", resp.StatusCode, calls.Load())
	}
}

func TestBackoffIsLinearAndCapped(t *testing.T) {
	cfg := normalizeTransportConfig(TransportConfig{MaxRetries: 5})
	want := []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond}
	for i, w := range want {
		if got := cfg.backoffFor(i + 1); got != w {
			t.Fatalf("backoffFor(%d) = %v, want %v", i+1, got, w)
		}
	}
	if got := cfg.backoffFor(100); got != DefaultBackoffMax {
		t.Fatalf("backoffFor(100) = %v, want %v", got, DefaultBackoffMax)
	}
}

func TestReadBody_DecodesContentEncoding(t *testing.T) {
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte("gzip-body"))
	_ = gw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte("br-body"))
	_ = bw.Close()

	tests := []struct {
		encoding string
		body     []byte
		want     string
	}{
		{encoding: "gzip", body: gz.Bytes(), want: "gzip-body"},
		{encoding: "br", body: br.Bytes(), want: "br-body"},
		{encoding: "", body: []byte("plain"), want: "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			resp := &http.Response{
				Header: http.Header{"Content-Encoding": []string{tt.encoding}},
				Body:   io.NopCloser(bytes.NewReader(tt.body)),
			}
			got, err := ReadBody(resp)
			if err != nil {
				t.Fatalf("ReadBody() error = %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("ReadBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("2"); got != 2*time.Second {
		t.Fatalf("parseRetryAfter(2) = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Fatalf("parseRetryAfter(soon) = %v", got)
	}
}

func TestDoGETBytesWithRetry_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := doGETBytesWithRetry(ctx, srv.Client(), srv.URL, nil, TransportConfig{MaxRetries: 3}, types.DiscardLogger())
	if err == nil || !strings.Contains(err.Error(), "context canceled") {
		t.Fatalf("error = %v, want context canceled", err)
	}
}
