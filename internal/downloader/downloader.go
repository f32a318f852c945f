package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"go.uber.org/ratelimit"

	"github.com/famomatic/ytcipher/internal/types"
)

// DefaultChunkSize is the span requested per range= chunk.
const DefaultChunkSize int64 = 512 * 1024

// paceQuantum is the number of bytes released per rate limiter token.
const paceQuantum = 16 * 1024

// Downloader is the interface for downloading a stream.
type Downloader interface {
	// Download downloads the stream to the specified writer.
	// It returns the number of bytes written and any error encountered.
	Download(ctx context.Context, w io.Writer) (int64, error)
}

// ProgressReporter is an interface for reporting download progress.
type ProgressReporter interface {
	OnProgress(bytesWritten int64, totalBytes int64)
}

// Target is the resolved stream to fetch.
type Target struct {
	URL           string
	ContentLength int64
	// Muxed streams carry audio and video and are fetched in one request.
	Muxed bool
}

type ChunkedConfig struct {
	// ChunkSize <= 0 selects DefaultChunkSize.
	ChunkSize int64
	// RateLimit caps throughput in bytes per second. Zero disables pacing.
	RateLimit int
	Transport TransportConfig
	Headers   http.Header
	Progress  ProgressReporter
	Logger    logrus.FieldLogger
}

// ChunkedDownloader fetches a stream with range= query chunks, which are not
// throttled the way Range headers are.
type ChunkedDownloader struct {
	client  *http.Client
	target  Target
	cfg     ChunkedConfig
	limiter ratelimit.Limiter
	written atomic.Int64
	log     logrus.FieldLogger
}

func NewChunkedDownloader(client *http.Client, target Target, cfg ChunkedConfig) *ChunkedDownloader {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	log := cfg.Logger
	if log == nil {
		log = types.DiscardLogger()
	}
	d := &ChunkedDownloader{
		client: client,
		target: target,
		cfg:    cfg,
		log:    log,
	}
	if cfg.RateLimit > 0 {
		perSecond := cfg.RateLimit / paceQuantum
		if perSecond < 1 {
			perSecond = 1
		}
		d.limiter = ratelimit.New(perSecond)
	}
	return d
}

// Written reports the bytes delivered to the sink so far.
func (d *ChunkedDownloader) Written() int64 {
	return d.written.Load()
}

func (d *ChunkedDownloader) Download(ctx context.Context, w io.Writer) (int64, error) {
	sink := &progressWriter{w: w, d: d}
	var err error
	if d.target.Muxed || d.target.ContentLength <= 0 {
		err = d.downloadWhole(ctx, sink)
	} else {
		err = d.downloadChunks(ctx, sink)
	}
	return d.written.Load(), err
}

func (d *ChunkedDownloader) downloadChunks(ctx context.Context, w io.Writer) error {
	total := d.target.ContentLength
	for start := int64(0); start < total; {
		end := start + d.cfg.ChunkSize - 1
		if end >= total {
			end = total - 1
		}
		chunkURL, err := withRange(d.target.URL, start, end)
		if err != nil {
			return err
		}
		body, err := doGETBytesWithRetry(ctx, d.client, chunkURL, d.cfg.Headers, d.cfg.Transport, d.log)
		if err != nil {
			return fmt.Errorf("chunk %d-%d: %w", start, end, err)
		}
		if len(body) == 0 {
			return fmt.Errorf("chunk %d-%d: %w", start, end, io.ErrUnexpectedEOF)
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
		d.log.WithFields(logrus.Fields{"start": start, "end": end}).Debug("chunk written")
		start += int64(len(body))
	}
	return nil
}

func (d *ChunkedDownloader) downloadWhole(ctx context.Context, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.target.URL, nil)
	if err != nil {
		return err
	}
	applyRequestHeaders(req, d.cfg.Headers)
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &HTTPStatusError{URL: d.target.URL, StatusCode: resp.StatusCode}
	}
	if d.target.ContentLength <= 0 && resp.ContentLength > 0 {
		d.target.ContentLength = resp.ContentLength
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func withRange(rawURL string, start, end int64) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("range", strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type progressWriter struct {
	w io.Writer
	d *ChunkedDownloader
}

func (p *progressWriter) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 {
		n := len(b)
		if p.d.limiter != nil {
			if n > paceQuantum {
				n = paceQuantum
			}
			p.d.limiter.Take()
		}
		m, err := p.w.Write(b[:n])
		written += m
		total := p.d.written.Add(int64(m))
		if p.d.cfg.Progress != nil {
			p.d.cfg.Progress.OnProgress(total, p.d.target.ContentLength)
		}
		if err != nil {
			return written, err
		}
		b = b[n:]
	}
	return written, nil
}
