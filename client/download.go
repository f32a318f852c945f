package client

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/famomatic/ytcipher/internal/downloader"
	"github.com/famomatic/ytcipher/internal/innertube"
)

// ProgressFunc receives the bytes written so far and the expected total
// (zero when unknown).
type ProgressFunc func(written, total int64)

func (f ProgressFunc) OnProgress(written, total int64) { f(written, total) }

// DownloadOptions controls stream download behavior.
type DownloadOptions struct {
	// Itag forces a format. Zero selects by Mode.
	Itag int
	Mode SelectionMode
	// OutputPath is used by DownloadFile. Empty means "<videoID>-<itag><ext>".
	OutputPath string
	Progress   ProgressFunc
}

// DownloadResult describes a completed download.
type DownloadResult struct {
	VideoID    string
	Format     FormatInfo
	OutputPath string
	Bytes      int64
}

// Download resolves the selected format and streams it into w.
func (c *Client) Download(ctx context.Context, input string, w io.Writer, options DownloadOptions) (*DownloadResult, error) {
	info, err := c.GetVideo(ctx, input)
	if err != nil {
		return nil, err
	}
	chosen, ok := selectDownloadFormat(info.Formats, options.Itag, options.Mode)
	if !ok {
		return nil, fmt.Errorf("%w: itag=%d mode=%s", ErrNoPlayableFormats, options.Itag, normalizeSelectionMode(options.Mode))
	}

	n, err := c.newDownloader(chosen, options.Progress).Download(ctx, w)
	result := &DownloadResult{VideoID: info.ID, Format: chosen, Bytes: n}
	if err != nil {
		return result, fmt.Errorf("download itag=%d: %w", chosen.Itag, err)
	}
	c.log.WithField("video", info.ID).WithField("itag", chosen.Itag).Debugf("downloaded %d bytes", n)
	return result, nil
}

// DownloadFile is Download into a local file.
func (c *Client) DownloadFile(ctx context.Context, input string, options DownloadOptions) (*DownloadResult, error) {
	info, err := c.GetVideo(ctx, input)
	if err != nil {
		return nil, err
	}
	chosen, ok := selectDownloadFormat(info.Formats, options.Itag, options.Mode)
	if !ok {
		return nil, fmt.Errorf("%w: itag=%d mode=%s", ErrNoPlayableFormats, options.Itag, normalizeSelectionMode(options.Mode))
	}
	path := options.OutputPath
	if path == "" {
		path = defaultOutputPath(info.ID, chosen)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	n, err := c.newDownloader(chosen, options.Progress).Download(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	result := &DownloadResult{VideoID: info.ID, Format: chosen, OutputPath: path, Bytes: n}
	if err != nil {
		_ = os.Remove(path)
		return result, fmt.Errorf("download itag=%d: %w", chosen.Itag, err)
	}
	return result, nil
}

func (c *Client) newDownloader(f FormatInfo, progress ProgressFunc) *downloader.ChunkedDownloader {
	cfg := downloader.ChunkedConfig{
		ChunkSize: c.config.Download.ChunkSize,
		RateLimit: c.config.Download.RateLimit,
		Transport: downloader.TransportConfig{
			MaxRetries: c.config.Transport.MaxRetries,
			BackoffInc: c.config.Transport.BackoffInc,
			BackoffMax: c.config.Transport.BackoffMax,
		},
		Headers: downloader.StreamHeaders(streamUserAgent(f.SourceClient)),
		Logger:  c.log,
	}
	if progress != nil {
		cfg.Progress = progress
	}
	return downloader.NewChunkedDownloader(c.httpClient, downloader.Target{
		URL:           f.URL,
		ContentLength: f.ContentLength,
		Muxed:         f.Muxed(),
	}, cfg)
}

// streamUserAgent returns the user agent of the client the URL was issued
// to. Media servers reject URLs fetched with another client's agent.
func streamUserAgent(client string) string {
	for _, p := range innertube.NewRegistry().All() {
		if p.Name == client {
			return p.UserAgent
		}
	}
	return innertube.WebClient.UserAgent
}

func defaultOutputPath(videoID string, f FormatInfo) string {
	ext := ".bin"
	switch {
	case f.Container == "mp4" && !f.HasVideo:
		ext = ".m4a"
	case f.Container != "":
		ext = "." + f.Container
	}
	return fmt.Sprintf("%s-%d%s", videoID, f.Itag, ext)
}
