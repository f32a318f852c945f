package client

import (
	"context"
	"io"
)

// StreamOptions controls format selection for stream-first APIs.
type StreamOptions struct {
	Itag int
	Mode SelectionMode
}

// OpenStream resolves a format and returns a reader fed by the chunked
// downloader. Closing the reader stops the download.
func (c *Client) OpenStream(ctx context.Context, input string, options StreamOptions) (io.ReadCloser, FormatInfo, error) {
	info, err := c.GetVideo(ctx, input)
	if err != nil {
		return nil, FormatInfo{}, err
	}
	chosen, ok := selectDownloadFormat(info.Formats, options.Itag, options.Mode)
	if !ok {
		return nil, FormatInfo{}, ErrNoPlayableFormats
	}

	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	go func() {
		defer cancel()
		_, err := c.newDownloader(chosen, nil).Download(ctx, pw)
		pw.CloseWithError(err)
	}()
	return &streamReader{PipeReader: pr, cancel: cancel}, chosen, nil
}

type streamReader struct {
	*io.PipeReader
	cancel context.CancelFunc
}

func (r *streamReader) Close() error {
	r.cancel()
	return r.PipeReader.Close()
}
