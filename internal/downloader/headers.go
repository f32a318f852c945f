package downloader

import "net/http"

// StreamHeaders are sent with media requests. Requests without a browser
// origin are answered with 403 by the media servers.
func StreamHeaders(userAgent string) http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Origin", "https://www.youtube.com")
	h.Set("Referer", "https://www.youtube.com/")
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	return h
}

func applyRequestHeaders(req *http.Request, headers http.Header) {
	for k, vals := range headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
}
