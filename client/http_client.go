package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"

	"github.com/famomatic/ytcipher/internal/downloader"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

func newDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 60 * time.Second,
	}
}

// proxyDialer returns a dial function for socks proxies and a proxy func for
// http ones. Both are nil for an empty proxyURL.
func proxyDialer(proxyURL string) (dialFunc, func(*http.Request) (*url.URL, error), error) {
	if strings.TrimSpace(proxyURL) == "" {
		return nil, nil, nil
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, nil, fmt.Errorf("%w: proxy url %q", ErrInvalidInput, proxyURL)
	}
	switch parsed.Scheme {
	case "socks5", "socks5h":
		d, err := proxy.FromURL(parsed, newDialer())
		if err != nil {
			return nil, nil, fmt.Errorf("socks proxy: %w", err)
		}
		if cd, ok := d.(proxy.ContextDialer); ok {
			return cd.DialContext, nil, nil
		}
		return func(_ context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(network, addr)
		}, nil, nil
	case "http", "https":
		return nil, http.ProxyURL(parsed), nil
	}
	return nil, nil, fmt.Errorf("%w: unsupported proxy scheme %q", ErrInvalidInput, parsed.Scheme)
}

// newHTTPClient builds the shared client: proxy or utls base transport
// wrapped in the retry transport.
func newHTTPClient(cfg Config, jar http.CookieJar, log logrus.FieldLogger) (*http.Client, error) {
	dial, proxyFunc, err := proxyDialer(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}
	if dial == nil {
		dial = newDialer().DialContext
	}

	var base http.RoundTripper
	if cfg.Transport.UTLS && proxyFunc == nil {
		base = newUTLSRoundTripper(dial)
	} else {
		if cfg.Transport.UTLS {
			log.Warn("utls transport ignored behind an http proxy")
		}
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.DialContext = dial
		t.Proxy = proxyFunc
		t.MaxIdleConnsPerHost = 10
		// Bodies are decoded by downloader.ReadBody, which also handles br.
		t.DisableCompression = true
		base = t
	}

	return &http.Client{
		Transport: downloader.NewRetryTransport(base, downloader.TransportConfig{
			MaxRetries: cfg.Transport.MaxRetries,
			BackoffInc: cfg.Transport.BackoffInc,
			BackoffMax: cfg.Transport.BackoffMax,
		}, log),
		Jar: jar,
	}, nil
}
