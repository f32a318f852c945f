package cookies

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Session is the cookie context shared by metadata and media requests.
type Session struct {
	jar *cookiejar.Jar
}

// NewSession returns an empty session.
func NewSession() *Session {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Session{jar: jar}
}

// LoadFile reads a Netscape cookies.txt file into a new session.
func LoadFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookies file: %w", err)
	}
	defer f.Close()

	parsed, err := ParseNetscape(f)
	if err != nil {
		return nil, fmt.Errorf("parse cookies file: %w", err)
	}
	s := NewSession()
	s.Add(parsed...)
	return s, nil
}

// Add stores cookies under the host named by their domain. A domain without
// a leading dot sets a host-only cookie.
func (s *Session) Add(cookies ...*http.Cookie) {
	for _, c := range cookies {
		domain := strings.TrimSpace(c.Domain)
		host := strings.TrimPrefix(domain, ".")
		if host == "" {
			continue
		}
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		if !strings.HasPrefix(domain, ".") {
			hostOnly := *c
			hostOnly.Domain = ""
			c = &hostOnly
		}
		s.jar.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: path}, []*http.Cookie{c})
	}
}

// Jar exposes the session for use as an http.Client jar.
func (s *Session) Jar() http.CookieJar {
	return s.jar
}

// Cookies returns the cookies sent to u.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	if s == nil || s.jar == nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// CookieHeader serializes the cookies for origin as a Cookie header value.
func (s *Session) CookieHeader(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Path == "" {
		u.Path = "/"
	}
	cookies := s.Cookies(u)
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}
