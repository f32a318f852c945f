package resolver

import (
	"net/url"
	"strings"
)

// HasPoToken reports whether rawURL already carries a proof-of-origin token.
func HasPoToken(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	if strings.TrimSpace(u.Query().Get("pot")) != "" {
		return true
	}
	return strings.Contains(u.Path, "/pot/")
}

// WithPoToken appends pot=<token>&potc=1 to rawURL. URLs that already carry
// a token and empty tokens leave rawURL unchanged.
func WithPoToken(rawURL, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" || HasPoToken(rawURL) {
		return rawURL, nil
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	q := parseQuery(u.RawQuery)
	q.Set("pot", token)
	q.Set("potc", "1")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
