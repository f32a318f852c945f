package innertube

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CookieSource yields the cookies sent to a URL. http.CookieJar and
// cookies.Session both satisfy it.
type CookieSource interface {
	Cookies(u *url.URL) []*http.Cookie
}

// sidSchemes lists Authorization schemes in header order with the cookies
// each one hashes, first present wins.
var sidSchemes = []struct {
	scheme  string
	cookies []string
}{
	{"SAPISIDHASH", []string{"SAPISID", "APISID"}},
	{"SAPISID1PHASH", []string{"__Secure-1PAPISID"}},
	{"SAPISID3PHASH", []string{"__Secure-3PAPISID"}},
}

// ResolveVisitorData returns the configured visitor data, falling back to the
// VISITOR_INFO1_LIVE cookie.
func ResolveVisitorData(jar CookieSource, host string, configured string) string {
	if v := strings.TrimSpace(configured); v != "" {
		return v
	}
	return cookieValues(jar, host)["VISITOR_INFO1_LIVE"]
}

// BuildCookieAuthHeaders derives the Cookie header and, for signed-in
// sessions, the SID hash Authorization header sent to host.
func BuildCookieAuthHeaders(jar CookieSource, host string, now time.Time) http.Header {
	out := make(http.Header)
	if jar == nil {
		return out
	}
	if host == "" {
		host = defaultHost
	}
	list := jar.Cookies(&url.URL{Scheme: "https", Host: host, Path: "/"})
	if len(list) == 0 {
		return out
	}

	var b strings.Builder
	for _, c := range list {
		if c.Name == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(c.Name + "=" + c.Value)
	}
	out.Set("Cookie", b.String())

	values := cookieValues(jar, host)
	origin := "https://" + host
	var auth []string
	for _, s := range sidSchemes {
		for _, name := range s.cookies {
			if sid := values[name]; sid != "" {
				auth = append(auth, s.scheme+" "+sidHash(now, sid, origin))
				break
			}
		}
	}
	if len(auth) > 0 {
		out.Set("Authorization", strings.Join(auth, " "))
		out.Set("X-Origin", origin)
	}
	if values["LOGIN_INFO"] != "" {
		out.Set("X-Youtube-Bootstrap-Logged-In", "true")
	}
	return out
}

// sidHash is "<unix>_<sha1(unix sid origin)>".
func sidHash(now time.Time, sid, origin string) string {
	ts := now.Unix()
	sum := sha1.Sum([]byte(fmt.Sprintf("%d %s %s", ts, sid, origin)))
	return fmt.Sprintf("%d_%s", ts, hex.EncodeToString(sum[:]))
}

// cookieValues maps trimmed cookie names to trimmed non-empty values.
func cookieValues(jar CookieSource, host string) map[string]string {
	out := make(map[string]string)
	if jar == nil {
		return out
	}
	if host == "" {
		host = defaultHost
	}
	for _, c := range jar.Cookies(&url.URL{Scheme: "https", Host: host, Path: "/"}) {
		if v := strings.TrimSpace(c.Value); v != "" {
			out[strings.TrimSpace(c.Name)] = v
		}
	}
	return out
}
