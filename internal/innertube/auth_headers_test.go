package innertube

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func youtubeJar(t *testing.T, cookies ...*http.Cookie) *cookiejar.Jar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, _ := url.Parse("https://www.youtube.com")
	for _, c := range cookies {
		c.Path, c.Domain = "/", ".youtube.com"
	}
	jar.SetCookies(u, cookies)
	return jar
}

func TestResolveVisitorData(t *testing.T) {
	jar := youtubeJar(t, &http.Cookie{Name: "VISITOR_INFO1_LIVE", Value: "visitor-cookie"})

	assert.Equal(t, "configured", ResolveVisitorData(jar, "", " configured "))
	assert.Equal(t, "visitor-cookie", ResolveVisitorData(jar, "", ""))
	assert.Equal(t, "", ResolveVisitorData(nil, "www.youtube.com", ""))
}

func TestBuildCookieAuthHeaders_SignedIn(t *testing.T) {
	jar := youtubeJar(t,
		&http.Cookie{Name: "SAPISID", Value: "sid-value"},
		&http.Cookie{Name: "__Secure-3PAPISID", Value: "sid3"},
		&http.Cookie{Name: "LOGIN_INFO", Value: "logged-in"},
	)
	now := time.Unix(1700000000, 0)
	headers := BuildCookieAuthHeaders(jar, "www.youtube.com", now)

	sum := sha1.Sum([]byte("1700000000 sid-value https://www.youtube.com"))
	want := "SAPISIDHASH 1700000000_" + hex.EncodeToString(sum[:])
	auth := headers.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, want+" SAPISID3PHASH 1700000000_"), "authorization = %q", auth)
	assert.NotContains(t, auth, "SAPISID1PHASH")
	assert.Equal(t, "https://www.youtube.com", headers.Get("X-Origin"))
	assert.Equal(t, "true", headers.Get("X-Youtube-Bootstrap-Logged-In"))

	cookie := headers.Get("Cookie")
	assert.Contains(t, cookie, "SAPISID=sid-value")
	assert.Contains(t, cookie, "LOGIN_INFO=logged-in")
}

func TestBuildCookieAuthHeaders_APISIDFallback(t *testing.T) {
	jar := youtubeJar(t, &http.Cookie{Name: "APISID", Value: "legacy"})
	headers := BuildCookieAuthHeaders(jar, "", time.Unix(1, 0))

	sum := sha1.Sum([]byte("1 legacy https://www.youtube.com"))
	assert.Equal(t, "SAPISIDHASH 1_"+hex.EncodeToString(sum[:]), headers.Get("Authorization"))
	assert.Empty(t, headers.Get("X-Youtube-Bootstrap-Logged-In"))
}

func TestBuildCookieAuthHeaders_Anonymous(t *testing.T) {
	assert.Empty(t, BuildCookieAuthHeaders(nil, "www.youtube.com", time.Now()))

	jar := youtubeJar(t, &http.Cookie{Name: "PREF", Value: "hl=en"})
	headers := BuildCookieAuthHeaders(jar, "www.youtube.com", time.Now())
	assert.Equal(t, "PREF=hl=en", headers.Get("Cookie"))
	assert.Empty(t, headers.Get("Authorization"))
}
