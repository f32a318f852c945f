package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/famomatic/ytcipher/internal/challenge"
	"github.com/famomatic/ytcipher/internal/innertube"
	"github.com/famomatic/ytcipher/internal/playerjs"
	"github.com/famomatic/ytcipher/internal/types"
)

const (
	testVideoID   = "jNQXAC9IVRw"
	testScriptURL = "https://www.youtube.com/s/player/0a1b2c3d/player_ias.vflset/en_US/base.js"
)

type selectorStub struct {
	clients []innertube.ClientProfile
}

func (s selectorStub) Select(string) []innertube.ClientProfile { return s.clients }
func (s selectorStub) Registry() innertube.Registry            { return innertube.NewRegistry() }

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

// byClient answers player requests with the body registered for the
// requesting clientName.
func byClient(bodies map[string]string) roundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		payload, _ := io.ReadAll(r.Body)
		for name, body := range bodies {
			if strings.Contains(string(payload), `"clientName":"`+name+`"`) {
				return jsonResponse(http.StatusOK, body), nil
			}
		}
		return jsonResponse(http.StatusOK, `{"playabilityStatus":{"status":"UNPLAYABLE","reason":"unexpected"}}`), nil
	}
}

type locatorStub struct {
	url string
	err error
}

func (l locatorStub) LocateScript(context.Context, string) (string, error) { return l.url, l.err }

type scriptSource struct {
	body  string
	delay time.Duration
	calls atomic.Int32
}

func (s *scriptSource) GetPlayerScript(_ context.Context, scriptURL string) (*playerjs.Script, error) {
	s.calls.Inc()
	time.Sleep(s.delay)
	return &playerjs.Script{URL: scriptURL, Body: s.body, FetchedAt: time.Now()}, nil
}

func (s *scriptSource) NormalizeURL(raw string) string { return raw }

func classicPrograms(t *testing.T, delay time.Duration) (*playerjs.Programs, *scriptSource) {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("..", "playerjs", "testdata", "classic_basejs.js"))
	require.NoError(t, err)
	src := &scriptSource{body: string(body), delay: delay}
	return playerjs.NewPrograms(src, nil, playerjs.ProgramsConfig{}), src
}

const okResponse = `{
  "playabilityStatus": {"status": "OK"},
  "videoDetails": {"videoId": "jNQXAC9IVRw", "title": "Me at the zoo", "author": "jawed"},
  "streamingData": {
    "formats": [
      {"itag": 18, "url": "https://rr1.googlevideo.com/videoplayback?itag=18&c=ANDROID_VR&n=abc", "mimeType": "video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"", "width": 320, "height": 240, "bitrate": 300000, "contentLength": "90000"}
    ],
    "adaptiveFormats": [
      {"itag": 140, "signatureCipher": "s=abcdefgh&sp=sig&url=https%3A%2F%2Frr1.googlevideo.com%2Fvideoplayback%3Fitag%3D140", "mimeType": "audio/mp4; codecs=\"mp4a.40.2\"", "bitrate": 130000, "contentLength": "4000"}
    ]
  }
}`

func TestGetVideoInfo_AllSettledAcrossClients(t *testing.T) {
	programs, _ := classicPrograms(t, 0)
	var requests atomic.Int32
	tr := byClient(map[string]string{
		"ANDROID_VR": okResponse,
		"ANDROID":    `{"playabilityStatus":{"status":"LOGIN_REQUIRED","reason":"Sign in to confirm your age"}}`,
	})
	engine := NewEngine(
		selectorStub{clients: []innertube.ClientProfile{innertube.AndroidClient, innertube.AndroidVRClient}},
		Config{
			HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				requests.Inc()
				return tr(r)
			})},
			Scripts:   locatorStub{url: testScriptURL},
			Functions: programs,
		},
	)

	info, err := engine.GetVideoInfo(context.Background(), testVideoID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, testScriptURL, info.PlayerURL)
	assert.Equal(t, 19876, info.SignatureTimestamp)
	assert.Equal(t, "Me at the zoo", info.Details.Title)
	assert.Equal(t, []string{"ANDROID_VR"}, info.Clients)

	require.Len(t, info.Attempts, 1)
	assert.Equal(t, "ANDROID", info.Attempts[0].Client)
	var pErr *PlayabilityError
	require.True(t, errors.As(info.Attempts[0].Err, &pErr))
	assert.True(t, pErr.RequiresLogin())

	require.Len(t, info.Formats, 2)
	assert.Equal(t, 18, info.Formats[0].Itag)
	assert.Equal(t, 18, info.Best.Itag)

	muxed, err := url.Parse(info.Formats[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "cbaZ", muxed.Query().Get("n"))

	audio, err := url.Parse(info.Formats[1].URL)
	require.NoError(t, err)
	assert.Equal(t, "edcba", audio.Query().Get("sig"))
	assert.Equal(t, "ANDROID_VR", info.Formats[1].SourceClient)
}

func TestGetVideoInfo_DedupPrefersAndroidVR(t *testing.T) {
	web := `{"playabilityStatus":{"status":"OK"},"streamingData":{"adaptiveFormats":[
	  {"itag": 251, "url": "https://rr1.googlevideo.com/videoplayback?itag=251&c=WEB_EMBEDDED_PLAYER", "mimeType": "audio/webm; codecs=\"opus\""}
	]}}`
	vr := `{"playabilityStatus":{"status":"OK"},"streamingData":{"adaptiveFormats":[
	  {"itag": 251, "url": "https://rr1.googlevideo.com/videoplayback?itag=251&c=ANDROID_VR", "mimeType": "audio/webm; codecs=\"opus\""},
	  {"itag": 250, "url": "https://rr1.googlevideo.com/videoplayback?itag=250&c=ANDROID_VR"}
	]}}`
	engine := NewEngine(
		selectorStub{clients: []innertube.ClientProfile{innertube.WebEmbeddedClient, innertube.AndroidVRClient}},
		Config{HTTPClient: &http.Client{Transport: byClient(map[string]string{
			"WEB_EMBEDDED_PLAYER": web,
			"ANDROID_VR":          vr,
		})}},
	)

	info, err := engine.GetVideoInfo(context.Background(), testVideoID)
	require.NoError(t, err)
	require.Len(t, info.Formats, 1, "format without mime type should be dropped")
	assert.Contains(t, info.Formats[0].URL, "c=ANDROID_VR")
	assert.Equal(t, "ANDROID_VR", info.Formats[0].SourceClient)
}

func TestGetVideoInfo_NoPlayableFormats(t *testing.T) {
	tr := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		payload, _ := io.ReadAll(r.Body)
		if strings.Contains(string(payload), `"clientName":"ANDROID_VR"`) {
			return jsonResponse(http.StatusInternalServerError, "server error"), nil
		}
		return jsonResponse(http.StatusOK, `{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`), nil
	})
	engine := NewEngine(
		selectorStub{clients: []innertube.ClientProfile{innertube.AndroidVRClient, innertube.IOSClient}},
		Config{HTTPClient: &http.Client{Transport: tr}},
	)

	_, err := engine.GetVideoInfo(context.Background(), testVideoID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNoPlayableFormats))

	var npf *NoPlayableFormatsError
	require.True(t, errors.As(err, &npf))
	assert.Equal(t, testVideoID, npf.VideoID)
	assert.Len(t, npf.Attempts, 2)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)

	var pErr *PlayabilityError
	require.True(t, errors.As(err, &pErr))
	assert.True(t, pErr.IsUnavailable())
}

func TestGetVideoInfo_RejectsResponseForAnotherVideo(t *testing.T) {
	engine := NewEngine(
		selectorStub{clients: []innertube.ClientProfile{innertube.AndroidVRClient}},
		Config{HTTPClient: &http.Client{Transport: byClient(map[string]string{
			"ANDROID_VR": `{"playabilityStatus":{"status":"OK"},"videoDetails":{"videoId":"aaaaaaaaaaa"}}`,
		})}},
	)

	_, err := engine.GetVideoInfo(context.Background(), testVideoID)
	var mErr *MalformedResponseError
	require.True(t, errors.As(err, &mErr), "error = %v", err)
	assert.Equal(t, "aaaaaaaaaaa", mErr.Got)
}

func TestGetVideoInfo_ScriptFailureDropsOnlyCipheredFormats(t *testing.T) {
	programs, src := classicPrograms(t, 0)
	engine := NewEngine(
		selectorStub{clients: []innertube.ClientProfile{innertube.AndroidVRClient}},
		Config{
			HTTPClient: &http.Client{Transport: byClient(map[string]string{"ANDROID_VR": okResponse})},
			Scripts:    locatorStub{err: playerjs.ErrScriptURLNotFound},
			Functions:  programs,
		},
	)

	info, err := engine.GetVideoInfo(context.Background(), testVideoID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), src.calls.Load())
	assert.Empty(t, info.PlayerURL)
	require.Len(t, info.Formats, 1)
	assert.Equal(t, 18, info.Formats[0].Itag)
	assert.Contains(t, info.Formats[0].URL, "n=abc", "n kept without a program")
}

func TestGetVideoInfo_ConcurrentCallersShareScript(t *testing.T) {
	programs, src := classicPrograms(t, 50*time.Millisecond)
	engine := NewEngine(
		selectorStub{clients: []innertube.ClientProfile{innertube.AndroidVRClient}},
		Config{
			HTTPClient: &http.Client{Transport: byClient(map[string]string{"ANDROID_VR": okResponse})},
			Scripts:    locatorStub{url: testScriptURL},
			Functions:  programs,
		},
	)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.GetVideoInfo(context.Background(), testVideoID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestGetVideoInfo_RequestCarriesTimestampAndPoToken(t *testing.T) {
	programs, _ := classicPrograms(t, 0)
	var body string
	var header http.Header
	tr := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(r.Body)
		body, header = string(b), r.Header.Clone()
		return jsonResponse(http.StatusOK, okResponse), nil
	})
	engine := NewEngine(
		selectorStub{clients: []innertube.ClientProfile{innertube.AndroidClient}},
		Config{
			HTTPClient:      &http.Client{Transport: tr},
			Scripts:         locatorStub{url: testScriptURL},
			Functions:       programs,
			VisitorData:     "CgtWSVNJVE9S",
			PoTokenProvider: challenge.StaticPoTokenProvider("minted"),
		},
	)

	info, err := engine.GetVideoInfo(context.Background(), testVideoID)
	require.NoError(t, err)
	assert.Contains(t, body, `"signatureTimestamp":19876`)
	assert.Contains(t, body, `"poToken":"minted"`)
	assert.Equal(t, "CgtWSVNJVE9S", header.Get("X-Goog-Visitor-Id"))
	assert.Equal(t, "3", header.Get("X-YouTube-Client-Name"))

	for _, f := range info.Formats {
		u, err := url.Parse(f.URL)
		require.NoError(t, err)
		assert.Equal(t, "minted", u.Query().Get("pot"), "itag %d", f.Itag)
		assert.Equal(t, "1", u.Query().Get("potc"), "itag %d", f.Itag)
	}
}

func TestDecipherFormats(t *testing.T) {
	programs, _ := classicPrograms(t, 0)
	engine := NewEngine(nil, Config{Functions: programs})

	raw := []*innertube.Format{
		{Itag: 140, SignatureCipher: "s=abcdefgh&url=https%3A%2F%2Fexample%2Fa"},
		{Itag: 141, SignatureCipher: "s=abcdefgh"},
	}
	got, err := engine.DecipherFormats(context.Background(), raw, testScriptURL)
	require.NoError(t, err)
	require.Len(t, got, 1)
	f, ok := got["https://example/a?sig=edcba"]
	require.True(t, ok, "got %v", got)
	assert.Equal(t, 140, f.Itag)
}

func TestDecipherFormats_NoSource(t *testing.T) {
	engine := NewEngine(nil, Config{})
	_, err := engine.DecipherFormats(context.Background(), nil, testScriptURL)
	assert.Error(t, err)
}
