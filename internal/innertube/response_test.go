package innertube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePlayerResponse = `{
  "responseContext": {
    "serviceTrackingParams": [
      {"service": "CSI", "params": [{"key": "c", "value": "ANDROID_VR"}]},
      {"service": "GFEEDBACK", "params": [{"key": "logged_in", "value": "0"}, {"key": "visitor_data", "value": "CgtWaXNpdG9y"}]}
    ]
  },
  "playabilityStatus": {"status": "OK"},
  "streamingData": {
    "formats": [{"itag": 18, "url": "https://example.test/v?itag=18", "mimeType": "video/mp4; codecs=\"avc1.42001E, mp4a.40.2\""}],
    "adaptiveFormats": [
      {"itag": 251, "signatureCipher": "s=XYZ&sp=sig&url=https%3A%2F%2Fexample.test%2Fa", "mimeType": "audio/webm; codecs=\"opus\""},
      {"itag": 137, "url": "https://example.test/v?itag=137", "s": "ABC", "sp": "signature", "mimeType": "video/mp4; codecs=\"avc1.640028\""}
    ]
  },
  "videoDetails": {"videoId": "jNQXAC9IVRw", "title": "Me at the zoo", "lengthSeconds": "19"}
}`

func TestProbeResponse(t *testing.T) {
	p := ProbeResponse([]byte(samplePlayerResponse))
	assert.Equal(t, "OK", p.Status)
	assert.Equal(t, "jNQXAC9IVRw", p.VideoID)
	assert.Equal(t, "CgtWaXNpdG9y", p.VisitorData)
}

func TestProbeResponse_ReasonFromMessages(t *testing.T) {
	p := ProbeResponse([]byte(`{"playabilityStatus":{"status":"LOGIN_REQUIRED","messages":["Sign in to confirm your age"]}}`))
	assert.Equal(t, "LOGIN_REQUIRED", p.Status)
	assert.Equal(t, "Sign in to confirm your age", p.Reason)
	assert.Empty(t, p.VideoID)
}

func TestDecodePlayerResponse(t *testing.T) {
	resp, err := DecodePlayerResponse([]byte(samplePlayerResponse), "ANDROID_VR")
	require.NoError(t, err)
	assert.True(t, resp.PlayabilityStatus.IsOK())

	all := resp.AllFormats()
	require.Len(t, all, 3)
	assert.Equal(t, 18, all[0].Itag)
	assert.False(t, all[0].NeedsResolution())
	assert.True(t, all[1].NeedsResolution())
	assert.Equal(t, "ABC", all[2].S)
	assert.Equal(t, "signature", all[2].SP)
	for _, f := range all {
		assert.Equal(t, "ANDROID_VR", f.SourceClient)
	}
}

func TestDecodePlayerResponse_Invalid(t *testing.T) {
	_, err := DecodePlayerResponse([]byte(`{"playabilityStatus":`), "WEB")
	require.Error(t, err)
}

func TestPlayabilityChecksAgree(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{status: "OK", want: true},
		{status: " ok ", want: true},
		{status: "LOGIN_REQUIRED", want: false},
		{status: "UNPLAYABLE", want: false},
		{status: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			ps := PlayabilityStatus{Status: tt.status}
			assert.Equal(t, tt.want, ps.IsOK())

			body := `{"playabilityStatus":{"status":"` + tt.status + `"}}`
			assert.Equal(t, tt.want, ProbeResponse([]byte(body)).IsOK())
		})
	}
}
