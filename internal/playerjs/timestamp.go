package playerjs

import (
	"regexp"
	"strconv"
)

var signatureTimestampPattern = regexp.MustCompile(`(?:signatureTimestamp|sts)\s*:\s*(\d+)`)

// SignatureTimestamp returns the script's signature timestamp, which player
// requests echo back so the returned ciphers match this script.
func SignatureTimestamp(body string) (int, bool) {
	m := signatureTimestampPattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return 0, false
	}
	sts, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return sts, true
}
