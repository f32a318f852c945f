package cookies

import (
	"bufio"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const httpOnlyPrefix = "#HttpOnly_"

// Netscape cookies.txt columns.
const (
	colDomain = iota
	colIncludeSubdomains
	colPath
	colSecure
	colExpires
	colName
	colValue
	numCols
)

// ParseNetscape reads cookies.txt entries. Comments, short lines and cookies
// already expired are skipped. Domain cookies keep a leading dot, host-only
// cookies (include-subdomains FALSE) have none.
func ParseNetscape(r io.Reader) ([]*http.Cookie, error) {
	var out []*http.Cookie
	now := time.Now()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if c := parseNetscapeLine(scanner.Text()); c != nil {
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			out = append(out, c)
		}
	}
	return out, scanner.Err()
}

func parseNetscapeLine(line string) *http.Cookie {
	line = strings.TrimRight(line, "\r\n")
	httpOnly := strings.HasPrefix(line, httpOnlyPrefix)
	line = strings.TrimPrefix(line, httpOnlyPrefix)
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	cols := strings.Split(line, "\t")
	if len(cols) < numCols {
		return nil
	}

	domain := strings.TrimPrefix(strings.TrimSpace(cols[colDomain]), ".")
	if strings.EqualFold(cols[colIncludeSubdomains], "TRUE") {
		domain = "." + domain
	}
	c := &http.Cookie{
		Name:     cols[colName],
		Value:    cols[colValue],
		Domain:   domain,
		Path:     cols[colPath],
		Secure:   strings.EqualFold(cols[colSecure], "TRUE"),
		HttpOnly: httpOnly,
	}
	// 0 marks a session cookie.
	if exp, err := strconv.ParseInt(cols[colExpires], 10, 64); err == nil && exp > 0 {
		c.Expires = time.Unix(exp, 0)
	}
	return c
}
