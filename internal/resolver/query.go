package resolver

import (
	"net/url"
	"strings"
)

// query edits a raw query string in place. Untouched pairs keep their
// position and original escaping.
type query struct {
	pairs   []string
	changed bool
}

func parseQuery(raw string) *query {
	q := &query{}
	if raw == "" {
		return q
	}
	q.pairs = strings.Split(raw, "&")
	return q
}

func splitPair(pair string) (key, value string) {
	key, value, _ = strings.Cut(pair, "=")
	if k, err := url.QueryUnescape(key); err == nil {
		key = k
	}
	if v, err := url.QueryUnescape(value); err == nil {
		value = v
	}
	return key, value
}

// Get returns the first decoded value for key.
func (q *query) Get(key string) string {
	for _, p := range q.pairs {
		if k, v := splitPair(p); k == key {
			return v
		}
	}
	return ""
}

// Set replaces the first value for key and drops the rest, or appends the
// pair when key is absent.
func (q *query) Set(key, value string) {
	pair := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	out := q.pairs[:0:0]
	found := false
	for _, p := range q.pairs {
		k, v := splitPair(p)
		if k != key {
			out = append(out, p)
			continue
		}
		if found {
			q.changed = true
			continue
		}
		found = true
		if v == value {
			out = append(out, p)
			continue
		}
		out = append(out, pair)
		q.changed = true
	}
	if !found {
		out = append(out, pair)
		q.changed = true
	}
	q.pairs = out
}

func (q *query) Del(key string) {
	out := q.pairs[:0:0]
	for _, p := range q.pairs {
		if k, _ := splitPair(p); k == key {
			q.changed = true
			continue
		}
		out = append(out, p)
	}
	q.pairs = out
}

func (q *query) Encode() string {
	return strings.Join(q.pairs, "&")
}
