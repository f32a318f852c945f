package playerjs

import (
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Dumper writes a problematic script to disk at most once per script URL.
type Dumper struct {
	dir  string
	seen sync.Map
	log  logrus.FieldLogger
}

func NewDumper(dir string, log logrus.FieldLogger) *Dumper {
	return &Dumper{dir: dir, log: log}
}

// Dump stores body under the dump directory. It returns the written path,
// or "" when dumping is disabled, already done for scriptURL, or failed.
func (d *Dumper) Dump(scriptURL, body, reason string) string {
	if d == nil || d.dir == "" {
		return ""
	}
	if _, loaded := d.seen.LoadOrStore(scriptURL, struct{}{}); loaded {
		return ""
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		d.log.WithError(err).Warn("create dump directory")
		return ""
	}
	name := "player-" + unsafeFileChars.ReplaceAllString(ScriptID(scriptURL), "_") + ".js"
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		d.log.WithError(err).Warn("write player script dump")
		return ""
	}
	d.log.WithFields(logrus.Fields{
		"player": ScriptID(scriptURL),
		"reason": reason,
		"path":   path,
	}).Warn("player script dumped for inspection")
	return path
}
