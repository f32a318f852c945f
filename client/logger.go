package client

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	"github.com/orandin/lumberjackrus"
	"github.com/sirupsen/logrus"
)

// ParseLevel maps a config level name to a logrus level. Unknown names
// select info.
func ParseLevel(name string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger builds the console logger described by cfg, with a rotating file
// hook when cfg.File is set.
func NewLogger(cfg LogConfig, out io.Writer) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetReportCaller(true)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		CallerPrettyfier: prettyCaller,
	})
	log.SetLevel(ParseLevel(cfg.Level))

	if cfg.File == "" {
		return log, nil
	}
	fileLevel := ParseLevel(cfg.FileLevel)
	hook, err := lumberjackrus.NewHook(
		&lumberjackrus.LogFile{
			Filename:   cfg.File,
			MaxSize:    cfg.FileMaxSizeMB,
			MaxBackups: 1,
			MaxAge:     1,
		},
		fileLevel,
		&logrus.JSONFormatter{},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("log file hook: %w", err)
	}
	log.AddHook(hook)
	// Hooks only see entries that pass the logger level.
	if fileLevel > log.GetLevel() {
		log.SetLevel(fileLevel)
		log.AddHook(&levelGate{out: out, formatter: log.Formatter, level: ParseLevel(cfg.Level)})
		log.SetOutput(io.Discard)
	}
	return log, nil
}

// levelGate writes entries at or above level to out. It keeps the console
// quiet when the file hook wants more detail than the console.
type levelGate struct {
	out       io.Writer
	formatter logrus.Formatter
	level     logrus.Level
}

func (g *levelGate) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (g *levelGate) Fire(entry *logrus.Entry) error {
	if entry.Level > g.level {
		return nil
	}
	b, err := g.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = g.out.Write(b)
	return err
}

func prettyCaller(f *runtime.Frame) (string, string) {
	fn := f.Function
	if i := strings.LastIndex(fn, "."); i >= 0 {
		fn = fn[i+1:]
	}
	return fn + "()", fmt.Sprintf("%s:%d", path.Base(f.File), f.Line)
}
