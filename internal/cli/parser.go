package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/famomatic/ytcipher/client"
)

// ErrUsage is returned when the arguments do not name a single action.
var ErrUsage = errors.New("usage error")

// Options holds all command-line options.
type Options struct {
	// Input
	URLs []string

	ConfigFile string // --config

	// Network
	ProxyURL    string // --proxy
	CookiesFile string // --cookies
	UTLS        bool   // --utls

	// Video Selection
	FormatSelector string // -f, --format
	ListFormats    bool   // -F, --list-formats

	// Download / Filesystem
	OutputPath   string // -o, --output ("-" writes to stdout)
	SkipDownload bool   // --skip-download
	RateLimit    int    // --limit-rate

	// Challenge
	PlayerURLOnly bool   // --playerjs
	PlayerURL     string // --player-url
	SolveSig      string // --solve-sig
	SolveN        string // --solve-n
	Engine        string // --engine

	// Advanced / Debug
	Clients     string // --clients
	VisitorData string // --visitor-data
	PoToken     string // --po-token
	DumpDir     string // --dump-dir
	LogFile     string // --log-file

	Verbose   bool
	PrintJSON bool // --print-json
}

// Solving reports whether the options ask for a bare challenge solve.
func (o Options) Solving() bool {
	return o.SolveSig != "" || o.SolveN != ""
}

// ParseArgs parses command-line arguments (without the program name).
func ParseArgs(args []string, stderr io.Writer) (Options, error) {
	opts := Options{}
	fs := flag.NewFlagSet("ytcipher", flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Helper to bind multiple flags to one variable
	var formatShort, formatLong string
	var outputShort, outputLong string
	var listFormatsShort, listFormatsLong bool

	fs.StringVar(&formatShort, "f", "best", "Format itag or mode (best, mp4av, videoonly, audioonly)")
	fs.StringVar(&formatLong, "format", "best", "Format itag or mode (best, mp4av, videoonly, audioonly)")

	fs.StringVar(&outputShort, "o", "", "Output file, - for stdout")
	fs.StringVar(&outputLong, "output", "", "Output file, - for stdout")

	fs.BoolVar(&listFormatsShort, "F", false, "List available formats")
	fs.BoolVar(&listFormatsLong, "list-formats", false, "List available formats")

	fs.StringVar(&opts.ConfigFile, "config", "", "Config file (yaml, json or toml)")
	fs.StringVar(&opts.ProxyURL, "proxy", "", "Use the specified HTTP/HTTPS/SOCKS proxy")
	fs.StringVar(&opts.CookiesFile, "cookies", "", "Netscape formatted cookies file")
	fs.BoolVar(&opts.UTLS, "utls", false, "Dial with a Chrome TLS fingerprint")

	fs.BoolVar(&opts.SkipDownload, "skip-download", false, "Do not download the video")
	fs.IntVar(&opts.RateLimit, "limit-rate", 0, "Maximum download rate in bytes per second")

	fs.BoolVar(&opts.PlayerURLOnly, "playerjs", false, "Print player base.js URL only")
	fs.StringVar(&opts.PlayerURL, "player-url", "", "Player base.js URL used by --solve-sig and --solve-n")
	fs.StringVar(&opts.SolveSig, "solve-sig", "", "Decipher a signature challenge and print the result")
	fs.StringVar(&opts.SolveN, "solve-n", "", "Transform an n challenge and print the result")
	fs.StringVar(&opts.Engine, "engine", "", "JavaScript engine (goja, otto)")

	fs.StringVar(&opts.Clients, "clients", "", "Comma-separated Innertube client order override")
	fs.StringVar(&opts.VisitorData, "visitor-data", "", "VISITOR_INFO1_LIVE value override")
	fs.StringVar(&opts.PoToken, "po-token", "", "Static PO token")
	fs.StringVar(&opts.DumpDir, "dump-dir", "", "Directory receiving player scripts that failed extraction")
	fs.StringVar(&opts.LogFile, "log-file", "", "Write JSON logs to this file")

	fs.BoolVar(&opts.PrintJSON, "print-json", false, "Be quiet and print the video information as JSON")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Print various debugging information")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: ytcipher [OPTIONS] URL\n")
		fmt.Fprintf(stderr, "       ytcipher [OPTIONS] --solve-sig S | --solve-n N\n\n")
		fmt.Fprintln(stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	// Consolidate aliases
	opts.FormatSelector = pickValue(formatShort, formatLong, "best")
	opts.OutputPath = pickValue(outputShort, outputLong, "")
	opts.ListFormats = listFormatsShort || listFormatsLong

	opts.URLs = fs.Args()
	switch {
	case opts.Solving() || opts.PlayerURLOnly:
	case len(opts.URLs) == 0:
		fs.Usage()
		return opts, fmt.Errorf("%w: missing URL", ErrUsage)
	case len(opts.URLs) > 1:
		return opts, fmt.Errorf("%w: expected one URL, got %d", ErrUsage, len(opts.URLs))
	}
	return opts, nil
}

func pickValue(v1, v2, def string) string {
	if v1 != def {
		return v1
	}
	if v2 != def {
		return v2
	}
	return def
}

// Apply writes the flags that were given onto v, where they override the
// config file and environment.
func Apply(v *viper.Viper, opts Options) {
	if opts.ProxyURL != "" {
		v.Set("proxy_url", opts.ProxyURL)
	}
	if opts.CookiesFile != "" {
		v.Set("cookies_file", opts.CookiesFile)
	}
	if opts.UTLS {
		v.Set("transport.utls", true)
	}
	if opts.RateLimit > 0 {
		v.Set("download.rate_limit", opts.RateLimit)
	}
	if opts.Engine != "" {
		v.Set("sandbox.engine", opts.Engine)
	}
	if clients := splitList(opts.Clients); len(clients) > 0 {
		v.Set("clients", clients)
	}
	if opts.VisitorData != "" {
		v.Set("visitor_data", opts.VisitorData)
	}
	if token := strings.TrimSpace(opts.PoToken); token != "" {
		v.Set("po_token", token)
	}
	if opts.DumpDir != "" {
		v.Set("debug.dump_dir", opts.DumpDir)
	}
	if opts.LogFile != "" {
		v.Set("log.file", opts.LogFile)
	}
	if opts.Verbose {
		v.Set("log.level", "debug")
	}
}

// DownloadOptions converts the format selector into client options. A
// numeric selector picks an itag, anything else names a selection mode.
func DownloadOptions(opts Options) client.DownloadOptions {
	out := client.DownloadOptions{OutputPath: opts.OutputPath}
	sel := strings.TrimSpace(opts.FormatSelector)
	if itag, err := strconv.Atoi(sel); err == nil && itag > 0 {
		out.Itag = itag
		return out
	}
	out.Mode = client.SelectionMode(strings.ToLower(sel))
	return out
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
