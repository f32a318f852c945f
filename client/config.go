package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/famomatic/ytcipher/internal/innertube"
)

// EnvPrefix prefixes environment overrides, e.g. YTCIPHER_PO_TOKEN or
// YTCIPHER_SANDBOX_ENGINE.
const EnvPrefix = "YTCIPHER"

// Config holds configuration for the client. Zero values select defaults.
type Config struct {
	// Clients sets the Innertube client order (e.g. "android_vr", "ios").
	Clients     []string `mapstructure:"clients"`
	SkipClients []string `mapstructure:"skip_clients"`

	// ProxyURL accepts http, https, socks5 and socks5h URLs. Ignored when
	// HTTPClient is set.
	ProxyURL string `mapstructure:"proxy_url"`
	// CookiesFile is a Netscape cookies.txt loaded into the session.
	CookiesFile string `mapstructure:"cookies_file"`
	// VisitorData overrides the VISITOR_INFO1_LIVE cookie.
	VisitorData string `mapstructure:"visitor_data"`
	// PoToken is sent to clients that accept one and appended to stream URLs.
	PoToken string `mapstructure:"po_token"`

	SeedPageURL       string        `mapstructure:"seed_page_url"`
	PlayerBaseURL     string        `mapstructure:"player_base_url"`
	PlayerLocale      string        `mapstructure:"player_locale"`
	ScriptTTL         time.Duration `mapstructure:"script_ttl"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	SkipManifests     bool          `mapstructure:"skip_manifests"`

	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Transport TransportConfig `mapstructure:"transport"`
	Download  DownloadConfig  `mapstructure:"download"`
	Debug     DebugConfig     `mapstructure:"debug"`
	Log       LogConfig       `mapstructure:"log"`

	// HTTPClient replaces the client built from ProxyURL and Transport.
	HTTPClient *http.Client `mapstructure:"-"`
	// PoTokenProvider mints tokens per client. It takes precedence over PoToken.
	PoTokenProvider innertube.PoTokenProvider `mapstructure:"-"`
	Logger          logrus.FieldLogger        `mapstructure:"-"`
}

type SandboxConfig struct {
	// Engine is "goja" or "otto".
	Engine        string        `mapstructure:"engine"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DisableNative bool          `mapstructure:"disable_native"`
	MemoSize      int           `mapstructure:"memo_size"`
}

// CacheConfig enables a Redis tier behind the in-memory script cache.
type CacheConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type TransportConfig struct {
	// MaxRetries < 0 disables retries.
	MaxRetries int           `mapstructure:"max_retries"`
	BackoffInc time.Duration `mapstructure:"backoff_inc"`
	BackoffMax time.Duration `mapstructure:"backoff_max"`
	// UTLS dials https hosts with a Chrome TLS fingerprint.
	UTLS bool `mapstructure:"utls"`
}

type DownloadConfig struct {
	ChunkSize int64 `mapstructure:"chunk_size"`
	// RateLimit caps download throughput in bytes per second.
	RateLimit int `mapstructure:"rate_limit"`
}

type DebugConfig struct {
	// DumpDir receives player scripts whose transforms could not be used.
	DumpDir string `mapstructure:"dump_dir"`
}

type LogConfig struct {
	Level         string `mapstructure:"level"`
	File          string `mapstructure:"file"`
	FileLevel     string `mapstructure:"file_level"`
	FileMaxSizeMB int    `mapstructure:"file_max_size_mb"`
}

// DefaultConfig returns the configuration used for unset keys.
func DefaultConfig() Config {
	return Config{
		Clients:        append([]string(nil), innertube.DefaultClientOrder...),
		PlayerLocale:   "en_US",
		ScriptTTL:      24 * time.Hour,
		RequestTimeout: 30 * time.Second,
		Sandbox: SandboxConfig{
			Engine:   "goja",
			Timeout:  2 * time.Second,
			MemoSize: 256,
		},
		Transport: TransportConfig{
			MaxRetries: 3,
			BackoffInc: 500 * time.Millisecond,
			BackoffMax: 5 * time.Second,
		},
		Download: DownloadConfig{ChunkSize: 512 * 1024},
		Log: LogConfig{
			Level:         "info",
			FileLevel:     "debug",
			FileMaxSizeMB: 16,
		},
	}
}

// NewViper prepares a viper instance with defaults and environment bindings.
// An empty path skips the config file.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

// LoadConfig reads path (yaml, json or toml) plus YTCIPHER_* overrides.
func LoadConfig(path string) (Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return Config{}, err
	}
	return DecodeConfig(v)
}

// DecodeConfig decodes the settings held by v.
func DecodeConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("clients", d.Clients)
	v.SetDefault("skip_clients", []string{})
	v.SetDefault("proxy_url", "")
	v.SetDefault("cookies_file", "")
	v.SetDefault("visitor_data", "")
	v.SetDefault("po_token", "")
	v.SetDefault("seed_page_url", "")
	v.SetDefault("player_base_url", "")
	v.SetDefault("player_locale", d.PlayerLocale)
	v.SetDefault("script_ttl", d.ScriptTTL)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("requests_per_second", 0)
	v.SetDefault("skip_manifests", false)

	v.SetDefault("sandbox.engine", d.Sandbox.Engine)
	v.SetDefault("sandbox.timeout", d.Sandbox.Timeout)
	v.SetDefault("sandbox.disable_native", false)
	v.SetDefault("sandbox.memo_size", d.Sandbox.MemoSize)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("transport.max_retries", d.Transport.MaxRetries)
	v.SetDefault("transport.backoff_inc", d.Transport.BackoffInc)
	v.SetDefault("transport.backoff_max", d.Transport.BackoffMax)
	v.SetDefault("transport.utls", false)

	v.SetDefault("download.chunk_size", d.Download.ChunkSize)
	v.SetDefault("download.rate_limit", 0)

	v.SetDefault("debug.dump_dir", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("log.file_level", d.Log.FileLevel)
	v.SetDefault("log.file_max_size_mb", d.Log.FileMaxSizeMB)
}
