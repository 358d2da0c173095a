package devproxy

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by all configuration validation failures.
var ErrInvalidConfig = errors.New("invalid proxy configuration")

// ProxyConfig describes a single host remapping. It is the argument to
// [Proxy.Activate]. Exactly one of two shapes is valid: an explicit
// ProxyURL, or the full credential triple (APIKey, InstanceID, Domain)
// plus a non-empty Hosts list for dynamic resolution.
type ProxyConfig struct {
	// Hosts are the hostnames (or URLs, from which the hostname is
	// extracted) whose requests must be redirected. Order is irrelevant;
	// matching is an exact, case-sensitive membership test.
	Hosts []string `mapstructure:"hosts"`

	// ProxyURL is an optional explicit base URL of the development proxy,
	// e.g. "https://px.example.com" or "http://proxy.local:8080". When set,
	// the proxy operates in forced mode: the URL's scheme dictates the
	// outbound protocol for every redirected request and no resolution
	// happens.
	ProxyURL string `mapstructure:"proxy_url"`

	// APIKey authenticates the app with the platform. Required when
	// ProxyURL is empty.
	APIKey string `mapstructure:"api_key"`

	// InstanceID is the app instance guid used to resolve the proxy host.
	// Required when ProxyURL is empty.
	InstanceID string `mapstructure:"instance_id"`

	// Domain is the platform domain the instance lives on, e.g.
	// "dev.example.com". Required when ProxyURL is empty.
	Domain string `mapstructure:"domain"`

	// ResolveTimeout bounds the platform host lookup. Zero means the
	// default (15 seconds).
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
}

// Validate checks the configuration shape described on [ProxyConfig].
// All failures wrap [ErrInvalidConfig].
func (c ProxyConfig) Validate() error {
	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil {
			return fmt.Errorf("%w: parse proxy_url: %v", ErrInvalidConfig, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%w: proxy_url scheme must be http or https, got %q", ErrInvalidConfig, u.Scheme)
		}
		if u.Hostname() == "" {
			return fmt.Errorf("%w: proxy_url has no hostname", ErrInvalidConfig)
		}
		return nil
	}

	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if c.InstanceID == "" {
		missing = append(missing, "instance_id")
	}
	if c.Domain == "" {
		missing = append(missing, "domain")
	}
	if len(c.Hosts) == 0 {
		missing = append(missing, "hosts")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s (required when proxy_url is not set)",
			ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Clone returns a deep copy. The active configuration is cloned at
// activation time so later mutation of the caller's value cannot affect a
// running proxy.
func (c ProxyConfig) Clone() ProxyConfig {
	out := c
	if c.Hosts != nil {
		out.Hosts = make([]string, len(c.Hosts))
		copy(out.Hosts, c.Hosts)
	}
	return out
}

// Config is the complete configuration consumed by the fh-dev-proxy CLI.
// Library users normally construct a [ProxyConfig] directly.
type Config struct {
	// Proxy is the host remapping configuration.
	Proxy ProxyConfig `mapstructure:"proxy"`

	// Debug configures the local debug/admin HTTP server.
	Debug DebugConfig `mapstructure:"debug"`

	// Logging configures log output.
	Logging LoggingConfig `mapstructure:"logging"`
}

// DebugConfig contains settings for the local debug server.
type DebugConfig struct {
	// Addr is the listen address for the debug server (e.g. "127.0.0.1:9099").
	// Empty disables the server.
	Addr string `mapstructure:"addr"`

	// Metrics enables the Prometheus /metrics endpoint on the debug server.
	Metrics bool `mapstructure:"metrics"`

	// Trace enables per-request decision tracing, including decoded
	// response bodies at debug log level.
	Trace bool `mapstructure:"trace"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the log level: debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is the log format: text, json.
	Format string `mapstructure:"format"`

	// Output is where to write logs: stdout, stderr, or a file path.
	Output string `mapstructure:"output"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Proxy: ProxyConfig{
			ResolveTimeout: 15 * time.Second,
		},
		Debug: DebugConfig{
			Addr:    "",
			Metrics: false,
			Trace:   false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// LoadConfig loads configuration from file, environment, and defaults.
// It searches for config files in the following order:
//  1. Explicit path (if provided)
//  2. ./fh-dev-proxy.yaml
//  3. $HOME/.fh-dev-proxy/config.yaml
//  4. /etc/fh-dev-proxy/config.yaml
//
// Environment variables use the FHPROXY prefix, e.g. FHPROXY_PROXY_API_KEY.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("fh-dev-proxy")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.fh-dev-proxy")
	v.AddConfigPath("/etc/fh-dev-proxy")

	v.SetEnvPrefix("FHPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No config file is fine: env and defaults still apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromReader loads configuration from raw bytes in the given
// format. Useful for testing or embedded configs.
func LoadConfigFromReader(configType string, data []byte) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	v.SetConfigType(configType)

	if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("proxy.resolve_timeout", defaults.Proxy.ResolveTimeout)

	v.SetDefault("debug.addr", defaults.Debug.Addr)
	v.SetDefault("debug.metrics", defaults.Debug.Metrics)
	v.SetDefault("debug.trace", defaults.Debug.Trace)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.output", defaults.Logging.Output)
}

// WriteExampleConfig writes an example configuration file.
func WriteExampleConfig(path string) error {
	example := `# fh-dev-proxy configuration
# See https://github.com/evanshortiss/fh-dev-proxy for documentation

proxy:
  # Hostnames whose outbound requests are redirected through the dev proxy.
  # Entries may be bare hostnames or URLs (the hostname is extracted).
  hosts:
    - "api.internal"
    - "https://auth.internal"

  # Explicit proxy URL (forced mode). When set, the URL's scheme dictates
  # the outbound protocol and the credentials below are not needed.
  # proxy_url: "https://px.example.com"

  # Platform credentials, used to resolve the proxy URL when proxy_url is
  # not set (auto mode).
  api_key: ""
  instance_id: ""
  domain: "dev.example.com"

  # Timeout for the platform host lookup.
  resolve_timeout: 15s

debug:
  # Local debug/admin server. Empty addr disables it.
  # addr: "127.0.0.1:9099"

  # Serve Prometheus metrics at /metrics on the debug server.
  metrics: false

  # Log every redirect/passthrough decision, with decoded response bodies
  # at debug level.
  trace: false

logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log format: text, json
  format: "text"

  # Output: stdout, stderr, or a file path
  output: "stderr"
`

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	return os.WriteFile(path, []byte(example), 0644)
}
