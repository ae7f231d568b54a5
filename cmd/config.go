package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/zsjsll/gemini-proxy/proxy"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// DefaultConfigFile is the TOML file read when GEMINI_PROXY_CONFIG is unset.
const DefaultConfigFile = "config.toml"

// Config holds configuration values for commands.
type Config struct {
	UpstreamURL   string
	Port          string
	AdminPort     string
	ProxyProtocol bool
	InfoMessage   string

	ServerCertificate string
	ServerKey         string

	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	ShutdownTimeout       time.Duration
	CheckTimeout          time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string
}

// fileConfig is the layout of the TOML configuration file. Durations are
// strings in Go duration syntax.
type fileConfig struct {
	UpstreamURL           *string `toml:"upstream_url"`
	Port                  *string `toml:"port"`
	AdminPort             *string `toml:"admin_port"`
	ProxyProtocol         *bool   `toml:"proxy_protocol"`
	InfoMessage           *string `toml:"info_message"`
	ServerCertificate     *string `toml:"server_cert"`
	ServerKey             *string `toml:"server_key"`
	DialTimeout           *string `toml:"dial_timeout"`
	ResponseHeaderTimeout *string `toml:"response_header_timeout"`
	IdleConnTimeout       *string `toml:"idle_conn_timeout"`
	ShutdownTimeout       *string `toml:"shutdown_timeout"`
	CheckTimeout          *string `toml:"check_timeout"`
	LogLevel              *string `toml:"log_level"`
	LogFormat             *string `toml:"log_format"`
	LogFile               *string `toml:"log_file"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		UpstreamURL:     proxy.DefaultUpstreamURL,
		Port:            "8080",
		AdminPort:       "9090",
		DialTimeout:     30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		CheckTimeout:    500 * time.Millisecond,
		LogLevel:        "info",
		LogFormat:       "json",
	}
}

// GetConfigFromEnvironment creates a Config object based on the optional
// configuration file and the shell environment.
func GetConfigFromEnvironment() (*Config, error) {
	return LoadConfig(os.LookupEnv)
}

// LoadConfig builds a Config from the defaults, then the TOML file, then the
// environment as reported by lookup. Later layers win.
func LoadConfig(lookup func(string) (string, bool)) (*Config, error) {
	config := DefaultConfig()
	e := environment{lookup: lookup}

	path, explicit := lookup("GEMINI_PROXY_CONFIG")
	if !explicit {
		path = DefaultConfigFile
	}

	if err := config.loadFile(path, explicit); err != nil {
		return nil, err
	}

	config.UpstreamURL = e.str("UPSTREAM_URL", config.UpstreamURL)
	config.Port = e.str("PORT", config.Port)
	config.AdminPort = e.str("ADMIN_PORT", config.AdminPort)
	config.ProxyProtocol = e.bool("PROXY_PROTOCOL", config.ProxyProtocol)
	config.InfoMessage = e.str("INFO_MESSAGE", config.InfoMessage)
	config.ServerCertificate = e.str("SERVER_CERT", config.ServerCertificate)
	config.ServerKey = e.str("SERVER_KEY", config.ServerKey)
	config.DialTimeout = e.duration("DIAL_TIMEOUT", config.DialTimeout)
	config.ResponseHeaderTimeout = e.duration("RESPONSE_HEADER_TIMEOUT", config.ResponseHeaderTimeout)
	config.IdleConnTimeout = e.duration("IDLE_CONN_TIMEOUT", config.IdleConnTimeout)
	config.ShutdownTimeout = e.duration("SHUTDOWN_TIMEOUT", config.ShutdownTimeout)
	config.CheckTimeout = e.duration("CHECK_TIMEOUT", config.CheckTimeout)
	config.LogLevel = e.str("LOG_LEVEL", config.LogLevel)
	config.LogFormat = e.str("LOG_FORMAT", config.LogFormat)
	config.LogFile = e.str("LOG_FILE", config.LogFile)

	if e.err != nil {
		return nil, e.err
	}

	return config, nil
}

// loadFile applies the TOML file at path. A missing file is only an error if
// its path was given explicitly.
func (config *Config) loadFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	} else if err != nil {
		return fmt.Errorf("could not read configuration file: %w", err)
	}

	var file fileConfig
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("could not parse configuration file %s: %w", path, err)
	}

	setString(&config.UpstreamURL, file.UpstreamURL)
	setString(&config.Port, file.Port)
	setString(&config.AdminPort, file.AdminPort)
	setString(&config.InfoMessage, file.InfoMessage)
	setString(&config.ServerCertificate, file.ServerCertificate)
	setString(&config.ServerKey, file.ServerKey)
	setString(&config.LogLevel, file.LogLevel)
	setString(&config.LogFormat, file.LogFormat)
	setString(&config.LogFile, file.LogFile)
	if file.ProxyProtocol != nil {
		config.ProxyProtocol = *file.ProxyProtocol
	}
	errs := multierr.Combine(
		setDuration(&config.DialTimeout, "dial_timeout", file.DialTimeout),
		setDuration(&config.ResponseHeaderTimeout, "response_header_timeout", file.ResponseHeaderTimeout),
		setDuration(&config.IdleConnTimeout, "idle_conn_timeout", file.IdleConnTimeout),
		setDuration(&config.ShutdownTimeout, "shutdown_timeout", file.ShutdownTimeout),
		setDuration(&config.CheckTimeout, "check_timeout", file.CheckTimeout),
	)

	if errs != nil {
		return fmt.Errorf("invalid configuration file %s: %w", path, errs)
	}

	return nil
}

// Validate checks the configuration, reporting every problem found.
func (config *Config) Validate() error {
	var err error

	if _, e := proxy.ParseUpstream(config.UpstreamURL); e != nil {
		err = multierr.Append(err, e)
	}

	if config.Port == "" {
		err = multierr.Append(err, errors.New("the proxy port must not be empty"))
	}

	if config.Port != "" && config.Port == config.AdminPort {
		err = multierr.Append(err, fmt.Errorf("the proxy and admin listeners must not share port %s", config.Port))
	}

	if (config.ServerCertificate == "") != (config.ServerKey == "") {
		err = multierr.Append(err, errors.New("SERVER_CERT and SERVER_KEY must be set together"))
	}

	if _, e := zapcore.ParseLevel(config.LogLevel); e != nil {
		err = multierr.Append(err, fmt.Errorf("invalid log level: %w", e))
	}

	switch config.LogFormat {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("invalid log format %q: must be json or console", config.LogFormat))
	}

	for name, d := range map[string]time.Duration{
		"DIAL_TIMEOUT":            config.DialTimeout,
		"RESPONSE_HEADER_TIMEOUT": config.ResponseHeaderTimeout,
		"IDLE_CONN_TIMEOUT":       config.IdleConnTimeout,
		"SHUTDOWN_TIMEOUT":        config.ShutdownTimeout,
		"CHECK_TIMEOUT":           config.CheckTimeout,
	} {
		if d < 0 {
			err = multierr.Append(err, fmt.Errorf("%s must not be negative", name))
		}
	}

	if config.ShutdownTimeout == 0 {
		err = multierr.Append(err, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}

	return err
}

// TLSEnabled returns true if the proxy listener serves HTTPS.
func (config *Config) TLSEnabled() bool {
	return config.ServerCertificate != "" && config.ServerKey != ""
}

// environment reads typed values from the environment, collecting parse
// errors.
type environment struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *environment) str(key string, def string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}

	return def
}

func (e *environment) bool(key string, def bool) bool {
	if value, ok := e.lookup(key); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			e.err = multierr.Append(e.err, fmt.Errorf("invalid %s: %w", key, err))
			return def
		}
		return b
	}

	return def
}

func (e *environment) duration(key string, def time.Duration) time.Duration {
	if value, ok := e.lookup(key); ok {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			e.err = multierr.Append(e.err, fmt.Errorf("invalid %s: %w", key, err))
			return def
		}
		return d
	}

	return def
}

func setString(dst *string, value *string) {
	if value != nil {
		*dst = *value
	}
}

func setDuration(dst *time.Duration, key string, value *string) error {
	if value == nil {
		return nil
	}

	d, err := time.ParseDuration(*value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}

	*dst = d
	return nil
}
