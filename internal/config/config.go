package config

import (
	"net/url"
	"os"
	"time"

	"codeberg.org/mutker/pressurebar/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEndpoint         = "ws://crabcontrol.rahix.net:8080/graphql-subscriptions"
	DefaultHandshakeTimeout = 45 * time.Second
	DefaultGlyph            = "#"
	DefaultLogLevel         = string(LogLevelWarning)
	DefaultMetricsAddr      = "127.0.0.1:9465"

	defaultEnvPrefix  = "PRESSUREBAR"
	defaultConfigName = "pressurebar"
)

type Config struct {
	Endpoint         string        `mapstructure:"endpoint"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	Glyph            string        `mapstructure:"glyph"`
	LogLevel         string        `mapstructure:"log_level"`
	Metrics          bool          `mapstructure:"metrics"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"endpoint":          "endpoint",
	"handshake-timeout": "handshake_timeout",
	"glyph":             "glyph",
	"log-level":         "log_level",
	"metrics":           "metrics",
	"metrics-addr":      "metrics_addr",
}

// Load reads defaults, the optional TOML file, PRESSUREBAR_* environment
// variables and command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix: defaultEnvPrefix,
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	v := viper.New()
	v.SetDefault("endpoint", DefaultEndpoint)
	v.SetDefault("handshake_timeout", DefaultHandshakeTimeout)
	v.SetDefault("glyph", DefaultGlyph)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_addr", DefaultMetricsAddr)

	fs := pflag.NewFlagSet("pressurebar", pflag.ContinueOnError)
	fs.String("endpoint", DefaultEndpoint, "GraphQL subscription websocket URL")
	fs.Duration("handshake-timeout", DefaultHandshakeTimeout, "Websocket handshake timeout")
	fs.String("glyph", DefaultGlyph, "Character used to draw the bar")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("metrics", false, "Serve Prometheus metrics")
	fs.String("metrics-addr", DefaultMetricsAddr, "Listen address for the metrics endpoint")

	if err := fs.Parse(o.args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, errFactory.Wrap(errors.ErrHelpRequested, err)
		}
		return nil, errFactory.Wrap(errors.ErrParseFlags, err)
	}

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	if err := readConfigFile(v, o); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func readConfigFile(v *viper.Viper, o *options) error {
	errFactory := errors.New()

	path := o.configPath
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks every field and returns the first violation.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig,
			"endpoint must be a ws:// or wss:// URL: "+c.Endpoint)
	}

	if c.Glyph == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "glyph must not be empty")
	}

	if c.HandshakeTimeout <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "handshake timeout must be positive")
	}

	if c.Metrics && c.MetricsAddr == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "metrics address must be set when metrics are enabled")
	}

	return nil
}
