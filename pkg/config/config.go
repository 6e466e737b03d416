package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/sre-norns/cloudapi/pkg/bark"
	"github.com/sre-norns/cloudapi/pkg/cloudapi"
	"github.com/sre-norns/cloudapi/pkg/dbstore"
	"github.com/sre-norns/cloudapi/pkg/grace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is the prefix of environment variables overriding config keys.
// Key `inventory-db.url` is read from `CLOUDAPI_INVENTORY_DB_URL`.
const EnvPrefix = "CLOUDAPI"

// Config keys
const (
	KeyListen          = "listen"
	KeyDatacenterName  = "datacenter-name"
	KeyVMAPIURL        = "vmapi-url"
	KeyInventoryDB     = "inventory-db"
	KeyUpstreamTimeout = "upstream-timeout"
	KeyDefaultLimit    = "default-limit"
	KeyMaxLimit        = "max-limit"
	KeyTokenSecret     = "token-secret"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyShutdownTimeout = "shutdown-timeout"
)

const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Config is the complete configuration of the gateway.
type Config struct {
	Listen         string `mapstructure:"listen" yaml:"listen"`
	DatacenterName string `mapstructure:"datacenter-name" yaml:"datacenter-name,omitempty"`

	// VMAPIURL is the base URL of VM API. Mutually exclusive with InventoryDB.
	VMAPIURL string `mapstructure:"vmapi-url" yaml:"vmapi-url,omitempty"`
	// InventoryDB is a database holding VM records. Mutually exclusive with VMAPIURL.
	InventoryDB dbstore.Config `mapstructure:"inventory-db" yaml:"inventory-db,omitempty"`

	UpstreamTimeout time.Duration `mapstructure:"upstream-timeout" yaml:"upstream-timeout"`
	DefaultLimit    int           `mapstructure:"default-limit" yaml:"default-limit"`
	MaxLimit        int           `mapstructure:"max-limit" yaml:"max-limit"`

	// TokenSecret signs continuation tokens. Tokens issued with one secret are rejected with another.
	TokenSecret string `mapstructure:"token-secret" yaml:"-"`

	LogLevel        string        `mapstructure:"log-level" yaml:"log-level"`
	LogFormat       string        `mapstructure:"log-format" yaml:"log-format"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" yaml:"shutdown-timeout"`
}

// Default returns configuration used for keys not set by any source.
func Default() Config {
	return Config{
		Listen:          ":8080",
		UpstreamTimeout: cloudapi.DefaultUpstreamTimeout,
		DefaultLimit:    cloudapi.DefaultPageSize,
		MaxLimit:        cloudapi.DefaultMaxPageSize,
		LogLevel:        zapcore.InfoLevel.String(),
		LogFormat:       LogFormatJSON,
		ShutdownTimeout: 15 * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyListen, d.Listen)
	v.SetDefault(KeyDatacenterName, d.DatacenterName)
	v.SetDefault(KeyVMAPIURL, d.VMAPIURL)
	v.SetDefault(KeyInventoryDB+".url", "")
	v.SetDefault(KeyInventoryDB+".dsn", "")
	v.SetDefault(KeyInventoryDB+".user", "")
	v.SetDefault(KeyInventoryDB+".password", "")
	v.SetDefault(KeyInventoryDB+".name", "")
	v.SetDefault(KeyUpstreamTimeout, d.UpstreamTimeout)
	v.SetDefault(KeyDefaultLimit, d.DefaultLimit)
	v.SetDefault(KeyMaxLimit, d.MaxLimit)
	v.SetDefault(KeyTokenSecret, d.TokenSecret)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyShutdownTimeout, d.ShutdownTimeout)
}

// RegisterFlags adds flags overriding config keys to the flag set.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String(KeyListen, d.Listen, "Address to serve API on")
	flags.String(KeyDatacenterName, d.DatacenterName, "Datacenter name reported in "+bark.HTTPHeaderDatacenter+" header")
	flags.String(KeyVMAPIURL, d.VMAPIURL, "Base URL of VM API")
	flags.String(KeyInventoryDB, "", "URL of a database holding VM inventory, used instead of VM API")
	flags.Duration(KeyUpstreamTimeout, d.UpstreamTimeout, "Time to wait for VM API to respond")
	flags.Int(KeyDefaultLimit, d.DefaultLimit, "Page size used when a client does not ask for one")
	flags.Int(KeyMaxLimit, d.MaxLimit, "Largest page size a client can get")
	flags.String(KeyLogLevel, d.LogLevel, "Log level: debug, info, warn or error")
	flags.String(KeyLogFormat, d.LogFormat, "Log format: json or console")
	flags.Duration(KeyShutdownTimeout, d.ShutdownTimeout, "Time to wait for in-flight requests on shutdown")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if key == KeyInventoryDB {
			key = KeyInventoryDB + ".url"
		}
		errs = append(errs, v.BindPFlag(key, f))
	})

	return errors.Join(errs...)
}

// Load reads configuration from, in the order of precedence: flags, environment, optional config file and defaults.
// Flags that were not set on command line do not override other sources.
func Load(flags *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, flags); err != nil {
		return Config{}, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	}

	var result Config
	if err := v.Unmarshal(&result); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	return result, nil
}

// Validate checks the config and reports every problem found.
func (c Config) Validate() error {
	var errs []error
	raise := func(subject, expected, got, cta string) {
		errs = append(errs, grace.RaiseError(subject, expected, got, cta))
	}

	if c.Listen == "" {
		raise(KeyListen, "an address to listen on", "nothing", "set --"+KeyListen+" to host:port")
	}

	switch {
	case c.VMAPIURL != "" && c.InventoryDB.Enabled():
		raise(KeyVMAPIURL, "exactly one source of VM records", "both "+KeyVMAPIURL+" and "+KeyInventoryDB, "unset one of them")
	case c.VMAPIURL == "" && !c.InventoryDB.Enabled():
		raise(KeyVMAPIURL, "exactly one source of VM records", "none", "set --"+KeyVMAPIURL+" or --"+KeyInventoryDB)
	case c.VMAPIURL != "":
		if u, err := url.Parse(c.VMAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			raise(KeyVMAPIURL, "an absolute http(s) URL", fmt.Sprintf("%q", c.VMAPIURL), "fix the URL of VM API")
		}
	}

	if c.UpstreamTimeout <= 0 {
		raise(KeyUpstreamTimeout, "a positive duration", c.UpstreamTimeout.String(), "set --"+KeyUpstreamTimeout+", e.g. 10s")
	}
	if c.ShutdownTimeout < 0 {
		raise(KeyShutdownTimeout, "a non-negative duration", c.ShutdownTimeout.String(), "set --"+KeyShutdownTimeout+", e.g. 15s")
	}

	if c.MaxLimit <= 0 {
		raise(KeyMaxLimit, "a positive number", fmt.Sprint(c.MaxLimit), "set --"+KeyMaxLimit)
	}
	if c.DefaultLimit <= 0 {
		raise(KeyDefaultLimit, "a positive number", fmt.Sprint(c.DefaultLimit), "set --"+KeyDefaultLimit)
	} else if c.MaxLimit > 0 && c.DefaultLimit > c.MaxLimit {
		raise(KeyDefaultLimit, fmt.Sprintf("at most %s (%d)", KeyMaxLimit, c.MaxLimit), fmt.Sprint(c.DefaultLimit), "lower --"+KeyDefaultLimit+" or raise --"+KeyMaxLimit)
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		raise(KeyLogLevel, "one of debug, info, warn, error", fmt.Sprintf("%q", c.LogLevel), "set --"+KeyLogLevel)
	}
	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatConsole {
		raise(KeyLogFormat, LogFormatJSON+" or "+LogFormatConsole, fmt.Sprintf("%q", c.LogFormat), "set --"+KeyLogFormat)
	}

	return errors.Join(errs...)
}

// ServiceOptions returns listing service options set by the config.
func (c Config) ServiceOptions() cloudapi.Options {
	return cloudapi.Options{
		Limits: bark.Limits{
			Default: c.DefaultLimit,
			Max:     c.MaxLimit,
		},
		UpstreamTimeout: c.UpstreamTimeout,
	}
}

// NewLogger builds a logger with the configured level and format.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.LogFormat == LogFormatConsole {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zc.Build()
}
