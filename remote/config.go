/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package remote

import (
	"errors"
	"time"

	"github.com/acronis/go-docsubmit/config"
)

// DefaultTransportTimeout is a default timeout of the HTTP client.
const DefaultTransportTimeout = 30 * time.Second

const (
	cfgKeyTimeout                    = "timeout"
	cfgKeyUserAgent                  = "userAgent"
	cfgKeyLoggerEnabled              = "logger.enabled"
	cfgKeyLoggerMode                 = "logger.mode"
	cfgKeyLoggerSlowRequestThreshold = "logger.slowRequestThreshold"
	cfgKeyMetricsEnabled             = "metrics.enabled"
	cfgKeyRateLimitsEnabled          = "rateLimits.enabled"
	cfgKeyRateLimitsLimit            = "rateLimits.limit"
	cfgKeyRateLimitsBurst            = "rateLimits.burst"
	cfgKeyRateLimitsWaitTimeout      = "rateLimits.waitTimeout"
)

var _ config.Config = (*TransportConfig)(nil)

// TransportConfig represents configuration of the HTTP client used for remote calls.
type TransportConfig struct {
	// Timeout is the maximum time of a single HTTP request including reading the response.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	// UserAgent is sent in the User-Agent header if not empty.
	UserAgent string `mapstructure:"userAgent" yaml:"userAgent" json:"userAgent"`

	Logger     TransportLoggerConfig    `mapstructure:"logger" yaml:"logger" json:"logger"`
	Metrics    TransportMetricsConfig   `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	RateLimits TransportRateLimitConfig `mapstructure:"rateLimits" yaml:"rateLimits" json:"rateLimits"`
}

// TransportLoggerConfig represents configuration of outgoing requests logging.
type TransportLoggerConfig struct {
	Enabled              bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Mode                 LoggingMode   `mapstructure:"mode" yaml:"mode" json:"mode"`
	SlowRequestThreshold time.Duration `mapstructure:"slowRequestThreshold" yaml:"slowRequestThreshold" json:"slowRequestThreshold"`
}

// TransportMetricsConfig represents configuration of outgoing requests metrics.
type TransportMetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// TransportRateLimitConfig represents configuration of client-side pacing of outgoing requests.
type TransportRateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Limit       int           `mapstructure:"limit" yaml:"limit" json:"limit"`
	Burst       int           `mapstructure:"burst" yaml:"burst" json:"burst"`
	WaitTimeout time.Duration `mapstructure:"waitTimeout" yaml:"waitTimeout" json:"waitTimeout"`
}

// NewDefaultTransportConfig creates a new TransportConfig with default values.
func NewDefaultTransportConfig() *TransportConfig {
	return &TransportConfig{
		Timeout: DefaultTransportTimeout,
		Logger:  TransportLoggerConfig{Enabled: true, Mode: LoggingModeFailed},
		Metrics: TransportMetricsConfig{Enabled: true},
	}
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *TransportConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyTimeout, DefaultTransportTimeout.String())
	dp.SetDefault(cfgKeyLoggerEnabled, true)
	dp.SetDefault(cfgKeyLoggerMode, string(LoggingModeFailed))
	dp.SetDefault(cfgKeyMetricsEnabled, true)
	dp.SetDefault(cfgKeyRateLimitsBurst, DefaultRateLimitingBurst)
	dp.SetDefault(cfgKeyRateLimitsWaitTimeout, DefaultRateLimitingWaitTimeout.String())
}

// Set sets configuration values from config.DataProvider.
func (c *TransportConfig) Set(dp config.DataProvider) error {
	var err error

	if c.Timeout, err = dp.GetDuration(cfgKeyTimeout); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return dp.WrapKeyErr(cfgKeyTimeout, errors.New("cannot be negative"))
	}
	if c.UserAgent, err = dp.GetString(cfgKeyUserAgent); err != nil {
		return err
	}

	if err = c.setLoggerConfig(dp); err != nil {
		return err
	}
	if c.Metrics.Enabled, err = dp.GetBool(cfgKeyMetricsEnabled); err != nil {
		return err
	}
	return c.setRateLimitsConfig(dp)
}

func (c *TransportConfig) setLoggerConfig(dp config.DataProvider) error {
	var err error
	if c.Logger.Enabled, err = dp.GetBool(cfgKeyLoggerEnabled); err != nil {
		return err
	}
	if !c.Logger.Enabled {
		return nil
	}
	var mode string
	if mode, err = dp.GetStringFromSet(cfgKeyLoggerMode, []string{
		string(LoggingModeNone), string(LoggingModeAll), string(LoggingModeFailed),
	}, true); err != nil {
		return err
	}
	c.Logger.Mode = LoggingMode(mode)
	if c.Logger.SlowRequestThreshold, err = dp.GetDuration(cfgKeyLoggerSlowRequestThreshold); err != nil {
		return err
	}
	if c.Logger.SlowRequestThreshold < 0 {
		return dp.WrapKeyErr(cfgKeyLoggerSlowRequestThreshold, errors.New("cannot be negative"))
	}
	return nil
}

func (c *TransportConfig) setRateLimitsConfig(dp config.DataProvider) error {
	var err error
	if c.RateLimits.Enabled, err = dp.GetBool(cfgKeyRateLimitsEnabled); err != nil {
		return err
	}
	if !c.RateLimits.Enabled {
		return nil
	}
	if c.RateLimits.Limit, err = dp.GetInt(cfgKeyRateLimitsLimit); err != nil {
		return err
	}
	if c.RateLimits.Limit <= 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsLimit, errors.New("must be positive"))
	}
	if c.RateLimits.Burst, err = dp.GetInt(cfgKeyRateLimitsBurst); err != nil {
		return err
	}
	if c.RateLimits.Burst < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsBurst, errors.New("cannot be negative"))
	}
	if c.RateLimits.WaitTimeout, err = dp.GetDuration(cfgKeyRateLimitsWaitTimeout); err != nil {
		return err
	}
	if c.RateLimits.WaitTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyRateLimitsWaitTimeout, errors.New("cannot be negative"))
	}
	return nil
}
