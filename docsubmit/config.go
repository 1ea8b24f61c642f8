/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package docsubmit

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/acronis/go-docsubmit/config"
	"github.com/acronis/go-docsubmit/dispatch"
	"github.com/acronis/go-docsubmit/remote"
)

const cfgDefaultKeyPrefix = "docsubmit"

const (
	cfgKeyRequestLimit        = "requestLimit"
	cfgKeyWindowDuration      = "windowDuration"
	cfgKeyWorkerPoolSize      = "workerPoolSize"
	cfgKeyQueueSize           = "queueSize"
	cfgKeySaturationPolicy    = "saturation.policy"
	cfgKeySaturationTimeout   = "saturation.timeout"
	cfgKeyCallTimeout         = "callTimeout"
	cfgKeyShutdownGracePeriod = "shutdownGracePeriod"
	cfgKeyAPIURL              = "api.url"
	cfgKeyAPIHeaders          = "api.headers"
	cfgKeyTransport           = "transport"
)

// Default values.
const (
	DefaultRequestLimit        = 10
	DefaultWindowDuration      = time.Second
	DefaultShutdownGracePeriod = 30 * time.Second
)

// Config represents a set of configuration parameters for the submission client.
type Config struct {
	// RequestLimit is the maximum number of remote calls admitted within one window.
	RequestLimit int `mapstructure:"requestLimit" yaml:"requestLimit" json:"requestLimit"`

	// WindowDuration is the length of the fixed window after which the request count is reset.
	WindowDuration time.Duration `mapstructure:"windowDuration" yaml:"windowDuration" json:"windowDuration"`

	WorkerPoolSize int              `mapstructure:"workerPoolSize" yaml:"workerPoolSize" json:"workerPoolSize"`
	QueueSize      int              `mapstructure:"queueSize" yaml:"queueSize" json:"queueSize"`
	Saturation     SaturationConfig `mapstructure:"saturation" yaml:"saturation" json:"saturation"`

	// CallTimeout bounds a single remote call from sending the request to receiving the status code.
	CallTimeout time.Duration `mapstructure:"callTimeout" yaml:"callTimeout" json:"callTimeout"`

	// ShutdownGracePeriod is the time given to in-flight submissions on shutdown.
	ShutdownGracePeriod time.Duration `mapstructure:"shutdownGracePeriod" yaml:"shutdownGracePeriod" json:"shutdownGracePeriod"`

	API       APIConfig               `mapstructure:"api" yaml:"api" json:"api"`
	Transport *remote.TransportConfig `mapstructure:"transport" yaml:"transport" json:"transport"`

	keyPrefix string
}

// SaturationConfig represents configuration of the dispatcher behavior when its queue is full.
type SaturationConfig struct {
	Policy  dispatch.SaturationPolicy `mapstructure:"policy" yaml:"policy" json:"policy"`
	Timeout time.Duration             `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// APIConfig represents configuration of the remote API endpoint.
type APIConfig struct {
	URL     string            `mapstructure:"url" yaml:"url" json:"url"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers" json:"headers"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	opts := configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix, Transport: &remote.TransportConfig{}}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.RequestLimit = DefaultRequestLimit
	cfg.WindowDuration = DefaultWindowDuration
	cfg.WorkerPoolSize = dispatch.DefaultWorkerPoolSize
	cfg.QueueSize = dispatch.DefaultWorkerPoolSize
	cfg.Saturation = SaturationConfig{Policy: dispatch.SaturationPolicyReject, Timeout: dispatch.DefaultSaturationTimeout}
	cfg.CallTimeout = remote.DefaultCallTimeout
	cfg.ShutdownGracePeriod = DefaultShutdownGracePeriod
	cfg.API = APIConfig{URL: remote.DefaultURL, Headers: map[string]string{}}
	cfg.Transport = remote.NewDefaultTransportConfig()
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyRequestLimit, DefaultRequestLimit)
	dp.SetDefault(cfgKeyWindowDuration, DefaultWindowDuration.String())
	dp.SetDefault(cfgKeyWorkerPoolSize, dispatch.DefaultWorkerPoolSize)
	dp.SetDefault(cfgKeySaturationPolicy, string(dispatch.SaturationPolicyReject))
	dp.SetDefault(cfgKeySaturationTimeout, dispatch.DefaultSaturationTimeout.String())
	dp.SetDefault(cfgKeyCallTimeout, remote.DefaultCallTimeout.String())
	dp.SetDefault(cfgKeyShutdownGracePeriod, DefaultShutdownGracePeriod.String())
	dp.SetDefault(cfgKeyAPIURL, remote.DefaultURL)
	c.transportConfig().SetProviderDefaults(config.NewKeyPrefixedDataProvider(dp, cfgKeyTransport))
}

// Set sets configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	if err := c.setWindowConfig(dp); err != nil {
		return err
	}
	if err := c.setDispatchConfig(dp); err != nil {
		return err
	}
	if err := c.setAPIConfig(dp); err != nil {
		return err
	}
	return c.transportConfig().Set(config.NewKeyPrefixedDataProvider(dp, cfgKeyTransport))
}

func (c *Config) transportConfig() *remote.TransportConfig {
	if c.Transport == nil {
		c.Transport = &remote.TransportConfig{}
	}
	return c.Transport
}

func (c *Config) setWindowConfig(dp config.DataProvider) error {
	var err error
	if c.RequestLimit, err = dp.GetInt(cfgKeyRequestLimit); err != nil {
		return err
	}
	if c.RequestLimit <= 0 {
		return dp.WrapKeyErr(cfgKeyRequestLimit, errors.New("must be positive"))
	}
	if c.WindowDuration, err = dp.GetDuration(cfgKeyWindowDuration); err != nil {
		return err
	}
	if c.WindowDuration <= 0 {
		return dp.WrapKeyErr(cfgKeyWindowDuration, errors.New("must be positive"))
	}
	return nil
}

func (c *Config) setDispatchConfig(dp config.DataProvider) error {
	var err error

	if c.WorkerPoolSize, err = dp.GetInt(cfgKeyWorkerPoolSize); err != nil {
		return err
	}
	if c.WorkerPoolSize <= 0 {
		return dp.WrapKeyErr(cfgKeyWorkerPoolSize, errors.New("must be positive"))
	}
	if c.QueueSize, err = dp.GetInt(cfgKeyQueueSize); err != nil {
		return err
	}
	if c.QueueSize < 0 {
		return dp.WrapKeyErr(cfgKeyQueueSize, errors.New("cannot be negative"))
	}
	if c.QueueSize == 0 {
		c.QueueSize = c.WorkerPoolSize
	}

	var policy string
	if policy, err = dp.GetStringFromSet(cfgKeySaturationPolicy, []string{
		string(dispatch.SaturationPolicyReject), string(dispatch.SaturationPolicyBlock),
	}, true); err != nil {
		return err
	}
	c.Saturation.Policy = dispatch.SaturationPolicy(strings.ToLower(policy))
	if c.Saturation.Timeout, err = dp.GetDuration(cfgKeySaturationTimeout); err != nil {
		return err
	}
	if c.Saturation.Timeout <= 0 {
		return dp.WrapKeyErr(cfgKeySaturationTimeout, errors.New("must be positive"))
	}

	if c.CallTimeout, err = dp.GetDuration(cfgKeyCallTimeout); err != nil {
		return err
	}
	if c.CallTimeout < 0 {
		return dp.WrapKeyErr(cfgKeyCallTimeout, errors.New("cannot be negative"))
	}
	if c.ShutdownGracePeriod, err = dp.GetDuration(cfgKeyShutdownGracePeriod); err != nil {
		return err
	}
	if c.ShutdownGracePeriod < 0 {
		return dp.WrapKeyErr(cfgKeyShutdownGracePeriod, errors.New("cannot be negative"))
	}
	return nil
}

func (c *Config) setAPIConfig(dp config.DataProvider) error {
	var err error
	if c.API.URL, err = dp.GetString(cfgKeyAPIURL); err != nil {
		return err
	}
	u, err := url.Parse(c.API.URL)
	if err != nil {
		return dp.WrapKeyErr(cfgKeyAPIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return dp.WrapKeyErr(cfgKeyAPIURL, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return dp.WrapKeyErr(cfgKeyAPIURL, errors.New("host is missing"))
	}
	c.API.Headers = nil
	if err = dp.UnmarshalKey(cfgKeyAPIHeaders, &c.API.Headers); err != nil {
		return err
	}
	if c.API.Headers == nil {
		c.API.Headers = map[string]string{}
	}
	return nil
}
