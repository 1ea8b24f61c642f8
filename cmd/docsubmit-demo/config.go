/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"errors"

	"github.com/acronis/go-docsubmit/config"
	"github.com/acronis/go-docsubmit/docsubmit"
	"github.com/acronis/go-docsubmit/log"
)

const (
	cfgKeyDemoDocuments      = "documents"
	cfgKeyDemoMaxRetries     = "maxRetries"
	cfgKeyDemoMockAPI        = "mockAPI"
	cfgKeyDemoMetricsAddress = "metricsAddress"
)

// AppConfig is a configuration of the demo application.
type AppConfig struct {
	Log       *log.Config
	DocSubmit *docsubmit.Config
	Demo      *DemoConfig
}

// NewAppConfig creates a new AppConfig.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Log:       log.NewConfig(),
		DocSubmit: docsubmit.NewConfig(),
		Demo:      &DemoConfig{},
	}
}

// DemoConfig describes the workload generated by the demo.
type DemoConfig struct {
	// Documents is the number of documents to submit.
	Documents int

	// MaxRetries is the maximum number of re-attempts for a rejected submission (0 means unlimited).
	MaxRetries int

	// MockAPI starts a local server that accepts every document and sends submissions there.
	MockAPI bool

	// MetricsAddress is an address to serve Prometheus metrics on. Metrics aren't served if empty.
	MetricsAddress string
}

var _ config.KeyPrefixProvider = (*DemoConfig)(nil)

// KeyPrefix implements config.KeyPrefixProvider.
func (c *DemoConfig) KeyPrefix() string {
	return "demo"
}

// SetProviderDefaults implements config.Config.
func (c *DemoConfig) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyDemoDocuments, 100)
	dp.SetDefault(cfgKeyDemoMockAPI, true)
}

// Set implements config.Config.
func (c *DemoConfig) Set(dp config.DataProvider) error {
	var err error
	if c.Documents, err = dp.GetInt(cfgKeyDemoDocuments); err != nil {
		return err
	}
	if c.Documents < 0 {
		return dp.WrapKeyErr(cfgKeyDemoDocuments, errors.New("cannot be negative"))
	}
	if c.MaxRetries, err = dp.GetInt(cfgKeyDemoMaxRetries); err != nil {
		return err
	}
	if c.MaxRetries < 0 {
		return dp.WrapKeyErr(cfgKeyDemoMaxRetries, errors.New("cannot be negative"))
	}
	if c.MockAPI, err = dp.GetBool(cfgKeyDemoMockAPI); err != nil {
		return err
	}
	if c.MetricsAddress, err = dp.GetString(cfgKeyDemoMetricsAddress); err != nil {
		return err
	}
	return nil
}
