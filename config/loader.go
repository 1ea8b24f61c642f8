/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import "io"

// Loader fills Config objects from a DataProvider.
// Defaults of all configs are registered first, so a config may read keys defaulted by another one.
type Loader struct {
	DataProvider DataProvider
}

// NewDefaultLoader creates a Loader over viper where every key may be overridden
// by an environment variable with the prefix.
func NewDefaultLoader(envVarsPrefix string) *Loader {
	va := NewViperAdapter()
	va.UseEnvVars(envVarsPrefix)
	return NewLoader(va)
}

// NewLoader creates a Loader over the DataProvider.
func NewLoader(dp DataProvider) *Loader {
	return &Loader{dp}
}

// LoadFromFile reads the file and fills the configs.
func (l *Loader) LoadFromFile(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromFile(path, dataType); err != nil {
		return err
	}
	return l.load(cfg, cfgs...)
}

// LoadFromFileIfExists works as LoadFromFile, but an empty path means there is no file
// and the configs are filled from the defaults and the environment only.
func (l *Loader) LoadFromFileIfExists(path string, dataType DataType, cfg Config, cfgs ...Config) error {
	if path == "" {
		return l.load(cfg, cfgs...)
	}
	return l.LoadFromFile(path, dataType, cfg, cfgs...)
}

// LoadFromReader reads the data from reader and fills the configs.
func (l *Loader) LoadFromReader(reader io.Reader, dataType DataType, cfg Config, cfgs ...Config) error {
	if err := l.DataProvider.SetFromReader(reader, dataType); err != nil {
		return err
	}
	return l.load(cfg, cfgs...)
}

func (l *Loader) load(cfg Config, cfgs ...Config) error {
	all := append([]Config{cfg}, cfgs...)
	providers := make([]DataProvider, len(all))
	for i, c := range all {
		providers[i] = l.providerFor(c)
		c.SetProviderDefaults(providers[i])
	}
	for i, c := range all {
		if err := c.Set(providers[i]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) providerFor(cfg Config) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(l.DataProvider, kp.KeyPrefix())
	}
	return l.DataProvider
}
