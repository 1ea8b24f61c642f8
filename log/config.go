/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"fmt"
	"strings"

	"code.cloudfoundry.org/bytefmt"

	"github.com/acronis/go-docsubmit/config"
)

const cfgDefaultKeyPrefix = "log"

const (
	cfgKeyLevel     = "level"
	cfgKeyFormat    = "format"
	cfgKeyOutput    = "output"
	cfgKeyNoColor   = "nocolor"
	cfgKeyAddCaller = "addCaller"
	cfgKeyName      = "name"

	cfgKeyErrorNoVerbose     = "error.noVerbose"
	cfgKeyErrorVerboseSuffix = "error.verboseSuffix"

	cfgKeyFilePath         = "file.path"
	cfgKeyRotationCompress = "file.rotation.compress"
	cfgKeyRotationMaxSize  = "file.rotation.maxSize"
	cfgKeyRotationBackups  = "file.rotation.maxBackups"
	cfgKeyRotationMaxAge   = "file.rotation.maxAgeDays"
	cfgKeyRotationLocal    = "file.rotation.localTimeInNames"
)

// Rotation limits for the file output.
const (
	DefaultFileRotationMaxSizeBytes = 250 * bytefmt.MEGABYTE
	MinFileRotationMaxSizeBytes     = bytefmt.MEGABYTE

	DefaultFileRotationMaxBackups = 10
	MinFileRotationMaxBackups     = 1
)

const defaultErrorVerboseSuffix = "_verbose"

// Level defines possible values for log levels.
type Level string

// Logging levels.
const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
)

// Format defines possible values for log formats.
type Format string

// Logging formats.
const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Output defines possible values for log outputs.
type Output string

// Logging outputs.
const (
	OutputStdout Output = "stdout"
	OutputStderr Output = "stderr"
	OutputFile   Output = "file"
)

var (
	knownLevels  = []string{string(LevelError), string(LevelWarn), string(LevelInfo), string(LevelDebug)}
	knownFormats = []string{string(FormatJSON), string(FormatText)}
	knownOutputs = []string{string(OutputStdout), string(OutputStderr), string(OutputFile)}
)

// Config represents the logging configuration of the client and the demo driver.
// It may be loaded with config.Loader as well as with yaml/json unmarshalling.
type Config struct {
	Level   Level            `mapstructure:"level" yaml:"level" json:"level"`
	Format  Format           `mapstructure:"format" yaml:"format" json:"format"`
	Output  Output           `mapstructure:"output" yaml:"output" json:"output"`
	NoColor bool             `mapstructure:"nocolor" yaml:"nocolor" json:"nocolor"`
	File    FileOutputConfig `mapstructure:"file" yaml:"file" json:"file"`
	Error   ErrorConfig      `mapstructure:"error" yaml:"error" json:"error"`

	// AddCaller adds the package/file:line of the logging call to every entry.
	AddCaller bool `mapstructure:"addCaller" yaml:"addCaller" json:"addCaller"`

	// Name is attached to every entry as the logger name (e.g. "docsubmit").
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	keyPrefix string
}

// FileOutputConfig is a configuration for the file output.
type FileOutputConfig struct {
	Path     string             `mapstructure:"path" yaml:"path" json:"path"`
	Rotation FileRotationConfig `mapstructure:"rotation" yaml:"rotation" json:"rotation"`
}

// FileRotationConfig is a configuration for rotation of the log file.
type FileRotationConfig struct {
	Compress         bool            `mapstructure:"compress" yaml:"compress" json:"compress"`
	MaxSize          config.ByteSize `mapstructure:"maxSize" yaml:"maxSize" json:"maxSize"`
	MaxBackups       int             `mapstructure:"maxBackups" yaml:"maxBackups" json:"maxBackups"`
	MaxAgeDays       int             `mapstructure:"maxAgeDays" yaml:"maxAgeDays" json:"maxAgeDays"`
	LocalTimeInNames bool            `mapstructure:"localTimeInNames" yaml:"localTimeInNames" json:"localTimeInNames"`
}

// ErrorConfig controls how errors are encoded.
// Unless NoVerbose is set, an error implementing fmt.Formatter whose "%+v" output differs from
// err.Error() gets one more field named "error" + VerboseSuffix.
type ErrorConfig struct {
	NoVerbose     bool   `mapstructure:"noVerbose" yaml:"noVerbose" json:"noVerbose"`
	VerboseSuffix string `mapstructure:"verboseSuffix" yaml:"verboseSuffix" json:"verboseSuffix"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*Config)

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(c *Config) {
		c.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new empty Config. Values are expected to come from config.Loader.
func NewConfig(options ...ConfigOption) *Config {
	c := &Config{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// NewDefaultConfig creates a new Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	c := NewConfig(options...)
	c.Level = LevelInfo
	c.Format = FormatJSON
	c.Output = OutputStdout
	c.File.Rotation.MaxSize = DefaultFileRotationMaxSizeBytes
	c.File.Rotation.MaxBackups = DefaultFileRotationMaxBackups
	c.Error.VerboseSuffix = defaultErrorVerboseSuffix
	return c
}

// KeyPrefix implements config.KeyPrefixProvider.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults implements config.Config.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyLevel, string(LevelInfo))
	dp.SetDefault(cfgKeyFormat, string(FormatJSON))
	dp.SetDefault(cfgKeyOutput, string(OutputStdout))
	dp.SetDefault(cfgKeyErrorVerboseSuffix, defaultErrorVerboseSuffix)
	dp.SetDefault(cfgKeyRotationMaxSize, bytefmt.ByteSize(DefaultFileRotationMaxSizeBytes))
	dp.SetDefault(cfgKeyRotationBackups, DefaultFileRotationMaxBackups)
}

// Set implements config.Config.
func (c *Config) Set(dp config.DataProvider) error {
	level, err := getLowerFromSet(dp, cfgKeyLevel, knownLevels)
	if err != nil {
		return err
	}
	format, err := getLowerFromSet(dp, cfgKeyFormat, knownFormats)
	if err != nil {
		return err
	}
	output, err := getLowerFromSet(dp, cfgKeyOutput, knownOutputs)
	if err != nil {
		return err
	}
	c.Level, c.Format, c.Output = Level(level), Format(format), Output(output)

	if err = c.File.set(dp, c.Output == OutputFile); err != nil {
		return err
	}

	for key, dst := range map[string]*bool{
		cfgKeyAddCaller:      &c.AddCaller,
		cfgKeyNoColor:        &c.NoColor,
		cfgKeyErrorNoVerbose: &c.Error.NoVerbose,
	} {
		if *dst, err = dp.GetBool(key); err != nil {
			return err
		}
	}
	if c.Error.VerboseSuffix, err = dp.GetString(cfgKeyErrorVerboseSuffix); err != nil {
		return err
	}
	c.Name, err = dp.GetString(cfgKeyName)
	return err
}

func (fc *FileOutputConfig) set(dp config.DataProvider, required bool) error {
	var err error
	if fc.Path, err = dp.GetString(cfgKeyFilePath); err != nil {
		return err
	}
	if fc.Path == "" && required {
		return dp.WrapKeyErr(cfgKeyFilePath, fmt.Errorf("cannot be empty when %q output is used", OutputFile))
	}

	r := &fc.Rotation
	if r.Compress, err = dp.GetBool(cfgKeyRotationCompress); err != nil {
		return err
	}
	if r.LocalTimeInNames, err = dp.GetBool(cfgKeyRotationLocal); err != nil {
		return err
	}
	if r.MaxSize, err = dp.GetByteSize(cfgKeyRotationMaxSize); err != nil {
		return err
	}
	if r.MaxBackups, err = dp.GetInt(cfgKeyRotationBackups); err != nil {
		return err
	}
	if r.MaxAgeDays, err = dp.GetInt(cfgKeyRotationMaxAge); err != nil {
		return err
	}
	return r.validate(dp)
}

func (r *FileRotationConfig) validate(dp config.DataProvider) error {
	switch {
	case r.MaxSize < MinFileRotationMaxSizeBytes:
		return dp.WrapKeyErr(cfgKeyRotationMaxSize,
			fmt.Errorf("should be >= %s", bytefmt.ByteSize(MinFileRotationMaxSizeBytes)))
	case r.MaxBackups < MinFileRotationMaxBackups:
		return dp.WrapKeyErr(cfgKeyRotationBackups, fmt.Errorf("should be >= %d", MinFileRotationMaxBackups))
	case r.MaxAgeDays < 0:
		return dp.WrapKeyErr(cfgKeyRotationMaxAge, fmt.Errorf("should be >= 0"))
	}
	return nil
}

func getLowerFromSet(dp config.DataProvider, key string, set []string) (string, error) {
	val, err := dp.GetStringFromSet(key, set, true)
	return strings.ToLower(val), err
}
