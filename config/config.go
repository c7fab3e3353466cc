// Package config reads the optional launcher configuration file.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/openarm/display/logging"
)

// Template engines.
const (
	EngineNative  = "native"
	EngineCommand = "command"
)

// PackageOverride points a package at an explicit share directory.
type PackageOverride struct {
	Name string `mapstructure:"name" json:"name"`
	Path string `mapstructure:"path" json:"path"`
}

// Config holds launch argument defaults and how packages and templates are resolved.
type Config struct {
	ConfigFilePath string `mapstructure:"-" json:"-"`

	// Parameters are launch argument values used unless given on the command line.
	Parameters   map[string]string `mapstructure:"parameters" json:"parameters,omitempty"`
	Packages     []PackageOverride `mapstructure:"packages" json:"packages,omitempty"`
	Prefixes     []string          `mapstructure:"prefixes" json:"prefixes,omitempty"`
	Engine       string            `mapstructure:"engine" json:"engine,omitempty"`
	XacroCommand string            `mapstructure:"xacro_command" json:"xacro_command,omitempty"`
	LogLevel     string            `mapstructure:"log_level" json:"log_level,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Engine: EngineNative, Parameters: map[string]string{}}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	for idx, pkg := range c.Packages {
		pkgPath := fmt.Sprintf("%s.packages.%d", path, idx)
		if pkg.Name == "" {
			return utils.NewConfigValidationFieldRequiredError(pkgPath, "name")
		}
		if pkg.Path == "" {
			return utils.NewConfigValidationFieldRequiredError(pkgPath, "path")
		}
	}
	switch c.Engine {
	case "", EngineNative, EngineCommand:
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("unknown engine %q, expected %q or %q", c.Engine, EngineNative, EngineCommand))
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// PackageOverrides returns the package overrides keyed by package name. Later entries win.
func (c *Config) PackageOverrides() map[string]string {
	overrides := make(map[string]string, len(c.Packages))
	for _, pkg := range c.Packages {
		overrides[pkg.Name] = pkg.Path
	}
	return overrides
}

// LaunchArguments layers launch argument values over the config file's parameters. Each layer
// overrides the ones before it, so callers pass --set values before command line `name:=value`
// pairs. Declared defaults are applied later by the launch package.
func (c *Config) LaunchArguments(layers ...map[string]string) map[string]string {
	merged := make(map[string]string, len(c.Parameters))
	for name, value := range c.Parameters {
		merged[name] = value
	}
	for _, layer := range layers {
		for name, value := range layer {
			merged[name] = value
		}
	}
	return merged
}
