package config

import (
	"bytes"
	"context"
	"io"
	"reflect"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/openarm/display/logging"
)

// Read reads a config from the given file. Environment variables referenced as $VAR or ${VAR} are
// substituted before parsing.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", filePath)
	}
	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a YAML or JSON config from the given reader and specifies where, if
// applicable, the file the reader originated from.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to decode config")
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true,
		DecodeHook:  scalarToStringHook,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	cfg.ConfigFilePath = originalPath
	if cfg.Engine == "" {
		cfg.Engine = EngineNative
	}
	if cfg.Parameters == nil {
		cfg.Parameters = map[string]string{}
	}

	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	logger.Debugw("read config", "path", originalPath, "parameters", cfg.Parameters, "packages", len(cfg.Packages))
	return cfg, nil
}

// scalarToStringHook lets YAML scalars such as `bimanual: true` fill string fields.
func scalarToStringHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.String || from.Kind() == reflect.String {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return cast.ToStringE(data)
	default:
		return data, nil
	}
}
