package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v2"
)

// Read reads a config from the given file. ${VAR} references in the file are expanded
// from the environment first; HOVERBOT_* variables then override individual fields.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %q", filePath)
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies where, if applicable,
// the file the reader originated from. The extension decides between YAML, JSON5 and JSON.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Default()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(originalPath)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, errors.Wrap(err, "cannot parse yaml config")
		}
	case ".json5":
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "cannot parse json5 config")
		}
	default:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			return nil, errors.Wrap(err, "cannot parse json config")
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "cannot apply environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a config from the defaults and HOVERBOT_* variables alone. The result
// is not validated so that callers can fill in the rest first.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "cannot apply environment overrides")
	}
	return cfg, nil
}
