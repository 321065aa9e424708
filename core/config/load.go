package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/josephlewis42/gosh/core/logger"
)

// Load loads the configuration from the directory or file at path. A missing
// file yields the built-in defaults.
func Load(fsys afero.Fs, path string) (*Configuration, error) {
	// If given a directory, look for config.yaml inside it.
	if filepath.Base(path) != ConfigurationName {
		path = filepath.Join(path, ConfigurationName)
	}

	out := Default()
	configContents, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debugf("no configuration at %s, using defaults", path)
		return out, nil
	case err != nil:
		return nil, err
	}

	if err := yaml.UnmarshalStrict(configContents, out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Initialize writes the default configuration into dir. An existing
// configuration is never overwritten.
func Initialize(fsys afero.Fs, dir string) (string, error) {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, ConfigurationName)
	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%s: %w", path, fs.ErrExist)
	}

	if err := afero.WriteFile(fsys, path, defaultConfigData, 0644); err != nil {
		return "", err
	}
	return path, nil
}
