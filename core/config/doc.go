// Package config loads the shell's YAML configuration file.
package config
