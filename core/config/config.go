package config

import (
	_ "embed"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"

	"github.com/josephlewis42/gosh/core/vars"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
)

// Modes for the color and interactive settings.
const (
	ModeAlways = "always"
	ModeAuto   = "auto"
	ModeNever  = "never"
)

type Configuration struct {
	Prompt      string            `json:"prompt"`
	Color       string            `json:"color" validate:"oneof=always auto never"`
	Interactive string            `json:"interactive" validate:"oneof=always auto never"`
	DefaultPath string            `json:"default_path" validate:"required"`
	Env         map[string]string `json:"env" validate:"dive,keys,varname,endkeys"`
	Debug       bool              `json:"debug"`
	EventLog    string            `json:"event_log"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := validate.RegisterValidation("varname", func(fl validator.FieldLevel) bool {
		return vars.ValidName(fl.Field().String())
	}); err != nil {
		return err
	}

	return validate.Struct(c)
}

// Environ returns the configured variables as NAME=value pairs.
func (c *Configuration) Environ() []string {
	var out []string
	for k, v := range c.Env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog(fsys afero.Fs) (afero.File, error) {
	return fsys.OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// Default returns the built-in configuration.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// DefaultData returns the built-in configuration file.
func DefaultData() []byte {
	return append([]byte(nil), defaultConfigData...)
}
