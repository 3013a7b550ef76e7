// Package config loads the flowctl configuration file.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	designer "github.com/goliatone/go-flow-designer"
)

type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Store  StoreConfig  `yaml:"store" json:"store"`
	Editor EditorConfig `yaml:"editor" json:"editor"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" validate:"required"`
	// Mode is the gin mode.
	Mode string `yaml:"mode" json:"mode" validate:"oneof=debug release test"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" json:"format" validate:"oneof=console json"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver" validate:"oneof=memory sqlite redis"`
	// DSN is the sqlite data source.
	DSN   string `yaml:"dsn" json:"dsn" validate:"required_if=Driver sqlite"`
	Table string `yaml:"table" json:"table"`

	RedisAddr   string        `yaml:"redis_addr" json:"redis_addr" validate:"required_if=Driver redis"`
	RedisDB     int           `yaml:"redis_db" json:"redis_db" validate:"gte=0"`
	RedisPrefix string        `yaml:"redis_prefix" json:"redis_prefix"`
	TTL         time.Duration `yaml:"ttl" json:"ttl" validate:"gte=0"`
}

type EditorConfig struct {
	BatchWindow      time.Duration `yaml:"batch_window" json:"batch_window" validate:"gte=0"`
	LayoutTimeout    time.Duration `yaml:"layout_timeout" json:"layout_timeout" validate:"gt=0"`
	LayoutDirection  string        `yaml:"layout_direction" json:"layout_direction" validate:"oneof=RIGHT LEFT DOWN UP"`
	AutosaveInterval time.Duration `yaml:"autosave_interval" json:"autosave_interval" validate:"gte=0"`
	// LoadSample preloads the embedded sample flow into new sessions.
	LoadSample bool `yaml:"load_sample" json:"load_sample"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", Mode: "release"},
		Log:    LogConfig{Level: "info", Format: "console"},
		Store:  StoreConfig{Driver: "memory", Table: "flows", RedisPrefix: "flow:"},
		Editor: EditorConfig{
			LayoutTimeout:    10 * time.Second,
			LayoutDirection:  "RIGHT",
			AutosaveInterval: 30 * time.Second,
			LoadSample:       true,
		},
	}
}

// Parse decodes YAML (or JSON) over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, errors.CategoryBadInput, "config is not valid yaml").
			WithTextCode(designer.CodeConfigInvalid)
	}
	return cfg, cfg.Validate()
}

// Load reads path. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Defaults()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), errors.Wrap(err, errors.CategoryBadInput, "cannot read config").
			WithTextCode(designer.CodeConfigInvalid).
			WithMetadata(map[string]any{"path": path})
	}
	return Parse(data)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

func (c Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		if c.Editor.AutosaveInterval > 0 && c.Editor.AutosaveInterval < time.Second {
			return errors.New("invalid config: editor.autosave_interval must be at least 1s", errors.CategoryValidation).
				WithTextCode(designer.CodeConfigInvalid)
		}
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(err, errors.CategoryValidation, "invalid config").
			WithTextCode(designer.CodeConfigInvalid)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s: %s", strings.TrimPrefix(fe.Namespace(), "Config."), describe(fe)))
	}
	return errors.New("invalid config: "+strings.Join(fields, "; "), errors.CategoryValidation).
		WithTextCode(designer.CodeConfigInvalid).
		WithMetadata(map[string]any{"fields": fields})
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
		}
		return "failed " + fe.Tag()
	}
}
