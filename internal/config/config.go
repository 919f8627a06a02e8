package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/babarot/kura/internal/env"
	"github.com/go-playground/validator/v10"
	"github.com/muesli/reflow/indent"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Core      Core          `yaml:"core"`
	Logging   LoggingConfig `yaml:"logging"`
	Providers []Provider    `yaml:"providers" validate:"unique=ID,dive"`
}

type Core struct {
	Restore    RestoreConfig    `yaml:"restore"`
	EmptyTrash EmptyTrashConfig `yaml:"empty_trash"`
	TrashList  TrashListConfig  `yaml:"trash_list"`
}

// RestoreConfig has no implicit default: the conflict policy must be spelled out
type RestoreConfig struct {
	Conflict string `yaml:"conflict" validate:"required,validConflict"`
}

type EmptyTrashConfig struct {
	Concurrency int `yaml:"concurrency" validate:"gte=0,lte=64"`
}

type TrashListConfig struct {
	Include IncludeConfig `yaml:"include"`
	Exclude ExcludeConfig `yaml:"exclude"`
}

type IncludeConfig struct {
	Period int `yaml:"within_days" validate:"gte=0"`
}

type ExcludeConfig struct {
	Files    []string   `yaml:"files"`
	Patterns []string   `yaml:"patterns"`
	Globs    []string   `yaml:"globs" validate:"dive,validGlob"`
	Size     SizeConfig `yaml:"size"`
}

type SizeConfig struct {
	Min string `yaml:"min" validate:"omitempty,validSize"`
	Max string `yaml:"max" validate:"omitempty,validSize"`
}

type LoggingConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Level    string         `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format   string         `yaml:"format" validate:"omitempty,oneof=text logfmt json"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize  string `yaml:"max_size" validate:"omitempty,validSize"`
	MaxFiles int    `yaml:"max_files" validate:"gte=0"`
}

// Provider is one configured backend
type Provider struct {
	ID       string      `yaml:"id" validate:"required"`
	Type     string      `yaml:"type" validate:"required,oneof=local xdg memdrive s3"`
	Root     string      `yaml:"root" validate:"required_if=Type local,required_if=Type xdg"`
	Patterns []string    `yaml:"patterns" validate:"dive,validGlob"`
	ReadOnly bool        `yaml:"read_only"`
	Trash    TrashConfig `yaml:"trash"`
	S3       S3Config    `yaml:"s3"`
}

type TrashConfig struct {
	Retention     string            `yaml:"retention" validate:"omitempty,validDuration"`
	RetentionDays int               `yaml:"retention_days,omitempty" validate:"deprecated"`
	Tier          string            `yaml:"tier"`
	Tiers         map[string]string `yaml:"tiers" validate:"dive,validDuration"`
	TwoStage      bool              `yaml:"two_stage"`
	QuotaPurge    bool              `yaml:"quota_purge"`
	NativeEmpty   bool              `yaml:"native_empty"`
	Disabled      bool              `yaml:"disabled"`
	Quota         string            `yaml:"quota" validate:"omitempty,validSize"`
	TrashPercent  int               `yaml:"trash_percent" validate:"gte=0,lte=100"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Lookup returns the provider with the given id
func (c Config) Lookup(id string) (Provider, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

type configError struct {
	configPath string
	err        error
}

func (e configError) Error() string {
	return fmt.Sprintf(`Couldn't read the %q config file.
Please try again after creating it or specifying a valid config path.
The recommended config path is %s (default).
Example YAML file contents:
---
%s---
Original error:
%s`,
		e.configPath,
		env.KURA_CONFIG_PATH,
		indent.String(DefaultContents(), 2),
		indent.String(e.err.Error(), 2),
	)
}

func (e configError) Unwrap() error { return e.err }

type parsingError struct {
	err error
}

func (e parsingError) Error() string {
	return fmt.Sprintf("failed to parse config: %v", e.err)
}

func (e parsingError) Unwrap() error { return e.err }

type parser struct {
	validate *validator.Validate
}

func newParser() parser {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.Split(fld.Tag.Get("yaml"), ",")[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("validSize", validateSize)
	_ = v.RegisterValidation("validDuration", validateDuration)
	_ = v.RegisterValidation("validGlob", validateGlob)
	_ = v.RegisterValidation("validConflict", validateConflict)
	_ = v.RegisterValidation("deprecated", validateDeprecated)

	return parser{validate: v}
}

func (p parser) ensureConfigFile(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	slog.Warn("creating config file as it does not exist", "config-file", path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(DefaultContents())
	return err
}

func (p parser) read(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, configError{configPath: path, err: err}
	}
	return p.parse(data)
}

func (p parser) parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, err
	}
	for i := range cfg.Providers {
		root, err := expandPath(cfg.Providers[i].Root)
		if err != nil {
			return cfg, err
		}
		cfg.Providers[i].Root = root
	}
	if err := p.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return cfg, fmt.Errorf("validation error: field %s, %q is invalid (%s)",
				strings.TrimPrefix(fe.Namespace(), "Config."), fe.Value(), fe.Tag())
		}
		return cfg, err
	}
	return cfg, nil
}

// Parse reads the config at path. An empty path uses KURA_CONFIG_PATH
// and writes the defaults there on first run.
func Parse(path string) (Config, error) {
	p := newParser()

	if path == "" {
		path = env.KURA_CONFIG_PATH
		if err := p.ensureConfigFile(path); err != nil {
			return Config{}, parsingError{err: configError{configPath: path, err: err}}
		}
	}
	slog.Debug("config file found", "config-file", path)

	cfg, err := p.read(path)
	if err != nil {
		return cfg, parsingError{err: err}
	}
	return cfg, nil
}

// ParseBytes parses and validates YAML content
func ParseBytes(data []byte) (Config, error) {
	cfg, err := newParser().parse(data)
	if err != nil {
		return cfg, parsingError{err: err}
	}
	return cfg, nil
}
