// Package config loads client configuration from defaults, an optional YAML
// file, an optional .env file and PARLANCE_* environment variables, in that
// order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/parlance-ai/client-go/internal/apierrors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PARLANCE_"

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.parlance.ai"

// Config is the file and environment representation of the client settings.
type Config struct {
	APIKey   string        `koanf:"api_key" validate:"required"`
	APIKeyID string        `koanf:"api_key_id" validate:"required"`
	UserID   string        `koanf:"user_id"`
	OrgID    string        `koanf:"org_id"`
	BaseURL  string        `koanf:"base_url" validate:"required,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gte=0"`
	Retry    RetryConfig   `koanf:"retry"`
	Log      LogConfig     `koanf:"log"`
}

// RetryConfig overrides the retry policy.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" validate:"gte=1,lte=10"`
	BackoffBase time.Duration `koanf:"backoff_base" validate:"gte=0"`
	MaxDelay    time.Duration `koanf:"max_delay" validate:"gte=0"`
	Statuses    []int         `koanf:"statuses" validate:"dive,gte=400,lte=599"`
	Methods     []string      `koanf:"methods" validate:"dive,oneof=GET HEAD OPTIONS PUT POST PATCH DELETE"`
}

// LogConfig configures the client logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty"`
}

// envKeys maps environment variable names, without prefix, to config keys.
var envKeys = map[string]string{
	"API_KEY":            "api_key",
	"API_KEY_ID":         "api_key_id",
	"USER_ID":            "user_id",
	"ORG_ID":             "org_id",
	"BASE_URL":           "base_url",
	"TIMEOUT":            "timeout",
	"RETRY_MAX_ATTEMPTS": "retry.max_attempts",
	"RETRY_BACKOFF_BASE": "retry.backoff_base",
	"RETRY_MAX_DELAY":    "retry.max_delay",
	"RETRY_STATUSES":     "retry.statuses",
	"RETRY_METHODS":      "retry.methods",
	"LOG_LEVEL":          "log.level",
	"LOG_PRETTY":         "log.pretty",
}

// listKeys hold comma separated values.
var listKeys = map[string]bool{
	"retry.statuses": true,
	"retry.methods":  true,
}

type loadOptions struct {
	files    []string
	envFiles []string
	environ  func() []string
}

// Option configures Load.
type Option func(*loadOptions)

// WithFile adds a YAML file. Missing files are an error.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.files = append(o.files, path)
	}
}

// WithEnvFile adds a .env file. Missing files are skipped.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFiles = append(o.envFiles, path)
	}
}

// WithEnviron replaces os.Environ as the environment source.
func WithEnviron(fn func() []string) Option {
	return func(o *loadOptions) {
		o.environ = fn
	}
}

// Load builds and validates a Config. Failures are KindConfiguration errors.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{environ: os.Environ}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, configError("failed to load defaults", err)
	}

	for _, path := range o.files {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, configError(fmt.Sprintf("failed to load %s", path), err)
		}
	}

	for _, path := range o.envFiles {
		values, err := godotenv.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, configError(fmt.Sprintf("failed to read %s", path), err)
		}
		if err := k.Load(confmap.Provider(dotenvValues(values), "."), nil); err != nil {
			return nil, configError(fmt.Sprintf("failed to load %s", path), err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
		EnvironFunc:   o.environ,
	}), nil); err != nil {
		return nil, configError("failed to load environment variables", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, configError("failed to unmarshal config", err)
	}
	cfg.normalize()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"base_url": DefaultBaseURL,
		"timeout":  "60s",

		"retry.max_attempts": 3,
		"retry.backoff_base": "250ms",
		"retry.max_delay":    "30s",
		"retry.statuses":     []int{408, 429, 500, 502, 503, 504},
		"retry.methods":      []string{"GET"},

		"log.level":  "disabled",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// transformEnv maps PARLANCE_RETRY_MAX_ATTEMPTS to retry.max_attempts and
// drops variables that are not settings.
func transformEnv(key, value string) (string, any) {
	mapped, ok := envKeys[strings.TrimPrefix(strings.ToUpper(key), EnvPrefix)]
	if !ok {
		return "", nil
	}
	return mapped, envValue(mapped, value)
}

func dotenvValues(values map[string]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if !strings.HasPrefix(strings.ToUpper(k), EnvPrefix) {
			continue
		}
		if mapped, val := transformEnv(k, v); mapped != "" {
			out[mapped] = val
		}
	}
	return out
}

func envValue(key, value string) any {
	if !listKeys[key] {
		return value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	for i, m := range c.Retry.Methods {
		c.Retry.Methods[i] = strings.ToUpper(m)
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
}

var validate = validator.New()

// Validate checks struct constraints and reports every failing field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return configError("invalid configuration", err)
	}

	apiErr := apierrors.New(apierrors.KindConfiguration, "")
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		msg := fmt.Sprintf("failed %q check", fe.Tag())
		apiErr.FieldErrors = append(apiErr.FieldErrors, apierrors.FieldError{Field: field, Message: msg})
		msgs = append(msgs, field+" "+msg)
	}
	apiErr.Message = "invalid configuration: " + strings.Join(msgs, "; ")
	return apiErr
}

func configError(msg string, err error) error {
	return apierrors.Wrap(apierrors.KindConfiguration, msg, err)
}

// Logger builds a zerolog logger writing to w from the log settings.
func (c LogConfig) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || c.Level == "" {
		level = zerolog.Disabled
	}
	if c.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
