package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Load builds a Config from the process environment and validates it.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}

	d := envDecoder{lookup: lookup}
	d.decode(reflect.ValueOf(cfg).Elem())
	if len(d.errs) > 0 {
		return nil, fmt.Errorf("config load: %w", failures(d.errs))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// failures renders a list of problems as one error, one per line.
func failures(msgs []string) error {
	return errors.New("validation failed:\n  - " + strings.Join(msgs, "\n  - "))
}

// ============================================================================
// Environment Decoding
// ============================================================================

// envDecoder fills struct fields tagged `env:"NAME"`. An empty variable
// falls back to `envAlt`, then to `default`. Parse errors are collected so
// one run reports every bad variable.
type envDecoder struct {
	lookup func(string) (string, bool)
	errs   []string
}

var durationType = reflect.TypeOf(time.Duration(0))

func (d *envDecoder) decode(v reflect.Value) {
	t := v.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			d.decode(fv)
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw := d.get(name)
		if raw == "" {
			raw = d.get(sf.Tag.Get("envAlt"))
		}
		if raw == "" {
			raw = sf.Tag.Get("default")
		}
		if raw == "" {
			continue
		}

		if err := parseInto(fv, raw); err != nil {
			d.errs = append(d.errs, fmt.Sprintf("%s (%q): %v", name, raw, err))
		}
	}
}

func (d *envDecoder) get(name string) string {
	if name == "" {
		return ""
	}
	v, _ := d.lookup(name)
	return strings.TrimSpace(v)
}

// parseInto stores raw in fv according to fv's type.
func parseInto(fv reflect.Value, raw string) error {
	switch {
	case fv.Type() == durationType:
		dur, err := time.ParseDuration(raw)
		if err != nil {
			return errors.New("not a duration")
		}
		fv.SetInt(int64(dur))
	case fv.Kind() == reflect.String:
		fv.SetString(raw)
	case fv.Kind() == reflect.Int || fv.Kind() == reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return errors.New("not an integer")
		}
		fv.SetInt(n)
	case fv.Kind() == reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return errors.New("not a boolean")
		}
		fv.SetBool(b)
	case fv.Kind() == reflect.Slice && fv.Type().Elem().Kind() == reflect.String:
		fv.Set(reflect.ValueOf(splitList(raw)))
	default:
		return fmt.Errorf("cannot decode into %s", fv.Type())
	}
	return nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ============================================================================
// Validation
// ============================================================================

var (
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats = map[string]bool{"text": true, "json": true}
)

// parseAmount reads a non-negative decimal. Empty means zero.
func parseAmount(raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %s", d)
	}
	return d, nil
}

// newValidator names fields by their environment variable and registers
// the config-specific tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		return logLevels[strings.ToLower(fl.Field().String())]
	})
	_ = v.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		return logFormats[strings.ToLower(fl.Field().String())]
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := parseAmount(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var msgs []string

	if err := newValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			msgs = append(msgs, describeFieldError(fe))
		}
	}
	msgs = append(msgs, c.crossFieldErrors()...)

	if len(msgs) > 0 {
		return failures(msgs)
	}
	return nil
}

// crossFieldErrors covers rules that depend on more than one setting.
func (c *Config) crossFieldErrors() []string {
	var msgs []string

	if c.Store.Driver == "postgres" {
		db := c.Database
		switch {
		case db.URL == "":
			msgs = append(msgs, "DATABASE_URL is required when STORE_DRIVER is postgres")
		case db.MaxConns < 1:
			msgs = append(msgs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= 1", db.MaxConns))
		case db.MinConns < 0:
			msgs = append(msgs, fmt.Sprintf("DB_MIN_CONNS (%d) must be >= 0", db.MinConns))
		case db.MaxConns < db.MinConns:
			msgs = append(msgs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", db.MaxConns, db.MinConns))
		}
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute < 1 {
		msgs = append(msgs, fmt.Sprintf("RATE_LIMIT_REQUESTS_PER_MINUTE (%d) must be >= 1 while RATE_LIMIT_ENABLED", c.Rate.RequestsPerMinute))
	}
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		msgs = append(msgs, "REQUIRE_API_KEY is set but API_KEYS is empty")
	}
	return msgs
}

func describeFieldError(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s (%v) must be >= %s", name, fe.Value(), fe.Param())
	case "max":
		return fmt.Sprintf("%s (%v) must be <= %s", name, fe.Value(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s (%v) must be > %s", name, fe.Value(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s (%q) must be one of: %s", name, fe.Value(),
			strings.Join(strings.Fields(fe.Param()), ", "))
	case "len":
		return fmt.Sprintf("%s (%q) must be %s characters", name, fe.Value(), fe.Param())
	case "startswith":
		return fmt.Sprintf("%s (%q) must start with %q", name, fe.Value(), fe.Param())
	case "loglevel":
		return fmt.Sprintf("%s (%q) must be one of: debug, info, warn, error", name, fe.Value())
	case "logformat":
		return fmt.Sprintf("%s (%q) must be one of: text, json", name, fe.Value())
	case "amount":
		return fmt.Sprintf("%s (%q) must be a non-negative decimal", name, fe.Value())
	}
	return fmt.Sprintf("%s failed %s check", name, fe.Tag())
}

// ============================================================================
// Logging
// ============================================================================

const masked = "[MASKED]"

// Redacted returns a copy with the database URL and API keys masked.
func (c Config) Redacted() Config {
	if c.Database.URL != "" {
		c.Database.URL = masked
	}
	if n := len(c.Security.APIKeys); n > 0 {
		keys := make([]string, n)
		for i := range keys {
			keys[i] = masked
		}
		c.Security.APIKeys = keys
	}
	return c
}

// String renders the redacted configuration.
func (c *Config) String() string {
	return fmt.Sprintf("%+v", c.Redacted())
}
