package runtime

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Package-level validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	registerCustomValidators()
}

// DecodeSettings prepares a settings struct from raw YAML values:
// defaults, then value merging, then validation.
func DecodeSettings(target any, raw map[string]any) error {
	if err := ApplyDefaults(target); err != nil {
		slog.Error("Settings: failed to apply defaults",
			"settings_type", reflect.TypeOf(target).String(),
			"error", err)
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	if len(raw) > 0 {
		if err := mapToStructFromYAML(raw, target); err != nil {
			slog.Error("Settings: failed to apply values",
				"settings_type", reflect.TypeOf(target).String(),
				"raw_values", raw,
				"error", err)
			return fmt.Errorf("failed to apply settings values: %w", err)
		}
		// Slice elements only exist after merging, so their defaults come second.
		if err := applyElementDefaults(reflect.ValueOf(target)); err != nil {
			return fmt.Errorf("failed to apply defaults: %w", err)
		}
	}

	configValue := reflect.ValueOf(target)
	if configValue.Kind() == reflect.Ptr {
		configValue = configValue.Elem()
	}

	if err := validateConfig(configValue.Interface()); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

func registerCustomValidators() {
	// hostname_port validates "host:port" format with numeric port
	validate.RegisterValidation("hostname_port", func(fl validator.FieldLevel) bool {
		addr := fl.Field().String()
		host, port, err := net.SplitHostPort(addr)
		if err != nil || host == "" || port == "" {
			return false
		}
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})

	validate.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	})

	validate.RegisterValidation("status_name", func(fl validator.FieldLevel) bool {
		_, err := ParseStatus(fl.Field().String())
		return err == nil
	})

	validate.RegisterValidation("proxy_type", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "http", "https", "socks4", "socks5":
			return true
		}
		return false
	})

	validate.RegisterValidation("regex", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
}

func ApplyDefaults(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("failed to apply default values: %w", err)
	}

	return nil
}

// applyElementDefaults fills defaults into struct elements of slices, recursively.
// Element types must not carry `default:"true"` booleans: a zero false is indistinguishable
// from an explicit one at this point.
func applyElementDefaults(v reflect.Value) error {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			if err := applyElementDefaults(v.Field(i)); err != nil {
				return err
			}
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if elem.Kind() == reflect.Struct && elem.CanAddr() {
				if _, isBlock := elem.Interface().(Block); isBlock {
					continue
				}
				if err := defaults.Set(elem.Addr().Interface()); err != nil {
					return err
				}
			}
			if err := applyElementDefaults(elem); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateConfig(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validate.Struct(config); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, fieldErr := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"field '%s' failed validation: %s (rule: %s)",
					fieldErr.Namespace(),
					fieldErr.Error(),
					fieldErr.Tag(),
				))
			}
			return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errMessages, "\n  - "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// PrepareConfig applies defaults and validates a struct that was decoded elsewhere.
func PrepareConfig(config any) error {
	if err := ApplyDefaults(config); err != nil {
		return fmt.Errorf("failed to prepare config (defaults): %w", err)
	}
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("failed to prepare config (validation): %w", err)
	}
	return nil
}

func RegisterCustomValidator(tag string, fn validator.Func) error {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		return fmt.Errorf("failed to register custom validator '%s': %w", tag, err)
	}
	return nil
}
