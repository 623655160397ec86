// Package config loads typed configuration structs from YAML files and the environment.
//
// Fields are driven by struct tags:
//
//	env:"NAME"       environment variable overriding the field
//	yaml:"name"      key in the YAML document
//	default:"value"  applied when the field is still zero after file and env
//	required:"true"  missing values are reported (ignored when a default exists)
//
// Nested structs are walked recursively. Any struct (top-level or nested) that
// implements Validator is validated after loading, and every failure is collected
// into a single multierror.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator interface allows config structs to implement custom validation logic.
type Validator interface {
	Validate() error
}

// GetConfigFromEnvVars loads configuration from environment variables only.
//
//	var cfg MyConfig
//	err := GetConfigFromEnvVars(&cfg)
func GetConfigFromEnvVars[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()

	setFields := make(map[string]bool)
	if err := applyEnv(val, setFields); err != nil {
		return err
	}
	if err := applyDefaults(val, setFields); err != nil {
		var zero T
		*dest = zero
		return err
	}
	if err := validateTree(val); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// GetConfig loads configuration from a YAML file first, then overlays environment variables.
// An empty path means environment only. With allowFileErrors a missing or broken file
// falls back to environment only.
//
//	var cfg MyConfig
//	err := GetConfig(&cfg, "config.yaml", true)
func GetConfig[T any](dest *T, path string, allowFileErrors bool) error {
	if path == "" {
		return GetConfigFromEnvVars(dest)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := yaml.Unmarshal(data, dest); err != nil {
		if allowFileErrors {
			var zero T
			*dest = zero
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return GetConfigFromEnvVars(dest)
}

func fieldKey(owner reflect.Type, f reflect.StructField) string {
	return owner.PkgPath() + "." + owner.Name() + "." + f.Name
}

// applyEnv overlays env-tagged fields and records which ones were set.
func applyEnv(val reflect.Value, setFields map[string]bool) error {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		sf := typ.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := applyEnv(field, setFields); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, ok := os.LookupEnv(name)
		if !ok || raw == "" {
			continue
		}
		if err := setFromString(field, raw); err != nil {
			return fmt.Errorf("env %s: %w", name, err)
		}
		setFields[fieldKey(typ, sf)] = true
	}
	return nil
}

// applyDefaults fills zero fields from default tags and reports missing required ones.
func applyDefaults(val reflect.Value, setFields map[string]bool) error {
	var result error
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		sf := typ.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := applyDefaults(field, setFields); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		def, hasDefault := sf.Tag.Lookup("default")
		required := isTrue(sf.Tag.Get("required")) && def == ""

		if !field.IsZero() {
			continue
		}
		if required {
			result = multierror.Append(result, fmt.Errorf("required field env:%s / yaml:%s is missing",
				sf.Tag.Get("env"), sf.Tag.Get("yaml")))
			continue
		}
		if !hasDefault || def == "" || setFields[fieldKey(typ, sf)] {
			continue
		}
		if err := setFromString(field, def); err != nil {
			result = multierror.Append(result, fmt.Errorf("default for %s: %w", sf.Name, err))
		}
	}
	return result
}

// validateTree runs Validate on the value and on every nested struct implementing Validator.
func validateTree(val reflect.Value) error {
	var result error
	if val.CanInterface() {
		if v, ok := val.Interface().(Validator); ok {
			if err := v.Validate(); err != nil {
				result = multierror.Append(result, err)
			}
		} else if val.CanAddr() {
			if v, ok := val.Addr().Interface().(Validator); ok {
				if err := v.Validate(); err != nil {
					result = multierror.Append(result, err)
				}
			}
		}
	}

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if field.Kind() != reflect.Struct || field.Type() == durationType || !field.CanInterface() {
			continue
		}
		if err := validateTree(field); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func setFromString(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %s to duration: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to convert %s to int: %w", raw, err)
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %s to float: %w", raw, err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %s to bool: %w", raw, err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				slice = reflect.Append(slice, reflect.ValueOf(p).Convert(field.Type().Elem()))
			}
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

func isTrue(tag string) bool {
	tag = strings.ToLower(tag)
	return tag == "true" || tag == "1"
}
