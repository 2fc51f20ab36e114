package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/streampi/streampi/internal/logging"
)

// EnvPrefix namespaces environment overrides, e.g. STREAMPI_SERVER_PORT.
const EnvPrefix = "STREAMPI_"

// LoadConfig fills an options struct with proper precedence: CLI args >
// env vars > config file. Fields declare their sources via `toml` (dotted
// path) and `env` (suffix after the STREAMPI_ prefix) tags. Flags the user
// set explicitly on cmd are never overwritten.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changed := changedFlags(cmd)

	if path := configPath(v, t); path != "" {
		if err := applyTOML(v, t, path, changed); err != nil {
			return err
		}
	}

	applyEnv(v, t, changed)
	return nil
}

// changedFlags collects the names of flags explicitly set on the command line.
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	})
	return changed
}

// configPath finds the struct's Config field, which names the TOML file.
func configPath(v reflect.Value, t reflect.Type) string {
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Name == "Config" {
			return v.Field(i).String()
		}
	}
	return ""
}

func applyTOML(v reflect.Value, t reflect.Type, path string, changed map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		// A missing config file is fine, defaults and env still apply.
		return nil
	}

	var parsed map[string]any
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}

	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if changed[fieldNameToFlag(fieldType.Name)] {
			continue
		}
		if tomlPath := fieldType.Tag.Get("toml"); tomlPath != "" {
			if value := nestedValue(parsed, tomlPath); value != nil {
				setFieldValue(v.Field(i), value)
			}
		}
	}
	return nil
}

func applyEnv(v reflect.Value, t reflect.Type, changed map[string]bool) {
	for i := 0; i < v.NumField(); i++ {
		fieldType := t.Field(i)
		if changed[fieldNameToFlag(fieldType.Name)] {
			continue
		}
		if envKey := fieldType.Tag.Get("env"); envKey != "" {
			if envValue := os.Getenv(EnvPrefix + envKey); envValue != "" {
				setFieldValueFromString(v.Field(i), envValue)
			}
		}
	}
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "LoggingLevel" -> "logging-level", "Port" -> "port".
func fieldNameToFlag(fieldName string) string {
	var result []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// nestedValue retrieves a value from a nested map using dot notation.
func nestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data

	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

// setFieldValue sets a field from a decoded TOML value.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		arr, ok := value.([]any)
		if !ok {
			return
		}
		slice := make([]string, len(arr))
		for i, item := range arr {
			if s, ok := item.(string); ok {
				slice[i] = s
			}
		}
		field.Set(reflect.ValueOf(slice))
	}
}

// setFieldValueFromString sets a field from an env var string. Slices parse
// as comma-separated values.
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		slice := make([]string, len(parts))
		for i, part := range parts {
			slice[i] = strings.TrimSpace(part)
		}
		field.Set(reflect.ValueOf(slice))
	}
}

// LoadLoggingConfig reads the [logging] table from a TOML config file.
// Keys other than level and format are treated as per-module levels.
// Returns defaults when the file is missing or unparseable.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	if configPath == "" {
		return cfg
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var raw struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}

	for key, value := range raw.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
