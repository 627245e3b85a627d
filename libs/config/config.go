package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Source resolves settings from the process environment first and then from
// an optional TOML file. Nested tables flatten to upper-case keys joined with
// "_", so [kafka] brokers = "..." answers KAFKA_BROKERS.
type Source struct {
	file map[string]string
}

var env = &Source{}

// Load reads a TOML file. An empty path yields an environment-only source.
func Load(path string) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return &Source{}, nil
	}
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	flat := map[string]string{}
	flatten("", raw, flat)
	return &Source{file: flat}, nil
}

// FromEnv loads the TOML file named by CONFIG_FILE, if any.
func FromEnv() (*Source, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case []any:
			parts := make([]string, 0, len(val))
			for _, item := range val {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ",")
		case time.Time:
			out[key] = val.Format(time.RFC3339)
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

func (s *Source) lookup(key string) (string, bool) {
	if v := os.Getenv(key); v != "" {
		return v, true
	}
	if s == nil || s.file == nil {
		return "", false
	}
	v, ok := s.file[key]
	return v, ok && v != ""
}

// Keys lists the keys provided by the config file.
func (s *Source) Keys() []string {
	keys := make([]string, 0, len(s.file))
	for k := range s.file {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Source) String(key, fallback string) string {
	v, ok := s.lookup(key)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(v)
}

func (s *Source) RequiredString(key string) (string, error) {
	v, ok := s.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return strings.TrimSpace(v), nil
}

func (s *Source) Port(key, fallback string) (string, error) {
	v := s.String(key, fallback)
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, v)
	}
	return v, nil
}

func (s *Source) Int(key string, fallback int) (int, error) {
	v, ok := s.lookup(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got %q)", key, v)
	}
	return n, nil
}

// Seconds reads a whole number of seconds.
func (s *Source) Seconds(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := s.lookup(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number of seconds (got %q)", key, v)
	}
	return time.Duration(n) * time.Second, nil
}

func (s *Source) Bool(key string, fallback bool) bool {
	v, ok := s.lookup(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func String(key, fallback string) string { return env.String(key, fallback) }

func RequiredString(key string) (string, error) { return env.RequiredString(key) }

func Port(key, fallback string) (string, error) { return env.Port(key, fallback) }
