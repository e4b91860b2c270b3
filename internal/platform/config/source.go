package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// source layers the lookup order: explicit map, then process environment, then .env.
type source struct {
	explicit map[string]string
	system   bool
	dotenv   map[string]string
	resolver SecretResolver
}

func newSource(o loaderOptions) (*source, error) {
	dotenv, err := readDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return &source{explicit: o.envMap, system: o.useSystemEnv, dotenv: dotenv, resolver: o.secret}, nil
}

func (s *source) lookup(key string) (string, bool) {
	if v, ok := s.explicit[key]; ok {
		return v, true
	}
	if s.system {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
	}
	v, ok := s.dotenv[key]
	return v, ok
}

// raw returns the trimmed value, with ok false when the key is unset or blank.
func (s *source) raw(key string) (string, bool) {
	v, ok := s.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (s *source) str(key, fallback string) string {
	if v, ok := s.raw(key); ok {
		return v
	}
	return fallback
}

// Malformed durations, integers and booleans fall back to the default.
func (s *source) duration(key string, fallback time.Duration) time.Duration {
	if v, ok := s.raw(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func (s *source) integer(key string, fallback int) int {
	if v, ok := s.raw(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (s *source) boolean(key string, fallback bool) bool {
	if v, ok := s.raw(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// list splits a comma separated value, dropping blanks.
func (s *source) list(key string) []string {
	out := []string{}
	v, ok := s.raw(key)
	if !ok {
		return out
	}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// readDotEnv loads path; a missing file or empty path yields no values.
func readDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	values, err := parseDotEnv(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return values, nil
}

// parseDotEnv accepts KEY=VALUE lines with optional "export " prefixes, quotes and # comments.
func parseDotEnv(r io.Reader) (map[string]string, error) {
	values := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if key = strings.TrimSpace(key); !ok || key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return values, scanner.Err()
}
