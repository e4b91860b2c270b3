package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const defaultFallbackPath = ".secrets.local"

// fallbackFile is a lazily read KEY=VALUE file keyed by secret reference without query.
type fallbackFile struct {
	path   string
	logger *zap.Logger

	once   sync.Once
	values map[string]string
}

func (f *fallbackFile) lookup(ref reference) (string, bool) {
	f.once.Do(func() {
		values, err := loadFallback(f.path)
		if err != nil {
			f.logger.Warn("secrets: fallback file unreadable", zap.String("path", f.path), zap.Error(err))
		}
		f.values = values
	})
	v, ok := f.values[ref.base]
	return v, ok
}

func loadFallback(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secrets: open fallback file %s: %w", path, err)
	}
	defer file.Close()
	return parseFallback(file)
}

// parseFallback ignores lines whose key is not a valid reference.
func parseFallback(r io.Reader) (map[string]string, error) {
	values := map[string]string{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ref, err := parseReference(key)
		if err != nil {
			continue
		}
		values[ref.base] = strings.TrimSpace(value)
	}
	return values, sc.Err()
}
