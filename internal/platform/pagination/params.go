package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when the client omits page_size.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps page_size.
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid page_size")
	ErrInvalidPageToken = errors.New("pagination: invalid page_token")
)

// Params holds the parsed paging inputs of a list request.
type Params struct {
	PageSize  int
	PageToken string
}

// Options control Parse defaults.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Parse reads page_size and page_token. Oversized pages are clamped; the token is validated so
// a malformed token is reported before any store access.
func Parse(values url.Values, opts Options) (Params, error) {
	maxPageSize := opts.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	pageSize := opts.DefaultPageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	if raw := strings.TrimSpace(values.Get("page_size")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
		}
		if value <= 0 {
			return Params{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
		}
		pageSize = min(value, maxPageSize)
	}

	token := strings.TrimSpace(values.Get("page_token"))
	if token != "" {
		if _, err := DecodeToken(token); err != nil {
			return Params{}, err
		}
	}
	return Params{PageSize: pageSize, PageToken: token}, nil
}
