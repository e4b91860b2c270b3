package pagination

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize || params.PageToken != "" {
		t.Fatalf("unexpected defaults %+v", params)
	}
}

func TestParsePageSize(t *testing.T) {
	opts := Options{DefaultPageSize: 25, MaxPageSize: 40}
	values := url.Values{"page_size": {"30"}}

	params, err := Parse(values, opts)
	if err != nil || params.PageSize != 30 {
		t.Fatalf("expected page size 30, got %d err=%v", params.PageSize, err)
	}

	values.Set("page_size", "400")
	params, err = Parse(values, opts)
	if err != nil || params.PageSize != opts.MaxPageSize {
		t.Fatalf("expected clamp to %d, got %d err=%v", opts.MaxPageSize, params.PageSize, err)
	}

	for _, raw := range []string{"abc", "0", "-3"} {
		if _, err := Parse(url.Values{"page_size": {raw}}, opts); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("page_size %q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestTokenRoundTripAndRejects(t *testing.T) {
	cursor := Cursor{CreatedAt: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), ID: "ord_2"}
	token := EncodeToken(cursor)

	params, err := Parse(url.Values{"page_token": {token}}, Options{})
	if err != nil || params.PageToken != token {
		t.Fatalf("expected token accepted, got %+v err=%v", params, err)
	}
	decoded, err := DecodeToken(token)
	if err != nil || !decoded.CreatedAt.Equal(cursor.CreatedAt) || decoded.ID != cursor.ID {
		t.Fatalf("unexpected cursor %+v err=%v", decoded, err)
	}

	if EncodeToken(Cursor{}) != "" {
		t.Fatal("zero cursor should encode to the empty token")
	}
	for _, bad := range []string{"%%%", "bm90LWpzb24", "e30"} {
		if _, err := Parse(url.Values{"page_token": {bad}}, Options{}); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("token %q: expected ErrInvalidPageToken, got %v", bad, err)
		}
	}
}
