package auth

import (
	"reflect"
	"testing"
)

func TestParseRoles(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want []string
	}{
		{name: "string", raw: " Admin ", want: []string{"admin"}},
		{name: "string slice", raw: []string{"user", "USER", ""}, want: []string{"user"}},
		{name: "any slice", raw: []any{"admin", 7, "user"}, want: []string{"admin", "user"}},
		{name: "map", raw: map[string]any{"user": true, "admin": true, "ops": false, "x": "yes"}, want: []string{"admin", "user"}},
		{name: "missing", raw: nil, want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseRoles(tc.raw); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("parseRoles(%v) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"Bearer    ":   "",
		"":             "",
	} {
		got, ok := bearerToken(header)
		if got != want || ok != (want != "") {
			t.Errorf("bearerToken(%q) = %q, %v", header, got, ok)
		}
	}
}
