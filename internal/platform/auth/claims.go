package auth

import (
	"slices"
	"strings"
)

// Claim names read from Firebase ID tokens.
const (
	claimRole   = "role"
	claimLocale = "locale"
	claimEmail  = "email"
)

// parseRoles accepts a role claim shaped as a string, a list, or a map of role to bool.
// Roles are lower-cased and de-duplicated in first-seen order.
func parseRoles(raw any) []string {
	var roles []string
	add := func(role string) {
		if role = normaliseRole(role); role != "" && !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	switch v := raw.(type) {
	case string:
		add(v)
	case []string:
		for _, role := range v {
			add(role)
		}
	case []any:
		for _, item := range v {
			if role, ok := item.(string); ok {
				add(role)
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for role, enabled := range v {
			if on, ok := enabled.(bool); ok && on {
				keys = append(keys, role)
			}
		}
		slices.Sort(keys)
		for _, role := range keys {
			add(role)
		}
	}
	return roles
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
