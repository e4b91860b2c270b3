package secrets

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const latestVersion = "latest"

// reference is a parsed secret://name[?version=..&project=..] URI.
type reference struct {
	base    string
	name    string
	version string
	project string
}

func parseReference(raw string) (reference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return reference{}, errors.New("secrets: empty reference")
	}
	if rest, ok := strings.CutPrefix(raw, "sm://"); ok {
		raw = "secret://" + rest
	}
	u, err := url.Parse(raw)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", raw, err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", raw)
	}

	q := u.Query()
	ref := reference{
		base:    "secret://" + name,
		name:    name,
		version: strings.TrimSpace(q.Get("version")),
		project: strings.TrimSpace(q.Get("project")),
	}
	if ref.version == "" {
		ref.version = latestVersion
	}
	return ref, nil
}

func (r reference) cacheKey() string {
	return r.base + "#" + r.project + "#" + r.version
}

func (r reference) resourceName(project string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, r.name, r.version)
}

// masked identifies the secret in logs and metrics without revealing its name.
func (r reference) masked() string {
	sum := sha256.Sum256([]byte(r.base))
	return hex.EncodeToString(sum[:8])
}
