package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const latestRedisPassword = "projects/test/secrets/redis_password/versions/latest"

func TestFetcher_CachesRemoteValue(t *testing.T) {
	ctx := context.Background()
	client := newStubSecretManager()
	client.values[latestRedisPassword] = "remote-secret"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithDefaultProject("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fetcher.Close() })

	for _, ref := range []string{"secret://redis_password", "sm://redis_password"} {
		got, err := fetcher.Resolve(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "remote-secret", got)
	}
	assert.Equal(t, 1, client.calls(latestRedisPassword))
}

func TestFetcher_VersionAndProjectOverrides(t *testing.T) {
	ctx := context.Background()
	client := newStubSecretManager()
	client.values["projects/other/secrets/redis_password/versions/5"] = "version-5"
	client.values[latestRedisPassword] = "latest"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithDefaultProject("test"))
	require.NoError(t, err)

	got, err := fetcher.ResolveSecret(ctx, "secret://redis_password?version=5&project=other")
	require.NoError(t, err)
	assert.Equal(t, "version-5", got)

	got, err = fetcher.ResolveSecret(ctx, "secret://redis_password")
	require.NoError(t, err)
	assert.Equal(t, "latest", got, "pinned version must not shadow latest in the cache")
}

func TestFetcher_FallbackFile(t *testing.T) {
	cases := []struct {
		name    string
		remote  error
		want    string
		wantErr bool
	}{
		{name: "unavailable", remote: status.Error(codes.Unavailable, "down"), want: "local-secret"},
		{name: "permission denied", remote: status.Error(codes.PermissionDenied, "nope"), want: "local-secret"},
		{name: "not found is final", remote: status.Error(codes.NotFound, "missing"), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			client := newStubSecretManager()
			client.failures[latestRedisPassword] = tc.remote

			fetcher, err := NewFetcher(ctx,
				WithSecretManagerClient(client),
				WithDefaultProject("test"),
				WithFallbackFile(writeFallback(t, "# local\nsm://redis_password=local-secret\n")),
			)
			require.NoError(t, err)

			got, err := fetcher.Resolve(ctx, "secret://redis_password")
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewFetcher_WithoutCredentialsUsesFallback(t *testing.T) {
	original := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (*secretmanager.Client, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() { secretManagerClientFactory = original })

	ctx := context.Background()
	fetcher, err := NewFetcher(ctx, WithDefaultProject("test"), WithFallbackFile(writeFallback(t, "secret://redis_password=local-secret\n")))
	require.NoError(t, err)
	require.NoError(t, fetcher.Close())

	got, err := fetcher.Resolve(ctx, "secret://redis_password")
	require.NoError(t, err)
	assert.Equal(t, "local-secret", got)

	_, err = fetcher.Resolve(ctx, "secret://unknown")
	assert.ErrorContains(t, err, "no fallback value")
}

func TestParseReference(t *testing.T) {
	ref, err := parseReference(" sm://db/password?version=3 ")
	require.NoError(t, err)
	assert.Equal(t, "secret://db/password", ref.base)
	assert.Equal(t, "projects/p/secrets/db/password/versions/3", ref.resourceName("p"))
	assert.Len(t, ref.masked(), 16)

	for _, raw := range []string{"", "http://redis", "secret://"} {
		_, err := parseReference(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseFallbackSkipsInvalidKeys(t *testing.T) {
	values, err := parseFallback(strings.NewReader("plain=1\nsecret://a = x\nbroken\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"secret://a": "x"}, values)
}

func writeFallback(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type stubSecretManager struct {
	mu       sync.Mutex
	values   map[string]string
	failures map[string]error
	hits     map[string]int
}

func newStubSecretManager() *stubSecretManager {
	return &stubSecretManager{
		values:   map[string]string{},
		failures: map[string]error{},
		hits:     map[string]int{},
	}
}

func (s *stubSecretManager) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := req.GetName()
	s.hits[name]++
	if err := s.failures[name]; err != nil {
		return nil, err
	}
	value, ok := s.values[name]
	if !ok {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)}}, nil
}

func (s *stubSecretManager) Close() error { return nil }

func (s *stubSecretManager) calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}
