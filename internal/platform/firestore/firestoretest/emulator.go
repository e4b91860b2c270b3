// Package firestoretest provides a Firestore emulator for integration tests.
package firestoretest

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/hanko-field/order-admin/internal/platform/config"
)

const (
	image       = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
	projectID   = "test-project"
	readyWithin = 30 * time.Second
)

// StartEmulator returns a config for a running emulator. An emulator already exported through
// FIRESTORE_EMULATOR_HOST is reused; otherwise one is started in docker and stopped on cleanup.
// The test is skipped when neither is available.
func StartEmulator(t *testing.T) config.FirestoreConfig {
	t.Helper()
	if host := strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST")); host != "" {
		return config.FirestoreConfig{ProjectID: projectID, EmulatorHost: host}
	}

	docker := requireDocker(t)
	port := reservePort(t)
	out, err := exec.Command(docker, "run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		image, "gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet",
	).CombinedOutput()
	if err != nil {
		t.Fatalf("start firestore emulator: %v: %s", err, out)
	}
	container := strings.TrimSpace(string(out))
	if container == "" {
		t.Fatal("docker returned no container id")
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = exec.CommandContext(ctx, docker, "stop", container).Run()
	})

	host := net.JoinHostPort("127.0.0.1", fmt.Sprint(port))
	if err := awaitTCP(host, readyWithin); err != nil {
		t.Fatalf("firestore emulator not ready: %v", err)
	}
	return config.FirestoreConfig{ProjectID: projectID, EmulatorHost: host}
}

func requireDocker(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("docker")
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, path, "info").Run(); err != nil {
		t.Skipf("docker daemon unavailable: %v", err)
	}
	return path
}

func reservePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func awaitTCP(addr string, within time.Duration) error {
	deadline := time.Now().Add(within)
	for {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			return conn.Close()
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(250 * time.Millisecond)
	}
}
