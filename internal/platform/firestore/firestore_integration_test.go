//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	pconfig "github.com/showcase/api/internal/platform/config"
	pfirestore "github.com/showcase/api/internal/platform/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

type counterEntity struct {
	Name  string           `firestore:"name"`
	Owner string           `firestore:"owner"`
	Stats map[string]int64 `firestore:"stats"`
}

func startEmulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })
	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "test-project", EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func TestRepositoryLifecycleIntegration(t *testing.T) {
	provider := startEmulatorProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, provider.Ping(ctx))

	repo := pfirestore.NewBaseRepository[counterEntity](provider, "samples", nil, nil)

	id, err := repo.Create(ctx, counterEntity{Name: "alpha", Owner: "u1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// concurrent increments on a path that does not exist yet
	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.Increment(ctx, id, "stats.views", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	doc, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), doc.Data.Stats["views"])
	assert.Equal(t, "alpha", doc.Data.Name)

	_, err = repo.Increment(ctx, "missing", "stats.views", 1)
	var cls interface{ IsNotFound() bool }
	require.ErrorAs(t, err, &cls)
	assert.True(t, cls.IsNotFound())

	require.NoError(t, repo.Delete(ctx, id))
	err = repo.Delete(ctx, id)
	require.ErrorAs(t, err, &cls)
	assert.True(t, cls.IsNotFound())
}

func TestRepositoryWatchIntegration(t *testing.T) {
	provider := startEmulatorProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := pfirestore.NewBaseRepository[counterEntity](provider, "watched", nil, nil)
	_, err := repo.Create(ctx, counterEntity{Name: "first", Owner: "u1"})
	require.NoError(t, err)

	watchCtx, stop := context.WithCancel(ctx)
	stream, err := repo.Watch(watchCtx, func(q firestore.Query) firestore.Query {
		return q.Where("owner", "==", "u1")
	})
	require.NoError(t, err)

	initial := <-stream
	require.NoError(t, initial.Err)
	require.Len(t, initial.Docs, 1)

	_, err = repo.Create(ctx, counterEntity{Name: "second", Owner: "u1"})
	require.NoError(t, err)

	next := <-stream
	require.NoError(t, next.Err)
	assert.Len(t, next.Docs, 2)

	stop()
	for range stream {
	}
}

func TestTransactionCancelledIntegration(t *testing.T) {
	provider := startEmulatorProvider(t)

	cancelCtx, cancelTxn := context.WithCancel(context.Background())
	cancelTxn()
	err := provider.RunTransaction(cancelCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	// Shorten the ID to match docker CLI behaviour for stop/remove commands.
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		lastErr = err
		time.Sleep(250 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for endpoint")
	}
	t.Fatalf("emulator did not become ready: %v", lastErr)
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Skip("docker daemon unavailable: " + err.Error())
	}
}
