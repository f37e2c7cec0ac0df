package storage_test

import (
	"context"
	"net"
	"os/exec"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/model"
	"github.com/ogulcanaydogan/LLM-Quota-Guardian/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startNATSServer runs a local nats-server with JetStream, skipping the test
// when the binary is not installed.
func startNATSServer(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	cmd := exec.Command("nats-server", "-js", "-p", strconv.Itoa(port), "-sd", t.TempDir())
	if err := cmd.Start(); err != nil {
		t.Skipf("nats-server is required for integration test: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		_, _ = cmd.Process.Wait()
	})

	url := "nats://127.0.0.1:" + strconv.Itoa(port)
	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		nc, err := nats.Connect(url)
		if err == nil {
			nc.Close()
			return url
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("nats-server at %s did not become ready", url)
	return ""
}

func TestNATS_StateIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skip integration test in short mode")
	}
	url := startNATSServer(t)

	store, err := storage.NewNATS(storage.NATSConfig{
		URL:          []string{url},
		Bucket:       "lqg_state_test",
		CreateBucket: true,
	})
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	st, rev, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rev)
	assert.Equal(t, model.NewAlertState(), st)

	rev, err = store.Save(ctx, sampleState(), 0)
	require.NoError(t, err)

	got, gotRev, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rev, gotRev)
	assert.Equal(t, sampleState(), got)

	_, err = store.Save(ctx, model.NewAlertState(), 0)
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = store.Save(ctx, got, gotRev)
	require.NoError(t, err)

	_, err = store.Save(ctx, got, gotRev)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestNATS_MissingBucket(t *testing.T) {
	if testing.Short() {
		t.Skip("skip integration test in short mode")
	}
	url := startNATSServer(t)

	_, err := storage.NewNATS(storage.NATSConfig{
		URL:    []string{url},
		Bucket: "does_not_exist",
	})
	assert.Error(t, err)
}
