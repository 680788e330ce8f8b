package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/tourist-safety/internal/config"
	"github.com/oshokin/tourist-safety/internal/service/server"
)

// startServer runs a real safety-server on a free port with a temporary config.
// It returns the bound address and the config path.
func startServer(t *testing.T) (string, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := config.Default()
	cfg.ServerAddress = "127.0.0.1:0"
	cfg.MetricsAddress = ""
	cfg.Timeout = 3 * time.Second
	cfg.LogLevel = "warn"
	require.NoError(t, config.Save(cfgPath, cfg))

	ready := make(chan string, 1)
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath:     cfgPath,
			ListenAddress:  "127.0.0.1:0",
			MetricsAddress: "-",
			AllowMultiple:  true,
			Ready:          func(address string) { ready <- address },
		})
	}()

	var addr string

	select {
	case addr = <-ready:
	case err := <-done:
		cancel()
		require.FailNow(t, "server did not start", "%v", err)
	case <-time.After(5 * time.Second):
		cancel()
		require.FailNow(t, "server start timed out")
	}

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return addr, cfgPath
}
