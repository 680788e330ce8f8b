//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFindInstances_SkipsOwnProcess ensures the current process is never reported.
func TestFindInstances_SkipsOwnProcess(t *testing.T) {
	t.Parallel()

	self, err := os.Executable()
	require.NoError(t, err)

	pids, err := FindInstances(filepath.Base(self))
	require.NoError(t, err)
	require.NotContains(t, pids, os.Getpid())
}

// TestEnsureSingleInstance_NoOtherProcess checks an unused name passes the guard.
func TestEnsureSingleInstance_NoOtherProcess(t *testing.T) {
	t.Parallel()

	require.NoError(t, EnsureSingleInstance("tourist-safety-no-such-binary"))
}

// TestExecutableName checks the platform extension.
func TestExecutableName(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		require.Equal(t, "safety-server.exe", ExecutableName("safety-server"))

		return
	}

	require.Equal(t, "safety-server", ExecutableName("safety-server"))
}
