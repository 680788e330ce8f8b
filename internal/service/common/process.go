//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning is returned when another process runs the same executable.
var ErrAlreadyRunning = errors.New("another instance is already running")

// ExecutableName appends the platform extension to base.
func ExecutableName(base string) string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return base + ".exe"
	}

	return base
}

// FindInstances returns the PIDs of other processes running executable.
func FindInstances(executable string) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	thisProcessID := os.Getpid()

	var pids []int

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		pids = append(pids, process.Pid())
	}

	return pids, nil
}

// EnsureSingleInstance fails when another process runs executable.
func EnsureSingleInstance(executable string) error {
	pids, err := FindInstances(executable)
	if err != nil {
		return err
	}

	if len(pids) > 0 {
		return fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, executable, pids[0])
	}

	return nil
}
