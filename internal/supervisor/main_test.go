// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisor

import (
	"os"
	"os/signal"
	"syscall"
	"testing"
)

func TestMain(m *testing.M) {
	// The supervisor detaches its children and never waits on them,
	// relying on SIGCHLD being ignored (see RunSupervise). Tests need
	// the same auto-reaping so liveness checks don't see zombies.
	signal.Ignore(syscall.SIGCHLD)
	os.Exit(m.Run())
}
