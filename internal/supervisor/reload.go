// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package supervisor

import (
	"syscall"

	"grimm.is/dnswarden/internal/errors"
	"grimm.is/dnswarden/internal/logging"
)

// Reloader delivers SIGHUP to running ingestors by consulting PID
// descriptors. It backs both the supervisor's own fan-out and the
// hosts sync's targeted reload.
type Reloader struct {
	baseDir string
	logger  *logging.Logger
}

// NewReloader creates a Reloader over the resolver base directory.
func NewReloader(baseDir string, logger *logging.Logger) *Reloader {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reloader{baseDir: baseDir, logger: logger}
}

// ReloadVLAN signals the ingestor whose descriptor matches the VLAN.
func (r *Reloader) ReloadVLAN(vlanID int) error {
	for _, d := range ReadAllDescriptors(r.baseDir) {
		if d.VLANID != vlanID || d.IngestorPID <= 0 {
			continue
		}
		if err := signalPID(d.IngestorPID, syscall.SIGHUP); err != nil {
			return errors.Wrapf(err, errors.KindNotFound,
				"ingestor for VLAN %d (pid %d) is gone", vlanID, d.IngestorPID)
		}
		r.logger.Info("sent reload", "vlan", vlanID, "pid", d.IngestorPID)
		return nil
	}
	return errors.Errorf(errors.KindNotFound, "no ingestor descriptor for VLAN %d", vlanID)
}

// ReloadAll signals every ingestor with a descriptor. Dead PIDs are
// logged and skipped.
func (r *Reloader) ReloadAll() error {
	sent := 0
	for _, d := range ReadAllDescriptors(r.baseDir) {
		if d.IngestorPID <= 0 {
			continue
		}
		if err := signalPID(d.IngestorPID, syscall.SIGHUP); err != nil {
			r.logger.Debug("skipping dead ingestor", "vlan", d.VLANID, "pid", d.IngestorPID)
			continue
		}
		r.logger.Info("sent reload", "vlan", d.VLANID, "pid", d.IngestorPID)
		sent++
	}
	if sent == 0 {
		return errors.New(errors.KindNotFound, "no running ingestors to reload")
	}
	return nil
}

// signalPID delivers a signal to a PID.
func signalPID(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// pidAlive reports whether a PID still exists.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
