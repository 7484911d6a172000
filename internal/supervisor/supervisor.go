// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package supervisor orchestrates the per-VLAN resolver fleet: it
// enumerates VLANs, tears down stale instances, materialises config
// trees, spawns one ingestor (and through it one resolver) per VLAN,
// and records PID descriptors for signalling and later teardown.
package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/config"
	"grimm.is/dnswarden/internal/errors"
	"grimm.is/dnswarden/internal/install"
	"grimm.is/dnswarden/internal/logging"
	"grimm.is/dnswarden/internal/netif"
	"grimm.is/dnswarden/internal/procfind"
	"grimm.is/dnswarden/internal/unbound"
)

// SlotState is the lifecycle state of one VLAN slot.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotStarting
	SlotRunning
	SlotFailed
)

func (s SlotState) String() string {
	switch s {
	case SlotStarting:
		return "starting"
	case SlotRunning:
		return "running"
	case SlotFailed:
		return "failed"
	default:
		return "empty"
	}
}

// Slot tracks one VLAN's resolver instance.
type Slot struct {
	VLANID     int
	State      SlotState
	Dir        string
	Descriptor Descriptor
	Err        error
}

// spawnGrace is how long the supervisor waits for the resolver PID to
// become observable after spawning the ingestor.
const spawnGrace = 5 * time.Second

// teardownGrace is the soft-termination budget before SIGKILL.
const teardownGrace = 2 * time.Second

// Options configures a Supervisor.
type Options struct {
	Logger *logging.Logger
	// IngestExe is the binary re-exec'd for ingestor children.
	// Defaults to the running executable.
	IngestExe string
	// TemplateDir overrides the config template directory.
	TemplateDir string
}

// Supervisor owns the VLAN slot table.
type Supervisor struct {
	logger   *logging.Logger
	crash    *CrashTracker
	reloader *Reloader

	ingestExe   string
	templateDir string
	baseDir     string

	mu    sync.Mutex
	slots map[int]*Slot
}

// New creates a Supervisor.
func New(opts Options) (*Supervisor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	exe := opts.IngestExe
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "failed to resolve own executable")
		}
	}

	templateDir := opts.TemplateDir
	if templateDir == "" {
		templateDir = install.GetTemplateDir()
	}

	baseDir := install.GetUnboundDir()
	return &Supervisor{
		logger:      logger,
		crash:       NewCrashTracker(install.GetStateDir()),
		reloader:    NewReloader(baseDir, logger),
		ingestExe:   exe,
		templateDir: templateDir,
		baseDir:     baseDir,
		slots:       make(map[int]*Slot),
	}, nil
}

// Reloader exposes the descriptor-backed signalling surface.
func (s *Supervisor) Reloader() *Reloader {
	return s.reloader
}

// EnumerateVLANs returns VLAN 0 plus the configured set.
func EnumerateVLANs() ([]int, error) {
	vlans, err := config.LoadVLANs(install.VLANsPath())
	if err != nil {
		return nil, err
	}
	ids := []int{0}
	seen := map[int]bool{0: true}
	for _, v := range vlans {
		if v.ID <= 0 || seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		ids = append(ids, v.ID)
	}
	return ids, nil
}

// Start brings the whole fleet up: terminate stale instances, then
// materialise and start every VLAN slot. Per-slot failures leave that
// slot Failed and the rest running; only enumeration, network config
// and base-directory creation errors are fatal.
func (s *Supervisor) Start() error {
	netcfg, err := config.LoadNetwork(install.NetworkConfigPath())
	if err != nil {
		return err
	}

	vlanIDs, err := EnumerateVLANs()
	if err != nil {
		return err
	}

	s.TerminateStale()

	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return errors.Wrapf(err, errors.KindPermission, "failed to create %s", s.baseDir)
	}

	for _, id := range vlanIDs {
		s.startSlot(id, netcfg)
	}

	running := 0
	for _, slot := range s.Slots() {
		if slot.State == SlotRunning {
			running++
		}
	}
	s.logger.Info("fleet started", "slots", len(vlanIDs), "running", running)
	return nil
}

func (s *Supervisor) startSlot(vlanID int, netcfg *config.Network) {
	slot := &Slot{VLANID: vlanID, State: SlotStarting, Dir: install.VLANDir(vlanID)}
	s.setSlot(slot)

	if s.crash.ShouldHold(vlanID) {
		slot.State = SlotFailed
		slot.Err = errors.Errorf(errors.KindUnavailable,
			"VLAN %d held after repeated failures", vlanID)
		s.logger.Error("holding slot after repeated failures", "vlan", vlanID)
		return
	}

	bindIP := s.resolveBindIP(vlanID, netcfg)

	if err := unbound.Materialise(slot.Dir, s.templateDir, bindIP); err != nil {
		s.failSlot(slot, "materialise", err)
		return
	}

	confPath := filepath.Join(slot.Dir, unbound.ConfFileName)
	child, sessionName, err := s.spawnIngestor(vlanID, confPath)
	if err != nil {
		s.failSlot(slot, "spawn", err)
		return
	}

	resolverPID, err := s.awaitResolver(confPath)
	if err != nil {
		s.failSlot(slot, "resolver", err)
		signalPID(child, syscall.SIGTERM)
		return
	}

	slot.Descriptor = Descriptor{
		ScreenSession: sessionName,
		ScreenPID:     child,
		IngestorPID:   child,
		ResolverPID:   resolverPID,
		VLANID:        vlanID,
		ConfigFile:    confPath,
	}
	if err := slot.Descriptor.Write(slot.Dir); err != nil {
		s.failSlot(slot, "descriptor", err)
		signalPID(child, syscall.SIGTERM)
		return
	}

	slot.State = SlotRunning
	s.crash.Reset(vlanID)
	s.logger.Info("slot running", "vlan", vlanID,
		"ingestor_pid", child, "resolver_pid", resolverPID)
}

func (s *Supervisor) failSlot(slot *Slot, stage string, err error) {
	slot.State = SlotFailed
	slot.Err = err
	s.crash.RecordFailure(slot.VLANID, stage)
	s.logger.Error("slot failed", "vlan", slot.VLANID, "stage", stage, "error", err)
}

// resolveBindIP looks up the VLAN interface address. Configs are
// still materialised without a bind line when the IP is unknown.
func (s *Supervisor) resolveBindIP(vlanID int, netcfg *config.Network) string {
	iface := netcfg.VLANInterface(vlanID)
	ip, err := netif.IPv4Addr(iface)
	if err != nil {
		s.logger.Warn("no bind IP for VLAN, using resolver default",
			"vlan", vlanID, "interface", iface, "error", err)
		return ""
	}
	return ip
}

// vlanName is the directory/session name for a VLAN id.
func vlanName(vlanID int) string {
	if vlanID == 0 {
		return "default"
	}
	return strconv.Itoa(vlanID)
}

// spawnIngestor starts the detached per-VLAN ingest child and returns
// its PID and session name.
func (s *Supervisor) spawnIngestor(vlanID int, confPath string) (int, string, error) {
	sessionName := brand.ResolverName + "_" + vlanName(vlanID)

	logDir := install.GetLogDir()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return 0, "", errors.Wrapf(err, errors.KindPermission, "failed to create %s", logDir)
	}
	logPath := filepath.Join(logDir, sessionName+".log")
	logF, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, "", errors.Wrapf(err, errors.KindPermission, "failed to open %s", logPath)
	}
	defer logF.Close()

	cmd := exec.Command(s.ingestExe, "ingest",
		fmt.Sprintf("--vlan-id=%d", vlanID),
		fmt.Sprintf("--config=%s", confPath))
	cmd.Env = append(os.Environ(), brand.DBNameEnv+"="+config.DBName())
	cmd.Stdout = logF
	cmd.Stderr = logF
	// Each ingestor leads its own session, the detached-wrapper
	// equivalent of the descriptor's screen_session.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, "", errors.Wrapf(err, errors.KindUnavailable, "failed to spawn ingestor for VLAN %d", vlanID)
	}
	pid := cmd.Process.Pid
	// Detach: the child is reaped by init, not by us.
	cmd.Process.Release()
	return pid, sessionName, nil
}

// awaitResolver polls for the resolver process using this config file.
func (s *Supervisor) awaitResolver(confPath string) (int, error) {
	deadline := time.Now().Add(spawnGrace)
	for time.Now().Before(deadline) {
		pids, err := procfind.ByCmdline(brand.ResolverBinary, confPath)
		if err == nil && len(pids) > 0 {
			return pids[0], nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return 0, errors.Errorf(errors.KindTimeout,
		"resolver for %s not observable within %s", confPath, spawnGrace)
}

// TerminateStale kills every resolver and ingestor left over from a
// previous run: first by PID descriptor (resolver, then ingestor,
// then session leader), then by command-line pattern, then verifies.
func (s *Supervisor) TerminateStale() {
	descriptors := ReadAllDescriptors(s.baseDir)
	for _, d := range descriptors {
		s.logger.Info("terminating stale instance", "vlan", d.VLANID,
			"resolver_pid", d.ResolverPID, "ingestor_pid", d.IngestorPID)
		// Resolver first, then the ingestor, then the session leader:
		// killing in this order prevents respawn races. Missing PIDs
		// mean the work is already done.
		for _, pid := range []int{d.ResolverPID, d.IngestorPID, d.ScreenPID} {
			if pid > 0 {
				if err := signalPID(pid, syscall.SIGTERM); err != nil {
					s.logger.Debug("stale pid already gone", "pid", pid)
				}
			}
		}
	}
	if len(descriptors) > 0 {
		time.Sleep(teardownGrace)
	}

	// Pattern fallback for instances whose descriptors were lost.
	s.killByPattern(brand.ResolverBinary, s.baseDir)
	s.killByPattern(s.ingestExe, "ingest")

	// Verify, escalating to SIGKILL.
	for _, pattern := range [][]string{
		{brand.ResolverBinary, s.baseDir},
		{s.ingestExe, "ingest"},
	} {
		if pids, _ := procfind.ByCmdline(pattern...); len(pids) > 0 {
			time.Sleep(teardownGrace)
			for _, pid := range pids {
				if pidAlive(pid) {
					s.logger.Warn("killing unresponsive process", "pid", pid)
					signalPID(pid, syscall.SIGKILL)
				}
			}
		}
	}
}

func (s *Supervisor) killByPattern(substrs ...string) {
	pids, err := procfind.ByCmdline(substrs...)
	if err != nil {
		s.logger.Warn("process scan failed", "error", err)
		return
	}
	for _, pid := range pids {
		s.logger.Info("terminating by pattern", "pid", pid)
		signalPID(pid, syscall.SIGTERM)
	}
}

// ReloadAll fans SIGHUP out to every ingestor that has a PID
// descriptor under the base directory. The VLAN list is not re-read:
// VLANs added since Start get no slot and no signal.
func (s *Supervisor) ReloadAll() {
	if err := s.reloader.ReloadAll(); err != nil {
		s.logger.Warn("reload fan-out", "error", err)
	}
}

// Teardown stops every slot in parallel within the shutdown budget.
func (s *Supervisor) Teardown() {
	slots := s.Slots()

	var wg sync.WaitGroup
	for _, slot := range slots {
		if slot.State != SlotRunning {
			continue
		}
		wg.Add(1)
		go func(d Descriptor) {
			defer wg.Done()
			s.teardownInstance(d)
		}(slot.Descriptor)
	}
	wg.Wait()

	s.mu.Lock()
	s.slots = make(map[int]*Slot)
	s.mu.Unlock()
	s.logger.Info("teardown complete")
}

func (s *Supervisor) teardownInstance(d Descriptor) {
	// The ingestor owns the resolver: signal it first so it can drain
	// its buffer and stop the resolver itself.
	if d.IngestorPID > 0 {
		signalPID(d.IngestorPID, syscall.SIGTERM)
	}

	deadline := time.Now().Add(teardownGrace)
	for time.Now().Before(deadline) {
		if !pidAlive(d.IngestorPID) && !pidAlive(d.ResolverPID) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	for _, pid := range []int{d.ResolverPID, d.IngestorPID} {
		if pid > 0 && pidAlive(pid) {
			s.logger.Warn("killing straggler", "vlan", d.VLANID, "pid", pid)
			signalPID(pid, syscall.SIGKILL)
		}
	}
}

func (s *Supervisor) setSlot(slot *Slot) {
	s.mu.Lock()
	s.slots[slot.VLANID] = slot
	s.mu.Unlock()
}

// Slots returns a snapshot of the slot table ordered by VLAN id.
func (s *Supervisor) Slots() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.slots))
	for id := range s.slots {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Slot, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.slots[id])
	}
	return out
}
