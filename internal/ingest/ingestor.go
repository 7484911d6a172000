// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ingest

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"syscall"
	"time"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/clock"
	"grimm.is/dnswarden/internal/errors"
	"grimm.is/dnswarden/internal/logging"
	"grimm.is/dnswarden/internal/metrics"
	"grimm.is/dnswarden/internal/store"
)

// ResolverCommand describes how to launch the resolver. The default
// runs unbound in the foreground with debug logging on stderr and no
// self-written PID file; the ingestor owns both.
type ResolverCommand struct {
	Binary string
	Args   []string
	Env    []string
}

// DefaultResolverCommand returns the spawn description for a config file.
func DefaultResolverCommand(configFile string) ResolverCommand {
	return ResolverCommand{
		Binary: brand.ResolverBinary,
		Args:   []string{"-d", "-p", "-vvvv", "-c", configFile},
		Env:    os.Environ(),
	}
}

// Options configures an Ingestor.
type Options struct {
	VLANID     int
	ConfigFile string
	DBPath     string
	Command    ResolverCommand
	Logger     *logging.Logger
	// StatsInterval is how often counters are logged. Zero disables.
	StatsInterval time.Duration
}

// Ingestor supervises one VLAN's resolver: it spawns the process,
// parses its debug output into query events, dedups them, and writes
// them to the store. Reload requests are forwarded to the resolver;
// the ingestor itself keeps running.
type Ingestor struct {
	opts   Options
	logger *logging.Logger
	stats  *Stats

	st  *store.Store
	buf *DedupBuffer

	cmd    *exec.Cmd
	reload chan struct{}
}

// New creates an Ingestor. Run does the actual work.
func New(opts Options) *Ingestor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("vlan", opts.VLANID)
	return &Ingestor{
		opts:   opts,
		logger: logger,
		stats:  NewStats(opts.VLANID),
		reload: make(chan struct{}, 1),
	}
}

// Stats exposes the ingestor's counters.
func (ing *Ingestor) Stats() *Stats {
	return ing.stats
}

// ResolverPID returns the PID of the running resolver, or 0.
func (ing *Ingestor) ResolverPID() int {
	if ing.cmd != nil && ing.cmd.Process != nil {
		return ing.cmd.Process.Pid
	}
	return 0
}

// Reload asks the ingestor to SIGHUP its resolver. Honoured at the
// next line boundary; never interrupts a store write.
func (ing *Ingestor) Reload() {
	select {
	case ing.reload <- struct{}{}:
	default:
	}
}

// Run executes the ingest loop until the context is cancelled or the
// resolver exits. On return the dedup buffer has been drained and the
// store closed.
func (ing *Ingestor) Run(ctx context.Context) error {
	st, err := store.Open(ing.opts.DBPath)
	if err != nil {
		return err
	}
	ing.st = st
	defer st.Close()

	if err := st.EnsureSchema(); err != nil {
		return err
	}

	ing.buf = NewDedupBuffer(st, ing.stats, ing.logger)
	defer ing.buf.Drain()

	mts, err := metrics.Serve(metrics.SocketPath(ing.opts.VLANID))
	if err != nil {
		// Metrics are operator convenience; ingest must still run.
		ing.logger.Warn("metrics endpoint unavailable", "error", err)
	} else {
		defer mts.Close()
	}

	lines, wait, err := ing.spawnResolver()
	if err != nil {
		return err
	}
	defer ing.stopResolver()

	ing.logger.Info("resolver started",
		"pid", ing.ResolverPID(), "config", ing.opts.ConfigFile)

	// The per-line FlushDue covers busy VLANs; the ticker guarantees
	// flush visibility on quiet ones.
	flushTick := time.NewTicker(time.Second)
	defer flushTick.Stop()

	var statsTick <-chan time.Time
	if ing.opts.StatsInterval > 0 {
		t := time.NewTicker(ing.opts.StatsInterval)
		defer t.Stop()
		statsTick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ing.reload:
			ing.forwardReload()

		case <-flushTick.C:
			ing.buf.FlushDue(clock.Now())

		case <-statsTick:
			ing.logStats()

		case line, ok := <-lines:
			if !ok {
				// Resolver exited or the pipe broke; drain and let
				// the supervisor decide whether to restart us.
				err := <-wait
				ing.logger.Warn("resolver output closed", "error", err)
				return errors.Wrap(err, errors.KindUnavailable, "resolver exited")
			}
			ing.handleLine(line)
		}
	}
}

func (ing *Ingestor) handleLine(line string) {
	if !Interesting(line) {
		return
	}
	ing.stats.countLine()

	now := clock.Now()
	event, ok := ParseLine(line, now, ing.opts.VLANID)
	if ok {
		ing.stats.countEvent(event.Status)
		ing.buf.Offer(event, now)
	}
	ing.buf.FlushDue(now)
}

// spawnResolver starts the resolver and returns a channel of its
// output lines plus a channel delivering the process exit error.
func (ing *Ingestor) spawnResolver() (<-chan string, <-chan error, error) {
	cmdSpec := ing.opts.Command
	if cmdSpec.Binary == "" {
		cmdSpec = DefaultResolverCommand(ing.opts.ConfigFile)
	}

	cmd := exec.Command(cmdSpec.Binary, cmdSpec.Args...)
	cmd.Env = cmdSpec.Env
	// Debug output goes to stderr when running in the foreground;
	// merge stdout into the same pipe so nothing is lost.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.KindInternal, "failed to open resolver pipe")
	}
	cmd.Stdout = cmd.Stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, errors.Wrapf(err, errors.KindUnavailable, "failed to start resolver %s", cmdSpec.Binary)
	}
	ing.cmd = cmd

	lines := make(chan string, 256)
	wait := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
		wait <- cmd.Wait()
	}()

	return lines, wait, nil
}

func (ing *Ingestor) forwardReload() {
	pid := ing.ResolverPID()
	if pid == 0 {
		return
	}
	ing.logger.Info("forwarding reload to resolver", "pid", pid)
	if err := ing.cmd.Process.Signal(syscall.SIGHUP); err != nil {
		ing.logger.Warn("failed to signal resolver", "pid", pid, "error", err)
	}
}

func (ing *Ingestor) stopResolver() {
	if ing.cmd == nil || ing.cmd.Process == nil {
		return
	}
	pid := ing.cmd.Process.Pid
	if err := ing.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		ing.logger.Debug("resolver already gone", "pid", pid)
		return
	}

	// cmd.Wait runs in the reader goroutine; here we only watch for
	// the process to disappear, then escalate.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := ing.cmd.Process.Signal(syscall.Signal(0)); err != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	ing.logger.Warn("resolver did not exit, killing", "pid", pid)
	ing.cmd.Process.Kill()
}

func (ing *Ingestor) logStats() {
	ing.logger.Info("ingest stats",
		"processed", ing.stats.Processed.Load(),
		"allowed", ing.stats.Allowed.Load(),
		"blocked", ing.stats.Blocked.Load(),
		"errors", ing.stats.Errors.Load(),
		"pending", ing.stats.Pending.Load(),
	)
}
