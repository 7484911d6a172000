// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes ingest counters over Prometheus. Each
// ingestor process serves its own registry on a unix socket under the
// run directory, so per-VLAN instances never fight over a TCP port.
package metrics

import (
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/dnswarden/internal/brand"
	"grimm.is/dnswarden/internal/errors"
	"grimm.is/dnswarden/internal/install"
)

var registry = prometheus.NewRegistry()

var (
	// LinesProcessed counts resolver log lines that passed the
	// pre-filter and were handed to the parser.
	LinesProcessed = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "dnswarden_ingest_lines_total",
		Help: "Resolver log lines handed to the parser",
	}, []string{"vlan"})

	// QueryEvents counts parsed query events by final parse status.
	QueryEvents = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "dnswarden_ingest_events_total",
		Help: "Parsed query events by status",
	}, []string{"vlan", "status"})

	// StoreErrors counts dropped events due to store write failures.
	StoreErrors = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "dnswarden_store_errors_total",
		Help: "Store write failures (event dropped)",
	}, []string{"vlan"})

	// PendingEvents gauges the dedup buffer fill level.
	PendingEvents = promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
		Name: "dnswarden_ingest_pending_events",
		Help: "Events currently held in the dedup window",
	}, []string{"vlan"})
)

// SocketPath returns the metrics socket for an ingestor instance.
func SocketPath(vlanID int) string {
	return filepath.Join(install.GetRunDir(), brand.LowerName+"-ingest-"+strconv.Itoa(vlanID)+".sock")
}

// Server serves /metrics and /healthz on a unix socket.
type Server struct {
	ln  net.Listener
	srv *http.Server
}

// Serve starts the metrics endpoint on the given socket path. A stale
// socket from a previous run is removed first.
func Serve(socketPath string) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "failed to create run directory")
	}
	os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "failed to listen on %s", socketPath)
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	srv := &http.Server{Handler: r}
	go srv.Serve(ln)

	return &Server{ln: ln, srv: srv}, nil
}

// Close stops the endpoint and removes the socket.
func (s *Server) Close() error {
	addr := s.ln.Addr().String()
	err := s.srv.Close()
	os.Remove(addr)
	return err
}
