// Package supervisor owns the operating-system lifecycle of the model
// server processes: launch, readiness, crash detection, shutdown.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medlocal/assistant/internal/backend"
	"github.com/medlocal/assistant/internal/config"
	"github.com/medlocal/assistant/internal/logger"
)

// State tracks a backend through its lifecycle. Transitions only move
// forward: Stopped -> Starting -> Ready -> Exited, with Starting able
// to jump straight to Exited on a failed launch.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateReady
	StateExited
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateExited:
		return "exited"
	default:
		return "stopped"
	}
}

// UnavailableError names the backend a request could not reach.
type UnavailableError struct {
	Backend string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend %s is not available", e.Backend)
}

type server struct {
	cfg      config.Backend
	cmd      *exec.Cmd
	conn     *backend.Conn
	state    State
	exitCode int
}

// Supervisor holds the registry of running backends. The registry is
// written by start/shutdown and by the per-process exit watchers, and
// read on every routing decision, so all access goes through the lock.
type Supervisor struct {
	mu       sync.RWMutex
	servers  map[string]*server
	backends []config.Backend
	timeouts config.Timeouts
	wg       sync.WaitGroup
	log      *logrus.Logger
}

func New(cfg *config.Config) *Supervisor {
	return &Supervisor{
		servers:  make(map[string]*server),
		backends: cfg.Backends,
		timeouts: cfg.Timeouts,
		log:      logger.Log,
	}
}

// Initialize launches every enabled backend and waits for each to
// become ready. A backend that fails to start or never becomes ready is
// logged and skipped; the others stay available.
func (s *Supervisor) Initialize(ctx context.Context) error {
	for _, b := range s.backends {
		if !b.Enabled {
			s.log.WithField("backend", b.Name).Debug("skipping disabled backend")
			continue
		}

		if err := s.start(b); err != nil {
			s.log.WithField("backend", b.Name).WithError(err).Error("failed to start backend")
			continue
		}

		if err := s.waitReady(ctx, b.Name); err != nil {
			s.log.WithField("backend", b.Name).WithError(err).Error("backend failed to become ready")
			continue
		}
		s.log.WithField("backend", b.Name).Info("backend ready")
	}
	return nil
}

func (s *Supervisor) start(b config.Backend) error {
	s.mu.Lock()
	if srv, exists := s.servers[b.Name]; exists && srv.state != StateExited && srv.state != StateStopped {
		s.mu.Unlock()
		return fmt.Errorf("backend %s already running", b.Name)
	}
	s.mu.Unlock()

	cmd := exec.Command(b.Command, b.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch %s: %w", b.Command, err)
	}

	s.log.WithFields(logrus.Fields{"backend": b.Name, "pid": cmd.Process.Pid}).Info("started backend")

	srv := &server{
		cfg:   b,
		cmd:   cmd,
		conn:  backend.NewConn(b.Name, stdin, stdout),
		state: StateStarting,
	}

	s.mu.Lock()
	s.servers[b.Name] = srv
	s.mu.Unlock()

	// Drain stderr into the log, then reap the process. Wait must come
	// after the pipe is exhausted or output gets truncated.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.log.WithField("backend", b.Name).Warn(scanner.Text())
		}

		err := cmd.Wait()
		code := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else if err != nil {
			code = -1
		}

		s.mu.Lock()
		srv.state = StateExited
		srv.exitCode = code
		s.mu.Unlock()

		s.log.WithFields(logrus.Fields{"backend": b.Name, "code": code}).Info("backend exited")
	}()

	return nil
}

// waitReady blocks until the backend counts as ready or the readiness
// timeout expires. Readiness is currently "survived the grace period":
// the server protocol has no handshake yet, so surviving launch is the
// only observable signal.
// TODO: replace the grace-period wait with a real handshake over the
// exchange channel once the server protocol defines one.
func (s *Supervisor) waitReady(ctx context.Context, name string) error {
	deadline := time.Now().Add(s.timeouts.ReadyTimeout())
	grace := time.Now().Add(s.timeouts.GracePeriod())

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		s.mu.Lock()
		srv, exists := s.servers[name]
		if !exists {
			s.mu.Unlock()
			return fmt.Errorf("backend %s not registered", name)
		}
		if srv.state == StateExited {
			code := srv.exitCode
			s.mu.Unlock()
			return fmt.Errorf("backend %s exited during startup (code %d)", name, code)
		}
		if time.Now().After(grace) {
			srv.state = StateReady
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		if time.Now().After(deadline) {
			return fmt.Errorf("backend %s failed to become ready within %s", name, s.timeouts.ReadyTimeout())
		}
	}
}

// IsLive reports whether a runtime handle exists for the backend and
// its process has not exited.
func (s *Supervisor) IsLive(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	srv, exists := s.servers[name]
	return exists && (srv.state == StateStarting || srv.state == StateReady)
}

// Live returns the sorted names of all live backends.
func (s *Supervisor) Live() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.servers))
	for name, srv := range s.servers {
		if srv.state == StateStarting || srv.state == StateReady {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Conn returns the exchange channel for a ready backend.
func (s *Supervisor) Conn(name string) (*backend.Conn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	srv, exists := s.servers[name]
	if !exists || srv.state != StateReady {
		return nil, &UnavailableError{Backend: name}
	}
	return srv.conn, nil
}

// Shutdown terminates every live backend: SIGTERM first, SIGKILL for
// anything still running after the grace period. Safe to call with
// backends already gone, and safe to call twice.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	var pending []*server
	for name, srv := range s.servers {
		if srv.state == StateStarting || srv.state == StateReady {
			s.log.WithField("backend", name).Info("stopping backend")
			srv.cmd.Process.Signal(syscall.SIGTERM)
			pending = append(pending, srv)
		}
	}
	s.mu.Unlock()

	deadline := time.Now().Add(s.timeouts.ShutdownGrace())
	for time.Now().Before(deadline) {
		if s.allExited(pending) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	s.mu.Lock()
	for _, srv := range pending {
		if srv.state != StateExited {
			s.log.WithField("backend", srv.cfg.Name).Warn("backend ignored termination request, killing")
			srv.cmd.Process.Kill()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.servers = make(map[string]*server)
	s.mu.Unlock()
}

func (s *Supervisor) allExited(servers []*server) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, srv := range servers {
		if srv.state != StateExited {
			return false
		}
	}
	return true
}
