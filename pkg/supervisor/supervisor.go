// Package supervisor starts, stops and reports on one external agent
// process. Stop asks the process to terminate and kills it when it has not
// exited within the grace period.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"friday/pkg/config"
)

// DefaultGrace is how long Stop waits before killing the process.
const DefaultGrace = 5 * time.Second

var (
	ErrRunning    = errors.New("agent is already running")
	ErrNotRunning = errors.New("agent is not running")
	ErrNoCommand  = errors.New("no agent command configured")
)

// Status describes the supervised process.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	// LastExit is the exit status of the previous run, if any.
	LastExit string `json:"last_exit,omitempty"`
}

// Supervisor owns at most one running agent process.
type Supervisor struct {
	command []string
	dir     string
	grace   time.Duration

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	started  time.Time
	lastExit string
}

// New creates a Supervisor for the configured agent command.
func New(cfg config.AgentConfig) *Supervisor {
	grace := time.Duration(cfg.StopGraceMs) * time.Millisecond
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Supervisor{
		command: append([]string(nil), cfg.Command...),
		dir:     cfg.Dir,
		grace:   grace,
	}
}

// Start launches the agent. The process outlives the request that started
// it; its output is logged line by line.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return ErrRunning
	}
	if len(s.command) == 0 {
		return ErrNoCommand
	}

	cmd := exec.Command(s.command[0], s.command[1:]...)
	cmd.Dir = s.dir
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	done := make(chan struct{})
	s.cmd, s.done, s.started = cmd, done, time.Now()
	slog.Info("Agent started", "pid", cmd.Process.Pid, "command", s.command)

	go func() {
		logOutput(cmd.Process.Pid, stdout)
		err := cmd.Wait()

		s.mu.Lock()
		s.lastExit = exitStatus(err)
		s.cmd, s.done = nil, nil
		s.mu.Unlock()

		slog.Info("Agent exited", "pid", cmd.Process.Pid, "status", exitStatus(err))
		close(done)
	}()
	return nil
}

// Stop terminates the agent, killing it after the grace period or when ctx
// ends, and waits for it to exit.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()
	if cmd == nil {
		return ErrNotRunning
	}

	pid := cmd.Process.Pid
	if err := terminate(cmd.Process); err != nil {
		slog.Warn("Failed to signal agent, killing it", "pid", pid, "error", err)
		kill(cmd.Process)
	}

	timer := time.NewTimer(s.grace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		slog.Warn("Agent did not exit in time, killing it", "pid", pid, "grace", s.grace)
	case <-ctx.Done():
		slog.Warn("Stop cancelled, killing agent", "pid", pid)
	}

	if err := kill(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		select {
		case <-done:
			return nil
		default:
		}
		return fmt.Errorf("failed to kill agent %d: %w", pid, err)
	}
	<-done
	return nil
}

// Status reports the current state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{LastExit: s.lastExit}
	if s.cmd != nil {
		st.Running = true
		st.PID = s.cmd.Process.Pid
		st.StartedAt = s.started
	}
	return st
}

func logOutput(pid int, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		slog.Info("Agent output", "pid", pid, "line", sc.Text())
	}
}

func exitStatus(err error) string {
	if err == nil {
		return "exited normally"
	}
	return err.Error()
}
