//go:build !windows

package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/pkg/config"
)

func TestSupervisor_StartStatusStop(t *testing.T) {
	s := New(config.AgentConfig{Command: []string{"sleep", "30"}})

	require.NoError(t, s.Start())
	st := s.Status()
	assert.True(t, st.Running)
	assert.NotZero(t, st.PID)
	assert.ErrorIs(t, s.Start(), ErrRunning)

	start := time.Now()
	require.NoError(t, s.Stop(context.Background()))
	assert.Less(t, time.Since(start), DefaultGrace)

	st = s.Status()
	assert.False(t, st.Running)
	assert.Contains(t, st.LastExit, "terminated")
	assert.ErrorIs(t, s.Stop(context.Background()), ErrNotRunning)
}

func TestSupervisor_KillsAfterGrace(t *testing.T) {
	s := New(config.AgentConfig{
		Command:     []string{"sh", "-c", `trap "" TERM; sleep 30`},
		StopGraceMs: 200,
	})
	require.NoError(t, s.Start())
	// Give the shell time to install the trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, s.Stop(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.False(t, s.Status().Running)
	assert.Contains(t, s.Status().LastExit, "killed")
}

func TestSupervisor_ProcessExitsOnItsOwn(t *testing.T) {
	s := New(config.AgentConfig{Command: []string{"sh", "-c", "echo hello; exit 3"}})
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return !s.Status().Running }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "exit status 3", s.Status().LastExit)
}

func TestSupervisor_NoCommand(t *testing.T) {
	s := New(config.AgentConfig{})
	assert.ErrorIs(t, s.Start(), ErrNoCommand)
	assert.False(t, s.Status().Running)
}
