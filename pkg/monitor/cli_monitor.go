package monitor

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// CLIMonitor implements the Monitor interface, printing one line per
// invocation to the terminal.
type CLIMonitor struct {
	writer io.Writer // The output destination, typically os.Stdout.
	mu     sync.Mutex
}

// NewCLIMonitor creates a monitor writing to stdout.
func NewCLIMonitor() *CLIMonitor {
	return NewCLIMonitorTo(os.Stdout)
}

// NewCLIMonitorTo creates a monitor writing to w.
func NewCLIMonitorTo(w io.Writer) *CLIMonitor {
	return &CLIMonitor{writer: w}
}

// Start prints the monitor header.
func (m *CLIMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	fmt.Fprintln(m.writer, "CLI Monitor Active - every capability invocation will appear here")
	fmt.Fprintln(m.writer, "----------------------------------------------------------------")
	return nil
}

func (m *CLIMonitor) Stop() error {
	return nil
}

// OnInvocation receives and displays an invocation event.
func (m *CLIMonitor) OnInvocation(ev InvocationEvent) {
	timestamp := ev.Timestamp.Format("2006-01-02 15:04:05")

	status := "ok"
	if !ev.OK {
		status = fmt.Sprintf("%s: %s", ev.Kind, ev.Message)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Use gray color for timestamp
	fmt.Fprintf(m.writer, "\033[90m[%s]\033[0m [%s] %s (%s) %s attempts=%d took=%s\n",
		timestamp, ev.ID, ev.Capability, ev.Effect, status, ev.Attempts, ev.Duration.Round(time.Millisecond))
}
