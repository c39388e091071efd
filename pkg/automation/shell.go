package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"friday/pkg/api"
)

// Shell runs command lines in a persistent working directory. After each
// command the shell prints its directory, which becomes the next command's
// starting point and is stripped from the output.
type Shell struct {
	mu         sync.Mutex
	workingDir string
	build      func(ctx context.Context, dir, command string) *exec.Cmd
}

func newShell(build func(ctx context.Context, dir, command string) *exec.Cmd) *Shell {
	cwd, _ := os.Getwd()
	return &Shell{workingDir: cwd, build: build}
}

// PosixShell runs commands with the given interpreter, e.g. /bin/zsh.
func PosixShell(interpreter string) *Shell {
	return newShell(func(ctx context.Context, dir, command string) *exec.Cmd {
		fullCmd := fmt.Sprintf("cd %q && %s && pwd", dir, command)
		return exec.CommandContext(ctx, interpreter, "-c", fullCmd)
	})
}

var windowsEnvVar = regexp.MustCompile(`%([^%]+)%`)

// PowerShell runs commands through powershell with UTF-8 output. %VAR%
// references are rewritten to $env:VAR.
func PowerShell() *Shell {
	return newShell(func(ctx context.Context, dir, command string) *exec.Cmd {
		fullCmd := fmt.Sprintf("%s; $ExecutionContext.SessionState.Path.CurrentLocation.Path", powerShellCommand(command))
		cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", fullCmd)
		cmd.Dir = dir
		return cmd
	})
}

func powerShellCommand(command string) string {
	expanded := windowsEnvVar.ReplaceAllString(command, `$$env:$1`)
	return "[Console]::OutputEncoding = [System.Text.Encoding]::UTF8; $OutputEncoding = [System.Text.Encoding]::UTF8; " + expanded
}

// Dir returns the current working directory.
func (s *Shell) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workingDir
}

// Run executes command. A non-zero exit is returned as an error carrying
// the output.
func (s *Shell) Run(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.InfoContext(ctx, "Executing command", "dir", s.workingDir, "command", command)

	cmd := s.build(ctx, s.workingDir, command)
	// Children of the interpreter may keep the pipes open after a kill.
	cmd.WaitDelay = 500 * time.Millisecond
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	output := out.String()

	if err != nil {
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", api.Wrap(api.KindExternalUnavailable, err, "shell interpreter not found").AsPermanent()
		}
		output = strings.TrimSpace(output)
		if output == "" {
			return "", api.Wrap(api.KindUnknown, err, "command failed")
		}
		return output, api.Wrap(api.KindUnknown, err, "command failed: %s", output)
	}

	output, dir, changed := splitWorkingDir(output, isDir)
	if changed {
		s.workingDir = dir
	}
	if strings.TrimSpace(output) == "" && changed {
		output = "Current directory: " + s.workingDir
	}
	return output, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// splitWorkingDir removes a trailing directory line from output.
func splitWorkingDir(output string, isDir func(string) bool) (rest, dir string, ok bool) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) == 0 {
		return output, "", false
	}
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" || !isDir(last) {
		return strings.TrimSpace(output), "", false
	}
	return strings.Join(lines[:len(lines)-1], "\n"), last, true
}
