package automation

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"friday/pkg/api"
)

// RunProgram runs a helper binary and returns its trimmed combined output.
func RunProgram(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", api.Wrap(api.KindExternalUnavailable, err, "%s is not installed", name).
				WithRemediation("Install " + name + " and make sure it is on PATH.").AsPermanent()
		}
		if output == "" {
			return "", api.Wrap(api.KindUnknown, err, "%s failed", name)
		}
		return output, api.Wrap(api.KindUnknown, err, "%s failed: %s", name, output)
	}
	return output, nil
}

// OSAScript runs an AppleScript and classifies its failures.
func OSAScript(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", api.Wrap(api.KindExternalUnavailable, err, "osascript is not available").AsPermanent()
		}
		return "", ClassifyScriptError(stderr.String(), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ClassifyScriptError maps osascript diagnostics to failure kinds.
func ClassifyScriptError(stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(strings.ReplaceAll(msg, "’", "'"))

	switch {
	case strings.Contains(lower, "-1743") || strings.Contains(lower, "not authorized to send apple events"):
		return api.Wrap(api.KindPermissionDenied, err, "automation permission denied: %s", msg).
			WithRemediation(api.RemediationAutomation).AsPermanent()
	case strings.Contains(lower, "-1719") || strings.Contains(lower, "-25211") || strings.Contains(lower, "assistive access"):
		return api.Wrap(api.KindPermissionDenied, err, "accessibility permission denied: %s", msg).
			WithRemediation(api.RemediationAccessibility).AsPermanent()
	case strings.Contains(lower, "-600") || strings.Contains(lower, "-1728") || strings.Contains(lower, "can't get application"):
		return api.Wrap(api.KindNotFound, err, "application not found: %s", msg).AsPermanent()
	}
	if msg == "" {
		return api.Wrap(api.KindUnknown, err, "AppleScript failed")
	}
	return api.Wrap(api.KindUnknown, err, "AppleScript failed: %s", msg)
}

// Quote renders s as an AppleScript string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", `\r`, "\n", `\n`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

// PSQuote renders s as a single-quoted PowerShell literal.
func PSQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
