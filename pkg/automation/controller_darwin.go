//go:build darwin

package automation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
	"strconv"

	"friday/pkg/api"
	"friday/pkg/perception"
)

// darwinController drives macOS through AppleScript and system binaries.
type darwinController struct {
	unsupported
	shell *Shell
}

// New returns the controller for the running platform.
func New() Controller {
	return &darwinController{shell: PosixShell("/bin/zsh")}
}

func (c *darwinController) SetVolume(ctx context.Context, level int) error {
	_, err := OSAScript(ctx, fmt.Sprintf("set volume output volume %d", level))
	return err
}

func (c *darwinController) SetMuted(ctx context.Context, muted bool) error {
	_, err := OSAScript(ctx, fmt.Sprintf("set volume output muted %t", muted))
	return err
}

func (c *darwinController) SetBrightness(ctx context.Context, level int) error {
	script := fmt.Sprintf(`tell application "System Events" to set brightness of (first display) to %s`,
		strconv.FormatFloat(float64(level)/100, 'f', 2, 64))
	_, err := OSAScript(ctx, script)
	return err
}

func (c *darwinController) OpenApp(ctx context.Context, name string) error {
	_, err := RunProgram(ctx, "open", "-a", name)
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Kind == api.KindUnknown {
		return api.Wrap(api.KindNotFound, err, "application %q not found", name).AsPermanent()
	}
	return err
}

func (c *darwinController) CloseApp(ctx context.Context, name string) error {
	_, err := OSAScript(ctx, fmt.Sprintf("tell application %s to quit", Quote(name)))
	return err
}

func (c *darwinController) OpenURL(ctx context.Context, url string) error {
	_, err := RunProgram(ctx, "open", url)
	return err
}

func (c *darwinController) ToggleWiFi(ctx context.Context) (bool, error) {
	out, err := RunProgram(ctx, "networksetup", "-getairportpower", "en0")
	if err != nil {
		return false, err
	}
	on, err := parseRadioState(out)
	if err != nil {
		return false, err
	}
	state := "on"
	if on {
		state = "off"
	}
	if _, err := RunProgram(ctx, "networksetup", "-setairportpower", "en0", state); err != nil {
		return false, err
	}
	return !on, nil
}

const whatsAppDesktopScript = `tell application "WhatsApp" to activate
delay 1
tell application "System Events"
	tell process "WhatsApp"
		keystroke "f" using {command down}
		delay 0.5
		keystroke %[1]s
		delay 1.5
		key code 36
		delay 1
		keystroke %[2]s
		delay 0.5
		key code 36
	end tell
end tell`

const whatsAppWebScript = `tell application "Safari"
	activate
	delay 0.5
	set found to false
	if (count of windows) > 0 then
		repeat with t in every tab of front window
			if URL of t contains "web.whatsapp.com" then
				set current tab of front window to t
				set found to true
				exit repeat
			end if
		end repeat
	end if
	if not found then
		open location "https://web.whatsapp.com"
		delay 5
	end if
end tell
delay 1
tell application "System Events"
	tell process "Safari"
		keystroke "f" using {command down}
		delay 0.5
		keystroke %[1]s
		delay 1.5
		key code 36
		delay 1
		keystroke %[2]s
		delay 0.5
		key code 36
	end tell
end tell`

func (c *darwinController) SendWhatsApp(ctx context.Context, via WhatsAppVia, contact, message string) error {
	script := whatsAppDesktopScript
	if via == WhatsAppWeb {
		script = whatsAppWebScript
	}
	_, err := OSAScript(ctx, fmt.Sprintf(script, Quote(contact), Quote(message)))
	var ae *api.Error
	if errors.As(err, &ae) && ae.Kind == api.KindNotFound {
		// WhatsApp or Safari is not installed.
		return api.Wrap(api.KindExternalUnavailable, err, "WhatsApp %s is not available", via).AsPermanent()
	}
	return err
}

func (c *darwinController) Permissions(ctx context.Context) []Permission {
	perms := []Permission{
		scriptPermission(ctx, "Accessibility",
			`tell application "System Events" to get name of first application process whose frontmost is true`),
		scriptPermission(ctx, "Automation",
			`tell application "Finder" to get name of startup disk`),
	}
	return append(perms,
		toolPermission(exec.LookPath, "tesseract", "reading the screen", "brew install tesseract tesseract-lang"),
	)
}

func scriptPermission(ctx context.Context, name, probe string) Permission {
	p := Permission{Name: name}
	_, err := OSAScript(ctx, probe)
	if err == nil {
		p.Granted = true
		return p
	}
	f := api.Classify(err)
	p.Detail = f.Message
	if f.Kind == api.KindPermissionDenied {
		p.Remediation = f.Remediation
	}
	return p
}

func (c *darwinController) Shell(ctx context.Context, command string) (string, error) {
	return c.shell.Run(ctx, command)
}

func (c *darwinController) Grab(ctx context.Context) (image.Image, error) {
	return grabToFile(func(path string) error {
		// -x: no sound
		_, err := RunProgram(ctx, "screencapture", "-x", "-t", "png", path)
		if err != nil {
			return fmt.Errorf("screencapture failed: %w", err)
		}
		return nil
	})
}

func (c *darwinController) ActiveWindowBounds(ctx context.Context) (perception.WindowBounds, error) {
	out, err := OSAScript(ctx, `tell application "System Events"
	set p to first application process whose frontmost is true
	tell window 1 of p to get (position & size)
end tell`)
	if err != nil {
		return perception.WindowBounds{}, err
	}
	window, err := parseRect(out)
	if err != nil {
		return perception.WindowBounds{}, err
	}

	var screen image.Rectangle
	if out, err := OSAScript(ctx, `tell application "Finder" to get bounds of window of desktop`); err != nil {
		slog.DebugContext(ctx, "Desktop bounds unavailable", "error", err)
	} else if screen, err = parseCorners(out); err != nil {
		slog.DebugContext(ctx, "Desktop bounds unreadable", "error", err)
	}
	return perception.WindowBounds{Window: window, Screen: screen}, nil
}

const uiElementsScript = `tell application "System Events"
	set p to first application process whose frontmost is true
	set output to ""
	repeat with el in (UI elements of window 1 of p)
		try
			set r to (role of el) as text
			set n to ""
			try
				set n to (name of el) as text
			end try
			set pos to ""
			try
				set xy to position of el
				set wh to size of el
				set pos to ((item 1 of xy) as text) & "|" & ((item 2 of xy) as text) & "|" & ((item 1 of wh) as text) & "|" & ((item 2 of wh) as text)
			end try
			set output to output & r & "|" & n & "|" & pos & linefeed
		end try
	end repeat
	return output
end tell`

func (c *darwinController) UIElements(ctx context.Context) ([]perception.UIElement, error) {
	out, err := OSAScript(ctx, uiElementsScript)
	if err != nil {
		return nil, err
	}
	return parseUIElements(out), nil
}
