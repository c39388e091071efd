//go:build linux

package automation

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
	"strings"

	"friday/pkg/api"
	"friday/pkg/perception"
)

// linuxController drives a desktop Linux session through common helpers:
// pactl, brightnessctl, nmcli, xdg-open and xdotool.
type linuxController struct {
	unsupported
	shell *Shell
}

// New returns the controller for the running platform.
func New() Controller {
	return &linuxController{shell: PosixShell("/bin/bash")}
}

func (c *linuxController) SetVolume(ctx context.Context, level int) error {
	_, err := RunProgram(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", level))
	return err
}

func (c *linuxController) SetMuted(ctx context.Context, muted bool) error {
	state := "0"
	if muted {
		state = "1"
	}
	_, err := RunProgram(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", state)
	return err
}

func (c *linuxController) SetBrightness(ctx context.Context, level int) error {
	_, err := RunProgram(ctx, "brightnessctl", "set", fmt.Sprintf("%d%%", level))
	return err
}

func (c *linuxController) OpenApp(ctx context.Context, name string) error {
	if _, err := RunProgram(ctx, "gtk-launch", strings.ToLower(name)); err == nil {
		return nil
	}
	path, err := exec.LookPath(strings.ToLower(name))
	if err != nil {
		return api.Errorf(api.KindNotFound, "application %q not found", name).AsPermanent()
	}
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return api.Wrap(api.KindUnknown, err, "failed to start %s", name)
	}
	go cmd.Wait()
	return nil
}

func (c *linuxController) CloseApp(ctx context.Context, name string) error {
	_, err := RunProgram(ctx, "pkill", "-x", name)
	if err != nil && api.Classify(err).Kind == api.KindUnknown {
		return api.Errorf(api.KindNotFound, "no running application named %q", name).AsPermanent()
	}
	return err
}

func (c *linuxController) OpenURL(ctx context.Context, url string) error {
	_, err := RunProgram(ctx, "xdg-open", url)
	return err
}

func (c *linuxController) ToggleWiFi(ctx context.Context) (bool, error) {
	out, err := RunProgram(ctx, "nmcli", "radio", "wifi")
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
	if _, err := RunProgram(ctx, "nmcli", "radio", "wifi", state); err != nil {
		return false, err
	}
	return !on, nil
}

func (c *linuxController) Permissions(ctx context.Context) []Permission {
	return []Permission{
		toolPermission(exec.LookPath, "pactl", "volume control", "Install pulseaudio-utils or pipewire-pulse."),
		toolPermission(exec.LookPath, "brightnessctl", "brightness control", "apt install brightnessctl"),
		toolPermission(exec.LookPath, "nmcli", "Wi-Fi control", "Install NetworkManager."),
		toolPermission(exec.LookPath, "xdotool", "active window tracking", "apt install xdotool"),
		toolPermission(exec.LookPath, "tesseract", "reading the screen", "apt install tesseract-ocr tesseract-ocr-hin"),
	}
}

func (c *linuxController) Shell(ctx context.Context, command string) (string, error) {
	return c.shell.Run(ctx, command)
}

func (c *linuxController) Grab(ctx context.Context) (image.Image, error) {
	return grabToFile(func(path string) error {
		_, err := RunProgram(ctx, "gnome-screenshot", "-f", path)
		if err == nil {
			return nil
		}
		slog.WarnContext(ctx, "gnome-screenshot failed, trying scrot", "error", err)
		if _, err = RunProgram(ctx, "scrot", "--overwrite", path); err != nil {
			return fmt.Errorf("screenshot failed (tried gnome-screenshot and scrot): %w", err)
		}
		return nil
	})
}

func (c *linuxController) ActiveWindowBounds(ctx context.Context) (perception.WindowBounds, error) {
	out, err := RunProgram(ctx, "xdotool", "getactivewindow", "getwindowgeometry", "--shell")
	if err != nil {
		return perception.WindowBounds{}, err
	}
	window, err := parseXdotoolGeometry(out)
	if err != nil {
		return perception.WindowBounds{}, err
	}

	var screen image.Rectangle
	if out, err := RunProgram(ctx, "xdotool", "getdisplaygeometry"); err == nil {
		if v, err := parseInts(out, 2); err == nil {
			screen = image.Rect(0, 0, v[0], v[1])
		}
	}
	return perception.WindowBounds{Window: window, Screen: screen}, nil
}
