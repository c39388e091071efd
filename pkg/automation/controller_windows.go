//go:build windows

package automation

import (
	"context"
	"fmt"
	"image"
	"os/exec"
	"strings"

	"friday/pkg/api"
)

// windowsController drives Windows through PowerShell and netsh.
type windowsController struct {
	unsupported
	shell *Shell
}

// New returns the controller for the running platform.
func New() Controller {
	return &windowsController{shell: PowerShell()}
}

func powershell(ctx context.Context, script string) (string, error) {
	return RunProgram(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
}

// Volume keys move the master volume in steps of 2%, so the level is
// reached by zeroing and stepping up.
func (c *windowsController) SetVolume(ctx context.Context, level int) error {
	script := fmt.Sprintf(`$w = New-Object -ComObject WScript.Shell
1..50 | ForEach-Object { $w.SendKeys([char]174) }
1..%d | ForEach-Object { $w.SendKeys([char]175) }`, level/2)
	if level/2 == 0 {
		script = `$w = New-Object -ComObject WScript.Shell
1..50 | ForEach-Object { $w.SendKeys([char]174) }`
	}
	_, err := powershell(ctx, script)
	return err
}

func (c *windowsController) SetMuted(ctx context.Context, muted bool) error {
	if !muted {
		// The mute key toggles, so unmuting is a volume key press.
		_, err := powershell(ctx, `$w = New-Object -ComObject WScript.Shell; $w.SendKeys([char]175); $w.SendKeys([char]174)`)
		return err
	}
	_, err := powershell(ctx, `(New-Object -ComObject WScript.Shell).SendKeys([char]173)`)
	return err
}

func (c *windowsController) SetBrightness(ctx context.Context, level int) error {
	_, err := powershell(ctx, fmt.Sprintf(
		`(Get-WmiObject -Namespace root/WMI -Class WmiMonitorBrightnessMethods).WmiSetBrightness(1, %d)`, level))
	return err
}

func (c *windowsController) OpenApp(ctx context.Context, name string) error {
	_, err := powershell(ctx, "Start-Process "+PSQuote(name))
	if err != nil && api.Classify(err).Kind == api.KindUnknown {
		return api.Wrap(api.KindNotFound, err, "application %q not found", name).AsPermanent()
	}
	return err
}

func (c *windowsController) CloseApp(ctx context.Context, name string) error {
	_, err := powershell(ctx, "Stop-Process -Name "+PSQuote(strings.TrimSuffix(name, ".exe"))+" -ErrorAction Stop")
	if err != nil && api.Classify(err).Kind == api.KindUnknown {
		return api.Wrap(api.KindNotFound, err, "no running application named %q", name).AsPermanent()
	}
	return err
}

func (c *windowsController) OpenURL(ctx context.Context, url string) error {
	_, err := powershell(ctx, "Start-Process "+PSQuote(url))
	return err
}

func (c *windowsController) ToggleWiFi(ctx context.Context) (bool, error) {
	out, err := RunProgram(ctx, "netsh", "interface", "show", "interface", "name=Wi-Fi")
	if err != nil {
		return false, err
	}
	on, err := netshAdminState(out)
	if err != nil {
		return false, err
	}
	state := "enabled"
	if on {
		state = "disabled"
	}
	if _, err := RunProgram(ctx, "netsh", "interface", "set", "interface", "name=Wi-Fi", "admin="+state); err != nil {
		return false, err
	}
	return !on, nil
}

func (c *windowsController) Permissions(ctx context.Context) []Permission {
	return []Permission{
		toolPermission(exec.LookPath, "powershell", "system control", "PowerShell ships with Windows; check PATH."),
		toolPermission(exec.LookPath, "tesseract", "reading the screen", "Install Tesseract from https://github.com/UB-Mannheim/tesseract/wiki"),
	}
}

func (c *windowsController) Shell(ctx context.Context, command string) (string, error) {
	return c.shell.Run(ctx, command)
}

// Grab captures the primary display with System.Drawing.
func (c *windowsController) Grab(ctx context.Context) (image.Image, error) {
	return grabToFile(func(path string) error {
		script := fmt.Sprintf(`
Add-Type -AssemblyName System.Windows.Forms
Add-Type -AssemblyName System.Drawing
$Screen = [System.Windows.Forms.Screen]::PrimaryScreen
$Bitmap = New-Object System.Drawing.Bitmap($Screen.Bounds.Width, $Screen.Bounds.Height)
$Graphics = [System.Drawing.Graphics]::FromImage($Bitmap)
$Graphics.CopyFromScreen($Screen.Bounds.Left, $Screen.Bounds.Top, 0, 0, $Bitmap.Size)
$Bitmap.Save(%s, [System.Drawing.Imaging.ImageFormat]::Png)
$Graphics.Dispose()
$Bitmap.Dispose()
`, PSQuote(path))
		if _, err := powershell(ctx, script); err != nil {
			return fmt.Errorf("failed to take screenshot via powershell: %w", err)
		}
		return nil
	})
}
