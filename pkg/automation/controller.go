// Package automation drives the local operating system: audio, display,
// applications, networking, messaging apps, the shell, and the screen.
// Every platform provides a Controller; features a platform lacks fail
// with a permanent ExternalUnavailable error.
package automation

import (
	"context"
	"image"
	"runtime"

	"friday/pkg/api"
	"friday/pkg/perception"
)

// WhatsAppVia selects which WhatsApp client is driven.
type WhatsAppVia string

const (
	WhatsAppDesktop WhatsAppVia = "desktop"
	WhatsAppWeb     WhatsAppVia = "web"
)

// Permission is the state of one OS permission or helper the controller
// depends on.
type Permission struct {
	Name        string `json:"name"`
	Granted     bool   `json:"granted"`
	Detail      string `json:"detail,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// Controller is the OS primitive surface the capabilities are built on.
type Controller interface {
	SetVolume(ctx context.Context, level int) error
	SetMuted(ctx context.Context, muted bool) error
	SetBrightness(ctx context.Context, level int) error

	OpenApp(ctx context.Context, name string) error
	CloseApp(ctx context.Context, name string) error
	OpenURL(ctx context.Context, url string) error

	// ToggleWiFi flips the Wi-Fi radio and reports the new state.
	ToggleWiFi(ctx context.Context) (on bool, err error)

	SendWhatsApp(ctx context.Context, via WhatsAppVia, contact, message string) error

	Permissions(ctx context.Context) []Permission

	// Shell runs a command line, keeping the working directory between
	// calls so "cd" persists.
	Shell(ctx context.Context, command string) (string, error)

	perception.Grabber
	perception.WindowLocator
	perception.Accessibility
}

// unsupported provides the failing defaults embedded by every platform
// controller.
type unsupported struct{}

func notSupported(feature string) error {
	return api.Errorf(api.KindExternalUnavailable, "%s is not supported on %s", feature, runtime.GOOS).AsPermanent()
}

func (unsupported) SetVolume(context.Context, int) error      { return notSupported("volume control") }
func (unsupported) SetMuted(context.Context, bool) error      { return notSupported("muting") }
func (unsupported) SetBrightness(context.Context, int) error  { return notSupported("brightness control") }
func (unsupported) OpenApp(context.Context, string) error     { return notSupported("opening applications") }
func (unsupported) CloseApp(context.Context, string) error    { return notSupported("closing applications") }
func (unsupported) OpenURL(context.Context, string) error     { return notSupported("opening URLs") }
func (unsupported) ToggleWiFi(context.Context) (bool, error)  { return false, notSupported("Wi-Fi control") }
func (unsupported) Permissions(context.Context) []Permission  { return nil }
func (unsupported) Shell(context.Context, string) (string, error) {
	return "", notSupported("the shell")
}

func (unsupported) SendWhatsApp(context.Context, WhatsAppVia, string, string) error {
	return notSupported("WhatsApp automation")
}

func (unsupported) Grab(context.Context) (image.Image, error) {
	return nil, notSupported("screen capture")
}

func (unsupported) ActiveWindowBounds(context.Context) (perception.WindowBounds, error) {
	return perception.WindowBounds{}, notSupported("window tracking")
}

func (unsupported) UIElements(context.Context) ([]perception.UIElement, error) {
	return nil, notSupported("UI element listing")
}

// toolPermission reports whether a helper binary is installed.
func toolPermission(lookPath func(string) (string, error), binary, purpose, install string) Permission {
	p := Permission{Name: binary}
	if path, err := lookPath(binary); err == nil {
		p.Granted = true
		p.Detail = path
		return p
	}
	p.Detail = "not installed; needed for " + purpose
	p.Remediation = install
	return p
}
