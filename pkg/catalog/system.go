package catalog

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"friday/pkg/api"
	"friday/pkg/automation"
)

func systemCapabilities(ctl automation.Controller) []api.Capability {
	level := api.Param{Name: "level", Type: api.ParamPercent, Required: true, Description: "Level from 0 to 100"}
	appName := stringParam("app_name", "Application name, e.g. Safari")

	return []api.Capability{
		{
			Name:        "set_volume",
			Description: "Set the output volume.",
			Params:      []api.Param{level},
			Effect:      api.EffectOSAutomation,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				n := args.Int("level")
				return withEffect(done(ctl.SetVolume(ctx, n), "Volume set to %d%%", n))
			},
		},
		{
			Name:        "set_brightness",
			Description: "Set the screen brightness.",
			Params:      []api.Param{level},
			Effect:      api.EffectOSAutomation,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				n := args.Int("level")
				return withEffect(done(ctl.SetBrightness(ctx, n), "Brightness set to %d%%", n))
			},
		},
		{
			Name:        "mute_volume",
			Description: "Mute the output volume, or unmute it with unmute=true.",
			Params: []api.Param{
				{Name: "unmute", Type: api.ParamBoolean, Default: false, Description: "Unmute instead of muting"},
			},
			Effect: api.EffectOSAutomation,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				if args.Bool("unmute") {
					return withEffect(done(ctl.SetMuted(ctx, false), "Volume unmuted"))
				}
				return withEffect(done(ctl.SetMuted(ctx, true), "Volume muted"))
			},
		},
		{
			Name:        "open_app",
			Description: "Open an application.",
			Params:      []api.Param{appName},
			Effect:      api.EffectOSAutomation,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				name := args.String("app_name")
				return withEffect(done(ctl.OpenApp(ctx, name), "Opened %s", name))
			},
		},
		{
			Name:        "close_app",
			Description: "Quit a running application.",
			Params:      []api.Param{appName},
			Effect:      api.EffectOSAutomation,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				name := args.String("app_name")
				return withEffect(done(ctl.CloseApp(ctx, name), "Closed %s", name))
			},
		},
		{
			Name:        "toggle_wifi",
			Description: "Turn Wi-Fi on if it is off, or off if it is on.",
			Effect:      api.EffectOSAutomation,
			Handler: func(ctx context.Context, _ api.Args) (api.Result, error) {
				on, err := ctl.ToggleWiFi(ctx)
				state := "off"
				if on {
					state = "on"
				}
				return withEffect(done(err, "Wi-Fi turned %s", state))
			},
		},
		{
			Name:        "open_url",
			Description: "Open a web address in the default browser.",
			Params:      []api.Param{stringParam("url", "Address to open; https:// is assumed when missing")},
			Effect:      api.EffectOSAutomation,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				u, err := normalizeURL(args.String("url"))
				if err != nil {
					return api.Result{}, err
				}
				return withEffect(done(ctl.OpenURL(ctx, u), "Opened %s", u))
			},
		},
		{
			Name:        "run_command",
			Description: "Run a shell command. The working directory persists between calls.",
			Params:      []api.Param{stringParam("command", "Command line to run")},
			Effect:      api.EffectLocalMutation,
			Timeout:     60 * time.Second,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				out, err := ctl.Shell(ctx, args.String("command"))
				if err != nil {
					return api.Result{}, err
				}
				if strings.TrimSpace(out) == "" {
					out = "Command completed with no output."
				}
				return api.Result{Text: out}, nil
			},
		},
		{
			Name:        "check_permissions",
			Description: "Report which OS permissions and helper tools are available.",
			Effect:      api.EffectRead,
			Handler: func(ctx context.Context, _ api.Args) (api.Result, error) {
				return api.Result{Text: renderPermissions(ctl.Permissions(ctx))}, nil
			},
		},
		{
			Name:        "system_info",
			Description: "Describe the computer: OS, architecture, host name and CPU count.",
			Effect:      api.EffectRead,
			Handler: func(context.Context, api.Args) (api.Result, error) {
				return api.Result{Text: systemInfo()}, nil
			},
		},
	}
}

// withEffect records the success text as the side effect of a mutation.
func withEffect(r api.Result, err error) (api.Result, error) {
	if err == nil {
		r.SideEffects = append(r.SideEffects, r.Text)
	}
	return r, err
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", api.Errorf(api.KindInvalidArgument, "%q is not a valid web address", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", api.Errorf(api.KindInvalidArgument, "only http and https addresses can be opened, got %q", u.Scheme)
	}
	return u.String(), nil
}

func renderPermissions(perms []automation.Permission) string {
	if len(perms) == 0 {
		return fmt.Sprintf("No permission checks are available on %s.", runtime.GOOS)
	}
	var sb strings.Builder
	for i, p := range perms {
		if i > 0 {
			sb.WriteString("\n")
		}
		if p.Granted {
			fmt.Fprintf(&sb, "%s: granted", p.Name)
			continue
		}
		fmt.Fprintf(&sb, "%s: missing", p.Name)
		if p.Detail != "" {
			fmt.Fprintf(&sb, " (%s)", p.Detail)
		}
		if p.Remediation != "" {
			fmt.Fprintf(&sb, "\n  How to fix: %s", p.Remediation)
		}
	}
	return sb.String()
}

func systemInfo() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	home, _ := os.UserHomeDir()
	return fmt.Sprintf("OS: %s\nArchitecture: %s\nHost name: %s\nCPUs: %d\nHome: %s\nLocal time: %s",
		runtime.GOOS, runtime.GOARCH, host, runtime.NumCPU(), home, time.Now().Format("2006-01-02 15:04 MST"))
}
