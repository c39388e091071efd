package catalog

import (
	"context"
	"fmt"
	"strings"

	"friday/pkg/api"
	"friday/pkg/perception"
)

func screenCapabilities(screen ScreenReader) []api.Capability {
	region := api.Param{
		Name:        "region",
		Type:        api.ParamEnum,
		Default:     string(perception.RegionFull),
		Enum:        perception.RegionNames(),
		Description: "Part of the screen to read",
	}

	return []api.Capability{
		{
			Name:        "read_screen_text",
			Description: "Take a fresh screenshot and read the text in a region of it.",
			Params:      []api.Param{region},
			Effect:      api.EffectRead,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				r, content, err := captureOne(ctx, screen, args.String("region"))
				if err != nil {
					return api.Result{}, err
				}
				if len(content.Lines) == 0 {
					return api.Textf("No text is visible in the %s region.", r), nil
				}
				return api.Textf("Text in the %s region:\n%s", r, strings.Join(content.Lines, "\n")), nil
			},
		},
		{
			Name:        "find_text_on_screen",
			Description: "Look for text on the screen and report every line containing it.",
			Params: []api.Param{
				stringParam("text", "Text to look for"),
				region,
				{Name: "case_sensitive", Type: api.ParamBoolean, Default: false, Description: "Match letter case exactly"},
			},
			Effect: api.EffectRead,
			Handler: func(ctx context.Context, args api.Args) (api.Result, error) {
				r, err := perception.ParseRegion(args.String("region"))
				if err != nil {
					return api.Result{}, api.Wrap(api.KindInvalidArgument, err, "invalid region")
				}
				snap, err := capture(ctx, screen, r)
				if err != nil {
					return api.Result{}, err
				}
				needle := args.String("text")
				if strings.TrimSpace(needle) == "" {
					return api.Result{}, api.Errorf(api.KindInvalidArgument, "text to look for is empty")
				}
				matches, err := perception.FindText(snap, r, needle, args.Bool("case_sensitive"))
				if err != nil {
					return api.Result{}, err
				}
				return api.Result{Text: renderMatches(needle, r, matches)}, nil
			},
		},
		{
			Name:        "list_ui_elements",
			Description: "List the buttons, fields and other controls of the frontmost window.",
			Effect:      api.EffectRead,
			Handler: func(ctx context.Context, _ api.Args) (api.Result, error) {
				_, content, err := captureOne(ctx, screen, string(perception.RegionActiveWindow))
				if err != nil {
					return api.Result{}, err
				}
				if content.UIElementsErr != nil {
					return api.Result{}, content.UIElementsErr
				}
				if content.UIElements == nil {
					return api.Result{}, api.Errorf(api.KindExternalUnavailable,
						"UI element listing is not configured").AsPermanent()
				}
				return api.Result{Text: renderElements(content.UIElements)}, nil
			},
		},
	}
}

func capture(ctx context.Context, screen ScreenReader, r perception.Region) (*perception.Snapshot, error) {
	if screen == nil {
		return nil, api.Errorf(api.KindExternalUnavailable, "screen reading is not configured").AsPermanent()
	}
	return screen.CaptureRegions(ctx, r)
}

func captureOne(ctx context.Context, screen ScreenReader, name string) (perception.Region, perception.RegionContent, error) {
	r, err := perception.ParseRegion(name)
	if err != nil {
		return "", perception.RegionContent{}, api.Wrap(api.KindInvalidArgument, err, "invalid region")
	}
	snap, err := capture(ctx, screen, r)
	if err != nil {
		return "", perception.RegionContent{}, err
	}
	content, err := snap.Region(r)
	return r, content, err
}

func renderMatches(needle string, r perception.Region, matches []perception.Match) string {
	if len(matches) == 0 {
		return fmt.Sprintf("%q is not visible in the %s region.", needle, r)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %q on %d line(s) in the %s region:", needle, len(matches), r)
	for _, m := range matches {
		fmt.Fprintf(&sb, "\n- %s (%s)", m.Line, m.Hint)
	}
	return sb.String()
}

func renderElements(elements []perception.UIElement) string {
	if len(elements) == 0 {
		return "The frontmost window has no UI elements."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d UI elements:", len(elements))
	for _, el := range elements {
		fmt.Fprintf(&sb, "\n- %s", el.Role)
		if el.Name != "" {
			fmt.Fprintf(&sb, " %q", el.Name)
		}
		if !el.Bounds.Empty() {
			fmt.Fprintf(&sb, " at (%d, %d) %dx%d", el.Bounds.Min.X, el.Bounds.Min.Y, el.Bounds.Dx(), el.Bounds.Dy())
		}
	}
	return sb.String()
}
