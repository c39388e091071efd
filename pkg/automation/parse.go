package automation

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"strconv"
	"strings"

	"friday/pkg/perception"
)

// parseInts reads a comma or whitespace separated list of integers, as
// printed by AppleScript lists and xdotool.
func parseInts(s string, n int) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '{' || r == '}'
	})
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d numbers, got %q", n, s)
	}
	out := make([]int, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q in %q", f, s)
		}
		out[i] = int(v)
	}
	return out, nil
}

// parseRect reads "x, y, width, height".
func parseRect(s string) (image.Rectangle, error) {
	v, err := parseInts(s, 4)
	if err != nil {
		return image.Rectangle{}, err
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// parseCorners reads "x0, y0, x1, y1".
func parseCorners(s string) (image.Rectangle, error) {
	v, err := parseInts(s, 4)
	if err != nil {
		return image.Rectangle{}, err
	}
	return image.Rect(v[0], v[1], v[2], v[3]), nil
}

// parseUIElements reads one element per line as
// "role|name|x|y|width|height". Position and size may be blank.
func parseUIElements(out string) []perception.UIElement {
	elements := []perception.UIElement{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		el := perception.UIElement{Role: parts[0], Name: parts[1]}
		if el.Name == "missing value" {
			el.Name = ""
		}
		if len(parts) == 6 {
			if r, err := parseRect(strings.Join(parts[2:], ",")); err == nil {
				el.Bounds = r
			}
		}
		elements = append(elements, el)
	}
	return elements
}

// parseXdotoolGeometry reads `xdotool getwindowgeometry --shell` output.
func parseXdotoolGeometry(out string) (image.Rectangle, error) {
	vals := map[string]int{}
	for _, line := range strings.Split(out, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		vals[k] = n
	}
	for _, k := range []string{"X", "Y", "WIDTH", "HEIGHT"} {
		if _, ok := vals[k]; !ok {
			return image.Rectangle{}, fmt.Errorf("xdotool output is missing %s", k)
		}
	}
	return image.Rect(vals["X"], vals["Y"], vals["X"]+vals["WIDTH"], vals["Y"]+vals["HEIGHT"]), nil
}

// parseRadioState understands networksetup ("Wi-Fi Power (en0): On"),
// nmcli ("enabled") and netsh ("Admin State: Enabled").
func parseRadioState(out string) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(out))
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = strings.TrimSpace(s[i+1:])
	}
	switch s {
	case "on", "enabled":
		return true, nil
	case "off", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized radio state %q", out)
}

// netshAdminState extracts the admin state line from
// `netsh interface show interface name=...`.
func netshAdminState(out string) (bool, error) {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "admin state") {
			return parseRadioState(line)
		}
	}
	return false, fmt.Errorf("no admin state in netsh output")
}

// grabToFile runs capture with a temporary PNG path and decodes the
// result.
func grabToFile(capture func(path string) error) (image.Image, error) {
	f, err := os.CreateTemp("", "friday-screen-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create screenshot file: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	if err := capture(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read screenshot file: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return img, nil
}
