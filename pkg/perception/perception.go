// Package perception turns a fresh screenshot into structured text: regions
// are cropped from one frame, recognized with OCR, and searched line by
// line.
package perception

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

// Region names a deterministic crop of the screen.
type Region string

const (
	RegionFull         Region = "full"
	RegionTop          Region = "top"
	RegionBottom       Region = "bottom"
	RegionLeft         Region = "left"
	RegionRight        Region = "right"
	RegionCenter       Region = "center"
	RegionBrowser      Region = "browser"
	RegionActiveWindow Region = "active_window"
)

// Regions lists every region in a fixed order.
var Regions = []Region{
	RegionFull, RegionTop, RegionBottom, RegionLeft, RegionRight,
	RegionCenter, RegionBrowser, RegionActiveWindow,
}

// RegionNames returns the region names, for enum parameters.
func RegionNames() []string {
	names := make([]string, len(Regions))
	for i, r := range Regions {
		names[i] = string(r)
	}
	return names
}

// ParseRegion validates a region name.
func ParseRegion(s string) (Region, error) {
	for _, r := range Regions {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown screen region %q", s)
}

var (
	ErrRegionNotCaptured = errors.New("region was not captured in this snapshot")
	ErrUnavailable       = errors.New("not available on this system")
)

// UIElement is one accessibility element of the frontmost window.
type UIElement struct {
	Role  string          `json:"role"`
	Name  string          `json:"name,omitempty"`
	Value string          `json:"value,omitempty"`
	// Bounds is in screen points; empty when the element reports none.
	Bounds image.Rectangle `json:"bounds"`
}

// RegionContent is what was read from one region.
type RegionContent struct {
	Bounds  image.Rectangle
	RawText string
	Lines   []string
	// UIElements is nil when accessibility data was unavailable.
	UIElements []UIElement
	// UIElementsErr is why UIElements is nil, if the query was attempted.
	UIElementsErr error
}

// Snapshot is the result of one capture. It only answers for the regions
// it was captured for and is never reused across invocations.
type Snapshot struct {
	CapturedAt time.Time
	regions    map[Region]RegionContent
	order      []Region
}

// Region returns the content of a captured region.
func (s *Snapshot) Region(r Region) (RegionContent, error) {
	c, ok := s.regions[r]
	if !ok {
		return RegionContent{}, fmt.Errorf("%w: %s", ErrRegionNotCaptured, r)
	}
	return c, nil
}

// Captured lists the regions held by the snapshot in capture order.
func (s *Snapshot) Captured() []Region {
	return append([]Region(nil), s.order...)
}

// Match is one line that contains the searched text.
type Match struct {
	Region    Region
	LineIndex int // 0-based
	Line      string
	// Hint describes where on the region the line sits.
	Hint string
}

// FindText searches the lines of a captured region and returns every line
// containing needle, in line order.
func FindText(s *Snapshot, r Region, needle string, caseSensitive bool) ([]Match, error) {
	if strings.TrimSpace(needle) == "" {
		return nil, errors.New("search text is empty")
	}
	content, err := s.Region(r)
	if err != nil {
		return nil, err
	}

	want := needle
	if !caseSensitive {
		want = strings.ToLower(needle)
	}

	var matches []Match
	for i, line := range content.Lines {
		hay := line
		if !caseSensitive {
			hay = strings.ToLower(line)
		}
		if strings.Contains(hay, want) {
			matches = append(matches, Match{
				Region:    r,
				LineIndex: i,
				Line:      line,
				Hint:      positionHint(r, i, len(content.Lines)),
			})
		}
	}
	return matches, nil
}

func positionHint(r Region, index, total int) string {
	part := "middle"
	switch {
	case total <= 1:
		part = "only line"
	case index*3 < total:
		part = "upper part"
	case index*3 >= 2*total:
		part = "lower part"
	}
	return fmt.Sprintf("%s of %s region, line %d of %d", part, r, index+1, total)
}

// Grabber captures the whole screen.
type Grabber interface {
	Grab(ctx context.Context) (image.Image, error)
}

// Recognizer extracts text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// WindowBounds locates the frontmost window. Screen is the display size in
// the same coordinate space; it is used to scale to screenshot pixels.
type WindowBounds struct {
	Window image.Rectangle
	Screen image.Rectangle
}

// WindowLocator finds the frontmost window.
type WindowLocator interface {
	ActiveWindowBounds(ctx context.Context) (WindowBounds, error)
}

// Accessibility lists the UI elements of the frontmost window.
type Accessibility interface {
	UIElements(ctx context.Context) ([]UIElement, error)
}
