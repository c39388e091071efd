package perception

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Engine captures and reads the screen. Every call grabs a new frame.
type Engine struct {
	grabber Grabber
	ocr     Recognizer
	windows WindowLocator
	ax      Accessibility
}

// Option customizes an Engine.
type Option func(*Engine)

// WithWindowLocator enables real bounds for RegionActiveWindow.
func WithWindowLocator(w WindowLocator) Option {
	return func(e *Engine) { e.windows = w }
}

// WithAccessibility enables UI element listing.
func WithAccessibility(a Accessibility) Option {
	return func(e *Engine) { e.ax = a }
}

// NewEngine creates a perception engine.
func NewEngine(grabber Grabber, ocr Recognizer, opts ...Option) *Engine {
	e := &Engine{grabber: grabber, ocr: ocr}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Capture grabs a fresh frame and reads one region of it.
func (e *Engine) Capture(ctx context.Context, region Region) (*Snapshot, error) {
	return e.CaptureRegions(ctx, region)
}

// CaptureRegions grabs one fresh frame and reads each requested region of
// it, so all regions describe the same moment. OCR runs concurrently with
// the accessibility query; a failed accessibility query leaves UIElements
// nil and records the cause in UIElementsErr.
func (e *Engine) CaptureRegions(ctx context.Context, regions ...Region) (*Snapshot, error) {
	if len(regions) == 0 {
		regions = []Region{RegionFull}
	}
	regions = dedupe(regions)

	frame, err := e.grabber.Grab(ctx)
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	capturedAt := time.Now()
	frameRect := frame.Bounds()

	var window image.Rectangle
	if slices.Contains(regions, RegionActiveWindow) && e.windows != nil {
		b, err := e.windows.ActiveWindowBounds(ctx)
		if err != nil {
			slog.WarnContext(ctx, "Active window bounds unavailable, using full screen", "error", err)
		} else {
			window = scaleWindow(b, frameRect)
		}
	}

	rects := make([]image.Rectangle, len(regions))
	texts := make([]string, len(regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU() + 1)

	var (
		elements    []UIElement
		elementsErr error
	)
	if e.ax != nil && (slices.Contains(regions, RegionFull) || slices.Contains(regions, RegionActiveWindow)) {
		g.Go(func() error {
			els, err := e.ax.UIElements(gctx)
			if err != nil {
				slog.DebugContext(gctx, "UI elements unavailable", "error", err)
				elementsErr = err
				return nil
			}
			if els == nil {
				els = []UIElement{}
			}
			elements = els
			return nil
		})
	}

	for i, r := range regions {
		rects[i] = Bounds(r, frameRect, window)
		if rects[i].Empty() {
			continue
		}
		g.Go(func() error {
			text, err := e.ocr.Recognize(gctx, Crop(frame, rects[i]))
			if err != nil {
				return fmt.Errorf("text recognition of %s region: %w", r, err)
			}
			texts[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{CapturedAt: capturedAt, regions: make(map[Region]RegionContent, len(regions))}
	for i, r := range regions {
		content := RegionContent{
			Bounds:  rects[i],
			RawText: texts[i],
			Lines:   SplitLines(texts[i]),
		}
		if r == RegionFull || r == RegionActiveWindow {
			content.UIElements = elements
			content.UIElementsErr = elementsErr
		}
		snap.regions[r] = content
		snap.order = append(snap.order, r)
	}
	return snap, nil
}

// SplitLines splits OCR output into trimmed, non-empty lines.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func dedupe(regions []Region) []Region {
	out := make([]Region, 0, len(regions))
	for _, r := range regions {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
