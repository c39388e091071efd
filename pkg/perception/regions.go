package perception

import (
	"image"
	"image/draw"
)

// Bounds returns the pixel rectangle of a region inside frame. For
// RegionActiveWindow, window is the frontmost window already scaled to
// frame pixels; an empty window falls back to the full frame.
func Bounds(r Region, frame image.Rectangle, window image.Rectangle) image.Rectangle {
	w, h := frame.Dx(), frame.Dy()
	x0, y0 := frame.Min.X, frame.Min.Y

	var rect image.Rectangle
	switch r {
	case RegionTop:
		rect = image.Rect(0, 0, w, h/3)
	case RegionBottom:
		rect = image.Rect(0, 2*h/3, w, h)
	case RegionLeft:
		rect = image.Rect(0, 0, w/2, h)
	case RegionRight:
		rect = image.Rect(w/2, 0, w, h)
	case RegionCenter:
		rect = image.Rect(w/4, h/4, 3*w/4, 3*h/4)
	case RegionBrowser:
		rect = image.Rect(0, 0, w, 7*h/10)
	case RegionActiveWindow:
		clipped := window.Intersect(frame)
		if clipped.Empty() {
			return frame
		}
		return clipped
	default:
		return frame
	}
	return rect.Add(image.Pt(x0, y0))
}

// scaleWindow converts window bounds from screen points to frame pixels.
func scaleWindow(b WindowBounds, frame image.Rectangle) image.Rectangle {
	if b.Window.Empty() {
		return image.Rectangle{}
	}
	if b.Screen.Empty() || b.Screen.Dx() == frame.Dx() {
		return b.Window.Add(frame.Min)
	}
	sx := float64(frame.Dx()) / float64(b.Screen.Dx())
	sy := float64(frame.Dy()) / float64(b.Screen.Dy())
	scaled := image.Rect(
		int(float64(b.Window.Min.X-b.Screen.Min.X)*sx),
		int(float64(b.Window.Min.Y-b.Screen.Min.Y)*sy),
		int(float64(b.Window.Max.X-b.Screen.Min.X)*sx),
		int(float64(b.Window.Max.Y-b.Screen.Min.Y)*sy),
	)
	return scaled.Add(frame.Min)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside rect.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}
