package processor

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// FitBox returns the largest size with orig's aspect ratio that fits inside
// maxW x maxH. A zero bound takes the original extent on that axis, and the
// result never exceeds orig.
func FitBox(orig image.Point, maxW, maxH int) image.Point {
	if maxW <= 0 {
		maxW = orig.X
	}
	if maxH <= 0 {
		maxH = orig.Y
	}
	if orig.X <= 0 || orig.Y <= 0 || (orig.X <= maxW && orig.Y <= maxH) {
		return orig
	}

	srcAspect := float64(orig.X) / float64(orig.Y)
	boxAspect := float64(maxW) / float64(maxH)

	var w, h int
	if srcAspect > boxAspect {
		w = maxW
		h = int(math.Round(float64(w) / srcAspect))
	} else {
		h = maxH
		w = int(math.Round(float64(h) * srcAspect))
	}

	return image.Pt(clamp(w, 1, maxW), clamp(h, 1, maxH))
}

// fit downscales img into the box with a Lanczos filter. It never upscales.
func fit(img image.Image, maxW, maxH int) image.Image {
	orig := img.Bounds().Size()
	box := FitBox(orig, maxW, maxH)
	if box == orig {
		return img
	}
	return imaging.Resize(img, box.X, box.Y, imaging.Lanczos)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
