package qc

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
)

// SaveCropBox writes frame as a PNG with the LED crop rectangle outlined.
// Bounds are pixel coordinates into the frame; the rectangle is clamped to
// the frame extent.
func SaveCropBox(path string, frame image.Image, left, right, top, bottom int) error {
	b := frame.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, frame, b.Min, draw.Src)

	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	left = clamp(left, b.Min.X, b.Max.X-1)
	right = clamp(right, b.Min.X, b.Max.X-1)
	top = clamp(top, b.Min.Y, b.Max.Y-1)
	bottom = clamp(bottom, b.Min.Y, b.Max.Y-1)

	const border = 2
	for x := left; x <= right; x++ {
		for w := 0; w < border; w++ {
			out.Set(x, clamp(top+w, b.Min.Y, b.Max.Y-1), markerColor)
			out.Set(x, clamp(bottom-w, b.Min.Y, b.Max.Y-1), markerColor)
		}
	}
	for y := top; y <= bottom; y++ {
		for w := 0; w < border; w++ {
			out.Set(clamp(left+w, b.Min.X, b.Max.X-1), y, markerColor)
			out.Set(clamp(right-w, b.Min.X, b.Max.X-1), y, markerColor)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create crop-box image %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("encode crop-box image %s: %w", path, err)
	}
	return nil
}
