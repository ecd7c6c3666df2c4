package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"
)

const (
	distortAmplitude = 14.0
	distortPeriod    = 48.0
	distortQuality   = 85
)

// Distort warps a photo with a horizontal and vertical sine displacement and
// re-encodes it as JPEG. Pixels sampled outside the source are clamped to
// the nearest edge.
func Distort(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx := x + int(distortAmplitude*math.Sin(float64(y)/distortPeriod))
			sy := y + int(distortAmplitude*math.Sin(float64(x)/distortPeriod))
			sx = clamp(sx, 0, w-1)
			sy = clamp(sy, 0, h-1)
			out.Set(x, y, src.At(bounds.Min.X+sx, bounds.Min.Y+sy))
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: distortQuality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
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
