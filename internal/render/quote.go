package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
)

const (
	quoteWidth   = 900
	quoteMargin  = 60.0
	quoteAvatar  = 96.0
	quoteTextPt  = 34.0
	quoteNamePt  = 28.0
	quoteLineGap = 1.5
)

var (
	quoteBG   = color.RGBA{R: 24, G: 26, B: 32, A: 255}
	quoteFG   = color.RGBA{R: 235, G: 235, B: 240, A: 255}
	quoteDim  = color.RGBA{R: 150, G: 155, B: 165, A: 255}
	textFace  = mustFace(goitalic.TTF, quoteTextPt)
	nameFace  = mustFace(gobold.TTF, quoteNamePt)
)

func mustFace(ttf []byte, size float64) font.Face {
	f, err := truetype.Parse(ttf)
	if err != nil {
		panic(err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: size})
}

// Quote draws a quote card: the text in large italics, the author's name
// below, and the avatar on the left when provided. Returns a PNG.
func Quote(text, author string, avatar image.Image) ([]byte, error) {
	// measure pass to size the canvas
	measure := gg.NewContext(quoteWidth, 1)
	measure.SetFontFace(textFace)
	textX := quoteMargin
	if avatar != nil {
		textX += quoteAvatar + quoteMargin/2
	}
	textWidth := float64(quoteWidth) - textX - quoteMargin
	lines := measure.WordWrap("“"+text+"”", textWidth)
	lineHeight := quoteTextPt * quoteLineGap
	textHeight := float64(len(lines)) * lineHeight

	height := int(quoteMargin*2 + textHeight + quoteNamePt*2)
	if min := int(quoteMargin*2 + quoteAvatar); height < min {
		height = min
	}

	dc := gg.NewContext(quoteWidth, height)
	dc.SetColor(quoteBG)
	dc.Clear()

	if avatar != nil {
		cx := quoteMargin + quoteAvatar/2
		cy := float64(height) / 2
		dc.Push()
		dc.DrawCircle(cx, cy, quoteAvatar/2)
		dc.Clip()
		scaled := scaleToSquare(avatar, int(quoteAvatar))
		dc.DrawImage(scaled, int(cx-quoteAvatar/2), int(cy-quoteAvatar/2))
		dc.Pop()
	}

	dc.SetFontFace(textFace)
	dc.SetColor(quoteFG)
	y := quoteMargin + quoteTextPt
	for _, line := range lines {
		dc.DrawString(line, textX, y)
		y += lineHeight
	}

	dc.SetFontFace(nameFace)
	dc.SetColor(quoteDim)
	dc.DrawString("— "+author, textX, y+quoteNamePt/2)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode quote card: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleToSquare resizes img to a side x side square with nearest sampling.
func scaleToSquare(img image.Image, side int) image.Image {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, side, side))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			sx := b.Min.X + x*b.Dx()/side
			sy := b.Min.Y + y*b.Dy()/side
			out.Set(x, y, img.At(sx, sy))
		}
	}
	return out
}
