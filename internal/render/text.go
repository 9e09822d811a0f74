// Package render draws labels, boxes and lines onto raster images.
// Text uses the 7x13 bitmap face scaled by whole multiples so output is
// identical on every platform.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var face = basicfont.Face7x13

// TextSize returns the pixel size of text drawn at scale
func TextSize(text string, scale int) (w, h int) {
	if scale < 1 {
		scale = 1
	}
	adv := font.MeasureString(face, text)
	return adv.Ceil() * scale, face.Height * scale
}

// textMask renders text once at native size and scales it up
func textMask(text string, scale int, c color.Color) *image.NRGBA {
	w, h := TextSize(text, 1)
	if w == 0 {
		return nil
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)
	if scale <= 1 {
		return canvas
	}
	return imaging.Resize(canvas, w*scale, h*scale, imaging.NearestNeighbor)
}

// DrawText draws text with its top-left corner at (x, y)
func DrawText(dst draw.Image, text string, x, y, scale int, c color.Color) {
	m := textMask(text, scale, c)
	if m == nil {
		return
	}
	draw.Draw(dst, m.Bounds().Add(image.Pt(x, y)), m, image.Point{}, draw.Over)
}

// DrawTextCentered draws text centred on (cx, cy)
func DrawTextCentered(dst draw.Image, text string, cx, cy, scale int, c color.Color) {
	w, h := TextSize(text, scale)
	DrawText(dst, text, cx-w/2, cy-h/2, scale, c)
}

// DrawTextVertical draws text rotated a quarter turn counter-clockwise, centred on (cx, cy)
func DrawTextVertical(dst draw.Image, text string, cx, cy, scale int, c color.Color) {
	m := textMask(text, scale, c)
	if m == nil {
		return
	}
	rotated := imaging.Rotate90(m)
	b := rotated.Bounds()
	at := image.Pt(cx-b.Dx()/2, cy-b.Dy()/2)
	draw.Draw(dst, b.Add(at), rotated, image.Point{}, draw.Over)
}

// FillRect paints r with c, blending when c is translucent
func FillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// HLine draws a horizontal line of the given thickness starting at y
func HLine(dst draw.Image, x0, x1, y, thickness int, c color.Color) {
	FillRect(dst, image.Rect(x0, y, x1, y+thickness), c)
}

// VLine draws a vertical line of the given thickness starting at x
func VLine(dst draw.Image, x, y0, y1, thickness int, c color.Color) {
	FillRect(dst, image.Rect(x, y0, x+thickness, y1), c)
}

// ShadowLabel draws white text on a half-transparent black box.
// (x, y) is the bottom-left corner of the text.
func ShadowLabel(dst draw.Image, text string, x, y, scale int) {
	w, h := TextSize(text, scale)
	pad := 3 * scale
	FillRect(dst, image.Rect(x-pad, y-h-pad, x+w+pad, y+pad), color.NRGBA{A: 128})
	DrawText(dst, text, x, y-h, scale, color.White)
}
