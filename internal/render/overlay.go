package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"go-lens-sharpness/pkg/models"
)

// labelScale picks a text scale readable at the size of the image region
func labelScale(regionHeight int) int {
	return min(8, max(1, regionHeight/160))
}

// TileOverlay copies a tile and stamps its coordinate and scores near the bottom-left corner
func TileOverlay(tile image.Image, result models.TileResult, methods []models.Method) *image.NRGBA {
	out := imaging.Clone(tile)
	b := out.Bounds()
	if b.Empty() {
		return out
	}

	scale := labelScale(b.Dy())
	_, lineH := TextSize("X", scale)
	step := lineH + 8*scale
	x := b.Min.X + 4*scale
	y := b.Max.Y - 4*scale

	ShadowLabel(out, "Coordinate: "+result.Coordinate, x, y, scale)
	y -= step
	for _, m := range methods {
		if score, ok := result.Score(m); ok {
			ShadowLabel(out, fmt.Sprintf("%s: %.1f", m, score), x, y, scale)
			y -= step
		}
	}
	return out
}

// Overview draws the analysis grid over the cropped image with each tile's
// coordinate and scores.
func Overview(cropped image.Image, rows, cols int, tiles []models.TileResult, methods []models.Method) *image.NRGBA {
	out := imaging.Clone(cropped)
	b := out.Bounds()
	w, h := b.Dx(), b.Dy()
	if rows < 1 || cols < 1 || w == 0 || h == 0 {
		return out
	}

	line := max(2, min(w, h)/500)
	for i := 1; i <= cols; i++ {
		VLine(out, b.Min.X+w*i/cols-line/2, b.Min.Y, b.Max.Y, line, color.White)
	}
	for i := 1; i <= rows; i++ {
		HLine(out, b.Min.X, b.Max.X, b.Min.Y+h*i/rows-line/2, line, color.White)
	}

	cellH := h / rows
	coordScale := labelScale(cellH) + 1
	scoreScale := labelScale(cellH)
	_, scoreH := TextSize("X", scoreScale)

	for _, t := range tiles {
		row, col, err := models.ParseCoordinate(t.Coordinate)
		if err != nil || row >= rows || col >= cols {
			continue
		}
		x := b.Min.X + w*col/cols + 4*coordScale
		y := b.Min.Y + h*row/rows + cellH/2

		ShadowLabel(out, t.Coordinate, x, y, coordScale)
		offset := scoreH + 8*scoreScale
		for _, m := range methods {
			if score, ok := t.Score(m); ok {
				ShadowLabel(out, fmt.Sprintf("%s: %.1f", m, score), x, y+offset, scoreScale)
				offset += scoreH + 8*scoreScale
			}
		}
	}
	return out
}
