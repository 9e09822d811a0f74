// Package heatmap renders per-method score grids as annotated PNG heatmaps
// laid out like the test chart.
package heatmap

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/internal/render"
)

const (
	DefaultWidth  = 1800
	DefaultHeight = 1200
	minWidth      = 300
)

var (
	background = color.NRGBA{0xff, 0xff, 0xff, 0xff}
	ink        = color.NRGBA{0x26, 0x26, 0x26, 0xff}
	subtle     = color.NRGBA{0x59, 0x59, 0x59, 0xff}
)

// Renderer draws heatmaps on a fixed 3:2 canvas
type Renderer struct {
	width, height int
}

// NewRenderer returns a renderer for the given canvas width. The height is
// always two thirds of the width; widths below 300 use the default size.
func NewRenderer(width int) *Renderer {
	if width < minWidth {
		width = DefaultWidth
	}
	return &Renderer{width: width, height: width * 2 / 3}
}

// Size returns the canvas dimensions
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Title is the heading drawn above the heatmap of the grid's method
func Title(g *Grid) string {
	return "Lens Sharpness Analysis - " + g.Method.Title()
}

// Render draws grid. source names the analysed image in the footer.
func (r *Renderer) Render(g *Grid, source string) (*image.NRGBA, error) {
	rows, cols := g.Rows(), g.Cols()
	if rows == 0 || cols == 0 {
		return nil, apperrors.NewValidationError("heatmap grid is empty", nil)
	}
	if len(g.RowLabels) != rows || len(g.ColLabels) != cols {
		return nil, apperrors.NewValidationError("heatmap labels do not match grid size", nil)
	}

	W, H := r.width, r.height
	canvas := image.NewNRGBA(image.Rect(0, 0, W, H))
	render.FillRect(canvas, canvas.Bounds(), background)

	base := max(1, W/900)
	titleScale := base + 1

	// plot area, leaving room for title, axes, colorbar and footer
	left := W * 9 / 100
	right := W * 82 / 100
	top := H * 11 / 100
	bottom := H * 83 / 100

	cellW := (right - left) / cols
	cellH := (bottom - top) / rows
	if cellW < 1 || cellH < 1 {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("%dx%d grid does not fit a %dx%d heatmap", rows, cols, W, H), nil)
	}
	plot := image.Rect(left, top, left+cellW*cols, top+cellH*rows)

	stats := g.Stats()
	span := stats.Max - stats.Min
	norm := func(v float64) float64 {
		if span <= 0 {
			return 0
		}
		return (v - stats.Min) / span
	}

	annotScale := fitScale(cellW, cellH, "100.0", 3*base)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			v := g.Values[row][col]
			fill := Blues(norm(v))
			cell := image.Rect(plot.Min.X+col*cellW, plot.Min.Y+row*cellH,
				plot.Min.X+(col+1)*cellW, plot.Min.Y+(row+1)*cellH)
			render.FillRect(canvas, cell, fill)
			render.DrawTextCentered(canvas, fmt.Sprintf("%.1f", v),
				(cell.Min.X+cell.Max.X)/2, (cell.Min.Y+cell.Max.Y)/2, annotScale, annotationColor(fill))
		}
	}

	// tick labels
	tickScale := base
	for row, label := range g.RowLabels {
		w, _ := render.TextSize(label, tickScale)
		render.DrawTextCentered(canvas, label, plot.Min.X-w/2-8*base, plot.Min.Y+row*cellH+cellH/2, tickScale, ink)
	}
	_, tickH := render.TextSize("0", tickScale)
	for col, label := range g.ColLabels {
		render.DrawTextCentered(canvas, label, plot.Min.X+col*cellW+cellW/2, plot.Max.Y+tickH/2+8*base, tickScale, ink)
	}

	// axis labels and title
	render.DrawTextCentered(canvas, "Horizontal Position (Left to Right)",
		(plot.Min.X+plot.Max.X)/2, plot.Max.Y+2*tickH+20*base, tickScale, ink)
	render.DrawTextVertical(canvas, "Vertical Position (Center to Edge)",
		left/3, (plot.Min.Y+plot.Max.Y)/2, tickScale, ink)
	render.DrawTextCentered(canvas, Title(g), (plot.Min.X+plot.Max.X)/2, top/2, titleScale, ink)

	r.drawColorbar(canvas, g, plot, stats, base)

	// footer
	footerY := H - 4*base - tickH
	statsText := fmt.Sprintf("Min: %.1f  Max: %.1f  Mean: %.1f", stats.Min, stats.Max, stats.Mean)
	sw, _ := render.TextSize(statsText, base)
	render.DrawText(canvas, statsText, W-sw-8*base, footerY, base, subtle)
	render.DrawText(canvas, sourceLabel(source), 8*base, footerY, base, subtle)

	return canvas, nil
}

func (r *Renderer) drawColorbar(canvas *image.NRGBA, g *Grid, plot image.Rectangle, stats Stats, base int) {
	barW := max(12, r.width/60)
	x0 := plot.Max.X + r.width*3/100
	bar := image.Rect(x0, plot.Min.Y, x0+barW, plot.Max.Y)

	h := bar.Dy()
	for y := 0; y < h; y++ {
		t := 1 - float64(y)/float64(max(1, h-1))
		render.HLine(canvas, bar.Min.X, bar.Max.X, bar.Min.Y+y, 1, Blues(t))
	}
	render.FillRect(canvas, image.Rect(bar.Min.X, bar.Min.Y, bar.Max.X, bar.Min.Y+1), ink)
	render.FillRect(canvas, image.Rect(bar.Min.X, bar.Max.Y-1, bar.Max.X, bar.Max.Y), ink)

	_, th := render.TextSize("0", base)
	ticks := []struct {
		y int
		v float64
	}{
		{bar.Min.Y, stats.Max},
		{(bar.Min.Y + bar.Max.Y) / 2, (stats.Min + stats.Max) / 2},
		{bar.Max.Y - 1, stats.Min},
	}
	for _, tk := range ticks {
		render.HLine(canvas, bar.Max.X, bar.Max.X+4*base, tk.y, 1, ink)
		render.DrawText(canvas, fmt.Sprintf("%.1f", tk.v), bar.Max.X+6*base, tk.y-th/2, base, ink)
	}

	labelX := bar.Max.X + 6*base + 6*7*base + th
	render.DrawTextVertical(canvas, g.Method.Title()+" Score", labelX, (bar.Min.Y+bar.Max.Y)/2, base, ink)
}

// fitScale returns the largest scale up to limit at which text fits the cell
func fitScale(cellW, cellH int, text string, limit int) int {
	for s := limit; s > 1; s-- {
		w, h := render.TextSize(text, s)
		if w <= cellW*9/10 && h <= cellH*6/10 {
			return s
		}
	}
	return 1
}

func sourceLabel(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RenderPNG renders grid and encodes it as PNG
func (r *Renderer) RenderPNG(g *Grid, source string) ([]byte, error) {
	img, err := r.Render(g, source)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, apperrors.NewInternalError("failed to encode heatmap", err)
	}
	return buf.Bytes(), nil
}
