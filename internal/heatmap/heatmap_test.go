package heatmap

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
)

func sampleResult() *models.AnalysisResult {
	result := &models.AnalysisResult{OriginalFilename: "lens_f2.8.jpg"}
	for row := 0; row < 2; row++ {
		for col := 0; col < 3; col++ {
			result.Tiles = append(result.Tiles, models.TileResult{
				Coordinate: models.CoordinateLabel(row, col),
				Scores:     map[string]float64{"sobel": float64(10*row + col + 1)},
			})
		}
	}
	return result
}

func TestFromResult(t *testing.T) {
	g, err := FromResult(sampleResult(), models.Sobel)
	require.NoError(t, err)

	assert.Equal(t, 2, g.Rows())
	assert.Equal(t, 3, g.Cols())
	assert.Equal(t, []string{"A", "B"}, g.RowLabels)
	assert.Equal(t, []string{"1", "2", "3"}, g.ColLabels)
	assert.Equal(t, [][]float64{{1, 2, 3}, {11, 12, 13}}, g.Values)

	stats := g.Stats()
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 13.0, stats.Max)
	assert.InDelta(t, 7.0, stats.Mean, 1e-9)
}

func TestFromResult_Errors(t *testing.T) {
	_, err := FromResult(sampleResult(), models.Laplacian)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	incomplete := sampleResult()
	incomplete.Tiles = incomplete.Tiles[:5]
	_, err = FromResult(incomplete, models.Sobel)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	duplicate := sampleResult()
	duplicate.Tiles[5].Coordinate = "A1"
	_, err = FromResult(duplicate, models.Sobel)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = FromResult(&models.AnalysisResult{}, models.Sobel)
	assert.Error(t, err)
}

func TestBlues(t *testing.T) {
	assert.Equal(t, color.NRGBA{0xf7, 0xfb, 0xff, 0xff}, Blues(0))
	assert.Equal(t, color.NRGBA{0x08, 0x30, 0x6b, 0xff}, Blues(1))
	assert.Equal(t, Blues(0), Blues(-3))
	assert.Equal(t, color.NRGBA{0x6b, 0xae, 0xd6, 0xff}, Blues(0.5))

	// darker as t grows
	prev := luminance(Blues(0))
	for i := 1; i <= 20; i++ {
		l := luminance(Blues(float64(i) / 20))
		assert.LessOrEqual(t, l, prev)
		prev = l
	}
}

func TestAnnotationColor(t *testing.T) {
	assert.Equal(t, uint8(0xff), annotationColor(Blues(1)).R)
	assert.Equal(t, uint8(0x26), annotationColor(Blues(0)).R)
}

func TestRender_SizeIsThreeByTwo(t *testing.T) {
	g, err := FromResult(sampleResult(), models.Sobel)
	require.NoError(t, err)

	img, err := NewRenderer(0).Render(g, "charts/lens_f2.8.jpg")
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
	assert.Equal(t, DefaultHeight, img.Bounds().Dy())

	small, err := NewRenderer(600).Render(g, "x.jpg")
	require.NoError(t, err)
	assert.Equal(t, 600, small.Bounds().Dx())
	assert.Equal(t, 400, small.Bounds().Dy())
}

func TestRender_Deterministic(t *testing.T) {
	g, err := FromResult(sampleResult(), models.Sobel)
	require.NoError(t, err)
	r := NewRenderer(900)

	first, err := r.RenderPNG(g, "lens_f2.8.jpg")
	require.NoError(t, err)
	second, err := r.RenderPNG(g, "lens_f2.8.jpg")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second))

	decoded, err := png.Decode(bytes.NewReader(first))
	require.NoError(t, err)
	assert.Equal(t, 900, decoded.Bounds().Dx())
	assert.Equal(t, 600, decoded.Bounds().Dy())
}

func TestRender_CellColoursFollowValues(t *testing.T) {
	g, err := FromResult(sampleResult(), models.Sobel)
	require.NoError(t, err)

	img, err := NewRenderer(0).Render(g, "lens.jpg")
	require.NoError(t, err)

	// sample near the top-left corner of the min (A1) and max (B3) cells
	W, H := img.Bounds().Dx(), img.Bounds().Dy()
	left, top := W*9/100, H*11/100
	cellW := (W*82/100 - left) / 3
	cellH := (H*83/100 - top) / 2

	minCell := img.NRGBAAt(left+3, top+3)
	maxCell := img.NRGBAAt(left+2*cellW+3, top+cellH+3)
	assert.Equal(t, Blues(0), minCell)
	assert.Equal(t, Blues(1), maxCell)
}

func TestRender_Errors(t *testing.T) {
	r := NewRenderer(0)

	_, err := r.Render(New(models.Sobel, 0, 0), "x")
	assert.Error(t, err)

	bad := New(models.Sobel, 2, 2)
	bad.RowLabels = bad.RowLabels[:1]
	_, err = r.Render(bad, "x")
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Lens Sharpness Analysis - Tenengrad", Title(New(models.Tenengrad, 1, 1)))
}
