package analyzer

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
)

// Tile is one cell of the analysis grid. Gray shares pixels with the grid's
// grayscale buffer and must not be written to.
type Tile struct {
	Label string
	Row   int
	Col   int
	Rect  image.Rectangle
	Gray  *image.Gray
}

// Empty reports whether the tile covers no pixels
func (t Tile) Empty() bool {
	return t.Rect.Empty()
}

// Grid is the row-major partition of a cropped image
type Grid struct {
	Rows       int
	Cols       int
	TileWidth  int
	TileHeight int
	Tiles      []Tile
}

// At returns the tile at row, col
func (g *Grid) At(row, col int) Tile {
	return g.Tiles[row*g.Cols+col]
}

// VerticalSections derives the row count that keeps tiles close to square
func VerticalSections(width, height, horizontal int) int {
	if width <= 0 || height <= 0 || horizontal <= 0 {
		return 1
	}
	aspect := float64(width) / float64(height)
	return max(1, int(math.Round(float64(horizontal)/aspect)))
}

// Partition converts img to grayscale once and splits it into
// horizontal columns and a derived number of rows. Remainder pixels at the
// right and bottom edges are not covered by any tile.
func Partition(img image.Image, horizontal int) (*Grid, error) {
	if horizontal <= 0 {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("horizontal_sections must be positive (got %d)", horizontal), nil)
	}

	gray := ToGray(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	rows := VerticalSections(w, h, horizontal)
	g := &Grid{
		Rows:       rows,
		Cols:       horizontal,
		TileWidth:  w / horizontal,
		TileHeight: h / rows,
		Tiles:      make([]Tile, 0, rows*horizontal),
	}

	for row := 0; row < rows; row++ {
		for col := 0; col < horizontal; col++ {
			r := image.Rect(
				b.Min.X+col*g.TileWidth,
				b.Min.Y+row*g.TileHeight,
				b.Min.X+(col+1)*g.TileWidth,
				b.Min.Y+(row+1)*g.TileHeight,
			)
			g.Tiles = append(g.Tiles, Tile{
				Label: models.CoordinateLabel(row, col),
				Row:   row,
				Col:   col,
				Rect:  r,
				Gray:  gray.SubImage(r).(*image.Gray),
			})
		}
	}
	return g, nil
}

// ToGray converts img to 8-bit luma using ITU-R 601 weights
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}
