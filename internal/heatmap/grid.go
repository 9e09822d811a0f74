package heatmap

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	apperrors "go-lens-sharpness/internal/errors"
	"go-lens-sharpness/pkg/models"
)

// Grid holds one method's normalized scores laid out like the test chart:
// rows top to bottom, columns left to right.
type Grid struct {
	Method    models.Method
	Values    [][]float64
	RowLabels []string
	ColLabels []string
}

// Stats summarises the grid values
type Stats struct {
	Min, Max, Mean float64
}

// FromResult rebuilds the grid of method m from a stored result
func FromResult(result *models.AnalysisResult, m models.Method) (*Grid, error) {
	if len(result.Tiles) == 0 {
		return nil, apperrors.NewValidationError("analysis result has no tiles", nil)
	}

	type cell struct {
		row, col int
		value    float64
	}
	cells := make([]cell, 0, len(result.Tiles))
	seen := make(map[string]bool, len(result.Tiles))
	rows, cols := 0, 0
	for _, t := range result.Tiles {
		if seen[t.Coordinate] {
			return nil, apperrors.NewValidationError("duplicate tile coordinate "+t.Coordinate, nil)
		}
		seen[t.Coordinate] = true
		row, col, err := models.ParseCoordinate(t.Coordinate)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid tile coordinate", err)
		}
		v, ok := t.Score(m)
		if !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("tile %s has no %s score", t.Coordinate, m), nil)
		}
		cells = append(cells, cell{row, col, v})
		rows, cols = max(rows, row+1), max(cols, col+1)
	}
	if len(cells) != rows*cols {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("tiles do not form a complete %dx%d grid", rows, cols), nil)
	}

	g := New(m, rows, cols)
	for _, c := range cells {
		g.Values[c.row][c.col] = c.value
	}
	return g, nil
}

// New returns a zero-filled grid with chart-style labels
func New(m models.Method, rows, cols int) *Grid {
	g := &Grid{
		Method:    m,
		Values:    make([][]float64, rows),
		RowLabels: make([]string, rows),
		ColLabels: make([]string, cols),
	}
	for r := range g.Values {
		g.Values[r] = make([]float64, cols)
		g.RowLabels[r] = models.RowLabel(r)
	}
	for c := range g.ColLabels {
		g.ColLabels[c] = strconv.Itoa(c + 1)
	}
	return g
}

// Rows returns the number of grid rows
func (g *Grid) Rows() int { return len(g.Values) }

// Cols returns the number of grid columns
func (g *Grid) Cols() int {
	if len(g.Values) == 0 {
		return 0
	}
	return len(g.Values[0])
}

// Stats returns min, max and mean over all cells
func (g *Grid) Stats() Stats {
	flat := make([]float64, 0, g.Rows()*g.Cols())
	for _, row := range g.Values {
		flat = append(flat, row...)
	}
	if len(flat) == 0 {
		return Stats{}
	}
	return Stats{Min: floats.Min(flat), Max: floats.Max(flat), Mean: stat.Mean(flat, nil)}
}
