package models

import (
	"fmt"
	"strconv"
	"strings"
)

// RowLabel returns the letter label for a zero-based row index.
// Rows past Z continue as AA, AB, ... like spreadsheet columns.
func RowLabel(row int) string {
	if row < 0 {
		return ""
	}
	var label []byte
	for n := row + 1; n > 0; n = (n - 1) / 26 {
		label = append([]byte{byte('A' + (n-1)%26)}, label...)
	}
	return string(label)
}

// CoordinateLabel joins the row letters and the 1-based column number (A1, B3, AA12)
func CoordinateLabel(row, col int) string {
	return RowLabel(row) + strconv.Itoa(col+1)
}

// ParseCoordinate splits a coordinate label back into zero-based row and column
func ParseCoordinate(label string) (row, col int, err error) {
	i := 0
	for i < len(label) && label[i] >= 'A' && label[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(label) {
		return 0, 0, fmt.Errorf("invalid coordinate %q", label)
	}

	for _, c := range label[:i] {
		row = row*26 + int(c-'A'+1)
	}
	number, err := strconv.Atoi(strings.TrimSpace(label[i:]))
	if err != nil || number < 1 {
		return 0, 0, fmt.Errorf("invalid coordinate %q", label)
	}
	return row - 1, number - 1, nil
}
