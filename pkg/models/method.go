package models

import "strings"

// Method identifies one of the supported sharpness metrics
type Method string

const (
	// Laplacian measures the variance of the second derivative response
	Laplacian Method = "laplacian"
	// Sobel measures the mean first-derivative gradient magnitude
	Sobel Method = "sobel"
	// Tenengrad measures the mean of thresholded gradient magnitudes
	Tenengrad Method = "tenengrad"
)

// AllMethods returns the closed set of methods in canonical order
func AllMethods() []Method {
	return []Method{Laplacian, Sobel, Tenengrad}
}

// IsValid reports whether m belongs to the supported set
func (m Method) IsValid() bool {
	for _, known := range AllMethods() {
		if m == known {
			return true
		}
	}
	return false
}

// Title returns the capitalized method name used in reports and plot titles
func (m Method) Title() string {
	s := string(m)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Description is the human readable explanation printed in text reports
func (m Method) Description() string {
	switch m {
	case Laplacian:
		return "Measures local pixel intensity variations to detect edges.\n" +
			"Higher scores indicate sharper, more defined edges."
	case Sobel:
		return "Calculates intensity gradients in horizontal and vertical directions.\n" +
			"Higher scores indicate stronger edge definition and contrast."
	case Tenengrad:
		return "Uses thresholded Sobel gradients for noise-resistant edge detection.\n" +
			"Higher scores indicate better overall image sharpness."
	}
	return ""
}

// MethodNames converts methods to their string form
func MethodNames(methods []Method) []string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return names
}
