package heatmap

import (
	"image/color"
	"math"
)

// blues is the 9-class ColorBrewer "Blues" sequential scheme, light to dark
var blues = []color.NRGBA{
	{0xf7, 0xfb, 0xff, 0xff},
	{0xde, 0xeb, 0xf7, 0xff},
	{0xc6, 0xdb, 0xef, 0xff},
	{0x9e, 0xca, 0xe1, 0xff},
	{0x6b, 0xae, 0xd6, 0xff},
	{0x42, 0x92, 0xc6, 0xff},
	{0x21, 0x71, 0xb5, 0xff},
	{0x08, 0x51, 0x9c, 0xff},
	{0x08, 0x30, 0x6b, 0xff},
}

// Blues maps t in [0,1] onto the scheme by linear interpolation
func Blues(t float64) color.NRGBA {
	if math.IsNaN(t) || t <= 0 {
		return blues[0]
	}
	if t >= 1 {
		return blues[len(blues)-1]
	}
	pos := t * float64(len(blues)-1)
	i := int(pos)
	f := pos - float64(i)
	a, b := blues[i], blues[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f))
	}
	return color.NRGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 0xff}
}

// luminance is the relative luminance of c in [0,1]
func luminance(c color.NRGBA) float64 {
	lin := func(v uint8) float64 {
		s := float64(v) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// annotationColor picks white text on dark cells and near-black on light ones
func annotationColor(cell color.NRGBA) color.NRGBA {
	if luminance(cell) < 0.408 {
		return color.NRGBA{0xff, 0xff, 0xff, 0xff}
	}
	return color.NRGBA{0x26, 0x26, 0x26, 0xff}
}
