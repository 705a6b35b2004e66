package math

import "github.com/chewxy/math32"

// Color is a linear RGBA color with float components.
type Color struct {
	R, G, B, A float32
}

var (
	ColorTransparent = Color{}
	ColorBlack       = Color{0, 0, 0, 1}
	ColorWhite       = Color{1, 1, 1, 1}
)

func NewColor(r, g, b, a float32) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// Lerp interpolates between a and b.
func (c Color) Lerp(b Color, t float32) Color {
	return Color{
		R: c.R + (b.R-c.R)*t,
		G: c.G + (b.G-c.G)*t,
		B: c.B + (b.B-c.B)*t,
		A: c.A + (b.A-c.A)*t,
	}
}

func (c Color) Add(b Color) Color {
	return Color{c.R + b.R, c.G + b.G, c.B + b.B, c.A + b.A}
}

func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s, c.A * s}
}

// Get returns the i-th channel (0=R .. 3=A).
func (c Color) Get(i int) float32 {
	switch i {
	case 0:
		return c.R
	case 1:
		return c.G
	case 2:
		return c.B
	default:
		return c.A
	}
}

// Set replaces the i-th channel (0=R .. 3=A).
func (c *Color) Set(i int, v float32) {
	switch i {
	case 0:
		c.R = v
	case 1:
		c.G = v
	case 2:
		c.B = v
	default:
		c.A = v
	}
}

// LinearToSrgb gamma-encodes the color channels, alpha is kept.
func (c Color) LinearToSrgb() Color {
	return Color{LinearToSrgb(c.R), LinearToSrgb(c.G), LinearToSrgb(c.B), c.A}
}

// SrgbToLinear decodes gamma-encoded color channels, alpha is kept.
func (c Color) SrgbToLinear() Color {
	return Color{SrgbToLinear(c.R), SrgbToLinear(c.G), SrgbToLinear(c.B), c.A}
}

func LinearToSrgb(v float32) float32 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math32.Pow(v, 1.0/2.4) - 0.055
}

func SrgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}
