// Package terrain classifies world coordinates as navigable by sampling a
// coloured map image stretched over rectangular world bounds.
package terrain

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrInvalidBounds is returned for empty or inverted world bounds.
var ErrInvalidBounds = errors.New("invalid world bounds")

// Bounds is the world rectangle the map image covers.
type Bounds struct {
	Min, Max r2.Vec
}

// Contains reports whether p lies inside b, edges included.
func (b Bounds) Contains(p r2.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X && p.Y >= b.Min.Y && p.Y <= b.Max.Y
}

func (b Bounds) validate() error {
	for _, v := range []float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidBounds)
		}
	}
	if b.Max.X <= b.Min.X || b.Max.Y <= b.Min.Y {
		return fmt.Errorf("%w: min (%g,%g) must be below max (%g,%g)", ErrInvalidBounds, b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	}
	return nil
}

// ParseBounds reads "minX,minY,maxX,maxY".
func ParseBounds(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("%w: want minX,minY,maxX,maxY, got %q", ErrInvalidBounds, s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("%w: %v", ErrInvalidBounds, err)
		}
		vals[i] = v
	}
	b := Bounds{Min: r2.Vec{X: vals[0], Y: vals[1]}, Max: r2.Vec{X: vals[2], Y: vals[3]}}
	return b, b.validate()
}

// Classifier decides whether a colour is water. Channels are in [0,1],
// not alpha-premultiplied.
type Classifier interface {
	IsWater(r, g, b float64) bool
}

// BlueDominance treats a pixel as water when blue exceeds both red and green
// by Offset and is at least MinBlue.
type BlueDominance struct {
	Offset  float64
	MinBlue float64
}

// DefaultClassifier suits painted maps with blue seas.
var DefaultClassifier = BlueDominance{Offset: 0.05, MinBlue: 0.2}

func (c BlueDominance) IsWater(r, g, b float64) bool {
	return b > g+c.Offset && b > r+c.Offset && b >= c.MinBlue
}

// Threshold treats a pixel as water when blue is above MinBlue and green is
// below MaxGreen. It suits flat two-colour masks.
type Threshold struct {
	MinBlue  float64
	MaxGreen float64
}

func (c Threshold) IsWater(_, g, b float64) bool {
	return b > c.MinBlue && g < c.MaxGreen
}

// ParseClassifier maps "blue-dominance" or "threshold" onto a classifier
// with default parameters.
func ParseClassifier(name string) (Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "blue-dominance":
		return DefaultClassifier, nil
	case "threshold":
		return Threshold{MinBlue: 0.4, MaxGreen: 0.3}, nil
	default:
		return nil, fmt.Errorf("unknown terrain classifier %q", name)
	}
}

// ColorMask answers navigability queries from a pre-classified pixel grid.
// Points outside the bounds are navigable so vessels can leave the map.
// A ColorMask is immutable and safe for concurrent use.
type ColorMask struct {
	bounds        Bounds
	width, height int
	water         []bool // row-major, row 0 is the top of the image
}

// NewColorMask classifies every pixel of img once.
func NewColorMask(img image.Image, bounds Bounds, cls Classifier) (*ColorMask, error) {
	if err := bounds.validate(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, errors.New("nil terrain image")
	}
	if cls == nil {
		cls = DefaultClassifier
	}

	rect := img.Bounds()
	w, h := rect.Dx(), rect.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty terrain image")
	}

	water := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(rect.Min.X+x, rect.Min.Y+y)).(color.NRGBA)
			water[y*w+x] = cls.IsWater(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255)
		}
	}
	return &ColorMask{bounds: bounds, width: w, height: h, water: water}, nil
}

// LoadColorMask decodes a PNG and classifies it.
func LoadColorMask(r io.Reader, bounds Bounds, cls Classifier) (*ColorMask, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode terrain png: %w", err)
	}
	return NewColorMask(img, bounds, cls)
}

// IsNavigable samples the nearest pixel. World +Y points up the image.
func (m *ColorMask) IsNavigable(p r2.Vec) bool {
	if m == nil || !m.bounds.Contains(p) {
		return true
	}
	u := (p.X - m.bounds.Min.X) / (m.bounds.Max.X - m.bounds.Min.X)
	v := (p.Y - m.bounds.Min.Y) / (m.bounds.Max.Y - m.bounds.Min.Y)

	px := clamp(int(math.Round(u*float64(m.width-1))), 0, m.width-1)
	py := clamp(int(math.Round(v*float64(m.height-1))), 0, m.height-1)
	row := m.height - 1 - py
	return m.water[row*m.width+px]
}

// Bounds returns the world rectangle covered by the mask.
func (m *ColorMask) Bounds() Bounds { return m.bounds }

// WaterFraction returns the share of water pixels, for start-up logging.
func (m *ColorMask) WaterFraction() float64 {
	n := 0
	for _, w := range m.water {
		if w {
			n++
		}
	}
	return float64(n) / float64(len(m.water))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
