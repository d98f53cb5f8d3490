package telemetry

import (
	"fmt"
	"math"
	"strings"
)

const (
	// barGain amplifies the fraction before it is mapped onto columns, so the
	// bar already spans barColumns at a fraction of 0.2.
	barGain    = 5
	barColumns = 70
)

// Fraction normalizes a raw reading to [0, 1].
func Fraction(raw uint16) float64 {
	return float64(raw) / FullScale
}

// Width returns the number of glyphs for fraction, rounded down.
func Width(fraction float64) int {
	scaled := fraction * barGain
	scaled *= barColumns

	return int(math.Floor(scaled))
}

// Renderer formats snapshots as "<fraction> <bar>" lines.
type Renderer struct {
	glyph string
}

func NewRenderer(glyph string) *Renderer {
	if glyph == "" {
		glyph = "#"
	}
	return &Renderer{glyph: glyph}
}

// Render returns the line for s without a trailing newline.
func (r *Renderer) Render(s Snapshot) string {
	fraction := Fraction(s.PressureFullscale)
	width := max(Width(fraction), 0)

	return fmt.Sprintf("%.4f %s", fraction, strings.Repeat(r.glyph, width))
}
