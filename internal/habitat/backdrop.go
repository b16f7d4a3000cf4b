package habitat

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Backdrop is a procedural texture of an environment for renderers.
// Cells hold shade values in [0, 1]; row-major, Height rows of Width cells.
type Backdrop struct {
	Kind   Kind        `json:"type"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Cells  [][]float64 `json:"cells"`
}

// BackdropConfig holds texture generation parameters.
type BackdropConfig struct {
	Width       int
	Height      int
	Seed        int64
	Octaves     int
	Frequency   float64
	Persistence float64
}

// DefaultBackdropConfig returns a grid matching the [0,100] habitat space at 2 units per cell.
func DefaultBackdropConfig() BackdropConfig {
	return BackdropConfig{
		Width:       50,
		Height:      50,
		Seed:        42,
		Octaves:     4,
		Frequency:   0.08,
		Persistence: 0.5,
	}
}

// GenerateBackdrop builds the texture for kind. Each kind gets its own noise
// layer and contrast: lush is patchy foliage, meadow is soft, arid is cracked.
func GenerateBackdrop(kind Kind, cfg BackdropConfig) Backdrop {
	noise := opensimplex.NewNormalized(cfg.Seed + int64(kind))

	contrast := 1.0
	switch kind {
	case KindLush:
		contrast = 1.4
	case KindMeadow:
		contrast = 0.6
	case KindArid:
		contrast = 1.1
	}

	cells := make([][]float64, cfg.Height)
	for y := 0; y < cfg.Height; y++ {
		row := make([]float64, cfg.Width)
		for x := 0; x < cfg.Width; x++ {
			v := octaveNoise(noise, float64(x), float64(y), cfg.Octaves, cfg.Frequency, cfg.Persistence)
			if kind == KindArid {
				// Ridged noise reads as dry cracks.
				v = 1 - math.Abs(2*v-1)
			}
			row[x] = clamp01(0.5 + (v-0.5)*contrast)
		}
		cells[y] = row
	}

	return Backdrop{Kind: kind, Width: cfg.Width, Height: cfg.Height, Cells: cells}
}

// At samples the backdrop at habitat coordinates in [0,100]².
func (b Backdrop) At(x, y float64) float64 {
	if b.Width == 0 || b.Height == 0 {
		return 0
	}
	cx := int(x / 100 * float64(b.Width))
	cy := int(y / 100 * float64(b.Height))
	cx = min(max(cx, 0), b.Width-1)
	cy = min(max(cy, 0), b.Height-1)
	return b.Cells[cy][cx]
}

// Shade mixes the environment color toward black by (1-v)*depth and returns hex.
func Shade(hex string, v, depth float64) string {
	var r, g, bl int
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &bl); err != nil {
		return hex
	}
	f := 1 - (1-clamp01(v))*depth
	return fmt.Sprintf("#%02x%02x%02x", int(float64(r)*f), int(float64(g)*f), int(float64(bl)*f))
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
