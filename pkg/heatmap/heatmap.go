// Package heatmap rasterizes the selections of one question into an overlay
// image: an overlap heatmap in two colour ramps, or plain selection outlines.
package heatmap

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/menta2k/annotation-review/pkg/rules"
	"github.com/menta2k/annotation-review/pkg/types"
)

// Mode selects how an overlay is drawn
type Mode string

const (
	ModeSelections Mode = "selections"
	ModeHeatmap    Mode = "heatmap"
	ModeGraduated  Mode = "graduated"
)

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSelections, ModeHeatmap, ModeGraduated:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown view mode %q (use selections, heatmap or graduated)", s)
	}
}

// Config holds the drawing constants of a Rasterizer
type Config struct {
	MaxOpacity     float64
	HeatColor      color.NRGBA
	HueStart       float64
	HueEnd         float64
	SelectionColor color.NRGBA
	ActiveColor    color.NRGBA
	DraftColor     color.NRGBA
	FillOpacity    float64
	StrokeWidth    int
}

// DefaultConfig returns the dashboard's drawing constants
func DefaultConfig() Config {
	return Config{
		MaxOpacity:     0.8,
		HeatColor:      color.NRGBA{66, 78, 120, 255},
		HueStart:       60,
		HueEnd:         300,
		SelectionColor: color.NRGBA{66, 78, 120, 255},
		ActiveColor:    color.NRGBA{255, 196, 0, 255},
		DraftColor:     color.NRGBA{0, 170, 255, 255},
		FillOpacity:    0.2,
		StrokeWidth:    2,
	}
}

// Rasterizer draws overlays for a bucket of annotations
type Rasterizer struct {
	config Config
}

// New creates a Rasterizer with the default configuration
func New() *Rasterizer {
	return &Rasterizer{config: DefaultConfig()}
}

// NewWithConfig creates a Rasterizer with custom configuration
func NewWithConfig(config Config) *Rasterizer {
	return &Rasterizer{config: config}
}

// Options describe one render
type Options struct {
	Mode   Mode
	Width  int
	Height int
	// ActiveUID is drawn on top in the highlight colour in selection mode
	ActiveUID string
	// Draft is drawn over every mode and never counted
	Draft *types.Selection
}

// Render draws the overlay for the annotations of one bucket.
// A bucket without visible selections yields a fully transparent image.
func (r *Rasterizer) Render(annotations []types.Annotation, opts Options) (*image.NRGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid raster size %dx%d", opts.Width, opts.Height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height))

	switch opts.Mode {
	case ModeHeatmap, ModeGraduated:
		counts := Accumulate(annotations, opts.Width, opts.Height)
		r.paintCounts(img, counts, opts.Mode)
	case ModeSelections, "":
		r.paintSelections(img, annotations, opts.ActiveUID)
	default:
		return nil, fmt.Errorf("unknown view mode %q", opts.Mode)
	}

	if opts.Draft != nil {
		r.paintRect(img, rules.Normalize(*opts.Draft), r.config.DraftColor)
	}
	return img, nil
}

func (r *Rasterizer) paintCounts(img *image.NRGBA, counts Counts, mode Mode) {
	maxCount := counts.Max()
	if maxCount == 0 {
		return
	}
	for y := 0; y < counts.Height; y++ {
		for x := 0; x < counts.Width; x++ {
			n := counts.At(x, y)
			if n == 0 {
				continue
			}
			intensity := float64(n) / float64(maxCount)
			var c color.NRGBA
			if mode == ModeGraduated {
				c = r.gradedColor(intensity)
			} else {
				c = r.config.HeatColor
			}
			c.A = r.alpha(intensity)
			i := img.PixOffset(x, y)
			img.Pix[i+0] = c.R
			img.Pix[i+1] = c.G
			img.Pix[i+2] = c.B
			img.Pix[i+3] = c.A
		}
	}
}

// alpha maps an intensity in [0,1] to an opacity capped by MaxOpacity
func (r *Rasterizer) alpha(intensity float64) uint8 {
	return uint8(math.Min(255, math.Floor(intensity*255*r.config.MaxOpacity)))
}

// gradedColor interpolates the hue between HueStart and HueEnd at full
// saturation and half lightness
func (r *Rasterizer) gradedColor(intensity float64) color.NRGBA {
	hue := r.config.HueStart + intensity*(r.config.HueEnd-r.config.HueStart)
	cr, cg, cb := colorful.Hsl(hue, 1, 0.5).RGB255()
	return color.NRGBA{cr, cg, cb, 255}
}

func (r *Rasterizer) paintSelections(img *image.NRGBA, annotations []types.Annotation, activeUID string) {
	var active *types.Selection
	for _, a := range annotations {
		for _, s := range a.Selections {
			if !s.Visible() {
				continue
			}
			if activeUID != "" && s.UID == activeUID {
				s := s
				active = &s
				continue
			}
			r.paintRect(img, rules.Normalize(s), r.config.SelectionColor)
		}
	}
	if active != nil {
		r.paintRect(img, rules.Normalize(*active), r.config.ActiveColor)
	}
}

// paintRect fills a selection translucently and strokes its border
func (r *Rasterizer) paintRect(img *image.NRGBA, s types.Selection, c color.NRGBA) {
	x0, y0, x1, y1 := pixelBounds(s, img.Bounds().Dx(), img.Bounds().Dy())
	if x1 <= x0 || y1 <= y0 {
		return
	}
	fill := c
	fill.A = uint8(math.Round(float64(c.A) * r.config.FillOpacity))
	fillRect(img, x0, y0, x1, y1, fill)
	drawBox(img, x0, y0, x1, y1, c, r.config.StrokeWidth)
}
