package heatmap

import (
	"math"

	"github.com/menta2k/annotation-review/pkg/types"
)

// Counts is a per-pixel overlap counter
type Counts struct {
	Width  int
	Height int
	Values []uint16
}

// Accumulate stamps every visible selection of the annotations into a
// width×height counter grid.
//
// Bounds are floored/ceiled and clamped to the grid. Start is taken as the
// lesser corner: a selection whose Start lies past its End covers nothing.
func Accumulate(annotations []types.Annotation, width, height int) Counts {
	c := Counts{Width: width, Height: height}
	if width <= 0 || height <= 0 {
		return c
	}
	c.Values = make([]uint16, width*height)

	for _, a := range annotations {
		for _, s := range a.Selections {
			if !s.Visible() {
				continue
			}
			x0, y0, x1, y1 := pixelBounds(s, width, height)
			for y := y0; y < y1; y++ {
				row := c.Values[y*width : (y+1)*width]
				for x := x0; x < x1; x++ {
					if row[x] < math.MaxUint16 {
						row[x]++
					}
				}
			}
		}
	}
	return c
}

// At returns the count of one pixel; out of range reads return 0
func (c Counts) At(x, y int) uint16 {
	if x < 0 || y < 0 || x >= c.Width || y >= c.Height {
		return 0
	}
	return c.Values[y*c.Width+x]
}

// Max returns the largest count in the grid
func (c Counts) Max() uint16 {
	var max uint16
	for _, v := range c.Values {
		if v > max {
			max = v
		}
	}
	return max
}

// pixelBounds converts a selection to a half-open pixel rectangle
func pixelBounds(s types.Selection, width, height int) (x0, y0, x1, y1 int) {
	x0 = clampCoord(math.Floor(s.Start.X), width)
	y0 = clampCoord(math.Floor(s.Start.Y), height)
	x1 = clampCoord(math.Ceil(s.End.X), width)
	y1 = clampCoord(math.Ceil(s.End.Y), height)
	return
}

// clampCoord clamps v to [0,limit] before converting, so coordinates past
// the int range still reach the raster edge. NaN maps to 0.
func clampCoord(v float64, limit int) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= float64(limit) {
		return limit
	}
	return int(v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
