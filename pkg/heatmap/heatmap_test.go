package heatmap

import (
	"image/color"
	"math"
	"testing"

	"github.com/menta2k/annotation-review/pkg/types"
)

func rectSel(uid string, x0, y0, x1, y1 float64) types.Selection {
	return types.Selection{
		UID:   uid,
		Start: types.Point{X: x0, Y: y0},
		End:   types.Point{X: x1, Y: y1},
	}
}

func bucketOf(sels ...types.Selection) []types.Annotation {
	return []types.Annotation{{QuestionID: 1, Selections: sels}}
}

func TestAccumulate(t *testing.T) {
	anns := bucketOf(
		rectSel("a", 0, 0, 4, 4),
		rectSel("b", 2, 2, 6, 6),
	)
	c := Accumulate(anns, 8, 8)

	tests := []struct {
		x, y     int
		expected uint16
	}{
		{0, 0, 1},
		{3, 3, 2},
		{5, 5, 1},
		{6, 6, 0},
		{7, 0, 0},
	}
	for _, tt := range tests {
		if got := c.At(tt.x, tt.y); got != tt.expected {
			t.Errorf("At(%d,%d) = %d, want %d", tt.x, tt.y, got, tt.expected)
		}
	}
	if c.Max() != 2 {
		t.Errorf("Expected max 2, got %d", c.Max())
	}
}

func TestAccumulateFloorCeilClamp(t *testing.T) {
	c := Accumulate(bucketOf(rectSel("a", -5.5, 1.2, 2.1, 100)), 4, 4)
	// x covers [0,3), y covers [1,4)
	if c.At(2, 1) != 1 || c.At(0, 3) != 1 {
		t.Error("expected fractional bounds to be widened to whole pixels")
	}
	if c.At(3, 1) != 0 || c.At(0, 0) != 0 {
		t.Error("pixels outside the ceil/floor bounds should stay empty")
	}
}

func TestAccumulateSkipsHiddenAndReversed(t *testing.T) {
	hidden := rectSel("h", 0, 0, 4, 4)
	hidden.Show = types.Bool(false)
	reversed := rectSel("r", 4, 4, 0, 0)

	c := Accumulate(bucketOf(hidden, reversed), 4, 4)
	if c.Max() != 0 {
		t.Errorf("Expected nothing stamped, got max %d", c.Max())
	}
}

func TestAccumulateOutOfRangeCoordinates(t *testing.T) {
	tests := []struct {
		name string
		sel  types.Selection
		want uint16 // count at (3,3)
	}{
		{"past int range", rectSel("a", 0, 0, 1e19, 1e19), 1},
		{"infinite", rectSel("a", math.Inf(-1), math.Inf(-1), math.Inf(1), math.Inf(1)), 1},
		{"negative past int range", rectSel("a", -1e19, -1e19, 4, 4), 1},
		{"NaN end", rectSel("a", 0, 0, math.NaN(), math.NaN()), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Accumulate(bucketOf(tt.sel), 4, 4)
			if got := c.At(3, 3); got != tt.want {
				t.Errorf("At(3,3) = %d, want %d", got, tt.want)
			}
			if tt.want == 1 && (c.Max() != 1 || c.At(0, 0) != 1) {
				t.Errorf("Expected the whole raster stamped once, max %d", c.Max())
			}
		})
	}

	// NaN start is taken as the origin
	c := Accumulate(bucketOf(rectSel("n", math.NaN(), math.NaN(), 2, 2)), 4, 4)
	if c.At(0, 0) != 1 || c.At(1, 1) != 1 || c.At(2, 2) != 0 {
		t.Error("Expected NaN start to clamp to 0")
	}
}

func TestDraftOutOfRangeCoordinates(t *testing.T) {
	cfg := DefaultConfig()
	draft := rectSel("draft", 0, 0, 1e19, 1e19)
	img, err := NewWithConfig(cfg).Render(nil, Options{Mode: ModeSelections, Width: 10, Height: 10, Draft: &draft})
	if err != nil {
		t.Fatal(err)
	}
	if px := img.NRGBAAt(9, 9); px != cfg.DraftColor {
		t.Errorf("Expected draft stroke at the raster edge, got %v", px)
	}
}

func TestHeatmapSaturation(t *testing.T) {
	const w, h = 16, 12
	anns := []types.Annotation{
		{Selections: []types.Selection{rectSel("a", 0, 0, w, h), rectSel("b", 0, 0, w, h)}},
		{Selections: []types.Selection{rectSel("c", 0, 0, w, h)}},
	}

	c := Accumulate(anns, w, h)
	if c.Max() != 3 {
		t.Fatalf("Expected max count 3, got %d", c.Max())
	}
	for _, v := range c.Values {
		if v != 3 {
			t.Fatalf("Expected every pixel to count 3, got %d", v)
		}
	}

	img, err := New().Render(anns, Options{Mode: ModeHeatmap, Width: w, Height: h})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.NRGBAAt(x, y)
			if px != (color.NRGBA{66, 78, 120, 204}) {
				t.Fatalf("pixel (%d,%d) = %v, want {66 78 120 204}", x, y, px)
			}
		}
	}
}

func TestHeatmapAlphaScales(t *testing.T) {
	anns := bucketOf(rectSel("a", 0, 0, 2, 1), rectSel("b", 0, 0, 1, 1))
	img, err := New().Render(anns, Options{Mode: ModeHeatmap, Width: 2, Height: 1})
	if err != nil {
		t.Fatal(err)
	}
	if a := img.NRGBAAt(0, 0).A; a != 204 {
		t.Errorf("Expected full-count alpha 204, got %d", a)
	}
	// half of max: floor(0.5*255*0.8) = 102
	if a := img.NRGBAAt(1, 0).A; a != 102 {
		t.Errorf("Expected half-count alpha 102, got %d", a)
	}
}

func TestGraduatedHeatmap(t *testing.T) {
	anns := bucketOf(rectSel("a", 0, 0, 2, 1), rectSel("b", 0, 0, 1, 1))
	img, err := New().Render(anns, Options{Mode: ModeGraduated, Width: 2, Height: 1})
	if err != nil {
		t.Fatal(err)
	}
	// intensity 1 -> hue 300 (magenta)
	if px := img.NRGBAAt(0, 0); px != (color.NRGBA{255, 0, 255, 204}) {
		t.Errorf("Expected magenta at full intensity, got %v", px)
	}
	// intensity 0.5 -> hue 180 (cyan)
	if px := img.NRGBAAt(1, 0); px != (color.NRGBA{0, 255, 255, 102}) {
		t.Errorf("Expected cyan at half intensity, got %v", px)
	}
}

func TestRenderEmptyBucket(t *testing.T) {
	for _, mode := range []Mode{ModeHeatmap, ModeGraduated, ModeSelections} {
		img, err := New().Render(nil, Options{Mode: mode, Width: 10, Height: 10})
		if err != nil {
			t.Fatalf("%s: Render failed: %v", mode, err)
		}
		for i := 3; i < len(img.Pix); i += 4 {
			if img.Pix[i] != 0 {
				t.Fatalf("%s: expected a fully transparent overlay", mode)
			}
		}
	}
}

func TestRenderInvalidSize(t *testing.T) {
	if _, err := New().Render(nil, Options{Mode: ModeHeatmap, Width: 0, Height: 10}); err == nil {
		t.Error("Expected error for zero width")
	}
	if _, err := New().Render(nil, Options{Mode: "bogus", Width: 1, Height: 1}); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestSelectionModeActiveOnTop(t *testing.T) {
	cfg := DefaultConfig()
	anns := bucketOf(
		rectSel("active", 0, 0, 10, 10),
		rectSel("other", 0, 0, 10, 10),
	)
	img, err := NewWithConfig(cfg).Render(anns, Options{Mode: ModeSelections, Width: 20, Height: 20, ActiveUID: "active"})
	if err != nil {
		t.Fatal(err)
	}
	if px := img.NRGBAAt(0, 0); px != cfg.ActiveColor {
		t.Errorf("Expected active stroke on top, got %v", px)
	}
	if px := img.NRGBAAt(15, 15); px.A != 0 {
		t.Errorf("Expected transparent outside selections, got %v", px)
	}
	// interior is filled translucently
	if px := img.NRGBAAt(5, 5); px.A == 0 || px.A == 255 {
		t.Errorf("Expected translucent fill, got %v", px)
	}
}

func TestSelectionModeNormalizesOutline(t *testing.T) {
	cfg := DefaultConfig()
	img, err := NewWithConfig(cfg).Render(bucketOf(rectSel("r", 9, 9, 1, 1)), Options{Mode: ModeSelections, Width: 10, Height: 10})
	if err != nil {
		t.Fatal(err)
	}
	if px := img.NRGBAAt(1, 1); px != cfg.SelectionColor {
		t.Errorf("Expected stroke at the normalized corner, got %v", px)
	}
}

func TestDraftNotAccumulated(t *testing.T) {
	cfg := DefaultConfig()
	draft := rectSel("draft", 0, 0, 4, 4)
	anns := bucketOf(rectSel("a", 6, 6, 8, 8))

	img, err := NewWithConfig(cfg).Render(anns, Options{Mode: ModeHeatmap, Width: 10, Height: 10, Draft: &draft})
	if err != nil {
		t.Fatal(err)
	}
	if px := img.NRGBAAt(0, 0); px != cfg.DraftColor {
		t.Errorf("Expected draft stroke, got %v", px)
	}
	// the data pixel keeps full intensity: the draft did not raise max
	if a := img.NRGBAAt(7, 7).A; a != 204 {
		t.Errorf("Expected alpha 204 for the only data pixel, got %d", a)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []string{"selections", "heatmap", "graduated"} {
		if _, err := ParseMode(m); err != nil {
			t.Errorf("ParseMode(%q) failed: %v", m, err)
		}
	}
	if _, err := ParseMode("contour"); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func BenchmarkAccumulate(b *testing.B) {
	var sels []types.Selection
	for i := 0; i < 200; i++ {
		f := float64(i)
		sels = append(sels, rectSel("s", f, f, f+300, f+200))
	}
	anns := bucketOf(sels...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Accumulate(anns, 723, 534)
	}
}
