package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/annotation-review/pkg/heatmap"
	"github.com/menta2k/annotation-review/pkg/session"
)

// Config holds the application configuration
type Config struct {
	Import  ImportConfig  `json:"import" yaml:"import"`
	Heatmap HeatmapConfig `json:"heatmap" yaml:"heatmap"`
	Browse  BrowseConfig  `json:"browse" yaml:"browse"`
	Summary SummaryConfig `json:"summary" yaml:"summary"`
	Output  OutputConfig  `json:"output" yaml:"output"`
}

// ImportConfig holds configuration for reading survey exports
type ImportConfig struct {
	CanvasWidth        int      `json:"canvas_width" yaml:"canvas_width"`
	CanvasHeight       int      `json:"canvas_height" yaml:"canvas_height"`
	ScaleFactor        float64  `json:"scale_factor" yaml:"scale_factor"`
	DemographicColumns []string `json:"demographic_columns" yaml:"demographic_columns"`
	// ImageBaseDir resolves relative image paths found in exports
	ImageBaseDir string `json:"image_base_dir" yaml:"image_base_dir"`
}

// HeatmapConfig holds configuration for overlay rendering.
// Colours are hex strings such as "#424e78".
type HeatmapConfig struct {
	Mode           string  `json:"mode" yaml:"mode"`
	MaxOpacity     float64 `json:"max_opacity" yaml:"max_opacity"`
	HeatColor      string  `json:"heat_color" yaml:"heat_color"`
	HueStart       float64 `json:"hue_start" yaml:"hue_start"`
	HueEnd         float64 `json:"hue_end" yaml:"hue_end"`
	SelectionColor string  `json:"selection_color" yaml:"selection_color"`
	ActiveColor    string  `json:"active_color" yaml:"active_color"`
	DraftColor     string  `json:"draft_color" yaml:"draft_color"`
	FillOpacity    float64 `json:"fill_opacity" yaml:"fill_opacity"`
	StrokeWidth    int     `json:"stroke_width" yaml:"stroke_width"`
}

// BrowseConfig holds configuration for the comment browser
type BrowseConfig struct {
	CommentsPerPage int `json:"comments_per_page" yaml:"comments_per_page"`
}

// SummaryConfig holds configuration for drafting executive summaries
type SummaryConfig struct {
	Backend       string `json:"backend" yaml:"backend"`
	URL           string `json:"url" yaml:"url"`
	Model         string `json:"model" yaml:"model"`
	AttachHeatmap bool   `json:"attach_heatmap" yaml:"attach_heatmap"`
	MaxImageDim   int    `json:"max_image_dim" yaml:"max_image_dim"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format" yaml:"default_format"`
	Quality       int    `json:"quality" yaml:"quality"`
	OutputDir     string `json:"output_dir" yaml:"output_dir"`
	Prefix        string `json:"prefix" yaml:"prefix"`
	Suffix        string `json:"suffix" yaml:"suffix"`
	// Composite draws overlays over the question image when it can be loaded
	Composite bool `json:"composite" yaml:"composite"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Import: ImportConfig{
			CanvasWidth:        723,
			CanvasHeight:       534,
			ScaleFactor:        1,
			DemographicColumns: []string{},
		},
		Heatmap: HeatmapConfig{
			Mode:           string(heatmap.ModeHeatmap),
			MaxOpacity:     0.8,
			HeatColor:      "#424e78",
			HueStart:       60,
			HueEnd:         300,
			SelectionColor: "#424e78",
			ActiveColor:    "#ffc400",
			DraftColor:     "#00aaff",
			FillOpacity:    0.2,
			StrokeWidth:    2,
		},
		Browse: BrowseConfig{
			CommentsPerPage: session.DefaultCommentsPerPage,
		},
		Summary: SummaryConfig{
			Backend:       "ollama",
			URL:           "http://localhost:11434",
			Model:         "llama3.1",
			AttachHeatmap: false,
			MaxImageDim:   1024,
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			Quality:       90,
			OutputDir:     "./output",
			Prefix:        "",
			Suffix:        "_heatmap",
			Composite:     true,
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file. Values missing
// from the file keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON or YAML file, chosen by extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Import.CanvasWidth < 1 || c.Import.CanvasHeight < 1 {
		return fmt.Errorf("import.canvas_width and import.canvas_height must be positive")
	}

	if c.Import.ScaleFactor <= 0 {
		return fmt.Errorf("import.scale_factor must be positive")
	}

	if _, err := heatmap.ParseMode(c.Heatmap.Mode); err != nil {
		return fmt.Errorf("heatmap.mode: %w", err)
	}

	if c.Heatmap.MaxOpacity <= 0 || c.Heatmap.MaxOpacity > 1 {
		return fmt.Errorf("heatmap.max_opacity must be in (0, 1]")
	}

	if c.Heatmap.FillOpacity < 0 || c.Heatmap.FillOpacity > 1 {
		return fmt.Errorf("heatmap.fill_opacity must be between 0 and 1")
	}

	if c.Heatmap.StrokeWidth < 1 {
		return fmt.Errorf("heatmap.stroke_width must be positive")
	}

	if _, err := c.Heatmap.RasterConfig(); err != nil {
		return err
	}

	if c.Browse.CommentsPerPage < 1 {
		return fmt.Errorf("browse.comments_per_page must be positive")
	}

	switch strings.ToLower(c.Summary.Backend) {
	case "ollama", "llamacpp", "llama.cpp":
	default:
		return fmt.Errorf("summary.backend must be ollama or llamacpp")
	}

	switch strings.ToLower(c.Output.DefaultFormat) {
	case "png", "webp", "jpg", "jpeg":
	default:
		return fmt.Errorf("output.default_format must be png, webp or jpg")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// RasterConfig converts the heatmap section into rasterizer settings
func (h HeatmapConfig) RasterConfig() (heatmap.Config, error) {
	cfg := heatmap.Config{
		MaxOpacity:  h.MaxOpacity,
		HueStart:    h.HueStart,
		HueEnd:      h.HueEnd,
		FillOpacity: h.FillOpacity,
		StrokeWidth: h.StrokeWidth,
	}
	colors := []struct {
		name  string
		value string
		dst   *color.NRGBA
	}{
		{"heatmap.heat_color", h.HeatColor, &cfg.HeatColor},
		{"heatmap.selection_color", h.SelectionColor, &cfg.SelectionColor},
		{"heatmap.active_color", h.ActiveColor, &cfg.ActiveColor},
		{"heatmap.draft_color", h.DraftColor, &cfg.DraftColor},
	}
	for _, c := range colors {
		parsed, err := colorful.Hex(c.value)
		if err != nil {
			return heatmap.Config{}, fmt.Errorf("%s: invalid colour %q", c.name, c.value)
		}
		r, g, b := parsed.RGB255()
		*c.dst = color.NRGBA{r, g, b, 255}
	}
	return cfg, nil
}

// SessionConfig converts the import and browse sections into session settings
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		DemographicColumns: append([]string(nil), c.Import.DemographicColumns...),
		CommentsPerPage:    c.Browse.CommentsPerPage,
		CanvasWidth:        c.Import.CanvasWidth,
		CanvasHeight:       c.Import.CanvasHeight,
		ScaleFactor:        c.Import.ScaleFactor,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "annotation-review", "config.json")
}
