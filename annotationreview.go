// Package annotationreview reviews spatial survey feedback: rectangles that
// respondents drew on product images, each rated on a functional and an
// aesthetic axis and optionally commented.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		annotationreview "github.com/menta2k/annotation-review"
//		"github.com/menta2k/annotation-review/pkg/heatmap"
//	)
//
//	func main() {
//		reviewer := annotationreview.New()
//
//		// Read, review and commit a survey export
//		info, err := reviewer.ImportFile(context.Background(), "export.csv")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%d annotations in %d questions\n", info.Annotations, info.Buckets)
//
//		// Narrow down to negative feedback and render a heatmap per question
//		reviewer.Session().ToggleFeedbackFilter("Sentiment", "positive")
//		for i := range reviewer.Session().Buckets() {
//			opts := annotationreview.ExportOptions{Mode: heatmap.ModeGraduated, Format: "png"}
//			if err := reviewer.ExportBucket(i, fmt.Sprintf("q%d.png", i), opts); err != nil {
//				log.Print(err)
//			}
//		}
//	}
//
// The package ties together the building blocks found under pkg/:
//
//  1. csvio and importer: read CSV/XLSX exports and expand rows into annotations
//  2. bucket, rules and visibility: group by question and derive what is shown
//  3. heatmap and processing: rasterize overlays and composite them on images
//  4. summary: validate or draft an executive summary with a language model
//  5. session: the stateful dashboard combining all of the above
package annotationreview

import (
	"context"
	"fmt"
	"image"
	"log"

	"github.com/menta2k/annotation-review/internal/utils"
	"github.com/menta2k/annotation-review/pkg/heatmap"
	"github.com/menta2k/annotation-review/pkg/importer"
	"github.com/menta2k/annotation-review/pkg/processing"
	"github.com/menta2k/annotation-review/pkg/session"
	"github.com/menta2k/annotation-review/pkg/summary"
	"github.com/menta2k/annotation-review/pkg/types"
)

// Version of the annotation review library
const Version = "1.0.0"

// Reviewer provides a high-level interface over a review session
type Reviewer struct {
	session      *session.Session
	raster       *heatmap.Rasterizer
	processor    *processing.Processor
	generator    *summary.Generator
	imageBaseDir string
	logger       *log.Logger
}

// New creates a new Reviewer with default configuration
func New() *Reviewer {
	return NewWithConfig(session.Config{}, heatmap.DefaultConfig())
}

// NewWithConfig creates a new Reviewer with custom configuration
func NewWithConfig(sessionConfig session.Config, rasterConfig heatmap.Config) *Reviewer {
	logger := sessionConfig.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Reviewer{
		session:   session.New(sessionConfig),
		raster:    heatmap.NewWithConfig(rasterConfig),
		processor: processing.NewProcessor(),
		logger:    logger,
	}
}

// Session returns the underlying session for filtering and browsing
func (r *Reviewer) Session() *session.Session {
	return r.session
}

// SetImageBaseDir sets the directory relative image paths are resolved against
func (r *Reviewer) SetImageBaseDir(dir string) {
	r.imageBaseDir = dir
}

// SetGenerator enables GenerateSummary
func (r *Reviewer) SetGenerator(g *summary.Generator) {
	r.generator = g
}

// ImportFile reads an export and commits it without manual review
func (r *Reviewer) ImportFile(ctx context.Context, path string) (session.ImportInfo, error) {
	if _, err := r.session.BeginImport(ctx, session.PathSource(path)); err != nil {
		return session.ImportInfo{}, err
	}
	info, err := r.session.Commit()
	if err != nil {
		r.session.Cancel()
		return session.ImportInfo{}, err
	}
	return info, nil
}

// RenderOptions describe an overlay render
type RenderOptions struct {
	Mode heatmap.Mode
	// Draft is drawn on top; the session scope is used when nil
	Draft *types.Selection
}

// RenderActive draws the overlay of the active bucket with the active
// comment highlighted
func (r *Reviewer) RenderActive(opts RenderOptions) (*image.NRGBA, error) {
	b, ok := r.session.ActiveBucket()
	if !ok {
		return nil, fmt.Errorf("no visible question")
	}
	return r.render(b, opts, r.session.ActiveComment())
}

// RenderBucket draws the overlay of one bucket of the visible view
func (r *Reviewer) RenderBucket(i int, opts RenderOptions) (*image.NRGBA, error) {
	buckets := r.session.Buckets()
	if i < 0 || i >= len(buckets) {
		return nil, fmt.Errorf("question index %d out of range [0,%d)", i, len(buckets))
	}
	return r.render(buckets[i], opts, "")
}

func (r *Reviewer) render(b types.Bucket, opts RenderOptions, activeUID string) (*image.NRGBA, error) {
	w, h := canvasSize(b)
	draft := opts.Draft
	if draft == nil {
		draft = r.session.Scope()
	}
	return r.raster.Render(b.Annotations, heatmap.Options{
		Mode:      opts.Mode,
		Width:     w,
		Height:    h,
		ActiveUID: activeUID,
		Draft:     draft,
	})
}

// canvasSize is the canvas of the bucket's first annotation
func canvasSize(b types.Bucket) (int, int) {
	w, h := importer.DefaultWidth, importer.DefaultHeight
	if len(b.Annotations) > 0 {
		if a := b.Annotations[0]; a.Width > 0 && a.Height > 0 {
			w, h = a.Width, a.Height
		}
	}
	return w, h
}

// ExportOptions describe how a rendered bucket is written
type ExportOptions struct {
	Mode heatmap.Mode
	// Format defaults to the extension of the output path, then png
	Format  string
	Quality int
	// Composite draws the overlay over the question image when it loads
	Composite bool
}

// ExportBucket renders one bucket and writes it to outPath. When the
// question image cannot be loaded the overlay is written on its own.
func (r *Reviewer) ExportBucket(i int, outPath string, opts ExportOptions) error {
	buckets := r.session.Buckets()
	if i < 0 || i >= len(buckets) {
		return fmt.Errorf("question index %d out of range [0,%d)", i, len(buckets))
	}
	b := buckets[i]

	overlay, err := r.render(b, RenderOptions{Mode: opts.Mode}, "")
	if err != nil {
		return fmt.Errorf("failed to render question %d: %w", b.QuestionID, err)
	}

	var out image.Image = overlay
	if opts.Composite {
		if bg, err := r.background(b); err != nil {
			r.logger.Printf("Warning: question %d: %v; writing overlay only", b.QuestionID, err)
		} else {
			out = r.processor.Composite(bg, overlay)
		}
	}

	format := opts.Format
	if format == "" {
		format = utils.GetFileExtension(outPath)
	}
	if format == "" {
		format = "png"
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = 90
	}
	if err := r.processor.SaveImage(out, outPath, format, quality, true); err != nil {
		return fmt.Errorf("failed to save %s: %w", outPath, err)
	}
	return nil
}

func (r *Reviewer) background(b types.Bucket) (image.Image, error) {
	for _, a := range b.Annotations {
		if a.ImagePath == "" {
			continue
		}
		return r.processor.LoadImageSmart(utils.ResolveImagePath(r.imageBaseDir, a.ImagePath))
	}
	return nil, fmt.Errorf("no image path")
}

// GenerateSummary drafts an executive summary from the visible comments and
// commits it. With maxImageDim > 0 the active heatmap is attached to the
// prompt, downscaled to fit.
func (r *Reviewer) GenerateSummary(ctx context.Context, mode heatmap.Mode, maxImageDim int) (*types.ExecutiveSummary, error) {
	if r.generator == nil {
		return nil, fmt.Errorf("no summary generator configured")
	}

	var imgB64 string
	if maxImageDim > 0 {
		if overlay, err := r.RenderActive(RenderOptions{Mode: mode}); err == nil {
			if imgB64, err = r.processor.PrepareImageForModel(overlay, "png", maxImageDim, 0); err != nil {
				return nil, fmt.Errorf("failed to encode heatmap: %w", err)
			}
		}
	}

	sum, err := r.generator.Generate(ctx, r.session.Buckets(), imgB64)
	if err != nil {
		return nil, err
	}
	r.session.SetSummary(sum)
	return r.session.Summary(), nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
