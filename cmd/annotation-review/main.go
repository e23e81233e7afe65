package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	annotationreview "github.com/menta2k/annotation-review"
	"github.com/menta2k/annotation-review/internal/config"
	"github.com/menta2k/annotation-review/internal/utils"
	"github.com/menta2k/annotation-review/pkg/heatmap"
	"github.com/menta2k/annotation-review/pkg/session"
	"github.com/menta2k/annotation-review/pkg/summary"
)

// listFlag collects a repeatable string flag
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ";") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	mode          heatmap.Mode
	search        string
	commentSearch string
	hide          listFlag
	demographics  listFlag
	dropColumns   string
	dropRows      string
	summaryFile   string
	generate      bool
	listComments  bool
	writeReport   bool
	imageBaseDir  string
	composite     bool
	format        string
	quality       int
	outDir        string
}

func main() {
	var in, configPath, saveConfig string
	var mode, backend, url, model string
	var opts options

	flag.StringVar(&in, "in", "", "export file, directory or glob (** allowed); csv/xlsx, optionally .gz/.bz2/.xz")
	flag.StringVar(&configPath, "config", "", "config file (json or yaml); defaults to "+config.GetConfigPath()+" when present")
	flag.StringVar(&saveConfig, "save-config", "", "write the effective configuration to this path and exit")
	flag.StringVar(&opts.outDir, "out", "", "output directory (overrides config)")
	flag.StringVar(&mode, "mode", "", "view mode: selections|heatmap|graduated (overrides config)")
	flag.StringVar(&opts.format, "ext", "", "output format: png|jpg|webp (overrides config)")
	flag.IntVar(&opts.quality, "quality", 0, "JPEG/WebP output quality (1-100, overrides config)")
	flag.StringVar(&opts.imageBaseDir, "images", "", "directory relative image paths are resolved against (overrides config)")
	flag.BoolVar(&opts.composite, "composite", true, "draw overlays on the question images when they load")

	flag.StringVar(&opts.search, "search", "", "only show annotations whose name contains this text")
	flag.StringVar(&opts.commentSearch, "comment-search", "", "only show selections whose comment contains this text")
	flag.Var(&opts.hide, "hide", "turn off a feedback filter, as group/id (e.g. Sentiment/positive); repeatable")
	flag.Var(&opts.demographics, "demographic", "restrict a demographic column, as key=v1,v2; repeatable")
	flag.StringVar(&opts.dropColumns, "drop-columns", "", "comma separated columns removed before import")
	flag.StringVar(&opts.dropRows, "drop-rows", "", "comma separated 0-based row indices removed before import")

	flag.StringVar(&opts.summaryFile, "summary-file", "", "executive summary JSON to validate and attach to the report")
	flag.BoolVar(&opts.generate, "summarize", false, "generate an executive summary with a language model")
	flag.StringVar(&backend, "backend", "", "summary backend: ollama or llamacpp (overrides config)")
	flag.StringVar(&url, "url", "", "summary server URL (overrides config)")
	flag.StringVar(&model, "model", "", "summary model name (overrides config)")

	flag.BoolVar(&opts.listComments, "comments", false, "print the visible comments of every question")
	flag.BoolVar(&opts.writeReport, "report", true, "write report.json and report.xlsx")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	applyOverrides(cfg, &opts, mode, backend, url, model)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if saveConfig != "" {
		if err := cfg.SaveToFile(saveConfig); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", saveConfig)
		return
	}

	if in == "" {
		log.Fatalf("usage: %s -in export.csv|dir|glob [-mode heatmap] [-demographic Age=30,40] [-hide Sentiment/positive] [-out dir] [-summarize]", filepath.Base(os.Args[0]))
	}

	files, err := utils.ListExportFiles(in)
	if err != nil {
		log.Fatal(err)
	}
	if len(files) == 0 {
		log.Fatalf("no export files match %s", in)
	}

	rasterConfig, err := cfg.Heatmap.RasterConfig()
	if err != nil {
		log.Fatal(err)
	}
	opts.mode = heatmap.Mode(cfg.Heatmap.Mode)

	var generator *summary.Generator
	if opts.generate {
		c, err := summary.NewClient(cfg.Summary.Backend, cfg.Summary.URL)
		if err != nil {
			log.Fatalf("Failed to create %s client: %v", cfg.Summary.Backend, err)
		}
		generator = summary.NewGenerator(c, cfg.Summary.Model)
	}

	ctx := context.Background()
	failed := 0
	for _, file := range files {
		reviewer := annotationreview.NewWithConfig(cfg.SessionConfig(), rasterConfig)
		reviewer.SetImageBaseDir(cfg.Import.ImageBaseDir)
		if generator != nil {
			reviewer.SetGenerator(generator)
		}

		outDir := cfg.Output.OutputDir
		if len(files) > 1 {
			outDir = filepath.Join(outDir, utils.SanitizeFilename(exportName(file)))
		}
		if err := process(ctx, reviewer, file, outDir, cfg, opts); err != nil {
			log.Printf("%s: %v", file, err)
			failed++
		}
	}
	if failed > 0 {
		log.Fatalf("%d of %d exports failed", failed, len(files))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if def := config.GetConfigPath(); utils.FileExists(def) {
			path = def
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	log.Printf("using config %s", path)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, opts *options, mode, backend, url, model string) {
	if mode != "" {
		cfg.Heatmap.Mode = mode
	}
	if opts.outDir != "" {
		cfg.Output.OutputDir = opts.outDir
	}
	if opts.format != "" {
		cfg.Output.DefaultFormat = strings.ToLower(opts.format)
	}
	if opts.quality > 0 {
		cfg.Output.Quality = opts.quality
	}
	if opts.imageBaseDir != "" {
		cfg.Import.ImageBaseDir = opts.imageBaseDir
	}
	cfg.Output.Composite = cfg.Output.Composite && opts.composite
	if backend != "" {
		cfg.Summary.Backend = backend
	}
	if url != "" {
		cfg.Summary.URL = url
	}
	if model != "" {
		cfg.Summary.Model = model
	}
}

// exportName strips the compression and table extensions from a file name
func exportName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".bz2", ".xz", ".csv", ".xlsx"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
		}
	}
	return name
}

func process(ctx context.Context, reviewer *annotationreview.Reviewer, file, outDir string, cfg *config.Config, opts options) error {
	s := reviewer.Session()

	table, err := s.BeginImport(ctx, session.PathSource(file))
	if err != nil {
		return err
	}
	log.Printf("%s: %d rows, %d columns", file, len(table.Rows), len(table.Columns))
	if err := review(s, opts); err != nil {
		s.Cancel()
		return err
	}
	info, err := s.Commit()
	if err != nil {
		s.Cancel()
		return err
	}
	log.Printf("imported %s (%s): %d annotations in %d questions (%d rows skipped, fingerprint %s)",
		info.Name, utils.FormatFileSize(info.Size), info.Annotations, info.Buckets, info.SkippedRows, info.Fingerprint)

	if err := applyFilters(s, opts); err != nil {
		return err
	}

	if opts.summaryFile != "" {
		blob, err := os.ReadFile(opts.summaryFile)
		if err != nil {
			return fmt.Errorf("failed to read summary: %w", err)
		}
		if err := s.ImportSummary(blob); err != nil {
			return fmt.Errorf("invalid summary %s: %w", opts.summaryFile, err)
		}
	}

	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}

	rep := reviewer.Report()
	exportOpts := annotationreview.ExportOptions{
		Mode:      opts.mode,
		Format:    cfg.Output.DefaultFormat,
		Quality:   cfg.Output.Quality,
		Composite: cfg.Output.Composite,
	}
	for i, q := range rep.Questions {
		if !q.Visible {
			log.Printf("question %d: nothing visible, skipped", q.QuestionID)
			continue
		}
		outPath := utils.GenerateOutputFilename(q.ImageName, outDir, cfg.Output.Prefix, cfg.Output.Suffix, cfg.Output.DefaultFormat)
		if err := reviewer.ExportBucket(i, outPath, exportOpts); err != nil {
			log.Printf("export of question %d failed: %v", q.QuestionID, err)
			continue
		}
		rep.Questions[i].Output = outPath
		log.Printf("wrote %s", outPath)

		if opts.listComments {
			printComments(s, i)
		}
	}

	if opts.generate {
		maxDim := 0
		if cfg.Summary.AttachHeatmap {
			maxDim = cfg.Summary.MaxImageDim
		}
		sum, err := reviewer.GenerateSummary(ctx, opts.mode, maxDim)
		if err != nil {
			log.Printf("summary generation failed: %v", err)
		} else {
			rep.Summary = sum
			log.Printf("summary: %s", sum.Summary)
		}
	}

	if !opts.writeReport {
		return nil
	}
	jsonPath := filepath.Join(outDir, "report.json")
	if err := rep.WriteJSON(jsonPath); err != nil {
		return err
	}
	log.Printf("wrote %s", jsonPath)
	xlsxPath := filepath.Join(outDir, "report.xlsx")
	if err := rep.WriteXLSX(xlsxPath); err != nil {
		return err
	}
	log.Printf("wrote %s", xlsxPath)
	return nil
}

// review applies the column and row cleanup to the table under review
func review(s *session.Session, opts options) error {
	if cols := splitList(opts.dropColumns); len(cols) > 0 {
		if err := s.DeleteColumns(cols); err != nil {
			return err
		}
	}
	if rows := splitList(opts.dropRows); len(rows) > 0 {
		indices := make([]int, 0, len(rows))
		for _, r := range rows {
			var n int
			if _, err := fmt.Sscanf(r, "%d", &n); err != nil {
				return fmt.Errorf("invalid row index %q", r)
			}
			indices = append(indices, n)
		}
		if err := s.DeleteRows(indices); err != nil {
			return err
		}
	}
	return nil
}

func applyFilters(s *session.Session, opts options) error {
	for _, h := range opts.hide {
		group, id, ok := strings.Cut(h, "/")
		if !ok {
			return fmt.Errorf("invalid -hide %q (want group/id)", h)
		}
		if err := s.ToggleFeedbackFilter(group, id); err != nil {
			return err
		}
	}
	for _, d := range opts.demographics {
		key, values, ok := strings.Cut(d, "=")
		if !ok {
			return fmt.Errorf("invalid -demographic %q (want key=v1,v2)", d)
		}
		if err := s.AddDemographicFilter(key); err != nil {
			return err
		}
		if err := s.SetDemographicSelection(key, splitList(values)); err != nil {
			return err
		}
	}
	if opts.search != "" {
		s.SetAnnotationSearch(opts.search)
	}
	if opts.commentSearch != "" {
		s.SetCommentSearch(opts.commentSearch)
	}
	return nil
}

func printComments(s *session.Session, i int) {
	if s.SetActiveIndex(i) != i {
		return
	}
	for page := 1; page <= s.PageCount(); page++ {
		comments, err := s.Comments(page)
		if err != nil {
			return
		}
		for _, c := range comments {
			fmt.Printf("  [%s/%s] %s\n", ratingOrDash(string(c.FunctionValue)), ratingOrDash(string(c.AestheticValue)), c.Text)
		}
	}
}

func ratingOrDash(r string) string {
	if r == "" {
		return "-"
	}
	return r
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
