// Package session owns the state of one review dashboard: the imported
// buckets, the filter state and the derived view.
//
// Imports run in two steps. BeginImport reads and parses an export and opens
// a review in which columns and rows can be removed; Commit turns the
// reviewed table into annotations and replaces all previous state. Every
// other operation replaces whole values and recomputes the view from the
// pristine import, so repeating an operation never compounds hidden state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/menta2k/annotation-review/pkg/bucket"
	"github.com/menta2k/annotation-review/pkg/csvio"
	"github.com/menta2k/annotation-review/pkg/importer"
	"github.com/menta2k/annotation-review/pkg/summary"
	"github.com/menta2k/annotation-review/pkg/types"
	"github.com/menta2k/annotation-review/pkg/visibility"
)

// State is the import state of a session
type State int

const (
	StateIdle State = iota
	StateReviewing
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateReviewing:
		return "reviewing"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

var (
	// ErrImportInProgress is returned when an import is started while another
	// one is being read, reviewed or committed
	ErrImportInProgress = errors.New("an import is already in progress")
	// ErrNotReviewing is returned by review operations outside a review
	ErrNotReviewing = errors.New("no import is under review")
	// ErrNothingToCommit is returned when the reviewed table has no rows left
	ErrNothingToCommit = errors.New("nothing to commit")
)

// DefaultCommentsPerPage is the comment browser's page size
const DefaultCommentsPerPage = 10

// Config configures a Session
type Config struct {
	// DemographicColumns get a filter facet on every commit when present
	DemographicColumns []string
	CommentsPerPage    int
	// Canvas used for questions without metadata; zero keeps the defaults
	CanvasWidth  int
	CanvasHeight int
	ScaleFactor  float64
	Logger       *log.Logger
}

// ImportInfo describes the last committed import
type ImportInfo struct {
	Name               string   `json:"name"`
	Fingerprint        string   `json:"fingerprint"`
	Size               int64    `json:"size"`
	Rows               int      `json:"rows"`
	SkippedRows        int      `json:"skippedRows"`
	Annotations        int      `json:"annotations"`
	Buckets            int      `json:"buckets"`
	DemographicColumns []string `json:"demographicColumns"`
}

// Session is a single-user review dashboard
type Session struct {
	mu       sync.Mutex
	config   Config
	logger   *log.Logger
	importer *importer.Importer

	state   State
	pending *csvio.Loaded

	source       []types.Bucket
	base         []types.Bucket
	view         []types.Bucket
	filter       visibility.State
	demographics []types.DemographicFilter

	activeIndex   int
	activeComment string
	summary       *types.ExecutiveSummary
	lastImport    ImportInfo
}

// New creates an empty session
func New(config Config) *Session {
	if config.CommentsPerPage <= 0 {
		config.CommentsPerPage = DefaultCommentsPerPage
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	im := importer.New()
	im.SetLogger(logger)
	im.SetCanvasDefaults(config.CanvasWidth, config.CanvasHeight, config.ScaleFactor)

	return &Session{
		config:      config,
		logger:      logger,
		importer:    im,
		filter:      visibility.State{FeedbackGroups: visibility.DefaultFeedbackFilters()},
		activeIndex: -1,
	}
}

// State returns the import state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginImport reads and parses an export and opens it for review. A parse
// failure leaves the session untouched.
func (s *Session) BeginImport(ctx context.Context, src FileSource) (types.Table, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return types.Table{}, ErrImportInProgress
	}
	// claim the session while the file is read
	s.state = StateReviewing
	s.mu.Unlock()

	loaded, err := s.load(ctx, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateIdle
		s.logger.Printf("session: import of %s failed: %v", src.Name(), err)
		return types.Table{}, err
	}
	s.pending = &loaded
	return cloneTable(loaded.Table), nil
}

func (s *Session) load(ctx context.Context, src FileSource) (csvio.Loaded, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return csvio.Loaded{}, fmt.Errorf("failed to open %s: %w", src.Name(), err)
	}
	defer rc.Close()
	return csvio.Load(ctx, rc, src.Name())
}

// Cancel closes the open review and drops its table
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing || s.pending == nil {
		return ErrNotReviewing
	}
	s.pending = nil
	s.state = StateIdle
	return nil
}

// PendingTable returns the table under review
func (s *Session) PendingTable() (types.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing || s.pending == nil {
		return types.Table{}, ErrNotReviewing
	}
	return cloneTable(s.pending.Table), nil
}

// DeleteColumns removes columns from the table under review
func (s *Session) DeleteColumns(names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing || s.pending == nil {
		return ErrNotReviewing
	}
	t, err := csvio.DeleteColumns(s.pending.Table, names)
	if err != nil {
		return err
	}
	s.pending.Table = t
	return nil
}

// DeleteRows removes rows, by index, from the table under review
func (s *Session) DeleteRows(indices []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing || s.pending == nil {
		return ErrNotReviewing
	}
	s.pending.Table = csvio.DeleteRows(s.pending.Table, indices)
	return nil
}

// Commit imports the reviewed table and replaces all annotation state.
// Filters are reset and the summary is dropped.
func (s *Session) Commit() (ImportInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReviewing || s.pending == nil {
		return ImportInfo{}, ErrNotReviewing
	}
	if len(s.pending.Table.Rows) == 0 {
		return ImportInfo{}, ErrNothingToCommit
	}
	s.state = StateCommitting
	loaded := s.pending

	res := s.importer.Import(loaded.Table.Rows, loaded.Table.Columns)
	buckets := bucket.CreateAnnotationBuckets(res.Annotations)

	s.source = buckets
	s.filter = visibility.State{FeedbackGroups: visibility.DefaultFeedbackFilters()}
	s.demographics = s.facets(res)
	s.summary = nil
	s.activeIndex = 0
	s.activeComment = ""
	s.recompute()

	s.lastImport = ImportInfo{
		Name:               loaded.Name,
		Fingerprint:        loaded.Fingerprint,
		Size:               loaded.Size,
		Rows:               len(loaded.Table.Rows),
		SkippedRows:        res.SkippedRows,
		Annotations:        len(res.Annotations),
		Buckets:            len(buckets),
		DemographicColumns: append([]string(nil), res.DemographicColumns...),
	}
	s.logger.Printf("session: imported %s: %d annotations in %d buckets (%d rows skipped)",
		loaded.Name, len(res.Annotations), len(buckets), res.SkippedRows)

	s.pending = nil
	s.state = StateIdle
	return s.lastImport, nil
}

func (s *Session) facets(res importer.Result) []types.DemographicFilter {
	available := make(map[string]struct{}, len(res.DemographicColumns))
	for _, c := range res.DemographicColumns {
		available[c] = struct{}{}
	}
	var out []types.DemographicFilter
	for _, key := range s.config.DemographicColumns {
		if _, ok := available[key]; ok {
			out = append(out, visibility.BuildDemographicFilter(res.Annotations, key))
		}
	}
	return out
}

// LastImport describes the last committed import
func (s *Session) LastImport() ImportInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.lastImport
	out.DemographicColumns = append([]string(nil), s.lastImport.DemographicColumns...)
	return out
}

// recompute derives base and view from the source and revalidates the
// active bucket and comment. Callers hold mu.
func (s *Session) recompute() {
	s.filter.Demographics = visibility.SelectedValues(s.demographics)
	s.base, s.view = visibility.Recompute(s.source, s.filter)
	s.activeIndex = bucket.GetVisibleAnnotationIndex(s.view, s.activeIndex)
	if s.activeComment != "" && !s.commentVisible(s.activeComment) {
		s.activeComment = ""
	}
}

// SetAnnotationSearch filters annotations by name
func (s *Session) SetAnnotationSearch(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.AnnotationQuery = query
	s.recompute()
}

// SetCommentSearch filters selections by comment text
func (s *Session) SetCommentSearch(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter.CommentQuery = query
	s.recompute()
}

// ToggleFeedbackFilter flips one Sentiment or Category toggle
func (s *Session) ToggleFeedbackFilter(group, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups, err := visibility.ToggleFeedbackFilter(s.filter.FeedbackGroups, group, id)
	if err != nil {
		return err
	}
	s.filter.FeedbackGroups = groups
	s.recompute()
	return nil
}

// AddDemographicFilter adds a facet over one demographic column of the
// current import. Adding an existing facet is a no-op.
func (s *Session) AddDemographicFilter(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.demographics {
		if f.Key == key {
			return nil
		}
	}
	known := false
	for _, c := range s.lastImport.DemographicColumns {
		if c == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown demographic column %q", key)
	}
	facets := append(cloneFacets(s.demographics), visibility.BuildDemographicFilter(bucket.Flatten(s.source), key))
	s.demographics = facets
	s.recompute()
	return nil
}

// SetDemographicSelection replaces the selected values of one facet.
// An empty selection deactivates the facet.
func (s *Session) SetDemographicSelection(key string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	facets := cloneFacets(s.demographics)
	for i := range facets {
		if facets[i].Key == key {
			facets[i].SelectedValues = append([]string{}, values...)
			s.demographics = facets
			s.recompute()
			return nil
		}
	}
	return fmt.Errorf("no demographic filter for %q", key)
}

// SetScope restricts visible selections to those inside scope; nil clears it
func (s *Session) SetScope(scope *types.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope == nil {
		s.filter.Scope = nil
	} else {
		sc := *scope
		s.filter.Scope = &sc
	}
	s.recompute()
}

// Scope returns the active scope selection, if any
func (s *Session) Scope() *types.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filter.Scope == nil {
		return nil
	}
	sc := *s.filter.Scope
	return &sc
}

// FeedbackFilters returns the feedback groups
func (s *Session) FeedbackFilters() []types.FeedbackFilterGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return visibility.CloneFeedbackGroups(s.filter.FeedbackGroups)
}

// DemographicFilters returns the demographic facets
func (s *Session) DemographicFilters() []types.DemographicFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneFacets(s.demographics)
}

// Buckets returns the visible view
func (s *Session) Buckets() []types.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bucket.Clone(s.view)
}

// BaseBuckets returns the buckets before demographic filtering
func (s *Session) BaseBuckets() []types.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bucket.Clone(s.base)
}

// ActiveIndex returns the active bucket index, or -1 when nothing is visible
func (s *Session) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeIndex
}

// SetActiveIndex points the dashboard at a bucket. A hidden or out of range
// bucket resolves to the first visible one; the resolved index is returned.
func (s *Session) SetActiveIndex(i int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.activeIndex
	s.activeIndex = bucket.GetVisibleAnnotationIndex(s.view, i)
	if s.activeIndex != prev {
		s.activeComment = ""
	}
	return s.activeIndex
}

// ActiveBucket returns the active bucket of the view
func (s *Session) ActiveBucket() (types.Bucket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeIndex < 0 || s.activeIndex >= len(s.view) {
		return types.Bucket{}, false
	}
	return s.view[s.activeIndex].Clone(), true
}

// Summary returns the committed executive summary, if any
func (s *Session) Summary() *types.ExecutiveSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return nil
	}
	out := *s.summary
	out.Analysis = append([]string(nil), s.summary.Analysis...)
	return &out
}

// ImportSummary validates a summary document and commits it. An invalid
// document returns a *summary.ValidationError and keeps the previous summary.
func (s *Session) ImportSummary(blob []byte) error {
	parsed, err := summary.Parse(blob)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = parsed
	return nil
}

// SetSummary commits an already validated summary
func (s *Session) SetSummary(sum *types.ExecutiveSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sum == nil {
		s.summary = nil
		return
	}
	out := *sum
	out.Analysis = append([]string(nil), sum.Analysis...)
	s.summary = &out
}

func cloneTable(t types.Table) types.Table {
	return csvio.DeleteRows(t, nil)
}

func cloneFacets(in []types.DemographicFilter) []types.DemographicFilter {
	if in == nil {
		return nil
	}
	out := make([]types.DemographicFilter, len(in))
	for i, f := range in {
		out[i] = f
		out[i].Options = append([]types.FilterOption(nil), f.Options...)
		out[i].SelectedValues = append([]string{}, f.SelectedValues...)
	}
	return out
}
