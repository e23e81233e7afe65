package session

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/menta2k/annotation-review/pkg/csvio"
	"github.com/menta2k/annotation-review/pkg/summary"
	"github.com/menta2k/annotation-review/pkg/types"
)

// fixtureCSV builds an export with two respondents and one malformed row.
//
//	QID1: row 1 "Great header" (good function), "ugly footer" (bad aesthetic)
//	      row 2 uncommented good function, "unrated note" (no ratings)
//	QID2: row 1 "nice colours" (good aesthetic)
func fixtureCSV(t *testing.T) []byte {
	t.Helper()
	records := [][]string{
		{"image", "selectionsData", "Age", "Role"},
		{
			`{"QID1":"a.png","QID2":"b.png"}`,
			`{"QID1":[` +
				`{"start":{"x":0,"y":0},"end":{"x":10,"y":10},"functionValue":"good","comment":"Great header"},` +
				`{"start":{"x":20,"y":20},"end":{"x":30,"y":30},"aestheticValue":"bad","comment":"ugly footer"}],` +
				`"QID2":[{"start":{"x":0,"y":0},"end":{"x":5,"y":5},"aestheticValue":"good","comment":"nice colours"}]}`,
			"30", "designer",
		},
		{
			`{"QID1":"a.png"}`,
			`{"QID1":[` +
				`{"start":{"x":1,"y":1},"end":{"x":2,"y":2},"functionValue":"good","comment":""},` +
				`{"start":{"x":3,"y":3},"end":{"x":4,"y":4},"comment":"unrated note"}]}`,
			"40", "developer",
		},
		{"x.png", "{not json", "50", "manager"},
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return New(cfg)
}

func importFixture(t *testing.T, s *Session) ImportInfo {
	t.Helper()
	if _, err := s.BeginImport(context.Background(), BytesSource{Filename: "export.csv", Data: fixtureCSV(t)}); err != nil {
		t.Fatalf("BeginImport failed: %v", err)
	}
	info, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return info
}

func commentTexts(t *testing.T, s *Session) []string {
	t.Helper()
	var out []string
	for page := 1; page <= s.PageCount(); page++ {
		cs, err := s.Comments(page)
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range cs {
			out = append(out, c.Text)
		}
	}
	return out
}

func TestImportFlow(t *testing.T) {
	var logs bytes.Buffer
	s := newSession(t, Config{Logger: log.New(&logs, "", 0)})

	if s.ActiveIndex() != -1 {
		t.Errorf("Expected no active bucket before import, got %d", s.ActiveIndex())
	}

	table, err := s.BeginImport(context.Background(), BytesSource{Filename: "export.csv", Data: fixtureCSV(t)})
	if err != nil {
		t.Fatalf("BeginImport failed: %v", err)
	}
	if len(table.Rows) != 3 || s.State() != StateReviewing {
		t.Fatalf("Expected 3 rows under review, got %d rows in state %s", len(table.Rows), s.State())
	}

	if _, err := s.BeginImport(context.Background(), BytesSource{Filename: "other.csv", Data: fixtureCSV(t)}); !errors.Is(err, ErrImportInProgress) {
		t.Errorf("Expected ErrImportInProgress, got %v", err)
	}
	if err := s.DeleteColumns([]string{"image"}); !errors.Is(err, csvio.ErrRequiredColumn) {
		t.Errorf("Expected ErrRequiredColumn, got %v", err)
	}
	if err := s.DeleteColumns([]string{"Role"}); err != nil {
		t.Fatalf("DeleteColumns failed: %v", err)
	}

	info, err := s.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if info.Size != int64(len(fixtureCSV(t))) {
		t.Errorf("Expected raw export size %d, got %d", len(fixtureCSV(t)), info.Size)
	}
	if info.Rows != 3 || info.SkippedRows != 1 || info.Annotations != 3 || info.Buckets != 2 {
		t.Errorf("Unexpected import info %+v", info)
	}
	if len(info.DemographicColumns) != 1 || info.DemographicColumns[0] != "Age" {
		t.Errorf("Expected only Age after deleting Role, got %v", info.DemographicColumns)
	}
	if info.Fingerprint == "" {
		t.Error("Expected a fingerprint")
	}
	if s.State() != StateIdle {
		t.Errorf("Expected idle after commit, got %s", s.State())
	}
	if !bytes.Contains(logs.Bytes(), []byte("skipping row 3")) {
		t.Errorf("Expected malformed row to be logged, got %q", logs.String())
	}

	buckets := s.Buckets()
	if len(buckets) != 2 || buckets[0].QuestionID != 1 || buckets[1].QuestionID != 2 {
		t.Fatalf("Unexpected buckets %+v", buckets)
	}
	if s.ActiveIndex() != 0 {
		t.Errorf("Expected first bucket active, got %d", s.ActiveIndex())
	}

	got := commentTexts(t, s)
	if len(got) != 2 || got[0] != "Great header" || got[1] != "ugly footer" {
		t.Errorf("Unexpected comments %v", got)
	}
}

func TestBeginImportFailureKeepsState(t *testing.T) {
	s := newSession(t, Config{})
	importFixture(t, s)

	if _, err := s.BeginImport(context.Background(), BytesSource{Filename: "empty.csv"}); !errors.Is(err, csvio.ErrEmpty) {
		t.Fatalf("Expected ErrEmpty, got %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("Expected idle after failed import, got %s", s.State())
	}
	if len(s.Buckets()) != 2 || s.LastImport().Name != "export.csv" {
		t.Error("Expected previous import to survive a failed one")
	}
}

func TestCancelAndCommitErrors(t *testing.T) {
	s := newSession(t, Config{})

	if _, err := s.Commit(); !errors.Is(err, ErrNotReviewing) {
		t.Errorf("Expected ErrNotReviewing, got %v", err)
	}
	if err := s.Cancel(); !errors.Is(err, ErrNotReviewing) {
		t.Errorf("Expected ErrNotReviewing, got %v", err)
	}

	ctx := context.Background()
	if _, err := s.BeginImport(ctx, BytesSource{Filename: "export.csv", Data: fixtureCSV(t)}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRows([]int{0, 1, 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Commit(); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("Expected ErrNothingToCommit, got %v", err)
	}
	if err := s.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if s.State() != StateIdle || len(s.Buckets()) != 0 {
		t.Error("Expected cancel to leave an empty idle session")
	}
	if _, err := s.PendingTable(); !errors.Is(err, ErrNotReviewing) {
		t.Errorf("Expected ErrNotReviewing, got %v", err)
	}
}

func TestFeedbackToggle(t *testing.T) {
	s := newSession(t, Config{})
	importFixture(t, s)

	if err := s.ToggleFeedbackFilter("Sentiment", "negative"); err != nil {
		t.Fatalf("ToggleFeedbackFilter failed: %v", err)
	}
	if got := commentTexts(t, s); len(got) != 1 || got[0] != "Great header" {
		t.Errorf("Expected only the positive comment, got %v", got)
	}
	for _, f := range s.FeedbackFilters()[0].Filters {
		if f.ID == "negative" && f.Active {
			t.Error("Expected negative filter to be inactive")
		}
	}

	if err := s.ToggleFeedbackFilter("Sentiment", "negative"); err != nil {
		t.Fatal(err)
	}
	if s.CommentCount() != 2 {
		t.Errorf("Expected 2 comments after re-enabling, got %d", s.CommentCount())
	}

	if err := s.ToggleFeedbackFilter("Sentiment", "neutral"); err == nil {
		t.Error("Expected error for unknown filter")
	}
}

func TestCommentSearchIsIdempotent(t *testing.T) {
	s := newSession(t, Config{})
	importFixture(t, s)

	for i := 0; i < 2; i++ {
		s.SetCommentSearch("HEADER")
		if got := commentTexts(t, s); len(got) != 1 || got[0] != "Great header" {
			t.Fatalf("pass %d: unexpected comments %v", i, got)
		}
	}
	s.SetCommentSearch("")
	if s.CommentCount() != 2 {
		t.Errorf("Expected search reset to restore comments, got %d", s.CommentCount())
	}
}

func TestAnnotationSearch(t *testing.T) {
	s := newSession(t, Config{})
	importFixture(t, s)

	s.SetAnnotationSearch("question 2")
	buckets := s.Buckets()
	if buckets[0].Visible || !buckets[1].Visible {
		t.Errorf("Expected only the second bucket visible, got %v/%v", buckets[0].Visible, buckets[1].Visible)
	}
	if s.ActiveIndex() != 1 {
		t.Errorf("Expected active index to move to 1, got %d", s.ActiveIndex())
	}
	// base keeps search results, view adds demographics on top
	if base := s.BaseBuckets(); base[0].Annotations[0].Visible() {
		t.Error("Expected base buckets to carry the search flags")
	}

	s.SetAnnotationSearch("nothing matches")
	if s.ActiveIndex() != -1 {
		t.Errorf("Expected -1 with everything hidden, got %d", s.ActiveIndex())
	}
	if s.CommentCount() != 0 {
		t.Error("Expected no comments without an active bucket")
	}
}

func TestDemographicFilters(t *testing.T) {
	s := newSession(t, Config{DemographicColumns: []string{"Age", "Missing"}})
	importFixture(t, s)

	facets := s.DemographicFilters()
	if len(facets) != 1 || facets[0].Key != "Age" || len(facets[0].Options) != 2 {
		t.Fatalf("Expected one Age facet with 2 options, got %+v", facets)
	}

	if got := s.SetActiveIndex(1); got != 1 {
		t.Fatalf("Expected to activate bucket 1, got %d", got)
	}
	if err := s.SetDemographicSelection("Age", []string{"40"}); err != nil {
		t.Fatalf("SetDemographicSelection failed: %v", err)
	}
	buckets := s.Buckets()
	if !buckets[0].Visible || buckets[1].Visible {
		t.Errorf("Expected only QID1 visible for Age=40, got %v/%v", buckets[0].Visible, buckets[1].Visible)
	}
	if s.ActiveIndex() != 0 {
		t.Errorf("Expected hidden active bucket to fall back to 0, got %d", s.ActiveIndex())
	}
	if s.CommentCount() != 0 {
		t.Errorf("Expected respondent 1's comments to be hidden, got %d", s.CommentCount())
	}
	// demographic filtering never touches the base
	if s.BaseBuckets()[1].Visible != true {
		t.Error("Expected base bucket to stay visible")
	}

	if err := s.AddDemographicFilter("Role"); err != nil {
		t.Fatalf("AddDemographicFilter failed: %v", err)
	}
	if err := s.AddDemographicFilter("Role"); err != nil || len(s.DemographicFilters()) != 2 {
		t.Errorf("Expected adding a facet twice to be a no-op, got %v", err)
	}
	if err := s.AddDemographicFilter("Shoe size"); err == nil {
		t.Error("Expected error for unknown column")
	}
	if err := s.SetDemographicSelection("Shoe size", []string{"9"}); err == nil {
		t.Error("Expected error for missing facet")
	}

	if err := s.SetDemographicSelection("Age", nil); err != nil {
		t.Fatal(err)
	}
	if s.CommentCount() != 2 {
		t.Errorf("Expected clearing the facet to restore comments, got %d", s.CommentCount())
	}
}

func TestScope(t *testing.T) {
	s := newSession(t, Config{})
	importFixture(t, s)

	s.SetScope(&types.Selection{Start: types.Point{X: 0, Y: 0}, End: types.Point{X: 15, Y: 15}})
	if got := commentTexts(t, s); len(got) != 1 || got[0] != "Great header" {
		t.Errorf("Expected only the contained comment, got %v", got)
	}
	if s.Scope() == nil {
		t.Error("Expected scope to be kept")
	}
	s.SetScope(nil)
	if s.CommentCount() != 2 {
		t.Errorf("Expected 2 comments without scope, got %d", s.CommentCount())
	}
}

func TestCommentPagination(t *testing.T) {
	s := newSession(t, Config{CommentsPerPage: 1})
	importFixture(t, s)

	if s.PageCount() != 2 {
		t.Fatalf("Expected 2 pages, got %d", s.PageCount())
	}
	p1, _ := s.Comments(1)
	p2, _ := s.Comments(2)
	if len(p1) != 1 || p1[0].Text != "Great header" || len(p2) != 1 || p2[0].Text != "ugly footer" {
		t.Errorf("Unexpected pages %v %v", p1, p2)
	}
	if p3, err := s.Comments(3); err != nil || len(p3) != 0 {
		t.Errorf("Expected empty page past the end, got %v, %v", p3, err)
	}
	if _, err := s.Comments(0); err == nil {
		t.Error("Expected error for page 0")
	}
}

func TestActiveComment(t *testing.T) {
	s := newSession(t, Config{})
	importFixture(t, s)

	cs, _ := s.Comments(1)
	footer := cs[1].UID
	if err := s.SetActiveComment(footer); err != nil {
		t.Fatalf("SetActiveComment failed: %v", err)
	}
	if s.ActiveComment() != footer {
		t.Error("Expected active comment to be set")
	}

	// hiding the comment clears the highlight
	if err := s.ToggleFeedbackFilter("Sentiment", "negative"); err != nil {
		t.Fatal(err)
	}
	if s.ActiveComment() != "" {
		t.Errorf("Expected highlight to be cleared, got %q", s.ActiveComment())
	}
	if err := s.SetActiveComment(footer); err == nil {
		t.Error("Expected error for hidden comment")
	}
}

func TestImportSummary(t *testing.T) {
	s := newSession(t, Config{})

	err := s.ImportSummary([]byte(`{"summary":"x","analysis":"not a list","strengths":"","improvements":""}`))
	var verr *summary.ValidationError
	if !errors.As(err, &verr) || verr.Field != "analysis" {
		t.Fatalf("Expected analysis validation error, got %v", err)
	}
	if s.Summary() != nil {
		t.Error("Expected invalid summary not to be committed")
	}

	if err := s.ImportSummary([]byte(`{"summary":"x","analysis":["a"],"strengths":"s","improvements":"i"}`)); err != nil {
		t.Fatalf("ImportSummary failed: %v", err)
	}
	if sum := s.Summary(); sum == nil || sum.Summary != "x" {
		t.Errorf("Unexpected summary %+v", sum)
	}
}

func TestCommitReplacesState(t *testing.T) {
	s := newSession(t, Config{DemographicColumns: []string{"Age"}})
	importFixture(t, s)

	s.SetCommentSearch("header")
	s.ToggleFeedbackFilter("Category", "functional")
	s.SetDemographicSelection("Age", []string{"30"})
	s.SetSummary(&types.ExecutiveSummary{Summary: "old"})

	importFixture(t, s)

	if s.CommentCount() != 2 {
		t.Errorf("Expected filters to be reset, got %d comments", s.CommentCount())
	}
	for _, g := range s.FeedbackFilters() {
		for _, f := range g.Filters {
			if !f.Active {
				t.Errorf("Expected %s to be active after re-import", f.ID)
			}
		}
	}
	if sel := s.DemographicFilters()[0].SelectedValues; len(sel) != 0 {
		t.Errorf("Expected facet selection reset, got %v", sel)
	}
	if s.Summary() != nil {
		t.Error("Expected summary to be dropped on re-import")
	}
}

func TestPathSource(t *testing.T) {
	src := PathSource("/tmp/does-not-exist/export.csv")
	if src.Name() != "export.csv" {
		t.Errorf("Unexpected name %q", src.Name())
	}
	s := newSession(t, Config{})
	if _, err := s.BeginImport(context.Background(), src); err == nil {
		t.Error("Expected error for missing file")
	}
	if s.State() != StateIdle {
		t.Error("Expected idle after failed open")
	}
}
