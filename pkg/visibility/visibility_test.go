package visibility

import (
	"reflect"
	"testing"

	"github.com/menta2k/annotation-review/pkg/bucket"
	"github.com/menta2k/annotation-review/pkg/types"
)

func sel(uid string, fn, ae types.Rating, comment string) types.Selection {
	return types.Selection{
		UID:            uid,
		Start:          types.Point{X: 0, Y: 0},
		End:            types.Point{X: 10, Y: 10},
		FunctionValue:  fn,
		AestheticValue: ae,
		Comment:        comment,
		Show:           types.Bool(fn != types.RatingNone || ae != types.RatingNone),
	}
}

// fixture builds two questions answered by two respondents
func fixture() []types.Bucket {
	return bucket.CreateAnnotationBuckets([]types.Annotation{
		{
			QuestionID:   1,
			ImageName:    "Question 1",
			Demographics: map[string]string{"age": "18-29", "role": "student"},
			Selections: []types.Selection{
				sel("a1", types.RatingGood, types.RatingNone, "Clear layout"),
				sel("a2", types.RatingNone, types.RatingBad, "ugly colours"),
			},
			Show: types.Bool(true),
		},
		{
			QuestionID:   1,
			ImageName:    "Question 1",
			Demographics: map[string]string{"age": "30-39"},
			Selections: []types.Selection{
				sel("b1", types.RatingBad, types.RatingNone, "confusing menu"),
			},
			Show: types.Bool(true),
		},
		{
			QuestionID:   2,
			ImageName:    "Question 2",
			Demographics: map[string]string{"age": "30-39", "role": "staff"},
			Selections: []types.Selection{
				sel("c1", types.RatingNone, types.RatingGood, "Nice LAYOUT"),
				sel("c2", types.RatingNone, types.RatingNone, "no rating"),
			},
			Show: types.Bool(true),
		},
	})
}

// visibleUIDs lists the uids of visible selections in bucket order
func visibleUIDs(buckets []types.Bucket) []string {
	var out []string
	for _, b := range buckets {
		for _, a := range b.Annotations {
			for _, s := range a.Selections {
				if s.Visible() {
					out = append(out, s.UID)
				}
			}
		}
	}
	return out
}

func TestApplyDemographicFiltersInactive(t *testing.T) {
	src := fixture()
	out := ApplyDemographicFilters(src, map[string][]string{"age": {}})

	if got, want := visibleUIDs(out), []string{"a1", "a2", "b1", "c1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v visible, got %v", want, got)
	}
	for i, b := range out {
		if !b.Visible {
			t.Errorf("bucket %d should be visible without active filters", i)
		}
	}
}

func TestApplyDemographicFilters(t *testing.T) {
	src := fixture()
	out := ApplyDemographicFilters(src, map[string][]string{"role": {"student"}})

	if got, want := visibleUIDs(out), []string{"a1", "a2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v visible, got %v", want, got)
	}
	if !out[0].Visible {
		t.Error("bucket 1 has a matching respondent and should be visible")
	}
	if out[1].Visible {
		t.Error("bucket 2 has no matching respondent and should be hidden")
	}

	// inputs are left untouched
	if got := visibleUIDs(src); len(got) != 4 {
		t.Errorf("source was modified: %v", got)
	}
}

func TestApplyDemographicFiltersMissingValue(t *testing.T) {
	out := ApplyDemographicFilters(fixture(), map[string][]string{"role": {"student", "staff"}})
	// respondent b has no role and is excluded
	if got, want := visibleUIDs(out), []string{"a1", "a2", "c1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v visible, got %v", want, got)
	}
}

func TestApplyDemographicFiltersNeverWidens(t *testing.T) {
	src := fixture()
	src[1].Annotations[0].Selections[0].Show = types.Bool(false)
	out := ApplyDemographicFilters(src, nil)
	if out[1].Annotations[0].Selections[0].Visible() {
		t.Error("a hidden selection must stay hidden")
	}
}

func TestApplyDemographicFiltersHiddenAnnotation(t *testing.T) {
	src := fixture()
	src[1].Annotations[0].Show = types.Bool(false)
	out := ApplyDemographicFilters(src, nil)
	if out[1].Visible {
		t.Error("a bucket whose only annotation is hidden should be hidden")
	}
}

func TestApplyDemographicFiltersIdempotent(t *testing.T) {
	filters := map[string][]string{"age": {"30-39"}}
	once := ApplyDemographicFilters(fixture(), filters)
	twice := ApplyDemographicFilters(once, filters)

	if !reflect.DeepEqual(visibleUIDs(once), visibleUIDs(twice)) {
		t.Errorf("second application changed the visible set: %v vs %v", visibleUIDs(once), visibleUIDs(twice))
	}
	for i := range once {
		if once[i].Visible != twice[i].Visible {
			t.Errorf("bucket %d visibility changed on reapplication", i)
		}
	}
}

func TestApplyFeedbackFilters(t *testing.T) {
	groups, err := ToggleFeedbackFilter(DefaultFeedbackFilters(), GroupSentiment, "positive")
	if err != nil {
		t.Fatal(err)
	}
	out := ApplyFeedbackFilters(fixture(), groups, nil)
	if got, want := visibleUIDs(out), []string{"a2", "b1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v visible, got %v", want, got)
	}
}

func TestApplyFeedbackFiltersReenables(t *testing.T) {
	src := fixture()
	src[0].Annotations[0].Selections[0].Show = types.Bool(false)
	out := ApplyFeedbackFilters(src, DefaultFeedbackFilters(), nil)
	if !out[0].Annotations[0].Selections[0].Visible() {
		t.Error("an eligible selection should be re-enabled by the feedback pass")
	}
	if out[1].Annotations[0].Selections[1].Visible() {
		t.Error("an unrated selection should stay hidden")
	}
}

func TestApplyFeedbackFiltersScope(t *testing.T) {
	src := fixture()
	src[1].Annotations[0].Selections[0].Start = types.Point{X: 50, Y: 50}
	src[1].Annotations[0].Selections[0].End = types.Point{X: 60, Y: 60}

	scope := types.Selection{Start: types.Point{X: 40, Y: 40}, End: types.Point{X: 100, Y: 100}}
	out := ApplyFeedbackFilters(src, DefaultFeedbackFilters(), &scope)
	if got, want := visibleUIDs(out), []string{"c1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v visible, got %v", want, got)
	}
}

func TestSearchComments(t *testing.T) {
	out := SearchComments(fixture(), "layout")
	if got, want := visibleUIDs(out), []string{"a1", "c1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v visible, got %v", want, got)
	}
	// an empty query leaves visibility alone
	if got := visibleUIDs(SearchComments(fixture(), "")); len(got) != 4 {
		t.Errorf("Expected 4 visible, got %v", got)
	}
}

func TestSearchAnnotations(t *testing.T) {
	out := SearchAnnotations(fixture(), "question 2")
	if out[0].Annotations[0].Visible() || out[0].Annotations[1].Visible() {
		t.Error("Question 1 annotations should be hidden")
	}
	if !out[1].Annotations[0].Visible() {
		t.Error("Question 2 annotation should be visible")
	}

	view := ApplyDemographicFilters(out, nil)
	if view[0].Visible || !view[1].Visible {
		t.Errorf("Expected only bucket 2 visible, got %v %v", view[0].Visible, view[1].Visible)
	}
}

func TestRecomputeIsRepeatable(t *testing.T) {
	src := fixture()
	st := State{
		CommentQuery:   "layout",
		FeedbackGroups: DefaultFeedbackFilters(),
		Demographics:   map[string][]string{"age": {"18-29"}},
	}

	base1, view1 := Recompute(src, st)
	base2, view2 := Recompute(src, st)
	if !reflect.DeepEqual(visibleUIDs(base1), visibleUIDs(base2)) || !reflect.DeepEqual(visibleUIDs(view1), visibleUIDs(view2)) {
		t.Error("Recompute should not depend on previous runs")
	}
	if got, want := visibleUIDs(view1), []string{"a1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v visible, got %v", want, got)
	}
	if got, want := visibleUIDs(base1), []string{"a1", "c1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("base should not carry demographic filtering: %v", got)
	}

	// clearing the search brings everything eligible back
	st.CommentQuery = ""
	st.Demographics = nil
	_, view3 := Recompute(src, st)
	if got := visibleUIDs(view3); len(got) != 4 {
		t.Errorf("Expected 4 visible after clearing filters, got %v", got)
	}
}

func TestToggleFeedbackFilter(t *testing.T) {
	groups := DefaultFeedbackFilters()
	toggled, err := ToggleFeedbackFilter(groups, GroupCategory, "aesthetic")
	if err != nil {
		t.Fatal(err)
	}
	if !groups[1].Filters[1].Active {
		t.Error("original groups must not change")
	}
	if toggled[1].Filters[1].Active {
		t.Error("aesthetic filter should be inactive")
	}
	if _, err := ToggleFeedbackFilter(groups, GroupCategory, "missing"); err == nil {
		t.Error("Expected error for unknown filter")
	}
}

func TestBuildDemographicFilter(t *testing.T) {
	f := BuildDemographicFilter(bucket.Flatten(fixture()), "age")
	if f.Key != "age" || f.Label != "age" {
		t.Errorf("unexpected filter %+v", f)
	}
	want := []types.FilterOption{{Value: "18-29", Label: "18-29"}, {Value: "30-39", Label: "30-39"}}
	if !reflect.DeepEqual(f.Options, want) {
		t.Errorf("Expected options %v, got %v", want, f.Options)
	}
	if len(f.SelectedValues) != 0 {
		t.Error("new filter should have nothing selected")
	}

	f.SelectedValues = []string{"18-29"}
	sv := SelectedValues([]types.DemographicFilter{f})
	if !reflect.DeepEqual(sv["age"], []string{"18-29"}) {
		t.Errorf("unexpected selected values %v", sv)
	}
}
