package visibility

import (
	"fmt"
	"sort"

	"github.com/menta2k/annotation-review/pkg/types"
)

// Feedback group names
const (
	GroupSentiment = "Sentiment"
	GroupCategory  = "Category"
)

// DefaultFeedbackFilters returns the Sentiment and Category groups with every
// toggle active
func DefaultFeedbackFilters() []types.FeedbackFilterGroup {
	groups := []types.FeedbackFilterGroup{
		{
			Group:     GroupSentiment,
			GroupType: types.GroupTypeValue,
			Filters: []types.FeedbackFilter{
				{ID: "positive", Label: "Positive", Value: types.RatingGood, Active: true},
				{ID: "negative", Label: "Negative", Value: types.RatingBad, Active: true},
			},
		},
		{
			Group:     GroupCategory,
			GroupType: types.GroupTypeField,
			Filters: []types.FeedbackFilter{
				{ID: "functional", Label: "Functional", FieldName: types.FieldFunctionValue, Active: true},
				{ID: "aesthetic", Label: "Aesthetic", FieldName: types.FieldAestheticValue, Active: true},
			},
		},
	}
	for i := range groups {
		groups[i].GroupCount = len(groups[i].Filters)
	}
	return groups
}

// CloneFeedbackGroups deep-copies feedback groups
func CloneFeedbackGroups(groups []types.FeedbackFilterGroup) []types.FeedbackFilterGroup {
	out := make([]types.FeedbackFilterGroup, len(groups))
	for i, g := range groups {
		out[i] = g
		out[i].Filters = append([]types.FeedbackFilter(nil), g.Filters...)
	}
	return out
}

// ToggleFeedbackFilter flips one filter's active flag and returns new groups
func ToggleFeedbackFilter(groups []types.FeedbackFilterGroup, group, id string) ([]types.FeedbackFilterGroup, error) {
	out := CloneFeedbackGroups(groups)
	for gi := range out {
		if out[gi].Group != group {
			continue
		}
		for fi := range out[gi].Filters {
			if out[gi].Filters[fi].ID == id {
				out[gi].Filters[fi].Active = !out[gi].Filters[fi].Active
				return out, nil
			}
		}
	}
	return groups, fmt.Errorf("unknown feedback filter %s/%s", group, id)
}

// BuildDemographicFilter derives a facet from the distinct values observed
// for key across the annotations
func BuildDemographicFilter(annotations []types.Annotation, key string) types.DemographicFilter {
	seen := make(map[string]struct{})
	for _, a := range annotations {
		if v, ok := a.Demographics[key]; ok {
			seen[v] = struct{}{}
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)

	opts := make([]types.FilterOption, len(values))
	for i, v := range values {
		opts[i] = types.FilterOption{Value: v, Label: v}
	}
	return types.DemographicFilter{
		Key:            key,
		Label:          key,
		Options:        opts,
		SelectedValues: []string{},
	}
}

// SelectedValues collects the selected values of every facet by key
func SelectedValues(filters []types.DemographicFilter) map[string][]string {
	out := make(map[string][]string, len(filters))
	for _, f := range filters {
		out[f.Key] = append([]string(nil), f.SelectedValues...)
	}
	return out
}
