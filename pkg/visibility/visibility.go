// Package visibility derives the show flags of buckets, annotations and
// selections from the dashboard's filter state.
//
// Every function returns new buckets; inputs are never modified.
package visibility

import (
	"strings"

	"github.com/menta2k/annotation-review/pkg/bucket"
	"github.com/menta2k/annotation-review/pkg/rules"
	"github.com/menta2k/annotation-review/pkg/types"
)

// State is the complete filter state of a dashboard session
type State struct {
	AnnotationQuery string
	CommentQuery    string
	FeedbackGroups  []types.FeedbackFilterGroup
	Scope           *types.Selection
	Demographics    map[string][]string
}

// Recompute derives the base and the visible buckets from the imported
// source. Feedback filters and searches produce the base; demographic
// filtering is layered on top of it to produce the view.
func Recompute(source []types.Bucket, st State) (base, view []types.Bucket) {
	base = ApplyFeedbackFilters(source, st.FeedbackGroups, st.Scope)
	base = SearchComments(base, st.CommentQuery)
	base = SearchAnnotations(base, st.AnnotationQuery)
	view = ApplyDemographicFilters(base, st.Demographics)
	return base, view
}

// ApplyDemographicFilters hides selections of annotations that do not match
// every active demographic filter and recomputes bucket visibility.
//
// A filter is active when its value list is non-empty. Selection visibility
// is only ever narrowed here. A bucket stays visible when at least one of
// its annotations matches and is itself visible.
func ApplyDemographicFilters(buckets []types.Bucket, filters map[string][]string) []types.Bucket {
	active := activeFilters(filters)

	out := make([]types.Bucket, len(buckets))
	for i, b := range buckets {
		nb := b.Clone()
		visible := false
		for j := range nb.Annotations {
			a := &nb.Annotations[j]
			matches := matchesDemographics(*a, active)
			for k := range a.Selections {
				a.Selections[k] = a.Selections[k].WithShow(a.Selections[k].Visible() && matches)
			}
			if matches && a.Visible() {
				visible = true
			}
		}
		nb.Visible = visible
		out[i] = nb
	}
	return out
}

func activeFilters(filters map[string][]string) map[string]map[string]struct{} {
	active := make(map[string]map[string]struct{})
	for key, values := range filters {
		if len(values) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		active[key] = set
	}
	return active
}

func matchesDemographics(a types.Annotation, active map[string]map[string]struct{}) bool {
	for key, allowed := range active {
		v, ok := a.Demographics[key]
		if !ok {
			return false
		}
		if _, ok := allowed[v]; !ok {
			return false
		}
	}
	return true
}

// ApplyFeedbackFilters sets every selection's visibility from the feedback
// groups and the optional scope selection
func ApplyFeedbackFilters(buckets []types.Bucket, groups []types.FeedbackFilterGroup, scope *types.Selection) []types.Bucket {
	return mapSelections(buckets, func(s types.Selection) types.Selection {
		return s.WithShow(rules.CheckSelectionShowEligibility(s, scope, groups))
	})
}

// SearchComments narrows selection visibility to comments containing query.
// The match is case-insensitive; an empty query matches every comment.
func SearchComments(buckets []types.Bucket, query string) []types.Bucket {
	q := strings.ToLower(strings.TrimSpace(query))
	return mapSelections(buckets, func(s types.Selection) types.Selection {
		return s.WithShow(s.Visible() && strings.Contains(strings.ToLower(s.Comment), q))
	})
}

// SearchAnnotations sets each annotation's visibility by a case-insensitive
// substring match on its name
func SearchAnnotations(buckets []types.Bucket, query string) []types.Bucket {
	q := strings.ToLower(strings.TrimSpace(query))
	out := bucket.Clone(buckets)
	for i := range out {
		for j := range out[i].Annotations {
			a := &out[i].Annotations[j]
			a.Show = types.Bool(strings.Contains(strings.ToLower(a.ImageName), q))
		}
	}
	return out
}

func mapSelections(buckets []types.Bucket, fn func(types.Selection) types.Selection) []types.Bucket {
	out := bucket.Clone(buckets)
	for i := range out {
		for j := range out[i].Annotations {
			sels := out[i].Annotations[j].Selections
			for k := range sels {
				sels[k] = fn(sels[k])
			}
		}
	}
	return out
}
