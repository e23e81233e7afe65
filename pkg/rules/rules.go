// Package rules holds the selection predicates shared by filtering, comment
// counting and scope handling.
package rules

import (
	"math"

	"github.com/menta2k/annotation-review/pkg/types"
)

// IsSelectionContained reports whether inner lies within outer on both axes.
//
// The comparison uses Start and End as given: callers must pass rectangles
// whose Start is the lesser corner (see Normalize).
func IsSelectionContained(outer, inner types.Selection) bool {
	return inner.Start.X >= outer.Start.X &&
		inner.End.X <= outer.End.X &&
		inner.Start.Y >= outer.Start.Y &&
		inner.End.Y <= outer.End.Y
}

// CheckForInitialShowEligibility reports whether a freshly imported selection
// carries at least one rating
func CheckForInitialShowEligibility(sel types.Selection) bool {
	return sel.FunctionValue != types.RatingNone || sel.AestheticValue != types.RatingNone
}

// CheckSelectionShowEligibility reports whether a selection passes the active
// scope and the feedback filter groups.
//
// A selection is eligible when it lies inside active (or active is nil) and
// some active field filter and active value filter agree on its rating.
func CheckSelectionShowEligibility(sel types.Selection, active *types.Selection, groups []types.FeedbackFilterGroup) bool {
	if active != nil && !IsSelectionContained(*active, sel) {
		return false
	}

	var fields, values []types.FeedbackFilter
	for _, g := range groups {
		for _, f := range g.Filters {
			if !f.Active {
				continue
			}
			switch g.GroupType {
			case types.GroupTypeField:
				fields = append(fields, f)
			case types.GroupTypeValue:
				values = append(values, f)
			}
		}
	}

	for _, field := range fields {
		got := sel.Field(field.FieldName)
		if got == types.RatingNone {
			continue
		}
		for _, value := range values {
			if got == value.Value {
				return true
			}
		}
	}
	return false
}

// Normalize returns a copy of sel whose Start is the top-left corner
func Normalize(sel types.Selection) types.Selection {
	x0, x1 := math.Min(sel.Start.X, sel.End.X), math.Max(sel.Start.X, sel.End.X)
	y0, y1 := math.Min(sel.Start.Y, sel.End.Y), math.Max(sel.Start.Y, sel.End.Y)
	sel.Start = types.Point{X: x0, Y: y0}
	sel.End = types.Point{X: x1, Y: y1}
	return sel
}

// IsNormalized reports whether Start is already the lesser corner
func IsNormalized(sel types.Selection) bool {
	return sel.Start.X <= sel.End.X && sel.Start.Y <= sel.End.Y
}
