package bucket

import (
	"sort"

	"github.com/menta2k/annotation-review/pkg/types"
)

// CreateAnnotationBuckets groups annotations by question id.
// Annotations keep their input order inside a bucket and buckets are sorted
// by ascending question id. Every returned bucket starts out visible.
func CreateAnnotationBuckets(annotations []types.Annotation) []types.Bucket {
	index := make(map[int]int)
	var buckets []types.Bucket

	for _, a := range annotations {
		// ids below zero never come out of the importer; fold them into 0
		id := a.QuestionID
		if id < 0 {
			id = 0
		}
		i, ok := index[id]
		if !ok {
			i = len(buckets)
			index[id] = i
			buckets = append(buckets, types.Bucket{QuestionID: id, Visible: true})
		}
		buckets[i].Annotations = append(buckets[i].Annotations, a.Clone())
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].QuestionID < buckets[j].QuestionID
	})
	return buckets
}

// Flatten returns every annotation of every bucket in bucket order
func Flatten(buckets []types.Bucket) []types.Annotation {
	var out []types.Annotation
	for _, b := range buckets {
		for _, a := range b.Annotations {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Clone deep-copies a bucket list
func Clone(buckets []types.Bucket) []types.Bucket {
	if buckets == nil {
		return nil
	}
	out := make([]types.Bucket, len(buckets))
	for i, b := range buckets {
		out[i] = b.Clone()
	}
	return out
}

// GetVisibleAnnotationIndex resolves the bucket the dashboard should point at.
// The preferred index is kept when it names a visible bucket; otherwise the
// first visible, non-empty bucket wins. -1 means nothing is visible.
func GetVisibleAnnotationIndex(buckets []types.Bucket, preferred int) int {
	if preferred >= 0 && preferred < len(buckets) && isVisible(buckets[preferred]) {
		return preferred
	}
	for i, b := range buckets {
		if isVisible(b) {
			return i
		}
	}
	return -1
}

func isVisible(b types.Bucket) bool {
	return b.Visible && len(b.Annotations) > 0
}
