package types

// Rating is the value of one feedback axis of a selection.
// The empty Rating is the null rating.
type Rating string

const (
	RatingNone Rating = ""
	RatingGood Rating = "good"
	RatingBad  Rating = "bad"
)

// Field names of the two feedback axes, as they appear in the survey export
const (
	FieldFunctionValue  = "functionValue"
	FieldAestheticValue = "aestheticValue"
)

// Point is a position in image space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Selection is a rectangle drawn by a respondent together with its feedback.
// Start is not guaranteed to be the top-left corner.
type Selection struct {
	UID            string `json:"uid"`
	Start          Point  `json:"start"`
	End            Point  `json:"end"`
	FunctionValue  Rating `json:"functionValue"`
	AestheticValue Rating `json:"aestheticValue"`
	Comment        string `json:"comment"`
	Show           *bool  `json:"show,omitempty"`
}

// Visible reports the selection's derived visibility; an unset flag is visible
func (s Selection) Visible() bool {
	return s.Show == nil || *s.Show
}

// WithShow returns a copy of the selection with its visibility flag set
func (s Selection) WithShow(show bool) Selection {
	s.Show = Bool(show)
	return s
}

// Field returns the rating stored under a feedback field name
func (s Selection) Field(name string) Rating {
	switch name {
	case FieldFunctionValue:
		return s.FunctionValue
	case FieldAestheticValue:
		return s.AestheticValue
	default:
		return RatingNone
	}
}

// Annotation is one respondent's answer to one question
type Annotation struct {
	QuestionID   int               `json:"questionId"`
	ImageName    string            `json:"imageName"`
	Selections   []Selection       `json:"selections"`
	Image        string            `json:"image"`
	ImagePath    string            `json:"imagePath"`
	ScaleFactor  float64           `json:"scaleFactor"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Demographics map[string]string `json:"demographics"`
	Show         *bool             `json:"show,omitempty"`
}

// Visible reports the annotation's derived visibility; an unset flag is visible
func (a Annotation) Visible() bool {
	return a.Show == nil || *a.Show
}

// Clone returns a copy that shares no slices or maps with the original
func (a Annotation) Clone() Annotation {
	out := a
	if a.Selections != nil {
		out.Selections = make([]Selection, len(a.Selections))
		copy(out.Selections, a.Selections)
	}
	if a.Demographics != nil {
		out.Demographics = make(map[string]string, len(a.Demographics))
		for k, v := range a.Demographics {
			out.Demographics[k] = v
		}
	}
	return out
}

// Bucket holds every annotation answering the same question.
// Visible is the bucket's aggregate visibility.
type Bucket struct {
	QuestionID  int          `json:"questionId"`
	Annotations []Annotation `json:"annotations"`
	Visible     bool         `json:"visible"`
}

// Clone returns a deep copy of the bucket
func (b Bucket) Clone() Bucket {
	out := b
	out.Annotations = make([]Annotation, len(b.Annotations))
	for i, a := range b.Annotations {
		out.Annotations[i] = a.Clone()
	}
	return out
}

// FilterOption is one selectable value of a demographic filter
type FilterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DemographicFilter is a multi-select facet over one demographic column
type DemographicFilter struct {
	Key            string         `json:"key"`
	Label          string         `json:"label"`
	Options        []FilterOption `json:"options"`
	SelectedValues []string       `json:"selectedValues"`
}

// GroupType tells whether a feedback group filters on a field or on a value
type GroupType string

const (
	GroupTypeField GroupType = "field"
	GroupTypeValue GroupType = "value"
)

// FeedbackFilter is one toggle inside a feedback filter group
type FeedbackFilter struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Value     Rating `json:"value"`
	FieldName string `json:"fieldName"`
	Active    bool   `json:"active"`
}

// FeedbackFilterGroup is a named set of feedback toggles
type FeedbackFilterGroup struct {
	Group      string           `json:"group"`
	GroupCount int              `json:"groupCount"`
	GroupType  GroupType        `json:"groupType"`
	Filters    []FeedbackFilter `json:"filters"`
}

// ExecutiveSummary is the researcher-supplied summary shown beside the data
type ExecutiveSummary struct {
	Summary      string   `json:"summary"`
	Analysis     []string `json:"analysis"`
	Strengths    string   `json:"strengths"`
	Improvements string   `json:"improvements"`
}

// Row is one parsed data row keyed by column name; a missing key is undefined
type Row map[string]string

// Table is a parsed tabular export
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Bool returns a pointer to b
func Bool(b bool) *bool {
	return &b
}
