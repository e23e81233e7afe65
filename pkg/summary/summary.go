// Package summary validates executive summaries and drafts them with a
// language model from the comments respondents left.
package summary

import (
	"fmt"

	"github.com/ohler55/ojg/oj"

	"github.com/menta2k/annotation-review/pkg/types"
)

// ValidationError names the field of a summary document that is wrong
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Parse validates a summary document. Every field is required: summary,
// strengths and improvements must be strings and analysis an array of strings.
func Parse(data []byte) (*types.ExecutiveSummary, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, &ValidationError{Message: "summary must be a JSON object"}
	}

	var out types.ExecutiveSummary
	if out.Summary, err = stringField(obj, "summary"); err != nil {
		return nil, err
	}

	raw, ok := obj["analysis"]
	if !ok {
		return nil, &ValidationError{Field: "analysis", Message: "is required"}
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &ValidationError{Field: "analysis", Message: "must be an array of strings"}
	}
	out.Analysis = make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, &ValidationError{Field: fmt.Sprintf("analysis[%d]", i), Message: "must be a string"}
		}
		out.Analysis = append(out.Analysis, s)
	}

	if out.Strengths, err = stringField(obj, "strengths"); err != nil {
		return nil, err
	}
	if out.Improvements, err = stringField(obj, "improvements"); err != nil {
		return nil, err
	}
	return &out, nil
}

func stringField(obj map[string]interface{}, name string) (string, error) {
	raw, ok := obj[name]
	if !ok {
		return "", &ValidationError{Field: name, Message: "is required"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Field: name, Message: "must be a string"}
	}
	return s, nil
}
