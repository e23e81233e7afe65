package session

import (
	"fmt"
	"strings"

	"github.com/menta2k/annotation-review/pkg/types"
)

// Comment is one visible comment of the active bucket
type Comment struct {
	UID            string          `json:"uid"`
	QuestionID     int             `json:"questionId"`
	Text           string          `json:"text"`
	FunctionValue  types.Rating    `json:"functionValue"`
	AestheticValue types.Rating    `json:"aestheticValue"`
	Selection      types.Selection `json:"selection"`
}

// visibleComments lists the non-empty comments of visible selections of
// visible annotations in the active bucket. Callers hold mu.
func (s *Session) visibleComments() []Comment {
	if s.activeIndex < 0 || s.activeIndex >= len(s.view) {
		return nil
	}
	var out []Comment
	for _, a := range s.view[s.activeIndex].Annotations {
		if !a.Visible() {
			continue
		}
		for _, sel := range a.Selections {
			if !sel.Visible() || strings.TrimSpace(sel.Comment) == "" {
				continue
			}
			out = append(out, Comment{
				UID:            sel.UID,
				QuestionID:     a.QuestionID,
				Text:           sel.Comment,
				FunctionValue:  sel.FunctionValue,
				AestheticValue: sel.AestheticValue,
				Selection:      sel,
			})
		}
	}
	return out
}

func (s *Session) commentVisible(uid string) bool {
	for _, c := range s.visibleComments() {
		if c.UID == uid {
			return true
		}
	}
	return false
}

// CommentCount returns the number of visible comments in the active bucket
func (s *Session) CommentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visibleComments())
}

// PageCount returns the number of comment pages; at least 1
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.visibleComments())
	if n == 0 {
		return 1
	}
	return (n + s.config.CommentsPerPage - 1) / s.config.CommentsPerPage
}

// Comments returns one page of visible comments. Pages start at 1; a page
// past the end is empty.
func (s *Session) Comments(page int) ([]Comment, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.visibleComments()
	start := (page - 1) * s.config.CommentsPerPage
	if start >= len(all) {
		return []Comment{}, nil
	}
	end := start + s.config.CommentsPerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

// SetActiveComment highlights one visible comment of the active bucket;
// an empty uid clears the highlight
func (s *Session) SetActiveComment(uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uid != "" && !s.commentVisible(uid) {
		return fmt.Errorf("no visible comment with uid %q", uid)
	}
	s.activeComment = uid
	return nil
}

// ActiveComment returns the highlighted comment's uid
func (s *Session) ActiveComment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeComment
}
