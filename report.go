package annotationreview

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/menta2k/annotation-review/pkg/session"
	"github.com/menta2k/annotation-review/pkg/types"
)

// QuestionReport counts what is shown for one question
type QuestionReport struct {
	QuestionID         int    `json:"questionId"`
	ImageName          string `json:"imageName"`
	ImagePath          string `json:"imagePath"`
	Visible            bool   `json:"visible"`
	Respondents        int    `json:"respondents"`
	VisibleRespondents int    `json:"visibleRespondents"`
	Selections         int    `json:"selections"`
	VisibleSelections  int    `json:"visibleSelections"`
	Comments           int    `json:"comments"`
	FunctionGood       int    `json:"functionGood"`
	FunctionBad        int    `json:"functionBad"`
	AestheticGood      int    `json:"aestheticGood"`
	AestheticBad       int    `json:"aestheticBad"`
	Output             string `json:"output,omitempty"`
}

// Report summarises the current view of a session
type Report struct {
	Import    session.ImportInfo      `json:"import"`
	Questions []QuestionReport        `json:"questions"`
	Summary   *types.ExecutiveSummary `json:"summary,omitempty"`
}

// Report counts respondents, selections and ratings per question of the
// current view. Ratings and comments are counted over visible selections.
func (r *Reviewer) Report() Report {
	buckets := r.session.Buckets()
	rep := Report{
		Import:    r.session.LastImport(),
		Questions: make([]QuestionReport, 0, len(buckets)),
		Summary:   r.session.Summary(),
	}
	for _, b := range buckets {
		q := QuestionReport{QuestionID: b.QuestionID, Visible: b.Visible, Respondents: len(b.Annotations)}
		for _, a := range b.Annotations {
			if q.ImageName == "" {
				q.ImageName = a.ImageName
			}
			if q.ImagePath == "" {
				q.ImagePath = a.ImagePath
			}
			q.Selections += len(a.Selections)

			shown := false
			for _, s := range a.Selections {
				if !s.Visible() {
					continue
				}
				shown = true
				q.VisibleSelections++
				if strings.TrimSpace(s.Comment) != "" {
					q.Comments++
				}
				switch s.FunctionValue {
				case types.RatingGood:
					q.FunctionGood++
				case types.RatingBad:
					q.FunctionBad++
				}
				switch s.AestheticValue {
				case types.RatingGood:
					q.AestheticGood++
				case types.RatingBad:
					q.AestheticBad++
				}
			}
			if shown && a.Visible() {
				q.VisibleRespondents++
			}
		}
		rep.Questions = append(rep.Questions, q)
	}
	return rep
}

// WriteJSON writes the report as indented JSON
func (rep Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

var reportHeader = []interface{}{
	"Question", "Image", "Visible", "Respondents", "Visible respondents",
	"Selections", "Visible selections", "Comments",
	"Function good", "Function bad", "Aesthetic good", "Aesthetic bad", "Output",
}

// WriteXLSX writes the per-question counts to a workbook, with the executive
// summary on a second sheet when one is committed
func (rep Report) WriteXLSX(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Questions"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &reportHeader); err != nil {
		return err
	}
	for i, q := range rep.Questions {
		row := []interface{}{
			q.ImageName, q.ImagePath, q.Visible, q.Respondents, q.VisibleRespondents,
			q.Selections, q.VisibleSelections, q.Comments,
			q.FunctionGood, q.FunctionBad, q.AestheticGood, q.AestheticBad, q.Output,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if rep.Summary != nil {
		const summarySheet = "Summary"
		if _, err := f.NewSheet(summarySheet); err != nil {
			return err
		}
		rows := [][]interface{}{
			{"Summary", rep.Summary.Summary},
			{"Strengths", rep.Summary.Strengths},
			{"Improvements", rep.Summary.Improvements},
		}
		for _, a := range rep.Summary.Analysis {
			rows = append(rows, []interface{}{"Analysis", a})
		}
		for i := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
