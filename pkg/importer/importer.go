// Package importer turns rows of a survey export into annotations.
//
// Each row carries the selections a respondent drew for one or more
// questions. A row expands into one Annotation per question it answers;
// malformed rows are logged and skipped without aborting the import.
package importer

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"

	"github.com/menta2k/annotation-review/pkg/rules"
	"github.com/menta2k/annotation-review/pkg/types"
)

// Core column names of the export schema
const (
	ColumnImage          = "image"
	ColumnSelectionsData = "selectionsData"
	ColumnMetadata       = "metadata"
	ColumnQuestionID     = "questionId"
)

// CoreColumns are reserved by the importer and never treated as demographics.
// Besides the selection payload this covers the response bookkeeping columns
// every Qualtrics export carries.
var CoreColumns = []string{
	ColumnImage,
	ColumnSelectionsData,
	ColumnMetadata,
	ColumnQuestionID,
	"StartDate",
	"EndDate",
	"Status",
	"IPAddress",
	"Progress",
	"Duration (in seconds)",
	"Finished",
	"RecordedDate",
	"ResponseId",
	"RecipientLastName",
	"RecipientFirstName",
	"RecipientEmail",
	"ExternalReference",
	"LocationLatitude",
	"LocationLongitude",
	"DistributionChannel",
	"UserLanguage",
}

// Canvas defaults used when a row has no metadata for a question
const (
	DefaultWidth       = 723
	DefaultHeight      = 534
	DefaultScaleFactor = 1.0
)

const questionPrefix = "QID"

// Result is the outcome of one import
type Result struct {
	Annotations        []types.Annotation `json:"annotations"`
	DemographicColumns []string           `json:"demographicColumns"`
	SkippedRows        int                `json:"skippedRows"`
}

// Importer expands export rows into annotations
type Importer struct {
	logger *log.Logger
	core   map[string]struct{}
	canvas meta
}

// New creates an Importer that logs through the standard logger
func New() *Importer {
	core := make(map[string]struct{}, len(CoreColumns))
	for _, c := range CoreColumns {
		core[c] = struct{}{}
	}
	return &Importer{
		logger: log.Default(),
		core:   core,
		canvas: meta{width: DefaultWidth, height: DefaultHeight, scale: DefaultScaleFactor},
	}
}

// SetCanvasDefaults replaces the canvas used for questions without metadata.
// Non-positive values keep the current default.
func (im *Importer) SetCanvasDefaults(width, height int, scale float64) {
	if width > 0 {
		im.canvas.width = width
	}
	if height > 0 {
		im.canvas.height = height
	}
	if scale > 0 {
		im.canvas.scale = scale
	}
}

// SetLogger replaces the logger used for skipped rows
func (im *Importer) SetLogger(l *log.Logger) {
	if l != nil {
		im.logger = l
	}
}

// Import runs a fresh import with a default Importer
func Import(rows []types.Row, allColumns []string) Result {
	return New().Import(rows, allColumns)
}

// IsCoreColumn reports whether the column is reserved by the importer
func (im *Importer) IsCoreColumn(name string) bool {
	_, ok := im.core[name]
	return ok
}

// Import expands rows into annotations. It never fails as a whole: rows that
// cannot be read are logged and dropped.
func (im *Importer) Import(rows []types.Row, allColumns []string) Result {
	res := Result{DemographicColumns: im.demographicColumns(allColumns)}

	for i, row := range rows {
		annotations, err := im.importRow(row)
		if err != nil {
			im.logger.Printf("importer: skipping row %d: %v", i+1, err)
			res.SkippedRows++
			continue
		}
		res.Annotations = append(res.Annotations, annotations...)
	}

	res.Annotations = finalize(res.Annotations)
	return res
}

func (im *Importer) demographicColumns(all []string) []string {
	out := make([]string, 0, len(all))
	for _, c := range all {
		if !im.IsCoreColumn(c) {
			out = append(out, c)
		}
	}
	return out
}

// finalize assigns fresh identities and the initial visibility flags
func finalize(annotations []types.Annotation) []types.Annotation {
	for i := range annotations {
		annotations[i].Show = types.Bool(true)
		for j := range annotations[i].Selections {
			sel := &annotations[i].Selections[j]
			sel.UID = uuid.New().String()
			sel.Show = types.Bool(rules.CheckForInitialShowEligibility(*sel))
		}
	}
	return annotations
}

func (im *Importer) importRow(row types.Row) ([]types.Annotation, error) {
	rawSelections := row[ColumnSelectionsData]
	rawImage := row[ColumnImage]
	if strings.TrimSpace(rawSelections) == "" || strings.TrimSpace(rawImage) == "" {
		return nil, fmt.Errorf("missing %s or %s", ColumnSelectionsData, ColumnImage)
	}

	demographics := make(map[string]string)
	for col, v := range row {
		if im.IsCoreColumn(col) {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			demographics[col] = v
		}
	}

	selections, err := parseObject(rawSelections)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ColumnSelectionsData, err)
	}

	metadata := map[string]any{}
	if raw := strings.TrimSpace(row[ColumnMetadata]); raw != "" {
		if metadata, err = parseObject(raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ColumnMetadata, err)
		}
	}

	imageURL, imageMap := parseImage(rawImage)

	keys := questionKeys(row[ColumnQuestionID], imageMap, selections)
	if len(keys) == 0 {
		return nil, fmt.Errorf("no question ids")
	}

	annotations := make([]types.Annotation, 0, len(keys))
	for _, key := range keys {
		id, ok := parseQuestionNumber(key)
		name := key
		if ok {
			name = fmt.Sprintf("Question %d", id)
		}

		path := imageURL
		if imageMap != nil {
			path = imageMap[key]
		}

		md := parseMeta(metadata[key], im.canvas)

		annotations = append(annotations, types.Annotation{
			QuestionID:   id,
			ImageName:    name,
			Selections:   parseSelections(selections[key]),
			ImagePath:    path,
			ScaleFactor:  md.scale,
			Width:        md.width,
			Height:       md.height,
			Demographics: copyMap(demographics),
		})
	}
	return annotations, nil
}

// parseObject parses a JSON object field
func parseObject(raw string) (map[string]any, error) {
	v, err := oj.ParseString(raw)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
}

// parseImage reads the image column as either a per-question URL map or a
// single URL shared by every question of the row
func parseImage(raw string) (string, map[string]string) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	obj, err := parseObject(trimmed)
	if err != nil {
		return trimmed, nil
	}
	urls := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			urls[k] = s
		} else if v != nil {
			urls[k] = fmt.Sprint(v)
		} else {
			urls[k] = ""
		}
	}
	return "", urls
}

// questionKeys picks the questions a row answers: its own questionId, else
// the image map keys, else the selectionsData keys
func questionKeys(questionID string, imageMap map[string]string, selections map[string]any) []string {
	if q := strings.TrimSpace(questionID); q != "" {
		return []string{NormalizeQuestionID(q)}
	}
	var keys []string
	if imageMap != nil {
		for k := range imageMap {
			keys = append(keys, k)
		}
	} else {
		for k := range selections {
			keys = append(keys, k)
		}
	}
	sortQuestionKeys(keys)
	return keys
}

// sortQuestionKeys orders keys numerically where possible so expansion order
// is stable across runs
func sortQuestionKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aok := parseQuestionNumber(keys[i])
		b, bok := parseQuestionNumber(keys[j])
		if aok && bok && a != b {
			return a < b
		}
		if aok != bok {
			return aok
		}
		return keys[i] < keys[j]
	})
}

// NormalizeQuestionID returns the canonical QID<n> form of a question token
func NormalizeQuestionID(token string) string {
	token = strings.TrimSpace(token)
	return questionPrefix + strings.TrimPrefix(token, questionPrefix)
}

// parseQuestionNumber reads the leading digits after the QID prefix
func parseQuestionNumber(key string) (int, bool) {
	rest := strings.TrimPrefix(strings.TrimSpace(key), questionPrefix)
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

type meta struct {
	width, height int
	scale         float64
}

// parseMeta reads one question's canvas metadata over the defaults
func parseMeta(v any, defaults meta) meta {
	m := defaults
	obj, ok := v.(map[string]any)
	if !ok {
		return m
	}
	if w, ok := dimension(obj["width"]); ok {
		m.width = w
	}
	if h, ok := dimension(obj["height"]); ok {
		m.height = h
	}
	if s, ok := number(obj["imageScaleFactor"]); ok && s > 0 && !math.IsInf(s, 0) {
		m.scale = s
	}
	return m
}

// dimension reads a positive canvas size that fits an int32; anything else
// keeps the default
func dimension(v any) (int, bool) {
	n, ok := number(v)
	if !ok || math.IsNaN(n) || n <= 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func parseSelections(v any) []types.Selection {
	list, ok := v.([]any)
	if !ok {
		return []types.Selection{}
	}
	out := make([]types.Selection, 0, len(list))
	for _, item := range list {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		comment, _ := raw["comment"].(string)
		out = append(out, types.Selection{
			Start:          parsePoint(raw["start"]),
			End:            parsePoint(raw["end"]),
			FunctionValue:  coerceRating(raw[types.FieldFunctionValue]),
			AestheticValue: coerceRating(raw[types.FieldAestheticValue]),
			Comment:        comment,
		})
	}
	return out
}

func parsePoint(v any) types.Point {
	obj, ok := v.(map[string]any)
	if !ok {
		return types.Point{}
	}
	x, _ := number(obj["x"])
	y, _ := number(obj["y"])
	return types.Point{X: x, Y: y}
}

// coerceRating maps anything other than "good" or "bad" to the null rating
func coerceRating(v any) types.Rating {
	s, _ := v.(string)
	switch types.Rating(s) {
	case types.RatingGood:
		return types.RatingGood
	case types.RatingBad:
		return types.RatingBad
	default:
		return types.RatingNone
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
