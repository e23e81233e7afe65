package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/menta2k/annotation-review/pkg/client"
	"github.com/menta2k/annotation-review/pkg/llamacpp"
	"github.com/menta2k/annotation-review/pkg/ollama"
	"github.com/menta2k/annotation-review/pkg/types"
)

// DefaultPrompt introduces the comment digest sent to the model
const DefaultPrompt = `You are a UX researcher summarising feedback on a product image.
Respondents drew boxes on the image, rated each box and optionally left a comment.
The ratings and comments below are grouped by question.

Return JSON only:
{
  "summary": "two or three sentences on the overall reaction",
  "analysis": ["one finding per entry", "..."],
  "strengths": "what respondents liked",
  "improvements": "what respondents want changed"
}

HARD RULES
- Base every statement on the comments given. Do not invent feedback.
- analysis holds between 3 and 6 short entries.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// maxCommentsPerQuestion keeps prompts within small context windows
const maxCommentsPerQuestion = 200

// NewClient returns the text client for a backend name
func NewClient(backend, serverURL string) (client.TextClient, error) {
	switch strings.ToLower(backend) {
	case "", "ollama":
		c, err := ollama.NewClient(serverURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "llamacpp", "llama.cpp":
		c, err := llamacpp.NewClient(serverURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown summary backend %q (use ollama or llamacpp)", backend)
	}
}

// Generator drafts executive summaries with a language model
type Generator struct {
	client client.TextClient
	model  string
	prompt string
}

// NewGenerator creates a generator using the default prompt
func NewGenerator(c client.TextClient, model string) *Generator {
	return &Generator{client: c, model: model, prompt: DefaultPrompt}
}

// SetPrompt replaces the instructions placed before the comment digest
func (g *Generator) SetPrompt(prompt string) {
	g.prompt = prompt
}

// Generate asks the model for a summary of the visible comments in buckets.
// imgB64 optionally attaches a rendered heatmap. A reply that does not
// validate is returned as an error, never as a partial summary.
func (g *Generator) Generate(ctx context.Context, buckets []types.Bucket, imgB64 string) (*types.ExecutiveSummary, error) {
	digest := Digest(buckets)
	if digest == "" {
		return nil, fmt.Errorf("no visible comments to summarise")
	}

	reply, err := g.client.Complete(ctx, g.model, g.prompt+"\n\n"+digest, imgB64)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	out, err := Parse([]byte(SanitizeModelJSON(reply)))
	if err != nil {
		return nil, fmt.Errorf("model reply rejected: %w", err)
	}
	return out, nil
}

// Digest renders the visible, commented selections of visible buckets as
// plain text, one section per question
func Digest(buckets []types.Bucket) string {
	var b strings.Builder
	for _, bucket := range buckets {
		if !bucket.Visible {
			continue
		}
		var lines []string
		for _, a := range bucket.Annotations {
			if !a.Visible() {
				continue
			}
			for _, s := range a.Selections {
				comment := strings.TrimSpace(s.Comment)
				if !s.Visible() || comment == "" {
					continue
				}
				if len(lines) == maxCommentsPerQuestion {
					break
				}
				lines = append(lines, fmt.Sprintf("- [function: %s, aesthetic: %s] %s",
					ratingLabel(s.FunctionValue), ratingLabel(s.AestheticValue), oneLine(comment)))
			}
		}
		if len(lines) == 0 {
			continue
		}
		name := fmt.Sprintf("Question %d", bucket.QuestionID)
		if len(bucket.Annotations) > 0 && bucket.Annotations[0].ImageName != "" {
			name = bucket.Annotations[0].ImageName
		}
		fmt.Fprintf(&b, "## %s\n%s\n\n", name, strings.Join(lines, "\n"))
	}
	return strings.TrimSpace(b.String())
}

func ratingLabel(r types.Rating) string {
	if r == types.RatingNone {
		return "unrated"
	}
	return string(r)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
