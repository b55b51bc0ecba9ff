// Package review asks a vision model whether the red rectangle drawn on a
// leaf overlay encloses the page. The verdict is advisory: it is reported
// next to the crop and never changes the box.
package review

import (
	"context"
	"strings"

	"github.com/menta2k/leafcrop/pkg/client"
	"github.com/menta2k/leafcrop/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for a JSON verdict on the overlay
const DefaultPrompt = `You are checking the crop of a photographed book page.

The red rectangle marks the proposed crop. Return JSON only:
{
  "fits": true,
  "confidence": 0.0,
  "issues": ["issue1", "issue2"],
  "summary": "short neutral sentence"
}

HARD RULES
- "fits" is true only when the rectangle contains the whole page with all of its text and no facing page, binding shadow or background.
- "confidence" is in [0,1].
- "issues" names what is wrong, lowercase, e.g. "text cut at top", "background included", "binding shadow included". Empty when it fits.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// maxIssues bounds the issue list kept from a model answer
const maxIssues = 5

// Reviewer judges crop overlays with a vision model
type Reviewer struct {
	client client.VisionClient
	model  string
	prompt string
}

// NewReviewer creates a reviewer that sends DefaultPrompt to model
func NewReviewer(c client.VisionClient, model string) *Reviewer {
	return &Reviewer{client: c, model: model, prompt: DefaultPrompt}
}

// SetPrompt replaces the review prompt. An empty prompt restores the default.
func (r *Reviewer) SetPrompt(prompt string) {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	r.prompt = prompt
}

// Review sends a base64 overlay and returns the normalized verdict.
func (r *Reviewer) Review(ctx context.Context, overlayB64 string) (*types.CropReview, error) {
	res, err := r.client.ReviewCrop(ctx, r.model, r.prompt, overlayB64)
	if err != nil {
		return nil, types.ExternalError("review", "vision model failed", err)
	}
	return normalize(res), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (r *Reviewer) TestVision(ctx context.Context, imageB64 string) (string, error) {
	return r.client.SimpleQuery(ctx, r.model, SimpleTestPrompt, imageB64)
}

// normalize clamps confidence and cleans issues. A verdict of fits with
// issues listed is downgraded to not fitting.
func normalize(res *types.CropReview) *types.CropReview {
	out := *res
	out.Confidence = clamp(out.Confidence, 0, 1)
	out.Issues = normalizeIssues(out.Issues)
	out.Summary = strings.TrimSpace(out.Summary)
	if out.Fits && len(out.Issues) > 0 {
		out.Fits = false
	}
	return &out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeIssues lowercases, deduplicates and limits issues
func normalizeIssues(issues []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, maxIssues)
	for _, s := range issues {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == maxIssues {
			break
		}
	}
	return out
}
