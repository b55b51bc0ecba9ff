package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/leafcrop/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseCropReview decodes a model answer. Answers that hold no usable JSON
// come back as a failed review naming the problem instead of an error, so
// a chatty model never aborts a crop.
func ParseCropReview(raw string) *types.CropReview {
	clean := SanitizeModelJSON(raw)
	if !strings.HasPrefix(clean, "{") {
		return &types.CropReview{Issues: []string{"non-json"}, Summary: summarize(raw)}
	}

	var review types.CropReview
	if err := json.Unmarshal([]byte(clean), &review); err != nil {
		return &types.CropReview{Issues: []string{"parse-error"}, Summary: summarize(raw)}
	}
	return &review
}

// SanitizeModelJSON removes code fences, comments and trailing commas, and
// keeps only the outermost object.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func summarize(raw string) string {
	raw = strings.Join(strings.Fields(raw), " ")
	if len(raw) > 120 {
		return raw[:120] + "..."
	}
	return raw
}
