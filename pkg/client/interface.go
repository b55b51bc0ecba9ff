// Package client defines what the review step needs from a vision model
// backend and parses the models' loosely formatted JSON answers.
package client

import (
	"context"

	"github.com/menta2k/leafcrop/pkg/types"
)

type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	ReviewCrop(ctx context.Context, model, prompt, imgB64 string) (*types.CropReview, error)
}
