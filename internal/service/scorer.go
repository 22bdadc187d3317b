package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/fleveque/listing-check/internal/embed"
)

// ErrBackend wraps failures of the embedding backend.
var ErrBackend = errors.New("embedding backend failed")

// ErrDimensionMismatch is returned when two vectors can't be compared:
// different lengths, or one of them has zero norm.
var ErrDimensionMismatch = errors.New("embedding vectors are not comparable")

// Scorer measures how well an image matches a description. The description
// is expanded into several prompts and the best cosine similarity wins.
type Scorer struct {
	embedder  embed.Client
	processor *ImageProcessor
	templates []string
	threshold float64
}

// NewScorer creates a scorer. Templates must each contain one %s.
func NewScorer(embedder embed.Client, processor *ImageProcessor, templates []string, threshold float64) *Scorer {
	return &Scorer{
		embedder:  embedder,
		processor: processor,
		templates: templates,
		threshold: threshold,
	}
}

// Threshold is the inclusive match cutoff.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Prompts expands description through every template, in template order.
func (s *Scorer) Prompts(description string) []string {
	prompts := make([]string, len(s.templates))
	for i, tmpl := range s.templates {
		prompts[i] = fmt.Sprintf(tmpl, description)
	}
	return prompts
}

// Score returns the maximum cosine similarity between the image and the
// description's prompts. A corrupt image fails with ErrImageDecode before
// the embedding backend is contacted.
func (s *Scorer) Score(ctx context.Context, image []byte, description string) (float64, error) {
	normalized, err := s.processor.Normalize(image)
	if err != nil {
		return 0, err
	}

	prompts := s.Prompts(description)
	res, err := s.embedder.Embed(ctx, embed.Request{Image: normalized, Texts: prompts})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	best := math.Inf(-1)
	for i, textVec := range res.Texts {
		sim, err := CosineSimilarity(res.Image, textVec)
		if err != nil {
			return 0, fmt.Errorf("prompt %q: %w", prompts[i], err)
		}
		best = max(best, sim)
	}
	if math.IsInf(best, -1) {
		return 0, errors.New("no prompts to score against")
	}
	return best, nil
}

// Matches reports whether score clears the threshold.
func (s *Scorer) Matches(score float64) bool {
	return score >= s.threshold
}

// CosineSimilarity computes a·b / (|a||b|) in float64. The result is
// clamped to [-1, 1] to absorb rounding.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("%w: dims %d and %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero-norm vector", ErrDimensionMismatch)
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim)), nil
}
