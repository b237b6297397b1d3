package extract

import (
	"context"
	"fmt"
	"strings"
)

// DefaultMinOCRConfidence is the floor below which a provider's result is
// treated as a failed attempt and the next provider is tried.
const DefaultMinOCRConfidence = 0.5

// Chain tries an ordered list of OCR providers and returns the first
// acceptable result. If every provider fails, the aggregated error names
// the file and page so the caller can surface an actionable message
// instead of silently leaving the page empty.
type Chain struct {
	providers     []OCRProvider
	minConfidence float64
}

// NewChain builds an OCR chain over the given providers, tried in order.
func NewChain(providers []OCRProvider, minConfidence float64) *Chain {
	if minConfidence <= 0 {
		minConfidence = DefaultMinOCRConfidence
	}
	return &Chain{providers: providers, minConfidence: minConfidence}
}

// HasProviders reports whether any OCR backend is configured.
func (c *Chain) HasProviders() bool {
	return c != nil && len(c.providers) > 0
}

// Recognize runs the provider chain for one page image. fileName and page
// are only used in error messages.
func (c *Chain) Recognize(ctx context.Context, image []byte, fileName string, page int) (OCRResult, error) {
	if !c.HasProviders() {
		return OCRResult{}, fmt.Errorf("no OCR provider configured for %s page %d", fileName, page)
	}

	var attempts []string
	for _, p := range c.providers {
		result, err := p.Recognize(ctx, image)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		if result.Confidence < c.minConfidence {
			attempts = append(attempts,
				fmt.Sprintf("%s: confidence %.2f below %.2f", p.Name(), result.Confidence, c.minConfidence))
			continue
		}
		return result, nil
	}

	return OCRResult{}, fmt.Errorf("OCR failed for %s page %d after %d attempt(s): %s",
		fileName, page, len(attempts), strings.Join(attempts, "; "))
}
