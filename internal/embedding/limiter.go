package embedding

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited throttles batch calls to an upstream embedding API. Each batch
// costs one token regardless of size.
type RateLimited struct {
	next    TextEmbedder
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter of perSecond calls and burst.
// A non-positive perSecond disables limiting.
func NewRateLimited(next TextEmbedder, perSecond float64, burst int) TextEmbedder {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.EmbedBatch(ctx, texts)
}
