package cache

import (
	"context"
	"time"

	"garmentpos/backend/internal/domain"
)

// QuoteCache holds short-lived variant quotes (unit price + available stock)
// so hot catalog lookups during checkout do not hit the repository on every
// cart mutation.
type QuoteCache interface {
	Get(ctx context.Context, key string) (*domain.VariantQuote, bool, error)
	Set(ctx context.Context, key string, quote *domain.VariantQuote, ttl time.Duration) error
}

type NoopQuoteCache struct{}

func (NoopQuoteCache) Get(_ context.Context, _ string) (*domain.VariantQuote, bool, error) {
	return nil, false, nil
}

func (NoopQuoteCache) Set(_ context.Context, _ string, _ *domain.VariantQuote, _ time.Duration) error {
	return nil
}
