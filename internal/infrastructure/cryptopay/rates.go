package cryptopay

import (
	"context"

	"dropcode/internal/application/payment/gateway"
	"dropcode/internal/infrastructure/cache"
	"dropcode/internal/shared/logger"
)

// CachedRateSource serves the processor's exchange-rate table through
// the Redis cache. Cache failures are logged and treated as misses; the
// live API remains the source of truth.
type CachedRateSource struct {
	processor gateway.Processor
	cache     *cache.RateCache
	logger    logger.Interface
}

func NewCachedRateSource(processor gateway.Processor, rateCache *cache.RateCache, log logger.Interface) *CachedRateSource {
	return &CachedRateSource{
		processor: processor,
		cache:     rateCache,
		logger:    log.Named("rates"),
	}
}

func (s *CachedRateSource) GetRates(ctx context.Context) ([]gateway.ExchangeRate, error) {
	if s.cache != nil {
		rates, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warnw("rate cache read failed, falling back to api", "error", err)
		} else if ok {
			return rates, nil
		}
	}

	rates, err := s.processor.GetExchangeRates(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rates); err != nil {
			s.logger.Warnw("rate cache write failed", "error", err)
		}
	}
	return rates, nil
}
