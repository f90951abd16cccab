package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/model"
)

// Collector fetches quotes and price histories through a Fetcher, caching histories.
type Collector struct {
	Fetcher      Fetcher
	Cache        HistoryCache
	HistoryLimit int
	HistoryTTL   time.Duration
}

// NewCollector creates a new Collector. A nil cache disables history caching.
func NewCollector(fetcher Fetcher, cache HistoryCache, historyLimit int, historyTTL time.Duration) *Collector {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &Collector{
		Fetcher:      fetcher,
		Cache:        cache,
		HistoryLimit: historyLimit,
		HistoryTTL:   historyTTL,
	}
}

// Fetch returns the current snapshot of pair. A missing quote is an error; a
// missing history degrades to an empty one.
func (c *Collector) Fetch(ctx context.Context, pair string) (*model.Snapshot, error) {
	if _, _, err := SplitPair(pair); err != nil {
		return nil, err
	}

	quote, err := c.Fetcher.FetchQuote(ctx, pair)
	if err != nil {
		return nil, fmt.Errorf("fetch %s quote from %s: %w", pair, c.Fetcher.Name(), err)
	}

	history, err := c.history(ctx, pair)
	if err != nil {
		log.Warn().Err(err).Str("pair", pair).Str("source", c.Fetcher.Name()).
			Msg("history unavailable, continuing without it")
		history = nil
	}

	return &model.Snapshot{Quote: *quote, History: history}, nil
}

func (c *Collector) history(ctx context.Context, pair string) ([]model.PricePoint, error) {
	if c.Cache != nil {
		if points, ok := c.Cache.Get(ctx, pair, c.HistoryLimit); ok {
			return points, nil
		}
	}
	points, err := c.Fetcher.FetchHistory(ctx, pair, c.HistoryLimit)
	if err != nil {
		return nil, err
	}
	if c.Cache != nil && len(points) > 0 && c.HistoryTTL > 0 {
		c.Cache.Set(ctx, pair, c.HistoryLimit, points, c.HistoryTTL)
	}
	return points, nil
}
