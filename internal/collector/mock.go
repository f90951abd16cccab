package collector

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"TradeSentinel/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Pairs without an explicit price use DefaultPrice; pairs without an explicit
// history get a generated one around their price.
type MockFetcher struct {
	mu           sync.Mutex
	DefaultPrice float64
	prices       map[string]float64
	histories    map[string][]model.PricePoint
	quoteErrs    map[string]error
	historyErrs  map[string]error
	historyCalls int
}

// NewMockFetcher creates a MockFetcher quoting defaultPrice for every pair.
func NewMockFetcher(defaultPrice float64) *MockFetcher {
	return &MockFetcher{
		DefaultPrice: defaultPrice,
		prices:       make(map[string]float64),
		histories:    make(map[string][]model.PricePoint),
		quoteErrs:    make(map[string]error),
		historyErrs:  make(map[string]error),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

// SetPrice fixes the quoted price of pair.
func (m *MockFetcher) SetPrice(pair string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[pair] = price
}

// SetHistory fixes the history returned for pair.
func (m *MockFetcher) SetHistory(pair string, history []model.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories[pair] = history
}

// FailQuote makes FetchQuote for pair return err; nil clears it.
func (m *MockFetcher) FailQuote(pair string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quoteErrs[pair] = err
}

// FailHistory makes FetchHistory for pair return err; nil clears it.
func (m *MockFetcher) FailHistory(pair string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyErrs[pair] = err
}

// HistoryCalls reports how many times FetchHistory reached the fetcher.
func (m *MockFetcher) HistoryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyCalls
}

func (m *MockFetcher) priceLocked(pair string) float64 {
	if p, ok := m.prices[pair]; ok {
		return p
	}
	return m.DefaultPrice
}

func (m *MockFetcher) FetchQuote(_ context.Context, pair string) (*model.Quote, error) {
	if _, _, err := SplitPair(pair); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.quoteErrs[pair]; err != nil {
		return nil, err
	}
	price := m.priceLocked(pair)
	if price <= 0 {
		return nil, fmt.Errorf("%w: no mock price for %s", ErrNoData, pair)
	}
	return &model.Quote{
		Pair:      pair,
		Price:     price,
		High24h:   price * 1.02,
		Low24h:    price * 0.98,
		Volume:    1000000,
		Timestamp: time.Now().UTC(),
		Source:    "mock",
	}, nil
}

func (m *MockFetcher) FetchHistory(_ context.Context, pair string, limit int) ([]model.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls++
	if err := m.historyErrs[pair]; err != nil {
		return nil, err
	}
	if h, ok := m.histories[pair]; ok {
		if limit > 0 && len(h) > limit {
			h = h[len(h)-limit:]
		}
		out := make([]model.PricePoint, len(h))
		copy(out, h)
		return out, nil
	}
	return generateMockHistory(m.priceLocked(pair), limit), nil
}

// generateMockHistory produces hourly points oscillating gently around basePrice, ending now.
func generateMockHistory(basePrice float64, count int) []model.PricePoint {
	now := time.Now().UTC().Truncate(time.Hour)
	points := make([]model.PricePoint, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + 0.01*math.Sin(float64(i)/4))
		points[i] = model.PricePoint{
			Timestamp: now.Add(-time.Duration(count-1-i) * time.Hour),
			Price:     p,
			High:      p * 1.005,
			Low:       p * 0.995,
			Volume:    1000000,
		}
	}
	return points
}
