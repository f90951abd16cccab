package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"TradeSentinel/internal/model"
)

var (
	// ErrNoData means the source answered but had nothing usable for the pair.
	ErrNoData = errors.New("no market data")
	// ErrUnsupportedPair means the pair is not in BASE/QUOTE form.
	ErrUnsupportedPair = errors.New("unsupported pair")
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	FetchQuote(ctx context.Context, pair string) (*model.Quote, error)
	FetchHistory(ctx context.Context, pair string, limit int) ([]model.PricePoint, error)
	Name() string
}

// SplitPair splits "BTC/USD" into its base and quote assets.
func SplitPair(pair string) (base, quote string, err error) {
	parts := strings.Split(strings.TrimSpace(pair), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedPair, pair)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}
