package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// DefaultYahooURL is the Yahoo Finance chart API host.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL   string
	SymbolMap map[string]string // maps a pair to a Yahoo ticker when the default BASE-QUOTE form is wrong
	client    *apiClient
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(baseURL string, opts ClientOptions) *YahooFetcher {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	return &YahooFetcher{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SymbolMap: map[string]string{},
		client:    newAPIClient("yahoo", opts),
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(pair string) (string, error) {
	if mapped, ok := f.SymbolMap[pair]; ok {
		return mapped, nil
	}
	base, quote, err := SplitPair(pair)
	if err != nil {
		return "", err
	}
	return base + "-" + quote, nil
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type bar struct {
	time                   time.Time
	open, high, low, close float64
	volume                 float64
}

func at(vs []*float64, i int) float64 {
	if i >= len(vs) || vs[i] == nil {
		return 0
	}
	return *vs[i]
}

func (f *YahooFetcher) fetchChart(ctx context.Context, pair, interval, rng string) ([]bar, error) {
	ticker, err := f.yahooSymbol(pair)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		f.BaseURL, url.PathEscape(ticker), interval, rng)

	header := http.Header{}
	header.Set("User-Agent", "Mozilla/5.0")
	body, err := f.client.get(ctx, u, header)
	if err != nil {
		return nil, err
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: yahoo returned no bars for %s", ErrNoData, pair)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := at(quote.Close, i)
		if !(c > 0) || math.IsInf(c, 0) {
			continue // null or unusable bar
		}
		bars = append(bars, bar{
			time:   time.Unix(ts, 0).UTC(),
			open:   at(quote.Open, i),
			high:   at(quote.High, i),
			low:    at(quote.Low, i),
			close:  c,
			volume: at(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: yahoo returned only null bars for %s", ErrNoData, pair)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].time.Before(bars[j].time) })
	return bars, nil
}

// FetchQuote derives the spot view from the last day of 5-minute bars.
func (f *YahooFetcher) FetchQuote(ctx context.Context, pair string) (*model.Quote, error) {
	bars, err := f.fetchChart(ctx, pair, "5m", "1d")
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	first, last := bars[0], bars[len(bars)-1]
	if !(last.close > 0) {
		return nil, fmt.Errorf("%w: non-positive price for %s", ErrNoData, pair)
	}
	q := &model.Quote{
		Pair:      pair,
		Price:     last.close,
		High24h:   last.close,
		Low24h:    last.close,
		Timestamp: last.time,
		Source:    "yahoo",
	}
	for _, b := range bars {
		if b.high > q.High24h {
			q.High24h = b.high
		}
		if b.low > 0 && b.low < q.Low24h {
			q.Low24h = b.low
		}
		q.Volume += b.volume
	}
	if open := first.open; open > 0 {
		q.Change24h = (last.close - open) / open * 100
	}
	return q, nil
}

// FetchHistory returns up to limit hourly bars.
func (f *YahooFetcher) FetchHistory(ctx context.Context, pair string, limit int) ([]model.PricePoint, error) {
	rng := "3mo"
	switch {
	case limit <= 24:
		rng = "1d"
	case limit <= 120:
		rng = "5d"
	case limit <= 720:
		rng = "1mo"
	}
	bars, err := f.fetchChart(ctx, pair, "1h", rng)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	points := make([]model.PricePoint, len(bars))
	for i, b := range bars {
		points[i] = model.PricePoint{
			Timestamp: b.time,
			Price:     b.close,
			High:      b.high,
			Low:       b.low,
			Volume:    b.volume,
		}
	}
	return points, nil
}
