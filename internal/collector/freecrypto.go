package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"TradeSentinel/internal/model"
)

// DefaultFreeCryptoURL is the public FreeCryptoAPI endpoint.
const DefaultFreeCryptoURL = "https://api.freecryptoapi.com/v1"

// FreeCryptoFetcher implements Fetcher using the FreeCryptoAPI REST API.
type FreeCryptoFetcher struct {
	BaseURL string
	APIKey  string
	client  *apiClient
}

// NewFreeCryptoFetcher creates a fetcher with Bearer authentication.
func NewFreeCryptoFetcher(baseURL, apiKey string, opts ClientOptions) *FreeCryptoFetcher {
	if baseURL == "" {
		baseURL = DefaultFreeCryptoURL
	}
	return &FreeCryptoFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  newAPIClient("freecrypto", opts),
	}
}

func (f *FreeCryptoFetcher) Name() string { return "freecrypto" }

type fcQuote struct {
	Symbol         string    `json:"symbol"`
	Last           flexFloat `json:"last"`
	Highest        flexFloat `json:"highest"`
	Lowest         flexFloat `json:"lowest"`
	DailyChangePct flexFloat `json:"daily_change_percentage"`
	Volume         flexFloat `json:"volume"`
	Date           flexTime  `json:"date"`
	SourceExchange string    `json:"source_exchange"`
}

type fcPoint struct {
	Timestamp flexTime  `json:"timestamp"`
	Date      flexTime  `json:"date"`
	Price     flexFloat `json:"price"`
	Close     flexFloat `json:"close"`
	High      flexFloat `json:"high"`
	Low       flexFloat `json:"low"`
	Volume    flexFloat `json:"volume"`
}

func (f *FreeCryptoFetcher) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	if f.APIKey != "" {
		h.Set("Authorization", "Bearer "+f.APIKey)
	}
	return h
}

func (f *FreeCryptoFetcher) FetchQuote(ctx context.Context, pair string) (*model.Quote, error) {
	base, _, err := SplitPair(pair)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/getData?symbol=%s", f.BaseURL, url.QueryEscape(base))
	body, err := f.client.get(ctx, endpoint, f.header())
	if err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}

	var result struct {
		Status  string    `json:"status"`
		Symbols []fcQuote `json:"symbols"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if result.Status != "success" || len(result.Symbols) == 0 {
		return nil, fmt.Errorf("%w: freecrypto status %q for %s", ErrNoData, result.Status, pair)
	}

	q := result.Symbols[0]
	if q.Last <= 0 {
		return nil, fmt.Errorf("%w: non-positive price for %s", ErrNoData, pair)
	}
	ts := time.Time(q.Date)
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	source := q.SourceExchange
	if source == "" {
		source = "unknown"
	}
	return &model.Quote{
		Pair:      pair,
		Price:     float64(q.Last),
		High24h:   float64(q.Highest),
		Low24h:    float64(q.Lowest),
		Change24h: float64(q.DailyChangePct),
		Volume:    float64(q.Volume),
		Timestamp: ts,
		Source:    source,
	}, nil
}

func (f *FreeCryptoFetcher) FetchHistory(ctx context.Context, pair string, limit int) ([]model.PricePoint, error) {
	if _, _, err := SplitPair(pair); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("pair", pair)
	q.Set("limit", strconv.Itoa(limit))
	body, err := f.client.get(ctx, f.BaseURL+"/getHistory?"+q.Encode(), f.header())
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	var result struct {
		Data []fcPoint `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	points := make([]model.PricePoint, 0, len(result.Data))
	for _, d := range result.Data {
		price := d.Price
		if price == 0 {
			price = d.Close
		}
		if price <= 0 {
			continue
		}
		ts := time.Time(d.Timestamp)
		if ts.IsZero() {
			ts = time.Time(d.Date)
		}
		points = append(points, model.PricePoint{
			Timestamp: ts,
			Price:     float64(price),
			High:      float64(d.High),
			Low:       float64(d.Low),
			Volume:    float64(d.Volume),
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points, nil
}

// flexFloat accepts a JSON number, a numeric string or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// flexTime accepts RFC3339, "2006-01-02 15:04:05", a date, or unix seconds/milliseconds.
type flexTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			*t = flexTime(time.UnixMilli(n).UTC())
		} else {
			*t = flexTime(time.Unix(n, 0).UTC())
		}
		return nil
	}
	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			*t = flexTime(v.UTC())
			return nil
		}
	}
	return fmt.Errorf("parse time %q", s)
}
