package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeSentinel/internal/model"
)

var fastOpts = ClientOptions{Timeout: 2 * time.Second, RatePerSecond: 1000, FailureThreshold: 2, OpenTimeout: time.Minute}

func TestFreeCryptoFetcher_Quote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getData", r.URL.Path)
		assert.Equal(t, "BTC", r.URL.Query().Get("symbol"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"success","symbols":[{"symbol":"BTC","last":"65000.5","highest":66000,"lowest":"64000","daily_change_percentage":"-1.25","date":"2025-03-10 12:00:00","source_exchange":"binance"}]}`))
	}))
	defer srv.Close()

	f := NewFreeCryptoFetcher(srv.URL, "secret", fastOpts)
	q, err := f.FetchQuote(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", q.Pair)
	assert.Equal(t, 65000.5, q.Price)
	assert.Equal(t, 66000.0, q.High24h)
	assert.Equal(t, 64000.0, q.Low24h)
	assert.Equal(t, -1.25, q.Change24h)
	assert.Equal(t, "binance", q.Source)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), q.Timestamp)
}

func TestFreeCryptoFetcher_QuoteFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"unknown symbol"}`))
	}))
	defer srv.Close()

	f := NewFreeCryptoFetcher(srv.URL, "k", fastOpts)
	_, err := f.FetchQuote(context.Background(), "XYZ/USD")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = f.FetchQuote(context.Background(), "BTCUSD")
	assert.ErrorIs(t, err, ErrUnsupportedPair)
}

func TestFreeCryptoFetcher_History(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getHistory", r.URL.Path)
		assert.Equal(t, "ETH/USD", r.URL.Query().Get("pair"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"status":"success","data":[
			{"timestamp":1741608000,"price":"3010","volume":"12"},
			{"timestamp":1741600800,"close":3000,"high":3050,"low":2990,"volume":10},
			{"timestamp":1741611600,"price":null},
			{"date":"2025-03-10T14:00:00Z","price":3020}
		]}`))
	}))
	defer srv.Close()

	f := NewFreeCryptoFetcher(srv.URL, "k", fastOpts)
	points, err := f.FetchHistory(context.Background(), "ETH/USD", 3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 3000.0, points[0].Price)
	assert.Equal(t, 3050.0, points[0].High)
	assert.Equal(t, 3010.0, points[1].Price)
	assert.Equal(t, 12.0, points[1].Volume)
	assert.Equal(t, 3020.0, points[2].Price)
	assert.True(t, points[0].Timestamp.Before(points[1].Timestamp))
}

func TestAPIClient_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFreeCryptoFetcher(srv.URL, "k", fastOpts)
	for i := 0; i < 2; i++ {
		_, err := f.FetchQuote(context.Background(), "BTC/USD")
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	}

	_, err := f.FetchQuote(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load())
}

func TestYahooFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/BTC-USD", r.URL.Path)
		switch r.URL.Query().Get("interval") {
		case "5m":
			_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1000,1300,1600],
				"indicators":{"quote":[{"open":[100,101,null],"high":[102,105,null],"low":[99,100,null],"close":[101,104,null],"volume":[5,6,null]}]}}]}}`))
		case "1h":
			_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[7200,3600],
				"indicators":{"quote":[{"open":[1,1],"high":[2,2],"low":[1,1],"close":[20,10],"volume":[1,1]}]}}]}}`))
		}
	}))
	defer srv.Close()

	f := NewYahooFetcher(srv.URL, fastOpts)
	q, err := f.FetchQuote(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 104.0, q.Price)
	assert.Equal(t, 105.0, q.High24h)
	assert.Equal(t, 99.0, q.Low24h)
	assert.Equal(t, 11.0, q.Volume)
	assert.InDelta(t, 4.0, q.Change24h, 1e-9)

	points, err := f.FetchHistory(context.Background(), "BTC/USD", 10)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 10.0, points[0].Price)
	assert.Equal(t, 20.0, points[1].Price)
}

func TestYahooFetcher_SkipsUnusableCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"timestamp":[1000,1300],
			"indicators":{"quote":[{"open":[1,1],"high":[1,1],"low":[1,1],"close":[0,-3],"volume":[1,1]}]}}]}}`))
	}))
	defer srv.Close()

	_, err := NewYahooFetcher(srv.URL, fastOpts).FetchQuote(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestYahooFetcher_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	_, err := NewYahooFetcher(srv.URL, fastOpts).FetchQuote(context.Background(), "BTC/USD")
	assert.ErrorContains(t, err, "No data found")
}

func TestCollector_FetchUsesCache(t *testing.T) {
	mock := NewMockFetcher(100)
	c := NewCollector(mock, NewMemoryCache(), 30, time.Minute)

	snap, err := c.Fetch(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.Price)
	assert.Len(t, snap.History, 30)

	_, err = c.Fetch(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.HistoryCalls())
}

func TestCollector_HistoryFailureDegrades(t *testing.T) {
	mock := NewMockFetcher(100)
	mock.FailHistory("BTC/USD", errors.New("boom"))
	c := NewCollector(mock, nil, 30, 0)

	snap, err := c.Fetch(context.Background(), "BTC/USD")
	require.NoError(t, err)
	assert.Empty(t, snap.History)
}

func TestCollector_QuoteFailureIsError(t *testing.T) {
	mock := NewMockFetcher(100)
	mock.FailQuote("BTC/USD", ErrNoData)
	c := NewCollector(mock, nil, 30, 0)

	_, err := c.Fetch(context.Background(), "BTC/USD")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = c.Fetch(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnsupportedPair)
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	points := []model.PricePoint{{Timestamp: now, Price: 1}}
	c.Set(context.Background(), "BTC/USD", 10, points, time.Minute)

	got, ok := c.Get(context.Background(), "BTC/USD", 10)
	require.True(t, ok)
	assert.Equal(t, points, got)

	_, ok = c.Get(context.Background(), "BTC/USD", 20)
	assert.False(t, ok, "window is part of the key")

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(context.Background(), "BTC/USD", 10)
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := NewRedisCache(db)

	points := []model.PricePoint{{Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Price: 42, Volume: 3}}
	raw, err := json.Marshal(points)
	require.NoError(t, err)

	mock.ExpectGet("history:BTC/USD:50").RedisNil()
	mock.ExpectSet("history:BTC/USD:50", string(raw), 5*time.Minute).SetVal("OK")
	mock.ExpectGet("history:BTC/USD:50").SetVal(string(raw))

	_, ok := cache.Get(context.Background(), "BTC/USD", 50)
	assert.False(t, ok)

	cache.Set(context.Background(), "BTC/USD", 50, points, 5*time.Minute)

	got, ok := cache.Get(context.Background(), "BTC/USD", 50)
	require.True(t, ok)
	assert.Equal(t, points, got)

	assert.NoError(t, mock.ExpectationsWereMet())
}
