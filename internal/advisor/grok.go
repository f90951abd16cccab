package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"TradeSentinel/internal/apiclient"
	"TradeSentinel/internal/model"
)

// GrokConfig configures the xAI chat-completions provider.
type GrokConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	Temperature   float64
	MaxTokens     int
	RatePerSecond float64
	ProxyURL      string
}

// GrokProvider asks an OpenAI-compatible chat endpoint for a JSON recommendation.
type GrokProvider struct {
	cfg    GrokConfig
	client *apiclient.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = "You are an expert cryptocurrency trading advisor. Provide clear, actionable trading decisions based on market data and technical analysis. Respond with a single JSON object and nothing else."

// NewGrokProvider creates a GrokProvider. An API key is required.
func NewGrokProvider(cfg GrokConfig) (*GrokProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("grok provider: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.ai/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "grok-4-fast"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}

	return &GrokProvider{
		cfg: cfg,
		client: apiclient.New("grok", apiclient.Options{
			Timeout:          cfg.Timeout,
			ProxyURL:         cfg.ProxyURL,
			RatePerSecond:    cfg.RatePerSecond,
			FailureThreshold: 3,
			OpenTimeout:      time.Minute,
		}),
	}, nil
}

func (g *GrokProvider) Name() string { return "grok" }

// Decide sends the pair's context to the model and parses its JSON answer.
func (g *GrokProvider) Decide(ctx context.Context, req *Request) (*model.Recommendation, error) {
	messages := []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: BuildPrompt(req)},
	}
	log.Debug().Str("pair", req.Pair).Str("model", g.cfg.Model).Msg("requesting decision")

	out, err := g.client.Execute(ctx, func(hc *http.Client) ([]byte, error) {
		return g.complete(ctx, hc, messages)
	})
	if err != nil {
		return nil, fmt.Errorf("grok decide %s: %w", req.Pair, err)
	}
	content := string(out)

	rec, err := ParseRecommendation(content, g.Name())
	if err != nil {
		snippet := content
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		log.Warn().Err(err).Str("pair", req.Pair).Str("response", snippet).Msg("unusable decision response")
		return nil, fmt.Errorf("grok decide %s: %w", req.Pair, err)
	}
	return rec, nil
}

func (g *GrokProvider) complete(ctx context.Context, hc *http.Client, messages []chatMessage) ([]byte, error) {
	payload, err := json.Marshal(chatRequest{
		Model:          g.cfg.Model,
		Messages:       messages,
		Temperature:    g.cfg.Temperature,
		MaxTokens:      g.cfg.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && parsed.Error != nil {
			return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode completion: %v", ErrMalformedResponse, decodeErr)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}
	return []byte(parsed.Choices[0].Message.Content), nil
}

// BuildPrompt renders the user prompt for a decision request.
func BuildPrompt(req *Request) string {
	var b strings.Builder
	snap := req.Snapshot
	fmt.Fprintf(&b, "Analyze %s and decide whether to BUY, SELL, or HOLD.\n\n", req.Pair)

	if snap != nil {
		b.WriteString("Market data:\n")
		fmt.Fprintf(&b, "- Current price: $%.2f\n", snap.Price)
		fmt.Fprintf(&b, "- 24h high: $%.2f\n", snap.High24h)
		fmt.Fprintf(&b, "- 24h low: $%.2f\n", snap.Low24h)
		fmt.Fprintf(&b, "- 24h change: %.2f%%\n", snap.Change24h)
		fmt.Fprintf(&b, "- 24h volume: %.2f\n", snap.Volume)

		if ind := snap.Indicators; ind != nil {
			fmt.Fprintf(&b, "\nTechnical indicators (%d data points):\n", ind.Points)
			fmt.Fprintf(&b, "- RSI(14): %s (%s)\n", num(ind.Momentum.Value), ind.Momentum.Signal)
			fmt.Fprintf(&b, "- MACD: line %s, signal %s, histogram %s (%s)\n",
				num(ind.TrendMomentum.MACDLine), num(ind.TrendMomentum.SignalLine),
				num(ind.TrendMomentum.Histogram), ind.TrendMomentum.Trend)
			fmt.Fprintf(&b, "- Bollinger bands: upper %s, middle %s, lower %s, width %s (%s)\n",
				num(ind.VolatilityBands.Upper), num(ind.VolatilityBands.Middle),
				num(ind.VolatilityBands.Lower), num(ind.VolatilityBands.Width), ind.VolatilityBands.Position)
			fmt.Fprintf(&b, "- EMA7 %s (%s%%), EMA20 %s (%s%%), EMA50 %s (%s%%)\n",
				num(ind.MovingAverages.EMA7), num(ind.MovingAverages.PriceVsEMA7),
				num(ind.MovingAverages.EMA20), num(ind.MovingAverages.PriceVsEMA20),
				num(ind.MovingAverages.EMA50), num(ind.MovingAverages.PriceVsEMA50))
			fmt.Fprintf(&b, "- Trend: %s (7-point %s%%, 30-point %s%%)\n",
				ind.Trend.Direction, num(ind.Trend.Change7d), num(ind.Trend.Change30d))
			fmt.Fprintf(&b, "- Volume: %s vs average (%s)\n", num(ind.Volume.VsAverage), ind.Volume.Signal)
			fmt.Fprintf(&b, "- Support %s (%s%% away), resistance %s (%s%% away)\n",
				num(ind.SupportResistance.Support), num(ind.SupportResistance.DistanceToSupport),
				num(ind.SupportResistance.Resistance), num(ind.SupportResistance.DistanceToResistance))
		}
	}

	if req.AssessedRisk != "" {
		fmt.Fprintf(&b, "\nAssessed market risk: %s\n", req.AssessedRisk)
	}
	if p := req.Position; p != nil {
		fmt.Fprintf(&b, "Open position: %.8f @ $%.2f (stop loss $%.2f, take profit $%.2f)\n",
			p.Amount, p.EntryPrice, p.StopLossPrice, p.TakeProfitPrice)
	} else {
		b.WriteString("Open position: none\n")
	}
	fmt.Fprintf(&b, "Performance: %d closed trades, win rate %.1f%%, total P/L $%.2f; %d executions, net USD flow $%.2f\n",
		req.RiskStats.TotalTrades, req.RiskStats.WinRate, req.RiskStats.TotalPnLUSD,
		req.TradeStats.TotalTrades, req.TradeStats.NetUSDFlow)

	b.WriteString(`
Respond with exactly one JSON object:
{"decision": "BUY|SELL|HOLD", "confidence": 0.0-1.0, "risk_level": "LOW|MEDIUM|HIGH|EXTREME",
 "key_factors": ["..."], "price_target": number or null, "position_size_fraction": 0.0-1.0,
 "reasoning": "..."}
position_size_fraction is the share of available USD to spend on a BUY, or of holdings to sell on a SELL.
Consider RSI levels (oversold <30, overbought >70), MACD crossovers, volatility and risk management.`)
	return b.String()
}

func num(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
