package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"TradeSentinel/internal/model"
)

// ErrMalformedResponse means the provider answered with something that is not a valid recommendation.
var ErrMalformedResponse = errors.New("malformed decision response")

// Request is the context handed to a decision provider for one pair.
type Request struct {
	Pair         string
	Snapshot     *model.Snapshot
	Position     *model.Position
	RiskStats    model.RiskStatistics
	TradeStats   model.TradeStatistics
	AssessedRisk model.RiskLevel
}

// Provider produces a trading recommendation for a pair.
type Provider interface {
	Decide(ctx context.Context, req *Request) (*model.Recommendation, error)
	Name() string
}

// wireRecommendation is the JSON object providers are asked to return.
type wireRecommendation struct {
	Decision             string   `json:"decision"`
	Confidence           *float64 `json:"confidence"`
	RiskLevel            string   `json:"risk_level"`
	KeyFactors           []string `json:"key_factors"`
	PriceTarget          *float64 `json:"price_target"`
	PositionSizeFraction *float64 `json:"position_size_fraction"`
	PositionSize         *float64 `json:"position_size"`
	Reasoning            string   `json:"reasoning"`
}

// ParseRecommendation extracts and validates a recommendation from free-form model output.
// Markdown code fences and text around the JSON object are tolerated.
func ParseRecommendation(text, provider string) (*model.Recommendation, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformedResponse)
	}

	var w wireRecommendation
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	decision, err := model.ParseDecision(w.Decision)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if w.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	}
	risk, err := model.ParseRiskLevel(w.RiskLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	rec := &model.Recommendation{
		Decision:    decision,
		Confidence:  *w.Confidence,
		RiskLevel:   risk,
		KeyFactors:  w.KeyFactors,
		PriceTarget: w.PriceTarget,
		Reasoning:   strings.TrimSpace(w.Reasoning),
		Provider:    provider,
	}
	switch {
	case w.PositionSizeFraction != nil:
		rec.PositionSizeFraction = *w.PositionSizeFraction
	case w.PositionSize != nil:
		rec.PositionSizeFraction = *w.PositionSize
	}
	if rec.KeyFactors == nil {
		rec.KeyFactors = []string{}
	}
	if rec.Reasoning == "" {
		rec.Reasoning = "No reasoning provided"
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return rec, nil
}

// extractJSONObject returns the outermost {...} span of s, or "".
func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
