package model

import (
	"errors"
	"fmt"
	"strings"
)

// Decision is a recommendation from the decision provider.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// Valid reports whether d is one of the known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionBuy, DecisionSell, DecisionHold:
		return true
	}
	return false
}

// ParseDecision accepts any casing and surrounding whitespace.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToUpper(strings.TrimSpace(s))); d {
	case DecisionBuy, DecisionSell, DecisionHold:
		return d, nil
	default:
		return "", fmt.Errorf("unknown decision %q", s)
	}
}

// RiskLevel is an advisory classification of market risk.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskExtreme:
		return true
	}
	return false
}

// ParseRiskLevel accepts any casing. An empty string is an error.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch r := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); r {
	case RiskLow, RiskMedium, RiskHigh, RiskExtreme:
		return r, nil
	case "":
		return "", errors.New("missing risk level")
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

// Recommendation is the structured response of a decision provider.
type Recommendation struct {
	Decision             Decision  `json:"decision"`
	Confidence           float64   `json:"confidence"`
	RiskLevel            RiskLevel `json:"risk_level"`
	KeyFactors           []string  `json:"key_factors"`
	PriceTarget          *float64  `json:"price_target"`
	PositionSizeFraction float64   `json:"position_size_fraction"`
	Reasoning            string    `json:"reasoning"`
	Provider             string    `json:"provider"`
}

// Validate checks the ranges a recommendation must satisfy before it can drive a trade.
func (r *Recommendation) Validate() error {
	if !r.Decision.Valid() {
		return fmt.Errorf("invalid decision %q", r.Decision)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %.4f out of [0,1]", r.Confidence)
	}
	if r.PositionSizeFraction < 0 || r.PositionSizeFraction > 1 {
		return fmt.Errorf("position_size_fraction %.4f out of [0,1]", r.PositionSizeFraction)
	}
	if r.PriceTarget != nil && *r.PriceTarget < 0 {
		return fmt.Errorf("negative price_target %.4f", *r.PriceTarget)
	}
	if !r.RiskLevel.Valid() {
		return fmt.Errorf("invalid risk_level %q", r.RiskLevel)
	}
	return nil
}
