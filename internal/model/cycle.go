package model

import "time"

// Outcome classifies what happened to one pair during a cycle.
//
// ERROR means market data was unavailable. DECISION_FAILED means the decision
// provider failed or answered invalidly. BLOCKED means the risk gate refused
// the trade; REJECTED means the ledger did (floors, no holdings).
type Outcome string

const (
	OutcomeError          Outcome = "ERROR"
	OutcomeDecisionFailed Outcome = "DECISION_FAILED"
	OutcomeForcedExit     Outcome = "FORCED_EXIT"
	OutcomeHold           Outcome = "HOLD"
	OutcomeBlocked        Outcome = "BLOCKED"
	OutcomeExecuted       Outcome = "EXECUTED"
	OutcomeRejected       Outcome = "REJECTED"
)

// PairResult is the outcome of one pair within a cycle.
type PairResult struct {
	Pair           string          `json:"pair"`
	Outcome        Outcome         `json:"outcome"`
	Price          float64         `json:"price,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Trade          *Trade          `json:"trade,omitempty"`
	ClosedPosition *ClosedPosition `json:"closed_position,omitempty"`
	ExitReason     ExitReason      `json:"exit_reason,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// CycleResult aggregates every pair's outcome and the valuation after the cycle.
type CycleResult struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []PairResult `json:"results"`
	Portfolio  Portfolio    `json:"portfolio"`
}

// Duration is the wall time the cycle took.
func (c *CycleResult) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// Count returns how many pairs ended with outcome o.
func (c *CycleResult) Count(o Outcome) int {
	n := 0
	for _, r := range c.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}
