// Package scoring wraps the external buy-signal model. The model is a black
// box maintained elsewhere; this side only builds the feature vector and
// checks the contract on the way back.
package scoring

import (
	"context"
	"fmt"

	"github.com/stocksentry/stocksentry/internal/market"
)

// Features is the vector the model expects. Price and volume stand in for
// the moving averages when no true history is available.
type Features struct {
	MA10   float64 `json:"ma10"`
	MA30   float64 `json:"ma30"`
	Vol    float64 `json:"vol"`
	AvgVol float64 `json:"avg_vol"`
	Change float64 `json:"change"`
	Close  float64 `json:"close"`
}

// FromCandidate derives the feature vector from fields already on the
// candidate.
func FromCandidate(c market.Candidate) Features {
	return Features{
		MA10:   c.Price,
		MA30:   c.Price,
		Vol:    c.Volume,
		AvgVol: c.Volume,
		Change: c.PercentChange,
		Close:  c.Price,
	}
}

// Scorer scores a feature vector into [0,100]. A scoring error excludes the
// candidate from the cycle; it is never masked into a default score.
type Scorer interface {
	Score(ctx context.Context, f Features) (float64, error)
}

// ValidateScore enforces the model contract.
func ValidateScore(s float64) error {
	if s != s { // NaN
		return fmt.Errorf("score is NaN")
	}
	if s < 0 || s > 100 {
		return fmt.Errorf("score %.2f outside [0,100]", s)
	}
	return nil
}
