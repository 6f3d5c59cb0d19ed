package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RiskParameters holds the per-agent thresholds governing which opportunities
// are pursued and how large a position is taken. All fields must be positive;
// MaxPositionSize and ConfidenceThreshold are fractions in (0, 1].
type RiskParameters struct {
	MaxPositionSize     decimal.Decimal `json:"max_position_size"`
	MinProfitThreshold  decimal.Decimal `json:"min_profit_threshold"`
	MaxGasPrice         decimal.Decimal `json:"max_gas_price"`
	ConfidenceThreshold decimal.Decimal `json:"confidence_threshold"`
}

// Validate checks that every threshold is positive and the fractional fields
// do not exceed 1.
func (r RiskParameters) Validate() error {
	one := decimal.NewFromInt(1)

	if !r.MaxPositionSize.IsPositive() || r.MaxPositionSize.GreaterThan(one) {
		return fmt.Errorf("max_position_size must be in (0, 1], got %s", r.MaxPositionSize)
	}
	if !r.MinProfitThreshold.IsPositive() {
		return fmt.Errorf("min_profit_threshold must be positive, got %s", r.MinProfitThreshold)
	}
	if !r.MaxGasPrice.IsPositive() {
		return fmt.Errorf("max_gas_price must be positive, got %s", r.MaxGasPrice)
	}
	if !r.ConfidenceThreshold.IsPositive() || r.ConfidenceThreshold.GreaterThan(one) {
		return fmt.Errorf("confidence_threshold must be in (0, 1], got %s", r.ConfidenceThreshold)
	}
	return nil
}

// AgentPerformance tracks an agent's trade outcomes. It is owned by the agent
// and mutated only inside its own execution path.
type AgentPerformance struct {
	TotalProfit      decimal.Decimal `json:"total_profit"`
	SuccessfulTrades int64           `json:"successful_trades"`
	FailedTrades     int64           `json:"failed_trades"`
	LastUpdate       time.Time       `json:"last_update"`
}

// SuccessRate returns the fraction of successful trades, or 0 when no trades
// have completed yet.
func (p AgentPerformance) SuccessRate() float64 {
	total := p.SuccessfulTrades + p.FailedTrades
	if total == 0 {
		return 0
	}
	return float64(p.SuccessfulTrades) / float64(total)
}

// TradeResult is the outcome reported by the trade executor.
type TradeResult struct {
	Success    bool            `json:"success"`
	Profit     decimal.Decimal `json:"profit"`
	GasUsed    decimal.Decimal `json:"gas_used"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// PerformanceSnapshot is a point-in-time view of swarm-wide trade counts used
// by the adaptive risk controller.
type PerformanceSnapshot struct {
	SuccessfulTrades int64           `json:"successful_trades"`
	FailedTrades     int64           `json:"failed_trades"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	TakenAt          time.Time       `json:"taken_at"`
}

// SuccessRate returns the snapshot's success fraction, or 0 without trades.
func (s PerformanceSnapshot) SuccessRate() float64 {
	total := s.SuccessfulTrades + s.FailedTrades
	if total == 0 {
		return 0
	}
	return float64(s.SuccessfulTrades) / float64(total)
}
