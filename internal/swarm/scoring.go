package swarm

import (
	"github.com/shopspring/decimal"

	"github.com/chainswarm/chainswarm-go/internal/models"
)

// Scoring weights for trade assignment. Confidence fit dominates because it
// captures both the opportunity's quality and the agent's appetite; history
// and capacity refine the choice between otherwise willing agents.
const (
	confidenceFitWeight = 0.4
	successRateWeight   = 0.3
	capacityWeight      = 0.3

	// Agents with no completed trades score a neutral prior instead of zero,
	// otherwise a fresh swarm could never assign its first trade.
	neutralSuccessRate = 0.5
)

// EvaluateAgentForTrade scores how well an agent fits an opportunity. It is a
// pure function of the given snapshots; 0 means the agent is not viable for
// this trade at all.
func EvaluateAgentForTrade(risk models.RiskParameters, perf models.AgentPerformance, opp models.ArbitrageOpportunity) float64 {
	// Hard gates: the agent would refuse this opportunity outright.
	if opp.Confidence.LessThan(risk.ConfidenceThreshold) {
		return 0
	}
	if opp.GasCost.GreaterThanOrEqual(risk.MaxGasPrice) {
		return 0
	}
	if opp.PriceDifference.LessThanOrEqual(risk.MinProfitThreshold) {
		return 0
	}
	if !opp.EstimatedProfit.IsPositive() {
		return 0
	}

	confidenceFit := confidenceHeadroom(opp.Confidence, risk.ConfidenceThreshold)

	successRate := perf.SuccessRate()
	if perf.SuccessfulTrades+perf.FailedTrades == 0 {
		successRate = neutralSuccessRate
	}

	capacity, _ := risk.MaxPositionSize.Float64()

	return confidenceFitWeight*confidenceFit +
		successRateWeight*successRate +
		capacityWeight*capacity
}

// confidenceHeadroom measures how far above its confidence threshold the
// opportunity sits, normalized to [0, 1].
func confidenceHeadroom(confidence, threshold decimal.Decimal) float64 {
	one := decimal.NewFromInt(1)
	room := one.Sub(threshold)
	if !room.IsPositive() {
		// Threshold already at 1: meeting it is the best possible fit.
		return 1
	}
	fit, _ := confidence.Sub(threshold).Div(room).Float64()
	if fit > 1 {
		fit = 1
	}
	if fit < 0 {
		fit = 0
	}
	return fit
}
