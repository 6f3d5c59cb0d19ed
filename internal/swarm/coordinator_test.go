package swarm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainswarm/chainswarm-go/internal/models"
)

func newTestCoordinator(cfg Config) *Coordinator {
	return NewCoordinator(cfg, nil)
}

func oppWithProfit(profit int64) models.ArbitrageOpportunity {
	opp := testOpportunity()
	opp.ID = ""
	opp.EstimatedProfit = decimal.NewFromInt(profit)
	return opp
}

func TestCoordinator_ShareOpportunity_MaxIsMonotonic(t *testing.T) {
	coord := newTestCoordinator(DefaultConfig())

	assert.False(t, coord.ShareOpportunity(oppWithProfit(0)), "non-positive profit must be rejected")
	assert.False(t, coord.ShareOpportunity(oppWithProfit(-3)))

	assert.True(t, coord.ShareOpportunity(oppWithProfit(5)), "first positive opportunity fills the empty board")
	assert.False(t, coord.ShareOpportunity(oppWithProfit(5)), "equal profit does not beat the best")
	assert.False(t, coord.ShareOpportunity(oppWithProfit(3)))
	assert.True(t, coord.ShareOpportunity(oppWithProfit(8)))
	assert.False(t, coord.ShareOpportunity(oppWithProfit(7)))
	assert.True(t, coord.ShareOpportunity(oppWithProfit(20)))

	state := coord.State()
	require.NotEmpty(t, state.SharedOpportunities)
	assert.True(t, state.SharedOpportunities[0].EstimatedProfit.Equal(decimal.NewFromInt(20)))
	assert.NotEmpty(t, state.SharedOpportunities[0].ID, "retained opportunities get an ID")
	assert.False(t, state.LastOpportunityUpdate.IsZero())

	// The board keeps every accepted opportunity in descending profit order.
	prev := state.SharedOpportunities[0].EstimatedProfit
	for _, opp := range state.SharedOpportunities[1:] {
		assert.True(t, opp.EstimatedProfit.LessThanOrEqual(prev))
		prev = opp.EstimatedProfit
	}
}

func TestCoordinator_ShareOpportunity_BoundedBoard(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopK = 2
	coord := newTestCoordinator(cfg)

	require.True(t, coord.ShareOpportunity(oppWithProfit(1)))
	require.True(t, coord.ShareOpportunity(oppWithProfit(2)))
	require.True(t, coord.ShareOpportunity(oppWithProfit(3)))

	state := coord.State()
	require.Len(t, state.SharedOpportunities, 2)
	assert.True(t, state.SharedOpportunities[0].EstimatedProfit.Equal(decimal.NewFromInt(3)))
	assert.True(t, state.SharedOpportunities[1].EstimatedProfit.Equal(decimal.NewFromInt(2)))
}

func TestCoordinator_TakeBest(t *testing.T) {
	coord := newTestCoordinator(DefaultConfig())

	_, ok := coord.TakeBest()
	assert.False(t, ok, "empty board has nothing to take")

	require.True(t, coord.ShareOpportunity(oppWithProfit(4)))
	require.True(t, coord.ShareOpportunity(oppWithProfit(9)))

	best, ok := coord.TakeBest()
	require.True(t, ok)
	assert.True(t, best.EstimatedProfit.Equal(decimal.NewFromInt(9)))

	next, ok := coord.TakeBest()
	require.True(t, ok)
	assert.True(t, next.EstimatedProfit.Equal(decimal.NewFromInt(4)))

	_, ok = coord.TakeBest()
	assert.False(t, ok)
}

func TestCoordinator_State_ReturnsCopy(t *testing.T) {
	coord := newTestCoordinator(DefaultConfig())
	require.True(t, coord.ShareOpportunity(oppWithProfit(7)))

	state := coord.State()
	state.SharedOpportunities[0].EstimatedProfit = decimal.NewFromInt(999)

	fresh := coord.State()
	assert.True(t, fresh.SharedOpportunities[0].EstimatedProfit.Equal(decimal.NewFromInt(7)))
}

func TestCoordinator_CoordinateTrade_EarliestAgentWinsTies(t *testing.T) {
	executor := &stubExecutor{result: &models.TradeResult{
		Success:    true,
		Profit:     decimal.NewFromInt(5),
		ExecutedAt: time.Now(),
	}}

	reg := agentTestRegistry()
	first, err := NewAgent(reg, freshOracle(), executor, agentRiskParams(), nil)
	require.NoError(t, err)
	second, err := NewAgent(reg, freshOracle(), executor, agentRiskParams(), nil)
	require.NoError(t, err)

	coord := newTestCoordinator(DefaultConfig())
	coord.RegisterAgent(first)
	coord.RegisterAgent(second)
	require.Equal(t, 2, coord.AgentCount())

	result, err := coord.CoordinateTrade(context.Background(), testOpportunity())
	require.NoError(t, err)
	require.NotNil(t, result)

	// Identical agents score identically; the earliest registered one trades.
	assert.Equal(t, int64(1), first.Performance().SuccessfulTrades)
	assert.Equal(t, int64(0), second.Performance().SuccessfulTrades)

	snapshot := coord.Snapshot()
	assert.Equal(t, int64(1), snapshot.SuccessfulTrades)
	assert.Equal(t, int64(0), snapshot.FailedTrades)
	assert.True(t, snapshot.TotalProfit.Equal(decimal.NewFromInt(5)))
}

func TestCoordinator_CoordinateTrade_ViabilityFloorDrops(t *testing.T) {
	executor := &stubExecutor{}
	agent, err := NewAgent(agentTestRegistry(), freshOracle(), executor, agentRiskParams(), nil)
	require.NoError(t, err)

	coord := newTestCoordinator(DefaultConfig())
	coord.RegisterAgent(agent)

	// Confidence below every agent's threshold scores zero.
	opp := testOpportunity()
	opp.Confidence = decimal.NewFromFloat(0.01)

	result, err := coord.CoordinateTrade(context.Background(), opp)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 0, executor.callCount())

	snapshot := coord.Snapshot()
	assert.Equal(t, int64(0), snapshot.SuccessfulTrades)
	assert.Equal(t, int64(0), snapshot.FailedTrades)
}

func TestCoordinator_CoordinateTrade_FoldsFailure(t *testing.T) {
	executor := &stubExecutor{err: errors.New("bridge reverted")}
	agent, err := NewAgent(agentTestRegistry(), freshOracle(), executor, agentRiskParams(), nil)
	require.NoError(t, err)

	coord := newTestCoordinator(DefaultConfig())
	coord.RegisterAgent(agent)

	_, err = coord.CoordinateTrade(context.Background(), testOpportunity())
	assert.Error(t, err)

	snapshot := coord.Snapshot()
	assert.Equal(t, int64(0), snapshot.SuccessfulTrades)
	assert.Equal(t, int64(1), snapshot.FailedTrades)
	assert.True(t, snapshot.TotalProfit.IsZero())
}

func TestCoordinator_CoordinateTrade_StaleIsNotAFailure(t *testing.T) {
	oracle := freshOracle()
	oracle.setPrice("B", "T", decimal.NewFromInt(100))

	agent, err := NewAgent(agentTestRegistry(), oracle, &stubExecutor{}, agentRiskParams(), nil)
	require.NoError(t, err)

	coord := newTestCoordinator(DefaultConfig())
	coord.RegisterAgent(agent)

	_, err = coord.CoordinateTrade(context.Background(), testOpportunity())
	assert.Error(t, err)

	snapshot := coord.Snapshot()
	assert.Equal(t, int64(0), snapshot.SuccessfulTrades)
	assert.Equal(t, int64(0), snapshot.FailedTrades)
}

func TestCoordinator_CoordinateTrade_RejectionIsNotAFailure(t *testing.T) {
	executor := &stubExecutor{}
	agent, err := NewAgent(agentTestRegistry(), freshOracle(), executor, agentRiskParams(), nil)
	require.NoError(t, err)

	coord := newTestCoordinator(DefaultConfig())
	coord.RegisterAgent(agent)

	// Scoring does not know chains; the agent rejects this before reaching
	// the executor.
	opp := testOpportunity()
	opp.SourceChain = "Z"

	_, err = coord.CoordinateTrade(context.Background(), opp)
	assert.Error(t, err)
	assert.Equal(t, 0, executor.callCount())

	// The agent recorded nothing, so neither does the swarm.
	assert.Equal(t, int64(0), agent.Performance().FailedTrades)
	snapshot := coord.Snapshot()
	assert.Equal(t, int64(0), snapshot.SuccessfulTrades)
	assert.Equal(t, int64(0), snapshot.FailedTrades)
}

func TestCoordinator_UpdateRiskParams_TightensOnLowSuccess(t *testing.T) {
	agent, err := NewAgent(agentTestRegistry(), freshOracle(), &stubExecutor{}, agentRiskParams(), nil)
	require.NoError(t, err)

	coord := newTestCoordinator(DefaultConfig())
	coord.RegisterAgent(agent)

	before := agent.RiskParams()
	coord.UpdateRiskParams(models.PerformanceSnapshot{
		SuccessfulTrades: 3,
		FailedTrades:     7,
		TakenAt:          time.Now(),
	})

	after := agent.RiskParams()
	assert.True(t, after.MinProfitThreshold.GreaterThan(before.MinProfitThreshold),
		"success rate 0.3 must tighten thresholds")
	assert.True(t, after.ConfidenceThreshold.GreaterThan(before.ConfidenceThreshold))
}

func TestCoordinator_UpdateRiskParams_RelaxesOnHighSuccess(t *testing.T) {
	agent, err := NewAgent(agentTestRegistry(), freshOracle(), &stubExecutor{}, agentRiskParams(), nil)
	require.NoError(t, err)

	coord := newTestCoordinator(DefaultConfig())
	coord.RegisterAgent(agent)

	before := agent.RiskParams()
	coord.UpdateRiskParams(models.PerformanceSnapshot{
		SuccessfulTrades: 9,
		FailedTrades:     1,
		TakenAt:          time.Now(),
	})

	after := agent.RiskParams()
	assert.True(t, after.MinProfitThreshold.LessThan(before.MinProfitThreshold),
		"success rate 0.9 must relax thresholds")
	assert.True(t, after.ConfidenceThreshold.LessThan(before.ConfidenceThreshold))
}

func TestCoordinator_UpdateRiskParams_HoldsInBand(t *testing.T) {
	agent, err := NewAgent(agentTestRegistry(), freshOracle(), &stubExecutor{}, agentRiskParams(), nil)
	require.NoError(t, err)

	coord := newTestCoordinator(DefaultConfig())
	coord.RegisterAgent(agent)

	before := agent.RiskParams()
	coord.UpdateRiskParams(models.PerformanceSnapshot{
		SuccessfulTrades: 13,
		FailedTrades:     7,
		TakenAt:          time.Now(),
	})

	after := agent.RiskParams()
	assert.True(t, after.MinProfitThreshold.Equal(before.MinProfitThreshold),
		"success rate 0.65 sits inside the hold band")
	assert.True(t, after.ConfidenceThreshold.Equal(before.ConfidenceThreshold))
}

func TestCoordinator_UpdateRiskParams_OnlyCountsNewTrades(t *testing.T) {
	agent, err := NewAgent(agentTestRegistry(), freshOracle(), &stubExecutor{}, agentRiskParams(), nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.SmoothingPeriod = 1
	coord := newTestCoordinator(cfg)
	coord.RegisterAgent(agent)

	snapshot := models.PerformanceSnapshot{SuccessfulTrades: 3, FailedTrades: 7, TakenAt: time.Now()}
	coord.UpdateRiskParams(snapshot)
	afterFirst := agent.RiskParams()

	// Same snapshot again: no trades completed since, nothing moves.
	coord.UpdateRiskParams(snapshot)
	afterSecond := agent.RiskParams()
	assert.True(t, afterSecond.MinProfitThreshold.Equal(afterFirst.MinProfitThreshold))
	assert.True(t, afterSecond.ConfidenceThreshold.Equal(afterFirst.ConfidenceThreshold))

	// Ten new successes since the last snapshot: per-cycle rate is 1.0 even
	// though the lifetime rate is still below the relax band.
	coord.UpdateRiskParams(models.PerformanceSnapshot{
		SuccessfulTrades: 13,
		FailedTrades:     7,
		TakenAt:          time.Now(),
	})
	afterThird := agent.RiskParams()
	assert.True(t, afterThird.MinProfitThreshold.LessThan(afterFirst.MinProfitThreshold))
}

func TestEvaluateAgentForTrade(t *testing.T) {
	risk := agentRiskParams()
	fresh := models.AgentPerformance{}
	opp := testOpportunity()

	base := EvaluateAgentForTrade(risk, fresh, opp)
	assert.Greater(t, base, 0.0)
	assert.LessOrEqual(t, base, 1.0)

	t.Run("hard gates", func(t *testing.T) {
		lowConf := opp
		lowConf.Confidence = decimal.NewFromFloat(0.01)
		assert.Zero(t, EvaluateAgentForTrade(risk, fresh, lowConf))

		hotGas := opp
		hotGas.GasCost = risk.MaxGasPrice
		assert.Zero(t, EvaluateAgentForTrade(risk, fresh, hotGas))

		thinDiff := opp
		thinDiff.PriceDifference = risk.MinProfitThreshold
		assert.Zero(t, EvaluateAgentForTrade(risk, fresh, thinDiff))

		noProfit := opp
		noProfit.EstimatedProfit = decimal.Zero
		assert.Zero(t, EvaluateAgentForTrade(risk, fresh, noProfit))
	})

	t.Run("history separates agents", func(t *testing.T) {
		strong := models.AgentPerformance{SuccessfulTrades: 9, FailedTrades: 1}
		weak := models.AgentPerformance{SuccessfulTrades: 1, FailedTrades: 9}
		assert.Greater(t, EvaluateAgentForTrade(risk, strong, opp), EvaluateAgentForTrade(risk, weak, opp))
		assert.Greater(t, EvaluateAgentForTrade(risk, strong, opp), base, "strong history beats the neutral prior")
		assert.Less(t, EvaluateAgentForTrade(risk, weak, opp), base)
	})

	t.Run("capacity separates agents", func(t *testing.T) {
		bigger := risk
		bigger.MaxPositionSize = decimal.NewFromInt(1)
		assert.Greater(t, EvaluateAgentForTrade(bigger, fresh, opp), base)
	})

	t.Run("threshold at one", func(t *testing.T) {
		pinned := risk
		pinned.ConfidenceThreshold = decimal.NewFromInt(1)
		sure := opp
		sure.Confidence = decimal.NewFromInt(1)
		assert.Greater(t, EvaluateAgentForTrade(pinned, fresh, sure), 0.0)
	})
}
