package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/chainswarm/chainswarm-go/internal/market"
	"github.com/chainswarm/chainswarm-go/internal/models"
	"github.com/chainswarm/chainswarm-go/internal/registry"
)

// Agent is one autonomous trading unit. It owns its risk parameters and
// performance record; the execution slot guarantees at most one trade is in
// flight per agent while different agents execute fully in parallel.
type Agent struct {
	id          string
	registry    *registry.Registry
	oracle      market.PriceOracle
	executor    market.TradeExecutor
	logger      *logrus.Logger
	slot        *semaphore.Weighted
	callTimeout time.Duration

	mu   sync.RWMutex
	risk models.RiskParameters
	perf models.AgentPerformance
}

// NewAgent creates an agent with the given risk parameters.
func NewAgent(reg *registry.Registry, oracle market.PriceOracle, executor market.TradeExecutor, risk models.RiskParameters, logger *logrus.Logger) (*Agent, error) {
	if err := risk.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrInvalidParameters, err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Agent{
		id:          uuid.New().String(),
		registry:    reg,
		oracle:      oracle,
		executor:    executor,
		logger:      logger,
		slot:        semaphore.NewWeighted(1),
		callTimeout: market.DefaultCallTimeout,
		risk:        risk,
	}, nil
}

// ID returns the agent's identity.
func (a *Agent) ID() string {
	return a.id
}

// RiskParams returns a copy of the agent's current risk parameters.
func (a *Agent) RiskParams() models.RiskParameters {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.risk
}

// Performance returns a copy of the agent's performance record.
func (a *Agent) Performance() models.AgentPerformance {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.perf
}

// ScaleThresholds multiplies MinProfitThreshold and ConfidenceThreshold by
// factor, clamping both into [min, max]. Called only by the coordinator's
// risk controller.
func (a *Agent) ScaleThresholds(factor, min, max decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.risk.MinProfitThreshold = clamp(a.risk.MinProfitThreshold.Mul(factor), min, max)
	a.risk.ConfidenceThreshold = clamp(a.risk.ConfidenceThreshold.Mul(factor), min, max)
}

func clamp(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

// ExecuteTrade re-verifies the opportunity against fresh oracle reads and
// hands it to the external executor. A recomputed price difference below the
// agent's profit threshold returns ErrStaleOpportunity with no state changes.
func (a *Agent) ExecuteTrade(ctx context.Context, opp models.ArbitrageOpportunity) (*models.TradeResult, error) {
	if err := a.slot.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire execution slot: %w", err)
	}
	defer a.slot.Release(1)

	risk := a.RiskParams()
	log := a.logger.WithFields(logrus.Fields{"agent": a.id, "route": opp.Route()})

	if opp.GasCost.GreaterThanOrEqual(risk.MaxGasPrice) {
		return nil, fmt.Errorf("%w: gas cost %s exceeds agent limit %s",
			market.ErrInvalidParameters, opp.GasCost, risk.MaxGasPrice)
	}

	sourceInfo, ok := a.registry.Get(opp.SourceChain)
	if !ok {
		return nil, fmt.Errorf("%w: unknown source chain %q", market.ErrInvalidParameters, opp.SourceChain)
	}
	targetInfo, ok := a.registry.Get(opp.TargetChain)
	if !ok {
		return nil, fmt.Errorf("%w: unknown target chain %q", market.ErrInvalidParameters, opp.TargetChain)
	}

	freshDiff, err := a.currentPriceDiff(ctx, opp)
	if err != nil {
		return nil, err
	}
	if freshDiff.LessThan(risk.MinProfitThreshold) {
		log.WithFields(logrus.Fields{
			"discovered_diff": opp.PriceDifference,
			"fresh_diff":      freshDiff,
		}).Info("Opportunity went stale before execution")
		return nil, fmt.Errorf("%w: price difference %s fell below threshold %s",
			market.ErrStaleOpportunity, freshDiff, risk.MinProfitThreshold)
	}

	position := risk.MaxPositionSize.Mul(opp.Confidence)
	position = clamp(position, decimal.Zero, risk.MaxPositionSize)

	var result *models.TradeResult
	err = market.CallWithRetry(ctx, a.callTimeout, func(ctx context.Context) error {
		var err error
		result, err = a.executor.ExecuteCrossChainTrade(ctx, market.TradeRequest{
			SourceChain: opp.SourceChain,
			TargetChain: opp.TargetChain,
			Token:       opp.Token,
			Amount:      position,
			SourceInfo:  sourceInfo,
			TargetInfo:  targetInfo,
		})
		return err
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	a.perf.LastUpdate = time.Now()

	if err != nil || result == nil || !result.Success {
		a.perf.FailedTrades++
		if err == nil {
			err = market.ErrExecutionFailure
		} else if !errors.Is(err, market.ErrExecutionFailure) {
			err = fmt.Errorf("%w: %v", market.ErrExecutionFailure, err)
		}
		log.WithError(err).Warn("Trade execution failed")
		return nil, err
	}

	a.perf.TotalProfit = a.perf.TotalProfit.Add(result.Profit)
	a.perf.SuccessfulTrades++
	log.WithFields(logrus.Fields{"profit": result.Profit, "position": position}).Info("Trade executed")
	return result, nil
}

// currentPriceDiff recomputes the relative price difference from fresh oracle
// reads.
func (a *Agent) currentPriceDiff(ctx context.Context, opp models.ArbitrageOpportunity) (decimal.Decimal, error) {
	var priceSource, priceTarget decimal.Decimal

	err := market.CallWithRetry(ctx, a.callTimeout, func(ctx context.Context) error {
		var err error
		priceSource, err = a.oracle.GetPrice(ctx, opp.SourceChain, opp.Token)
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("re-verification failed for %s: %w", opp.SourceChain, err)
	}

	err = market.CallWithRetry(ctx, a.callTimeout, func(ctx context.Context) error {
		var err error
		priceTarget, err = a.oracle.GetPrice(ctx, opp.TargetChain, opp.Token)
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("re-verification failed for %s: %w", opp.TargetChain, err)
	}

	if !priceSource.IsPositive() || !priceTarget.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive re-verification price", market.ErrPriceUnavailable)
	}
	return priceSource.Sub(priceTarget).Abs().Div(decimal.Min(priceSource, priceTarget)), nil
}
