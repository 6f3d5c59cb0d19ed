package swarm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/chainswarm/chainswarm-go/internal/market"
	"github.com/chainswarm/chainswarm-go/internal/models"
)

// Adaptive risk control bands. Below the lower band every agent tightens its
// thresholds, above the upper band every agent relaxes them; in between the
// swarm holds steady. Resulting thresholds are clamped so repeated cycles
// cannot drift them to degenerate values.
var (
	tightenFactor = decimal.NewFromFloat(1.1)
	relaxFactor   = decimal.NewFromFloat(0.95)
	thresholdMin  = decimal.NewFromFloat(0.001)
	thresholdMax  = decimal.NewFromInt(1)
)

const (
	lowerSuccessBand = 0.5
	upperSuccessBand = 0.8
)

// Config tunes the coordinator.
type Config struct {
	// TopK bounds the shared best-opportunity board.
	TopK int
	// ViabilityFloor is the minimum assignment score; opportunities no agent
	// clears are dropped.
	ViabilityFloor float64
	// SuccessWindow is how many per-cycle success rates the risk controller
	// keeps.
	SuccessWindow int
	// SmoothingPeriod is the SMA period applied over the window.
	SmoothingPeriod int
}

// DefaultConfig returns the coordinator defaults.
func DefaultConfig() Config {
	return Config{
		TopK:            32,
		ViabilityFloor:  0.2,
		SuccessWindow:   10,
		SmoothingPeriod: 3,
	}
}

// SwarmState is the shared board and swarm-wide totals. Every mutation goes
// through the coordinator's mutex.
type SwarmState struct {
	SharedOpportunities   []models.ArbitrageOpportunity `json:"shared_opportunities"`
	TotalProfit           decimal.Decimal               `json:"total_profit"`
	SuccessfulTrades      int64                         `json:"successful_trades"`
	FailedTrades          int64                         `json:"failed_trades"`
	LastOpportunityUpdate time.Time                     `json:"last_opportunity_update"`
}

// AgentStatus is a read-only view of one agent for status reporting.
type AgentStatus struct {
	ID          string                  `json:"id"`
	Risk        models.RiskParameters   `json:"risk_parameters"`
	Performance models.AgentPerformance `json:"performance"`
}

// Coordinator owns the swarm: the shared opportunity board, the agent roster,
// and the adaptive risk-control loop.
type Coordinator struct {
	cfg    Config
	logger *logrus.Logger

	mu     sync.Mutex
	agents []*Agent
	state  SwarmState

	rateWindow  []float64
	prevSuccess int64
	prevFailed  int64
}

// NewCoordinator creates a coordinator with the given configuration.
func NewCoordinator(cfg Config, logger *logrus.Logger) *Coordinator {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.SuccessWindow <= 0 {
		cfg.SuccessWindow = DefaultConfig().SuccessWindow
	}
	if cfg.SmoothingPeriod <= 0 {
		cfg.SmoothingPeriod = DefaultConfig().SmoothingPeriod
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Coordinator{cfg: cfg, logger: logger}
}

// RegisterAgent adds an agent to the swarm. Registration order is the
// deterministic tiebreaker during trade assignment.
func (c *Coordinator) RegisterAgent(agent *Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agents = append(c.agents, agent)
}

// AgentCount returns the number of registered agents.
func (c *Coordinator) AgentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.agents)
}

// AgentStatuses returns a snapshot of every agent in registration order.
func (c *Coordinator) AgentStatuses() []AgentStatus {
	c.mu.Lock()
	agents := make([]*Agent, len(c.agents))
	copy(agents, c.agents)
	c.mu.Unlock()

	statuses := make([]AgentStatus, 0, len(agents))
	for _, a := range agents {
		statuses = append(statuses, AgentStatus{
			ID:          a.ID(),
			Risk:        a.RiskParams(),
			Performance: a.Performance(),
		})
	}
	return statuses
}

// ShareOpportunity offers an opportunity to the shared board. It is accepted
// only when the board is empty or the opportunity beats the current best
// profit; the board is truncated to TopK entries. Returns whether the
// opportunity was retained.
func (c *Coordinator) ShareOpportunity(opp models.ArbitrageOpportunity) bool {
	if !opp.EstimatedProfit.IsPositive() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.state.SharedOpportunities) > 0 {
		best := c.state.SharedOpportunities[0]
		if !opp.EstimatedProfit.GreaterThan(best.EstimatedProfit) {
			return false
		}
	}

	if opp.ID == "" {
		opp.ID = uuid.New().String()
	}
	c.state.SharedOpportunities = append([]models.ArbitrageOpportunity{opp}, c.state.SharedOpportunities...)
	if len(c.state.SharedOpportunities) > c.cfg.TopK {
		c.state.SharedOpportunities = c.state.SharedOpportunities[:c.cfg.TopK]
	}
	c.state.LastOpportunityUpdate = time.Now()

	c.logger.WithFields(logrus.Fields{
		"route":  opp.Route(),
		"profit": opp.EstimatedProfit,
		"board":  len(c.state.SharedOpportunities),
	}).Debug("Opportunity retained on shared board")
	return true
}

// TakeBest pops the most profitable retained opportunity off the board.
func (c *Coordinator) TakeBest() (models.ArbitrageOpportunity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.state.SharedOpportunities) == 0 {
		return models.ArbitrageOpportunity{}, false
	}
	best := c.state.SharedOpportunities[0]
	c.state.SharedOpportunities = c.state.SharedOpportunities[1:]
	return best, true
}

// State returns a copy of the swarm state.
func (c *Coordinator) State() SwarmState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.state
	state.SharedOpportunities = make([]models.ArbitrageOpportunity, len(c.state.SharedOpportunities))
	copy(state.SharedOpportunities, c.state.SharedOpportunities)
	return state
}

// Snapshot returns the swarm-wide performance totals.
func (c *Coordinator) Snapshot() models.PerformanceSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.PerformanceSnapshot{
		SuccessfulTrades: c.state.SuccessfulTrades,
		FailedTrades:     c.state.FailedTrades,
		TotalProfit:      c.state.TotalProfit,
		TakenAt:          time.Now(),
	}
}

// CoordinateTrade scores every registered agent for the opportunity, assigns
// it to the highest scorer, and folds the outcome into the swarm totals. When
// no agent clears the viability floor the opportunity is dropped without
// error.
func (c *Coordinator) CoordinateTrade(ctx context.Context, opp models.ArbitrageOpportunity) (*models.TradeResult, error) {
	c.mu.Lock()
	agents := make([]*Agent, len(c.agents))
	copy(agents, c.agents)
	c.mu.Unlock()

	var (
		selected  *Agent
		bestScore float64
	)
	for _, agent := range agents {
		score := EvaluateAgentForTrade(agent.RiskParams(), agent.Performance(), opp)
		// Strict comparison keeps the earliest-registered agent on ties.
		if score > bestScore && score >= c.cfg.ViabilityFloor {
			selected = agent
			bestScore = score
		}
	}

	if selected == nil {
		c.logger.WithFields(logrus.Fields{
			"route":  opp.Route(),
			"profit": opp.EstimatedProfit,
		}).Info("No viable agent, opportunity unassigned")
		return nil, nil
	}

	c.logger.WithFields(logrus.Fields{
		"route": opp.Route(),
		"agent": selected.ID(),
		"score": bestScore,
	}).Info("Opportunity assigned")

	result, err := selected.ExecuteTrade(ctx, opp)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err == nil && result != nil:
		c.state.SuccessfulTrades++
		c.state.TotalProfit = c.state.TotalProfit.Add(result.Profit)
	case errors.Is(err, market.ErrExecutionFailure):
		c.state.FailedTrades++
	default:
		// Stale drops and pre-execution rejections never reached the
		// executor; the agent recorded nothing, so the swarm totals follow.
	}
	return result, err
}

// UpdateRiskParams feeds a swarm performance snapshot into the adaptive risk
// controller. The per-cycle success rate (trades completed since the previous
// snapshot) enters a trailing window; the SMA-smoothed rate decides whether
// every agent tightens, relaxes, or holds its thresholds.
func (c *Coordinator) UpdateRiskParams(snapshot models.PerformanceSnapshot) {
	c.mu.Lock()

	deltaSuccess := snapshot.SuccessfulTrades - c.prevSuccess
	deltaFailed := snapshot.FailedTrades - c.prevFailed
	total := deltaSuccess + deltaFailed
	if total <= 0 {
		c.mu.Unlock()
		return
	}
	c.prevSuccess = snapshot.SuccessfulTrades
	c.prevFailed = snapshot.FailedTrades

	rate := float64(deltaSuccess) / float64(total)
	c.rateWindow = append(c.rateWindow, rate)
	if len(c.rateWindow) > c.cfg.SuccessWindow {
		c.rateWindow = c.rateWindow[len(c.rateWindow)-c.cfg.SuccessWindow:]
	}
	smoothed := c.smoothedRate()

	agents := make([]*Agent, len(c.agents))
	copy(agents, c.agents)
	c.mu.Unlock()

	var factor decimal.Decimal
	switch {
	case smoothed < lowerSuccessBand:
		factor = tightenFactor
	case smoothed > upperSuccessBand:
		factor = relaxFactor
	default:
		c.logger.WithField("success_rate", smoothed).Debug("Risk parameters unchanged")
		return
	}

	for _, agent := range agents {
		agent.ScaleThresholds(factor, thresholdMin, thresholdMax)
	}
	c.logger.WithFields(logrus.Fields{
		"success_rate": smoothed,
		"factor":       factor,
		"agents":       len(agents),
	}).Info("Adjusted swarm risk parameters")
}

// smoothedRate returns the SMA of the trailing success-rate window. Callers
// hold the coordinator mutex.
func (c *Coordinator) smoothedRate() float64 {
	window := c.rateWindow
	period := c.cfg.SmoothingPeriod
	if period > len(window) {
		period = len(window)
	}
	if period <= 1 {
		return window[len(window)-1]
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	values := helper.ChanToSlice(sma.Compute(helper.SliceToChan(window)))
	if len(values) == 0 {
		return window[len(window)-1]
	}
	return values[len(values)-1]
}
