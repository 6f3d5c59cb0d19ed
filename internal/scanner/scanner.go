package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chainswarm/chainswarm-go/internal/market"
	"github.com/chainswarm/chainswarm-go/internal/models"
	"github.com/chainswarm/chainswarm-go/internal/registry"
)

// confidenceEpsilon keeps the confidence ratio defined when the gas estimate
// is zero.
var confidenceEpsilon = decimal.NewFromFloat(0.01)

const defaultMaxParallel = 16

// Scanner enumerates candidate arbitrage opportunities across every ordered
// chain pair and shared token. It holds no mutable state between scans:
// identical oracle and gas answers produce an identical opportunity set.
type Scanner struct {
	oracle      market.PriceOracle
	gas         market.GasEstimator
	logger      *logrus.Logger
	callTimeout time.Duration
	maxParallel int
	now         func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithCallTimeout bounds each oracle and gas-estimator call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.callTimeout = d }
}

// WithMaxParallel caps the number of chain-pair/token combinations evaluated
// concurrently.
func WithMaxParallel(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// New creates a Scanner over the given oracle and gas estimator.
func New(oracle market.PriceOracle, gas market.GasEstimator, logger *logrus.Logger, opts ...Option) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Scanner{
		oracle:      oracle,
		gas:         gas,
		logger:      logger,
		callTimeout: market.DefaultCallTimeout,
		maxParallel: defaultMaxParallel,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type combination struct {
	source registry.ChainInfo
	target registry.ChainInfo
	token  string
}

// FindOpportunities evaluates every ordered pair of distinct chains and every
// token both chains support. A combination whose oracle or estimator call
// fails is skipped; the scan itself only fails on malformed parameters or
// cancellation.
func (s *Scanner) FindOpportunities(ctx context.Context, reg *registry.Registry, params models.RiskParameters) ([]models.ArbitrageOpportunity, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrInvalidParameters, err)
	}
	if reg == nil || reg.Len() < 2 {
		return nil, nil
	}

	chains := reg.List()
	var combos []combination
	for _, source := range chains {
		for _, target := range chains {
			if source.Name == target.Name {
				continue
			}
			for _, token := range registry.CommonTokens(source, target) {
				combos = append(combos, combination{source: source, target: target, token: token})
			}
		}
	}

	var (
		mu            sync.Mutex
		opportunities []models.ArbitrageOpportunity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for _, combo := range combos {
		combo := combo
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			opp, ok := s.evaluate(gctx, combo, params)
			if !ok {
				return nil
			}
			mu.Lock()
			opportunities = append(opportunities, opp)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortOpportunities(opportunities)
	return opportunities, nil
}

// evaluate prices a single chain-pair/token combination. The second return is
// false when the combination is skipped, either because data was unavailable
// or because the thresholds filtered it out.
func (s *Scanner) evaluate(ctx context.Context, combo combination, params models.RiskParameters) (models.ArbitrageOpportunity, bool) {
	log := s.logger.WithFields(logrus.Fields{
		"source": combo.source.Name,
		"target": combo.target.Name,
		"token":  combo.token,
	})

	var priceSource, priceTarget decimal.Decimal
	err := market.CallWithRetry(ctx, s.callTimeout, func(ctx context.Context) error {
		var err error
		priceSource, err = s.oracle.GetPrice(ctx, combo.source.Name, combo.token)
		return err
	})
	if err != nil {
		log.WithError(err).Debug("Skipping combination, source price unavailable")
		return models.ArbitrageOpportunity{}, false
	}

	err = market.CallWithRetry(ctx, s.callTimeout, func(ctx context.Context) error {
		var err error
		priceTarget, err = s.oracle.GetPrice(ctx, combo.target.Name, combo.token)
		return err
	})
	if err != nil {
		log.WithError(err).Debug("Skipping combination, target price unavailable")
		return models.ArbitrageOpportunity{}, false
	}
	if !priceSource.IsPositive() || !priceTarget.IsPositive() {
		log.Debug("Skipping combination, non-positive price")
		return models.ArbitrageOpportunity{}, false
	}

	absDiff := priceSource.Sub(priceTarget).Abs()
	priceDiff := absDiff.Div(decimal.Min(priceSource, priceTarget))

	var gasCost decimal.Decimal
	err = market.CallWithRetry(ctx, s.callTimeout, func(ctx context.Context) error {
		var err error
		gasCost, err = s.gas.EstimateGas(ctx, combo.token, combo.source, combo.target)
		return err
	})
	if err != nil {
		log.WithError(err).Debug("Skipping combination, gas estimate unavailable")
		return models.ArbitrageOpportunity{}, false
	}

	if priceDiff.LessThanOrEqual(params.MinProfitThreshold) {
		return models.ArbitrageOpportunity{}, false
	}
	if gasCost.GreaterThanOrEqual(params.MaxGasPrice) {
		return models.ArbitrageOpportunity{}, false
	}

	estimatedProfit := absDiff.Sub(gasCost)
	if !estimatedProfit.IsPositive() {
		return models.ArbitrageOpportunity{}, false
	}

	confidence := priceDiff.Div(gasCost.Add(confidenceEpsilon))
	if confidence.GreaterThan(decimal.NewFromInt(1)) {
		confidence = decimal.NewFromInt(1)
	}

	return models.ArbitrageOpportunity{
		SourceChain:     combo.source.Name,
		TargetChain:     combo.target.Name,
		Token:           combo.token,
		PriceDifference: priceDiff,
		EstimatedProfit: estimatedProfit,
		GasCost:         gasCost,
		Confidence:      confidence,
		DetectedAt:      s.now(),
	}, true
}

// sortOpportunities orders by estimated profit descending, with the route as
// a stable tiebreaker so scans over identical data compare equal.
func sortOpportunities(opps []models.ArbitrageOpportunity) {
	sort.Slice(opps, func(i, j int) bool {
		if !opps[i].EstimatedProfit.Equal(opps[j].EstimatedProfit) {
			return opps[i].EstimatedProfit.GreaterThan(opps[j].EstimatedProfit)
		}
		if opps[i].SourceChain != opps[j].SourceChain {
			return opps[i].SourceChain < opps[j].SourceChain
		}
		if opps[i].TargetChain != opps[j].TargetChain {
			return opps[i].TargetChain < opps[j].TargetChain
		}
		return opps[i].Token < opps[j].Token
	})
}

// ApplyFilter narrows an opportunity list to the caller's chains, token, and
// minimum profit, preserving the profit-descending order.
func ApplyFilter(opps []models.ArbitrageOpportunity, filter models.OpportunityFilter) []models.ArbitrageOpportunity {
	chainSet := make(map[string]struct{}, len(filter.Chains))
	for _, c := range filter.Chains {
		chainSet[c] = struct{}{}
	}

	var filtered []models.ArbitrageOpportunity
	for _, opp := range opps {
		if len(chainSet) > 0 {
			if _, ok := chainSet[opp.SourceChain]; !ok {
				continue
			}
			if _, ok := chainSet[opp.TargetChain]; !ok {
				continue
			}
		}
		if filter.Token != "" && opp.Token != filter.Token {
			continue
		}
		if !filter.MinProfit.IsZero() && opp.EstimatedProfit.LessThan(filter.MinProfit) {
			continue
		}
		filtered = append(filtered, opp)
		if filter.Limit > 0 && len(filtered) >= filter.Limit {
			break
		}
	}
	return filtered
}
