package market

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/chainswarm/chainswarm-go/internal/models"
	"github.com/chainswarm/chainswarm-go/internal/registry"
)

// PriceOracle quotes the current price of a token on a chain. Implementations
// return ErrPriceUnavailable when they hold no data for the combination.
type PriceOracle interface {
	GetPrice(ctx context.Context, chain, token string) (decimal.Decimal, error)
}

// GasEstimator estimates the total gas cost of moving a token between two
// chains, bridge hop included.
type GasEstimator interface {
	EstimateGas(ctx context.Context, token string, source, target registry.ChainInfo) (decimal.Decimal, error)
}

// TradeRequest carries everything the external executor needs to act on an
// opportunity.
type TradeRequest struct {
	SourceChain string
	TargetChain string
	Token       string
	Amount      decimal.Decimal
	SourceInfo  registry.ChainInfo
	TargetInfo  registry.ChainInfo
}

// TradeExecutor performs the cross-chain trade. Signing and broadcast live
// entirely behind this interface.
type TradeExecutor interface {
	ExecuteCrossChainTrade(ctx context.Context, req TradeRequest) (*models.TradeResult, error)
}
