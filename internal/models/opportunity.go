package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitrageOpportunity represents a detected cross-chain price discrepancy
// for a single token. It is created by the scanner and never mutated
// downstream; the ID is assigned when the opportunity enters the shared board.
type ArbitrageOpportunity struct {
	ID              string          `json:"id,omitempty" db:"id"`
	SourceChain     string          `json:"source_chain" db:"source_chain"`
	TargetChain     string          `json:"target_chain" db:"target_chain"`
	Token           string          `json:"token" db:"token"`
	PriceDifference decimal.Decimal `json:"price_difference" db:"price_difference"`
	EstimatedProfit decimal.Decimal `json:"estimated_profit" db:"estimated_profit"`
	GasCost         decimal.Decimal `json:"gas_cost" db:"gas_cost"`
	Confidence      decimal.Decimal `json:"confidence" db:"confidence"`
	DetectedAt      time.Time       `json:"detected_at" db:"detected_at"`
}

// Route returns a human-readable source->target/token label for logging.
func (o ArbitrageOpportunity) Route() string {
	return o.SourceChain + "->" + o.TargetChain + "/" + o.Token
}

// OpportunityFilter represents request parameters for listing opportunities
type OpportunityFilter struct {
	Chains    []string        `json:"chains" form:"chains"`
	Token     string          `json:"token" form:"token"`
	MinProfit decimal.Decimal `json:"min_profit" form:"min_profit"`
	Limit     int             `json:"limit" form:"limit"`
}

// OpportunitiesResponse represents the response for an opportunities list
type OpportunitiesResponse struct {
	Opportunities []ArbitrageOpportunity `json:"opportunities"`
	Count         int                    `json:"count"`
	Timestamp     time.Time              `json:"timestamp"`
}
