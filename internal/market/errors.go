package market

import "errors"

// Error kinds surfaced by oracle, estimator, and executor calls. Callers match
// with errors.Is; wrapping sites add the chain/token context.
var (
	// ErrPriceUnavailable means the oracle has no data for a chain/token
	// combination. Scans skip the combination and continue.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrStaleOpportunity means re-verification at execution time fell below
	// the agent's profit threshold. No state is mutated.
	ErrStaleOpportunity = errors.New("opportunity is stale")

	// ErrExecutionFailure means the external executor reported a failed
	// trade. Recorded against the agent, not fatal to the swarm.
	ErrExecutionFailure = errors.New("trade execution failed")

	// ErrInvalidParameters means a scan or execute request was malformed.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrTimeout means an oracle or executor call exceeded its deadline
	// after the single retry.
	ErrTimeout = errors.New("operation timed out")
)
