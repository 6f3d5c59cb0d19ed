package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ChainInfo is the static description of one participating chain. Values are
// treated as immutable by everything downstream of the registry.
type ChainInfo struct {
	Name          string          `json:"name"`
	GasPrice      decimal.Decimal `json:"gas_price"`
	BridgeAddress string          `json:"bridge_address"`
	Tokens        []string        `json:"tokens"`
}

// SupportsToken reports whether the chain lists the given token symbol.
func (c ChainInfo) SupportsToken(token string) bool {
	for _, t := range c.Tokens {
		if t == token {
			return true
		}
	}
	return false
}

// ChainFeed supplies fresh chain descriptions, typically backed by an external
// metadata service.
type ChainFeed func() ([]ChainInfo, error)

// Registry holds the set of known chains. Reads return copies; the only write
// path is Update, so scans never observe a half-refreshed view.
type Registry struct {
	mu          sync.RWMutex
	chains      map[string]ChainInfo
	lastRefresh time.Time
	logger      *logrus.Logger
}

// New builds a registry from an initial chain set.
func New(chains []ChainInfo, logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	r := &Registry{
		chains: make(map[string]ChainInfo, len(chains)),
		logger: logger,
	}
	r.Update(chains)
	return r
}

// Update replaces the registered chain set. Entries without a name are dropped.
func (r *Registry) Update(chains []ChainInfo) {
	next := make(map[string]ChainInfo, len(chains))
	for _, c := range chains {
		if c.Name == "" {
			continue
		}
		// Copy the token slice so callers cannot mutate registry state.
		tokens := make([]string, len(c.Tokens))
		copy(tokens, c.Tokens)
		sort.Strings(tokens)
		c.Tokens = tokens
		next[c.Name] = c
	}

	r.mu.Lock()
	r.chains = next
	r.lastRefresh = time.Now()
	r.mu.Unlock()
}

// Refresh pulls a fresh chain set from the feed and applies it.
func (r *Registry) Refresh(feed ChainFeed) error {
	if feed == nil {
		return fmt.Errorf("chain feed is not configured")
	}
	chains, err := feed()
	if err != nil {
		return fmt.Errorf("failed to refresh chain registry: %w", err)
	}
	r.Update(chains)
	r.logger.WithField("chains", len(chains)).Debug("Chain registry refreshed")
	return nil
}

// Get returns the chain with the given name.
func (r *Registry) Get(name string) (ChainInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chains[name]
	return c, ok
}

// List returns all chains sorted by name. The sort keeps scan enumeration
// deterministic across calls.
func (r *Registry) List() []ChainInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chains := make([]ChainInfo, 0, len(r.chains))
	for _, c := range r.chains {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].Name < chains[j].Name })
	return chains
}

// Len returns the number of registered chains.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chains)
}

// LastRefresh returns when the chain set was last replaced.
func (r *Registry) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRefresh
}

// CommonTokens returns the sorted intersection of two chains' token sets.
func CommonTokens(a, b ChainInfo) []string {
	var common []string
	for _, t := range a.Tokens {
		if b.SupportsToken(t) {
			common = append(common, t)
		}
	}
	sort.Strings(common)
	return common
}
