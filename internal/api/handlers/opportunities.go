package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/chainswarm/chainswarm-go/internal/market"
	"github.com/chainswarm/chainswarm-go/internal/models"
	"github.com/chainswarm/chainswarm-go/internal/registry"
	"github.com/chainswarm/chainswarm-go/internal/scanner"
)

// OpportunityHandler serves on-demand opportunity scans.
type OpportunityHandler struct {
	scanner  *scanner.Scanner
	registry *registry.Registry
	defaults models.RiskParameters
}

// NewOpportunityHandler creates the handler. defaults are the scan-level risk
// parameters applied when the caller does not narrow them.
func NewOpportunityHandler(sc *scanner.Scanner, reg *registry.Registry, defaults models.RiskParameters) *OpportunityHandler {
	return &OpportunityHandler{scanner: sc, registry: reg, defaults: defaults}
}

// GetOpportunities runs a scan and returns opportunities matching the query,
// sorted descending by estimated profit.
//
// Query parameters: chains (comma-separated), token, min_profit, limit.
func (h *OpportunityHandler) GetOpportunities(c *gin.Context) {
	filter := models.OpportunityFilter{Token: c.Query("token")}

	if raw := c.Query("chains"); raw != "" {
		for _, chain := range strings.Split(raw, ",") {
			if chain = strings.TrimSpace(chain); chain != "" {
				filter.Chains = append(filter.Chains, chain)
			}
		}
	}

	if raw := c.DefaultQuery("min_profit", "0"); raw != "" {
		minProfit, err := decimal.NewFromString(raw)
		if err != nil || minProfit.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min_profit parameter"})
			return
		}
		filter.MinProfit = minProfit
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter (1-500)"})
		return
	}
	filter.Limit = limit

	opportunities, err := h.scanner.FindOpportunities(c.Request.Context(), h.registry, h.defaults)
	if err != nil {
		if errors.Is(err, market.ErrInvalidParameters) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan for opportunities"})
		return
	}

	filtered := scanner.ApplyFilter(opportunities, filter)
	c.JSON(http.StatusOK, models.OpportunitiesResponse{
		Opportunities: filtered,
		Count:         len(filtered),
		Timestamp:     time.Now(),
	})
}

// GetChains lists the registered chains.
func (h *OpportunityHandler) GetChains(c *gin.Context) {
	chains := h.registry.List()
	c.JSON(http.StatusOK, gin.H{
		"chains":       chains,
		"count":        len(chains),
		"last_refresh": h.registry.LastRefresh(),
	})
}
