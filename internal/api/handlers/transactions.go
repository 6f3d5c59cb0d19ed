package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/chainswarm/chainswarm-go/internal/ledger"
	"github.com/chainswarm/chainswarm-go/internal/models"
)

// TransactionHandler records and lists executed transactions.
type TransactionHandler struct {
	ledger *ledger.Ledger
}

// NewTransactionHandler creates the handler.
func NewTransactionHandler(lg *ledger.Ledger) *TransactionHandler {
	return &TransactionHandler{ledger: lg}
}

// RecordTransactionRequest is the payload for recording an executed trade.
type RecordTransactionRequest struct {
	OpportunityID string          `json:"opportunity_id" binding:"required"`
	TxHash        string          `json:"tx_hash" binding:"required"`
	SourceChain   string          `json:"source_chain" binding:"required"`
	TargetChain   string          `json:"target_chain" binding:"required"`
	Token         string          `json:"token" binding:"required"`
	Profit        decimal.Decimal `json:"profit"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

// RecordTransaction persists a transaction reported by an external executor.
func (h *TransactionHandler) RecordTransaction(c *gin.Context) {
	var req RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction payload: " + err.Error()})
		return
	}
	if req.ExecutedAt.IsZero() {
		req.ExecutedAt = time.Now()
	}

	opp := models.ArbitrageOpportunity{
		ID:          req.OpportunityID,
		SourceChain: req.SourceChain,
		TargetChain: req.TargetChain,
		Token:       req.Token,
	}
	result := &models.TradeResult{
		Success:    true,
		Profit:     req.Profit,
		ExecutedAt: req.ExecutedAt,
	}

	rec, err := h.ledger.RecordTransaction(c.Request.Context(), opp, req.TxHash, result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record transaction"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "recorded", "transaction": rec})
}

// ListTransactions returns recent transactions, newest first.
func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter (1-500)"})
		return
	}

	records, err := h.ledger.ListTransactions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": records,
		"count":        len(records),
		"timestamp":    time.Now(),
	})
}
