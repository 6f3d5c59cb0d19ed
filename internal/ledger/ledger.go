package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/chainswarm/chainswarm-go/internal/models"
)

// TransactionRecord is the persisted outcome of an executed opportunity.
type TransactionRecord struct {
	ID            string          `json:"id" db:"id"`
	OpportunityID string          `json:"opportunity_id" db:"opportunity_id"`
	TxHash        string          `json:"tx_hash" db:"tx_hash"`
	SourceChain   string          `json:"source_chain" db:"source_chain"`
	TargetChain   string          `json:"target_chain" db:"target_chain"`
	Token         string          `json:"token" db:"token"`
	Profit        decimal.Decimal `json:"profit" db:"profit"`
	ExecutedAt    time.Time       `json:"executed_at" db:"executed_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// DatabasePool defines the pool operations the ledger needs. Both a real
// pgxpool.Pool and a pgxmock pool satisfy it.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Ledger persists executed transactions.
type Ledger struct {
	pool   DatabasePool
	logger *logrus.Logger
}

// New creates a ledger over the given pool.
func New(pool DatabasePool, logger *logrus.Logger) *Ledger {
	if logger == nil {
		logger = logrus.New()
	}
	return &Ledger{pool: pool, logger: logger}
}

// RecordTransaction stores one executed trade and returns the stored record.
func (l *Ledger) RecordTransaction(ctx context.Context, opp models.ArbitrageOpportunity, txHash string, result *models.TradeResult) (*TransactionRecord, error) {
	if result == nil {
		return nil, fmt.Errorf("trade result is required")
	}

	rec := TransactionRecord{
		ID:            uuid.New().String(),
		OpportunityID: opp.ID,
		TxHash:        txHash,
		SourceChain:   opp.SourceChain,
		TargetChain:   opp.TargetChain,
		Token:         opp.Token,
		Profit:        result.Profit,
		ExecutedAt:    result.ExecutedAt,
		CreatedAt:     time.Now(),
	}

	query := `
		INSERT INTO swarm_transactions (
			id, opportunity_id, tx_hash, source_chain, target_chain, token, profit, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := l.pool.Exec(ctx, query,
		rec.ID, rec.OpportunityID, rec.TxHash, rec.SourceChain, rec.TargetChain,
		rec.Token, rec.Profit, rec.ExecutedAt, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	l.logger.WithFields(logrus.Fields{
		"opportunity_id": rec.OpportunityID,
		"tx_hash":        rec.TxHash,
		"profit":         rec.Profit,
	}).Info("Transaction recorded")
	return &rec, nil
}

// ListTransactions returns the most recent transactions, newest first.
func (l *Ledger) ListTransactions(ctx context.Context, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, opportunity_id, tx_hash, source_chain, target_chain, token, profit, executed_at, created_at
		FROM swarm_transactions
		ORDER BY executed_at DESC
		LIMIT $1
	`
	rows, err := l.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var records []TransactionRecord
	for rows.Next() {
		var rec TransactionRecord
		if err := rows.Scan(
			&rec.ID, &rec.OpportunityID, &rec.TxHash, &rec.SourceChain, &rec.TargetChain,
			&rec.Token, &rec.Profit, &rec.ExecutedAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return records, nil
}

// TotalProfit sums recorded profit, a cross-check against in-memory swarm
// totals after restarts.
func (l *Ledger) TotalProfit(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := l.pool.QueryRow(ctx, `SELECT COALESCE(SUM(profit), 0) FROM swarm_transactions`).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum recorded profit: %w", err)
	}
	return total, nil
}
