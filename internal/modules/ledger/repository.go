package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/domain"
)

// transactionColumns must match scanTransaction
const transactionColumns = `id, user_id, side, symbol, shares, price, total_amount, realized_pnl, executed_at`

// Repository handles transaction persistence in ledger.db
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new transaction repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "transaction").Logger(),
	}
}

// Append inserts t, assigning an id when it has none
func (r *Repository) Append(ctx context.Context, t *Transaction) error {
	if !t.Side.IsValid() {
		return fmt.Errorf("failed to append transaction: invalid side %q", t.Side)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	var realized sql.NullFloat64
	if t.RealizedPnL != nil {
		realized = sql.NullFloat64{Float64: domain.DecimalToDB(*t.RealizedPnL), Valid: true}
	}

	_, err := r.ledgerDB.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.UserID,
		string(t.Side),
		t.Symbol,
		t.Shares,
		domain.DecimalToDB(t.Price),
		domain.DecimalToDB(t.TotalAmount),
		realized,
		t.ExecutedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

// History returns the user's transactions, most recent first
func (r *Repository) History(ctx context.Context, userID string, filter HistoryFilter) ([]Transaction, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if filter.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.Side != "" {
		where = append(where, "side = ?")
		args = append(args, string(filter.Side))
	}
	args = append(args, clampLimit(filter.Limit))

	rows, err := r.ledgerDB.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY executed_at DESC, rowid DESC
		 LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

// Count returns the number of transactions logged for the user
func (r *Repository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.ledgerDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}

func scanTransaction(rows *sql.Rows) (Transaction, error) {
	var (
		t                  Transaction
		side               string
		price, totalAmount float64
		realized           sql.NullFloat64
		executedAt         int64
	)
	err := rows.Scan(&t.ID, &t.UserID, &side, &t.Symbol, &t.Shares, &price, &totalAmount, &realized, &executedAt)
	if err != nil {
		return t, err
	}

	t.Side = domain.TradeSide(side)
	t.Price = domain.DecimalFromDB(price)
	t.TotalAmount = domain.DecimalFromDB(totalAmount)
	if realized.Valid {
		pnl := domain.DecimalFromDB(realized.Float64)
		t.RealizedPnL = &pnl
	}
	t.ExecutedAt = time.UnixMilli(executedAt)
	return t, nil
}
