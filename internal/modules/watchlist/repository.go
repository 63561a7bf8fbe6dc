// Package watchlist keeps the per-user list of followed symbols.
package watchlist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/domain"
)

// MaxSymbols is the most symbols one user may follow
const MaxSymbols = 50

// Item is one followed symbol
type Item struct {
	Symbol  string    `json:"symbol"`
	AddedAt time.Time `json:"added_at"`
}

// Repository handles watchlist persistence in portfolio.db
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new watchlist repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

// Add follows symbol. Adding a symbol already followed is a no-op; adding
// beyond MaxSymbols fails with invalid input. Reports whether it was added.
func (r *Repository) Add(ctx context.Context, userID, symbol string) (bool, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if err := domain.ValidateSymbol(symbol); err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO watchlist (user_id, symbol, added_at)
		SELECT ?, ?, ?
		WHERE (SELECT COUNT(*) FROM watchlist WHERE user_id = ?) < ?
		ON CONFLICT(user_id, symbol) DO NOTHING
	`, userID, symbol, r.now().UnixMilli(), userID, MaxSymbols)
	if err != nil {
		return false, fmt.Errorf("failed to add watchlist symbol: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	exists, err := r.contains(ctx, userID, symbol)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	return false, domain.InvalidInput("watchlist is limited to %d symbols", MaxSymbols)
}

// Remove stops following symbol. Reports whether it was followed.
func (r *Repository) Remove(ctx context.Context, userID, symbol string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = ? AND symbol = ?`,
		userID, domain.NormalizeSymbol(symbol))
	if err != nil {
		return false, fmt.Errorf("failed to remove watchlist symbol: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// List returns the followed symbols in the order they were added
func (r *Repository) List(ctx context.Context, userID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT symbol, added_at FROM watchlist WHERE user_id = ? ORDER BY added_at, symbol`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var (
			item    Item
			addedAt int64
		)
		if err := rows.Scan(&item.Symbol, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		item.AddedAt = time.UnixMilli(addedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist: %w", err)
	}
	return items, nil
}

func (r *Repository) contains(ctx context.Context, userID, symbol string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watchlist WHERE user_id = ? AND symbol = ?`, userID, symbol).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query watchlist: %w", err)
	}
	return n > 0, nil
}
