package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/database"
	"github.com/finsight/papertrade/internal/domain"
)

// positionColumns must match scanPosition
const positionColumns = `user_id, symbol, shares, avg_price, total_cost, first_purchased, last_updated`

// PositionRepository handles position database operations in portfolio.db
type PositionRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db database.Querier, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// WithTx returns a copy of the repository bound to q
func (r *PositionRepository) WithTx(q database.Querier) *PositionRepository {
	return &PositionRepository{db: q, log: r.log}
}

// Get returns the user's position in symbol, or nil if none is held
func (r *PositionRepository) Get(ctx context.Context, userID, symbol string) (*Position, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = ? AND symbol = ?`,
		userID, symbol)

	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return pos, nil
}

// GetAll returns every position of the user ordered by symbol
func (r *PositionRepository) GetAll(ctx context.Context, userID string) ([]Position, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = ? ORDER BY symbol`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, *pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}

// Upsert writes the position, replacing any existing row for the same symbol
func (r *PositionRepository) Upsert(ctx context.Context, p *Position) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions (`+positionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, symbol) DO UPDATE SET
			shares = excluded.shares,
			avg_price = excluded.avg_price,
			total_cost = excluded.total_cost,
			last_updated = excluded.last_updated
	`,
		p.UserID,
		p.Symbol,
		p.Shares,
		domain.DecimalToDB(p.AvgPrice),
		domain.DecimalToDB(p.TotalCost),
		p.FirstPurchased.UnixMilli(),
		p.LastUpdated.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}
	return nil
}

// Delete removes the user's position in symbol
func (r *PositionRepository) Delete(ctx context.Context, userID, symbol string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM positions WHERE user_id = ? AND symbol = ?`, userID, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}

	r.log.Debug().Str("user_id", userID).Str("symbol", symbol).Msg("Position closed")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*Position, error) {
	var (
		pos                   Position
		avgPrice, totalCost   float64
		firstPurchased, lastU int64
	)
	if err := row.Scan(&pos.UserID, &pos.Symbol, &pos.Shares, &avgPrice, &totalCost, &firstPurchased, &lastU); err != nil {
		return nil, err
	}
	pos.AvgPrice = domain.DecimalFromDB(avgPrice)
	pos.TotalCost = domain.DecimalFromDB(totalCost)
	pos.FirstPurchased = time.UnixMilli(firstPurchased)
	pos.LastUpdated = time.UnixMilli(lastU)
	return &pos, nil
}
