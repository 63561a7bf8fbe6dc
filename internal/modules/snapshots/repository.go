package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/database"
	"github.com/finsight/papertrade/internal/domain"
)

// Repository handles snapshot persistence in portfolio.db
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// Insert stores s, assigning an id when it has none
func (r *Repository) Insert(ctx context.Context, s *Snapshot) error {
	return insert(ctx, r.db, s)
}

// WriteInitial records the first snapshot of a new account inside the
// creating transaction
func (r *Repository) WriteInitial(ctx context.Context, q database.Querier, userID string, cash decimal.Decimal, at time.Time) error {
	return insert(ctx, q, &Snapshot{
		UserID:         userID,
		CashBalance:    cash,
		PortfolioValue: cash,
		RecordedAt:     at,
	})
}

func insert(ctx context.Context, q database.Querier, s *Snapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO snapshots (id, user_id, cash_balance, portfolio_value, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		s.ID,
		s.UserID,
		domain.DecimalToDB(s.CashBalance),
		domain.DecimalToDB(s.PortfolioValue),
		s.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// History returns the user's most recent snapshots, oldest first
func (r *Repository) History(ctx context.Context, userID string, limit int) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, cash_balance, portfolio_value, recorded_at FROM (
			SELECT rowid AS seq, id, user_id, cash_balance, portfolio_value, recorded_at
			FROM snapshots
			WHERE user_id = ?
			ORDER BY recorded_at DESC, seq DESC
			LIMIT ?
		)
		ORDER BY recorded_at ASC, seq ASC
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	history := make([]Snapshot, 0)
	for rows.Next() {
		var (
			s           Snapshot
			cash, value float64
			recordedAt  int64
		)
		if err := rows.Scan(&s.ID, &s.UserID, &cash, &value, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.CashBalance = domain.DecimalFromDB(cash)
		s.PortfolioValue = domain.DecimalFromDB(value)
		s.RecordedAt = time.UnixMilli(recordedAt)
		history = append(history, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return history, nil
}

// Count returns the number of snapshots stored for the user
func (r *Repository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}
