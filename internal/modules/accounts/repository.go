package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/database"
	"github.com/finsight/papertrade/internal/domain"
)

const accountColumns = `user_id, cash_balance, total_invested, created_at, updated_at`

// Repository handles account persistence in portfolio.db
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new account repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "account").Logger(),
	}
}

// WithTx returns a copy of the repository bound to q (usually a *sql.Tx)
func (r *Repository) WithTx(q database.Querier) *Repository {
	return &Repository{db: q, log: r.log}
}

// Get returns the account for userID, or nil if none exists
func (r *Repository) Get(ctx context.Context, userID string) (*Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ?`, userID)

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// InsertIfAbsent creates the account with the given balance unless it
// already exists. Reports whether a row was created.
func (r *Repository) InsertIfAbsent(ctx context.Context, userID string, cash decimal.Decimal, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO accounts (user_id, cash_balance, total_invested, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
	`, userID, domain.DecimalToDB(cash), at.UnixMilli(), at.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("failed to insert account: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// AdjustBalance atomically adds cashDelta to the cash balance and
// investedDelta to total invested. The update is a single guarded statement,
// so concurrent callers can never drive the balance below zero; when the
// guard rejects the update an *domain.InsufficientBalanceError is returned.
func (r *Repository) AdjustBalance(ctx context.Context, userID string, cashDelta, investedDelta decimal.Decimal, at time.Time) (*Account, error) {
	cash := domain.DecimalToDB(cashDelta)

	row := r.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET cash_balance = cash_balance + ?,
		    total_invested = total_invested + ?,
		    updated_at = ?
		WHERE user_id = ? AND cash_balance + ? >= 0
		RETURNING `+accountColumns,
		cash, domain.DecimalToDB(investedDelta), at.UnixMilli(), userID, cash)

	acct, err := scanAccount(row)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}

	current, getErr := r.Get(ctx, userID)
	if getErr != nil {
		return nil, getErr
	}
	if current == nil {
		return nil, fmt.Errorf("account %s not found", userID)
	}
	return nil, &domain.InsufficientBalanceError{
		Required:  cashDelta.Neg(),
		Available: current.CashBalance,
	}
}

// ListUserIDs returns every user with an account
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		acct                 Account
		cash, invested       float64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&acct.UserID, &cash, &invested, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	acct.CashBalance = domain.DecimalFromDB(cash)
	acct.TotalInvested = domain.DecimalFromDB(invested)
	acct.CreatedAt = time.UnixMilli(createdAt)
	acct.UpdatedAt = time.UnixMilli(updatedAt)
	return &acct, nil
}
