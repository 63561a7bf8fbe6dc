package ledger

import (
	"context"

	"github.com/rs/zerolog"
)

// Log records executed trades. Recording never fails a trade: the balance
// and position are the source of truth and an entry that cannot be written
// is logged and skipped.
type Log struct {
	repo *Repository
	log  zerolog.Logger
}

// NewLog creates a new transaction log
func NewLog(repo *Repository, log zerolog.Logger) *Log {
	return &Log{
		repo: repo,
		log:  log.With().Str("service", "transaction_log").Logger(),
	}
}

// AppendBestEffort appends t and returns its id, or "" if the write failed
func (l *Log) AppendBestEffort(ctx context.Context, t *Transaction) string {
	if err := l.repo.Append(ctx, t); err != nil {
		l.log.Error().
			Err(err).
			Str("user_id", t.UserID).
			Str("symbol", t.Symbol).
			Str("side", string(t.Side)).
			Int64("shares", t.Shares).
			Msg("Failed to log transaction")
		return ""
	}
	return t.ID
}

// History returns the user's transactions, most recent first
func (l *Log) History(ctx context.Context, userID string, filter HistoryFilter) ([]Transaction, error) {
	return l.repo.History(ctx, userID, filter)
}
