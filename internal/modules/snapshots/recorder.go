package snapshots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsight/papertrade/internal/events"
	"github.com/finsight/papertrade/internal/modules/accounts"
	"github.com/finsight/papertrade/internal/modules/portfolio"
	"github.com/finsight/papertrade/internal/utils"
)

// AccountReader reads accounts without creating them
type AccountReader interface {
	Get(ctx context.Context, userID string) (*accounts.Account, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// PositionLister lists a user's positions
type PositionLister interface {
	GetAll(ctx context.Context, userID string) ([]portfolio.Position, error)
}

// Recorder captures portfolio value snapshots. Positions are valued at
// average cost so recording never needs a quote.
type Recorder struct {
	accounts  AccountReader
	positions PositionLister
	repo      *Repository
	events    events.Emitter
	now       func() time.Time
	log       zerolog.Logger
}

// NewRecorder creates a new snapshot recorder
func NewRecorder(accountReader AccountReader, positions PositionLister, repo *Repository, emitter events.Emitter, log zerolog.Logger) *Recorder {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Recorder{
		accounts:  accountReader,
		positions: positions,
		repo:      repo,
		events:    emitter,
		now:       time.Now,
		log:       log.With().Str("service", "snapshot_recorder").Logger(),
	}
}

// SetClock overrides the time source
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

// Record stores the user's current value. Returns nil, nil when the user
// has no account.
func (r *Recorder) Record(ctx context.Context, userID string) (*Snapshot, error) {
	acct, err := r.accounts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, nil
	}

	positions, err := r.positions.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		UserID:         userID,
		CashBalance:    acct.CashBalance,
		PortfolioValue: portfolio.CostBasisValue(acct.CashBalance, positions),
		RecordedAt:     r.now(),
	}
	if err := r.repo.Insert(ctx, s); err != nil {
		return nil, err
	}

	r.events.Emit(events.SnapshotRecorded, "snapshots", userID, &events.SnapshotRecordedData{
		SnapshotID:     s.ID,
		CashBalance:    s.CashBalance,
		PortfolioValue: s.PortfolioValue,
	})
	return s, nil
}

// RecordBestEffort records a snapshot and logs instead of returning failures
func (r *Recorder) RecordBestEffort(ctx context.Context, userID string) *Snapshot {
	s, err := r.Record(ctx, userID)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", userID).Msg("Failed to record snapshot")
		return nil
	}
	return s
}

// RecordAll records a snapshot for every account. Failures for one user do
// not stop the others; all of them are returned joined.
func (r *Recorder) RecordAll(ctx context.Context) (int, error) {
	defer utils.OperationTimer("snapshot_record_all", time.Minute, r.log)()

	userIDs, err := r.accounts.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	var (
		recorded int
		errs     []error
	)
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		s, err := r.Record(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		if s != nil {
			recorded++
		}
	}

	r.log.Info().
		Int("accounts", len(userIDs)).
		Int("recorded", recorded).
		Int("failed", len(errs)).
		Msg("Recorded snapshots for all accounts")

	return recorded, errors.Join(errs...)
}
