package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finsight/papertrade/internal/database"
	"github.com/finsight/papertrade/internal/domain"
	"github.com/finsight/papertrade/internal/events"
)

// InitialSnapshotWriter records the first history point of a new account.
// It runs inside the creating transaction.
// Defined here to avoid an import cycle with the snapshots module.
type InitialSnapshotWriter interface {
	WriteInitial(ctx context.Context, q database.Querier, userID string, cash decimal.Decimal, at time.Time) error
}

// Service resolves accounts, creating them on first use
type Service struct {
	db        *sql.DB
	repo      *Repository
	snapshots InitialSnapshotWriter
	events    events.Emitter
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates a new account service
func NewService(db *sql.DB, repo *Repository, snapshots InitialSnapshotWriter, emitter events.Emitter, log zerolog.Logger) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		db:        db,
		repo:      repo,
		snapshots: snapshots,
		events:    emitter,
		now:       time.Now,
		log:       log.With().Str("service", "accounts").Logger(),
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns the account for userID, or nil if it was never created
func (s *Service) Get(ctx context.Context, userID string) (*Account, error) {
	return s.repo.Get(ctx, userID)
}

// GetOrCreate returns the user's account, creating it with the starting
// balance and an initial snapshot if absent. Concurrent first calls create
// exactly one account.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*Account, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}

	acct, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if acct != nil {
		return acct, nil
	}

	now := s.now()
	var created bool
	err = database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)

		created, err = repo.InsertIfAbsent(ctx, userID, domain.StartingCash, now)
		if err != nil {
			return err
		}
		if created && s.snapshots != nil {
			if err := s.snapshots.WriteInitial(ctx, tx, userID, domain.StartingCash, now); err != nil {
				return fmt.Errorf("failed to write initial snapshot: %w", err)
			}
		}

		acct, err = repo.Get(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s missing after create", userID)
	}

	if created {
		s.log.Info().
			Str("user_id", userID).
			Str("starting_cash", domain.FormatUSD(domain.StartingCash)).
			Msg("Account created")
		s.events.Emit(events.AccountCreated, "accounts", userID, &events.AccountCreatedData{
			StartingCash: domain.StartingCash,
		})
	}

	return acct, nil
}

// ListUserIDs returns every user with an account
func (s *Service) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListUserIDs(ctx)
}
