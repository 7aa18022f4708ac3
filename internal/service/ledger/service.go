// Package ledger turns confirmed reservations into their bookkeeping
// footprint: one income entry and, when commission applies, one expense
// entry per reservation, exactly once no matter how many times sync runs.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
)

type Service struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{store: store, logger: logger}
}

// SyncResult reports what one sync invocation actually inserted.
type SyncResult struct {
	ReservationID uuid.UUID
	Code          string
	IncomePosted  bool
	ExpensePosted bool
}

// SweepFailure is one reservation the reconciliation sweep could not post.
type SweepFailure struct {
	ReservationID uuid.UUID
	Code          string
	Reason        string
}

// SweepReport aggregates a reconciliation run. Failures never abort the
// sweep; they are collected for operator follow-up.
type SweepReport struct {
	Scanned  int
	Synced   int
	Skipped  int
	Failures []SweepFailure
}

// SyncReservation ensures a confirmed reservation's ledger footprint exists.
// Idempotent: entries already referencing the reservation code are skipped,
// so concurrent or repeated triggers cannot double-post.
//
// Returns:
//   - error: ledger.ErrReservationNotFound if the reservation does not exist.
//   - error: ledger.ErrNotConfirmed if the hold never reached confirmed.
//   - error: ledger.ErrMissingCategory if the venue lacks either platform
//     category; nothing is partially posted in that case.
func (s *Service) SyncReservation(ctx context.Context, reservationID uuid.UUID) (*SyncResult, error) {
	const op = "service.ledger.SyncReservation"

	rv, err := s.store.ReservationNeedingSync(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrReservationNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	res, err := s.syncOne(ctx, rv)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

// Sweep reconciles every confirmed reservation still missing its income
// entry. Each reservation is processed independently: one venue's broken
// configuration cannot block another venue's books.
func (s *Service) Sweep(ctx context.Context, limit int) (*SweepReport, error) {
	const op = "service.ledger.Sweep"

	if limit <= 0 {
		limit = 500
	}

	pending, err := s.store.ReservationsMissingEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	report := &SweepReport{Scanned: len(pending)}

	for i := range pending {
		rv := &pending[i]

		res, err := s.syncOne(ctx, rv)
		if err != nil {
			report.Failures = append(report.Failures, SweepFailure{
				ReservationID: rv.SlotHold.ID,
				Code:          rv.Code,
				Reason:        err.Error(),
			})

			s.logger.Warn("ledger sweep: reservation failed",
				"reservation_id", rv.SlotHold.ID,
				"code", rv.Code,
				"error", err,
			)

			continue
		}

		if res.IncomePosted || res.ExpensePosted {
			report.Synced++
		} else {
			report.Skipped++
		}
	}

	return report, nil
}

// ListEntries exposes a venue's books for the reporting layer. Read-only.
func (s *Service) ListEntries(ctx context.Context, venueID int64, from, to string) ([]domain.LedgerEntry, error) {
	const op = "service.ledger.ListEntries"

	entries, err := s.store.ListEntries(ctx, venueID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return entries, nil
}

func (s *Service) syncOne(ctx context.Context, rv *domain.ReservationWithVenue) (*SyncResult, error) {
	result := &SyncResult{ReservationID: rv.SlotHold.ID, Code: rv.Code}

	if rv.Status != domain.HoldConfirmed {
		return nil, ErrNotConfirmed
	}

	if rv.PriceTotal <= 0 {
		return result, nil
	}

	income, expense, err := s.store.PlatformCategories(ctx, rv.VenueID)
	if err != nil {
		if errors.Is(err, repository.ErrMissingCategory) {
			return nil, fmt.Errorf("%w: venue %d", ErrMissingCategory, rv.VenueID)
		}

		return nil, err
	}

	hasIncome, hasExpense, err := s.store.ExistingEntryTypes(ctx, rv.VenueID, rv.Code)
	if err != nil {
		return nil, err
	}

	var entries []domain.LedgerEntry

	if !hasIncome {
		entries = append(entries, domain.LedgerEntry{
			VenueID:       rv.VenueID,
			CategoryID:    income.ID,
			Type:          domain.EntryIncome,
			Amount:        rv.PriceTotal,
			Date:          rv.Date,
			Description:   entryDescription(rv),
			PaymentMethod: paymentMethodFor(rv.Channel),
		})
		result.IncomePosted = true
	}

	// amounts come verbatim from the reservation; a later rate change can
	// never rewrite historical books
	if rv.CommissionApplied > 0 && !hasExpense {
		entries = append(entries, domain.LedgerEntry{
			VenueID:       rv.VenueID,
			CategoryID:    expense.ID,
			Type:          domain.EntryExpense,
			Amount:        rv.CommissionApplied,
			Date:          rv.Date,
			Description:   entryDescription(rv),
			PaymentMethod: "automatic",
		})
		result.ExpensePosted = true
	}

	if len(entries) == 0 {
		return result, nil
	}

	if err := s.store.InsertEntries(ctx, entries); err != nil {
		return nil, err
	}

	return result, nil
}

// entryDescription embeds the reservation code in brackets; the existence
// check matches on that marker.
func entryDescription(rv *domain.ReservationWithVenue) string {
	return fmt.Sprintf("Reserva [%s] %s %s %s-%s",
		rv.Code, rv.CourtName, rv.Date.Format(domain.DateFormat),
		rv.StartTime, rv.EndTime,
	)
}

func paymentMethodFor(ch domain.Channel) string {
	if ch == domain.ChannelAdminCreated {
		return "manual"
	}
	return "automatic"
}
