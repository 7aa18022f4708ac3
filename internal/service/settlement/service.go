// Package settlement computes the daily payable amount owed to each venue
// and tracks its one-way pending → paid lifecycle.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
)

type Service struct {
	store  DepositStore
	logger *slog.Logger
}

func New(store DepositStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{store: store, logger: logger}
}

// RunFailure is one venue the batch run could not settle.
type RunFailure struct {
	VenueID int64
	Reason  string
}

// RunReport summarizes one deposit run for a settlement date.
type RunReport struct {
	Date     string
	Created  []domain.DepositBatch
	Skipped  int
	Failures []RunFailure
}

// RunDay aggregates confirmed reservations per venue for one date and
// creates the missing deposit batches. Re-run safe: a venue that already has
// a batch for the date is skipped, never duplicated. Reads happen outside
// any lock that would block the booking path.
//
// Returns:
//   - *RunReport: created batches plus per-venue failures.
//   - error: settlement.ErrInvalidDate on a malformed date.
func (s *Service) RunDay(ctx context.Context, date string) (*RunReport, error) {
	const op = "service.settlement.RunDay"

	if _, err := time.Parse(domain.DateFormat, date); err != nil {
		return nil, fmt.Errorf("%s:%w: %q", op, ErrInvalidDate, date)
	}

	totals, err := s.store.AggregateDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	report := &RunReport{Date: date}

	for _, t := range totals {
		batch, err := s.store.InsertBatch(ctx, t.VenueID, date, t)
		if err != nil {
			report.Failures = append(report.Failures, RunFailure{
				VenueID: t.VenueID,
				Reason:  err.Error(),
			})

			s.logger.Warn("deposit run: venue failed",
				"venue_id", t.VenueID, "date", date, "error", err)

			continue
		}

		if batch == nil {
			report.Skipped++
			continue
		}

		report.Created = append(report.Created, *batch)
	}

	return report, nil
}

// MarkPaid settles a pending batch with the transfer details. One-way; a
// paid batch never reverts to pending.
//
// Returns:
//   - error: settlement.ErrBatchNotFound if the batch does not exist.
//   - error: settlement.ErrAlreadyPaid if it was settled before.
//   - error: settlement.ErrMissingMethod if no payment method is given.
func (s *Service) MarkPaid(ctx context.Context, id int64, method, reference, observations string) (*domain.DepositBatch, error) {
	const op = "service.settlement.MarkPaid"

	if method == "" {
		return nil, fmt.Errorf("%s:%w", op, ErrMissingMethod)
	}

	batch, err := s.store.MarkPaid(ctx, id, method, reference, observations)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBatchNotFound)
		}

		if errors.Is(err, repository.ErrAlreadyPaid) {
			return nil, fmt.Errorf("%s:%w", op, ErrAlreadyPaid)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return batch, nil
}

// Get retrieves one batch.
//
// Returns:
//   - error: settlement.ErrBatchNotFound if the batch does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*domain.DepositBatch, error) {
	const op = "service.settlement.Get"

	batch, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBatchNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return batch, nil
}

// ListForVenue returns a venue's batches for the reporting layer.
func (s *Service) ListForVenue(ctx context.Context, venueID int64, limit, offset int) ([]domain.DepositBatch, error) {
	const op = "service.settlement.ListForVenue"

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	batches, err := s.store.ListForVenue(ctx, venueID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return batches, nil
}
