package settlement

import (
	"context"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
)

// DepositStore persists daily payout batches. InsertBatch must be
// insert-if-absent on (venue, date) so a re-run can never duplicate a batch.
type DepositStore interface {
	AggregateDay(ctx context.Context, date string) ([]domain.VenueDayTotals, error)
	InsertBatch(ctx context.Context, venueID int64, date string, t domain.VenueDayTotals) (*domain.DepositBatch, error)
	MarkPaid(ctx context.Context, id int64, method, reference, observations string) (*domain.DepositBatch, error)
	Get(ctx context.Context, id int64) (*domain.DepositBatch, error)
	ListForVenue(ctx context.Context, venueID int64, limit, offset int) ([]domain.DepositBatch, error)
}
