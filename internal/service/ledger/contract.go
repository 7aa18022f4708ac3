package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
)

// Store is the ledger side of the persistence layer. ExistingEntryTypes +
// InsertEntries together give the sync engine its idempotence: the check
// converts a would-be duplicate insert into a skip.
type Store interface {
	PlatformCategories(ctx context.Context, venueID int64) (income, expense *domain.Category, err error)
	ExistingEntryTypes(ctx context.Context, venueID int64, code string) (hasIncome, hasExpense bool, err error)
	InsertEntries(ctx context.Context, entries []domain.LedgerEntry) error
	ReservationNeedingSync(ctx context.Context, reservationID uuid.UUID) (*domain.ReservationWithVenue, error)
	ReservationsMissingEntries(ctx context.Context, limit int) ([]domain.ReservationWithVenue, error)
	ListEntries(ctx context.Context, venueID int64, from, to string) ([]domain.LedgerEntry, error)
}
