package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
)

// HoldStore is the slot lock store. The implementation must arbitrate
// concurrent Acquire calls on the same (court, date, start_time) through an
// atomic storage constraint, not in-process locking.
type HoldStore interface {
	Acquire(ctx context.Context, h *domain.SlotHold) (uuid.UUID, error)
	Confirm(ctx context.Context, holdID uuid.UUID, p domain.ConfirmSnapshot) (*domain.Reservation, error)
	Cancel(ctx context.Context, holdID uuid.UUID) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// CourtStore resolves courts for validation and admin pricing.
type CourtStore interface {
	GetCourt(ctx context.Context, id int64) (*domain.Court, error)
}
