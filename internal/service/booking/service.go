package booking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/commission"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
	redisrepo "github.com/Pousito/reserva-tu-cancha-sub003/internal/repository/redis"
)

type Config struct {
	DefaultHoldTTL time.Duration
	MinHoldTTL     time.Duration
	MaxHoldTTL     time.Duration

	// StorageTimeout bounds the lock wait on the slot write path. Past it
	// the call fails with ErrStorageTimeout instead of hanging the checkout.
	StorageTimeout time.Duration
}

type Service struct {
	holds   HoldStore
	courts  CourtStore
	cache   *redisrepo.Cache
	pubsub  *redisrepo.SlotsPubSub
	limiter *redisrepo.SlidingWindowLimiter
	cfg     Config
}

func New(
	holds HoldStore,
	courts CourtStore,
	cache *redisrepo.Cache,
	pubsub *redisrepo.SlotsPubSub,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Service {
	if cfg.MinHoldTTL <= 0 {
		cfg.MinHoldTTL = 1 * time.Minute
	}

	if cfg.MaxHoldTTL <= 0 || cfg.MaxHoldTTL < cfg.MinHoldTTL {
		cfg.MaxHoldTTL = 15 * time.Minute
	}

	if cfg.DefaultHoldTTL <= 0 {
		cfg.DefaultHoldTTL = 5 * time.Minute
	}

	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 5 * time.Second
	}

	return &Service{
		holds:   holds,
		courts:  courts,
		cache:   cache,
		pubsub:  pubsub,
		limiter: limiter,
		cfg:     cfg,
	}
}

// AcquireRequest carries a checkout attempt on one slot.
type AcquireRequest struct {
	CourtID   int64
	Date      string // DateFormat
	StartTime string // "HH:MM"
	EndTime   string
	SessionID string
	Customer  domain.Customer
	TTL       time.Duration
}

// AcquireHold claims a slot for one checkout session.
//
// Parameters:
//   - ctx: request-scoped context.
//   - req: the slot, session and customer snapshot.
//   - rlKey: rate-limit key for the caller, empty to skip limiting.
//
// Returns:
//   - *domain.SlotHold: the created hold.
//   - error: booking.ErrSlotConflict if an active hold or reservation covers
//     the slot. This is a user-visible outcome and must not be auto-retried.
//   - error: booking.ErrCourtNotFound if the court does not exist.
//   - error: booking.ErrInvalidSlot on malformed date/time input.
//   - error: booking.ErrRateLimited when the caller exceeds the window.
func (s *Service) AcquireHold(ctx context.Context, req AcquireRequest, rlKey string) (*domain.SlotHold, error) {
	const op = "service.booking.AcquireHold"

	date, err := validateSlot(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if _, err := s.courts.GetCourt(ctx, req.CourtID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrCourtNotFound)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return nil, fmt.Errorf("%s:%w, retry in %s", op, ErrRateLimited, retry)
		}
	}

	hold := &domain.SlotHold{
		CourtID:   req.CourtID,
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		SessionID: req.SessionID,
		Customer:  req.Customer,
		ExpiresAt: time.Now().Add(s.clampTTL(req.TTL)),
	}

	// bounded wait: a contended slot row must fail fast, not hang the checkout
	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()

	if _, err := s.holds.Acquire(acquireCtx, hold); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, fmt.Errorf("%s:%w", op, ErrSlotConflict)
		}

		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrCourtNotFound)
		}

		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s:%w", op, ErrStorageTimeout)
		}

		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.slotChanged(ctx, hold.CourtID, req.Date)

	return hold, nil
}

// ConfirmHold settles a hold into a reservation after a successful payment.
// Calling it again for an already confirmed hold returns the existing
// reservation unchanged; no duplicate is ever created.
//
// Parameters:
//   - ctx: request-scoped context.
//   - holdID: the hold being settled.
//   - amount: price actually paid, integer pesos.
//   - channel: sales channel, decides the commission rate.
//   - paymentMethod: how the payment arrived (automatic, manual, ...).
//
// Returns:
//   - *domain.Reservation: the reservation, new or pre-existing.
//   - error: booking.ErrHoldNotFound if the hold does not exist.
//   - error: booking.ErrHoldNotActive if the hold expired or was cancelled.
func (s *Service) ConfirmHold(
	ctx context.Context,
	holdID uuid.UUID,
	amount int64,
	channel domain.Channel,
	paymentMethod string,
) (*domain.Reservation, error) {
	const op = "service.booking.ConfirmHold"

	if amount <= 0 {
		return nil, fmt.Errorf("%s:%w: amount must be positive", op, ErrInvalidSlot)
	}

	breakdown, err := commission.Calculate(amount, channel)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	snap := domain.ConfirmSnapshot{
		PriceTotal:        amount,
		Channel:           channel,
		CommissionApplied: breakdown.CommissionTotal,
		CommissionRate:    breakdown.RateUsed,
		PaymentMethod:     paymentMethod,
	}

	// bounded wait covering the whole confirm, retries included
	confirmCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()

	// the public code is unique; on the rare collision regenerate and retry
	var res *domain.Reservation
	for attempt := 0; attempt < 3; attempt++ {
		snap.Code = newCode()

		res, err = s.holds.Confirm(confirmCtx, holdID, snap)
		if err == nil {
			break
		}

		if errors.Is(err, repository.ErrConflict) {
			continue
		}

		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%s:%w", op, ErrHoldNotFound)
		case errors.Is(err, repository.ErrHoldExpired),
			errors.Is(err, repository.ErrHoldTerminal):
			return nil, fmt.Errorf("%s:%w", op, ErrHoldNotActive)
		case errors.Is(err, context.DeadlineExceeded),
			errors.Is(confirmCtx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%s:%w", op, ErrStorageTimeout)
		default:
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.slotChanged(ctx, res.CourtID, res.Date.Format(domain.DateFormat))

	return res, nil
}

// CancelHold abandons a checkout. Cooperative: if the client never calls it,
// the expiry sweep reclaims the slot anyway.
//
// Returns:
//   - error: booking.ErrHoldNotFound if the hold does not exist.
//   - error: booking.ErrHoldNotActive if the hold is already terminal.
func (s *Service) CancelHold(ctx context.Context, holdID uuid.UUID) error {
	const op = "service.booking.CancelHold"

	if err := s.holds.Cancel(ctx, holdID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, ErrHoldNotFound)
		}

		if errors.Is(err, repository.ErrHoldTerminal) {
			return fmt.Errorf("%s:%w", op, ErrHoldNotActive)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// ExpireStaleHolds sweeps every held row past its expiry. Idempotent and safe
// to run concurrently with itself.
//
// Returns:
//   - int64: the number of holds expired.
func (s *Service) ExpireStaleHolds(ctx context.Context, now time.Time) (int64, error) {
	const op = "service.booking.ExpireStaleHolds"

	released, err := s.holds.ExpireStale(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	return released, nil
}

// CreateAdminReservation books a slot from the staff panel: acquire plus
// immediate confirm on the admin_created channel, payment method manual.
// Price falls back to the court's per-slot price when zero.
func (s *Service) CreateAdminReservation(ctx context.Context, req AcquireRequest, price int64) (*domain.Reservation, error) {
	const op = "service.booking.CreateAdminReservation"

	if price == 0 {
		court, err := s.courts.GetCourt(ctx, req.CourtID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s:%w", op, ErrCourtNotFound)
			}

			return nil, fmt.Errorf("%s:%w", op, err)
		}

		price = court.PricePerSlot
	}

	hold, err := s.AcquireHold(ctx, req, "")
	if err != nil {
		return nil, err
	}

	res, err := s.ConfirmHold(ctx, hold.ID, price, domain.ChannelAdminCreated, "manual")
	if err != nil {
		// best effort: release the slot the half-finished booking holds
		_ = s.holds.Cancel(ctx, hold.ID)
		return nil, err
	}

	return res, nil
}

func (s *Service) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.cfg.DefaultHoldTTL
	}

	if ttl < s.cfg.MinHoldTTL {
		return s.cfg.MinHoldTTL
	}

	if ttl > s.cfg.MaxHoldTTL {
		return s.cfg.MaxHoldTTL
	}

	return ttl
}

func (s *Service) slotChanged(ctx context.Context, courtID int64, date string) {
	if s.cache != nil {
		_ = s.cache.InvalidateCourtDay(ctx, courtID, date)
	}

	if s.pubsub != nil {
		_ = s.pubsub.PublishSlotChanged(ctx, courtID, date)
	}
}

func validateSlot(date, start, end string) (time.Time, error) {
	d, err := time.Parse(domain.DateFormat, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidSlot, date)
	}

	st, err := time.Parse("15:04", start)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad start_time %q", ErrInvalidSlot, start)
	}

	et, err := time.Parse("15:04", end)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad end_time %q", ErrInvalidSlot, end)
	}

	if !et.After(st) {
		return time.Time{}, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidSlot)
	}

	return d, nil
}

// codeAlphabet avoids ambiguous characters so the code survives being read
// over the phone.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newCode() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return "RTC-" + string(b)
}
