package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
	postgresrepo "github.com/Pousito/reserva-tu-cancha-sub003/internal/repository/postgres"
	redisrepo "github.com/Pousito/reserva-tu-cancha-sub003/internal/repository/redis"
)

type Config struct {
	CourtDayTTL    time.Duration
	ReservationTTL time.Duration
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.CourtDayTTL <= 0 {
		cfg.CourtDayTTL = 15 * time.Second
	}

	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = 60 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// CourtDay returns the occupied slots of a court for one date, through a
// short-TTL cache. The booking path invalidates the key on every change, so
// stale reads are bounded; the database constraint stays the source of truth
// for actual acquisition.
//
// Returns:
//   - error: query.ErrCourtNotFound if the court does not exist.
func (s *Service) CourtDay(ctx context.Context, courtID int64, date string) (*domain.CourtDay, error) {
	const op = "service.query.CourtDay"

	if _, err := s.GetCourt(ctx, courtID); err != nil {
		return nil, err
	}

	key := redisrepo.KeyCourtDay(courtID, date)

	day, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.CourtDayTTL,
		func(ctx context.Context) (domain.CourtDay, error) {
			d, err := s.store.Query().CourtDay(ctx, courtID, date)
			if err != nil {
				return domain.CourtDay{}, err
			}

			return *d, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &day, nil
}

// GetCourt retrieves a court.
//
// Returns:
//   - error: query.ErrCourtNotFound if the court does not exist.
func (s *Service) GetCourt(ctx context.Context, id int64) (*domain.Court, error) {
	const op = "service.query.GetCourt"

	c, err := s.store.Query().GetCourt(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrCourtNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

// GetVenue retrieves a venue.
//
// Returns:
//   - error: query.ErrVenueNotFound if the venue does not exist.
func (s *Service) GetVenue(ctx context.Context, id int64) (*domain.Venue, error) {
	const op = "service.query.GetVenue"

	v, err := s.store.Query().GetVenue(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrVenueNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// GetHold retrieves a hold in any state, for checkout status polling.
//
// Returns:
//   - error: query.ErrHoldNotFound if the hold does not exist.
func (s *Service) GetHold(ctx context.Context, holdID uuid.UUID) (*domain.Reservation, error) {
	const op = "service.query.GetHold"

	h, err := s.store.Query().GetHold(ctx, holdID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrHoldNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return h, nil
}

// ReservationByCode retrieves a confirmed reservation by its public code,
// cached: the confirmation page is the hottest read after payment.
//
// Returns:
//   - error: query.ErrReservationNotFound if no confirmed reservation
//     carries the code.
func (s *Service) ReservationByCode(ctx context.Context, code string) (*domain.ReservationWithVenue, error) {
	const op = "service.query.ReservationByCode"

	key := redisrepo.KeyReservation(code)

	rv, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.ReservationTTL,
		func(ctx context.Context) (domain.ReservationWithVenue, error) {
			r, err := s.store.Query().GetReservationByCode(ctx, code)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return domain.ReservationWithVenue{}, ErrReservationNotFound
				}

				return domain.ReservationWithVenue{}, err
			}

			return *r, nil
		},
	)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrReservationNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &rv, nil
}
