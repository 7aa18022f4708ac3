package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
	postgresrepo "github.com/Pousito/reserva-tu-cancha-sub003/internal/repository/postgres"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/uow"
)

type Service struct {
	store *postgresrepo.Store
	uow   *uow.UoW
}

func New(store *postgresrepo.Store) *Service {
	return &Service{
		store: store,
		uow:   uow.NewUoW(store),
	}
}

// CreateVenue creates a venue together with its two platform ledger
// categories in one transaction. Provisioning them atomically is what keeps
// the sync engine's MissingCategory error an exceptional state instead of a
// routine one.
//
// Returns:
//   - int64: the created venue ID.
//   - error: admin.ErrVenueConflict if a venue with the same name exists.
func (s *Service) CreateVenue(ctx context.Context, name, city string) (int64, error) {
	const op = "service.admin.CreateVenue"

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Admin().With(tx).CreateVenue(ctx, name, city)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s: %w", op, ErrVenueConflict)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		cats := []domain.Category{
			{
				VenueID: id,
				Purpose: domain.PurposePlatformIncome,
				Name:    "Reservas Web",
				Type:    domain.EntryIncome,
			},
			{
				VenueID: id,
				Purpose: domain.PurposePlatformCommission,
				Name:    "Comisión Plataforma",
				Type:    domain.EntryExpense,
			},
		}

		if err := s.store.Admin().With(tx).CreateCategories(ctx, cats); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		return nil
	})

	return id, err
}

// CreateCourt adds a court to a venue.
//
// Returns:
//   - int64: the created court ID.
//   - error: admin.ErrVenueNotFound if the venue does not exist.
//   - error: admin.ErrCourtConflict if the court name is taken in the venue.
func (s *Service) CreateCourt(ctx context.Context, court *domain.Court) (int64, error) {
	const op = "service.admin.CreateCourt"

	var id int64
	err := s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		var err error
		id, err = s.store.Admin().With(tx).CreateCourt(ctx, court)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%s: %w", op, ErrCourtConflict)
			}
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s: %w", op, ErrVenueNotFound)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})

	return id, err
}
