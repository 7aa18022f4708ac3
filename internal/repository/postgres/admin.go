package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
)

type AdminRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *AdminRepo) With(db DB) *AdminRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *AdminRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *AdminRepo) CreateVenue(ctx context.Context, name, city string) (int64, error) {
	const op = "postgres.AdminRepo.CreateVenue"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO venues(name, city)
         VALUES ($1, $2)
      RETURNING id`,
		name, city,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}

// CreateCategories provisions a venue's ledger taxonomy. The platform pair
// (income + commission) is what the sync engine requires before it can post.
func (r *AdminRepo) CreateCategories(ctx context.Context, cats []domain.Category) error {
	const op = "postgres.AdminRepo.CreateCategories"

	db := r.handle()

	batch := &pgx.Batch{}
	for _, c := range cats {
		batch.Queue(
			`INSERT INTO categories(venue_id, purpose, name, type)
             VALUES ($1, $2, $3, $4)
             ON CONFLICT (venue_id, purpose) DO NOTHING`,
			c.VenueID, c.Purpose, c.Name, c.Type,
		)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *AdminRepo) CreateCourt(ctx context.Context, court *domain.Court) (int64, error) {
	const op = "postgres.AdminRepo.CreateCourt"

	db := r.handle()

	var id int64
	if err := db.QueryRow(ctx,
		`INSERT INTO courts(venue_id, name, price_per_slot)
         VALUES ($1, $2, $3)
      RETURNING id`,
		court.VenueID, court.Name, court.PricePerSlot,
	).Scan(&id); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return id, nil
}
