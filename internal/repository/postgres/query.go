package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
)

type QueryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *QueryRepo) With(db DB) *QueryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *QueryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetVenue retrieves a venue by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the venue is not found.
func (r *QueryRepo) GetVenue(ctx context.Context, id int64) (*domain.Venue, error) {
	const op = "postgres.QueryRepo.GetVenue"

	db := r.handle()

	var v domain.Venue
	err := db.QueryRow(ctx,
		`SELECT id, name, city FROM venues WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.Name, &v.City)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &v, nil
}

// GetCourt retrieves a court by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the court is not found.
func (r *QueryRepo) GetCourt(ctx context.Context, id int64) (*domain.Court, error) {
	const op = "postgres.QueryRepo.GetCourt"

	db := r.handle()

	var c domain.Court
	err := db.QueryRow(ctx,
		`SELECT id, venue_id, name, price_per_slot FROM courts WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.VenueID, &c.Name, &c.PricePerSlot)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &c, nil
}

// GetHold retrieves a hold (any status) by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the hold is not found.
func (r *QueryRepo) GetHold(ctx context.Context, holdID uuid.UUID) (*domain.Reservation, error) {
	const op = "postgres.QueryRepo.GetHold"

	db := r.handle()

	res, err := scanReservation(db.QueryRow(ctx,
		`SELECT id, court_id, date, start_time, end_time, session_id, status,
                customer_name, customer_email, customer_phone, customer_national_id,
                created_at, expires_at,
                code, price_total, channel, commission_applied, commission_rate,
                payment_method, confirmed_at
           FROM slot_holds
          WHERE id = $1`,
		holdID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return res, nil
}

// GetReservationByCode retrieves a confirmed reservation by its public code.
//
// Returns:
//   - error: repository.ErrNotFound if no confirmed reservation carries the code.
func (r *QueryRepo) GetReservationByCode(ctx context.Context, code string) (*domain.ReservationWithVenue, error) {
	const op = "postgres.QueryRepo.GetReservationByCode"

	db := r.handle()

	rv, err := scanReservationWithVenue(db.QueryRow(ctx,
		reservationWithVenueSQL+` WHERE sh.code = $1 AND sh.status = 'confirmed'`,
		code,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return rv, nil
}

// CourtDay lists the occupied slots of a court for one date. Expired and
// cancelled holds do not occupy anything.
func (r *QueryRepo) CourtDay(ctx context.Context, courtID int64, date string) (*domain.CourtDay, error) {
	const op = "postgres.QueryRepo.CourtDay"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT start_time, end_time, status
           FROM slot_holds
          WHERE court_id = $1 AND date = $2
            AND (status = 'confirmed'
                 OR (status = 'held' AND expires_at > now()))
          ORDER BY start_time`,
		courtID, date,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	out := domain.CourtDay{CourtID: courtID, Date: date}
	for rows.Next() {
		var s domain.SlotInfo
		if err := rows.Scan(&s.StartTime, &s.EndTime, &s.Status); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out.Taken = append(out.Taken, s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &out, nil
}
