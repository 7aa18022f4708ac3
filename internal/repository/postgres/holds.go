package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
)

type HoldRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *HoldRepo) With(db DB) *HoldRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *HoldRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Acquire inserts a new hold for a slot. The slot_holds partial unique index
// over non-terminal statuses is what arbitrates concurrent claims: exactly one
// insert commits, the rest fail with a unique violation.
//
// Returns:
//   - uuid.UUID: the hold ID when successful.
//   - error: repository.ErrSlotTaken if an active hold or reservation covers the slot.
//   - error: repository.ErrNotFound if the court does not exist.
func (r *HoldRepo) Acquire(ctx context.Context, h *domain.SlotHold) (uuid.UUID, error) {
	const op = "postgres.HoldRepo.Acquire"

	if r.db != nil {
		id, err := r.acquireCore(ctx, r.db, h)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%s:%w", op, err)
		}
		return id, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	defer tx.Rollback(ctx)

	holdID, err := r.acquireCore(ctx, tx, h)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, wrapDBErr(op, err)
	}

	return holdID, nil
}

// Confirm transitions a held row to confirmed, writing the pricing snapshot.
// Calling it again on an already confirmed hold returns the existing
// reservation unchanged.
//
// Returns:
//   - *domain.Reservation: the reservation, existing or newly confirmed.
//   - error: repository.ErrHoldExpired if the hold sat past its expiry.
//   - error: repository.ErrHoldTerminal if the hold was expired or cancelled.
//   - error: repository.ErrNotFound if the hold does not exist.
//   - error: repository.ErrConflict if the code collides with another reservation.
func (r *HoldRepo) Confirm(ctx context.Context, holdID uuid.UUID, p domain.ConfirmSnapshot) (*domain.Reservation, error) {
	const op = "postgres.HoldRepo.Confirm"

	if r.db != nil {
		res, err := r.confirmCore(ctx, r.db, holdID, p)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
		return res, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer tx.Rollback(ctx)

	res, err := r.confirmCore(ctx, tx, holdID, p)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return res, nil
}

// Cancel transitions a held row to cancelled.
//
// Returns:
//   - error: repository.ErrNotFound if the hold does not exist.
//   - error: repository.ErrHoldTerminal if the hold is not in held state.
func (r *HoldRepo) Cancel(ctx context.Context, holdID uuid.UUID) error {
	const op = "postgres.HoldRepo.Cancel"

	db := r.handle()

	var status string
	err := db.QueryRow(ctx,
		`UPDATE slot_holds
            SET status = 'cancelled'
          WHERE id = $1 AND status = 'held'
      RETURNING status`,
		holdID,
	).Scan(&status)
	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return wrapDBErr(op, err)
	}

	// either missing or already terminal; look to tell the caller which
	err = db.QueryRow(ctx, `SELECT status FROM slot_holds WHERE id = $1`, holdID).Scan(&status)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return fmt.Errorf("%s:%w", op, repository.ErrHoldTerminal)
}

// ExpireStale moves every held row past its expiry to expired. Safe to run
// concurrently with itself; an already expired row matches no rows.
//
// Returns:
//   - int64: the number of holds expired by this sweep.
func (r *HoldRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	const op = "postgres.HoldRepo.ExpireStale"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE slot_holds
            SET status = 'expired'
          WHERE status = 'held' AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *HoldRepo) acquireCore(ctx context.Context, db DB, h *domain.SlotHold) (uuid.UUID, error) {
	// reclaim this slot first so an abandoned checkout does not shadow it
	if _, err := db.Exec(ctx,
		`UPDATE slot_holds
            SET status = 'expired'
          WHERE court_id = $1 AND date = $2 AND start_time = $3
            AND status = 'held' AND expires_at <= now()`,
		h.CourtID, h.Date, h.StartTime,
	); err != nil {
		return uuid.Nil, translateDBErr(err)
	}

	holdID := uuid.New()

	err := db.QueryRow(ctx,
		`INSERT INTO slot_holds(
            id, court_id, date, start_time, end_time, session_id, status,
            customer_name, customer_email, customer_phone, customer_national_id,
            expires_at)
         VALUES ($1, $2, $3, $4, $5, $6, 'held', $7, $8, $9, $10, $11)
      RETURNING created_at`,
		holdID, h.CourtID, h.Date, h.StartTime, h.EndTime, h.SessionID,
		h.Customer.Name, h.Customer.Email, h.Customer.Phone, h.Customer.NationalID,
		h.ExpiresAt,
	).Scan(&h.CreatedAt)
	if err != nil {
		err = translateDBErr(err)
		if errors.Is(err, repository.ErrConflict) {
			return uuid.Nil, repository.ErrSlotTaken
		}
		return uuid.Nil, err
	}

	h.ID = holdID
	h.Status = domain.HoldHeld

	return holdID, nil
}

func (r *HoldRepo) confirmCore(ctx context.Context, db DB, holdID uuid.UUID, p domain.ConfirmSnapshot) (*domain.Reservation, error) {
	row := db.QueryRow(ctx,
		`SELECT id, court_id, date, start_time, end_time, session_id, status,
                customer_name, customer_email, customer_phone, customer_national_id,
                created_at, expires_at,
                code, price_total, channel, commission_applied, commission_rate,
                payment_method, confirmed_at
           FROM slot_holds
          WHERE id = $1
            FOR UPDATE`,
		holdID,
	)

	res, err := scanReservation(row)
	if err != nil {
		return nil, translateDBErr(err)
	}

	switch res.Status {
	case domain.HoldConfirmed:
		return res, nil
	case domain.HoldExpired, domain.HoldCancelled:
		return nil, repository.ErrHoldTerminal
	}

	if !res.ExpiresAt.After(time.Now()) {
		if _, err := db.Exec(ctx,
			`UPDATE slot_holds SET status = 'expired' WHERE id = $1`, holdID,
		); err != nil {
			return nil, translateDBErr(err)
		}
		return nil, repository.ErrHoldExpired
	}

	err = db.QueryRow(ctx,
		`UPDATE slot_holds
            SET status = 'confirmed',
                code = $2,
                price_total = $3,
                channel = $4,
                commission_applied = $5,
                commission_rate = $6,
                payment_method = $7,
                confirmed_at = now()
          WHERE id = $1
      RETURNING confirmed_at`,
		holdID, p.Code, p.PriceTotal, p.Channel, p.CommissionApplied,
		p.CommissionRate.String(), p.PaymentMethod,
	).Scan(&res.ConfirmedAt)
	if err != nil {
		return nil, translateDBErr(err)
	}

	res.Status = domain.HoldConfirmed
	res.Code = p.Code
	res.PriceTotal = p.PriceTotal
	res.Channel = p.Channel
	res.CommissionApplied = p.CommissionApplied
	res.CommissionRate = p.CommissionRate
	res.PaymentMethod = p.PaymentMethod

	return res, nil
}

// scanReservation reads the full slot_holds row. Reservation columns are NULL
// until confirmation, so they scan through pointers.
func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	var (
		code, channel, rate, method *string
		priceTotal, commission      *int64
		confirmedAt                 *time.Time
	)

	err := row.Scan(
		&res.SlotHold.ID, &res.CourtID, &res.Date, &res.StartTime, &res.EndTime,
		&res.SessionID, &res.Status,
		&res.Customer.Name, &res.Customer.Email, &res.Customer.Phone, &res.Customer.NationalID,
		&res.CreatedAt, &res.ExpiresAt,
		&code, &priceTotal, &channel, &commission, &rate,
		&method, &confirmedAt,
	)
	if err != nil {
		return nil, err
	}

	if code != nil {
		res.Code = *code
	}
	if priceTotal != nil {
		res.PriceTotal = *priceTotal
	}
	if channel != nil {
		res.Channel = domain.Channel(*channel)
	}
	if commission != nil {
		res.CommissionApplied = *commission
	}
	if rate != nil {
		d, err := decimal.NewFromString(*rate)
		if err != nil {
			return nil, fmt.Errorf("bad commission_rate %q: %w", *rate, err)
		}
		res.CommissionRate = d
	}
	if method != nil {
		res.PaymentMethod = *method
	}
	if confirmedAt != nil {
		res.ConfirmedAt = *confirmedAt
	}

	return &res, nil
}
