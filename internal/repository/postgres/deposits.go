package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
)

type DepositRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *DepositRepo) With(db DB) *DepositRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *DepositRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// AggregateDay sums confirmed reservations per venue for one settlement date.
// Pure read; holds no locks that would block the booking path.
func (r *DepositRepo) AggregateDay(ctx context.Context, date string) ([]domain.VenueDayTotals, error) {
	const op = "postgres.DepositRepo.AggregateDay"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT c.venue_id,
                COALESCE(SUM(sh.price_total), 0),
                COALESCE(SUM(sh.commission_applied), 0),
                COUNT(*)
           FROM slot_holds sh
           JOIN courts c ON c.id = sh.court_id
          WHERE sh.status = 'confirmed' AND sh.date = $1
          GROUP BY c.venue_id
          ORDER BY c.venue_id`,
		date,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.VenueDayTotals
	for rows.Next() {
		var t domain.VenueDayTotals
		if err := rows.Scan(&t.VenueID, &t.GrossTotal, &t.CommissionTotal, &t.Reservations); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// InsertBatch creates a pending batch for (venue, date) if none exists.
// The unique index makes a concurrent or repeated run a no-op.
//
// Returns:
//   - *domain.DepositBatch: the inserted batch, nil when one already existed.
func (r *DepositRepo) InsertBatch(ctx context.Context, venueID int64, date string, t domain.VenueDayTotals) (*domain.DepositBatch, error) {
	const op = "postgres.DepositRepo.InsertBatch"

	db := r.handle()

	var b domain.DepositBatch
	err := db.QueryRow(ctx,
		`INSERT INTO deposit_batches(
            venue_id, date, gross_total, commission_total, net_payable, status)
         VALUES ($1, $2, $3, $4, $5, 'pending')
         ON CONFLICT (venue_id, date) DO NOTHING
      RETURNING id, venue_id, date, gross_total, commission_total, net_payable,
                status, created_at`,
		venueID, date, t.GrossTotal, t.CommissionTotal, t.GrossTotal-t.CommissionTotal,
	).Scan(
		&b.ID, &b.VenueID, &b.Date, &b.GrossTotal, &b.CommissionTotal,
		&b.NetPayable, &b.Status, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapDBErr(op, err)
	}

	return &b, nil
}

// MarkPaid settles a pending batch. One-way: a paid batch never reverts.
//
// Returns:
//   - error: repository.ErrNotFound if the batch does not exist.
//   - error: repository.ErrAlreadyPaid if it was settled before.
func (r *DepositRepo) MarkPaid(ctx context.Context, id int64, method, reference, observations string) (*domain.DepositBatch, error) {
	const op = "postgres.DepositRepo.MarkPaid"

	db := r.handle()

	row := db.QueryRow(ctx,
		`UPDATE deposit_batches
            SET status = 'paid',
                paid_at = now(),
                payment_method = $2,
                transaction_reference = $3,
                observations = $4
          WHERE id = $1 AND status = 'pending'
      RETURNING id, venue_id, date, gross_total, commission_total, net_payable,
                status, paid_at, payment_method, transaction_reference,
                observations, created_at`,
		id, method, reference, observations,
	)

	b, err := scanDepositBatch(row)
	if err == nil {
		return b, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, wrapDBErr(op, err)
	}

	var status string
	if err := db.QueryRow(ctx,
		`SELECT status FROM deposit_batches WHERE id = $1`, id,
	).Scan(&status); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return nil, fmt.Errorf("%s:%w", op, repository.ErrAlreadyPaid)
}

// Get retrieves one batch by ID.
func (r *DepositRepo) Get(ctx context.Context, id int64) (*domain.DepositBatch, error) {
	const op = "postgres.DepositRepo.Get"

	db := r.handle()

	b, err := scanDepositBatch(db.QueryRow(ctx,
		depositBatchSQL+` WHERE id = $1`, id,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

// ListForVenue returns a venue's batches, newest settlement date first.
func (r *DepositRepo) ListForVenue(ctx context.Context, venueID int64, limit, offset int) ([]domain.DepositBatch, error) {
	const op = "postgres.DepositRepo.ListForVenue"

	db := r.handle()

	rows, err := db.Query(ctx,
		depositBatchSQL+`
          WHERE venue_id = $1
          ORDER BY date DESC
          LIMIT $2 OFFSET $3`,
		venueID, limit, offset,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.DepositBatch
	for rows.Next() {
		b, err := scanDepositBatch(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

const depositBatchSQL = `
         SELECT id, venue_id, date, gross_total, commission_total, net_payable,
                status, paid_at, payment_method, transaction_reference,
                observations, created_at
           FROM deposit_batches`

func scanDepositBatch(row pgx.Row) (*domain.DepositBatch, error) {
	var b domain.DepositBatch
	var (
		paidAt            *time.Time
		method, ref, obs  *string
	)

	err := row.Scan(
		&b.ID, &b.VenueID, &b.Date, &b.GrossTotal, &b.CommissionTotal,
		&b.NetPayable, &b.Status, &paidAt, &method, &ref, &obs, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.PaidAt = paidAt
	if method != nil {
		b.PaymentMethod = *method
	}
	if ref != nil {
		b.TransactionReference = *ref
	}
	if obs != nil {
		b.Observations = *obs
	}

	return &b, nil
}
