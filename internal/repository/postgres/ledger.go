package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
)

type LedgerRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *LedgerRepo) With(db DB) *LedgerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *LedgerRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// PlatformCategories resolves the two well-known categories of a venue by
// typed purpose.
//
// Returns:
//   - error: repository.ErrMissingCategory if either category is absent.
func (r *LedgerRepo) PlatformCategories(ctx context.Context, venueID int64) (income, expense *domain.Category, err error) {
	const op = "postgres.LedgerRepo.PlatformCategories"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, venue_id, purpose, name, type
           FROM categories
          WHERE venue_id = $1
            AND purpose IN ('platform_income', 'platform_commission')`,
		venueID,
	)
	if err != nil {
		return nil, nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.VenueID, &c.Purpose, &c.Name, &c.Type); err != nil {
			return nil, nil, wrapDBErr(op, err)
		}

		switch c.Purpose {
		case domain.PurposePlatformIncome:
			cc := c
			income = &cc
		case domain.PurposePlatformCommission:
			cc := c
			expense = &cc
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, wrapDBErr(op, err)
	}

	if income == nil || expense == nil {
		return nil, nil, fmt.Errorf("%s:%w", op, repository.ErrMissingCategory)
	}

	return income, expense, nil
}

// ExistingEntryTypes reports which entry types already reference a
// reservation code in a venue's ledger. This lookup is the idempotence
// guard for the sync engine.
func (r *LedgerRepo) ExistingEntryTypes(ctx context.Context, venueID int64, code string) (hasIncome, hasExpense bool, err error) {
	const op = "postgres.LedgerRepo.ExistingEntryTypes"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT DISTINCT type
           FROM ledger_entries
          WHERE venue_id = $1
            AND description LIKE '%[' || $2::text || ']%'`,
		venueID, code,
	)
	if err != nil {
		return false, false, wrapDBErr(op, err)
	}

	defer rows.Close()

	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return false, false, wrapDBErr(op, err)
		}
		switch domain.EntryType(t) {
		case domain.EntryIncome:
			hasIncome = true
		case domain.EntryExpense:
			hasExpense = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, false, wrapDBErr(op, err)
	}

	return hasIncome, hasExpense, nil
}

// InsertEntries appends ledger entries atomically. Entries are immutable once
// written; there is no update path.
func (r *LedgerRepo) InsertEntries(ctx context.Context, entries []domain.LedgerEntry) error {
	const op = "postgres.LedgerRepo.InsertEntries"

	if len(entries) == 0 {
		return nil
	}

	if r.db != nil {
		return wrapDBErr(op, r.insertEntriesCore(ctx, r.db, entries))
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return wrapDBErr(op, err)
	}

	defer tx.Rollback(ctx)

	if err := r.insertEntriesCore(ctx, tx, entries); err != nil {
		return wrapDBErr(op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *LedgerRepo) insertEntriesCore(ctx context.Context, db DB, entries []domain.LedgerEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO ledger_entries(
                venue_id, category_id, type, amount, date, description, payment_method)
             VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.VenueID, e.CategoryID, e.Type, e.Amount, e.Date, e.Description, e.PaymentMethod,
		)
	}

	return db.SendBatch(ctx, batch).Close()
}

// ReservationNeedingSync loads one confirmed reservation together with its
// venue, for a single runLedgerSync invocation.
func (r *LedgerRepo) ReservationNeedingSync(ctx context.Context, reservationID uuid.UUID) (*domain.ReservationWithVenue, error) {
	const op = "postgres.LedgerRepo.ReservationNeedingSync"

	db := r.handle()

	row := db.QueryRow(ctx, reservationWithVenueSQL+` WHERE sh.id = $1`, reservationID)

	rv, err := scanReservationWithVenue(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return rv, nil
}

// ReservationsMissingEntries scans for confirmed, priced reservations whose
// ledger footprint is incomplete: no income entry, or a due commission with
// no expense entry. Either gap alone qualifies, so the sweep can heal a
// partially posted reservation. This feeds the reconciliation sweep.
func (r *LedgerRepo) ReservationsMissingEntries(ctx context.Context, limit int) ([]domain.ReservationWithVenue, error) {
	const op = "postgres.LedgerRepo.ReservationsMissingEntries"

	db := r.handle()

	rows, err := db.Query(ctx, reservationWithVenueSQL+`
          WHERE sh.status = 'confirmed'
            AND sh.price_total > 0
            AND (NOT EXISTS (
                     SELECT 1
                       FROM ledger_entries le
                      WHERE le.venue_id = c.venue_id
                        AND le.type = 'income'
                        AND le.description LIKE '%[' || sh.code || ']%')
              OR (sh.commission_applied > 0
                  AND NOT EXISTS (
                     SELECT 1
                       FROM ledger_entries le
                      WHERE le.venue_id = c.venue_id
                        AND le.type = 'expense'
                        AND le.description LIKE '%[' || sh.code || ']%')))
          ORDER BY sh.confirmed_at
          LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.ReservationWithVenue
	for rows.Next() {
		rv, err := scanReservationWithVenue(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// ListEntries returns a venue's ledger over an inclusive date range, newest
// first. Read-only reporting surface.
func (r *LedgerRepo) ListEntries(ctx context.Context, venueID int64, from, to string) ([]domain.LedgerEntry, error) {
	const op = "postgres.LedgerRepo.ListEntries"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT id, venue_id, category_id, type, amount, date, description,
                payment_method, created_at
           FROM ledger_entries
          WHERE venue_id = $1 AND date BETWEEN $2 AND $3
          ORDER BY date DESC, id DESC`,
		venueID, from, to,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.VenueID, &e.CategoryID, &e.Type, &e.Amount, &e.Date,
			&e.Description, &e.PaymentMethod, &e.CreatedAt,
		); err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

const reservationWithVenueSQL = `
         SELECT sh.id, sh.court_id, sh.date, sh.start_time, sh.end_time,
                sh.session_id, sh.status,
                sh.customer_name, sh.customer_email, sh.customer_phone, sh.customer_national_id,
                sh.created_at, sh.expires_at,
                sh.code, sh.price_total, sh.channel, sh.commission_applied,
                sh.commission_rate, sh.payment_method, sh.confirmed_at,
                c.venue_id, v.name, c.name
           FROM slot_holds sh
           JOIN courts c ON c.id = sh.court_id
           JOIN venues v ON v.id = c.venue_id`

func scanReservationWithVenue(row pgx.Row) (*domain.ReservationWithVenue, error) {
	var rv domain.ReservationWithVenue
	var (
		code, channel, rate, method *string
		priceTotal, commission      *int64
		confirmedAt                 *time.Time
	)

	err := row.Scan(
		&rv.SlotHold.ID, &rv.CourtID, &rv.Date, &rv.StartTime, &rv.EndTime,
		&rv.SessionID, &rv.Status,
		&rv.Customer.Name, &rv.Customer.Email, &rv.Customer.Phone, &rv.Customer.NationalID,
		&rv.CreatedAt, &rv.ExpiresAt,
		&code, &priceTotal, &channel, &commission, &rate, &method, &confirmedAt,
		&rv.VenueID, &rv.VenueName, &rv.CourtName,
	)
	if err != nil {
		return nil, err
	}

	if code != nil {
		rv.Code = *code
	}
	if priceTotal != nil {
		rv.PriceTotal = *priceTotal
	}
	if channel != nil {
		rv.Channel = domain.Channel(*channel)
	}
	if commission != nil {
		rv.CommissionApplied = *commission
	}
	if rate != nil {
		d, derr := decimal.NewFromString(*rate)
		if derr != nil {
			return nil, fmt.Errorf("bad commission_rate %q: %w", *rate, derr)
		}
		rv.CommissionRate = d
	}
	if method != nil {
		rv.PaymentMethod = *method
	}
	if confirmedAt != nil {
		rv.ConfirmedAt = *confirmedAt
	}

	return &rv, nil
}
