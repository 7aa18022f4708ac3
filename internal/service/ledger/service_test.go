package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
)

type fakeLedgerStore struct {
	reservations map[uuid.UUID]*domain.ReservationWithVenue
	categories   map[int64][2]*domain.Category // venue -> {income, expense}
	entries      []domain.LedgerEntry

	insertErr error
}

func newFakeLedgerStore() *fakeLedgerStore {
	return &fakeLedgerStore{
		reservations: make(map[uuid.UUID]*domain.ReservationWithVenue),
		categories:   make(map[int64][2]*domain.Category),
	}
}

func (f *fakeLedgerStore) addVenueCategories(venueID int64) {
	f.categories[venueID] = [2]*domain.Category{
		{ID: venueID*10 + 1, VenueID: venueID, Purpose: domain.PurposePlatformIncome, Type: domain.EntryIncome},
		{ID: venueID*10 + 2, VenueID: venueID, Purpose: domain.PurposePlatformCommission, Type: domain.EntryExpense},
	}
}

func (f *fakeLedgerStore) PlatformCategories(_ context.Context, venueID int64) (*domain.Category, *domain.Category, error) {
	cats, ok := f.categories[venueID]
	if !ok {
		return nil, nil, repository.ErrMissingCategory
	}
	return cats[0], cats[1], nil
}

func (f *fakeLedgerStore) ExistingEntryTypes(_ context.Context, venueID int64, code string) (bool, bool, error) {
	var hasIncome, hasExpense bool
	marker := "[" + code + "]"
	for _, e := range f.entries {
		if e.VenueID != venueID || !strings.Contains(e.Description, marker) {
			continue
		}
		switch e.Type {
		case domain.EntryIncome:
			hasIncome = true
		case domain.EntryExpense:
			hasExpense = true
		}
	}
	return hasIncome, hasExpense, nil
}

func (f *fakeLedgerStore) InsertEntries(_ context.Context, entries []domain.LedgerEntry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeLedgerStore) ReservationNeedingSync(_ context.Context, reservationID uuid.UUID) (*domain.ReservationWithVenue, error) {
	rv, ok := f.reservations[reservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rv, nil
}

func (f *fakeLedgerStore) ReservationsMissingEntries(_ context.Context, limit int) ([]domain.ReservationWithVenue, error) {
	var out []domain.ReservationWithVenue
	for _, rv := range f.reservations {
		if rv.Status != domain.HoldConfirmed || rv.PriceTotal <= 0 {
			continue
		}
		hasIncome, hasExpense, _ := f.ExistingEntryTypes(context.Background(), rv.VenueID, rv.Code)
		expenseDue := rv.CommissionApplied > 0 && !hasExpense
		if hasIncome && !expenseDue {
			continue
		}
		out = append(out, *rv)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLedgerStore) ListEntries(_ context.Context, venueID int64, _, _ string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range f.entries {
		if e.VenueID == venueID {
			out = append(out, e)
		}
	}
	return out, nil
}

func confirmedReservation(venueID int64, code string, price, commission int64) *domain.ReservationWithVenue {
	day, _ := time.Parse(domain.DateFormat, "2026-09-01")
	return &domain.ReservationWithVenue{
		Reservation: domain.Reservation{
			SlotHold: domain.SlotHold{
				ID:        uuid.New(),
				CourtID:   1,
				Date:      day,
				StartTime: "18:00",
				EndTime:   "19:00",
				Status:    domain.HoldConfirmed,
			},
			Code:              code,
			PriceTotal:        price,
			Channel:           domain.ChannelWebDirect,
			CommissionApplied: commission,
			CommissionRate:    decimal.RequireFromString("0.035"),
			PaymentMethod:     "automatic",
		},
		VenueID:   venueID,
		VenueName: "Complejo Centro",
		CourtName: "Cancha 1",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSyncReservation_PostsBothEntries(t *testing.T) {
	store := newFakeLedgerStore()
	store.addVenueCategories(10)
	rv := confirmedReservation(10, "RTC-AAAAAA", 100_000, 4_165)
	store.reservations[rv.SlotHold.ID] = rv

	svc := New(store, testLogger())

	result, err := svc.SyncReservation(context.Background(), rv.SlotHold.ID)
	require.NoError(t, err)
	assert.True(t, result.IncomePosted)
	assert.True(t, result.ExpensePosted)

	require.Len(t, store.entries, 2)

	income, expense := store.entries[0], store.entries[1]
	assert.Equal(t, domain.EntryIncome, income.Type)
	assert.Equal(t, int64(100_000), income.Amount)
	assert.Equal(t, "automatic", income.PaymentMethod)
	assert.Contains(t, income.Description, "[RTC-AAAAAA]")

	assert.Equal(t, domain.EntryExpense, expense.Type)
	// the stored snapshot, never a recomputation
	assert.Equal(t, int64(4_165), expense.Amount)
}

func TestSyncReservation_Idempotent(t *testing.T) {
	store := newFakeLedgerStore()
	store.addVenueCategories(10)
	rv := confirmedReservation(10, "RTC-AAAAAA", 100_000, 4_165)
	store.reservations[rv.SlotHold.ID] = rv

	svc := New(store, testLogger())

	for i := 0; i < 5; i++ {
		_, err := svc.SyncReservation(context.Background(), rv.SlotHold.ID)
		require.NoError(t, err)
	}

	assert.Len(t, store.entries, 2)
}

func TestSyncReservation_BackfillsMissingExpense(t *testing.T) {
	store := newFakeLedgerStore()
	store.addVenueCategories(10)
	rv := confirmedReservation(10, "RTC-AAAAAA", 100_000, 4_165)
	store.reservations[rv.SlotHold.ID] = rv

	// income already posted by an earlier partial run
	store.entries = append(store.entries, domain.LedgerEntry{
		VenueID:     10,
		Type:        domain.EntryIncome,
		Amount:      100_000,
		Description: "Reserva [RTC-AAAAAA] Cancha 1 2026-09-01 18:00-19:00",
	})

	svc := New(store, testLogger())

	result, err := svc.SyncReservation(context.Background(), rv.SlotHold.ID)
	require.NoError(t, err)
	assert.False(t, result.IncomePosted)
	assert.True(t, result.ExpensePosted)
	assert.Len(t, store.entries, 2)
}

func TestSyncReservation_ZeroCommissionSkipsExpense(t *testing.T) {
	store := newFakeLedgerStore()
	store.addVenueCategories(10)
	rv := confirmedReservation(10, "RTC-BBBBBB", 100_000, 0)
	store.reservations[rv.SlotHold.ID] = rv

	svc := New(store, testLogger())

	result, err := svc.SyncReservation(context.Background(), rv.SlotHold.ID)
	require.NoError(t, err)
	assert.True(t, result.IncomePosted)
	assert.False(t, result.ExpensePosted)
	require.Len(t, store.entries, 1)
	assert.Equal(t, domain.EntryIncome, store.entries[0].Type)
}

func TestSyncReservation_Errors(t *testing.T) {
	store := newFakeLedgerStore()
	svc := New(store, testLogger())
	ctx := context.Background()

	_, err := svc.SyncReservation(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrReservationNotFound)

	// venue without platform categories: nothing is partially posted
	rv := confirmedReservation(20, "RTC-CCCCCC", 50_000, 2_082)
	store.reservations[rv.SlotHold.ID] = rv

	_, err = svc.SyncReservation(ctx, rv.SlotHold.ID)
	assert.ErrorIs(t, err, ErrMissingCategory)
	assert.Empty(t, store.entries)

	// hold that never reached confirmed
	held := confirmedReservation(20, "", 0, 0)
	held.Status = domain.HoldHeld
	store.reservations[held.SlotHold.ID] = held

	_, err = svc.SyncReservation(ctx, held.SlotHold.ID)
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestSweep_OneBrokenVenueDoesNotBlockOthers(t *testing.T) {
	store := newFakeLedgerStore()
	store.addVenueCategories(10)
	// venue 20 lost its categories

	good := confirmedReservation(10, "RTC-AAAAAA", 100_000, 4_165)
	broken := confirmedReservation(20, "RTC-DDDDDD", 50_000, 2_082)
	store.reservations[good.SlotHold.ID] = good
	store.reservations[broken.SlotHold.ID] = broken

	svc := New(store, testLogger())

	report, err := svc.Sweep(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Synced)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "RTC-DDDDDD", report.Failures[0].Code)

	// the healthy venue's books were still written
	assert.Len(t, store.entries, 2)
}

func TestSweep_BackfillsExpenseOnlyGap(t *testing.T) {
	store := newFakeLedgerStore()
	store.addVenueCategories(10)
	rv := confirmedReservation(10, "RTC-AAAAAA", 100_000, 4_165)
	store.reservations[rv.SlotHold.ID] = rv

	// income landed, expense did not: the scan must still pick it up
	store.entries = append(store.entries, domain.LedgerEntry{
		VenueID:     10,
		Type:        domain.EntryIncome,
		Amount:      100_000,
		Description: "Reserva [RTC-AAAAAA] Cancha 1 2026-09-01 18:00-19:00",
	})

	svc := New(store, testLogger())

	report, err := svc.Sweep(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Synced)

	require.Len(t, store.entries, 2)
	assert.Equal(t, domain.EntryExpense, store.entries[1].Type)
	assert.Equal(t, int64(4_165), store.entries[1].Amount)
}

func TestSweep_InsertFailureIsReported(t *testing.T) {
	store := newFakeLedgerStore()
	store.addVenueCategories(10)
	rv := confirmedReservation(10, "RTC-AAAAAA", 100_000, 4_165)
	store.reservations[rv.SlotHold.ID] = rv
	store.insertErr = errors.New("connection reset")

	svc := New(store, testLogger())

	report, err := svc.Sweep(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 0, report.Synced)
}

func TestEntryDescription(t *testing.T) {
	rv := confirmedReservation(10, "RTC-XY42KQ", 100_000, 4_165)

	got := entryDescription(rv)
	assert.Equal(t, fmt.Sprintf("Reserva [%s] Cancha 1 2026-09-01 18:00-19:00", rv.Code), got)
}
