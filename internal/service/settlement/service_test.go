package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
)

type batchKey struct {
	venueID int64
	date    string
}

type fakeDepositStore struct {
	totals  map[string][]domain.VenueDayTotals
	batches map[batchKey]*domain.DepositBatch
	nextID  int64

	insertErrFor map[int64]error
}

func newFakeDepositStore() *fakeDepositStore {
	return &fakeDepositStore{
		totals:       make(map[string][]domain.VenueDayTotals),
		batches:      make(map[batchKey]*domain.DepositBatch),
		insertErrFor: make(map[int64]error),
	}
}

func (f *fakeDepositStore) AggregateDay(_ context.Context, date string) ([]domain.VenueDayTotals, error) {
	return f.totals[date], nil
}

func (f *fakeDepositStore) InsertBatch(_ context.Context, venueID int64, date string, t domain.VenueDayTotals) (*domain.DepositBatch, error) {
	if err := f.insertErrFor[venueID]; err != nil {
		return nil, err
	}

	key := batchKey{venueID, date}
	if _, exists := f.batches[key]; exists {
		return nil, nil
	}

	f.nextID++
	day, _ := time.Parse(domain.DateFormat, date)
	b := &domain.DepositBatch{
		ID:              f.nextID,
		VenueID:         venueID,
		Date:            day,
		GrossTotal:      t.GrossTotal,
		CommissionTotal: t.CommissionTotal,
		NetPayable:      t.GrossTotal - t.CommissionTotal,
		Status:          domain.DepositPending,
		CreatedAt:       time.Now(),
	}
	f.batches[key] = b

	out := *b
	return &out, nil
}

func (f *fakeDepositStore) MarkPaid(_ context.Context, id int64, method, reference, observations string) (*domain.DepositBatch, error) {
	for _, b := range f.batches {
		if b.ID != id {
			continue
		}
		if b.Status == domain.DepositPaid {
			return nil, repository.ErrAlreadyPaid
		}
		now := time.Now()
		b.Status = domain.DepositPaid
		b.PaidAt = &now
		b.PaymentMethod = method
		b.TransactionReference = reference
		b.Observations = observations

		out := *b
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDepositStore) Get(_ context.Context, id int64) (*domain.DepositBatch, error) {
	for _, b := range f.batches {
		if b.ID == id {
			out := *b
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDepositStore) ListForVenue(_ context.Context, venueID int64, _, _ int) ([]domain.DepositBatch, error) {
	var out []domain.DepositBatch
	for _, b := range f.batches {
		if b.VenueID == venueID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunDay_CreatesOneBatchPerVenue(t *testing.T) {
	store := newFakeDepositStore()
	// two confirmed reservations at venue 10: 20000+30000 gross, 700+1050 fee
	store.totals["2026-09-01"] = []domain.VenueDayTotals{
		{VenueID: 10, GrossTotal: 50_000, CommissionTotal: 1_750, Reservations: 2},
		{VenueID: 20, GrossTotal: 80_000, CommissionTotal: 2_800, Reservations: 3},
	}

	svc := New(store, testLogger())

	report, err := svc.RunDay(context.Background(), "2026-09-01")
	require.NoError(t, err)
	require.Len(t, report.Created, 2)
	assert.Equal(t, 0, report.Skipped)

	var venue10 *domain.DepositBatch
	for i := range report.Created {
		if report.Created[i].VenueID == 10 {
			venue10 = &report.Created[i]
		}
	}
	require.NotNil(t, venue10)
	assert.Equal(t, int64(50_000), venue10.GrossTotal)
	assert.Equal(t, int64(1_750), venue10.CommissionTotal)
	assert.Equal(t, int64(48_250), venue10.NetPayable)
	assert.Equal(t, domain.DepositPending, venue10.Status)
}

func TestRunDay_RerunNeverDuplicates(t *testing.T) {
	store := newFakeDepositStore()
	store.totals["2026-09-01"] = []domain.VenueDayTotals{
		{VenueID: 10, GrossTotal: 50_000, CommissionTotal: 1_750},
	}

	svc := New(store, testLogger())
	ctx := context.Background()

	first, err := svc.RunDay(ctx, "2026-09-01")
	require.NoError(t, err)
	require.Len(t, first.Created, 1)

	second, err := svc.RunDay(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, store.batches, 1)
}

func TestRunDay_OneVenueFailureDoesNotBlockOthers(t *testing.T) {
	store := newFakeDepositStore()
	store.totals["2026-09-01"] = []domain.VenueDayTotals{
		{VenueID: 10, GrossTotal: 50_000, CommissionTotal: 1_750},
		{VenueID: 20, GrossTotal: 80_000, CommissionTotal: 2_800},
	}
	store.insertErrFor[10] = errors.New("connection reset")

	svc := New(store, testLogger())

	report, err := svc.RunDay(context.Background(), "2026-09-01")
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	assert.Equal(t, int64(20), report.Created[0].VenueID)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, int64(10), report.Failures[0].VenueID)
}

func TestRunDay_InvalidDate(t *testing.T) {
	svc := New(newFakeDepositStore(), testLogger())

	_, err := svc.RunDay(context.Background(), "01-09-2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestMarkPaid_OneWay(t *testing.T) {
	store := newFakeDepositStore()
	store.totals["2026-09-01"] = []domain.VenueDayTotals{
		{VenueID: 10, GrossTotal: 50_000, CommissionTotal: 1_750},
	}

	svc := New(store, testLogger())
	ctx := context.Background()

	report, err := svc.RunDay(ctx, "2026-09-01")
	require.NoError(t, err)
	id := report.Created[0].ID

	paid, err := svc.MarkPaid(ctx, id, "transferencia", "TX-123", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DepositPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, "transferencia", paid.PaymentMethod)
	assert.Equal(t, "TX-123", paid.TransactionReference)

	// a settled batch never reverts and never settles twice
	_, err = svc.MarkPaid(ctx, id, "transferencia", "TX-456", "")
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "TX-123", got.TransactionReference)
}

func TestMarkPaid_Validation(t *testing.T) {
	svc := New(newFakeDepositStore(), testLogger())
	ctx := context.Background()

	_, err := svc.MarkPaid(ctx, 1, "", "TX-123", "")
	assert.ErrorIs(t, err, ErrMissingMethod)

	_, err = svc.MarkPaid(ctx, 99, "transferencia", "", "")
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestGet_NotFound(t *testing.T) {
	svc := New(newFakeDepositStore(), testLogger())

	_, err := svc.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}
