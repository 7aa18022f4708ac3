package booking

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/repository"
)

// fakeHoldStore mirrors the storage contract: Acquire resolves conflicts
// through a uniqueness check over active rows, exactly like the partial
// unique index does.
type fakeHoldStore struct {
	mu    sync.Mutex
	holds map[uuid.UUID]*domain.Reservation
	now   func() time.Time
}

func newFakeHoldStore() *fakeHoldStore {
	return &fakeHoldStore{
		holds: make(map[uuid.UUID]*domain.Reservation),
		now:   time.Now,
	}
}

func (f *fakeHoldStore) Acquire(_ context.Context, h *domain.SlotHold) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	for _, r := range f.holds {
		if r.CourtID != h.CourtID || !r.Date.Equal(h.Date) || r.StartTime != h.StartTime {
			continue
		}
		if r.Status == domain.HoldHeld && !r.ExpiresAt.After(now) {
			r.Status = domain.HoldExpired
			continue
		}
		if r.Status == domain.HoldHeld || r.Status == domain.HoldConfirmed {
			return uuid.Nil, repository.ErrSlotTaken
		}
	}

	h.ID = uuid.New()
	h.Status = domain.HoldHeld
	h.CreatedAt = now
	f.holds[h.ID] = &domain.Reservation{SlotHold: *h}

	return h.ID, nil
}

func (f *fakeHoldStore) Confirm(_ context.Context, holdID uuid.UUID, p domain.ConfirmSnapshot) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.holds[holdID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	switch r.Status {
	case domain.HoldConfirmed:
		out := *r
		return &out, nil
	case domain.HoldExpired, domain.HoldCancelled:
		return nil, repository.ErrHoldTerminal
	}

	if !r.ExpiresAt.After(f.now()) {
		r.Status = domain.HoldExpired
		return nil, repository.ErrHoldExpired
	}

	for id, other := range f.holds {
		if id != holdID && other.Code == p.Code {
			return nil, repository.ErrConflict
		}
	}

	r.Status = domain.HoldConfirmed
	r.Code = p.Code
	r.PriceTotal = p.PriceTotal
	r.Channel = p.Channel
	r.CommissionApplied = p.CommissionApplied
	r.CommissionRate = p.CommissionRate
	r.PaymentMethod = p.PaymentMethod
	r.ConfirmedAt = f.now()

	out := *r
	return &out, nil
}

func (f *fakeHoldStore) Cancel(_ context.Context, holdID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.holds[holdID]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Status != domain.HoldHeld {
		return repository.ErrHoldTerminal
	}

	r.Status = domain.HoldCancelled
	return nil
}

func (f *fakeHoldStore) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, r := range f.holds {
		if r.Status == domain.HoldHeld && !r.ExpiresAt.After(now) {
			r.Status = domain.HoldExpired
			n++
		}
	}
	return n, nil
}

type fakeCourtStore struct {
	courts map[int64]*domain.Court
}

func (f *fakeCourtStore) GetCourt(_ context.Context, id int64) (*domain.Court, error) {
	c, ok := f.courts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func newTestService(holds *fakeHoldStore) *Service {
	courts := &fakeCourtStore{courts: map[int64]*domain.Court{
		1: {ID: 1, VenueID: 10, Name: "Cancha 1", PricePerSlot: 25000},
	}}
	return New(holds, courts, nil, nil, nil, Config{
		DefaultHoldTTL: 5 * time.Minute,
		MinHoldTTL:     30 * time.Second,
		MaxHoldTTL:     15 * time.Minute,
	})
}

func slotRequest() AcquireRequest {
	return AcquireRequest{
		CourtID:   1,
		Date:      "2026-09-01",
		StartTime: "18:00",
		EndTime:   "19:00",
		SessionID: "sess-a",
		Customer:  domain.Customer{Name: "Ana", Email: "ana@example.com"},
	}
}

func TestAcquireHold_SecondCallerLoses(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first.ID)

	req := slotRequest()
	req.SessionID = "sess-b"
	_, err = svc.AcquireHold(ctx, req, "")
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestAcquireHold_ConcurrentSingleWinner(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	const callers = 32

	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AcquireHold(ctx, slotRequest(), "")
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		default:
			require.ErrorIs(t, err, ErrSlotConflict)
			lost++
		}
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, callers-1, lost)
}

func TestAcquireHold_DifferentSlotsDoNotConflict(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.NoError(t, err)

	req := slotRequest()
	req.StartTime = "19:00"
	req.EndTime = "20:00"
	_, err = svc.AcquireHold(ctx, req, "")
	assert.NoError(t, err)
}

func TestAcquireHold_Validation(t *testing.T) {
	svc := newTestService(newFakeHoldStore())
	ctx := context.Background()

	req := slotRequest()
	req.Date = "01-09-2026"
	_, err := svc.AcquireHold(ctx, req, "")
	assert.ErrorIs(t, err, ErrInvalidSlot)

	req = slotRequest()
	req.EndTime = "18:00"
	_, err = svc.AcquireHold(ctx, req, "")
	assert.ErrorIs(t, err, ErrInvalidSlot)

	req = slotRequest()
	req.CourtID = 99
	_, err = svc.AcquireHold(ctx, req, "")
	assert.ErrorIs(t, err, ErrCourtNotFound)
}

func TestConfirmHold_SnapshotsCommission(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	hold, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.NoError(t, err)

	res, err := svc.ConfirmHold(ctx, hold.ID, 100_000, domain.ChannelWebDirect, "automatic")
	require.NoError(t, err)

	assert.Equal(t, domain.HoldConfirmed, res.Status)
	assert.True(t, strings.HasPrefix(res.Code, "RTC-"))
	assert.Equal(t, int64(100_000), res.PriceTotal)
	assert.Equal(t, int64(4_165), res.CommissionApplied)
	assert.Equal(t, "0.035", res.CommissionRate.String())
}

func TestConfirmHold_Idempotent(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	hold, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.NoError(t, err)

	first, err := svc.ConfirmHold(ctx, hold.ID, 100_000, domain.ChannelWebDirect, "automatic")
	require.NoError(t, err)

	// duplicate webhook delivery
	second, err := svc.ConfirmHold(ctx, hold.ID, 100_000, domain.ChannelWebDirect, "automatic")
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.CommissionApplied, second.CommissionApplied)
	assert.Equal(t, first.ConfirmedAt, second.ConfirmedAt)
}

func TestConfirmHold_ExpiredHoldFreesSlot(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	hold, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.NoError(t, err)

	// move the clock past the hold's expiry
	store.mu.Lock()
	store.holds[hold.ID].ExpiresAt = time.Now().Add(-time.Second)
	store.mu.Unlock()

	_, err = svc.ConfirmHold(ctx, hold.ID, 100_000, domain.ChannelWebDirect, "automatic")
	assert.ErrorIs(t, err, ErrHoldNotActive)

	// the losing checkout released the slot for the next caller
	req := slotRequest()
	req.SessionID = "sess-b"
	_, err = svc.AcquireHold(ctx, req, "")
	assert.NoError(t, err)
}

func TestConfirmHold_Errors(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.ConfirmHold(ctx, uuid.New(), 100_000, domain.ChannelWebDirect, "automatic")
	assert.ErrorIs(t, err, ErrHoldNotFound)

	hold, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.NoError(t, err)

	_, err = svc.ConfirmHold(ctx, hold.ID, 0, domain.ChannelWebDirect, "automatic")
	assert.ErrorIs(t, err, ErrInvalidSlot)

	require.NoError(t, svc.CancelHold(ctx, hold.ID))

	_, err = svc.ConfirmHold(ctx, hold.ID, 100_000, domain.ChannelWebDirect, "automatic")
	assert.ErrorIs(t, err, ErrHoldNotActive)
}

func TestCancelHold(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	hold, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.NoError(t, err)

	require.NoError(t, svc.CancelHold(ctx, hold.ID))

	// cancelling twice is a conflict, not a silent success
	assert.ErrorIs(t, svc.CancelHold(ctx, hold.ID), ErrHoldNotActive)
	assert.ErrorIs(t, svc.CancelHold(ctx, uuid.New()), ErrHoldNotFound)

	// the slot is free again
	req := slotRequest()
	req.SessionID = "sess-b"
	_, err = svc.AcquireHold(ctx, req, "")
	assert.NoError(t, err)
}

func TestExpireStaleHolds(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	hold, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.NoError(t, err)

	other := slotRequest()
	other.StartTime = "19:00"
	other.EndTime = "20:00"
	confirmed, err := svc.AcquireHold(ctx, other, "")
	require.NoError(t, err)
	_, err = svc.ConfirmHold(ctx, confirmed.ID, 25_000, domain.ChannelWebDirect, "automatic")
	require.NoError(t, err)

	// only the held row past its expiry gets reaped; the confirmed one stays
	n, err := svc.ExpireStaleHolds(ctx, hold.ExpiresAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.ConfirmHold(ctx, hold.ID, 25_000, domain.ChannelWebDirect, "automatic")
	assert.ErrorIs(t, err, ErrHoldNotActive)
}

// blockingHoldStore simulates a storage layer stuck on a lock wait: every
// write parks until the caller's context gives up.
type blockingHoldStore struct {
	*fakeHoldStore
}

func (b *blockingHoldStore) Acquire(ctx context.Context, _ *domain.SlotHold) (uuid.UUID, error) {
	<-ctx.Done()
	return uuid.Nil, ctx.Err()
}

func (b *blockingHoldStore) Confirm(ctx context.Context, _ uuid.UUID, _ domain.ConfirmSnapshot) (*domain.Reservation, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWritePath_BoundedStorageWait(t *testing.T) {
	store := &blockingHoldStore{fakeHoldStore: newFakeHoldStore()}
	courts := &fakeCourtStore{courts: map[int64]*domain.Court{
		1: {ID: 1, VenueID: 10, Name: "Cancha 1", PricePerSlot: 25000},
	}}
	svc := New(store, courts, nil, nil, nil, Config{
		DefaultHoldTTL: 5 * time.Minute,
		MinHoldTTL:     30 * time.Second,
		MaxHoldTTL:     15 * time.Minute,
		StorageTimeout: 20 * time.Millisecond,
	})
	ctx := context.Background()

	start := time.Now()
	_, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.ErrorIs(t, err, ErrStorageTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = svc.ConfirmHold(ctx, uuid.New(), 100_000, domain.ChannelWebDirect, "automatic")
	assert.ErrorIs(t, err, ErrStorageTimeout)
}

func TestCreateAdminReservation(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.CreateAdminReservation(ctx, slotRequest(), 0)
	require.NoError(t, err)

	// price falls back to the court's per-slot price
	assert.Equal(t, int64(25_000), res.PriceTotal)
	assert.Equal(t, domain.ChannelAdminCreated, res.Channel)
	assert.Equal(t, "manual", res.PaymentMethod)
	// admin channel commission: 1.75% + VAT on the fee
	assert.Equal(t, int64(521), res.CommissionApplied)
}

func TestCreateAdminReservation_SlotTakenReleasesNothing(t *testing.T) {
	store := newFakeHoldStore()
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.AcquireHold(ctx, slotRequest(), "")
	require.NoError(t, err)

	_, err = svc.CreateAdminReservation(ctx, slotRequest(), 30_000)
	assert.ErrorIs(t, err, ErrSlotConflict)
}
