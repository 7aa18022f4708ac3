package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateFormat is the canonical wire/storage format for booking dates.
const DateFormat = "2006-01-02"

type HoldStatus string

const (
	HoldHeld      HoldStatus = "held"
	HoldConfirmed HoldStatus = "confirmed"
	HoldExpired   HoldStatus = "expired"
	HoldCancelled HoldStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of the status.
func (s HoldStatus) Terminal() bool {
	return s == HoldConfirmed || s == HoldExpired || s == HoldCancelled
}

type Channel string

const (
	ChannelWebDirect    Channel = "web_direct"
	ChannelAdminCreated Channel = "admin_created"
)

type Venue struct {
	ID   int64
	Name string
	City string
}

type Court struct {
	ID           int64
	VenueID      int64
	Name         string
	PricePerSlot int64 // integer pesos per slot
}

// Customer is the contact snapshot captured at checkout time. It is stored on
// the hold so the reservation keeps the data the customer entered even if
// their account changes later.
type Customer struct {
	Name       string
	Email      string
	Phone      string
	NationalID string
}

// SlotHold is a claim on a court time-slot. At most one non-terminal hold may
// exist per (court, date, start_time); the slot_holds partial unique index
// carries that invariant. Rows are never deleted.
type SlotHold struct {
	ID        uuid.UUID
	CourtID   int64
	Date      time.Time // date component only
	StartTime string    // "HH:MM"
	EndTime   string
	SessionID string
	Status    HoldStatus
	Customer  Customer
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Reservation is a confirmed SlotHold plus the payment-time pricing snapshot.
// CommissionApplied and CommissionRate are frozen at confirmation and copied
// verbatim into the ledger; they are never recomputed afterwards.
type Reservation struct {
	SlotHold
	Code              string
	PriceTotal        int64
	Channel           Channel
	CommissionApplied int64
	CommissionRate    decimal.Decimal
	PaymentMethod     string
	ConfirmedAt       time.Time
}

// ConfirmSnapshot is the pricing snapshot written onto a hold at
// confirmation. Computed once, stored verbatim, never recomputed.
type ConfirmSnapshot struct {
	Code              string
	PriceTotal        int64
	Channel           Channel
	CommissionApplied int64
	CommissionRate    decimal.Decimal
	PaymentMethod     string
}

// ReservationWithVenue widens a reservation with the owning venue, resolved
// through the court. Used by the ledger and settlement paths.
type ReservationWithVenue struct {
	Reservation
	VenueID   int64
	VenueName string
	CourtName string
}

type EntryType string

const (
	EntryIncome  EntryType = "income"
	EntryExpense EntryType = "expense"
)

// CategoryPurpose identifies the two well-known per-venue categories the sync
// engine posts into. Typed on purpose rather than matched by name.
type CategoryPurpose string

const (
	PurposePlatformIncome     CategoryPurpose = "platform_income"
	PurposePlatformCommission CategoryPurpose = "platform_commission"
)

type Category struct {
	ID      int64
	VenueID int64
	Purpose CategoryPurpose
	Name    string
	Type    EntryType
}

// LedgerEntry is one signed monetary movement in a venue's books. Entries are
// immutable after insert; corrections happen by offsetting entries. The
// description embeds the reservation code, which is what the idempotent
// existence check looks for.
type LedgerEntry struct {
	ID            int64
	VenueID       int64
	CategoryID    int64
	Type          EntryType
	Amount        int64
	Date          time.Time
	Description   string
	PaymentMethod string
	CreatedAt     time.Time
}

type DepositStatus string

const (
	DepositPending DepositStatus = "pending"
	DepositPaid    DepositStatus = "paid"
)

// DepositBatch is one venue's payable amount for one settlement date.
// At most one batch exists per (venue, date).
type DepositBatch struct {
	ID                   int64
	VenueID              int64
	Date                 time.Time
	GrossTotal           int64
	CommissionTotal      int64
	NetPayable           int64
	Status               DepositStatus
	PaidAt               *time.Time
	PaymentMethod        string
	TransactionReference string
	Observations         string
	CreatedAt            time.Time
}

// SlotInfo is one occupied slot in a court's day grid.
type SlotInfo struct {
	StartTime string
	EndTime   string
	Status    HoldStatus
}

// CourtDay is the availability read model for one court on one date.
type CourtDay struct {
	CourtID int64
	Date    string
	Taken   []SlotInfo
}

// VenueDayTotals is the per-venue aggregation the deposit job starts from.
type VenueDayTotals struct {
	VenueID         int64
	GrossTotal      int64
	CommissionTotal int64
	Reservations    int64
}
