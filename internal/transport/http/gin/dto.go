package httpgin

import (
	"time"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
)

type CustomerInput struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone"`
	NationalID string `json:"national_id"`
}

type CreateHoldRequest struct {
	Date      string        `json:"date" binding:"required"`
	StartTime string        `json:"start_time" binding:"required"`
	EndTime   string        `json:"end_time" binding:"required"`
	SessionID string        `json:"session_id" binding:"required"`
	Customer  CustomerInput `json:"customer" binding:"required"`
	TTLSec    int           `json:"ttl_sec"`
}

type CreateHoldResponse struct {
	HoldID    string    `json:"hold_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PaymentConfirmRequest struct {
	HoldID  string `json:"hold_id" binding:"required,uuid"`
	Success bool   `json:"success"`
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
}

type ReservationResponse struct {
	Code              string `json:"code"`
	CourtID           int64  `json:"court_id"`
	Date              string `json:"date"`
	StartTime         string `json:"start_time"`
	EndTime           string `json:"end_time"`
	PriceTotal        int64  `json:"price_total"`
	Channel           string `json:"channel"`
	CommissionApplied int64  `json:"commission_applied"`
	CommissionRate    string `json:"commission_rate"`
	CustomerName      string `json:"customer_name"`
}

type AdminReservationRequest struct {
	CourtID   int64         `json:"court_id" binding:"required"`
	Date      string        `json:"date" binding:"required"`
	StartTime string        `json:"start_time" binding:"required"`
	EndTime   string        `json:"end_time" binding:"required"`
	Price     int64         `json:"price"`
	Customer  CustomerInput `json:"customer" binding:"required"`
}

type CreateVenueRequest struct {
	Name string `json:"name" binding:"required"`
	City string `json:"city" binding:"required"`
}

type CreateVenueResponse struct {
	VenueID int64 `json:"venue_id"`
}

type CreateCourtRequest struct {
	VenueID      int64  `json:"venue_id" binding:"required"`
	Name         string `json:"name" binding:"required"`
	PricePerSlot int64  `json:"price_per_slot" binding:"required,gt=0"`
}

type CreateCourtResponse struct {
	CourtID int64 `json:"court_id"`
}

type LedgerSyncRequest struct {
	ReservationID string `json:"reservation_id" binding:"required,uuid"`
}

type RunDepositRequest struct {
	Date string `json:"date" binding:"required"`
}

type MarkDepositPaidRequest struct {
	Method       string `json:"method" binding:"required"`
	Reference    string `json:"reference"`
	Observations string `json:"observations"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toReservationResponse(r *domain.Reservation) ReservationResponse {
	return ReservationResponse{
		Code:              r.Code,
		CourtID:           r.CourtID,
		Date:              r.Date.Format(domain.DateFormat),
		StartTime:         r.StartTime,
		EndTime:           r.EndTime,
		PriceTotal:        r.PriceTotal,
		Channel:           string(r.Channel),
		CommissionApplied: r.CommissionApplied,
		CommissionRate:    r.CommissionRate.String(),
		CustomerName:      r.Customer.Name,
	}
}

func (c CustomerInput) toDomain() domain.Customer {
	return domain.Customer{
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		NationalID: c.NationalID,
	}
}
