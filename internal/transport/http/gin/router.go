package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Pousito/reserva-tu-cancha-sub003/internal/domain"
	redisrepo "github.com/Pousito/reserva-tu-cancha-sub003/internal/repository/redis"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/admin"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/booking"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/ledger"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/query"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func NewRouter(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/courts/:id", handleGetCourt(svcs))
	r.GET("/courts/:id/availability", handleGetAvailability(svcs))
	r.POST("/courts/:id/holds", handleCreateHold(svcs, idem))

	r.GET("/holds/:id", handleGetHold(svcs))
	r.POST("/holds/:id/cancel", handleCancelHold(svcs))

	r.POST("/payments/confirm", handlePaymentConfirm(svcs, logger))
	r.GET("/reservations/:code", handleGetReservation(svcs))

	// Admin-API
	// TODO: add admin auth middleware
	adm := r.Group("/admin")
	{
		adm.POST("/venues", handleCreateVenue(svcs))
		adm.POST("/courts", handleCreateCourt(svcs))
		adm.POST("/reservations", handleAdminReservation(svcs, logger))

		adm.POST("/ledger/sync", handleLedgerSync(svcs))
		adm.POST("/ledger/sweep", handleLedgerSweep(svcs))
		adm.GET("/venues/:id/ledger", handleListLedger(svcs))

		adm.POST("/deposits/run", handleRunDeposits(svcs))
		adm.GET("/deposits/:id", handleGetDeposit(svcs))
		adm.POST("/deposits/:id/pay", handleMarkDepositPaid(svcs))
		adm.GET("/venues/:id/deposits", handleListDeposits(svcs))
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Get court
// @Param    id  path  int  true  "Court ID"
// @Success  200  {object}  domain.Court
// @Failure  404  {object}  ErrorResponse
// @Router   /courts/{id} [get]
func handleGetCourt(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		courtID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		court, err := svcs.Query.GetCourt(c.Request.Context(), courtID)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, court, "public, max-age=60")
	}
}

// @Summary  Court availability for one date
// @Param    id    path   int     true  "Court ID"
// @Param    date  query  string  true  "YYYY-MM-DD"
// @Success  200  {object}  domain.CourtDay
// @Failure  404  {object}  ErrorResponse
// @Router   /courts/{id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		courtID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		date := c.Query("date")
		if _, err := time.Parse(domain.DateFormat, date); err != nil {
			badRequest(c, "invalid date (YYYY-MM-DD)")
			return
		}
		day, err := svcs.Query.CourtDay(c.Request.Context(), courtID, date)
		if err != nil {
			respondErr(c, err)
			return
		}
		// availability goes stale fast, keep the cache window short
		writeJSONWithCache(c, http.StatusOK, day, "public, max-age=15")
	}
}

// @Summary  Create hold (idempotent)
// @Param    id  path  int  true  "Court ID"
// @Param    req body  CreateHoldRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} CreateHoldResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "slot taken / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /courts/{id}/holds [post]
func handleCreateHold(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		courtID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req CreateHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemHold(courtID, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
					c.Header("Idempotency-Key", idemKey)
					c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
					return
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key in progress"})
				return
			}
		}

		hold, err := svcs.Booking.AcquireHold(c.Request.Context(), booking.AcquireRequest{
			CourtID:   courtID,
			Date:      req.Date,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			SessionID: req.SessionID,
			Customer:  req.Customer.toDomain(),
			TTL:       time.Duration(req.TTLSec) * time.Second,
		}, "ip:"+c.ClientIP())
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		resp := CreateHoldResponse{
			HoldID:    hold.ID.String(),
			ExpiresAt: hold.ExpiresAt,
		}

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Get hold
// @Param    id  path  string  true  "Hold ID (uuid)"
// @Success  200 {object} domain.Reservation
// @Failure  404 {object} ErrorResponse
// @Router   /holds/{id} [get]
func handleGetHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		holdID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		h, err := svcs.Query.GetHold(c.Request.Context(), holdID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
	}
}

// @Summary  Cancel hold
// @Param    id  path  string  true  "Hold ID (uuid)"
// @Success  200 {object} map[string]string
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "hold already settled"
// @Router   /holds/{id}/cancel [post]
func handleCancelHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		holdID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Booking.CancelHold(c.Request.Context(), holdID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	}
}

// @Summary  Payment webhook: confirm or abandon a hold
// @Param    req body  PaymentConfirmRequest true "payload"
// @Success  200 {object} ReservationResponse
// @Failure  404 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "hold expired or settled"
// @Router   /payments/confirm [post]
func handlePaymentConfirm(svcs *service.Services, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentConfirmRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		holdID, err := uuid.Parse(req.HoldID)
		if err != nil {
			badRequest(c, "invalid hold_id")
			return
		}

		if !req.Success {
			// failed payment releases the slot right away instead of
			// waiting for the hold to expire
			if err := svcs.Booking.CancelHold(c.Request.Context(), holdID); err != nil &&
				!errors.Is(err, booking.ErrHoldNotActive) {
				respondErr(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
			return
		}

		method := req.Method
		if method == "" {
			method = "automatic"
		}

		res, err := svcs.Booking.ConfirmHold(
			c.Request.Context(),
			holdID,
			req.Amount,
			domain.ChannelWebDirect,
			method,
		)
		if err != nil {
			respondErr(c, err)
			return
		}

		// ledger posting is best effort here; the sweep reconciles misses
		if _, err := svcs.Ledger.SyncReservation(c.Request.Context(), res.ID); err != nil {
			logger.Warn("ledger sync after confirm failed",
				slog.String("reservation", res.Code),
				slog.Any("error", err),
			)
		}

		c.JSON(http.StatusOK, toReservationResponse(res))
	}
}

// @Summary  Get reservation by public code
// @Param    code  path  string  true  "Reservation code"
// @Success  200 {object} domain.ReservationWithVenue
// @Failure  404 {object} ErrorResponse
// @Router   /reservations/{code} [get]
func handleGetReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
		if code == "" {
			badRequest(c, "missing code")
			return
		}
		rv, err := svcs.Query.ReservationByCode(c.Request.Context(), code)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, rv, "public, max-age=60")
	}
}

// @Summary  Create venue with its platform ledger categories
// @Param    req body  CreateVenueRequest true "payload"
// @Success  201 {object} CreateVenueResponse
// @Router   /admin/venues [post]
func handleCreateVenue(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateVenueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Admin.CreateVenue(c.Request.Context(), req.Name, req.City)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateVenueResponse{VenueID: id})
	}
}

// @Summary  Create court
// @Param    req body  CreateCourtRequest true "payload"
// @Success  201 {object} CreateCourtResponse
// @Router   /admin/courts [post]
func handleCreateCourt(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCourtRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		id, err := svcs.Admin.CreateCourt(c.Request.Context(), &domain.Court{
			VenueID:      req.VenueID,
			Name:         req.Name,
			PricePerSlot: req.PricePerSlot,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, CreateCourtResponse{CourtID: id})
	}
}

// @Summary  Create reservation from the staff panel
// @Param    req body  AdminReservationRequest true "payload"
// @Success  201 {object} ReservationResponse
// @Failure  409 {object} ErrorResponse "slot taken"
// @Router   /admin/reservations [post]
func handleAdminReservation(svcs *service.Services, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdminReservationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svcs.Booking.CreateAdminReservation(c.Request.Context(), booking.AcquireRequest{
			CourtID:   req.CourtID,
			Date:      req.Date,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
			SessionID: "admin",
			Customer:  req.Customer.toDomain(),
		}, req.Price)
		if err != nil {
			respondErr(c, err)
			return
		}

		if _, err := svcs.Ledger.SyncReservation(c.Request.Context(), res.ID); err != nil {
			logger.Warn("ledger sync after admin reservation failed",
				slog.String("reservation", res.Code),
				slog.Any("error", err),
			)
		}

		c.JSON(http.StatusCreated, toReservationResponse(res))
	}
}

// @Summary  Post ledger entries for one reservation
// @Param    req body  LedgerSyncRequest true "payload"
// @Success  200 {object} ledger.SyncResult
// @Failure  404 {object} ErrorResponse
// @Router   /admin/ledger/sync [post]
func handleLedgerSync(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LedgerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		rid, err := uuid.Parse(req.ReservationID)
		if err != nil {
			badRequest(c, "invalid reservation_id")
			return
		}
		result, err := svcs.Ledger.SyncReservation(c.Request.Context(), rid)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// @Summary  Reconciliation sweep over reservations missing ledger entries
// @Param    limit  query  int  false  "max reservations to scan"
// @Success  200 {object} ledger.SweepReport
// @Router   /admin/ledger/sweep [post]
func handleLedgerSweep(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 100)
		report, err := svcs.Ledger.Sweep(c.Request.Context(), limit)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// @Summary  List ledger entries for a venue
// @Param    id    path   int     true   "Venue ID"
// @Param    from  query  string  false  "YYYY-MM-DD"
// @Param    to    query  string  false  "YYYY-MM-DD"
// @Success  200 {array} domain.LedgerEntry
// @Router   /admin/venues/{id}/ledger [get]
func handleListLedger(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		venueID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		entries, err := svcs.Ledger.ListEntries(c.Request.Context(), venueID, c.Query("from"), c.Query("to"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

// @Summary  Create deposit batches for one settlement date
// @Param    req body  RunDepositRequest true "payload"
// @Success  200 {object} settlement.RunReport
// @Router   /admin/deposits/run [post]
func handleRunDeposits(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RunDepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		report, err := svcs.Settlement.RunDay(c.Request.Context(), req.Date)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// @Summary  Get deposit batch
// @Param    id  path  int  true  "Batch ID"
// @Success  200 {object} domain.DepositBatch
// @Failure  404 {object} ErrorResponse
// @Router   /admin/deposits/{id} [get]
func handleGetDeposit(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		batchID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		b, err := svcs.Settlement.Get(c.Request.Context(), batchID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  Mark deposit batch as paid
// @Param    id   path  int  true  "Batch ID"
// @Param    req  body  MarkDepositPaidRequest true "payload"
// @Success  200 {object} domain.DepositBatch
// @Failure  409 {object} ErrorResponse "already paid"
// @Router   /admin/deposits/{id}/pay [post]
func handleMarkDepositPaid(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		batchID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req MarkDepositPaidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		b, err := svcs.Settlement.MarkPaid(
			c.Request.Context(),
			batchID,
			req.Method,
			req.Reference,
			req.Observations,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// @Summary  List deposit batches for a venue
// @Param    id      path   int  true   "Venue ID"
// @Param    limit   query  int  false  "page size"
// @Param    offset  query  int  false  "offset"
// @Success  200 {array} domain.DepositBatch
// @Router   /admin/venues/{id}/deposits [get]
func handleListDeposits(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		venueID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		limit := parseIntDefault(c.Query("limit"), 50)
		offset := parseIntDefault(c.Query("offset"), 0)

		batches, err := svcs.Settlement.ListForVenue(c.Request.Context(), venueID, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, batches)
	}
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	switch {
	// booking service
	case errors.Is(err, booking.ErrSlotConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "slot already taken"})
		return
	case errors.Is(err, booking.ErrHoldNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "hold not found"})
		return
	case errors.Is(err, booking.ErrHoldNotActive):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "hold expired or already settled"})
		return
	case errors.Is(err, booking.ErrCourtNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "court not found"})
		return
	case errors.Is(err, booking.ErrInvalidSlot):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid slot parameters"})
		return
	case errors.Is(err, booking.ErrRateLimited):
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "rate limited"})
		return
	case errors.Is(err, booking.ErrStorageTimeout):
		// distinct from a generic storage fault: the client should re-check
		// availability before retrying
		c.Header("Retry-After", "2")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "storage timeout, re-check availability"})
		return
	// ledger service
	case errors.Is(err, ledger.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "reservation not found"})
		return
	case errors.Is(err, ledger.ErrNotConfirmed):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "reservation is not confirmed"})
		return
	case errors.Is(err, ledger.ErrMissingCategory):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "venue is missing a platform ledger category"})
		return
	// settlement service
	case errors.Is(err, settlement.ErrBatchNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "deposit batch not found"})
		return
	case errors.Is(err, settlement.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "deposit batch already paid"})
		return
	case errors.Is(err, settlement.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid settlement date"})
		return
	case errors.Is(err, settlement.ErrMissingMethod):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "payment method is required"})
		return
	// query service
	case errors.Is(err, query.ErrCourtNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "court not found"})
		return
	case errors.Is(err, query.ErrVenueNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "venue not found"})
		return
	case errors.Is(err, query.ErrHoldNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "hold not found"})
		return
	case errors.Is(err, query.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "reservation not found"})
		return
	// admin service
	case errors.Is(err, admin.ErrVenueConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "venue already exists"})
		return
	case errors.Is(err, admin.ErrCourtConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "court already exists"})
		return
	case errors.Is(err, admin.ErrVenueNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "venue does not exist"})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
