package service

import (
	"log/slog"

	postgres "github.com/Pousito/reserva-tu-cancha-sub003/internal/repository/postgres"
	redis "github.com/Pousito/reserva-tu-cancha-sub003/internal/repository/redis"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/admin"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/booking"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/ledger"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/query"
	"github.com/Pousito/reserva-tu-cancha-sub003/internal/service/settlement"
)

type Services struct {
	Booking    *booking.Service
	Ledger     *ledger.Service
	Settlement *settlement.Service
	Query      *query.Service
	Admin      *admin.Service
}

type Config struct {
	Booking booking.Config
	Query   query.Config
}

func NewServices(
	store *postgres.Store,
	cache *redis.Cache,
	pubsub *redis.SlotsPubSub,
	limiter *redis.SlidingWindowLimiter,
	logger *slog.Logger,
	cfg Config,
) *Services {
	return &Services{
		Booking:    booking.New(store.Holds(), store.Query(), cache, pubsub, limiter, cfg.Booking),
		Ledger:     ledger.New(store.Ledger(), logger),
		Settlement: settlement.New(store.Deposits(), logger),
		Query:      query.New(store, cache, cfg.Query),
		Admin:      admin.New(store),
	}
}
