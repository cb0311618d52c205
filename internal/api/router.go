package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidolu/cryptovest/internal/api/handler"
	"github.com/davidolu/cryptovest/internal/api/middleware"
	"github.com/davidolu/cryptovest/internal/clock"
	"github.com/davidolu/cryptovest/internal/config"
	"github.com/davidolu/cryptovest/internal/domain"
	"github.com/davidolu/cryptovest/internal/idempotency"
	"github.com/davidolu/cryptovest/internal/repository"
	"github.com/davidolu/cryptovest/internal/service"
)

type Router struct {
	cfg       *config.Config
	logger    *zap.Logger
	pool      *pgxpool.Pool
	store     repository.Store
	idemStore *idempotency.Store
	redis     redis.Cmdable
	clock     clock.Clock
}

func NewRouter(cfg *config.Config, logger *zap.Logger, pool *pgxpool.Pool, store repository.Store, idemStore *idempotency.Store, redisClient redis.Cmdable) *Router {
	return &Router{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		store:     store,
		idemStore: idemStore,
		redis:     redisClient,
		clock:     clock.System{},
	}
}

// WithClock overrides the clock used for derived investment views. Tests
// use this to pin time.
func (api *Router) WithClock(clk clock.Clock) *Router {
	api.clock = clk
	return api
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	// Services
	ledgerSvc := service.NewLedgerService(api.store, api.clock)
	accountSvc := service.NewAccountService(api.store, api.clock)
	depositSvc := service.NewDepositService(api.store, ledgerSvc, api.clock)
	withdrawalSvc := service.NewWithdrawalService(api.store, ledgerSvc, api.clock, domain.UnitsToMicros(api.cfg.MinWithdrawalUnits))
	investmentSvc := service.NewInvestmentService(api.store, ledgerSvc, api.clock)
	planSvc := service.NewPlanService(api.store, api.clock)

	// Handlers
	healthHandler := handler.NewHealthHandler(api.pool, api.redis)
	accountHandler := handler.NewAccountHandler(accountSvc, ledgerSvc)
	depositHandler := handler.NewDepositHandler(depositSvc, accountSvc)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalSvc, accountSvc)
	investmentHandler := handler.NewInvestmentHandler(investmentSvc, accountSvc, api.clock)
	planHandler := handler.NewPlanHandler(planSvc)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
	})
	r.Handle("/metrics", promhttp.Handler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Accounts
		r.Post("/v1/accounts", accountHandler.CreateAccount)
		r.Get("/v1/accounts/{id}/balance", accountHandler.GetBalance)
		r.Get("/v1/accounts/{id}/statement", accountHandler.GetStatement)
		r.Get("/v1/accounts/{id}/deposits", depositHandler.ListByAccount)
		r.Get("/v1/accounts/{id}/withdrawals", withdrawalHandler.ListByAccount)
		r.Get("/v1/accounts/{id}/investments", investmentHandler.ListByAccount)

		// Plans
		r.Get("/v1/plans", planHandler.List)
		r.Get("/v1/plans/{id}", planHandler.Get)

		// Investments
		r.Get("/v1/investments/{id}", investmentHandler.Get)

		// Mutating workflow routes carry the Idempotency-Key contract.
		r.Group(func(r chi.Router) {
			r.Use(middleware.IdempotencyMiddleware(api.idemStore, api.logger))
			r.Post("/v1/deposits", depositHandler.Submit)
			r.Post("/v1/withdrawals", withdrawalHandler.Submit)
			r.Post("/v1/investments", investmentHandler.Create)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole("admin"))
			r.Get("/v1/admin/deposits/pending", depositHandler.ListPending)
			r.Get("/v1/admin/withdrawals/pending", withdrawalHandler.ListPending)
			r.Post("/v1/admin/deposits/{id}/resolve", depositHandler.Resolve)
			r.Post("/v1/admin/withdrawals/{id}/resolve", withdrawalHandler.Resolve)
			r.Post("/v1/admin/sweep", investmentHandler.Sweep)
			r.Post("/v1/admin/plans", planHandler.Create)
			r.Put("/v1/admin/plans/{id}", planHandler.Update)
			r.Delete("/v1/admin/plans/{id}", planHandler.Delete)
		})
	})

	return r
}
