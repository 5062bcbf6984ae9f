package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/condoledger/internal/audit/domain"
	"github.com/smallbiznis/condoledger/internal/authorization"
	"github.com/smallbiznis/condoledger/internal/config"
	finedomain "github.com/smallbiznis/condoledger/internal/fine/domain"
	ledgerdomain "github.com/smallbiznis/condoledger/internal/ledger/domain"
	obstracing "github.com/smallbiznis/condoledger/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/condoledger/internal/payment/domain"
	"github.com/smallbiznis/condoledger/internal/ratelimit"
	rentdomain "github.com/smallbiznis/condoledger/internal/rent/domain"
	reservationdomain "github.com/smallbiznis/condoledger/internal/reservation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Named("http")))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	verifier       *TokenVerifier
	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	ledgerSvc      ledgerdomain.Service
	paymentSvc     paymentdomain.Service
	rentSvc        rentdomain.Service
	fineSvc        finedomain.Service
	reservationSvc reservationdomain.Service
	limiter        *ratelimit.WriteLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	AuthzSvc       authorization.Service
	AuditSvc       auditdomain.Service
	LedgerSvc      ledgerdomain.Service
	PaymentSvc     paymentdomain.Service
	RentSvc        rentdomain.Service
	FineSvc        finedomain.Service
	ReservationSvc reservationdomain.Service
	Limiter        *ratelimit.WriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		verifier:       NewTokenVerifier(p.Cfg.AuthJWTSecret),
		authzSvc:       p.AuthzSvc,
		auditSvc:       p.AuditSvc,
		ledgerSvc:      p.LedgerSvc,
		paymentSvc:     p.PaymentSvc,
		rentSvc:        p.RentSvc,
		fineSvc:        p.FineSvc,
		reservationSvc: p.ReservationSvc,
		limiter:        p.Limiter,
	}
	svc.registerAPIRoutes()
	svc.registerFallback()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.Authenticated(), s.RateLimited())

	// -------- Ledger --------
	api.GET("/billing-periods", s.ListBillingPeriods)
	api.GET("/billing-periods/:id", s.GetStatement)
	api.POST("/charge-lines", s.authorize(authorization.ObjectLedger, authorization.ActionAddLine), s.AddChargeLine)
	api.DELETE("/charge-lines/:id", s.authorize(authorization.ObjectLedger, authorization.ActionRemoveLine), s.RemoveChargeLine)

	// -------- Charge categories --------
	api.GET("/charge-categories", s.authorize(authorization.ObjectCategory, authorization.ActionView), s.ListCategories)
	api.POST("/charge-categories", s.authorize(authorization.ObjectCategory, authorization.ActionManage), s.CreateCategory)
	api.PATCH("/charge-categories/:id", s.authorize(authorization.ObjectCategory, authorization.ActionManage), s.UpdateCategory)

	// -------- Payments --------
	api.POST("/payments", s.CreatePayment)
	api.DELETE("/payments/:id", s.VoidPayment)

	// -------- Rent --------
	api.POST("/rent/generate", s.GenerateRent)

	// -------- Fines --------
	api.GET("/fines", s.ListFines)
	api.POST("/fines", s.CreateFine)
	api.GET("/fines/:id", s.GetFine)
	api.POST("/fines/:id/convert", s.ConvertFine)

	// -------- Common areas --------
	api.GET("/areas", s.ListAreas)
	api.POST("/areas", s.CreateArea)
	api.GET("/areas/:id", s.GetArea)
	api.PATCH("/areas/:id", s.UpdateArea)

	// -------- Reservations --------
	api.GET("/reservations", s.ListReservations)
	api.POST("/reservations", s.CreateReservation)
	api.GET("/reservations/:id", s.GetReservation)
	api.POST("/reservations/:id/confirm", s.ConfirmReservation)
	api.POST("/reservations/:id/cancel", s.CancelReservation)
	api.POST("/reservations/:id/complete", s.CompleteReservation)

	// -------- Audit --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
