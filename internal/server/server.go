// Package server exposes the HTTP surface for houses, bills, risk and
// advances.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/splitnest/splitnest/internal/advance"
	advancedomain "github.com/splitnest/splitnest/internal/advance/domain"
	"github.com/splitnest/splitnest/internal/bill"
	billdomain "github.com/splitnest/splitnest/internal/bill/domain"
	"github.com/splitnest/splitnest/internal/config"
	"github.com/splitnest/splitnest/internal/house"
	housedomain "github.com/splitnest/splitnest/internal/house/domain"
	"github.com/splitnest/splitnest/internal/ledger"
	ledgerdomain "github.com/splitnest/splitnest/internal/ledger/domain"
	"github.com/splitnest/splitnest/internal/ratelimit"
	"github.com/splitnest/splitnest/internal/riskindex"
	riskdomain "github.com/splitnest/splitnest/internal/riskindex/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	house.Module,
	bill.Module,
	ledger.Module,
	riskindex.Module,
	advance.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine           *gin.Engine
	cfg              config.Config
	log              *zap.Logger
	houseSvc         housedomain.Service
	billSvc          billdomain.Service
	ledgerSvc        ledgerdomain.Service
	riskSvc          riskdomain.Service
	advanceSvc       advancedomain.Service
	recomputeLimiter *ratelimit.RecomputeLimiter
}

type ServerParams struct {
	fx.In

	Gin              *gin.Engine
	Cfg              config.Config
	Log              *zap.Logger
	HouseSvc         housedomain.Service
	BillSvc          billdomain.Service
	LedgerSvc        ledgerdomain.Service
	RiskSvc          riskdomain.Service
	AdvanceSvc       advancedomain.Service
	RecomputeLimiter *ratelimit.RecomputeLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:           p.Gin,
		cfg:              p.Cfg,
		log:              p.Log.Named("server"),
		houseSvc:         p.HouseSvc,
		billSvc:          p.BillSvc,
		ledgerSvc:        p.LedgerSvc,
		riskSvc:          p.RiskSvc,
		advanceSvc:       p.AdvanceSvc,
		recomputeLimiter: p.RecomputeLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Houses --------
	api.POST("/houses", s.CreateHouse)
	api.GET("/houses", s.ListHouses)
	api.GET("/houses/:id", s.GetHouse)
	api.POST("/houses/:id/members", s.AddHouseMember)
	api.GET("/houses/:id/members", s.ListHouseMembers)

	// -------- Bills and charges --------
	api.POST("/bills", s.CreateBill)
	api.GET("/bills/:id", s.GetBill)
	api.GET("/houses/:id/charges/unpaid", s.ListUnpaidCharges)
	api.POST("/charges/:id/pay", s.PayCharge)

	// -------- Risk --------
	api.POST("/houses/:id/risk/recompute", s.RecomputeRisk)
	api.GET("/houses/:id/risk", s.GetRisk)
	api.GET("/houses/:id/risk/history", s.ListRiskHistory)

	// -------- Advances --------
	api.GET("/houses/:id/advance/allowance", s.GetAdvanceAllowance)
	api.GET("/houses/:id/advance/usage", s.GetAdvanceUsage)
	api.GET("/houses/:id/advance/check", s.CheckAdvance)
	api.GET("/houses/:id/advance/charges", s.ListAdvancedCharges)
	api.POST("/bills/:id/advance", s.AdvanceBill)
	api.POST("/charges/:id/settle", s.SettleAdvancedCharge)

	// -------- Ledger --------
	api.GET("/houses/:id/ledger", s.ListLedger)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/risk/cleanup", s.CleanupRiskHistory)
	admin.POST("/houses/:id/ledger/adjustments", s.RecordLedgerAdjustment)
}
