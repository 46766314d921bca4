package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/username/lotfolio/src/services"
	"github.com/username/lotfolio/src/utils"
)

type RouterConfig struct {
	LotService         services.LotService
	TransactionService services.TransactionService
	AccountService     services.AccountService
	AnnotationService  services.AnnotationService
	AllowedOrigins     []string
	Limiter            *rate.Limiter
	MaxUploadSize      int64
}

// NewRouter builds the API routes with the shared middleware stack.
func NewRouter(cfg RouterConfig) http.Handler {
	lotHandler := NewLotHandler(cfg.LotService)
	txHandler := NewTransactionHandler(cfg.TransactionService, cfg.LotService, cfg.MaxUploadSize)
	analyticsHandler := NewAnalyticsHandler(cfg.LotService)
	accountHandler := NewAccountHandler(cfg.AccountService)
	annotationHandler := NewAnnotationHandler(cfg.AnnotationService)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "X-Requested-With", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.Limiter != nil {
		r.Use(RateLimitMiddleware(cfg.Limiter))
	}
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.SendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", accountHandler.HandleListAccounts)
			r.Post("/", accountHandler.HandleCreateAccount)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", txHandler.HandleListTransactions)
			r.Post("/", txHandler.HandleImportJSON)
			r.Post("/import", txHandler.HandleImportFile)
			r.Get("/unlinked", txHandler.HandleUnlinked)
			r.Get("/{id}/lots", txHandler.HandleTransactionLots)
			r.Get("/{id}/tags", annotationHandler.HandleTransactionTags)
			r.Post("/{id}/tags/{tagID}", annotationHandler.HandleTagTransaction)
			r.Delete("/{id}/tags/{tagID}", annotationHandler.HandleUntagTransaction)
			r.Get("/{id}/comments", annotationHandler.HandleListComments)
			r.Post("/{id}/comments", annotationHandler.HandleAddComment)
			r.Get("/{id}/trade-groups", annotationHandler.HandleTransactionTradeGroups)
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", annotationHandler.HandleListTags)
			r.Post("/", annotationHandler.HandleCreateTag)
			r.Patch("/{tagID}", annotationHandler.HandleUpdateTag)
			r.Delete("/{tagID}", annotationHandler.HandleDeleteTag)
		})

		r.Route("/comments", func(r chi.Router) {
			r.Put("/{commentID}", annotationHandler.HandleUpdateComment)
			r.Delete("/{commentID}", annotationHandler.HandleDeleteComment)
		})

		r.Route("/trade-groups", func(r chi.Router) {
			r.Get("/", annotationHandler.HandleListTradeGroups)
			r.Post("/", annotationHandler.HandleCreateTradeGroup)
			r.Get("/strategies", annotationHandler.HandleStrategyTypes)
			r.Get("/{groupID}", annotationHandler.HandleGetTradeGroup)
			r.Patch("/{groupID}", annotationHandler.HandleUpdateTradeGroup)
			r.Delete("/{groupID}", annotationHandler.HandleDeleteTradeGroup)
			r.Post("/{groupID}/transactions/{txnID}", annotationHandler.HandleAddToTradeGroup)
			r.Delete("/{groupID}/transactions/{txnID}", annotationHandler.HandleRemoveFromTradeGroup)
		})

		r.Route("/lots", func(r chi.Router) {
			r.Get("/", lotHandler.HandleListLots)
			r.Get("/open", lotHandler.HandleOpenPositions)
			r.Get("/symbols", lotHandler.HandleSymbols)
			r.Get("/runs", lotHandler.HandleMatchRuns)
			r.Post("/match", lotHandler.HandleMatch)
			r.Post("/match-position", lotHandler.HandleMatchPosition)
			r.Post("/rematch", lotHandler.HandleRematch)
			r.Post("/recalculate", lotHandler.HandleRecalculate)
			r.Get("/{id}", lotHandler.HandleGetLot)
			r.Patch("/{id}", lotHandler.HandleUpdateLot)
			r.Delete("/{id}", lotHandler.HandleDeleteLot)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", analyticsHandler.HandlePLSummary)
			r.Get("/pl-over-time", analyticsHandler.HandlePLOverTime)
		})
	})
	return r
}
