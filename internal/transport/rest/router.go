package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/ortizpassos/trustpay/internal/auth"
	"github.com/ortizpassos/trustpay/internal/card"
	"github.com/ortizpassos/trustpay/internal/transaction"
	"github.com/ortizpassos/trustpay/internal/transport"
	"github.com/ortizpassos/trustpay/internal/transport/middleware"
	"github.com/ortizpassos/trustpay/internal/transport/swagger"
	"github.com/ortizpassos/trustpay/internal/user"
)

// Handlers groups everything the router mounts. Nil handlers leave their routes out.
type Handlers struct {
	Auth        *auth.Handler
	User        *user.Handler
	Card        *card.Handler
	Transaction *transaction.Handler
	Health      *HealthHandler
	OpenAPI     *swagger.Document
	Merchant    middleware.SignatureVerifier
}

type Options struct {
	AllowedOrigins string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if h.Health == nil {
		h.Health = NewHealthHandler()
	}

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	if h.OpenAPI != nil {
		router.Method(http.MethodGet, swagger.DocumentURL, h.OpenAPI)
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		if h.Auth == nil {
			return
		}

		r.Route("/auth", h.Auth.Routes)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
			}
			if h.Transaction != nil {
				pr.Route("/payments", func(tr chi.Router) {
					h.Transaction.Routes(tr, true)
				})
			}
			if h.Card != nil {
				pr.Route("/cards", h.Card.Routes)
			}
		})
	})

	if h.Merchant != nil && h.Transaction != nil {
		base := transport.NewBaseHandler(logger)
		router.Route("/api/merchant/v1", func(r chi.Router) {
			r.Use(middleware.MerchantSignature(h.Merchant, base))
			r.Route("/payment-intents", func(tr chi.Router) {
				h.Transaction.Routes(tr, false)
			})
		})
	}
}
