/**
 * @description
 * This file sets up the HTTP router for the platform. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the middleware stack: CORS, request metrics, bearer authentication,
 * account gates and per-scope rate limits.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the browser frontend.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/ratelimit"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/ws"
)

// RouterDeps carries the cross-cutting pieces the router wires around the
// handlers.
type RouterDeps struct {
	JWTSecret      []byte
	Limiter        *ratelimit.Limiter
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	Hub            *ws.Hub
	AllowedOrigins []string

	PublicPerMinute  int
	AuthPerMinute    int
	WebhookPerMinute int
}

// Routes creates and returns the router for the whole platform.
func Routes(h *Handlers, deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(RequestMetrics(deps.Metrics))

	// Health check endpoint
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	auth := Authenticator(deps.JWTSecret)
	optional := OptionalAuthenticator(deps.JWTSecret)
	publicLimit := RateLimit(deps.Limiter, "public", deps.PublicPerMinute)
	authLimit := RateLimit(deps.Limiter, "auth", deps.AuthPerMinute)
	webhookLimit := RateLimit(deps.Limiter, "webhook", deps.WebhookPerMinute)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(publicLimit).Post("/register", h.RegisterAccountHandler)
			r.With(publicLimit).Post("/login", h.LoginHandler)
			r.Group(func(r chi.Router) {
				r.Use(auth, authLimit)
				r.Get("/me", h.MeHandler)
				r.Post("/change-password", h.ChangePasswordHandler)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(auth, authLimit)
			r.Get("/me", h.MeHandler)
			r.With(RequireActive).Put("/me", h.UpdateProfileHandler)
		})

		r.Route("/events", func(r chi.Router) {
			r.With(publicLimit).Get("/", h.ListEventsHandler)
			r.With(publicLimit).Get("/{id}", h.GetEventHandler)
			r.Group(func(r chi.Router) {
				r.Use(auth, RequireAdmin, authLimit)
				r.Post("/", h.CreateEventHandler)
				r.Put("/{id}", h.UpdateEventHandler)
				r.Delete("/{id}", h.DeleteEventHandler)
				r.Post("/{id}/open", h.SetRegistrationOpenHandler)
			})
		})

		r.Route("/registrations", func(r chi.Router) {
			r.Use(auth, RequireActive, authLimit)
			r.Post("/", h.CreateRegistrationHandler)
			r.Get("/me", h.ListMyRegistrationsHandler)
			r.Get("/{id}", h.GetRegistrationHandler)
			r.Post("/{id}/cancel", h.CancelRegistrationHandler)
			r.Post("/{id}/confirm-manual-payment", h.ConfirmManualPaymentHandler)
			r.Get("/{id}/manual-payment-details", h.ManualPaymentDetailsHandler)
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(webhookLimit).Post("/webhook", h.PaymentWebhookHandler)
			r.Group(func(r chi.Router) {
				r.Use(auth, RequireActive, authLimit)
				r.Post("/checkout", h.CheckoutHandler)
				r.Get("/{id}", h.GetPaymentHandler)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth, RequireAdmin, authLimit)
			r.Get("/stats", h.AdminStatsHandler)
			r.Get("/users", h.ListUsersHandler)
			r.Post("/users/{id}/status", h.SetUserStatusHandler)
			r.Post("/users/{id}/role", h.SetUserRoleHandler)
			r.Get("/refund-tasks", h.ListRefundTasksHandler)
			r.Post("/refund-tasks/{id}/review", h.ReviewRefundTaskHandler)
			r.Post("/refund-tasks/{id}/execute", h.ExecuteRefundTaskHandler)
			r.Post("/registrations/{id}/cancel", h.AdminCancelRegistrationHandler)
			r.Post("/registrations/{id}/finalize-manual-payment", h.FinalizeManualPaymentHandler)
			r.Post("/subscriptions/{userID}/grant", h.GrantSubscriptionHandler)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(auth, authLimit)
			r.Get("/me", h.MySubscriptionHandler)
			r.With(RequireActive).Post("/auto-renew", h.SetAutoRenewHandler)
		})

		r.Route("/donations", func(r chi.Router) {
			r.With(optional, publicLimit).Post("/", h.CreateDonationHandler)
			r.With(publicLimit).Get("/recent", h.RecentDonationsHandler)
			r.Group(func(r chi.Router) {
				r.Use(auth, RequireAdmin, authLimit)
				r.Get("/", h.ListDonationsHandler)
				r.Post("/{id}/complete", h.CompleteDonationHandler)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.With(optional, publicLimit).Get("/", h.ListProductsHandler)
			r.Group(func(r chi.Router) {
				r.Use(auth, RequireAdmin, authLimit)
				r.Post("/", h.CreateProductHandler)
				r.Put("/{id}", h.UpdateProductHandler)
				r.Delete("/{id}", h.DeleteProductHandler)
			})
		})

		r.Route("/cities", func(r chi.Router) {
			r.With(publicLimit).Get("/", h.ListCitiesHandler)
			r.Group(func(r chi.Router) {
				r.Use(auth, RequireAdmin, authLimit)
				r.Post("/", h.CreateCityHandler)
				r.Delete("/{id}", h.DeleteCityHandler)
			})
		})

		r.Route("/event-types", func(r chi.Router) {
			r.With(publicLimit).Get("/", h.ListEventTypesHandler)
			r.Group(func(r chi.Router) {
				r.Use(auth, RequireAdmin, authLimit)
				r.Post("/", h.CreateEventTypeHandler)
				r.Delete("/{id}", h.DeleteEventTypeHandler)
			})
		})

		r.Route("/feedback", func(r chi.Router) {
			r.With(optional, publicLimit).Post("/", h.CreateFeedbackHandler)
			r.With(auth, RequireAdmin, authLimit).Get("/", h.ListFeedbackHandler)
		})

		r.Route("/announcements", func(r chi.Router) {
			r.With(optional, publicLimit).Get("/", h.ListAnnouncementsHandler)
			r.Group(func(r chi.Router) {
				r.Use(auth, RequireAdmin, authLimit)
				r.Post("/", h.CreateAnnouncementHandler)
				r.Put("/{id}", h.UpdateAnnouncementHandler)
				r.Delete("/{id}", h.DeleteAnnouncementHandler)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.With(publicLimit).Get("/", h.ListCommentsHandler)
			r.Group(func(r chi.Router) {
				r.Use(auth, RequireActive, authLimit)
				r.Post("/", h.CreateCommentHandler)
				r.Delete("/{id}", h.DeleteCommentHandler)
			})
		})

		r.Route("/uploads", func(r chi.Router) {
			r.With(auth, RequireActive, authLimit).Post("/", h.UploadFileHandler)
			r.With(publicLimit).Get("/{id}", h.DownloadFileHandler)
			r.With(auth, authLimit).Delete("/{id}", h.DeleteFileHandler)
		})

		r.Route("/push", func(r chi.Router) {
			r.Use(auth, authLimit)
			r.Get("/vapid-public-key", h.VAPIDPublicKeyHandler)
			r.Group(func(r chi.Router) {
				r.Use(RequireActive)
				r.Post("/subscribe", h.PushSubscribeHandler)
				r.Post("/unsubscribe", h.PushUnsubscribeHandler)
			})
		})

		r.With(auth).Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ident, ok := identityFrom(r)
			if !ok {
				writeAuthError(w, "Authentication required")
				return
			}
			deps.Hub.HandleConnection(w, r, ident.IsAdmin())
		})
	})

	return r
}
