package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// reviewListMaxAge is the Cache-Control max-age, in seconds, of the public
// review listing.
const reviewListMaxAge = 60

// Services groups the business services exposed over HTTP.
type Services struct {
	Carts     *service.CartService
	Interests *service.InterestService
	History   *service.HistoryService
	Orders    *service.OrderService
	Reviews   *service.ReviewService
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	svc Services,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.Identity)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	carts := NewCartHandler(svc.Carts, logger)
	profiles := NewProfileHandler(svc.Interests, svc.History, logger)
	orders := NewOrderHandler(svc.Orders, logger)
	reviews := NewReviewHandler(svc.Reviews, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/carts/users/{userId}", func(r chi.Router) {
			r.Use(requirePathOwner("userId", middleware.UserIDHeader))
			carts.routes(r)
			r.Post("/merge", carts.MergeGuestCart)
		})
		r.Route("/carts/guests/{guestId}", func(r chi.Router) {
			r.Use(requirePathOwner("guestId", middleware.GuestIDHeader))
			carts.routes(r)
		})

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Use(requirePathOwner("userId", middleware.UserIDHeader))

			r.Get("/interests", profiles.GetInterests)
			r.Post("/interests/signals", profiles.ApplySignal)
			r.Get("/interests/top", profiles.TopInterestTags)

			r.Get("/history", profiles.GetBrowsingHistory)
			r.Post("/views", profiles.RecordView)
		})

		r.With(middleware.RequireUser).Get("/orders/{orderId}/timeline", orders.GetTimeline)
		r.Patch("/orders/{orderId}/status", orders.UpdateStatus)

		r.With(middleware.CacheControl(reviewListMaxAge)).Get("/products/{productId}/reviews", reviews.ListReviews)
		r.With(middleware.RequireUser).Post("/products/{productId}/reviews", reviews.CreateReview)
		r.Patch("/reviews/{reviewId}/status", reviews.ModerateReview)
	})

	return r
}
