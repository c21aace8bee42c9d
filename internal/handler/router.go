package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shivanand-hulikatti/eventhub/internal/service"
)

// Deps are everything the router serves.
type Deps struct {
	Events   *service.EventService
	Bookings *service.BookingService
	Accounts *service.AccountService
	Tokens   SessionParser
	Store    Pinger

	// Optional.
	Logger     *slog.Logger
	Observer   RequestObserver
	Gatherer   prometheus.Gatherer
	RateLimit  func(http.Handler) http.Handler
	CORSOrigin string
}

// NewRouter builds the chi router for the whole API.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := d.RateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	origin := d.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	events := NewEventHandler(d.Events, logger)
	bookings := NewBookingHandler(d.Bookings, logger)
	accounts := NewAuthHandler(d.Accounts, logger)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(logger, d.Observer))
	r.Use(CORS(origin))

	r.Get("/health", HealthCheck(d.Store))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(d.Tokens, logger))

		r.Route("/auth", func(r chi.Router) {
			r.With(limit).Post("/register", accounts.Register)
			r.With(limit).Post("/login", accounts.Login)
			r.With(RequireAuth).Get("/me", accounts.Me)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", events.ListEvents)
			r.Get("/{id}", events.GetEvent)
			r.Group(func(r chi.Router) {
				r.Use(RequireAuth)
				r.Post("/", events.CreateEvent)
				r.Put("/{id}", events.UpdateEvent)
				r.Delete("/{id}", events.DeleteEvent)
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(RequireAuth)
			r.With(limit).Post("/", bookings.CreateBooking)
			r.Get("/my", bookings.MyBookings)
			r.Delete("/{id}", bookings.CancelBooking)
		})
	})

	return r
}
