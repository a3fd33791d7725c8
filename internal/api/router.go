package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sante-virtuelle/scheduling/internal/appointment"
	"github.com/sante-virtuelle/scheduling/internal/availability"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Log          zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Route("/doctors/{doctorID}", func(r chi.Router) {
			r.Get("/availability", getAvailabilityHandler(cfg.Availability))
			r.Put("/availability/templates/{weekday}", setTemplateHandler(cfg.Availability))
			r.Post("/unavailability", addUnavailabilityHandler(cfg.Availability))
			r.Delete("/unavailability/{periodID}", removeUnavailabilityHandler(cfg.Availability))
			r.Get("/slots", getSlotsHandler(cfg.Appointments))
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(cfg.Appointments))
			r.Get("/", listAppointmentsHandler(cfg.Appointments))
			r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
			r.Post("/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
			r.Post("/{id}/reject", rejectAppointmentHandler(cfg.Appointments))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
			r.Post("/{id}/complete", completeAppointmentHandler(cfg.Appointments))
			r.Post("/{id}/rating", rateAppointmentHandler(cfg.Appointments))
			r.Post("/{id}/reschedule-proposal", proposeRescheduleHandler(cfg.Appointments))
		})

		r.Post("/reschedule-proposals/{id}/respond", respondProposalHandler(cfg.Appointments))
	})

	return r
}
