// Package api exposes booking, cancellation and reporting over HTTP for
// front desks that do not use the terminal console.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/gp-clinic-console/internal/appointment"
	"github.com/hackgods/gp-clinic-console/internal/observability/metrics"
	"github.com/hackgods/gp-clinic-console/internal/report"
	"github.com/hackgods/gp-clinic-console/internal/store"
	"github.com/hackgods/gp-clinic-console/pkg/logging"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Reports      *report.Generator
	Backend      store.Backend
	Redis        *redis.Client
	Logger       *logging.Logger
	Registry     *prometheus.Registry // nil gets a private registry
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.NewAPIMetrics(reg)

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger, m))

	health := NewHealthHandler(cfg.Backend, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/slots", listSlotsHandler(cfg.Appointments))
	r.Post("/appointments", bookAppointmentHandler(cfg.Appointments, m))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments, m))

	r.Route("/patients/{email}", func(r chi.Router) {
		r.Get("/appointments", patientAppointmentsHandler(cfg.Appointments))
		r.Get("/notifications", patientNotificationsHandler(cfg.Appointments))
	})

	r.Get("/reports/clinics", reportHandler(cfg.Reports, report.ByClinic))
	r.Get("/reports/doctors", reportHandler(cfg.Reports, report.ByDoctor))

	return r
}
