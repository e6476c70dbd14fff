package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/andescare/hospital-platform/internal/http/handlers"
	httpmiddleware "github.com/andescare/hospital-platform/internal/http/middleware"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	SpecialtiesHandler  *handlers.SpecialtiesHandler
	DoctorsHandler      *handlers.DoctorsHandler
	PatientsHandler     *handlers.PatientsHandler
	AppointmentsHandler *handlers.AppointmentsHandler
	ClinicalHandler     *handlers.ClinicalHandler
	SchedulesHandler    *handlers.SchedulesHandler
	AuditHandler        *handlers.AuditHandler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/specialties", func(r chi.Router) {
		r.Post("/", cfg.SpecialtiesHandler.Create)
		r.Get("/", cfg.SpecialtiesHandler.List)
		r.Get("/search", cfg.SpecialtiesHandler.Search)
		r.Put("/{id}", cfg.SpecialtiesHandler.Update)
		r.Delete("/{id}", cfg.SpecialtiesHandler.Delete)
	})

	r.Route("/doctors", func(r chi.Router) {
		r.Post("/", cfg.DoctorsHandler.Create)
		r.Get("/", cfg.DoctorsHandler.List)
		r.Get("/search", cfg.DoctorsHandler.Search)
		r.Put("/{id}", cfg.DoctorsHandler.Update)
		r.Delete("/{id}", cfg.DoctorsHandler.Delete)

		r.Route("/{id}/schedule", func(r chi.Router) {
			r.Get("/", cfg.SchedulesHandler.Weekly)
			r.Get("/summary", cfg.SchedulesHandler.Summary)
			r.Put("/{weekday}", cfg.SchedulesHandler.ReplaceDay)
			r.Delete("/{weekday}", cfg.SchedulesHandler.ClearDay)
		})
	})

	r.Get("/schedules/availability", cfg.SchedulesHandler.Availability)

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", cfg.PatientsHandler.Create)
		r.Get("/", cfg.PatientsHandler.List)
		r.Get("/search", cfg.PatientsHandler.Search)
		r.Put("/{id}", cfg.PatientsHandler.Update)
		r.Delete("/{id}", cfg.PatientsHandler.Delete)
		r.Delete("/by-national-id/{nationalID}", cfg.PatientsHandler.DeleteByNationalID)
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", cfg.AppointmentsHandler.Create)
		r.Get("/", cfg.AppointmentsHandler.List)
		r.Get("/search", cfg.AppointmentsHandler.Search)
		r.Put("/{id}", cfg.AppointmentsHandler.Update)
		r.Delete("/{id}", cfg.AppointmentsHandler.Delete)
	})

	r.Route("/diagnoses", func(r chi.Router) {
		r.Post("/", cfg.ClinicalHandler.CreateDiagnosis)
		r.Get("/", cfg.ClinicalHandler.ListDiagnoses)
		r.Delete("/{id}", cfg.ClinicalHandler.DeleteDiagnosis)
	})
	r.Route("/treatments", func(r chi.Router) {
		r.Post("/", cfg.ClinicalHandler.CreateTreatment)
		r.Get("/", cfg.ClinicalHandler.ListTreatments)
		r.Delete("/{id}", cfg.ClinicalHandler.DeleteTreatment)
	})
	r.Route("/medical-records", func(r chi.Router) {
		r.Post("/", cfg.ClinicalHandler.CreateMedicalRecord)
		r.Get("/", cfg.ClinicalHandler.ListMedicalRecords)
		r.Delete("/{id}", cfg.ClinicalHandler.DeleteMedicalRecord)
	})
	r.Route("/encounters", func(r chi.Router) {
		r.Post("/", cfg.ClinicalHandler.CreateEncounter)
		r.Get("/", cfg.ClinicalHandler.ListEncounters)
		r.Delete("/{id}", cfg.ClinicalHandler.DeleteEncounter)
	})

	if cfg.AuditHandler != nil {
		r.Get("/audit/events", cfg.AuditHandler.ListEvents)
	}

	return r
}
