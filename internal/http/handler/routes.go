package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"legalease/internal/auth"
	"legalease/internal/service"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	DB       Pinger
	Gatherer prometheus.Gatherer
	Verifier *auth.Verifier
	Runs     RunLauncher
	Reports  service.ReportService
	Intake   IntakeConfig
	Logger   *slog.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Everything except probes and metrics requires a bearer token.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", Metrics(d.Gatherer))
	}

	authed := auth.Middleware(d.Verifier)

	app.Post("/runs", authed, StartRun(d.Runs, d.Intake, d.Logger))
	app.Get("/runs/:id", authed, GetRun(d.Runs))

	app.Get("/reports", authed, ListReports(d.Reports))
	app.Get("/reports/:id", authed, GetReport(d.Reports))
}
