package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirki-ai/kirki-backend/api/controllers"
	"github.com/kirki-ai/kirki-backend/api/middleware"
	"github.com/kirki-ai/kirki-backend/internal/labeling"
	"github.com/kirki-ai/kirki-backend/internal/recordings"
	"github.com/kirki-ai/kirki-backend/internal/rules"
	"github.com/kirki-ai/kirki-backend/internal/search"
	"github.com/kirki-ai/kirki-backend/pkg/config"
	"github.com/kirki-ai/kirki-backend/pkg/logger"
	"github.com/kirki-ai/kirki-backend/pkg/queue"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Recordings recordings.Service
	Rules      rules.Service
	Labeling   labeling.Service
	Search     search.Service
	Dispatcher *queue.Dispatcher
	Readiness  map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	maxBytes := cfg.Upload.MaxUploadBytes()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", controllers.Upload(deps.Recordings, maxBytes, logg))
		r.Post("/upload-multiple", controllers.UploadMultiple(deps.Recordings, maxBytes, logg))

		r.Route("/recordings", func(r chi.Router) {
			r.Get("/", controllers.RecordingList(deps.Recordings, logg))
			r.Get("/{recordingID}", controllers.RecordingGet(deps.Recordings, logg))
			r.Delete("/{recordingID}", controllers.RecordingDelete(deps.Recordings, logg))
		})

		r.Route("/labeling", func(r chi.Router) {
			r.Post("/", controllers.RuleCreate(deps.Rules, logg))
			r.Get("/", controllers.RuleList(deps.Rules, logg))
			r.Get("/{ruleID}", controllers.RuleGet(deps.Rules, logg))
			r.Put("/{ruleID}", controllers.RuleUpdate(deps.Rules, logg))
			r.Delete("/{ruleID}", controllers.RuleDelete(deps.Rules, logg))
			r.Post("/apply/{recordingID}", controllers.LabelsApply(deps.Labeling, logg))
		})

		r.Get("/search", controllers.Search(deps.Search, logg))
		r.Get("/jobs/{jobID}", controllers.JobStatus(deps.Dispatcher, logg))
	})

	return r
}
