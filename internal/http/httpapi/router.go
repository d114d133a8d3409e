package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

// RouterOptions carries the cross-cutting pieces the router wires in
// front of the handlers.
type RouterOptions struct {
	App             *handlers.App
	CountryLookup   middleware.CountryLookup
	AllowedOrigins  []string
	RateLimitPerMin int
	Metrics         prometheus.Gatherer
}

// NewRouter builds the full route tree.
func NewRouter(opts RouterOptions) http.Handler {
	app := opts.App
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N("en", opts.CountryLookup),
		middleware.Logger(app.Logger),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/api/status", app.Status)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", app.Register)
		r.Post("/login", app.Login)

		r.Route("/admin/registration-codes", func(r chi.Router) {
			r.Post("/", app.CreateRegistrationCode)
			r.Get("/", app.ListRegistrationCodes)
			r.Delete("/{id}", app.DeleteRegistrationCode)
		})
	})

	r.Route("/api/chat", func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.JWTSecret))
		r.Get("/list", app.ChatList)
		r.Post("/new", app.ChatCreate)
		r.Get("/{id}", app.ChatGet)
		r.Post("/{id}/message", app.ChatAppendMessage)
		r.Put("/{id}", app.ChatRename)
		r.Delete("/{id}", app.ChatDelete)
	})

	r.Route("/api/ai", func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.JWTSecret))
		r.Post("/chat/completions", app.ChatCompletions)
		r.Post("/images/generations", app.ImagesGenerations)
		r.Get("/images/history", app.ImagesHistory)
		r.Post("/documents", app.DocumentsUpload)
		r.Post("/documents/chat", app.DocumentsChat)
	})

	return r
}
