package router

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"gitagent-backend/internal/handlers"
	"gitagent-backend/internal/middleware"
	"gitagent-backend/web"
)

func New(
	chatHandler *handlers.ChatHandler,
	frontendURL string,
	chatRateLimit int,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Chat rate limiter (per IP, per minute)
	chatLimiter := middleware.NewRateLimiter(chatRateLimit, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Embedded chat UI
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		// http.ServeFileFS equivalent; requires go >= 1.22 otherwise
		f, err := web.StaticFS.Open("static/index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, stat.Name(), stat.ModTime(), f.(io.ReadSeeker))
	})
	r.Handle("/static/*", http.FileServer(http.FS(web.StaticFS)))

	// ──── Chat API ────
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chatLimiter.Middleware)
			r.Post("/chat", chatHandler.Chat)
		})
	})

	return r
}
