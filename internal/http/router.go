package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pribylovaa/go-todo-list/internal/config"
	"github.com/pribylovaa/go-todo-list/internal/http/handlers"
	"github.com/pribylovaa/go-todo-list/internal/http/middleware"
	"github.com/pribylovaa/go-todo-list/internal/metrics"
)

// Service — всё, что роутеру нужно от сервисного слоя.
type Service interface {
	handlers.Sessions
	middleware.AccessVerifier
}

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
	// AllowedOrigin — единственный origin с правом на запросы с cookie.
	// Пустое значение отключает CORS.
	AllowedOrigin string
	Cookie        config.CookieConfig
	Metrics       *metrics.Metrics
	// Protected регистрирует ресурсы за AccessGuard (to-do CRUD).
	Protected func(r chi.Router)
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Recover(),            // безопасно ловим паники
	)
	if opts.AllowedOrigin != "" {
		root.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{opts.AllowedOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc, opts.Cookie, opts.Metrics)
	guard := middleware.AccessGuard(svc)

	if opts.BasePath != "" && opts.BasePath != "/" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, guard, opts.Protected)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, guard, opts.Protected)
	return root
}

// registerRoutes — единая точка регистрации REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, guard middleware.Middleware, protected func(chi.Router)) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Get("/auth/refresh", h.Refresh)
	r.Get("/auth/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(guard)
		r.Get("/auth/me", h.Me)

		if protected != nil {
			protected(r)
		}
	})
}
