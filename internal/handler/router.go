package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/fanfootprint/internal/middleware"
	"github.com/hitoshi/fanfootprint/internal/view"
)

// Sessions はルーターが必要とするセッション登録簿のインターフェース。
// session.Managerが実装する。
type Sessions interface {
	middleware.StoreResolver
	SessionManager
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// セッション
	Sessions Sessions
	Cookie   middleware.SessionCookieConfig

	// 参照データ・表示
	Arenas  ArenaCatalog
	Labeler view.Labeler

	// 運用
	HealthChecker     HealthChecker
	MetricsHandler    http.Handler
	StatusRecorder    middleware.StatusRecorder
	Logger            *slog.Logger
	CORSAllowedOrigin string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Session → (RequireAuth → CSRF)
//
// /health と /metrics はセッションを解決しない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{HSTS: deps.Cookie.CookieSecure}))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.Sessions, deps.Cookie)
	stadiumHandler := NewStadiumHandler(deps.Labeler)
	arenaHandler := NewArenaHandler(deps.Arenas)

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.Cookie.CookieSecure,
		CookieDomain: deps.Cookie.CookieDomain,
		MaxAge:       deps.Cookie.MaxAge,
	}

	// --- セッション不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions))

		// 認証ルート
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		r.Route("/api", func(r chi.Router) {
			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

			// 参照データ
			r.Get("/arenas", arenaHandler.Search)
			r.Get("/arenas/draft", arenaHandler.Draft)

			// --- 認証が必要なルート ---
			// ミドルウェアスタック: RequireAuth → CSRF
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Use(middleware.NewCSRFMiddleware(csrfConfig))

				r.Route("/stadiums", func(r chi.Router) {
					r.Get("/", stadiumHandler.ListStadiums)
					r.Post("/", stadiumHandler.CreateStadium)
					r.Patch("/{id}", stadiumHandler.UpdateStadium)
					r.Delete("/{id}", stadiumHandler.DeleteStadium)
				})
				r.Get("/stats", stadiumHandler.Stats)
				r.Get("/profile", stadiumHandler.Profile)
			})
		})
	})

	return r
}
