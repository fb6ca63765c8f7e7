package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/fanfootprint/internal/arena"
	"github.com/hitoshi/fanfootprint/internal/auth"
	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/backend/memory"
	"github.com/hitoshi/fanfootprint/internal/config"
	"github.com/hitoshi/fanfootprint/internal/database"
	"github.com/hitoshi/fanfootprint/internal/handler"
	"github.com/hitoshi/fanfootprint/internal/logger"
	"github.com/hitoshi/fanfootprint/internal/metrics"
	"github.com/hitoshi/fanfootprint/internal/middleware"
	"github.com/hitoshi/fanfootprint/internal/repository"
	"github.com/hitoshi/fanfootprint/internal/security"
	"github.com/hitoshi/fanfootprint/internal/session"
	"github.com/hitoshi/fanfootprint/internal/supabase"
	"github.com/hitoshi/fanfootprint/internal/worker/cleanup"
)

// dbPingTimeout は起動時のDB疎通確認の上限。
const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("backend", cfg.Backend),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// application はserveモードで起動する部品一式。
type application struct {
	handler  http.Handler
	sessions *session.Manager
	cleanup  *cleanup.CleanupJob
}

// newApplication は設定とDB接続から全依存関係をワイヤリングする。
// dbはDATABASE_URLが未設定の場合nilとなる。
func newApplication(cfg *config.Config, db *sql.DB, log *slog.Logger) (*application, error) {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. ブラウザセッションのトークン保存先
	var tokens backend.TokenStore
	if db != nil {
		tokens = repository.NewPostgresBrowserSessionRepo(db)
	} else {
		tokens = memory.NewTokenStore()
	}

	// 3. バックエンドの選択
	factory, err := newBackendFactory(cfg, db, tokens, collector, log)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(factory, log,
		session.WithLogger(log),
		session.WithRecorder(collector),
	)

	// 4. 参照データ
	catalog, err := arena.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load arena data: %w", err)
	}

	// 5. クリーンアップジョブ
	var targets []cleanup.Target
	if db != nil {
		targets = append(targets, cleanup.Target{
			Kind:   cleanup.KindBrowserSessions,
			MaxAge: time.Duration(cfg.SessionMaxAge) * time.Second,
			Purge:  repository.NewPostgresBrowserSessionRepo(db).DeleteStale,
		})
		if cfg.Backend == config.BackendPostgres {
			targets = append(targets, cleanup.Target{
				Kind:  cleanup.KindRefreshTokens,
				Purge: repository.NewPostgresRefreshTokenRepo(db).DeleteExpired,
			})
		}
	}
	job := cleanup.NewCleanupJob(sessions, cfg.SessionIdleTimeout, targets, collector, log)

	// 6. ルーター
	deps := &handler.RouterDeps{
		Sessions: sessions,
		Cookie: middleware.SessionCookieConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.SessionMaxAge,
		},
		Arenas:            catalog,
		Labeler:           security.NewLabelSanitizer(),
		MetricsHandler:    metrics.Handler(reg),
		StatusRecorder:    collector,
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
	}
	if db != nil {
		deps.HealthChecker = db
	}

	return &application{
		handler:  handler.NewRouter(deps),
		sessions: sessions,
		cleanup:  job,
	}, nil
}

// newBackendFactory はBACKENDの設定に応じてブラウザセッションごとの認証・データストアを生成するFactoryを返す。
func newBackendFactory(cfg *config.Config, db *sql.DB, tokens backend.TokenStore, collector *metrics.Collector, log *slog.Logger) (backend.Factory, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory backend; data is lost on restart")
		return memory.NewBackend().Factory(tokens), nil

	case config.BackendPostgres:
		if db == nil {
			return nil, errors.New("postgres backend requires DATABASE_URL")
		}
		jwtm, err := auth.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create token manager: %w", err)
		}
		svc := auth.NewService(
			repository.NewPostgresAccountRepo(db),
			repository.NewPostgresRefreshTokenRepo(db),
			jwtm,
			auth.ServiceConfig{RefreshTokenTTL: cfg.RefreshTokenTTL},
			log,
		)
		data := repository.NewDataStore(
			repository.NewPostgresProfileRepo(db),
			repository.NewPostgresStadiumRepo(db),
		)
		return svc.Factory(tokens, data), nil

	case config.BackendSupabase:
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.BackendTimeout},
			cfg.SupabaseURL, cfg.SupabaseAnonKey, log,
			supabase.WithObserver(collector),
		)
		return client.Factory(tokens), nil

	default:
		return nil, fmt.Errorf("unsupported backend: %q", cfg.Backend)
	}
}

// openDatabase はDATABASE_URLが設定されている場合にDB接続を開き、疎通を確認する。
// 未設定の場合はnilを返す。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}

	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、クリーンアップジョブとHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// 2. 依存関係のワイヤリング
	app, err := newApplication(cfg, db, slog.Default())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. クリーンアップジョブをバックグラウンドで実行
	go app.cleanup.Start(ctx, cfg.CleanupInterval)

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully",
		slog.Int("active_sessions", app.sessions.Len()),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migration failed: DATABASE_URL is not set")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
