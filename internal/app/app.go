package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/moreblogs/internal/auth"
	"github.com/hitoshi/moreblogs/internal/category"
	"github.com/hitoshi/moreblogs/internal/config"
	"github.com/hitoshi/moreblogs/internal/database"
	"github.com/hitoshi/moreblogs/internal/handler"
	"github.com/hitoshi/moreblogs/internal/logger"
	"github.com/hitoshi/moreblogs/internal/metrics"
	"github.com/hitoshi/moreblogs/internal/middleware"
	"github.com/hitoshi/moreblogs/internal/repository"
	"github.com/hitoshi/moreblogs/internal/security"
	"github.com/hitoshi/moreblogs/internal/worker/recount"
)

// pingTimeout は起動時のDB疎通確認のタイムアウト。
const pingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込んでログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	level := logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level.Set(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return fmt.Errorf("%w\n\n%s", err, Usage())
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
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
		slog.String("port", cfg.ServerPort),
		slog.String("environment", cfg.Environment),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openPool はコネクションプールを開き、疎通を確認する。
func openPool(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	pool, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// newMetrics はメトリクス有効時にPrometheusレジストリとCollectorを生成する。
// 無効時はNopと nil のハンドラーを返す。
func newMetrics(enabled bool) (metrics.MetricsCollector, http.Handler) {
	if !enabled {
		return metrics.Nop{}, nil
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewCollector(reg), metrics.Handler(reg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	pool, err := openPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	blogRepo := repository.NewPostgresDocumentRepo(pool, repository.CollectionBlogs)
	commentRepo := repository.NewPostgresDocumentRepo(pool, repository.CollectionComments)
	wishlistRepo := repository.NewPostgresDocumentRepo(pool, repository.CollectionWishlist)
	categoryRepo := repository.NewPostgresDocumentRepo(pool, repository.CollectionCategories)
	countRepo := repository.NewPostgresCategoryCountRepo(pool)

	// 3. ドメインサービスの初期化
	collector, metricsHandler := newMetrics(cfg.MetricsEnabled)
	tokens := auth.NewTokenService(cfg.AccessSecret)
	syncer := category.NewSynchronizer(countRepo, collector)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitToken),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		Production:         cfg.IsProduction(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		TokenVerifier:      tokens,

		TokenIssuer: tokens,
		Cookies:     auth.NewCookiePolicy(cfg.IsProduction()),

		Blogs:      blogRepo,
		Comments:   commentRepo,
		Wishlist:   wishlistRepo,
		Categories: categoryRepo,

		CategorySyncer: syncer,
		Sanitizer:      security.NewContentSanitizer(),

		RSS:           handler.RSSConfig{SiteURL: cfg.SiteURL, SiteTitle: cfg.SiteTitle},
		HealthChecker: pool,

		Metrics:        collector,
		MetricsHandler: metricsHandler,
	})

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、カテゴリ件数の再計算ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	pool, err := openPool(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("database connection established (worker)")

	// 2. 再計算ジョブの初期化
	syncer := category.NewSynchronizer(repository.NewPostgresCategoryCountRepo(pool), nil)
	job := recount.NewJob(syncer, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.RecountInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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
