// Package app はアプリケーションの初期化と起動モードのディスパッチを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sermonsync/internal/config"
	"github.com/hitoshi/sermonsync/internal/database"
	"github.com/hitoshi/sermonsync/internal/download"
	"github.com/hitoshi/sermonsync/internal/feed"
	"github.com/hitoshi/sermonsync/internal/handler"
	"github.com/hitoshi/sermonsync/internal/logger"
	"github.com/hitoshi/sermonsync/internal/metrics"
	"github.com/hitoshi/sermonsync/internal/middleware"
	"github.com/hitoshi/sermonsync/internal/model"
	"github.com/hitoshi/sermonsync/internal/repository"
	"github.com/hitoshi/sermonsync/internal/security"
	"github.com/hitoshi/sermonsync/internal/syncer"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "5060"
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
		slog.String("db_path", cfg.DBPath),
		slog.String("audio_dir", cfg.AudioDir),
	)

	switch cmd {
	case CommandSync:
		return runSyncOnce(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーと同期スケジューラを同一プロセスで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// メトリクスレジストリ
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 同期パイプラインのワイヤリング
	syncService, err := buildSyncService(cfg, db, collector)
	if err != nil {
		return err
	}
	scheduler := syncer.NewScheduler(syncService, slog.Default())

	// ルーターの構築
	sermonRepo := repository.NewSQLiteSermonRepo(db)
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Store:         sermonRepo,
		HealthChecker: db,
		APIKey:        cfg.APIKey,
		RateLimiter:   rateLimiter,
		Gatherer:      registry,
		Logger:        slog.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute, // 音声ファイル配信のため長めに取る
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// 同期スケジューラをバックグラウンドで起動
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Start(ctx, cfg.SyncInterval)
	}()

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down...")

	// スケジューラを停止してからHTTPサーバーを落とす
	cancel()
	<-schedulerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("stopped gracefully")
	return nil
}

// runSyncOnce は同期サイクルを1回だけ実行して終了する。
// シグナル受信時は実行中のサイクルを安全に中断する。
// フィード取得の失敗、またはエントリ処理の失敗が1件でもあれば
// エラーコード付きで非ゼロ終了し、cron等の呼び出し元が検知できるようにする。
func runSyncOnce(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	syncService, err := buildSyncService(cfg, db, collector)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats, err := syncService.RunCycle(ctx)
	if err != nil {
		return model.NewFetchFailedError(err.Error())
	}

	slog.Info("sync cycle finished",
		slog.Int("entries_seen", stats.Seen),
		slog.Int("inserted", stats.Inserted),
		slog.Int("downloaded", stats.Downloaded),
		slog.Int("failed", stats.Failed),
	)

	if stats.Failed > 0 {
		return model.NewDownloadFailedError(
			fmt.Sprintf("%d件のエントリの処理に失敗しました（次回実行で再試行されます）", stats.Failed))
	}
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("db_path", cfg.DBPath),
	)

	if err := database.RunMigrations(cfg.DBPath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// openDatabase はDBを開き、マイグレーションを適用して疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	if err := database.RunMigrations(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// buildSyncService は同期パイプライン（フィードURL解決・フェッチャー・
// ダウンローダー・同期サービス)をワイヤリングする。
func buildSyncService(cfg *config.Config, db *sql.DB, collector *metrics.Collector) (*syncer.SyncService, error) {
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 設定されたソースURLをフィードURLに解決する。
	// HTMLページが設定されている場合はalternateリンクから自動検出する。
	detector := feed.NewDetector(ssrfGuard, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize)
	resolveCtx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	defer cancel()

	feedURL, err := detector.Resolve(resolveCtx, cfg.FeedURL)
	if err != nil {
		// 解決に失敗しても起動は継続し、設定値をそのまま使う。
		// ソースが一時的に落ちていても次の同期サイクルで再試行できる。
		slog.Warn("フィードURLの解決に失敗したため設定値をそのまま使用します",
			slog.String("feed_url", cfg.FeedURL),
			slog.String("error", err.Error()),
		)
		feedURL = cfg.FeedURL
	}

	fetcher := feed.NewFetcher(
		feedURL, ssrfGuard, sanitizer,
		slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize,
	)

	downloader, err := download.NewDownloader(
		cfg.AudioDir, ssrfGuard,
		slog.Default(), cfg.DownloadTimeout, cfg.DownloadMaxSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init downloader: %w", err)
	}

	sermonRepo := repository.NewSQLiteSermonRepo(db)

	return syncer.NewSyncService(fetcher, downloader, sermonRepo, collector, slog.Default()), nil
}
