// Package syncer はフィードとローカルストアの定期的な同期処理を提供する。
// スケジューラと、フィードエントリの差分判定・ダウンロード・保存を行う
// 同期サービスを含む。
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sermonsync/internal/model"
	"github.com/hitoshi/sermonsync/internal/repository"
)

// FeedFetcher はフィード取得のインターフェース。
type FeedFetcher interface {
	Fetch(ctx context.Context) ([]model.ParsedEntry, error)
}

// AudioDownloader は音声ダウンロードのインターフェース。
type AudioDownloader interface {
	Download(ctx context.Context, sermonID, audioURL string) (string, error)
}

// MetricsRecorder は同期サイクルのメトリクス収集インターフェース。
type MetricsRecorder interface {
	RecordFetchFailure()
	RecordEntriesSeen(count int)
	RecordSermonInserted()
	RecordDownloadSuccess()
	RecordDownloadFailure()
	RecordCycleDuration(duration time.Duration)
}

// CycleStats は1回の同期サイクルの結果を表す。
type CycleStats struct {
	Seen       int // フィードから取得したエントリ数
	Inserted   int // 新規作成した説教数
	Updated    int // メタデータを更新した既存説教数
	Downloaded int // ダウンロードに成功した音声数
	Failed     int // ダウンロードまたは保存に失敗したエントリ数
}

// SyncService はフィードエントリをストアと突き合わせ、
// 未知のエントリの作成・音声ダウンロード・既知エントリのメタデータ更新を行う。
// GUIDによる同一性判定のため、同一フィードの再処理で行が重複することはなく、
// ダウンロード済みファイルが再取得されることもない。
type SyncService struct {
	fetcher    FeedFetcher
	downloader AudioDownloader
	repo       repository.SermonRepository
	metrics    MetricsRecorder
	logger     *slog.Logger
}

// NewSyncService はSyncServiceの新しいインスタンスを生成する。
func NewSyncService(
	fetcher FeedFetcher,
	downloader AudioDownloader,
	repo repository.SermonRepository,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *SyncService {
	return &SyncService{
		fetcher:    fetcher,
		downloader: downloader,
		repo:       repo,
		metrics:    metrics,
		logger:     logger,
	}
}

// RunCycle は1回の同期サイクルを実行する。
// フィード全体の取得失敗はエラーとして返し、次回ティックに委ねる。
// 個別エントリの失敗はログに記録して次のエントリへ進み、バッチを中断しない。
func (s *SyncService) RunCycle(ctx context.Context) (CycleStats, error) {
	start := time.Now()
	stats := CycleStats{}

	entries, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.metrics.RecordFetchFailure()
		s.logger.Error("フィードの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return stats, err
	}

	stats.Seen = len(entries)
	s.metrics.RecordEntriesSeen(len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			s.logger.Info("同期サイクルがキャンセルされました")
			return stats, err
		}
		s.processEntry(ctx, entry, &stats)
	}

	duration := time.Since(start)
	s.metrics.RecordCycleDuration(duration)

	s.logger.Info("同期サイクルが完了しました",
		slog.Int("entries_seen", stats.Seen),
		slog.Int("inserted", stats.Inserted),
		slog.Int("updated", stats.Updated),
		slog.Int("downloaded", stats.Downloaded),
		slog.Int("failed", stats.Failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return stats, nil
}

// processEntry は1件のフィードエントリを処理する。
// 未知のエントリ: 行を作成してから音声をダウンロードする。
// 既知のエントリ: メタデータのみ更新し、file_pathには触れない。
// 音声が未ダウンロードのままの既知エントリは、このパスで再試行される。
func (s *SyncService) processEntry(ctx context.Context, entry model.ParsedEntry, stats *CycleStats) {
	existing, err := s.repo.FindByGUID(ctx, entry.GUID)
	if err != nil {
		s.logger.Error("説教の同一性判定でエラー",
			slog.String("guid", entry.GUID),
			slog.String("error", err.Error()),
		)
		stats.Failed++
		return
	}

	now := time.Now()

	if existing == nil {
		sermon := newSermon(entry, now)
		if err := s.repo.Create(ctx, sermon); err != nil {
			s.logger.Error("説教の作成に失敗しました",
				slog.String("guid", entry.GUID),
				slog.String("title", entry.Title),
				slog.String("error", err.Error()),
			)
			stats.Failed++
			return
		}
		stats.Inserted++
		s.metrics.RecordSermonInserted()

		s.logger.Info("新しい説教を登録しました",
			slog.String("sermon_id", sermon.ID),
			slog.String("title", sermon.Title),
		)

		s.downloadAudio(ctx, sermon.ID, sermon.AudioURL, stats)
		return
	}

	// 既存行: メタデータのみ更新。file_pathはUpdateMetadataが触れないため、
	// ダウンロード済みファイルの情報が再フェッチで失われることはない。
	applyMetadata(existing, entry, now)
	if err := s.repo.UpdateMetadata(ctx, existing); err != nil {
		s.logger.Error("説教メタデータの更新に失敗しました",
			slog.String("sermon_id", existing.ID),
			slog.String("error", err.Error()),
		)
		stats.Failed++
		return
	}
	stats.Updated++

	// 過去のサイクルでダウンロードに失敗した行はここで再試行する
	if !existing.Downloaded() {
		s.downloadAudio(ctx, existing.ID, existing.AudioURL, stats)
	}
}

// downloadAudio は音声をダウンロードし、成功時にfile_pathを記録する。
// 失敗はログとカウントに残すのみで、呼び出し元のバッチは継続する。
func (s *SyncService) downloadAudio(ctx context.Context, sermonID, audioURL string, stats *CycleStats) {
	path, err := s.downloader.Download(ctx, sermonID, audioURL)
	if err != nil {
		s.metrics.RecordDownloadFailure()
		s.logger.Error("音声のダウンロードに失敗しました",
			slog.String("sermon_id", sermonID),
			slog.String("audio_url", audioURL),
			slog.String("error", err.Error()),
		)
		stats.Failed++
		return
	}

	if err := s.repo.UpdateFilePath(ctx, sermonID, path); err != nil {
		s.logger.Error("file_pathの記録に失敗しました",
			slog.String("sermon_id", sermonID),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		stats.Failed++
		return
	}

	stats.Downloaded++
	s.metrics.RecordDownloadSuccess()
}

// newSermon はフィードエントリから新規説教モデルを構築する。
// 公開日時が欠落している場合はフェッチ時刻を代用し、推定フラグを付与する。
func newSermon(entry model.ParsedEntry, now time.Time) *model.Sermon {
	sermon := &model.Sermon{
		ID:         uuid.New().String(),
		GUID:       entry.GUID,
		Title:      entry.Title,
		AudioURL:   entry.AudioURL,
		Categories: entry.Categories,
		FetchedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if entry.PublishedAt != nil {
		sermon.PublishedAt = entry.PublishedAt
	} else {
		t := now
		sermon.PublishedAt = &t
		sermon.IsDateEstimated = true
	}

	return sermon
}

// applyMetadata は既存説教にフィードエントリのメタデータを反映する。
// file_pathとfetched_atは変更しない。
func applyMetadata(sermon *model.Sermon, entry model.ParsedEntry, now time.Time) {
	sermon.Title = entry.Title
	sermon.AudioURL = entry.AudioURL
	sermon.Categories = entry.Categories
	sermon.UpdatedAt = now

	if entry.PublishedAt != nil {
		sermon.PublishedAt = entry.PublishedAt
		sermon.IsDateEstimated = false
	}
	// 公開日時が欠落している場合は既存値（推定値を含む）を維持する
}
