// Package download は音声ファイルのダウンロードとローカル保存を提供する。
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"
)

// DownloadError は音声ダウンロードの失敗を表す。
// ネットワーク障害、非2xx応答、ローカルI/O障害のいずれでも返される。
type DownloadError struct {
	URL string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *DownloadError) Error() string {
	return fmt.Sprintf("audio download failed for %s: %v", e.URL, e.Err)
}

// Unwrap はラップされた原因エラーを返す。
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Downloader は音声ペイロードをローカルディレクトリにストリーム保存する。
// ファイル名は説教IDから決定論的に導出され、
// 一時ファイルへの書き込みとリネームによるアトミック公開を行う。
type Downloader struct {
	audioDir  string
	ssrfGuard SSRFValidator
	logger    *slog.Logger
	timeout   time.Duration
	maxSize   int64
}

// NewDownloader はDownloaderの新しいインスタンスを生成する。
// audioDirが存在しない場合は作成する。
func NewDownloader(
	audioDir string,
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxSize int64,
) (*Downloader, error) {
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio directory: %w", err)
	}

	return &Downloader{
		audioDir:  audioDir,
		ssrfGuard: ssrfGuard,
		logger:    logger,
		timeout:   timeout,
		maxSize:   maxSize,
	}, nil
}

// TargetPath は説教IDと音声URLからローカルファイルパスを導出する。
// 拡張子はURLパスから取得し、不明な場合は.mp3とする。
func (d *Downloader) TargetPath(sermonID, audioURL string) string {
	ext := ".mp3"
	if u, err := url.Parse(audioURL); err == nil {
		if e := path.Ext(u.Path); e != "" && len(e) <= 8 {
			ext = e
		}
	}
	return filepath.Join(d.audioDir, sermonID+ext)
}

// Download は音声ペイロードを取得してローカルファイルに保存し、そのパスを返す。
// 対象ファイルが既に存在する場合はネットワークアクセスを行わずにスキップする（冪等）。
// 一時ファイルに書き込んでからリネームするため、
// いかなる失敗時も最終パスに部分ファイルが残らない。
func (d *Downloader) Download(ctx context.Context, sermonID, audioURL string) (string, error) {
	target := d.TargetPath(sermonID, audioURL)

	if _, err := os.Stat(target); err == nil {
		d.logger.Info("音声ファイルは既に存在します",
			slog.String("sermon_id", sermonID),
			slog.String("path", target),
		)
		return target, nil
	}

	if err := d.ssrfGuard.ValidateURL(audioURL); err != nil {
		return "", &DownloadError{URL: audioURL, Err: fmt.Errorf("SSRF検証に失敗: %w", err)}
	}

	client := d.ssrfGuard.NewSafeClient(d.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", &DownloadError{URL: audioURL, Err: fmt.Errorf("リクエスト作成に失敗: %w", err)}
	}
	req.Header.Set("User-Agent", "SermonSync/1.0 Podcast Archiver")

	resp, err := client.Do(req)
	if err != nil {
		return "", &DownloadError{URL: audioURL, Err: fmt.Errorf("HTTPリクエスト失敗: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &DownloadError{URL: audioURL, Err: fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode)}
	}

	if err := d.writeAtomic(target, resp.Body); err != nil {
		return "", &DownloadError{URL: audioURL, Err: err}
	}

	d.logger.Info("音声ファイルをダウンロードしました",
		slog.String("sermon_id", sermonID),
		slog.String("audio_url", audioURL),
		slog.String("path", target),
	)

	return target, nil
}

// writeAtomic はbodyを一時ファイルにストリーム書き込みし、
// 成功時のみ最終パスへリネームする。失敗時は一時ファイルを削除する。
// ペイロードがサイズ上限を超える場合はエラーを返す。切り詰めたファイルを
// 公開すると既存ファイルスキップにより二度と再取得されないため。
func (d *Downloader) writeAtomic(target string, body io.Reader) error {
	tmp := target + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}

	// 上限+1バイトまで読み、上限超過を検出する
	written, err := io.Copy(f, io.LimitReader(body, d.maxSize+1))
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("音声データの書き込みに失敗: %w", err)
	}
	if written > d.maxSize {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("音声データがサイズ上限を超えています: 上限 %d バイト", d.maxSize)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("一時ファイルのfsyncに失敗: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("一時ファイルのクローズに失敗: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("最終パスへのリネームに失敗: %w", err)
	}

	return nil
}
