// Package feed はポッドキャストフィードの取得とパースを提供する。
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/sermonsync/internal/model"
)

// userAgent はフィードフェッチ・音声ダウンロードで送信するUser-Agent。
const userAgent = "SermonSync/1.0 Podcast Archiver"

// FetchError はフィード全体の取得・パース失敗を表す。
// ネットワーク障害、非200応答、ドキュメント不正のいずれでも返される。
type FetchError struct {
	URL string
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *FetchError) Error() string {
	return fmt.Sprintf("feed fetch failed for %s: %v", e.URL, e.Err)
}

// Unwrap はラップされた原因エラーを返す。
func (e *FetchError) Unwrap() error {
	return e.Err
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// TextSanitizer はフィード由来テキストの平文化インターフェース。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// Fetcher はフィードのHTTPフェッチとエピソード候補への変換を行う。
// gofeedによるパース、SSRF検証、フィード由来テキストのサニタイズを実行する。
type Fetcher struct {
	feedURL   string
	ssrfGuard SSRFValidator
	sanitizer TextSanitizer
	logger    *slog.Logger
	timeout   time.Duration
	maxSize   int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	feedURL string,
	ssrfGuard SSRFValidator,
	sanitizer TextSanitizer,
	logger *slog.Logger,
	timeout time.Duration,
	maxSize int64,
) *Fetcher {
	return &Fetcher{
		feedURL:   feedURL,
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		logger:    logger,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// Fetch はフィードを取得し、エピソード候補の一覧をフィード掲載順で返す。
// フィード全体の失敗（ネットワーク、非200、パース不能）はFetchErrorを返す。
// 個別エントリの不備（enclosure欠落など）はスキップしてログに残し、
// バッチ全体を中断しない。
func (f *Fetcher) Fetch(ctx context.Context) ([]model.ParsedEntry, error) {
	if err := f.ssrfGuard.ValidateURL(f.feedURL); err != nil {
		return nil, &FetchError{URL: f.feedURL, Err: fmt.Errorf("SSRF検証に失敗: %w", err)}
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, &FetchError{URL: f.feedURL, Err: fmt.Errorf("リクエスト作成に失敗: %w", err)}
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: f.feedURL, Err: fmt.Errorf("HTTPリクエスト失敗: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: f.feedURL, Err: fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, &FetchError{URL: f.feedURL, Err: fmt.Errorf("レスポンス読み取り失敗: %w", err)}
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, &FetchError{URL: f.feedURL, Err: fmt.Errorf("フィードのパースに失敗: %w", err)}
	}

	return f.convertItems(parsedFeed.Items), nil
}

// convertItems はgofeedの記事をmodel.ParsedEntryに変換する。
// 音声enclosureを持たないエントリはスキップする。
func (f *Fetcher) convertItems(items []*gofeed.Item) []model.ParsedEntry {
	entries := make([]model.ParsedEntry, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		audioURL := selectAudioEnclosure(item.Enclosures)
		if audioURL == "" {
			f.logger.Warn("音声enclosureのないエントリをスキップします",
				slog.String("feed_url", f.feedURL),
				slog.String("title", item.Title),
				slog.String("guid", item.GUID),
			)
			continue
		}

		entry := model.ParsedEntry{
			Title:      f.sanitizer.SanitizeText(item.Title),
			AudioURL:   audioURL,
			Categories: f.convertCategories(item.Categories),
		}

		// タイトル欠落時のデフォルト値
		if entry.Title == "" {
			entry.Title = "Unknown Sermon"
		}

		// GUIDの設定: 欠落時はenclosure URLで代用する
		entry.GUID = item.GUID
		if entry.GUID == "" {
			entry.GUID = audioURL
		}

		// 公開日時: 欠落は許容し、nilのまま後段に渡す
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			entry.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			entry.PublishedAt = &t
		}

		entries = append(entries, entry)
	}

	return entries
}

// convertCategories はフィードのカテゴリをサニタイズして", "区切りで結合する。
func (f *Fetcher) convertCategories(categories []string) string {
	cleaned := make([]string, 0, len(categories))
	for _, c := range categories {
		s := f.sanitizer.SanitizeText(c)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return "Uncategorized"
	}
	return strings.Join(cleaned, ", ")
}

// selectAudioEnclosure はエントリのenclosureから音声URLを選択する。
// audio/* タイプを優先し、なければURLを持つ先頭のenclosureを使用する。
func selectAudioEnclosure(enclosures []*gofeed.Enclosure) string {
	var fallback string
	for _, enc := range enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "audio/") {
			return enc.URL
		}
		if fallback == "" {
			fallback = enc.URL
		}
	}
	return fallback
}
