package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Detector は設定されたソースURLをフィードURLに解決する。
// 元の配信サイトはHTMLページの場合があるため、
// 直接フィードでない場合はheadタグのalternateリンクから自動検出する。
type Detector struct {
	ssrfGuard SSRFValidator
	logger    *slog.Logger
	timeout   time.Duration
	maxSize   int64
}

// NewDetector はDetectorの新しいインスタンスを生成する。
func NewDetector(ssrfGuard SSRFValidator, logger *slog.Logger, timeout time.Duration, maxSize int64) *Detector {
	return &Detector{
		ssrfGuard: ssrfGuard,
		logger:    logger,
		timeout:   timeout,
		maxSize:   maxSize,
	}
}

// feedLinkTypes はalternateリンクとしてフィードと認識するtype属性値。
var feedLinkTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
}

// Resolve はソースURLをフィードURLに解決する。
// ソースが直接フィードを返す場合はそのまま返し、
// HTMLページの場合はheadタグからフィードリンクを検出する。
// フィードが見つからない場合はエラーを返す。
func (d *Detector) Resolve(ctx context.Context, sourceURL string) (string, error) {
	if err := d.ssrfGuard.ValidateURL(sourceURL); err != nil {
		return "", fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := d.ssrfGuard.NewSafeClient(d.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("予期しないHTTPステータス: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize))
	if err != nil {
		return "", fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if isDirectFeed(contentType, body) {
		return sourceURL, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(strings.ToLower(mediaType), "html") {
		return "", fmt.Errorf("フィードを検出できませんでした: %s (Content-Type: %s)", sourceURL, contentType)
	}

	feedURL := findFeedLink(body, sourceURL)
	if feedURL == "" {
		return "", fmt.Errorf("HTMLページからフィードリンクを検出できませんでした: %s", sourceURL)
	}

	d.logger.Info("HTMLページからフィードURLを検出しました",
		slog.String("source_url", sourceURL),
		slog.String("feed_url", feedURL),
	)

	return feedURL, nil
}

// isDirectFeed はContent-Typeとボディ先頭からレスポンスがフィードかを判定する。
func isDirectFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	if feedLinkTypes[mediaType] {
		return true
	}

	if mediaType != "text/xml" && mediaType != "application/xml" {
		return false
	}

	// 汎用XMLの場合はルート要素で判定する。先頭4KBで十分。
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))
	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// findFeedLink はHTMLのheadタグからrel="alternate"のフィードリンクを検出し、
// 最初に見つかったものを絶対URLで返す。見つからない場合は空文字列を返す。
func findFeedLink(htmlBody []byte, baseURL string) string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			// bodyに入ったらheadの解析を終了
			if tagName == "body" {
				return ""
			}
			if tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" || !feedLinkTypes[linkType] {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			return baseU.ResolveReference(ref).String()
		}
	}
}
