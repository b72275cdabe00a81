// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sermonsync/internal/middleware"
	"github.com/hitoshi/sermonsync/internal/model"
)

// dateParamLayout はdateクエリパラメータの期待フォーマット。
const dateParamLayout = "2006-01-02"

// SermonReader は説教ハンドラーが必要とする読み取り専用ストアのインターフェース。
// repository.SermonRepositoryがこれを満たす。
type SermonReader interface {
	FindByID(ctx context.Context, id string) (*model.Sermon, error)
	ListFetchedSince(ctx context.Context, since time.Time) ([]*model.Sermon, error)
}

// SermonHandler は説教一覧と音声ダウンロードのHTTPハンドラー。
type SermonHandler struct {
	store SermonReader
}

// NewSermonHandler はSermonHandlerを生成する。
func NewSermonHandler(store SermonReader) *SermonHandler {
	return &SermonHandler{store: store}
}

// sermonResponse は説教一覧の1件分のレスポンス。
type sermonResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Categories      string     `json:"categories"`
	AudioURL        string     `json:"audio_url"`
	PublishedAt     *time.Time `json:"published_at"`
	IsDateEstimated bool       `json:"is_date_estimated"`
	FetchedAt       time.Time  `json:"fetched_at"`
	Downloaded      bool       `json:"downloaded"`
	DownloadURL     string     `json:"download_url"`
}

// ListSermons はフェッチ日時が指定日以降の説教一覧を新しい順で返す。
// GET /sermons?date=YYYY-MM-DD
// dateパラメータの欠落・不正は400を返す。
func (h *SermonHandler) ListSermons(w http.ResponseWriter, r *http.Request) {
	dateParam := strings.TrimSpace(r.URL.Query().Get("date"))
	since, err := time.ParseInLocation(dateParamLayout, dateParam, time.Local)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(dateParam))
		return
	}

	sermons, err := h.store.ListFetchedSince(r.Context(), since)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	baseURL := requestBaseURL(r)
	resp := make([]sermonResponse, 0, len(sermons))
	for _, s := range sermons {
		resp = append(resp, sermonResponse{
			ID:              s.ID,
			Title:           s.Title,
			Categories:      s.Categories,
			AudioURL:        s.AudioURL,
			PublishedAt:     s.PublishedAt,
			IsDateEstimated: s.IsDateEstimated,
			FetchedAt:       s.FetchedAt,
			Downloaded:      s.Downloaded(),
			DownloadURL:     baseURL + "/download/" + s.ID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DownloadSermon は説教の音声ファイルを配信する。
// GET /download/{id}
// 未知のIDは404、音声が未ダウンロードまたはディスク上に存在しない場合は
// 409（not ready）を返す。内部のファイルパスはレスポンスに含めない。
func (h *SermonHandler) DownloadSermon(w http.ResponseWriter, r *http.Request) {
	sermonID := chi.URLParam(r, "id")

	sermon, err := h.store.FindByID(r.Context(), sermonID)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	if sermon == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSermonNotFoundError(sermonID))
		return
	}

	if !sermon.Downloaded() {
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewAudioNotReadyError(sermonID))
		return
	}

	filePath := *sermon.FilePath
	if _, err := os.Stat(filePath); err != nil {
		// 行は存在するがファイルが消えている場合もnot readyとして扱う。
		// 次の同期サイクルで再ダウンロードされる。
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewAudioNotReadyError(sermonID))
		return
	}

	fileName := filepath.Base(filePath)
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	http.ServeFile(w, r, filePath)
}

// requestBaseURL はdownload_url構築用にリクエストのベースURLを導出する。
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}
