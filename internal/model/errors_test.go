package model

import (
	"strings"
	"testing"
)

func TestAPIError_ImplementsError(t *testing.T) {
	var err error = NewUnauthorizedError()
	if !strings.Contains(err.Error(), ErrCodeUnauthorized) {
		t.Errorf("Error() = %q, want contains %q", err.Error(), ErrCodeUnauthorized)
	}
}

func TestErrorConstructors_CodeAndCategory(t *testing.T) {
	tests := []struct {
		name         string
		err          *APIError
		wantCode     string
		wantCategory string
	}{
		{"認証エラー", NewUnauthorizedError(), ErrCodeUnauthorized, "auth"},
		{"日付不正", NewInvalidDateError("2025/01/12"), ErrCodeInvalidDate, "validation"},
		{"説教未発見", NewSermonNotFoundError("s1"), ErrCodeSermonNotFound, "feed"},
		{"音声未準備", NewAudioNotReadyError("s1"), ErrCodeAudioNotReady, "download"},
		{"フェッチ失敗", NewFetchFailedError("timeout"), ErrCodeFetchFailed, "feed"},
		{"ダウンロード失敗", NewDownloadFailedError("404"), ErrCodeDownloadFailed, "download"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", tt.err.Category, tt.wantCategory)
			}
			if tt.err.Message == "" {
				t.Error("Messageが空です")
			}
			if tt.err.Action == "" {
				t.Error("Actionが空です")
			}
		})
	}
}

func TestSermon_Downloaded(t *testing.T) {
	s := &Sermon{}
	if s.Downloaded() {
		t.Error("FilePathがnilの説教でDownloaded() = true")
	}

	empty := ""
	s.FilePath = &empty
	if s.Downloaded() {
		t.Error("FilePathが空文字の説教でDownloaded() = true")
	}

	p := "/data/audiofiles/s1.mp3"
	s.FilePath = &p
	if !s.Downloaded() {
		t.Error("FilePath設定済みの説教でDownloaded() = false")
	}
}
