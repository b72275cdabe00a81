// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに返す原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, download, system
	Action   string // クライアント向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeInvalidDate     = "INVALID_DATE"
	ErrCodeSermonNotFound  = "SERMON_NOT_FOUND"
	ErrCodeAudioNotReady   = "AUDIO_NOT_READY"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeDownloadFailed  = "DOWNLOAD_FAILED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "APIキーが無効または未指定です。",
		Category: "auth",
		Action:   "Basic認証のパスワードまたはX-API-KeyヘッダーにAPIキーを指定してください。",
	}
}

// NewInvalidDateError は日付パラメータが不正な場合のエラーを生成する。
func NewInvalidDateError(date string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付パラメータです: %q", date),
		Category: "validation",
		Action:   "dateパラメータはYYYY-MM-DD形式で指定してください。",
	}
}

// NewSermonNotFoundError は説教が見つからない場合のエラーを生成する。
func NewSermonNotFoundError(sermonID string) *APIError {
	return &APIError{
		Code:     ErrCodeSermonNotFound,
		Message:  fmt.Sprintf("指定された説教が見つかりません: %s", sermonID),
		Category: "feed",
		Action:   "説教IDを確認してください。",
	}
}

// NewAudioNotReadyError は音声が未ダウンロードの場合のエラーを生成する。
func NewAudioNotReadyError(sermonID string) *APIError {
	return &APIError{
		Code:     ErrCodeAudioNotReady,
		Message:  fmt.Sprintf("指定された説教の音声はまだダウンロードされていません: %s", sermonID),
		Category: "download",
		Action:   "次回の同期サイクル完了後に再度お試しください。",
	}
}

// NewFetchFailedError はフィードフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("フィードの取得に失敗しました: %s", reason),
		Category: "feed",
		Action:   "フィードURLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewDownloadFailedError は音声ダウンロード失敗エラーを生成する。
func NewDownloadFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeDownloadFailed,
		Message:  fmt.Sprintf("音声のダウンロードに失敗しました: %s", reason),
		Category: "download",
		Action:   "次回の同期サイクルで自動的に再試行されます。",
	}
}
