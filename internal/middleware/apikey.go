package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sermonsync/internal/model"
)

// NewAPIKeyMiddleware は静的APIキーによる認証ミドルウェアを生成する。
// Basic認証のパスワード部、またはX-API-Keyヘッダーのいずれかで
// キーを受け付ける。比較は定数時間で行う。
// 認証に失敗したリクエストは、ストアやファイルシステムへの
// アクセスに到達する前に401で拒否される。
func NewAPIKeyMiddleware(apiKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !credentialMatches(r, apiKey) {
				slog.Warn("認証に失敗したリクエストを拒否しました",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				w.Header().Set("WWW-Authenticate", `Basic realm="sermonsync"`)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// credentialMatches はリクエストに含まれる資格情報が設定値と一致するかを返す。
func credentialMatches(r *http.Request, apiKey string) bool {
	// Basic認証のパスワード部（元の配信クライアントが使用する形式）
	if _, password, ok := r.BasicAuth(); ok {
		if constantTimeEquals(password, apiKey) {
			return true
		}
	}

	// X-API-Keyヘッダー
	if header := r.Header.Get("X-API-Key"); header != "" {
		return constantTimeEquals(header, apiKey)
	}

	return false
}

// constantTimeEquals は2つの文字列を定数時間で比較する。
func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
