package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/hitoshi/moreblogs/internal/model"
)

// NewOriginCheckMiddleware は状態変更リクエストの送信元オリジンを検証するミドルウェアを返す。
// 本番ではトークンCookieがSameSite=Noneで送られるため、Cookieだけでは
// クロスサイトからの書き込みを防げない。
// Origin（なければReferer）が許可リスト外の場合は403を返す。
// どちらのヘッダーもないリクエスト（ブラウザ以外のクライアント）は通過させる。
func NewOriginCheckMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			origin := requestOrigin(r)
			if origin != "" && !slices.Contains(allowedOrigins, origin) {
				slog.Warn("cross-site request rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", origin),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestOrigin はOriginヘッダー、なければRefererのスキームとホストを返す。
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "null"
	}
	return u.Scheme + "://" + u.Host
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
