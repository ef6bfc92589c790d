// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/moreblogs/internal/auth"
	"github.com/hitoshi/moreblogs/internal/metrics"
	"github.com/hitoshi/moreblogs/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに身元クレームを格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
// auth.TokenServiceが実装する。
type TokenVerifier interface {
	Verify(token string) (model.Identity, error)
}

// AuthFailureRecorder は認証失敗を記録するインターフェース。
type AuthFailureRecorder interface {
	RecordAuthFailure(reason string)
}

// NewAuthMiddleware はCookieのセッショントークンを検証し、
// 身元クレームをリクエストコンテキストに注入するミドルウェアを返す。
// トークンがない場合と不正な場合はそれぞれ異なるメッセージで401を返す。
// 検証はリクエストごとに行い、結果はキャッシュしない。
func NewAuthMiddleware(verifier TokenVerifier, recorder AuthFailureRecorder) func(next http.Handler) http.Handler {
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.Verify(auth.TokenFromRequest(r))
			if err != nil {
				if errors.Is(err, auth.ErrMissingToken) {
					recorder.RecordAuthFailure(metrics.AuthFailureMissing)
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingTokenError())
					return
				}
				recorder.RecordAuthFailure(metrics.AuthFailureInvalid)
				slog.Debug("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
				return
			}

			setRequestEmail(r.Context(), identity.Email())
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
		})
	}
}

// IdentityFromContext はリクエストコンテキストから身元クレームを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok && identity != nil
}

// ContextWithIdentity はコンテキストに身元クレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
