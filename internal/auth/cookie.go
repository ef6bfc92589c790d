package auth

import (
	"net/http"
)

// CookieName はセッショントークンを格納するCookie名。
const CookieName = "token"

// CookiePolicy は実行環境ごとのCookie属性。
// 本番ではフロントエンドとAPIが別オリジンのため、クロスサイト送信を許可する。
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
}

// NewCookiePolicy は実行環境に応じたCookiePolicyを返す。
// 本番: Secure + SameSite=None、開発: SameSite=Strict。
func NewCookiePolicy(production bool) CookiePolicy {
	if production {
		return CookiePolicy{Secure: true, SameSite: http.SameSiteNoneMode}
	}
	return CookiePolicy{Secure: false, SameSite: http.SameSiteStrictMode}
}

// TokenCookie はトークンを格納するHttpOnly Cookieを生成する。
func (p CookiePolicy) TokenCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TokenLifetime.Seconds()),
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}

// ClearCookie はトークンCookieを削除するCookieを生成する。
// 属性は発行時と同じにしないとブラウザが削除しない。
func (p CookiePolicy) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}

// TokenFromRequest はリクエストのCookieからトークンを取り出す。Cookieがない場合は空文字列。
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
