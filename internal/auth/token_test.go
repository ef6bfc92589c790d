package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/moreblogs/internal/model"
)

const testSecret = "test-access-secret"

func newTestService(now time.Time) *TokenService {
	s := NewTokenService(testSecret)
	s.now = func() time.Time { return now }
	return s
}

// 発行したトークンを検証すると元のクレームが返ることを検証
func TestTokenService_IssueVerify_RoundTrip(t *testing.T) {
	s := newTestService(time.Now())

	claims := []model.Identity{
		{"email": "a@x.com"},
		{"email": "a@x.com", "name": "Atiq", "photo": "https://example.com/a.png"},
		{"name": "no email"},
		{},
		// 予約名のクレームも形を問わずそのまま戻る
		{"email": "a@x.com", "nbf": "soon"},
		{"email": "a@x.com", "nbf": float64(time.Now().Add(24 * time.Hour).Unix())},
		{"email": "a@x.com", "iat": "yesterday", "exp": float64(1), "_client": "x"},
	}

	for _, c := range claims {
		tok, err := s.Issue(c)
		require.NoError(t, err)

		got, err := s.Verify(tok)
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
}

// 署名されるiat/expはクライアントの値ではなくサーバーの値であることを検証
func TestTokenService_Issue_OverridesRegisteredClaims(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestService(now)

	tok, err := s.Issue(model.Identity{"email": "a@x.com", "exp": float64(now.Add(100 * 365 * 24 * time.Hour).Unix())})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)

	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	require.Equal(t, now.Add(TokenLifetime).Unix(), exp.Unix())
}

// クライアントのnbfはトップレベルに置かれず、発行直後から検証に通ることを検証
func TestTokenService_Issue_StashesNotBefore(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestService(now)

	tok, err := s.Issue(model.Identity{"email": "a@x.com", "nbf": float64(now.Add(time.Hour).Unix())})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)
	require.NotContains(t, claims, "nbf")

	got, err := s.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", got.Email())
}

func TestTokenService_Verify_MissingToken(t *testing.T) {
	s := newTestService(time.Now())

	_, err := s.Verify("")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestTokenService_Verify_InvalidToken(t *testing.T) {
	now := time.Now()
	s := newTestService(now)

	tok, err := s.Issue(model.Identity{"email": "a@x.com"})
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	other := NewTokenService("another-secret")
	otherTok, err := other.Issue(model.Identity{"email": "a@x.com"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "ゴミ文字列", token: "not-a-jwt"},
		{name: "署名の改ざん", token: parts[0] + "." + parts[1] + ".AAAA"},
		{name: "ペイロードの改ざん", token: parts[0] + ".eyJlbWFpbCI6ImJAeC5jb20ifQ." + parts[2]},
		{name: "別の鍵で署名", token: otherTok},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Verify(tt.token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

// 3日経過したトークンは無効になることを検証
func TestTokenService_Verify_Expired(t *testing.T) {
	issuedAt := time.Now().Add(-TokenLifetime - time.Minute)
	tok, err := newTestService(issuedAt).Issue(model.Identity{"email": "a@x.com"})
	require.NoError(t, err)

	_, err = NewTokenService(testSecret).Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	// 期限直前はまだ有効
	tok, err = newTestService(time.Now().Add(-TokenLifetime + time.Minute)).Issue(model.Identity{"email": "a@x.com"})
	require.NoError(t, err)
	_, err = NewTokenService(testSecret).Verify(tok)
	require.NoError(t, err)
}

// alg=noneのトークンを受け付けないことを検証
func TestTokenService_Verify_RejectsNoneAlgorithm(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"email": "a@x.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenService(testSecret).Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// 有効期限のないトークンを受け付けないことを検証
func TestTokenService_Verify_RequiresExpiration(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "a@x.com"})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewTokenService(testSecret).Verify(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestCheckOwner(t *testing.T) {
	tests := []struct {
		name     string
		identity model.Identity
		owner    string
		wantErr  bool
	}{
		{name: "一致", identity: model.Identity{"email": "a@x.com"}, owner: "a@x.com"},
		{name: "不一致", identity: model.Identity{"email": "a@x.com"}, owner: "b@x.com", wantErr: true},
		{name: "所有者が空", identity: model.Identity{"email": "a@x.com"}, owner: "", wantErr: true},
		{name: "クレームにemailがない", identity: model.Identity{"name": "x"}, owner: "a@x.com", wantErr: true},
		{name: "両方とも空", identity: model.Identity{}, owner: "", wantErr: true},
		{name: "emailが文字列でない", identity: model.Identity{"email": 1}, owner: "1", wantErr: true},
		{name: "大文字小文字は区別する", identity: model.Identity{"email": "A@x.com"}, owner: "a@x.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOwner(tt.identity, tt.owner)
			if tt.wantErr {
				require.True(t, errors.Is(err, ErrForbidden))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCookiePolicy(t *testing.T) {
	prod := NewCookiePolicy(true)
	c := prod.TokenCookie("tok")
	require.Equal(t, CookieName, c.Name)
	require.Equal(t, "tok", c.Value)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteNoneMode, c.SameSite)
	require.Equal(t, 3*24*60*60, c.MaxAge)

	dev := NewCookiePolicy(false)
	c = dev.TokenCookie("tok")
	require.False(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)

	cleared := dev.ClearCookie()
	require.Equal(t, CookieName, cleared.Name)
	require.Empty(t, cleared.Value)
	require.Negative(t, cleared.MaxAge)
	require.True(t, cleared.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cleared.SameSite)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: "abc"})
	require.Equal(t, "abc", TokenFromRequest(r))
}
