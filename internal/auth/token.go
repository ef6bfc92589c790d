// Package auth はセッショントークンの発行・検証と、レコード所有者の認可チェックを提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/moreblogs/internal/model"
)

// TokenLifetime はセッショントークンの有効期間。
const TokenLifetime = 3 * 24 * time.Hour

var (
	// ErrMissingToken はトークンが提示されなかった場合のエラー。
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken は署名の検証に失敗した、または期限切れのトークンのエラー。
	ErrInvalidToken = errors.New("invalid token")
	// ErrForbidden は認証済みユーザーがレコードの所有者でない場合のエラー。
	ErrForbidden = errors.New("forbidden")
)

// 発行時にサーバーが管理する登録済みクレーム。
// nbfはjwtライブラリが常に検証するため、クライアントの値をそのまま置けない。
const (
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
	claimNotBefore = "nbf"
	// claimStash はクライアントが送った予約名のクレームを退避する。
	claimStash = "_client"
)

// isReservedClaim はクライアントの値をトップレベルに置けないクレーム名かを返す。
func isReservedClaim(name string) bool {
	switch name {
	case claimIssuedAt, claimExpiresAt, claimNotBefore, claimStash:
		return true
	}
	return false
}

// TokenService はHS256で署名したセッショントークンを発行・検証する。
// サーバーは失効リストを持たず、期限内のトークンはすべて有効として扱う。
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue は身元クレームに発行時刻と有効期限を付与して署名する。
// クレームの形は問わない。iat/exp/nbfなど予約名のクレームは退避して署名し、Verifyで元に戻す。
func (s *TokenService) Issue(identity model.Identity) (string, error) {
	now := s.now()

	claims := jwt.MapClaims{}
	stash := map[string]any{}
	for k, v := range identity {
		if isReservedClaim(k) {
			stash[k] = v
			continue
		}
		claims[k] = v
	}
	if len(stash) > 0 {
		claims[claimStash] = stash
	}
	claims[claimIssuedAt] = jwt.NewNumericDate(now)
	claims[claimExpiresAt] = jwt.NewNumericDate(now.Add(TokenLifetime))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、身元クレームを返す。
// 返すクレームはIssueに渡したものと同じで、サーバーが付与したiat/expは含まない。
func (s *TokenService) Verify(token string) (model.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	identity := make(model.Identity, len(claims))
	for k, v := range claims {
		if isReservedClaim(k) {
			continue
		}
		identity[k] = v
	}
	if stash, ok := claims[claimStash].(map[string]any); ok {
		for k, v := range stash {
			identity[k] = v
		}
	}
	return identity, nil
}

// CheckOwner は認証済みクレームのemailとレコード所有者のemailを比較する。
// どちらかが空の場合も一致しないものとして扱う。
func CheckOwner(identity model.Identity, ownerEmail string) error {
	email := identity.Email()
	if email == "" || ownerEmail == "" || email != ownerEmail {
		return ErrForbidden
	}
	return nil
}
