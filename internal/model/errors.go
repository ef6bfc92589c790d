// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError はクライアントに返す統一エラーフォーマットを表す。
// 内部エラーの詳細は含めず、ログにのみ記録する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingToken   = "MISSING_TOKEN"
	ErrCodeInvalidToken   = "INVALID_TOKEN"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeInvalidQuery   = "INVALID_QUERY"
	ErrCodeInvalidID      = "INVALID_ID"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeRateLimited    = "RATE_LIMITED"
)

// NewMissingTokenError はトークン未提示エラーを生成する。
func NewMissingTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingToken,
		Message:  "Unauthorize Access, Login First!",
		Category: "auth",
	}
}

// NewInvalidTokenError は署名不正または期限切れトークンのエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Unauthorize Access, Login Again!",
		Category: "auth",
	}
}

// NewForbiddenError は認証済みユーザーとレコード所有者が一致しない場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Forbidden Access!",
		Category: "auth",
	}
}

// NewInvalidQueryError はクエリパラメータ（query/sort/projection/limit/skip）が不正な場合のエラーを生成する。
func NewInvalidQueryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("Invalid query: %s", reason),
		Category: "validation",
	}
}

// NewInvalidIDError はドキュメントIDの形式が不正な場合のエラーを生成する。
func NewInvalidIDError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidID,
		Message:  fmt.Sprintf("Invalid document id: %s", id),
		Category: "validation",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
	}
}
