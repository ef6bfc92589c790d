package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/moreblogs/internal/auth"
	"github.com/hitoshi/moreblogs/internal/middleware"
	"github.com/hitoshi/moreblogs/internal/model"
)

// TokenIssuer はセッショントークンを発行するインターフェース。auth.TokenServiceが実装する。
type TokenIssuer interface {
	Issue(identity model.Identity) (string, error)
}

// AuthHandler はトークン発行とログアウトのHTTPハンドラー。
type AuthHandler struct {
	issuer   TokenIssuer
	cookies  auth.CookiePolicy
	recorder AuthEventRecorder
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(issuer TokenIssuer, cookies auth.CookiePolicy, recorder AuthEventRecorder) *AuthHandler {
	return &AuthHandler{
		issuer:   issuer,
		cookies:  cookies,
		recorder: recorderOrNop(recorder),
	}
}

type successResponse struct {
	Success bool `json:"success"`
}

// IssueToken はリクエストボディの身元クレームからトークンを発行し、Cookieに設定する。
// POST /jwt
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		handleStoreError(w, err, "issue token", "Failed to issue token.")
		return
	}

	token, err := h.issuer.Issue(model.Identity(doc))
	if err != nil {
		slog.Error("failed to sign token", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, "Failed to issue token.")
		return
	}

	h.recorder.RecordTokenIssued()
	http.SetCookie(w, h.cookies.TokenCookie(token))
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Logout はトークンCookieを削除する。トークンの検証は行わない。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookies.ClearCookie())
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
