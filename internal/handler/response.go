package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/moreblogs/internal/metrics"
	"github.com/hitoshi/moreblogs/internal/middleware"
	"github.com/hitoshi/moreblogs/internal/model"
	"github.com/hitoshi/moreblogs/internal/query"
	"github.com/hitoshi/moreblogs/internal/repository"
)

// maxBodyBytes はリクエストボディの上限サイズ。
const maxBodyBytes = 1 << 20

// AuthEventRecorder はトークン発行と認可失敗を記録するインターフェース。
// metrics.Collectorが実装する。
type AuthEventRecorder interface {
	RecordTokenIssued()
	RecordAuthFailure(reason string)
}

func recorderOrNop(r AuthEventRecorder) AuthEventRecorder {
	if r == nil {
		return metrics.Nop{}
	}
	return r
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeText はプレーンテキストのレスポンスを書き込む。
func writeText(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	io.WriteString(w, message)
}

// writeAPIErrorResponse はAPIErrorを統一フォーマットで書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeForbidden は所有者不一致の403を書き込み、認可失敗として記録する。
func writeForbidden(w http.ResponseWriter, recorder AuthEventRecorder) {
	recorder.RecordAuthFailure(metrics.AuthFailureForbidden)
	writeAPIErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
}

// handleStoreError はストア操作のエラーをHTTPレスポンスに変換する。
// クエリ・IDの形式エラーは400、それ以外はログに記録したうえで固定メッセージの500を返す。
func handleStoreError(w http.ResponseWriter, err error, op, message string) {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
	case errors.Is(err, query.ErrInvalidQuery):
		reason := strings.TrimPrefix(err.Error(), query.ErrInvalidQuery.Error()+": ")
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidQueryError(reason))
	case errors.Is(err, repository.ErrInvalidID):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(""))
	default:
		slog.Error("database operation failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w, message)
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingToken, model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeInvalidQuery, model.ErrCodeInvalidID, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeDocument はリクエストボディをJSONオブジェクトとして読み込む。
// 数値は精度を保つためjson.Numberのまま保持する。
func decodeDocument(w http.ResponseWriter, r *http.Request) (model.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var doc model.Document
	if err := dec.Decode(&doc); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.NewInvalidRequestError("body too large")
		}
		return nil, model.NewInvalidRequestError("body must be a JSON object")
	}
	if doc == nil {
		return nil, model.NewInvalidRequestError("body must be a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, model.NewInvalidRequestError("unexpected data after JSON object")
	}
	return doc, nil
}

// parseQuery はURLクエリパラメータを検証済みのQueryに変換する。
func parseQuery(r *http.Request) (*query.Query, error) {
	return query.FromValues(r.URL.Query())
}

// requireIdentity は認証ミドルウェアが注入した身元クレームを取得する。
// 認証ミドルウェアを経由していない場合は401を書き込みfalseを返す。
func requireIdentity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewMissingTokenError())
		return nil, false
	}
	return identity, true
}
