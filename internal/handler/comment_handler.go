package handler

import (
	"net/http"

	"github.com/hitoshi/moreblogs/internal/repository"
	"github.com/hitoshi/moreblogs/internal/security"
)

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	comments  repository.DocumentRepository
	sanitizer security.ContentSanitizerService
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(comments repository.DocumentRepository, sanitizer security.ContentSanitizerService) *CommentHandler {
	return &CommentHandler{comments: comments, sanitizer: sanitizer}
}

// AddComment はコメントを保存する。
// POST /addComment
func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		handleStoreError(w, err, "add comment", "Failed to add Comment.")
		return
	}

	if _, err := h.comments.Insert(r.Context(), h.sanitizer.SanitizeDocument(doc)); err != nil {
		handleStoreError(w, err, "add comment", "Failed to add Comment.")
		return
	}
	writeText(w, http.StatusCreated, "Comment added")
}

// ListComments はクエリに一致するコメント一覧を返す。
// GET /comments
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	listDocuments(w, r, h.comments, "find comments", "Failed to find Comments.")
}

// listDocuments はURLクエリパラメータで絞り込んだドキュメント一覧を返す。
func listDocuments(w http.ResponseWriter, r *http.Request, repo repository.DocumentRepository, op, message string) {
	q, err := parseQuery(r)
	if err != nil {
		handleStoreError(w, err, op, message)
		return
	}

	docs, err := repo.Find(r.Context(), q)
	if err != nil {
		handleStoreError(w, err, op, message)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
