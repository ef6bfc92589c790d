package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/moreblogs/internal/auth"
	"github.com/hitoshi/moreblogs/internal/model"
	"github.com/hitoshi/moreblogs/internal/query"
	"github.com/hitoshi/moreblogs/internal/repository"
	"github.com/hitoshi/moreblogs/internal/security"
)

// CategorySyncer はカテゴリのブログ数を再計算するインターフェース。
// category.Synchronizerが実装する。
type CategorySyncer interface {
	Sync(ctx context.Context, name string) error
}

// BlogHandler はブログのHTTPハンドラー。
type BlogHandler struct {
	blogs     repository.DocumentRepository
	syncer    CategorySyncer
	sanitizer security.ContentSanitizerService
	recorder  AuthEventRecorder
}

// NewBlogHandler はBlogHandlerを生成する。
func NewBlogHandler(
	blogs repository.DocumentRepository,
	syncer CategorySyncer,
	sanitizer security.ContentSanitizerService,
	recorder AuthEventRecorder,
) *BlogHandler {
	return &BlogHandler{
		blogs:     blogs,
		syncer:    syncer,
		sanitizer: sanitizer,
		recorder:  recorderOrNop(recorder),
	}
}

// AddBlog はブログを作成する。author_emailは認証済みユーザーと一致する必要がある。
// POST /addBlog
func (h *BlogHandler) AddBlog(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	doc, err := decodeDocument(w, r)
	if err != nil {
		handleStoreError(w, err, "add blog", "Failed to add Blog.")
		return
	}

	if err := auth.CheckOwner(identity, doc.String(model.FieldAuthorEmail)); err != nil {
		writeForbidden(w, h.recorder)
		return
	}

	doc = h.sanitizer.SanitizeDocument(doc)
	if _, err := h.blogs.Insert(r.Context(), doc); err != nil {
		handleStoreError(w, err, "add blog", "Failed to add Blog.")
		return
	}

	h.syncCategories(r.Context(), doc.String(model.FieldCategory))
	writeText(w, http.StatusCreated, "Blog added")
}

// ListBlogs はクエリに一致するブログ一覧を返す。
// GET /blogs, GET /myBlogs
func (h *BlogHandler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	listDocuments(w, r, h.blogs, "find blogs", "Failed to find Blogs.")
}

// CountBlogs はフィルタに一致するブログ数を整数で返す。
// GET /blog-count
func (h *BlogHandler) CountBlogs(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		handleStoreError(w, err, "count blogs", "Failed to count Blogs.")
		return
	}

	n, err := h.blogs.Count(r.Context(), q.Filter)
	if err != nil {
		handleStoreError(w, err, "count blogs", "Failed to count Blogs.")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// GetBlog は指定IDのブログを返す。存在しない場合はnullを返す。
// GET /blog/{id}
func (h *BlogHandler) GetBlog(w http.ResponseWriter, r *http.Request) {
	getDocument(w, r, h.blogs, "find blog", "Failed to find Blog.")
}

// UpdateBlog はボディの_idで指定したブログにフィールドを設定する。
// 保存済みのauthor_emailが認証済みユーザーと一致するブログのみ更新する。
// PUT /updateBlog
func (h *BlogHandler) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	doc, err := decodeDocument(w, r)
	if err != nil {
		handleStoreError(w, err, "update blog", "Failed to update Blog.")
		return
	}

	if err := auth.CheckOwner(identity, doc.String(model.FieldAuthorEmail)); err != nil {
		writeForbidden(w, h.recorder)
		return
	}

	id := doc.ID()
	if id == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("_id is required"))
		return
	}

	previous, err := h.blogs.FindByID(r.Context(), id)
	if err != nil {
		handleIDError(w, err, id, "update blog", "Failed to update Blog.")
		return
	}

	fields := h.sanitizer.SanitizeDocument(doc.Without(model.IDField))
	owner := query.Filter{}.Eq(model.FieldAuthorEmail, identity.Email())
	result, err := h.blogs.UpdateOne(r.Context(), id, owner, fields)
	if err != nil {
		handleIDError(w, err, id, "update blog", "Failed to update Blog.")
		return
	}

	if result.ModifiedCount > 0 {
		h.syncCategories(r.Context(), previous.String(model.FieldCategory), fields.String(model.FieldCategory))
	}
	writeJSON(w, http.StatusOK, result)
}

// syncCategories はブログの書き込み後にカテゴリのブログ数を同期する。
// 失敗してもリクエストは失敗させず、ログに記録する。次回のworker実行で補正される。
func (h *BlogHandler) syncCategories(ctx context.Context, names ...string) {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if err := h.syncer.Sync(ctx, name); err != nil {
			slog.Warn("category sync after blog write failed",
				slog.String("category", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// getDocument は{id}パスパラメータのドキュメントを返す。
// 存在しない場合はエラーではなくnullを返す。
func getDocument(w http.ResponseWriter, r *http.Request, repo repository.DocumentRepository, op, message string) {
	id := chi.URLParam(r, "id")
	doc, err := repo.FindByID(r.Context(), id)
	if err != nil {
		handleIDError(w, err, id, op, message)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleIDError はID形式エラーを400に、それ以外をhandleStoreErrorに委ねる。
func handleIDError(w http.ResponseWriter, err error, id, op, message string) {
	if errors.Is(err, repository.ErrInvalidID) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError(id))
		return
	}
	handleStoreError(w, err, op, message)
}
