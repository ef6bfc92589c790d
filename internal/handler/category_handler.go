package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/moreblogs/internal/middleware"
	"github.com/hitoshi/moreblogs/internal/model"
	"github.com/hitoshi/moreblogs/internal/repository"
)

// CategoryHandler はカテゴリのHTTPハンドラー。
type CategoryHandler struct {
	categories repository.DocumentRepository
	syncer     CategorySyncer
}

// NewCategoryHandler はCategoryHandlerを生成する。
func NewCategoryHandler(categories repository.DocumentRepository, syncer CategorySyncer) *CategoryHandler {
	return &CategoryHandler{categories: categories, syncer: syncer}
}

type updateCategoryRequest struct {
	Category string `json:"category"`
}

// UpdateCategory はカテゴリのtotalBlogsをblogsコレクションから再計算する。
// カテゴリレコードが存在しない場合は何も作成しない。
// PUT /updateCategory
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req updateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("body must be a JSON object"))
		return
	}

	name := strings.TrimSpace(req.Category)
	if name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("category is required"))
		return
	}

	if err := h.syncer.Sync(r.Context(), name); err != nil {
		slog.Error("failed to update category",
			slog.String("category", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w, "Failed to update Category.")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// ListCategories はクエリに一致するカテゴリ一覧を返す。
// GET /categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	listDocuments(w, r, h.categories, "find categories", "Failed to find Categories.")
}

// GetCategory は指定IDのカテゴリを返す。存在しない場合はnullを返す。
// GET /category/{id}
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	getDocument(w, r, h.categories, "find category", "Failed to find Category.")
}
