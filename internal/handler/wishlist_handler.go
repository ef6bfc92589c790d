package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/moreblogs/internal/auth"
	"github.com/hitoshi/moreblogs/internal/model"
	"github.com/hitoshi/moreblogs/internal/repository"
)

// WishlistHandler はウィッシュリストのHTTPハンドラー。
type WishlistHandler struct {
	wishlist repository.DocumentRepository
	recorder AuthEventRecorder
}

// NewWishlistHandler はWishlistHandlerを生成する。
func NewWishlistHandler(wishlist repository.DocumentRepository, recorder AuthEventRecorder) *WishlistHandler {
	return &WishlistHandler{wishlist: wishlist, recorder: recorderOrNop(recorder)}
}

type deleteResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// AddToWishlist はウィッシュリストに項目を追加する。
// POST /addToWishlist
func (h *WishlistHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	doc, err := decodeDocument(w, r)
	if err != nil {
		handleStoreError(w, err, "add to wishlist", "Failed to add to Wishlist.")
		return
	}

	if _, err := h.wishlist.Insert(r.Context(), doc); err != nil {
		handleStoreError(w, err, "add to wishlist", "Failed to add to Wishlist.")
		return
	}
	writeText(w, http.StatusCreated, "Added to Wishlist")
}

// ListWishlist は認証済みユーザーのウィッシュリストを返す。
// フィルタのuser_emailが認証済みユーザーと一致しない場合は403を返す。
// GET /Wishlist
func (h *WishlistHandler) ListWishlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		handleStoreError(w, err, "find wishlist", "Failed to find Wishlist.")
		return
	}

	// ?user_email=... はフィルタの省略形として扱う
	if email := r.URL.Query().Get(model.FieldUserEmail); email != "" {
		q.Filter = q.Filter.Eq(model.FieldUserEmail, email)
	}

	owner, _ := q.Filter.EqualString(model.FieldUserEmail)
	if err := auth.CheckOwner(identity, owner); err != nil {
		writeForbidden(w, h.recorder)
		return
	}

	docs, err := h.wishlist.Find(r.Context(), q)
	if err != nil {
		handleStoreError(w, err, "find wishlist", "Failed to find Wishlist.")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// DeleteWishlist は指定IDの項目を削除し、削除件数を返す。
// DELETE /deleteWishlist/{id}
func (h *WishlistHandler) DeleteWishlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.wishlist.DeleteByID(r.Context(), id)
	if err != nil {
		handleIDError(w, err, id, "delete wishlist", "Failed to delete from Wishlist.")
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{DeletedCount: n})
}
