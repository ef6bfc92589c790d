package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/moreblogs/internal/middleware"
	"github.com/hitoshi/moreblogs/internal/model"
	"github.com/hitoshi/moreblogs/internal/query"
	"github.com/hitoshi/moreblogs/internal/repository"
)

// --- モック定義 ---

type mockDocumentStore struct {
	findFn       func(ctx context.Context, q *query.Query) ([]model.Document, error)
	findByIDFn   func(ctx context.Context, id string) (model.Document, error)
	countFn      func(ctx context.Context, f query.Filter) (int64, error)
	insertFn     func(ctx context.Context, doc model.Document) (string, error)
	updateOneFn  func(ctx context.Context, id string, f query.Filter, fields model.Document) (repository.UpdateResult, error)
	deleteByIDFn func(ctx context.Context, id string) (int64, error)
}

func (m *mockDocumentStore) Find(ctx context.Context, q *query.Query) ([]model.Document, error) {
	if m.findFn != nil {
		return m.findFn(ctx, q)
	}
	return []model.Document{}, nil
}

func (m *mockDocumentStore) FindByID(ctx context.Context, id string) (model.Document, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockDocumentStore) Count(ctx context.Context, f query.Filter) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, f)
	}
	return 0, nil
}

func (m *mockDocumentStore) Insert(ctx context.Context, doc model.Document) (string, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, doc)
	}
	return "c0a80121-7ac0-4e1c-9c3b-1f2d3e4f5a6b", nil
}

func (m *mockDocumentStore) UpdateOne(ctx context.Context, id string, f query.Filter, fields model.Document) (repository.UpdateResult, error) {
	if m.updateOneFn != nil {
		return m.updateOneFn(ctx, id, f, fields)
	}
	return repository.UpdateResult{}, nil
}

func (m *mockDocumentStore) DeleteByID(ctx context.Context, id string) (int64, error) {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return 0, nil
}

type mockCategorySyncer struct {
	mu     sync.Mutex
	synced []string
	err    error
}

func (m *mockCategorySyncer) Sync(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, name)
	return m.err
}

type mockTokenIssuer struct {
	issueFn func(identity model.Identity) (string, error)
}

func (m *mockTokenIssuer) Issue(identity model.Identity) (string, error) {
	if m.issueFn != nil {
		return m.issueFn(identity)
	}
	return "signed-token", nil
}

type mockAuthEventRecorder struct {
	issued   int
	failures []string
}

func (m *mockAuthEventRecorder) RecordTokenIssued() {
	m.issued++
}

func (m *mockAuthEventRecorder) RecordAuthFailure(reason string) {
	m.failures = append(m.failures, reason)
}

// --- ヘルパー ---

// withIdentity は認証ミドルウェアを通過した状態のリクエストを返す。
func withIdentity(r *http.Request, email string) *http.Request {
	identity := model.Identity{"email": email, "name": "Test User"}
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), identity))
}

// withURLParam はchiのパスパラメータを設定したリクエストを返す。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
