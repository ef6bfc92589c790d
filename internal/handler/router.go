package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/moreblogs/internal/auth"
	"github.com/hitoshi/moreblogs/internal/metrics"
	"github.com/hitoshi/moreblogs/internal/middleware"
	"github.com/hitoshi/moreblogs/internal/repository"
	"github.com/hitoshi/moreblogs/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Production         bool
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	TokenVerifier      middleware.TokenVerifier

	// 認証
	TokenIssuer TokenIssuer
	Cookies     auth.CookiePolicy

	// コレクション
	Blogs      repository.DocumentRepository
	Comments   repository.DocumentRepository
	Wishlist   repository.DocumentRepository
	Categories repository.DocumentRepository

	CategorySyncer CategorySyncer
	Sanitizer      security.ContentSanitizerService

	RSS           RSSConfig
	HealthChecker HealthChecker

	// Metrics はnilの場合、記録せず /metrics も公開しない。
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS → OriginCheck → RateLimit(General)
//
// /addBlog, /updateBlog, /Wishlist は認証ミドルウェアを追加し、/jwt はトークン発行用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var recorder metrics.MetricsCollector = metrics.Nop{}
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Production))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(recorder))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewOriginCheckMiddleware(deps.CORSAllowedOrigins))

	// --- 運用エンドポイント（レート制限なし） ---
	r.Get("/health", Health(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.TokenIssuer, deps.Cookies, recorder)
	blogHandler := NewBlogHandler(deps.Blogs, deps.CategorySyncer, deps.Sanitizer, recorder)
	commentHandler := NewCommentHandler(deps.Comments, deps.Sanitizer)
	wishlistHandler := NewWishlistHandler(deps.Wishlist, recorder)
	categoryHandler := NewCategoryHandler(deps.Categories, deps.CategorySyncer)
	rssHandler := NewRSSHandler(deps.Blogs, deps.RSS)

	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier, recorder)

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 認証
		r.With(deps.RateLimiter.TokenMiddleware()).Post("/jwt", authHandler.IssueToken)
		r.Get("/logout", authHandler.Logout)

		// ブログ
		r.With(requireAuth).Post("/addBlog", blogHandler.AddBlog)
		r.Get("/blogs", blogHandler.ListBlogs)
		r.Get("/myBlogs", blogHandler.ListBlogs)
		r.Get("/blog-count", blogHandler.CountBlogs)
		r.Get("/blog/{id}", blogHandler.GetBlog)
		r.With(requireAuth).Put("/updateBlog", blogHandler.UpdateBlog)

		// コメント
		r.Post("/addComment", commentHandler.AddComment)
		r.Get("/comments", commentHandler.ListComments)

		// ウィッシュリスト
		r.Post("/addToWishlist", wishlistHandler.AddToWishlist)
		r.With(requireAuth).Get("/Wishlist", wishlistHandler.ListWishlist)
		r.Delete("/deleteWishlist/{id}", wishlistHandler.DeleteWishlist)

		// カテゴリ
		r.Put("/updateCategory", categoryHandler.UpdateCategory)
		r.Get("/categories", categoryHandler.ListCategories)
		r.Get("/category/{id}", categoryHandler.GetCategory)

		r.Get("/rss.xml", rssHandler.Feed)
	})

	return r
}
