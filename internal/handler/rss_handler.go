package handler

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/moreblogs/internal/middleware"
	"github.com/hitoshi/moreblogs/internal/model"
	"github.com/hitoshi/moreblogs/internal/query"
	"github.com/hitoshi/moreblogs/internal/repository"
)

// rssItemLimit はフィードに含める最新ブログの件数。
const rssItemLimit = 20

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Author      string `xml:"author,omitempty"`
	Category    string `xml:"category,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

// RSSConfig はRSSチャンネルの設定。
type RSSConfig struct {
	SiteURL   string
	SiteTitle string
}

// RSSHandler は最新ブログのRSS 2.0フィードを返すHTTPハンドラー。
type RSSHandler struct {
	blogs  repository.DocumentRepository
	config RSSConfig
}

// NewRSSHandler はRSSHandlerを生成する。
func NewRSSHandler(blogs repository.DocumentRepository, config RSSConfig) *RSSHandler {
	return &RSSHandler{blogs: blogs, config: config}
}

// Feed は挿入順で新しいブログからRSSを組み立てる。
// GET /rss.xml
func (h *RSSHandler) Feed(w http.ResponseWriter, r *http.Request) {
	docs, err := h.blogs.Find(r.Context(), &query.Query{
		Sort:  []query.SortField{{Path: []string{query.NaturalOrder}, Desc: true}},
		Limit: rssItemLimit,
	})
	if err != nil {
		handleStoreError(w, err, "build rss", "Failed to build feed.")
		return
	}

	items := make([]rssItem, 0, len(docs))
	for _, doc := range docs {
		link := h.blogURL(doc.ID())
		items = append(items, rssItem{
			Title:       doc.String(model.FieldTitle),
			Link:        link,
			Description: doc.String("short_description"),
			Author:      doc.String("author"),
			Category:    doc.String(model.FieldCategory),
			PubDate:     pubDate(doc),
			GUID:        link,
		})
	}

	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       h.config.SiteTitle,
			Link:        h.config.SiteURL,
			Description: "Latest blogs on " + h.config.SiteTitle,
			Items:       items,
		},
	}

	out, err := xml.Marshal(feed)
	if err != nil {
		slog.Error("failed to encode rss", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, "Failed to build feed.")
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(out)
}

func (h *RSSHandler) blogURL(id string) string {
	u, err := url.JoinPath(h.config.SiteURL, "blog", id)
	if err != nil {
		return h.config.SiteURL
	}
	return u
}

// pubDate はドキュメントの作成日時フィールドがあればRFC1123Z形式で返す。
func pubDate(doc model.Document) string {
	for _, field := range []string{"createdAt", "time"} {
		if t, err := time.Parse(time.RFC3339, doc.String(field)); err == nil {
			return t.Format(time.RFC1123Z)
		}
	}
	return ""
}
