package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/mastosync/internal/feedpreview"
)

// PreviewServiceInterface はリモートフィードのプレビューに必要なサービスインターフェース。
type PreviewServiceInterface interface {
	Fetch(ctx context.Context, target string) (*feedpreview.Preview, error)
}

// PreviewHandler はフォロー前のアカウント・ハッシュタグをプレビューするHTTPハンドラー。
type PreviewHandler struct {
	service PreviewServiceInterface
}

// NewPreviewHandler はPreviewHandlerを生成する。
func NewPreviewHandler(service PreviewServiceInterface) *PreviewHandler {
	return &PreviewHandler{service: service}
}

// GetPreview はリモートフィードを取得してプレビューを返す。
// GET /api/preview?url=
func (h *PreviewHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.Fetch(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// previewHostKey はプレビュー対象のホストをレート制限のキーとして返す。
// 解釈できない対象は空文字列を返し、ハンドラ側の検証に任せる。
func previewHostKey(r *http.Request) string {
	feedURL, err := feedpreview.ResolveFeedURL(r.URL.Query().Get("url"))
	if err != nil {
		return ""
	}
	u, err := url.Parse(feedURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
