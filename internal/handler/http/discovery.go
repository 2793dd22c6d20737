package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/apparel-discovery/internal/service"
	apperrors "github.com/utafrali/apparel-discovery/pkg/errors"
	"github.com/utafrali/apparel-discovery/pkg/httputil"
	"github.com/utafrali/apparel-discovery/pkg/middleware"
	"github.com/utafrali/apparel-discovery/pkg/pagination"
	"github.com/utafrali/apparel-discovery/pkg/slug"
	"github.com/utafrali/apparel-discovery/pkg/validator"
)

const (
	defaultRecommendationLimit = 8
	maxRecommendationLimit     = 50

	// Non-personalized listings may be cached by shared proxies.
	publicCacheMaxAge = 60
)

// DiscoveryHandler handles HTTP requests for search and recommendations.
type DiscoveryHandler struct {
	service *service.DiscoveryService
	logger  *slog.Logger
}

// NewDiscoveryHandler creates a new discovery HTTP handler.
func NewDiscoveryHandler(svc *service.DiscoveryService, logger *slog.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		service: svc,
		logger:  logger,
	}
}

// Routes registers the discovery API on r.
func (h *DiscoveryHandler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/search", func(r chi.Router) {
			r.Get("/", h.Search)
			r.With(middleware.CacheControl(publicCacheMaxAge)).Get("/suggest", h.Suggest)
			r.Post("/clicks", h.RecordClick)
		})

		r.With(middleware.CacheControl(publicCacheMaxAge)).
			Get("/products/{slug}/related", h.Related)

		r.Route("/recommendations", func(r chi.Router) {
			r.Get("/", h.Recommendations)
			r.With(middleware.CacheControl(publicCacheMaxAge)).Get("/featured", h.Featured)
		})
	})
}

// --- Handlers ---

// Search handles GET /api/v1/search
func (h *DiscoveryHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	inStock, err := httputil.QueryBool(r, "in_stock")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	page := pagination.FromRequest(r)

	out, err := h.service.Search(r.Context(), service.SearchInput{
		Query:      q.Get("q"),
		Sort:       q.Get("sort"),
		Collection: strings.TrimSpace(q.Get("collection")),
		Color:      strings.TrimSpace(q.Get("color")),
		Size:       strings.TrimSpace(q.Get("size")),
		InStock:    inStock,
		Page:       page.Page,
		PerPage:    page.PerPage,
		UserID:     middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out})
}

// Suggest handles GET /api/v1/search/suggest
func (h *DiscoveryHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: suggestions})
}

// RecordClick handles POST /api/v1/search/clicks
func (h *DiscoveryHandler) RecordClick(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req service.ClickInput
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}
	req.UserID = middleware.UserIDFromContext(r.Context())

	searchID, err := h.service.RecordClick(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"search_id": searchID, "slug": req.Slug, "status": "recorded"},
	})
}

// Related handles GET /api/v1/products/{slug}/related
func (h *DiscoveryHandler) Related(w http.ResponseWriter, r *http.Request) {
	anchor := chi.URLParam(r, "slug")
	if !slug.Valid(anchor) {
		httputil.WriteError(w, r, apperrors.InvalidInput("slug is malformed"), h.logger)
		return
	}
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	products, err := h.service.Related(r.Context(), anchor, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
}

// Recommendations handles GET /api/v1/recommendations
func (h *DiscoveryHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	recs, err := h.service.Recommend(r.Context(), middleware.UserIDFromContext(r.Context()), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Cache-Control", "private, no-store")
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: recs})
}

// Featured handles GET /api/v1/recommendations/featured
func (h *DiscoveryHandler) Featured(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}

	products, err := h.service.Featured(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: products})
}

// limit reads the limit query parameter, writing a 400 when it is malformed
// or too large.
func (h *DiscoveryHandler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := httputil.QueryInt(r, "limit", defaultRecommendationLimit)
	if err == nil && limit > maxRecommendationLimit {
		err = apperrors.InvalidInput("limit must be at most 50")
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return 0, false
	}
	return limit, true
}
