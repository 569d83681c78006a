package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/knoguchi/prodsearch/internal/auth"
	"github.com/knoguchi/prodsearch/internal/repository"
	"github.com/knoguchi/prodsearch/internal/reranker"
	"github.com/knoguchi/prodsearch/internal/service"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	errUnauthenticated = errors.New("authentication required")
	errUserMismatch    = errors.New("user_id does not match the authenticated user")
)

type handlers struct {
	api    API
	logger *slog.Logger
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    h.api.AppName,
		"version": h.api.AppVersion,
	})
}

// searchQuery serves GET /search?q=&category=&k=&price_min=&price_max=
func (h *handlers) searchQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := service.SearchRequest{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		TopK:     h.api.DefaultTopK,
	}
	if userID, ok := auth.UserFromContext(r.Context()); ok {
		req.UserID = userID
	}

	if raw := q.Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			writeServiceError(w, h.logger, fmt.Errorf("%w: k must be an integer", service.ErrInvalidRequest))
			return
		}
		req.TopK = k
	}

	var err error
	if req.PriceBand.Low, err = parsePrice(q.Get("price_min"), "price_min"); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if req.PriceBand.High, err = parsePrice(q.Get("price_max"), "price_max"); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	h.search(w, r, req)
}

type priceBandBody struct {
	Low  *float64 `json:"low"`
	High *float64 `json:"high"`
}

type searchBody struct {
	Query     string             `json:"query"`
	Category  string             `json:"category"`
	TopK      *int               `json:"top_k"`
	UserID    string             `json:"user_id"`
	BrandAff  map[string]float64 `json:"brand_aff"`
	CatAff    map[string]float64 `json:"cat_aff"`
	PriceBand *priceBandBody     `json:"price_band"`
}

// searchJSON serves POST /search with explicit affinity maps and price band.
func (h *handlers) searchJSON(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	userID, err := requestUser(r, body.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	req := service.SearchRequest{
		Query:            body.Query,
		Category:         body.Category,
		TopK:             h.api.DefaultTopK,
		UserID:           userID,
		BrandAffinity:    body.BrandAff,
		CategoryAffinity: body.CatAff,
	}
	if body.TopK != nil {
		req.TopK = *body.TopK
	}
	if body.PriceBand != nil {
		req.PriceBand = reranker.PriceBand{Low: body.PriceBand.Low, High: body.PriceBand.High}
	}

	h.search(w, r, req)
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request, req service.SearchRequest) {
	resp, err := h.api.Search.Search(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type itemResponse struct {
	ProductID    string   `json:"product_id"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Category     string   `json:"category"`
	Price        *float64 `json:"price"`
	Rating       *float64 `json:"rating"`
	ReviewsCount *int     `json:"reviews_count"`
	ImageURL     string   `json:"image_url"`
	URL          string   `json:"url"`
	Currency     string   `json:"currency,omitempty"`
	Retailer     string   `json:"retailer,omitempty"`
	Market       string   `json:"market,omitempty"`
	Tags         string   `json:"tags,omitempty"`
	Contents     string   `json:"contents,omitempty"`
	Description  string   `json:"description,omitempty"`
}

func toItemResponse(item *repository.Item) itemResponse {
	return itemResponse{
		ProductID:    item.ProductID,
		Name:         item.Name,
		Brand:        item.Brand,
		Category:     item.Category,
		Price:        item.Price,
		Rating:       item.Rating,
		ReviewsCount: item.ReviewsCount,
		ImageURL:     item.ImageURL,
		URL:          item.URL,
		Currency:     item.Currency,
		Retailer:     item.Retailer,
		Market:       item.Market,
		Tags:         item.Tags,
		Contents:     item.Contents,
		Description:  item.Description,
	}
}

func (h *handlers) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.api.Catalog.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(item))
}

type explainBody struct {
	Query string `json:"query"`
}

func (h *handlers) explainItem(w http.ResponseWriter, r *http.Request) {
	// The body is optional; without it the model summarizes the product
	var body explainBody
	if err := decodeJSON(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
		writeServiceError(w, h.logger, err)
		return
	}

	explanation, err := h.api.Explain.Explain(r.Context(), chi.URLParam(r, "id"), body.Query)
	if err != nil {
		if !isClientError(err) {
			h.logger.Warn("explanation failed", "product_id", chi.URLParam(r, "id"), "error", err)
		}
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}

type interactionBody struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Event     string `json:"event"`
}

type interactionResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Brand     string    `json:"brand"`
	Category  string    `json:"category"`
	Event     string    `json:"event"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *handlers) recordInteraction(w http.ResponseWriter, r *http.Request) {
	var body interactionBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	userID, err := requestUser(r, body.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if userID == "" {
		writeServiceError(w, h.logger, errUnauthenticated)
		return
	}

	in, err := h.api.Catalog.RecordInteraction(r.Context(), service.RecordRequest{
		UserID:    userID,
		ProductID: body.ProductID,
		Event:     repository.EventType(strings.ToLower(strings.TrimSpace(body.Event))),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, interactionResponse{
		ID:        in.ID.String(),
		UserID:    in.UserID,
		ProductID: in.ProductID,
		Brand:     in.Brand,
		Category:  in.Category,
		Event:     string(in.Event),
		CreatedAt: in.CreatedAt,
	})
}

// requestUser returns the shopper named by the bearer token, or "" for an
// anonymous request. A body user_id is only accepted when it names that
// same shopper.
func requestUser(r *http.Request, claimed string) (string, error) {
	claimed = strings.TrimSpace(claimed)
	userID, ok := auth.UserFromContext(r.Context())
	switch {
	case !ok && claimed != "":
		return "", errUnauthenticated
	case ok && claimed != "" && claimed != userID:
		return "", errUserMismatch
	}
	return userID, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %w", service.ErrInvalidRequest, err)
	}
	return nil
}

func parsePrice(raw, field string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %s must be a number", service.ErrInvalidRequest, field)
	}
	return &v, nil
}

func isClientError(err error) bool {
	return errors.Is(err, service.ErrInvalidRequest) || errors.Is(err, repository.ErrNotFound)
}
