package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/farmhand/marketplace/internal/advisory"
	"github.com/farmhand/marketplace/internal/validate"
)

// ListCrops lists all crops, or those matching ?search.
func (h *Handlers) ListCrops(w http.ResponseWriter, r *http.Request) {
	var (
		crops []advisory.Crop
		err   error
	)
	if term := r.URL.Query().Get("search"); term != "" {
		crops, err = h.Advisory.SearchCrops(r.Context(), term)
	} else {
		crops, err = h.Advisory.ListCrops(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"crops": crops})
}

func (h *Handlers) GetCrop(w http.ResponseWriter, r *http.Request) {
	c, err := h.Advisory.GetCrop(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) PricePredictions(w http.ResponseWriter, r *http.Request) {
	f := advisory.PredictionFilter{
		CropID:   r.URL.Query().Get("crop_id"),
		Location: r.URL.Query().Get("location"),
	}
	preds, err := h.Advisory.PricePredictions(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": preds})
}

func (h *Handlers) LatestPrices(w http.ResponseWriter, r *http.Request) {
	preds, err := h.Advisory.LatestPrices(r.Context(), r.URL.Query().Get("crop_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": preds})
}

// PriceChange compares ?current with ?predicted.
func (h *Handlers) PriceChange(w http.ResponseWriter, r *http.Request) {
	current, okC, err := floatParam(r, "current")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	predicted, okP, err := floatParam(r, "predicted")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !okC || !okP || current == 0 {
		errorJSON(w, http.StatusBadRequest, "current (non-zero) and predicted are required")
		return
	}
	writeJSON(w, http.StatusOK, advisory.CalculatePriceChange(current, predicted))
}

// ListTools filters by ?category, or searches with ?search.
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	var (
		tools []advisory.ToolWithUsage
		err   error
	)
	if term := r.URL.Query().Get("search"); term != "" {
		tools, err = h.Advisory.SearchTools(r.Context(), term)
	} else {
		tools, err = h.Advisory.ListTools(r.Context(), r.URL.Query().Get("category"))
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (h *Handlers) GetTool(w http.ResponseWriter, r *http.Request) {
	t, err := h.Advisory.GetTool(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) ToolCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Advisory.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

// RecommendedTools takes ?crops=Rice,Cotton.
func (h *Handlers) RecommendedTools(w http.ResponseWriter, r *http.Request) {
	var crops []string
	for _, c := range strings.Split(r.URL.Query().Get("crops"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			crops = append(crops, c)
		}
	}
	if len(crops) == 0 {
		errorJSON(w, http.StatusBadRequest, "crops is required")
		return
	}
	tools, err := h.Advisory.RecommendedTools(r.Context(), crops)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func (h *Handlers) RecordToolUsage(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	var req advisory.CreateToolUsage
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}
	usage, err := h.Advisory.RecordUsage(r.Context(), u.ID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, usage)
}

func (h *Handlers) MyToolUsage(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	usage, err := h.Advisory.MyUsage(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usage": usage})
}

func (h *Handlers) MarketPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.Prices.DailyCropPrices(r.Context(), r.URL.Query().Get("state"), r.URL.Query().Get("district"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

func (h *Handlers) Weather(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		errorJSON(w, http.StatusBadRequest, "location is required")
		return
	}
	wd, err := h.Prices.Weather(r.Context(), location)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

// MarketTrends takes ?commodity and an optional ?days.
func (h *Handlers) MarketTrends(w http.ResponseWriter, r *http.Request) {
	commodity := r.URL.Query().Get("commodity")
	if commodity == "" {
		errorJSON(w, http.StatusBadRequest, "commodity is required")
		return
	}
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "days must be a number")
			return
		}
		days = n
	}
	trend, err := h.Prices.MarketTrends(r.Context(), commodity, days)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

func (h *Handlers) PriceSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Prices.Status())
}

// ReverseGeocode resolves ?lat and ?lng without touching the profile.
func (h *Handlers) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, okLat, err := floatParam(r, "lat")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	lng, okLng, err := floatParam(r, "lng")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !okLat || !okLng {
		errorJSON(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	writeJSON(w, http.StatusOK, h.Geocoder.ReverseGeocode(r.Context(), lat, lng))
}
