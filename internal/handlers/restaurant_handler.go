package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/services"
)

type RestaurantHandler struct {
	restaurants *services.RestaurantService
	reviews     *services.ReviewService
	claims      *services.ClaimService
}

func NewRestaurantHandler(svc *services.Services) *RestaurantHandler {
	return &RestaurantHandler{restaurants: svc.Restaurants, reviews: svc.Reviews, claims: svc.Claims}
}

func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.restaurants.List(r.Context(), services.RestaurantQuery{
		Query:       strings.TrimSpace(q.Get("q")),
		Category:    strings.ToLower(strings.TrimSpace(q.Get("category"))),
		PriceTier:   queryInt(r, "priceTier", 0),
		Verified:    queryBool(r, "verified"),
		Sort:        q.Get("sort"),
		PageRequest: parsePage(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *RestaurantHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{
			"lat": "lat and lon are required numbers",
		}))
		return
	}
	query := &models.NearbyQuery{Latitude: lat, Longitude: lon, Limit: queryInt(r, "limit", 0)}
	if v := q.Get("radius"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(map[string]string{"radius": "radius must be a number"}))
			return
		}
		query.RadiusKm = &radius
	}
	items, err := h.restaurants.Nearby(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, items)
}

func (h *RestaurantHandler) Trending(w http.ResponseWriter, r *http.Request) {
	items, err := h.restaurants.Trending(r.Context(), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, items)
}

func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.restaurants.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, out)
}

func (h *RestaurantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRestaurantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.restaurants.Create(r.Context(), actor(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, out)
}

func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateRestaurantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.restaurants.Update(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, out)
}

func (h *RestaurantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.restaurants.Delete(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, map[string]string{"message": "Restaurant deleted"})
}

func (h *RestaurantHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	page, err := h.reviews.ListByRestaurant(r.Context(), actor(r), chi.URLParam(r, "id"), r.URL.Query().Get("sort"), parsePage(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, page)
}

func (h *RestaurantHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req models.CreateClaimRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	claim, err := h.claims.CreateClaim(r.Context(), actor(r), chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCreated(w, claim)
}
