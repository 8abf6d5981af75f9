package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/geo"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/ranking"
	"github.com/tastetrail/backend/internal/store"
)

const (
	SortRating = "rating"

	defaultRadiusKm = 5
)

type RestaurantQuery struct {
	Query     string
	Category  string
	PriceTier int
	Verified  *bool
	Sort      string
	PageRequest
}

type RestaurantService struct {
	store          store.Store
	enforcer       *authz.Enforcer
	trending       *trendingCache
	policy         ranking.Policy
	candidateLimit int
	now            func() time.Time
}

func (s *RestaurantService) List(ctx context.Context, q RestaurantQuery) (models.Page[models.RestaurantWithStats], error) {
	f := store.RestaurantFilter{
		Query:     q.Query,
		Category:  q.Category,
		PriceTier: q.PriceTier,
		Verified:  q.Verified,
		Sort:      q.Sort,
		Page:      q.PageRequest.store(),
	}
	if q.Sort == SortRating {
		// Rating is derived, so sort the whole match set here.
		f.Sort = store.SortNewest
		f.Page = store.Page{}
	}
	items, total, err := s.store.Restaurants().List(ctx, f)
	if err != nil {
		return models.Page[models.RestaurantWithStats]{}, err
	}
	out, err := s.withStats(ctx, items)
	if err != nil {
		return models.Page[models.RestaurantWithStats]{}, err
	}
	if q.Sort == SortRating {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].AvgRating > out[j].AvgRating
		})
		sp := q.PageRequest.store()
		if sp.Offset >= len(out) {
			out = nil
		} else {
			end := sp.Offset + sp.Limit
			if end > len(out) {
				end = len(out)
			}
			out = out[sp.Offset:end]
		}
	}
	return pageOf(out, total, q.PageRequest), nil
}

// Nearby runs the box prefilter in the store and the exact distance
// filter here.
func (s *RestaurantService) Nearby(ctx context.Context, q *models.NearbyQuery) ([]models.RestaurantWithStats, error) {
	if q.RadiusKm == nil {
		r := float64(defaultRadiusKm)
		q.RadiusKm = &r
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if err := Validated(q.Validate()); err != nil {
		return nil, err
	}
	center := geo.Point{Lat: q.Latitude, Lon: q.Longitude}
	candidates, err := s.store.Restaurants().WithinBox(ctx, geo.BoundingBox(center, *q.RadiusKm))
	if err != nil {
		return nil, err
	}
	hits := geo.FilterNearby(center, *q.RadiusKm, q.Limit, candidates, func(r models.Restaurant) geo.Point {
		return geo.Point{Lat: r.Latitude, Lon: r.Longitude}
	})
	items := make([]models.Restaurant, len(hits))
	for i, h := range hits {
		items[i] = h.Item
	}
	out, err := s.withStats(ctx, items)
	if err != nil {
		return nil, err
	}
	for i := range out {
		d := hits[i].DistanceKm
		out[i].DistanceKm = &d
	}
	return out, nil
}

// Trending ranks recent restaurants by review activity and rating.
func (s *RestaurantService) Trending(ctx context.Context, p PageRequest) ([]models.RestaurantWithStats, error) {
	key := trendingKey("restaurants", "all", p)
	var cached []models.RestaurantWithStats
	if s.trending.get(ctx, key, &cached) {
		return cached, nil
	}

	window := s.policy.RecentWindow
	if window <= 0 {
		window = ranking.DefaultRestaurantPolicy.RecentWindow
	}
	now := s.now()
	items, err := s.trendingCandidates(ctx, now.Add(-window))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	stats, err := s.store.Reviews().Stats(ctx, ids, now.Add(-window))
	if err != nil {
		return nil, err
	}

	ranked := ranking.Rank(items, func(r models.Restaurant) float64 {
		st := stats[r.ID]
		return s.policy.Score(ranking.Signals{
			Rating:       st.AvgRating,
			RecentCount:  st.RecentCount,
			TotalReviews: st.ReviewCount,
			CreatedAt:    r.CreatedAt,
		}, now)
	})
	sp := p.store()
	page := ranking.Paginate(ranked, sp.Offset, sp.Limit)
	out := make([]models.RestaurantWithStats, len(page))
	for i, sc := range page {
		score := sc.Score
		out[i] = models.RestaurantWithStats{Restaurant: sc.Item, ReviewStats: stats[sc.Item.ID], Score: &score}
	}
	s.trending.set(ctx, key, out)
	return out, nil
}

// trendingCandidates merges the restaurants with the most reviews since
// the window opened and the newest restaurants, which can still trend on
// novelty.
func (s *RestaurantService) trendingCandidates(ctx context.Context, since time.Time) ([]models.Restaurant, error) {
	limit := s.candidates()
	active, err := s.store.Reviews().ActiveRestaurants(ctx, since, limit)
	if err != nil {
		return nil, err
	}
	newest, _, err := s.store.Restaurants().List(ctx, store.RestaurantFilter{
		Sort: store.SortNewest,
		Page: store.Page{Limit: limit},
	})
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return newest, nil
	}
	busy, _, err := s.store.Restaurants().List(ctx, store.RestaurantFilter{IDs: active})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(busy)+len(newest))
	out := make([]models.Restaurant, 0, len(busy)+len(newest))
	for _, r := range append(busy, newest...) {
		if !seen[r.ID] {
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *RestaurantService) Get(ctx context.Context, id string) (*models.RestaurantWithStats, error) {
	r, err := s.store.Restaurants().Get(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrRestaurantNotFound)
	}
	out, err := s.withStats(ctx, []models.Restaurant{*r})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *RestaurantService) Create(ctx context.Context, actor Actor, req *models.CreateRestaurantRequest) (*models.Restaurant, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	now := s.now()
	r := &models.Restaurant{
		ID:          uuid.NewString(),
		Name:        req.Name,
		NameKey:     models.RestaurantKey(req.Name),
		Description: strings.TrimSpace(req.Description),
		Address:     strings.TrimSpace(req.Address),
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		PriceTier:   req.PriceTier,
		Categories:  normalizeCategories(req.Categories),
		ImageURLs:   req.ImageURLs,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Restaurants().Create(ctx, r); err != nil {
		return nil, duplicateAs(err, ErrRestaurantExists)
	}
	return r, nil
}

// Update is allowed for the restaurant's owner and administrators.
func (s *RestaurantService) Update(ctx context.Context, actor Actor, id string, req *models.UpdateRestaurantRequest) (*models.Restaurant, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	r, err := s.store.Restaurants().Get(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrRestaurantNotFound)
	}
	if !s.canManage(actor, r) {
		return nil, forbidden("only the owner can edit this restaurant")
	}
	if req.Name != nil {
		r.Name = strings.TrimSpace(*req.Name)
		r.NameKey = models.RestaurantKey(r.Name)
	}
	if req.Description != nil {
		r.Description = strings.TrimSpace(*req.Description)
	}
	if req.Address != nil {
		r.Address = strings.TrimSpace(*req.Address)
	}
	if req.Latitude != nil {
		r.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		r.Longitude = *req.Longitude
	}
	if req.PriceTier != nil {
		r.PriceTier = *req.PriceTier
	}
	if req.Categories != nil {
		r.Categories = normalizeCategories(req.Categories)
	}
	if req.ImageURLs != nil {
		r.ImageURLs = req.ImageURLs
	}
	r.UpdatedAt = s.now()
	if err := s.store.Restaurants().Update(ctx, r); err != nil {
		return nil, duplicateAs(err, ErrRestaurantExists)
	}
	return r, nil
}

func (s *RestaurantService) Delete(ctx context.Context, actor Actor, id string) error {
	if !s.enforcer.Can(string(actor.Role), authz.ObjRestaurants, authz.ActDelete) {
		return forbidden("only administrators can delete restaurants")
	}
	if err := s.store.Restaurants().Delete(ctx, id); err != nil {
		return notFoundAs(err, ErrRestaurantNotFound)
	}
	if err := s.trending.invalidate(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("trending invalidation failed")
	}
	return nil
}

// OwnedBy lists a user's restaurants with stats.
func (s *RestaurantService) OwnedBy(ctx context.Context, ownerID string) ([]models.RestaurantWithStats, error) {
	items, _, err := s.store.Restaurants().List(ctx, store.RestaurantFilter{OwnerID: ownerID, Sort: store.SortName})
	if err != nil {
		return nil, err
	}
	return s.withStats(ctx, items)
}

func (s *RestaurantService) canManage(actor Actor, r *models.Restaurant) bool {
	if r.OwnerID != "" && r.OwnerID == actor.ID {
		return true
	}
	return s.enforcer.Can(string(actor.Role), authz.ObjRestaurants, authz.ActWrite)
}

func (s *RestaurantService) withStats(ctx context.Context, items []models.Restaurant) ([]models.RestaurantWithStats, error) {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	stats, err := s.store.Reviews().Stats(ctx, ids, time.Time{})
	if err != nil {
		return nil, err
	}
	out := make([]models.RestaurantWithStats, len(items))
	for i := range items {
		st := stats[items[i].ID]
		st.RecentCount = 0
		out[i] = models.RestaurantWithStats{Restaurant: items[i], ReviewStats: st}
	}
	return out, nil
}

func (s *RestaurantService) candidates() int {
	if s.candidateLimit <= 0 {
		return 500
	}
	return s.candidateLimit
}

func normalizeCategories(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
