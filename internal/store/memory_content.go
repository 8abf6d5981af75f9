package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/geo"
	"github.com/tastetrail/backend/internal/models"
)

type memRestaurants struct{ m *Memory }

func (r memRestaurants) Create(_ context.Context, rest *models.Restaurant) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Restaurants[rest.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.m.data.Restaurants {
		if existing.NameKey == rest.NameKey {
			return ErrDuplicate
		}
	}
	r.m.data.Restaurants[rest.ID] = *rest
	return nil
}

func (r memRestaurants) Get(_ context.Context, id string) (*models.Restaurant, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	rest, ok := r.m.data.Restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rest, nil
}

func (r memRestaurants) Update(_ context.Context, rest *models.Restaurant) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Restaurants[rest.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range r.m.data.Restaurants {
		if id != rest.ID && existing.NameKey == rest.NameKey {
			return ErrDuplicate
		}
	}
	r.m.data.Restaurants[rest.ID] = *rest
	return nil
}

func (r memRestaurants) Delete(_ context.Context, id string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Restaurants[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.data.Restaurants, id)
	return nil
}

func hasCategory(categories []string, want string) bool {
	for _, c := range categories {
		if strings.EqualFold(c, want) {
			return true
		}
	}
	return false
}

func (r memRestaurants) List(_ context.Context, f RestaurantFilter) ([]models.Restaurant, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var ids map[string]bool
	if f.IDs != nil {
		ids = toSet(f.IDs)
	}
	var out []models.Restaurant
	for _, rest := range r.m.data.Restaurants {
		if ids != nil && !ids[rest.ID] {
			continue
		}
		if f.Query != "" && !containsFold(rest.Name, f.Query) && !containsFold(rest.Address, f.Query) && !containsFold(rest.Description, f.Query) {
			continue
		}
		if f.Category != "" && !hasCategory(rest.Categories, f.Category) {
			continue
		}
		if f.PriceTier != 0 && rest.PriceTier != f.PriceTier {
			continue
		}
		if f.Verified != nil && rest.Verified != *f.Verified {
			continue
		}
		if f.OwnerID != "" && rest.OwnerID != f.OwnerID {
			continue
		}
		out = append(out, rest)
	}
	if f.Sort == SortName {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].NameKey != out[j].NameKey {
				return out[i].NameKey < out[j].NameKey
			}
			return out[i].ID < out[j].ID
		})
	} else {
		newestFirst(out, func(x models.Restaurant) time.Time { return x.CreatedAt }, func(x models.Restaurant) string { return x.ID })
	}
	return page(out, f.Page), int64(len(out)), nil
}

func (r memRestaurants) WithinBox(_ context.Context, box geo.Box) ([]models.Restaurant, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var out []models.Restaurant
	for _, rest := range r.m.data.Restaurants {
		if box.Contains(geo.Point{Lat: rest.Latitude, Lon: rest.Longitude}) {
			out = append(out, rest)
		}
	}
	newestFirst(out, func(x models.Restaurant) time.Time { return x.CreatedAt }, func(x models.Restaurant) string { return x.ID })
	return out, nil
}

func (r memRestaurants) Count(_ context.Context) (int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	return int64(len(r.m.data.Restaurants)), nil
}

type memReviews struct{ m *Memory }

func (r memReviews) Create(_ context.Context, rev *models.Review) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Reviews[rev.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.m.data.Reviews {
		if existing.UserID == rev.UserID && existing.RestaurantID == rev.RestaurantID {
			return ErrDuplicate
		}
	}
	r.m.data.Reviews[rev.ID] = *rev
	return nil
}

func (r memReviews) Get(_ context.Context, id string) (*models.Review, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	rev, ok := r.m.data.Reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rev, nil
}

func (r memReviews) Update(_ context.Context, rev *models.Review) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Reviews[rev.ID]; !ok {
		return ErrNotFound
	}
	r.m.data.Reviews[rev.ID] = *rev
	return nil
}

func (r memReviews) Delete(_ context.Context, id string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Reviews[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.data.Reviews, id)
	return nil
}

func (f ReviewFilter) matches(rev models.Review, users map[string]bool) bool {
	if f.RestaurantID != "" && rev.RestaurantID != f.RestaurantID {
		return false
	}
	if f.UserID != "" && rev.UserID != f.UserID {
		return false
	}
	if users != nil && !users[rev.UserID] {
		return false
	}
	if f.HiddenOnly && !rev.IsHidden {
		return false
	}
	if !f.IncludeHidden && !f.HiddenOnly && rev.IsHidden {
		return false
	}
	if !f.Since.IsZero() && rev.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

func (r memReviews) filter(f ReviewFilter) []models.Review {
	var users map[string]bool
	if f.UserIDs != nil {
		users = toSet(f.UserIDs)
	}
	var out []models.Review
	for _, rev := range r.m.data.Reviews {
		if f.matches(rev, users) {
			out = append(out, rev)
		}
	}
	return out
}

func (r memReviews) List(_ context.Context, f ReviewFilter) ([]models.Review, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	out := r.filter(f)
	newestFirst(out, func(x models.Review) time.Time { return x.CreatedAt }, func(x models.Review) string { return x.ID })
	return page(out, f.Page), int64(len(out)), nil
}

func (r memReviews) Count(_ context.Context, f ReviewFilter) (int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	return int64(len(r.filter(f))), nil
}

func (r memReviews) Stats(_ context.Context, restaurantIDs []string, since time.Time) (map[string]models.ReviewStats, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	want := toSet(restaurantIDs)
	sums := make(map[string]int64)
	out := make(map[string]models.ReviewStats)
	for _, rev := range r.m.data.Reviews {
		if rev.IsHidden || !want[rev.RestaurantID] {
			continue
		}
		st := out[rev.RestaurantID]
		st.ReviewCount++
		if !since.IsZero() && !rev.CreatedAt.Before(since) {
			st.RecentCount++
		}
		sums[rev.RestaurantID] += int64(rev.Rating)
		out[rev.RestaurantID] = st
	}
	for id, st := range out {
		st.AvgRating = float64(sums[id]) / float64(st.ReviewCount)
		out[id] = st
	}
	return out, nil
}

func (r memReviews) ActiveRestaurants(_ context.Context, since time.Time, limit int) ([]string, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	counts := make(map[string]int)
	for _, rev := range r.m.data.Reviews {
		if rev.IsHidden || rev.CreatedAt.Before(since) {
			continue
		}
		counts[rev.RestaurantID]++
	}
	out := make([]string, 0, len(counts))
	for id := range counts {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memReviews) ReplaceImage(_ context.Context, oldURL, newURL string) (int64, error) {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	var changed int64
	for id, rev := range r.m.data.Reviews {
		found := false
		images := make([]string, 0, len(rev.Images))
		for _, img := range rev.Images {
			if img != oldURL {
				images = append(images, img)
				continue
			}
			found = true
			if newURL != "" {
				images = append(images, newURL)
			}
		}
		if found {
			rev.Images = images
			r.m.data.Reviews[id] = rev
			changed++
		}
	}
	return changed, nil
}

type memComments struct{ m *Memory }

func (r memComments) Create(_ context.Context, c *models.Comment) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Comments[c.ID]; ok {
		return ErrDuplicate
	}
	r.m.data.Comments[c.ID] = *c
	return nil
}

func (r memComments) Get(_ context.Context, id string) (*models.Comment, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	c, ok := r.m.data.Comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r memComments) Update(_ context.Context, c *models.Comment) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Comments[c.ID]; !ok {
		return ErrNotFound
	}
	r.m.data.Comments[c.ID] = *c
	return nil
}

func (r memComments) Delete(_ context.Context, id string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Comments[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.data.Comments, id)
	for cid, c := range r.m.data.Comments {
		if c.ParentID == id {
			delete(r.m.data.Comments, cid)
		}
	}
	return nil
}

func (r memComments) ListByReview(_ context.Context, reviewID string, includeHidden bool) ([]models.Comment, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var out []models.Comment
	for _, c := range r.m.data.Comments {
		if c.ReviewID != reviewID || (c.IsHidden && !includeHidden) {
			continue
		}
		out = append(out, c)
	}
	oldestFirst(out, func(x models.Comment) time.Time { return x.CreatedAt }, func(x models.Comment) string { return x.ID })
	return out, nil
}

func (r memComments) CountByReviews(_ context.Context, reviewIDs []string) (map[string]int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	want := toSet(reviewIDs)
	counts := make(map[string]int64)
	for _, c := range r.m.data.Comments {
		if !c.IsHidden && want[c.ReviewID] {
			counts[c.ReviewID]++
		}
	}
	return counts, nil
}

func (r memComments) DeleteByReview(_ context.Context, reviewID string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	for id, c := range r.m.data.Comments {
		if c.ReviewID == reviewID {
			delete(r.m.data.Comments, id)
		}
	}
	return nil
}

type memLikes struct{ m *Memory }

func (r memLikes) Create(_ context.Context, l *models.Like) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	for _, existing := range r.m.data.Likes {
		if existing.UserID == l.UserID && existing.ReviewID == l.ReviewID {
			return ErrDuplicate
		}
	}
	r.m.data.Likes[l.ID] = *l
	return nil
}

func (r memLikes) Delete(_ context.Context, userID, reviewID string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	for id, l := range r.m.data.Likes {
		if l.UserID == userID && l.ReviewID == reviewID {
			delete(r.m.data.Likes, id)
			return nil
		}
	}
	return ErrNotFound
}

func (r memLikes) CountByReviews(_ context.Context, reviewIDs []string) (map[string]int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	want := toSet(reviewIDs)
	counts := make(map[string]int64)
	for _, l := range r.m.data.Likes {
		if want[l.ReviewID] {
			counts[l.ReviewID]++
		}
	}
	return counts, nil
}

func (r memLikes) LikedBy(_ context.Context, userID string, reviewIDs []string) (map[string]bool, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	want := toSet(reviewIDs)
	liked := make(map[string]bool)
	for _, l := range r.m.data.Likes {
		if l.UserID == userID && want[l.ReviewID] {
			liked[l.ReviewID] = true
		}
	}
	return liked, nil
}

func (r memLikes) DeleteByReview(_ context.Context, reviewID string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	for id, l := range r.m.data.Likes {
		if l.ReviewID == reviewID {
			delete(r.m.data.Likes, id)
		}
	}
	return nil
}

type memFollows struct{ m *Memory }

func (r memFollows) Create(_ context.Context, f *models.Follow) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	for _, existing := range r.m.data.Follows {
		if existing.FollowerID == f.FollowerID && existing.FollowingID == f.FollowingID {
			return ErrDuplicate
		}
	}
	r.m.data.Follows[f.ID] = *f
	return nil
}

func (r memFollows) Delete(_ context.Context, followerID, followingID string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	for id, f := range r.m.data.Follows {
		if f.FollowerID == followerID && f.FollowingID == followingID {
			delete(r.m.data.Follows, id)
			return nil
		}
	}
	return ErrNotFound
}

func (r memFollows) Exists(_ context.Context, followerID, followingID string) (bool, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	for _, f := range r.m.data.Follows {
		if f.FollowerID == followerID && f.FollowingID == followingID {
			return true, nil
		}
	}
	return false, nil
}

func (r memFollows) list(match func(models.Follow) bool, p Page) ([]models.Follow, int64) {
	var out []models.Follow
	for _, f := range r.m.data.Follows {
		if match(f) {
			out = append(out, f)
		}
	}
	newestFirst(out, func(x models.Follow) time.Time { return x.CreatedAt }, func(x models.Follow) string { return x.ID })
	return page(out, p), int64(len(out))
}

func (r memFollows) ListFollowers(_ context.Context, userID string, p Page) ([]models.Follow, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	out, total := r.list(func(f models.Follow) bool { return f.FollowingID == userID }, p)
	return out, total, nil
}

func (r memFollows) ListFollowing(_ context.Context, userID string, p Page) ([]models.Follow, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	out, total := r.list(func(f models.Follow) bool { return f.FollowerID == userID }, p)
	return out, total, nil
}

func (r memFollows) Counts(_ context.Context, userID string) (int64, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var followers, following int64
	for _, f := range r.m.data.Follows {
		if f.FollowingID == userID {
			followers++
		}
		if f.FollowerID == userID {
			following++
		}
	}
	return followers, following, nil
}

func (r memFollows) FollowingIDs(_ context.Context, userID string) ([]string, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	ids := []string{}
	for _, f := range r.m.data.Follows {
		if f.FollowerID == userID {
			ids = append(ids, f.FollowingID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
