// Package ranking scores reviews and restaurants for trending lists.
//
// Both scores come from one weighted-engagement function. Reviews decay the
// weighted sum by age; restaurants use a zero exponent so the recency signal
// is carried by the recent-review count instead.
package ranking

import (
	"math"
	"sort"
	"time"
)

// Policy holds the weights of the engagement function
//
//	score = (likes*wL + comments*wC + shares*wS + rating*wR + recent*wRecent + popularity*wPop)
//	        / (ageHours + 1)^AgeExponent
type Policy struct {
	LikeWeight       float64       `mapstructure:"like_weight"`
	CommentWeight    float64       `mapstructure:"comment_weight"`
	ShareWeight      float64       `mapstructure:"share_weight"`
	RatingWeight     float64       `mapstructure:"rating_weight"`
	RecentWeight     float64       `mapstructure:"recent_weight"`
	PopularityWeight float64       `mapstructure:"popularity_weight"`
	AgeExponent      float64       `mapstructure:"age_exponent"`
	RecentWindow     time.Duration `mapstructure:"recent_window"`
}

// DefaultReviewPolicy decays engagement by (ageHours+1)^1.5.
var DefaultReviewPolicy = Policy{
	LikeWeight:    0.4,
	CommentWeight: 0.3,
	ShareWeight:   0.2,
	RatingWeight:  0.1,
	AgeExponent:   1.5,
}

// DefaultRestaurantPolicy is recentReviews*2 + avgRating*totalReviews*0.1.
var DefaultRestaurantPolicy = Policy{
	RecentWeight:     2,
	PopularityWeight: 0.1,
	RecentWindow:     7 * 24 * time.Hour,
}

// Signals are the raw inputs for one item.
type Signals struct {
	Likes    int64
	Comments int64
	// Shares are not tracked yet and are always zero in practice.
	Shares       int64
	Rating       float64
	RecentCount  int64
	TotalReviews int64
	CreatedAt    time.Time
}

// Score evaluates the policy for s at now.
func (p Policy) Score(s Signals, now time.Time) float64 {
	popularity := s.Rating * float64(s.TotalReviews)
	sum := float64(s.Likes)*p.LikeWeight +
		float64(s.Comments)*p.CommentWeight +
		float64(s.Shares)*p.ShareWeight +
		s.Rating*p.RatingWeight +
		float64(s.RecentCount)*p.RecentWeight +
		popularity*p.PopularityWeight

	if p.AgeExponent == 0 {
		return sum
	}

	ageHours := now.Sub(s.CreatedAt).Hours()
	if ageHours < 0 || s.CreatedAt.IsZero() {
		ageHours = 0
	}
	return sum / math.Pow(ageHours+1, p.AgeExponent)
}

// Scored pairs an item with its score.
type Scored[T any] struct {
	Item  T
	Score float64
}

// Rank scores items and sorts them by descending score. The sort is stable
// so equal scores keep the input order.
func Rank[T any](items []T, score func(T) float64) []Scored[T] {
	out := make([]Scored[T], len(items))
	for i, it := range items {
		out[i] = Scored[T]{Item: it, Score: score(it)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Paginate returns the page of scored items at offset/limit.
func Paginate[T any](items []Scored[T], offset, limit int) []Scored[T] {
	if offset < 0 || offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
