package models

import (
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/validation"
)

type Restaurant struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	NameKey     string    `json:"-" bson:"name_key"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Address     string    `json:"address" bson:"address"`
	Latitude    float64   `json:"latitude" bson:"latitude"`
	Longitude   float64   `json:"longitude" bson:"longitude"`
	PriceTier   int       `json:"price_tier" bson:"price_tier"`
	Categories  []string  `json:"categories" bson:"categories"`
	OwnerID     string    `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	Verified    bool      `json:"verified" bson:"verified"`
	ImageURLs   []string  `json:"image_urls,omitempty" bson:"image_urls,omitempty"`
	CreatedBy   string    `json:"created_by" bson:"created_by"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// RestaurantKey normalizes a restaurant name for the uniqueness check.
func RestaurantKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

type ReviewStats struct {
	ReviewCount int64   `json:"review_count"`
	AvgRating   float64 `json:"avg_rating"`
	RecentCount int64   `json:"recent_count,omitempty"`
}

type RestaurantWithStats struct {
	Restaurant
	ReviewStats
	DistanceKm *float64 `json:"distance_km,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

type CreateRestaurantRequest struct {
	Name        string   `json:"name" validate:"notblank,max=120"`
	Description string   `json:"description" validate:"max=2000"`
	Address     string   `json:"address" validate:"notblank,max=300"`
	Latitude    float64  `json:"latitude" validate:"latitude"`
	Longitude   float64  `json:"longitude" validate:"longitude"`
	PriceTier   int      `json:"price_tier" validate:"gte=1,lte=4"`
	Categories  []string `json:"categories" validate:"max=10,dive,notblank,max=40"`
	ImageURLs   []string `json:"image_urls" validate:"max=10"`
}

type UpdateRestaurantRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,notblank,max=120"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	Address     *string  `json:"address,omitempty" validate:"omitempty,notblank,max=300"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	PriceTier   *int     `json:"price_tier,omitempty" validate:"omitempty,gte=1,lte=4"`
	Categories  []string `json:"categories,omitempty" validate:"omitempty,max=10,dive,notblank,max=40"`
	ImageURLs   []string `json:"image_urls,omitempty" validate:"omitempty,max=10"`
}

func (r *CreateRestaurantRequest) Validate() map[string]string {
	r.Name = strings.TrimSpace(r.Name)
	errs := validation.Struct(r)
	if r.Latitude == 0 && r.Longitude == 0 {
		errs = validation.Merge(errs, map[string]string{"location": "Location coordinates are required"})
	}
	return errs
}

func (r *UpdateRestaurantRequest) Validate() map[string]string {
	return validation.Struct(r)
}

// NearbyQuery is the parsed form of a proximity search.
type NearbyQuery struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
	// RadiusKm is nil when the caller gave no radius. Zero matches only
	// restaurants at the exact center.
	RadiusKm  *float64 `validate:"omitempty,gte=0,lte=50"`
	Limit     int     `validate:"gte=1,lte=100"`
}

func (q *NearbyQuery) Validate() map[string]string {
	return validation.Struct(q)
}
