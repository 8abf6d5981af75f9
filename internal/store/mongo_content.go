package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tastetrail/backend/internal/geo"
	"github.com/tastetrail/backend/internal/models"
)

type mongoRestaurants struct{ col *mongo.Collection }

func (r mongoRestaurants) Create(ctx context.Context, rest *models.Restaurant) error {
	return insert(ctx, r.col, rest)
}

func (r mongoRestaurants) Get(ctx context.Context, id string) (*models.Restaurant, error) {
	return getByID[models.Restaurant](ctx, r.col, id)
}

func (r mongoRestaurants) Update(ctx context.Context, rest *models.Restaurant) error {
	return replaceByID(ctx, r.col, rest.ID, rest)
}

func (r mongoRestaurants) Delete(ctx context.Context, id string) error {
	return deleteOne(ctx, r.col, bson.M{"_id": id})
}

func (r mongoRestaurants) List(ctx context.Context, f RestaurantFilter) ([]models.Restaurant, int64, error) {
	q := bson.M{}
	if f.IDs != nil {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if f.Query != "" {
		re := containsRegex(f.Query)
		q["$or"] = bson.A{bson.M{"name": re}, bson.M{"address": re}, bson.M{"description": re}}
	}
	if f.Category != "" {
		q["categories"] = bson.M{"$regex": "^" + regexpQuote(f.Category) + "$", "$options": "i"}
	}
	if f.PriceTier != 0 {
		q["price_tier"] = f.PriceTier
	}
	if f.Verified != nil {
		q["verified"] = *f.Verified
	}
	if f.OwnerID != "" {
		q["owner_id"] = f.OwnerID
	}
	sort := newestSort()
	if f.Sort == SortName {
		sort = bson.D{{Key: "name_key", Value: 1}, {Key: "_id", Value: 1}}
	}
	return findPage[models.Restaurant](ctx, r.col, q, sort, f.Page)
}

func (r mongoRestaurants) WithinBox(ctx context.Context, box geo.Box) ([]models.Restaurant, error) {
	q := bson.M{"latitude": bson.M{"$gte": box.MinLat, "$lte": box.MaxLat}}
	if box.MinLon <= box.MaxLon {
		q["longitude"] = bson.M{"$gte": box.MinLon, "$lte": box.MaxLon}
	} else {
		q["$or"] = bson.A{
			bson.M{"longitude": bson.M{"$gte": box.MinLon}},
			bson.M{"longitude": bson.M{"$lte": box.MaxLon}},
		}
	}
	return findAll[models.Restaurant](ctx, r.col, q)
}

func (r mongoRestaurants) Count(ctx context.Context) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{})
}

type mongoReviews struct{ col *mongo.Collection }

func (r mongoReviews) Create(ctx context.Context, rev *models.Review) error {
	return insert(ctx, r.col, rev)
}

func (r mongoReviews) Get(ctx context.Context, id string) (*models.Review, error) {
	return getByID[models.Review](ctx, r.col, id)
}

func (r mongoReviews) Update(ctx context.Context, rev *models.Review) error {
	return replaceByID(ctx, r.col, rev.ID, rev)
}

func (r mongoReviews) Delete(ctx context.Context, id string) error {
	return deleteOne(ctx, r.col, bson.M{"_id": id})
}

func reviewQuery(f ReviewFilter) bson.M {
	q := bson.M{}
	if f.RestaurantID != "" {
		q["restaurant_id"] = f.RestaurantID
	}
	switch {
	case f.UserIDs != nil:
		q["user_id"] = bson.M{"$in": f.UserIDs}
	case f.UserID != "":
		q["user_id"] = f.UserID
	}
	if f.HiddenOnly {
		q["is_hidden"] = true
	} else if !f.IncludeHidden {
		q["is_hidden"] = false
	}
	if !f.Since.IsZero() {
		q["created_at"] = bson.M{"$gte": f.Since}
	}
	return q
}

func (r mongoReviews) List(ctx context.Context, f ReviewFilter) ([]models.Review, int64, error) {
	return findPage[models.Review](ctx, r.col, reviewQuery(f), newestSort(), f.Page)
}

func (r mongoReviews) Count(ctx context.Context, f ReviewFilter) (int64, error) {
	return r.col.CountDocuments(ctx, reviewQuery(f))
}

func (r mongoReviews) Stats(ctx context.Context, restaurantIDs []string, since time.Time) (map[string]models.ReviewStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"restaurant_id": bson.M{"$in": restaurantIDs}, "is_hidden": false}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$restaurant_id",
			"count": bson.M{"$sum": 1},
			"avg":   bson.M{"$avg": "$rating"},
			"recent": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$gte": bson.A{"$created_at", since}}, 1, 0,
			}}},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID     string  `bson:"_id"`
		Count  int64   `bson:"count"`
		Avg    float64 `bson:"avg"`
		Recent int64   `bson:"recent"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]models.ReviewStats, len(rows))
	for _, row := range rows {
		st := models.ReviewStats{ReviewCount: row.Count, AvgRating: row.Avg}
		if !since.IsZero() {
			st.RecentCount = row.Recent
		}
		out[row.ID] = st
	}
	return out, nil
}

func (r mongoReviews) ActiveRestaurants(ctx context.Context, since time.Time, limit int) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": since}, "is_hidden": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$restaurant_id", "recent": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "recent", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	cur, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.ID
	}
	return out, nil
}

func (r mongoReviews) ReplaceImage(ctx context.Context, oldURL, newURL string) (int64, error) {
	update := bson.M{"$pull": bson.M{"images": oldURL}}
	if newURL != "" {
		update = bson.M{"$set": bson.M{"images.$": newURL}}
	}
	res, err := r.col.UpdateMany(ctx, bson.M{"images": oldURL}, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

type mongoComments struct{ col *mongo.Collection }

func (r mongoComments) Create(ctx context.Context, c *models.Comment) error {
	return insert(ctx, r.col, c)
}

func (r mongoComments) Get(ctx context.Context, id string) (*models.Comment, error) {
	return getByID[models.Comment](ctx, r.col, id)
}

func (r mongoComments) Update(ctx context.Context, c *models.Comment) error {
	return replaceByID(ctx, r.col, c.ID, c)
}

func (r mongoComments) Delete(ctx context.Context, id string) error {
	if err := deleteOne(ctx, r.col, bson.M{"_id": id}); err != nil {
		return err
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"parent_id": id})
	return err
}

func (r mongoComments) ListByReview(ctx context.Context, reviewID string, includeHidden bool) ([]models.Comment, error) {
	q := bson.M{"review_id": reviewID}
	if !includeHidden {
		q["is_hidden"] = false
	}
	opts := optionsFindSorted(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return findAll[models.Comment](ctx, r.col, q, opts)
}

func (r mongoComments) CountByReviews(ctx context.Context, reviewIDs []string) (map[string]int64, error) {
	return countBy(ctx, r.col, bson.M{"review_id": bson.M{"$in": reviewIDs}, "is_hidden": false}, "review_id")
}

func (r mongoComments) DeleteByReview(ctx context.Context, reviewID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"review_id": reviewID})
	return err
}

type mongoLikes struct{ col *mongo.Collection }

func (r mongoLikes) Create(ctx context.Context, l *models.Like) error {
	return insert(ctx, r.col, l)
}

func (r mongoLikes) Delete(ctx context.Context, userID, reviewID string) error {
	return deleteOne(ctx, r.col, bson.M{"user_id": userID, "review_id": reviewID})
}

func (r mongoLikes) CountByReviews(ctx context.Context, reviewIDs []string) (map[string]int64, error) {
	return countBy(ctx, r.col, bson.M{"review_id": bson.M{"$in": reviewIDs}}, "review_id")
}

func (r mongoLikes) LikedBy(ctx context.Context, userID string, reviewIDs []string) (map[string]bool, error) {
	likes, err := findAll[models.Like](ctx, r.col, bson.M{"user_id": userID, "review_id": bson.M{"$in": reviewIDs}})
	if err != nil {
		return nil, err
	}
	liked := make(map[string]bool, len(likes))
	for _, l := range likes {
		liked[l.ReviewID] = true
	}
	return liked, nil
}

func (r mongoLikes) DeleteByReview(ctx context.Context, reviewID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"review_id": reviewID})
	return err
}

type mongoFollows struct{ col *mongo.Collection }

func (r mongoFollows) Create(ctx context.Context, f *models.Follow) error {
	return insert(ctx, r.col, f)
}

func (r mongoFollows) Delete(ctx context.Context, followerID, followingID string) error {
	return deleteOne(ctx, r.col, bson.M{"follower_id": followerID, "following_id": followingID})
}

func (r mongoFollows) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"follower_id": followerID, "following_id": followingID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r mongoFollows) ListFollowers(ctx context.Context, userID string, p Page) ([]models.Follow, int64, error) {
	return findPage[models.Follow](ctx, r.col, bson.M{"following_id": userID}, newestSort(), p)
}

func (r mongoFollows) ListFollowing(ctx context.Context, userID string, p Page) ([]models.Follow, int64, error) {
	return findPage[models.Follow](ctx, r.col, bson.M{"follower_id": userID}, newestSort(), p)
}

func (r mongoFollows) Counts(ctx context.Context, userID string) (int64, int64, error) {
	followers, err := r.col.CountDocuments(ctx, bson.M{"following_id": userID})
	if err != nil {
		return 0, 0, err
	}
	following, err := r.col.CountDocuments(ctx, bson.M{"follower_id": userID})
	if err != nil {
		return 0, 0, err
	}
	return followers, following, nil
}

func (r mongoFollows) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	follows, err := findAll[models.Follow](ctx, r.col, bson.M{"follower_id": userID}, optionsFindSorted(bson.D{{Key: "following_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(follows))
	for i, f := range follows {
		ids[i] = f.FollowingID
	}
	return ids, nil
}
