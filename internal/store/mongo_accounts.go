package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tastetrail/backend/internal/models"
)

type mongoUsers struct{ col *mongo.Collection }

func (r mongoUsers) Create(ctx context.Context, u *models.User) error {
	return insert(ctx, r.col, u)
}

func (r mongoUsers) Get(ctx context.Context, id string) (*models.User, error) {
	return getByID[models.User](ctx, r.col, id)
}

func (r mongoUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, r.col, bson.M{"email": email})
}

func (r mongoUsers) Update(ctx context.Context, u *models.User) error {
	return replaceByID(ctx, r.col, u.ID, u)
}

func roleFilter(roles []models.Role) bson.M {
	q := bson.M{}
	if len(roles) > 0 {
		q["role"] = bson.M{"$in": roles}
	}
	return q
}

func (r mongoUsers) List(ctx context.Context, f UserFilter) ([]models.User, int64, error) {
	q := roleFilter(f.Roles)
	if f.Query != "" {
		re := containsRegex(f.Query)
		q["$or"] = bson.A{bson.M{"username": re}, bson.M{"name": re}, bson.M{"email": re}}
	}
	return findPage[models.User](ctx, r.col, q, newestSort(), f.Page)
}

func (r mongoUsers) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	counts, err := countBy(ctx, r.col, bson.M{}, "role")
	if err != nil {
		return nil, err
	}
	out := make(map[models.Role]int64, len(counts))
	for role, n := range counts {
		out[models.Role(role)] = n
	}
	return out, nil
}

func (r mongoUsers) IDs(ctx context.Context, roles []models.Role) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}})
	rows, err := findAll[struct {
		ID string `bson:"_id"`
	}](ctx, r.col, roleFilter(roles), opts)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	return ids, nil
}

type mongoSessions struct{ col *mongo.Collection }

func (r mongoSessions) Create(ctx context.Context, s *models.Session) error {
	return insert(ctx, r.col, s)
}

func (r mongoSessions) Get(ctx context.Context, id string) (*models.Session, error) {
	return getByID[models.Session](ctx, r.col, id)
}

func (r mongoSessions) Update(ctx context.Context, s *models.Session) error {
	return replaceByID(ctx, r.col, s.ID, s)
}

func (r mongoSessions) Delete(ctx context.Context, id string) error {
	return deleteOne(ctx, r.col, bson.M{"_id": id})
}

func (r mongoSessions) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

type mongoNotifications struct{ col *mongo.Collection }

func (r mongoNotifications) Create(ctx context.Context, n *models.Notification) error {
	return insert(ctx, r.col, n)
}

func (r mongoNotifications) Exists(ctx context.Context, key NotificationKey) (bool, error) {
	q := bson.M{
		"user_id":      key.UserID,
		"type":         key.Type,
		"from_user_id": optional(key.FromUserID),
		"target_id":    optional(key.TargetID),
	}
	n, err := r.col.CountDocuments(ctx, q, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r mongoNotifications) List(ctx context.Context, userID string, unreadOnly bool, p Page) ([]models.Notification, int64, error) {
	q := bson.M{"user_id": userID}
	if unreadOnly {
		q["read"] = false
	}
	return findPage[models.Notification](ctx, r.col, q, newestSort(), p)
}

func (r mongoNotifications) CountUnread(ctx context.Context, userID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"user_id": userID, "read": false})
}

func (r mongoNotifications) MarkRead(ctx context.Context, userID, id string) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r mongoNotifications) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.col.UpdateMany(ctx, bson.M{"user_id": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r mongoNotifications) Delete(ctx context.Context, userID, id string) error {
	return deleteOne(ctx, r.col, bson.M{"_id": id, "user_id": userID})
}

type mongoClaims struct{ col *mongo.Collection }

func (r mongoClaims) Create(ctx context.Context, c *models.RestaurantClaim) error {
	return insert(ctx, r.col, c)
}

func (r mongoClaims) Get(ctx context.Context, id string) (*models.RestaurantClaim, error) {
	return getByID[models.RestaurantClaim](ctx, r.col, id)
}

func (r mongoClaims) Update(ctx context.Context, c *models.RestaurantClaim) error {
	return replaceByID(ctx, r.col, c.ID, c)
}

func (r mongoClaims) List(ctx context.Context, f ClaimFilter) ([]models.RestaurantClaim, int64, error) {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.UserID != "" {
		q["user_id"] = f.UserID
	}
	if f.RestaurantID != "" {
		q["restaurant_id"] = f.RestaurantID
	}
	return findPage[models.RestaurantClaim](ctx, r.col, q, newestSort(), f.Page)
}

type mongoApplications struct{ col *mongo.Collection }

func (r mongoApplications) Create(ctx context.Context, a *models.InfluencerApplication) error {
	return insert(ctx, r.col, a)
}

func (r mongoApplications) Get(ctx context.Context, id string) (*models.InfluencerApplication, error) {
	return getByID[models.InfluencerApplication](ctx, r.col, id)
}

func (r mongoApplications) Update(ctx context.Context, a *models.InfluencerApplication) error {
	return replaceByID(ctx, r.col, a.ID, a)
}

func (r mongoApplications) List(ctx context.Context, f ApplicationFilter) ([]models.InfluencerApplication, int64, error) {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.UserID != "" {
		q["user_id"] = f.UserID
	}
	return findPage[models.InfluencerApplication](ctx, r.col, q, newestSort(), f.Page)
}
