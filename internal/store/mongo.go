package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tastetrail/backend/internal/logging"
)

const (
	colUsers         = "users"
	colRestaurants   = "restaurants"
	colReviews       = "reviews"
	colComments      = "comments"
	colLikes         = "likes"
	colFollows       = "follows"
	colReports       = "reports"
	colFlags         = "content_flags"
	colActions       = "moderation_actions"
	colStrikes       = "user_strikes"
	colNotifications = "notifications"
	colClaims        = "restaurant_claims"
	colApplications  = "influencer_applications"
	colSessions      = "sessions"
)

// Mongo is the production Store. Transactions need a replica set.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(ctx context.Context, mongoURI, dbName string) (*Mongo, error) {
	opts := options.Client().ApplyURI(mongoURI)
	if opts.TLSConfig != nil {
		// Atlas (mongodb+srv) connections: pin the minimum TLS version.
		opts.TLSConfig.MinVersion = tls.VersionTLS12
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	m := &Mongo{client: client, db: client.Database(dbName)}
	m.ensureIndexes(ctx)
	return m, nil
}

// ensureIndexes is best-effort; a failure is logged and the store still
// starts.
func (m *Mongo) ensureIndexes(ctx context.Context) {
	specs := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
		colRestaurants: {
			{Keys: bson.D{{Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "latitude", Value: 1}, {Key: "longitude", Value: 1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		colReviews: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "restaurant_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "restaurant_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "images", Value: 1}}},
		},
		colComments: {
			{Keys: bson.D{{Key: "review_id", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
		colLikes: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "review_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "review_id", Value: 1}}},
		},
		colFollows: {
			{Keys: bson.D{{Key: "follower_id", Value: 1}, {Key: "following_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "following_id", Value: 1}}},
		},
		colReports: {
			{Keys: bson.D{{Key: "reporter_id", Value: 1}, {Key: "target_id", Value: 1}, {Key: "target_type", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colFlags: {
			{Keys: bson.D{{Key: "content_id", Value: 1}, {Key: "content_type", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colActions: {
			{Keys: bson.D{{Key: "target_user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colStrikes: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}}},
		},
		colClaims: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "restaurant_id", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"status": "PENDING"})},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colApplications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"status": "PENDING"})},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		colSessions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}

	log := logging.Component("store")
	for name, idx := range specs {
		if _, err := m.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			log.Warn().Err(err).Str("collection", name).Msg("failed to create indexes")
		}
	}
}

func (m *Mongo) col(name string) *mongo.Collection {
	return m.db.Collection(name)
}

func (m *Mongo) Users() UserRepository                 { return mongoUsers{m.col(colUsers)} }
func (m *Mongo) Restaurants() RestaurantRepository     { return mongoRestaurants{m.col(colRestaurants)} }
func (m *Mongo) Reviews() ReviewRepository             { return mongoReviews{m.col(colReviews)} }
func (m *Mongo) Comments() CommentRepository           { return mongoComments{m.col(colComments)} }
func (m *Mongo) Likes() LikeRepository                 { return mongoLikes{m.col(colLikes)} }
func (m *Mongo) Follows() FollowRepository             { return mongoFollows{m.col(colFollows)} }
func (m *Mongo) Reports() ReportRepository             { return mongoReports{m.col(colReports)} }
func (m *Mongo) Flags() FlagRepository                 { return mongoFlags{m.col(colFlags)} }
func (m *Mongo) Notifications() NotificationRepository { return mongoNotifications{m.col(colNotifications)} }
func (m *Mongo) Claims() ClaimRepository               { return mongoClaims{m.col(colClaims)} }
func (m *Mongo) Applications() ApplicationRepository   { return mongoApplications{m.col(colApplications)} }
func (m *Mongo) Sessions() SessionRepository           { return mongoSessions{m.col(colSessions)} }

func (m *Mongo) Moderation() ModerationRepository {
	return mongoModeration{actions: m.col(colActions), strikes: m.col(colStrikes)}
}

// WithTx runs fn in a session transaction. The context handed to fn carries
// the session, so repository calls made with it join the transaction.
func (m *Mongo) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, m)
	}
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, m)
	})
	return err
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func insert(ctx context.Context, col *mongo.Collection, doc interface{}) error {
	_, err := col.InsertOne(ctx, doc)
	return mapErr(err)
}

func getByID[T any](ctx context.Context, col *mongo.Collection, id string) (*T, error) {
	var out T
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	if err := col.FindOne(ctx, filter, opts...).Decode(&out); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func replaceByID(ctx context.Context, col *mongo.Collection, id string, doc interface{}) error {
	res, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteOne(ctx context.Context, col *mongo.Collection, filter interface{}) error {
	res, err := col.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findPage[T any](ctx context.Context, col *mongo.Collection, filter interface{}, sort bson.D, p Page) ([]T, int64, error) {
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(sort).SetSkip(int64(p.Offset))
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit))
	}
	items, err := findAll[T](ctx, col, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// countBy groups documents matching filter by field and counts each group.
func countBy(ctx context.Context, col *mongo.Collection, filter bson.M, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	}
	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Count
	}
	return out, nil
}

func newestSort() bson.D {
	return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
}

func containsRegex(q string) bson.M {
	return bson.M{"$regex": regexpQuote(q), "$options": "i"}
}

// optional matches an omitempty string field, which is absent when empty.
func optional(v string) interface{} {
	if v == "" {
		return bson.M{"$in": bson.A{nil, ""}}
	}
	return v
}

func regexpQuote(s string) string {
	return regexp.QuoteMeta(s)
}

func optionsFindSorted(sort bson.D) *options.FindOptions {
	return options.Find().SetSort(sort)
}
