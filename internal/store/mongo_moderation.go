package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tastetrail/backend/internal/models"
)

type mongoReports struct{ col *mongo.Collection }

func (r mongoReports) Create(ctx context.Context, rep *models.Report) error {
	return insert(ctx, r.col, rep)
}

func (r mongoReports) Get(ctx context.Context, id string) (*models.Report, error) {
	return getByID[models.Report](ctx, r.col, id)
}

func (r mongoReports) Update(ctx context.Context, rep *models.Report) error {
	return replaceByID(ctx, r.col, rep.ID, rep)
}

func (r mongoReports) List(ctx context.Context, f ReportFilter) ([]models.Report, int64, error) {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.TargetType != "" {
		q["target_type"] = f.TargetType
	}
	return findPage[models.Report](ctx, r.col, q, newestSort(), f.Page)
}

func (r mongoReports) CountByStatus(ctx context.Context, status models.ReportStatus) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"status": status})
}

type mongoFlags struct{ col *mongo.Collection }

func (r mongoFlags) Escalate(ctx context.Context, contentID string, contentType models.TargetType, sev models.Severity, reason models.ReportReason, now time.Time) (*models.ContentFlag, error) {
	key := bson.M{"content_id": contentID, "content_type": contentType}
	// Two attempts: a concurrent first report can win the insert, after
	// which the update path applies.
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := findOne[models.ContentFlag](ctx, r.col, key)
		if errors.Is(err, ErrNotFound) {
			f := models.ContentFlag{
				ID:          uuid.NewString(),
				ContentID:   contentID,
				ContentType: contentType,
				Severity:    sev,
				ReportCount: 1,
				Reasons:     []models.ReportReason{reason},
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := insert(ctx, r.col, &f); err != nil {
				if errors.Is(err, ErrDuplicate) {
					continue
				}
				return nil, err
			}
			return &f, nil
		}
		if err != nil {
			return nil, err
		}

		update := bson.M{
			"$set":  bson.M{"severity": existing.Severity.Max(sev), "updated_at": now},
			"$inc":  bson.M{"report_count": 1},
			"$push": bson.M{"reasons": reason},
		}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var out models.ContentFlag
		if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": existing.ID}, update, opts).Decode(&out); err != nil {
			return nil, mapErr(err)
		}
		return &out, nil
	}
	return nil, ErrDuplicate
}

func (r mongoFlags) Delete(ctx context.Context, contentID string, contentType models.TargetType) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"content_id": contentID, "content_type": contentType})
	return err
}

// List sorts in memory: severity is stored as its name, and open flags are
// few because resolving a report deletes its flag.
func (r mongoFlags) List(ctx context.Context, p Page) ([]models.ContentFlag, int64, error) {
	flags, err := findAll[models.ContentFlag](ctx, r.col, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	sortFlags(flags)
	return page(flags, p), int64(len(flags)), nil
}

type mongoModeration struct {
	actions *mongo.Collection
	strikes *mongo.Collection
}

func (r mongoModeration) CreateAction(ctx context.Context, a *models.ModerationAction) error {
	return insert(ctx, r.actions, a)
}

func (r mongoModeration) ListActions(ctx context.Context, targetUserID string) ([]models.ModerationAction, error) {
	return findAll[models.ModerationAction](ctx, r.actions, bson.M{"target_user_id": targetUserID}, optionsFindSorted(newestSort()))
}

func activeBanFilter(userID string, now time.Time) bson.M {
	return bson.M{
		"target_user_id": userID,
		"kind":           bson.M{"$in": bson.A{models.ActionPermanentBan, models.ActionTemporaryBan}},
		"$or": bson.A{
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}
}

func (r mongoModeration) ActiveBan(ctx context.Context, userID string, now time.Time) (*models.ModerationAction, error) {
	opts := options.FindOne().SetSort(newestSort())
	a, err := findOne[models.ModerationAction](ctx, r.actions, activeBanFilter(userID, now), opts)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return a, err
}

func (r mongoModeration) ExpireBans(ctx context.Context, userID string, now time.Time) (int64, error) {
	res, err := r.actions.UpdateMany(ctx, activeBanFilter(userID, now), bson.M{"$set": bson.M{"expires_at": now}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r mongoModeration) CreateStrike(ctx context.Context, s *models.UserStrike) error {
	return insert(ctx, r.strikes, s)
}

func (r mongoModeration) ListStrikes(ctx context.Context, userID string) ([]models.UserStrike, error) {
	return findAll[models.UserStrike](ctx, r.strikes, bson.M{"user_id": userID}, optionsFindSorted(newestSort()))
}
