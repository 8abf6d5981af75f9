package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/storage"
)

type memData struct {
	Users         map[string]models.User                  `bson:"users"`
	Restaurants   map[string]models.Restaurant            `bson:"restaurants"`
	Reviews       map[string]models.Review                `bson:"reviews"`
	Comments      map[string]models.Comment               `bson:"comments"`
	Likes         map[string]models.Like                  `bson:"likes"`
	Follows       map[string]models.Follow                `bson:"follows"`
	Reports       map[string]models.Report                `bson:"reports"`
	Flags         map[string]models.ContentFlag           `bson:"flags"`
	Actions       map[string]models.ModerationAction      `bson:"actions"`
	Strikes       map[string]models.UserStrike            `bson:"strikes"`
	Notifications map[string]models.Notification          `bson:"notifications"`
	Claims        map[string]models.RestaurantClaim       `bson:"claims"`
	Applications  map[string]models.InfluencerApplication `bson:"applications"`
	Sessions      map[string]models.Session               `bson:"sessions"`
}

func (d *memData) init() {
	if d.Users == nil {
		d.Users = map[string]models.User{}
	}
	if d.Restaurants == nil {
		d.Restaurants = map[string]models.Restaurant{}
	}
	if d.Reviews == nil {
		d.Reviews = map[string]models.Review{}
	}
	if d.Comments == nil {
		d.Comments = map[string]models.Comment{}
	}
	if d.Likes == nil {
		d.Likes = map[string]models.Like{}
	}
	if d.Follows == nil {
		d.Follows = map[string]models.Follow{}
	}
	if d.Reports == nil {
		d.Reports = map[string]models.Report{}
	}
	if d.Flags == nil {
		d.Flags = map[string]models.ContentFlag{}
	}
	if d.Actions == nil {
		d.Actions = map[string]models.ModerationAction{}
	}
	if d.Strikes == nil {
		d.Strikes = map[string]models.UserStrike{}
	}
	if d.Notifications == nil {
		d.Notifications = map[string]models.Notification{}
	}
	if d.Claims == nil {
		d.Claims = map[string]models.RestaurantClaim{}
	}
	if d.Applications == nil {
		d.Applications = map[string]models.InfluencerApplication{}
	}
	if d.Sessions == nil {
		d.Sessions = map[string]models.Session{}
	}
}

// clone copies every table. Records are replaced whole on update, so a
// shallow copy of each map is enough to roll back.
func (d *memData) clone() memData {
	return memData{
		Users:         maps.Clone(d.Users),
		Restaurants:   maps.Clone(d.Restaurants),
		Reviews:       maps.Clone(d.Reviews),
		Comments:      maps.Clone(d.Comments),
		Likes:         maps.Clone(d.Likes),
		Follows:       maps.Clone(d.Follows),
		Reports:       maps.Clone(d.Reports),
		Flags:         maps.Clone(d.Flags),
		Actions:       maps.Clone(d.Actions),
		Strikes:       maps.Clone(d.Strikes),
		Notifications: maps.Clone(d.Notifications),
		Claims:        maps.Clone(d.Claims),
		Applications:  maps.Clone(d.Applications),
		Sessions:      maps.Clone(d.Sessions),
	}
}

type locker interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// noLock is used inside a transaction, which already holds the write lock.
type noLock struct{}

func (noLock) Lock()    {}
func (noLock) Unlock()  {}
func (noLock) RLock()   {}
func (noLock) RUnlock() {}

// Memory is an in-process Store. Transactions hold the write lock for
// their whole duration and restore the previous state when fn fails.
type Memory struct {
	mu   *sync.RWMutex
	lk   locker
	data *memData
	inTx bool
	snap *storage.Snapshot
}

func NewMemory() *Memory {
	mu := &sync.RWMutex{}
	d := &memData{}
	d.init()
	return &Memory{mu: mu, lk: mu, data: d}
}

// OpenMemory returns a Memory store persisted to dir. The snapshot is read
// now and written back on Close.
func OpenMemory(dir string) (*Memory, error) {
	snap, err := storage.NewSnapshot(dir, "tastetrail.json")
	if err != nil {
		return nil, err
	}
	m := NewMemory()
	m.snap = snap

	raw, err := snap.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if raw != nil {
		var d memData
		if err := bson.UnmarshalExtJSON(raw, false, &d); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %s: %w", snap.Path(), err)
		}
		d.init()
		m.data = &d
		logging.Component("store").Info().
			Str("path", snap.Path()).
			Int("users", len(d.Users)).
			Int("restaurants", len(d.Restaurants)).
			Msg("loaded memory snapshot")
	}
	return m, nil
}

func (m *Memory) Users() UserRepository                 { return memUsers{m} }
func (m *Memory) Restaurants() RestaurantRepository     { return memRestaurants{m} }
func (m *Memory) Reviews() ReviewRepository             { return memReviews{m} }
func (m *Memory) Comments() CommentRepository           { return memComments{m} }
func (m *Memory) Likes() LikeRepository                 { return memLikes{m} }
func (m *Memory) Follows() FollowRepository             { return memFollows{m} }
func (m *Memory) Reports() ReportRepository             { return memReports{m} }
func (m *Memory) Flags() FlagRepository                 { return memFlags{m} }
func (m *Memory) Moderation() ModerationRepository      { return memModeration{m} }
func (m *Memory) Notifications() NotificationRepository { return memNotifications{m} }
func (m *Memory) Claims() ClaimRepository               { return memClaims{m} }
func (m *Memory) Applications() ApplicationRepository   { return memApplications{m} }
func (m *Memory) Sessions() SessionRepository           { return memSessions{m} }

// WithTx runs fn under the store's write lock. fn must only use tx; calling
// the outer store from inside fn deadlocks.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if m.inTx {
		return fn(ctx, m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.data.clone()
	tx := &Memory{mu: m.mu, lk: noLock{}, data: m.data, inTx: true}
	if err := fn(ctx, tx); err != nil {
		*m.data = saved
		return err
	}
	return nil
}

func (m *Memory) Close(_ context.Context) error {
	if m.snap == nil {
		return nil
	}
	m.lk.RLock()
	raw, err := bson.MarshalExtJSON(m.data, false, false)
	m.lk.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return m.snap.Write(raw)
}

func page[T any](items []T, p Page) []T {
	if p.Offset < 0 || p.Offset >= len(items) {
		return []T{}
	}
	items = items[p.Offset:]
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

// newestFirst orders by creation time descending, breaking ties by id so
// listings are deterministic.
func newestFirst[T any](items []T, at func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := at(items[i]), at(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return id(items[i]) < id(items[j])
	})
}

func oldestFirst[T any](items []T, at func(T) time.Time, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := at(items[i]), at(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return id(items[i]) < id(items[j])
	})
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
