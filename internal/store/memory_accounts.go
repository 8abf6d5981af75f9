package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/models"
)

type memUsers struct{ m *Memory }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Users[u.ID]; ok {
		return ErrDuplicate
	}
	for _, existing := range r.m.data.Users {
		if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username) {
			return ErrDuplicate
		}
	}
	r.m.data.Users[u.ID] = *u
	return nil
}

func (r memUsers) Get(_ context.Context, id string) (*models.User, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	u, ok := r.m.data.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	for _, u := range r.m.data.Users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memUsers) Update(_ context.Context, u *models.User) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Users[u.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range r.m.data.Users {
		if id != u.ID && (strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username)) {
			return ErrDuplicate
		}
	}
	r.m.data.Users[u.ID] = *u
	return nil
}

func roleIn(role models.Role, roles []models.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (r memUsers) List(_ context.Context, f UserFilter) ([]models.User, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var out []models.User
	for _, u := range r.m.data.Users {
		if !roleIn(u.Role, f.Roles) {
			continue
		}
		if f.Query != "" && !containsFold(u.Username, f.Query) && !containsFold(u.Name, f.Query) && !containsFold(u.Email, f.Query) {
			continue
		}
		out = append(out, u)
	}
	newestFirst(out, func(u models.User) time.Time { return u.CreatedAt }, func(u models.User) string { return u.ID })
	return page(out, f.Page), int64(len(out)), nil
}

func (r memUsers) CountByRole(_ context.Context) (map[models.Role]int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	counts := make(map[models.Role]int64)
	for _, u := range r.m.data.Users {
		counts[u.Role]++
	}
	return counts, nil
}

func (r memUsers) IDs(_ context.Context, roles []models.Role) ([]string, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var ids []string
	for _, u := range r.m.data.Users {
		if roleIn(u.Role, roles) {
			ids = append(ids, u.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memSessions struct{ m *Memory }

func (r memSessions) Create(_ context.Context, s *models.Session) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Sessions[s.ID]; ok {
		return ErrDuplicate
	}
	r.m.data.Sessions[s.ID] = *s
	return nil
}

func (r memSessions) Get(_ context.Context, id string) (*models.Session, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	s, ok := r.m.data.Sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r memSessions) Update(_ context.Context, s *models.Session) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Sessions[s.ID]; !ok {
		return ErrNotFound
	}
	r.m.data.Sessions[s.ID] = *s
	return nil
}

func (r memSessions) Delete(_ context.Context, id string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.data.Sessions, id)
	return nil
}

func (r memSessions) DeleteByUser(_ context.Context, userID string) (int64, error) {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	var n int64
	for id, s := range r.m.data.Sessions {
		if s.UserID == userID {
			delete(r.m.data.Sessions, id)
			n++
		}
	}
	return n, nil
}

type memNotifications struct{ m *Memory }

func (r memNotifications) Create(_ context.Context, n *models.Notification) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Notifications[n.ID]; ok {
		return ErrDuplicate
	}
	r.m.data.Notifications[n.ID] = *n
	return nil
}

func (r memNotifications) Exists(_ context.Context, key NotificationKey) (bool, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	for _, n := range r.m.data.Notifications {
		if n.UserID == key.UserID && n.FromUserID == key.FromUserID && n.Type == key.Type && n.TargetID == key.TargetID {
			return true, nil
		}
	}
	return false, nil
}

func (r memNotifications) List(_ context.Context, userID string, unreadOnly bool, p Page) ([]models.Notification, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var out []models.Notification
	for _, n := range r.m.data.Notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	newestFirst(out, func(n models.Notification) time.Time { return n.CreatedAt }, func(n models.Notification) string { return n.ID })
	return page(out, p), int64(len(out)), nil
}

func (r memNotifications) CountUnread(_ context.Context, userID string) (int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var count int64
	for _, n := range r.m.data.Notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r memNotifications) MarkRead(_ context.Context, userID, id string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	n, ok := r.m.data.Notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	r.m.data.Notifications[id] = n
	return nil
}

func (r memNotifications) MarkAllRead(_ context.Context, userID string) (int64, error) {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	var changed int64
	for id, n := range r.m.data.Notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.m.data.Notifications[id] = n
			changed++
		}
	}
	return changed, nil
}

func (r memNotifications) Delete(_ context.Context, userID, id string) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	n, ok := r.m.data.Notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(r.m.data.Notifications, id)
	return nil
}

type memClaims struct{ m *Memory }

func (r memClaims) Create(_ context.Context, c *models.RestaurantClaim) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if c.Status == models.StatusPending {
		for _, existing := range r.m.data.Claims {
			if existing.Status == models.StatusPending && existing.UserID == c.UserID && existing.RestaurantID == c.RestaurantID {
				return ErrDuplicate
			}
		}
	}
	r.m.data.Claims[c.ID] = *c
	return nil
}

func (r memClaims) Get(_ context.Context, id string) (*models.RestaurantClaim, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	c, ok := r.m.data.Claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (r memClaims) Update(_ context.Context, c *models.RestaurantClaim) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Claims[c.ID]; !ok {
		return ErrNotFound
	}
	r.m.data.Claims[c.ID] = *c
	return nil
}

func (r memClaims) List(_ context.Context, f ClaimFilter) ([]models.RestaurantClaim, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var out []models.RestaurantClaim
	for _, c := range r.m.data.Claims {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.UserID != "" && c.UserID != f.UserID {
			continue
		}
		if f.RestaurantID != "" && c.RestaurantID != f.RestaurantID {
			continue
		}
		out = append(out, c)
	}
	newestFirst(out, func(c models.RestaurantClaim) time.Time { return c.CreatedAt }, func(c models.RestaurantClaim) string { return c.ID })
	return page(out, f.Page), int64(len(out)), nil
}

type memApplications struct{ m *Memory }

func (r memApplications) Create(_ context.Context, a *models.InfluencerApplication) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if a.Status == models.StatusPending {
		for _, existing := range r.m.data.Applications {
			if existing.Status == models.StatusPending && existing.UserID == a.UserID {
				return ErrDuplicate
			}
		}
	}
	r.m.data.Applications[a.ID] = *a
	return nil
}

func (r memApplications) Get(_ context.Context, id string) (*models.InfluencerApplication, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	a, ok := r.m.data.Applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r memApplications) Update(_ context.Context, a *models.InfluencerApplication) error {
	r.m.lk.Lock()
	defer r.m.lk.Unlock()
	if _, ok := r.m.data.Applications[a.ID]; !ok {
		return ErrNotFound
	}
	r.m.data.Applications[a.ID] = *a
	return nil
}

func (r memApplications) List(_ context.Context, f ApplicationFilter) ([]models.InfluencerApplication, int64, error) {
	r.m.lk.RLock()
	defer r.m.lk.RUnlock()
	var out []models.InfluencerApplication
	for _, a := range r.m.data.Applications {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.UserID != "" && a.UserID != f.UserID {
			continue
		}
		out = append(out, a)
	}
	newestFirst(out, func(a models.InfluencerApplication) time.Time { return a.CreatedAt }, func(a models.InfluencerApplication) string { return a.ID })
	return page(out, f.Page), int64(len(out)), nil
}
