package services

import (
	"context"
	"strconv"

	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/store"
)

type AdminService struct {
	store store.Store
	notes *NotificationService
}

func (s *AdminService) Stats(ctx context.Context) (*models.AdminStats, error) {
	byRole, err := s.store.Users().CountByRole(ctx)
	if err != nil {
		return nil, err
	}
	out := &models.AdminStats{UsersByRole: byRole}
	if out.Restaurants, err = s.store.Restaurants().Count(ctx); err != nil {
		return nil, err
	}
	if out.Reviews, err = s.store.Reviews().Count(ctx, store.ReviewFilter{IncludeHidden: true}); err != nil {
		return nil, err
	}
	if out.HiddenReviews, err = s.store.Reviews().Count(ctx, store.ReviewFilter{HiddenOnly: true}); err != nil {
		return nil, err
	}
	if out.PendingReports, err = s.store.Reports().CountByStatus(ctx, models.ReportPending); err != nil {
		return nil, err
	}
	if _, out.PendingClaims, err = s.store.Claims().List(ctx, store.ClaimFilter{Status: models.StatusPending, Page: store.Page{Limit: 1}}); err != nil {
		return nil, err
	}
	if _, out.PendingApplications, err = s.store.Applications().List(ctx, store.ApplicationFilter{Status: models.StatusPending, Page: store.Page{Limit: 1}}); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AdminService) ListUsers(ctx context.Context, roles []models.Role, query string, p PageRequest) (models.Page[models.User], error) {
	for _, r := range roles {
		if !r.Valid() {
			return models.Page[models.User]{}, invalid("role", "unknown role")
		}
	}
	items, total, err := s.store.Users().List(ctx, store.UserFilter{Roles: roles, Query: query, Page: p.store()})
	if err != nil {
		return models.Page[models.User]{}, err
	}
	return pageOf(items, total, p), nil
}

// Announce sends a system announcement to every user, or to the given roles.
func (s *AdminService) Announce(ctx context.Context, actor Actor, req *models.AnnouncementRequest) (*models.AnnouncementResult, error) {
	if err := Validated(req.Validate()); err != nil {
		return nil, err
	}
	ids, err := s.store.Users().IDs(ctx, req.Roles)
	if err != nil {
		return nil, err
	}
	sent, err := s.notes.NotifyAll(ctx, ids, NotifyInput{
		FromUserID: actor.ID,
		Type:       models.NotifySystemAnnouncement,
		Title:      req.Title,
		Message:    req.Message,
		TargetType: "ANNOUNCEMENT",
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("sent", sent).Int("recipients", len(ids)).Msg("announcement partially delivered")
	}
	logging.Audit(ctx, logging.AuditAnnouncement, actor.ID, "", strconv.Itoa(sent)+" recipients")
	return &models.AnnouncementResult{Recipients: sent}, nil
}

// OwnerService backs the owner dashboard.
type OwnerService struct {
	store       store.Store
	restaurants *RestaurantService
	reviews     *ReviewService
	enforcer    *authz.Enforcer
}

func (s *OwnerService) Restaurants(ctx context.Context, actor Actor) ([]models.RestaurantWithStats, error) {
	return s.restaurants.OwnedBy(ctx, actor.ID)
}

// Reviews lists every review of an owned restaurant, hidden ones included.
func (s *OwnerService) Reviews(ctx context.Context, actor Actor, restaurantID string, p PageRequest) (models.Page[models.ReviewView], error) {
	r, err := s.store.Restaurants().Get(ctx, restaurantID)
	if err != nil {
		return models.Page[models.ReviewView]{}, notFoundAs(err, ErrRestaurantNotFound)
	}
	if r.OwnerID != actor.ID && !s.enforcer.Can(string(actor.Role), authz.ObjRestaurants, authz.ActWrite) {
		return models.Page[models.ReviewView]{}, forbidden("you do not own this restaurant")
	}
	return s.reviews.ListForOwner(ctx, actor.ID, restaurantID, p)
}
