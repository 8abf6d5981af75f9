package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tastetrail/backend/internal/authz"
	"github.com/tastetrail/backend/internal/config"
	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
	"github.com/tastetrail/backend/internal/middleware"
	"github.com/tastetrail/backend/internal/models"
	"github.com/tastetrail/backend/internal/notify"
	"github.com/tastetrail/backend/internal/services"
)

type RouterDeps struct {
	Config   *config.Config
	Services *services.Services
	Enforcer *authz.Enforcer
	Hub      *notify.Hub
	// UploadDir is served under /uploads/ when images are stored locally.
	UploadDir string
}

func NewRouter(d RouterDeps) http.Handler {
	cfg := d.Config
	svc := d.Services
	can := func(obj, act string) func(http.Handler) http.Handler {
		return middleware.RequirePermission(d.Enforcer, obj, act)
	}

	authH := NewAuthHandler(svc.Auth, cfg.Auth)
	restaurantH := NewRestaurantHandler(svc)
	reviewH := NewReviewHandler(svc)
	profileH := NewProfileHandler(svc)
	reportH := NewReportHandler(svc)
	adminH := NewAdminHandler(svc)
	claimH := NewClaimHandler(svc)
	ownerH := NewOwnerHandler(svc)
	notificationH := NewNotificationHandler(svc)
	imageH := NewImageHandler(svc.Uploads)
	supportH := NewSupportHandler(svc.Support)
	liveH := NewLiveHandler(svc.Auth, svc.Notifications, d.Hub, cfg.CORS.AllowedOrigins)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(logging.HTTPMiddleware(*logging.L()))
	r.Use(chimw.Recoverer)
	r.Use(metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Authenticate(svc.Auth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	authLimit := rateLimit(cfg.RateLimit.AuthRequests, cfg.RateLimit)
	reportLimit := rateLimit(cfg.RateLimit.ReportRequests, cfg.RateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(authLimit).Post("/register", authH.Register)
			r.With(authLimit).Post("/login", authH.Login)
			r.With(authLimit).Post("/refresh", authH.Refresh)
			r.Post("/logout", authH.Logout)
			r.With(middleware.RequireAuth).Get("/me", authH.Me)
		})

		r.With(reportLimit).Post("/support", supportH.Submit)

		r.Route("/restaurants", func(r chi.Router) {
			r.Get("/", restaurantH.List)
			r.Get("/nearby", restaurantH.Nearby)
			r.Get("/trending", restaurantH.Trending)
			r.With(can(authz.ObjRestaurants, authz.ActCreate)).Post("/", restaurantH.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", restaurantH.Get)
				r.Get("/reviews", restaurantH.Reviews)
				r.With(middleware.RequireAuth).Put("/", restaurantH.Update)
				r.With(can(authz.ObjRestaurants, authz.ActDelete)).Delete("/", restaurantH.Delete)
				r.With(can(authz.ObjClaims, authz.ActCreate)).Post("/claims", restaurantH.Claim)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/trending", reviewH.Trending)
			r.With(middleware.RequireAuth).Get("/feed", reviewH.Feed)
			r.With(can(authz.ObjReviews, authz.ActWrite)).Post("/", reviewH.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", reviewH.Get)
				r.Get("/comments", reviewH.Comments)
				r.With(can(authz.ObjReviews, authz.ActWrite)).Put("/", reviewH.Update)
				r.With(can(authz.ObjReviews, authz.ActWrite)).Delete("/", reviewH.Delete)
				r.With(middleware.RequireAuth).Post("/response", reviewH.Respond)
				r.With(middleware.RequireAuth).Post("/promote", reviewH.Promote)
				r.With(can(authz.ObjLikes, authz.ActWrite)).Post("/like", reviewH.Like)
				r.With(can(authz.ObjLikes, authz.ActWrite)).Delete("/like", reviewH.Unlike)
				r.With(can(authz.ObjComments, authz.ActWrite)).Post("/comments", reviewH.CreateComment)
			})
		})
		r.With(can(authz.ObjComments, authz.ActWrite)).Delete("/comments/{id}", reviewH.DeleteComment)

		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RequireAuth).Put("/me", profileH.UpdateProfile)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", profileH.GetProfile)
				r.Get("/reviews", profileH.Reviews)
				r.Get("/followers", profileH.Followers)
				r.Get("/following", profileH.Following)
				r.With(can(authz.ObjFollows, authz.ActWrite)).Post("/follow", profileH.Follow)
				r.With(can(authz.ObjFollows, authz.ActWrite)).Delete("/follow", profileH.Unfollow)
			})
		})

		r.With(reportLimit, can(authz.ObjReports, authz.ActCreate)).Post("/reports", reportH.Create)
		r.With(middleware.RequireAuth).Get("/claims/mine", claimH.MyClaims)
		r.Route("/influencer/applications", func(r chi.Router) {
			r.With(can(authz.ObjApplications, authz.ActCreate)).Post("/", claimH.Apply)
			r.With(middleware.RequireAuth).Get("/mine", claimH.MyApplications)
		})
		r.With(can(authz.ObjUploads, authz.ActCreate)).Post("/uploads", imageH.Upload)

		r.Route("/notifications", func(r chi.Router) {
			// The live socket authenticates with ?token= itself.
			r.Get("/live", liveH.Serve)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/", notificationH.List)
				r.Get("/unread-count", notificationH.UnreadCount)
				r.Post("/read-all", notificationH.MarkAllRead)
				r.Patch("/{id}/read", notificationH.MarkRead)
				r.Delete("/{id}", notificationH.Delete)
			})
		})

		r.Route("/owner/restaurants", func(r chi.Router) {
			r.Use(can(authz.ObjOwnerDashboard, authz.ActRead))
			r.Get("/", ownerH.Restaurants)
			r.Get("/{id}/reviews", ownerH.Reviews)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Route("/reports", func(r chi.Router) {
				r.Use(can(authz.ObjReports, authz.ActManage))
				r.Get("/", reportH.List)
				r.Get("/{id}", reportH.Get)
				r.Post("/{id}/investigate", reportH.Investigate)
				r.Post("/{id}/approve", reportH.Approve)
				r.Post("/{id}/reject", reportH.Reject)
			})
			r.With(can(authz.ObjFlags, authz.ActRead)).Get("/flags", reportH.Flags)

			r.With(can(authz.ObjUsers, authz.ActRead)).Get("/users", adminH.Users)
			r.With(can(authz.ObjUsers, authz.ActRead)).Get("/users/{id}/moderation", adminH.History)
			r.With(can(authz.ObjModeration, authz.ActAct)).Post("/users/{id}/actions", adminH.UserAction)
			r.With(can(authz.ObjContent, authz.ActReinstate)).Post("/content/{type}/{id}/reinstate", adminH.Reinstate)
			r.With(can(authz.ObjStats, authz.ActRead)).Get("/stats", adminH.Stats)
			r.With(can(authz.ObjAnnouncements, authz.ActSend)).Post("/announcements", adminH.Announce)

			r.Route("/claims", func(r chi.Router) {
				r.Use(can(authz.ObjClaims, authz.ActManage))
				r.Get("/", claimH.ListClaims)
				r.Post("/{id}/approve", claimH.ApproveClaim)
				r.Post("/{id}/reject", claimH.RejectClaim)
			})
			r.Route("/applications", func(r chi.Router) {
				r.Use(can(authz.ObjApplications, authz.ActManage))
				r.Get("/", claimH.ListApplications)
				r.Post("/{id}/approve", claimH.ApproveApplication)
				r.Post("/{id}/reject", claimH.RejectApplication)
			})
		})
	})

	if d.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir))))
	}

	return r
}

// rateLimit limits by client IP. A non-positive limit disables it.
func rateLimit(requests int, cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	if requests <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, models.NewCodedErrorResponse("RATE_LIMITED", "Too many requests, slow down"))
		}),
	)
}
