package models

import (
	"strings"
	"time"

	"github.com/tastetrail/backend/internal/validation"
)

type Role string

const (
	RoleUser       Role = "USER"
	RoleInfluencer Role = "INFLUENCER"
	RoleOwner      Role = "OWNER"
	RoleModerator  Role = "MODERATOR"
	RoleAdmin      Role = "ADMIN"
)

// AllRoles lists roles from least to most privileged.
var AllRoles = []Role{RoleUser, RoleInfluencer, RoleOwner, RoleModerator, RoleAdmin}

func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Rank orders roles for one-directional promotions. USER is lowest.
func (r Role) Rank() int {
	for i, known := range AllRoles {
		if r == known {
			return i
		}
	}
	return -1
}

// IsStaff reports whether the role may moderate content.
func (r Role) IsStaff() bool {
	return r == RoleModerator || r == RoleAdmin
}

type Preferences struct {
	Cuisines   []string `json:"cuisines,omitempty" bson:"cuisines,omitempty"`
	PriceTiers []int    `json:"price_tiers,omitempty" bson:"price_tiers,omitempty"`
	Dietary    []string `json:"dietary,omitempty" bson:"dietary,omitempty"`
}

type User struct {
	ID           string      `json:"id" bson:"_id"`
	Email        string      `json:"email" bson:"email"`
	Username     string      `json:"username" bson:"username"`
	PasswordHash string      `json:"-" bson:"password_hash"`
	Name         string      `json:"name" bson:"name"`
	Role         Role        `json:"role" bson:"role"`
	Verified     bool        `json:"verified" bson:"verified"`
	Bio          string      `json:"bio,omitempty" bson:"bio,omitempty"`
	AvatarURL    string      `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Preferences  Preferences `json:"preferences" bson:"preferences"`
	CreatedAt    time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" bson:"updated_at"`
}

// PublicUser is the subset of a user shown to other users.
type PublicUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Verified  bool   `json:"verified"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Role:      u.Role,
		Verified:  u.Verified,
		AvatarURL: u.AvatarURL,
	}
}

type UserProfile struct {
	PublicUser
	Bio            string    `json:"bio,omitempty"`
	FollowerCount  int64     `json:"follower_count"`
	FollowingCount int64     `json:"following_count"`
	ReviewCount    int64     `json:"review_count"`
	IsFollowing    bool      `json:"is_following"`
	CreatedAt      time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Email          string `json:"email" validate:"required,email,max=254"`
	Username       string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Password       string `json:"password" validate:"required,min=8,max=128"`
	Name           string `json:"name" validate:"notblank,max=80"`
	Role           Role   `json:"role" validate:"omitempty,oneof=USER OWNER INFLUENCER MODERATOR ADMIN"`
	RecaptchaToken string `json:"recaptcha_token,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         User      `json:"user"`
}

// RefreshRequest lets non-browser clients send the refresh token in the
// body instead of the cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UpdateProfileRequest struct {
	Name        *string      `json:"name,omitempty" validate:"omitempty,notblank,max=80"`
	Bio         *string      `json:"bio,omitempty" validate:"omitempty,max=500"`
	AvatarURL   *string      `json:"avatar_url,omitempty" validate:"omitempty,max=1024"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.TrimSpace(r.Username)
	r.Name = strings.TrimSpace(r.Name)
	if r.Role == "" {
		r.Role = RoleUser
	}
}

func (r *RegisterRequest) Validate() map[string]string {
	r.Normalize()
	return validation.Struct(r)
}

func (r *LoginRequest) Validate() map[string]string {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	return validation.Struct(r)
}

func (r *UpdateProfileRequest) Validate() map[string]string {
	errs := validation.Struct(r)
	if r.Preferences != nil {
		for _, tier := range r.Preferences.PriceTiers {
			if tier < 1 || tier > 4 {
				errs = validation.Merge(errs, map[string]string{"preferences": "price tiers must be between 1 and 4"})
				break
			}
		}
	}
	return errs
}
