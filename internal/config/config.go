package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/ranking"
)

type Config struct {
	Server     ServerConfig
	Mongo      MongoConfig
	Memory     MemoryConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Cache      CacheConfig
	Ranking    RankingConfig
	Moderation ModerationConfig
	Media      MediaConfig
	Sentiment  SentimentConfig
	Recaptcha  RecaptchaConfig
	SendGrid   SendGridConfig  `mapstructure:"sendgrid"`
	CORS       CORSConfig      `mapstructure:"cors"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Bootstrap  BootstrapConfig
	Log        logging.Config
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// MemoryConfig controls the in-process store used when no Mongo URI is set.
type MemoryConfig struct {
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	Issuer       string        `mapstructure:"issuer"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	BcryptCost   int           `mapstructure:"bcrypt_cost"`
}

type CacheConfig struct {
	Prefix      string        `mapstructure:"prefix"`
	TrendingTTL time.Duration `mapstructure:"trending_ttl"`
}

type RankingConfig struct {
	Review     ranking.Policy `mapstructure:"review"`
	Restaurant ranking.Policy `mapstructure:"restaurant"`
	// CandidateLimit bounds how many recent items are scored per request.
	CandidateLimit int `mapstructure:"candidate_limit"`
}

type ModerationConfig struct {
	// FlagThreshold is the lowest report severity that raises a content flag.
	FlagThreshold    string        `mapstructure:"flag_threshold"`
	WarningStrikeTTL time.Duration `mapstructure:"warning_strike_ttl"`
}

type MediaConfig struct {
	Bucket          string `mapstructure:"bucket"`
	UploadDir       string `mapstructure:"upload_dir"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	MaxUploadSizeMB int64  `mapstructure:"max_upload_size_mb"`
	SafeSearch      bool   `mapstructure:"safe_search"`
}

type SentimentConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RecaptchaConfig struct {
	Secret string `mapstructure:"secret"`
}

type SendGridConfig struct {
	APIKey       string `mapstructure:"api_key"`
	FromEmail    string `mapstructure:"from_email"`
	SupportEmail string `mapstructure:"support_email"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	AuthRequests   int           `mapstructure:"auth_requests"`
	ReportRequests int           `mapstructure:"report_requests"`
	Window         time.Duration `mapstructure:"window"`
}

// BootstrapConfig seeds the first admin account on startup.
type BootstrapConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// Load reads config.yaml (optional) from path and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= c.Auth.AccessTTL {
		return errors.New("auth.refresh_ttl must be longer than auth.access_ttl")
	}
	switch strings.ToUpper(c.Moderation.FlagThreshold) {
	case "LOW", "MEDIUM", "HIGH":
	default:
		return fmt.Errorf("moderation.flag_threshold %q must be LOW, MEDIUM or HIGH", c.Moderation.FlagThreshold)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "20s")
	v.SetDefault("server.request_timeout", "10s")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "tastetrail")
	v.SetDefault("memory.snapshot_dir", "")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "tastetrail:notifications")

	v.SetDefault("auth.jwt_secret", "dev-secret-change-in-production")
	v.SetDefault("auth.issuer", "tastetrail")
	v.SetDefault("auth.access_ttl", "1h")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("auth.cookie_secure", false)
	v.SetDefault("auth.cookie_domain", "")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("cache.prefix", "tastetrail")
	v.SetDefault("cache.trending_ttl", "10m")

	v.SetDefault("ranking.review.like_weight", ranking.DefaultReviewPolicy.LikeWeight)
	v.SetDefault("ranking.review.comment_weight", ranking.DefaultReviewPolicy.CommentWeight)
	v.SetDefault("ranking.review.share_weight", ranking.DefaultReviewPolicy.ShareWeight)
	v.SetDefault("ranking.review.rating_weight", ranking.DefaultReviewPolicy.RatingWeight)
	v.SetDefault("ranking.review.age_exponent", ranking.DefaultReviewPolicy.AgeExponent)
	v.SetDefault("ranking.restaurant.recent_weight", ranking.DefaultRestaurantPolicy.RecentWeight)
	v.SetDefault("ranking.restaurant.popularity_weight", ranking.DefaultRestaurantPolicy.PopularityWeight)
	v.SetDefault("ranking.restaurant.recent_window", ranking.DefaultRestaurantPolicy.RecentWindow.String())
	v.SetDefault("ranking.candidate_limit", 500)

	v.SetDefault("moderation.flag_threshold", "MEDIUM")
	v.SetDefault("moderation.warning_strike_ttl", "720h")

	v.SetDefault("media.bucket", "")
	v.SetDefault("media.upload_dir", "./uploads")
	v.SetDefault("media.public_base_url", "/uploads")
	v.SetDefault("media.max_upload_size_mb", 10)
	v.SetDefault("media.safe_search", true)

	v.SetDefault("sentiment.endpoint", "")
	v.SetDefault("sentiment.api_key", "")
	v.SetDefault("sentiment.model", "gpt-4o-mini")
	v.SetDefault("sentiment.timeout", "8s")

	v.SetDefault("recaptcha.secret", "")
	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("sendgrid.from_email", "")
	v.SetDefault("sendgrid.support_email", "")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("rate_limit.auth_requests", 20)
	v.SetDefault("rate_limit.report_requests", 30)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("bootstrap.admin_email", "")
	v.SetDefault("bootstrap.admin_password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "tastetrail-api")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.address", "SERVER_ADDRESS")
	_ = v.BindEnv("mongo.uri", "MONGO_URI")
	_ = v.BindEnv("mongo.database", "MONGO_DB")
	_ = v.BindEnv("memory.snapshot_dir", "DATA_DIR")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("auth.cookie_secure", "COOKIE_SECURE")
	_ = v.BindEnv("media.bucket", "STORAGE_BUCKET")
	_ = v.BindEnv("media.upload_dir", "UPLOAD_DIR")
	_ = v.BindEnv("sentiment.endpoint", "SENTIMENT_ENDPOINT")
	_ = v.BindEnv("sentiment.api_key", "SENTIMENT_API_KEY")
	_ = v.BindEnv("recaptcha.secret", "RECAPTCHA_SECRET")
	_ = v.BindEnv("sendgrid.api_key", "SENDGRID_API_KEY")
	_ = v.BindEnv("sendgrid.from_email", "SENDGRID_FROM_EMAIL")
	_ = v.BindEnv("sendgrid.support_email", "SUPPORT_EMAIL")
	_ = v.BindEnv("bootstrap.admin_email", "ADMIN_EMAIL")
	_ = v.BindEnv("bootstrap.admin_password", "ADMIN_PASSWORD")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}
