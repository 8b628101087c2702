package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Refresh rotation policies.
const (
	RotationKeep   = "keep"
	RotationRevoke = "revoke"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort    string
	PublicBaseURL string
	MySQLDSN      string
	ResetDB       bool
	RedisAddr     string
	RedisDB       int
	RedisPass     string
	SwaggerHost   string

	JWTSecret       string
	EmailTokenTTL   time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	RefreshRotation string
	CookieSecure    bool

	StorageDriver  string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	MaxUploadBytes int64
	MaxBatchBytes  int64
	ListCacheTTL   time.Duration

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	RateLimitMax    int
	RateLimitWindow time.Duration

	SweepSchedule    string
	SweepRemoveAfter time.Duration
	SweepWarnAfter   time.Duration

	LogLevel  string
	LogFormat string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("MYSQL_DSN", "user:password@tcp(localhost:3306)/filevault?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("RESET_DB", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_EMAIL_TTL", 30*time.Minute)
	v.SetDefault("JWT_ACCESS_TTL", 15*time.Minute)
	v.SetDefault("JWT_REFRESH_TTL", 7*24*time.Hour)
	v.SetDefault("REFRESH_ROTATION", RotationKeep)
	v.SetDefault("COOKIE_SECURE", true)

	v.SetDefault("STORAGE_DRIVER", "s3")
	v.SetDefault("S3_BUCKET", "filevault-storage")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_PATH_STYLE", false)
	v.SetDefault("MAX_UPLOAD_BYTES", int64(200*1024*1024))
	v.SetDefault("MAX_BATCH_BYTES", int64(1024*1024*1024))
	v.SetDefault("LIST_CACHE_TTL", 60*time.Second)

	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("MAIL_FROM", "filevault.noreply@example.com")

	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", 15*time.Minute)

	v.SetDefault("SWEEP_SCHEDULE", "0 0 * * *")
	v.SetDefault("SWEEP_REMOVE_AFTER", 6*30*24*time.Hour)
	v.SetDefault("SWEEP_WARN_AFTER", 14369280000*time.Millisecond)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	return v
}

// FromViper reads every setting from v.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		ServerPort:    v.GetString("SERVER_PORT"),
		PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		MySQLDSN:      v.GetString("MYSQL_DSN"),
		ResetDB:       v.GetBool("RESET_DB"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisDB:       v.GetInt("REDIS_DB"),
		RedisPass:     v.GetString("REDIS_PASSWORD"),
		SwaggerHost:   v.GetString("SWAGGER_HOST"),

		JWTSecret:       v.GetString("JWT_SECRET"),
		EmailTokenTTL:   v.GetDuration("JWT_EMAIL_TTL"),
		AccessTokenTTL:  v.GetDuration("JWT_ACCESS_TTL"),
		RefreshTokenTTL: v.GetDuration("JWT_REFRESH_TTL"),
		RefreshRotation: strings.ToLower(v.GetString("REFRESH_ROTATION")),
		CookieSecure:    v.GetBool("COOKIE_SECURE"),

		StorageDriver:  strings.ToLower(v.GetString("STORAGE_DRIVER")),
		S3Bucket:       v.GetString("S3_BUCKET"),
		S3Region:       v.GetString("S3_REGION"),
		S3Endpoint:     v.GetString("S3_ENDPOINT"),
		S3AccessKey:    v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:    v.GetString("S3_SECRET_KEY"),
		S3UsePathStyle: v.GetBool("S3_USE_PATH_STYLE"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_BYTES"),
		MaxBatchBytes:  v.GetInt64("MAX_BATCH_BYTES"),
		ListCacheTTL:   v.GetDuration("LIST_CACHE_TTL"),

		SMTPHost: v.GetString("SMTP_HOST"),
		SMTPPort: v.GetInt("SMTP_PORT"),
		SMTPUser: v.GetString("SMTP_USER"),
		SMTPPass: v.GetString("SMTP_PASS"),
		MailFrom: v.GetString("MAIL_FROM"),

		RateLimitMax:    v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow: v.GetDuration("RATE_LIMIT_WINDOW"),

		SweepSchedule:    v.GetString("SWEEP_SCHEDULE"),
		SweepRemoveAfter: v.GetDuration("SWEEP_REMOVE_AFTER"),
		SweepWarnAfter:   v.GetDuration("SWEEP_WARN_AFTER"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if cfg.RefreshRotation != RotationRevoke {
		cfg.RefreshRotation = RotationKeep
	}
	return cfg
}

// RevokeOnRefresh reports whether a refresh consumes the presented refresh token.
func (c *Config) RevokeOnRefresh() bool {
	return c.RefreshRotation == RotationRevoke
}
