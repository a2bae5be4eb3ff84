package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	AWS      AWSConfig      `yaml:"aws"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	APNs     APNsConfig     `yaml:"apns"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	App      AppConfig      `yaml:"app"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is "postgres" or "memory"
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	// Schema and UsersTable locate the user profile table
	Schema     string `yaml:"schema"`
	UsersTable string `yaml:"users_table"`
}

// AWSConfig holds S3 configuration
type AWSConfig struct {
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Endpoint      string `yaml:"endpoint"`
	ChatBucket    string `yaml:"chat_bucket"`
	AvatarsBucket string `yaml:"avatars_bucket"`
	PublicURL     string `yaml:"public_url"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

// RedisConfig holds Redis configuration. An empty address disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// APNsConfig holds Apple push configuration. An empty key path disables push.
type APNsConfig struct {
	KeyPath    string `yaml:"key_path"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// SMTPConfig holds outbound mail configuration
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// AppConfig holds public URLs and the cron key
type AppConfig struct {
	// PublicURL is where this API is reachable; confirmation links point here
	PublicURL       string `yaml:"public_url"`
	ConfirmRedirect string `yaml:"confirm_redirect_url"`
	InviteURL       string `yaml:"invite_url"`
	CronKey         string `yaml:"cron_key"`
}

// DefaultsConfig holds defaults for legacy profile fields
type DefaultsConfig struct {
	EstUserID *int `yaml:"est_user_id"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file, then applies .env and
// environment overrides. A missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{Driver: "postgres", Port: 5432, SSLMode: "disable", Schema: "public", UsersTable: "users"},
		AWS:      AWSConfig{Region: "us-east-1", ChatBucket: "chat-files", AvatarsBucket: "avatars"},
		JWT:      JWTConfig{AccessTTL: time.Hour, RefreshTTL: 30 * 24 * time.Hour},
		SMTP:     SMTPConfig{Port: "587"},
		Log:      LogConfig{Level: "info"},
	}
}

// applyEnv overrides fields with the non-empty variables returned by getenv
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(dst *int, key string) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(dst *bool, key string) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(&c.Server.Host, "SERVER_HOST")
	num(&c.Server.Port, "SERVER_PORT")

	str(&c.Database.Driver, "DB_DRIVER")
	str(&c.Database.Host, "DB_HOST")
	num(&c.Database.Port, "DB_PORT")
	str(&c.Database.User, "DB_USER")
	str(&c.Database.Password, "DB_PASSWORD")
	str(&c.Database.DBName, "DB_NAME")
	str(&c.Database.SSLMode, "DB_SSLMODE")
	str(&c.Database.Schema, "DB_SCHEMA")
	str(&c.Database.UsersTable, "DB_USERS_TABLE")

	str(&c.AWS.Region, "AWS_REGION")
	str(&c.AWS.AccessKey, "AWS_ACCESS_KEY_ID")
	str(&c.AWS.SecretKey, "AWS_SECRET_ACCESS_KEY")
	str(&c.AWS.Endpoint, "S3_ENDPOINT")
	str(&c.AWS.ChatBucket, "S3_CHAT_BUCKET")
	str(&c.AWS.AvatarsBucket, "S3_AVATARS_BUCKET")
	str(&c.AWS.PublicURL, "S3_PUBLIC_URL")

	str(&c.JWT.Secret, "JWT_SECRET")
	dur(&c.JWT.AccessTTL, "JWT_ACCESS_TTL")
	dur(&c.JWT.RefreshTTL, "JWT_REFRESH_TTL")

	str(&c.Redis.Addr, "REDIS_URL")
	str(&c.Redis.Password, "REDIS_PASSWORD")
	num(&c.Redis.DB, "REDIS_DB")

	str(&c.APNs.KeyPath, "APNS_KEY_PATH")
	str(&c.APNs.KeyID, "APNS_KEY_ID")
	str(&c.APNs.TeamID, "APNS_TEAM_ID")
	str(&c.APNs.Topic, "APNS_TOPIC")
	flag(&c.APNs.Production, "APNS_PRODUCTION")

	str(&c.SMTP.Host, "SMTP_HOST")
	str(&c.SMTP.Port, "SMTP_PORT")
	str(&c.SMTP.Username, "SMTP_USERNAME")
	str(&c.SMTP.Password, "SMTP_PASSWORD")
	str(&c.SMTP.From, "SMTP_FROM")

	str(&c.App.PublicURL, "PUBLIC_URL")
	str(&c.App.ConfirmRedirect, "FRONTEND_CONFIRM_URL")
	str(&c.App.InviteURL, "INVITE_URL")
	str(&c.App.CronKey, "CRON_KEY")

	if v := getenv("DEFAULT_EST_USER_ID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DEFAULT_EST_USER_ID: %w", err))
		} else {
			c.Defaults.EstUserID = &n
		}
	}

	str(&c.Log.Level, "LOG_LEVEL")

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
