// Package config loads service configuration from the environment,
// with an optional config.yaml overlay for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Addr       string
	CORSOrigin string

	// Workbook settings.
	SpreadsheetID   string
	CredentialsFile string

	// Auth.
	JWTSecret  string
	AccessTTL  time.Duration
	SessionTTL time.Duration

	// Redis holds login sessions; empty disables persistent sessions.
	RedisURL string

	// Meilisearch for ticket search; empty falls back to in-memory.
	MeiliURL       string
	MeiliMasterKey string

	// MinIO object storage for ticket attachments; empty disables uploads.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// SMTP for assignment notifications; empty host disables email.
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
}

// Load reads OPSDESK_* environment variables over config.yaml in the
// working directory. A missing config file is fine; a missing
// spreadsheet id is not.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OPSDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8787")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("credentials_file", "credentials.json")
	v.SetDefault("jwt_secret", "opsdesk-dev-secret")
	v.SetDefault("access_ttl_seconds", 900)
	v.SetDefault("session_ttl_seconds", 2592000)
	v.SetDefault("redis_url", "")
	v.SetDefault("meili_url", "")
	v.SetDefault("meili_master_key", "")
	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_bucket", "opsdesk-attachments")
	v.SetDefault("minio_use_ssl", false)
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", "587")
	v.SetDefault("smtp_from_name", "OpsDesk")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Addr:            v.GetString("addr"),
		CORSOrigin:      v.GetString("cors_origin"),
		SpreadsheetID:   v.GetString("spreadsheet_id"),
		CredentialsFile: v.GetString("credentials_file"),
		JWTSecret:       v.GetString("jwt_secret"),
		AccessTTL:       time.Duration(v.GetInt("access_ttl_seconds")) * time.Second,
		SessionTTL:      time.Duration(v.GetInt("session_ttl_seconds")) * time.Second,
		RedisURL:        v.GetString("redis_url"),
		MeiliURL:        v.GetString("meili_url"),
		MeiliMasterKey:  v.GetString("meili_master_key"),
		MinioEndpoint:   v.GetString("minio_endpoint"),
		MinioAccessKey:  v.GetString("minio_access_key"),
		MinioSecretKey:  v.GetString("minio_secret_key"),
		MinioBucket:     v.GetString("minio_bucket"),
		MinioUseSSL:     v.GetBool("minio_use_ssl"),
		SMTPHost:        v.GetString("smtp_host"),
		SMTPPort:        v.GetString("smtp_port"),
		SMTPUsername:    v.GetString("smtp_username"),
		SMTPPassword:    v.GetString("smtp_password"),
		SMTPFrom:        v.GetString("smtp_from"),
		SMTPFromName:    v.GetString("smtp_from_name"),
	}
	if cfg.SpreadsheetID == "" {
		return Config{}, fmt.Errorf("spreadsheet_id is required (set OPSDESK_SPREADSHEET_ID)")
	}
	return cfg, nil
}
