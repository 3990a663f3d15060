// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Serials       SerialConfig       `mapstructure:"serials"`
	Uploads       UploadConfig       `mapstructure:"uploads"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	RequestTimeout  int `mapstructure:"request_timeout"`  // milliseconds, per external call
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig holds settings for the policy-document object store.
type StorageConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"` // base URL for public object links
}

// --- Serial pool routing ---

// SerialConfig externalizes serial-bucket routing. Exactly one policy
// type draws from its own named pool; the manual allow-list bypasses the
// pool entirely and accepts caller-supplied serials; every other policy
// type draws from the default pool.
type SerialConfig struct {
	SpecialPolicy  string   `mapstructure:"special_policy"`
	SpecialBucket  string   `mapstructure:"special_bucket"`
	DefaultBucket  string   `mapstructure:"default_bucket"`
	ManualPolicies []string `mapstructure:"manual_policies"`
	ClaimAttempts  int      `mapstructure:"claim_attempts"`
}

// IsManualPolicy reports whether the policy type accepts manual serials.
func (s SerialConfig) IsManualPolicy(policyType string) bool {
	for _, p := range s.ManualPolicies {
		if p == policyType {
			return true
		}
	}
	return false
}

// BucketFor returns the pool bucket for a pool-eligible policy type.
func (s SerialConfig) BucketFor(policyType string) string {
	if policyType == s.SpecialPolicy {
		return s.SpecialBucket
	}
	return s.DefaultBucket
}

// UploadConfig holds the document upload constraints.
type UploadConfig struct {
	MaxFileSize      int64    `mapstructure:"max_file_size"` // bytes
	AllowedMimeTypes []string `mapstructure:"allowed_mime_types"`
}

// Allowed reports whether the MIME type is accepted for upload.
func (u UploadConfig) Allowed(mimeType string) bool {
	for _, m := range u.AllowedMimeTypes {
		if m == mimeType {
			return true
		}
	}
	return false
}

// NotificationConfig holds settings for the submission notification email.
type NotificationConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Provider  string `mapstructure:"provider"` // "smtp" or "ses"
	ToEmail   string `mapstructure:"to_email"` // head-office recipient
	FromEmail string `mapstructure:"from_email"`

	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		UseTLS   bool   `mapstructure:"use_tls"`
	} `mapstructure:"smtp"`

	SES struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"ses"`

	Retry struct {
		Queue       string `mapstructure:"queue"` // redis list key
		MaxAttempts int    `mapstructure:"max_attempts"`
		Interval    int    `mapstructure:"interval"` // milliseconds between drains
	} `mapstructure:"retry"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
