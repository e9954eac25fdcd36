package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	JWT       JWTConfig       `yaml:"jwt"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Media     MediaConfig     `yaml:"media"`
	Recommend RecommendConfig `yaml:"recommend"`
	APNs      APNsConfig      `yaml:"apns"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        int      `yaml:"port"`
	Host        string   `yaml:"host"`
	CORSOrigins []string `yaml:"cors_origins"`
	// AuthRateLimit is the number of /auth requests allowed per IP per minute.
	AuthRateLimit int `yaml:"auth_rate_limit"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// AWSConfig holds object storage configuration
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	// Endpoint points the client at an S3-compatible service instead of AWS.
	Endpoint string `yaml:"endpoint"`
	// PublicBaseURL overrides the derived https://<bucket>.s3.<region>.amazonaws.com/ base.
	PublicBaseURL string `yaml:"public_base_url"`
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

// OAuthConfig holds Google identity configuration
type OAuthConfig struct {
	GoogleClientID string `yaml:"google_client_id"`
	GoogleIssuer   string `yaml:"google_issuer"`
	GoogleJWKSURL  string `yaml:"google_jwks_url"`
}

// MediaConfig holds upload and cover lookup configuration
type MediaConfig struct {
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	DefaultCoverKey  string        `yaml:"default_cover_key"`
	GoogleBooksURL   string        `yaml:"google_books_url"`
	OpenLibraryURL   string        `yaml:"open_library_url"`
	OpenLibraryCover string        `yaml:"open_library_cover_url"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
}

// RecommendConfig holds chat completion API configuration
type RecommendConfig struct {
	APIURL  string        `yaml:"api_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// APNsConfig holds push notification configuration. Push is disabled when CertFile is empty.
type APNsConfig struct {
	CertFile   string `yaml:"cert_file"`
	CertPass   string `yaml:"cert_password"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from an optional YAML file, a .env file if present,
// and the process environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a configuration populated with development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          3000,
			Host:          "0.0.0.0",
			CORSOrigins:   []string{"http://localhost:5173"},
			AuthRateLimit: 60,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			DBName:   "readthis",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		JWT: JWTConfig{
			AccessTTL:  time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		OAuth: OAuthConfig{
			GoogleIssuer:  "https://accounts.google.com",
			GoogleJWKSURL: "https://www.googleapis.com/oauth2/v3/certs",
		},
		Media: MediaConfig{
			MaxUploadBytes:   5 << 20,
			DefaultCoverKey:  "posts/DefaultBook.png",
			GoogleBooksURL:   "https://www.googleapis.com/books/v1/volumes",
			OpenLibraryURL:   "https://openlibrary.org/search.json",
			OpenLibraryCover: "https://covers.openlibrary.org/b/id",
			FetchTimeout:     10 * time.Second,
		},
		Recommend: RecommendConfig{
			APIURL:  "https://api.aimlapi.com/v1/chat/completions",
			Model:   "gpt-4o-mini",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Host, "HOST")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.AWS.Region, "AWS_REGION")
	setString(&c.AWS.S3Bucket, "S3_BUCKET_NAME")
	setString(&c.AWS.Endpoint, "S3_ENDPOINT")
	setString(&c.AWS.PublicBaseURL, "S3_PUBLIC_BASE_URL")
	setString(&c.AWS.AccessKey, "AWS_ACCESS_KEY_ID")
	setString(&c.AWS.SecretKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.JWT.Secret, "TOKEN_SECRET")
	setString(&c.OAuth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Recommend.APIKey, "OPENAI_API_KEY")
	setString(&c.Recommend.APIURL, "RECOMMEND_API_URL")
	setString(&c.APNs.CertFile, "APNS_CERT_FILE")
	setString(&c.APNs.CertPass, "APNS_CERT_PASSWORD")
	setString(&c.APNs.Topic, "APNS_TOPIC")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	if err := setInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Database.Port, "DB_PORT"); err != nil {
		return err
	}
	if err := setDuration(&c.JWT.AccessTTL, "TOKEN_EXPIRES"); err != nil {
		return err
	}
	if err := setDuration(&c.JWT.RefreshTTL, "REFRESH_TOKEN_EXPIRES"); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("APNS_PRODUCTION"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid APNS_PRODUCTION %q: %w", v, err)
		}
		c.APNs.Production = b
	}
	return nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required (TOKEN_SECRET)")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Media.MaxUploadBytes <= 0 {
		return errors.New("media.max_upload_bytes must be positive")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// BaseURL returns the public URL prefix of the bucket, always ending in a slash.
func (c *AWSConfig) BaseURL() string {
	base := c.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", c.S3Bucket, c.Region)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

// setDuration accepts Go durations ("15m") and the jsonwebtoken-style day suffix ("7d").
// A bare number is read as seconds.
func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

// ParseDuration parses "90s", "1h", "7d" or a plain number of seconds.
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	if strings.HasSuffix(v, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(v, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
