// Package config assembles server settings from defaults, a .env file, an
// optional YAML file, DOCSHARE_* environment variables and command-line flags,
// in that order of increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/and161185/docshare/internal/blob/s3store"
	"github.com/and161185/docshare/internal/crypto"
)

// Storage drivers.
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

const envPrefix = "DOCSHARE_"

// Storage selects where uploaded bytes live.
type Storage struct {
	Driver string         `yaml:"driver"`
	Dir    string         `yaml:"dir"`
	S3     s3store.Config `yaml:"s3"`
}

// Config is the full server configuration.
type Config struct {
	Addr               string        `yaml:"addr"`
	DSN                string        `yaml:"dsn"`
	JWTKey             string        `yaml:"jwt_key"`
	AccessTTL          time.Duration `yaml:"access_ttl"`
	GrantTTL           time.Duration `yaml:"grant_ttl"`
	GrantSingleUse     bool          `yaml:"grant_single_use"`
	GrantPurgeInterval time.Duration `yaml:"grant_purge_interval"`
	HashScheme         string        `yaml:"hash_scheme"`
	Storage            Storage       `yaml:"storage"`
	MaxUploadBytes     int64         `yaml:"max_upload_bytes"`
	UsersFile          string        `yaml:"users_file"`
	Demo               bool          `yaml:"demo"`
	Dev                bool          `yaml:"dev"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:               ":8000",
		AccessTTL:          30 * time.Minute,
		GrantTTL:           30 * time.Minute,
		GrantSingleUse:     true,
		GrantPurgeInterval: 5 * time.Minute,
		HashScheme:         crypto.SchemePBKDF2SHA256,
		Storage:            Storage{Driver: DriverLocal, Dir: "uploaded_files"},
		MaxUploadBytes:     100 << 20,
		ShutdownTimeout:    10 * time.Second,
	}
}

// Load builds a Config from args (without the program name).
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}

	// First pass only discovers -config; flag values win later.
	scratch := Default()
	var path string
	if err := newFlagSet(&scratch, &path).Parse(args); err != nil {
		return nil, err
	}
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}

	cfg := Default()
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := newFlagSet(&cfg, &path).Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newFlagSet(c *Config, path *string) *flag.FlagSet {
	fs := flag.NewFlagSet("docshare-server", flag.ContinueOnError)
	fs.StringVar(path, "config", *path, "YAML config file")
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "PostgreSQL DSN (empty: in-memory stores)")
	fs.StringVar(&c.JWTKey, "jwt-key", c.JWTKey, "HS256 signing key (empty: random per process)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "access token TTL")
	fs.DurationVar(&c.GrantTTL, "grant-ttl", c.GrantTTL, "download grant TTL")
	fs.BoolVar(&c.GrantSingleUse, "grant-single-use", c.GrantSingleUse, "consume grants on first redemption")
	fs.DurationVar(&c.GrantPurgeInterval, "grant-purge-interval", c.GrantPurgeInterval, "expired grant purge interval (0 disables)")
	fs.StringVar(&c.HashScheme, "hash-scheme", c.HashScheme, "password hash scheme for new digests (pbkdf2-sha256|argon2id)")
	fs.StringVar(&c.Storage.Driver, "storage", c.Storage.Driver, "blob storage driver (local|s3)")
	fs.StringVar(&c.Storage.Dir, "storage-dir", c.Storage.Dir, "local storage directory")
	fs.StringVar(&c.Storage.S3.Bucket, "s3-bucket", c.Storage.S3.Bucket, "S3 bucket")
	fs.StringVar(&c.Storage.S3.Region, "s3-region", c.Storage.S3.Region, "S3 region")
	fs.StringVar(&c.Storage.S3.Endpoint, "s3-endpoint", c.Storage.S3.Endpoint, "S3 endpoint override (MinIO)")
	fs.StringVar(&c.Storage.S3.Prefix, "s3-prefix", c.Storage.S3.Prefix, "S3 object key prefix")
	fs.Int64Var(&c.MaxUploadBytes, "max-upload-bytes", c.MaxUploadBytes, "upload size limit")
	fs.StringVar(&c.UsersFile, "users", c.UsersFile, "YAML users file")
	fs.BoolVar(&c.Demo, "demo", c.Demo, "provision demo users opsuser/clientuser")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "development logging")
	fs.DurationVar(&c.ShutdownTimeout, "shutdown-timeout", c.ShutdownTimeout, "graceful shutdown timeout")
	return fs
}

func loadYAML(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	str("ADDR", &c.Addr)
	str("DSN", &c.DSN)
	if c.DSN == "" {
		c.DSN = os.Getenv("DATABASE_URL")
	}
	str("JWT_KEY", &c.JWTKey)
	str("HASH_SCHEME", &c.HashScheme)
	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("STORAGE_DIR", &c.Storage.Dir)
	str("S3_BUCKET", &c.Storage.S3.Bucket)
	str("S3_REGION", &c.Storage.S3.Region)
	str("S3_ENDPOINT", &c.Storage.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.Storage.S3.AccessKey)
	str("S3_SECRET_KEY", &c.Storage.S3.SecretKey)
	str("S3_PREFIX", &c.Storage.S3.Prefix)
	str("USERS_FILE", &c.UsersFile)

	for name, dst := range map[string]*time.Duration{
		"ACCESS_TTL":           &c.AccessTTL,
		"GRANT_TTL":            &c.GrantTTL,
		"GRANT_PURGE_INTERVAL": &c.GrantPurgeInterval,
		"SHUTDOWN_TIMEOUT":     &c.ShutdownTimeout,
	} {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", envPrefix, name, err)
			}
			*dst = d
		}
	}
	for name, dst := range map[string]*bool{
		"GRANT_SINGLE_USE": &c.GrantSingleUse,
		"DEMO":             &c.Demo,
		"DEV":              &c.Dev,
	} {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", envPrefix, name, err)
			}
			*dst = b
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sMAX_UPLOAD_BYTES: %w", envPrefix, err)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("config: empty listen address")
	case c.AccessTTL <= 0:
		return fmt.Errorf("config: access_ttl must be positive, got %s", c.AccessTTL)
	case c.GrantTTL <= 0:
		return fmt.Errorf("config: grant_ttl must be positive, got %s", c.GrantTTL)
	case c.GrantPurgeInterval < 0:
		return fmt.Errorf("config: negative grant_purge_interval %s", c.GrantPurgeInterval)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("config: max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("config: shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}
	if _, err := crypto.NewHasher(c.HashScheme); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Storage.Driver {
	case DriverLocal:
		if c.Storage.Dir == "" {
			return errors.New("config: local storage needs a directory")
		}
	case DriverS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("config: s3 storage needs a bucket")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
