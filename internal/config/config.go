// Package config holds the server configuration: defaults, environment
// overrides and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// AllowedOrigins are the CORS origins.
	AllowedOrigins []string
	// RequestTimeout bounds the handling of one request.
	RequestTimeout time.Duration
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	Storage Storage
	Dataset Dataset
	Limits  Limits
	Log     Log
}

// Storage selects and configures the object store. When LocalDir is set
// objects are kept on disk and the MinIO settings are ignored.
type Storage struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	URLExpiry time.Duration
	LocalDir  string
	// Bucket receives uploads made through the session API.
	Bucket string
}

// Dataset configures the dataset service.
type Dataset struct {
	Folder        string
	PreviewRows   int
	CacheSize     int
	Sessions      int
	InferenceRows int
	MaxUploadMB   int64
}

// Limits configures query and request limits.
type Limits struct {
	MaxQueryLength int
	RateRequests   int
	RateWindow     time.Duration
	// RateClients bounds the number of per-client limiters kept.
	RateClients int
}

// Log configures logging.
type Log struct {
	Level string
	// File is a log file rotated by size. Empty logs to stderr only.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	UTC        bool
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Addr:            ":8000",
		AllowedOrigins:  []string{"http://localhost:5173"},
		RequestTimeout:  60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Storage: Storage{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			URLExpiry: time.Hour,
			Bucket:    "dataview",
		},
		Dataset: Dataset{
			Folder:        "UPLOAD",
			PreviewRows:   10,
			CacheSize:     16,
			Sessions:      1024,
			InferenceRows: 10000,
			MaxUploadMB:   512,
		},
		Limits: Limits{
			MaxQueryLength: 1000,
			RateRequests:   100,
			RateWindow:     60 * time.Second,
			RateClients:    10000,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 14,
			MaxAgeDays: 28,
		},
	}
}

// Load returns the defaults overridden by the process environment.
func Load() (Config, error) {
	cfg := Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
// Unset variables leave fields unchanged; malformed values are errors.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("DATAVIEW_ADDR", &c.Addr)
	e.list("DATAVIEW_ALLOWED_ORIGINS", &c.AllowedOrigins)
	e.duration("DATAVIEW_REQUEST_TIMEOUT", &c.RequestTimeout)
	e.duration("DATAVIEW_SHUTDOWN_TIMEOUT", &c.ShutdownTimeout)

	e.str("DATAVIEW_MINIO_ENDPOINT", &c.Storage.Endpoint)
	e.str("DATAVIEW_MINIO_ACCESS_KEY", &c.Storage.AccessKey)
	e.str("DATAVIEW_MINIO_SECRET_KEY", &c.Storage.SecretKey)
	e.boolean("DATAVIEW_MINIO_SECURE", &c.Storage.Secure)
	e.duration("DATAVIEW_PRESIGN_EXPIRY", &c.Storage.URLExpiry)
	e.str("DATAVIEW_STORAGE_DIR", &c.Storage.LocalDir)
	e.str("DATAVIEW_BUCKET", &c.Storage.Bucket)

	e.str("DATAVIEW_UPLOAD_FOLDER", &c.Dataset.Folder)
	e.integer("DATAVIEW_PREVIEW_ROWS", &c.Dataset.PreviewRows)
	e.integer("DATAVIEW_CACHE_SIZE", &c.Dataset.CacheSize)
	e.integer("DATAVIEW_SESSIONS", &c.Dataset.Sessions)
	e.integer("DATAVIEW_INFERENCE_ROWS", &c.Dataset.InferenceRows)
	e.int64("DATAVIEW_MAX_UPLOAD_MB", &c.Dataset.MaxUploadMB)

	e.integer("DATAVIEW_MAX_QUERY_LENGTH", &c.Limits.MaxQueryLength)
	e.integer("DATAVIEW_RATE_LIMIT_REQUESTS", &c.Limits.RateRequests)
	e.duration("DATAVIEW_RATE_LIMIT_WINDOW", &c.Limits.RateWindow)

	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FILE", &c.Log.File)
	e.integer("LOG_MAX_SIZE_MB", &c.Log.MaxSizeMB)
	e.integer("LOG_BACKUP_COUNT", &c.Log.MaxBackups)
	e.integer("LOG_MAX_AGE_DAYS", &c.Log.MaxAgeDays)
	e.boolean("LOG_USE_UTC", &c.Log.UTC)

	return errors.Join(e.errs...)
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Addr != "", "listen address is empty")
	check(c.RequestTimeout > 0, "request timeout must be positive, got %s", c.RequestTimeout)
	check(c.ShutdownTimeout > 0, "shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	if c.Storage.LocalDir == "" {
		check(c.Storage.Endpoint != "", "minio endpoint is empty")
	}
	check(c.Storage.URLExpiry >= time.Second && c.Storage.URLExpiry <= 7*24*time.Hour,
		"presign expiry must be between 1s and 7 days, got %s", c.Storage.URLExpiry)
	check(c.Storage.Bucket != "", "upload bucket is empty")
	check(c.Dataset.Folder != "" && !strings.Contains(c.Dataset.Folder, ".."), "invalid upload folder %q", c.Dataset.Folder)
	check(c.Dataset.PreviewRows > 0, "preview rows must be positive, got %d", c.Dataset.PreviewRows)
	check(c.Dataset.CacheSize > 0, "cache size must be positive, got %d", c.Dataset.CacheSize)
	check(c.Dataset.Sessions > 0, "session limit must be positive, got %d", c.Dataset.Sessions)
	check(c.Dataset.InferenceRows > 0, "inference rows must be positive, got %d", c.Dataset.InferenceRows)
	check(c.Dataset.MaxUploadMB > 0, "max upload size must be positive, got %d", c.Dataset.MaxUploadMB)
	check(c.Limits.MaxQueryLength > 0, "max query length must be positive, got %d", c.Limits.MaxQueryLength)
	check(c.Limits.RateRequests > 0, "rate limit must be positive, got %d", c.Limits.RateRequests)
	check(c.Limits.RateWindow > 0, "rate window must be positive, got %s", c.Limits.RateWindow)
	check(c.Limits.RateClients > 0, "rate limiter cache must be positive, got %d", c.Limits.RateClients)
	check(c.Log.MaxSizeMB > 0, "log max size must be positive, got %d", c.Log.MaxSizeMB)
	check(c.Log.MaxBackups >= 0, "log backup count must not be negative, got %d", c.Log.MaxBackups)
	check(c.Log.MaxAgeDays >= 0, "log max age must not be negative, got %d", c.Log.MaxAgeDays)

	return errors.Join(errs...)
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

// boolean accepts 1/true/yes/y and 0/false/no/n in any case.
func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n", "":
		*dst = false
	default:
		e.fail(key, v, errors.New("not a boolean"))
	}
}

// duration accepts Go durations ("90s") and bare integers meaning seconds.
func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}
