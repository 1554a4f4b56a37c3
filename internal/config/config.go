package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultEnvironment       = "local"
	defaultPublicDir         = "public"
	defaultContentBackend    = BackendSanity
	defaultSanityDataset     = "production"
	defaultSanityAPIVersion  = "2023-12-01"
	defaultMountIdleTTL      = 30 * time.Minute
	defaultMountSweep        = time.Minute
	defaultMountMax          = 10000
	defaultHeaderWaitTimeout = 10 * time.Second
	defaultBrandMark         = "SLPC"
	defaultBrandName         = "Ohio Consultants"
)

// Content backends selectable through SITE_CONTENT_BACKEND.
const (
	BackendSanity    = "sanity"
	BackendFirestore = "firestore"
	BackendFile      = "file"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Content   ContentConfig
	Sanity    SanityConfig
	Firestore FirestoreConfig
	Header    HeaderConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	Environment  string
	PublicDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// IsProduction reports whether the server runs in the prod environment.
func (s ServerConfig) IsProduction() bool { return s.Environment == "prod" }

// SessionConfig configures the signed session cookie.
type SessionConfig struct {
	SigningKey string
}

// ContentConfig selects the content store backend.
type ContentConfig struct {
	Backend string
	File    string
}

// SanityConfig identifies the Sanity project used by the sanity backend.
type SanityConfig struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	UseCDN     bool
	Timeout    time.Duration
}

// FirestoreConfig stores database parameters for the firestore backend.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// HeaderConfig tunes header mounts and branding.
type HeaderConfig struct {
	MountIdleTTL  time.Duration
	SweepInterval time.Duration
	MaxMounts     int
	WaitTimeout   time.Duration
	BrandMark     string
	BrandName     string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the configuration from defaults, .env overrides and
// environment variables (explicit map > OS env > .env).
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	// Cloud Run injects PORT; an explicit SITE_SERVER_PORT still wins.
	port := stringWithDefault(lookup, "PORT", defaultPort)

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "SITE_SERVER_PORT", port),
			Environment:  strings.ToLower(stringWithDefault(lookup, "SITE_ENV", defaultEnvironment)),
			PublicDir:    stringWithDefault(lookup, "SITE_PUBLIC_DIR", defaultPublicDir),
			ReadTimeout:  durationWithDefault(lookup, "SITE_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SITE_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SITE_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Session: SessionConfig{
			SigningKey: stringWithDefault(lookup, "SITE_SESSION_SIGNING_KEY", ""),
		},
		Content: ContentConfig{
			Backend: strings.ToLower(stringWithDefault(lookup, "SITE_CONTENT_BACKEND", defaultContentBackend)),
			File:    stringWithDefault(lookup, "SITE_CONTENT_FILE", ""),
		},
		Sanity: SanityConfig{
			ProjectID:  stringWithDefault(lookup, "SITE_SANITY_PROJECT_ID", ""),
			Dataset:    stringWithDefault(lookup, "SITE_SANITY_DATASET", defaultSanityDataset),
			APIVersion: stringWithDefault(lookup, "SITE_SANITY_API_VERSION", defaultSanityAPIVersion),
			Token:      stringWithDefault(lookup, "SITE_SANITY_TOKEN", ""),
			UseCDN:     boolWithDefault(lookup, "SITE_SANITY_USE_CDN", false),
			Timeout:    durationWithDefault(lookup, "SITE_SANITY_TIMEOUT", 0),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "SITE_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "SITE_FIRESTORE_EMULATOR_HOST", ""),
		},
		Header: HeaderConfig{
			MountIdleTTL:  durationWithDefault(lookup, "SITE_MOUNT_IDLE_TTL", defaultMountIdleTTL),
			SweepInterval: durationWithDefault(lookup, "SITE_MOUNT_SWEEP_INTERVAL", defaultMountSweep),
			MaxMounts:     intWithDefault(lookup, "SITE_MOUNT_MAX", defaultMountMax),
			WaitTimeout:   durationWithDefault(lookup, "SITE_HEADER_WAIT_TIMEOUT", defaultHeaderWaitTimeout),
			BrandMark:     stringWithDefault(lookup, "SITE_BRAND_MARK", defaultBrandMark),
			BrandName:     stringWithDefault(lookup, "SITE_BRAND_NAME", defaultBrandName),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.IsProduction() && strings.TrimSpace(cfg.Session.SigningKey) == "" {
		missing = append(missing, "Session.SigningKey")
	}
	switch cfg.Content.Backend {
	case BackendSanity:
		if strings.TrimSpace(cfg.Sanity.ProjectID) == "" {
			missing = append(missing, "Sanity.ProjectID")
		}
	case BackendFirestore:
		if strings.TrimSpace(cfg.Firestore.ProjectID) == "" {
			missing = append(missing, "Firestore.ProjectID")
		}
	case BackendFile:
		if strings.TrimSpace(cfg.Content.File) == "" {
			missing = append(missing, "Content.File")
		}
	default:
		missing = append(missing, "Content.Backend")
	}
	if cfg.Header.MountIdleTTL <= 0 {
		missing = append(missing, "Header.MountIdleTTL")
	}
	if cfg.Header.SweepInterval <= 0 {
		missing = append(missing, "Header.SweepInterval")
	}
	if cfg.Header.MaxMounts <= 0 {
		missing = append(missing, "Header.MaxMounts")
	}
	if cfg.Header.WaitTimeout <= 0 {
		missing = append(missing, "Header.WaitTimeout")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
