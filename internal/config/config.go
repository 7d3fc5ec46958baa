// Package config loads sonar's process configuration from the environment,
// following the getEnv/getEnvInt pattern of the teacher's config package but
// overlaying a local .env file with github.com/joho/godotenv. Recognized
// variables are exactly those spec.md §6 names, plus the scheduler/pool
// tuning knobs spec.md §5 implies but leaves to the host. Provider
// credentials may instead be supplied through a TOML file
// (github.com/pelletier/go-toml/v2), watched for changes with
// github.com/fsnotify/fsnotify so a credential rotation takes effect
// without a restart.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// Config is sonar's resolved process configuration.
type Config struct {
	Address              string // SONAR_ADDRESS
	OpenSubsonicAddress  string // SONAR_OPENSUBSONIC_ADDRESS
	DataDir              string // SONAR_DATA_DIR
	DefaultAdminUsername string // SONAR_DEFAULT_ADMIN_USERNAME
	DefaultAdminPassword string // SONAR_DEFAULT_ADMIN_PASSWORD

	DBMaxConns int // SONAR_DB_MAX_CONNS, default 8 per spec §5

	SubscriptionInterval time.Duration // SONAR_SUBSCRIPTION_INTERVAL, default 60s per spec §5
	ProviderTimeout      time.Duration // SONAR_PROVIDER_TIMEOUT, default 15s per spec §4.11/§5

	RedisAddr     string // SONAR_REDIS_ADDR, empty disables the read-through cache
	RedisPassword string
	RedisDB       int

	FFProbePath string // SONAR_FFPROBE_PATH, default "ffprobe"

	// ProviderCredentials carries arbitrary SONAR_PROVIDER_* values through
	// to capability constructors without this package needing to know about
	// every third-party provider's naming scheme.
	ProviderCredentials map[string]string

	// ProviderCredentialsFile, if set (SONAR_PROVIDER_CREDENTIALS_FILE), is a
	// TOML file of provider credentials layered on top of the SONAR_PROVIDER_*
	// env vars (the file wins on key collision, since it is the one meant to
	// be edited without a process restart).
	ProviderCredentialsFile string
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

const providerCredentialPrefix = "SONAR_PROVIDER_"

// Load reads configuration from the environment, first overlaying any .env
// file found in the working directory. godotenv.Load never overrides
// variables already set in the real environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{
		Address:              getEnv("SONAR_ADDRESS", "0.0.0.0:7101"),
		OpenSubsonicAddress:  getEnv("SONAR_OPENSUBSONIC_ADDRESS", "0.0.0.0:7102"),
		DataDir:              getEnv("SONAR_DATA_DIR", "./data"),
		DefaultAdminUsername: os.Getenv("SONAR_DEFAULT_ADMIN_USERNAME"),
		DefaultAdminPassword: os.Getenv("SONAR_DEFAULT_ADMIN_PASSWORD"),
		DBMaxConns:           getEnvInt("SONAR_DB_MAX_CONNS", 8),
		SubscriptionInterval: getEnvDuration("SONAR_SUBSCRIPTION_INTERVAL", 60*time.Second),
		ProviderTimeout:      getEnvDuration("SONAR_PROVIDER_TIMEOUT", 15*time.Second),
		RedisAddr:            os.Getenv("SONAR_REDIS_ADDR"),
		RedisPassword:        os.Getenv("SONAR_REDIS_PASSWORD"),
		RedisDB:              getEnvInt("SONAR_REDIS_DB", 0),
		FFProbePath:          getEnv("SONAR_FFPROBE_PATH", "ffprobe"),
		ProviderCredentials:  map[string]string{},
		ProviderCredentialsFile: os.Getenv("SONAR_PROVIDER_CREDENTIALS_FILE"),
	}

	for _, kv := range os.Environ() {
		key, value, ok := splitEnv(kv)
		if !ok || len(key) <= len(providerCredentialPrefix) {
			continue
		}
		if key[:len(providerCredentialPrefix)] != providerCredentialPrefix {
			continue
		}
		cfg.ProviderCredentials[key[len(providerCredentialPrefix):]] = value
	}

	if cfg.ProviderCredentialsFile != "" {
		if err := loadProviderCredentialsFile(cfg.ProviderCredentialsFile, cfg.ProviderCredentials); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadProviderCredentialsFile parses a TOML file of flat string key/value
// pairs into dst, overwriting any env-sourced entry of the same key.
func loadProviderCredentialsFile(path string, dst map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var parsed map[string]string
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return err
	}
	for k, v := range parsed {
		dst[k] = v
	}
	return nil
}

// WatchProviderCredentialsFile watches ProviderCredentialsFile, if set, for
// changes and invokes onChange with the freshly parsed credential map after
// each write — the hot-reload half of spec.md §6's provider credential
// story, letting an operator rotate a key without restarting sonar.
// Returns a no-op closer if no file is configured.
func (c *Config) WatchProviderCredentialsFile(onChange func(map[string]string), log *zap.Logger) (io.Closer, error) {
	if c.ProviderCredentialsFile == "" {
		return nopCloser{}, nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(c.ProviderCredentialsFile)); err != nil {
		watcher.Close()
		return nil, err
	}
	go func() {
		for event := range watcher.Events {
			if event.Name != c.ProviderCredentialsFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			parsed := map[string]string{}
			if err := loadProviderCredentialsFile(c.ProviderCredentialsFile, parsed); err != nil {
				log.Warn("failed to reload provider credentials file", zap.Error(err))
				continue
			}
			onChange(parsed)
		}
	}()
	return watcher, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func splitEnv(kv string) (key, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}

// BlobDir is the blob store's root under DataDir, per spec.md §6's
// persisted state layout.
func (c *Config) BlobDir() string { return filepath.Join(c.DataDir, "blobs") }

// DBPath is the catalog SQLite file's path under DataDir.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "sonar.db") }

// SessionKeyPath is where the HMAC signing key for session tokens is
// persisted, generated on first boot if absent.
func (c *Config) SessionKeyPath() string {
	return filepath.Join(c.DataDir, "secrets", "session.key")
}
