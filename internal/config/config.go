package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7411"
	DefaultDBFileName = ".picstash.db"
	DefaultLogLevel   = "info"

	DefaultIngestMaxUploadBytes    int64 = 25 * 1024 * 1024
	DefaultIngestMultipartMemory   int64 = 8 * 1024 * 1024
	DefaultIngestMaxDimension            = 10000
	DefaultIngestThumbnailMaxEdge        = 300

	configFileName  = ".picstash.toml"
	configDirEnvKey = "PICSTASH_CONFIG_DIR"

	apiURLEnvKey          = "PICSTASH_API_URL"
	dbPathEnvKey          = "PICSTASH_DB"
	dataDirEnvKey         = "PICSTASH_DATA_DIR"
	allowDegenerateEnvKey = "PICSTASH_INGEST_ALLOW_DEGENERATE"
)

// IngestConfig defines runtime bounds for the image ingestion pipeline.
// Encoding quality is fixed in the pipeline and deliberately not here.
type IngestConfig struct {
	MaxUploadBytes     int64 `toml:"max_upload_bytes"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory"`
	MaxDimension       int   `toml:"max_dimension"`
	ThumbnailMaxEdge   int   `toml:"thumbnail_max_edge"`
	// AllowDegenerate permits 1x1-style test assets. Off in production.
	AllowDegenerate bool `toml:"allow_degenerate"`
}

// Config defines runtime configuration for picstash.
type Config struct {
	APIURL   string       `toml:"api_url"`
	DBPath   string       `toml:"db_path"`
	DataDir  string       `toml:"data_dir"`
	LogLevel string       `toml:"log_level"`
	APIToken string       `toml:"api_token"`
	Ingest   IngestConfig `toml:"ingest"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Ingest: IngestConfig{
			MaxUploadBytes:     DefaultIngestMaxUploadBytes,
			MultipartMaxMemory: DefaultIngestMultipartMemory,
			MaxDimension:       DefaultIngestMaxDimension,
			ThumbnailMaxEdge:   DefaultIngestThumbnailMaxEdge,
		},
	}
}

// Load reads config from the global file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	if err := loadFileIfExists(path, &cfg); err != nil {
		return nil, err
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if dataDir := os.Getenv(dataDirEnvKey); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if raw := strings.TrimSpace(os.Getenv(allowDegenerateEnvKey)); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			cfg.Ingest.AllowDegenerate = parsed
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if cfg.DataDir == "" && cfg.DBPath != "" {
		cfg.DataDir = filepath.Join(filepath.Dir(cfg.DBPath), ".picstash", "objects")
	}

	cfg.normalizeIngestDefaults()

	return &cfg, nil
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

func loadFileIfExists(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"data_dir",
	"log_level",
	"api_token",
	"ingest.max_upload_bytes",
	"ingest.multipart_max_memory",
	"ingest.max_dimension",
	"ingest.thumbnail_max_edge",
	"ingest.allow_degenerate",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "data_dir":
		return c.DataDir, nil
	case "log_level":
		return c.LogLevel, nil
	case "api_token":
		return c.APIToken, nil
	case "ingest.max_upload_bytes":
		return strconv.FormatInt(c.Ingest.MaxUploadBytes, 10), nil
	case "ingest.multipart_max_memory":
		return strconv.FormatInt(c.Ingest.MultipartMaxMemory, 10), nil
	case "ingest.max_dimension":
		return strconv.Itoa(c.Ingest.MaxDimension), nil
	case "ingest.thumbnail_max_edge":
		return strconv.Itoa(c.Ingest.ThumbnailMaxEdge), nil
	case "ingest.allow_degenerate":
		return strconv.FormatBool(c.Ingest.AllowDegenerate), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "ingest.max_upload_bytes", "ingest.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "ingest.max_dimension", "ingest.thumbnail_max_edge":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "ingest.allow_degenerate":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeIngestDefaults() {
	if c.Ingest.MaxUploadBytes <= 0 {
		c.Ingest.MaxUploadBytes = DefaultIngestMaxUploadBytes
	}
	if c.Ingest.MultipartMaxMemory <= 0 {
		c.Ingest.MultipartMaxMemory = DefaultIngestMultipartMemory
	}
	if c.Ingest.MaxDimension <= 0 {
		c.Ingest.MaxDimension = DefaultIngestMaxDimension
	}
	if c.Ingest.ThumbnailMaxEdge <= 0 {
		c.Ingest.ThumbnailMaxEdge = DefaultIngestThumbnailMaxEdge
	}
}
