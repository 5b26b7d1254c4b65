package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"

	"github.com/xxxsen/caseindex/internal/chunker"
)

const (
	defaultPort            = 8000
	defaultMaxTokens       = 1024
	defaultOverlapTokens   = 200
	defaultDimension       = 768
	defaultEmbedModel      = "gemini-embedding-001"
	defaultOpenAIModel     = "text-embedding-3-small"
	defaultIndexName       = "caseindex-embeddings"
	defaultMaxUploadBytes  = 50 << 20
	defaultEmbedTimeout    = 30
	defaultVectorTimeout   = 30
	defaultFileTimeout     = 60
	defaultEmbedConcurrent = 4
)

var DefaultSupportedExtensions = []string{".pdf", ".docx", ".txt", ".md", ".xlsx"}

type Config struct {
	Port          int               `json:"port"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	Chunk         ChunkConfig       `json:"chunk"`
	Embedding     EmbeddingConfig   `json:"embedding"`
	VectorStore   VectorStoreConfig `json:"vector_store"`
	FileStore     FileStoreConfig   `json:"file_store"`
	Database      DatabaseConfig    `json:"database"`
	Upload        UploadConfig      `json:"upload"`
	CORSAllowlist []string          `json:"cors_allowlist"`
	Jobs          JobsConfig        `json:"jobs"`
}

type ChunkConfig struct {
	MaxTokens     int `json:"max_tokens"`
	OverlapTokens int `json:"overlap_tokens"`
}

type EmbeddingConfig struct {
	Provider        string      `json:"provider"`
	Model           string      `json:"model"`
	Dimension       int         `json:"dimension"`
	Concurrency     int         `json:"concurrency"`
	TimeoutSeconds  int         `json:"timeout_seconds"`
	RateLimit       float64     `json:"rate_limit"`
	CacheSize       int         `json:"cache_size"`
	CacheTTLSeconds int         `json:"cache_ttl_seconds"`
	DBCache         bool        `json:"db_cache"`
	ValidateOnStart bool        `json:"validate_on_start"`
	Data            interface{} `json:"data"`
}

type VectorStoreConfig struct {
	Type           string      `json:"type"`
	IndexName      string      `json:"index_name"`
	Namespace      string      `json:"namespace"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Data           interface{} `json:"data"`
}

type FileStoreConfig struct {
	Type           string      `json:"type"`
	TimeoutSeconds int         `json:"timeout_seconds"`
	Data           interface{} `json:"data"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Configured() bool {
	return c.DSN != "" || c.Host != ""
}

type UploadConfig struct {
	MaxBytes            int64    `json:"max_bytes"`
	SupportedExtensions []string `json:"supported_extensions"`
}

type JobsConfig struct {
	EmbeddingCacheCleanup    string `json:"embedding_cache_cleanup"`
	EmbeddingCacheMaxAgeDays int    `json:"embedding_cache_max_age_days"`
	IndexStatsReport         string `json:"index_stats_report"`
}

// Load reads a JSON or YAML config file, applies environment overrides
// (a .env file in the working directory is honoured) and fills defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	cfg, err := Parse(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw config bytes. YAML is decoded to a generic document and
// re-encoded as JSON so both formats share the json tags.
func Parse(raw []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var doc map[string]interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml config: %w", err)
		}
		raw = data
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	switch strings.ToLower(cfg.Embedding.Provider) {
	case "gemini", "":
		cfg.Embedding.Data = setDefaultKey(cfg.Embedding.Data, "api_key", os.Getenv("GOOGLE_API_KEY"))
	case "openai":
		cfg.Embedding.Data = setDefaultKey(cfg.Embedding.Data, "api_key", os.Getenv("OPENAI_API_KEY"))
	}
	if strings.EqualFold(cfg.FileStore.Type, "s3") {
		cfg.FileStore.Data = setDefaultKey(cfg.FileStore.Data, "access_key_id", os.Getenv("AWS_ACCESS_KEY_ID"))
		cfg.FileStore.Data = setDefaultKey(cfg.FileStore.Data, "secret_access_key", os.Getenv("AWS_SECRET_ACCESS_KEY"))
		cfg.FileStore.Data = setDefaultKey(cfg.FileStore.Data, "region", os.Getenv("AWS_REGION"))
		cfg.FileStore.Data = setDefaultKey(cfg.FileStore.Data, "bucket", os.Getenv("AWS_S3_BUCKET_NAME"))
	}
}

// setDefaultKey fills key in a provider data block only when the block does
// not already carry a non-empty value.
func setDefaultKey(data interface{}, key, value string) interface{} {
	if value == "" {
		return data
	}
	m, ok := data.(map[string]interface{})
	if !ok || m == nil {
		m = map[string]interface{}{}
	}
	if cur, ok := m[key].(string); ok && cur != "" {
		return m
	}
	m[key] = value
	return m
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Chunk.MaxTokens == 0 {
		cfg.Chunk.MaxTokens = defaultMaxTokens
		if cfg.Chunk.OverlapTokens == 0 {
			cfg.Chunk.OverlapTokens = defaultOverlapTokens
		}
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaultModelFor(cfg.Embedding)
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = defaultDimension
	}
	if cfg.Embedding.Concurrency <= 0 {
		cfg.Embedding.Concurrency = defaultEmbedConcurrent
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = defaultEmbedTimeout
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.IndexName == "" {
		cfg.VectorStore.IndexName = defaultIndexName
	}
	if cfg.VectorStore.TimeoutSeconds == 0 {
		cfg.VectorStore.TimeoutSeconds = defaultVectorTimeout
	}
	if cfg.FileStore.TimeoutSeconds == 0 {
		cfg.FileStore.TimeoutSeconds = defaultFileTimeout
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = defaultMaxUploadBytes
	}
	if len(cfg.Upload.SupportedExtensions) == 0 {
		cfg.Upload.SupportedExtensions = append([]string(nil), DefaultSupportedExtensions...)
	}
	for i, ext := range cfg.Upload.SupportedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Upload.SupportedExtensions[i] = ext
	}
	if cfg.Jobs.EmbeddingCacheMaxAgeDays == 0 {
		cfg.Jobs.EmbeddingCacheMaxAgeDays = 30
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if err := (chunker.Config{MaxTokens: c.Chunk.MaxTokens, OverlapTokens: c.Chunk.OverlapTokens}).Validate(); err != nil {
		return err
	}
	if err := c.Embedding.validateModel(); err != nil {
		return err
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("embedding.rate_limit must not be negative")
	}
	if c.Upload.MaxBytes < 0 {
		return fmt.Errorf("upload.max_bytes must not be negative")
	}
	for _, ext := range c.Upload.SupportedExtensions {
		if !isKnownExtension(ext) {
			return fmt.Errorf("upload.supported_extensions: unknown extension %q", ext)
		}
	}
	needDB := c.Embedding.DBCache || strings.EqualFold(c.VectorStore.Type, "pgvector")
	if needDB && !c.Database.Configured() {
		return fmt.Errorf("database config is required for pgvector store or embedding db cache")
	}
	if c.Jobs.EmbeddingCacheCleanup != "" && !c.Embedding.DBCache {
		return fmt.Errorf("jobs.embedding_cache_cleanup requires embedding.db_cache")
	}
	return nil
}

// defaultModelFor picks the model when embedding.model is unset. Ollama
// takes it from its own data block.
func defaultModelFor(cfg EmbeddingConfig) string {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		return defaultEmbedModel
	case "openai":
		return defaultOpenAIModel
	case "ollama":
		return dataString(cfg.Data, "model")
	}
	return strings.ToLower(cfg.Provider)
}

func (c EmbeddingConfig) validateModel() error {
	if !strings.EqualFold(c.Provider, "ollama") {
		return nil
	}
	if c.Model == "" {
		return fmt.Errorf("embedding.model is required for ollama")
	}
	if dm := dataString(c.Data, "model"); dm != "" && dm != c.Model {
		return fmt.Errorf("embedding.model %q does not match embedding.data.model %q", c.Model, dm)
	}
	return nil
}

func dataString(data interface{}, key string) string {
	m, ok := data.(map[string]interface{})
	if !ok {
		return ""
	}
	v, _ := m[key].(string)
	return strings.TrimSpace(v)
}

func isKnownExtension(ext string) bool {
	for _, item := range DefaultSupportedExtensions {
		if item == ext {
			return true
		}
	}
	return false
}
