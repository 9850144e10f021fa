package config

// ProviderType identifies a model provider for chat or embeddings.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// MemoryBackend identifies the backing store for session memory.
type MemoryBackend string

const (
	MemoryBackendMap   MemoryBackend = "memory"
	MemoryBackendRedis MemoryBackend = "redis"
)

// Config is the top-level docqa configuration, corresponding to .docqa.yml.
type Config struct {
	Host            string `yaml:"host" koanf:"host"`
	Port            int    `yaml:"port" koanf:"port"`
	AllowAllOrigins bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`

	Provider            ProviderType `yaml:"provider" koanf:"provider"`
	Model               string       `yaml:"model" koanf:"model"`
	EmbeddingProvider   ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel      string       `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimensions int          `yaml:"embedding_dimensions" koanf:"embedding_dimensions"`
	OllamaHost          string       `yaml:"ollama_host" koanf:"ollama_host"`

	Collection string `yaml:"collection" koanf:"collection"`
	DataDir    string `yaml:"data_dir" koanf:"data_dir"`

	ChunkSize    int `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	TopK         int `yaml:"top_k" koanf:"top_k"`

	MemoryTokenLimit  int           `yaml:"memory_token_limit" koanf:"memory_token_limit"`
	MemoryBackend     MemoryBackend `yaml:"memory_backend" koanf:"memory_backend"`
	RedisAddr         string        `yaml:"redis_addr" koanf:"redis_addr"`
	RedisPassword     string        `yaml:"redis_password" koanf:"redis_password"`
	RedisDB           int           `yaml:"redis_db" koanf:"redis_db"`
	SessionTTLMinutes int           `yaml:"session_ttl_minutes" koanf:"session_ttl_minutes"`
	MaxSessions       int           `yaml:"max_sessions" koanf:"max_sessions"`

	RequestTimeoutSecs int `yaml:"request_timeout_secs" koanf:"request_timeout_secs"`
}
