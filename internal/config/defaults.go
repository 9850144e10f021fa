package config

// DefaultConfig returns a Config with sensible defaults. The chunking and
// memory numbers match the values the service has always shipped with:
// 1000-character chunks with 200 characters of overlap, a 1000-token
// conversational memory budget, and 5 retrieved chunks per query.
func DefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8002,
		AllowAllOrigins: false,

		Provider:            ProviderOllama,
		Model:               "llama3.1:8b",
		EmbeddingProvider:   ProviderOllama,
		EmbeddingModel:      "nomic-embed-text",
		EmbeddingDimensions: 768,
		OllamaHost:          "http://localhost:11434",

		Collection: "rag_documents",
		DataDir:    "data",

		ChunkSize:    1000,
		ChunkOverlap: 200,
		TopK:         5,

		MemoryTokenLimit:  1000,
		MemoryBackend:     MemoryBackendMap,
		RedisAddr:         "localhost:6379",
		RedisDB:           0,
		SessionTTLMinutes: 60,
		MaxSessions:       1000,

		RequestTimeoutSecs: 60,
	}
}
