package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8002 {
		t.Errorf("Port = %d, want 8002", cfg.Port)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("chunking = %d/%d, want 1000/200", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.TopK)
	}
	if cfg.MemoryTokenLimit != 1000 {
		t.Errorf("MemoryTokenLimit = %d, want 1000", cfg.MemoryTokenLimit)
	}
	if cfg.MemoryBackend != MemoryBackendMap {
		t.Errorf("MemoryBackend = %q, want memory", cfg.MemoryBackend)
	}
	if cfg.Collection != "rag_documents" {
		t.Errorf("Collection = %q", cfg.Collection)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".docqa.yml")
	content := "port: 9100\nchunk_size: 500\nchunk_overlap: 50\nmodel: mistral\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9100 || cfg.ChunkSize != 500 || cfg.ChunkOverlap != 50 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Model != "mistral" {
		t.Errorf("Model = %q, want mistral", cfg.Model)
	}
	// Untouched keys keep defaults.
	if cfg.TopK != 5 {
		t.Errorf("TopK = %d, want default 5", cfg.TopK)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".docqa.yml")
	if err := os.WriteFile(path, []byte("port: 9100\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("DOCQA_PORT", "9200")
	t.Setenv("DOCQA_COLLECTION", "env_collection")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9200 {
		t.Errorf("Port = %d, want env override 9200", cfg.Port)
	}
	if cfg.Collection != "env_collection" {
		t.Errorf("Collection = %q, want env override", cfg.Collection)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".docqa.yml")
	if err := os.WriteFile(path, []byte("chunk_size: 100\nchunk_overlap: 100\n"), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted overlap equal to chunk size")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero port", func(c *Config) { c.Port = 0 }, false},
		{"unknown provider", func(c *Config) { c.Provider = "claude" }, false},
		{"missing model", func(c *Config) { c.Model = "" }, false},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, false},
		{"overlap equals size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, false},
		{"zero top_k", func(c *Config) { c.TopK = 0 }, false},
		{"zero token limit", func(c *Config) { c.MemoryTokenLimit = 0 }, false},
		{"unknown backend", func(c *Config) { c.MemoryBackend = "memcached" }, false},
		{"redis without addr", func(c *Config) {
			c.MemoryBackend = MemoryBackendRedis
			c.RedisAddr = ""
		}, false},
		{"redis with addr", func(c *Config) { c.MemoryBackend = MemoryBackendRedis }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantOK && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tc.wantOK && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".docqa.yml")
	cfg := DefaultConfig()
	cfg.Port = 9999
	cfg.Model = "custom-model"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Port != 9999 || loaded.Model != "custom-model" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}
