package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	llmgemini "ragchat/internal/llm/gemini"
)

// GeminiConfig configures the hosted embedding and chat models.
type GeminiConfig struct {
	ChatModel       string                    `yaml:"chat_model"`
	EmbeddingModel  string                    `yaml:"embedding_model"`
	Temperature     *float32                  `yaml:"temperature"`
	MaxOutputTokens int32                     `yaml:"max_output_tokens"`
	TimeoutSecs     int                       `yaml:"timeout_secs"`
	BaseURL         string                    `yaml:"base_url,omitempty"`
	Safety          []llmgemini.SafetySetting `yaml:"safety"`
}

// DefaultTemperature is used when gemini.temperature is omitted.
const DefaultTemperature float32 = llmgemini.DefaultTemperature

// EffectiveTemperature returns the configured temperature, or
// DefaultTemperature when none was set.
func (g GeminiConfig) EffectiveTemperature() float32 {
	if g.Temperature == nil {
		return DefaultTemperature
	}
	return *g.Temperature
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string `yaml:"type"`
	BatchSize         int    `yaml:"batch_size"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Separator    string `yaml:"separator"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
// Each session gets its own collection named <collection>_<session>.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	UseTLS     bool   `yaml:"use_tls"`
}

// TranscriptConfig controls which caption tracks are accepted.
type TranscriptConfig struct {
	Languages         []string `yaml:"languages"`
	FallbackLanguages []string `yaml:"fallback_languages"`
	BaseURL           string   `yaml:"base_url,omitempty"`
	TimeoutSecs       int      `yaml:"timeout_secs"`
}

type PDFConfig struct {
	ScratchDir string `yaml:"scratch_dir"`
}

// SummarizerConfig selects and configures the source preview summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Mode  string `yaml:"mode"`
	Path  string `yaml:"path,omitempty"`
}

// AppConfig is the root application configuration structure.
// The Gemini API key is deliberately absent: it is held in memory only.
type AppConfig struct {
	Gemini      GeminiConfig      `yaml:"gemini"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Transcript  TranscriptConfig  `yaml:"transcript"`
	PDF         PDFConfig         `yaml:"pdf"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{
		Gemini: GeminiConfig{
			ChatModel:      "gemini-2.0-flash",
			EmbeddingModel: "models/embedding-001",
			Temperature:    float32Ptr(DefaultTemperature),
			TimeoutSecs:    60,
			Safety:         llmgemini.DefaultSafety(),
		},
		Embedder:    EmbedderConfig{Type: "gemini", BatchSize: 100},
		Chunker:     ChunkerConfig{ChunkSize: 1000, ChunkOverlap: 200, Separator: ". "},
		Retrieval:   RetrievalConfig{TopK: 5},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Transcript: TranscriptConfig{
			Languages:         []string{"en"},
			FallbackLanguages: []string{"en-US", "en-GB", "en-CA", "en-AU"},
			TimeoutSecs:       30,
		},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 3},
		Log:        LogConfig{Level: "info", Mode: "production"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.Gemini.ChatModel == "" {
		cfg.Gemini.ChatModel = def.Gemini.ChatModel
	}
	if cfg.Gemini.EmbeddingModel == "" {
		cfg.Gemini.EmbeddingModel = def.Gemini.EmbeddingModel
	}
	if cfg.Gemini.Temperature == nil {
		cfg.Gemini.Temperature = def.Gemini.Temperature
	}
	if cfg.Gemini.TimeoutSecs == 0 {
		cfg.Gemini.TimeoutSecs = def.Gemini.TimeoutSecs
	}
	if cfg.Gemini.Safety == nil {
		cfg.Gemini.Safety = def.Gemini.Safety
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = def.Embedder.Type
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = def.Embedder.BatchSize
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = def.Chunker.ChunkSize
	}
	if cfg.Chunker.Separator == "" {
		cfg.Chunker.Separator = def.Chunker.Separator
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = def.Retrieval.TopK
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = def.VectorStore.Type
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.Host == "" {
			cfg.VectorStore.Qdrant.Host = "localhost"
		}
		if cfg.VectorStore.Qdrant.Port == 0 {
			cfg.VectorStore.Qdrant.Port = 6334
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "ragchat"
		}
	}
	if len(cfg.Transcript.Languages) == 0 {
		cfg.Transcript.Languages = def.Transcript.Languages
	}
	if cfg.Transcript.FallbackLanguages == nil {
		cfg.Transcript.FallbackLanguages = def.Transcript.FallbackLanguages
	}
	if cfg.Transcript.TimeoutSecs == 0 {
		cfg.Transcript.TimeoutSecs = def.Transcript.TimeoutSecs
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = def.Summarizer.Type
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = def.Summarizer.MaxSentences
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = def.Log.Mode
	}
}

// Validate reports settings that will be ignored or rejected at startup.
func (c *AppConfig) Validate() []string {
	var warnings []string
	if t := c.Gemini.EffectiveTemperature(); t < 0 || t > 2 {
		warnings = append(warnings, fmt.Sprintf("gemini.temperature %.2f is outside [0, 2]", t))
	}
	if err := llmgemini.ValidateSafety(c.Gemini.Safety); err != nil {
		warnings = append(warnings, "gemini.safety: "+err.Error())
	}
	switch strings.ToLower(c.Embedder.Type) {
	case "gemini", "tfidf":
	default:
		warnings = append(warnings, fmt.Sprintf("embedder.type %q is unknown (gemini, tfidf)", c.Embedder.Type))
	}
	if c.Chunker.ChunkSize < 0 {
		warnings = append(warnings, "chunker.chunk_size must be positive")
	}
	if c.Chunker.ChunkOverlap < 0 || (c.Chunker.ChunkSize > 0 && c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize) {
		warnings = append(warnings, fmt.Sprintf("chunker.chunk_overlap %d must be in [0, chunk_size)", c.Chunker.ChunkOverlap))
	}
	if c.Retrieval.TopK < 0 {
		warnings = append(warnings, "retrieval.top_k must be positive")
	}
	switch strings.ToLower(c.VectorStore.Type) {
	case "memory", "qdrant":
	default:
		warnings = append(warnings, fmt.Sprintf("vector_store.type %q is unknown (memory, qdrant)", c.VectorStore.Type))
	}
	switch strings.ToLower(c.Summarizer.Type) {
	case "frequency", "lead", "none", "off":
	default:
		warnings = append(warnings, fmt.Sprintf("summarizer.type %q is unknown (frequency, lead, none)", c.Summarizer.Type))
	}
	return warnings
}

func float32Ptr(v float32) *float32 { return &v }
