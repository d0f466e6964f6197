package config

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Generation GenerationConfig `yaml:"generation"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type          string        `yaml:"type"` // sqlite, mysql, postgres
	DSN           string        `yaml:"dsn"`
	ConnectTries  uint          `yaml:"connect_tries"`
	ConnectDelay  time.Duration `yaml:"connect_delay"`
	MaxOpenConns  int           `yaml:"max_open_conns"`
	MaxIdleConns  int           `yaml:"max_idle_conns"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// LLMConfig 文本生成模型配置，default_provider 决定使用哪个后端
type LLMConfig struct {
	DefaultProvider string        `yaml:"default_provider"` // openai, ollama
	Timeout         time.Duration `yaml:"timeout"`
	OpenAI          OpenAIConfig  `yaml:"openai"`
	Ollama          OllamaConfig  `yaml:"ollama"`
}

type OpenAIConfig struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OllamaConfig struct {
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	JSONMode bool   `yaml:"json_mode"` // 要求 Ollama 只输出 JSON
}

// GenerationConfig 故事生成流程参数
type GenerationConfig struct {
	MaxTokens             int           `yaml:"max_tokens"`
	StoryTemperature      float32       `yaml:"story_temperature"`
	RegenerateTemperature float32       `yaml:"regenerate_temperature"`
	DefaultEpisodeCount   int           `yaml:"default_episode_count"`
	DefaultArtStyle       string        `yaml:"default_art_style"`
	ValidateSchema        bool          `yaml:"validate_schema"`
	StuckTimeout          time.Duration `yaml:"stuck_timeout"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

// Default 返回全部默认值，不读取文件和环境变量
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type:          "sqlite",
			DSN:           "./data/talelingo.db",
			ConnectTries:  5,
			ConnectDelay:  2 * time.Second,
			MaxOpenConns:  10,
			MaxIdleConns:  5,
			SlowThreshold: time.Second,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			Timeout:         3 * time.Minute,
			OpenAI: OpenAIConfig{
				APIURL: "https://api.openai.com/v1",
				Model:  "gpt-4o",
			},
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434",
				Model:   "llama3.1",
			},
		},
		Generation: GenerationConfig{
			MaxTokens:             4000,
			StoryTemperature:      0.8,
			RegenerateTemperature: 0.9,
			DefaultEpisodeCount:   5,
			DefaultArtStyle:       "watercolor",
			StuckTimeout:          10 * time.Minute,
		},
	}
}

func loadConfig() *Config {
	// .env 只补充进程环境，不覆盖已存在的变量
	_ = godotenv.Load()

	config := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	applyEnv(config)
	return config
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(config *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		config.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		config.Server.Mode = mode
	}

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	if provider := os.Getenv("DEFAULT_AI_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.OpenAI.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.OpenAI.Model = model
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.Ollama.BaseURL = baseURL
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		config.LLM.Ollama.Model = model
	}

	if maxTokens := os.Getenv("GENERATION_MAX_TOKENS"); maxTokens != "" {
		if n, err := strconv.Atoi(maxTokens); err == nil && n > 0 {
			config.Generation.MaxTokens = n
		}
	}
	if strict := os.Getenv("GENERATION_VALIDATE_SCHEMA"); strict != "" {
		if b, err := strconv.ParseBool(strict); err == nil {
			config.Generation.ValidateSchema = b
		}
	}
}
