package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Vision  VisionConfig
	TTS     TTSConfig
	Worker  WorkerConfig
	Storage StorageConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string // empty disables auth on /api/v1
}

type VisionConfig struct {
	Provider         string // "openai" (OpenAI-compatible, Gemini by default), "anthropic" or "ollama"
	Model            string
	FallbackProvider string
	MaxRetries       int
	GeminiKey        string
	OpenAIBaseURL    string // default: Gemini's OpenAI-compatible endpoint
	AnthropicKey     string
	OllamaURL        string
	PromptFile       string // optional file overriding the built-in prompt
}

type TTSConfig struct {
	Backend       string // "fpt" or "openai"
	FPTKey        string
	FPTURL        string
	Voice         string
	Speed         string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	OpenAIVoice   string // speaker for the openai backend
	Poll          PollConfig
}

// PollConfig controls how long the FPT backend waits for async audio.
type PollConfig struct {
	InitialWait time.Duration
	Step        time.Duration
	MaxAttempts int
	ValidateURL bool
}

type WorkerConfig struct {
	Concurrency   int
	ResultTTL     time.Duration // how long async results stay readable
	WebhookSecret string        // signs completion callbacks; empty sends them unsigned
}

// StorageConfig confines the paths HTTP clients may name. Request paths are
// relative to these directories; the CLI is not restricted.
type StorageConfig struct {
	InputDir  string
	OutputDir string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("VISION_MAX_RETRIES", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid VISION_MAX_RETRIES: %w", err)
	}

	initialWait, err := getEnvDuration("TTS_POLL_INITIAL_WAIT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_POLL_INITIAL_WAIT: %w", err)
	}

	step, err := getEnvDuration("TTS_POLL_STEP", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_POLL_STEP: %w", err)
	}

	maxAttempts, err := getEnvInt("TTS_POLL_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_POLL_MAX_ATTEMPTS: %w", err)
	}

	validateURL, err := getEnvBool("TTS_POLL_VALIDATE_URL", true)
	if err != nil {
		return nil, fmt.Errorf("invalid TTS_POLL_VALIDATE_URL: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 1)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	resultTTL, err := getEnvDuration("RESULT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid RESULT_TTL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Vision: VisionConfig{
			Provider:         getEnv("VISION_PROVIDER", "openai"),
			Model:            getEnv("VISION_MODEL", "gemini-2.5-flash"),
			FallbackProvider: getEnv("VISION_FALLBACK_PROVIDER", ""),
			MaxRetries:       maxRetries,
			GeminiKey:        getEnv("GEMINI_API_KEY", ""),
			OpenAIBaseURL:    getEnv("VISION_OPENAI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", ""),
			PromptFile:       getEnv("VISION_PROMPT_FILE", ""),
		},
		TTS: TTSConfig{
			Backend:       getEnv("TTS_BACKEND", "fpt"),
			FPTKey:        getEnv("FPT_API_KEY", ""),
			FPTURL:        getEnv("TTS_FPT_URL", "https://api.fpt.ai/hmi/tts/v5"),
			Voice:         getEnv("TTS_VOICE", "banmai"),
			Speed:         getEnv("TTS_SPEED", ""),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("TTS_OPENAI_BASE_URL", ""),
			OpenAIModel:   getEnv("TTS_OPENAI_MODEL", ""),
			OpenAIVoice:   getEnv("TTS_OPENAI_VOICE", "alloy"),
			Poll: PollConfig{
				InitialWait: initialWait,
				Step:        step,
				MaxAttempts: maxAttempts,
				ValidateURL: validateURL,
			},
		},
		Worker: WorkerConfig{
			Concurrency:   concurrency,
			ResultTTL:     resultTTL,
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		},
		Storage: StorageConfig{
			InputDir:  getEnv("STORAGE_INPUT_DIR", "data/input"),
			OutputDir: getEnv("STORAGE_OUTPUT_DIR", "data/output"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports credentials missing for the selected backends.
func (c *Config) Validate() error {
	var missing []string
	switch c.Vision.Provider {
	case "openai":
		if c.Vision.GeminiKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case "anthropic":
		if c.Vision.AnthropicKey == "" {
			missing = append(missing, "ANTHROPIC_API_KEY")
		}
	case "ollama":
		if c.Vision.OllamaURL == "" {
			missing = append(missing, "OLLAMA_URL")
		}
	default:
		return fmt.Errorf("unknown VISION_PROVIDER %q", c.Vision.Provider)
	}

	switch c.TTS.Backend {
	case "fpt":
		if c.TTS.FPTKey == "" {
			missing = append(missing, "FPT_API_KEY")
		}
	case "openai":
		if c.TTS.OpenAIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown TTS_BACKEND %q", c.TTS.Backend)
	}

	if c.TTS.Poll.MaxAttempts < 1 {
		return fmt.Errorf("TTS_POLL_MAX_ATTEMPTS must be at least 1")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvDuration accepts Go durations ("15s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}
