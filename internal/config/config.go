package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// defaultSystemPrompt instructs the model before any persona framing is added.
const defaultSystemPrompt = "You are having a voice-to-voice conversation with a user. " +
	"Always pretend you are a real human. Do not avoid or decline to answer questions " +
	"because you are not human."

// Config aggregates every setting the bot needs.
type Config struct {
	Server   ServerConfig
	Telegram TelegramConfig
	Store    StoreConfig
	AI       AIConfig
	Speech   SpeechConfig
	Pipeline PipelineConfig
}

// Load reads the full configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	pipeline, err := loadPipelineConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Telegram: loadTelegramConfig(),
		Store:    loadStoreConfig(),
		AI:       ai,
		Speech:   speech,
		Pipeline: pipeline,
	}, nil
}

// ServerConfig describes the HTTP listener for health and metrics.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// TelegramConfig holds the bot token for the chat connector.
type TelegramConfig struct {
	Token string
}

// Enabled reports whether the Telegram connector can start.
func (c TelegramConfig) Enabled() bool {
	return c.Token != ""
}

func loadTelegramConfig() TelegramConfig {
	return TelegramConfig{Token: strings.TrimSpace(os.Getenv("TELEGRAM_BOT_KEY"))}
}

// StoreConfig describes the session persistence backend.
type StoreConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Enabled reports whether a Redis backend is configured; without one the
// bot falls back to in-process sessions that do not survive restarts.
func (c StoreConfig) Enabled() bool {
	return c.RedisAddr != ""
}

func loadStoreConfig() StoreConfig {
	db := 0
	if raw := strings.TrimSpace(os.Getenv("REDIS_DB")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			db = parsed
		}
	}
	return StoreConfig{
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: strings.TrimSpace(os.Getenv("REDIS_PASSWORD")),
		RedisDB:       db,
	}
}

// AIConfig describes the dialogue model.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required model credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the Ark chat model from this configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("missing Ark credentials: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// SpeechConfig describes transcription and synthesis backends.
type SpeechConfig struct {
	// Which synthesis backend variant serves replies.
	SynthVariant string

	// OpenAI: Whisper transcription and the description-capable TTS.
	OpenAIAPIKey string
	OpenAIVoice  string
	OpenAIModel  string

	// ElevenLabs.
	ElevenAPIKey     string
	ElevenModelID    string
	ElevenStability  float64
	ElevenSimilarity float64

	// Volcengine.
	VolcAppID       string
	VolcAccessToken string
	VolcVoice       string
	VolcSpeed       float32
	VolcVolume      float32

	Timeout time.Duration
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("SPEECH_TIMEOUT"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		timeoutSeconds = *override
	}

	stability := 0.5
	if override, err := parseOptionalFloatEnv("ELEVENLABS_STABILITY"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		stability = *override
	}

	similarity := 0.75
	if override, err := parseOptionalFloatEnv("ELEVENLABS_SIMILARITY"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		similarity = *override
	}

	speed := float32(1.0)
	if override, err := parseOptionalFloat32Env("VOLC_TTS_SPEED"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		speed = *override
	}

	volume := float32(1.0)
	if override, err := parseOptionalFloat32Env("VOLC_TTS_VOLUME"); err != nil {
		return SpeechConfig{}, err
	} else if override != nil {
		volume = *override
	}

	return SpeechConfig{
		SynthVariant:     getEnvOrDefault("SYNTH_VARIANT", "elevenlabs"),
		OpenAIAPIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIVoice:      getEnvOrDefault("OPENAI_TTS_VOICE", "nova"),
		OpenAIModel:      getEnvOrDefault("OPENAI_TTS_MODEL", "gpt-4o-mini-tts"),
		ElevenAPIKey:     strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		ElevenModelID:    getEnvOrDefault("ELEVENLABS_MODEL_ID", "eleven_turbo_v2_5"),
		ElevenStability:  stability,
		ElevenSimilarity: similarity,
		VolcAppID:        strings.TrimSpace(os.Getenv("VOLC_APP_ID")),
		VolcAccessToken:  strings.TrimSpace(os.Getenv("VOLC_ACCESS_TOKEN")),
		VolcVoice:        strings.TrimSpace(os.Getenv("VOLC_TTS_VOICE")),
		VolcSpeed:        speed,
		VolcVolume:       volume,
		Timeout:          time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// PipelineConfig tunes orchestrator behavior.
type PipelineConfig struct {
	SystemPrompt string
	LockWait     time.Duration
	HistoryLimit int
}

func loadPipelineConfig() (PipelineConfig, error) {
	lockWaitSeconds := 5
	if override, err := parseOptionalIntEnv("SESSION_LOCK_WAIT"); err != nil {
		return PipelineConfig{}, err
	} else if override != nil && *override > 0 {
		lockWaitSeconds = *override
	}

	historyLimit := 20
	if override, err := parseOptionalIntEnv("HISTORY_LIMIT"); err != nil {
		return PipelineConfig{}, err
	} else if override != nil && *override > 0 {
		historyLimit = *override
	}

	return PipelineConfig{
		SystemPrompt: getEnvOrDefault("SYSTEM_PROMPT", defaultSystemPrompt),
		LockWait:     time.Duration(lockWaitSeconds) * time.Second,
		HistoryLimit: historyLimit,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
