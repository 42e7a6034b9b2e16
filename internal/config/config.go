package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Deck        DeckConfig       `yaml:"deck"`
	Session     SessionConfig    `yaml:"session"`
	STT         STTConfig        `yaml:"stt"`
	LLM         LLMConfig        `yaml:"llm"`
	TTS         TTSConfig        `yaml:"tts"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Devices     DevicesConfig    `yaml:"devices"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type DeckConfig struct {
	Path             string `yaml:"path"`
	InstructionsPath string `yaml:"instructions_path"`
	AssetsDir        string `yaml:"assets_dir"`
}

type SessionConfig struct {
	MinTurns      int     `yaml:"min_turns_per_photo"`
	MaxTurns      int     `yaml:"max_turns_per_photo"`
	Voice         string  `yaml:"voice"`
	Speed         float64 `yaml:"speed"`
	UserName      string  `yaml:"user_name"`
	CompanionName string  `yaml:"companion_name"`
}

type STTConfig struct {
	Mode       string `yaml:"mode"` // mock, exec, openai
	Command    string `yaml:"command"`
	ModelPath  string `yaml:"model_path"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
}

type LLMConfig struct {
	Mode        string  `yaml:"mode"` // mock, ollama, exec, openai
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type TTSConfig struct {
	Mode     string `yaml:"mode"` // mock, exec, openai
	Command  string `yaml:"command"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	MaxChars int    `yaml:"max_chars"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type DevicesConfig struct {
	Enabled           bool `yaml:"enabled"`
	HeartbeatInterval int  `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int  `yaml:"heartbeat_timeout_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "keepsake-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Deck: DeckConfig{
			Path:             "./data/photos.json",
			InstructionsPath: "./data/instructions.txt",
			AssetsDir:        "./assets",
		},
		Session: SessionConfig{
			MinTurns:      4,
			MaxTurns:      6,
			Voice:         "nova",
			Speed:         0.75,
			UserName:      "My",
			CompanionName: "Sarah",
		},
		STT: STTConfig{
			Mode:       "mock",
			SampleRate: 16000,
			Channels:   1,
			Endpoint:   "https://api.openai.com",
			Model:      "whisper-1",
		},
		LLM: LLMConfig{
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   60,
			Temperature: 0.8,
		},
		TTS: TTSConfig{
			Mode:     "mock",
			Endpoint: "https://api.openai.com",
			Model:    "tts-1",
			MaxChars: 4096,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/keepsake-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Devices: DevicesConfig{
			Enabled:           true,
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "KEEPSAKE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "KEEPSAKE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "KEEPSAKE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "KEEPSAKE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "KEEPSAKE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "KEEPSAKE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "KEEPSAKE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "KEEPSAKE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "KEEPSAKE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "KEEPSAKE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "KEEPSAKE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "KEEPSAKE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "KEEPSAKE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "KEEPSAKE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "KEEPSAKE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Deck.Path, "KEEPSAKE_DECK_PATH")
	overrideString(&cfg.Deck.InstructionsPath, "KEEPSAKE_DECK_INSTRUCTIONS_PATH")
	overrideString(&cfg.Deck.AssetsDir, "KEEPSAKE_DECK_ASSETS_DIR")
	overrideInt(&cfg.Session.MinTurns, "KEEPSAKE_SESSION_MIN_TURNS")
	overrideInt(&cfg.Session.MaxTurns, "KEEPSAKE_SESSION_MAX_TURNS")
	overrideString(&cfg.Session.Voice, "KEEPSAKE_SESSION_VOICE")
	overrideFloat(&cfg.Session.Speed, "KEEPSAKE_SESSION_SPEED")
	overrideString(&cfg.Session.UserName, "KEEPSAKE_SESSION_USER_NAME")
	overrideString(&cfg.Session.CompanionName, "KEEPSAKE_SESSION_COMPANION_NAME")
	overrideString(&cfg.STT.Mode, "KEEPSAKE_STT_MODE")
	overrideString(&cfg.STT.Command, "KEEPSAKE_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "KEEPSAKE_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "KEEPSAKE_STT_LANGUAGE")
	overrideInt(&cfg.STT.SampleRate, "KEEPSAKE_STT_SAMPLE_RATE")
	overrideInt(&cfg.STT.Channels, "KEEPSAKE_STT_CHANNELS")
	overrideString(&cfg.STT.Endpoint, "KEEPSAKE_STT_ENDPOINT")
	overrideString(&cfg.STT.APIKey, "KEEPSAKE_STT_API_KEY")
	overrideString(&cfg.STT.Model, "KEEPSAKE_STT_MODEL")
	overrideString(&cfg.LLM.Mode, "KEEPSAKE_LLM_MODE")
	overrideString(&cfg.LLM.Endpoint, "KEEPSAKE_LLM_ENDPOINT")
	overrideString(&cfg.LLM.Command, "KEEPSAKE_LLM_COMMAND")
	overrideString(&cfg.LLM.APIKey, "KEEPSAKE_LLM_API_KEY")
	overrideString(&cfg.LLM.Model, "KEEPSAKE_LLM_MODEL")
	overrideInt(&cfg.LLM.MaxTokens, "KEEPSAKE_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "KEEPSAKE_LLM_TEMPERATURE")
	overrideString(&cfg.TTS.Mode, "KEEPSAKE_TTS_MODE")
	overrideString(&cfg.TTS.Command, "KEEPSAKE_TTS_COMMAND")
	overrideString(&cfg.TTS.Endpoint, "KEEPSAKE_TTS_ENDPOINT")
	overrideString(&cfg.TTS.APIKey, "KEEPSAKE_TTS_API_KEY")
	overrideString(&cfg.TTS.Model, "KEEPSAKE_TTS_MODEL")
	overrideInt(&cfg.TTS.MaxChars, "KEEPSAKE_TTS_MAX_CHARS")
	overrideString(&cfg.EventStore.Path, "KEEPSAKE_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "KEEPSAKE_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "KEEPSAKE_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "KEEPSAKE_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "KEEPSAKE_EVENT_STORE_VACUUM_ON_START")
	overrideBool(&cfg.Devices.Enabled, "KEEPSAKE_DEVICES_ENABLED")
	overrideInt(&cfg.Devices.HeartbeatInterval, "KEEPSAKE_DEVICES_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Devices.HeartbeatTimeout, "KEEPSAKE_DEVICES_HEARTBEAT_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Deck.Path == "" {
		return errors.New("deck.path must not be empty")
	}
	if cfg.Deck.InstructionsPath == "" {
		return errors.New("deck.instructions_path must not be empty")
	}
	if cfg.Session.MinTurns < 1 {
		return errors.New("session.min_turns_per_photo must be >= 1")
	}
	if cfg.Session.MaxTurns < cfg.Session.MinTurns {
		return errors.New("session.max_turns_per_photo must be >= min_turns_per_photo")
	}
	if cfg.Session.Speed <= 0 {
		return errors.New("session.speed must be positive")
	}
	switch cfg.STT.Mode {
	case "mock", "exec", "openai":
	default:
		return errors.New("stt.mode must be one of mock|exec|openai")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.STT.Mode == "openai" && cfg.STT.Endpoint == "" {
		return errors.New("stt.endpoint must be set when mode=openai")
	}
	if cfg.STT.SampleRate <= 0 {
		return errors.New("stt.sample_rate must be positive")
	}
	if cfg.STT.Channels <= 0 {
		return errors.New("stt.channels must be positive")
	}
	switch cfg.LLM.Mode {
	case "mock", "ollama", "exec", "openai":
	default:
		return errors.New("llm.mode must be one of mock|ollama|exec|openai")
	}
	if (cfg.LLM.Mode == "ollama" || cfg.LLM.Mode == "openai") && cfg.LLM.Endpoint == "" {
		return errors.New("llm.endpoint must be set when mode=ollama or mode=openai")
	}
	if cfg.LLM.Mode == "exec" && cfg.LLM.Command == "" {
		return errors.New("llm.command must be set when mode=exec")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	switch cfg.TTS.Mode {
	case "mock", "exec", "openai":
	default:
		return errors.New("tts.mode must be one of mock|exec|openai")
	}
	if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
		return errors.New("tts.command must be set when mode=exec")
	}
	if cfg.TTS.Mode == "openai" && cfg.TTS.Endpoint == "" {
		return errors.New("tts.endpoint must be set when mode=openai")
	}
	if cfg.TTS.MaxChars <= 0 {
		return errors.New("tts.max_chars must be positive")
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Devices.Enabled {
		if cfg.Devices.HeartbeatInterval <= 0 {
			return errors.New("devices.heartbeat_interval_ms must be positive")
		}
		if cfg.Devices.HeartbeatTimeout <= cfg.Devices.HeartbeatInterval {
			return errors.New("devices.heartbeat_timeout_ms must be greater than heartbeat interval")
		}
	}
	return nil
}
