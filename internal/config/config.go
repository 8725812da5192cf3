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
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
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

type CaptureConfig struct {
	Mode            string `yaml:"mode"` // exec, mock
	Command         string `yaml:"command"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	ChunkDurationMS int    `yaml:"chunk_duration_ms"`
	MaxDurationMS   int    `yaml:"max_duration_ms"`
}

type UploadConfig struct {
	Endpoint  string `yaml:"endpoint"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type STTConfig struct {
	Mode      string `yaml:"mode"` // mock, exec
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

type AnalysisConfig struct {
	FillerWords       []string `yaml:"filler_words"`
	FillerRatioAlert  float64  `yaml:"filler_ratio_alert"`
	MinDetailedWords  int      `yaml:"min_detailed_words"`
	MaxConciseWords   int      `yaml:"max_concise_words"`
	LowScoreThreshold float64  `yaml:"low_score_threshold"`
}

type CoachConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Mode        string  `yaml:"mode"` // mock, ollama, exec
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type SessionStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName  string             `yaml:"runtime_name"`
	Environment  string             `yaml:"environment"`
	HTTP         HTTPConfig         `yaml:"http"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Bus          BusConfig          `yaml:"bus"`
	Capture      CaptureConfig      `yaml:"capture"`
	Upload       UploadConfig       `yaml:"upload"`
	STT          STTConfig          `yaml:"stt"`
	Analysis     AnalysisConfig     `yaml:"analysis"`
	Coach        CoachConfig        `yaml:"coach"`
	SessionStore SessionStoreConfig `yaml:"session_store"`
}

func Default() Config {
	return Config{
		RuntimeName: "soundcheck",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Capture: CaptureConfig{
			Mode:            "exec",
			Command:         "arecord -q -f S16_LE -r 16000 -c 1 -t raw",
			SampleRate:      16000,
			Channels:        1,
			ChunkDurationMS: 100,
			MaxDurationMS:   30000,
		},
		Upload: UploadConfig{
			Endpoint:  "http://localhost:8080/api/process_audio",
			TimeoutMS: 60000,
		},
		STT: STTConfig{
			Mode: "mock",
		},
		Analysis: AnalysisConfig{
			FillerWords:       []string{"um", "uh", "like", "you know", "actually", "basically", "literally"},
			FillerRatioAlert:  0.1,
			MinDetailedWords:  50,
			MaxConciseWords:   300,
			LowScoreThreshold: 50,
		},
		Coach: CoachConfig{
			Enabled:     false,
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   128,
			Temperature: 0.7,
		},
		SessionStore: SessionStoreConfig{
			Path:          "./data/soundcheck-sessions.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
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
	overrideString(&cfg.RuntimeName, "SOUNDCHECK_RUNTIME_NAME")
	overrideString(&cfg.Environment, "SOUNDCHECK_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SOUNDCHECK_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SOUNDCHECK_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SOUNDCHECK_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SOUNDCHECK_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SOUNDCHECK_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SOUNDCHECK_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "SOUNDCHECK_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SOUNDCHECK_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SOUNDCHECK_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SOUNDCHECK_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SOUNDCHECK_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SOUNDCHECK_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SOUNDCHECK_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SOUNDCHECK_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Capture.Mode, "SOUNDCHECK_CAPTURE_MODE")
	overrideString(&cfg.Capture.Command, "SOUNDCHECK_CAPTURE_COMMAND")
	overrideInt(&cfg.Capture.SampleRate, "SOUNDCHECK_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "SOUNDCHECK_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.ChunkDurationMS, "SOUNDCHECK_CAPTURE_CHUNK_DURATION_MS")
	overrideInt(&cfg.Capture.MaxDurationMS, "SOUNDCHECK_CAPTURE_MAX_DURATION_MS")
	overrideString(&cfg.Upload.Endpoint, "SOUNDCHECK_UPLOAD_ENDPOINT")
	overrideInt(&cfg.Upload.TimeoutMS, "SOUNDCHECK_UPLOAD_TIMEOUT_MS")
	overrideString(&cfg.STT.Mode, "SOUNDCHECK_STT_MODE")
	overrideString(&cfg.STT.Command, "SOUNDCHECK_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "SOUNDCHECK_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "SOUNDCHECK_STT_LANGUAGE")
	overrideBool(&cfg.Coach.Enabled, "SOUNDCHECK_COACH_ENABLED")
	overrideString(&cfg.Coach.Mode, "SOUNDCHECK_COACH_MODE")
	overrideString(&cfg.Coach.Endpoint, "SOUNDCHECK_COACH_ENDPOINT")
	overrideString(&cfg.Coach.Command, "SOUNDCHECK_COACH_COMMAND")
	overrideString(&cfg.Coach.Model, "SOUNDCHECK_COACH_MODEL")
	overrideInt(&cfg.Coach.MaxTokens, "SOUNDCHECK_COACH_MAX_TOKENS")
	overrideFloat(&cfg.Coach.Temperature, "SOUNDCHECK_COACH_TEMPERATURE")
	overrideString(&cfg.SessionStore.Path, "SOUNDCHECK_SESSION_STORE_PATH")
	overrideString(&cfg.SessionStore.RetentionMode, "SOUNDCHECK_SESSION_STORE_RETENTION_MODE")
	overrideInt(&cfg.SessionStore.RetentionDays, "SOUNDCHECK_SESSION_STORE_RETENTION_DAYS")
	overrideInt(&cfg.SessionStore.MaxSessions, "SOUNDCHECK_SESSION_STORE_MAX_SESSIONS")
	overrideBool(&cfg.SessionStore.VacuumOnStart, "SOUNDCHECK_SESSION_STORE_VACUUM_ON_START")
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
	switch cfg.Capture.Mode {
	case "exec", "mock":
	default:
		return errors.New("capture.mode must be one of exec|mock")
	}
	if cfg.Capture.Mode == "exec" && cfg.Capture.Command == "" {
		return errors.New("capture.command must be set when capture.mode=exec")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels <= 0 {
		return errors.New("capture.channels must be positive")
	}
	if cfg.Capture.ChunkDurationMS <= 0 {
		return errors.New("capture.chunk_duration_ms must be positive")
	}
	if cfg.Capture.MaxDurationMS <= 0 {
		return errors.New("capture.max_duration_ms must be positive")
	}
	if cfg.Upload.Endpoint == "" {
		return errors.New("upload.endpoint must not be empty")
	}
	switch cfg.STT.Mode {
	case "mock", "exec":
	default:
		return errors.New("stt.mode must be one of mock|exec")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when stt.mode=exec")
	}
	if len(cfg.Analysis.FillerWords) == 0 {
		return errors.New("analysis.filler_words must not be empty")
	}
	if cfg.Analysis.FillerRatioAlert < 0 || cfg.Analysis.FillerRatioAlert > 1 {
		return errors.New("analysis.filler_ratio_alert must be in [0,1]")
	}
	if cfg.Analysis.MinDetailedWords < 0 {
		return errors.New("analysis.min_detailed_words must be >= 0")
	}
	if cfg.Analysis.MaxConciseWords <= cfg.Analysis.MinDetailedWords {
		return errors.New("analysis.max_concise_words must be greater than min_detailed_words")
	}
	if cfg.Coach.Enabled {
		switch cfg.Coach.Mode {
		case "mock", "ollama", "exec":
		default:
			return errors.New("coach.mode must be one of mock|ollama|exec")
		}
		if cfg.Coach.Mode == "ollama" && cfg.Coach.Endpoint == "" {
			return errors.New("coach.endpoint must be set when coach.mode=ollama")
		}
		if cfg.Coach.Mode == "exec" && cfg.Coach.Command == "" {
			return errors.New("coach.command must be set when coach.mode=exec")
		}
		if cfg.Coach.MaxTokens < 0 {
			return errors.New("coach.max_tokens must be >= 0")
		}
	}
	if cfg.SessionStore.Path == "" {
		return errors.New("session_store.path must not be empty")
	}
	switch cfg.SessionStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("session_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.SessionStore.RetentionDays < 0 {
		return errors.New("session_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	return nil
}
