// Package config loads tripflow settings from defaults, an optional YAML file,
// a .env file and TRIPFLOW_* environment variables, in that order.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no path is given and the file exists.
const DefaultFile = "tripflow.yaml"

// Extractor providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds every tunable of the service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	Session    SessionConfig    `yaml:"session"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	STT        STTConfig        `yaml:"stt"`
	LiveKit    LiveKitConfig    `yaml:"livekit"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	PublicURL string `yaml:"public_url"`
	AudioDir  string `yaml:"audio_dir"`
	MaxUpload int64  `yaml:"max_upload"`
}

// RedisConfig configures the session store. An empty Addr keeps sessions in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	Channel  string `yaml:"channel"`
	Lock     bool   `yaml:"lock"`
}

// SessionConfig configures turn processing. Dir keeps sessions on disk when
// Redis is not configured.
type SessionConfig struct {
	Dir          string        `yaml:"dir"`
	TTL          time.Duration `yaml:"ttl"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
	MaxUtterance int           `yaml:"max_utterance"`
}

// ExtractorConfig selects and configures the language model.
type ExtractorConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int64         `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// STTConfig points at the transcription service. An empty URL disables audio turns.
type STTConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// LiveKitConfig enables room tokens and data-packet signals when complete.
type LiveKitConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Enabled reports whether credentials are present.
func (c LiveKitConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// DispatchConfig configures response signals.
type DispatchConfig struct {
	Timeout time.Duration     `yaml:"timeout"`
	Assets  map[string]string `yaml:"assets"`
}

// EncryptionConfig holds base64 AES-256 keys for records at rest.
type EncryptionConfig struct {
	Key          string   `yaml:"key"`
	FallbackKeys []string `yaml:"fallback_keys"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":3000",
			PublicURL: "http://localhost:3000",
			AudioDir:  "assets/audio",
			MaxUpload: 25 << 20,
		},
		Redis: RedisConfig{
			Prefix:  "trip_state:",
			Channel: "tripflow:signals",
		},
		Session: SessionConfig{
			TTL:          300 * time.Second,
			LockTTL:      60 * time.Second,
			StoreTimeout: 2 * time.Second,
			MaxUtterance: 4096,
		},
		Extractor: ExtractorConfig{
			Provider:  ProviderGemini,
			MaxTokens: 1024,
			Timeout:   20 * time.Second,
		},
		STT: STTConfig{
			Timeout: 15 * time.Second,
		},
		LiveKit: LiveKitConfig{
			URL: "http://localhost:7880",
		},
		Dispatch: DispatchConfig{
			Timeout: 3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. An explicit path must exist; with an empty
// path DefaultFile is used only if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// .env is optional and never overrides the real environment.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(dst *string, keys ...string) {
		if v, ok := lookup(keys...); ok {
			*dst = v
		}
	}
	integer := func(dst *int, key string) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str(&c.Server.Addr, "TRIPFLOW_ADDR")
	str(&c.Server.PublicURL, "TRIPFLOW_PUBLIC_URL")
	str(&c.Server.AudioDir, "TRIPFLOW_AUDIO_DIR")

	str(&c.Redis.Addr, "TRIPFLOW_REDIS_ADDR", "REDIS_ADDR")
	str(&c.Redis.Password, "TRIPFLOW_REDIS_PASSWORD", "REDIS_PASSWORD")
	integer(&c.Redis.DB, "TRIPFLOW_REDIS_DB")
	str(&c.Redis.Prefix, "TRIPFLOW_REDIS_PREFIX")
	str(&c.Redis.Channel, "TRIPFLOW_REDIS_CHANNEL")
	if v, ok := lookup("TRIPFLOW_REDIS_LOCK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRIPFLOW_REDIS_LOCK: %w", err))
		} else {
			c.Redis.Lock = b
		}
	}

	str(&c.Session.Dir, "TRIPFLOW_SESSION_DIR")
	dur(&c.Session.TTL, "TRIPFLOW_SESSION_TTL")
	dur(&c.Session.LockTTL, "TRIPFLOW_LOCK_TTL")
	dur(&c.Session.StoreTimeout, "TRIPFLOW_STORE_TIMEOUT")
	integer(&c.Session.MaxUtterance, "TRIPFLOW_MAX_INPUT_SIZE")

	str(&c.Extractor.Provider, "TRIPFLOW_EXTRACTOR")
	str(&c.Extractor.Model, "TRIPFLOW_EXTRACTOR_MODEL")
	str(&c.Extractor.BaseURL, "TRIPFLOW_EXTRACTOR_BASE_URL")
	dur(&c.Extractor.Timeout, "TRIPFLOW_EXTRACTOR_TIMEOUT")
	str(&c.Extractor.APIKey, "TRIPFLOW_EXTRACTOR_API_KEY")
	if c.Extractor.APIKey == "" {
		switch c.Extractor.Provider {
		case ProviderGemini:
			str(&c.Extractor.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
		case ProviderOpenAI:
			str(&c.Extractor.APIKey, "OPENAI_API_KEY")
		case ProviderAnthropic:
			str(&c.Extractor.APIKey, "ANTHROPIC_API_KEY")
		}
	}

	str(&c.STT.URL, "TRIPFLOW_STT_URL", "STT_URL")
	str(&c.STT.APIKey, "TRIPFLOW_STT_API_KEY")
	dur(&c.STT.Timeout, "TRIPFLOW_STT_TIMEOUT")

	str(&c.LiveKit.URL, "TRIPFLOW_LIVEKIT_URL", "LIVEKIT_URL")
	str(&c.LiveKit.APIKey, "TRIPFLOW_LIVEKIT_API_KEY", "LIVEKIT_API_KEY")
	str(&c.LiveKit.APISecret, "TRIPFLOW_LIVEKIT_API_SECRET", "LIVEKIT_API_SECRET")

	dur(&c.Dispatch.Timeout, "TRIPFLOW_DISPATCH_TIMEOUT")

	str(&c.Encryption.Key, "TRIPFLOW_ENCRYPTION_KEY")
	if v, ok := lookup("TRIPFLOW_ENCRYPTION_FALLBACK_KEYS"); ok {
		c.Encryption.FallbackKeys = splitList(v)
	}

	str(&c.Logging.Level, "TRIPFLOW_LOG_LEVEL")
	str(&c.Logging.Format, "TRIPFLOW_LOG_FORMAT")

	return errors.Join(errs...)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Extractor.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("unknown extractor provider %q", c.Extractor.Provider))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if c.Session.LockTTL <= 0 {
		errs = append(errs, errors.New("lock ttl must be positive"))
	} else if budget := c.TurnBudget(); c.Session.LockTTL <= budget {
		errs = append(errs, fmt.Errorf("lock ttl %s must exceed the longest turn (%s)", c.Session.LockTTL, budget))
	}
	if (c.LiveKit.APIKey == "") != (c.LiveKit.APISecret == "") {
		errs = append(errs, errors.New("livekit api key and secret must be set together"))
	}
	if c.Encryption.Key == "" && len(c.Encryption.FallbackKeys) > 0 {
		errs = append(errs, errors.New("encryption fallback keys need an active key"))
	}
	if c.Encryption.Key != "" {
		if _, _, err := c.Encryption.Keys(); err != nil {
			errs = append(errs, err)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// TurnBudget is the longest a turn may hold its session lock: a load, a
// transcription, an extraction and a save, each at its own deadline.
func (c *Config) TurnBudget() time.Duration {
	return 2*c.Session.StoreTimeout + c.STT.Timeout + c.Extractor.Timeout
}

// Keys decodes the active and fallback keys.
func (e EncryptionConfig) Keys() ([]byte, [][]byte, error) {
	active, err := base64.StdEncoding.DecodeString(e.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("encryption key: %w", err)
	}
	fallbacks := make([][]byte, 0, len(e.FallbackKeys))
	for i, k := range e.FallbackKeys {
		b, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, nil, fmt.Errorf("encryption fallback key %d: %w", i, err)
		}
		fallbacks = append(fallbacks, b)
	}
	return active, fallbacks, nil
}

func lookup(keys ...string) (string, bool) {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v, true
		}
	}
	return "", false
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
