package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models boardroom.yml.
type Config struct {
	Generation Generation `yaml:"generation"`
	Router     Router     `yaml:"router"`
	Panel      Panel      `yaml:"panel"`
	Gatekeeper Gatekeeper `yaml:"gatekeeper"`
	Context    Context    `yaml:"context"`
	Server     Server     `yaml:"server"`
	Journal    Journal    `yaml:"journal"`
	Logging    Logging    `yaml:"logging"`
}

type Generation struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	ImageModel   string `yaml:"image_model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	CallProtocol string `yaml:"call_protocol"`
}

// APIKey resolves the provider key from the configured environment variable.
func (g Generation) APIKey() string {
	if g.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(g.APIKeyEnv)
}

type Router struct {
	KeywordPoints     int     `yaml:"keyword_points"`
	BonusPoints       int     `yaml:"bonus_points"`
	ConfidenceScale   float64 `yaml:"confidence_scale"`
	DefaultPersona    string  `yaml:"default_persona"`
	DefaultConfidence float64 `yaml:"default_confidence"`
	AIConfidence      float64 `yaml:"ai_confidence"`
	HistoryWindow     int     `yaml:"history_window"`
	HistoryClip       int     `yaml:"history_clip"`
}

type Panel struct {
	Seats         []string `yaml:"seats"`
	Summarizer    string   `yaml:"summarizer"`
	HistoryWindow int      `yaml:"history_window"`
}

type Gatekeeper struct {
	Persona               string `yaml:"persona"`
	VerdictAfterUserTurns int    `yaml:"verdict_after_user_turns"`
}

type Context struct {
	RoutedWindow  int `yaml:"routed_window"`
	RollingWindow int `yaml:"rolling_window"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	BasePath     string        `yaml:"base_path"`
	JWTSecretEnv string        `yaml:"jwt_secret_env"`
	DevLogin     bool          `yaml:"dev_login"`
	TurnTimeout  time.Duration `yaml:"turn_timeout"`
}

type Journal struct {
	RedisURL     string `yaml:"redis_url"`
	StreamPrefix string `yaml:"stream_prefix"`
	MaxLen       int64  `yaml:"max_len"`
}

type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Generation.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("config.generation.provider must be gemini or openai, got %q", c.Generation.Provider)
	}
	if c.Generation.Model == "" {
		return fmt.Errorf("config.generation.model is required")
	}
	switch c.Generation.CallProtocol {
	case "native", "text":
	default:
		return fmt.Errorf("config.generation.call_protocol must be native or text")
	}
	if c.Router.KeywordPoints <= 0 || c.Router.BonusPoints < 0 {
		return fmt.Errorf("config.router points must be positive")
	}
	if c.Router.ConfidenceScale <= 0 {
		return fmt.Errorf("config.router.confidence_scale must be positive")
	}
	if c.Router.DefaultPersona == "" {
		return fmt.Errorf("config.router.default_persona is required")
	}
	for _, v := range []float64{c.Router.DefaultConfidence, c.Router.AIConfidence} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config.router confidences must be within [0,1]")
		}
	}
	if len(c.Panel.Seats) == 0 {
		return fmt.Errorf("config.panel.seats is required")
	}
	seen := map[string]bool{}
	for _, s := range c.Panel.Seats {
		if s == "" {
			return fmt.Errorf("config.panel.seats contains an empty persona id")
		}
		if seen[s] {
			return fmt.Errorf("config.panel.seats lists %s twice", s)
		}
		seen[s] = true
	}
	if c.Panel.Summarizer == "" {
		return fmt.Errorf("config.panel.summarizer is required")
	}
	if c.Gatekeeper.Persona == "" {
		return fmt.Errorf("config.gatekeeper.persona is required")
	}
	if c.Gatekeeper.VerdictAfterUserTurns < 0 {
		return fmt.Errorf("config.gatekeeper.verdict_after_user_turns cannot be negative")
	}
	if c.Server.TurnTimeout < 0 {
		return fmt.Errorf("config.server.turn_timeout cannot be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "boardroom.yml")
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// LoadOptional reads boardroom.yml from the workspace, falling back to the
// defaults when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML overlays raw YAML onto the defaults and validates the result.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `generation:
  provider: gemini
  model: gemini-2.5-flash
  image_model: gemini-2.5-flash-image
  api_key_env: GEMINI_API_KEY
  call_protocol: native

router:
  keyword_points: 10
  bonus_points: 15
  confidence_scale: 30
  default_persona: assistant
  default_confidence: 0.5
  ai_confidence: 0.8
  history_window: 5
  history_clip: 100

panel:
  seats: [ceo, cto, cmo, cfo]
  summarizer: assistant
  history_window: 20

gatekeeper:
  persona: oracle
  verdict_after_user_turns: 2

context:
  routed_window: 6
  rolling_window: 10

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  jwt_secret_env: BOARDROOM_JWT_SECRET
  dev_login: false
  turn_timeout: 0s

journal:
  redis_url: ""
  stream_prefix: "boardroom:turns:"
  max_len: 1000

logging:
  level: info
  development: false
`
