package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Client ClientConfig
}

// LoadDotEnv reads .env files when present. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := LoadServer()
	if err != nil {
		return nil, err
	}

	ai, err := LoadAI()
	if err != nil {
		return nil, err
	}

	client, err := LoadClient()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Client: client}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON"`
}

// Addr turns PORT into a listen address. ":8080" and "127.0.0.1:8080" are
// accepted as is.
func (c ServerConfig) Addr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

func LoadServer() (ServerConfig, error) {
	var c ServerConfig
	if err := envconfig.Process("", &c); err != nil {
		return ServerConfig{}, fmt.Errorf("server config: %w", err)
	}
	if _, err := c.Addr(); err != nil {
		return ServerConfig{}, err
	}
	return c, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string   `envconfig:"ARK_API_KEY"`
	AccessKey   string   `envconfig:"ARK_ACCESS_KEY"`
	SecretKey   string   `envconfig:"ARK_SECRET_KEY"`
	Model       string   `envconfig:"ARK_MODEL"`
	BaseURL     string   `envconfig:"ARK_BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `envconfig:"ARK_REGION" default:"cn-beijing"`
	Temperature *float64 `envconfig:"ARK_TEMPERATURE"`
	TopP        *float64 `envconfig:"ARK_TOP_P"`
	MaxTokens   *int     `envconfig:"ARK_MAX_TOKENS"`
}

func LoadAI() (AIConfig, error) {
	var c AIConfig
	if err := envconfig.Process("", &c); err != nil {
		return AIConfig{}, fmt.Errorf("ai config: %w", err)
	}
	// envconfig upper-cases keys, so the mixed-case variable is read by hand.
	if c.Model == "" {
		c.Model = strings.TrimSpace(os.Getenv("Model"))
	}
	return c, nil
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
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

// Session stores understood by the terminal client.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// ClientConfig configures the terminal chat client.
type ClientConfig struct {
	ServerURL      string        `envconfig:"CHAT_SERVER_URL" default:"http://localhost:8080"`
	APIPrefix      string        `envconfig:"CHAT_API_PREFIX" default:"/api/chat"`
	Protocol       string        `envconfig:"CHAT_PROTOCOL" default:"structured"`
	Store          string        `envconfig:"CHAT_STORE" default:"sqlite"`
	SQLitePath     string        `envconfig:"CHAT_SQLITE_PATH" default:"cardchat.db"`
	RequestTimeout time.Duration `envconfig:"CHAT_REQUEST_TIMEOUT" default:"15s"`
	LogLevel       string        `envconfig:"CHAT_LOG_LEVEL" default:"warn"`
	Redis          RedisConfig   `ignored:"true"`
}

// RedisConfig is only read when the redis store is selected.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Username string        `envconfig:"REDIS_USERNAME"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB"`
	Prefix   string        `envconfig:"REDIS_PREFIX" default:"cardchat:"`
	TTL      time.Duration `envconfig:"REDIS_TTL" default:"720h"`
}

func LoadClient() (ClientConfig, error) {
	var c ClientConfig
	if err := envconfig.Process("", &c); err != nil {
		return ClientConfig{}, fmt.Errorf("client config: %w", err)
	}
	if err := envconfig.Process("", &c.Redis); err != nil {
		return ClientConfig{}, fmt.Errorf("redis config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return c, nil
}

// Validate checks the enumerated settings. Flags may change fields after
// loading, so callers run it again before use.
func (c ClientConfig) Validate() error {
	switch c.Protocol {
	case "structured", "stream":
	default:
		return fmt.Errorf("invalid CHAT_PROTOCOL %q: want structured or stream", c.Protocol)
	}
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("CHAT_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("invalid CHAT_STORE %q: want memory, sqlite or redis", c.Store)
	}
	if c.ServerURL == "" {
		return fmt.Errorf("CHAT_SERVER_URL is required")
	}
	return nil
}
