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

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Bot    BotConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	bot, err := loadBotConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Store:  store,
		Bot:    bot,
		Log:    LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	Environment string
	StaticDir   string
}

// Production reports whether the static client bundle should be served.
func (c ServerConfig) Production() bool {
	return c.Environment == "production"
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "4000"
	}

	env := getEnvOrDefault("NODE_ENV", getEnvOrDefault("APP_ENV", "development"))
	staticDir := getEnvOrDefault("STATIC_DIR", "client/dist")

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":4000" 或 "127.0.0.1:4000"。
		return ServerConfig{Addr: port, Environment: env, StaticDir: staticDir}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, Environment: env, StaticDir: staticDir}, nil
}

// StoreConfig selects the message store backend.
type StoreConfig struct {
	Driver     string
	SQLitePath string
}

const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverSQLite))
	switch driver {
	case StoreDriverSQLite, StoreDriverMemory:
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value %q: want sqlite or memory", driver)
	}

	return StoreConfig{
		Driver:     driver,
		SQLitePath: getEnvOrDefault("SQLITE_PATH", "./data/chat.db"),
	}, nil
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string
}

const (
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// BotConfig 描述机器人与大模型相关配置。
type BotConfig struct {
	Provider        string
	APIKey          string
	AccessKey       string
	SecretKey       string
	Model           string
	BaseURL         string
	Region          string
	GeminiAPIKey    string
	GeminiModel     string
	Timeout         time.Duration
	Personality     string
	PersonalityFile string
	HistoryLimit    int
	AlwaysRespond   bool
}

// Enabled 表示是否提供了所选 provider 必需的密钥。
func (c BotConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	case ProviderGemini:
		return c.GeminiAPIKey != "" && c.GeminiModel != ""
	default:
		return false
	}
}

// NewChatModel 使用配置创建一个 Ark 模型实例。采样参数按调用传入，这里不设置。
func (c BotConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadBotConfig() (BotConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("BOT_PROVIDER", ProviderArk))
	switch provider {
	case ProviderArk, ProviderGemini, ProviderNone:
	default:
		return BotConfig{}, fmt.Errorf("invalid BOT_PROVIDER value %q", provider)
	}

	timeout, err := parseDurationEnv("BOT_TIMEOUT", 30*time.Second)
	if err != nil {
		return BotConfig{}, err
	}

	always, err := parseBoolEnv("BOT_ALWAYS_RESPOND", true)
	if err != nil {
		return BotConfig{}, err
	}

	historyLimit := 10
	if override, err := parseOptionalIntEnv("BOT_HISTORY_LIMIT"); err != nil {
		return BotConfig{}, err
	} else if override != nil {
		if *override < 1 {
			historyLimit = 1
		} else {
			historyLimit = *override
		}
	}

	modelName := strings.TrimSpace(os.Getenv("ARK_MODEL"))
	if modelName == "" {
		// 兼容旧变量名
		modelName = strings.TrimSpace(os.Getenv("Model"))
	}

	return BotConfig{
		Provider:        provider,
		APIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:           modelName,
		BaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
		GeminiAPIKey:    strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:     getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		Timeout:         timeout,
		Personality:     strings.ToLower(getEnvOrDefault("BOT_PERSONALITY", "friendly")),
		PersonalityFile: strings.TrimSpace(os.Getenv("BOT_PERSONALITY_FILE")),
		HistoryLimit:    historyLimit,
		AlwaysRespond:   always,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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

// parseDurationEnv 支持 "45s" 这样的时长，也接受纯数字秒数。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
