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

// 支持的 AI 后端。
const (
	BackendAssistant = "assistant"
	BackendArk       = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	LINE     LINEConfig
	AI       AIConfig
	Quota    QuotaConfig
	Exchange ExchangeConfig
	Messages Messages
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	quota, err := loadQuotaConfig()
	if err != nil {
		return nil, err
	}

	exchange, err := loadExchangeConfig()
	if err != nil {
		return nil, err
	}

	messages, err := LoadMessages(strings.TrimSpace(os.Getenv("MESSAGES_FILE")))
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		LINE:     loadLINEConfig(),
		AI:       ai,
		Quota:    quota,
		Exchange: exchange,
		Messages: messages,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr            string
	DispatchTimeout time.Duration
	AdminToken      string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	timeout, err := parseDurationEnv("DISPATCH_TIMEOUT", 90*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		DispatchTimeout: timeout,
		AdminToken:      strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// LINEConfig 描述 LINE Messaging API 凭证。
type LINEConfig struct {
	ChannelSecret      string
	ChannelAccessToken string
}

// Enabled 表示 webhook 验签与回复所需的凭证是否齐全。
func (c LINEConfig) Enabled() bool {
	return c.ChannelSecret != "" && c.ChannelAccessToken != ""
}

func loadLINEConfig() LINEConfig {
	return LINEConfig{
		ChannelSecret:      firstEnv("LINE_CHANNEL_SECRET", "ChannelSecret"),
		ChannelAccessToken: firstEnv("LINE_CHANNEL_ACCESS_TOKEN", "ChannelAccessToken"),
	}
}

// AIConfig 选择并描述对话后端。
type AIConfig struct {
	Backend   string
	Assistant AssistantConfig
	Ark       ArkConfig
}

// Enabled 表示所选后端的凭证是否齐全。
func (c AIConfig) Enabled() bool {
	switch c.Backend {
	case BackendAssistant:
		return c.Assistant.Enabled()
	case BackendArk:
		return c.Ark.Enabled()
	default:
		return false
	}
}

// AssistantConfig 描述 OpenAI Assistants 后端。
type AssistantConfig struct {
	APIKey       string
	AssistantID  string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Enabled 表示是否提供了必需的密钥与助理 ID。
func (c AssistantConfig) Enabled() bool {
	return c.APIKey != "" && c.AssistantID != ""
}

// ArkConfig 描述火山方舟大模型相关配置。
type ArkConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	SystemPrompt string
	Timeout      time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
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

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("AI_BACKEND", BackendAssistant))
	if backend != BackendAssistant && backend != BackendArk {
		return AIConfig{}, fmt.Errorf("invalid AI_BACKEND value %q: want %q or %q", backend, BackendAssistant, BackendArk)
	}

	assistant, err := loadAssistantConfig()
	if err != nil {
		return AIConfig{}, err
	}

	arkCfg, err := loadArkConfig()
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{Backend: backend, Assistant: assistant, Ark: arkCfg}, nil
}

func loadAssistantConfig() (AssistantConfig, error) {
	poll, err := parseDurationEnv("ASSISTANT_POLL_INTERVAL", time.Second)
	if err != nil {
		return AssistantConfig{}, err
	}

	timeout, err := parseDurationEnv("ASSISTANT_TIMEOUT", time.Minute)
	if err != nil {
		return AssistantConfig{}, err
	}

	return AssistantConfig{
		APIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		AssistantID:  strings.TrimSpace(os.Getenv("ASSISTANT_ID")),
		BaseURL:      strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		PollInterval: poll,
		Timeout:      timeout,
	}, nil
}

func loadArkConfig() (ArkConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return ArkConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return ArkConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return ArkConfig{}, err
	}

	timeout, err := parseDurationEnv("ARK_TIMEOUT", time.Minute)
	if err != nil {
		return ArkConfig{}, err
	}

	return ArkConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("Model")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		SystemPrompt: getEnvOrDefault("ARK_SYSTEM_PROMPT", defaultSystemPrompt),
		Timeout:      timeout,
	}, nil
}

// QuotaConfig 描述每日提问额度。
type QuotaConfig struct {
	DailyLimit     int
	ReportInterval time.Duration
}

func loadQuotaConfig() (QuotaConfig, error) {
	limit := 10
	if override, err := parseOptionalIntEnv("QUOTA_DAILY_LIMIT"); err != nil {
		return QuotaConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return QuotaConfig{}, fmt.Errorf("invalid QUOTA_DAILY_LIMIT value %d: must be positive", *override)
		}
		limit = *override
	}

	interval, err := parseDurationEnv("QUOTA_REPORT_INTERVAL", time.Hour)
	if err != nil {
		return QuotaConfig{}, err
	}

	return QuotaConfig{DailyLimit: limit, ReportInterval: interval}, nil
}

// ExchangeConfig 描述问答记录的存放位置。DSN 为空时仅保存在内存中。
type ExchangeConfig struct {
	DSN         string
	MemoryLimit int
}

func loadExchangeConfig() (ExchangeConfig, error) {
	memoryLimit := 50
	if override, err := parseOptionalIntEnv("EXCHANGE_MEMORY_LIMIT"); err != nil {
		return ExchangeConfig{}, err
	} else if override != nil && *override > 0 {
		memoryLimit = *override
	}

	return ExchangeConfig{
		DSN:         strings.TrimSpace(os.Getenv("EXCHANGE_LOG_DSN")),
		MemoryLimit: memoryLimit,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// firstEnv 返回第一个非空的环境变量，兼容旧部署使用的变量名。
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	// 纯数字按秒处理。
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
	}
	return val, nil
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
