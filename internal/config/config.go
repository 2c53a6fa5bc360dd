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
	Server     ServerConfig
	AI         AIConfig
	Classifier ClassifierConfig
	Retrieval  RetrievalConfig
	Search     SearchConfig
	Store      StoreConfig
	Agent      AgentConfig
	Log        LogConfig
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

	retrieval, err := loadRetrievalConfig()
	if err != nil {
		return nil, err
	}

	search, err := loadSearchConfig()
	if err != nil {
		return nil, err
	}

	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:     server,
		AI:         ai,
		Classifier: loadClassifierConfig(),
		Retrieval:  retrieval,
		Search:     search,
		Store:      StoreConfig{LogDir: getEnvOrDefault("LOG_DIR", "./data/logs")},
		Agent:      agent,
		Log: LogConfig{
			Environment: strings.ToLower(getEnvOrDefault("ENVIRONMENT", "development")),
			Level:       getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
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
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		// 与原型保持一致，路由决策使用确定性输出。
		zero := 0.0
		temperature = &zero
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}

// ClassifierConfig 描述托管 NLP 模型（Hugging Face Inference API）的配置。
type ClassifierConfig struct {
	APIToken       string
	BaseURL        string
	SentimentModel string
	IntentModel    string
	NERModel       string
	EmbedModel     string
}

// Enabled 表示是否配置了 Hugging Face 访问令牌。
func (c ClassifierConfig) Enabled() bool {
	return c.APIToken != ""
}

func loadClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		APIToken:       strings.TrimSpace(os.Getenv("HF_API_TOKEN")),
		BaseURL:        getEnvOrDefault("HF_BASE_URL", "https://api-inference.huggingface.co/models"),
		SentimentModel: getEnvOrDefault("HF_SENTIMENT_MODEL", "distilbert/distilbert-base-uncased-finetuned-sst-2-english"),
		IntentModel:    getEnvOrDefault("HF_INTENT_MODEL", "facebook/bart-large-mnli"),
		NERModel:       getEnvOrDefault("HF_NER_MODEL", "dslim/bert-base-NER"),
		EmbedModel:     getEnvOrDefault("HF_EMBED_MODEL", "BAAI/bge-small-en-v1.5"),
	}
}

// RetrievalConfig 描述 HR / Strategy 知识库索引目录。
type RetrievalConfig struct {
	HRDir       string
	StrategyDir string
	TopK        int
}

func loadRetrievalConfig() (RetrievalConfig, error) {
	topK := 5
	if override, err := parseOptionalIntEnv("RAG_TOP_K"); err != nil {
		return RetrievalConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return RetrievalConfig{}, fmt.Errorf("invalid RAG_TOP_K value %d: must be positive", *override)
		}
		topK = *override
	}

	return RetrievalConfig{
		HRDir:       getEnvOrDefault("RAG_HR_DIR", "./storage_faiss_hr_docs"),
		StrategyDir: getEnvOrDefault("RAG_STRATEGY_DIR", "./storage_faiss_strategy_docs"),
		TopK:        topK,
	}, nil
}

// SearchConfig 描述网页搜索配置。
type SearchConfig struct {
	BaseURL  string
	CacheTTL time.Duration
}

func loadSearchConfig() (SearchConfig, error) {
	ttl, err := parseDurationEnv("SEARCH_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return SearchConfig{}, err
	}
	return SearchConfig{
		BaseURL:  getEnvOrDefault("SEARCH_BASE_URL", "https://html.duckduckgo.com/html/"),
		CacheTTL: ttl,
	}, nil
}

// StoreConfig 描述会话日志文件位置。
type StoreConfig struct {
	LogDir string
}

// AgentConfig 描述路由代理的行为参数。
type AgentConfig struct {
	MaxSteps          int
	Planner           string
	ToolTimeout       time.Duration
	QuestionStaleness time.Duration
}

func loadAgentConfig() (AgentConfig, error) {
	maxSteps := 3
	if override, err := parseOptionalIntEnv("AGENT_MAX_STEPS"); err != nil {
		return AgentConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return AgentConfig{}, fmt.Errorf("invalid AGENT_MAX_STEPS value %d: must be positive", *override)
		}
		maxSteps = *override
	}

	planner := strings.ToLower(getEnvOrDefault("AGENT_PLANNER", "react"))
	if planner != "react" && planner != "toolcall" {
		return AgentConfig{}, fmt.Errorf("invalid AGENT_PLANNER value %q: expected react or toolcall", planner)
	}

	toolTimeout, err := parseDurationEnv("TOOL_TIMEOUT", 30*time.Second)
	if err != nil {
		return AgentConfig{}, err
	}

	staleness, err := parseDurationEnv("QUESTION_STALENESS", 5*time.Minute)
	if err != nil {
		return AgentConfig{}, err
	}

	return AgentConfig{
		MaxSteps:          maxSteps,
		Planner:           planner,
		ToolTimeout:       toolTimeout,
		QuestionStaleness: staleness,
	}, nil
}

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Environment string
	Level       string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
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
