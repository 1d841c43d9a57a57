package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// 默认使用的图片模型
const DefaultModelName = "gemini-2.5-flash-image"

// Config 应用配置结构
type Config struct {
	// GenAI 配置
	GenAIBaseURL   string
	GenAIAPIKey    string
	GenAIModelName string
	// GenAI 请求超时时间（秒），0 表示不在本地设置超时
	GenAITimeoutSeconds int

	ServerAddress string
	ServerPort    string

	// 界面默认语言: en, zh
	DefaultLocale string
	// 会话空闲多久后被回收（分钟）
	SessionIdleMinutes int

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadConfig 从 .env 文件和环境变量加载配置
func LoadConfig() (*Config, error) {
	// 加载 .env 文件（如果存在）
	if err := godotenv.Load(); err != nil {
		// .env 文件不存在时，直接从环境变量读取
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := &Config{
		GenAIBaseURL:        getEnv("GENAI_BASE_URL", ""),
		GenAIAPIKey:         getEnv("GENAI_API_KEY", ""),
		GenAIModelName:      getEnv("GENAI_MODEL_NAME", DefaultModelName),
		GenAITimeoutSeconds: getEnvInt("GENAI_TIMEOUT_SECONDS", 0),
		ServerAddress:       getEnv("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		SessionIdleMinutes:  getEnvInt("SESSION_IDLE_MINUTES", 60),
		// 日志配置
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate 校验必需的配置
func (c *Config) Validate() error {
	if c.GenAIAPIKey == "" {
		return fmt.Errorf("GENAI_API_KEY is required")
	}
	if c.GenAIModelName == "" {
		return fmt.Errorf("GENAI_MODEL_NAME must not be empty")
	}
	if c.GenAITimeoutSeconds < 0 {
		return fmt.Errorf("GENAI_TIMEOUT_SECONDS must not be negative: %d", c.GenAITimeoutSeconds)
	}
	return nil
}

// InitLogging 按配置初始化日志系统
func (c *Config) InitLogging() error {
	logConfig := &LogConfig{
		Level:    c.LogLevel,
		Format:   c.LogFormat,
		Output:   c.LogOutput,
		FilePath: c.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// GetServerAddr 返回完整的服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerAddress, c.ServerPort)
}

// GenAITimeout 返回远程调用的本地超时，0 表示沿用传输层默认值
func (c *Config) GenAITimeout() time.Duration {
	return time.Duration(c.GenAITimeoutSeconds) * time.Second
}

// SessionIdleTimeout 返回会话空闲回收时间
func (c *Config) SessionIdleTimeout() time.Duration {
	if c.SessionIdleMinutes <= 0 {
		return 0
	}
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}
