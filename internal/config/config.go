// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
// 各组件在构造时接收自己的子配置，业务代码不直接读取全局变量。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Notify        NotifyConfig        `mapstructure:"notify"`
	Admin         AdminConfig         `mapstructure:"admin"`
	Log           LogConfig           `mapstructure:"log"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
// Enabled 为 false 时，会话检索回退到 SQL LIKE 查询。
type ElasticsearchConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// LLMConfig 存储大语言模型相关的配置。
// APIKey 可通过环境变量 WOO_AI_LLM_API_KEY 覆盖，不落盘。
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ChatConfig 存储聊天组件的业务配置（商家名称、话术模板与限额）。
type ChatConfig struct {
	BusinessName     string        `mapstructure:"business_name"`
	SupportEmail     string        `mapstructure:"support_email"`
	SupportPhone     string        `mapstructure:"support_phone"`
	BusinessHours    string        `mapstructure:"business_hours"`
	WelcomeMessage   string        `mapstructure:"welcome_message"`
	FallbackMessage  string        `mapstructure:"fallback_message"`
	CustomPrompt     string        `mapstructure:"custom_prompt"`
	MaxMessages      int           `mapstructure:"max_messages"`
	MaxMessageLength int           `mapstructure:"max_message_length"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	PhoneRequired    bool          `mapstructure:"phone_required"`
	NonceSecret      string        `mapstructure:"nonce_secret"`
}

// NotifyConfig 存储邮件通知相关的配置。
type NotifyConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	NotifyOnStart   bool     `mapstructure:"notify_on_start"`
	NotifyOnMessage bool     `mapstructure:"notify_on_message"`
	Recipients      []string `mapstructure:"recipients"`
	AdminEmail      string   `mapstructure:"admin_email"`
	SMTPHost        string   `mapstructure:"smtp_host"`
	SMTPPort        int      `mapstructure:"smtp_port"`
	SMTPUser        string   `mapstructure:"smtp_user"`
	SMTPPassword    string   `mapstructure:"smtp_password"`
	FromAddress     string   `mapstructure:"from_address"`
}

// AdminConfig 存储后台管理接口的配置。
// PasswordHash 是 bcrypt 哈希，不存明文。
type AdminConfig struct {
	Username         string `mapstructure:"username"`
	PasswordHash     string `mapstructure:"password_hash"`
	JWTSecret        string `mapstructure:"jwt_secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 密钥类配置绑定环境变量，优先于文件内容生效。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 密钥走环境变量覆盖（原系统的可逆混淆方案不再保留）
	viper.SetEnvPrefix("WOO_AI")
	_ = viper.BindEnv("llm.api_key", "WOO_AI_LLM_API_KEY")
	_ = viper.BindEnv("notify.smtp_password", "WOO_AI_SMTP_PASSWORD")
	_ = viper.BindEnv("admin.jwt_secret", "WOO_AI_ADMIN_JWT_SECRET")
	_ = viper.BindEnv("admin.password_hash", "WOO_AI_ADMIN_PASSWORD_HASH")
	_ = viper.BindEnv("chat.nonce_secret", "WOO_AI_NONCE_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	ApplyDefaults(&Conf)
}

// ApplyDefaults 填充缺省业务配置，与原系统的选项默认值对齐。
func ApplyDefaults(c *Config) {
	if c.Chat.BusinessName == "" {
		c.Chat.BusinessName = "Organic Skincare"
	}
	if c.Chat.SupportEmail == "" {
		c.Chat.SupportEmail = "admin@organicskincare.com"
	}
	if c.Chat.SupportPhone == "" {
		c.Chat.SupportPhone = "516-322-9380"
	}
	if c.Chat.BusinessHours == "" {
		c.Chat.BusinessHours = "Mon-Fri 9am-6pm EST"
	}
	if c.Chat.WelcomeMessage == "" {
		c.Chat.WelcomeMessage = "Hi {first_name}! Welcome to " + c.Chat.BusinessName +
			". I'm here to help with your orders, product questions, or anything else. How can I assist you today?"
	}
	if c.Chat.FallbackMessage == "" {
		c.Chat.FallbackMessage = "I'm having trouble connecting right now. Please contact us directly at {email} or call/text {phone} and we'll be happy to help!"
	}
	if c.Chat.MaxMessages <= 0 {
		c.Chat.MaxMessages = 30
	}
	if c.Chat.MaxMessageLength <= 0 {
		c.Chat.MaxMessageLength = 2000
	}
	if c.Chat.SessionTTL <= 0 {
		c.Chat.SessionTTL = 2 * time.Hour
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.RequestTimeout <= 0 {
		c.LLM.RequestTimeout = 30 * time.Second
	}
	if c.Admin.TokenExpireHours <= 0 {
		c.Admin.TokenExpireHours = 12
	}
	if c.Notify.FromAddress == "" {
		c.Notify.FromAddress = c.Notify.AdminEmail
	}
}
