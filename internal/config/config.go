package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 环境变量前缀，例如 CONSPIRACY_PORT
const ENV_PREFIX = "CONSPIRACY"

type AppConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	StaticDir string `mapstructure:"static_dir"`
	// 二维码中加入链接的前缀
	PublicURL string `mapstructure:"public_url"`

	DefaultCapacity int `mapstructure:"default_capacity"`
	// 讨论和投票时长，单位秒，只用于客户端倒计时
	DiscussionTime int `mapstructure:"discussion_time"`
	VoteTime       int `mapstructure:"vote_time"`

	EndedRoomTTL  time.Duration `mapstructure:"ended_room_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout  time.Duration `mapstructure:"heartbeat_timeout"`

	RequestBuffer int `mapstructure:"request_buffer"`
}

// InitConfig 从 .env、工作目录下的 app_config.json 和环境变量加载配置，失败时直接 panic
func InitConfig() *AppConfig {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Errorf("加载 .env 失败: %w", err))
	}

	config, err := LoadConfig("")
	if err != nil {
		panic(err)
	}

	return config
}

// LoadConfig 读取配置。path 为空时在工作目录中查找可选的 app_config.json，
// 否则 path 指向的文件必须存在
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app_config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("加载配置失败: %w", err)
		}
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 3000)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_dir", "./public")
	v.SetDefault("public_url", "http://localhost:3000")

	v.SetDefault("default_capacity", 8)
	v.SetDefault("discussion_time", 180)
	v.SetDefault("vote_time", 60)

	v.SetDefault("ended_room_ttl", 30*time.Minute)
	v.SetDefault("sweep_interval", time.Minute)

	v.SetDefault("heartbeat_interval", 30*time.Second)
	v.SetDefault("heartbeat_timeout", 45*time.Second)

	v.SetDefault("request_buffer", 256)
}

func (c *AppConfig) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("端口 %d 超出范围", c.Port)
	}

	if c.DefaultCapacity <= 0 {
		return fmt.Errorf("默认容量必须为正数: %d", c.DefaultCapacity)
	}

	if c.HeartbeatInterval <= 0 || c.HeartbeatTimeout <= c.HeartbeatInterval {
		return fmt.Errorf(
			"心跳超时 %s 必须大于心跳间隔 %s",
			c.HeartbeatTimeout,
			c.HeartbeatInterval,
		)
	}

	if c.RequestBuffer <= 0 {
		return fmt.Errorf("请求缓冲区大小必须为正数: %d", c.RequestBuffer)
	}

	return nil
}

// 去掉末尾的斜杠，便于拼接路径
func (c *AppConfig) BaseURL() string {
	return strings.TrimRight(c.PublicURL, "/")
}
