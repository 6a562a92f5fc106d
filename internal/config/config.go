package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 服务配置（yaml + 环境变量覆盖）
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Lock      LockConfig      `mapstructure:"lock"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Cache     CacheConfig     `mapstructure:"cache"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Mode string `mapstructure:"mode"` // debug / release
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres / sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LockConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`        // 锁租约时长
	KeyPrefix string        `mapstructure:"key_prefix"` // redis key 前缀
}

type StreamConfig struct {
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
	ClientBuffer      int           `mapstructure:"client_buffer"`
	RedisBridge       bool          `mapstructure:"redis_bridge"` // 多进程部署时经 redis pub/sub 转发
	BridgeChannel     string        `mapstructure:"bridge_channel"`
}

type OutboxConfig struct {
	Mode         string        `mapstructure:"mode"` // sync（入队即 drain，开发用）/ worker / manual
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchLimit   int           `mapstructure:"batch_limit"`
}

type CacheConfig struct {
	FollowerTTL time.Duration `mapstructure:"follower_ttl"` // 关注者列表缓存时长
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type SentryConfig struct {
	DSN string `mapstructure:"dsn"`
}

type TelemetryConfig struct {
	Endpoint string `mapstructure:"endpoint"` // otlp http endpoint，空则关闭
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Load 读取配置文件并应用默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("COLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 配置文件可选，缺省走默认值 + 环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "collab.db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("lock.ttl", 180*time.Second)
	v.SetDefault("lock.key_prefix", "softlock:")
	v.SetDefault("stream.keepalive_interval", 25*time.Second)
	v.SetDefault("stream.client_buffer", 64)
	v.SetDefault("stream.redis_bridge", false)
	v.SetDefault("stream.bridge_channel", "collab:stream")
	v.SetDefault("outbox.mode", "sync")
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.batch_limit", 100)
	v.SetDefault("cache.follower_ttl", time.Minute)
	v.SetDefault("jwt.secret", "dev-secret")
	v.SetDefault("rate_limit.rps", 5)
	v.SetDefault("rate_limit.burst", 10)
}
