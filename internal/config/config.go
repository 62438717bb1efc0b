package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Watch transports
const (
	WatchTransportRedis = "redis"
	WatchTransportNats  = "nats"
	WatchTransportLocal = "local"
)

// Config holds all configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Mention   MentionConfig   `mapstructure:"mention"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	HTTPPort       int      `mapstructure:"http_port"`
	WSPort         int      `mapstructure:"ws_port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AutoMigrate    bool     `mapstructure:"auto_migrate"`
	// MachineID must be unique per instance; it seeds channel id generation
	MachineID      uint16   `mapstructure:"machine_id"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN returns the MySQL data source name
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	MaxConnNum       int64         `mapstructure:"max_conn_num"`
	MaxMessageSize   int64         `mapstructure:"max_message_size"`
	WriteWait        time.Duration `mapstructure:"write_wait"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	WriteChannelSize int           `mapstructure:"write_channel_size"`
}

// WatchConfig selects the change feed transport
type WatchConfig struct {
	Transport      string `mapstructure:"transport"`
	NatsURL        string `mapstructure:"nats_url"`
	ListenerBuffer int    `mapstructure:"listener_buffer"`
}

// MentionConfig tunes mention notifications
type MentionConfig struct {
	SnippetMaxLen   int           `mapstructure:"snippet_max_len"`
	TimeZone        string        `mapstructure:"time_zone"`
	TimeLayout      string        `mapstructure:"time_layout"`
	DispatchWorkers int           `mapstructure:"dispatch_workers"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

// Location resolves TimeZone, falling back to UTC
func (c *MentionConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Global config instance
var GlobalConfig *Config

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.WSPort == 0 {
		cfg.Server.WSPort = cfg.Server.HTTPPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.MySQL.Charset == "" {
		cfg.MySQL.Charset = "utf8mb4"
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "huddle:"
	}
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 168 // 7 days
	}
	if cfg.WebSocket.MaxConnNum == 0 {
		cfg.WebSocket.MaxConnNum = 10000
	}
	if cfg.WebSocket.MaxMessageSize == 0 {
		cfg.WebSocket.MaxMessageSize = 51200
	}
	if cfg.WebSocket.WriteWait == 0 {
		cfg.WebSocket.WriteWait = 10 * time.Second
	}
	if cfg.WebSocket.PongWait == 0 {
		cfg.WebSocket.PongWait = 30 * time.Second
	}
	if cfg.WebSocket.PingPeriod == 0 {
		cfg.WebSocket.PingPeriod = 27 * time.Second
	}
	if cfg.WebSocket.WriteChannelSize == 0 {
		cfg.WebSocket.WriteChannelSize = 256
	}
	if cfg.Watch.Transport == "" {
		cfg.Watch.Transport = WatchTransportRedis
	}
	if cfg.Watch.NatsURL == "" {
		cfg.Watch.NatsURL = "nats://127.0.0.1:4222"
	}
	if cfg.Watch.ListenerBuffer == 0 {
		cfg.Watch.ListenerBuffer = 64
	}
	if cfg.Mention.SnippetMaxLen == 0 {
		cfg.Mention.SnippetMaxLen = 80
	}
	if cfg.Mention.TimeZone == "" {
		cfg.Mention.TimeZone = "UTC"
	}
	if cfg.Mention.TimeLayout == "" {
		cfg.Mention.TimeLayout = "Jan 2, 2006 15:04 MST"
	}
	if cfg.Mention.DispatchWorkers == 0 {
		cfg.Mention.DispatchWorkers = 8
	}
	if cfg.Mention.DispatchTimeout == 0 {
		cfg.Mention.DispatchTimeout = 5 * time.Second
	}
}

func (cfg *Config) validate() error {
	switch cfg.Watch.Transport {
	case WatchTransportRedis, WatchTransportNats, WatchTransportLocal:
	default:
		return fmt.Errorf("unknown watch transport: %s", cfg.Watch.Transport)
	}
	if _, err := time.LoadLocation(cfg.Mention.TimeZone); err != nil {
		return fmt.Errorf("invalid mention time zone %q: %w", cfg.Mention.TimeZone, err)
	}
	return nil
}
