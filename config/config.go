package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Upload UploadConfig `mapstructure:"upload"`
	Trimap TrimapConfig `mapstructure:"trimap"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	UploadDir    string   `mapstructure:"upload_dir"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type TrimapConfig struct {
	Mode             string `mapstructure:"mode"`
	BoundaryWidth    int    `mapstructure:"boundary_width"`
	KernelLow        int    `mapstructure:"kernel_low"`
	KernelHigh       int    `mapstructure:"kernel_high"`
	// 请求可指定的核边长上限
	MaxKernel        int    `mapstructure:"max_kernel"`
	Seed             uint64 `mapstructure:"seed"` // 0 表示按时间播种
	MaxConcurrent    int    `mapstructure:"max_concurrent"`
	QueueTimeout     int    `mapstructure:"queue_timeout"`
	CleanupTempFiles bool   `mapstructure:"cleanup_temp_files"`
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("mattekit")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置
		return Default()
	}
	return cfg
}

// Validate 检查三分图参数
func (c *Config) Validate() error {
	t := c.Trimap
	if t.BoundaryWidth <= 0 {
		return fmt.Errorf("trimap.boundary_width must be positive, got %d", t.BoundaryWidth)
	}
	if t.KernelLow <= 0 || t.KernelLow >= t.KernelHigh {
		return fmt.Errorf("trimap kernel range [%d, %d) is invalid", t.KernelLow, t.KernelHigh)
	}
	if t.MaxKernel <= 0 || t.KernelHigh > t.MaxKernel {
		return fmt.Errorf("trimap.kernel_high %d exceeds trimap.max_kernel %d", t.KernelHigh, t.MaxKernel)
	}
	if t.MaxConcurrent <= 0 {
		return fmt.Errorf("trimap.max_concurrent must be positive, got %d", t.MaxConcurrent)
	}
	if t.QueueTimeout <= 0 {
		return fmt.Errorf("trimap.queue_timeout must be positive, got %d", t.QueueTimeout)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.upload_dir", "./uploads")
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg"})

	v.SetDefault("trimap.mode", "morphological")
	v.SetDefault("trimap.boundary_width", 50)
	v.SetDefault("trimap.kernel_low", 25)
	v.SetDefault("trimap.kernel_high", 75)
	v.SetDefault("trimap.max_kernel", 255)
	v.SetDefault("trimap.seed", 0)
	v.SetDefault("trimap.max_concurrent", 3)
	v.SetDefault("trimap.queue_timeout", 30)
	v.SetDefault("trimap.cleanup_temp_files", true)
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			UploadDir:    "./uploads",
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg"},
		},
		Trimap: TrimapConfig{
			Mode:             "morphological",
			BoundaryWidth:    50,
			KernelLow:        25,
			KernelHigh:       75,
			MaxKernel:        255,
			MaxConcurrent:    3,
			QueueTimeout:     30,
			CleanupTempFiles: true,
		},
	}
}
