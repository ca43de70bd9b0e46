package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Note   NoteConfig   `mapstructure:"note"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

// NoteConfig 笔记任务相关配置
type NoteConfig struct {
	OutputDir       string        `mapstructure:"output_dir"`       // 状态/结果文件目录
	UploadDir       string        `mapstructure:"upload_dir"`       // 上传文件目录
	DataDir         string        `mapstructure:"data_dir"`         // 数据库目录
	ResolveTimeout  time.Duration `mapstructure:"resolve_timeout"`  // 短链接解析超时
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"` // 模型调用超时
	HistoryLimit    int           `mapstructure:"history_limit"`    // 历史记录默认条数
}

func Load() *Config {
	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetDefault("server.port", "5000")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// 笔记任务默认配置
	viper.SetDefault("note.output_dir", "note_results")
	viper.SetDefault("note.upload_dir", "uploads")
	viper.SetDefault("note.data_dir", "data")
	viper.SetDefault("note.resolve_timeout", 10*time.Second)
	viper.SetDefault("note.provider_timeout", 5*time.Minute)
	viper.SetDefault("note.history_limit", 50)
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("服务器端口未设置")
	}
	if config.Note.OutputDir == "" {
		return fmt.Errorf("笔记输出目录未设置")
	}
	if config.Note.ResolveTimeout <= 0 {
		return fmt.Errorf("短链接解析超时必须大于 0")
	}
	return nil
}
