package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服务全局配置，从yaml文件加载，未配置的字段使用默认值
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	GDB     GDBConfig     `yaml:"gdb"`
	Session SessionConfig `yaml:"session"`
	Analyze AnalyzeConfig `yaml:"analyze"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GDBConfig gdb进程相关配置
type GDBConfig struct {
	// Path gdb可执行文件路径
	Path string `yaml:"path"`
	// Args 额外的gdb启动参数，附加在内置参数之后
	Args []string `yaml:"args"`
	// CommandTimeout 同步mi命令的超时时间
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// SessionConfig 会话生命周期相关配置
type SessionConfig struct {
	// GracePeriod 最后一个客户端断开后，会话被回收前的保留时间
	GracePeriod time.Duration `yaml:"grace_period"`
	// LogHistory 每个会话保留的日志事件条数
	LogHistory int `yaml:"log_history"`
	// LogReplay 新客户端接入时重放的日志事件条数
	LogReplay int `yaml:"log_replay"`
	// StatsInterval 被调试进程资源占用的采样间隔，0表示关闭采样
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// AnalyzeConfig 崩溃分析服务配置，URL为空时不启用
type AnalyzeConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		GDB: GDBConfig{
			Path:           "gdb",
			CommandTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			GracePeriod:   30 * time.Second,
			LogHistory:    50,
			LogReplay:     10,
			StatsInterval: 2 * time.Second,
		},
		Analyze: AnalyzeConfig{
			Timeout: 120 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load 读取yaml配置文件，文件不存在时返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault 读取yaml配置文件，文件不存在时返回默认配置
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// Addr 返回http服务的监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
