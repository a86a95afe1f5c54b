/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config provides configuration management for the guestix kernel core.
// config 包提供 guestix 内核核心的配置管理功能。
//
// Configuration loading priority (highest to lowest):
// 配置加载优先级（从高到低）：
// 1. Command line arguments / 命令行参数
// 2. Environment variables / 环境变量
// 3. Configuration file / 配置文件
// 4. Default values / 默认值
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Default configuration values
// 默认配置值
const (
	DefaultConfigPath   = "/etc/guestix/config.yaml"
	DefaultMaxPID       = 32767
	DefaultMaxThreads   = 10000
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultLogMaxSize   = 100 // MB
	DefaultLogMaxBackup = 3
	DefaultLogMaxAge    = 7 // days
	DefaultAcctType     = "sqlite"
	DefaultAcctPath     = "./data/acct.db"
	DefaultHTTPAddr     = "127.0.0.1:7070"
	DefaultServiceName  = "guestix"

	// PIDLimit mirrors the Linux pid_max ceiling.
	// PIDLimit 对应 Linux pid_max 的上限。
	PIDLimit = 4194304
)

// Config represents the kernel configuration
// Config 表示内核配置
type Config struct {
	// Kernel holds process table settings / 进程表设置
	Kernel KernelConfig `mapstructure:"kernel" yaml:"kernel"`

	// Log configuration / 日志配置
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Telemetry configuration / 遥测配置
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Accounting configuration / 进程记账配置
	Accounting AccountingConfig `mapstructure:"accounting" yaml:"accounting"`

	// HTTP introspection configuration / HTTP 内省接口配置
	HTTP HTTPConfig `mapstructure:"http" yaml:"http"`
}

// KernelConfig contains process table sizing
// KernelConfig 包含进程表容量设置
type KernelConfig struct {
	// MaxPID is the highest allocatable process id
	// MaxPID 是可分配的最大进程 ID
	MaxPID int `mapstructure:"max_pid" yaml:"max_pid"`

	// MaxThreads caps native threads, one per emulated process
	// MaxThreads 限制原生线程数量（每个模拟进程一个）
	MaxThreads int `mapstructure:"max_threads" yaml:"max_threads"`
}

// LogConfig contains logging settings
// LogConfig 包含日志设置
type LogConfig struct {
	// Level is the log level (debug, info, warn, error)
	// Level 是日志级别（debug, info, warn, error）
	Level string `mapstructure:"level" yaml:"level"`

	// Format is the encoder format (json, console)
	// Format 是编码格式（json, console）
	Format string `mapstructure:"format" yaml:"format"`

	// File is the log file path, empty means stdout
	// File 是日志文件路径，为空表示标准输出
	File string `mapstructure:"file" yaml:"file"`

	// MaxSize is the maximum size of log file in MB before rotation
	// MaxSize 是日志文件轮转前的最大大小（MB）
	MaxSize int `mapstructure:"max_size" yaml:"max_size"`

	// MaxBackups is the maximum number of old log files to retain
	// MaxBackups 是保留的旧日志文件的最大数量
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`

	// MaxAge is the maximum number of days to retain old log files
	// MaxAge 是保留旧日志文件的最大天数
	MaxAge int `mapstructure:"max_age" yaml:"max_age"`

	// Compress enables gzip of rotated files
	// Compress 启用轮转文件的 gzip 压缩
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// TelemetryConfig contains OpenTelemetry tracing settings
// TelemetryConfig 包含 OpenTelemetry 追踪设置
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool   `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// AccountingConfig contains process accounting database settings
// AccountingConfig 包含进程记账数据库设置
type AccountingConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Type       string `mapstructure:"type" yaml:"type"`               // sqlite, mysql, postgres
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"` // SQLite 文件路径
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port"`
	Username   string `mapstructure:"username" yaml:"username"`
	Password   string `mapstructure:"password" yaml:"password"`
	Database   string `mapstructure:"database" yaml:"database"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
}

// HTTPConfig contains introspection API settings
// HTTPConfig 包含内省 API 设置
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	// Mode is the gin mode (debug, release, test) / gin 运行模式
	Mode string `mapstructure:"mode" yaml:"mode"`
}

// Load loads configuration from file and environment variables
// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	return LoadWithPriority(configPath, nil)
}

// LoadWithPriority loads configuration with explicit priority handling
// LoadWithPriority 使用显式优先级处理加载配置
// Priority: cmdArgs > envVars > configFile > defaults
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值
func LoadWithPriority(configPath string, cmdArgs map[string]interface{}) (*Config, error) {
	v := newViper()

	// Set config file path / 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if envPath := os.Getenv("GUESTIX_CONFIG_PATH"); envPath != "" {
		v.SetConfigFile(envPath)
	} else {
		v.SetConfigFile(DefaultConfigPath)
	}

	// Read config file / 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if we have defaults
		// 如果有默认值，配置文件未找到不是错误
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Apply command line arguments (highest priority)
	// 应用命令行参数（最高优先级）
	for key, value := range cmdArgs {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadFromYAML loads configuration from YAML bytes
// LoadFromYAML 从 YAML 字节加载配置
func LoadFromYAML(yamlData []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(string(yamlData))); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration holding only default values
// Default 返回仅包含默认值的配置
func Default() *Config {
	cfg, err := LoadFromYAML(nil)
	if err != nil {
		// defaults alone cannot fail to unmarshal
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable override / 启用环境变量覆盖
	v.SetEnvPrefix("GUESTIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets default configuration values
// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("kernel.max_pid", DefaultMaxPID)
	v.SetDefault("kernel.max_threads", DefaultMaxThreads)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", DefaultLogMaxSize)
	v.SetDefault("log.max_backups", DefaultLogMaxBackup)
	v.SetDefault("log.max_age", DefaultLogMaxAge)
	v.SetDefault("log.compress", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.service_name", DefaultServiceName)

	v.SetDefault("accounting.enabled", false)
	v.SetDefault("accounting.type", DefaultAcctType)
	v.SetDefault("accounting.sqlite_path", DefaultAcctPath)
	v.SetDefault("accounting.log_level", "warn")

	v.SetDefault("http.enabled", false)
	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("http.mode", "release")
}

// Validate validates the configuration
// Validate 验证配置
func (c *Config) Validate() error {
	if c.Kernel.MaxPID < 1 || c.Kernel.MaxPID > PIDLimit {
		return fmt.Errorf("kernel.max_pid must be between 1 and %d, got %d", PIDLimit, c.Kernel.MaxPID)
	}
	if c.Kernel.MaxThreads < 0 {
		return errors.New("kernel.max_threads must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Log.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}

	if c.Accounting.Enabled {
		switch c.Accounting.Type {
		case "sqlite":
			if c.Accounting.SQLitePath == "" {
				return errors.New("accounting.sqlite_path is required for sqlite")
			}
		case "mysql", "postgres":
			if c.Accounting.Host == "" || c.Accounting.Database == "" {
				return fmt.Errorf("accounting.host and accounting.database are required for %s", c.Accounting.Type)
			}
		default:
			return fmt.Errorf("invalid accounting type: %s (must be sqlite, mysql, or postgres)", c.Accounting.Type)
		}
	}

	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return errors.New("http.addr is required when http is enabled")
	}
	switch c.HTTP.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("invalid http mode: %s (must be debug, release, or test)", c.HTTP.Mode)
	}
	return nil
}

// String returns a string representation of the config (for debugging)
// String 返回配置的字符串表示（用于调试）
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Kernel.MaxPID: %d, Log.Level: %s, Telemetry.Enabled: %t, Accounting.Enabled: %t, HTTP.Addr: %s}",
		c.Kernel.MaxPID,
		c.Log.Level,
		c.Telemetry.Enabled,
		c.Accounting.Enabled,
		c.HTTP.Addr,
	)
}

// ToYAML serializes the configuration to YAML format
// ToYAML 将配置序列化为 YAML 格式
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Equal compares two configs for equality
// Equal 比较两个配置是否相等
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}
