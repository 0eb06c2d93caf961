// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// VideoConverter - FFmpeg 视频转换编排工具

package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultBind         = ":8080"
	defaultFFmpeg       = "ffmpeg"
	defaultFFprobe      = "ffprobe"
	defaultProbeTimeout = 30
	defaultLogLevel     = "info"
	defaultLogLines     = 5000
)

// Config 应用配置
type Config struct {
	Server  ServerConfig `yaml:"server"`
	FFmpeg  BinaryConfig `yaml:"ffmpeg"`
	FFprobe BinaryConfig `yaml:"ffprobe"`
	Probe   ProbeConfig  `yaml:"probe"`
	Log     LogConfig    `yaml:"log"`
	Input   PathRules    `yaml:"input"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
	CORS bool   `yaml:"cors"`
}

// BinaryConfig 外部程序路径
type BinaryConfig struct {
	Path string `yaml:"path"`
}

// ProbeConfig ffprobe 时长探测
type ProbeConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `yaml:"level"`
	MaxLines int    `yaml:"max_lines"`
}

// PathRules 输入路径的允许/拒绝正则
type PathRules struct {
	Allow []string `yaml:"allow"`
	Block []string `yaml:"block"`
}

// ProbeTimeout returns the probe timeout as a duration
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Bind: defaultBind, CORS: true},
		FFmpeg:  BinaryConfig{Path: defaultFFmpeg},
		FFprobe: BinaryConfig{Path: defaultFFprobe},
		Probe:   ProbeConfig{TimeoutSeconds: defaultProbeTimeout},
		Log:     LogConfig{Level: defaultLogLevel, MaxLines: defaultLogLines},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.fill()
	return cfg, nil
}

// 填充空值
func (c *Config) fill() {
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = defaultFFmpeg
	}
	if c.FFprobe.Path == "" {
		c.FFprobe.Path = defaultFFprobe
	}
	if c.Probe.TimeoutSeconds <= 0 {
		c.Probe.TimeoutSeconds = defaultProbeTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.MaxLines <= 0 {
		c.Log.MaxLines = defaultLogLines
	}
}
