package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lisuiheng/voxtape/audio"
	"github.com/lisuiheng/voxtape/waveform"
)

// Config 是应用配置结构（匹配YAML文件的结构）
type Config struct {
	Audio struct {
		SampleRate    int `mapstructure:"sample_rate"`
		Channels      int `mapstructure:"channels"`
		FrameDuration int `mapstructure:"frame_duration"`
		Bitrate       int `mapstructure:"bitrate"`
		Timeslice     int `mapstructure:"timeslice"` // 毫秒
	} `mapstructure:"audio"`

	Capture struct {
		MaxDuration    int     `mapstructure:"max_duration"`
		RemainingQuota float64 `mapstructure:"remaining_quota"` // <0 表示不限
		FFTSize        int     `mapstructure:"fft_size"`
		Smoothing      float64 `mapstructure:"smoothing"`
	} `mapstructure:"capture"`

	Playback struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"playback"`

	Display struct {
		FPS         int    `mapstructure:"fps"`
		Width       int    `mapstructure:"width"`
		Height      int    `mapstructure:"height"`
		LiveBars    int    `mapstructure:"live_bars"`
		StaticBars  int    `mapstructure:"static_bars"`
		ProfileBars int    `mapstructure:"profile_bars"`
		BarGap      int    `mapstructure:"bar_gap"`
		Color       string `mapstructure:"color"`
		Background  string `mapstructure:"background"`
	} `mapstructure:"display"`

	Logging struct {
		Level      string   `mapstructure:"level"`
		Outputs    []string `mapstructure:"outputs"`
		MaxSizeMB  int      `mapstructure:"max_size_mb"`
		MaxBackups int      `mapstructure:"max_backups"`
		MaxAgeDays int      `mapstructure:"max_age_days"`
	} `mapstructure:"logging"`

	Upload struct {
		URL         string `mapstructure:"url"`
		AccessToken string `mapstructure:"access_token"`
		ClientID    string `mapstructure:"client_id"`
		ChunkSize   int    `mapstructure:"chunk_size"`
		MaxAttempts int    `mapstructure:"max_attempts"`
	} `mapstructure:"upload"`
}

// SetDefaults 写入默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("audio.sample_rate", 48000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.frame_duration", 20)
	v.SetDefault("audio.bitrate", 128000)
	v.SetDefault("audio.timeslice", 100)

	v.SetDefault("capture.max_duration", 600)
	v.SetDefault("capture.remaining_quota", -1)
	v.SetDefault("capture.fft_size", 512)
	v.SetDefault("capture.smoothing", 0.8)

	v.SetDefault("playback.poll_interval", 100*time.Millisecond)

	v.SetDefault("display.fps", 60)
	v.SetDefault("display.width", 800)
	v.SetDefault("display.height", 80)
	v.SetDefault("display.live_bars", 60)
	v.SetDefault("display.static_bars", 100)
	v.SetDefault("display.profile_bars", 200)
	v.SetDefault("display.bar_gap", 2)
	v.SetDefault("display.color", "#10b981")
	v.SetDefault("display.background", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.outputs", []string{"stdout"})
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("upload.chunk_size", 32*1024)
	v.SetDefault("upload.max_attempts", 3)
}

// LoadConfig 加载配置文件, configPath为空时按默认路径搜索, 找不到文件时使用默认值
func LoadConfig(v *viper.Viper, configPath string) (Config, error) {
	SetDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("voxtape")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		// 使用命令行指定的路径
		v.SetConfigFile(configPath)
	} else {
		// 默认多路径搜索
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/voxtape")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// AudioFormat 采集使用的PCM格式
func (c Config) AudioFormat() audio.Format {
	return audio.Format{
		SampleRate:    c.Audio.SampleRate,
		Channels:      c.Audio.Channels,
		FrameDuration: c.Audio.FrameDuration,
	}
}

// AnalyserConfig 频谱分析参数
func (c Config) AnalyserConfig() audio.AnalyserConfig {
	cfg := audio.DefaultAnalyserConfig()
	if c.Capture.FFTSize > 0 {
		cfg.FFTSize = c.Capture.FFTSize
	}
	cfg.Smoothing = c.Capture.Smoothing
	return cfg
}

// Limits 配置中的录音上限, remaining_quota<0 表示不限
func (c Config) Limits() Limits {
	quota := c.Capture.RemainingQuota
	if quota < 0 {
		quota = Unlimited
	}
	return Limits{MaxDuration: c.Capture.MaxDuration, RemainingQuota: quota}
}

// Style 渲染样式
func (c Config) Style() (waveform.Style, error) {
	fg, err := waveform.ParseColor(c.Display.Color)
	if err != nil {
		return waveform.Style{}, err
	}
	bg, err := waveform.ParseColor(c.Display.Background)
	if err != nil {
		return waveform.Style{}, err
	}
	return waveform.Style{
		Width:      c.Display.Width,
		Height:     c.Display.Height,
		Bars:       c.Display.LiveBars,
		StaticBars: c.Display.StaticBars,
		BarGap:     c.Display.BarGap,
		Color:      fg,
		Background: bg,
	}, nil
}
