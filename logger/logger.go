package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	globalCloser io.Closer
	once         sync.Once
	mu           sync.Mutex
)

type Config struct {
	Level      string   `json:"level" yaml:"level"`     // debug/info/warn/error
	Outputs    []string `json:"outputs" yaml:"outputs"` // stdout/stderr/file path
	MaxSizeMB  int      `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int      `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int      `json:"max_age_days" yaml:"max_age_days"`
}

// ParseLevel 解析日志级别, 未知值按info处理
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New 按配置创建logger, 文件输出由lumberjack负责轮转
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	// 创建多个输出writer
	var writers []io.Writer
	var files []*lumberjack.Logger
	for _, output := range cfg.Outputs {
		switch output {
		case "", "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			// 确保目录存在
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				closeAll(files)
				return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
			}
			file := &lumberjack.Logger{
				Filename:   output,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
			}
			files = append(files, file)
			writers = append(writers, file)
		}
	}

	// 如果没有指定输出，默认使用stdout
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	l := slog.New(slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}))
	return l, fileClosers(files), nil
}

// Init 初始化全局logger, 只生效一次
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		var l *slog.Logger
		var c io.Closer
		l, c, err = New(cfg)
		if err != nil {
			return
		}
		mu.Lock()
		globalCloser = c
		mu.Unlock()
		globalLogger = l
		slog.SetDefault(l)
	})
	return err
}

// Close 关闭Init打开的日志文件, 可重复调用
func Close() error {
	mu.Lock()
	c := globalCloser
	globalCloser = nil
	mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

type fileClosers []*lumberjack.Logger

func (f fileClosers) Close() error {
	return closeAll(f)
}

func closeAll(files []*lumberjack.Logger) error {
	var first error
	for _, file := range files {
		if err := file.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func Debug(msg string, args ...interface{}) {
	globalLogger.Debug(msg, args...)
}

func Info(msg string, args ...interface{}) {
	globalLogger.Info(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	globalLogger.Warn(msg, args...)
}

func Error(msg string, args ...interface{}) {
	globalLogger.Error(msg, args...)
}

func Logger() *slog.Logger {
	return globalLogger
}
