package core

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := LoadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Audio.SampleRate != 48000 || cfg.Audio.Timeslice != 100 {
		t.Errorf("audio defaults = %+v", cfg.Audio)
	}
	if cfg.Capture.MaxDuration != 600 {
		t.Errorf("max_duration = %d, want 600", cfg.Capture.MaxDuration)
	}
	if !math.IsInf(cfg.Limits().RemainingQuota, 1) {
		t.Errorf("default quota should be unlimited, got %v", cfg.Limits().RemainingQuota)
	}
	if cfg.Playback.PollInterval != 100*time.Millisecond {
		t.Errorf("poll_interval = %v", cfg.Playback.PollInterval)
	}
	if got := cfg.AnalyserConfig(); got.FFTSize != 512 || got.Smoothing != 0.8 {
		t.Errorf("analyser = %+v", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxtape.yaml")
	yaml := `
audio:
  sample_rate: 16000
capture:
  max_duration: 30
  remaining_quota: 12.5
display:
  live_bars: 40
  static_bars: 80
  color: "#ff0000"
  background: "#000000"
upload:
  url: ws://localhost:9000/upload
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.AudioFormat().SampleRate != 16000 || cfg.AudioFormat().Channels != 1 {
		t.Errorf("format = %+v", cfg.AudioFormat())
	}
	limits := cfg.Limits()
	if limits.MaxDuration != 30 || limits.RemainingQuota != 12.5 {
		t.Errorf("limits = %+v", limits)
	}
	if cfg.Upload.URL != "ws://localhost:9000/upload" || cfg.Upload.ChunkSize != 32*1024 {
		t.Errorf("upload = %+v", cfg.Upload)
	}

	style, err := cfg.Style()
	if err != nil {
		t.Fatalf("Style failed: %v", err)
	}
	if style.Bars != 40 || style.StaticBars != 80 || style.Width != 800 {
		t.Errorf("style = %+v", style)
	}
	if style.Color.R != 0xff || style.Color.G != 0 || style.Background.A != 0xff {
		t.Errorf("colors = %v / %v", style.Color, style.Background)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("VOXTAPE_CAPTURE_MAX_DURATION", "45")
	cfg, err := LoadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Capture.MaxDuration != 45 {
		t.Errorf("max_duration = %d, want 45", cfg.Capture.MaxDuration)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestConfigStyleInvalidColor(t *testing.T) {
	var cfg Config
	cfg.Display.Color = "green-ish"
	if _, err := cfg.Style(); err == nil {
		t.Fatal("expected error for invalid color")
	}
}

// chdir 切换工作目录并在测试结束时恢复 (等价于Go 1.24的t.Chdir)
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
