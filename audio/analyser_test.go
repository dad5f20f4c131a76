package audio

import (
	"math"
	"testing"
)

func sine(freq float64, rate, n int) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return pcm
}

func TestAnalyserBinCount(t *testing.T) {
	a := NewAnalyser(DefaultAnalyserConfig())
	if got := a.BinCount(); got != 256 {
		t.Fatalf("BinCount = %d, want 256", got)
	}
	if got := len(a.FrequencyData(nil)); got != 256 {
		t.Fatalf("len(FrequencyData) = %d, want 256", got)
	}
}

func TestAnalyserSilenceIsZero(t *testing.T) {
	a := NewAnalyser(DefaultAnalyserConfig())
	a.Write(make([]int16, 1024), 1)
	for i, v := range a.FrequencyData(nil) {
		if v != 0 {
			t.Fatalf("bin %d = %d for silence, want 0", i, v)
		}
	}
}

func TestAnalyserPeakAtToneFrequency(t *testing.T) {
	cfg := DefaultAnalyserConfig()
	cfg.Smoothing = 0
	a := NewAnalyser(cfg)

	const rate = 48000
	// 第32个频点的中心频率
	freq := 32 * float64(rate) / float64(cfg.FFTSize)
	a.Write(sine(freq, rate, cfg.FFTSize), 1)

	data := a.FrequencyData(nil)
	peak := 0
	for i, v := range data {
		if v > data[peak] {
			peak = i
		}
	}
	if peak < 31 || peak > 33 {
		t.Errorf("peak bin = %d, want about 32", peak)
	}
	if data[peak] == 0 {
		t.Error("peak bin should be non-zero")
	}
}

func TestAnalyserUsesFirstChannel(t *testing.T) {
	cfg := DefaultAnalyserConfig()
	cfg.Smoothing = 0
	a := NewAnalyser(cfg)

	// 第二声道有信号, 第一声道静音
	stereo := make([]int16, cfg.FFTSize*2)
	tone := sine(3000, 48000, cfg.FFTSize)
	for i := range tone {
		stereo[i*2+1] = tone[i]
	}
	a.Write(stereo, 2)
	for i, v := range a.FrequencyData(nil) {
		if v != 0 {
			t.Fatalf("bin %d = %d, second channel should be ignored", i, v)
		}
	}
}

func TestAnalyserReusesBuffer(t *testing.T) {
	a := NewAnalyser(DefaultAnalyserConfig())
	buf := make([]byte, 0, 512)
	out := a.FrequencyData(buf)
	if &out[0] != &buf[:1][0] {
		t.Error("FrequencyData should reuse a large enough buffer")
	}
}
