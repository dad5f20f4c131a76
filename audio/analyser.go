package audio

import (
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// AnalyserConfig 频谱分析参数
type AnalyserConfig struct {
	FFTSize     int     // 必须是2的幂, 频点数为FFTSize/2
	Smoothing   float64 // 0..1, 与上一帧的加权
	MinDecibels float64
	MaxDecibels float64
}

// DefaultAnalyserConfig 256个频点, 平滑系数0.8
func DefaultAnalyserConfig() AnalyserConfig {
	return AnalyserConfig{
		FFTSize:     512,
		Smoothing:   0.8,
		MinDecibels: -100,
		MaxDecibels: -30,
	}
}

// Analyser 实时频谱分析节点, 保存最近FFTSize个样本
type Analyser struct {
	cfg AnalyserConfig
	fft *fourier.FFT

	mu       sync.Mutex
	ring     []float64
	pos      int
	smoothed []float64
	seq      []float64
	coeffs   []complex128
}

// NewAnalyser 创建分析节点
func NewAnalyser(cfg AnalyserConfig) *Analyser {
	if cfg.FFTSize < 2 {
		cfg.FFTSize = DefaultAnalyserConfig().FFTSize
	}
	if cfg.MaxDecibels <= cfg.MinDecibels {
		cfg.MinDecibels, cfg.MaxDecibels = -100, -30
	}
	return &Analyser{
		cfg:      cfg,
		fft:      fourier.NewFFT(cfg.FFTSize),
		ring:     make([]float64, cfg.FFTSize),
		smoothed: make([]float64, cfg.FFTSize/2),
		seq:      make([]float64, cfg.FFTSize),
	}
}

func (a *Analyser) BinCount() int {
	return a.cfg.FFTSize / 2
}

// Write 写入交错PCM, 只取第一个声道
func (a *Analyser) Write(pcm []int16, channels int) {
	if channels < 1 {
		channels = 1
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < len(pcm); i += channels {
		a.ring[a.pos] = float64(pcm[i]) / 32768.0
		a.pos = (a.pos + 1) % len(a.ring)
	}
}

// FrequencyData 计算当前窗口的字节频谱
func (a *Analyser) FrequencyData(dst []byte) []byte {
	bins := a.BinCount()
	if cap(dst) < bins {
		dst = make([]byte, bins)
	}
	dst = dst[:bins]

	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.ring)
	for i := 0; i < n; i++ {
		a.seq[i] = a.ring[(a.pos+i)%n]
	}
	window.Blackman(a.seq)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.seq)

	tau := a.cfg.Smoothing
	scale := 255 / (a.cfg.MaxDecibels - a.cfg.MinDecibels)
	for k := 0; k < bins; k++ {
		mag := cmplx.Abs(a.coeffs[k]) / float64(n)
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag

		v := 0.0
		if a.smoothed[k] > 0 {
			db := 20 * math.Log10(a.smoothed[k])
			v = scale * (db - a.cfg.MinDecibels)
		}
		switch {
		case v < 0:
			dst[k] = 0
		case v > 255:
			dst[k] = 255
		default:
			dst[k] = byte(v)
		}
	}
	return dst
}
