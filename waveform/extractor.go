// Package waveform turns decoded audio into bar profiles and draws them.
package waveform

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lisuiheng/voxtape/audio"
)

var ErrInvalidBarCount = errors.New("bar count must be at least 1")

// Analysis 一次解码的结果
type Analysis struct {
	Profile    Profile
	Duration   time.Duration
	SampleRate int
}

// Extractor 把音频文件降采样为振幅序列
type Extractor struct {
	decoder audio.Decoder
	logger  *slog.Logger
}

// NewExtractor 创建提取器
func NewExtractor(decoder audio.Decoder, logger *slog.Logger) *Extractor {
	return &Extractor{decoder: decoder, logger: logger}
}

// Extract 返回长度恰好为bars的振幅序列
func (e *Extractor) Extract(data []byte, bars int) (Profile, error) {
	a, err := e.Analyze(data, bars)
	if err != nil {
		return nil, err
	}
	return a.Profile, nil
}

// Analyze 解码并计算振幅序列和时长
func (e *Extractor) Analyze(data []byte, bars int) (*Analysis, error) {
	if bars < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBarCount, bars)
	}

	decoded, err := e.decoder.Decode(data)
	if err != nil {
		e.logger.Warn("Failed to decode audio for waveform", "size", len(data), "error", err)
		if errors.Is(err, audio.ErrDecode) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", audio.ErrDecode, err)
	}

	profile := BlockMeans(decoded.Channel(0), bars)
	e.logger.Debug("Extracted waveform",
		"bars", bars,
		"samples", len(decoded.Channel(0)),
		"sample_rate", decoded.SampleRate)

	return &Analysis{
		Profile:    profile,
		Duration:   decoded.Duration(),
		SampleRate: decoded.SampleRate,
	}, nil
}

// BlockMeans 把样本分成bars个等长块(余数丢弃), 每块取绝对值均值。
// 样本数少于bars时所有值为0。
func BlockMeans(samples []float64, bars int) Profile {
	profile := make(Profile, bars)
	block := len(samples) / bars
	if block == 0 {
		return profile
	}
	for i := range profile {
		start := i * block
		sum := 0.0
		for _, s := range samples[start : start+block] {
			sum += math.Abs(s)
		}
		profile[i] = sum / float64(block)
	}
	return profile
}
