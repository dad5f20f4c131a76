package core

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/lisuiheng/voxtape/waveform"
)

// Studio 把录音、波形提取、播放和渲染串起来:
// 录音停止 -> 提取振幅 -> 静态波形 + 播放进度
type Studio struct {
	recorder  *Recorder
	playback  *Playback
	extractor *waveform.Extractor
	renderer  *waveform.Renderer
	bars      int
	logger    *slog.Logger

	mu       sync.Mutex
	handler  EventHandler
	clip     *Clip
	uploaded bool
	analysis *waveform.Analysis
	visErr   error
}

// NewStudio 创建Studio并接管recorder和playback的事件
func NewStudio(recorder *Recorder, playback *Playback, extractor *waveform.Extractor, renderer *waveform.Renderer, bars int, logger *slog.Logger) *Studio {
	s := &Studio{
		recorder:  recorder,
		playback:  playback,
		extractor: extractor,
		renderer:  renderer,
		bars:      bars,
		logger:    logger,
	}
	recorder.SetEventHandler(s.onRecorderEvent)
	playback.SetEventHandler(s.onPlaybackEvent)
	return s
}

// SetEventHandler 转发recorder和playback的事件
func (s *Studio) SetEventHandler(fn EventHandler) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

// StartRecording 开始录音, 之前上传的文件会被移除
func (s *Studio) StartRecording(ctx context.Context, limits Limits) error {
	s.mu.Lock()
	uploaded := s.uploaded
	s.mu.Unlock()
	if uploaded {
		s.Remove()
	}

	if err := s.recorder.Start(ctx, limits); err != nil {
		return err
	}
	s.Redraw()
	return nil
}

func (s *Studio) StopRecording() error {
	return s.recorder.Stop()
}

func (s *Studio) PauseRecording() error  { return s.recorder.Pause() }
func (s *Studio) ResumeRecording() error { return s.recorder.Resume() }

// LoadFile 显示一个上传的音频文件
func (s *Studio) LoadFile(name, mimeType string, data []byte) error {
	switch s.recorder.State() {
	case StateRecording, StatePaused:
		return ErrSessionActive
	case StateStopped:
		return ErrRecordingPending
	}

	s.playback.Unbind()
	clip := NewClip(name, mimeType, data)
	s.setClip(clip, true)
	s.Redraw()
	return nil
}

// Discard 丢弃当前录音或上传文件以及派生的波形
func (s *Studio) Discard() error {
	if s.recorder.State() == StateStopped {
		if err := s.recorder.Discard(); err != nil {
			return err
		}
	}
	s.playback.Unbind()
	s.mu.Lock()
	s.clip = nil
	s.uploaded = false
	s.analysis = nil
	s.visErr = nil
	s.mu.Unlock()
	s.Redraw()
	return nil
}

// Remove 移除上传的文件
func (s *Studio) Remove() {
	s.mu.Lock()
	uploaded := s.uploaded
	s.mu.Unlock()
	if uploaded {
		_ = s.Discard()
	}
}

// Handoff 返回交给转写流程的文件
func (s *Studio) Handoff() (*Clip, error) {
	if s.recorder.State() == StateStopped {
		return s.recorder.Handoff()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return nil, ErrNoClip
	}
	return s.clip, nil
}

// TogglePlayback 播放或暂停当前clip
func (s *Studio) TogglePlayback() error {
	s.mu.Lock()
	clip := s.clip
	s.mu.Unlock()
	if clip == nil {
		return ErrNoClip
	}
	err := s.playback.Toggle(clip)
	s.Redraw()
	return err
}

// Clip 当前录音或上传的文件
func (s *Studio) Clip() *Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clip
}

// Profile 当前的振幅序列, 无法解码时为nil
func (s *Studio) Profile() waveform.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis == nil {
		return nil
	}
	return s.analysis.Profile
}

// Duration 当前clip的时长
func (s *Studio) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis == nil {
		return 0
	}
	return s.analysis.Duration
}

// VisualizationError 返回波形提取失败的原因, 失败时仍可播放和交付
func (s *Studio) VisualizationError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visErr
}

func (s *Studio) Recorder() *Recorder { return s.recorder }
func (s *Studio) Playback() *Playback { return s.playback }

// Redraw 根据当前状态重新渲染
func (s *Studio) Redraw() waveform.Mode {
	state := s.recorder.State()
	frame := waveform.Frame{
		IsRecording: state == StateRecording || state == StatePaused,
		Position:    s.playback.Position(),
	}
	if frame.IsRecording {
		frame.Live = s.recorder.Analyser()
	}

	s.mu.Lock()
	if s.analysis != nil {
		frame.Profile = s.analysis.Profile
		frame.Duration = s.analysis.Duration
	}
	s.mu.Unlock()

	if frame.Duration == 0 {
		frame.Duration = s.playback.Duration()
	}
	return s.renderer.Render(frame)
}

// Snapshot 返回当前画布的拷贝
func (s *Studio) Snapshot() *image.RGBA {
	return s.renderer.Snapshot()
}

// Close 依次停止定时器、动画帧、设备和分析节点
func (s *Studio) Close() error {
	errPlayback := s.playback.Close()
	s.recorder.StopTimers()
	s.renderer.Close()
	errRecorder := s.recorder.Close()
	return errors.Join(errPlayback, errRecorder)
}

func (s *Studio) setClip(clip *Clip, uploaded bool) {
	analysis, err := s.extractor.Analyze(clip.Bytes(), s.bars)
	if err != nil {
		s.logger.Warn("Unable to visualize audio", "name", clip.Name(), "error", err)
	}

	s.mu.Lock()
	s.clip = clip
	s.uploaded = uploaded
	s.analysis = analysis
	s.visErr = err
	s.mu.Unlock()
}

func (s *Studio) onRecorderEvent(ev Event) {
	switch ev.Type {
	case EventStopped:
		// 关闭时渲染器已释放, 不再解码和重绘
		if ev.Reason == StopClosed {
			break
		}
		if rec := s.recorder.Recording(); rec != nil {
			s.setClip(rec.Clip(), false)
		}
		s.Redraw()
	case EventStarted, EventTick, EventPaused, EventResumed:
		s.Redraw()
	}
	s.forward(ev)
}

func (s *Studio) onPlaybackEvent(ev Event) {
	s.Redraw()
	s.forward(ev)
}

func (s *Studio) forward(ev Event) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}
