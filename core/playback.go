package core

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lisuiheng/voxtape/audio"
)

// PlaybackState 播放状态
type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPlaying
	PlaybackPaused
	PlaybackEnded
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	case PlaybackEnded:
		return "ended"
	default:
		return "idle"
	}
}

// Playback 控制一个媒体元素的顺序播放, 并定时上报播放位置
type Playback struct {
	element      audio.MediaElement
	sources      *audio.SourceTable
	clock        Clock
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	handler  EventHandler
	queue    []Event
	state    PlaybackState
	clip     *Clip
	ref      string
	poll     Timer
	position time.Duration
	session  uint64
}

// NewPlayback 创建播放控制器
func NewPlayback(element audio.MediaElement, sources *audio.SourceTable, clock Clock, pollInterval time.Duration, logger *slog.Logger) *Playback {
	if clock == nil {
		clock = SystemClock{}
	}
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	p := &Playback{
		element:      element,
		sources:      sources,
		clock:        clock,
		pollInterval: pollInterval,
		logger:       logger,
	}
	element.OnEnded(func(ref string) {
		p.post(Event{Type: EventPlaybackEnded, ref: ref})
	})
	return p
}

func (p *Playback) SetEventHandler(fn EventHandler) {
	p.mu.Lock()
	p.handler = fn
	p.mu.Unlock()
}

// Play 绑定clip并开始播放, clip变化时先撤销旧引用
func (p *Playback) Play(clip *Clip) error {
	return p.do(func() error {
		if clip == nil {
			return ErrNoClip
		}
		if p.state == PlaybackPlaying && clip == p.clip {
			return nil
		}
		if clip != p.clip {
			if err := p.bindLocked(clip); err != nil {
				return err
			}
		}
		if err := p.element.Play(); err != nil {
			return fmt.Errorf("failed to start playback: %w", err)
		}
		p.stopPoll()
		session := p.session
		p.poll = p.clock.Every(p.pollInterval, func() {
			p.post(Event{Type: EventPlaybackPosition, session: session})
		})
		p.state = PlaybackPlaying
		p.notify(Event{Type: EventPlaybackStarted, Position: p.position})
		p.logger.Debug("Playback started", "name", clip.Name())
		return nil
	})
}

func (p *Playback) bindLocked(clip *Clip) error {
	p.unbindLocked()
	ref := p.sources.Create(clip.Bytes())
	if err := p.element.SetSource(ref); err != nil {
		p.sources.Revoke(ref)
		return fmt.Errorf("failed to bind media source: %w", err)
	}
	p.ref = ref
	p.clip = clip
	return nil
}

// Pause 暂停播放并保留当前位置
func (p *Playback) Pause() error {
	return p.do(func() error {
		if p.state != PlaybackPlaying {
			return nil
		}
		p.stopPoll()
		if err := p.element.Pause(); err != nil {
			p.logger.Error("Failed to pause playback", "error", err)
		}
		p.position = p.element.CurrentTime()
		p.state = PlaybackPaused
		p.notify(Event{Type: EventPlaybackPaused, Position: p.position})
		return nil
	})
}

// Toggle 播放中则暂停, 否则播放clip
func (p *Playback) Toggle(clip *Clip) error {
	if p.State() == PlaybackPlaying {
		return p.Pause()
	}
	return p.Play(clip)
}

// Unbind 停止播放并撤销临时引用
func (p *Playback) Unbind() {
	_ = p.do(func() error {
		p.unbindLocked()
		return nil
	})
}

func (p *Playback) unbindLocked() {
	p.stopPoll()
	if p.ref != "" {
		if p.state == PlaybackPlaying {
			if err := p.element.Pause(); err != nil {
				p.logger.Error("Failed to pause playback", "error", err)
			}
		}
		if err := p.element.SetSource(""); err != nil {
			p.logger.Error("Failed to unbind media source", "error", err)
		}
		p.sources.Revoke(p.ref)
		p.ref = ""
	}
	p.clip = nil
	p.position = 0
	p.state = PlaybackIdle
	p.session++
}

// Close 释放引用和媒体元素
func (p *Playback) Close() error {
	var err error
	_ = p.do(func() error {
		p.unbindLocked()
		err = p.element.Close()
		return nil
	})
	return err
}

func (p *Playback) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position 最近一次上报的播放位置
func (p *Playback) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Duration 当前绑定源的时长
func (p *Playback) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clip == nil {
		return 0
	}
	return p.element.Duration()
}

// Clip 当前绑定的clip
func (p *Playback) Clip() *Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clip
}

func (p *Playback) stopPoll() {
	if p.poll != nil {
		p.poll.Stop()
		p.poll = nil
	}
}

func (p *Playback) post(ev Event) {
	_ = p.do(func() error {
		p.dispatch(ev)
		return nil
	})
}

func (p *Playback) dispatch(ev Event) {
	switch ev.Type {
	case EventPlaybackPosition:
		if ev.session != p.session || p.state != PlaybackPlaying {
			return
		}
		p.position = p.element.CurrentTime()
		p.notify(Event{Type: EventPlaybackPosition, Position: p.position})

	case EventPlaybackEnded:
		// 只接受当前绑定源的结束通知
		if ev.ref != p.ref || p.state != PlaybackPlaying {
			return
		}
		p.stopPoll()
		p.state = PlaybackEnded
		p.position = 0
		p.notify(Event{Type: EventPlaybackEnded})
		// 结束后立即等同于Idle
		p.state = PlaybackIdle
		p.logger.Debug("Playback ended")
	}
}

func (p *Playback) notify(ev Event) {
	p.queue = append(p.queue, ev)
}

func (p *Playback) do(fn func() error) error {
	p.mu.Lock()
	err := fn()
	events := p.queue
	p.queue = nil
	handler := p.handler
	p.mu.Unlock()

	if handler != nil {
		for _, ev := range events {
			handler(ev)
		}
	}
	return err
}
