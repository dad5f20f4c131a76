package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/lisuiheng/voxtape/audio"
)

// SessionState 录音会话状态
type SessionState int

const (
	StateIdle SessionState = iota
	StateRecording
	StatePaused
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Limits 由调用方提供的录音上限, 单位秒。RemainingQuota 可以是 math.Inf(1)。
type Limits struct {
	MaxDuration    int
	RemainingQuota float64
}

// Ceiling 返回 min(MaxDuration, RemainingQuota), MaxDuration<=0 表示不限
func (l Limits) Ceiling() float64 {
	maxDuration := math.Inf(1)
	if l.MaxDuration > 0 {
		maxDuration = float64(l.MaxDuration)
	}
	return math.Min(maxDuration, l.RemainingQuota)
}

// RecorderOptions 录音控制器参数
type RecorderOptions struct {
	Format   audio.Format
	Analyser audio.AnalyserConfig
	FileName string // 不含扩展名, 默认 "recording"
	Clock    Clock
}

// Recorder 管理麦克风会话、编码和配额限制。所有回调都以事件形式进入同一把锁下的处理函数。
type Recorder struct {
	mic      audio.MicrophoneSource
	encoder  audio.Encoder
	format   audio.Format
	analyser audio.AnalyserConfig
	fileName string
	clock    Clock
	logger   *slog.Logger

	mu        sync.Mutex
	handler   EventHandler
	queue     []Event
	closed    bool
	state     SessionState
	session   uint64
	limits    Limits
	elapsed   int
	reason    StopReason
	stream    audio.AudioStream
	encStream audio.EncodeStream
	node      *audio.Analyser
	ticker    Timer
	chunks    [][]byte
	recording *Recording
	released  bool
}

// NewRecorder 创建录音控制器
func NewRecorder(mic audio.MicrophoneSource, encoder audio.Encoder, opts RecorderOptions, logger *slog.Logger) *Recorder {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.FileName == "" {
		opts.FileName = "recording"
	}
	return &Recorder{
		mic:      mic,
		encoder:  encoder,
		format:   opts.Format,
		analyser: opts.Analyser,
		fileName: opts.FileName + "." + encoder.Extension(),
		clock:    opts.Clock,
		logger:   logger,
	}
}

// SetEventHandler 注册事件回调, 回调在锁外执行
func (r *Recorder) SetEventHandler(fn EventHandler) {
	r.mu.Lock()
	r.handler = fn
	r.mu.Unlock()
}

// Start 打开麦克风并开始新的录音会话
func (r *Recorder) Start(ctx context.Context, limits Limits) error {
	return r.do(func() error { return r.startLocked(ctx, limits) })
}

func (r *Recorder) startLocked(ctx context.Context, limits Limits) error {
	switch {
	case r.closed:
		return ErrClosed
	case r.state == StateRecording || r.state == StatePaused:
		return ErrSessionActive
	case r.state == StateStopped:
		return ErrRecordingPending
	}
	if limits.RemainingQuota <= 0 {
		r.logger.Warn("Cannot start recording, quota exhausted")
		return ErrQuotaExhausted
	}

	r.session++
	session := r.session
	r.limits = limits
	r.elapsed = 0
	r.reason = StopNone
	r.chunks = nil
	r.recording = nil
	r.released = false

	stream, err := r.mic.Open(ctx, r.format, func(pcm []int16) {
		r.post(Event{Type: eventFrames, session: session, pcm: pcm})
	})
	if err != nil {
		r.logger.Error("Failed to open microphone", "error", err)
		if errors.Is(err, audio.ErrDevice) || errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", audio.ErrDevice, err)
	}

	// emit只会在编码流方法内同步调用, 此时已持有锁
	encStream, err := r.encoder.NewStream(r.format, func(chunk []byte) {
		r.dispatch(Event{Type: EventChunkReceived, session: session, chunk: chunk})
	})
	if err != nil {
		_ = stream.Close()
		r.chunks = nil
		return fmt.Errorf("failed to start encoder: %w", err)
	}

	r.stream = stream
	r.encStream = encStream
	r.node = audio.NewAnalyser(r.analyser)

	if err := stream.Start(); err != nil {
		_ = r.encStream.Close()
		_ = r.stream.Close()
		r.stream, r.encStream, r.node = nil, nil, nil
		r.chunks = nil
		r.session++
		r.logger.Error("Failed to start microphone", "error", err)
		if errors.Is(err, audio.ErrDevice) {
			return err
		}
		return fmt.Errorf("%w: %v", audio.ErrDevice, err)
	}

	r.startTicker(session)
	r.state = StateRecording
	r.notify(Event{Type: EventStarted})
	r.logger.Info("Recording session started",
		"max_duration", limits.MaxDuration,
		"remaining_quota", limits.RemainingQuota,
		"sample_rate", r.format.SampleRate)
	return nil
}

func (r *Recorder) startTicker(session uint64) {
	r.ticker = r.clock.Every(time.Second, func() {
		r.post(Event{Type: EventTick, session: session})
	})
}

// Pause 暂停录音, 暂停期间丢弃采集数据且不计时
func (r *Recorder) Pause() error {
	return r.do(func() error {
		if r.state != StateRecording {
			return ErrNotRecording
		}
		r.stopTicker()
		r.state = StatePaused
		r.notify(Event{Type: EventPaused, Elapsed: r.elapsed})
		return nil
	})
}

// Resume 继续已暂停的录音
func (r *Recorder) Resume() error {
	return r.do(func() error {
		if r.state != StatePaused {
			return ErrNotRecording
		}
		r.startTicker(r.session)
		r.state = StateRecording
		r.notify(Event{Type: EventResumed, Elapsed: r.elapsed})
		return nil
	})
}

// Stop 结束录音并生成Recording, 已停止时为空操作
func (r *Recorder) Stop() error {
	return r.do(func() error {
		switch r.state {
		case StateStopped:
			return nil
		case StateIdle:
			return ErrNotRecording
		}
		return r.stopLocked(StopManual)
	})
}

// stopLocked 按顺序释放资源: 定时器、编码器、设备、分析节点。释放不受错误影响。
func (r *Recorder) stopLocked(reason StopReason) error {
	var errs []error

	r.stopTicker()
	if r.encStream != nil {
		if err := r.encStream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush encoder: %w", err))
		}
		r.encStream = nil
	}
	if r.stream != nil {
		if err := r.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release microphone: %w", err))
		}
		r.stream = nil
	}
	r.node = nil

	// 之后到达的回调全部作废
	r.session++

	r.recording = &Recording{
		clip: &Clip{
			name:     r.fileName,
			mimeType: r.encoder.MIMEType(),
			data:     bytes.Join(r.chunks, nil),
		},
		Duration:  time.Duration(r.elapsed) * time.Second,
		Reason:    reason,
		CreatedAt: r.clock.Now(),
	}
	r.chunks = nil
	r.state = StateStopped
	r.reason = reason
	r.notify(Event{Type: EventStopped, Elapsed: r.elapsed, Reason: reason})

	r.logger.Info("Recording session stopped",
		"reason", reason,
		"elapsed", r.elapsed,
		"size", r.recording.clip.Size())

	err := errors.Join(errs...)
	if err != nil {
		r.logger.Error("Recording teardown reported errors", "error", err)
	}
	return err
}

// StopTimers 停止计时但保持会话状态, 用于关闭前的第一步
func (r *Recorder) StopTimers() {
	_ = r.do(func() error {
		r.stopTicker()
		return nil
	})
}

func (r *Recorder) stopTicker() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

// Discard 丢弃已停止的录音并回到Idle
func (r *Recorder) Discard() error {
	return r.do(func() error {
		if r.state != StateStopped {
			return ErrNotStopped
		}
		r.recording = nil
		r.released = false
		r.elapsed = 0
		r.reason = StopNone
		r.state = StateIdle
		r.notify(Event{Type: EventDiscarded})
		r.logger.Info("Recording discarded")
		return nil
	})
}

// Handoff 把录音作为文件交给调用方, 不清除状态
func (r *Recorder) Handoff() (*Clip, error) {
	var clip *Clip
	err := r.do(func() error {
		if r.state != StateStopped {
			return ErrNotStopped
		}
		if r.released {
			return ErrRecordingReleased
		}
		r.released = true
		clip = r.recording.clip
		r.logger.Info("Recording handed off", "name", clip.Name(), "size", clip.Size())
		return nil
	})
	return clip, err
}

// Close 释放所有资源, 之后不能再开始录音
func (r *Recorder) Close() error {
	return r.do(func() error {
		r.closed = true
		if r.state == StateRecording || r.state == StatePaused {
			return r.stopLocked(StopClosed)
		}
		return nil
	})
}

func (r *Recorder) State() SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed 当前会话已录制的秒数
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

func (r *Recorder) StopReason() StopReason {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason
}

// Recording 返回已停止会话的录音, 其他状态返回nil
func (r *Recorder) Recording() *Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Analyser 录音期间返回实时频谱来源, 否则返回nil
func (r *Recorder) Analyser() audio.FrequencySource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.node == nil {
		return nil
	}
	return r.node
}

// Remaining 返回剩余可录秒数, 因配额或时长上限停止后为0
func (r *Recorder) Remaining() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reason == StopQuota || r.reason == StopDuration {
		return 0
	}
	return math.Max(0, r.limits.Ceiling()-float64(r.elapsed))
}

// post 从设备或定时器回调进入事件处理
func (r *Recorder) post(ev Event) {
	_ = r.do(func() error {
		r.dispatch(ev)
		return nil
	})
}

// dispatch 处理单个事件, 调用时必须持有锁
func (r *Recorder) dispatch(ev Event) {
	if ev.session != r.session {
		return
	}

	switch ev.Type {
	case eventFrames:
		if r.state != StateRecording {
			return
		}
		r.node.Write(ev.pcm, r.format.Channels)
		if err := r.encStream.Write(ev.pcm); err != nil {
			r.logger.Error("Failed to encode audio", "error", err)
		}

	case EventChunkReceived:
		r.chunks = append(r.chunks, ev.chunk)
		r.notify(Event{Type: EventChunkReceived, Elapsed: r.elapsed, Size: len(ev.chunk)})

	case EventTick:
		if r.state != StateRecording {
			return
		}
		r.elapsed++
		r.notify(Event{Type: EventTick, Elapsed: r.elapsed})
		if reason := r.limitReached(); reason != StopNone {
			r.logger.Info("Recording limit reached", "reason", reason, "elapsed", r.elapsed)
			_ = r.stopLocked(reason)
		}
	}
}

func (r *Recorder) limitReached() StopReason {
	switch {
	case r.limits.MaxDuration > 0 && r.elapsed >= r.limits.MaxDuration:
		return StopDuration
	case float64(r.elapsed) >= r.limits.RemainingQuota:
		return StopQuota
	}
	return StopNone
}

func (r *Recorder) notify(ev Event) {
	r.queue = append(r.queue, ev)
}

// do 在锁内执行fn, 然后在锁外投递期间产生的事件
func (r *Recorder) do(fn func() error) error {
	r.mu.Lock()
	err := fn()
	events := r.queue
	r.queue = nil
	handler := r.handler
	r.mu.Unlock()

	if handler != nil {
		for _, ev := range events {
			handler(ev)
		}
	}
	return err
}
