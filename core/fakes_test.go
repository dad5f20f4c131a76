package core

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lisuiheng/voxtape/audio"
	"github.com/lisuiheng/voxtape/waveform"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock 手动推进的时钟
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() {
	t.clock.mu.Lock()
	t.stopped = true
	t.clock.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1700000000000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Every(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Tick 触发所有未停止的定时器
func (c *fakeClock) Tick() {
	c.mu.Lock()
	c.now = c.now.Add(time.Second)
	var active []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			active = append(active, t)
		}
	}
	c.mu.Unlock()
	for _, t := range active {
		t.fn()
	}
}

func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fakeMic 由测试手动推送PCM
type fakeMic struct {
	openErr  error
	startErr error
	closeErr error
	opened   int
	onFrames func([]int16)
	streams  []*fakeStream
}

type fakeStream struct {
	mic     *fakeMic
	started bool
	closed  int
}

func (s *fakeStream) Start() error {
	if s.mic.startErr != nil {
		return s.mic.startErr
	}
	s.started = true
	return nil
}

func (s *fakeStream) Close() error {
	s.closed++
	return s.mic.closeErr
}

func (m *fakeMic) Open(ctx context.Context, format audio.Format, onFrames func([]int16)) (audio.AudioStream, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	m.onFrames = onFrames
	s := &fakeStream{mic: m}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMic) emit(pcm ...int16) {
	m.onFrames(pcm)
}

// rawEncoder 把PCM原样以小端字节输出, 每次Write一个数据块
type rawEncoder struct{}

type rawStream struct {
	emit   func([]byte)
	closed bool
}

func (rawEncoder) MIMEType() string  { return "audio/raw" }
func (rawEncoder) Extension() string { return "raw" }

func (rawEncoder) NewStream(format audio.Format, emit func([]byte)) (audio.EncodeStream, error) {
	return &rawStream{emit: emit}, nil
}

func (s *rawStream) Write(pcm []int16) error {
	if s.closed {
		return errors.New("closed")
	}
	buf := make([]byte, len(pcm)*2)
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	s.emit(buf)
	return nil
}

func (s *rawStream) Close() error {
	s.closed = true
	return nil
}

// rawDecoder 解码rawEncoder的输出, 采样率固定为100Hz
type rawDecoder struct{}

func (rawDecoder) Decode(data []byte) (*audio.Decoded, error) {
	if len(data) < 2 || string(data[:2]) == "xx" {
		return nil, audio.ErrDecode
	}
	samples := make([]float64, len(data)/2)
	for i := range samples {
		samples[i] = float64(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
	}
	return &audio.Decoded{SampleRate: 100, Samples: [][]float64{samples}}, nil
}

// fakeElement 记录调用的媒体元素
type fakeElement struct {
	mu       sync.Mutex
	src      string
	sources  []string
	playing  bool
	current  time.Duration
	duration time.Duration
	onEnded  func(ref string)
	closed   bool
	playErr  error
}

func (e *fakeElement) SetSource(ref string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = ref
	e.sources = append(e.sources, ref)
	e.playing = false
	e.current = 0
	return nil
}

func (e *fakeElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playErr != nil {
		return e.playErr
	}
	e.playing = true
	return nil
}

func (e *fakeElement) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	return nil
}

func (e *fakeElement) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *fakeElement) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

func (e *fakeElement) OnEnded(fn func(ref string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEnded = fn
}

func (e *fakeElement) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeElement) seek(d time.Duration) {
	e.mu.Lock()
	e.current = d
	e.mu.Unlock()
}

func (e *fakeElement) end() {
	e.mu.Lock()
	e.playing = false
	e.current = e.duration
	fn := e.onEnded
	ref := e.src
	e.mu.Unlock()
	fn(ref)
}

// endRef 模拟迟到的结束通知
func (e *fakeElement) endRef(ref string) {
	e.mu.Lock()
	fn := e.onEnded
	e.mu.Unlock()
	fn(ref)
}

// manualScheduler 不自动执行的帧调度器
type manualScheduler struct {
	mu      sync.Mutex
	next    waveform.FrameID
	pending map[waveform.FrameID]func()
	// onCancel 在每次Cancel时调用
	onCancel func()
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{pending: make(map[waveform.FrameID]func())}
}

func (s *manualScheduler) Request(fn func()) waveform.FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.pending[s.next] = fn
	return s.next
}

func (s *manualScheduler) Cancel(id waveform.FrameID) {
	s.mu.Lock()
	delete(s.pending, id)
	fn := s.onCancel
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *manualScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// eventLog 收集事件
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) handle(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) count(t EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (l *eventLog) last(t EventType) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == t {
			return l.events[i], true
		}
	}
	return Event{}, false
}
