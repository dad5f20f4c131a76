package waveform

import (
	"sync"
	"time"
)

// FrameID 帧请求句柄, 0表示无效
type FrameID uint64

// FrameScheduler 动画帧调度, 与 requestAnimationFrame/cancelAnimationFrame 对应
type FrameScheduler interface {
	Request(fn func()) FrameID
	Cancel(id FrameID)
}

// TickerScheduler 以固定帧率触发帧回调
type TickerScheduler struct {
	interval time.Duration

	mu     sync.Mutex
	next   FrameID
	timers map[FrameID]*time.Timer
}

// NewTickerScheduler 创建调度器, fps<=0时使用60
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = 60
	}
	return &TickerScheduler{
		interval: time.Second / time.Duration(fps),
		timers:   make(map[FrameID]*time.Timer),
	}
}

func (s *TickerScheduler) Request(fn func()) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.timers[id] = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		_, ok := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if ok {
			fn()
		}
	})
	return id
}

func (s *TickerScheduler) Cancel(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// Pending 返回尚未触发的帧请求数
func (s *TickerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
