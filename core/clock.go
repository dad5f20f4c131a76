package core

import (
	"sync"
	"time"
)

// Timer 周期定时器句柄
type Timer interface {
	// Stop 停止定时器, 不等待正在执行的回调
	Stop()
}

// Clock 定时器来源, 测试中可替换
type Clock interface {
	Now() time.Time
	Every(d time.Duration, fn func()) Timer
}

// SystemClock 使用真实时间
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Every(d time.Duration, fn func()) Timer {
	t := &tickerTimer{ticker: time.NewTicker(d), done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.done:
				return
			case <-t.ticker.C:
				fn()
			}
		}
	}()
	return t
}

type tickerTimer struct {
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

func (t *tickerTimer) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.done)
	})
}
