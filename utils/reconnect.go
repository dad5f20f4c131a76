package utils

import "time"

type ReconnectStrategy interface {
	NextDelay() time.Duration
	Reset()
}

var _ ReconnectStrategy = (*ExponentialBackoff)(nil)

type ExponentialBackoff struct {
	baseDelay    time.Duration
	currentDelay time.Duration
	maxDelay     time.Duration
}

func NewExponentialBackoff() *ExponentialBackoff {
	return NewBackoff(1*time.Second, 30*time.Second)
}

// NewBackoff 指定初始和最大间隔
func NewBackoff(base, max time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{
		baseDelay:    base,
		currentDelay: base,
		maxDelay:     max,
	}
}

func (e *ExponentialBackoff) NextDelay() time.Duration {
	delay := e.currentDelay
	e.currentDelay *= 2
	if e.currentDelay > e.maxDelay {
		e.currentDelay = e.maxDelay
	}
	return delay
}

// Reset 连接成功后恢复初始间隔
func (e *ExponentialBackoff) Reset() {
	e.currentDelay = e.baseDelay
}
