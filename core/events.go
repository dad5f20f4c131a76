package core

import "time"

// EventType 控制器事件类型
type EventType int

const (
	EventStarted EventType = iota
	EventTick
	EventChunkReceived
	EventPaused
	EventResumed
	EventStopped
	EventDiscarded

	EventPlaybackStarted
	EventPlaybackPaused
	EventPlaybackPosition
	EventPlaybackEnded

	eventFrames
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventTick:
		return "tick"
	case EventChunkReceived:
		return "chunk_received"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventStopped:
		return "stopped"
	case EventDiscarded:
		return "discarded"
	case EventPlaybackStarted:
		return "playback_started"
	case EventPlaybackPaused:
		return "playback_paused"
	case EventPlaybackPosition:
		return "playback_position"
	case EventPlaybackEnded:
		return "playback_ended"
	case eventFrames:
		return "frames"
	default:
		return "unknown"
	}
}

// StopReason 录音结束原因
type StopReason string

const (
	StopNone     StopReason = ""
	StopManual   StopReason = "manual"
	StopDuration StopReason = "max_duration"
	StopQuota    StopReason = "quota"
	StopClosed   StopReason = "closed"
)

// Event 控制器发出的事件
type Event struct {
	Type     EventType
	Elapsed  int        // 录音秒数
	Reason   StopReason // EventStopped
	Size     int        // EventChunkReceived 的数据块大小
	Position time.Duration

	session uint64
	ref     string
	chunk   []byte
	pcm     []int16
}

// EventHandler 在控制器锁释放之后被调用
type EventHandler func(Event)
