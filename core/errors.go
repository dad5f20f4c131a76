package core

import "errors"

var (
	ErrQuotaExhausted    = errors.New("recording quota exhausted")
	ErrSessionActive     = errors.New("recording session already active")
	ErrRecordingPending  = errors.New("previous recording must be discarded first")
	ErrNotRecording      = errors.New("no active recording session")
	ErrNotStopped        = errors.New("recording session is not stopped")
	ErrRecordingReleased = errors.New("recording already handed off")
	ErrClosed            = errors.New("controller closed")
	ErrNoClip            = errors.New("no clip loaded")
)
