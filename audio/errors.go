package audio

import "errors"

var (
	ErrDevice        = errors.New("audio device unavailable")
	ErrDecode        = errors.New("audio data cannot be decoded")
	ErrSourceRevoked = errors.New("media source revoked")
)
