package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// DevicePlayer PortAudio实现的媒体播放元素
type DevicePlayer struct {
	sources *SourceTable
	decoder Decoder
	logger  *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	decoded *Decoded
	pos     int // 已播放的帧数
	playing bool
	ref     string // 当前绑定的引用
	onEnded func(ref string)
}

var _ MediaElement = (*DevicePlayer)(nil)

// NewDevicePlayer 创建新的PortAudio播放器
func NewDevicePlayer(sources *SourceTable, decoder Decoder, logger *slog.Logger) (*DevicePlayer, error) {
	// 初始化PortAudio
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize PortAudio: %v", ErrDevice, err)
	}
	return &DevicePlayer{
		sources: sources,
		decoder: decoder,
		logger:  logger,
	}, nil
}

// SetSource 解析引用并打开输出流, 空引用表示解绑
func (p *DevicePlayer) SetSource(ref string) error {
	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	p.decoded = nil
	p.ref = ""
	p.pos = 0
	p.playing = false
	p.mu.Unlock()

	p.closeStream(stream)
	if ref == "" {
		return nil
	}

	data, err := p.sources.Resolve(ref)
	if err != nil {
		return err
	}
	decoded, err := p.decoder.Decode(data)
	if err != nil {
		return err
	}

	// 打开音频流
	stream, err = portaudio.OpenDefaultStream(
		0,                           // 输入通道数(0表示不录音)
		len(decoded.Samples),        // 输出通道数
		float64(decoded.SampleRate), // 采样率
		portaudio.FramesPerBufferUnspecified,
		p.audioCallback,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to open audio stream: %v", ErrDevice, err)
	}

	p.mu.Lock()
	p.stream = stream
	p.decoded = decoded
	p.ref = ref
	p.mu.Unlock()
	return nil
}

func (p *DevicePlayer) audioCallback(out [][]float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	filled := 0
	if p.playing && p.decoded != nil {
		total := len(p.decoded.Channel(0))
		for filled < len(out[0]) && p.pos < total {
			for ch := range out {
				src := p.decoded.Channel(ch % len(p.decoded.Samples))
				out[ch][filled] = float32(src[p.pos])
			}
			filled++
			p.pos++
		}
		if p.pos >= total {
			p.playing = false
			go p.finish(p.ref)
		}
	}

	// 填充剩余空间为静音
	for i := range out {
		for j := filled; j < len(out[i]); j++ {
			out[i][j] = 0
		}
	}
}

// finish 在回调线程之外停止流并通知播放结束
func (p *DevicePlayer) finish(ref string) {
	p.mu.Lock()
	stream := p.stream
	fn := p.onEnded
	p.mu.Unlock()

	if stream != nil {
		if err := stream.Stop(); err != nil {
			p.logger.Error("failed to stop audio stream", "error", err)
		}
	}
	if fn != nil {
		fn(ref)
	}
}

// Play 开始或继续播放, 已播放到末尾时从头开始
func (p *DevicePlayer) Play() error {
	p.mu.Lock()
	if p.stream == nil || p.decoded == nil {
		p.mu.Unlock()
		return errors.New("no media source bound")
	}
	if p.playing {
		p.mu.Unlock()
		return nil
	}
	if p.pos >= len(p.decoded.Channel(0)) {
		p.pos = 0
	}
	p.playing = true
	stream := p.stream
	p.mu.Unlock()

	// Start/Stop会等待回调, 调用时不能持有锁
	if err := stream.Start(); err != nil {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	return nil
}

func (p *DevicePlayer) Pause() error {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return nil
	}
	p.playing = false
	stream := p.stream
	p.mu.Unlock()

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop audio stream: %w", err)
	}
	return nil
}

func (p *DevicePlayer) CurrentTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.decoded == nil || p.decoded.SampleRate == 0 {
		return 0
	}
	return time.Duration(p.pos) * time.Second / time.Duration(p.decoded.SampleRate)
}

func (p *DevicePlayer) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decoded.Duration()
}

func (p *DevicePlayer) OnEnded(fn func(ref string)) {
	p.mu.Lock()
	p.onEnded = fn
	p.mu.Unlock()
}

func (p *DevicePlayer) closeStream(stream *portaudio.Stream) {
	if stream == nil {
		return
	}
	// 停止并关闭音频流
	if err := stream.Stop(); err != nil {
		p.logger.Debug("audio stream already stopped", "error", err)
	}
	if err := stream.Close(); err != nil {
		p.logger.Error("failed to close audio stream", "error", err)
	}
}

func (p *DevicePlayer) Close() error {
	p.mu.Lock()
	stream := p.stream
	p.stream = nil
	p.decoded = nil
	p.playing = false
	p.mu.Unlock()

	p.closeStream(stream)

	// 终止PortAudio
	return portaudio.Terminate()
}
