package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// Microphone 基于malgo的麦克风采集实现
type Microphone struct {
	logger *slog.Logger
}

// NewMicrophone 创建麦克风采集源
func NewMicrophone(logger *slog.Logger) *Microphone {
	return &Microphone{logger: logger}
}

type micStream struct {
	ctx      *malgo.AllocatedContext
	device   *malgo.Device
	frames   chan []int16
	done     chan struct{}
	onFrames func([]int16)
	logger   *slog.Logger
	once     sync.Once
}

// Open 初始化采集设备, 返回的流需要调用Start才开始回调
func (m *Microphone) Open(ctx context.Context, format Format, onFrames func(pcm []int16)) (AudioStream, error) {
	// 计算帧大小 (样本数)
	frameSize := format.FrameSize()
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size: %d", frameSize)
	}

	// 初始化malgo上下文
	ctxMalgo, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		m.logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize audio context: %v", ErrDevice, err)
	}

	s := &micStream{
		ctx:      ctxMalgo,
		frames:   make(chan []int16, 64),
		done:     make(chan struct{}),
		onFrames: onFrames,
		logger:   m.logger,
	}

	// 创建设备配置
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(frameSize / format.Channels)

	// 设备线程上的回调不能阻塞, 只做非阻塞投递
	captureCallback := func(_, pcmData []byte, _ uint32) {
		pcm := bytesToInt16(pcmData)
		select {
		case s.frames <- pcm:
		case <-s.done:
		default:
			s.logger.Warn("Audio channel blocked, dropping frame")
		}
	}

	device, err := malgo.InitDevice(ctxMalgo.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: captureCallback,
	})
	if err != nil {
		_ = ctxMalgo.Uninit()
		ctxMalgo.Free()
		return nil, fmt.Errorf("%w: failed to initialize audio device: %v", ErrDevice, err)
	}
	s.device = device

	// 等待权限期间调用方可能已经取消
	if err := ctx.Err(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *micStream) Start() error {
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("%w: failed to start audio device: %v", ErrDevice, err)
	}
	go s.pump()
	s.logger.Info("Audio recording started",
		"sample_rate", s.device.SampleRate(),
		"channels", s.device.CaptureChannels())
	return nil
}

func (s *micStream) pump() {
	for {
		select {
		case <-s.done:
			return
		case pcm := <-s.frames:
			s.onFrames(pcm)
		}
	}
}

// Close 停止设备并释放所有资源
func (s *micStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.device != nil {
			if err := s.device.Stop(); err != nil {
				s.logger.Error("failed to stop audio device", "error", err)
			}
			s.device.Uninit()
		}
		_ = s.ctx.Uninit()
		s.ctx.Free()
		s.logger.Info("Audio recording stopped")
	})
	return nil
}

// CaptureDevice 采集设备信息
type CaptureDevice struct {
	Name      string
	IsDefault bool
}

// ListCaptureDevices 列出系统中的采集设备
func ListCaptureDevices(logger *slog.Logger) ([]CaptureDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize audio context: %v", ErrDevice, err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	devices := make([]CaptureDevice, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, CaptureDevice{
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return devices, nil
}

// bytesToInt16 将byte切片转换为int16切片
func bytesToInt16(b []byte) []int16 {
	if len(b)%2 != 0 {
		b = b[:len(b)-1] // 确保长度是偶数
	}

	pcm := make([]int16, len(b)/2)
	for i := 0; i < len(pcm); i++ {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
